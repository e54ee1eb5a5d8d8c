// Package cart defines the transient cart model that discount computations
// operate on. Prices are supplied by the caller; there is no catalog lookup.
package cart

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNoItems is returned when a cart is constructed without line items.
var ErrNoItems = errors.New("cart items required")

// InvalidItemError indicates a line item that failed validation.
type InvalidItemError struct {
	ProductID int64
	Reason    string
}

func (e *InvalidItemError) Error() string {
	return fmt.Sprintf("invalid cart item for product %d: %s", e.ProductID, e.Reason)
}

// DuplicateProductError indicates two line items sharing the same product id.
// Product id is the line item identity within a cart, so duplicates are
// rejected at the boundary rather than silently merged.
type DuplicateProductError struct {
	ProductID int64
}

func (e *DuplicateProductError) Error() string {
	return fmt.Sprintf("duplicate product %d in cart", e.ProductID)
}

// Item is a single cart line: a product, how many units, and the unit price.
type Item struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Cart is an ordered sequence of line items.
type Cart struct {
	Items []Item
}

// New validates the given line items and builds a Cart from them.
func New(items []Item) (Cart, error) {
	if len(items) == 0 {
		return Cart{}, ErrNoItems
	}

	seen := make(map[int64]struct{}, len(items))
	for _, it := range items {
		if it.ProductID <= 0 {
			return Cart{}, &InvalidItemError{ProductID: it.ProductID, Reason: "product_id must be a positive integer"}
		}
		if it.Quantity <= 0 {
			return Cart{}, &InvalidItemError{ProductID: it.ProductID, Reason: "quantity must be a positive integer"}
		}
		if it.UnitPrice.IsNegative() {
			return Cart{}, &InvalidItemError{ProductID: it.ProductID, Reason: "price must not be negative"}
		}
		if _, dup := seen[it.ProductID]; dup {
			return Cart{}, &DuplicateProductError{ProductID: it.ProductID}
		}
		seen[it.ProductID] = struct{}{}
	}

	return Cart{Items: items}, nil
}

// Total returns the exact cart total, sum of quantity * unit price per line.
// The result is unrounded; rounding happens once at the presentation edge.
func (c Cart) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range c.Items {
		sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return sum
}

// Index returns the cart's line items keyed by product id.
// Product ids are unique within a cart, enforced by New.
func (c Cart) Index() map[int64]Item {
	idx := make(map[int64]Item, len(c.Items))
	for _, it := range c.Items {
		idx[it.ProductID] = it
	}
	return idx
}
