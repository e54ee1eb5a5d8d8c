package coupon

import (
	"maps"
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/promokart/internal/domain/cart"
)

// PricedItem is a cart line with its allocated share of the total discount.
type PricedItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
}

// UpdatedCart is the cart after a coupon has been applied: original lines
// with per-item discounts, any newly granted free lines, and the totals.
// The per-item discounts always sum exactly to TotalDiscount.
type UpdatedCart struct {
	Items         []PricedItem
	TotalPrice    decimal.Decimal
	TotalDiscount decimal.Decimal
	FinalPrice    decimal.Decimal
}

// RewriteCart distributes a computed discount across the cart's line items
// and produces the updated cart. The allocation strategy is variant-specific:
//
//   - cart-wise: proportional to each line's subtotal, with the last line
//     taking the rounding remainder so the allocations reconcile exactly.
//   - product-wise: the whole discount lands on the target product's line.
//   - bxgy: free units are merged into existing lines (discounted at their
//     unit price); "get" products not in the cart are appended as new lines
//     at price zero.
//
// A coupon type outside the supported set is an internal error here: the
// boundary validates types before anything reaches the engine.
func RewriteCart(c *Coupon, k cart.Cart, d Discount) (*UpdatedCart, error) {
	var items []PricedItem
	switch det := c.Details.(type) {
	case CartWiseDetails:
		items = allocateProportional(k, d.Amount)
	case ProductWiseDetails:
		items = allocateToProduct(k, det.ProductID, d.Amount)
	case BxGyDetails:
		items = allocateFreeItems(k, d.FreeItems)
	default:
		return nil, errors.Wrapf(ErrUnknownType, "%q in cart rewrite", c.Type)
	}

	totalPrice := round2(k.Total())
	totalDiscount := round2(d.Amount)
	return &UpdatedCart{
		Items:         items,
		TotalPrice:    totalPrice,
		TotalDiscount: totalDiscount,
		FinalPrice:    round2(totalPrice.Sub(totalDiscount)),
	}, nil
}

// allocateProportional splits amount across lines by their share of the cart
// total. Every line's share is rounded except the last, which receives the
// remainder, so the rounded shares always sum exactly to amount. A zero cart
// total makes every proportion zero; the remainder rule still applies.
func allocateProportional(k cart.Cart, amount decimal.Decimal) []PricedItem {
	cartTotal := k.Total()
	items := make([]PricedItem, len(k.Items))
	running := zero
	for i, it := range k.Items {
		var share decimal.Decimal
		switch {
		case i == len(k.Items)-1:
			share = round2(amount.Sub(running))
		case cartTotal.IsPositive():
			subtotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
			share = round2(amount.Mul(subtotal).Div(cartTotal))
			running = running.Add(share)
		default:
			share = zero
		}
		items[i] = PricedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  share,
		}
	}
	return items
}

// allocateToProduct puts the whole discount on the target product's line.
// The amount is already capped at that product's subtotal by the engine.
func allocateToProduct(k cart.Cart, productID int64, amount decimal.Decimal) []PricedItem {
	items := make([]PricedItem, len(k.Items))
	for i, it := range k.Items {
		share := zero
		if it.ProductID == productID {
			share = round2(amount)
		}
		items[i] = PricedItem{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.UnitPrice,
			Discount:  share,
		}
	}
	return items
}

// allocateFreeItems merges granted free units into existing lines and
// appends lines for "get" products not present in the cart. Appended lines
// carry price zero and discount zero: their value was already folded into
// the aggregate at price zero by the engine.
func allocateFreeItems(k cart.Cart, free map[int64]int) []PricedItem {
	items := make([]PricedItem, 0, len(k.Items)+len(free))
	inCart := make(map[int64]struct{}, len(k.Items))
	for _, it := range k.Items {
		inCart[it.ProductID] = struct{}{}

		qty := it.Quantity
		share := zero
		if granted, ok := free[it.ProductID]; ok {
			qty += granted
			share = round2(decimal.NewFromInt(int64(granted)).Mul(it.UnitPrice))
		}
		items = append(items, PricedItem{
			ProductID: it.ProductID,
			Quantity:  qty,
			UnitPrice: it.UnitPrice,
			Discount:  share,
		})
	}

	// Deterministic order for appended lines.
	for _, pid := range slices.Sorted(maps.Keys(free)) {
		if _, ok := inCart[pid]; ok {
			continue
		}
		items = append(items, PricedItem{
			ProductID: pid,
			Quantity:  free[pid],
			UnitPrice: zero,
			Discount:  zero,
		})
	}
	return items
}
