package coupon

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/promokart/internal/domain/cart"
)

// Scale is the process-wide fixed-point scale for monetary amounts.
const Scale = 2

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// round2 rounds a monetary amount to Scale decimal places. Decimal's Round
// is half away from zero, which is half-up for the non-negative amounts
// produced here (0.005 rounds to 0.01).
func round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// Discount is the outcome of a discount computation for one coupon.
type Discount struct {
	// Amount is the aggregate discount, rounded to Scale decimal places.
	Amount decimal.Decimal
	// FreeItems maps product id to the free quantity granted by a bxgy
	// coupon. Nil for the other variants.
	FreeItems map[int64]int
}

// IsApplicable reports whether the coupon's variant gate holds for the cart.
// It is evaluated independently of the redeemability gate (Redeemable):
// an expired coupon can still be "applicable" in the advisory sense.
func IsApplicable(c *Coupon, k cart.Cart) bool {
	switch d := c.Details.(type) {
	case CartWiseDetails:
		return k.Total().GreaterThanOrEqual(d.Threshold)
	case ProductWiseDetails:
		_, ok := k.Index()[d.ProductID]
		return ok
	case BxGyDetails:
		required, present := buyQuantities(d, k)
		return required > 0 && present >= required
	default:
		return false
	}
}

// ComputeDiscount computes the aggregate discount the coupon yields for the
// cart. It is a total function: when the coupon does not apply (or its
// details are malformed) the discount is zero, never an error, so advisory
// listings and actual application share one code path.
func ComputeDiscount(c *Coupon, k cart.Cart) Discount {
	switch d := c.Details.(type) {
	case CartWiseDetails:
		return Discount{Amount: cartWiseAmount(d, k)}
	case ProductWiseDetails:
		return Discount{Amount: productWiseAmount(d, k)}
	case BxGyDetails:
		amount, free := bxgyDiscount(d, k)
		return Discount{Amount: amount, FreeItems: free}
	default:
		return Discount{Amount: zero}
	}
}

func cartWiseAmount(d CartWiseDetails, k cart.Cart) decimal.Decimal {
	total := k.Total()
	if total.LessThan(d.Threshold) {
		return zero
	}
	if d.DiscountType == DiscountPercentage {
		return round2(total.Mul(d.Discount).Div(hundred))
	}
	// Fixed discount cannot exceed the cart total.
	return decimal.Min(round2(d.Discount), total)
}

func productWiseAmount(d ProductWiseDetails, k cart.Cart) decimal.Decimal {
	it, ok := k.Index()[d.ProductID]
	if !ok {
		return zero
	}
	subtotal := it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
	if d.DiscountType == DiscountPercentage {
		return round2(subtotal.Mul(d.Discount).Div(hundred))
	}
	// Fixed discount cannot exceed the product's subtotal.
	return decimal.Min(round2(d.Discount), subtotal)
}

// bxgyDiscount computes how many times the promotion applies, which products
// become free and in what quantity, and the monetary value of those free
// units. A "get" product absent from the cart is priced at zero: the engine
// has no catalog, so its value is unknown here (the free line is still
// granted and appended by the rewriter at price zero).
func bxgyDiscount(d BxGyDetails, k cart.Cart) (decimal.Decimal, map[int64]int) {
	required, present := buyQuantities(d, k)
	if required == 0 {
		// Malformed coupon; do not divide by zero.
		return zero, nil
	}

	times := present / required
	if times > d.RepetitionLimit {
		times = d.RepetitionLimit
	}

	idx := k.Index()
	free := make(map[int64]int, len(d.GetProducts))
	total := zero
	for _, gp := range d.GetProducts {
		granted := gp.Quantity * times
		if granted <= 0 {
			continue
		}
		free[gp.ProductID] = granted

		price := zero
		if it, ok := idx[gp.ProductID]; ok {
			price = it.UnitPrice
		}
		total = total.Add(decimal.NewFromInt(int64(granted)).Mul(price))
	}
	return round2(total), free
}

// buyQuantities sums the required buy quantities of the promotion and the
// quantities of those products actually present in the cart (absent products
// contribute zero).
func buyQuantities(d BxGyDetails, k cart.Cart) (required, present int) {
	idx := k.Index()
	for _, bp := range d.BuyProducts {
		required += bp.Quantity
		if it, ok := idx[bp.ProductID]; ok {
			present += it.Quantity
		}
	}
	return required, present
}
