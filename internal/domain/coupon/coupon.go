// Package coupon implements discount coupons for an e-commerce cart: the
// coupon variants and their validation, the eligibility and discount
// computation engine, the cart rewriter that distributes a discount across
// line items, and the service orchestrating redemption.
package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// Type enumerates the supported coupon variants.
type Type string

const (
	// TypeCartWise discounts the whole cart once its total passes a threshold.
	TypeCartWise Type = "cart-wise"
	// TypeProductWise discounts a single product's line item.
	TypeProductWise Type = "product-wise"
	// TypeBxGy grants free units of "get" products when enough "buy" products
	// are in the cart.
	TypeBxGy Type = "bxgy"
)

// DiscountType selects between percentage and fixed-amount discounts for the
// cart-wise and product-wise variants.
type DiscountType string

const (
	// DiscountPercentage applies a percentage of the relevant subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary amount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

var (
	// ErrNotFound is returned when a coupon id does not exist.
	ErrNotFound = errors.New("coupon not found")
	// ErrInactive is returned when a coupon has been deactivated.
	ErrInactive = errors.New("coupon is inactive")
	// ErrExpired is returned when a coupon's expiry timestamp has passed.
	ErrExpired = errors.New("coupon is expired")
	// ErrRedemptionLimit is returned when a coupon has exhausted its
	// allowed redemptions.
	ErrRedemptionLimit = errors.New("coupon redemption limit reached")
	// ErrUnknownType is returned for a coupon type outside the supported set.
	ErrUnknownType = errors.New("unsupported coupon type")
	// ErrInvalidDetails is returned when a details payload does not satisfy
	// the schema of its coupon type.
	ErrInvalidDetails = errors.New("invalid coupon details")
)

// Coupon is a stored coupon definition.
type Coupon struct {
	ID             int64
	Type           Type
	Details        Details
	Active         bool
	ExpiresAt      *time.Time
	MaxRedemptions int // 0 means unlimited
	TimesRedeemed  int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Redeemable reports whether the coupon can currently be redeemed.
// It returns nil, or the specific rejection cause: ErrInactive, ErrExpired,
// or ErrRedemptionLimit. This gate is separate from and additional to the
// variant applicability check in IsApplicable.
//
// An expired coupon is not auto-deactivated; expiry alone makes it
// non-redeemable.
func (c *Coupon) Redeemable(now time.Time) error {
	if !c.Active {
		return ErrInactive
	}
	if c.ExpiresAt != nil && !c.ExpiresAt.After(now) {
		return ErrExpired
	}
	if c.MaxRedemptions > 0 && c.TimesRedeemed >= c.MaxRedemptions {
		return ErrRedemptionLimit
	}
	return nil
}

// Repository defines persistence operations for coupons.
type Repository interface {
	Create(ctx context.Context, c *Coupon) error
	GetByID(ctx context.Context, id int64) (*Coupon, error)
	List(ctx context.Context) ([]Coupon, error)
	// ListRedeemable returns coupons that are active, unexpired at the given
	// instant, and under their redemption limit.
	ListRedeemable(ctx context.Context, now time.Time) ([]Coupon, error)
	Update(ctx context.Context, c *Coupon) error
	Delete(ctx context.Context, id int64) error
	// IncrementRedemptions atomically bumps the redemption counter, guarded
	// by the redemption limit so two concurrent redemptions cannot both pass
	// the limit check. Returns ErrRedemptionLimit when the guard rejects.
	IncrementRedemptions(ctx context.Context, id int64) error
}
