package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/promokart/internal/domain/cart"
)

// ApplicableCoupon describes a redeemable coupon that applies to a cart,
// with the discount it would yield.
type ApplicableCoupon struct {
	CouponID int64
	Type     Type
	Discount decimal.Decimal
}

// Service owns the coupon lifecycle and redemption flow: CRUD with
// boundary validation of the details payload, the advisory applicability
// scan, and coupon application with the guarded redemption increment.
type Service struct {
	repo    Repository
	applied metric.Int64Counter
	now     func() time.Time
}

// NewService creates a Service backed by the given repository. The counter
// records successful coupon applications and may be nil.
func NewService(repo Repository, applied metric.Int64Counter) *Service {
	return &Service{
		repo:    repo,
		applied: applied,
		now:     time.Now,
	}
}

// CreateParams holds the input for creating a coupon. DetailsRaw is the
// undecoded variant payload; it is validated against Type before anything
// is persisted.
type CreateParams struct {
	Type           Type
	DetailsRaw     []byte
	Active         *bool // nil defaults to true
	ExpiresAt      *time.Time
	MaxRedemptions int
}

// Create validates the details payload and persists a new coupon.
func (s *Service) Create(ctx context.Context, p CreateParams) (*Coupon, error) {
	det, err := DecodeDetails(p.Type, p.DetailsRaw)
	if err != nil {
		return nil, err
	}

	c := &Coupon{
		Type:           p.Type,
		Details:        det,
		Active:         true,
		ExpiresAt:      p.ExpiresAt,
		MaxRedemptions: p.MaxRedemptions,
	}
	if p.Active != nil {
		c.Active = *p.Active
	}

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create coupon")
	}
	return c, nil
}

// Get returns the coupon with the given id, or ErrNotFound.
func (s *Service) Get(ctx context.Context, id int64) (*Coupon, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all coupons.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	return s.repo.List(ctx)
}

// UpdateParams holds a partial coupon update. Nil fields are left unchanged.
type UpdateParams struct {
	Type           *Type
	DetailsRaw     []byte // nil keeps the stored details
	Active         *bool
	ExpiresAt      *time.Time
	MaxRedemptions *int
}

// Update applies a partial update. The final type/details combination is
// re-validated as a whole: changing the type without supplying a matching
// details payload is rejected just like creating one that way would be.
func (s *Service) Update(ctx context.Context, id int64, p UpdateParams) (*Coupon, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	finalType := c.Type
	if p.Type != nil {
		finalType = *p.Type
	}

	switch {
	case p.DetailsRaw != nil:
		det, err := DecodeDetails(finalType, p.DetailsRaw)
		if err != nil {
			return nil, err
		}
		c.Details = det
	case finalType != c.Type:
		raw, err := EncodeDetails(c.Details)
		if err != nil {
			return nil, err
		}
		det, err := DecodeDetails(finalType, raw)
		if err != nil {
			return nil, err
		}
		c.Details = det
	}
	c.Type = finalType

	if p.Active != nil {
		c.Active = *p.Active
	}
	if p.ExpiresAt != nil {
		c.ExpiresAt = p.ExpiresAt
	}
	if p.MaxRedemptions != nil {
		c.MaxRedemptions = *p.MaxRedemptions
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrap(err, "update coupon")
	}
	return c, nil
}

// Delete removes the coupon with the given id, or returns ErrNotFound.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ListApplicable scans the currently redeemable coupons, keeps those whose
// variant gate holds for the cart, and computes the discount each would
// yield. It is advisory: nothing is redeemed and no counter moves.
func (s *Service) ListApplicable(ctx context.Context, k cart.Cart) ([]ApplicableCoupon, error) {
	coupons, err := s.repo.ListRedeemable(ctx, s.now())
	if err != nil {
		return nil, errors.Wrap(err, "list redeemable coupons")
	}

	out := make([]ApplicableCoupon, 0, len(coupons))
	for i := range coupons {
		c := &coupons[i]
		if !IsApplicable(c, k) {
			continue
		}
		d := ComputeDiscount(c, k)
		out = append(out, ApplicableCoupon{
			CouponID: c.ID,
			Type:     c.Type,
			Discount: d.Amount,
		})
	}
	return out, nil
}

// Apply redeems the coupon against the cart: the redeemability gate must
// pass, then the discount is computed, the cart rewritten, and the
// redemption counter incremented. The increment is guarded in the store, so
// a concurrent application racing past the gate still cannot over-redeem.
func (s *Service) Apply(ctx context.Context, id int64, k cart.Cart) (*UpdatedCart, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.Redeemable(s.now()); err != nil {
		return nil, err
	}

	d := ComputeDiscount(c, k)
	updated, err := RewriteCart(c, k, d)
	if err != nil {
		return nil, err
	}

	if err := s.repo.IncrementRedemptions(ctx, c.ID); err != nil {
		return nil, err
	}

	if s.applied != nil {
		s.applied.Add(ctx, 1, metric.WithAttributes(
			attribute.String("coupon.type", string(c.Type)),
		))
	}
	return updated, nil
}
