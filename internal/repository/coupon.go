package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/promokart/internal/domain/coupon"
)

const (
	createCouponSQL = `INSERT INTO coupons (type, details, is_active, expires_at, max_redemptions)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, times_redeemed, created_at, updated_at`

	couponColumns = `id, type, details, is_active, expires_at, max_redemptions, times_redeemed, created_at, updated_at`

	getCouponByIDSQL = `SELECT ` + couponColumns + ` FROM coupons WHERE id = $1`

	listCouponsSQL = `SELECT ` + couponColumns + ` FROM coupons ORDER BY id`

	listRedeemableSQL = `SELECT ` + couponColumns + ` FROM coupons
		WHERE is_active = TRUE
		  AND (expires_at IS NULL OR expires_at > $1)
		  AND (max_redemptions IS NULL OR times_redeemed < max_redemptions)
		ORDER BY id`

	updateCouponSQL = `UPDATE coupons
		SET type = $2, details = $3, is_active = $4, expires_at = $5, max_redemptions = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteCouponSQL = `DELETE FROM coupons WHERE id = $1`

	// The redemption limit guard lives in the statement itself, so two
	// concurrent applications cannot both slip past the limit check.
	incrementRedemptionsSQL = `UPDATE coupons
		SET times_redeemed = times_redeemed + 1, updated_at = now()
		WHERE id = $1
		  AND (max_redemptions IS NULL OR times_redeemed < max_redemptions)`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository backed by PostgreSQL.
// The variant details payload is stored as canonical JSONB.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// Create persists a new coupon and fills in its generated fields.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	details, err := coupon.EncodeDetails(c.Details)
	if err != nil {
		return fmt.Errorf("encoding coupon details: %w", err)
	}

	var redeemed int32
	err = r.pool.QueryRow(ctx, createCouponSQL,
		string(c.Type), details, c.Active, c.ExpiresAt, nullablePositive(c.MaxRedemptions),
	).Scan(&c.ID, &redeemed, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating coupon: %w", err)
	}
	c.TimesRedeemed = int(redeemed)
	return nil
}

// GetByID returns the coupon with the given id.
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) GetByID(ctx context.Context, id int64) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, getCouponByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting coupon %d: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("getting coupon %d: %w", id, err)
	}
	return &c, nil
}

// List returns all coupons ordered by id.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listCouponsSQL)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// ListRedeemable returns coupons that are active, unexpired at the given
// instant, and under their redemption limit.
func (r *CouponRepository) ListRedeemable(ctx context.Context, now time.Time) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, listRedeemableSQL, now)
	if err != nil {
		return nil, fmt.Errorf("listing redeemable coupons: %w", err)
	}
	return pgx.CollectRows(rows, scanCoupon)
}

// Update persists the mutable fields of an existing coupon.
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) Update(ctx context.Context, c *coupon.Coupon) error {
	details, err := coupon.EncodeDetails(c.Details)
	if err != nil {
		return fmt.Errorf("encoding coupon details: %w", err)
	}

	err = r.pool.QueryRow(ctx, updateCouponSQL,
		c.ID, string(c.Type), details, c.Active, c.ExpiresAt, nullablePositive(c.MaxRedemptions),
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrNotFound
		}
		return fmt.Errorf("updating coupon %d: %w", c.ID, err)
	}
	return nil
}

// Delete removes the coupon with the given id.
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, deleteCouponSQL, id)
	if err != nil {
		return fmt.Errorf("deleting coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// IncrementRedemptions atomically bumps the redemption counter, guarded by
// the redemption limit. Returns coupon.ErrRedemptionLimit when the guard
// rejects the increment (the caller already verified the coupon exists).
func (r *CouponRepository) IncrementRedemptions(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, incrementRedemptionsSQL, id)
	if err != nil {
		return fmt.Errorf("incrementing redemptions for coupon %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrRedemptionLimit
	}
	return nil
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var (
		c              coupon.Coupon
		typ            string
		details        []byte
		maxRedemptions *int32
		timesRedeemed  int32
	)
	err := row.Scan(
		&c.ID, &typ, &details, &c.Active, &c.ExpiresAt,
		&maxRedemptions, &timesRedeemed, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return coupon.Coupon{}, err
	}

	c.Type = coupon.Type(typ)
	c.TimesRedeemed = int(timesRedeemed)
	if maxRedemptions != nil {
		c.MaxRedemptions = int(*maxRedemptions)
	}

	c.Details, err = coupon.DecodeDetails(c.Type, details)
	if err != nil {
		return coupon.Coupon{}, fmt.Errorf("decoding stored details for coupon %d: %w", c.ID, err)
	}
	return c, nil
}

// nullablePositive maps the "0 means unlimited" convention to a SQL NULL.
func nullablePositive(v int) *int32 {
	if v <= 0 {
		return nil
	}
	n := int32(v)
	return &n
}
