package handler

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/promokart/internal/domain/cart"
	"github.com/xenking/promokart/internal/domain/coupon"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type couponCreateRequest struct {
	Type           string          `json:"type"`
	Details        json.RawMessage `json:"details"`
	IsActive       *bool           `json:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	MaxRedemptions *int            `json:"max_redemptions"`
}

type couponUpdateRequest struct {
	Type           *string         `json:"type"`
	Details        json.RawMessage `json:"details"`
	IsActive       *bool           `json:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at"`
	MaxRedemptions *int            `json:"max_redemptions"`
}

type couponResponse struct {
	ID             int64           `json:"id"`
	Type           string          `json:"type"`
	Details        json.RawMessage `json:"details"`
	IsActive       bool            `json:"is_active"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
	MaxRedemptions *int            `json:"max_redemptions,omitempty"`
	TimesRedeemed  int             `json:"times_redeemed"`
}

func toCouponResponse(c *coupon.Coupon) (couponResponse, error) {
	details, err := coupon.EncodeDetails(c.Details)
	if err != nil {
		return couponResponse{}, err
	}

	resp := couponResponse{
		ID:            c.ID,
		Type:          string(c.Type),
		Details:       details,
		IsActive:      c.Active,
		ExpiresAt:     c.ExpiresAt,
		TimesRedeemed: c.TimesRedeemed,
	}
	if c.MaxRedemptions > 0 {
		resp.MaxRedemptions = &c.MaxRedemptions
	}
	return resp, nil
}

// cartItemRequest carries an exact decimal price: decoding goes straight
// from the JSON number literal into decimal.Decimal, never through float64.
type cartItemRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type cartRequest struct {
	Items []cartItemRequest `json:"items"`
}

func (req cartRequest) toCart() (cart.Cart, error) {
	items := make([]cart.Item, len(req.Items))
	for i, it := range req.Items {
		items[i] = cart.Item{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: it.Price,
		}
	}
	return cart.New(items)
}

type applicableCouponResponse struct {
	CouponID int64   `json:"coupon_id"`
	Type     string  `json:"type"`
	Discount float64 `json:"discount"`
}

type applicableCouponsResponse struct {
	ApplicableCoupons []applicableCouponResponse `json:"applicable_coupons"`
}

type updatedCartItemResponse struct {
	ProductID     int64   `json:"product_id"`
	Quantity      int     `json:"quantity"`
	Price         float64 `json:"price"`
	TotalDiscount float64 `json:"total_discount"`
}

type updatedCartResponse struct {
	Items         []updatedCartItemResponse `json:"items"`
	TotalPrice    float64                   `json:"total_price"`
	TotalDiscount float64                   `json:"total_discount"`
	FinalPrice    float64                   `json:"final_price"`
}

type applyCouponResponse struct {
	UpdatedCart updatedCartResponse `json:"updated_cart"`
}

// toUpdatedCartResponse converts the exact-decimal result to the display
// representation. This is the only place amounts leave fixed-point form.
func toUpdatedCartResponse(u *coupon.UpdatedCart) updatedCartResponse {
	items := make([]updatedCartItemResponse, len(u.Items))
	for i, it := range u.Items {
		items[i] = updatedCartItemResponse{
			ProductID:     it.ProductID,
			Quantity:      it.Quantity,
			Price:         it.UnitPrice.InexactFloat64(),
			TotalDiscount: it.Discount.InexactFloat64(),
		}
	}
	return updatedCartResponse{
		Items:         items,
		TotalPrice:    u.TotalPrice.InexactFloat64(),
		TotalDiscount: u.TotalDiscount.InexactFloat64(),
		FinalPrice:    u.FinalPrice.InexactFloat64(),
	}
}
