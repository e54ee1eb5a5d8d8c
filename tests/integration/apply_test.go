//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicableCoupons(t *testing.T) {
	hit := createCoupon(t, couponRequest{
		Type:    "cart-wise",
		Details: map[string]any{"threshold": 100, "discount": 10},
	})
	miss := createCoupon(t, couponRequest{
		Type:    "cart-wise",
		Details: map[string]any{"threshold": 100000, "discount": 50},
	})

	resp := doPost(t, "/api/applicable-coupons", wrapCart(
		cartItem{ProductID: 1, Quantity: 2, Price: 50},
		cartItem{ProductID: 2, Quantity: 1, Price: 100},
	))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJSON[applicableCouponsResponse](t, resp)

	ids := make(map[int64]float64)
	for _, a := range got.ApplicableCoupons {
		ids[a.CouponID] = a.Discount
	}
	require.Contains(t, ids, hit.ID)
	assert.InDelta(t, 20.0, ids[hit.ID], 1e-9)
	assert.NotContains(t, ids, miss.ID)
}

func TestApplyCoupon_CartWise(t *testing.T) {
	c := createCoupon(t, couponRequest{
		Type:    "cart-wise",
		Details: map[string]any{"threshold": 100, "discount": 10},
	})

	resp := doPost(t, fmt.Sprintf("/api/apply-coupon/%d", c.ID), wrapCart(
		cartItem{ProductID: 1, Quantity: 2, Price: 50},
		cartItem{ProductID: 2, Quantity: 1, Price: 100},
	))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJSON[applyCouponResponse](t, resp)

	assert.InDelta(t, 200.0, got.UpdatedCart.TotalPrice, 1e-9)
	assert.InDelta(t, 20.0, got.UpdatedCart.TotalDiscount, 1e-9)
	assert.InDelta(t, 180.0, got.UpdatedCart.FinalPrice, 1e-9)

	// Per-item allocations reconcile with the total.
	sum := 0.0
	for _, it := range got.UpdatedCart.Items {
		sum += it.TotalDiscount
	}
	assert.InDelta(t, got.UpdatedCart.TotalDiscount, sum, 1e-9)

	// The redemption was recorded.
	after := decodeJSON[couponResponse](t, doGet(t, fmt.Sprintf("/api/coupons/%d", c.ID)))
	assert.Equal(t, 1, after.TimesRedeemed)
}

func TestApplyCoupon_BxGy(t *testing.T) {
	c := createCoupon(t, couponRequest{
		Type: "bxgy",
		Details: map[string]any{
			"buy_products": []map[string]any{
				{"product_id": 1, "quantity": 3},
				{"product_id": 2, "quantity": 3},
			},
			"get_products":     []map[string]any{{"product_id": 3, "quantity": 1}},
			"repetition_limit": 2,
		},
	})

	resp := doPost(t, fmt.Sprintf("/api/apply-coupon/%d", c.ID), wrapCart(
		cartItem{ProductID: 1, Quantity: 6, Price: 50},
		cartItem{ProductID: 2, Quantity: 6, Price: 30},
		cartItem{ProductID: 3, Quantity: 2, Price: 25},
	))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJSON[applyCouponResponse](t, resp)

	assert.InDelta(t, 530.0, got.UpdatedCart.TotalPrice, 1e-9)
	assert.InDelta(t, 50.0, got.UpdatedCart.TotalDiscount, 1e-9)
	assert.InDelta(t, 480.0, got.UpdatedCart.FinalPrice, 1e-9)

	require.Len(t, got.UpdatedCart.Items, 3)
	free := got.UpdatedCart.Items[2]
	assert.Equal(t, int64(3), free.ProductID)
	assert.Equal(t, 4, free.Quantity, "2 paid plus 2 free units")
	assert.InDelta(t, 50.0, free.TotalDiscount, 1e-9)
}

func TestApplyCoupon_RedemptionLimitEnforced(t *testing.T) {
	one := 1
	c := createCoupon(t, couponRequest{
		Type:           "cart-wise",
		Details:        map[string]any{"threshold": 10, "discount": 5},
		MaxRedemptions: &one,
	})

	body := wrapCart(cartItem{ProductID: 1, Quantity: 1, Price: 100})

	resp := doPost(t, fmt.Sprintf("/api/apply-coupon/%d", c.ID), body)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = doPost(t, fmt.Sprintf("/api/apply-coupon/%d", c.ID), body)
	got := decodeJSON[errorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, got.Message, "redemption limit")
}

func TestApplyCoupon_ExpiredRejected(t *testing.T) {
	past := time.Now().Add(-time.Hour).UTC()
	c := createCoupon(t, couponRequest{
		Type:      "cart-wise",
		Details:   map[string]any{"threshold": 10, "discount": 5},
		ExpiresAt: &past,
	})

	resp := doPost(t, fmt.Sprintf("/api/apply-coupon/%d", c.ID),
		wrapCart(cartItem{ProductID: 1, Quantity: 1, Price: 100}))
	got := decodeJSON[errorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, got.Message, "expired")
}

func TestApplyCoupon_InactiveExcludedFromApplicable(t *testing.T) {
	inactive := false
	c := createCoupon(t, couponRequest{
		Type:     "cart-wise",
		Details:  map[string]any{"threshold": 10, "discount": 5},
		IsActive: &inactive,
	})

	resp := doPost(t, "/api/applicable-coupons",
		wrapCart(cartItem{ProductID: 1, Quantity: 1, Price: 100}))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decodeJSON[applicableCouponsResponse](t, resp)

	for _, a := range got.ApplicableCoupons {
		assert.NotEqual(t, c.ID, a.CouponID, "inactive coupon must not be advertised")
	}
}

func TestApplyCoupon_EmptyCart(t *testing.T) {
	c := createCoupon(t, couponRequest{
		Type:    "cart-wise",
		Details: map[string]any{"threshold": 10, "discount": 5},
	})

	resp := doPost(t, fmt.Sprintf("/api/apply-coupon/%d", c.ID), wrapCart())
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
