package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/promokart/internal/domain/coupon"
)

// --- Mock repository ---

type mockRepo struct {
	byID       map[int64]*coupon.Coupon
	nextID     int64
	redeemable []coupon.Coupon

	incremented  []int64
	incrementErr error
}

func newMockRepo(coupons ...*coupon.Coupon) *mockRepo {
	byID := make(map[int64]*coupon.Coupon, len(coupons))
	for _, c := range coupons {
		byID[c.ID] = c
	}
	return &mockRepo{byID: byID, nextID: 100}
}

func (m *mockRepo) Create(_ context.Context, c *coupon.Coupon) error {
	m.nextID++
	c.ID = m.nextID
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	m.byID[c.ID] = c
	return nil
}

func (m *mockRepo) GetByID(_ context.Context, id int64) (*coupon.Coupon, error) {
	c, ok := m.byID[id]
	if !ok {
		return nil, coupon.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepo) List(_ context.Context) ([]coupon.Coupon, error) {
	out := make([]coupon.Coupon, 0, len(m.byID))
	for _, c := range m.byID {
		out = append(out, *c)
	}
	return out, nil
}

func (m *mockRepo) ListRedeemable(_ context.Context, _ time.Time) ([]coupon.Coupon, error) {
	return m.redeemable, nil
}

func (m *mockRepo) Update(_ context.Context, c *coupon.Coupon) error {
	m.byID[c.ID] = c
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return coupon.ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func (m *mockRepo) IncrementRedemptions(_ context.Context, id int64) error {
	m.incremented = append(m.incremented, id)
	return m.incrementErr
}

// --- Helpers ---

func newTestMux(repo coupon.Repository) *http.ServeMux {
	mux := http.NewServeMux()
	NewHandler(coupon.NewService(repo, nil)).Register(mux)
	return mux
}

func doRequest(t *testing.T, mux *http.ServeMux, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func storedCartWise(id int64, threshold, discount string) *coupon.Coupon {
	return &coupon.Coupon{
		ID:   id,
		Type: coupon.TypeCartWise,
		Details: coupon.CartWiseDetails{
			Threshold:    decimal.RequireFromString(threshold),
			Discount:     decimal.RequireFromString(discount),
			DiscountType: coupon.DiscountPercentage,
		},
		Active: true,
	}
}

// --- Tests ---

func TestCreateCoupon(t *testing.T) {
	mux := newTestMux(newMockRepo())

	w := doRequest(t, mux, http.MethodPost, "/api/coupons",
		`{"type": "cart-wise", "details": {"threshold": 100, "discount": 10}}`)

	require.Equal(t, http.StatusCreated, w.Code)
	resp := decodeBody[couponResponse](t, w)
	assert.NotZero(t, resp.ID)
	assert.Equal(t, "cart-wise", resp.Type)
	assert.True(t, resp.IsActive)
	assert.JSONEq(t, `{"threshold": 100, "discount": 10, "discount_type": "percentage"}`, string(resp.Details))
}

func TestCreateCoupon_Rejections(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "malformed JSON", body: `{"type": `},
		{name: "missing type", body: `{"details": {"threshold": 100, "discount": 10}}`},
		{name: "missing details", body: `{"type": "cart-wise"}`},
		{name: "unknown type", body: `{"type": "mystery", "details": {}}`},
		{name: "invalid details", body: `{"type": "cart-wise", "details": {"discount": 10}}`},
		{name: "zero max_redemptions", body: `{"type": "cart-wise", "details": {"threshold": 100, "discount": 10}, "max_redemptions": 0}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := newTestMux(newMockRepo())
			w := doRequest(t, mux, http.MethodPost, "/api/coupons", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)

			resp := decodeBody[errorResponse](t, w)
			assert.Equal(t, http.StatusBadRequest, resp.Code)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestGetCoupon(t *testing.T) {
	mux := newTestMux(newMockRepo(storedCartWise(7, "100", "10")))

	w := doRequest(t, mux, http.MethodGet, "/api/coupons/7", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[couponResponse](t, w)
	assert.Equal(t, int64(7), resp.ID)
}

func TestGetCoupon_NotFound(t *testing.T) {
	mux := newTestMux(newMockRepo())

	for _, target := range []string{"/api/coupons/42", "/api/coupons/abc", "/api/coupons/-1"} {
		w := doRequest(t, mux, http.MethodGet, target, "")
		assert.Equal(t, http.StatusNotFound, w.Code, target)
	}
}

func TestListCoupons(t *testing.T) {
	mux := newTestMux(newMockRepo(
		storedCartWise(1, "100", "10"),
		storedCartWise(2, "200", "20"),
	))

	w := doRequest(t, mux, http.MethodGet, "/api/coupons", "")

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[[]couponResponse](t, w)
	assert.Len(t, resp, 2)
}

func TestUpdateCoupon(t *testing.T) {
	mux := newTestMux(newMockRepo(storedCartWise(7, "100", "10")))

	w := doRequest(t, mux, http.MethodPut, "/api/coupons/7",
		`{"details": {"threshold": 250, "discount": 25}}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[couponResponse](t, w)
	assert.JSONEq(t, `{"threshold": 250, "discount": 25, "discount_type": "percentage"}`, string(resp.Details))
}

func TestUpdateCoupon_TypeChangeWithoutDetails(t *testing.T) {
	mux := newTestMux(newMockRepo(storedCartWise(7, "100", "10")))

	w := doRequest(t, mux, http.MethodPut, "/api/coupons/7", `{"type": "product-wise"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteCoupon(t *testing.T) {
	repo := newMockRepo(storedCartWise(7, "100", "10"))
	mux := newTestMux(repo)

	w := doRequest(t, mux, http.MethodDelete, "/api/coupons/7", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = doRequest(t, mux, http.MethodDelete, "/api/coupons/7", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplicableCoupons(t *testing.T) {
	repo := newMockRepo()
	repo.redeemable = []coupon.Coupon{
		*storedCartWise(1, "100", "10"),
		*storedCartWise(2, "500", "20"),
	}
	mux := newTestMux(repo)

	body := `{"cart": {"items": [
		{"product_id": 1, "quantity": 2, "price": 50},
		{"product_id": 2, "quantity": 1, "price": 100}
	]}}`
	w := doRequest(t, mux, http.MethodPost, "/api/applicable-coupons", body)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[applicableCouponsResponse](t, w)
	require.Len(t, resp.ApplicableCoupons, 1)
	assert.Equal(t, int64(1), resp.ApplicableCoupons[0].CouponID)
	assert.InDelta(t, 20.0, resp.ApplicableCoupons[0].Discount, 1e-9)
}

func TestApplicableCoupons_BareCartBody(t *testing.T) {
	repo := newMockRepo()
	repo.redeemable = []coupon.Coupon{*storedCartWise(1, "100", "10")}
	mux := newTestMux(repo)

	// The cart wrapper is optional.
	body := `{"items": [{"product_id": 1, "quantity": 2, "price": 100}]}`
	w := doRequest(t, mux, http.MethodPost, "/api/applicable-coupons", body)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[applicableCouponsResponse](t, w)
	assert.Len(t, resp.ApplicableCoupons, 1)
}

func TestApplicableCoupons_CartRejections(t *testing.T) {
	mux := newTestMux(newMockRepo())

	tests := []struct {
		name string
		body string
	}{
		{name: "empty cart", body: `{"cart": {"items": []}}`},
		{name: "zero quantity", body: `{"cart": {"items": [{"product_id": 1, "quantity": 0, "price": 10}]}}`},
		{name: "negative price", body: `{"cart": {"items": [{"product_id": 1, "quantity": 1, "price": -1}]}}`},
		{
			name: "duplicate product",
			body: `{"cart": {"items": [{"product_id": 1, "quantity": 1, "price": 10}, {"product_id": 1, "quantity": 2, "price": 10}]}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, mux, http.MethodPost, "/api/applicable-coupons", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestApplyCoupon(t *testing.T) {
	repo := newMockRepo(storedCartWise(7, "100", "10"))
	mux := newTestMux(repo)

	body := `{"cart": {"items": [
		{"product_id": 1, "quantity": 2, "price": 50},
		{"product_id": 2, "quantity": 1, "price": 100}
	]}}`
	w := doRequest(t, mux, http.MethodPost, "/api/apply-coupon/7", body)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[applyCouponResponse](t, w)
	assert.InDelta(t, 200.0, resp.UpdatedCart.TotalPrice, 1e-9)
	assert.InDelta(t, 20.0, resp.UpdatedCart.TotalDiscount, 1e-9)
	assert.InDelta(t, 180.0, resp.UpdatedCart.FinalPrice, 1e-9)
	require.Len(t, resp.UpdatedCart.Items, 2)
	assert.Equal(t, []int64{7}, repo.incremented)
}

func TestApplyCoupon_NotFound(t *testing.T) {
	mux := newTestMux(newMockRepo())

	w := doRequest(t, mux, http.MethodPost, "/api/apply-coupon/42",
		`{"cart": {"items": [{"product_id": 1, "quantity": 1, "price": 10}]}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestApplyCoupon_RedeemabilityRejections(t *testing.T) {
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name    string
		mutate  func(*coupon.Coupon)
		wantMsg string
	}{
		{
			name:    "inactive",
			mutate:  func(c *coupon.Coupon) { c.Active = false },
			wantMsg: "inactive",
		},
		{
			name:    "expired",
			mutate:  func(c *coupon.Coupon) { c.ExpiresAt = &past },
			wantMsg: "expired",
		},
		{
			name: "limit reached",
			mutate: func(c *coupon.Coupon) {
				c.MaxRedemptions = 1
				c.TimesRedeemed = 1
			},
			wantMsg: "redemption limit",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := storedCartWise(7, "100", "10")
			tt.mutate(c)
			mux := newTestMux(newMockRepo(c))

			w := doRequest(t, mux, http.MethodPost, "/api/apply-coupon/7",
				`{"cart": {"items": [{"product_id": 1, "quantity": 2, "price": 100}]}}`)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			resp := decodeBody[errorResponse](t, w)
			assert.Contains(t, resp.Message, tt.wantMsg)
		})
	}
}

func TestApplyCoupon_ExactDecimalPrices(t *testing.T) {
	// 3 * 0.10 at 10% must produce 0.03, which a float64 price pipeline
	// would miss (0.30000000000000004 * 0.1 rounds differently).
	repo := newMockRepo(storedCartWise(7, "0.01", "10"))
	mux := newTestMux(repo)

	w := doRequest(t, mux, http.MethodPost, "/api/apply-coupon/7",
		`{"cart": {"items": [{"product_id": 1, "quantity": 3, "price": 0.10}]}}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[applyCouponResponse](t, w)
	assert.InDelta(t, 0.30, resp.UpdatedCart.TotalPrice, 1e-9)
	assert.InDelta(t, 0.03, resp.UpdatedCart.TotalDiscount, 1e-9)
	assert.InDelta(t, 0.27, resp.UpdatedCart.FinalPrice, 1e-9)
}
