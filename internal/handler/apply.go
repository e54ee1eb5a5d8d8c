package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xenking/promokart/internal/domain/cart"
)

// cartEnvelopeRequest accepts either a wrapped {"cart": {...}} body or a
// bare cart object.
type cartEnvelopeRequest struct {
	Cart  *cartRequest      `json:"cart"`
	Items []cartItemRequest `json:"items"`
}

func (req cartEnvelopeRequest) toCart() (cart.Cart, error) {
	if req.Cart != nil {
		return req.Cart.toCart()
	}
	return cartRequest{Items: req.Items}.toCart()
}

func (h *Handler) applicableCoupons(w http.ResponseWriter, r *http.Request) {
	var req cartEnvelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	k, err := req.toCart()
	if err != nil {
		respondError(w, r, err)
		return
	}

	applicable, err := h.svc.ListApplicable(r.Context(), k)
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]applicableCouponResponse, len(applicable))
	for i, a := range applicable {
		out[i] = applicableCouponResponse{
			CouponID: a.CouponID,
			Type:     string(a.Type),
			Discount: a.Discount.InexactFloat64(),
		}
	}
	respondJSON(w, http.StatusOK, applicableCouponsResponse{ApplicableCoupons: out})
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := couponID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req cartEnvelopeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	k, err := req.toCart()
	if err != nil {
		respondError(w, r, err)
		return
	}

	updated, err := h.svc.Apply(r.Context(), id, k)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, applyCouponResponse{UpdatedCart: toUpdatedCartResponse(updated)})
}
