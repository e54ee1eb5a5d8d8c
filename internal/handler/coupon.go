package handler

import (
	"encoding/json"
	"net/http"

	"github.com/xenking/promokart/internal/domain/coupon"
)

func (h *Handler) createCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Type == "" {
		respondErrorMessage(w, http.StatusBadRequest, "type is required")
		return
	}
	if len(req.Details) == 0 {
		respondErrorMessage(w, http.StatusBadRequest, "details is required")
		return
	}
	if req.MaxRedemptions != nil && *req.MaxRedemptions < 1 {
		respondErrorMessage(w, http.StatusBadRequest, "max_redemptions must be at least 1")
		return
	}

	params := coupon.CreateParams{
		Type:       coupon.Type(req.Type),
		DetailsRaw: req.Details,
		Active:     req.IsActive,
		ExpiresAt:  req.ExpiresAt,
	}
	if req.MaxRedemptions != nil {
		params.MaxRedemptions = *req.MaxRedemptions
	}

	c, err := h.svc.Create(r.Context(), params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := toCouponResponse(c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, resp)
}

func (h *Handler) listCoupons(w http.ResponseWriter, r *http.Request) {
	coupons, err := h.svc.List(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]couponResponse, len(coupons))
	for i := range coupons {
		resp, err := toCouponResponse(&coupons[i])
		if err != nil {
			respondError(w, r, err)
			return
		}
		out[i] = resp
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) getCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := couponID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	c, err := h.svc.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := toCouponResponse(c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) updateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := couponID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	var req couponUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondErrorMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.MaxRedemptions != nil && *req.MaxRedemptions < 1 {
		respondErrorMessage(w, http.StatusBadRequest, "max_redemptions must be at least 1")
		return
	}

	params := coupon.UpdateParams{
		DetailsRaw:     req.Details,
		Active:         req.IsActive,
		ExpiresAt:      req.ExpiresAt,
		MaxRedemptions: req.MaxRedemptions,
	}
	if req.Type != nil {
		t := coupon.Type(*req.Type)
		params.Type = &t
	}

	c, err := h.svc.Update(r.Context(), id, params)
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp, err := toCouponResponse(c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) deleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := couponID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
