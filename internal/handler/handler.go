// Package handler exposes the coupon service over HTTP. Handlers are
// hand-written on net/http: they decode and validate request payloads,
// delegate to the domain service, and map domain errors to HTTP failures.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/promokart/internal/domain/cart"
	"github.com/xenking/promokart/internal/domain/coupon"
)

// Handler serves the coupon management and discount computation API.
type Handler struct {
	svc *coupon.Service
}

// NewHandler constructs a Handler around the coupon service.
func NewHandler(svc *coupon.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts all API routes on the given mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/coupons", h.createCoupon)
	mux.HandleFunc("GET /api/coupons", h.listCoupons)
	mux.HandleFunc("GET /api/coupons/{id}", h.getCoupon)
	mux.HandleFunc("PUT /api/coupons/{id}", h.updateCoupon)
	mux.HandleFunc("DELETE /api/coupons/{id}", h.deleteCoupon)
	mux.HandleFunc("POST /api/applicable-coupons", h.applicableCoupons)
	mux.HandleFunc("POST /api/apply-coupon/{id}", h.applyCoupon)
}

// couponID parses the {id} path segment. A non-numeric or non-positive id
// cannot name a coupon, so it is reported as not found.
func couponID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, coupon.ErrNotFound
	}
	return id, nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondErrorMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, errorResponse{Code: status, Message: msg})
}

// respondError maps a domain error to its HTTP failure. Anything outside the
// known taxonomy is an internal error: logged with its cause, reported
// without it.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		respondErrorMessage(w, http.StatusNotFound, "coupon not found")
		return
	case errors.Is(err, coupon.ErrInvalidDetails),
		errors.Is(err, coupon.ErrUnknownType),
		errors.Is(err, coupon.ErrInactive),
		errors.Is(err, coupon.ErrExpired),
		errors.Is(err, coupon.ErrRedemptionLimit),
		errors.Is(err, cart.ErrNoItems):
		respondErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	var invalidItem *cart.InvalidItemError
	var dup *cart.DuplicateProductError
	if errors.As(err, &invalidItem) || errors.As(err, &dup) {
		respondErrorMessage(w, http.StatusBadRequest, err.Error())
		return
	}

	zctx.From(r.Context()).Error("request failed", zap.Error(err))
	respondErrorMessage(w, http.StatusInternalServerError, "internal server error")
}
