package handler

import (
	"net/http"

	"github.com/velora/checkout/internal/domain/checkout"
)

type checkoutRequest struct {
	// Points is the number of loyalty points the user wants to redeem.
	Points int `json:"points"`
}

type quoteResponse struct {
	CartTotal       string `json:"cartTotal"`
	VoucherDiscount string `json:"voucherDiscount"`
	PointsDiscount  string `json:"pointsDiscount"`
	FinalTotal      string `json:"finalTotal"`
	PointsDebited   int    `json:"pointsDebited"`
	CashbackPoints  int    `json:"cashbackPoints"`
}

type checkoutResponse struct {
	SessionID   string        `json:"sessionId"`
	RedirectURL string        `json:"redirectUrl"`
	Quote       quoteResponse `json:"quote"`
}

// CheckoutBegin handles POST /api/checkout: price the cart, reserve the
// point discount, and create the hosted payment session the visitor is
// redirected to.
func (h *Handler) CheckoutBegin(w http.ResponseWriter, r *http.Request) {
	token := cartToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing cart token")
		return
	}

	var req checkoutRequest
	if r.ContentLength > 0 {
		if err := decode(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "malformed request body")
			return
		}
	}
	if req.Points < 0 {
		writeError(w, http.StatusBadRequest, "points must not be negative")
		return
	}

	res, err := h.orch.Begin(r.Context(), checkout.BeginRequest{
		CartToken:       token,
		RequestedPoints: req.Points,
		User:            userFrom(r),
		SuccessURL:      h.cfg.SuccessURL,
		CancelURL:       h.cfg.CancelURL,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, checkoutResponse{
		SessionID:   res.Session.ID,
		RedirectURL: res.Session.RedirectURL,
		Quote: quoteResponse{
			CartTotal:       res.Quote.CartTotal.StringFixed(2),
			VoucherDiscount: res.Quote.VoucherDiscount.StringFixed(2),
			PointsDiscount:  res.Quote.PointsDiscount.StringFixed(2),
			FinalTotal:      res.Quote.FinalTotal.StringFixed(2),
			PointsDebited:   res.PointsDebited,
			CashbackPoints:  res.Quote.CashbackPoints,
		},
	})
}

// CheckoutReturn handles GET /api/checkout/return, the gateway success
// redirect. It verifies the payment and materializes the order; replays
// return the existing order.
func (h *Handler) CheckoutReturn(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		writeError(w, http.StatusBadRequest, "missing session_id")
		return
	}

	ord, err := h.orch.OnReturn(r.Context(), checkout.ReturnRequest{
		SessionID: sessionID,
		VoucherID: q.Get("voucher_id"),
		CartToken: cartToken(r),
		User:      userFrom(r),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(ord))
}

// CheckoutCancel handles GET /api/checkout/cancel, the gateway cancel
// redirect. The cart and any applied discounts are left untouched so the
// visitor can retry.
func (h *Handler) CheckoutCancel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
