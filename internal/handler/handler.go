// Package handler exposes the storefront checkout API over HTTP. It maps
// JSON requests to domain calls and domain errors back to structured error
// responses; no business logic lives here.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/velora/checkout/internal/domain/cart"
	"github.com/velora/checkout/internal/domain/checkout"
	"github.com/velora/checkout/internal/domain/order"
	"github.com/velora/checkout/internal/domain/product"
	"github.com/velora/checkout/internal/domain/voucher"
	"github.com/velora/checkout/internal/gateway"
)

// Identity headers populated by the storefront's auth proxy. The cart token
// is minted client-side and opaque to this service.
const (
	headerCartToken = "X-Cart-Token"
	headerUserID    = "X-User-ID"
	headerUserEmail = "X-User-Email"
	headerUserName  = "X-User-Name"
)

// Config holds non-dependency handler settings.
type Config struct {
	// SuccessURL and CancelURL are the absolute URLs the payment gateway
	// redirects back to.
	SuccessURL string
	CancelURL  string
}

// Handler serves the checkout API.
type Handler struct {
	cfg      Config
	carts    *cart.Service
	cartRepo cart.Repository
	vouchers *voucher.Registry
	orch     *checkout.Orchestrator
	orders   *order.Service
}

// New constructs a Handler with the required domain dependencies.
func New(
	cfg Config,
	carts *cart.Service,
	cartRepo cart.Repository,
	vouchers *voucher.Registry,
	orch *checkout.Orchestrator,
	orders *order.Service,
) *Handler {
	return &Handler{
		cfg:      cfg,
		carts:    carts,
		cartRepo: cartRepo,
		vouchers: vouchers,
		orch:     orch,
		orders:   orders,
	}
}

// Routes mounts the API-key protected endpoints on the given router. The
// gateway redirect endpoints (CheckoutReturn, CheckoutCancel) are mounted
// separately because the processor sends no API key.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.CartView)
		r.Delete("/", h.CartEmpty)
		r.Post("/items", h.CartAdd)
		r.Delete("/items", h.CartRemove)
		r.Delete("/items/line", h.CartRemoveLine)
		r.Post("/voucher", h.CartApplyVoucher)
	})
	r.Post("/checkout", h.CheckoutBegin)
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.OrderHistory)
		r.Get("/{id}", h.OrderDetail)
		r.Post("/{id}/cancel", h.OrderCancel)
	})
}

// userFrom builds the authenticated identity from proxy headers. A request
// without X-User-ID is a guest.
func userFrom(r *http.Request) *checkout.User {
	id := r.Header.Get(headerUserID)
	if id == "" {
		return nil
	}
	return &checkout.User{
		ID:    id,
		Email: r.Header.Get(headerUserEmail),
		Name:  r.Header.Get(headerUserName),
	}
}

func cartToken(r *http.Request) string {
	return r.Header.Get(headerCartToken)
}

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Code: status, Message: msg})
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decode request body")
	}
	return nil
}

// writeDomainError maps domain errors to HTTP responses. Unknown errors are
// logged and returned as an opaque 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var matErr *checkout.MaterializationError
	if errors.As(err, &matErr) {
		// Money moved but the order did not persist. Support reconciles off
		// the session id; the client must not retry the payment.
		writeError(w, http.StatusInternalServerError, "payment received, order pending; contact support with your session id")
		return
	}

	switch {
	case errors.Is(err, cart.ErrEmpty):
		writeError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, cart.ErrNotFound):
		writeError(w, http.StatusNotFound, "cart not found")
	case errors.Is(err, product.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "unknown product")
	case errors.Is(err, product.ErrSizeNotFound):
		writeError(w, http.StatusUnprocessableEntity, "unknown size")
	case errors.Is(err, voucher.ErrNotFound):
		writeError(w, http.StatusUnprocessableEntity, "invalid voucher code")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrAlreadyCancelled):
		writeError(w, http.StatusConflict, "order already cancelled")
	case errors.Is(err, checkout.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "sign in to redeem points")
	case errors.Is(err, checkout.ErrPaymentUnconfirmed):
		writeError(w, http.StatusPaymentRequired, "payment not confirmed")
	case errors.Is(err, gateway.ErrUnavailable):
		writeError(w, http.StatusBadGateway, "payment provider unavailable, nothing was charged")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
