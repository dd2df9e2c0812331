package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/velora/checkout/internal/domain/order"
)

type orderItemResponse struct {
	ProductName string  `json:"productName"`
	ProductRef  string  `json:"productRef,omitempty"`
	UnitPrice   float64 `json:"unitPrice"`
	Quantity    int     `json:"quantity"`
	Subtotal    float64 `json:"subtotal"`
}

type addressResponse struct {
	Name     string `json:"name,omitempty"`
	Line1    string `json:"line1,omitempty"`
	City     string `json:"city,omitempty"`
	Postcode string `json:"postcode,omitempty"`
	Country  string `json:"country,omitempty"`
}

type orderResponse struct {
	ID        string              `json:"id"`
	Token     string              `json:"token"`
	Total     float64             `json:"total"`
	Status    string              `json:"status"`
	Email     string              `json:"email,omitempty"`
	CreatedAt string              `json:"createdAt,omitempty"`
	VoucherID string              `json:"voucherId,omitempty"`
	Discount  int                 `json:"discount,omitempty"`
	Billing   addressResponse     `json:"billing"`
	Shipping  addressResponse     `json:"shipping"`
	Items     []orderItemResponse `json:"items"`
}

func orderToResponse(o *order.Order) orderResponse {
	resp := orderResponse{
		ID:        o.ID,
		Token:     o.Token,
		Total:     o.Total.InexactFloat64(),
		Status:    string(o.Status),
		Email:     o.Email,
		VoucherID: o.VoucherID,
		Discount:  o.Discount,
		Billing:   addressToResponse(o.Billing),
		Shipping:  addressToResponse(o.Shipping),
		Items:     make([]orderItemResponse, 0, len(o.Items)),
	}
	if !o.CreatedAt.IsZero() {
		resp.CreatedAt = o.CreatedAt.Format(time.RFC3339)
	}
	for _, it := range o.Items {
		resp.Items = append(resp.Items, orderItemResponse{
			ProductName: it.ProductName,
			ProductRef:  it.ProductRef,
			UnitPrice:   it.UnitPrice.InexactFloat64(),
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal().InexactFloat64(),
		})
	}
	return resp
}

func addressToResponse(a order.Address) addressResponse {
	return addressResponse{
		Name:     a.Name,
		Line1:    a.Line1,
		City:     a.City,
		Postcode: a.Postcode,
		Country:  a.Country,
	}
}

// OrderHistory handles GET /api/orders, newest first.
func (h *Handler) OrderHistory(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in to view orders")
		return
	}

	list, err := h.orders.History(r.Context(), user.ID, user.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(list))
	for i := range list {
		resp = append(resp, orderToResponse(&list[i]))
	}
	writeJSON(w, http.StatusOK, resp)
}

// OrderDetail handles GET /api/orders/{id}.
func (h *Handler) OrderDetail(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in to view orders")
		return
	}

	o, err := h.orders.Detail(r.Context(), chi.URLParam(r, "id"), user.ID, user.Email)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// OrderCancel handles POST /api/orders/{id}/cancel.
func (h *Handler) OrderCancel(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	if user == nil {
		writeError(w, http.StatusUnauthorized, "sign in to manage orders")
		return
	}

	if err := h.orders.Cancel(r.Context(), chi.URLParam(r, "id"), user.ID, user.Email); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}
