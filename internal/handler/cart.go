package handler

import (
	"context"
	"net/http"
)

type cartLineResponse struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	SizeID    string  `json:"sizeId"`
	UnitPrice float64 `json:"unitPrice"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
	Thumbnail string  `json:"thumbnail,omitempty"`
}

type cartResponse struct {
	Items     []cartLineResponse `json:"items"`
	Total     float64            `json:"total"`
	VoucherID string             `json:"voucherId,omitempty"`
}

// CartView handles GET /api/cart.
func (h *Handler) CartView(w http.ResponseWriter, r *http.Request) {
	token := cartToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing cart token")
		return
	}
	h.respondCart(w, r, token)
}

type cartItemRequest struct {
	ProductID string `json:"productId"`
	// Size accepts either a size id or a size name.
	Size string `json:"size"`
}

// CartAdd handles POST /api/cart/items, adding one unit.
func (h *Handler) CartAdd(w http.ResponseWriter, r *http.Request) {
	token := cartToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing cart token")
		return
	}

	var req cartItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.ProductID == "" || req.Size == "" {
		writeError(w, http.StatusBadRequest, "productId and size are required")
		return
	}

	if err := h.carts.Add(r.Context(), token, req.ProductID, req.Size); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, token)
}

// CartRemove handles DELETE /api/cart/items, removing one unit.
func (h *Handler) CartRemove(w http.ResponseWriter, r *http.Request) {
	h.removeWith(w, r, h.carts.Remove)
}

// CartRemoveLine handles DELETE /api/cart/items/line, removing the whole
// line regardless of quantity.
func (h *Handler) CartRemoveLine(w http.ResponseWriter, r *http.Request) {
	h.removeWith(w, r, h.carts.RemoveLine)
}

func (h *Handler) removeWith(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, token, productID, sizeID string) error) {
	token := cartToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing cart token")
		return
	}

	var req cartItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	if err := fn(r.Context(), token, req.ProductID, req.Size); err != nil {
		writeDomainError(w, r, err)
		return
	}
	h.respondCart(w, r, token)
}

// CartEmpty handles DELETE /api/cart. Emptying an absent cart succeeds.
func (h *Handler) CartEmpty(w http.ResponseWriter, r *http.Request) {
	token := cartToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing cart token")
		return
	}
	if err := h.carts.Empty(r.Context(), token); err != nil {
		writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type applyVoucherRequest struct {
	Code string `json:"code"`
}

type applyVoucherResponse struct {
	VoucherID string `json:"voucherId"`
	Discount  int    `json:"discount"`
}

// CartApplyVoucher handles POST /api/cart/voucher, resolving the code and
// storing the voucher on the cart for checkout to pick up.
func (h *Handler) CartApplyVoucher(w http.ResponseWriter, r *http.Request) {
	token := cartToken(r)
	if token == "" {
		writeError(w, http.StatusBadRequest, "missing cart token")
		return
	}

	var req applyVoucherRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	if req.Code == "" {
		writeError(w, http.StatusBadRequest, "code is required")
		return
	}

	v, err := h.vouchers.ResolveCode(r.Context(), req.Code)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	if _, err := h.cartRepo.GetOrCreate(r.Context(), token); err != nil {
		writeDomainError(w, r, err)
		return
	}
	if err := h.cartRepo.SetVoucher(r.Context(), token, v.ID); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, applyVoucherResponse{VoucherID: v.ID, Discount: v.Discount})
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request, token string) {
	view, err := h.carts.View(r.Context(), token)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	resp := cartResponse{
		Items: make([]cartLineResponse, 0, len(view.Lines)),
		Total: view.Total.InexactFloat64(),
	}
	if view.Cart != nil {
		resp.VoucherID = view.Cart.VoucherID
	}
	for _, line := range view.Lines {
		resp.Items = append(resp.Items, cartLineResponse{
			ProductID: line.Product.ID,
			Name:      line.Product.Name,
			SizeID:    line.SizeID,
			UnitPrice: line.Product.Price.InexactFloat64(),
			Quantity:  line.Quantity,
			Subtotal:  line.Subtotal.InexactFloat64(),
			Thumbnail: line.Product.Image.Thumbnail,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
