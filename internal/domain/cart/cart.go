package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when no cart exists for the given token.
var ErrNotFound = errors.New("cart not found")

// ErrEmpty is returned when an operation requires a non-empty cart.
var ErrEmpty = errors.New("cart is empty")

// Cart is the mutable collection of purchase lines bound to a visitor.
// The token is opaque and session-scoped; exactly one live cart exists per
// token. A voucher applied to the cart is stored on the cart row so checkout
// can find it without process-wide session state.
type Cart struct {
	Token     string
	VoucherID string
	CreatedAt time.Time
}

// Item is a purchase line keyed by (cart, product, size). Quantity is always
// at least 1; decrementing a quantity-1 line deletes it.
type Item struct {
	ProductID string
	SizeID    string
	Quantity  int
	Active    bool
}

// Repository provides cart persistence. Item mutations are serialized per
// (cart, product, size) key in the store, so concurrent double-click adds
// cannot lose updates.
type Repository interface {
	GetByToken(ctx context.Context, token string) (*Cart, error)
	// GetOrCreate returns the live cart for the token, creating it lazily.
	GetOrCreate(ctx context.Context, token string) (*Cart, error)
	ListItems(ctx context.Context, token string) ([]Item, error)
	// AddItem increments the (product, size) line, creating it at quantity 1.
	AddItem(ctx context.Context, token, productID, sizeID string) error
	// DecrementItem decrements the line, deleting it when it reaches zero.
	DecrementItem(ctx context.Context, token, productID, sizeID string) error
	// RemoveLine deletes the line outright.
	RemoveLine(ctx context.Context, token, productID, sizeID string) error
	SetVoucher(ctx context.Context, token, voucherID string) error
	ClearVoucher(ctx context.Context, token string) error
	// Empty deletes all items and the cart row itself.
	Empty(ctx context.Context, token string) error
}
