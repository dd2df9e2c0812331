package voucher

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrNotFound is returned when a voucher id or code does not resolve to an
// active voucher. Deactivating a voucher does not affect orders that already
// reference it.
var ErrNotFound = errors.New("voucher not found")

// Voucher is a percentage discount code. Discount is an integer percent in
// [0,100].
type Voucher struct {
	ID       string
	Code     string
	Discount int
	Active   bool
}

// Repository provides lookup and deactivation of vouchers.
type Repository interface {
	// GetByID returns the voucher with the given id regardless of its
	// active flag; callers decide whether inactive vouchers are acceptable.
	GetByID(ctx context.Context, id string) (*Voucher, error)
	// FindByCode looks up a voucher by its user-facing code.
	FindByCode(ctx context.Context, code string) (*Voucher, error)
	// Deactivate clears the active flag. Idempotent.
	Deactivate(ctx context.Context, id string) error
}
