package loyalty

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInvalidAmount is returned when an award is requested with a negative
// point count.
var ErrInvalidAmount = errors.New("invalid point amount")

// Account holds a user's loyalty point balance. Balances are non-negative at
// rest; all debits clamp at zero. Accounts are created on first touch and
// never deleted.
type Account struct {
	UserID string
	Points int
}

// Repository provides persistence for loyalty accounts. Debit and Credit must
// be atomic per account: two concurrent mutations of the same account must
// not compute against a stale balance.
type Repository interface {
	// GetOrCreate returns the account for the user, creating an empty one
	// if none exists. Idempotent.
	GetOrCreate(ctx context.Context, userID string) (*Account, error)
	// Debit removes up to points from the balance, clamping at zero, and
	// returns the number of points actually removed.
	Debit(ctx context.Context, userID string, points int) (int, error)
	// Credit adds points to the balance.
	Credit(ctx context.Context, userID string, points int) error
}
