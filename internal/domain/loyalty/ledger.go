package loyalty

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Ledger exposes the two mutations a loyalty balance supports: redeem (debit)
// and award (credit). Atomicity per account is delegated to the Repository.
type Ledger struct {
	repo Repository
}

// NewLedger creates a Ledger backed by the given Repository.
func NewLedger(repo Repository) *Ledger {
	return &Ledger{repo: repo}
}

// GetOrCreate returns the user's account, creating it on first touch.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*Account, error) {
	acc, err := l.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get or create account")
	}
	return acc, nil
}

// Redeem debits the points owed for the given currency discount and returns
// the number of points actually debited.
//
// The debit clamps at zero: a request exceeding the balance partially
// succeeds and leaves the balance at zero rather than failing. That is the
// storefront's long-standing behavior and callers rely on it.
func (l *Ledger) Redeem(ctx context.Context, userID string, discount decimal.Decimal) (int, error) {
	points := DebitForDiscount(discount)
	if points == 0 {
		return 0, nil
	}
	debited, err := l.repo.Debit(ctx, userID, points)
	if err != nil {
		return 0, errors.Wrap(err, "debit points")
	}
	return debited, nil
}

// Award credits points to the user's account. points must be non-negative.
func (l *Ledger) Award(ctx context.Context, userID string, points int) error {
	if points < 0 {
		return ErrInvalidAmount
	}
	if points == 0 {
		return nil
	}
	if err := l.repo.Credit(ctx, userID, points); err != nil {
		return errors.Wrap(err, "credit points")
	}
	return nil
}
