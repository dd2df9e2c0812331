package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/loyalty"
)

const (
	insertAccountSQL = `INSERT INTO loyalty_accounts (user_id, points)
		VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`

	getAccountSQL = `SELECT user_id, points FROM loyalty_accounts WHERE user_id = $1`

	// The FOR UPDATE in the CTE serializes concurrent debits per account;
	// the GREATEST clamp keeps the balance non-negative at rest. The
	// statement returns the points actually removed.
	debitAccountSQL = `WITH cur AS (
			SELECT user_id, points FROM loyalty_accounts
			WHERE user_id = $1 FOR UPDATE
		)
		UPDATE loyalty_accounts la
		SET points = GREATEST(la.points - $2, 0)
		FROM cur WHERE la.user_id = cur.user_id
		RETURNING LEAST(cur.points, $2)`

	creditAccountSQL = `INSERT INTO loyalty_accounts (user_id, points)
		VALUES ($1, $2)
		ON CONFLICT (user_id)
		DO UPDATE SET points = loyalty_accounts.points + EXCLUDED.points`
)

var _ loyalty.Repository = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Repository backed by PostgreSQL.
// Per-account atomicity comes from single-statement updates with row locks.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// GetOrCreate returns the account for the user, creating an empty one on
// first touch.
func (r *LoyaltyRepository) GetOrCreate(ctx context.Context, userID string) (*loyalty.Account, error) {
	if _, err := r.pool.Exec(ctx, insertAccountSQL, userID); err != nil {
		return nil, fmt.Errorf("creating loyalty account: %w", err)
	}
	var acc loyalty.Account
	err := r.pool.QueryRow(ctx, getAccountSQL, userID).Scan(&acc.UserID, &acc.Points)
	if err != nil {
		return nil, fmt.Errorf("getting loyalty account: %w", err)
	}
	return &acc, nil
}

// Debit removes up to points from the balance, clamping at zero, and returns
// the points actually removed. A missing account debits nothing.
func (r *LoyaltyRepository) Debit(ctx context.Context, userID string, points int) (int, error) {
	var debited int
	err := r.pool.QueryRow(ctx, debitAccountSQL, userID, points).Scan(&debited)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("debiting loyalty account: %w", err)
	}
	return debited, nil
}

// Credit adds points to the balance, creating the account if needed.
func (r *LoyaltyRepository) Credit(ctx context.Context, userID string, points int) error {
	if _, err := r.pool.Exec(ctx, creditAccountSQL, userID, points); err != nil {
		return fmt.Errorf("crediting loyalty account: %w", err)
	}
	return nil
}
