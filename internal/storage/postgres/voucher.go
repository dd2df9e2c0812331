package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/voucher"
)

const (
	getVoucherByIDSQL = `SELECT id, code, discount, active FROM vouchers WHERE id = $1`

	findVoucherByCodeSQL = `SELECT id, code, discount, active FROM vouchers
		WHERE UPPER(code) = UPPER($1)`

	deactivateVoucherSQL = `UPDATE vouchers SET active = FALSE WHERE id = $1`
)

var _ voucher.Repository = (*VoucherRepository)(nil)

// VoucherRepository implements voucher.Repository backed by PostgreSQL.
type VoucherRepository struct {
	pool *pgxpool.Pool
}

// NewVoucherRepository returns a VoucherRepository that uses the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// GetByID returns the voucher with the given id regardless of active flag.
// Returns voucher.ErrNotFound when absent.
func (r *VoucherRepository) GetByID(ctx context.Context, id string) (*voucher.Voucher, error) {
	var v voucher.Voucher
	err := r.pool.QueryRow(ctx, getVoucherByIDSQL, id).Scan(&v.ID, &v.Code, &v.Discount, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("getting voucher %q: %w", id, err)
	}
	return &v, nil
}

// FindByCode looks up a voucher by its code, case-insensitively.
func (r *VoucherRepository) FindByCode(ctx context.Context, code string) (*voucher.Voucher, error) {
	var v voucher.Voucher
	err := r.pool.QueryRow(ctx, findVoucherByCodeSQL, code).Scan(&v.ID, &v.Code, &v.Discount, &v.Active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, voucher.ErrNotFound
		}
		return nil, fmt.Errorf("finding voucher by code %q: %w", code, err)
	}
	return &v, nil
}

// Deactivate clears the active flag. Idempotent; deactivating an unknown id
// is a no-op.
func (r *VoucherRepository) Deactivate(ctx context.Context, id string) error {
	if _, err := r.pool.Exec(ctx, deactivateVoucherSQL, id); err != nil {
		return fmt.Errorf("deactivating voucher %q: %w", id, err)
	}
	return nil
}
