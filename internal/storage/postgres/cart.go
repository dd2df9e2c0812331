package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/cart"
)

const (
	getCartSQL    = `SELECT token, COALESCE(voucher_id, ''), created_at FROM carts WHERE token = $1`
	insertCartSQL = `INSERT INTO carts (token) VALUES ($1) ON CONFLICT (token) DO NOTHING`

	listCartItemsSQL = `SELECT product_id, size_id, quantity, active
		FROM cart_items WHERE cart_token = $1 AND active = TRUE
		ORDER BY product_id, size_id`

	// One statement per add: the conflict target serializes concurrent
	// adds on the same (cart, product, size) key, so a double-click cannot
	// lose an increment.
	addCartItemSQL = `INSERT INTO cart_items (cart_token, product_id, size_id, quantity)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (cart_token, product_id, size_id)
		DO UPDATE SET quantity = cart_items.quantity + 1`

	lockCartItemSQL = `SELECT quantity FROM cart_items
		WHERE cart_token = $1 AND product_id = $2 AND size_id = $3 FOR UPDATE`

	decrementCartItemSQL = `UPDATE cart_items SET quantity = quantity - 1
		WHERE cart_token = $1 AND product_id = $2 AND size_id = $3`

	deleteCartItemSQL = `DELETE FROM cart_items
		WHERE cart_token = $1 AND product_id = $2 AND size_id = $3`

	setCartVoucherSQL   = `UPDATE carts SET voucher_id = $2 WHERE token = $1`
	clearCartVoucherSQL = `UPDATE carts SET voucher_id = NULL WHERE token = $1`

	deleteCartItemsSQL = `DELETE FROM cart_items WHERE cart_token = $1`
	deleteCartSQL      = `DELETE FROM carts WHERE token = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetByToken returns the live cart for the token, or cart.ErrNotFound.
func (r *CartRepository) GetByToken(ctx context.Context, token string) (*cart.Cart, error) {
	var c cart.Cart
	err := r.pool.QueryRow(ctx, getCartSQL, token).Scan(&c.Token, &c.VoucherID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", token, err)
	}
	return &c, nil
}

// GetOrCreate returns the cart for the token, creating it lazily.
func (r *CartRepository) GetOrCreate(ctx context.Context, token string) (*cart.Cart, error) {
	if _, err := r.pool.Exec(ctx, insertCartSQL, token); err != nil {
		return nil, fmt.Errorf("creating cart %q: %w", token, err)
	}
	return r.GetByToken(ctx, token)
}

// ListItems returns the cart's active items in stable order.
func (r *CartRepository) ListItems(ctx context.Context, token string) ([]cart.Item, error) {
	rows, err := r.pool.Query(ctx, listCartItemsSQL, token)
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Item, error) {
		var it cart.Item
		err := row.Scan(&it.ProductID, &it.SizeID, &it.Quantity, &it.Active)
		return it, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing cart items: %w", err)
	}
	return items, nil
}

// AddItem increments the (product, size) line, creating it at quantity 1.
func (r *CartRepository) AddItem(ctx context.Context, token, productID, sizeID string) error {
	if _, err := r.pool.Exec(ctx, addCartItemSQL, token, productID, sizeID); err != nil {
		return fmt.Errorf("adding cart item: %w", err)
	}
	return nil
}

// DecrementItem decrements the line under a row lock, deleting it when the
// last unit goes. Returns cart.ErrNotFound when the line does not exist.
func (r *CartRepository) DecrementItem(ctx context.Context, token, productID, sizeID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin decrement: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var qty int
	err = tx.QueryRow(ctx, lockCartItemSQL, token, productID, sizeID).Scan(&qty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return cart.ErrNotFound
		}
		return fmt.Errorf("locking cart item: %w", err)
	}

	stmt := deleteCartItemSQL
	if qty > 1 {
		stmt = decrementCartItemSQL
	}
	if _, err := tx.Exec(ctx, stmt, token, productID, sizeID); err != nil {
		return fmt.Errorf("decrementing cart item: %w", err)
	}
	return tx.Commit(ctx)
}

// RemoveLine deletes the whole line. Missing lines return cart.ErrNotFound.
func (r *CartRepository) RemoveLine(ctx context.Context, token, productID, sizeID string) error {
	tag, err := r.pool.Exec(ctx, deleteCartItemSQL, token, productID, sizeID)
	if err != nil {
		return fmt.Errorf("removing cart line: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// SetVoucher stores the applied voucher on the cart row.
func (r *CartRepository) SetVoucher(ctx context.Context, token, voucherID string) error {
	tag, err := r.pool.Exec(ctx, setCartVoucherSQL, token, voucherID)
	if err != nil {
		return fmt.Errorf("setting cart voucher: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return nil
}

// ClearVoucher removes the stored voucher reference.
func (r *CartRepository) ClearVoucher(ctx context.Context, token string) error {
	if _, err := r.pool.Exec(ctx, clearCartVoucherSQL, token); err != nil {
		return fmt.Errorf("clearing cart voucher: %w", err)
	}
	return nil
}

// Empty deletes the cart's items and the cart row in one transaction.
// Returns cart.ErrNotFound when no cart exists for the token.
func (r *CartRepository) Empty(ctx context.Context, token string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin empty: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, deleteCartItemsSQL, token); err != nil {
		return fmt.Errorf("deleting cart items: %w", err)
	}
	tag, err := tx.Exec(ctx, deleteCartSQL, token)
	if err != nil {
		return fmt.Errorf("deleting cart: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrNotFound
	}
	return tx.Commit(ctx)
}
