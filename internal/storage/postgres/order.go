package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/velora/checkout/internal/domain/checkout"
	"github.com/velora/checkout/internal/domain/order"
)

const (
	orderColumns = `id, user_id, token, total, email,
		billing_name, billing_line1, billing_city, billing_postcode, billing_country,
		shipping_name, shipping_line1, shipping_city, shipping_postcode, shipping_country,
		voucher_id, discount, status, created_at`

	insertOrderSQL = `INSERT INTO orders (id, user_id, token, total, email,
		billing_name, billing_line1, billing_city, billing_postcode, billing_country,
		shipping_name, shipping_line1, shipping_city, shipping_postcode, shipping_country,
		status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

	insertOrderItemSQL = `INSERT INTO order_items
		(id, order_id, product_name, product_ref, unit_price, quantity)
		VALUES ($1, $2, $3, $4, $5, $6)`

	// Stock never goes below zero, even when the purchased quantity
	// exceeds what is on hand.
	decrementStockSQL = `UPDATE products SET stock = GREATEST(stock - $2, 0) WHERE id = $1`

	deleteActiveCartItemsSQL = `DELETE FROM cart_items WHERE cart_token = $1 AND active = TRUE`

	deleteCartIfEmptySQL = `DELETE FROM carts WHERE token = $1
		AND NOT EXISTS (SELECT 1 FROM cart_items WHERE cart_token = $1)`

	getOrderForUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE id = $1 AND (($2 <> '' AND user_id = $2) OR ($3 <> '' AND LOWER(email) = LOWER($3)))`

	listOrdersForUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE ($1 <> '' AND user_id = $1) OR ($2 <> '' AND LOWER(email) = LOWER($2))
		ORDER BY created_at DESC`

	getOrderByTokenSQL = `SELECT ` + orderColumns + ` FROM orders WHERE token = $1`

	listOrderItemsSQL = `SELECT order_id, id, product_name, COALESCE(product_ref, ''), unit_price, quantity
		FROM order_items WHERE order_id = ANY($1) ORDER BY id`

	attachVoucherSQL = `UPDATE orders SET voucher_id = $2, discount = $3 WHERE id = $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

var (
	_ order.Repository      = (*OrderRepository)(nil)
	_ checkout.Materializer = (*OrderRepository)(nil)
)

// querier is the subset of pgxpool.Pool the repository needs. Tests swap in
// a fake to exercise the materialization transaction.
type querier interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OrderRepository implements order persistence and the checkout materializer
// backed by PostgreSQL.
type OrderRepository struct {
	pool querier
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Materialize persists the order, snapshots its items, decrements stock
// (clamped at zero), and clears the consumed cart rows, all in a single
// transaction. A replay on an existing order token returns
// checkout.ErrAlreadyMaterialized without touching anything: the unique
// constraint fires on the first insert, before any other mutation.
func (r *OrderRepository) Materialize(ctx context.Context, o *order.Order, cartToken string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin materialize: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.Token, o.Total, o.Email,
		o.Billing.Name, o.Billing.Line1, o.Billing.City, o.Billing.Postcode, o.Billing.Country,
		o.Shipping.Name, o.Shipping.Line1, o.Shipping.City, o.Shipping.Postcode, o.Shipping.Country,
		string(o.Status),
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return checkout.ErrAlreadyMaterialized
		}
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		if it.ID == "" {
			it.ID = uuid.New().String()
		}
		var ref *string
		if it.ProductRef != "" {
			ref = &it.ProductRef
		}
		_, err = tx.Exec(ctx, insertOrderItemSQL,
			it.ID, o.ID, it.ProductName, ref, it.UnitPrice, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("inserting order item %q: %w", it.ProductName, err)
		}
		if ref != nil {
			if _, err := tx.Exec(ctx, decrementStockSQL, it.ProductRef, it.Quantity); err != nil {
				return fmt.Errorf("decrementing stock for %q: %w", it.ProductRef, err)
			}
		}
	}

	if _, err := tx.Exec(ctx, deleteActiveCartItemsSQL, cartToken); err != nil {
		return fmt.Errorf("clearing cart items: %w", err)
	}
	if _, err := tx.Exec(ctx, deleteCartIfEmptySQL, cartToken); err != nil {
		return fmt.Errorf("deleting empty cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit materialize: %w", err)
	}
	return nil
}

// GetForUser returns the order with its items when it belongs to the user.
func (r *OrderRepository) GetForUser(ctx context.Context, id, userID, email string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderForUserSQL, id, userID, email)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	if err := r.loadItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// ListForUser returns the user's orders newest-first, items included.
func (r *OrderRepository) ListForUser(ctx context.Context, userID, email string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersForUserSQL, userID, email)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	list, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}

	refs := make([]*order.Order, len(list))
	for i := range list {
		refs[i] = &list[i]
	}
	if err := r.loadItems(ctx, refs); err != nil {
		return nil, err
	}
	return list, nil
}

// FindByToken returns the order correlated to a gateway session id.
func (r *OrderRepository) FindByToken(ctx context.Context, token string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderByTokenSQL, token)
	if err != nil {
		return nil, fmt.Errorf("finding order by token: %w", err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("finding order by token: %w", err)
	}
	if err := r.loadItems(ctx, []*order.Order{&o}); err != nil {
		return nil, err
	}
	return &o, nil
}

// AttachVoucher records the one-time voucher annotation.
func (r *OrderRepository) AttachVoucher(ctx context.Context, orderID, voucherID string, discount int) error {
	if _, err := r.pool.Exec(ctx, attachVoucherSQL, orderID, voucherID, discount); err != nil {
		return fmt.Errorf("attaching voucher to order %q: %w", orderID, err)
	}
	return nil
}

// UpdateStatus sets the order status.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	if _, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status)); err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	return nil
}

// loadItems fetches items for all given orders in one query.
func (r *OrderRepository) loadItems(ctx context.Context, orders []*order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	byID := make(map[string]*order.Order, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		byID[o.ID] = o
	}

	rows, err := r.pool.Query(ctx, listOrderItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			orderID string
			it      order.Item
		)
		if err := rows.Scan(&orderID, &it.ID, &it.ProductName, &it.ProductRef, &it.UnitPrice, &it.Quantity); err != nil {
			return fmt.Errorf("scanning order item: %w", err)
		}
		if o, ok := byID[orderID]; ok {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o      order.Order
		status string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.Token, &o.Total, &o.Email,
		&o.Billing.Name, &o.Billing.Line1, &o.Billing.City, &o.Billing.Postcode, &o.Billing.Country,
		&o.Shipping.Name, &o.Shipping.Line1, &o.Shipping.City, &o.Shipping.Postcode, &o.Shipping.Country,
		&o.VoucherID, &o.Discount, &status, &o.CreatedAt,
	)
	o.Status = order.Status(status)
	return o, err
}
