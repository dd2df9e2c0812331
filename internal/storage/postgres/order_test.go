package postgres

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora/checkout/internal/domain/checkout"
	"github.com/velora/checkout/internal/domain/order"
)

// --- Fake transaction ---

// fakeDB simulates the slice of PostgreSQL the materialization transaction
// touches: the orders unique token constraint, product stock rows, and cart
// rows. Mutations stage in the transaction and reach the committed state
// only on Commit.
type fakeDB struct {
	stock        map[string]int
	tokens       map[string]bool
	clearedCarts []string

	// itemFailAt makes the nth order item insert fail (1-based, 0 = never).
	itemFailAt int

	lastTx *fakeTx
}

func newFakeDB(stock map[string]int) *fakeDB {
	return &fakeDB{stock: stock, tokens: make(map[string]bool)}
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	db.lastTx = &fakeTx{db: db, stagedStock: make(map[string]int)}
	return db.lastTx, nil
}

func (db *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	panic("unexpected Exec outside transaction: " + sql)
}

func (db *fakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("unexpected Query: " + sql)
}

func (db *fakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("unexpected QueryRow: " + sql)
}

type fakeTx struct {
	db *fakeDB

	stagedTokens []string
	stagedStock  map[string]int
	stagedCarts  []string
	itemInserts  int
	committed    bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	switch sql {
	case insertOrderSQL:
		token := args[2].(string)
		if tx.db.tokens[token] {
			return pgconn.CommandTag{}, &pgconn.PgError{Code: uniqueViolation}
		}
		tx.stagedTokens = append(tx.stagedTokens, token)
	case insertOrderItemSQL:
		tx.itemInserts++
		if tx.db.itemFailAt != 0 && tx.itemInserts == tx.db.itemFailAt {
			return pgconn.CommandTag{}, errors.New("connection reset")
		}
	case decrementStockSQL:
		id := args[0].(string)
		qty := args[1].(int)
		cur, ok := tx.stagedStock[id]
		if !ok {
			cur = tx.db.stock[id]
		}
		cur -= qty
		if cur < 0 {
			cur = 0
		}
		tx.stagedStock[id] = cur
	case deleteActiveCartItemsSQL, deleteCartIfEmptySQL:
		tx.stagedCarts = append(tx.stagedCarts, args[0].(string))
	default:
		panic("unexpected statement: " + sql)
	}
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	for _, t := range tx.stagedTokens {
		tx.db.tokens[t] = true
	}
	for id, s := range tx.stagedStock {
		tx.db.stock[id] = s
	}
	tx.db.clearedCarts = append(tx.db.clearedCarts, tx.stagedCarts...)
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if tx.committed {
		return pgx.ErrTxClosed
	}
	return nil
}

func (tx *fakeTx) Begin(ctx context.Context) (pgx.Tx, error) { panic("not implemented") }

func (tx *fakeTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	panic("not implemented")
}

func (tx *fakeTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults {
	panic("not implemented")
}

func (tx *fakeTx) LargeObjects() pgx.LargeObjects { panic("not implemented") }

func (tx *fakeTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	panic("not implemented")
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	panic("not implemented")
}

func (tx *fakeTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("not implemented")
}

func (tx *fakeTx) Conn() *pgx.Conn { panic("not implemented") }

// --- Tests ---

func testOrder(token string, items ...order.Item) *order.Order {
	return &order.Order{
		ID:     "ord-1",
		Token:  token,
		Total:  decimal.NewFromFloat(42.00),
		Status: order.StatusPaid,
		Items:  items,
	}
}

func TestOrderRepository_Materialize_ClampsStock(t *testing.T) {
	db := newFakeDB(map[string]int{"p1": 3, "p2": 10})
	repo := &OrderRepository{pool: db}

	ord := testOrder("sess_1",
		order.Item{ProductName: "Hoodie", ProductRef: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 5},
		order.Item{ProductName: "Cap", ProductRef: "p2", UnitPrice: decimal.NewFromInt(5), Quantity: 2},
		order.Item{ProductName: "Retired Tee", UnitPrice: decimal.NewFromInt(1), Quantity: 1},
	)

	err := repo.Materialize(context.Background(), ord, "cart-1")
	require.NoError(t, err)
	require.True(t, db.lastTx.committed)

	assert.Equal(t, 0, db.stock["p1"], "oversold stock clamps at zero")
	assert.Equal(t, 8, db.stock["p2"])
	assert.True(t, db.tokens["sess_1"])
	assert.Equal(t, []string{"cart-1", "cart-1"}, db.clearedCarts)
	assert.Equal(t, 3, db.lastTx.itemInserts, "items without a product ref still snapshot")
}

func TestOrderRepository_Materialize_Replay(t *testing.T) {
	db := newFakeDB(map[string]int{"p1": 3})
	db.tokens["sess_1"] = true
	repo := &OrderRepository{pool: db}

	ord := testOrder("sess_1",
		order.Item{ProductName: "Hoodie", ProductRef: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 1},
	)

	err := repo.Materialize(context.Background(), ord, "cart-1")
	require.ErrorIs(t, err, checkout.ErrAlreadyMaterialized)

	assert.False(t, db.lastTx.committed)
	assert.Equal(t, 3, db.stock["p1"], "replay touches nothing")
	assert.Empty(t, db.clearedCarts)
}

func TestOrderRepository_Materialize_AllOrNothing(t *testing.T) {
	db := newFakeDB(map[string]int{"p1": 3, "p2": 10})
	db.itemFailAt = 2
	repo := &OrderRepository{pool: db}

	ord := testOrder("sess_1",
		order.Item{ProductName: "Hoodie", ProductRef: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 2},
		order.Item{ProductName: "Cap", ProductRef: "p2", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
	)

	err := repo.Materialize(context.Background(), ord, "cart-1")
	require.Error(t, err)

	assert.False(t, db.lastTx.committed)
	assert.Equal(t, 3, db.stock["p1"], "failed transaction leaves stock untouched")
	assert.Equal(t, 10, db.stock["p2"])
	assert.False(t, db.tokens["sess_1"])
	assert.Empty(t, db.clearedCarts)
}
