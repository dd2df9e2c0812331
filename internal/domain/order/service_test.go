package order

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora/checkout/internal/domain/product"
)

// --- Mock implementations ---

type mockOrderRepo struct {
	byID       map[string]*Order
	updatedIDs []string
}

func newMockOrderRepo(orders ...*Order) *mockOrderRepo {
	m := &mockOrderRepo{byID: make(map[string]*Order)}
	for _, o := range orders {
		m.byID[o.ID] = o
	}
	return m
}

func (m *mockOrderRepo) GetForUser(_ context.Context, id, userID, email string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	if o.UserID != userID && o.Email != email {
		return nil, ErrNotFound
	}
	cp := *o
	cp.Items = append([]Item(nil), o.Items...)
	return &cp, nil
}

func (m *mockOrderRepo) ListForUser(_ context.Context, userID, _ string) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) FindByToken(_ context.Context, token string) (*Order, error) {
	for _, o := range m.byID {
		if o.Token == token {
			return o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockOrderRepo) AttachVoucher(_ context.Context, orderID, voucherID string, discount int) error {
	o, ok := m.byID[orderID]
	if !ok {
		return ErrNotFound
	}
	o.VoucherID = voucherID
	o.Discount = discount
	return nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	m.updatedIDs = append(m.updatedIDs, id)
	return nil
}

type mockProductRepo struct {
	byName   map[string]product.Product
	namesErr error
}

func (m *mockProductRepo) GetByID(_ context.Context, _ string) (*product.Product, error) {
	return nil, product.ErrNotFound
}

func (m *mockProductRepo) GetByIDs(_ context.Context, _ []string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByNames(_ context.Context, names []string) ([]product.Product, error) {
	if m.namesErr != nil {
		return nil, m.namesErr
	}
	var out []product.Product
	for _, n := range names {
		if p, ok := m.byName[n]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) GetSize(_ context.Context, _ string) (*product.Size, error) {
	return nil, product.ErrSizeNotFound
}

// --- Tests ---

func TestDetail_BackfillsProductRefs(t *testing.T) {
	orders := newMockOrderRepo(&Order{
		ID:     "o1",
		UserID: "u1",
		Status: StatusPaid,
		Items: []Item{
			{ProductName: "Classic Tee", ProductRef: "", UnitPrice: decimal.New(199, -1), Quantity: 1},
			{ProductName: "Gone Forever", ProductRef: "", UnitPrice: decimal.New(10, 0), Quantity: 1},
			{ProductName: "Zip Hoodie", ProductRef: "p2", UnitPrice: decimal.New(545, -1), Quantity: 1},
		},
	})
	products := &mockProductRepo{byName: map[string]product.Product{
		"Classic Tee": {ID: "p1", Name: "Classic Tee"},
	}}
	svc := NewService(orders, products)

	o, err := svc.Detail(context.Background(), "o1", "u1", "")
	require.NoError(t, err)

	assert.Equal(t, "p1", o.Items[0].ProductRef, "missing ref backfilled by name")
	assert.Equal(t, "", o.Items[1].ProductRef, "unmatched name stays empty")
	assert.Equal(t, "p2", o.Items[2].ProductRef, "existing ref untouched")
}

func TestDetail_BackfillFailureIsSilent(t *testing.T) {
	orders := newMockOrderRepo(&Order{
		ID:     "o1",
		UserID: "u1",
		Status: StatusPaid,
		Items:  []Item{{ProductName: "Classic Tee", Quantity: 1}},
	})
	products := &mockProductRepo{namesErr: errors.New("db down")}
	svc := NewService(orders, products)

	o, err := svc.Detail(context.Background(), "o1", "u1", "")
	require.NoError(t, err, "backfill is cosmetic, the order still renders")
	assert.Equal(t, "Classic Tee", o.Items[0].ProductName)
}

func TestDetail_NotFound(t *testing.T) {
	svc := NewService(newMockOrderRepo(), &mockProductRepo{})

	_, err := svc.Detail(context.Background(), "missing", "u1", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDetail_WrongUser(t *testing.T) {
	orders := newMockOrderRepo(&Order{ID: "o1", UserID: "u1", Status: StatusPaid})
	svc := NewService(orders, &mockProductRepo{})

	_, err := svc.Detail(context.Background(), "o1", "someone-else", "")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCancel(t *testing.T) {
	orders := newMockOrderRepo(&Order{ID: "o1", UserID: "u1", Status: StatusPaid})
	svc := NewService(orders, &mockProductRepo{})
	ctx := context.Background()

	require.NoError(t, svc.Cancel(ctx, "o1", "u1", ""))
	assert.Equal(t, StatusCancelled, orders.byID["o1"].Status)

	err := svc.Cancel(ctx, "o1", "u1", "")
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Len(t, orders.updatedIDs, 1, "second cancel must not write")
}

func TestItemSubtotal(t *testing.T) {
	it := Item{UnitPrice: decimal.RequireFromString("19.90"), Quantity: 3}
	assert.True(t, it.Subtotal().Equal(decimal.RequireFromString("59.70")))
}
