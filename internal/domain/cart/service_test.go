package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/velora/checkout/internal/domain/product"
)

// --- Mock implementations ---

type lineKey struct {
	productID string
	sizeID    string
}

type mockCartRepo struct {
	carts map[string]*Cart
	items map[string]map[lineKey]int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{
		carts: make(map[string]*Cart),
		items: make(map[string]map[lineKey]int),
	}
}

func (m *mockCartRepo) GetByToken(_ context.Context, token string) (*Cart, error) {
	c, ok := m.carts[token]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (m *mockCartRepo) GetOrCreate(_ context.Context, token string) (*Cart, error) {
	if c, ok := m.carts[token]; ok {
		return c, nil
	}
	c := &Cart{Token: token}
	m.carts[token] = c
	m.items[token] = make(map[lineKey]int)
	return c, nil
}

func (m *mockCartRepo) ListItems(_ context.Context, token string) ([]Item, error) {
	var out []Item
	for k, q := range m.items[token] {
		out = append(out, Item{ProductID: k.productID, SizeID: k.sizeID, Quantity: q, Active: true})
	}
	return out, nil
}

func (m *mockCartRepo) AddItem(_ context.Context, token, productID, sizeID string) error {
	m.items[token][lineKey{productID, sizeID}]++
	return nil
}

func (m *mockCartRepo) DecrementItem(_ context.Context, token, productID, sizeID string) error {
	k := lineKey{productID, sizeID}
	if m.items[token][k] <= 1 {
		delete(m.items[token], k)
		return nil
	}
	m.items[token][k]--
	return nil
}

func (m *mockCartRepo) RemoveLine(_ context.Context, token, productID, sizeID string) error {
	delete(m.items[token], lineKey{productID, sizeID})
	return nil
}

func (m *mockCartRepo) SetVoucher(_ context.Context, token, voucherID string) error {
	m.carts[token].VoucherID = voucherID
	return nil
}

func (m *mockCartRepo) ClearVoucher(_ context.Context, token string) error {
	m.carts[token].VoucherID = ""
	return nil
}

func (m *mockCartRepo) Empty(_ context.Context, token string) error {
	if _, ok := m.carts[token]; !ok {
		return ErrNotFound
	}
	delete(m.carts, token)
	delete(m.items, token)
	return nil
}

type mockProductRepo struct {
	byID  map[string]*product.Product
	sizes map[string]*product.Size
}

func newMockProductRepo(products ...product.Product) *mockProductRepo {
	m := &mockProductRepo{
		byID: make(map[string]*product.Product),
		sizes: map[string]*product.Size{
			"sz-m": {ID: "sz-m", Name: "M"},
		},
	}
	for i := range products {
		m.byID[products[i].ID] = &products[i]
	}
	return m
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockProductRepo) GetByNames(_ context.Context, _ []string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetSize(_ context.Context, idOrName string) (*product.Size, error) {
	if s, ok := m.sizes[idOrName]; ok {
		return s, nil
	}
	for _, s := range m.sizes {
		if s.Name == idOrName {
			return s, nil
		}
	}
	return nil, product.ErrSizeNotFound
}

// --- Helpers ---

func testProduct(id, name, price string) product.Product {
	return product.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Stock: 10}
}

// --- Tests ---

func TestAdd(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewService(carts, newMockProductRepo(testProduct("p1", "Tee", "19.90")))

	require.NoError(t, svc.Add(context.Background(), "tok", "p1", "sz-m"))

	items, err := carts.ListItems(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestAdd_SizeByName(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewService(carts, newMockProductRepo(testProduct("p1", "Tee", "19.90")))

	require.NoError(t, svc.Add(context.Background(), "tok", "p1", "M"))

	items, err := carts.ListItems(context.Background(), "tok")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "sz-m", items[0].SizeID)
}

func TestAdd_UnknownProduct(t *testing.T) {
	svc := NewService(newMockCartRepo(), newMockProductRepo())

	err := svc.Add(context.Background(), "tok", "missing", "sz-m")
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAdd_UnknownSize(t *testing.T) {
	svc := NewService(newMockCartRepo(), newMockProductRepo(testProduct("p1", "Tee", "19.90")))

	err := svc.Add(context.Background(), "tok", "p1", "XXXL")
	require.ErrorIs(t, err, product.ErrSizeNotFound)
}

func TestRemove_LastUnitDeletesLine(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewService(carts, newMockProductRepo(testProduct("p1", "Tee", "19.90")))
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "tok", "p1", "sz-m"))
	require.NoError(t, svc.Remove(ctx, "tok", "p1", "sz-m"))

	items, err := carts.ListItems(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRemoveLine(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewService(carts, newMockProductRepo(testProduct("p1", "Tee", "19.90")))
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "tok", "p1", "sz-m"))
	require.NoError(t, svc.Add(ctx, "tok", "p1", "sz-m"))
	require.NoError(t, svc.Add(ctx, "tok", "p1", "sz-m"))
	require.NoError(t, svc.RemoveLine(ctx, "tok", "p1", "sz-m"))

	items, err := carts.ListItems(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEmpty_MissingCartIsNoop(t *testing.T) {
	svc := NewService(newMockCartRepo(), newMockProductRepo())

	require.NoError(t, svc.Empty(context.Background(), "never-existed"))
}

func TestView_ComputesTotal(t *testing.T) {
	carts := newMockCartRepo()
	svc := NewService(carts, newMockProductRepo(
		testProduct("p1", "Tee", "19.90"),
		testProduct("p2", "Hoodie", "54.50"),
	))
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "tok", "p1", "sz-m"))
	require.NoError(t, svc.Add(ctx, "tok", "p1", "sz-m"))
	require.NoError(t, svc.Add(ctx, "tok", "p2", "sz-m"))

	view, err := svc.View(ctx, "tok")
	require.NoError(t, err)
	require.Len(t, view.Lines, 2)
	assert.True(t, view.Total.Equal(decimal.RequireFromString("94.30")), "got %s", view.Total)
}

func TestView_MissingCartIsEmpty(t *testing.T) {
	svc := NewService(newMockCartRepo(), newMockProductRepo())

	view, err := svc.View(context.Background(), "never-existed")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}

func TestView_SkipsDeletedProducts(t *testing.T) {
	carts := newMockCartRepo()
	products := newMockProductRepo(testProduct("p1", "Tee", "19.90"))
	svc := NewService(carts, products)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, "tok", "p1", "sz-m"))

	// Product removed from the catalog after being carted.
	delete(products.byID, "p1")

	view, err := svc.View(ctx, "tok")
	require.NoError(t, err)
	assert.Empty(t, view.Lines)
	assert.True(t, view.Total.IsZero())
}
