package cart

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/product"
)

// Line is an item joined with its product snapshot for display and totals.
type Line struct {
	Product  product.Product
	SizeID   string
	Quantity int
	Subtotal decimal.Decimal
}

// View is the priced contents of a cart.
type View struct {
	Cart  *Cart
	Lines []Line
	Total decimal.Decimal
}

// Service wraps cart mutations with product validation and total computation.
type Service struct {
	carts    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(carts Repository, products product.Repository) *Service {
	return &Service{carts: carts, products: products}
}

// Add puts one unit of (product, size) into the visitor's cart, creating the
// cart lazily. The size may be referenced by id or by name.
func (s *Service) Add(ctx context.Context, token, productID, sizeRef string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return errors.Wrap(err, "resolve product")
	}
	size, err := s.products.GetSize(ctx, sizeRef)
	if err != nil {
		return errors.Wrap(err, "resolve size")
	}

	if _, err := s.carts.GetOrCreate(ctx, token); err != nil {
		return errors.Wrap(err, "get or create cart")
	}
	if err := s.carts.AddItem(ctx, token, productID, size.ID); err != nil {
		return errors.Wrap(err, "add item")
	}
	return nil
}

// Remove takes one unit of (product, size) out of the cart, deleting the line
// when the last unit goes.
func (s *Service) Remove(ctx context.Context, token, productID, sizeID string) error {
	if err := s.carts.DecrementItem(ctx, token, productID, sizeID); err != nil {
		return errors.Wrap(err, "decrement item")
	}
	return nil
}

// RemoveLine deletes the whole (product, size) line regardless of quantity.
func (s *Service) RemoveLine(ctx context.Context, token, productID, sizeID string) error {
	if err := s.carts.RemoveLine(ctx, token, productID, sizeID); err != nil {
		return errors.Wrap(err, "remove line")
	}
	return nil
}

// Empty deletes the cart and all its items. Missing carts are not an error;
// emptying an absent cart is a no-op.
func (s *Service) Empty(ctx context.Context, token string) error {
	err := s.carts.Empty(ctx, token)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return errors.Wrap(err, "empty cart")
	}
	return nil
}

// View loads the cart with product snapshots and computes the undiscounted
// total. An absent cart yields an empty view rather than an error so the cart
// page always renders.
func (s *Service) View(ctx context.Context, token string) (*View, error) {
	c, err := s.carts.GetByToken(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &View{Total: decimal.Zero}, nil
		}
		return nil, errors.Wrap(err, "get cart")
	}

	items, err := s.carts.ListItems(ctx, token)
	if err != nil {
		return nil, errors.Wrap(err, "list items")
	}

	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	view := &View{Cart: c, Total: decimal.Zero}
	for _, it := range items {
		p, ok := byID[it.ProductID]
		if !ok {
			// Product deleted after being carted. Skip the line; it
			// cannot be priced or purchased.
			continue
		}
		sub := p.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
		view.Lines = append(view.Lines, Line{
			Product:  p,
			SizeID:   it.SizeID,
			Quantity: it.Quantity,
			Subtotal: sub,
		})
		view.Total = view.Total.Add(sub)
	}
	return view, nil
}

// Total computes the undiscounted cart total.
func (s *Service) Total(ctx context.Context, token string) (decimal.Decimal, error) {
	view, err := s.View(ctx, token)
	if err != nil {
		return decimal.Zero, err
	}
	return view.Total, nil
}
