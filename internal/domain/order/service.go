package order

import (
	"context"
	"strings"

	"github.com/go-faster/errors"

	"github.com/velora/checkout/internal/domain/product"
)

// ErrAlreadyCancelled is returned when cancelling an order that is already
// cancelled.
var ErrAlreadyCancelled = errors.New("order already cancelled")

// Service covers the post-purchase order surface: history, detail, and
// cancellation.
type Service struct {
	orders   Repository
	products product.Repository
}

// NewService creates an order Service.
func NewService(orders Repository, products product.Repository) *Service {
	return &Service{orders: orders, products: products}
}

// History returns the user's orders, newest first.
func (s *Service) History(ctx context.Context, userID, email string) ([]Order, error) {
	list, err := s.orders.ListForUser(ctx, userID, email)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return list, nil
}

// Detail returns a single order with product references backfilled.
//
// Older order items predate the live product reference and carry only the
// snapshot name. For those, Detail matches products by name so the detail
// page can show images and review links. A reference that no longer resolves
// stays empty and the snapshot name is used; the degradation is silent.
func (s *Service) Detail(ctx context.Context, id, userID, email string) (*Order, error) {
	o, err := s.orders.GetForUser(ctx, id, userID, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "get order")
	}

	var missing []string
	for _, it := range o.Items {
		if it.ProductRef == "" && it.ProductName != "" {
			missing = append(missing, it.ProductName)
		}
	}
	if len(missing) == 0 {
		return o, nil
	}

	matched, err := s.products.GetByNames(ctx, missing)
	if err != nil {
		// Backfill is cosmetic. The order renders from snapshots.
		return o, nil
	}
	byName := make(map[string]string, len(matched))
	for _, p := range matched {
		byName[strings.ToLower(p.Name)] = p.ID
	}
	for i := range o.Items {
		it := &o.Items[i]
		if it.ProductRef == "" {
			it.ProductRef = byName[strings.ToLower(it.ProductName)]
		}
	}
	return o, nil
}

// Cancel marks the user's order cancelled. Cancelling twice returns
// ErrAlreadyCancelled without mutation.
func (s *Service) Cancel(ctx context.Context, id, userID, email string) error {
	o, err := s.orders.GetForUser(ctx, id, userID, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return errors.Wrap(err, "get order")
	}
	if o.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if err := s.orders.UpdateStatus(ctx, id, StatusCancelled); err != nil {
		return errors.Wrap(err, "update status")
	}
	return nil
}
