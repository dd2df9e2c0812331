package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// ErrSizeNotFound is returned when a requested size does not exist.
var ErrSizeNotFound = errors.New("size not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Stock int
	Image Image
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Size is a purchasable size variant (e.g. S, M, 42).
type Size struct {
	ID   string
	Name string
}

// Repository defines read operations for the product catalog. Stock
// decrements happen inside the order materialization transaction, not here.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	GetByNames(ctx context.Context, names []string) ([]Product, error)
	GetSize(ctx context.Context, idOrName string) (*Size, error)
}
