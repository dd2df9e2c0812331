package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when an order does not exist or does not belong to
// the requesting user.
var ErrNotFound = errors.New("order not found")

// Status is the order lifecycle state. Everything else on an Order is
// immutable after materialization, apart from the one-time voucher annotation
// attached right after creation.
type Status string

const (
	StatusPending   Status = "Pending"
	StatusPaid      Status = "Paid"
	StatusShipped   Status = "Shipped"
	StatusCancelled Status = "Cancelled"
	StatusRefunded  Status = "Refunded"
)

// Address is a billing or shipping snapshot captured at order time. It is
// never re-derived from a live user profile.
type Address struct {
	Name     string
	Line1    string
	City     string
	Postcode string
	Country  string
}

// Order is the immutable record materialized from a confirmed payment and a
// cart. Token is the payment-gateway session id; it carries a unique
// constraint so replaying a confirmation cannot create a second order.
// Total is the amount the gateway actually charged, which may differ from the
// sum of item subtotals due to rounding; both are independently recorded
// facts.
type Order struct {
	ID        string
	UserID    string // empty for guest checkout
	Token     string
	Total     decimal.Decimal
	Email     string
	Billing   Address
	Shipping  Address
	Status    Status
	CreatedAt time.Time

	// Voucher annotation, attached best-effort after creation. Discount is
	// the percent snapshot at attach time; later voucher deactivation does
	// not touch it.
	VoucherID string
	Discount  int

	Items []Item
}

// Item snapshots one purchased line. ProductName and UnitPrice are captured
// at purchase time. ProductRef points at the live product for image and
// review linking; it may dangle once the product is deleted, in which case
// consumers fall back to the snapshot name.
type Item struct {
	ID          string
	ProductName string
	ProductRef  string // nullable live reference
	UnitPrice   decimal.Decimal
	Quantity    int
}

// Subtotal is the line subtotal at the captured unit price.
func (i Item) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Repository provides order persistence. Materialization (order + items +
// stock decrement + cart clearing in one transaction) lives on the checkout
// side; this interface covers the read and annotation paths.
type Repository interface {
	// GetForUser returns the order with its items when it belongs to the
	// user, matched by user id or by order email. Returns ErrNotFound
	// otherwise.
	GetForUser(ctx context.Context, id, userID, email string) (*Order, error)
	// ListForUser returns the user's orders newest-first, items included.
	ListForUser(ctx context.Context, userID, email string) ([]Order, error)
	// AttachVoucher records the voucher annotation on an existing order.
	AttachVoucher(ctx context.Context, orderID, voucherID string, discount int) error
	// UpdateStatus sets the order status.
	UpdateStatus(ctx context.Context, id string, status Status) error
	// FindByToken returns the order correlated to a gateway session id, or
	// ErrNotFound.
	FindByToken(ctx context.Context, token string) (*Order, error)
}
