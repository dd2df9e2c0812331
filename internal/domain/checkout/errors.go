package checkout

import (
	"fmt"

	"github.com/go-faster/errors"
)

var (
	// ErrPaymentUnconfirmed is returned when the gateway reports the
	// session as not completed. No order is created and the cart is left
	// intact for retry.
	ErrPaymentUnconfirmed = errors.New("payment not confirmed")

	// ErrUnauthenticated is returned when point redemption is requested
	// without a signed-in identity. Guests may still pay; they just earn
	// and spend no loyalty points.
	ErrUnauthenticated = errors.New("authentication required")

	// ErrAlreadyMaterialized signals that an order for the session token
	// already exists. Confirmation handlers treat it as success.
	ErrAlreadyMaterialized = errors.New("order already materialized")
)

// MaterializationError reports that a payment was confirmed but the order
// could not be created. Money has moved with no matching order row, so this
// is a reconciliation event: it must be logged loudly and never silently
// dropped. The session id is the durable key a reconciliation job would use.
type MaterializationError struct {
	SessionID string
	Err       error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("payment %s confirmed but order materialization failed: %v", e.SessionID, e.Err)
}

func (e *MaterializationError) Unwrap() error { return e.Err }
