// Package gateway is the boundary to the external payment processor. The
// processor hosts its own checkout UI; this service only creates payment
// sessions for an amount and later resolves a session id to a paid/unpaid
// status with payer-supplied billing details.
package gateway

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrUnavailable is returned on transport-level failures talking to the
// processor. Callers may retry once inline; an automatic re-charge is never
// appropriate.
var ErrUnavailable = errors.New("payment gateway unavailable")

// SessionStatus reports whether a payment session completed.
type SessionStatus string

const (
	StatusCompleted  SessionStatus = "completed"
	StatusIncomplete SessionStatus = "incomplete"
)

// Session is a freshly created payment session. The visitor is redirected to
// RedirectURL to pay.
type Session struct {
	ID          string
	RedirectURL string
}

// PayerAddress is the address the payer entered at the processor.
type PayerAddress struct {
	Line1    string
	City     string
	Postcode string
	Country  string
}

// SessionDetails is the processor's record of a checkout attempt, retrieved
// after the visitor returns. AmountCharged is in integer minor units and is
// authoritative over any locally computed total.
type SessionDetails struct {
	ID            string
	Status        SessionStatus
	AmountCharged int64
	PayerEmail    string
	PayerName     string
	PayerAddress  *PayerAddress
}

// CreateSessionParams describes the payment to collect. Amount is integer
// minor units; converting from a decimal amount must round half-up.
type CreateSessionParams struct {
	Amount     int64
	Currency   string
	SuccessURL string
	CancelURL  string
	PayerEmail string
}

// Gateway is the payment processor client surface consumed by checkout.
type Gateway interface {
	CreateSession(ctx context.Context, p CreateSessionParams) (*Session, error)
	RetrieveSession(ctx context.Context, id string) (*SessionDetails, error)
}
