// Package checkout drives the end-to-end purchase flow: price the cart,
// reserve the loyalty discount, initiate an external payment session, and on
// confirmed payment materialize an immutable order, decrement stock, award
// points, and clear the cart.
//
// The flow spans two requests connected only by the gateway session id: the
// visitor leaves for the processor's hosted page and may never come back,
// come back twice, or come back in a different browser. Everything on the
// confirmation side is therefore keyed by the session id and idempotent.
package checkout

import (
	"context"
	"fmt"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/velora/checkout/internal/domain/cart"
	"github.com/velora/checkout/internal/domain/loyalty"
	"github.com/velora/checkout/internal/domain/order"
	"github.com/velora/checkout/internal/domain/pricing"
	"github.com/velora/checkout/internal/domain/voucher"
	"github.com/velora/checkout/internal/gateway"
)

// User is the authenticated identity forwarded by the storefront's auth
// layer. A nil *User means guest checkout: payment works, loyalty does not.
type User struct {
	ID    string
	Email string
	Name  string
}

// Materializer persists a confirmed order in a single transaction: the order
// row, its item snapshots, the clamped stock decrements, and the consumed
// cart rows all succeed or fail together. A replay for an existing order
// token must return ErrAlreadyMaterialized instead of inserting twice.
type Materializer interface {
	Materialize(ctx context.Context, o *order.Order, cartToken string) error
}

// Orchestrator coordinates the checkout state machine.
type Orchestrator struct {
	carts    *cart.Service
	cartRepo cart.Repository
	vouchers *voucher.Registry
	ledger   *loyalty.Ledger
	gw       gateway.Gateway
	corr     CorrelationStore
	orders   order.Repository
	mat      Materializer
	currency string
}

// NewOrchestrator wires the checkout flow.
func NewOrchestrator(
	carts *cart.Service,
	cartRepo cart.Repository,
	vouchers *voucher.Registry,
	ledger *loyalty.Ledger,
	gw gateway.Gateway,
	corr CorrelationStore,
	orders order.Repository,
	mat Materializer,
	currency string,
) *Orchestrator {
	return &Orchestrator{
		carts:    carts,
		cartRepo: cartRepo,
		vouchers: vouchers,
		ledger:   ledger,
		gw:       gw,
		corr:     corr,
		orders:   orders,
		mat:      mat,
		currency: currency,
	}
}

// BeginRequest starts a checkout attempt for the given cart.
type BeginRequest struct {
	CartToken       string
	RequestedPoints int
	User            *User
	SuccessURL      string
	CancelURL       string
}

// BeginResult is a created payment session plus the quote it was priced from.
type BeginResult struct {
	Session *gateway.Session
	Quote   pricing.Quote
	// PointsDebited is the ledger debit actually applied before the
	// session was created. It may be lower than Quote.PointsToDebit when
	// the balance raced to zero.
	PointsDebited int
}

// Quote prices the cart without mutating anything: voucher discount, points
// discount preview, and the payable total. A stored voucher that no longer
// resolves is cleared from the cart and pricing proceeds undiscounted.
func (o *Orchestrator) Quote(ctx context.Context, token string, requestedPoints int, user *User) (pricing.Quote, error) {
	view, err := o.carts.View(ctx, token)
	if err != nil {
		return pricing.Quote{}, errors.Wrap(err, "load cart")
	}

	v, err := o.resolveCartVoucher(ctx, view.Cart)
	if err != nil {
		return pricing.Quote{}, err
	}

	balance := 0
	if user != nil && requestedPoints > 0 {
		acc, err := o.ledger.GetOrCreate(ctx, user.ID)
		if err != nil {
			return pricing.Quote{}, errors.Wrap(err, "load loyalty account")
		}
		balance = acc.Points
	}

	return pricing.ComputeFinal(view.Total, v, requestedPoints, balance), nil
}

// Begin executes Cart(open) → PricingComputed → PaymentPending: it prices the
// cart, applies the loyalty debit, creates the gateway session, and stashes
// the correlation entry. The loyalty debit happens before the gateway call;
// if payment later fails the debit is not reverted (long-standing behavior,
// see the orchestrator tests).
func (o *Orchestrator) Begin(ctx context.Context, req BeginRequest) (*BeginResult, error) {
	lg := zctx.From(ctx)

	if req.RequestedPoints > 0 && req.User == nil {
		return nil, ErrUnauthenticated
	}

	view, err := o.carts.View(ctx, req.CartToken)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(view.Lines) == 0 {
		return nil, cart.ErrEmpty
	}

	v, err := o.resolveCartVoucher(ctx, view.Cart)
	if err != nil {
		return nil, err
	}

	balance := 0
	if req.User != nil && req.RequestedPoints > 0 {
		acc, err := o.ledger.GetOrCreate(ctx, req.User.ID)
		if err != nil {
			return nil, errors.Wrap(err, "load loyalty account")
		}
		balance = acc.Points
	}

	quote := pricing.ComputeFinal(view.Total, v, req.RequestedPoints, balance)

	// Apply the debit before contacting the gateway so a second concurrent
	// attempt prices against the reduced balance.
	debited := 0
	if quote.PointsToDebit > 0 {
		debited, err = o.ledger.Redeem(ctx, req.User.ID, quote.PointsDiscount)
		if err != nil {
			return nil, errors.Wrap(err, "redeem points")
		}
	}

	voucherID := ""
	if v != nil {
		voucherID = v.ID
	}

	sess, err := o.gw.CreateSession(ctx, gateway.CreateSessionParams{
		Amount:     pricing.MinorUnits(quote.FinalTotal),
		Currency:   o.currency,
		SuccessURL: successURL(req.SuccessURL, voucherID, quote.AfterVoucher.String()),
		CancelURL:  req.CancelURL,
		PayerEmail: payerEmail(req.User),
	})
	if err != nil {
		return nil, errors.Wrap(err, "create payment session")
	}

	entry := Entry{
		CartToken:      req.CartToken,
		PointsDebited:  debited,
		CashbackPoints: quote.CashbackPoints,
		FinalTotal:     quote.FinalTotal,
	}
	if req.User != nil {
		entry.UserID = req.User.ID
	}
	if err := o.corr.Put(ctx, sess.ID, entry); err != nil {
		// Best-effort state: losing it skips the point award later, it
		// must not fail the checkout.
		lg.Warn("correlation entry not stored",
			zap.String("session_id", sess.ID), zap.Error(err))
	}

	return &BeginResult{Session: sess, Quote: quote, PointsDebited: debited}, nil
}

// ReturnRequest is the success callback input. CartToken is the fallback
// cart identity used when the correlation entry has expired.
type ReturnRequest struct {
	SessionID string
	VoucherID string
	CartToken string
	User      *User
}

// OnReturn executes the confirmation side of the state machine. It is
// independently invocable and idempotent: retrieving the session, awarding
// points off the stashed correlation entry, materializing the order in one
// transaction, and attaching voucher metadata best-effort.
//
// Calling it twice for one session returns the same order; the unique
// constraint on the order token is the guard.
func (o *Orchestrator) OnReturn(ctx context.Context, req ReturnRequest) (*order.Order, error) {
	lg := zctx.From(ctx)

	details, err := o.gw.RetrieveSession(ctx, req.SessionID)
	if err != nil {
		return nil, errors.Wrap(err, "retrieve payment session")
	}
	if details.Status != gateway.StatusCompleted {
		return nil, ErrPaymentUnconfirmed
	}

	// Replay guard: a previous invocation may already have materialized.
	if existing, err := o.orders.FindByToken(ctx, req.SessionID); err == nil {
		return existing, nil
	} else if !errors.Is(err, order.ErrNotFound) {
		return nil, errors.Wrap(err, "check existing order")
	}

	entry, found, err := o.corr.Take(ctx, req.SessionID)
	if err != nil {
		lg.Warn("correlation store unavailable, skipping point award",
			zap.String("session_id", req.SessionID), zap.Error(err))
		found = false
	}

	o.awardPoints(ctx, req.User, entry, found)

	cartToken := req.CartToken
	if found && entry.CartToken != "" {
		cartToken = entry.CartToken
	}

	// Payment is confirmed from here on. Any failure below leaves money
	// moved with no order; surface it as a reconciliation event, never
	// roll back the payment.
	ord, err := o.materialize(ctx, req, details, cartToken)
	if err != nil {
		merr := &MaterializationError{SessionID: req.SessionID, Err: err}
		lg.Error("order materialization failed after confirmed payment",
			zap.String("session_id", req.SessionID),
			zap.Int64("amount_charged", details.AmountCharged),
			zap.Error(err))
		return nil, merr
	}

	o.attachVoucher(ctx, ord, req.VoucherID)
	return ord, nil
}

// awardPoints credits cashback and purchase-earned points off the stashed
// attempt values. The identity captured at Begin wins: the gateway redirect
// carries no auth headers, so the request identity is only a fallback.
// Guests and missing correlation entries skip the award gracefully.
func (o *Orchestrator) awardPoints(ctx context.Context, user *User, entry Entry, found bool) {
	lg := zctx.From(ctx)
	if !found {
		return
	}

	userID := entry.UserID
	if userID == "" && user != nil {
		userID = user.ID
	}
	if userID == "" {
		return
	}

	earned := loyalty.EarnFromPurchase(entry.FinalTotal)
	total := entry.CashbackPoints + earned
	if total == 0 {
		return
	}
	if err := o.ledger.Award(ctx, userID, total); err != nil {
		// Cosmetic relative to the payment that already succeeded.
		lg.Warn("point award failed",
			zap.String("user_id", userID),
			zap.Int("points", total),
			zap.Error(err))
		return
	}
	lg.Info("loyalty points awarded",
		zap.String("user_id", userID),
		zap.Int("cashback", entry.CashbackPoints),
		zap.Int("earned", earned))
}

// materialize builds the order from the cart and persists it transactionally.
func (o *Orchestrator) materialize(ctx context.Context, req ReturnRequest, details *gateway.SessionDetails, cartToken string) (*order.Order, error) {
	view, err := o.carts.View(ctx, cartToken)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	if len(view.Lines) == 0 {
		return nil, errors.New("cart not found or empty")
	}

	ord := buildOrder(req.SessionID, req.User, details)
	for _, line := range view.Lines {
		// Unit price is captured here once; the same snapshot feeds the
		// item row and every derived computation in the transaction.
		ord.Items = append(ord.Items, order.Item{
			ProductName: line.Product.Name,
			ProductRef:  line.Product.ID,
			UnitPrice:   line.Product.Price,
			Quantity:    line.Quantity,
		})
	}

	if err := o.mat.Materialize(ctx, ord, cartToken); err != nil {
		if errors.Is(err, ErrAlreadyMaterialized) {
			existing, ferr := o.orders.FindByToken(ctx, req.SessionID)
			if ferr == nil {
				return existing, nil
			}
		}
		return nil, err
	}
	return ord, nil
}

// attachVoucher annotates the order with the voucher percent snapshot.
// Failure is logged as a warning and nothing else: the discount metadata is
// cosmetic, the charged amount is already final.
func (o *Orchestrator) attachVoucher(ctx context.Context, ord *order.Order, voucherID string) {
	lg := zctx.From(ctx)
	if voucherID == "" {
		return
	}
	v, err := o.vouchers.Lookup(ctx, voucherID)
	if err != nil {
		lg.Warn("voucher metadata attachment skipped",
			zap.String("order_id", ord.ID),
			zap.String("voucher_id", voucherID),
			zap.Error(err))
		return
	}
	if err := o.orders.AttachVoucher(ctx, ord.ID, v.ID, v.Discount); err != nil {
		lg.Warn("voucher metadata attachment skipped",
			zap.String("order_id", ord.ID),
			zap.String("voucher_id", voucherID),
			zap.Error(err))
		return
	}
	ord.VoucherID = v.ID
	ord.Discount = v.Discount
}

// resolveCartVoucher resolves the voucher stored on the cart. An
// unresolvable voucher is cleared from the cart and pricing continues
// without a discount.
func (o *Orchestrator) resolveCartVoucher(ctx context.Context, c *cart.Cart) (*voucher.Voucher, error) {
	if c == nil || c.VoucherID == "" {
		return nil, nil
	}
	v, err := o.vouchers.Resolve(ctx, c.VoucherID)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, voucher.ErrNotFound) {
		lg := zctx.From(ctx)
		lg.Warn("stored voucher no longer resolves, clearing",
			zap.String("cart_token", c.Token),
			zap.String("voucher_id", c.VoucherID))
		if cerr := o.cartRepo.ClearVoucher(ctx, c.Token); cerr != nil {
			lg.Warn("clearing stale voucher failed", zap.Error(cerr))
		}
		return nil, nil
	}
	return nil, errors.Wrap(err, "resolve voucher")
}

func buildOrder(sessionID string, user *User, details *gateway.SessionDetails) *order.Order {
	// Account details win over whatever the visitor typed on the gateway
	// page; the gateway values fill the gaps for guests.
	email := details.PayerEmail
	name := details.PayerName
	if user != nil {
		if user.Email != "" {
			email = user.Email
		}
		if user.Name != "" {
			name = user.Name
		}
	}

	addr := order.Address{Name: name}
	if a := details.PayerAddress; a != nil {
		addr.Line1 = a.Line1
		addr.City = a.City
		addr.Postcode = a.Postcode
		addr.Country = a.Country
	}

	ord := &order.Order{
		ID:     uuid.New().String(),
		Token:  sessionID,
		Total:  pricing.FromMinorUnits(details.AmountCharged),
		Email:  email,
		Status: order.StatusPaid,
		// Billing and shipping are the same snapshot: the processor
		// collects a single address.
		Billing:  addr,
		Shipping: addr,
	}
	if user != nil {
		ord.UserID = user.ID
	}
	return ord
}

func successURL(base, voucherID, cartTotal string) string {
	// The gateway substitutes its session id into the template placeholder
	// when redirecting back.
	return fmt.Sprintf("%s?session_id={CHECKOUT_SESSION_ID}&voucher_id=%s&cart_total=%s",
		base, url.QueryEscape(voucherID), url.QueryEscape(cartTotal))
}

func payerEmail(user *User) string {
	if user == nil {
		return ""
	}
	return user.Email
}
