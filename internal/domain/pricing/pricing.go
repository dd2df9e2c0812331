// Package pricing computes the payable amount for a cart under the two
// storefront discount mechanisms: percentage vouchers and redeemable loyalty
// points. It is pure computation; applying the resulting point debit to the
// ledger is the caller's responsibility.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/velora/checkout/internal/domain/loyalty"
	"github.com/velora/checkout/internal/domain/voucher"
)

var hundred = decimal.NewFromInt(100)

// Quote is the result of pricing a cart for checkout.
type Quote struct {
	CartTotal       decimal.Decimal
	VoucherDiscount decimal.Decimal
	AfterVoucher    decimal.Decimal
	PointsDiscount  decimal.Decimal
	FinalTotal      decimal.Decimal

	// PointsToDebit is the ledger debit owed for PointsDiscount. See
	// loyalty.DebitForDiscount for why this is not the requested count.
	PointsToDebit  int
	CashbackPoints int
}

// ComputeFinal prices a cart. The voucher may be nil; an inactive voucher
// contributes no discount. requestedPoints is bounded by loyaltyBalance and
// the discount by the remaining payable amount, so FinalTotal is never
// negative.
func ComputeFinal(cartTotal decimal.Decimal, v *voucher.Voucher, requestedPoints, loyaltyBalance int) Quote {
	q := Quote{
		CartTotal:       cartTotal,
		VoucherDiscount: decimal.Zero,
		PointsDiscount:  decimal.Zero,
	}

	if v != nil && v.Active {
		q.VoucherDiscount = cartTotal.Mul(decimal.NewFromInt(int64(v.Discount))).Div(hundred)
	}

	q.AfterVoucher = cartTotal.Sub(q.VoucherDiscount)
	if q.AfterVoucher.IsNegative() {
		q.AfterVoucher = decimal.Zero
	}

	if requestedPoints > 0 {
		q.PointsDiscount, q.CashbackPoints = loyalty.ConvertPointsToDiscount(
			requestedPoints, loyaltyBalance, q.AfterVoucher,
		)
		q.PointsToDebit = loyalty.DebitForDiscount(q.PointsDiscount)
	}

	q.FinalTotal = q.AfterVoucher.Sub(q.PointsDiscount)
	if q.FinalTotal.IsNegative() {
		q.FinalTotal = decimal.Zero
	}
	return q
}

// MinorUnits converts a currency amount to integer minor units (cents) with
// round-half-up. The gateway boundary takes integer cents; truncation here
// would systematically undercharge.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts gateway-reported minor units back to a currency
// amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.NewFromInt(cents).Div(hundred)
}
