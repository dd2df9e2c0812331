package loyalty

import "github.com/shopspring/decimal"

// Conversion rates. PointsPerEuro is the redemption rate: 100 points convert
// to 1 EUR of discount. CashbackPerEuro is awarded back for every full euro
// of points discount redeemed. EarnRate accrues points on the amount actually
// charged for a confirmed payment.
const (
	PointsPerEuro   = 100
	CashbackPerEuro = 5
)

var earnRate = decimal.NewFromFloat(0.10)

// ConvertPointsToDiscount converts a requested point redemption into a
// currency discount and the cashback points granted alongside it.
//
// The redeemable point count is bounded by the account balance, and the
// resulting discount is bounded by the payable amount so a redemption can
// never drive the total negative.
func ConvertPointsToDiscount(requestedPoints, balance int, payable decimal.Decimal) (discount decimal.Decimal, cashback int) {
	if requestedPoints <= 0 || balance <= 0 || payable.Sign() <= 0 {
		return decimal.Zero, 0
	}

	usable := requestedPoints
	if usable > balance {
		usable = balance
	}

	discount = decimal.NewFromInt(int64(usable)).
		Div(decimal.NewFromInt(PointsPerEuro))
	if discount.GreaterThan(payable) {
		discount = payable
	}

	cashback = int(discount.IntPart()) * CashbackPerEuro
	return discount, cashback
}

// DebitForDiscount returns the point debit applied to the ledger for a given
// currency discount.
//
// The ledger debits the integer-truncated euro value of the discount rather
// than the point count that was converted. A 5 EUR discount obtained from 500
// points therefore costs the account only 5 points. This mirrors the behavior
// the storefront has always had; keeping it in one place makes a future
// correction a one-line change.
func DebitForDiscount(discount decimal.Decimal) int {
	if discount.Sign() <= 0 {
		return 0
	}
	return int(discount.IntPart())
}

// EarnFromPurchase returns the points earned for a confirmed purchase:
// 10% of the amount spent, truncated. No rounding bank is kept.
func EarnFromPurchase(amountSpent decimal.Decimal) int {
	if amountSpent.Sign() <= 0 {
		return 0
	}
	return int(amountSpent.Mul(earnRate).IntPart())
}
