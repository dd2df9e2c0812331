package loyalty

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// --- Mock implementations ---

type mockRepo struct {
	accounts map[string]int
	err      error
}

func newMockRepo() *mockRepo {
	return &mockRepo{accounts: make(map[string]int)}
}

func (m *mockRepo) GetOrCreate(_ context.Context, userID string) (*Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.accounts[userID]; !ok {
		m.accounts[userID] = 0
	}
	return &Account{UserID: userID, Points: m.accounts[userID]}, nil
}

func (m *mockRepo) Debit(_ context.Context, userID string, points int) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	cur := m.accounts[userID]
	if points > cur {
		points = cur
	}
	m.accounts[userID] = cur - points
	return points, nil
}

func (m *mockRepo) Credit(_ context.Context, userID string, points int) error {
	if m.err != nil {
		return m.err
	}
	m.accounts[userID] += points
	return nil
}

// --- Conversion tests ---

func TestConvertPointsToDiscount(t *testing.T) {
	tests := []struct {
		name         string
		requested    int
		balance      int
		payable      string
		wantDiscount string
		wantCashback int
	}{
		{"full redemption", 2000, 2500, "90.00", "20", 100},
		{"capped by balance", 5000, 300, "90.00", "3", 15},
		{"capped by payable", 100000, 100000, "5.00", "5.00", 25},
		{"zero requested", 0, 500, "90.00", "0", 0},
		{"zero balance", 500, 0, "90.00", "0", 0},
		{"zero payable", 500, 500, "0", "0", 0},
		{"sub-euro discount earns no cashback", 50, 50, "90.00", "0.5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			discount, cashback := ConvertPointsToDiscount(tt.requested, tt.balance, d(tt.payable))
			assert.True(t, discount.Equal(d(tt.wantDiscount)), "discount: got %s want %s", discount, tt.wantDiscount)
			assert.Equal(t, tt.wantCashback, cashback)
		})
	}
}

// The ledger debit is the integer euro value of the discount, not the point
// count that produced it. A 20.00 discount from 2000 points costs 20 points.
func TestDebitForDiscount(t *testing.T) {
	assert.Equal(t, 20, DebitForDiscount(d("20.00")))
	assert.Equal(t, 5, DebitForDiscount(d("5.99")))
	assert.Equal(t, 0, DebitForDiscount(d("0.50")))
	assert.Equal(t, 0, DebitForDiscount(decimal.Zero))
}

func TestEarnFromPurchase(t *testing.T) {
	assert.Equal(t, 7, EarnFromPurchase(d("70.00")))
	assert.Equal(t, 0, EarnFromPurchase(d("9.99")))
	assert.Equal(t, 1, EarnFromPurchase(d("10.00")))
	assert.Equal(t, 0, EarnFromPurchase(decimal.Zero))
	assert.Equal(t, 0, EarnFromPurchase(d("-5.00")))
}

// --- Ledger tests ---

func TestLedger_Redeem(t *testing.T) {
	repo := newMockRepo()
	repo.accounts["u1"] = 100
	ledger := NewLedger(repo)

	debited, err := ledger.Redeem(context.Background(), "u1", d("20.00"))
	require.NoError(t, err)
	assert.Equal(t, 20, debited)
	assert.Equal(t, 80, repo.accounts["u1"])
}

func TestLedger_RedeemClampsAtZero(t *testing.T) {
	repo := newMockRepo()
	repo.accounts["u1"] = 5
	ledger := NewLedger(repo)

	debited, err := ledger.Redeem(context.Background(), "u1", d("20.00"))
	require.NoError(t, err)
	assert.Equal(t, 5, debited)
	assert.Equal(t, 0, repo.accounts["u1"])
}

func TestLedger_RedeemZeroDiscountIsNoop(t *testing.T) {
	repo := newMockRepo()
	repo.accounts["u1"] = 100
	ledger := NewLedger(repo)

	debited, err := ledger.Redeem(context.Background(), "u1", d("0.90"))
	require.NoError(t, err)
	assert.Equal(t, 0, debited)
	assert.Equal(t, 100, repo.accounts["u1"])
}

func TestLedger_Award(t *testing.T) {
	repo := newMockRepo()
	ledger := NewLedger(repo)

	require.NoError(t, ledger.Award(context.Background(), "u1", 105))
	assert.Equal(t, 105, repo.accounts["u1"])
}

func TestLedger_AwardNegative(t *testing.T) {
	ledger := NewLedger(newMockRepo())

	err := ledger.Award(context.Background(), "u1", -1)
	require.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_GetOrCreate(t *testing.T) {
	repo := newMockRepo()
	ledger := NewLedger(repo)

	acc, err := ledger.GetOrCreate(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, 0, acc.Points)

	// Second call returns the same account.
	again, err := ledger.GetOrCreate(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, acc.UserID, again.UserID)
}
