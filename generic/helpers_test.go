package generic_test

import (
	"testing"
	"time"

	"github.com/aneupi/finance-engine/balances"
	"github.com/aneupi/finance-engine/earnings"
	"github.com/aneupi/finance-engine/generic"
	"github.com/aneupi/finance-engine/generic/store"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var testNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func newBalanceService(t *testing.T) (*generic.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return generic.NewService(mem, balances.Kind(), generic.WithClock(fixedClock)), mem
}

func newEarningsService(t *testing.T) (*generic.Service, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	return generic.NewService(mem, earnings.Kind(), generic.WithClock(fixedClock)), mem
}

func contribution(id string, year, month int, amount string, status generic.ContributionStatus) generic.Contribution {
	return generic.Contribution{
		ID:          id,
		UserID:      1,
		Year:        year,
		Month:       month,
		AmountToPay: decimal.RequireFromString(amount),
		AmountPaid:  decimal.Zero,
		Status:      status,
		CreatedAt:   testNow,
	}
}

func credit(id string, issued time.Time, amount string) generic.Credit {
	return generic.Credit{
		ID:           id,
		UserID:       1,
		MontoCredito: decimal.RequireFromString(amount),
		IssuedAt:     issued,
		CreatedAt:    testNow,
	}
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...interface{}) {
	t.Helper()
	assert.Equal(t, want, got.StringFixed(2), msgAndArgs...)
}
