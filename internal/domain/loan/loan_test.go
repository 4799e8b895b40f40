package loan

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateEMI(t *testing.T) {
	t.Run("standard amortization", func(t *testing.T) {
		// 100,000 at 12% over 12 months is the textbook case.
		emi := CalculateEMI(d("100000"), d("12"), 12)
		assert.Equal(t, "8884.88", emi.StringFixed(2))
	})

	t.Run("zero interest splits the principal evenly", func(t *testing.T) {
		emi := CalculateEMI(d("120000"), d("0"), 12)
		assert.Equal(t, "10000.00", emi.StringFixed(2))
	})

	t.Run("zero interest rounds the split", func(t *testing.T) {
		emi := CalculateEMI(d("100000"), d("0"), 12)
		assert.Equal(t, "8333.33", emi.StringFixed(2))
	})

	t.Run("non-positive tenure yields zero", func(t *testing.T) {
		assert.True(t, CalculateEMI(d("100000"), d("12"), 0).IsZero())
		assert.True(t, CalculateEMI(d("100000"), d("12"), -3).IsZero())
	})

	t.Run("higher rate raises the installment", func(t *testing.T) {
		low := CalculateEMI(d("500000"), d("8"), 24)
		high := CalculateEMI(d("500000"), d("16"), 24)
		assert.True(t, high.GreaterThan(low), "EMI at 16%% should exceed EMI at 8%%")
	})

	t.Run("longer tenure lowers the installment", func(t *testing.T) {
		short := CalculateEMI(d("500000"), d("10"), 12)
		long := CalculateEMI(d("500000"), d("10"), 36)
		assert.True(t, long.LessThan(short), "EMI over 36 months should undercut 12 months")
	})

	t.Run("always rounded to two decimals", func(t *testing.T) {
		emi := CalculateEMI(d("333333"), d("13.37"), 17)
		assert.True(t, emi.Exponent() >= -2, "EMI %s should carry at most 2 decimal places", emi)
	})
}

func TestNewLoan(t *testing.T) {
	startDate := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	t.Run("creates an active loan with derived fields", func(t *testing.T) {
		l, err := NewLoan(1, d("250000"), d("11.50"), 24, startDate)
		require.NoError(t, err)

		assert.Equal(t, int64(1), l.CustomerID)
		assert.Equal(t, StatusActive, l.Status)
		assert.Equal(t, startDate, l.StartDate)
		assert.Equal(t, startDate.AddDate(0, 24, 0), l.EndDate)
		assert.Equal(t, 0, l.EMIsPaidOnTime)
		assert.True(t, l.MonthlyRepayment.Equal(CalculateEMI(d("250000"), d("11.50"), 24)))
	})

	t.Run("defaults a zero start date to today", func(t *testing.T) {
		l, err := NewLoan(1, d("1000"), d("10"), 6, time.Time{})
		require.NoError(t, err)
		assert.False(t, l.StartDate.IsZero())
		assert.Equal(t, l.StartDate.AddDate(0, 6, 0), l.EndDate)
	})

	t.Run("rejects invalid inputs", func(t *testing.T) {
		_, err := NewLoan(1, d("0"), d("10"), 12, startDate)
		assert.Error(t, err)

		_, err = NewLoan(1, d("1000"), d("10"), 0, startDate)
		assert.Error(t, err)

		_, err = NewLoan(1, d("1000"), d("-1"), 12, startDate)
		assert.Error(t, err)
	})
}

func TestRepaymentsLeft(t *testing.T) {
	l := Loan{Tenure: 12, EMIsPaidOnTime: 5}
	assert.Equal(t, 7, l.RepaymentsLeft())

	overpaid := Loan{Tenure: 12, EMIsPaidOnTime: 15}
	assert.Equal(t, 0, overpaid.RepaymentsLeft())
}
