package loan

import (
	"credit-engine/internal/pkg/apperrors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type LoanStatus string

const (
	StatusActive LoanStatus = "active"
	StatusPaid   LoanStatus = "paid"
)

var (
	twelve  = decimal.NewFromInt(12)
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// Loan money columns are decimal end to end; MonthlyRepayment is computed at
// issuance and never recalculated afterwards. EMIsPaidOnTime is maintained by
// an external collection process and is read-only here.
type Loan struct {
	ID               int64           `json:"loanId"`
	CustomerID       int64           `json:"customerId"`
	LoanAmount       decimal.Decimal `json:"loanAmount"`
	Tenure           int             `json:"tenure"`
	InterestRate     decimal.Decimal `json:"interestRate"`
	MonthlyRepayment decimal.Decimal `json:"monthlyRepayment"`
	EMIsPaidOnTime   int             `json:"emisPaidOnTime"`
	StartDate        time.Time       `json:"startDate"`
	EndDate          time.Time       `json:"endDate"`
	Status           LoanStatus      `json:"loanStatus"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

func NewLoan(customerID int64, amount decimal.Decimal, annualInterestRate decimal.Decimal, tenureMonths int, startDate time.Time) (*Loan, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: loan amount must be greater than zero", apperrors.ErrInvalidArgument)
	}
	if tenureMonths <= 0 {
		return nil, fmt.Errorf("%w: tenure must be a positive number of months", apperrors.ErrInvalidArgument)
	}
	if annualInterestRate.IsNegative() {
		return nil, fmt.Errorf("%w: interest rate cannot be negative", apperrors.ErrInvalidArgument)
	}
	if startDate.IsZero() {
		startDate = time.Now().Truncate(24 * time.Hour)
	}

	return &Loan{
		CustomerID:       customerID,
		LoanAmount:       amount,
		Tenure:           tenureMonths,
		InterestRate:     annualInterestRate,
		MonthlyRepayment: CalculateEMI(amount, annualInterestRate, tenureMonths),
		EMIsPaidOnTime:   0,
		StartDate:        startDate,
		EndDate:          startDate.AddDate(0, tenureMonths, 0),
		Status:           StatusActive,
	}, nil
}

func (l *Loan) RepaymentsLeft() int {
	left := l.Tenure - l.EMIsPaidOnTime
	if left < 0 {
		return 0
	}
	return left
}

// CalculateEMI returns the equated monthly installment under compound-interest
// amortization: P * m * (1+m)^n / ((1+m)^n - 1), with m the monthly rate.
// All results are rounded to 2 decimals, halves away from zero. The zero-rate
// branch rounds too, one uniform policy across every path.
func CalculateEMI(principal, annualInterestRate decimal.Decimal, tenureMonths int) decimal.Decimal {
	if tenureMonths <= 0 {
		return decimal.Zero
	}
	months := decimal.NewFromInt(int64(tenureMonths))

	if annualInterestRate.IsZero() {
		return principal.Div(months).Round(2)
	}

	monthlyRate := annualInterestRate.Div(twelve).Div(hundred)
	factor, err := one.Add(monthlyRate).PowInt32(int32(tenureMonths))
	if err != nil {
		// PowInt32 only fails for 0^negative, unreachable with a positive
		// tenure; fall back to the simple split anyway.
		return principal.Div(months).Round(2)
	}

	denominator := factor.Sub(one)
	if denominator.IsZero() {
		// Extreme precision loss with a tiny monthly rate; treat as
		// interest-free rather than dividing by zero.
		return principal.Div(months).Round(2)
	}

	return principal.Mul(monthlyRate).Mul(factor).Div(denominator).Round(2)
}
