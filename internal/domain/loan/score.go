package loan

import (
	"time"

	"credit-engine/internal/domain/customer"

	"github.com/shopspring/decimal"
)

var (
	halfRatio      = decimal.NewFromFloat(0.50)
	goodRatio      = decimal.NewFromFloat(0.70)
	volumeMultiple = decimal.NewFromFloat(1.5)
)

// CalculateCreditScore derives a 0-100 risk score from the customer's full
// loan history. It is a pure function of its inputs; callers re-query the
// history on every evaluation rather than caching a score anywhere.
//
// Deductions are independent and cumulative, except the active-volume rule
// which overrides the running total to zero outright.
func CalculateCreditScore(cust *customer.Customer, history []Loan, now time.Time) int {
	score := 100

	var totalEMIsPaid, totalTenure, loansThisYear int
	totalAmount := decimal.Zero
	activeAmount := decimal.Zero
	for _, l := range history {
		totalEMIsPaid += l.EMIsPaidOnTime
		totalTenure += l.Tenure
		if l.StartDate.Year() == now.Year() {
			loansThisYear++
		}
		totalAmount = totalAmount.Add(l.LoanAmount)
		if l.Status == StatusActive {
			activeAmount = activeAmount.Add(l.LoanAmount)
		}
	}

	// Past EMIs paid on time, as a share of all scheduled installments.
	if totalTenure > 0 {
		onTimeRatio := decimal.NewFromInt(int64(totalEMIsPaid)).Div(decimal.NewFromInt(int64(totalTenure)))
		switch {
		case onTimeRatio.LessThan(halfRatio):
			score -= 10
		case onTimeRatio.LessThan(goodRatio):
			score -= 5
		}
	}

	// Number of loans ever taken.
	switch count := len(history); {
	case count > 5:
		score -= 10
	case count > 2:
		score -= 5
	}

	// High recent activity.
	if loansThisYear > 2 {
		score -= 8
	}

	if cust.ApprovedLimit.IsPositive() {
		// Total approved volume well beyond the limit.
		if totalAmount.GreaterThan(cust.ApprovedLimit.Mul(volumeMultiple)) {
			score -= 15
		}
		// Active principal exceeding the limit zeroes the score outright.
		if activeAmount.GreaterThan(cust.ApprovedLimit) {
			score = 0
		}
	}

	if score < 0 {
		score = 0
	}
	return score
}
