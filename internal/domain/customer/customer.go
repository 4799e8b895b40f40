package customer

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApprovedLimit is fixed at registration as 36x monthly salary rounded to the
// nearest 100,000 and is never recomputed afterwards.
type Customer struct {
	CustomerID    int64           `json:"customerId"`
	FirstName     string          `json:"firstName"`
	LastName      string          `json:"lastName"`
	Age           int             `json:"age"`
	PhoneNumber   string          `json:"phoneNumber"`
	MonthlySalary decimal.Decimal `json:"monthlySalary"`
	ApprovedLimit decimal.Decimal `json:"approvedLimit"`
	CurrentDebt   decimal.Decimal `json:"currentDebt"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

var (
	limitMultiplier = decimal.NewFromInt(36)
	limitUnit       = decimal.NewFromInt(100_000)
)

func NewCustomer(firstName, lastName string, age int, phoneNumber string, monthlySalary decimal.Decimal) *Customer {
	now := time.Now()
	return &Customer{
		FirstName:     firstName,
		LastName:      lastName,
		Age:           age,
		PhoneNumber:   phoneNumber,
		MonthlySalary: monthlySalary,
		ApprovedLimit: DeriveApprovedLimit(monthlySalary),
		CurrentDebt:   decimal.Zero,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// DeriveApprovedLimit rounds 36x salary to the nearest 100,000 unit, rounding
// halves away from zero.
func DeriveApprovedLimit(monthlySalary decimal.Decimal) decimal.Decimal {
	return monthlySalary.Mul(limitMultiplier).Div(limitUnit).Round(0).Mul(limitUnit)
}

func (c *Customer) FullName() string {
	return c.FirstName + " " + c.LastName
}
