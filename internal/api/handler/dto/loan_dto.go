package dto

import (
	"fmt"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type LoanEligibilityRequest struct {
	CustomerID   int64           `json:"customer_id"`
	LoanAmount   decimal.Decimal `json:"loan_amount"`
	InterestRate decimal.Decimal `json:"interest_rate"`
	Tenure       int             `json:"tenure"`
}

func (r *LoanEligibilityRequest) Validate() error {
	if r.CustomerID <= 0 {
		return fmt.Errorf("customer_id must be a positive number")
	}
	if !r.LoanAmount.IsPositive() {
		return fmt.Errorf("loan_amount must be greater than zero")
	}
	if r.InterestRate.IsNegative() {
		return fmt.Errorf("interest_rate cannot be negative")
	}
	if r.Tenure <= 0 {
		return fmt.Errorf("tenure must be a positive number of months")
	}
	return nil
}

type EligibilityResponse struct {
	CustomerID            int64  `json:"customer_id"`
	Approval              bool   `json:"approval"`
	InterestRate          string `json:"interest_rate"`
	CorrectedInterestRate string `json:"corrected_interest_rate"`
	Tenure                int    `json:"tenure"`
	MonthlyInstallment    string `json:"monthly_installment"`
}

func NewEligibilityResponse(res *loan.EligibilityResult) EligibilityResponse {
	return EligibilityResponse{
		CustomerID:            res.CustomerID,
		Approval:              res.Approval,
		InterestRate:          res.InterestRate.StringFixed(2),
		CorrectedInterestRate: res.CorrectedInterestRate.StringFixed(2),
		Tenure:                res.Tenure,
		MonthlyInstallment:    res.MonthlyInstallment.StringFixed(2),
	}
}

type CreateLoanResponse struct {
	LoanID             *int64 `json:"loan_id"`
	CustomerID         int64  `json:"customer_id"`
	LoanApproved       bool   `json:"loan_approved"`
	Message            string `json:"message"`
	MonthlyInstallment string `json:"monthly_installment"`
}

func NewCreateLoanResponse(res *loan.IssuanceResult) CreateLoanResponse {
	return CreateLoanResponse{
		LoanID:             res.LoanID,
		CustomerID:         res.CustomerID,
		LoanApproved:       res.Approved,
		Message:            res.Message,
		MonthlyInstallment: res.MonthlyInstallment.StringFixed(2),
	}
}

type LoanDetailResponse struct {
	LoanID           int64                   `json:"loan_id"`
	Customer         CustomerSummaryResponse `json:"customer"`
	LoanAmount       string                  `json:"loan_amount"`
	InterestRate     string                  `json:"interest_rate"`
	MonthlyRepayment string                  `json:"monthly_repayment"`
	Tenure           int                     `json:"tenure"`
}

func NewLoanDetailResponse(l *loan.Loan, cust *customer.Customer) LoanDetailResponse {
	return LoanDetailResponse{
		LoanID: l.ID,
		Customer: CustomerSummaryResponse{
			CustomerID:  cust.CustomerID,
			FirstName:   cust.FirstName,
			LastName:    cust.LastName,
			PhoneNumber: cust.PhoneNumber,
			Age:         cust.Age,
		},
		LoanAmount:       l.LoanAmount.StringFixed(2),
		InterestRate:     l.InterestRate.StringFixed(2),
		MonthlyRepayment: l.MonthlyRepayment.StringFixed(2),
		Tenure:           l.Tenure,
	}
}

type CustomerLoanItemResponse struct {
	LoanID           int64  `json:"loan_id"`
	LoanAmount       string `json:"loan_amount"`
	InterestRate     string `json:"interest_rate"`
	MonthlyRepayment string `json:"monthly_repayment"`
	RepaymentsLeft   int    `json:"repayments_left"`
}

func NewCustomerLoanItemResponse(l *loan.Loan) CustomerLoanItemResponse {
	return CustomerLoanItemResponse{
		LoanID:           l.ID,
		LoanAmount:       l.LoanAmount.StringFixed(2),
		InterestRate:     l.InterestRate.StringFixed(2),
		MonthlyRepayment: l.MonthlyRepayment.StringFixed(2),
		RepaymentsLeft:   l.RepaymentsLeft(),
	}
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}
