package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/event"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

var (
	two       = decimal.NewFromInt(2)
	rateFloor = map[string]decimal.Decimal{
		"mid": decimal.RequireFromString("12.00"),
		"low": decimal.RequireFromString("16.00"),
	}
)

// EligibilityResult mirrors the check-eligibility response: the requested rate
// is echoed back untouched and CorrectedInterestRate carries the tier floor
// when the request undercuts it.
type EligibilityResult struct {
	CustomerID            int64
	Approval              bool
	InterestRate          decimal.Decimal
	CorrectedInterestRate decimal.Decimal
	Tenure                int
	MonthlyInstallment    decimal.Decimal
}

type IssuanceResult struct {
	LoanID             *int64
	CustomerID         int64
	Approved           bool
	Message            string
	MonthlyInstallment decimal.Decimal
}

type LoanService interface {
	CheckEligibility(ctx context.Context, customerID int64, loanAmount, interestRate decimal.Decimal, tenure int) (*EligibilityResult, error)

	CreateLoan(ctx context.Context, customerID int64, loanAmount, interestRate decimal.Decimal, tenure int) (*IssuanceResult, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	ListActiveLoans(ctx context.Context, customerID int64) ([]Loan, error)
}

type loanServiceImpl struct {
	repo            Repository
	customerService customer.CustomerService
	pub             event.EventPublisher
	logger          *slog.Logger
}

func NewLoanService(r Repository, cs customer.CustomerService, pub event.EventPublisher, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NoopPublisher{}
	}
	return &loanServiceImpl{repo: r, customerService: cs, pub: pub, logger: logger}
}

func validateLoanRequest(loanAmount, interestRate decimal.Decimal, tenure int) error {
	if !loanAmount.IsPositive() {
		return apperrors.NewValidationError("loan_amount", "must be greater than zero")
	}
	if interestRate.IsNegative() {
		return apperrors.NewValidationError("interest_rate", "cannot be negative")
	}
	if tenure <= 0 {
		return apperrors.NewValidationError("tenure", "must be a positive number of months")
	}
	return nil
}

func (s *loanServiceImpl) CheckEligibility(ctx context.Context, customerID int64, loanAmount, interestRate decimal.Decimal, tenure int) (*EligibilityResult, error) {
	logCtx := s.logger.With(slog.Int64("customerID", customerID))
	logCtx.InfoContext(ctx, "Evaluating loan eligibility")

	if err := validateLoanRequest(loanAmount, interestRate, tenure); err != nil {
		return nil, err
	}

	cust, err := s.customerService.GetCustomer(ctx, customerID)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Customer not found for eligibility check")
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
		}
		logCtx.ErrorContext(ctx, "Failed to get customer details", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	result := &EligibilityResult{
		CustomerID:            customerID,
		Approval:              false,
		InterestRate:          interestRate,
		CorrectedInterestRate: interestRate,
		Tenure:                tenure,
		MonthlyInstallment:    decimal.Zero,
	}

	// Hard gate: active EMIs already eating more than half the salary reject
	// the request before any scoring happens.
	activeLoans, err := s.repo.ListActiveLoansByCustomer(ctx, customerID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to list active loans", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list active loans for customer %d: %w", customerID, err)
	}
	totalActiveEMIs := decimal.Zero
	for _, l := range activeLoans {
		totalActiveEMIs = totalActiveEMIs.Add(l.MonthlyRepayment)
	}
	if cust.MonthlySalary.IsPositive() && totalActiveEMIs.GreaterThan(cust.MonthlySalary.Div(two)) {
		logCtx.InfoContext(ctx, "Rejected: active EMIs exceed half the monthly salary",
			slog.String("totalActiveEMIs", totalActiveEMIs.String()))
		monitoring.RecordEligibilityCheck("rejected_emi_burden")
		return result, nil
	}

	// The score is recomputed from the full history on every call.
	history, err := s.repo.ListLoansByCustomer(ctx, customerID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to list loan history", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list loans for customer %d: %w", customerID, err)
	}
	score := CalculateCreditScore(cust, history, time.Now())
	monitoring.RecordCreditScore(score)
	logCtx = logCtx.With(slog.Int("creditScore", score))

	switch {
	case score > 50:
		result.Approval = true
	case score > 30:
		result.Approval = true
		if interestRate.LessThan(rateFloor["mid"]) {
			result.CorrectedInterestRate = rateFloor["mid"]
		}
	case score > 10:
		result.Approval = true
		if interestRate.LessThan(rateFloor["low"]) {
			result.CorrectedInterestRate = rateFloor["low"]
		}
	default:
		logCtx.InfoContext(ctx, "Rejected: credit score too low")
		monitoring.RecordEligibilityCheck("rejected_low_score")
		return result, nil
	}

	// Limit gate: a zero-limit customer cannot borrow at all, everyone else
	// is capped at their approved limit per request.
	if !cust.ApprovedLimit.IsPositive() {
		if loanAmount.IsPositive() {
			result.Approval = false
		}
	} else if loanAmount.GreaterThan(cust.ApprovedLimit) {
		result.Approval = false
	}
	if !result.Approval {
		logCtx.InfoContext(ctx, "Rejected: requested amount exceeds approved limit",
			slog.String("loanAmount", loanAmount.String()),
			slog.String("approvedLimit", cust.ApprovedLimit.String()))
		monitoring.RecordEligibilityCheck("rejected_over_limit")
		return result, nil
	}

	result.MonthlyInstallment = CalculateEMI(loanAmount, result.CorrectedInterestRate, tenure)
	logCtx.InfoContext(ctx, "Approved",
		slog.String("correctedInterestRate", result.CorrectedInterestRate.String()),
		slog.String("monthlyInstallment", result.MonthlyInstallment.String()))
	monitoring.RecordEligibilityCheck("approved")
	return result, nil
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, customerID int64, loanAmount, interestRate decimal.Decimal, tenure int) (*IssuanceResult, error) {
	logCtx := s.logger.With(slog.Int64("customerID", customerID))
	logCtx.InfoContext(ctx, "Processing loan creation request")

	eligibility, err := s.CheckEligibility(ctx, customerID, loanAmount, interestRate, tenure)
	if err != nil {
		return nil, err
	}

	if !eligibility.Approval {
		logCtx.InfoContext(ctx, "Loan request rejected, nothing persisted")
		return &IssuanceResult{
			LoanID:             nil,
			CustomerID:         customerID,
			Approved:           false,
			Message:            "Loan not approved based on eligibility criteria",
			MonthlyInstallment: decimal.Zero,
		}, nil
	}

	startDate := time.Now().Truncate(24 * time.Hour)

	// The installment is re-derived through the same calculator with the
	// corrected rate; identical decimal inputs keep it bit-identical to the
	// eligibility value.
	newLoan, err := NewLoan(customerID, loanAmount, eligibility.CorrectedInterestRate, tenure, startDate)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to build loan object", slog.Any("error", err))
		return nil, fmt.Errorf("failed to build loan: %w", err)
	}

	created, err := s.repo.CreateLoan(ctx, newLoan)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to persist loan", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to persist loan: %v", apperrors.ErrInternalServer, err)
	}
	monitoring.RecordLoanIssued()
	logCtx = logCtx.With(slog.Int64("loanID", created.ID))

	createdEvent := event.LoanCreatedEvent{
		Timestamp: time.Now(),
		Payload: event.LoanEventPayload{
			LoanID:             created.ID,
			CustomerID:         created.CustomerID,
			LoanAmount:         created.LoanAmount,
			Tenure:             created.Tenure,
			InterestRate:       created.InterestRate,
			MonthlyInstallment: created.MonthlyRepayment,
			StartDate:          created.StartDate,
			EndDate:            created.EndDate,
		},
	}
	if pubErr := s.pub.PublishLoanCreated(ctx, createdEvent); pubErr != nil {
		logCtx.ErrorContext(ctx, "Loan created, but FAILED to publish creation event", slog.Any("error", pubErr))
	}

	logCtx.InfoContext(ctx, "Loan created successfully")
	return &IssuanceResult{
		LoanID:             &created.ID,
		CustomerID:         customerID,
		Approved:           true,
		Message:            "Loan approved successfully",
		MonthlyInstallment: created.MonthlyRepayment,
	}, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	s.logger.InfoContext(ctx, "Getting loan", slog.Int64("loanID", loanID))
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", slog.Int64("loanID", loanID))
			return nil, fmt.Errorf("%w: loan %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to get loan", slog.Int64("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to get loan %d: %w", loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) ListActiveLoans(ctx context.Context, customerID int64) ([]Loan, error) {
	logCtx := s.logger.With(slog.Int64("customerID", customerID))
	logCtx.InfoContext(ctx, "Listing active loans for customer")

	// A missing customer is a 404; a customer with no loans is an empty list.
	if _, err := s.customerService.GetCustomer(ctx, customerID); err != nil {
		if errors.Is(err, customer.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: customer %d not found", apperrors.ErrNotFound, customerID)
		}
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	loans, err := s.repo.ListActiveLoansByCustomer(ctx, customerID)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to list active loans", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list active loans for customer %d: %w", customerID, err)
	}
	return loans, nil
}
