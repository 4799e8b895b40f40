package loan

import (
	"context"
	"time"
)

type Repository interface {
	// CreateLoan inserts the loan row and increments the owning customer's
	// current_debt by the loan amount in a single transaction.
	CreateLoan(ctx context.Context, loan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	ListLoansByCustomer(ctx context.Context, customerID int64) ([]Loan, error)

	ListActiveLoansByCustomer(ctx context.Context, customerID int64) ([]Loan, error)

	GetMaturedActiveLoanIDs(ctx context.Context, asOf time.Time) ([]int64, error)

	MarkLoanPaid(ctx context.Context, loanID int64) error

	// Import inserts a loan row as-is with its historical installment and
	// dates, skipping duplicates. Used only by the offline ingestion job.
	Import(ctx context.Context, loan *Loan) error
}
