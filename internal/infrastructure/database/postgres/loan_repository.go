package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/infrastructure/monitoring"
	"credit-engine/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Acquire(ctx context.Context) (*pgxpool.Conn, error)
	Close()
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var errMsgFormat = "%w: %w"

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Commit(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

const loanColumns = `id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, loan_status, created_at, updated_at`

// CreateLoan inserts the loan row and bumps the owning customer's
// current_debt in one transaction; either both land or neither does.
func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	loanSQL := `
        INSERT INTO loans (customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, loan_status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
        RETURNING ` + loanColumns

	var created loan.Loan
	err = tx.QueryRow(ctx, loanSQL,
		newLoan.CustomerID, newLoan.LoanAmount, newLoan.Tenure, newLoan.InterestRate,
		newLoan.MonthlyRepayment, newLoan.EMIsPaidOnTime, newLoan.StartDate,
		newLoan.EndDate, newLoan.Status,
	).Scan(
		&created.ID, &created.CustomerID, &created.LoanAmount, &created.Tenure,
		&created.InterestRate, &created.MonthlyRepayment, &created.EMIsPaidOnTime,
		&created.StartDate, &created.EndDate, &created.Status,
		&created.CreatedAt, &created.UpdatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID)

	debtSQL := `
        UPDATE customers
        SET current_debt = current_debt + $1, updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := tx.Exec(ctx, debtSQL, created.LoanAmount, created.CustomerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update customer debt", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to update customer debt: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.ErrorContext(ctx, "Debt update affected zero rows, customer missing", slog.Int64("customerID", created.CustomerID))
		return nil, fmt.Errorf("%w: customer %d not found while updating debt", apperrors.ErrConflict, created.CustomerID)
	}

	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}

	return &created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var l loan.Loan
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&l.ID, &l.CustomerID, &l.LoanAmount, &l.Tenure,
		&l.InterestRate, &l.MonthlyRepayment, &l.EMIsPaidOnTime,
		&l.StartDate, &l.EndDate, &l.Status, &l.CreatedAt, &l.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return &l, nil
}

func (r *LoanRepository) ListLoansByCustomer(ctx context.Context, customerID int64) ([]loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1
        ORDER BY id ASC`
	return r.queryLoans(ctx, "ListLoansByCustomer", query, customerID)
}

func (r *LoanRepository) ListActiveLoansByCustomer(ctx context.Context, customerID int64) ([]loan.Loan, error) {
	query := `
        SELECT ` + loanColumns + `
        FROM loans
        WHERE customer_id = $1 AND loan_status = 'active'
        ORDER BY id ASC`
	return r.queryLoans(ctx, "ListActiveLoansByCustomer", query, customerID)
}

func (r *LoanRepository) queryLoans(ctx context.Context, queryName, query string, args ...any) ([]loan.Loan, error) {
	status := "success"
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		monitoring.RecordDBQuery(queryName, "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query loans", "query_name", queryName, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]loan.Loan, 0)
	for rows.Next() {
		var l loan.Loan
		err := rows.Scan(
			&l.ID, &l.CustomerID, &l.LoanAmount, &l.Tenure,
			&l.InterestRate, &l.MonthlyRepayment, &l.EMIsPaidOnTime,
			&l.StartDate, &l.EndDate, &l.Status, &l.CreatedAt, &l.UpdatedAt,
		)
		if err != nil {
			monitoring.RecordDBQuery(queryName, "error", time.Since(startTime))
			r.logger.ErrorContext(ctx, "Failed to scan loan row", "query_name", queryName, "error", err)
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		loans = append(loans, l)
	}

	if err = rows.Err(); err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery(queryName, status, time.Since(startTime))

	if err != nil {
		r.logger.ErrorContext(ctx, "Error iterating loan rows", "query_name", queryName, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	return loans, nil
}

func (r *LoanRepository) GetMaturedActiveLoanIDs(ctx context.Context, asOf time.Time) ([]int64, error) {
	logCtx := r.logger.With(slog.String("operation", "GetMaturedActiveLoanIDs"))
	logCtx.DebugContext(ctx, "Fetching matured active loan IDs")

	query := `SELECT id FROM loans WHERE loan_status = $1 AND end_date < $2 ORDER BY id`

	rows, err := r.db.Query(ctx, query, loan.StatusActive, asOf)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to query matured loans", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query matured loans: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loanIDs := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			logCtx.ErrorContext(ctx, "Failed to scan matured loan ID row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed scanning matured loan ID: %w", apperrors.ErrDatabase, err)
		}
		loanIDs = append(loanIDs, id)
	}

	if err = rows.Err(); err != nil {
		logCtx.ErrorContext(ctx, "Error iterating matured loan ID rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating matured loan IDs: %w", apperrors.ErrDatabase, err)
	}

	logCtx.DebugContext(ctx, "Finished fetching matured loan IDs", slog.Int("count", len(loanIDs)))
	return loanIDs, nil
}

func (r *LoanRepository) MarkLoanPaid(ctx context.Context, loanID int64) error {
	sql := `UPDATE loans SET loan_status = $1, updated_at = NOW() WHERE id = $2 AND loan_status = $3`
	cmdTag, err := r.db.Exec(ctx, sql, loan.StatusPaid, loanID, loan.StatusActive)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to mark loan paid", "loan_id", loanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() != 1 {
		r.logger.WarnContext(ctx, "Loan already settled or missing", "loan_id", loanID)
		return apperrors.ErrNotFound
	}
	r.logger.InfoContext(ctx, "Loan marked paid in DB", "loan_id", loanID)
	return nil
}

func (r *LoanRepository) Import(ctx context.Context, l *loan.Loan) error {
	if l == nil || l.ID == 0 {
		return fmt.Errorf("%w: imported loan must carry an explicit ID", apperrors.ErrInvalidArgument)
	}

	query := `
        INSERT INTO loans (id, customer_id, loan_amount, tenure, interest_rate, monthly_repayment, emis_paid_on_time, start_date, end_date, loan_status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
        ON CONFLICT (id) DO NOTHING`

	_, err := r.db.Exec(ctx, query,
		l.ID, l.CustomerID, l.LoanAmount, l.Tenure, l.InterestRate,
		l.MonthlyRepayment, l.EMIsPaidOnTime, l.StartDate, l.EndDate, l.Status,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to import loan", "loan_id", l.ID, "error", err)
		return translateDBError(err, r.logger)
	}
	return nil
}
