package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"credit-engine/internal/batch"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockLoanRepository struct {
	mock.Mock
}

func (m *MockLoanRepository) CreateLoan(ctx context.Context, l *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, l)
	if created, ok := args.Get(0).(*loan.Loan); ok {
		return created, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListLoansByCustomer(ctx context.Context, customerID int64) ([]loan.Loan, error) {
	args := m.Called(ctx, customerID)
	if loans, ok := args.Get(0).([]loan.Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) ListActiveLoansByCustomer(ctx context.Context, customerID int64) ([]loan.Loan, error) {
	args := m.Called(ctx, customerID)
	if loans, ok := args.Get(0).([]loan.Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) GetMaturedActiveLoanIDs(ctx context.Context, asOf time.Time) ([]int64, error) {
	args := m.Called(ctx, asOf)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanRepository) MarkLoanPaid(ctx context.Context, loanID int64) error {
	return m.Called(ctx, loanID).Error(0)
}

func (m *MockLoanRepository) Import(ctx context.Context, l *loan.Loan) error {
	return m.Called(ctx, l).Error(0)
}

func TestUpdateMaturityJobRun(t *testing.T) {
	ctx := context.Background()

	t.Run("marks every matured loan as paid", func(t *testing.T) {
		repo := new(MockLoanRepository)
		repo.On("GetMaturedActiveLoanIDs", mock.Anything, mock.Anything).Return([]int64{3, 9}, nil)
		repo.On("MarkLoanPaid", mock.Anything, int64(3)).Return(nil)
		repo.On("MarkLoanPaid", mock.Anything, int64(9)).Return(nil)

		job := batch.NewUpdateMaturityJob(repo, testLogger)
		assert.NoError(t, job.Run(ctx))
		repo.AssertExpectations(t)
	})

	t.Run("no matured loans is a no-op", func(t *testing.T) {
		repo := new(MockLoanRepository)
		repo.On("GetMaturedActiveLoanIDs", mock.Anything, mock.Anything).Return([]int64{}, nil)

		job := batch.NewUpdateMaturityJob(repo, testLogger)
		assert.NoError(t, job.Run(ctx))
		repo.AssertNotCalled(t, "MarkLoanPaid", mock.Anything, mock.Anything)
	})

	t.Run("aborts when the matured lookup fails", func(t *testing.T) {
		repo := new(MockLoanRepository)
		repo.On("GetMaturedActiveLoanIDs", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

		job := batch.NewUpdateMaturityJob(repo, testLogger)
		assert.Error(t, job.Run(ctx))
	})

	t.Run("a loan settled concurrently is not an error", func(t *testing.T) {
		repo := new(MockLoanRepository)
		repo.On("GetMaturedActiveLoanIDs", mock.Anything, mock.Anything).Return([]int64{3}, nil)
		repo.On("MarkLoanPaid", mock.Anything, int64(3)).Return(apperrors.ErrNotFound)

		job := batch.NewUpdateMaturityJob(repo, testLogger)
		assert.NoError(t, job.Run(ctx))
	})

	t.Run("update failures are reported after processing all loans", func(t *testing.T) {
		repo := new(MockLoanRepository)
		repo.On("GetMaturedActiveLoanIDs", mock.Anything, mock.Anything).Return([]int64{3, 9}, nil)
		repo.On("MarkLoanPaid", mock.Anything, int64(3)).Return(errors.New("deadlock"))
		repo.On("MarkLoanPaid", mock.Anything, int64(9)).Return(nil)

		job := batch.NewUpdateMaturityJob(repo, testLogger)
		err := job.Run(ctx)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "1 errors")
		repo.AssertExpectations(t)
	})
}
