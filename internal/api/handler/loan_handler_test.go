package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"credit-engine/internal/api/handler/dto"
	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) CheckEligibility(ctx context.Context, customerID int64, loanAmount, interestRate decimal.Decimal, tenure int) (*loan.EligibilityResult, error) {
	args := m.Called(ctx, customerID, loanAmount, interestRate, tenure)
	if res, ok := args.Get(0).(*loan.EligibilityResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) CreateLoan(ctx context.Context, customerID int64, loanAmount, interestRate decimal.Decimal, tenure int) (*loan.IssuanceResult, error) {
	args := m.Called(ctx, customerID, loanAmount, interestRate, tenure)
	if res, ok := args.Get(0).(*loan.IssuanceResult); ok {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) GetLoan(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockLoanService) ListActiveLoans(ctx context.Context, customerID int64) ([]loan.Loan, error) {
	args := m.Called(ctx, customerID)
	if loans, ok := args.Get(0).([]loan.Loan); ok {
		return loans, args.Error(1)
	}
	return nil, args.Error(1)
}

func newLoanHandlerForTest() (*LoanHandler, *MockLoanService, *MockCustomerService) {
	loanSvc := new(MockLoanService)
	custSvc := new(MockCustomerService)
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	return NewLoanHandler(loanSvc, custSvc, logger), loanSvc, custSvc
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, &chi.Context{
		URLParams: chi.RouteParams{Keys: []string{key}, Values: []string{value}},
	}))
}

func eligibilityBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(dto.LoanEligibilityRequest{
		CustomerID:   1,
		LoanAmount:   decimal.RequireFromString("500000"),
		InterestRate: decimal.RequireFromString("10"),
		Tenure:       12,
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func TestLoanHandlerCheckEligibility(t *testing.T) {
	t.Run("returns the eligibility decision", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("CheckEligibility", mock.Anything, int64(1), mock.Anything, mock.Anything, 12).
			Return(&loan.EligibilityResult{
				CustomerID:            1,
				Approval:              true,
				InterestRate:          decimal.RequireFromString("10"),
				CorrectedInterestRate: decimal.RequireFromString("12.00"),
				Tenure:                12,
				MonthlyInstallment:    decimal.RequireFromString("44424.39"),
			}, nil)

		req := httptest.NewRequest(http.MethodPost, "/check-eligibility", eligibilityBody(t))
		rec := httptest.NewRecorder()
		handler.CheckEligibility(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.EligibilityResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.True(t, resp.Approval)
		assert.Equal(t, "12.00", resp.CorrectedInterestRate)
		assert.Equal(t, "44424.39", resp.MonthlyInstallment)
		loanSvc.AssertExpectations(t)
	})

	t.Run("rejects malformed JSON", func(t *testing.T) {
		handler, _, _ := newLoanHandlerForTest()

		req := httptest.NewRequest(http.MethodPost, "/check-eligibility", bytes.NewReader([]byte("not json")))
		rec := httptest.NewRecorder()
		handler.CheckEligibility(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("rejects an invalid payload", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()

		body, _ := json.Marshal(dto.LoanEligibilityRequest{CustomerID: 1, Tenure: 12})
		req := httptest.NewRequest(http.MethodPost, "/check-eligibility", bytes.NewReader(body))
		rec := httptest.NewRecorder()
		handler.CheckEligibility(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		loanSvc.AssertNotCalled(t, "CheckEligibility", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("maps unknown customer to 404", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("CheckEligibility", mock.Anything, int64(1), mock.Anything, mock.Anything, 12).
			Return(nil, apperrors.ErrNotFound)

		req := httptest.NewRequest(http.MethodPost, "/check-eligibility", eligibilityBody(t))
		rec := httptest.NewRecorder()
		handler.CheckEligibility(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestLoanHandlerCreateLoan(t *testing.T) {
	t.Run("issued loan responds 201 with the new ID", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanID := int64(42)
		loanSvc.On("CreateLoan", mock.Anything, int64(1), mock.Anything, mock.Anything, 12).
			Return(&loan.IssuanceResult{
				LoanID:             &loanID,
				CustomerID:         1,
				Approved:           true,
				Message:            "Loan approved successfully",
				MonthlyInstallment: decimal.RequireFromString("44424.39"),
			}, nil)

		req := httptest.NewRequest(http.MethodPost, "/create-loan", eligibilityBody(t))
		rec := httptest.NewRecorder()
		handler.CreateLoan(rec, req)

		assert.Equal(t, http.StatusCreated, rec.Code)
		var resp dto.CreateLoanResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.NotNil(t, resp.LoanID)
		assert.Equal(t, int64(42), *resp.LoanID)
		assert.True(t, resp.LoanApproved)
	})

	t.Run("rejected loan responds 200 with a null ID", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("CreateLoan", mock.Anything, int64(1), mock.Anything, mock.Anything, 12).
			Return(&loan.IssuanceResult{
				CustomerID:         1,
				Approved:           false,
				Message:            "Loan not approved based on eligibility criteria",
				MonthlyInstallment: decimal.Zero,
			}, nil)

		req := httptest.NewRequest(http.MethodPost, "/create-loan", eligibilityBody(t))
		rec := httptest.NewRecorder()
		handler.CreateLoan(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.CreateLoanResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Nil(t, resp.LoanID)
		assert.False(t, resp.LoanApproved)
		assert.Equal(t, "Loan not approved based on eligibility criteria", resp.Message)
	})
}

func TestLoanHandlerViewLoan(t *testing.T) {
	t.Run("returns the loan with its customer", func(t *testing.T) {
		handler, loanSvc, custSvc := newLoanHandlerForTest()
		loanSvc.On("GetLoan", mock.Anything, int64(42)).Return(&loan.Loan{
			ID:               42,
			CustomerID:       1,
			LoanAmount:       decimal.RequireFromString("500000"),
			Tenure:           12,
			InterestRate:     decimal.RequireFromString("12.00"),
			MonthlyRepayment: decimal.RequireFromString("44424.39"),
			StartDate:        time.Now(),
		}, nil)
		custSvc.On("GetCustomer", mock.Anything, int64(1)).Return(&customer.Customer{
			CustomerID:  1,
			FirstName:   "Asha",
			LastName:    "Verma",
			PhoneNumber: "9876543210",
			Age:         34,
		}, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/view-loan/42", nil), "loanID", "42")
		rec := httptest.NewRecorder()
		handler.ViewLoan(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp dto.LoanDetailResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, int64(42), resp.LoanID)
		assert.Equal(t, "Asha", resp.Customer.FirstName)
		assert.Equal(t, "500000.00", resp.LoanAmount)
	})

	t.Run("invalid ID responds 400", func(t *testing.T) {
		handler, _, _ := newLoanHandlerForTest()

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/view-loan/abc", nil), "loanID", "abc")
		rec := httptest.NewRecorder()
		handler.ViewLoan(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("missing loan responds 404", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("GetLoan", mock.Anything, int64(9)).Return(nil, apperrors.ErrNotFound)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/view-loan/9", nil), "loanID", "9")
		rec := httptest.NewRecorder()
		handler.ViewLoan(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		var resp dto.ErrorResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "Resource not found.", resp.Error.Message)
	})
}

func TestLoanHandlerViewCustomerLoans(t *testing.T) {
	t.Run("lists active loans with repayments left", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("ListActiveLoans", mock.Anything, int64(1)).Return([]loan.Loan{
			{
				ID:               42,
				LoanAmount:       decimal.RequireFromString("500000"),
				InterestRate:     decimal.RequireFromString("12.00"),
				MonthlyRepayment: decimal.RequireFromString("44424.39"),
				Tenure:           12,
				EMIsPaidOnTime:   4,
			},
		}, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/view-loans/1", nil), "customerID", "1")
		rec := httptest.NewRecorder()
		handler.ViewCustomerLoans(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp []dto.CustomerLoanItemResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		require.Len(t, resp, 1)
		assert.Equal(t, 8, resp[0].RepaymentsLeft)
	})

	t.Run("no loans yields an empty JSON array", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("ListActiveLoans", mock.Anything, int64(1)).Return([]loan.Loan{}, nil)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/view-loans/1", nil), "customerID", "1")
		rec := httptest.NewRecorder()
		handler.ViewCustomerLoans(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("missing customer responds 404", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("ListActiveLoans", mock.Anything, int64(5)).Return(nil, apperrors.ErrNotFound)

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/view-loans/5", nil), "customerID", "5")
		rec := httptest.NewRecorder()
		handler.ViewCustomerLoans(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("unexpected errors respond 500", func(t *testing.T) {
		handler, loanSvc, _ := newLoanHandlerForTest()
		loanSvc.On("ListActiveLoans", mock.Anything, int64(6)).Return(nil, errors.New("boom"))

		req := withURLParam(httptest.NewRequest(http.MethodGet, "/view-loans/6", nil), "customerID", "6")
		rec := httptest.NewRecorder()
		handler.ViewCustomerLoans(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
