package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"credit-engine/internal/event"

	"github.com/shopspring/decimal"
)

const customerNotFound = "Customer not found by repository"

type CustomerService interface {
	RegisterCustomer(ctx context.Context, firstName, lastName string, age int, phoneNumber string, monthlyIncome decimal.Decimal) (*Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*Customer, error)
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	if eventPublisher == nil {
		eventPublisher = event.NoopPublisher{}
	}

	return &customerService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "customerService")),
	}
}

func (s *customerService) RegisterCustomer(ctx context.Context, firstName, lastName string, age int, phoneNumber string, monthlyIncome decimal.Decimal) (*Customer, error) {
	logCtx := s.logger.With(slog.String("phoneNumber", phoneNumber))
	logCtx.InfoContext(ctx, "Attempting to register new customer")

	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	phoneNumber = strings.TrimSpace(phoneNumber)
	if firstName == "" {
		logCtx.WarnContext(ctx, "Validation failed: first name is empty")
		return nil, errors.New("first name cannot be empty")
	}
	if lastName == "" {
		logCtx.WarnContext(ctx, "Validation failed: last name is empty")
		return nil, errors.New("last name cannot be empty")
	}
	if phoneNumber == "" {
		logCtx.WarnContext(ctx, "Validation failed: phone number is empty")
		return nil, errors.New("phone number cannot be empty")
	}
	if age <= 0 {
		logCtx.WarnContext(ctx, "Validation failed: age must be positive", slog.Int("age", age))
		return nil, errors.New("age must be a positive number")
	}
	if !monthlyIncome.IsPositive() {
		logCtx.WarnContext(ctx, "Validation failed: monthly income must be positive")
		return nil, errors.New("monthly income must be greater than zero")
	}

	cust := NewCustomer(firstName, lastName, age, phoneNumber, monthlyIncome)
	logCtx.InfoContext(ctx, "Customer domain object created",
		slog.String("approvedLimit", cust.ApprovedLimit.String()))

	if err := s.repo.Save(ctx, cust); err != nil {
		if errors.Is(err, ErrDuplicatePhoneNumber) {
			logCtx.WarnContext(ctx, "Phone number already registered")
			return nil, ErrDuplicatePhoneNumber
		}
		logCtx.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	logCtx = logCtx.With(slog.Int64("customerID", cust.CustomerID))
	registeredEvent := event.CustomerRegisteredEvent{
		Timestamp: time.Now(),
		Payload: event.CustomerEventPayload{
			CustomerID:    cust.CustomerID,
			Name:          cust.FullName(),
			Age:           cust.Age,
			PhoneNumber:   cust.PhoneNumber,
			MonthlySalary: cust.MonthlySalary,
			ApprovedLimit: cust.ApprovedLimit,
		},
	}
	if pubErr := s.pub.PublishCustomerRegistered(ctx, registeredEvent); pubErr != nil {
		logCtx.ErrorContext(ctx, "Customer registered, but FAILED to publish registration event", slog.Any("error", pubErr))
	} else {
		logCtx.InfoContext(ctx, "Successfully published customer registration event")
	}

	logCtx.InfoContext(ctx, "Successfully registered new customer")
	return cust, nil
}

func (s *customerService) GetCustomer(ctx context.Context, customerID int64) (*Customer, error) {
	logCtx := s.logger.With(slog.Int64("customerID", customerID))
	logCtx.InfoContext(ctx, "Attempting to get customer by ID")

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logCtx.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %d: %w", customerID, err)
	}

	logCtx.InfoContext(ctx, "Successfully retrieved customer")
	return cust, nil
}
