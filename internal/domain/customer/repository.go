package customer

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("customer not found")

	ErrDuplicatePhoneNumber = errors.New("phone number already registered")
)

type CustomerRepository interface {
	Save(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID int64) (*Customer, error)

	FindByPhoneNumber(ctx context.Context, phoneNumber string) (*Customer, error)

	// Import inserts a customer with an explicit ID, skipping rows that
	// already exist. Used only by the offline ingestion job.
	Import(ctx context.Context, customer *Customer) error
}
