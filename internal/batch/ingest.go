package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"credit-engine/internal/domain/customer"
	"credit-engine/internal/domain/loan"

	"github.com/shopspring/decimal"
)

// Ingestor loads historical customer and loan records from CSV exports.
// Rows that cannot be parsed are logged and skipped; already imported rows
// are skipped silently by the repositories.
type Ingestor struct {
	customerRepo customer.CustomerRepository
	loanRepo     loan.Repository
	logger       *slog.Logger
}

func NewIngestor(customerRepo customer.CustomerRepository, loanRepo loan.Repository, logger *slog.Logger) *Ingestor {
	if customerRepo == nil || loanRepo == nil || logger == nil {
		panic("Ingestor dependencies cannot be nil")
	}
	return &Ingestor{
		customerRepo: customerRepo,
		loanRepo:     loanRepo,
		logger:       logger.With("job", "Ingest"),
	}
}

// csvRow is one record keyed by normalized header name.
type csvRow map[string]string

func (r csvRow) int64Field(name string) (int64, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(r[name]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, r[name])
	}
	return v, nil
}

func (r csvRow) intField(name string) (int, error) {
	v, err := r.int64Field(name)
	return int(v), err
}

func (r csvRow) decimalField(name string) (decimal.Decimal, error) {
	v, err := decimal.NewFromString(strings.TrimSpace(r[name]))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q", name, r[name])
	}
	return v, nil
}

// dateField accepts the two formats seen in the source exports.
func (r csvRow) dateField(name string) (time.Time, error) {
	raw := strings.TrimSpace(r[name])
	if raw == "" {
		return time.Time{}, fmt.Errorf("missing %s", name)
	}
	for _, layout := range []string{"2006-01-02", "1/2/2006"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable %s %q", name, raw)
}

// normalizeHeader lowercases the column name and joins words with underscores,
// so "Monthly Salary" and "monthly_salary" map to the same key.
func normalizeHeader(name string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
}

func readRows(path string, required []string) ([]csvRow, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}
	columns := make([]string, len(header))
	for i, name := range header {
		columns[i] = normalizeHeader(name)
	}

	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}
	for _, col := range required {
		if !present[col] {
			return nil, fmt.Errorf("missing column %q in %s", col, path)
		}
	}

	var rows []csvRow
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		row := make(csvRow, len(columns))
		for i, value := range record {
			if i < len(columns) {
				row[columns[i]] = value
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// IngestCustomers imports customers with their original IDs. The approved
// limit is re-derived from the salary rather than trusted from the file, and
// current debt starts at zero; debt is rebuilt from the loans the service
// issues, not the historical export.
func (i *Ingestor) IngestCustomers(ctx context.Context, path string) (int, error) {
	required := []string{"customer_id", "first_name", "last_name", "phone_number", "monthly_salary", "age"}
	rows, err := readRows(path, required)
	if err != nil {
		return 0, err
	}

	imported := 0
	for n, row := range rows {
		logCtx := i.logger.With(slog.Int("row", n+2))

		customerID, err := row.int64Field("customer_id")
		if err != nil || customerID == 0 {
			logCtx.WarnContext(ctx, "Skipping customer row with invalid customer_id", slog.String("value", row["customer_id"]))
			continue
		}
		logCtx = logCtx.With(slog.Int64("customerID", customerID))

		salary, err := row.decimalField("monthly_salary")
		if err != nil {
			logCtx.WarnContext(ctx, "Skipping customer row", slog.Any("error", err))
			continue
		}
		age, err := row.intField("age")
		if err != nil {
			logCtx.WarnContext(ctx, "Skipping customer row", slog.Any("error", err))
			continue
		}

		cust := customer.NewCustomer(
			strings.TrimSpace(row["first_name"]),
			strings.TrimSpace(row["last_name"]),
			age,
			strings.TrimSpace(row["phone_number"]),
			salary,
		)
		cust.CustomerID = customerID

		if err := i.customerRepo.Import(ctx, cust); err != nil {
			logCtx.ErrorContext(ctx, "Failed to import customer", slog.Any("error", err))
			continue
		}
		imported++
	}

	i.logger.InfoContext(ctx, "Customer ingestion finished.",
		slog.Int("rows", len(rows)), slog.Int("imported", imported))
	return imported, nil
}

// IngestLoans imports historical loans as-is, keeping the recorded monthly
// payment and dates instead of recomputing them. Loans referencing unknown
// customers are skipped.
func (i *Ingestor) IngestLoans(ctx context.Context, path string) (int, error) {
	required := []string{"customer_id", "loan_id", "loan_amount", "tenure",
		"interest_rate", "monthly_payment", "emis_paid_on_time", "date_of_approval", "end_date"}
	rows, err := readRows(path, required)
	if err != nil {
		return 0, err
	}

	imported := 0
	for n, row := range rows {
		logCtx := i.logger.With(slog.Int("row", n+2))

		loanID, err := row.int64Field("loan_id")
		if err != nil || loanID == 0 {
			logCtx.WarnContext(ctx, "Skipping loan row with invalid loan_id", slog.String("value", row["loan_id"]))
			continue
		}
		logCtx = logCtx.With(slog.Int64("loanID", loanID))

		customerID, err := row.int64Field("customer_id")
		if err != nil || customerID == 0 {
			logCtx.WarnContext(ctx, "Skipping loan row with invalid customer_id", slog.String("value", row["customer_id"]))
			continue
		}

		if _, err := i.customerRepo.FindByID(ctx, customerID); err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				logCtx.WarnContext(ctx, "Skipping loan for unknown customer", slog.Int64("customerID", customerID))
				continue
			}
			return imported, fmt.Errorf("lookup customer %d: %w", customerID, err)
		}

		amount, amountErr := row.decimalField("loan_amount")
		rate, rateErr := row.decimalField("interest_rate")
		payment, paymentErr := row.decimalField("monthly_payment")
		tenure, tenureErr := row.intField("tenure")
		emisPaid, emisErr := row.intField("emis_paid_on_time")
		if err := errors.Join(amountErr, rateErr, paymentErr, tenureErr, emisErr); err != nil {
			logCtx.WarnContext(ctx, "Skipping loan row", slog.Any("error", err))
			continue
		}

		startDate, err := row.dateField("date_of_approval")
		if err != nil {
			logCtx.WarnContext(ctx, "Skipping loan row", slog.Any("error", err))
			continue
		}
		endDate, err := row.dateField("end_date")
		if err != nil {
			logCtx.WarnContext(ctx, "Skipping loan row", slog.Any("error", err))
			continue
		}

		l := &loan.Loan{
			ID:               loanID,
			CustomerID:       customerID,
			LoanAmount:       amount,
			Tenure:           tenure,
			InterestRate:     rate,
			MonthlyRepayment: payment,
			EMIsPaidOnTime:   emisPaid,
			StartDate:        startDate,
			EndDate:          endDate,
			Status:           loan.StatusActive,
		}

		if err := i.loanRepo.Import(ctx, l); err != nil {
			logCtx.ErrorContext(ctx, "Failed to import loan", slog.Any("error", err))
			continue
		}
		imported++
	}

	i.logger.InfoContext(ctx, "Loan ingestion finished.",
		slog.Int("rows", len(rows)), slog.Int("imported", imported))
	return imported, nil
}
