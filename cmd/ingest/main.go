package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"credit-engine/internal/batch"
	"credit-engine/internal/config"
	"credit-engine/internal/infrastructure/database/postgres"
	"credit-engine/internal/infrastructure/logging"
)

// Offline loader for the historical customer and loan CSV exports. Runs once
// and exits; safe to re-run, already imported rows are skipped.
func main() {
	customerFile := flag.String("customers", "", "path to the customer CSV export (overrides config)")
	loanFile := flag.String("loans", "", "path to the loan CSV export (overrides config)")
	flag.Parse()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	if *customerFile == "" {
		*customerFile = cfg.Ingest.CustomerFile
	}
	if *loanFile == "" {
		*loanFile = cfg.Ingest.LoanFile
	}

	ctx := context.Background()
	dbPool, err := postgres.NewConnectionPool(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("Failed to initialize database connection pool", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	ingestor := batch.NewIngestor(
		postgres.NewCustomerRepository(dbPool, logger),
		postgres.NewLoanRepository(dbPool, logger),
		logger,
	)

	customers, err := ingestor.IngestCustomers(ctx, *customerFile)
	if err != nil {
		logger.Error("Customer ingestion failed", "file", *customerFile, "error", err)
		os.Exit(1)
	}
	logger.Info("Customer ingestion complete", "file", *customerFile, "imported", customers)

	loans, err := ingestor.IngestLoans(ctx, *loanFile)
	if err != nil {
		logger.Error("Loan ingestion failed", "file", *loanFile, "error", err)
		os.Exit(1)
	}
	logger.Info("Loan ingestion complete", "file", *loanFile, "imported", loans)
}
