package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"credit-engine/internal/domain/loan"
	"credit-engine/internal/pkg/apperrors"
)

// UpdateMaturityJob marks active loans whose end date has passed as paid,
// so they stop counting against a customer's EMI burden and current debt
// is not inflated by loans that have run their full tenure.
type UpdateMaturityJob struct {
	loanRepo loan.Repository
	logger   *slog.Logger
}

func NewUpdateMaturityJob(loanRepo loan.Repository, logger *slog.Logger) *UpdateMaturityJob {
	if loanRepo == nil || logger == nil {
		panic("UpdateMaturityJob dependencies cannot be nil")
	}
	return &UpdateMaturityJob{
		loanRepo: loanRepo,
		logger:   logger.With("job", "UpdateMaturity"),
	}
}

func (j *UpdateMaturityJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting loan maturity update job.")

	maturedLoanIDs, err := j.loanRepo.GetMaturedActiveLoanIDs(ctx, startTime)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to get matured loan IDs, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to get matured loans: %w", err)
	}
	j.logger.InfoContext(ctx, "Fetched matured active loan IDs.", slog.Int("count", len(maturedLoanIDs)))

	if len(maturedLoanIDs) == 0 {
		j.logger.InfoContext(ctx, "No matured loans found to process.", slog.Duration("duration", time.Since(startTime)))
		return nil
	}

	var wg sync.WaitGroup
	var updatedCount, errorCount int32

	for _, loanID := range maturedLoanIDs {
		wg.Add(1)
		go func(currentLoanID int64) {
			defer wg.Done()

			logCtx := j.logger.With(slog.Int64("loanID", currentLoanID))
			if markErr := j.loanRepo.MarkLoanPaid(ctx, currentLoanID); markErr != nil {
				if errors.Is(markErr, apperrors.ErrNotFound) {
					logCtx.WarnContext(ctx, "Loan no longer active during maturity update (already settled?)", slog.Any("error", markErr))
				} else {
					logCtx.ErrorContext(ctx, "Failed to mark loan as paid", slog.Any("error", markErr))
					atomic.AddInt32(&errorCount, 1)
				}
				return
			}
			logCtx.InfoContext(ctx, "Loan marked as paid.")
			atomic.AddInt32(&updatedCount, 1)
		}(loanID)
	}

	wg.Wait()
	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("matured_loans", len(maturedLoanIDs)),
		slog.Int("loans_updated", int(atomic.LoadInt32(&updatedCount))),
		slog.Int("errors_encountered", int(atomic.LoadInt32(&errorCount))),
	)
	if errorCount > 0 {
		summaryLog.WarnContext(ctx, "Loan maturity update job finished with errors.")
		return fmt.Errorf("job completed with %d errors", errorCount)
	}
	summaryLog.InfoContext(ctx, "Loan maturity update job finished successfully.")
	return nil
}
