package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/inventory/internal/domain/inventory"
	"github.com/erp/inventory/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// SweepRecorder receives sweep outcomes, typically telemetry.InventoryMetrics
type SweepRecorder interface {
	RecordSweep(ctx context.Context, elapsed time.Duration, expired int, failed bool)
}

// SweepResult summarises one expiration sweep
type SweepResult struct {
	Scanned   int
	Expired   int
	Refreshed int
	Failed    int
}

// ExpirationSweepService marks AVAILABLE batches past their expiration date
// as EXPIRED and re-raises expiration alerts for batches inside the warning
// window. It runs as a scheduler job.
type ExpirationSweepService struct {
	stocks   *StockService
	repo     inventory.StockRepository
	recorder SweepRecorder
	now      func() time.Time
	logger   *zap.Logger
}

// NewExpirationSweepService creates a new ExpirationSweepService
func NewExpirationSweepService(stocks *StockService, repo inventory.StockRepository, logger *zap.Logger) *ExpirationSweepService {
	return &ExpirationSweepService{
		stocks: stocks,
		repo:   repo,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger.Named("expiration_sweep"),
	}
}

// WithRecorder sets where sweep outcomes are reported
func (s *ExpirationSweepService) WithRecorder(recorder SweepRecorder) *ExpirationSweepService {
	s.recorder = recorder
	return s
}

// Run implements scheduler.Job
func (s *ExpirationSweepService) Run(ctx context.Context) error {
	_, err := s.Sweep(ctx)
	return err
}

// Sweep processes every stock holding an AVAILABLE batch that expires within
// the warning window. One failing stock does not stop the others; their
// errors are joined into the returned error.
func (s *ExpirationSweepService) Sweep(ctx context.Context) (SweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "stock", "expiration_sweep")
	defer span.End()

	start := time.Now()
	now := s.now()
	var result SweepResult

	ids, err := s.repo.FindIDsWithAvailableBatchesExpiringBefore(ctx, now.Add(inventory.ExpirationWarningWindow))
	if err != nil {
		telemetry.RecordError(span, err)
		s.record(ctx, start, result, true)
		return result, fmt.Errorf("failed to find expiring stocks: %w", err)
	}

	var errs []error
	for _, id := range ids {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		result.Scanned++

		expired, err := s.sweepStock(ctx, id, now)
		if err != nil {
			result.Failed++
			errs = append(errs, fmt.Errorf("stock %s: %w", id, err))
			s.logger.Error("Failed to sweep stock", zap.String("stock_id", id.String()), zap.Error(err))
			continue
		}
		if expired > 0 {
			result.Expired += expired
		} else {
			result.Refreshed++
		}
	}

	span.SetAttributes(
		attribute.Int("sweep.scanned", result.Scanned),
		attribute.Int("sweep.expired", result.Expired),
		attribute.Int("sweep.failed", result.Failed),
	)
	joined := errors.Join(errs...)
	if joined != nil {
		telemetry.RecordError(span, joined)
	}
	s.record(ctx, start, result, joined != nil)

	s.logger.Info("Expiration sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("expired_batches", result.Expired),
		zap.Int("refreshed", result.Refreshed),
		zap.Int("failed", result.Failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, joined
}

// sweepStock expires overdue batches of one stock, or only re-evaluates its
// alerts when nothing is overdue. Returns the number of batches expired.
func (s *ExpirationSweepService) sweepStock(ctx context.Context, id uuid.UUID, now time.Time) (int, error) {
	expired := 0
	_, err := s.stocks.mutate(ctx, id, "expire_batches", func(stock *inventory.Stock) error {
		expired = 0
		overdue := stock.ExpiredAvailableBatches(now)
		if len(overdue) == 0 {
			stock.RefreshAlerts()
			return nil
		}
		status := inventory.BatchStatusExpired
		for _, batchNumber := range overdue {
			if err := stock.UpdateBatch(batchNumber, inventory.BatchChanges{
				Status: &status,
				Reason: "expired",
			}); err != nil {
				return err
			}
			expired++
		}
		return nil
	})
	return expired, err
}

func (s *ExpirationSweepService) record(ctx context.Context, start time.Time, result SweepResult, failed bool) {
	if s.recorder != nil {
		s.recorder.RecordSweep(ctx, time.Since(start), result.Expired, failed)
	}
}
