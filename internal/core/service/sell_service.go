package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/port"
)

const tracerName = "github.com/rl1809/inventory-occ/internal/core/service"

var ErrInvalidConfig = errors.New("invalid simulation config")

type SellService struct {
	repo     port.InventoryRepository
	observer port.SaleObserver
	tracer   trace.Tracer
}

type Option func(*SellService)

func WithObserver(o port.SaleObserver) Option {
	return func(s *SellService) {
		if o != nil {
			s.observer = o
		}
	}
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *SellService) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

func NewSellService(repo port.InventoryRepository, opts ...Option) *SellService {
	s := &SellService{
		repo:     repo,
		observer: nopObserver{},
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sell runs one attempt: read the record inside a fresh transactional scope,
// reject an empty stock, then decrement only if the version read is still
// current. A conflicting writer makes the update match zero rows and the
// attempt gives up without retrying. The scope is rolled back on every path
// that does not commit.
func (s *SellService) Sell(ctx context.Context, index int, id int64) domain.AttemptResult {
	start := time.Now()
	res := domain.AttemptResult{
		Index:       index,
		AttemptID:   uuid.NewString(),
		InventoryID: id,
	}

	ctx, span := s.tracer.Start(ctx, "inventory.sell", trace.WithAttributes(
		attribute.Int("sell.attempt", index),
		attribute.String("sell.attempt_id", res.AttemptID),
		attribute.Int64("inventory.id", id),
	))
	defer span.End()

	res.Outcome, res.Observed, res.Err = s.sell(ctx, index, res.AttemptID, id)
	res.Duration = time.Since(start)

	span.SetAttributes(attribute.String("sell.outcome", string(res.Outcome)))
	if res.Observed != nil {
		span.SetAttributes(
			attribute.Int64("inventory.observed_stock", res.Observed.Stock),
			attribute.Int64("inventory.observed_version", res.Observed.Version),
		)
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
	}

	s.observer.Finished(res)
	return res
}

func (s *SellService) sell(ctx context.Context, index int, attemptID string, id int64) (domain.Outcome, *domain.Inventory, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return domain.OutcomeStoreError, nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	inv, err := tx.GetInventory(ctx, id)
	if err != nil {
		return domain.OutcomeStoreError, nil, fmt.Errorf("read inventory %d: %w", id, err)
	}
	if inv == nil {
		return domain.OutcomeNotFound, nil, nil
	}

	s.observer.Observed(index, attemptID, *inv)

	if !inv.HasStock() {
		return domain.OutcomeInsufficientStock, inv, nil
	}

	rows, err := tx.DecrementStock(ctx, id, inv.Version)
	if err != nil {
		return domain.OutcomeStoreError, inv, fmt.Errorf("decrement inventory %d at version %d: %w", id, inv.Version, err)
	}
	switch {
	case rows == 0:
		return domain.OutcomeVersionConflict, inv, nil
	case rows > 1:
		return domain.OutcomeStoreError, inv, fmt.Errorf("decrement inventory %d: %d rows affected", id, rows)
	}

	if err := tx.Commit(); err != nil {
		return domain.OutcomeStoreError, inv, fmt.Errorf("commit inventory %d: %w", id, err)
	}

	return domain.OutcomeCommitted, inv, nil
}

// Simulate launches cfg.Attempts concurrent sells against one record, waits
// for all of them and reads the settled record. Attempt failures stay in the
// report; only a failed final read is returned as an error.
func (s *SellService) Simulate(ctx context.Context, cfg domain.SimulationConfig) (domain.SimulationReport, error) {
	if cfg.Attempts <= 0 {
		return domain.SimulationReport{}, fmt.Errorf("%w: attempts must be positive, got %d", ErrInvalidConfig, cfg.Attempts)
	}
	if cfg.Pace < 0 || cfg.AttemptTimeout < 0 {
		return domain.SimulationReport{}, fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}

	results := make([]domain.AttemptResult, cfg.Attempts)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Attempts; i++ {
		if i > 0 && cfg.Pace > 0 {
			pace(ctx, cfg.Pace)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.attempt(ctx, i, cfg)
		}()
	}
	wg.Wait()

	report := domain.SimulationReport{Results: results}
	report.Committed = report.Count(domain.OutcomeCommitted)

	final, err := s.repo.GetInventory(ctx, cfg.InventoryID)
	if err != nil {
		return report, fmt.Errorf("read final inventory %d: %w", cfg.InventoryID, err)
	}
	report.Final = final

	return report, nil
}

func (s *SellService) attempt(ctx context.Context, index int, cfg domain.SimulationConfig) domain.AttemptResult {
	if cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.AttemptTimeout)
		defer cancel()
	}
	return s.Sell(ctx, index, cfg.InventoryID)
}

// GetInventory returns the committed record, nil if absent.
func (s *SellService) GetInventory(ctx context.Context, id int64) (*domain.Inventory, error) {
	inv, err := s.repo.GetInventory(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("read inventory %d: %w", id, err)
	}
	return inv, nil
}

func pace(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

type nopObserver struct{}

func (nopObserver) Observed(int, string, domain.Inventory) {}
func (nopObserver) Finished(domain.AttemptResult)          {}
