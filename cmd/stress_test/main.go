package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/rl1809/inventory-occ/internal/adapter/storage"
	"github.com/rl1809/inventory-occ/internal/adapter/telemetry"
	"github.com/rl1809/inventory-occ/internal/config"
	"github.com/rl1809/inventory-occ/internal/core/domain"
	"github.com/rl1809/inventory-occ/internal/core/service"
	"github.com/rl1809/inventory-occ/internal/tracing"
)

func main() {
	boot := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}
	logger, err := cfg.Log.Logger(os.Stderr)
	if err != nil {
		boot.Fatal().Err(err).Msg("invalid configuration")
	}

	if err := run(context.Background(), cfg, logger, os.Stdout); err != nil {
		logger.Error().Err(err).Msg("stress test failed")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger zerolog.Logger, out io.Writer) error {
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("provision %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close()

	if cfg.Sale.SeedStock >= 0 {
		seed := domain.Inventory{ID: cfg.Sale.InventoryID, Stock: cfg.Sale.SeedStock}
		if err := store.CreateInventory(ctx, seed); err != nil {
			return fmt.Errorf("seed inventory %d: %w", seed.ID, err)
		}
		logger.Info().Int64("inventory_id", seed.ID).Int64("stock", seed.Stock).Msg("seeded inventory")
	}

	opts := []service.Option{service.WithObserver(telemetry.NewLogObserver(logger))}
	if cfg.Tracing.Enabled() {
		tp, err := tracing.InitTracerProvider(ctx, cfg.Tracing)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("tracer shutdown")
			}
		}()
		opts = append(opts, service.WithTracerProvider(tp))
	}
	sellService := service.NewSellService(store, opts...)

	start := time.Now()
	report, err := sellService.Simulate(ctx, domain.SimulationConfig{
		InventoryID:    cfg.Sale.InventoryID,
		Attempts:       cfg.Sale.Attempts,
		Pace:           cfg.Sale.Pace,
		AttemptTimeout: cfg.Sale.AttemptTimeout,
	})
	if err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	elapsed := time.Since(start)

	fmt.Fprintln(out, "========== SELL RESULTS ==========")
	fmt.Fprintf(out, "Driver:             %s\n", store.Driver)
	fmt.Fprintf(out, "Inventory ID:       %d\n", cfg.Sale.InventoryID)
	fmt.Fprintf(out, "Attempts:           %d\n", len(report.Results))
	for _, o := range domain.Outcomes {
		fmt.Fprintf(out, "%-20s%d\n", string(o)+":", report.Count(o))
	}
	fmt.Fprintf(out, "Duration:           %v\n", elapsed)
	fmt.Fprintln(out, "==================================")

	if report.Final == nil {
		fmt.Fprintf(out, "Final inventory:    not found\n")
		return nil
	}
	fmt.Fprintf(out, "Final inventory:    %+v\n", *report.Final)
	return nil
}
