package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/rl1809/inventory-occ/internal/adapter/handler"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize store
	store, err := storage.Open(ctx, cfg.Store)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Store.Driver).Msg("failed to provision store")
	}
	defer store.Close()
	logger.Info().Str("driver", store.Driver).Msg("connected to store")

	if cfg.Sale.SeedStock >= 0 {
		seed := domain.Inventory{ID: cfg.Sale.InventoryID, Stock: cfg.Sale.SeedStock}
		if err := store.CreateInventory(ctx, seed); err != nil {
			logger.Warn().Err(err).Int64("inventory_id", seed.ID).Msg("seed skipped")
		} else {
			logger.Info().Int64("inventory_id", seed.ID).Int64("stock", seed.Stock).Msg("seeded inventory")
		}
	}

	// Initialize service
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	opts := []service.Option{service.WithObserver(telemetry.Observers{
		telemetry.NewLogObserver(logger),
		telemetry.NewMetrics(reg),
	})}

	// Initialize tracing
	if cfg.Tracing.Enabled() {
		tp, err := tracing.InitTracerProvider(ctx, cfg.Tracing)
		if err != nil {
			logger.Fatal().Err(err).Str("endpoint", cfg.Tracing.Endpoint).Msg("failed to init tracing")
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Error().Err(err).Msg("tracer shutdown")
			}
		}()
		opts = append(opts, service.WithTracerProvider(tp))
		logger.Info().Str("endpoint", cfg.Tracing.Endpoint).Msg("exporting traces")
	}

	sellService := service.NewSellService(store, opts...)

	// Initialize gRPC server
	grpcServer, healthServer := newGRPCServer(sellService)

	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", cfg.Server.GRPCAddr).Msg("failed to listen")
	}

	// Initialize HTTP server
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           newMux(sellService, reg, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.GRPCAddr).Msg("gRPC server listening")
		return grpcServer.Serve(lis)
	})

	g.Go(func() error {
		logger.Info().Str("addr", cfg.Server.HTTPAddr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("HTTP shutdown")
		}
		logger.Info().Msg("HTTP server stopped")

		healthServer.Shutdown()
		grpcServer.GracefulStop()
		logger.Info().Msg("gRPC server stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}
	logger.Info().Msg("connections closed")
}

func newMux(sellService *service.SellService, reg *prometheus.Registry, logger zerolog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	handler.NewHTTPHandler(sellService, logger).Register(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return mux
}

func newGRPCServer(sellService *service.SellService) (*grpc.Server, *health.Server) {
	grpcServer := grpc.NewServer()
	handler.RegisterInventoryServer(grpcServer, handler.NewGRPCHandler(sellService))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(handler.InventoryServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	return grpcServer, healthServer
}
