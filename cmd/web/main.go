package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"sales-explorer/internal/config"
	"sales-explorer/internal/loader"
	"sales-explorer/internal/middleware"
	"sales-explorer/internal/observability"
	"sales-explorer/internal/server"
	"sales-explorer/internal/services"
	"sales-explorer/internal/session"
)

const seedLoadTimeout = 30 * time.Second

func newStore(cfg *config.Config, ld *loader.Loader, logger *slog.Logger) *session.Store {
	opts := services.Options{
		PreviewRows:  cfg.Dashboard.PreviewRows,
		ScatterLimit: cfg.Dashboard.ScatterLimit,
	}
	return session.NewStore(cfg.Session.MaxSessions, cfg.Session.TTL, func() *services.Analytics {
		return services.NewAnalytics(ld, opts).WithLogger(logger)
	})
}

// loadSeed loads the configured seed file so new sessions start with data.
func loadSeed(ctx context.Context, store *session.Store, ld *loader.Loader, path string, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, seedLoadTimeout)
	defer cancel()

	start := time.Now()
	ds, err := ld.LoadFile(ctx, path)
	if err != nil {
		return err
	}
	store.SetSeed(ds)

	logger.Info("seed dataset loaded",
		"file", ds.Name,
		"records", ds.Len(),
		"skipped", ds.Skipped,
		"duration", time.Since(start),
	)
	return nil
}

func newHandler(cfg *config.Config, store *session.Store, logger *slog.Logger) http.Handler {
	srv := server.NewServer(store, cfg, logger)

	rateLimiter := middleware.NewRateLimiter(cfg.Security)

	middlewareChain := middleware.Chain(
		middleware.Recovery(logger),
		middleware.RequestID(),
		middleware.Logger(logger),
		middleware.Tracing(),
		middleware.SecurityHeaders(),
		middleware.CORS(cfg.Security),
		middleware.TrustedProxy(cfg.Security),
		middleware.RateLimit(rateLimiter, logger),
		middleware.BodyLimit(cfg.Upload.MaxBytes),
	)

	return middlewareChain(srv)
}

func main() {
	// A missing .env is fine; the environment alone can configure everything.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Logger)
	slog.SetDefault(logger)

	logger.Info("starting application",
		"version", "1.0.0",
		"config", cfg,
	)

	ld := loader.New(cfg.Upload.ParseWorkers)
	store := newStore(cfg, ld, logger)

	if cfg.Dashboard.SeedFile != "" {
		if err := loadSeed(context.Background(), store, ld, cfg.Dashboard.SeedFile, logger); err != nil {
			logger.Error("failed to load seed dataset", "file", cfg.Dashboard.SeedFile, "error", err)
			os.Exit(1)
		}
	}

	sweeper, err := session.NewSweeper(store, cfg.Session.SweepSchedule, logger)
	if err != nil {
		logger.Error("failed to schedule session sweeper", "error", err)
		os.Exit(1)
	}
	sweeper.Start()

	httpServer := &http.Server{
		Addr:         cfg.Address(),
		Handler:      newHandler(cfg, store, logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	gracefulServer := server.NewGracefulServer(httpServer, logger, cfg)

	gracefulServer.RegisterShutdownHook(func(ctx context.Context) error {
		logger.Info("stopping session sweeper", "active_sessions", store.Size())
		return sweeper.Stop(ctx)
	})

	logger.Info("starting graceful server")
	if err := gracefulServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("application stopped gracefully")
}
