package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"casa/internal/aggregate"
	"casa/internal/backend"
	"casa/internal/cache"
	"casa/internal/cli"
	"casa/internal/core"
	apphttp "casa/internal/http"
	applog "casa/internal/log"
	"casa/internal/services"
)

const cacheCleanupInterval = time.Minute

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}

	factory := backend.NewFactory(logger.WithComponent(applog.ComponentBackend).Slog())
	be, err := factory.CreateBackend(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	ledgerCache := cache.NewLRUCache[[]core.Transaction](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager(logger.WithComponent(applog.ComponentCache).Slog())
	cacheManager.Register(ledgerCache)
	cacheManager.StartCleanup(cacheCleanupInterval)

	srv, err := apphttp.NewServer(apphttp.Config{
		Addr: ":" + cfg.Port,
		Summary: aggregate.Options{
			RecentDays: cfg.RecentWindowDays,
			Months:     cfg.TrendMonths,
			TopN:       cfg.TopCategories,
		},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     cfg.TrustedProxies,
	}, apphttp.Dependencies{
		Ledger:     services.NewLedgerService(be.Store, be.Publisher, ledgerCache),
		Households: services.NewHouseholdService(be.Store),
		Pinger:     be.Store,
		Logger:     logger,
	})
	if err != nil {
		logger.Error("Failed to configure HTTP server", applog.FieldError, err)
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", applog.FieldError, err)
		}
		cacheManager.Stop()
		if err := be.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", applog.FieldError, err)
		}
	})

	logger.Info("Starting casa server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", be.Publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
