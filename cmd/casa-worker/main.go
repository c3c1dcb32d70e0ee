package main

import (
	"context"
	"errors"
	"os"

	"casa/internal/amqp"
	"casa/internal/backend"
	"casa/internal/cli"
	"casa/internal/config"
	applog "casa/internal/log"
	"casa/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting casa-worker")

	cfg := cli.LoadAndValidateConfig(logger)
	if cfg.DataBackend != config.BackendSQLite {
		logger.Error("The export worker reads the shared SQLite store; set DATA_BACKEND=sqlite",
			"backend", cfg.DataBackend)
		os.Exit(1)
	}

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	factory := backend.NewFactory(logger.WithComponent(applog.ComponentSheets).Slog())
	exporter, err := factory.CreateExporter(context.Background(), backendCfg)
	if err != nil {
		logger.Error("Failed to initialize exporter", applog.FieldError, err)
		os.Exit(1)
	}

	exportWorker := worker.NewExportWorker(repo, exporter, cfg.SyncBatchSize)
	processor := worker.NewProcessor(exportWorker, worker.ProcessorConfig{PollInterval: cfg.SyncInterval})

	// Events are optional: without a broker the pending sweep does all the work.
	var events *amqp.Client
	if cfg.AMQPURL != "" {
		events, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, relying on the pending sweep", applog.FieldError, err)
			events = nil
		}
	} else {
		logger.Info("No AMQP_URL configured, relying on the pending sweep")
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := processor.Stop(ctx); err != nil {
			logger.Warn("Export processor stop failed", applog.FieldError, err)
		}
		if events != nil {
			if err := events.Close(); err != nil {
				logger.Warn("AMQP close failed", applog.FieldError, err)
			}
		}
		if err := repo.Close(); err != nil {
			logger.Warn("SQLite close failed", applog.FieldError, err)
		}
	})

	logger.Info("Performing startup export check...", applog.FieldOperation, applog.OpStartup)
	if err := exportWorker.StartupCheck(ctx); err != nil {
		logger.Error("Startup export check failed", applog.FieldError, err)
	}

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start export processor", applog.FieldError, err)
		os.Exit(1)
	}

	if events != nil {
		go func() {
			err := events.ConsumeEvents(ctx, exportWorker.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption stopped", applog.FieldError, err)
			}
		}()
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
