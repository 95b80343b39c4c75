package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/auth"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/httpserver"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/ingest"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/store"
)

// main boots the service: config → schema → DB → ingestion → HTTP server.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	if err := run(cfg, logger); err != nil {
		logger.Error("service stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Apply migrations so `docker compose up --build` is enough.
	if err := store.Migrate(cfg.DBURL, logger); err != nil {
		return err
	}

	db, err := store.NewPostgresStore(ctx, cfg.DBURL, logger.With("component", "store"))
	if err != nil {
		return err
	}
	defer db.Close()

	var reader store.RecordReader = db
	var opts []ingest.Option
	opts = append(opts, ingest.WithDelimiter(cfg.CSVDelimiter))
	if cfg.CacheSize > 0 {
		cached := store.NewCachedReader(db, cfg.CacheSize, cfg.CacheTTL)
		reader = cached
		opts = append(opts, ingest.WithOnLoaded(func(ingest.Report) { cached.Purge() }))
	}

	opener, err := ingest.NewOpenerFromConfig(cfg, logger)
	if err != nil {
		return err
	}
	locker, closeLocker, err := ingest.NewLockerFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	loader := store.NewEventLoader(db.Pool(), logger.With("component", "loader"))
	pipeline := ingest.NewPipeline(opener, loader, locker, logger.With("component", "ingest"), opts...)
	runner := ingest.NewRunner(ctx, pipeline, logger.With("component", "ingest"))

	router := httpserver.NewRouter(httpserver.Deps{
		DB:      db,
		Reader:  reader,
		Starter: runner,
		Auth:    auth.NewAuthenticator(cfg.APIKeys, cfg.JWTSecret, logger),
		Logger:  logger.With("component", "http"),
	})

	srvErr := httpserver.New(cfg, router, logger).Run(ctx)

	// Background runs observe ctx; wait for them before closing the pool.
	stop()
	runner.Wait()
	return srvErr
}
