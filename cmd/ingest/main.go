package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/PratikDhanave/telemetry-ingest-service/internal/config"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/ingest"
	"github.com/PratikDhanave/telemetry-ingest-service/internal/store"
)

// main ingests one file synchronously and exits non-zero on failure.
func main() {
	file := flag.String("file", "", "path of the file to ingest (local path or s3://bucket/key)")
	migrate := flag.Bool("migrate", true, "apply schema migrations before loading")
	flag.Parse()

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: ingest -file <path>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	cfg, err := config.LoadIngest()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}
	logger := config.SetupLogger(cfg)

	if err := run(cfg, logger, *file, *migrate); err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger, path string, migrate bool) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if migrate {
		if err := store.Migrate(cfg.DBURL, logger); err != nil {
			return err
		}
	}

	db, err := store.NewPostgresStore(ctx, cfg.DBURL, logger.With("component", "store"))
	if err != nil {
		return err
	}
	defer db.Close()

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
	pipeline := ingest.NewPipeline(opener, loader, locker, logger.With("component", "ingest"),
		ingest.WithDelimiter(cfg.CSVDelimiter))

	report, err := pipeline.Run(ctx, path)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d rows, %d decoded, %d skipped, %d inserted in %s\n",
		report.RunID, report.Rows, report.Decoded, report.Skipped, report.Inserted, report.Duration)
	return nil
}
