// archiver uploads one closed trading day of ticks to S3 as Parquet.
// Usage: go run ./cmd/archiver --config configs/engine.local.yaml [--date 2024-03-10]
//
// Without --date the most recently closed trading day is archived.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/rickgao/emission-engine/internal/archive"
	"github.com/rickgao/emission-engine/internal/config"
	"github.com/rickgao/emission-engine/internal/database"
	"github.com/rickgao/emission-engine/internal/ledger"
	"github.com/rickgao/emission-engine/internal/logging"
	"github.com/rickgao/emission-engine/internal/tradingday"
)

func main() {
	configPath := flag.String("config", "configs/engine.local.yaml", "path to config file")
	date := flag.String("date", "", "trading day to archive (YYYY-MM-DD)")
	timeout := flag.Duration("timeout", 5*time.Minute, "overall deadline")
	flag.Parse()

	if err := run(*configPath, *date, *timeout); err != nil {
		slog.Error("archive failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath, date string, timeout time.Duration) error {
	cfg, err := config.LoadWithDefaults(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.ValidateArchive(); err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("archiver needs the postgres driver, got %q", cfg.Database.Driver)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer closer.Close()

	resetHour := *cfg.Price.ResetHour
	ref, err := referenceDate(date, time.Now(), resetHour)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	pool, err := database.Open(ctx, cfg.Database.Postgres)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer pool.Close()

	uploader, err := archive.NewS3Uploader(ctx, cfg.Archive)
	if err != nil {
		return err
	}

	store := ledger.NewPG(pool.PG, logger)
	archiver := archive.NewArchiver(store, uploader, cfg.Archive.Prefix, cfg.Archive.Compression, logger)

	res, err := archiver.ArchiveDay(ctx, ref)
	if err != nil {
		return err
	}

	logger.Info("trading day archived",
		"reference_date", ref.Format(time.DateOnly),
		"bucket", cfg.Archive.Bucket,
		"key", res.Key,
		"rows", res.Rows,
		"bytes", res.Bytes,
	)
	return nil
}

// referenceDate parses date, defaulting to the day before the current
// trading day.
func referenceDate(date string, now time.Time, resetHour int) (time.Time, error) {
	if date == "" {
		return tradingday.ReferenceDate(now, resetHour).AddDate(0, 0, -1), nil
	}
	ref, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse --date: %w", err)
	}
	return ref, nil
}
