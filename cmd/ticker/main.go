// ticker drives the engine's price series by calling its tick endpoint on
// a cron schedule.
// Usage: go run ./cmd/ticker --config configs/engine.local.yaml
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/emission-engine/internal/api"
	"github.com/rickgao/emission-engine/internal/config"
	"github.com/rickgao/emission-engine/internal/logging"
	"github.com/rickgao/emission-engine/internal/trigger"
	"github.com/rickgao/emission-engine/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/engine.local.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err == nil {
		err = cfg.ValidateTrigger()
	}
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		slog.Error("failed to create logger", "error", err)
		os.Exit(1)
	}
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("starting ticker",
		"version", version.Version,
		"commit", version.Commit,
		"url", cfg.Trigger.URL,
		"schedule", cfg.Trigger.Schedule,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	client := api.NewClient(
		cfg.Trigger.URL,
		"",
		api.WithLogger(logger),
		api.WithTimeout(cfg.Trigger.Timeout),
		api.WithRetries(cfg.Trigger.MaxRetries, 250*time.Millisecond),
	)

	// Wait for the engine before scheduling, so startup order does not matter.
	for {
		err := client.Health(ctx)
		if err == nil {
			break
		}
		logger.Warn("engine not reachable yet", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}

	sched, err := trigger.New(trigger.Config{
		Schedule: cfg.Trigger.Schedule,
		Timeout:  cfg.Trigger.Timeout * time.Duration(cfg.Trigger.MaxRetries+1),
	}, client, logger)
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := sched.Stop(shutdownCtx); err != nil {
		logger.Warn("scheduler did not stop cleanly", "error", err)
	}

	logger.Info("ticker stopped")
}
