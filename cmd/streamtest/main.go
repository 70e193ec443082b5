// streamtest connects to the engine's live price feed and prints ticks.
// Usage: go run ./cmd/streamtest --url ws://localhost:8080/api/price/stream
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rickgao/emission-engine/internal/api"
	"github.com/rickgao/emission-engine/internal/feed"
)

func main() {
	url := flag.String("url", "ws://localhost:8080/api/price/stream", "feed URL")
	verbose := flag.Bool("verbose", false, "print full tick JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cfg := feed.DefaultSubscriberConfig()
	cfg.URL = *url
	sub := feed.NewSubscriber(cfg, logger)
	if err := sub.Start(ctx); err != nil {
		logger.Error("failed to start subscriber", "error", err)
		os.Exit(1)
	}

	go printTicks(sub.Ticks(), *verbose)

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				st := sub.Stats()
				logger.Info("stats",
					"received", st.Received,
					"dropped", st.Dropped,
					"reconnects", st.Reconnects,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	sub.Stop(shutdownCtx)

	logger.Info("shutdown complete")
}

func printTicks(ticks <-chan api.TickResponse, verbose bool) {
	for tick := range ticks {
		if verbose {
			data, _ := json.MarshalIndent(tick, "", "  ")
			fmt.Printf("[TICK] %s\n", data)
			continue
		}
		fmt.Printf("[TICK] %s price=%s change=%s%% expected=%s target=%s progress=%.3f\n",
			tick.Timestamp.Format(time.TimeOnly), tick.Price, tick.ChangePercent,
			tick.ExpectedPrice, tick.TargetPrice, tick.ProgressRatio)
	}
}
