package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/emission-engine/internal/auth"
	"github.com/rickgao/emission-engine/internal/commission"
	"github.com/rickgao/emission-engine/internal/config"
	"github.com/rickgao/emission-engine/internal/feed"
	"github.com/rickgao/emission-engine/internal/ledger"
	"github.com/rickgao/emission-engine/internal/logging"
	"github.com/rickgao/emission-engine/internal/metrics"
	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/price"
	"github.com/rickgao/emission-engine/internal/server"
	"github.com/rickgao/emission-engine/internal/settings"
	"github.com/rickgao/emission-engine/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/engine.local.yaml", "path to config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("engine failed", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting engine",
		"version", version.Version,
		"commit", version.Commit,
		"config", configPath,
		"instance_id", cfg.Instance.ID,
		"driver", cfg.Database.Driver,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	m := metrics.New()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	priceCfg := priceConfig(cfg.Price)
	miningCfg := miningConfig(cfg.Mining)

	// Settings registry
	registry := settings.NewRegistry(
		settings.Config{RefreshInterval: cfg.Settings.RefreshInterval},
		st.ledger, priceCfg, miningCfg, logger,
	)
	if err := registry.Start(ctx); err != nil {
		return fmt.Errorf("start settings registry: %w", err)
	}
	defer stopWithTimeout(logger, "settings registry", registry.Stop)

	// Live feed
	hub := feed.NewHub(feed.Config{
		PingInterval:   cfg.Feed.PingInterval,
		WriteTimeout:   cfg.Feed.WriteTimeout,
		SendBuffer:     cfg.Feed.SendBuffer,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, m.SetFeedClients, logger)
	defer hub.Close()

	engine := price.NewEngine(priceCfg, st.ledger, st.ledger, logger,
		price.WithConfigFunc(registry.Price),
		price.WithObserver(m),
		price.WithObserver(hub),
	)

	// Commission dispatcher
	miningOpts := []mining.Option{
		mining.WithCalculator(calculator(cfg.Mining)),
		mining.WithDefaults(miningCfg),
		mining.WithTimeout(cfg.Mining.Timeout),
		mining.WithObserver(m),
	}
	switch {
	case !cfg.Commission.Enabled:
		logger.Info("referral commission disabled")
	case st.procedures == nil:
		logger.Warn("referral commission needs the postgres driver, disabling")
	default:
		dispatcher := commission.NewDispatcher(commission.Config{
			Workers:   cfg.Commission.Workers,
			QueueSize: cfg.Commission.QueueSize,
			Timeout:   cfg.Commission.Timeout,
		}, st.procedures, m, logger)
		if err := dispatcher.Start(ctx); err != nil {
			return fmt.Errorf("start commission dispatcher: %w", err)
		}
		defer stopWithTimeout(logger, "commission dispatcher", dispatcher.Stop)
		miningOpts = append(miningOpts, mining.WithNotifier(dispatcher))
	}

	referrals := ledger.NewReferralCache(st.ledger, cfg.Mining.ReferralCacheSize, cfg.Mining.ReferralCacheTTL)
	controller := mining.NewController(st.ledger, registry, referrals, logger, miningOpts...)

	if supply, err := controller.Supply(ctx); err == nil {
		m.SetRemainingSupply(supply.Remaining())
	} else {
		logger.Warn("initial supply read failed", "error", err)
	}

	verifier, err := auth.NewVerifier(cfg.Auth)
	if err != nil {
		return fmt.Errorf("create token verifier: %w", err)
	}

	deps := server.Deps{
		Price:   engine,
		Mining:  controller,
		Auth:    verifier,
		Feed:    hub,
		Metrics: m,
	}
	if st.procedures != nil {
		deps.Procedures = st.procedures
	}
	if st.health != nil {
		deps.Health = st.health
	}

	handler := server.New(server.Config{
		MaxHistory:     cfg.Server.MaxHistory,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit.RequestsPerSecond,
		RateBurst:      cfg.Server.RateLimit.Burst,
	}, deps, logger)

	apiServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle(cfg.Metrics.Path, m.Handler())
	metricsServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting api server", "port", cfg.Server.Port)
		return listen(apiServer)
	})
	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		return listen(metricsServer)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		hub.Close()
		return errors.Join(
			apiServer.Shutdown(shutdownCtx),
			metricsServer.Shutdown(shutdownCtx),
		)
	})

	logger.Info("engine running",
		"instance_id", cfg.Instance.ID,
		"api_url", fmt.Sprintf("http://localhost:%d", cfg.Server.Port),
		"metrics_url", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("engine stopped")
	return nil
}

// listen serves until Shutdown. A failed bind ends the process.
func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	return nil
}

func stopWithTimeout(logger *slog.Logger, name string, stop func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := stop(ctx); err != nil {
		logger.Warn("component did not stop cleanly", "component", name, "error", err)
	}
}
