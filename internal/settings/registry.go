package settings

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

// Source reads the raw setting overrides.
type Source interface {
	Settings(ctx context.Context) (map[string]string, error)
}

// Config holds Registry configuration.
type Config struct {
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{RefreshInterval: 30 * time.Second}
}

// Snapshot is one consistent view of the tunable knobs.
type Snapshot struct {
	Price     price.Config
	Mining    model.MiningConfig
	Overrides int // Keys applied on top of the baseline
	LoadedAt  time.Time
}

// Registry serves the current Snapshot.
type Registry struct {
	cfg        Config
	source     Source
	basePrice  price.Config
	baseMining model.MiningConfig
	now        func() time.Time
	logger     *slog.Logger

	current atomic.Pointer[Snapshot]
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRegistry creates a Registry whose baseline is the file configuration.
func NewRegistry(cfg Config, source Source, basePrice price.Config, baseMining model.MiningConfig, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultConfig().RefreshInterval
	}

	r := &Registry{
		cfg:        cfg,
		source:     source,
		basePrice:  basePrice,
		baseMining: baseMining,
		now:        time.Now,
		logger:     logger,
	}
	r.current.Store(&Snapshot{Price: basePrice, Mining: baseMining})
	return r
}

// Start loads the overrides once and keeps them fresh in the background.
// A failed initial load is logged and the baseline stays in effect.
func (r *Registry) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	if err := r.Refresh(r.ctx); err != nil {
		r.logger.Warn("initial settings load failed, using file configuration", "error", err)
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.refreshLoop(r.ctx)
	}()

	snap := r.Snapshot()
	r.logger.Info("settings registry started",
		"overrides", snap.Overrides,
		"refresh_interval", r.cfg.RefreshInterval,
	)
	return nil
}

// Stop gracefully shuts down.
func (r *Registry) Stop(ctx context.Context) error {
	if r.cancel != nil {
		r.cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("settings registry stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Snapshot returns the current knobs.
func (r *Registry) Snapshot() Snapshot {
	return *r.current.Load()
}

// Price returns the current price engine configuration.
func (r *Registry) Price() price.Config {
	return r.Snapshot().Price
}

// Mining returns the current claim schedule.
func (r *Registry) Mining() model.MiningConfig {
	return r.Snapshot().Mining
}

// MiningConfig implements mining.ConfigSource. A snapshot older than two
// refresh intervals is reloaded first; if that fails the stale snapshot
// is served.
func (r *Registry) MiningConfig(ctx context.Context) (model.MiningConfig, error) {
	snap := r.Snapshot()
	if r.now().Sub(snap.LoadedAt) > 2*r.cfg.RefreshInterval {
		if err := r.Refresh(ctx); err != nil {
			r.logger.Warn("settings refresh failed, serving stale snapshot", "error", err)
		}
		snap = r.Snapshot()
	}
	return snap.Mining, nil
}

// Refresh reloads the overrides. Concurrent calls share one read.
func (r *Registry) Refresh(ctx context.Context) error {
	_, err, _ := r.group.Do("refresh", func() (any, error) {
		raw, err := r.source.Settings(ctx)
		if err != nil {
			return nil, fmt.Errorf("read settings: %w", err)
		}

		snap := r.apply(raw)
		r.current.Store(&snap)
		return nil, nil
	})
	return err
}

func (r *Registry) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Warn("settings refresh failed, keeping last snapshot", "error", err)
			}
		}
	}
}

// apply overlays raw on the baseline.
func (r *Registry) apply(raw map[string]string) Snapshot {
	snap := Snapshot{
		Price:    r.basePrice,
		Mining:   r.baseMining,
		LoadedAt: r.now(),
	}

	for key, value := range raw {
		setter, ok := setters[key]
		if !ok {
			r.logger.Warn("ignoring unknown setting", "key", key)
			continue
		}
		if err := setter(&snap, value); err != nil {
			r.logger.Warn("ignoring invalid setting", "key", key, "value", value, "error", err)
			continue
		}
		snap.Overrides++
	}
	return snap
}
