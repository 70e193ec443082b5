package trigger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rickgao/emission-engine/internal/api"
)

// Ticker triggers one tick.
type Ticker interface {
	TriggerTick(ctx context.Context) (*api.TickResponse, error)
}

// Config holds scheduler configuration.
type Config struct {
	Schedule string        // cron spec or descriptor (default: @every 3s)
	Timeout  time.Duration // Per-call timeout (default: 5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Schedule: "@every 3s",
		Timeout:  5 * time.Second,
	}
}

// Stats are cumulative run counters.
type Stats struct {
	Runs     int64
	Failures int64
	Skipped  int64
}

// Scheduler periodically triggers ticks.
type Scheduler struct {
	cfg      Config
	client   Ticker
	schedule cron.Schedule
	logger   *slog.Logger

	cron    *cron.Cron
	running atomic.Bool

	runs     atomic.Int64
	failures atomic.Int64
	skipped  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler. The schedule is parsed eagerly.
func New(cfg Config, client Ticker, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Schedule == "" {
		cfg.Schedule = def.Schedule
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", cfg.Schedule, err)
	}

	return &Scheduler{
		cfg:      cfg,
		client:   client,
		schedule: schedule,
		logger:   logger,
	}, nil
}

// Start triggers once and then follows the schedule.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.cron = cron.New(
		cron.WithLogger(cronLogger{s.logger}),
		cron.WithChain(cron.Recover(cronLogger{s.logger})),
	)
	s.cron.Schedule(s.schedule, cron.FuncJob(s.fire))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.fire()
	}()
	s.cron.Start()

	s.logger.Info("tick scheduler started",
		"schedule", s.cfg.Schedule,
		"timeout", s.cfg.Timeout,
	)
	return nil
}

// Stop halts the schedule and waits for an in-flight call.
func (s *Scheduler) Stop(ctx context.Context) error {
	var cronDone <-chan struct{}
	if s.cron != nil {
		cronDone = s.cron.Stop().Done()
	}
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		if cronDone != nil {
			<-cronDone
		}
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		st := s.Stats()
		s.logger.Info("tick scheduler stopped",
			"runs", st.Runs,
			"failures", st.Failures,
			"skipped", st.Skipped,
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the run counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Runs:     s.runs.Load(),
		Failures: s.failures.Load(),
		Skipped:  s.skipped.Load(),
	}
}

// fire runs one trigger unless another is still in flight.
func (s *Scheduler) fire() {
	if !s.running.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.logger.Debug("previous tick still in flight, skipping")
		return
	}
	defer s.running.Store(false)

	if s.ctx.Err() != nil {
		return
	}
	s.runOnce(s.ctx)
}

func (s *Scheduler) runOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	start := time.Now()
	s.runs.Add(1)

	tick, err := s.client.TriggerTick(ctx)
	if err != nil {
		s.failures.Add(1)
		s.logger.Warn("tick trigger failed",
			"error", err,
			"duration", time.Since(start),
		)
		return
	}

	s.logger.Debug("tick triggered",
		"price", tick.Price.String(),
		"reference_date", tick.ReferenceDate,
		"progress", tick.ProgressRatio,
		"duration", time.Since(start),
	)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
