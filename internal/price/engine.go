package price

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/tradingday"
)

// TickTx is the serialized unit a tick is generated in.
type TickTx interface {
	// LatestTick returns the newest tick or model.ErrNotFound.
	LatestTick(ctx context.Context) (model.PriceTick, error)

	// Rollover closes out a trading day and records the next day's target.
	Rollover(ctx context.Context, r model.Rollover) error

	// InsertTick appends a tick. Returns model.ErrStaleTick if its timestamp
	// is not strictly newer than the latest stored tick.
	InsertTick(ctx context.Context, tick model.PriceTick) (model.PriceTick, error)
}

// Store persists the tick chain.
type Store interface {
	// WithinTick runs fn with exclusive access to the tick chain. Nothing fn
	// writes is visible unless fn returns nil.
	WithinTick(ctx context.Context, fn func(TickTx) error) error

	// LatestTick returns the newest tick or model.ErrNotFound.
	LatestTick(ctx context.Context) (model.PriceTick, error)

	// RecentTicks returns up to limit ticks, newest first.
	RecentTicks(ctx context.Context, limit int) ([]model.PriceTick, error)
}

// TargetSource provides the daily drift schedule.
type TargetSource interface {
	// DailyTarget returns the target of the trading day ref, or model.ErrNotFound.
	DailyTarget(ctx context.Context, ref time.Time) (model.DailyPriceTarget, error)
}

// Observer is notified after every persisted tick.
type Observer interface {
	ObserveTick(Result)
}

// ObserverFunc is a function adapter for Observer.
type ObserverFunc func(Result)

func (f ObserverFunc) ObserveTick(r Result) {
	f(r)
}

// Result is a persisted tick plus display-only derived fields.
type Result struct {
	Tick           model.PriceTick
	OpeningPrice   decimal.Decimal
	TargetPrice    decimal.Decimal
	ExpectedPrice  decimal.Decimal
	Drift          decimal.Decimal
	ChangePercent  decimal.Decimal
	ProgressRatio  float64
	RolledOver     bool // This tick opened a new trading day
	FallbackTarget bool // The target source was unavailable
}

// Engine generates the synthetic price series.
type Engine struct {
	cfg     func() Config
	store   Store
	targets TargetSource
	logger  *slog.Logger

	now       func() time.Time
	observers []Observer

	randMu sync.Mutex
	rand   *rand.Rand
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithRand sets the random source used for volatility.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rand = r
	}
}

// WithObserver registers a tick observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		e.observers = append(e.observers, o)
	}
}

// WithConfigFunc reads the configuration on every tick, allowing runtime tuning.
func WithConfigFunc(f func() Config) Option {
	return func(e *Engine) {
		e.cfg = f
	}
}

// NewEngine creates a new Engine.
func NewEngine(cfg Config, store Store, targets TargetSource, logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	e := &Engine{
		cfg:     func() Config { return cfg },
		store:   store,
		targets: targets,
		logger:  logger,
		now:     time.Now,
		rand:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x9e3779b97f4a7c15)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// GenerateTick appends exactly one tick to the chain and returns it.
func (e *Engine) GenerateTick(ctx context.Context) (Result, error) {
	cfg := e.cfg()

	var res Result
	err := e.store.WithinTick(ctx, func(tx TickTx) error {
		res = Result{}
		now := e.now().UTC().Truncate(time.Microsecond)
		today := tradingday.ReferenceDate(now, cfg.ResetHour)

		last, err := tx.LatestTick(ctx)
		hasLast := true
		switch {
		case errors.Is(err, model.ErrNotFound):
			hasLast = false
		case err != nil:
			return fmt.Errorf("read latest tick: %w", err)
		}

		current := cfg.BasePrice
		if hasLast {
			current = last.Price
			if today.Before(last.ReferenceDate) {
				today = last.ReferenceDate
			}
		}

		var target model.DailyPriceTarget
		if hasLast && tradingday.NeedsRollover(last.ReferenceDate, now, cfg.ResetHour) {
			// Today's schedule chains off the closed day's stored target. A
			// failed read aborts the tick; a missing row seeds from config.
			prev, err := e.dailyTarget(ctx, cfg, last.ReferenceDate, now)
			fallback := false
			switch {
			case errors.Is(err, model.ErrNotFound):
				e.logger.Warn("closed day has no target, seeding schedule",
					"reference_date", last.ReferenceDate.Format(time.DateOnly),
				)
				prev, fallback = fallbackTarget(cfg, last.ReferenceDate, now), true
			case err != nil:
				return fmt.Errorf("read target for %s: %w", last.ReferenceDate.Format(time.DateOnly), err)
			}
			target = model.DailyPriceTarget{
				ReferenceDate: today,
				OpeningPrice:  prev.TargetPrice,
				TargetPrice:   prev.TargetPrice.Add(cfg.DailyIncrement),
				Progress:      tradingday.DayProgress(today, now, cfg.ResetHour),
			}
			rollover := model.Rollover{
				ClosedDate:   last.ReferenceDate,
				ClosingPrice: last.Price,
				Next:         target,
			}
			if err := tx.Rollover(ctx, rollover); err != nil {
				return fmt.Errorf("roll over trading day: %w", err)
			}
			res.RolledOver = true
			res.FallbackTarget = fallback

			e.logger.Info("trading day rolled over",
				"closed_date", last.ReferenceDate.Format(time.DateOnly),
				"closing_price", last.Price.String(),
				"reference_date", today.Format(time.DateOnly),
				"opening_price", target.OpeningPrice.String(),
				"target_price", target.TargetPrice.String(),
			)
		} else {
			target, err = e.dailyTarget(ctx, cfg, today, now)
			if err != nil {
				e.logger.Warn("daily target unavailable, using fallback",
					"reference_date", today.Format(time.DateOnly),
					"error", err,
				)
				target, res.FallbackTarget = fallbackTarget(cfg, today, now), true
			}
		}

		out := e.step(Inputs{
			Current:        current,
			Opening:        target.OpeningPrice,
			DailyIncrement: cfg.DailyIncrement,
			Progress:       target.Progress,
			DriftStrength:  cfg.DriftStrength,
			VolatilityBand: cfg.VolatilityBand,
			MinPrice:       cfg.MinPrice,
		})

		ts := now
		if hasLast && !ts.After(last.Timestamp) {
			ts = last.Timestamp.Add(time.Microsecond)
		}

		tick, err := tx.InsertTick(ctx, model.PriceTick{
			Price:         out.Price,
			High:          out.High,
			Low:           out.Low,
			Average:       out.Average,
			ReferenceDate: today,
			Timestamp:     ts,
		})
		if err != nil {
			return fmt.Errorf("insert tick: %w", err)
		}

		res.Tick = tick
		res.OpeningPrice = target.OpeningPrice
		res.TargetPrice = target.TargetPrice
		res.ExpectedPrice = out.Expected
		res.Drift = out.Drift
		res.ChangePercent = ChangePercent(tick.Price, target.OpeningPrice)
		res.ProgressRatio = target.Progress
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	e.logger.Debug("tick generated",
		"price", res.Tick.Price.String(),
		"expected", res.ExpectedPrice.String(),
		"reference_date", res.Tick.ReferenceDate.Format(time.DateOnly),
		"fallback_target", res.FallbackTarget,
	)

	for _, o := range e.observers {
		o.ObserveTick(res)
	}
	return res, nil
}

// Latest returns the newest persisted tick.
func (e *Engine) Latest(ctx context.Context) (model.PriceTick, error) {
	return e.store.LatestTick(ctx)
}

// History returns up to limit ticks, newest first.
func (e *Engine) History(ctx context.Context, limit int) ([]model.PriceTick, error) {
	if limit < 1 {
		limit = 1
	}
	return e.store.RecentTicks(ctx, limit)
}

// dailyTarget reads the target for ref. Progress is derived from now and the
// current reset hour, never taken from the source.
func (e *Engine) dailyTarget(ctx context.Context, cfg Config, ref, now time.Time) (model.DailyPriceTarget, error) {
	if e.targets == nil {
		return model.DailyPriceTarget{}, model.ErrNotFound
	}

	tctx, cancel := context.WithTimeout(ctx, cfg.CollaboratorTimeout)
	defer cancel()

	target, err := e.targets.DailyTarget(tctx, ref)
	if err != nil {
		return model.DailyPriceTarget{}, err
	}
	if !target.OpeningPrice.IsPositive() || !target.TargetPrice.IsPositive() {
		return model.DailyPriceTarget{}, fmt.Errorf("non-positive target for %s", ref.Format(time.DateOnly))
	}
	target.ReferenceDate = ref
	target.Progress = tradingday.DayProgress(ref, now, cfg.ResetHour)
	return target, nil
}

// fallbackTarget is the configured schedule used when no stored target applies.
func fallbackTarget(cfg Config, ref, now time.Time) model.DailyPriceTarget {
	return model.DailyPriceTarget{
		ReferenceDate: ref,
		OpeningPrice:  cfg.BasePrice,
		TargetPrice:   cfg.BasePrice.Add(cfg.DailyIncrement),
		Progress:      tradingday.DayProgress(ref, now, cfg.ResetHour),
	}
}

func (e *Engine) step(in Inputs) Outputs {
	e.randMu.Lock()
	defer e.randMu.Unlock()
	return Step(in, e.rand.Float64)
}
