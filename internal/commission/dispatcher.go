package commission

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/procedure"
	"github.com/rickgao/emission-engine/internal/queue"
)

// Results reported to the Recorder.
const (
	ResultOK      = "ok"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Caller invokes a stored routine.
type Caller interface {
	Call(ctx context.Context, name string, args ...any) (procedure.Result, error)
}

// Recorder counts notification results.
type Recorder interface {
	ObserveCommission(result string)
}

// Config contains dispatcher settings.
type Config struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // Per call
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:   4,
		QueueSize: 1024,
		Timeout:   5 * time.Second,
	}
}

// Stats holds dispatcher counters.
type Stats struct {
	Dispatched int64
	Failed     int64
	Dropped    int64
	Pending    int
}

// Dispatcher delivers commissions asynchronously. It implements
// mining.CommissionNotifier.
type Dispatcher struct {
	cfg      Config
	caller   Caller
	recorder Recorder
	logger   *slog.Logger

	input *queue.Queue[model.Commission]

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// NewDispatcher creates a Dispatcher. recorder may be nil.
func NewDispatcher(cfg Config, caller Caller, recorder Recorder, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Workers < 1 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Dispatcher{
		cfg:      cfg,
		caller:   caller,
		recorder: recorder,
		logger:   logger,
		input:    queue.New[model.Commission](min(64, cfg.QueueSize), cfg.QueueSize),
	}
}

// Notify enqueues c without blocking. A full or stopped dispatcher drops it.
func (d *Dispatcher) Notify(c model.Commission) {
	err := d.input.Send(c)
	if err == nil {
		return
	}

	reason := "queue full"
	if errors.Is(err, queue.ErrClosed) {
		reason = "dispatcher stopped"
	}
	d.logger.Warn("commission dropped",
		"user_id", c.UserID,
		"coin_id", c.CoinID,
		"reason", reason,
	)
	d.record(ResultDropped)
}

// Start launches the workers.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.ctx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	d.logger.Info("commission dispatcher started",
		"workers", d.cfg.Workers,
		"queue_size", d.cfg.QueueSize,
	)
	return nil
}

// Stop stops accepting notifications and waits for pending ones to be
// delivered. If ctx expires first, in-flight calls are cancelled.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.logger.Info("stopping commission dispatcher")
	d.input.Close()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("commission dispatcher stopped")
	case <-ctx.Done():
		d.logger.Warn("commission dispatcher stop timed out", "pending", d.input.Len())
	}

	if d.cancel != nil {
		d.cancel()
	}
	return nil
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	s := d.stats
	d.mu.Unlock()
	s.Pending = d.input.Len()
	return s
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		c, ok := d.input.Receive()
		if !ok {
			return
		}
		if d.ctx.Err() != nil {
			d.record(ResultDropped)
			continue
		}
		d.deliver(c)
	}
}

func (d *Dispatcher) deliver(c model.Commission) {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	res, err := d.caller.Call(ctx, procedure.ProcessReferralCommission, c.UserID, c.CoinID, c.BaseAmount)
	if err != nil {
		d.logger.Warn("commission failed",
			"user_id", c.UserID,
			"coin_id", c.CoinID,
			"base_amount", c.BaseAmount,
			"error", err,
		)
		d.record(ResultFailed)
		return
	}

	d.logger.Debug("commission processed",
		"user_id", c.UserID,
		"coin_id", c.CoinID,
		"message", res.Message,
		"duration", time.Since(start),
	)
	d.record(ResultOK)
}

func (d *Dispatcher) record(result string) {
	d.mu.Lock()
	switch result {
	case ResultOK:
		d.stats.Dispatched++
	case ResultFailed:
		d.stats.Failed++
	case ResultDropped:
		d.stats.Dropped++
	}
	d.mu.Unlock()

	if d.recorder != nil {
		d.recorder.ObserveCommission(result)
	}
}
