package commission

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/procedure"
)

type call struct {
	name string
	args []any
}

type fakeCaller struct {
	mu    sync.Mutex
	calls []call
	err   error
	block chan struct{}
}

func (f *fakeCaller) Call(ctx context.Context, name string, args ...any) (procedure.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return procedure.Result{}, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{name: name, args: args})
	if f.err != nil {
		return procedure.Result{}, f.err
	}
	return procedure.Result{Success: true, Message: "ok"}, nil
}

func (f *fakeCaller) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type countingRecorder struct {
	mu     sync.Mutex
	counts map[string]int
}

func (r *countingRecorder) ObserveCommission(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int)
	}
	r.counts[result]++
}

func (r *countingRecorder) get(result string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[result]
}

func commission(user string) model.Commission {
	return model.Commission{
		UserID:      user,
		CoinID:      uuid.New(),
		BaseAmount:  decimal.RequireFromString("0.195"),
		RequestedAt: time.Now(),
	}
}

func TestDispatcher_DeliversAll(t *testing.T) {
	caller := &fakeCaller{}
	rec := &countingRecorder{}
	d := NewDispatcher(Config{Workers: 3, QueueSize: 100, Timeout: time.Second}, caller, rec, nil)
	d.Start(context.Background())

	for i := 0; i < 20; i++ {
		d.Notify(commission("alice"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)

	if got := caller.count(); got != 20 {
		t.Fatalf("calls = %d, want 20", got)
	}
	first := caller.calls[0]
	if first.name != procedure.ProcessReferralCommission {
		t.Errorf("procedure = %q, want %q", first.name, procedure.ProcessReferralCommission)
	}
	if len(first.args) != 3 || first.args[0] != "alice" {
		t.Errorf("args = %v, want [alice coin_id base_amount]", first.args)
	}
	if amount, ok := first.args[2].(decimal.Decimal); !ok || !amount.Equal(decimal.RequireFromString("0.195")) {
		t.Errorf("base_amount = %v, want 0.195", first.args[2])
	}

	stats := d.Stats()
	if stats.Dispatched != 20 || stats.Failed != 0 || stats.Dropped != 0 {
		t.Errorf("Stats() = %+v, want 20 dispatched", stats)
	}
	if rec.get(ResultOK) != 20 {
		t.Errorf("recorded ok = %d, want 20", rec.get(ResultOK))
	}
}

func TestDispatcher_FailuresAreCounted(t *testing.T) {
	caller := &fakeCaller{err: errors.New("commission routine unavailable")}
	rec := &countingRecorder{}
	d := NewDispatcher(Config{Workers: 1, QueueSize: 10, Timeout: time.Second}, caller, rec, nil)
	d.Start(context.Background())

	d.Notify(commission("bob"))
	d.Notify(commission("bob"))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	d.Stop(ctx)

	if stats := d.Stats(); stats.Failed != 2 {
		t.Errorf("Failed = %d, want 2", stats.Failed)
	}
	if caller.count() != 2 {
		t.Errorf("calls = %d, want 2 (no retries)", caller.count())
	}
	if rec.get(ResultFailed) != 2 {
		t.Errorf("recorded failed = %d, want 2", rec.get(ResultFailed))
	}
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	caller := &fakeCaller{block: make(chan struct{})}
	rec := &countingRecorder{}
	d := NewDispatcher(Config{Workers: 1, QueueSize: 2, Timeout: time.Second}, caller, rec, nil)

	// Not started: nothing drains the queue.
	for i := 0; i < 5; i++ {
		d.Notify(commission("carol"))
	}

	stats := d.Stats()
	if stats.Pending != 2 || stats.Dropped != 3 {
		t.Errorf("Stats() = %+v, want 2 pending and 3 dropped", stats)
	}
	if rec.get(ResultDropped) != 3 {
		t.Errorf("recorded dropped = %d, want 3", rec.get(ResultDropped))
	}
}

func TestDispatcher_NotifyAfterStopDrops(t *testing.T) {
	d := NewDispatcher(DefaultConfig(), &fakeCaller{}, nil, nil)
	d.Start(context.Background())
	d.Stop(context.Background())

	d.Notify(commission("dave"))

	if stats := d.Stats(); stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}
}

func TestDispatcher_StopTimeoutCancelsCalls(t *testing.T) {
	caller := &fakeCaller{block: make(chan struct{})}
	d := NewDispatcher(Config{Workers: 1, QueueSize: 10, Timeout: time.Minute}, caller, nil, nil)
	d.Start(context.Background())
	d.Notify(commission("erin"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Stop(ctx)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return after its context expired")
	}
}
