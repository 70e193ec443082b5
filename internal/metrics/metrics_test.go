package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

func TestObserveTick(t *testing.T) {
	m := New()

	m.ObserveTick(price.Result{
		Tick:           model.PriceTick{Price: decimal.RequireFromString("13.25")},
		ExpectedPrice:  decimal.RequireFromString("13.5"),
		FallbackTarget: true,
	})
	m.ObserveTick(price.Result{
		Tick:       model.PriceTick{Price: decimal.RequireFromString("13.5")},
		RolledOver: true,
	})

	if got := testutil.ToFloat64(m.ticks); got != 2 {
		t.Errorf("ticks = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.tickFallbacks); got != 1 {
		t.Errorf("fallbacks = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.rollovers); got != 1 {
		t.Errorf("rollovers = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.lastPrice); got != 13.5 {
		t.Errorf("last price = %v, want 13.5", got)
	}
}

func TestObserveClaim(t *testing.T) {
	m := New()

	m.ObserveClaim("granted", decimal.RequireFromString("0.3"), decimal.RequireFromString("99.7"))
	m.ObserveClaim("partial", decimal.RequireFromString("0.2"), decimal.Zero)
	m.ObserveClaim("supply_exhausted", decimal.Zero, decimal.Zero)

	tests := []struct {
		outcome string
		want    float64
	}{
		{"granted", 1},
		{"partial", 1},
		{"supply_exhausted", 1},
		{"not_yet_eligible", 0},
	}
	for _, tt := range tests {
		if got := testutil.ToFloat64(m.claims.WithLabelValues(tt.outcome)); got != tt.want {
			t.Errorf("claims{%s} = %v, want %v", tt.outcome, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(m.granted); got < 0.4999 || got > 0.5001 {
		t.Errorf("granted = %v, want 0.5", got)
	}
	if got := testutil.ToFloat64(m.remainingSupply); got != 0 {
		t.Errorf("remaining = %v, want 0", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.HTTPStarted()
	m.HTTPFinished("GET", "/api/price/tick", 200, 12*time.Millisecond)
	m.ObserveCommission("ok")
	m.SetFeedClients(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, want := range []string{
		`emission_http_requests_total{method="GET",path="/api/price/tick",status="200"} 1`,
		`emission_commission_notifications_total{result="ok"} 1`,
		`emission_feed_clients 3`,
		`emission_http_inflight_requests 0`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
