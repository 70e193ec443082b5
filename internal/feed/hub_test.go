package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/api"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before timeout")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func dial(t *testing.T, srv *httptest.Server, header http.Header) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	return websocket.DefaultDialer.Dial(url, header)
}

func TestHub_BroadcastsTicks(t *testing.T) {
	var count atomic.Int32
	hub := NewHub(DefaultConfig(), func(n int) { count.Store(int32(n)) }, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn, _, err := dial(t, srv, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	waitFor(t, func() bool { return hub.Len() == 1 })
	if count.Load() != 1 {
		t.Errorf("onCount = %d, want 1", count.Load())
	}

	hub.ObserveTick(price.Result{
		Tick: model.PriceTick{
			Price:         decimal.RequireFromString("13.25"),
			ReferenceDate: time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
			Timestamp:     time.Date(2024, 3, 10, 16, 0, 0, 0, time.UTC),
		},
	})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage() error = %v", err)
	}

	var tick api.TickResponse
	if err := json.Unmarshal(data, &tick); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !tick.Price.Equal(decimal.RequireFromString("13.25")) {
		t.Errorf("Price = %s, want 13.25", tick.Price)
	}
	if tick.ReferenceDate != "2024-03-10" {
		t.Errorf("ReferenceDate = %q, want 2024-03-10", tick.ReferenceDate)
	}
}

func TestHub_ClientDisconnectUnregisters(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()

	conn, _, err := dial(t, srv, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	waitFor(t, func() bool { return hub.Len() == 1 })

	conn.Close()
	waitFor(t, func() bool { return hub.Len() == 0 })
}

func TestHub_SlowClientDropped(t *testing.T) {
	hub := NewHub(Config{SendBuffer: 1}, nil, nil)

	c := &client{send: make(chan []byte, 1), done: make(chan struct{})}
	hub.add(c)

	hub.Broadcast([]byte("one"))
	if hub.Len() != 1 {
		t.Fatalf("Len() = %d after first broadcast, want 1", hub.Len())
	}

	hub.Broadcast([]byte("two"))
	if hub.Len() != 0 {
		t.Errorf("Len() = %d, want slow client dropped", hub.Len())
	}
	select {
	case <-c.done:
	default:
		t.Error("dropped client not stopped")
	}
}

func TestHub_CheckOrigin(t *testing.T) {
	hub := NewHub(Config{AllowedOrigins: []string{"https://app.example.com"}}, nil, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	_, resp, err := dial(t, srv, http.Header{"Origin": []string{"https://evil.example.com"}})
	if err == nil {
		t.Fatal("Dial() from disallowed origin succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}

	conn, _, err := dial(t, srv, http.Header{"Origin": []string{"https://app.example.com"}})
	if err != nil {
		t.Fatalf("Dial() from allowed origin error = %v", err)
	}
	conn.Close()
}

func TestHub_CloseRefusesNewClients(t *testing.T) {
	hub := NewHub(DefaultConfig(), nil, nil)
	hub.Close()

	if hub.add(&client{send: make(chan []byte, 1), done: make(chan struct{})}) {
		t.Error("add() after Close() succeeded")
	}
}
