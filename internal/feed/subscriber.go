package feed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/emission-engine/internal/api"
)

// ErrStaleConnection is reported when the server stops pinging.
var ErrStaleConnection = errors.New("connection stale (no ping)")

// SubscriberConfig holds subscriber settings.
type SubscriberConfig struct {
	URL               string // ws:// or wss:// URL of /api/price/stream
	Token             string // Optional bearer token
	PingTimeout       time.Duration
	ReconnectBaseWait time.Duration
	ReconnectMaxWait  time.Duration
	BufferSize        int
}

// DefaultSubscriberConfig returns sensible defaults.
func DefaultSubscriberConfig() SubscriberConfig {
	return SubscriberConfig{
		PingTimeout:       90 * time.Second,
		ReconnectBaseWait: time.Second,
		ReconnectMaxWait:  30 * time.Second,
		BufferSize:        256,
	}
}

// SubscriberStats are cumulative counters.
type SubscriberStats struct {
	Received   int64
	Dropped    int64
	Reconnects int64
}

// Subscriber follows a live feed, reconnecting with exponential backoff.
type Subscriber struct {
	cfg    SubscriberConfig
	logger *slog.Logger
	ticks  chan api.TickResponse

	received   atomic.Int64
	dropped    atomic.Int64
	reconnects atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(cfg SubscriberConfig, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultSubscriberConfig()
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.ReconnectBaseWait <= 0 {
		cfg.ReconnectBaseWait = def.ReconnectBaseWait
	}
	if cfg.ReconnectMaxWait < cfg.ReconnectBaseWait {
		cfg.ReconnectMaxWait = max(def.ReconnectMaxWait, cfg.ReconnectBaseWait)
	}
	if cfg.BufferSize < 1 {
		cfg.BufferSize = def.BufferSize
	}
	return &Subscriber{
		cfg:    cfg,
		logger: logger,
		ticks:  make(chan api.TickResponse, cfg.BufferSize),
	}
}

// Ticks returns the received ticks. It is closed after Stop.
func (s *Subscriber) Ticks() <-chan api.TickResponse {
	return s.ticks
}

// Start connects in the background.
func (s *Subscriber) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("feed subscriber started", "url", s.cfg.URL)
	return nil
}

// Stop disconnects and closes Ticks.
func (s *Subscriber) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		close(s.ticks)
		s.logger.Info("feed subscriber stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns the counters.
func (s *Subscriber) Stats() SubscriberStats {
	return SubscriberStats{
		Received:   s.received.Load(),
		Dropped:    s.dropped.Load(),
		Reconnects: s.reconnects.Load(),
	}
}

func (s *Subscriber) run() {
	defer s.wg.Done()

	wait := s.cfg.ReconnectBaseWait
	for {
		conn, err := s.connect(s.ctx)
		if err == nil {
			wait = s.cfg.ReconnectBaseWait
			err = s.readLoop(conn)
		}
		if s.ctx.Err() != nil {
			return
		}

		s.logger.Warn("feed connection lost, reconnecting", "error", err, "wait", wait)
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(wait):
		}
		s.reconnects.Add(1)

		wait *= 2
		if wait > s.cfg.ReconnectMaxWait {
			wait = s.cfg.ReconnectMaxWait
		}
	}
}

func (s *Subscriber) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if s.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+s.cfg.Token)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, s.cfg.URL, header)
	if err != nil {
		return nil, err
	}

	// Server pings keep the connection alive; each one extends the deadline.
	conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(s.cfg.PingTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	s.logger.Debug("feed connected", "url", s.cfg.URL)
	return conn, nil
}

// readLoop decodes ticks until the connection fails or the subscriber stops.
func (s *Subscriber) readLoop(conn *websocket.Conn) error {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-s.ctx.Done():
			conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
			conn.Close()
		case <-stop:
		}
	}()
	defer conn.Close()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			var netErr interface{ Timeout() bool }
			if errors.As(err, &netErr) && netErr.Timeout() {
				return ErrStaleConnection
			}
			return err
		}

		var tick api.TickResponse
		if err := json.Unmarshal(data, &tick); err != nil {
			s.logger.Warn("undecodable feed message", "error", err)
			continue
		}
		s.received.Add(1)

		select {
		case s.ticks <- tick:
		default:
			s.dropped.Add(1)
			s.logger.Warn("tick buffer full, dropping tick")
		}
	}
}
