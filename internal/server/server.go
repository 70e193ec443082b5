package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rickgao/emission-engine/internal/api"
	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/price"
	"github.com/rickgao/emission-engine/internal/procedure"
)

// PriceService generates and reads ticks.
type PriceService interface {
	GenerateTick(ctx context.Context) (price.Result, error)
	Latest(ctx context.Context) (model.PriceTick, error)
	History(ctx context.Context, limit int) ([]model.PriceTick, error)
}

// MiningService processes claims.
type MiningService interface {
	Claim(ctx context.Context, userID string) (mining.ClaimResult, error)
	Status(ctx context.Context, userID string) (mining.StatusResult, error)
	Supply(ctx context.Context) (model.GlobalSupply, error)
}

// ProcedureCaller invokes allow-listed stored routines.
type ProcedureCaller interface {
	Call(ctx context.Context, name string, args ...any) (procedure.Result, error)
}

// Authenticator resolves the user of a request.
type Authenticator interface {
	VerifyRequest(r *http.Request) (string, error)
}

// Recorder receives per-request HTTP metrics.
type Recorder interface {
	HTTPStarted()
	HTTPFinished(method, path string, status int, d time.Duration)
}

// Pinger reports store reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config holds handler settings.
type Config struct {
	MaxHistory     int
	AllowedOrigins []string // Empty disables CORS headers; "*" allows any
	RateLimit      float64  // Requests per second per client; <= 0 disables
	RateBurst      int
	LimiterSize    int // Clients tracked by the rate limiter
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxHistory:  1000,
		RateLimit:   10,
		RateBurst:   20,
		LimiterSize: 10_000,
	}
}

// Deps are the collaborators behind the routes. Price, Mining and Auth
// are required. A nil Procedures leaves the trade routes unregistered, a
// nil Feed the stream route.
type Deps struct {
	Price      PriceService
	Mining     MiningService
	Auth       Authenticator
	Procedures ProcedureCaller
	Feed       http.Handler
	Metrics    Recorder
	Health     Pinger
}

// Server routes HTTP requests to the engine.
type Server struct {
	cfg     Config
	deps    Deps
	limiter *rateLimiter
	handler http.Handler
	logger  *slog.Logger
}

// New creates a Server.
func New(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.MaxHistory < 1 {
		cfg.MaxHistory = def.MaxHistory
	}
	if cfg.LimiterSize < 1 {
		cfg.LimiterSize = def.LimiterSize
	}

	s := &Server{
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = newRateLimiter(cfg.RateLimit, cfg.RateBurst, cfg.LimiterSize)
	}
	// CORS wraps the router so preflight requests never reach route matching.
	s.handler = s.cors(s.routes())
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)
	if s.deps.Metrics != nil {
		r.Use(s.recordMetrics)
	}

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/version", s.handleVersion).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api").Subrouter()

	v1.Handle("/price/tick", s.public(s.handleTick)).Methods(http.MethodGet)
	v1.Handle("/price/latest", s.public(s.handleLatest)).Methods(http.MethodGet)
	v1.Handle("/price/history", s.public(s.handleHistory)).Methods(http.MethodGet)
	if s.deps.Feed != nil {
		v1.Handle("/price/stream", s.deps.Feed).Methods(http.MethodGet)
	}

	v1.Handle("/mining/claim", s.private(s.handleClaim)).Methods(http.MethodPost)
	v1.Handle("/mining/status", s.private(s.handleStatus)).Methods(http.MethodGet)
	v1.Handle("/mining/supply", s.public(s.handleSupply)).Methods(http.MethodGet)

	if s.deps.Procedures != nil {
		v1.Handle("/trades/{tradeID}/{action}", s.private(s.handleTradeAction)).Methods(http.MethodPost)
	}

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errorBody(api.CodeNotFound, "no such route"))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errorBody(api.CodeBadRequest, "method not allowed"))
	})
	return r
}

// public rate limits by client address.
func (s *Server) public(h http.HandlerFunc) http.Handler {
	return s.rateLimit(h)
}

// private requires a session and rate limits by user.
func (s *Server) private(h http.HandlerFunc) http.Handler {
	return s.requireAuth(s.rateLimit(h))
}
