// Package http exposes the engine over HTTP: the JSON endpoints, the SSE
// execution stream and the live-price WebSocket.
package http

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/stratrun/stratrun/internal/engine"
	"github.com/stratrun/stratrun/internal/insight"
	"github.com/stratrun/stratrun/internal/telemetry"
)

// ServerConfig holds transport-level settings.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	// RequestTimeout bounds one JSON request; streams are exempt.
	RequestTimeout time.Duration
	// RateLimitRPS and RateLimitBurst shape the per-IP limiter.
	RateLimitRPS   float64
	RateLimitBurst int
	LiveTick       time.Duration
}

// DefaultServerConfig returns the development defaults.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "127.0.0.1",
		Port:           8080,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   0, // streams manage their own pacing
		IdleTimeout:    60 * time.Second,
		RequestTimeout: 30 * time.Second,
		RateLimitRPS:   10,
		RateLimitBurst: 20,
		LiveTick:       time.Second,
	}
}

// Server is the HTTP transport over the engine.
type Server struct {
	router   *mux.Router
	server   *http.Server
	config   ServerConfig
	handlers *Handlers
	limiter  *ipLimiter
}

// NewServer wires routes, middleware and handlers.
func NewServer(cfg ServerConfig, runner *engine.Runner, streamer *engine.Streamer,
	insights insight.Provider, metrics *telemetry.Metrics) *Server {

	s := &Server{
		router:  mux.NewRouter(),
		config:  cfg,
		limiter: newIPLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		handlers: &Handlers{
			runner:   runner,
			streamer: streamer,
			insights: insights,
			metrics:  metrics,
			liveTick: cfg.LiveTick,
		},
	}
	s.setupRoutes()
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Router exposes the mux for tests.
func (s *Server) Router() http.Handler { return s.router }

func (s *Server) setupRoutes() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.rateLimitMiddleware)
	s.router.Use(s.corsMiddleware)

	quant := s.router.PathPrefix("/quant").Subrouter()

	// JSON endpoints get the per-request timeout and content type
	api := quant.NewRoute().Subrouter()
	api.Use(s.timeoutMiddleware)
	api.Use(jsonContentTypeMiddleware)
	api.HandleFunc("/strategies", s.handlers.Strategies).Methods("GET")
	api.HandleFunc("/run", s.handlers.Run).Methods("POST")
	api.HandleFunc("/backtest", s.handlers.Backtest).Methods("POST")
	api.HandleFunc("/ai-insight", s.handlers.Insight).Methods("POST")

	// streaming surfaces manage their own lifetimes
	quant.HandleFunc("/stream/run", s.handlers.StreamRun).Methods("GET")
	quant.HandleFunc("/ws/live/{ticker}", s.handlers.LiveWS).Methods("GET")

	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(notFound)
}

// Start begins serving. It blocks until the listener fails or Shutdown
// is called.
func (s *Server) Start() error {
	log.Info().Str("addr", s.server.Addr).Msg("http server starting")
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("http server shutting down")
	return s.server.Shutdown(ctx)
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()[:8]
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapper, r)
		log.Info().
			Str("request_id", requestID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", wrapper.statusCode).
			Dur("elapsed", time.Since(start)).
			Str("remote", r.RemoteAddr).
			Msg("request")
	})
}

func (s *Server) timeoutMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timeout := s.config.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}
		if !s.limiter.allow(clientIP(r)) {
			writeJSONError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func jsonContentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

func requestID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ipLimiter keeps one token bucket per client IP.
type ipLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

func newIPLimiter(rps float64, burst int) *ipLimiter {
	if rps <= 0 {
		rps = 10
	}
	if burst <= 0 {
		burst = 20
	}
	return &ipLimiter{
		buckets: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	b, ok := l.buckets[ip]
	if !ok {
		b = rate.NewLimiter(l.rps, l.burst)
		l.buckets[ip] = b
	}
	l.mu.Unlock()
	return b.Allow()
}

type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWrapper) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE working through the logging wrapper.
func (rw *responseWrapper) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps WebSocket upgrades working through the logging wrapper.
func (rw *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("hijacking not supported")
	}
	return h.Hijack()
}

func notFound(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, http.StatusNotFound, "not_found", "no such endpoint: "+r.URL.Path)
}
