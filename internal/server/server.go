// Package server provides the HTTP API of the webfont splitter: run
// submission, the run log, the store catalogue and the stored font files.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/webfont-splitter/internal/config"
	"github.com/jonathan/webfont-splitter/internal/db"
	"github.com/jonathan/webfont-splitter/internal/pipeline"
	"github.com/jonathan/webfont-splitter/internal/server/middleware"
	"github.com/jonathan/webfont-splitter/internal/server/ratelimit"
	"github.com/jonathan/webfont-splitter/internal/store"
	"github.com/jonathan/webfont-splitter/internal/types"
)

// RunLog is the database side of the server; *db.DB implements it
type RunLog interface {
	pipeline.Recorder
	store.Mirror
	GetRun(ctx context.Context, id uuid.UUID) (*db.Run, error)
	ListRuns(ctx context.Context, limit int) ([]db.Run, error)
	ListEntries(ctx context.Context) ([]types.StoreEntry, error)
}

// Config holds server configuration
type Config struct {
	// Host is the listen address; empty means loopback only. Any other host
	// requires an APIToken.
	Host string
	Port int
	// Base supplies every run setting a request does not override.
	Base config.Config
	// APIToken guards run submission when set.
	APIToken string
	// Roots are the directories local paths in run requests must stay in.
	// Relative paths resolve against the first. Without roots, requests may
	// only name URLs and the fallback font.
	Roots []string
	// RunLog is optional; without it the run endpoints answer 503.
	RunLog RunLog
	Logger *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	handler     http.Handler
	base        config.Config
	runLog      RunLog
	logger      *zap.Logger
	rateLimiter *ratelimit.Limiter
	fontPrefix  string
	roots       roots

	// runSlot admits one run at a time; runs share the store index.
	runSlot chan struct{}
	run     func(context.Context, pipeline.RunOptions) (*pipeline.Result, error)
}

// New creates a new server instance
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.Base.MergeWithDefaults(config.Defaults())
	if base.StoreDir == "" {
		return nil, errors.New("server requires a store directory")
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	if cfg.APIToken == "" && !isLoopback(host) {
		return nil, fmt.Errorf("refusing to listen on %s without an API token", host)
	}
	confined, err := newRoots(cfg.Roots)
	if err != nil {
		return nil, err
	}

	s := &Server{
		base:        base,
		runLog:      cfg.RunLog,
		logger:      logger,
		rateLimiter: ratelimit.NewLimiter(ratelimit.LoadConfig()),
		fontPrefix:  mountPath(base.BaseURI),
		roots:       confined,
		runSlot:     make(chan struct{}, 1),
		run:         pipeline.Run,
	}

	auth := middleware.RequireToken(cfg.APIToken)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("POST /runs", auth(http.HandlerFunc(s.handleRun)))
	mux.Handle("POST /runs/stream", auth(http.HandlerFunc(s.handleRunStream)))
	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /entries", s.handleListEntries)
	mux.HandleFunc("GET "+s.fontPrefix+"{file}", s.handleFont)

	s.handler = middleware.RequestID(s.withRateLimit(s.withLogging(s.withCORS(mux))))
	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(host, strconv.Itoa(cfg.Port)),
		Handler:      s.handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Minute, // runs over large CJK fonts take a while
		IdleTimeout:  60 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped router
func (s *Server) Handler() http.Handler {
	return s.handler
}

// mountPath turns the store's base URI into the route prefix for font
// downloads. Absolute URIs (a CDN in front of the server) contribute their path.
func mountPath(baseURI string) string {
	p := "/webfonts/"
	if u, err := url.Parse(baseURI); err == nil && u.Path != "" && u.Path != "/" {
		p = u.Path
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	return p
}

// Start begins listening for requests and blocks until SIGINT or SIGTERM
func (s *Server) Start() error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	serveErr := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		s.rateLimiter.Stop()
		return fmt.Errorf("server error: %w", err)
	case <-stop:
	}
	s.logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	defer s.rateLimiter.Stop()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// withCORS adds CORS headers. Fonts are fetched cross-origin by browsers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info := s.rateLimiter.Allow(clientID(r), r.Method, r.URL.Path)
		if info.Limit > 0 {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
		}
		if !info.Allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status for the access log and keeps SSE
// flushing working
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("remote", r.RemoteAddr),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		}
		if id, ok := middleware.GetRequestID(r.Context()); ok {
			fields = append(fields, zap.String("request_id", id.String()))
		}
		s.logger.Info("request", fields...)
	})
}

// clientID is the remote IP; X-Forwarded-For is not trusted
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		secs := int(info.RetryAfter.Seconds()) + 1
		response["retry_after"] = secs
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	s.logger.Warn("rate limit exceeded", zap.Int("limit", info.Limit))
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"run_log": s.runLog != nil,
	})
}

func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Warn("failed to encode JSON response", zap.Error(err))
	}
}

func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// fail maps err to its status code
func (s *Server) fail(w http.ResponseWriter, err error) {
	s.errorResponse(w, HTTPStatus(err), err.Error())
}
