// Package web serves the match service over plain HTTP and websockets.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/najoast/snakepit/bootstrap"
	"github.com/najoast/snakepit/service"
)

// Options tunes the HTTP server.
type Options struct {
	// Logger receives request logs; nil discards them
	Logger *log.Logger

	// Debug logs every request, not just failures
	Debug bool

	// WatchInterval is how often a watch stream polls the match
	WatchInterval time.Duration
}

// Server handles HTTP requests
type Server struct {
	addr      string
	svc       *service.MatchService
	logger    *log.Logger
	debug     bool
	interval  time.Duration
	startTime time.Time

	mu       sync.Mutex
	health   HealthSource
	http     *http.Server
	listener net.Listener
	serveErr chan error
}

// HealthSource reports the health of every service in the process.
type HealthSource interface {
	Health(ctx context.Context) (map[string]bootstrap.HealthStatus, error)
}

// NewServer creates a server that will listen on addr once started.
func NewServer(addr string, svc *service.MatchService, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	interval := opts.WatchInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	return &Server{
		addr:      addr,
		svc:       svc,
		logger:    logger,
		debug:     opts.Debug,
		interval:  interval,
		startTime: time.Now(),
	}
}

// Routes sets up the HTTP routes with middleware
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware)

	r.Get("/", s.handleIndex)
	r.Get("/health", s.handleHealth)
	r.Get("/matches", s.handleListMatches)

	r.Get("/create/{height}/{width}/{tick}", s.handleCreate)
	r.Get("/join/{match}", s.handleJoin)
	r.Get("/start/{match}/{player}", s.handleStart)
	r.Get("/update/{match}/{player}/{direction}", s.handleUpdate)
	r.Get("/status/{match}/{player}", s.handleStatus)
	r.Get("/watch/{match}/{player}", s.handleWatch)

	return r
}

// Name returns the service name
func (s *Server) Name() string {
	return "http"
}

// Addr returns the listener address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		lis.Close()
		return errors.New("http server already started")
	}

	s.listener = lis
	s.http = &http.Server{
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.serveErr = make(chan error, 1)
	go func() {
		s.serveErr <- s.http.Serve(lis)
	}()

	s.logger.Printf("http server listening at %v", lis.Addr())
	return nil
}

// Stop shuts the server down, waiting for in-flight requests until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	srv, serveErr := s.http, s.serveErr
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if err := srv.Shutdown(ctx); err != nil {
		srv.Close()
		return fmt.Errorf("shutdown http server: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve http: %w", err)
	}
	return nil
}

// Health reports whether the server is accepting requests.
func (s *Server) Health(ctx context.Context) (bootstrap.HealthStatus, error) {
	s.mu.Lock()
	started := s.listener != nil
	s.mu.Unlock()

	st := bootstrap.HealthStatus{
		State:     bootstrap.HealthHealthy,
		Message:   "serving",
		LastCheck: time.Now(),
		Data: map[string]any{
			"address": s.Addr(),
		},
	}
	if !started {
		st.State = bootstrap.HealthStarting
		st.Message = "not listening"
	}
	return st, nil
}

// SetHealthSource makes /health report src. Without one /health only covers
// this server.
func (s *Server) SetHealthSource(src HealthSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = src
}

func (s *Server) healthSource() HealthSource {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health
}

// envelope is the response body of every match route.
type envelope struct {
	Error    bool `json:"error"`
	Response any  `json:"response"`
}

// writeJSON writes a JSON response with proper headers
func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Printf("write response: %v", err)
	}
}

func (s *Server) writeOK(w http.ResponseWriter, response any) {
	s.writeJSON(w, http.StatusOK, envelope{Response: response})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, httpStatus(err), envelope{Error: true, Response: errorMessage(err)})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		if ww.Status() >= http.StatusInternalServerError || s.debug {
			s.logger.Printf("method=%s path=%s status=%d duration=%v request_id=%s",
				r.Method,
				r.URL.Path,
				ww.Status(),
				time.Since(start),
				middleware.GetReqID(r.Context()),
			)
		}
	})
}
