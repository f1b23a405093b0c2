package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/najoast/snakepit/bootstrap"
	"github.com/najoast/snakepit/protocol"
)

// Server hosts the match service and the gRPC health service.
type Server struct {
	addr       string
	svc        *MatchService
	grpcServer *grpc.Server
	health     *health.Server
	logger     *log.Logger
	debug      bool

	mu       sync.Mutex
	listener net.Listener
	serveErr chan error
}

// ServerOptions tunes the gRPC server.
type ServerOptions struct {
	// Logger receives request logs; nil discards them
	Logger *log.Logger

	// Debug logs every request, not just failures
	Debug bool
}

// NewServer creates a server that will listen on addr once started.
func NewServer(addr string, svc *MatchService, opts ServerOptions) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}

	s := &Server{
		addr:   addr,
		svc:    svc,
		health: health.NewServer(),
		logger: logger,
		debug:  opts.Debug,
	}

	s.grpcServer = grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.recoverInterceptor, s.logInterceptor),
	)
	RegisterMatchServer(s.grpcServer, svc)
	grpc_health_v1.RegisterHealthServer(s.grpcServer, s.health)
	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	s.health.SetServingStatus(protocol.ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return s
}

// Name returns the service name
func (s *Server) Name() string {
	return "grpc"
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
	return s.ServeListener(lis)
}

// ServeListener serves on an existing listener in the background.
func (s *Server) ServeListener(lis net.Listener) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listener != nil {
		return errors.New("grpc server already started")
	}
	s.listener = lis
	s.serveErr = make(chan error, 1)

	go func() {
		s.serveErr <- s.grpcServer.Serve(lis)
	}()

	s.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	s.health.SetServingStatus(protocol.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
	s.logger.Printf("match service listening at %v", lis.Addr())
	return nil
}

// Stop drains in-flight calls, falling back to a hard stop when ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	serveErr := s.serveErr
	s.mu.Unlock()

	s.health.Shutdown()

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		s.logger.Printf("graceful stop timed out, forcing")
		s.grpcServer.Stop()
		<-stopped
	}

	if serveErr == nil {
		return nil
	}
	if err := <-serveErr; err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}
	return nil
}

// Health reports whether the server is accepting calls.
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
			"matches": s.svc.Directory().Len(),
		},
	}
	if !started {
		st.State = bootstrap.HealthStarting
		st.Message = "not listening"
	}
	return st, nil
}

func (s *Server) recoverInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Printf("panic in %s: %v", info.FullMethod, r)
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(ctx, req)
}

func (s *Server) logInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	if code == codes.Internal || code == codes.Unknown {
		s.logger.Printf("%s failed in %s: %v", info.FullMethod, time.Since(start), err)
	} else if s.debug {
		s.logger.Printf("%s %s in %s", info.FullMethod, code, time.Since(start))
	}
	return resp, err
}
