// Package grpc runs the gRPC listener that carries the standard health
// service, so orchestrators can probe the serve command.
package grpc

import (
	"context"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check reports whether a dependency is usable
type Check func(ctx context.Context) error

// Server wraps a gRPC server with a health service driven by checks
type Server struct {
	server  *grpc.Server
	health  *health.Server
	name    string
	checks  map[string]Check
	logger  *zap.Logger
	stopped chan struct{}
}

// NewServer creates a gRPC server reporting name as the health service
func NewServer(name string, checks map[string]Check, logger *zap.Logger) *Server {
	logger = logger.Named("grpc")
	server := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			UnaryRecoveryInterceptor(logger),
			UnaryLoggingInterceptor(logger),
		),
		grpc.ChainStreamInterceptor(
			StreamRecoveryInterceptor(logger),
			StreamLoggingInterceptor(logger),
		),
	)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return &Server{
		server:  server,
		health:  healthServer,
		name:    name,
		checks:  checks,
		logger:  logger,
		stopped: make(chan struct{}),
	}
}

// Serve accepts connections on lis until Stop
func (s *Server) Serve(lis net.Listener) error {
	s.setStatus(grpc_health_v1.HealthCheckResponse_SERVING)
	s.logger.Info("starting gRPC server", zap.String("addr", lis.Addr().String()))
	return s.server.Serve(lis)
}

// ListenAndServe listens on port and serves
func (s *Server) ListenAndServe(port int) error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return fmt.Errorf("failed to listen on gRPC port: %w", err)
	}
	return s.Serve(lis)
}

// Probe runs the checks every interval and updates the serving status
// until ctx is done.
func (s *Server) Probe(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.probeOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) probeOnce(ctx context.Context) {
	status := grpc_health_v1.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := check(checkCtx)
		cancel()
		if err != nil {
			s.logger.Warn("health check failed", zap.String("check", name), zap.Error(err))
			status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
		}
	}
	s.setStatus(status)
}

func (s *Server) setStatus(status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(s.name, status)
}

// Stop marks the server not serving and stops it gracefully, forcing the
// stop when ctx expires first.
func (s *Server) Stop(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-ctx.Done():
		s.logger.Warn("shutdown timeout exceeded, forcing stop")
		s.server.Stop()
	case <-done:
		s.logger.Info("gRPC server stopped gracefully")
	}
}
