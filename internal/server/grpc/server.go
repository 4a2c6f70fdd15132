// Package grpcserver runs the ops gRPC endpoint: standard health checking plus reflection in dev mode.
package grpcserver

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// Check probes one dependency, e.g. the database.
type Check func(ctx context.Context) error

// Server wraps a grpc.Server exposing grpc.health.v1.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	checks map[string]Check
	log    *zap.Logger
}

// New builds the server with recovery and logging interceptors. Each check is reported as
// its own health service; the overall "" service is SERVING only when every check passes.
func New(log *zap.Logger, dev bool, checks map[string]Check) *Server {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			RecoverUnary(log),
			LoggingUnary(log),
		),
		grpc.ChainStreamInterceptor(RecoverStream(log)),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if dev {
		reflection.Register(s)
	}
	return &Server{srv: s, health: hs, checks: checks, log: log}
}

// Serve accepts connections on lis until Stop.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("ops grpc listening", zap.String("addr", lis.Addr().String()))
	return s.srv.Serve(lis)
}

// CheckOnce runs every check and publishes the results.
func (s *Server) CheckOnce(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	for name, check := range s.checks {
		st := healthpb.HealthCheckResponse_SERVING
		if err := check(ctx); err != nil {
			s.log.Warn("health check failed", zap.String("check", name), zap.Error(err))
			st = healthpb.HealthCheckResponse_NOT_SERVING
			overall = st
		}
		s.health.SetServingStatus(name, st)
	}
	s.health.SetServingStatus("", overall)
}

// Watch runs the checks every interval until ctx is done.
func (s *Server) Watch(ctx context.Context, interval time.Duration) {
	s.CheckOnce(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.CheckOnce(ctx)
		}
	}
}

// Stop drains in-flight calls, forcing a stop after timeout.
func (s *Server) Stop(timeout time.Duration) {
	s.health.Shutdown()
	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		s.srv.Stop()
	}
}
