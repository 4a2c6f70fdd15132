// Package httpserver serves /metrics for Prometheus and a plain /status line for deploy checks.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Server is the metrics and status HTTP endpoint.
type Server struct {
	srv     *http.Server
	log     *zap.Logger
	started time.Time
}

// New builds the server; status is the version line /status answers with.
func New(addr, status string, log *zap.Logger) *Server {
	s := &Server{log: log, started: time.Now()}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.routes(status),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes(status string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /status", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = fmt.Fprintf(w, "%s, up %s\n", status, time.Since(s.started).Truncate(time.Second))
	})
	return mux
}

// Serve accepts connections on lis until Shutdown.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("metrics http listening", zap.String("addr", lis.Addr().String()))
	if err := s.srv.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server, waiting for active requests until ctx is done.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
