package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/marmos91/rctmon/internal/logger"
)

// Server exposes the Prometheus registry and a health endpoint over HTTP
// while the monitoring loop runs.
type Server struct {
	addr string
	http *http.Server
}

// NewServer builds the HTTP server for the given registry.
func NewServer(addr string, reg *prometheus.Registry) *Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return &Server{
		addr: addr,
		http: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start serves in a background goroutine until the context is cancelled,
// then shuts down gracefully.
func (s *Server) Start(ctx context.Context) {
	go func() {
		logger.Info("Metrics server listening", "addr", s.addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", "addr", s.addr, "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			logger.Warn("Metrics server shutdown", "error", err)
		}
	}()
}

// ListenAddr returns the URL of the /metrics endpoint on the configured
// listen address.
func (s *Server) ListenAddr() string {
	return fmt.Sprintf("http://%s/metrics", s.addr)
}
