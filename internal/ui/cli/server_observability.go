package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"

	"querysync/internal/core/app"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ObservabilityServer struct {
	addr          string
	healthService *app.HealthService
	server        *http.Server
	listener      net.Listener
}

func NewObservabilityServer(addr string, healthService *app.HealthService) *ObservabilityServer {
	return &ObservabilityServer{
		addr:          addr,
		healthService: healthService,
	}
}

func (s *ObservabilityServer) handler() http.Handler {
	mux := http.NewServeMux()

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.Handler())

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := s.healthService.Check(r.Context())
		w.Header().Set("Content-Type", "application/json")
		if status.Status != "up" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(status)
	})
	return mux
}

// Start binds the address and serves in the background.
func (s *ObservabilityServer) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler: s.handler(),
	}

	slog.Info("observability server starting", "addr", ln.Addr().String())

	go func() {
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

// Addr is the bound address once started.
func (s *ObservabilityServer) Addr() string {
	if s.listener == nil {
		return s.addr
	}
	return s.listener.Addr().String()
}

func (s *ObservabilityServer) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
