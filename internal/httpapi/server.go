package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/devrev/rsmon/internal/config"
	"github.com/devrev/rsmon/internal/health"
	"github.com/devrev/rsmon/internal/registry"
)

// Server is the read-only debug HTTP surface: liveness/readiness,
// per-replica-set topology snapshots, and a Prometheus scrape endpoint.
type Server struct {
	router     *mux.Router
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer builds a Server routing against reg, configured by cfg.
func NewServer(cfg config.DebugHTTPConfig, reg *registry.MonitorRegistry, logger *zap.Logger) *Server {
	router := mux.NewRouter()
	checker := health.NewChecker(reg)

	middlewares := []func(http.Handler) http.Handler{
		recovery(logger),
		requestID,
		requestLogging(logger),
	}
	if cfg.RateLimitEnabled {
		rl := newRateLimiter(cfg.RequestsPerSecond, cfg.BurstSize, logger)
		middlewares = append(middlewares, rl.limit)
	}
	router.Use(chain(middlewares...))

	router.HandleFunc("/health/live", checker.LivenessHandler).Methods(http.MethodGet)
	router.HandleFunc("/health/ready", checker.ReadinessHandler).Methods(http.MethodGet)
	router.HandleFunc("/debug/topology/{set}", topologyHandler(reg)).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return &Server{router: router, httpServer: httpServer, logger: logger}
}

// topologyHandler serves the known-nodes snapshot for one replica set.
// It never triggers a fresh check — the Watcher owns that cadence.
func topologyHandler(reg *registry.MonitorRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["set"]
		for _, mon := range reg.Snapshot() {
			if mon.Name() != name {
				continue
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"replica_set": name,
				"nodes":       mon.Snapshot(),
			})
			return
		}
		http.Error(w, fmt.Sprintf("replica set %q not registered", name), http.StatusNotFound)
	}
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("starting debug HTTP server", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("debug http server: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
