// Package server provides the REST status and control API for the hypervisor.
// It is a thin consumer of the core's lifecycle and snapshot operations; the
// core never depends on it.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/biovisor/biovisor/internal/config"
	"github.com/biovisor/biovisor/internal/hypervisor"
	"github.com/biovisor/biovisor/internal/telemetry"
)

// Server represents the main HTTP server.
type Server struct {
	config     *config.Config
	logger     *zap.Logger
	httpServer *http.Server
	mux        *http.ServeMux

	hv       *hypervisor.Hypervisor
	recorder *telemetry.Recorder
	metrics  *telemetry.Metrics
}

// New creates a new server instance around an existing hypervisor.
func New(cfg *config.Config, hv *hypervisor.Hypervisor, recorder *telemetry.Recorder, metrics *telemetry.Metrics, logger *zap.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		config:   cfg,
		logger:   logger.Named("server"),
		mux:      mux,
		hv:       hv,
		recorder: recorder,
		metrics:  metrics,
	}

	s.registerRoutes()

	handler := s.setupMiddleware(mux)
	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// Handler exposes the configured handler chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// registerRoutes wires all HTTP routes.
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/healthz", s.healthHandler)
	s.mux.HandleFunc("/api/v1/status", s.statusHandler)
	s.mux.HandleFunc("/api/v1/telemetry", s.telemetryHandler)
	s.mux.HandleFunc("/api/v1/telemetry/ws", s.telemetryStreamHandler)

	vmHandler := NewVMHandler(s)
	s.mux.Handle("/api/v1/vms", vmHandler)
	s.mux.Handle("/api/v1/vms/", vmHandler)

	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}
}

// setupMiddleware configures the middleware chain.
func (s *Server) setupMiddleware(handler http.Handler) http.Handler {
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   s.config.CORS.AllowedOrigins,
		AllowedMethods:   s.config.CORS.AllowedMethods,
		AllowedHeaders:   s.config.CORS.AllowedHeaders,
		AllowCredentials: s.config.CORS.AllowCredentials,
		MaxAge:           86400, // 24 hours
	})

	return corsHandler.Handler(handler)
}

// Run starts the server and blocks until the context is cancelled or the
// listener fails.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting server",
		zap.String("address", s.config.Server.Address()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	return s.Shutdown()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.Server.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(s.logger, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(s.logger, w, http.StatusMethodNotAllowed, "method_not_allowed", "GET only")
		return
	}
	writeJSON(s.logger, w, http.StatusOK, s.hv.GetSystemStatus())
}
