// Package server wires the HTTP API and the WebSocket progress stream.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/poolpilot/internal/server/handler"
	"github.com/alanyoungcy/poolpilot/internal/server/middleware"
	"github.com/alanyoungcy/poolpilot/internal/server/ws"
)

// Config holds the HTTP server settings.
type Config struct {
	Port        int
	CORSOrigins []string
	Version     string
}

// Services bundles the handlers' dependencies. A nil Invest disables the
// invest endpoint, which monitor mode uses to serve history read-only.
type Services struct {
	Invest     handler.InvestStarter
	Operations handler.OperationReader
}

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
	hub        *ws.Hub
	logger     *slog.Logger
}

// New builds the server with all routes and middleware attached.
func New(cfg Config, svcs Services, hub *ws.Hub, logger *slog.Logger) *Server {
	log := logger.With(slog.String("component", "server"))

	healthHandler := handler.NewHealthHandler(cfg.Version)
	operationsHandler := handler.NewOperationsHandler(svcs.Operations)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", healthHandler.Health)
	if svcs.Invest != nil {
		investHandler := handler.NewInvestHandler(svcs.Invest)
		mux.HandleFunc("POST /api/invest", investHandler.Invest)
	} else {
		// Monitor mode serves history only.
		mux.HandleFunc("POST /api/invest", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"investing is disabled in monitor mode"}`))
		})
	}
	mux.HandleFunc("GET /api/operations", operationsHandler.List)
	mux.HandleFunc("GET /api/operations/{id}", operationsHandler.Get)
	mux.HandleFunc("GET /ws", hub.HandleWS)

	var root http.Handler = mux
	root = middleware.Logging(log)(root)
	root = middleware.CORS(cfg.CORSOrigins)(root)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Port),
			Handler:      root,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		hub:    hub,
		logger: log,
	}
}

// Start runs the HTTP server until it is shut down. It blocks.
func (s *Server) Start() error {
	s.logger.Info("http server starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("http server shutting down")
	return s.httpServer.Shutdown(ctx)
}
