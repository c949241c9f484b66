// Package server assembles the console's HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/wolfmystrix/mystrix-console/internal/server/handler"
	"github.com/wolfmystrix/mystrix-console/internal/server/middleware"
	"github.com/wolfmystrix/mystrix-console/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
}

// Handlers aggregates the HTTP handlers the server registers. Nil entries
// skip their routes, so modes only expose what they actually run.
type Handlers struct {
	Health    *handler.HealthHandler
	Status    *handler.StatusHandler
	Positions *handler.PositionHandler
	Prices    *handler.PriceHandler
	PnL       *handler.PnLHandler
	Journal   *handler.JournalHandler
	Paper     *handler.PaperHandler
	Demo      *handler.DemoHandler
}

// Server is the console's HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers all routes and wires the middleware chain.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	if handlers.Health != nil {
		mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	}
	if handlers.Status != nil {
		mux.HandleFunc("GET /api/status", handlers.Status.Status)
		mux.HandleFunc("GET /api/balance", handlers.Status.Balance)
		mux.HandleFunc("POST /api/router", handlers.Status.ToggleRouter)
	}
	if handlers.Positions != nil {
		mux.HandleFunc("GET /api/positions", handlers.Positions.ListPositions)
		mux.HandleFunc("POST /api/positions", handlers.Positions.AddManual)
		mux.HandleFunc("POST /api/positions/close", handlers.Positions.ClosePosition)
		mux.HandleFunc("PUT /api/positions/stops", handlers.Positions.EditStops)
	}
	if handlers.Prices != nil {
		mux.HandleFunc("GET /api/prices", handlers.Prices.GetPrices)
	}
	if handlers.PnL != nil {
		mux.HandleFunc("GET /api/pnl/series", handlers.PnL.Series)
	}
	if handlers.Journal != nil {
		mux.HandleFunc("GET /api/trades", handlers.Journal.ListTrades)
		mux.HandleFunc("GET /api/signals", handlers.Journal.ListSignals)
	}
	if handlers.Paper != nil {
		mux.HandleFunc("POST /api/paper/reset", handlers.Paper.Reset)
	}
	if handlers.Demo != nil {
		mux.HandleFunc("POST /api/demo", handlers.Demo.Run)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
	}
}

// Start listens for HTTP requests until the server errors or shuts down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
