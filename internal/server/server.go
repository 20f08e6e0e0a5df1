package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mvbarbosa/lendpool/internal/domain"
	"github.com/mvbarbosa/lendpool/internal/server/handler"
	"github.com/mvbarbosa/lendpool/internal/server/middleware"
	"github.com/mvbarbosa/lendpool/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Rate limiting applies per client IP when a limiter is provided.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health     *handler.HealthHandler
	Quotes     *handler.QuoteHandler
	Loans      *handler.LoanHandler
	Offers     *handler.OfferHandler
	Statements *handler.StatementHandler
}

// Server is the HTTP + WebSocket API server for the lending marketplace.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered on the ServeMux.
// It wires up middleware (rate limiting, auth, logging, CORS) and attaches
// the WebSocket hub. The limiter and the Statements handler may be nil.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Pricing preview.
	mux.HandleFunc("POST /api/quotes", handlers.Quotes.PriceQuote)

	// Borrower endpoints.
	mux.HandleFunc("POST /api/loans", handlers.Loans.CreateLoan)
	mux.HandleFunc("GET /api/loans", handlers.Loans.ListLoans)
	mux.HandleFunc("GET /api/loans/{id}", handlers.Loans.GetLoan)
	mux.HandleFunc("GET /api/loans/{id}/schedule", handlers.Loans.GetSchedule)
	mux.HandleFunc("POST /api/loans/{id}/payments", handlers.Loans.RecordPayment)

	// Investor endpoints.
	mux.HandleFunc("GET /api/offers", handlers.Offers.ListOffers)
	mux.HandleFunc("GET /api/offers/{id}", handlers.Offers.GetOffer)
	mux.HandleFunc("GET /api/offers/{id}/commitments", handlers.Offers.ListCommitments)
	mux.HandleFunc("POST /api/offers/{id}/commitments", handlers.Offers.CreateCommitment)

	// Statement archival (requires object storage).
	if handlers.Statements != nil {
		mux.HandleFunc("POST /api/loans/{id}/statements", handlers.Statements.ArchiveStatement)
		mux.HandleFunc("POST /api/borrowers/{id}/exports", handlers.Statements.ExportPortfolio)
	}

	// WebSocket endpoint.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux

	if limiter != nil && cfg.RateLimit > 0 {
		window := cfg.RateLimitWindow
		if window <= 0 {
			window = time.Minute
		}
		h = middleware.RateLimit(limiter, cfg.RateLimit, window)(h)
	}

	h = middleware.Auth(cfg.APIKey)(h)
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
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
