package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mvbarbosa/lendpool/internal/server"
	"github.com/mvbarbosa/lendpool/internal/server/handler"
	"github.com/mvbarbosa/lendpool/internal/server/ws"
	"github.com/mvbarbosa/lendpool/internal/service"
	"github.com/mvbarbosa/lendpool/internal/store/postgres"
)

// serverShutdownTimeout bounds graceful HTTP shutdown on exit.
const serverShutdownTimeout = 5 * time.Second

// ServeMode runs the HTTP + WebSocket API until the context is cancelled.
// In standalone mode the same path runs against in-memory backends, so the
// cache, lock manager, rate limiter, and blob storage may be nil.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	loanSvc := service.NewLoanService(
		deps.LoanStore, deps.InstallmentStore, deps.OfferStore,
		deps.SignalBus, deps.AuditStore, a.logger,
	)
	fundingSvc := service.NewFundingService(
		deps.OfferStore, deps.CommitmentStore, deps.OfferCache,
		deps.LockManager, deps.SignalBus, deps.AuditStore,
		deps.Notifier, a.logger,
	)

	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Quotes: handler.NewQuoteHandler(loanSvc, a.logger),
		Loans:  handler.NewLoanHandler(loanSvc, a.logger),
		Offers: handler.NewOfferHandler(fundingSvc, a.logger),
	}

	// Statement archival needs object storage.
	if deps.BlobWriter != nil {
		stmtSvc := service.NewStatementService(
			deps.LoanStore, deps.InstallmentStore, deps.BlobWriter, a.logger,
		)
		handlers.Statements = handler.NewStatementHandler(stmtSvc, a.logger)
	}

	hub := ws.NewHub(deps.SignalBus, a.logger)

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: a.cfg.Server.RateLimitWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return hub.Run(ctx)
	})

	g.Go(func() error {
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})

	return g.Wait()
}

// MigrateMode applies pending database migrations and exits.
func (a *App) MigrateMode(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting migrate mode")

	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      a.cfg.Postgres.DSN,
		Host:     a.cfg.Postgres.Host,
		Port:     a.cfg.Postgres.Port,
		Database: a.cfg.Postgres.Database,
		User:     a.cfg.Postgres.User,
		Password: a.cfg.Postgres.Password,
		SSLMode:  a.cfg.Postgres.SSLMode,
		MaxConns: a.cfg.Postgres.PoolMaxConns,
		MinConns: a.cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return fmt.Errorf("app: postgres: %w", err)
	}
	defer pgClient.Close()

	if err := pgClient.RunMigrations(ctx); err != nil {
		return fmt.Errorf("app: migrations: %w", err)
	}

	a.logger.InfoContext(ctx, "migrations applied")
	return nil
}
