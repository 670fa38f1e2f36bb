package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/tally-books/tally/internal/api"
	"github.com/tally-books/tally/internal/app/backup"
	"github.com/tally-books/tally/internal/app/bootstrap"
	"github.com/tally-books/tally/internal/app/catalog"
	"github.com/tally-books/tally/internal/app/currency"
	"github.com/tally-books/tally/internal/app/ledger"
	"github.com/tally-books/tally/internal/app/report"
	"github.com/tally-books/tally/internal/infra/observability"
	"github.com/tally-books/tally/internal/infra/sqlite"
	"github.com/tally-books/tally/pkg/logger"
)

// Daemon owns the store and every service built on it.
type Daemon struct {
	Config Config
	Log    *zap.Logger
	DB     *sqlite.DB
	Seeded bootstrap.Result

	Journal  *observability.Journal
	Catalog  *catalog.Service
	Currency *currency.Service
	Ledger   *ledger.Engine
	Reports  *report.Service
	Backup   *backup.Service
}

// New opens the store, wires the services and seeds defaults into empty
// collections.
func New(ctx context.Context, cfg Config) (*Daemon, error) {
	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	db, err := sqlite.Open(cfg.Store.Dir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	legacy := cfg.Currency.Legacy
	journal := observability.NewJournal(observability.DefaultJournalConfig())
	d := &Daemon{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Journal:  journal,
		Catalog:  catalog.New(cfg.Catalog, db, legacy, logger.Named(log, "catalog")),
		Currency: currency.New(currency.Config{Legacy: legacy}, db, logger.Named(log, "currency"), journal),
		Ledger:   ledger.New(cfg.Ledger, db, legacy, logger.Named(log, "ledger"), journal),
		Reports:  report.New(db, legacy, logger.Named(log, "report")),
		Backup:   backup.New(cfg.Backup, db, logger.Named(log, "backup")),
	}

	d.Seeded, err = bootstrap.Seed(ctx, db, d.Currency, cfg.Bootstrap, logger.Named(log, "bootstrap"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("seed defaults: %w", err)
	}
	return d, nil
}

// Services returns the API's view of the daemon.
func (d *Daemon) Services() api.Services {
	return api.Services{
		Catalog:  d.Catalog,
		Currency: d.Currency,
		Ledger:   d.Ledger,
		Reports:  d.Reports,
		Backup:   d.Backup,
		Journal:  d.Journal,
	}
}

// Serve listens on the configured address and serves the HTTP API until ctx
// is cancelled.
func (d *Daemon) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", d.Config.API.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", d.Config.API.Addr(), err)
	}
	return d.ServeListener(ctx, ln)
}

// ServeListener runs the backup scheduler and serves the HTTP API on ln
// until ctx is cancelled, then shuts down gracefully. Request contexts are
// cancelled when shutdown starts, so long-lived event streams end instead
// of holding the shutdown open.
func (d *Daemon) ServeListener(ctx context.Context, ln net.Listener) error {
	srv := api.NewServer(d.Services(), logger.Named(d.Log, "api"))
	if d.Config.API.Metrics {
		srv.EnableMetrics()
	}

	sched := backup.NewScheduler(d.Backup, logger.Named(d.Log, "scheduler"))
	if err := sched.Start(); err != nil {
		ln.Close()
		return fmt.Errorf("start backup scheduler: %w", err)
	}
	defer sched.Stop()

	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	httpSrv := &http.Server{
		Handler:     srv.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		BaseContext: func(net.Listener) context.Context { return baseCtx },
	}
	httpSrv.RegisterOnShutdown(cancelBase)

	errCh := make(chan error, 1)
	go func() {
		d.Log.Info("server starting", zap.String("addr", ln.Addr().String()))
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	d.Log.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		d.Log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}

// Close flushes the logger and closes the store.
func (d *Daemon) Close() error {
	_ = d.Log.Sync()
	return d.DB.Close()
}
