// Command ledgerd runs the creditor ledger background workers: the
// deferred reconciliation loop, the log flusher, and the committed
// transfer pruner.
package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/example/creditors-ledger/internal/config"
	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/reconcile"
	"github.com/example/creditors-ledger/internal/retention"
	"github.com/example/creditors-ledger/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to create postgres pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	db := store.NewPostgres(pool)
	if err := db.Migrate(ctx); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}

	worker := reconcile.NewWorker(db, logger, cfg.MaxDelay, cfg.MaxCount)
	flusher := logfeed.NewService(db, logger)
	pruner := retention.NewPruner(db, logger, cfg.TransferRetention, cfg.MaxCount)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return reconcile.NewRunner(worker, cfg.ReconcileInterval, cfg.MaxCount).Run(ctx)
	})
	g.Go(func() error {
		return logfeed.NewRunner(flusher, cfg.FlushInterval, cfg.FlushBatch).Run(ctx)
	})
	g.Go(func() error {
		return pruner.Run(ctx, cfg.FlushInterval*10)
	})

	logger.Info("ledgerd started",
		"max_delay", cfg.MaxDelay,
		"max_count", cfg.MaxCount,
		"reconcile_interval", cfg.ReconcileInterval,
		"flush_interval", cfg.FlushInterval)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker error", "error", err)
		os.Exit(1)
	}
	logger.Info("ledgerd stopped")
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
