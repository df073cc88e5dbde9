// Package retention prunes committed transfer records that have aged out.
// Ledger entries are kept: they carry the permanent entry ids, while the
// transfer records only exist so recent history can be re-read.
package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/creditors-ledger/internal/store"
)

type Pruner struct {
	store     store.Store
	log       *slog.Logger
	retention time.Duration
	batch     int

	now func() time.Time
}

func NewPruner(s store.Store, log *slog.Logger, retention time.Duration, batch int) *Pruner {
	if batch <= 0 {
		batch = 1000
	}
	return &Pruner{store: s, log: log, retention: retention, batch: batch, now: time.Now}
}

// PruneOnce deletes one batch of committed transfers older than the
// retention window and reports how many rows went.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	cutoff := p.now().UTC().Add(-p.retention)
	var deleted int64
	err := p.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		deleted, err = tx.DeleteCommittedTransfersBefore(ctx, cutoff, p.batch)
		return err
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		p.log.Info("pruned committed transfers", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}

// Run prunes on every tick until the context is canceled. Full batches
// are drained immediately instead of waiting for the next tick.
func (p *Pruner) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			for {
				deleted, err := p.PruneOnce(ctx)
				if err != nil {
					p.log.Error("prune failed", "error", err)
					break
				}
				if deleted < int64(p.batch) {
					break
				}
			}
		}
	}
}
