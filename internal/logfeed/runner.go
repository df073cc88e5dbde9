package logfeed

import (
	"context"
	"time"

	"github.com/example/creditors-ledger/internal/store"
)

// Runner periodically flushes every creditor with staged pending entries.
type Runner struct {
	svc      *Service
	interval time.Duration
	batch    int
}

func NewRunner(svc *Service, interval time.Duration, batch int) *Runner {
	return &Runner{svc: svc, interval: interval, batch: batch}
}

func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	var creditorIDs []int64
	err := r.svc.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		creditorIDs, err = tx.ListCreditorsWithPendingLogEntries(ctx, r.batch)
		return err
	})
	if err != nil {
		r.svc.log.Error("failed to list creditors with pending log entries", "error", err)
		return
	}

	for _, creditorID := range creditorIDs {
		n, err := r.svc.FlushPendingLogEntries(ctx, creditorID)
		if err != nil {
			r.svc.log.Error("failed to flush pending log entries",
				"creditor_id", creditorID, "error", err)
			continue
		}
		if n > 0 {
			r.svc.log.Debug("flushed pending log entries",
				"creditor_id", creditorID, "entries", n)
		}
	}
}
