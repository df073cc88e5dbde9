package reconcile

import (
	"context"
	"time"

	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// Runner periodically scans for pending-ledger-update markers and hands
// them to the worker. Marked accounts are processed to completion, one
// transaction per batch of transfers.
type Runner struct {
	worker   *Worker
	interval time.Duration
	batch    int
}

func NewRunner(worker *Worker, interval time.Duration, batch int) *Runner {
	return &Runner{worker: worker, interval: interval, batch: batch}
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
	var markers []models.PendingLedgerUpdate
	err := r.worker.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		markers, err = tx.ListPendingLedgerUpdates(ctx, r.batch)
		return err
	})
	if err != nil {
		r.worker.log.Error("failed to list pending ledger updates", "error", err)
		return
	}

	for _, m := range markers {
		for {
			applied, done, err := r.worker.ProcessPendingLedgerUpdate(ctx, m.CreditorID, m.DebtorID)
			if err != nil {
				r.worker.log.Error("failed to process pending ledger update",
					"creditor_id", m.CreditorID, "debtor_id", m.DebtorID, "error", err)
				break
			}
			// A gap-blocked account makes no progress; leave its kept
			// marker for the next tick instead of spinning on it.
			if done || applied == 0 {
				break
			}
		}
	}
}
