package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// Worker drains pending-ledger-update markers: it applies the backlog of
// committed transfers that ingestion could not absorb synchronously.
type Worker struct {
	store store.Store
	log   *slog.Logger

	// maxDelay is how long the worker keeps waiting for a missing
	// predecessor transfer before applying across the gap.
	maxDelay time.Duration

	// maxCount caps the transfers applied per transaction.
	maxCount int

	now func() time.Time
}

func NewWorker(s store.Store, log *slog.Logger, maxDelay time.Duration, maxCount int) *Worker {
	return &Worker{store: s, log: log, maxDelay: maxDelay, maxCount: maxCount, now: time.Now}
}

// ProcessPendingLedgerUpdate handles one marked account in one transaction.
// It reports how many transfers were applied and whether the account's
// backlog is fully drained; the marker is deleted only when it is. A kept
// marker with zero progress means a recent gap is being awaited: polling
// keeps retrying it until the missing transfer arrives or the patience
// window lapses and the gap is applied across.
func (w *Worker) ProcessPendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) (int, bool, error) {
	applied := 0
	done := true
	err := w.store.InTx(ctx, func(tx store.Tx) error {
		applied = 0
		done = true
		err := tx.LockPendingLedgerUpdate(ctx, creditorID, debtorID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		data, err := tx.GetAccountDataForUpdate(ctx, creditorID, debtorID)
		if errors.Is(err, store.ErrNotFound) {
			return tx.DeletePendingLedgerUpdate(ctx, creditorID, debtorID)
		}
		if err != nil {
			return err
		}

		now := w.now().UTC()
		transfers, err := tx.ListCommittedTransfers(ctx, creditorID, debtorID,
			data.CreationDate, data.LedgerLastTransferNumber, w.maxCount)
		if err != nil {
			return err
		}

		waitingOnGap := false
		for i := range transfers {
			ct := &transfers[i]
			if ct.PreviousTransferNumber != data.LedgerLastTransferNumber &&
				ct.CommittedAt.After(now.Add(-w.maxDelay)) {
				// A predecessor is still missing and recent
				// enough to keep waiting for. The marker is
				// kept so polling returns here until the gap
				// fills or outlives the patience window.
				ts := ct.CommittedAt
				data.LedgerPendingTransferTS = &ts
				waitingOnGap = true
				done = false
				break
			}
			if err := ApplyLedgerUpdate(ctx, tx, data, LedgerUpdate{
				AcquiredAmount: ct.AcquiredAmount,
				Principal:      ct.Principal,
				TransferNumber: ct.TransferNumber,
				CreationDate:   ct.CreationDate,
				CommittedAt:    ct.CommittedAt,
			}, now); err != nil {
				return err
			}
			applied++
		}

		if !waitingOnGap {
			if len(transfers) >= w.maxCount {
				// The batch may have been truncated.
				done = false
			} else if err := w.catchUpIfStale(ctx, tx, data, now); err != nil {
				return err
			}
		}
		if err := tx.UpdateAccountData(ctx, data); err != nil {
			return err
		}
		if done {
			return tx.DeletePendingLedgerUpdate(ctx, creditorID, debtorID)
		}
		return nil
	})
	return applied, done, err
}

// catchUpIfStale forces the ledger to the authoritative principal when the
// account's last transfer is known to be far ahead of the ledger and old
// enough that its notification is presumed lost.
func (w *Worker) catchUpIfStale(ctx context.Context, tx store.Tx, data *models.AccountData, now time.Time) error {
	if data.LastTransferNumber <= data.LedgerLastTransferNumber {
		return nil
	}
	if data.LastTransferCommittedAt.After(now.Add(-w.maxDelay)) {
		return nil
	}
	w.log.Warn("synthesizing ledger catch-up for lost transfers",
		"creditor_id", data.CreditorID,
		"debtor_id", data.DebtorID,
		"ledger_last_transfer_number", data.LedgerLastTransferNumber,
		"last_transfer_number", data.LastTransferNumber)
	return ApplyLedgerUpdate(ctx, tx, data, LedgerUpdate{
		AcquiredAmount: 0,
		Principal:      data.Principal,
		TransferNumber: data.LastTransferNumber,
		CommittedAt:    data.LastTransferCommittedAt,
	}, now)
}
