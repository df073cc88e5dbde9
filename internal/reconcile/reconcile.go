// Package reconcile absorbs committed transfers into account ledgers. The
// ledger is a gap-free append-only sequence per account: every application
// first closes any drift between the reconciled principal and the expected
// pre-transfer principal with correction entries, then appends the
// transfer-linked entry itself.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// LedgerUpdate is one application against an account's ledger: a committed
// transfer, or a synthetic zero-amount application used to force the ledger
// to an authoritative principal.
type LedgerUpdate struct {
	AcquiredAmount int64
	Principal      int64
	TransferNumber int64
	CreationDate   time.Time
	CommittedAt    time.Time
}

// ApplyLedgerUpdate absorbs one update into the account's ledger, mutating
// data in place. The caller must hold the account_data row lock and must
// persist data afterwards.
//
// When at least one ledger entry was appended, exactly one "AccountLedger"
// entry is staged, regardless of how many entries it took. An application
// that appends nothing leaves the ledger's update id alone and stages no
// log entry.
func ApplyLedgerUpdate(ctx context.Context, tx store.Tx, data *models.AccountData, up LedgerUpdate, now time.Time) error {
	previousPrincipal, ok := subtract(up.Principal, up.AcquiredAmount)
	if !ok {
		return fmt.Errorf("principal %d minus acquired amount %d overflows", up.Principal, up.AcquiredAmount)
	}
	appended := false

	// Close the drift between the reconciled principal and the expected
	// pre-transfer principal. Each correction amount is clamped into
	// int64, so huge discrepancies take several entries.
	for data.LedgerPrincipal != previousPrincipal {
		amount := clampedDelta(previousPrincipal, data.LedgerPrincipal)
		data.LedgerLastEntryID++
		if err := tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
			CreditorID:     data.CreditorID,
			DebtorID:       data.DebtorID,
			EntryID:        data.LedgerLastEntryID,
			AcquiredAmount: amount,
			Principal:      data.LedgerPrincipal + amount,
			AddedAt:        now,
		}); err != nil {
			return err
		}
		data.LedgerPrincipal += amount
		appended = true
	}

	if up.AcquiredAmount != 0 {
		creationDate := up.CreationDate
		transferNumber := up.TransferNumber
		data.LedgerLastEntryID++
		if err := tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
			CreditorID:     data.CreditorID,
			DebtorID:       data.DebtorID,
			EntryID:        data.LedgerLastEntryID,
			CreationDate:   &creationDate,
			TransferNumber: &transferNumber,
			AcquiredAmount: up.AcquiredAmount,
			Principal:      up.Principal,
			AddedAt:        now,
		}); err != nil {
			return err
		}
		data.LedgerPrincipal = up.Principal
		appended = true
	}

	data.LedgerLastTransferNumber = up.TransferNumber
	data.LedgerLastTransferCommittedAt = up.CommittedAt
	data.LedgerPendingTransferTS = nil
	if !appended {
		return nil
	}
	data.LedgerLatestUpdateID++
	data.LedgerLatestUpdateTS = now

	principal := data.LedgerPrincipal
	nextEntryID := data.LedgerLastEntryID + 1
	return logfeed.Stage(ctx, tx, data.CreditorID,
		models.AccountLedgerTopic{CreditorID: data.CreditorID, DebtorID: data.DebtorID},
		now, logfeed.Options{
			ObjectUpdateID:  data.LedgerLatestUpdateID,
			DataPrincipal:   &principal,
			DataNextEntryID: &nextEntryID,
		})
}

// subtract returns a-b, reporting false on int64 overflow.
func subtract(a, b int64) (int64, bool) {
	d := a - b
	if (b < 0 && d < a) || (b > 0 && d > a) {
		return 0, false
	}
	return d, true
}

// clampedDelta returns target-current clamped to [-MaxInt64, MaxInt64].
func clampedDelta(target, current int64) int64 {
	d := target - current
	switch {
	case current < 0 && target > 0 && d < 0:
		return models.MaxInt64
	case current > 0 && target < 0 && d > 0:
		return -models.MaxInt64
	case d == models.MinInt64:
		return -models.MaxInt64
	}
	return d
}
