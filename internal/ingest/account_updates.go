package ingest

import (
	"context"
	"errors"

	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/messages"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/reconcile"
	"github.com/example/creditors-ledger/internal/store"
)

// ProcessAccountUpdate absorbs an authoritative account snapshot. Events
// are ordered by (creation_date, last_change_ts, last_change_seqnum); older
// or replayed events are dropped. A snapshot with a newer creation date
// announces a recreated server account, which resets the ledger to zero so
// that the new epoch's transfers can replay from number one.
func (s *Service) ProcessAccountUpdate(ctx context.Context, m *messages.AccountUpdate) error {
	now := s.now().UTC()
	if now.Sub(m.TS) > m.TTL {
		s.log.Debug("dropping account update past its ttl",
			"creditor_id", m.CreditorID, "debtor_id", m.DebtorID)
		return nil
	}

	return s.store.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountDataForUpdate(ctx, m.CreditorID, m.DebtorID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if m.TS.After(data.LastHeartbeatTS) {
			data.LastHeartbeatTS = minTime(m.TS, now)
		}
		if !isNewerEvent(data, m) {
			return tx.UpdateAccountData(ctx, data)
		}

		newEpoch := m.CreationDate.After(data.CreationDate)

		data.CreationDate = m.CreationDate
		data.LastChangeTS = m.LastChangeTS
		data.LastChangeSeqnum = m.LastChangeSeqnum
		data.Principal = m.Principal
		data.Interest = m.Interest
		data.InterestRate = m.InterestRate
		data.LastTransferNumber = m.LastTransferNumber
		data.LastTransferCommittedAt = m.LastTransferCommittedAt
		data.HasServerAccount = true
		data.AccountIdentity = m.AccountIdentity
		data.StatusFlags = m.StatusFlags
		data.ConfigEffectual = m.ConfigEffectual

		if newEpoch {
			// Discard the dead epoch's reconciled position. The
			// corrections drive the ledger principal back to
			// zero, and transfer numbering restarts.
			data.LedgerLastTransferNumber = 0
			data.LedgerLastTransferCommittedAt = models.TS0
			if err := reconcile.ApplyLedgerUpdate(ctx, tx, data, reconcile.LedgerUpdate{
				AcquiredAmount: 0,
				Principal:      0,
				TransferNumber: 0,
				CommittedAt:    models.TS0,
			}, now); err != nil {
				return err
			}
		}
		if data.LastTransferNumber > data.LedgerLastTransferNumber {
			if err := tx.EnsurePendingLedgerUpdate(ctx, m.CreditorID, m.DebtorID); err != nil {
				return err
			}
		}

		data.InfoLatestUpdateID++
		data.InfoLatestUpdateTS = now
		if err := logfeed.Stage(ctx, tx, m.CreditorID,
			models.AccountInfoTopic{CreditorID: m.CreditorID, DebtorID: m.DebtorID},
			now, logfeed.Options{ObjectUpdateID: data.InfoLatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateAccountData(ctx, data)
	})
}

// ProcessAccountPurge marks the server-side account as gone. Only purges
// for the account's current (or a later) epoch count; a purge for an old
// epoch is a relic of a recreation that was already absorbed.
func (s *Service) ProcessAccountPurge(ctx context.Context, m *messages.AccountPurge) error {
	now := s.now().UTC()

	return s.store.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountDataForUpdate(ctx, m.CreditorID, m.DebtorID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if !data.HasServerAccount || m.CreationDate.Before(data.CreationDate) {
			return nil
		}

		data.HasServerAccount = false
		data.ConfigEffectual = false
		data.Principal = 0
		data.Interest = 0
		data.InterestRate = 0
		data.InfoLatestUpdateID++
		data.InfoLatestUpdateTS = now
		if err := logfeed.Stage(ctx, tx, m.CreditorID,
			models.AccountInfoTopic{CreditorID: m.CreditorID, DebtorID: m.DebtorID},
			now, logfeed.Options{ObjectUpdateID: data.InfoLatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateAccountData(ctx, data)
	})
}

// isNewerEvent orders snapshots by (creation_date, last_change_ts,
// last_change_seqnum), the seqnum compared circularly so int32 wraparound
// does not freeze the account.
func isNewerEvent(data *models.AccountData, m *messages.AccountUpdate) bool {
	if !m.CreationDate.Equal(data.CreationDate) {
		return m.CreationDate.After(data.CreationDate)
	}
	if !m.LastChangeTS.Equal(data.LastChangeTS) {
		return m.LastChangeTS.After(data.LastChangeTS)
	}
	return m.LastChangeSeqnum-data.LastChangeSeqnum > 0
}
