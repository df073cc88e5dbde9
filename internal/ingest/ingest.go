// Package ingest consumes the accounting authority's notifications.
// Delivery is at-least-once and unordered, so every processor is an
// idempotent upsert against the account's state.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/messages"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/reconcile"
	"github.com/example/creditors-ledger/internal/store"
)

// DefaultFastPathIdle is how long an account's ledger must have been quiet
// before a contiguous transfer is applied synchronously. A busy ledger is
// left to the deferred worker, which batches.
const DefaultFastPathIdle = 5 * time.Second

type Service struct {
	store store.Store
	log   *slog.Logger

	fastPathIdle time.Duration
	now          func() time.Time
}

func NewService(s store.Store, log *slog.Logger, fastPathIdle time.Duration) *Service {
	if fastPathIdle <= 0 {
		fastPathIdle = DefaultFastPathIdle
	}
	return &Service{store: s, log: log, fastPathIdle: fastPathIdle, now: time.Now}
}

// ProcessCommittedTransfer records one committed transfer and absorbs it
// into the account's ledger, synchronously when cheap, otherwise via a
// pending-ledger-update marker. Duplicates and transfers for unknown
// accounts are silently dropped.
func (s *Service) ProcessCommittedTransfer(ctx context.Context, m *messages.CommittedTransfer) error {
	now := s.now().UTC()

	age := now.Sub(minTime(m.TS, m.CommittedAt))
	if age > m.TTL {
		s.log.Debug("dropping committed transfer past retention",
			"creditor_id", m.CreditorID, "debtor_id", m.DebtorID,
			"transfer_number", m.TransferNumber, "age", age)
		return nil
	}

	return s.store.InTx(ctx, func(tx store.Tx) error {
		exists, err := tx.CommittedTransferExists(ctx, m.CreditorID, m.DebtorID, m.CreationDate, m.TransferNumber)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		data, err := tx.GetAccountDataShared(ctx, m.CreditorID, m.DebtorID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if m.CreationDate.Before(data.CreationDate) {
			// A transfer from a dead epoch of the account.
			return nil
		}

		err = tx.InsertCommittedTransfer(ctx, &models.CommittedTransfer{
			CreditorID:             m.CreditorID,
			DebtorID:               m.DebtorID,
			CreationDate:           m.CreationDate,
			TransferNumber:         m.TransferNumber,
			CoordinatorType:        m.CoordinatorType,
			SenderID:               m.Sender,
			RecipientID:            m.Recipient,
			AcquiredAmount:         m.AcquiredAmount,
			TransferNote:           m.TransferNote,
			TransferNoteFormat:     m.TransferNoteFormat,
			CommittedAt:            m.CommittedAt,
			Principal:              m.Principal,
			PreviousTransferNumber: m.PreviousTransferNumber,
		})
		if errors.Is(err, store.ErrAlreadyExists) {
			// A concurrent delivery won the race.
			return nil
		}
		if err != nil {
			return err
		}

		if err := logfeed.Stage(ctx, tx, m.CreditorID, models.CommittedTransferTopic{
			CreditorID:     m.CreditorID,
			DebtorID:       m.DebtorID,
			CreationDate:   m.CreationDate,
			TransferNumber: m.TransferNumber,
		}, now, logfeed.Options{}); err != nil {
			return err
		}

		contiguous := m.CreationDate.Equal(data.CreationDate) &&
			m.PreviousTransferNumber == data.LedgerLastTransferNumber
		if contiguous && now.Sub(data.LedgerLatestUpdateTS) > s.fastPathIdle {
			locked, err := tx.GetAccountDataForUpdate(ctx, m.CreditorID, m.DebtorID)
			if err != nil {
				return err
			}
			if !m.CreationDate.Equal(locked.CreationDate) ||
				m.PreviousTransferNumber != locked.LedgerLastTransferNumber {
				// Lost a race with another application.
				return tx.EnsurePendingLedgerUpdate(ctx, m.CreditorID, m.DebtorID)
			}
			if err := reconcile.ApplyLedgerUpdate(ctx, tx, locked, reconcile.LedgerUpdate{
				AcquiredAmount: m.AcquiredAmount,
				Principal:      m.Principal,
				TransferNumber: m.TransferNumber,
				CreationDate:   m.CreationDate,
				CommittedAt:    m.CommittedAt,
			}, now); err != nil {
				return err
			}
			return tx.UpdateAccountData(ctx, locked)
		}
		return tx.EnsurePendingLedgerUpdate(ctx, m.CreditorID, m.DebtorID)
	})
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}
