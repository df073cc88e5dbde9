package logfeed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// Service appends staged pending entries to creditors' logs and serves
// reads of the resulting feeds.
type Service struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(s store.Store, log *slog.Logger) *Service {
	return &Service{store: s, log: log, now: time.Now}
}

// FlushPendingLogEntries drains the creditor's staged entries into its log
// in one transaction, returning the number of log entries written.
//
// Entry ids are allocated under the creditor row lock, so entries land in
// the log gap-free and in staging order. The creation or deletion of a
// Transfer additionally changes the creditor's transfer list, so such
// entries are followed by a synthesized "TransfersList" entry.
func (s *Service) FlushPendingLogEntries(ctx context.Context, creditorID int64) (int, error) {
	written := 0
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		written = 0
		pending, err := tx.ListPendingLogEntries(ctx, creditorID)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}
		lastPendingID := pending[len(pending)-1].PendingEntryID

		creditor, err := tx.GetCreditorForUpdate(ctx, creditorID)
		if errors.Is(err, store.ErrNotFound) {
			// The creditor is gone; the staged entries have no
			// feed to land in.
			return tx.DeletePendingLogEntries(ctx, creditorID, lastPendingID)
		}
		if err != nil {
			return err
		}

		for i := range pending {
			e := &pending[i]
			if err := s.appendLogEntry(ctx, tx, creditor, &models.LogEntry{
				CreditorID:      e.CreditorID,
				AddedAt:         e.AddedAt,
				ObjectType:      e.ObjectType,
				ObjectURI:       e.ObjectURI,
				ObjectUpdateID:  e.ObjectUpdateID,
				ObjectUpdateSeq: e.ObjectUpdateSeq,
				Deleted:         e.Deleted,
				DataPrincipal:   e.DataPrincipal,
				DataNextEntryID: e.DataNextEntryID,
				DataFinalizedAt: e.DataFinalizedAt,
				DataErrorCode:   e.DataErrorCode,
			}); err != nil {
				return err
			}
			written++

			if e.ObjectType == models.TypeTransfer && (e.IsCreated() || e.Deleted) {
				if err := s.appendTransfersListEntry(ctx, tx, creditor, e.AddedAt); err != nil {
					return err
				}
				written++
			}
		}

		if err := tx.UpdateCreditor(ctx, creditor); err != nil {
			return err
		}
		return tx.DeletePendingLogEntries(ctx, creditorID, lastPendingID)
	})
	if err != nil {
		return 0, err
	}
	return written, nil
}

func (s *Service) appendLogEntry(ctx context.Context, tx store.Tx, creditor *models.Creditor, e *models.LogEntry) error {
	entryID := creditor.GenerateLogEntryID()
	e.EntryID = entryID
	e.PreviousEntryID = entryID - 1
	return tx.InsertLogEntry(ctx, e)
}

func (s *Service) appendTransfersListEntry(ctx context.Context, tx store.Tx, creditor *models.Creditor, addedAt time.Time) error {
	creditor.TransfersListLatestUpdateID++
	creditor.TransfersListLatestUpdateTS = addedAt
	seq, err := tx.NextObjectUpdateSeq(ctx)
	if err != nil {
		return err
	}
	topic := models.TransfersListTopic{CreditorID: creditor.CreditorID}
	return s.appendLogEntry(ctx, tx, creditor, &models.LogEntry{
		CreditorID:      creditor.CreditorID,
		AddedAt:         addedAt,
		ObjectType:      topic.ObjectType(),
		ObjectURI:       topic.ObjectURI(),
		ObjectUpdateID:  creditor.TransfersListLatestUpdateID,
		ObjectUpdateSeq: seq,
	})
}

// GetLogEntries returns a page of the creditor's log after the given entry
// id, plus the id to resume from on the next call.
func (s *Service) GetLogEntries(ctx context.Context, creditorID, afterEntryID int64, limit int) ([]models.LogEntry, int64, error) {
	var entries []models.LogEntry
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		entries, err = tx.ListLogEntries(ctx, creditorID, afterEntryID, limit)
		return err
	})
	if err != nil {
		return nil, 0, err
	}
	next := afterEntryID
	if len(entries) > 0 {
		next = entries[len(entries)-1].EntryID
	}
	return entries, next, nil
}
