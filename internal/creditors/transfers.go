package creditors

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// TransferRequest initiates a transfer out of one of the creditor's
// accounts. The client-chosen UUID makes the operation safely retryable.
type TransferRequest struct {
	CreditorID         int64
	TransferUUID       uuid.UUID
	DebtorID           int64
	Amount             int64
	RecipientID        string
	TransferNote       string
	TransferNoteFormat string
}

func (r TransferRequest) matches(rt *models.RunningTransfer) bool {
	return r.DebtorID == rt.DebtorID &&
		r.Amount == rt.Amount &&
		r.RecipientID == rt.RecipientID &&
		r.TransferNote == rt.TransferNote &&
		r.TransferNoteFormat == rt.TransferNoteFormat
}

// InitiateRunningTransfer records a new running transfer. A replay with
// the same UUID and identical parameters returns the existing transfer; the
// same UUID with different parameters is ErrTransferExists.
func (s *Service) InitiateRunningTransfer(ctx context.Context, req TransferRequest) (*models.RunningTransfer, error) {
	now := s.now().UTC()
	var transfer *models.RunningTransfer

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetCreditor(ctx, req.CreditorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCreditorNotFound
			}
			return err
		}
		if _, err := tx.GetAccount(ctx, req.CreditorID, req.DebtorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrAccountNotFound
			}
			return err
		}

		transfer = &models.RunningTransfer{
			CreditorID:         req.CreditorID,
			TransferUUID:       req.TransferUUID,
			DebtorID:           req.DebtorID,
			Amount:             req.Amount,
			RecipientID:        req.RecipientID,
			TransferNote:       req.TransferNote,
			TransferNoteFormat: req.TransferNoteFormat,
			InitiatedAt:        now,
			LatestUpdateID:     1,
			LatestUpdateTS:     now,
		}
		err := tx.CreateRunningTransfer(ctx, transfer)
		if errors.Is(err, store.ErrAlreadyExists) {
			existing, err := tx.GetRunningTransfer(ctx, req.CreditorID, req.TransferUUID)
			if err != nil {
				return err
			}
			if !req.matches(existing) {
				return ErrTransferExists
			}
			transfer = existing
			return nil
		}
		if err != nil {
			return err
		}
		return logfeed.Stage(ctx, tx, req.CreditorID,
			models.TransferTopic{CreditorID: req.CreditorID, TransferUUID: req.TransferUUID},
			now, logfeed.Options{ObjectUpdateID: 1})
	})
	if err != nil {
		return nil, err
	}
	return transfer, nil
}

// FinalizeRunningTransfer records the accounting side's verdict: a nil
// errorCode means success. Finalizing an already finalized transfer is a
// no-op.
func (s *Service) FinalizeRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID, errorCode *string, totalLockedAmount *int64) error {
	now := s.now().UTC()

	return s.store.InTx(ctx, func(tx store.Tx) error {
		transfer, err := tx.GetRunningTransferForUpdate(ctx, creditorID, transferUUID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTransferNotFound
		}
		if err != nil {
			return err
		}
		if transfer.IsFinalized() {
			return nil
		}

		finalizedAt := now
		transfer.FinalizedAt = &finalizedAt
		transfer.ErrorCode = errorCode
		transfer.TotalLockedAmount = totalLockedAmount
		transfer.LatestUpdateID++
		transfer.LatestUpdateTS = now

		if err := logfeed.Stage(ctx, tx, creditorID,
			models.TransferTopic{CreditorID: creditorID, TransferUUID: transferUUID},
			now, logfeed.Options{
				ObjectUpdateID:  transfer.LatestUpdateID,
				DataFinalizedAt: transfer.FinalizedAt,
				DataErrorCode:   transfer.ErrorCode,
			}); err != nil {
			return err
		}
		return tx.UpdateRunningTransfer(ctx, transfer)
	})
}

// DeleteRunningTransfer removes a transfer from the creditor's transfer
// list, normally after the creditor has seen its final state.
func (s *Service) DeleteRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) error {
	now := s.now().UTC()

	return s.store.InTx(ctx, func(tx store.Tx) error {
		transfer, err := tx.GetRunningTransferForUpdate(ctx, creditorID, transferUUID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrTransferNotFound
		}
		if err != nil {
			return err
		}
		if err := tx.DeleteRunningTransfer(ctx, creditorID, transferUUID); err != nil {
			return err
		}
		return logfeed.Stage(ctx, tx, creditorID,
			models.TransferTopic{CreditorID: creditorID, TransferUUID: transferUUID},
			now, logfeed.Options{
				ObjectUpdateID: transfer.LatestUpdateID,
				Deleted:        true,
			})
	})
}

// ListRunningTransfers returns the UUIDs of the creditor's running
// transfers in initiation order.
func (s *Service) ListRunningTransfers(ctx context.Context, creditorID int64) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetCreditor(ctx, creditorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCreditorNotFound
			}
			return err
		}
		var err error
		ids, err = tx.ListRunningTransferUUIDs(ctx, creditorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
