package creditors

import (
	"context"
	"errors"

	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// CreateCreditor activates a creditor. The new log starts above any relic
// entries a previously deactivated creditor with the same id left behind,
// so clients replaying an old feed never see entry ids repeat.
func (s *Service) CreateCreditor(ctx context.Context, creditorID int64) (*models.Creditor, error) {
	now := s.now().UTC()
	var creditor *models.Creditor

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		relicMax, err := tx.MaxLogEntryID(ctx, creditorID)
		if err != nil {
			return err
		}
		creditor = &models.Creditor{
			CreditorID:                  creditorID,
			CreatedAt:                   now,
			LastLogEntryID:              relicMax,
			LatestUpdateID:              1,
			LatestUpdateTS:              now,
			AccountsListLatestUpdateID:  1,
			AccountsListLatestUpdateTS:  now,
			TransfersListLatestUpdateID: 1,
			TransfersListLatestUpdateTS: now,
		}
		if err := tx.CreateCreditor(ctx, creditor); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrCreditorExists
			}
			return err
		}
		return logfeed.Stage(ctx, tx, creditorID,
			models.CreditorTopic{CreditorID: creditorID},
			now, logfeed.Options{ObjectUpdateID: 1})
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("creditor created", "creditor_id", creditorID)
	return creditor, nil
}

func (s *Service) GetCreditor(ctx context.Context, creditorID int64) (*models.Creditor, error) {
	var creditor *models.Creditor
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		creditor, err = tx.GetCreditor(ctx, creditorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCreditorNotFound
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return creditor, nil
}
