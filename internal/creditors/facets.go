package creditors

import (
	"context"
	"errors"

	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
	"github.com/example/creditors-ledger/internal/updateid"
)

// ConfigUpdate is a requested change of the account's config facet.
type ConfigUpdate struct {
	CreditorID           int64
	DebtorID             int64
	LatestUpdateID       int64
	ScheduledForDeletion bool
	AllowUnsafeDeletion  bool
}

// UpdateAccountConfig applies the update-id protocol to the config facet.
// An exact replay returns the current state and no error; a stale or
// skipped update id returns updateid.ErrUpdateConflict.
func (s *Service) UpdateAccountConfig(ctx context.Context, req ConfigUpdate) (*models.AccountData, error) {
	now := s.now().UTC()
	var data *models.AccountData

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		data, err = tx.GetAccountDataForUpdate(ctx, req.CreditorID, req.DebtorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		err = updateid.Allow(data.ConfigLatestUpdateID, req.LatestUpdateID, func() bool {
			return data.ScheduledForDeletion == req.ScheduledForDeletion &&
				data.AllowUnsafeDeletion == req.AllowUnsafeDeletion
		})
		if errors.Is(err, updateid.ErrAlreadyUpToDate) {
			return nil
		}
		if err != nil {
			return err
		}

		data.ScheduledForDeletion = req.ScheduledForDeletion
		data.AllowUnsafeDeletion = req.AllowUnsafeDeletion
		// A changed config must be acknowledged again by the
		// accounting side before a deletion is considered safe.
		data.ConfigEffectual = false
		data.ConfigLatestUpdateID = req.LatestUpdateID
		data.ConfigLatestUpdateTS = now

		if err := logfeed.Stage(ctx, tx, req.CreditorID,
			models.AccountConfigTopic{CreditorID: req.CreditorID, DebtorID: req.DebtorID},
			now, logfeed.Options{ObjectUpdateID: data.ConfigLatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateAccountData(ctx, data)
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// DisplayUpdate is a requested change of the account's display facet.
type DisplayUpdate struct {
	CreditorID     int64
	DebtorID       int64
	LatestUpdateID int64
	DebtorName     *string
	AmountDivisor  float64
	DecimalPlaces  int32
	Unit           *string
	KnownDebtor    bool
}

func (s *Service) UpdateAccountDisplay(ctx context.Context, req DisplayUpdate) (*models.AccountDisplay, error) {
	now := s.now().UTC()
	var display *models.AccountDisplay

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		display, err = tx.GetAccountDisplayForUpdate(ctx, req.CreditorID, req.DebtorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		err = updateid.Allow(display.LatestUpdateID, req.LatestUpdateID, func() bool {
			return equalStringPtr(display.DebtorName, req.DebtorName) &&
				display.AmountDivisor == req.AmountDivisor &&
				display.DecimalPlaces == req.DecimalPlaces &&
				equalStringPtr(display.Unit, req.Unit) &&
				display.KnownDebtor == req.KnownDebtor
		})
		if errors.Is(err, updateid.ErrAlreadyUpToDate) {
			return nil
		}
		if err != nil {
			return err
		}

		if req.DebtorName != nil {
			taken, err := tx.DebtorNameTaken(ctx, req.CreditorID, *req.DebtorName, req.DebtorID)
			if err != nil {
				return err
			}
			if taken {
				return ErrDebtorNameConflict
			}
		}

		display.DebtorName = req.DebtorName
		display.AmountDivisor = req.AmountDivisor
		display.DecimalPlaces = req.DecimalPlaces
		display.Unit = req.Unit
		display.KnownDebtor = req.KnownDebtor
		display.LatestUpdateID = req.LatestUpdateID
		display.LatestUpdateTS = now

		if err := logfeed.Stage(ctx, tx, req.CreditorID,
			models.AccountDisplayTopic{CreditorID: req.CreditorID, DebtorID: req.DebtorID},
			now, logfeed.Options{ObjectUpdateID: display.LatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateAccountDisplay(ctx, display)
	})
	if err != nil {
		return nil, err
	}
	return display, nil
}

// ExchangeUpdate is a requested change of the account's exchange facet.
type ExchangeUpdate struct {
	CreditorID      int64
	DebtorID        int64
	LatestUpdateID  int64
	Policy          *string
	MinPrincipal    int64
	MaxPrincipal    int64
	PegExchangeRate *float64
	PegDebtorID     *int64
}

func (s *Service) UpdateAccountExchange(ctx context.Context, req ExchangeUpdate) (*models.AccountExchange, error) {
	now := s.now().UTC()
	var exchange *models.AccountExchange

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		exchange, err = tx.GetAccountExchangeForUpdate(ctx, req.CreditorID, req.DebtorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		err = updateid.Allow(exchange.LatestUpdateID, req.LatestUpdateID, func() bool {
			return equalStringPtr(exchange.Policy, req.Policy) &&
				exchange.MinPrincipal == req.MinPrincipal &&
				exchange.MaxPrincipal == req.MaxPrincipal &&
				equalFloat64Ptr(exchange.PegExchangeRate, req.PegExchangeRate) &&
				equalInt64Ptr(exchange.PegDebtorID, req.PegDebtorID)
		})
		if errors.Is(err, updateid.ErrAlreadyUpToDate) {
			return nil
		}
		if err != nil {
			return err
		}

		if req.PegDebtorID != nil {
			if _, err := tx.GetAccount(ctx, req.CreditorID, *req.PegDebtorID); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return ErrPegDoesNotExist
				}
				return err
			}
		}

		exchange.Policy = req.Policy
		exchange.MinPrincipal = req.MinPrincipal
		exchange.MaxPrincipal = req.MaxPrincipal
		exchange.PegExchangeRate = req.PegExchangeRate
		exchange.PegDebtorID = req.PegDebtorID
		exchange.LatestUpdateID = req.LatestUpdateID
		exchange.LatestUpdateTS = now

		if err := logfeed.Stage(ctx, tx, req.CreditorID,
			models.AccountExchangeTopic{CreditorID: req.CreditorID, DebtorID: req.DebtorID},
			now, logfeed.Options{ObjectUpdateID: exchange.LatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateAccountExchange(ctx, exchange)
	})
	if err != nil {
		return nil, err
	}
	return exchange, nil
}

// KnowledgeUpdate is a requested change of the account's knowledge facet.
type KnowledgeUpdate struct {
	CreditorID     int64
	DebtorID       int64
	LatestUpdateID int64
	Data           string
}

func (s *Service) UpdateAccountKnowledge(ctx context.Context, req KnowledgeUpdate) (*models.AccountKnowledge, error) {
	now := s.now().UTC()
	var knowledge *models.AccountKnowledge

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		var err error
		knowledge, err = tx.GetAccountKnowledgeForUpdate(ctx, req.CreditorID, req.DebtorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}

		err = updateid.Allow(knowledge.LatestUpdateID, req.LatestUpdateID, func() bool {
			return knowledge.Data == req.Data
		})
		if errors.Is(err, updateid.ErrAlreadyUpToDate) {
			return nil
		}
		if err != nil {
			return err
		}

		knowledge.Data = req.Data
		knowledge.LatestUpdateID = req.LatestUpdateID
		knowledge.LatestUpdateTS = now

		if err := logfeed.Stage(ctx, tx, req.CreditorID,
			models.AccountKnowledgeTopic{CreditorID: req.CreditorID, DebtorID: req.DebtorID},
			now, logfeed.Options{ObjectUpdateID: knowledge.LatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateAccountKnowledge(ctx, knowledge)
	})
	if err != nil {
		return nil, err
	}
	return knowledge, nil
}

func equalStringPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalInt64Ptr(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalFloat64Ptr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
