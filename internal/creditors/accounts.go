package creditors

import (
	"context"
	"errors"

	"github.com/example/creditors-ledger/internal/logfeed"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// CreateAccount opens a (creditor, debtor) account with default facets.
// Until the first authoritative snapshot arrives, the account carries the
// zero epoch and an empty ledger. Its ledger entry numbering is baselined
// on the creditor's high-water mark, so a recreated account continues the
// numbering of its deleted predecessor instead of reusing ids.
func (s *Service) CreateAccount(ctx context.Context, creditorID, debtorID int64) (*models.Account, error) {
	now := s.now().UTC()
	var account *models.Account

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		creditor, err := tx.GetCreditorForUpdate(ctx, creditorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCreditorNotFound
		}
		if err != nil {
			return err
		}

		account = &models.Account{
			CreditorID:     creditorID,
			DebtorID:       debtorID,
			CreatedAt:      now,
			LatestUpdateID: 1,
			LatestUpdateTS: now,
		}
		if err := tx.CreateAccount(ctx, account); err != nil {
			if errors.Is(err, store.ErrAlreadyExists) {
				return ErrAccountExists
			}
			return err
		}

		if err := tx.CreateAccountData(ctx, &models.AccountData{
			CreditorID:                    creditorID,
			DebtorID:                      debtorID,
			CreationDate:                  models.Date0,
			LastChangeTS:                  models.TS0,
			LastTransferCommittedAt:       models.TS0,
			LastHeartbeatTS:               now,
			ConfigLatestUpdateID:          1,
			ConfigLatestUpdateTS:          now,
			InfoLatestUpdateID:            1,
			InfoLatestUpdateTS:            now,
			LedgerLastEntryID:             creditor.LedgerEntryHighWater,
			LedgerLastTransferCommittedAt: models.TS0,
			LedgerLatestUpdateID:          1,
			LedgerLatestUpdateTS:          now,
		}); err != nil {
			return err
		}
		if err := tx.CreateAccountDisplay(ctx, &models.AccountDisplay{
			CreditorID:     creditorID,
			DebtorID:       debtorID,
			AmountDivisor:  1,
			LatestUpdateID: 1,
			LatestUpdateTS: now,
		}); err != nil {
			return err
		}
		if err := tx.CreateAccountExchange(ctx, &models.AccountExchange{
			CreditorID:     creditorID,
			DebtorID:       debtorID,
			MinPrincipal:   models.MinInt64,
			MaxPrincipal:   models.MaxInt64,
			LatestUpdateID: 1,
			LatestUpdateTS: now,
		}); err != nil {
			return err
		}
		if err := tx.CreateAccountKnowledge(ctx, &models.AccountKnowledge{
			CreditorID:     creditorID,
			DebtorID:       debtorID,
			Data:           "{}",
			LatestUpdateID: 1,
			LatestUpdateTS: now,
		}); err != nil {
			return err
		}

		if err := logfeed.Stage(ctx, tx, creditorID,
			models.AccountTopic{CreditorID: creditorID, DebtorID: debtorID},
			now, logfeed.Options{ObjectUpdateID: 1}); err != nil {
			return err
		}

		creditor.AccountsListLatestUpdateID++
		creditor.AccountsListLatestUpdateTS = now
		if err := logfeed.Stage(ctx, tx, creditorID,
			models.AccountsListTopic{CreditorID: creditorID},
			now, logfeed.Options{ObjectUpdateID: creditor.AccountsListLatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateCreditor(ctx, creditor)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("account created", "creditor_id", creditorID, "debtor_id", debtorID)
	return account, nil
}

// DeleteAccount removes the account and its facets. The deletion is
// refused while it could lose money, and while another account's exchange
// policy pegs to this one. The account's largest ledger entry id is folded
// into the creditor's high-water mark first, keeping entry ids permanent.
func (s *Service) DeleteAccount(ctx context.Context, creditorID, debtorID int64) error {
	now := s.now().UTC()

	err := s.store.InTx(ctx, func(tx store.Tx) error {
		creditor, err := tx.GetCreditorForUpdate(ctx, creditorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrCreditorNotFound
		}
		if err != nil {
			return err
		}
		account, err := tx.GetAccountForUpdate(ctx, creditorID, debtorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		data, err := tx.GetAccountDataForUpdate(ctx, creditorID, debtorID)
		if err != nil {
			return err
		}

		if !data.IsDeletionSafe() && !data.AllowUnsafeDeletion {
			return ErrUnsafeDeletion
		}
		pegged, err := tx.HasPegReferences(ctx, creditorID, debtorID)
		if err != nil {
			return err
		}
		if pegged {
			return ErrPeggedAccount
		}

		if data.LedgerLastEntryID > creditor.LedgerEntryHighWater {
			creditor.LedgerEntryHighWater = data.LedgerLastEntryID
		}
		if err := tx.DeleteAccount(ctx, creditorID, debtorID); err != nil {
			return err
		}

		if err := logfeed.Stage(ctx, tx, creditorID,
			models.AccountTopic{CreditorID: creditorID, DebtorID: debtorID},
			now, logfeed.Options{
				ObjectUpdateID: account.LatestUpdateID,
				Deleted:        true,
			}); err != nil {
			return err
		}

		creditor.AccountsListLatestUpdateID++
		creditor.AccountsListLatestUpdateTS = now
		if err := logfeed.Stage(ctx, tx, creditorID,
			models.AccountsListTopic{CreditorID: creditorID},
			now, logfeed.Options{ObjectUpdateID: creditor.AccountsListLatestUpdateID}); err != nil {
			return err
		}
		return tx.UpdateCreditor(ctx, creditor)
	})
	if err != nil {
		return err
	}
	s.log.Info("account deleted", "creditor_id", creditorID, "debtor_id", debtorID)
	return nil
}

// GetLedgerEntries pages an account's ledger backwards: entries with ids
// below beforeEntryID, newest first. A zero beforeEntryID starts from the
// top of the ledger.
func (s *Service) GetLedgerEntries(ctx context.Context, creditorID, debtorID, beforeEntryID int64, limit int) ([]models.LedgerEntry, error) {
	var entries []models.LedgerEntry
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountData(ctx, creditorID, debtorID)
		if errors.Is(err, store.ErrNotFound) {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		before := beforeEntryID
		if before <= 0 {
			before = data.LedgerLastEntryID + 1
		}
		entries, err = tx.ListLedgerEntries(ctx, creditorID, debtorID, before, limit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// ListAccounts returns the debtor ids of the creditor's accounts.
func (s *Service) ListAccounts(ctx context.Context, creditorID int64) ([]int64, error) {
	var ids []int64
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		if _, err := tx.GetCreditor(ctx, creditorID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrCreditorNotFound
			}
			return err
		}
		var err error
		ids, err = tx.ListAccountDebtorIDs(ctx, creditorID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
