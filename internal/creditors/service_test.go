package creditors

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
	"github.com/example/creditors-ledger/internal/updateid"
)

var baseTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.SQLite) {
	t.Helper()
	s, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	svc := NewService(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return baseTime }
	return svc, s
}

func TestCreateCreditor(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	c, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c.CreditorID)
	assert.Equal(t, int64(0), c.LastLogEntryID)
	assert.Equal(t, int64(1), c.LatestUpdateID)

	_, err = svc.CreateCreditor(ctx, 1)
	assert.ErrorIs(t, err, ErrCreditorExists)
}

func TestCreateCreditorLeapsOverRelicLogEntries(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()

	// A deactivated predecessor left log entries behind.
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.InsertLogEntry(ctx, &models.LogEntry{
			CreditorID: 1, EntryID: 17, PreviousEntryID: 16,
			AddedAt: baseTime.AddDate(-1, 0, 0), ObjectType: models.TypeCreditor,
			ObjectURI: "/creditors/1/",
		})
	}))

	c, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(17), c.LastLogEntryID)
}

func TestCreateAccountDefaults(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)

	a, err := svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.LatestUpdateID)

	_, err = svc.CreateAccount(ctx, 1, 2)
	assert.ErrorIs(t, err, ErrAccountExists)

	_, err = svc.CreateAccount(ctx, 99, 2)
	assert.ErrorIs(t, err, ErrCreditorNotFound)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountData(ctx, 1, 2)
		require.NoError(t, err)
		assert.True(t, data.CreationDate.Equal(models.Date0))
		assert.False(t, data.HasServerAccount)
		assert.Equal(t, int64(0), data.LedgerLastEntryID)

		c, err := tx.GetCreditor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(2), c.AccountsListLatestUpdateID)
		return nil
	}))
}

func TestDeleteAccountSafety(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)

	// A live server account makes deletion unsafe.
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountDataForUpdate(ctx, 1, 2)
		if err != nil {
			return err
		}
		data.HasServerAccount = true
		return tx.UpdateAccountData(ctx, data)
	}))
	assert.ErrorIs(t, svc.DeleteAccount(ctx, 1, 2), ErrUnsafeDeletion)

	// Safe once scheduled, acknowledged, and the server account gone.
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountDataForUpdate(ctx, 1, 2)
		if err != nil {
			return err
		}
		data.HasServerAccount = false
		data.ScheduledForDeletion = true
		data.ConfigEffectual = true
		return tx.UpdateAccountData(ctx, data)
	}))
	require.NoError(t, svc.DeleteAccount(ctx, 1, 2))
	assert.ErrorIs(t, svc.DeleteAccount(ctx, 1, 2), ErrAccountNotFound)
}

func TestDeleteAccountRefusedWhilePegged(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 3)
	require.NoError(t, err)

	rate := 2.5
	peg := int64(2)
	_, err = svc.UpdateAccountExchange(ctx, ExchangeUpdate{
		CreditorID: 1, DebtorID: 3, LatestUpdateID: 2,
		MinPrincipal:    models.MinInt64,
		MaxPrincipal:    models.MaxInt64,
		PegExchangeRate: &rate,
		PegDebtorID:     &peg,
	})
	require.NoError(t, err)

	// Account 2 cannot go while account 3 pegs to it, even unsafely.
	_, err = svc.UpdateAccountConfig(ctx, ConfigUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 2,
		ScheduledForDeletion: true, AllowUnsafeDeletion: true,
	})
	require.NoError(t, err)
	assert.ErrorIs(t, svc.DeleteAccount(ctx, 1, 2), ErrPeggedAccount)
}

func TestDeleteAccountRecordsHighWater(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)

	// The account accumulated ledger entries up to id 9.
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountDataForUpdate(ctx, 1, 2)
		if err != nil {
			return err
		}
		data.LedgerLastEntryID = 9
		data.AllowUnsafeDeletion = true
		return tx.UpdateAccountData(ctx, data)
	}))
	require.NoError(t, svc.DeleteAccount(ctx, 1, 2))

	// A recreated account resumes numbering above the mark.
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountData(ctx, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(9), data.LedgerLastEntryID)
		return nil
	}))
}

func TestUpdateAccountConfigProtocol(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)

	// First change: 1 -> 2.
	data, err := svc.UpdateAccountConfig(ctx, ConfigUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 2,
		ScheduledForDeletion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), data.ConfigLatestUpdateID)
	assert.True(t, data.ScheduledForDeletion)
	assert.False(t, data.ConfigEffectual)

	// Exact replay succeeds without another change.
	data, err = svc.UpdateAccountConfig(ctx, ConfigUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 2,
		ScheduledForDeletion: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), data.ConfigLatestUpdateID)

	// Same id with a different payload is a conflict.
	_, err = svc.UpdateAccountConfig(ctx, ConfigUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 2,
	})
	assert.ErrorIs(t, err, updateid.ErrUpdateConflict)

	// Skipping ahead is a conflict.
	_, err = svc.UpdateAccountConfig(ctx, ConfigUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 5,
	})
	assert.ErrorIs(t, err, updateid.ErrUpdateConflict)
}

func TestUpdateAccountDisplayRejectsDuplicateDebtorName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 3)
	require.NoError(t, err)

	name := "Central Bank"
	d, err := svc.UpdateAccountDisplay(ctx, DisplayUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 2,
		DebtorName: &name, AmountDivisor: 1,
	})
	require.NoError(t, err)
	require.NotNil(t, d.DebtorName)

	// A second account cannot claim the same name.
	_, err = svc.UpdateAccountDisplay(ctx, DisplayUpdate{
		CreditorID: 1, DebtorID: 3, LatestUpdateID: 2,
		DebtorName: &name, AmountDivisor: 1,
	})
	assert.ErrorIs(t, err, ErrDebtorNameConflict)

	// The owning account may keep its name while changing the rest.
	d, err = svc.UpdateAccountDisplay(ctx, DisplayUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 3,
		DebtorName: &name, AmountDivisor: 100, DecimalPlaces: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), d.LatestUpdateID)

	// Other creditors are unaffected.
	_, err = svc.CreateCreditor(ctx, 9)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 9, 2)
	require.NoError(t, err)
	_, err = svc.UpdateAccountDisplay(ctx, DisplayUpdate{
		CreditorID: 9, DebtorID: 2, LatestUpdateID: 2,
		DebtorName: &name, AmountDivisor: 1,
	})
	assert.NoError(t, err)
}

func TestUpdateAccountExchangeRejectsMissingPeg(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)

	rate := 1.0
	missing := int64(777)
	_, err = svc.UpdateAccountExchange(ctx, ExchangeUpdate{
		CreditorID: 1, DebtorID: 2, LatestUpdateID: 2,
		MinPrincipal:    models.MinInt64,
		MaxPrincipal:    models.MaxInt64,
		PegExchangeRate: &rate,
		PegDebtorID:     &missing,
	})
	assert.ErrorIs(t, err, ErrPegDoesNotExist)
}

func TestRunningTransferLifecycle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)

	req := TransferRequest{
		CreditorID:   1,
		TransferUUID: uuid.New(),
		DebtorID:     2,
		Amount:       500,
		RecipientID:  "777",
	}
	rt, err := svc.InitiateRunningTransfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rt.LatestUpdateID)

	// Retrying the identical request returns the same transfer.
	again, err := svc.InitiateRunningTransfer(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, rt.TransferUUID, again.TransferUUID)

	// The same UUID with different parameters is rejected.
	bad := req
	bad.Amount = 501
	_, err = svc.InitiateRunningTransfer(ctx, bad)
	assert.ErrorIs(t, err, ErrTransferExists)

	locked := int64(500)
	require.NoError(t, svc.FinalizeRunningTransfer(ctx, 1, req.TransferUUID, nil, &locked))
	// Finalizing again is a no-op.
	errCode := "TIMEOUT"
	require.NoError(t, svc.FinalizeRunningTransfer(ctx, 1, req.TransferUUID, &errCode, nil))

	ids, err := svc.ListRunningTransfers(ctx, 1)
	require.NoError(t, err)
	require.Len(t, ids, 1)

	require.NoError(t, svc.DeleteRunningTransfer(ctx, 1, req.TransferUUID))
	assert.ErrorIs(t, svc.DeleteRunningTransfer(ctx, 1, req.TransferUUID), ErrTransferNotFound)
}

func TestGetLedgerEntriesPagesBackwards(t *testing.T) {
	svc, s := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)
	_, err = svc.CreateAccount(ctx, 1, 2)
	require.NoError(t, err)

	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountDataForUpdate(ctx, 1, 2)
		if err != nil {
			return err
		}
		for i := int64(1); i <= 3; i++ {
			if err := tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
				CreditorID: 1, DebtorID: 2, EntryID: i,
				AcquiredAmount: 100, Principal: 100 * i, AddedAt: baseTime,
			}); err != nil {
				return err
			}
		}
		data.LedgerLastEntryID = 3
		return tx.UpdateAccountData(ctx, data)
	}))

	page, err := svc.GetLedgerEntries(ctx, 1, 2, 0, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(3), page[0].EntryID)
	assert.Equal(t, int64(2), page[1].EntryID)

	page, err = svc.GetLedgerEntries(ctx, 1, 2, 2, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(1), page[0].EntryID)

	_, err = svc.GetLedgerEntries(ctx, 1, 99, 0, 10)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestInitiateRunningTransferRequiresAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.CreateCreditor(ctx, 1)
	require.NoError(t, err)

	_, err = svc.InitiateRunningTransfer(ctx, TransferRequest{
		CreditorID:   1,
		TransferUUID: uuid.New(),
		DebtorID:     2,
		Amount:       10,
	})
	assert.ErrorIs(t, err, ErrAccountNotFound)
}
