package ingest

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/creditors-ledger/internal/messages"
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

var (
	baseTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	epoch    = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
)

func newTestService(t *testing.T) (*Service, *store.SQLite) {
	t.Helper()
	s, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	svc := NewService(s, slog.New(slog.NewTextHandler(io.Discard, nil)), DefaultFastPathIdle)
	svc.now = func() time.Time { return baseTime }
	return svc, s
}

func seedAccount(t *testing.T, s store.Store, creditorID, debtorID int64, creationDate time.Time) {
	t.Helper()
	ctx := context.Background()
	err := s.InTx(ctx, func(tx store.Tx) error {
		if err := tx.CreateCreditor(ctx, &models.Creditor{
			CreditorID:                  creditorID,
			CreatedAt:                   baseTime,
			LatestUpdateID:              1,
			LatestUpdateTS:              baseTime,
			AccountsListLatestUpdateID:  1,
			AccountsListLatestUpdateTS:  baseTime,
			TransfersListLatestUpdateID: 1,
			TransfersListLatestUpdateTS: baseTime,
		}); err != nil {
			return err
		}
		if err := tx.CreateAccount(ctx, &models.Account{
			CreditorID: creditorID, DebtorID: debtorID,
			CreatedAt: baseTime, LatestUpdateID: 1, LatestUpdateTS: baseTime,
		}); err != nil {
			return err
		}
		return tx.CreateAccountData(ctx, &models.AccountData{
			CreditorID:                    creditorID,
			DebtorID:                      debtorID,
			CreationDate:                  creationDate,
			LastChangeTS:                  models.TS0,
			LastTransferCommittedAt:       models.TS0,
			LastHeartbeatTS:               baseTime,
			HasServerAccount:              true,
			ConfigLatestUpdateID:          1,
			ConfigLatestUpdateTS:          baseTime,
			InfoLatestUpdateID:            1,
			InfoLatestUpdateTS:            baseTime,
			LedgerLastTransferCommittedAt: models.TS0,
			LedgerLatestUpdateID:          1,
			LedgerLatestUpdateTS:          baseTime.Add(-time.Minute),
		})
	})
	require.NoError(t, err)
}

func transferMsg(number, previous, amount, principal int64) *messages.CommittedTransfer {
	return &messages.CommittedTransfer{
		DebtorID:               2,
		CreditorID:             1,
		CreationDate:           epoch,
		TransferNumber:         number,
		PreviousTransferNumber: previous,
		CoordinatorType:        "direct",
		Sender:                 "123",
		Recipient:              "1",
		AcquiredAmount:         amount,
		Principal:              principal,
		CommittedAt:            baseTime.Add(-time.Second),
		TS:                     baseTime,
		TTL:                    24 * time.Hour,
	}
}

func loadData(t *testing.T, s store.Store, creditorID, debtorID int64) *models.AccountData {
	t.Helper()
	ctx := context.Background()
	var data *models.AccountData
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		var err error
		data, err = tx.GetAccountData(ctx, creditorID, debtorID)
		return err
	}))
	return data
}

func hasMarker(t *testing.T, s store.Store, creditorID, debtorID int64) bool {
	t.Helper()
	ctx := context.Background()
	found := false
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		err := tx.LockPendingLedgerUpdate(ctx, creditorID, debtorID)
		if err == nil {
			found = true
			return nil
		}
		if err == store.ErrNotFound {
			return nil
		}
		return err
	}))
	return found
}

func TestContiguousTransferAppliesSynchronously(t *testing.T) {
	svc, s := newTestService(t)
	seedAccount(t, s, 1, 2, epoch)

	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), transferMsg(1, 0, 100, 100)))

	data := loadData(t, s, 1, 2)
	assert.Equal(t, int64(100), data.LedgerPrincipal)
	assert.Equal(t, int64(1), data.LedgerLastTransferNumber)
	assert.False(t, hasMarker(t, s, 1, 2))
}

func TestNonContiguousTransferArmsMarker(t *testing.T) {
	svc, s := newTestService(t)
	seedAccount(t, s, 1, 2, epoch)

	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), transferMsg(3, 2, 100, 600)))

	data := loadData(t, s, 1, 2)
	assert.Equal(t, int64(0), data.LedgerLastTransferNumber)
	assert.True(t, hasMarker(t, s, 1, 2))
}

func TestBusyLedgerDefersContiguousTransfer(t *testing.T) {
	svc, s := newTestService(t)
	seedAccount(t, s, 1, 2, epoch)

	// The ledger was touched moments ago, so even a contiguous
	// transfer goes through the deferred worker.
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		data, err := tx.GetAccountDataForUpdate(ctx, 1, 2)
		if err != nil {
			return err
		}
		data.LedgerLatestUpdateTS = baseTime.Add(-time.Second)
		return tx.UpdateAccountData(ctx, data)
	}))

	require.NoError(t, svc.ProcessCommittedTransfer(ctx, transferMsg(1, 0, 100, 100)))

	data := loadData(t, s, 1, 2)
	assert.Equal(t, int64(0), data.LedgerLastTransferNumber)
	assert.True(t, hasMarker(t, s, 1, 2))
}

func TestDuplicateDeliveryIsNoop(t *testing.T) {
	svc, s := newTestService(t)
	seedAccount(t, s, 1, 2, epoch)

	msg := transferMsg(1, 0, 100, 100)
	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), msg))
	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), msg))

	data := loadData(t, s, 1, 2)
	assert.Equal(t, int64(100), data.LedgerPrincipal)
	assert.Equal(t, int64(1), data.LedgerLastEntryID)
}

func TestStaleTransferIsDropped(t *testing.T) {
	svc, s := newTestService(t)
	seedAccount(t, s, 1, 2, epoch)

	msg := transferMsg(1, 0, 100, 100)
	msg.TS = baseTime.Add(-48 * time.Hour)
	msg.CommittedAt = baseTime.Add(-48 * time.Hour)
	msg.TTL = 24 * time.Hour
	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), msg))

	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		exists, err := tx.CommittedTransferExists(ctx, 1, 2, epoch, 1)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	}))
}

func TestTransferForUnknownAccountIsDropped(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), transferMsg(1, 0, 100, 100)))
}

func TestTransferFromDeadEpochIsDropped(t *testing.T) {
	svc, s := newTestService(t)
	seedAccount(t, s, 1, 2, epoch)

	msg := transferMsg(1, 0, 100, 100)
	msg.CreationDate = epoch.AddDate(0, -1, 0)
	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), msg))

	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		exists, err := tx.CommittedTransferExists(ctx, 1, 2, msg.CreationDate, 1)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	}))
}

func TestIngestStagesCommittedTransferLogEntry(t *testing.T) {
	svc, s := newTestService(t)
	seedAccount(t, s, 1, 2, epoch)

	require.NoError(t, svc.ProcessCommittedTransfer(context.Background(), transferMsg(1, 0, 100, 100)))

	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		pending, err := tx.ListPendingLogEntries(ctx, 1)
		require.NoError(t, err)
		var types []string
		for _, e := range pending {
			types = append(types, e.ObjectType)
		}
		assert.Contains(t, types, models.TypeCommittedTransfer)
		assert.Contains(t, types, models.TypeAccountLedger)
		return nil
	}))
}
