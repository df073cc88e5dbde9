package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/creditors-ledger/internal/models"
)

func newTestStore(t *testing.T) *SQLite {
	t.Helper()
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

var testTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestCreditor(id int64) *models.Creditor {
	return &models.Creditor{
		CreditorID:                  id,
		CreatedAt:                   testTime,
		LatestUpdateID:              1,
		LatestUpdateTS:              testTime,
		AccountsListLatestUpdateID:  1,
		AccountsListLatestUpdateTS:  testTime,
		TransfersListLatestUpdateID: 1,
		TransfersListLatestUpdateTS: testTime,
	}
}

func TestCreditorRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		return tx.CreateCreditor(ctx, newTestCreditor(1))
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx Tx) error {
		c, err := tx.GetCreditor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), c.CreditorID)
		assert.Equal(t, int64(0), c.LastLogEntryID)
		assert.True(t, c.CreatedAt.Equal(testTime))

		c.LastLogEntryID = 7
		return tx.UpdateCreditor(ctx, c)
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx Tx) error {
		c, err := tx.GetCreditor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7), c.LastLogEntryID)
		return nil
	})
	require.NoError(t, err)
}

func TestCreateCreditorDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		return tx.CreateCreditor(ctx, newTestCreditor(1))
	}))
	err := s.InTx(ctx, func(tx Tx) error {
		return tx.CreateCreditor(ctx, newTestCreditor(1))
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)
}

func TestGetCreditorNotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		_, err := tx.GetCreditor(ctx, 99)
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func seedAccount(t *testing.T, s *SQLite, creditorID, debtorID int64) {
	t.Helper()
	ctx := context.Background()
	err := s.InTx(ctx, func(tx Tx) error {
		if err := tx.CreateCreditor(ctx, newTestCreditor(creditorID)); err != nil && err != ErrAlreadyExists {
			return err
		}
		if err := tx.CreateAccount(ctx, &models.Account{
			CreditorID:     creditorID,
			DebtorID:       debtorID,
			CreatedAt:      testTime,
			LatestUpdateID: 1,
			LatestUpdateTS: testTime,
		}); err != nil {
			return err
		}
		return tx.CreateAccountData(ctx, &models.AccountData{
			CreditorID:                    creditorID,
			DebtorID:                      debtorID,
			CreationDate:                  models.Date0,
			LastChangeTS:                  models.TS0,
			LastTransferCommittedAt:       models.TS0,
			LastHeartbeatTS:               testTime,
			AccountIdentity:               "",
			ConfigLatestUpdateID:          1,
			ConfigLatestUpdateTS:          testTime,
			InfoLatestUpdateID:            1,
			InfoLatestUpdateTS:            testTime,
			LedgerLastTransferCommittedAt: models.TS0,
			LedgerLatestUpdateID:          1,
			LedgerLatestUpdateTS:          testTime,
		})
	})
	require.NoError(t, err)
}

func TestCommittedTransferDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, 1, 2)

	date := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	ct := &models.CommittedTransfer{
		CreditorID:         1,
		DebtorID:           2,
		CreationDate:       date,
		TransferNumber:     1,
		CoordinatorType:    "direct",
		SenderID:           "123",
		RecipientID:        "1",
		AcquiredAmount:     100,
		TransferNoteFormat: "",
		CommittedAt:        testTime,
		Principal:          100,
	}

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		return tx.InsertCommittedTransfer(ctx, ct)
	}))
	err := s.InTx(ctx, func(tx Tx) error {
		return tx.InsertCommittedTransfer(ctx, ct)
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	err = s.InTx(ctx, func(tx Tx) error {
		exists, err := tx.CommittedTransferExists(ctx, 1, 2, date, 1)
		require.NoError(t, err)
		assert.True(t, exists)

		exists, err = tx.CommittedTransferExists(ctx, 1, 2, date, 2)
		require.NoError(t, err)
		assert.False(t, exists)
		return nil
	})
	require.NoError(t, err)
}

func TestListCommittedTransfersOrderAndEpoch(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, 1, 2)

	oldEpoch := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	newEpoch := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	err := s.InTx(ctx, func(tx Tx) error {
		for _, n := range []int64{3, 1, 2} {
			if err := tx.InsertCommittedTransfer(ctx, &models.CommittedTransfer{
				CreditorID: 1, DebtorID: 2, CreationDate: newEpoch, TransferNumber: n,
				CoordinatorType: "direct", AcquiredAmount: 1, Principal: n,
				CommittedAt: testTime, PreviousTransferNumber: n - 1,
			}); err != nil {
				return err
			}
		}
		return tx.InsertCommittedTransfer(ctx, &models.CommittedTransfer{
			CreditorID: 1, DebtorID: 2, CreationDate: oldEpoch, TransferNumber: 9,
			CoordinatorType: "direct", AcquiredAmount: 1, Principal: 9,
			CommittedAt: testTime, PreviousTransferNumber: 8,
		})
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx Tx) error {
		got, err := tx.ListCommittedTransfers(ctx, 1, 2, newEpoch, 1, 10)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, int64(2), got[0].TransferNumber)
		assert.Equal(t, int64(3), got[1].TransferNumber)
		return nil
	})
	require.NoError(t, err)
}

func TestPendingLogEntryStagingOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.InTx(ctx, func(tx Tx) error {
		for _, uri := range []string{"/creditors/1/a", "/creditors/1/b", "/creditors/1/c"} {
			if err := tx.StagePendingLogEntry(ctx, &models.PendingLogEntry{
				CreditorID: 1,
				AddedAt:    testTime,
				ObjectType: models.TypeAccount,
				ObjectURI:  uri,
			}); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx Tx) error {
		entries, err := tx.ListPendingLogEntries(ctx, 1)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "/creditors/1/a", entries[0].ObjectURI)
		assert.Equal(t, "/creditors/1/c", entries[2].ObjectURI)
		assert.Greater(t, entries[1].PendingEntryID, entries[0].PendingEntryID)

		if err := tx.DeletePendingLogEntries(ctx, 1, entries[1].PendingEntryID); err != nil {
			return err
		}
		rest, err := tx.ListPendingLogEntries(ctx, 1)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "/creditors/1/c", rest[0].ObjectURI)
		return nil
	})
	require.NoError(t, err)
}

func TestNextObjectUpdateSeqMonotonic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var a, b int64
	err := s.InTx(ctx, func(tx Tx) error {
		var err error
		a, err = tx.NextObjectUpdateSeq(ctx)
		require.NoError(t, err)
		b, err = tx.NextObjectUpdateSeq(ctx)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, a+1, b)
}

func TestRunningTransferRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, 1, 2)

	id := uuid.New()
	err := s.InTx(ctx, func(tx Tx) error {
		return tx.CreateRunningTransfer(ctx, &models.RunningTransfer{
			CreditorID:     1,
			TransferUUID:   id,
			DebtorID:       2,
			Amount:         500,
			RecipientID:    "777",
			InitiatedAt:    testTime,
			LatestUpdateID: 1,
			LatestUpdateTS: testTime,
		})
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx Tx) error {
		rt, err := tx.GetRunningTransfer(ctx, 1, id)
		require.NoError(t, err)
		assert.Equal(t, id, rt.TransferUUID)
		assert.False(t, rt.IsFinalized())

		now := testTime.Add(time.Minute)
		locked := int64(500)
		rt.FinalizedAt = &now
		rt.TotalLockedAmount = &locked
		rt.LatestUpdateID++
		rt.LatestUpdateTS = now
		return tx.UpdateRunningTransfer(ctx, rt)
	})
	require.NoError(t, err)

	err = s.InTx(ctx, func(tx Tx) error {
		rt, err := tx.GetRunningTransfer(ctx, 1, id)
		require.NoError(t, err)
		assert.True(t, rt.IsFinalized())
		assert.True(t, rt.IsSuccessful())
		require.NotNil(t, rt.TotalLockedAmount)
		assert.Equal(t, int64(500), *rt.TotalLockedAmount)
		return nil
	})
	require.NoError(t, err)
}

func TestDeleteAccountCascadesButKeepsLedger(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seedAccount(t, s, 1, 2)

	err := s.InTx(ctx, func(tx Tx) error {
		if err := tx.InsertLedgerEntry(ctx, &models.LedgerEntry{
			CreditorID: 1, DebtorID: 2, EntryID: 1,
			AcquiredAmount: 10, Principal: 10, AddedAt: testTime,
		}); err != nil {
			return err
		}
		return tx.EnsurePendingLedgerUpdate(ctx, 1, 2)
	})
	require.NoError(t, err)

	require.NoError(t, s.InTx(ctx, func(tx Tx) error {
		return tx.DeleteAccount(ctx, 1, 2)
	}))

	err = s.InTx(ctx, func(tx Tx) error {
		_, err := tx.GetAccountData(ctx, 1, 2)
		assert.ErrorIs(t, err, ErrNotFound)

		assert.ErrorIs(t, tx.LockPendingLedgerUpdate(ctx, 1, 2), ErrNotFound)

		entries, err := tx.ListLedgerEntries(ctx, 1, 2, models.MaxInt64, 10)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
		return nil
	})
	require.NoError(t, err)
}
