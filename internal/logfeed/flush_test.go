package logfeed

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

var baseTime = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *store.SQLite) {
	t.Helper()
	s, err := store.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return NewService(s, slog.New(slog.NewTextHandler(io.Discard, nil))), s
}

func seedCreditor(t *testing.T, s store.Store, creditorID int64) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return tx.CreateCreditor(ctx, &models.Creditor{
			CreditorID:                  creditorID,
			CreatedAt:                   baseTime,
			LatestUpdateID:              1,
			LatestUpdateTS:              baseTime,
			AccountsListLatestUpdateID:  1,
			AccountsListLatestUpdateTS:  baseTime,
			TransfersListLatestUpdateID: 1,
			TransfersListLatestUpdateTS: baseTime,
		})
	}))
}

func stage(t *testing.T, s store.Store, creditorID int64, topic models.LogTopic, opt Options) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		return Stage(ctx, tx, creditorID, topic, baseTime, opt)
	}))
}

func TestFlushAssignsConsecutiveChainedIDs(t *testing.T) {
	svc, s := newTestService(t)
	seedCreditor(t, s, 1)

	// Two changes staged in separate transactions, flushed in one.
	stage(t, s, 1, models.AccountLedgerTopic{CreditorID: 1, DebtorID: 2}, Options{ObjectUpdateID: 2})
	stage(t, s, 1, models.AccountInfoTopic{CreditorID: 1, DebtorID: 2}, Options{ObjectUpdateID: 3})

	n, err := svc.FlushPendingLogEntries(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, next, err := svc.GetLogEntries(context.Background(), 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(2), next)

	assert.Equal(t, int64(1), entries[0].EntryID)
	assert.Equal(t, int64(0), entries[0].PreviousEntryID)
	assert.Equal(t, models.TypeAccountLedger, entries[0].ObjectType)
	assert.Equal(t, int64(2), entries[1].EntryID)
	assert.Equal(t, int64(1), entries[1].PreviousEntryID)
	assert.Equal(t, models.TypeAccountInfo, entries[1].ObjectType)

	// Staging order survives even though the object-update sequence is
	// shared: seq values are strictly increasing along the feed.
	assert.Less(t, entries[0].ObjectUpdateSeq, entries[1].ObjectUpdateSeq)

	// The staging queue is drained.
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		pending, err := tx.ListPendingLogEntries(ctx, 1)
		require.NoError(t, err)
		assert.Empty(t, pending)
		return nil
	}))
}

func TestFlushIsIdempotentWhenQueueEmpty(t *testing.T) {
	svc, s := newTestService(t)
	seedCreditor(t, s, 1)

	n, err := svc.FlushPendingLogEntries(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestFlushSynthesizesTransfersListEntry(t *testing.T) {
	svc, s := newTestService(t)
	seedCreditor(t, s, 1)

	transferTopic := models.TransferTopic{CreditorID: 1}
	stage(t, s, 1, transferTopic, Options{ObjectUpdateID: 1})

	n, err := svc.FlushPendingLogEntries(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, _, err := svc.GetLogEntries(context.Background(), 1, 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.TypeTransfer, entries[0].ObjectType)
	assert.Equal(t, models.TypeTransfersList, entries[1].ObjectType)
	assert.Equal(t, int64(2), entries[1].ObjectUpdateID)

	// A non-creating transfer update must not touch the list.
	stage(t, s, 1, transferTopic, Options{ObjectUpdateID: 2})
	n, err = svc.FlushPendingLogEntries(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// A deletion touches it again.
	stage(t, s, 1, transferTopic, Options{ObjectUpdateID: 2, Deleted: true})
	n, err = svc.FlushPendingLogEntries(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		c, err := tx.GetCreditor(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, int64(3), c.TransfersListLatestUpdateID)
		assert.Equal(t, int64(5), c.LastLogEntryID)
		return nil
	}))
}

func TestFlushDropsEntriesOfMissingCreditor(t *testing.T) {
	svc, s := newTestService(t)

	stage(t, s, 42, models.CreditorTopic{CreditorID: 42}, Options{ObjectUpdateID: 1})

	n, err := svc.FlushPendingLogEntries(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(tx store.Tx) error {
		pending, err := tx.ListPendingLogEntries(ctx, 42)
		require.NoError(t, err)
		assert.Empty(t, pending)
		return nil
	}))
}

func TestGetLogEntriesPagination(t *testing.T) {
	svc, s := newTestService(t)
	seedCreditor(t, s, 1)

	for i := 0; i < 5; i++ {
		stage(t, s, 1, models.AccountLedgerTopic{CreditorID: 1, DebtorID: 2},
			Options{ObjectUpdateID: int64(i + 2)})
	}
	_, err := svc.FlushPendingLogEntries(context.Background(), 1)
	require.NoError(t, err)

	page1, next, err := svc.GetLogEntries(context.Background(), 1, 0, 2)
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, int64(2), next)

	page2, next, err := svc.GetLogEntries(context.Background(), 1, next, 2)
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Equal(t, int64(4), next)

	page3, next, err := svc.GetLogEntries(context.Background(), 1, next, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, int64(5), next)

	// Resuming from the end yields nothing and keeps the cursor.
	empty, next, err := svc.GetLogEntries(context.Background(), 1, next, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.Equal(t, int64(5), next)
}
