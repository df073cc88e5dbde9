package logfeed

import (
	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/pkg/chain"
)

// VerifyFeed checks that a page of log entries continues the feed read so
// far without gaps or broken backlinks. afterEntryID is the cursor the
// page was fetched with, zero for a feed read from the beginning.
func VerifyFeed(entries []models.LogEntry, afterEntryID int64) error {
	linked := make([]chain.Entry, len(entries))
	for i, e := range entries {
		linked[i] = chain.Entry{ID: e.EntryID, PreviousID: e.PreviousEntryID}
	}
	return chain.Verify(linked, afterEntryID)
}
