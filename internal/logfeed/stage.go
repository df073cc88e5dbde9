// Package logfeed maintains the per-creditor change feed: resource changes
// are first staged as pending entries (no creditor lock taken), then a
// flusher appends them to the creditor's log in batches, allocating the
// gap-free entry ids under the creditor row lock.
package logfeed

import (
	"context"
	"time"

	"github.com/example/creditors-ledger/internal/models"
	"github.com/example/creditors-ledger/internal/store"
)

// Options carries the optional parts of a staged entry.
type Options struct {
	// ObjectUpdateID is the resource's update counter after the change,
	// zero for resources without one.
	ObjectUpdateID int64
	Deleted        bool

	DataPrincipal   *int64
	DataNextEntryID *int64
	DataFinalizedAt *time.Time
	DataErrorCode   *string
}

// Stage records one resource change for later inclusion in the creditor's
// log. It consumes a value from the global object-update sequence, which
// gives readers a loose causal ordering across different creditors' feeds.
func Stage(ctx context.Context, tx store.Tx, creditorID int64, topic models.LogTopic, addedAt time.Time, opt Options) error {
	seq, err := tx.NextObjectUpdateSeq(ctx)
	if err != nil {
		return err
	}
	return tx.StagePendingLogEntry(ctx, &models.PendingLogEntry{
		CreditorID:      creditorID,
		AddedAt:         addedAt,
		ObjectType:      topic.ObjectType(),
		ObjectURI:       topic.ObjectURI(),
		ObjectUpdateID:  opt.ObjectUpdateID,
		ObjectUpdateSeq: seq,
		Deleted:         opt.Deleted,
		DataPrincipal:   opt.DataPrincipal,
		DataNextEntryID: opt.DataNextEntryID,
		DataFinalizedAt: opt.DataFinalizedAt,
		DataErrorCode:   opt.DataErrorCode,
	})
}
