// Package updateid implements the optimistic-concurrency and
// replay-idempotency contract shared by every mutable resource: each
// resource carries a latest_update_id that starts at 1 and must be advanced
// by exactly 1 per accepted mutation.
package updateid

import "errors"

// ErrAlreadyUpToDate means the request is an exact replay of a previously
// accepted mutation. Callers must treat it as success, not failure.
var ErrAlreadyUpToDate = errors.New("object is already up to date")

// ErrUpdateConflict means the requested update id is stale or out of order.
// The client must re-fetch the resource and retry with a correct id.
var ErrUpdateConflict = errors.New("update conflict")

// Allow decides whether a mutation carrying requestedID may be applied to a
// resource whose current update id is currentID. unchanged must report
// whether the proposed changes equal the resource's current values.
//
// A nil return means the caller must apply the changes, set the resource's
// update id to requestedID, stage a log entry for the change, and consume
// one value from the global object-update sequence.
func Allow(currentID, requestedID int64, unchanged func() bool) error {
	if requestedID == currentID && unchanged() {
		return ErrAlreadyUpToDate
	}
	if requestedID != currentID+1 {
		return ErrUpdateConflict
	}
	return nil
}
