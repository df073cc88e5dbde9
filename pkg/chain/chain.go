// Package chain verifies the integrity of a creditor's log feed. Entry
// ids are gap-free and every entry backlinks its predecessor, so a client
// that paginates the feed can prove it missed nothing.
package chain

import "fmt"

// Entry is the part of a log entry the verifier needs.
type Entry struct {
	ID         int64
	PreviousID int64
}

// Verify checks that entries form a contiguous backlinked chain in
// ascending id order. A non-zero afterID anchors the first entry: it must
// be afterID+1 and backlink afterID. With afterID zero the chain may
// start anywhere, but must still be internally contiguous.
func Verify(entries []Entry, afterID int64) error {
	if len(entries) == 0 {
		return nil
	}
	if afterID != 0 {
		first := entries[0]
		if first.ID != afterID+1 {
			return fmt.Errorf("chain: entry %d does not continue %d", first.ID, afterID)
		}
		if first.PreviousID != afterID {
			return fmt.Errorf("chain: entry %d backlinks %d, want %d",
				first.ID, first.PreviousID, afterID)
		}
	}
	for i := 1; i < len(entries); i++ {
		prev, cur := entries[i-1], entries[i]
		if cur.ID != prev.ID+1 {
			return fmt.Errorf("chain: gap between entries %d and %d", prev.ID, cur.ID)
		}
		if cur.PreviousID != prev.ID {
			return fmt.Errorf("chain: entry %d backlinks %d, want %d",
				cur.ID, cur.PreviousID, prev.ID)
		}
	}
	return nil
}
