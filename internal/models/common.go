package models

import (
	"math"
	"time"
)

const (
	MinInt64 = math.MinInt64
	MaxInt64 = math.MaxInt64

	// TransferNoteMaxBytes limits the size of the note attached to a
	// committed transfer, in bytes (not runes).
	TransferNoteMaxBytes = 500

	// TransferNoteFormatRegex constrains the note's format tag.
	TransferNoteFormatRegex = `^[0-9A-Za-z.-]{0,8}$`

	// CoordinatorTypeMaxBytes limits the coordinator type tag carried by
	// committed transfer notifications.
	CoordinatorTypeMaxBytes = 30

	// AccountIDMaxBytes limits sender/recipient account identifiers.
	AccountIDMaxBytes = 100
)

// TS0 is the "before everything" timestamp used as the default for
// last-change and last-committed columns.
var TS0 = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Date0 is the epoch date assigned to accounts that have no server-side
// counterpart yet.
var Date0 = TS0

// DateOnly truncates a timestamp to its UTC calendar date. Account epochs
// (creation dates) are compared at day granularity.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// SameDate reports whether two timestamps fall on the same UTC calendar date.
func SameDate(a, b time.Time) bool {
	return DateOnly(a).Equal(DateOnly(b))
}
