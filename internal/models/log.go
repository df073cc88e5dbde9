package models

import "time"

// PendingLogEntry is a staged description of one resource change, queued so
// that many entries can later be appended to the creditor's log in a single
// transaction. Staging requires no creditor-row lock; this keeps unrelated
// mutations of the same creditor from serializing against each other.
type PendingLogEntry struct {
	CreditorID int64 `json:"creditor_id"`

	// PendingEntryID is the per-creditor staging order (auto-assigned).
	PendingEntryID int64 `json:"pending_entry_id"`

	AddedAt    time.Time `json:"added_at"`
	ObjectType string    `json:"object_type"`
	ObjectURI  string    `json:"object_uri"`

	// ObjectUpdateID is the resource's latest_update_id at staging time,
	// zero when the change has no update counter (e.g. object creation
	// of an immutable resource).
	ObjectUpdateID int64 `json:"object_update_id,omitempty"`

	// ObjectUpdateSeq is the value consumed from the global
	// object-update sequence: a loose causal ordering hint across
	// different resource types, not a total order.
	ObjectUpdateSeq int64 `json:"object_update_seq,omitempty"`

	Deleted bool `json:"deleted,omitempty"`

	// Denormalized snapshot fields, set for specific object types only,
	// letting the client skip a follow-up read.
	DataPrincipal   *int64     `json:"data_principal,omitempty"`
	DataNextEntryID *int64     `json:"data_next_entry_id,omitempty"`
	DataFinalizedAt *time.Time `json:"data_finalized_at,omitempty"`
	DataErrorCode   *string    `json:"data_error_code,omitempty"`
}

// IsCreated reports whether the entry describes the creation of its object:
// the first accepted update (or an object without an update counter).
func (e *PendingLogEntry) IsCreated() bool {
	return !e.Deleted && e.ObjectUpdateID <= 1
}

// LogEntry is one immutable position in a creditor's change feed. Entry ids
// are strictly increasing and gap-free; PreviousEntryID backlinks form a
// verifiable chain (zero only for the creditor's very first entry).
type LogEntry struct {
	CreditorID      int64     `json:"creditor_id"`
	EntryID         int64     `json:"entry_id"`
	PreviousEntryID int64     `json:"previous_entry_id,omitempty"`
	AddedAt         time.Time `json:"added_at"`
	ObjectType      string    `json:"object_type"`
	ObjectURI       string    `json:"object_uri"`
	ObjectUpdateID  int64     `json:"object_update_id,omitempty"`
	ObjectUpdateSeq int64     `json:"object_update_seq,omitempty"`
	Deleted         bool      `json:"deleted,omitempty"`

	DataPrincipal   *int64     `json:"data_principal,omitempty"`
	DataNextEntryID *int64     `json:"data_next_entry_id,omitempty"`
	DataFinalizedAt *time.Time `json:"data_finalized_at,omitempty"`
	DataErrorCode   *string    `json:"data_error_code,omitempty"`
}
