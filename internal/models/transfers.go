package models

import (
	"time"

	"github.com/google/uuid"
)

// CommittedTransfer is the immutable record of one transfer committed by
// the accounting authority, keyed by (creditor, debtor, creation date,
// transfer number). Duplicate notifications are no-ops; rows are never
// updated, only pruned by retention.
type CommittedTransfer struct {
	CreditorID             int64     `json:"creditor_id"`
	DebtorID               int64     `json:"debtor_id"`
	CreationDate           time.Time `json:"creation_date"`
	TransferNumber         int64     `json:"transfer_number"`
	CoordinatorType        string    `json:"coordinator_type"`
	SenderID               string    `json:"sender_id"`
	RecipientID            string    `json:"recipient_id"`
	AcquiredAmount         int64     `json:"acquired_amount"`
	TransferNote           string    `json:"transfer_note"`
	TransferNoteFormat     string    `json:"transfer_note_format"`
	CommittedAt            time.Time `json:"committed_at"`
	Principal              int64     `json:"principal"`
	PreviousTransferNumber int64     `json:"previous_transfer_number"`
}

// RunningTransfer is a transfer initiated by the creditor, tracked until it
// is finalized by the accounting side and deleted by the creditor. It is a
// mutable resource under the update-id protocol.
type RunningTransfer struct {
	CreditorID         int64      `json:"creditor_id"`
	TransferUUID       uuid.UUID  `json:"transfer_uuid"`
	DebtorID           int64      `json:"debtor_id"`
	Amount             int64      `json:"amount"`
	RecipientID        string     `json:"recipient_id"`
	TransferNote       string     `json:"transfer_note"`
	TransferNoteFormat string     `json:"transfer_note_format"`
	InitiatedAt        time.Time  `json:"initiated_at"`
	FinalizedAt        *time.Time `json:"finalized_at,omitempty"`
	ErrorCode          *string    `json:"error_code,omitempty"`
	TotalLockedAmount  *int64     `json:"total_locked_amount,omitempty"`
	LatestUpdateID     int64      `json:"latest_update_id"`
	LatestUpdateTS     time.Time  `json:"latest_update_ts"`
}

// IsFinalized reports whether the accounting side has given a final verdict.
func (t *RunningTransfer) IsFinalized() bool {
	return t.FinalizedAt != nil
}

// IsSuccessful reports whether the transfer was finalized without an error.
func (t *RunningTransfer) IsSuccessful() bool {
	return t.FinalizedAt != nil && t.ErrorCode == nil
}

// PendingLedgerUpdate marks that there is very likely at least one
// committed transfer for the account that has not been absorbed into its
// ledger yet. At most one marker exists per account; it is deleted once the
// deferred worker has fully drained the backlog.
type PendingLedgerUpdate struct {
	CreditorID int64 `json:"creditor_id"`
	DebtorID   int64 `json:"debtor_id"`
}
