package models

import "time"

// Account is one (creditor, debtor) relationship. The reconciliation state
// lives in the 1:1 AccountData record; the display/exchange/knowledge facets
// are separate rows so that each can carry its own update counter.
type Account struct {
	CreditorID     int64     `json:"creditor_id"`
	DebtorID       int64     `json:"debtor_id"`
	CreatedAt      time.Time `json:"created_at"`
	LatestUpdateID int64     `json:"latest_update_id"`
	LatestUpdateTS time.Time `json:"latest_update_ts"`
}

// AccountData is the reconciliation state machine for one account.
//
// The `Ledger*` fields are derived exclusively from LedgerEntry application
// and are never written directly from authoritative signals; the
// non-prefixed Principal/LastTransferNumber fields are the authoritative
// values last reported by the accounting side and may race ahead of the
// ledger. Invariant: LedgerLastTransferNumber <= LastTransferNumber.
type AccountData struct {
	CreditorID int64 `json:"creditor_id"`
	DebtorID   int64 `json:"debtor_id"`

	// CreationDate is the account's epoch: the date its server-side
	// counterpart was (re)created. A later date invalidates the old
	// transfer numbering.
	CreationDate time.Time `json:"creation_date"`

	LastChangeTS     time.Time `json:"last_change_ts"`
	LastChangeSeqnum int32     `json:"last_change_seqnum"`

	Principal               int64     `json:"principal"`
	Interest                float64   `json:"interest"`
	InterestRate            float64   `json:"interest_rate"`
	LastTransferNumber      int64     `json:"last_transfer_number"`
	LastTransferCommittedAt time.Time `json:"last_transfer_committed_at"`
	LastHeartbeatTS         time.Time `json:"last_heartbeat_ts"`
	HasServerAccount        bool      `json:"has_server_account"`
	AccountIdentity         string    `json:"account_identity"`
	StatusFlags             int32     `json:"status_flags"`

	// Config facet.
	ScheduledForDeletion bool      `json:"scheduled_for_deletion"`
	AllowUnsafeDeletion  bool      `json:"allow_unsafe_deletion"`
	ConfigEffectual      bool      `json:"config_effectual"`
	ConfigError          string    `json:"config_error,omitempty"`
	ConfigLatestUpdateID int64     `json:"config_latest_update_id"`
	ConfigLatestUpdateTS time.Time `json:"config_latest_update_ts"`

	// Info facet.
	InfoLatestUpdateID int64     `json:"info_latest_update_id"`
	InfoLatestUpdateTS time.Time `json:"info_latest_update_ts"`

	// Ledger facet (reconciled state).
	LedgerPrincipal               int64     `json:"ledger_principal"`
	LedgerLastEntryID             int64     `json:"ledger_last_entry_id"`
	LedgerLastTransferNumber      int64     `json:"ledger_last_transfer_number"`
	LedgerLastTransferCommittedAt time.Time `json:"ledger_last_transfer_committed_at"`

	// LedgerPendingTransferTS is non-nil iff a known gap is being
	// awaited: it holds the committed_at of the first transfer that
	// cannot be applied because a predecessor is still missing.
	LedgerPendingTransferTS *time.Time `json:"ledger_pending_transfer_ts,omitempty"`

	LedgerLatestUpdateID int64     `json:"ledger_latest_update_id"`
	LedgerLatestUpdateTS time.Time `json:"ledger_latest_update_ts"`
}

// IsDeletionSafe reports whether the account can be removed without losing
// money: the server-side account is gone, the deletion was requested, and
// the accounting side has acknowledged the requested configuration.
func (d *AccountData) IsDeletionSafe() bool {
	return !d.HasServerAccount && d.ScheduledForDeletion && d.ConfigEffectual
}

// AccountDisplay holds the creditor's presentation preferences for one
// account. Mutable only through the update-id protocol.
type AccountDisplay struct {
	CreditorID     int64     `json:"creditor_id"`
	DebtorID       int64     `json:"debtor_id"`
	DebtorName     *string   `json:"debtor_name,omitempty"`
	AmountDivisor  float64   `json:"amount_divisor"`
	DecimalPlaces  int32     `json:"decimal_places"`
	Unit           *string   `json:"unit,omitempty"`
	KnownDebtor    bool      `json:"known_debtor"`
	LatestUpdateID int64     `json:"latest_update_id"`
	LatestUpdateTS time.Time `json:"latest_update_ts"`
}

// AccountExchange holds the creditor's automated exchange policy for one
// account. A peg, when set, must reference another existing account of the
// same creditor.
type AccountExchange struct {
	CreditorID      int64     `json:"creditor_id"`
	DebtorID        int64     `json:"debtor_id"`
	Policy          *string   `json:"policy,omitempty"`
	MinPrincipal    int64     `json:"min_principal"`
	MaxPrincipal    int64     `json:"max_principal"`
	PegExchangeRate *float64  `json:"peg_exchange_rate,omitempty"`
	PegDebtorID     *int64    `json:"peg_debtor_id,omitempty"`
	LatestUpdateID  int64     `json:"latest_update_id"`
	LatestUpdateTS  time.Time `json:"latest_update_ts"`
}

// AccountKnowledge stores an opaque JSON document in which the creditor
// acknowledges facts about the account (interest rate changes and the like).
type AccountKnowledge struct {
	CreditorID     int64     `json:"creditor_id"`
	DebtorID       int64     `json:"debtor_id"`
	Data           string    `json:"data"`
	LatestUpdateID int64     `json:"latest_update_id"`
	LatestUpdateTS time.Time `json:"latest_update_ts"`
}

// LedgerEntry is one immutable step of an account's ledger. Entry ids are
// strictly increasing and gap-free for the life of the account, and are
// never reused even across deletion and recreation.
//
// Transfer-linked entries carry the (CreationDate, TransferNumber) key of
// the CommittedTransfer they reflect; correction entries carry neither and
// exist solely to reconcile drift against the authoritative principal.
type LedgerEntry struct {
	CreditorID     int64      `json:"creditor_id"`
	DebtorID       int64      `json:"debtor_id"`
	EntryID        int64      `json:"entry_id"`
	CreationDate   *time.Time `json:"creation_date,omitempty"`
	TransferNumber *int64     `json:"transfer_number,omitempty"`
	AcquiredAmount int64      `json:"acquired_amount"`
	Principal      int64      `json:"principal"`
	AddedAt        time.Time  `json:"added_at"`
}

// IsCorrection reports whether the entry is a reconciliation adjustment
// rather than the reflection of an actual committed transfer.
func (e *LedgerEntry) IsCorrection() bool {
	return e.TransferNumber == nil
}
