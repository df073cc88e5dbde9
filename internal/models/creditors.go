package models

import "time"

// Creditor owns one log (the per-creditor change feed) and the update
// counters for its composite resources (account list, transfer list).
type Creditor struct {
	CreditorID int64     `json:"creditor_id"`
	CreatedAt  time.Time `json:"created_at"`

	// LastLogEntryID is the monotonic generator for LogEntry ids. It is
	// mutated only by the log flush while the creditor row is locked.
	LastLogEntryID int64 `json:"last_log_entry_id"`

	// LedgerEntryHighWater records the largest ledger entry id ever used
	// by a deleted account of this creditor. A recreated account resumes
	// its entry numbering above this mark, so entry ids are permanent.
	LedgerEntryHighWater int64 `json:"ledger_entry_high_water"`

	LatestUpdateID int64     `json:"latest_update_id"`
	LatestUpdateTS time.Time `json:"latest_update_ts"`

	AccountsListLatestUpdateID int64     `json:"accounts_list_latest_update_id"`
	AccountsListLatestUpdateTS time.Time `json:"accounts_list_latest_update_ts"`

	TransfersListLatestUpdateID int64     `json:"transfers_list_latest_update_id"`
	TransfersListLatestUpdateTS time.Time `json:"transfers_list_latest_update_ts"`
}

// GenerateLogEntryID allocates the next position in the creditor's log.
// The caller must hold the creditor row lock.
func (c *Creditor) GenerateLogEntryID() int64 {
	c.LastLogEntryID++
	return c.LastLogEntryID
}
