// Package messages defines the payload contracts of the notifications this
// service consumes from the accounting authority's message broker. The
// transport itself (broker, queues, redelivery) is an external collaborator;
// only the payloads matter here. Delivery is at-least-once and possibly out
// of order, so every consumer of these messages must be idempotent.
package messages

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/example/creditors-ledger/internal/models"
)

// CommittedTransfer notifies that the accounting authority has committed a
// transfer into or out of the account. AcquiredAmount is the signed delta
// (never zero) and Principal the authoritative balance after the transfer.
type CommittedTransfer struct {
	DebtorID               int64
	CreditorID             int64
	CreationDate           time.Time
	TransferNumber         int64
	PreviousTransferNumber int64
	CoordinatorType        string
	Sender                 string
	Recipient              string
	AcquiredAmount         int64
	Principal              int64
	TransferNote           string
	TransferNoteFormat     string
	CommittedAt            time.Time
	TS                     time.Time
	TTL                    time.Duration
}

// AccountUpdate carries the authoritative snapshot of the account's state:
// its current epoch (creation date), balance, and last transfer position.
// These values may race ahead of the reconciled ledger.
type AccountUpdate struct {
	DebtorID                int64
	CreditorID              int64
	CreationDate            time.Time
	LastChangeTS            time.Time
	LastChangeSeqnum        int32
	Principal               int64
	Interest                float64
	InterestRate            float64
	AccountIdentity         string
	StatusFlags             int32
	ConfigEffectual         bool
	LastTransferNumber      int64
	LastTransferCommittedAt time.Time
	TS                      time.Time
	TTL                     time.Duration
}

// AccountPurge notifies that the server-side account with the given epoch
// (or an older one) has been removed by the debtor side.
type AccountPurge struct {
	DebtorID     int64
	CreditorID   int64
	CreationDate time.Time
}

var (
	committedTransferSchema = jsonschema.MustCompileString("committed_transfer.json", committedTransferSchemaJSON)
	accountUpdateSchema     = jsonschema.MustCompileString("account_update.json", accountUpdateSchemaJSON)
	accountPurgeSchema      = jsonschema.MustCompileString("account_purge.json", accountPurgeSchemaJSON)
)

// ParseCommittedTransfer validates and decodes a raw broker payload.
func ParseCommittedTransfer(raw []byte) (*CommittedTransfer, error) {
	if err := validate(committedTransferSchema, raw); err != nil {
		return nil, fmt.Errorf("invalid CommittedTransfer message: %w", err)
	}

	var w struct {
		DebtorID               int64  `json:"debtor_id"`
		CreditorID             int64  `json:"creditor_id"`
		CreationDate           string `json:"creation_date"`
		TransferNumber         int64  `json:"transfer_number"`
		PreviousTransferNumber int64  `json:"previous_transfer_number"`
		CoordinatorType        string `json:"coordinator_type"`
		Sender                 string `json:"sender"`
		Recipient              string `json:"recipient"`
		AcquiredAmount         int64  `json:"acquired_amount"`
		Principal              int64  `json:"principal"`
		TransferNote           string `json:"transfer_note"`
		TransferNoteFormat     string `json:"transfer_note_format"`
		CommittedAt            string `json:"committed_at"`
		TS                     string `json:"ts"`
		TTL                    int64  `json:"ttl"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("invalid CommittedTransfer message: %w", err)
	}
	if len(w.TransferNote) > models.TransferNoteMaxBytes {
		return nil, fmt.Errorf("invalid CommittedTransfer message: transfer_note exceeds %d bytes", models.TransferNoteMaxBytes)
	}
	// The schema cannot compare fields against each other.
	if w.PreviousTransferNumber >= w.TransferNumber {
		return nil, fmt.Errorf("invalid CommittedTransfer message: previous_transfer_number %d is not below transfer_number %d",
			w.PreviousTransferNumber, w.TransferNumber)
	}

	creationDate, err := parseDate(w.CreationDate)
	if err != nil {
		return nil, fmt.Errorf("invalid CommittedTransfer message: %w", err)
	}
	committedAt, err := parseTimestamp(w.CommittedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid CommittedTransfer message: %w", err)
	}
	ts, err := parseTimestamp(w.TS)
	if err != nil {
		return nil, fmt.Errorf("invalid CommittedTransfer message: %w", err)
	}

	return &CommittedTransfer{
		DebtorID:               w.DebtorID,
		CreditorID:             w.CreditorID,
		CreationDate:           creationDate,
		TransferNumber:         w.TransferNumber,
		PreviousTransferNumber: w.PreviousTransferNumber,
		CoordinatorType:        w.CoordinatorType,
		Sender:                 w.Sender,
		Recipient:              w.Recipient,
		AcquiredAmount:         w.AcquiredAmount,
		Principal:              w.Principal,
		TransferNote:           w.TransferNote,
		TransferNoteFormat:     w.TransferNoteFormat,
		CommittedAt:            committedAt,
		TS:                     ts,
		TTL:                    time.Duration(w.TTL) * time.Second,
	}, nil
}

// ParseAccountUpdate validates and decodes a raw broker payload.
func ParseAccountUpdate(raw []byte) (*AccountUpdate, error) {
	if err := validate(accountUpdateSchema, raw); err != nil {
		return nil, fmt.Errorf("invalid AccountUpdate message: %w", err)
	}

	var w struct {
		DebtorID                int64   `json:"debtor_id"`
		CreditorID              int64   `json:"creditor_id"`
		CreationDate            string  `json:"creation_date"`
		LastChangeTS            string  `json:"last_change_ts"`
		LastChangeSeqnum        int32   `json:"last_change_seqnum"`
		Principal               int64   `json:"principal"`
		Interest                float64 `json:"interest"`
		InterestRate            float64 `json:"interest_rate"`
		AccountIdentity         string  `json:"account_identity"`
		StatusFlags             int32   `json:"status_flags"`
		ConfigEffectual         bool    `json:"config_effectual"`
		LastTransferNumber      int64   `json:"last_transfer_number"`
		LastTransferCommittedAt string  `json:"last_transfer_committed_at"`
		TS                      string  `json:"ts"`
		TTL                     int64   `json:"ttl"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("invalid AccountUpdate message: %w", err)
	}

	creationDate, err := parseDate(w.CreationDate)
	if err != nil {
		return nil, fmt.Errorf("invalid AccountUpdate message: %w", err)
	}
	lastChangeTS, err := parseTimestamp(w.LastChangeTS)
	if err != nil {
		return nil, fmt.Errorf("invalid AccountUpdate message: %w", err)
	}
	lastTransferCommittedAt, err := parseTimestamp(w.LastTransferCommittedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid AccountUpdate message: %w", err)
	}
	ts, err := parseTimestamp(w.TS)
	if err != nil {
		return nil, fmt.Errorf("invalid AccountUpdate message: %w", err)
	}

	return &AccountUpdate{
		DebtorID:                w.DebtorID,
		CreditorID:              w.CreditorID,
		CreationDate:            creationDate,
		LastChangeTS:            lastChangeTS,
		LastChangeSeqnum:        w.LastChangeSeqnum,
		Principal:               w.Principal,
		Interest:                w.Interest,
		InterestRate:            w.InterestRate,
		AccountIdentity:         w.AccountIdentity,
		StatusFlags:             w.StatusFlags,
		ConfigEffectual:         w.ConfigEffectual,
		LastTransferNumber:      w.LastTransferNumber,
		LastTransferCommittedAt: lastTransferCommittedAt,
		TS:                      ts,
		TTL:                     time.Duration(w.TTL) * time.Second,
	}, nil
}

// ParseAccountPurge validates and decodes a raw broker payload.
func ParseAccountPurge(raw []byte) (*AccountPurge, error) {
	if err := validate(accountPurgeSchema, raw); err != nil {
		return nil, fmt.Errorf("invalid AccountPurge message: %w", err)
	}

	var w struct {
		DebtorID     int64  `json:"debtor_id"`
		CreditorID   int64  `json:"creditor_id"`
		CreationDate string `json:"creation_date"`
	}
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("invalid AccountPurge message: %w", err)
	}

	creationDate, err := parseDate(w.CreationDate)
	if err != nil {
		return nil, fmt.Errorf("invalid AccountPurge message: %w", err)
	}

	return &AccountPurge{
		DebtorID:     w.DebtorID,
		CreditorID:   w.CreditorID,
		CreationDate: creationDate,
	}, nil
}

func validate(schema *jsonschema.Schema, raw []byte) error {
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}
	return schema.Validate(doc)
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad date %q: %w", s, err)
	}
	return models.DateOnly(t), nil
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
