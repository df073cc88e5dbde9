// Package store is the persistence boundary. Every service mutation runs
// inside a single Store.InTx call, so the Tx interface is the complete
// catalog of reads and writes the services are allowed to perform.
//
// Two implementations exist: Postgres (production, pgx) and SQLite
// (tests and local development, database/sql).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/example/creditors-ledger/internal/models"
)

var (
	// ErrNotFound means the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists means an insert hit a primary-key or unique
	// constraint. For idempotent inserts callers treat it as success.
	ErrAlreadyExists = errors.New("already exists")
)

// Store opens transactions against the backing database.
type Store interface {
	// InTx runs fn inside one transaction, committing on nil and
	// rolling back on error. Serialization failures are retried with
	// a fresh transaction.
	InTx(ctx context.Context, fn func(tx Tx) error) error

	Close()
}

// Tx is the set of operations available inside a transaction. Lock
// variants take row locks which are held until the transaction ends.
type Tx interface {
	// Creditors.
	CreateCreditor(ctx context.Context, c *models.Creditor) error
	GetCreditor(ctx context.Context, creditorID int64) (*models.Creditor, error)
	GetCreditorForUpdate(ctx context.Context, creditorID int64) (*models.Creditor, error)
	UpdateCreditor(ctx context.Context, c *models.Creditor) error

	// MaxLogEntryID returns the largest log entry id ever written for
	// the creditor, zero when there is none. Used to position a newly
	// created creditor's log above relic entries.
	MaxLogEntryID(ctx context.Context, creditorID int64) (int64, error)

	// Accounts and their facets.
	CreateAccount(ctx context.Context, a *models.Account) error
	GetAccount(ctx context.Context, creditorID, debtorID int64) (*models.Account, error)
	GetAccountForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.Account, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	DeleteAccount(ctx context.Context, creditorID, debtorID int64) error
	ListAccountDebtorIDs(ctx context.Context, creditorID int64) ([]int64, error)

	// HasPegReferences reports whether any exchange facet of the
	// creditor pegs its currency to the given debtor.
	HasPegReferences(ctx context.Context, creditorID, debtorID int64) (bool, error)

	CreateAccountData(ctx context.Context, d *models.AccountData) error
	GetAccountData(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error)
	GetAccountDataForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error)
	// GetAccountDataShared takes a shared lock: concurrent readers are
	// allowed, concurrent writers are not.
	GetAccountDataShared(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error)
	UpdateAccountData(ctx context.Context, d *models.AccountData) error

	CreateAccountDisplay(ctx context.Context, d *models.AccountDisplay) error
	GetAccountDisplayForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountDisplay, error)
	UpdateAccountDisplay(ctx context.Context, d *models.AccountDisplay) error
	// DebtorNameTaken reports whether another of the creditor's accounts
	// already displays the given debtor name.
	DebtorNameTaken(ctx context.Context, creditorID int64, debtorName string, excludeDebtorID int64) (bool, error)

	CreateAccountExchange(ctx context.Context, e *models.AccountExchange) error
	GetAccountExchangeForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountExchange, error)
	UpdateAccountExchange(ctx context.Context, e *models.AccountExchange) error

	CreateAccountKnowledge(ctx context.Context, k *models.AccountKnowledge) error
	GetAccountKnowledgeForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountKnowledge, error)
	UpdateAccountKnowledge(ctx context.Context, k *models.AccountKnowledge) error

	// Committed transfers.
	InsertCommittedTransfer(ctx context.Context, t *models.CommittedTransfer) error
	CommittedTransferExists(ctx context.Context, creditorID, debtorID int64, creationDate time.Time, transferNumber int64) (bool, error)
	// ListCommittedTransfers returns up to limit transfers of the given
	// account epoch with transfer numbers above afterTransferNumber,
	// in ascending transfer-number order.
	ListCommittedTransfers(ctx context.Context, creditorID, debtorID int64, creationDate time.Time, afterTransferNumber int64, limit int) ([]models.CommittedTransfer, error)
	DeleteCommittedTransfersBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)

	// Ledger entries.
	InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error
	// ListLedgerEntries pages backwards: entries with ids strictly
	// below beforeEntryID, in descending id order.
	ListLedgerEntries(ctx context.Context, creditorID, debtorID, beforeEntryID int64, limit int) ([]models.LedgerEntry, error)

	// Pending ledger update markers.
	EnsurePendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error
	// LockPendingLedgerUpdate locks the marker row, returning
	// ErrNotFound when no marker exists.
	LockPendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error
	DeletePendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error
	// ListPendingLedgerUpdates returns up to limit markers, skipping
	// rows locked by concurrent workers where the backend supports it.
	ListPendingLedgerUpdates(ctx context.Context, limit int) ([]models.PendingLedgerUpdate, error)

	// Log.
	StagePendingLogEntry(ctx context.Context, e *models.PendingLogEntry) error
	// ListPendingLogEntries returns the creditor's staged entries in
	// staging order, skipping creditors locked by concurrent flushers
	// where the backend supports it.
	ListPendingLogEntries(ctx context.Context, creditorID int64) ([]models.PendingLogEntry, error)
	DeletePendingLogEntries(ctx context.Context, creditorID int64, upToPendingEntryID int64) error
	ListCreditorsWithPendingLogEntries(ctx context.Context, limit int) ([]int64, error)

	InsertLogEntry(ctx context.Context, e *models.LogEntry) error
	// ListLogEntries pages forward: entries with ids strictly above
	// afterEntryID, in ascending id order.
	ListLogEntries(ctx context.Context, creditorID, afterEntryID int64, limit int) ([]models.LogEntry, error)

	// Running transfers.
	CreateRunningTransfer(ctx context.Context, t *models.RunningTransfer) error
	GetRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) (*models.RunningTransfer, error)
	GetRunningTransferForUpdate(ctx context.Context, creditorID int64, transferUUID uuid.UUID) (*models.RunningTransfer, error)
	UpdateRunningTransfer(ctx context.Context, t *models.RunningTransfer) error
	DeleteRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) error
	ListRunningTransferUUIDs(ctx context.Context, creditorID int64) ([]uuid.UUID, error)

	// NextObjectUpdateSeq consumes one value from the global
	// object-update sequence.
	NextObjectUpdateSeq(ctx context.Context) (int64, error)
}
