// Package creditors implements the creditor-facing mutations: creditor and
// account lifecycle, the per-account facets, and running transfers. Every
// mutable resource follows the update-id protocol, and every accepted
// mutation stages exactly one pending log entry.
package creditors

import (
	"errors"
	"log/slog"
	"time"

	"github.com/example/creditors-ledger/internal/store"
)

var (
	ErrCreditorExists   = errors.New("creditor already exists")
	ErrCreditorNotFound = errors.New("creditor does not exist")
	ErrAccountExists    = errors.New("account already exists")
	ErrAccountNotFound  = errors.New("account does not exist")
	ErrTransferExists   = errors.New("transfer with this UUID already exists")
	ErrTransferNotFound = errors.New("transfer does not exist")

	// ErrUnsafeDeletion means deleting the account now could lose
	// money: the server-side account still exists, or the deletion
	// config has not taken effect.
	ErrUnsafeDeletion = errors.New("unsafe account deletion")

	// ErrPeggedAccount means another account's exchange policy pegs its
	// currency to this one.
	ErrPeggedAccount = errors.New("account is used as a peg")

	// ErrPegDoesNotExist means an exchange policy references a peg
	// account the creditor does not have.
	ErrPegDoesNotExist = errors.New("peg account does not exist")

	// ErrDebtorNameConflict means another of the creditor's accounts
	// already displays the requested debtor name.
	ErrDebtorNameConflict = errors.New("debtor name already in use")
)

type Service struct {
	store store.Store
	log   *slog.Logger
	now   func() time.Time
}

func NewService(s store.Store, log *slog.Logger) *Service {
	return &Service{store: s, log: log, now: time.Now}
}
