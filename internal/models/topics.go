package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Object type names as they appear in log entries.
const (
	TypeCreditor          = "Creditor"
	TypeAccountsList      = "AccountsList"
	TypeTransfersList     = "TransfersList"
	TypeAccount           = "Account"
	TypeAccountConfig     = "AccountConfig"
	TypeAccountInfo       = "AccountInfo"
	TypeAccountLedger     = "AccountLedger"
	TypeAccountDisplay    = "AccountDisplay"
	TypeAccountExchange   = "AccountExchange"
	TypeAccountKnowledge  = "AccountKnowledge"
	TypeTransfer          = "Transfer"
	TypeCommittedTransfer = "CommittedTransfer"
)

// LogTopic identifies the kind of object a log entry is about, carrying
// exactly the fields needed to build its URI. One constructor per object
// kind, instead of a numeric type-hint dispatch.
type LogTopic interface {
	ObjectType() string
	ObjectURI() string
}

type CreditorTopic struct{ CreditorID int64 }

func (t CreditorTopic) ObjectType() string { return TypeCreditor }
func (t CreditorTopic) ObjectURI() string  { return fmt.Sprintf("/creditors/%d/", t.CreditorID) }

type AccountsListTopic struct{ CreditorID int64 }

func (t AccountsListTopic) ObjectType() string { return TypeAccountsList }
func (t AccountsListTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts-list", t.CreditorID)
}

type TransfersListTopic struct{ CreditorID int64 }

func (t TransfersListTopic) ObjectType() string { return TypeTransfersList }
func (t TransfersListTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/transfers-list", t.CreditorID)
}

type AccountTopic struct{ CreditorID, DebtorID int64 }

func (t AccountTopic) ObjectType() string { return TypeAccount }
func (t AccountTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/", t.CreditorID, t.DebtorID)
}

type AccountConfigTopic struct{ CreditorID, DebtorID int64 }

func (t AccountConfigTopic) ObjectType() string { return TypeAccountConfig }
func (t AccountConfigTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/config", t.CreditorID, t.DebtorID)
}

type AccountInfoTopic struct{ CreditorID, DebtorID int64 }

func (t AccountInfoTopic) ObjectType() string { return TypeAccountInfo }
func (t AccountInfoTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/info", t.CreditorID, t.DebtorID)
}

type AccountLedgerTopic struct{ CreditorID, DebtorID int64 }

func (t AccountLedgerTopic) ObjectType() string { return TypeAccountLedger }
func (t AccountLedgerTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/ledger", t.CreditorID, t.DebtorID)
}

type AccountDisplayTopic struct{ CreditorID, DebtorID int64 }

func (t AccountDisplayTopic) ObjectType() string { return TypeAccountDisplay }
func (t AccountDisplayTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/display", t.CreditorID, t.DebtorID)
}

type AccountExchangeTopic struct{ CreditorID, DebtorID int64 }

func (t AccountExchangeTopic) ObjectType() string { return TypeAccountExchange }
func (t AccountExchangeTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/exchange", t.CreditorID, t.DebtorID)
}

type AccountKnowledgeTopic struct{ CreditorID, DebtorID int64 }

func (t AccountKnowledgeTopic) ObjectType() string { return TypeAccountKnowledge }
func (t AccountKnowledgeTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/knowledge", t.CreditorID, t.DebtorID)
}

type TransferTopic struct {
	CreditorID   int64
	TransferUUID uuid.UUID
}

func (t TransferTopic) ObjectType() string { return TypeTransfer }
func (t TransferTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/transfers/%s", t.CreditorID, t.TransferUUID)
}

type CommittedTransferTopic struct {
	CreditorID     int64
	DebtorID       int64
	CreationDate   time.Time
	TransferNumber int64
}

func (t CommittedTransferTopic) ObjectType() string { return TypeCommittedTransfer }
func (t CommittedTransferTopic) ObjectURI() string {
	return fmt.Sprintf("/creditors/%d/accounts/%d/transfers/%s-%d",
		t.CreditorID, t.DebtorID, t.CreationDate.UTC().Format("2006-01-02"), t.TransferNumber)
}
