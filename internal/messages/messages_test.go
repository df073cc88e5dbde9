package messages

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCommittedTransferJSON() string {
	return `{
		"debtor_id": 1,
		"creditor_id": 4242,
		"creation_date": "2026-01-05",
		"transfer_number": 7,
		"previous_transfer_number": 6,
		"coordinator_type": "direct",
		"sender": "123",
		"recipient": "4242",
		"acquired_amount": 1500,
		"principal": 11500,
		"transfer_note": "invoice 77",
		"transfer_note_format": "",
		"committed_at": "2026-02-01T10:00:00Z",
		"ts": "2026-02-01T10:00:01Z",
		"ttl": 86400
	}`
}

func TestParseCommittedTransfer(t *testing.T) {
	m, err := ParseCommittedTransfer([]byte(validCommittedTransferJSON()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.DebtorID)
	assert.Equal(t, int64(4242), m.CreditorID)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), m.CreationDate)
	assert.Equal(t, int64(7), m.TransferNumber)
	assert.Equal(t, int64(6), m.PreviousTransferNumber)
	assert.Equal(t, "direct", m.CoordinatorType)
	assert.Equal(t, int64(1500), m.AcquiredAmount)
	assert.Equal(t, int64(11500), m.Principal)
	assert.Equal(t, 24*time.Hour, m.TTL)
	assert.True(t, m.CommittedAt.Equal(time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)))
}

func TestParseCommittedTransferRejectsZeroAmount(t *testing.T) {
	raw := strings.Replace(validCommittedTransferJSON(), `"acquired_amount": 1500`, `"acquired_amount": 0`, 1)
	_, err := ParseCommittedTransfer([]byte(raw))
	assert.Error(t, err)
}

func TestParseCommittedTransferRejectsBadNoteFormat(t *testing.T) {
	raw := strings.Replace(validCommittedTransferJSON(), `"transfer_note_format": ""`, `"transfer_note_format": "way/too/long"`, 1)
	_, err := ParseCommittedTransfer([]byte(raw))
	assert.Error(t, err)
}

func TestParseCommittedTransferRejectsZeroTransferNumber(t *testing.T) {
	raw := strings.Replace(validCommittedTransferJSON(), `"transfer_number": 7`, `"transfer_number": 0`, 1)
	_, err := ParseCommittedTransfer([]byte(raw))
	assert.Error(t, err)
}

func TestParseCommittedTransferRejectsNonAdvancingNumbers(t *testing.T) {
	raw := strings.Replace(validCommittedTransferJSON(), `"previous_transfer_number": 6`, `"previous_transfer_number": 7`, 1)
	_, err := ParseCommittedTransfer([]byte(raw))
	assert.Error(t, err)

	raw = strings.Replace(validCommittedTransferJSON(), `"previous_transfer_number": 6`, `"previous_transfer_number": 8`, 1)
	_, err = ParseCommittedTransfer([]byte(raw))
	assert.Error(t, err)
}

func TestParseCommittedTransferRejectsOversizedNote(t *testing.T) {
	note := strings.Repeat("x", 501)
	raw := strings.Replace(validCommittedTransferJSON(), `"transfer_note": "invoice 77"`, `"transfer_note": "`+note+`"`, 1)
	_, err := ParseCommittedTransfer([]byte(raw))
	assert.Error(t, err)
}

func TestParseCommittedTransferRejectsMissingField(t *testing.T) {
	raw := strings.Replace(validCommittedTransferJSON(), `"principal": 11500,`, ``, 1)
	_, err := ParseCommittedTransfer([]byte(raw))
	assert.Error(t, err)
}

func TestParseAccountUpdate(t *testing.T) {
	raw := `{
		"debtor_id": 1,
		"creditor_id": 4242,
		"creation_date": "2026-01-05",
		"last_change_ts": "2026-02-01T10:00:00Z",
		"last_change_seqnum": 3,
		"principal": 10000,
		"interest": 12.5,
		"interest_rate": 3.0,
		"account_identity": "4242",
		"status_flags": 0,
		"config_effectual": true,
		"last_transfer_number": 6,
		"last_transfer_committed_at": "2026-01-31T09:00:00Z",
		"ts": "2026-02-01T10:00:01Z",
		"ttl": 86400
	}`
	m, err := ParseAccountUpdate([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, int32(3), m.LastChangeSeqnum)
	assert.Equal(t, int64(10000), m.Principal)
	assert.Equal(t, 3.0, m.InterestRate)
	assert.True(t, m.ConfigEffectual)
	assert.Equal(t, int64(6), m.LastTransferNumber)
}

func TestParseAccountPurge(t *testing.T) {
	raw := `{"debtor_id": 1, "creditor_id": 4242, "creation_date": "2026-01-05"}`
	m, err := ParseAccountPurge([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC), m.CreationDate)
}

func TestParseAccountPurgeRejectsBadDate(t *testing.T) {
	raw := `{"debtor_id": 1, "creditor_id": 4242, "creation_date": "not-a-date"}`
	_, err := ParseAccountPurge([]byte(raw))
	assert.Error(t, err)
}
