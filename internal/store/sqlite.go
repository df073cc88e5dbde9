package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/example/creditors-ledger/internal/models"
)

// SQLite is the Store used by tests and local development. A single
// connection serializes all transactions, so the row-lock clauses of the
// Postgres implementation are unnecessary here.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) a SQLite database. Use ":memory:" for an
// ephemeral test store.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() {
	s.db.Close()
}

func (s *SQLite) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&liteTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type liteTx struct {
	tx *sql.Tx
}

func isSQLiteUniqueViolation(err error) bool {
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code == sqlite3.ErrConstraint
	}
	return false
}

func nilOnNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// The sqlite driver cannot scan NULL into plain pointers, so nullable
// columns go through sql.Null* with these converters.

func timePtr(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}
	t := n.Time.UTC()
	return &t
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func stringPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}

func float64Ptr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func (t *liteTx) CreateCreditor(ctx context.Context, c *models.Creditor) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO creditor (`+creditorColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.CreditorID, c.CreatedAt, c.LastLogEntryID, c.LedgerEntryHighWater,
		c.LatestUpdateID, c.LatestUpdateTS,
		c.AccountsListLatestUpdateID, c.AccountsListLatestUpdateTS,
		c.TransfersListLatestUpdateID, c.TransfersListLatestUpdateTS,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) getCreditor(ctx context.Context, creditorID int64) (*models.Creditor, error) {
	var c models.Creditor
	err := t.tx.QueryRowContext(ctx,
		`SELECT `+creditorColumns+` FROM creditor WHERE creditor_id = ?`, creditorID,
	).Scan(
		&c.CreditorID, &c.CreatedAt, &c.LastLogEntryID, &c.LedgerEntryHighWater,
		&c.LatestUpdateID, &c.LatestUpdateTS,
		&c.AccountsListLatestUpdateID, &c.AccountsListLatestUpdateTS,
		&c.TransfersListLatestUpdateID, &c.TransfersListLatestUpdateTS,
	)
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	normalizeCreditorTimes(&c)
	return &c, nil
}

func normalizeCreditorTimes(c *models.Creditor) {
	c.CreatedAt = c.CreatedAt.UTC()
	c.LatestUpdateTS = c.LatestUpdateTS.UTC()
	c.AccountsListLatestUpdateTS = c.AccountsListLatestUpdateTS.UTC()
	c.TransfersListLatestUpdateTS = c.TransfersListLatestUpdateTS.UTC()
}

func (t *liteTx) GetCreditor(ctx context.Context, creditorID int64) (*models.Creditor, error) {
	return t.getCreditor(ctx, creditorID)
}

func (t *liteTx) GetCreditorForUpdate(ctx context.Context, creditorID int64) (*models.Creditor, error) {
	return t.getCreditor(ctx, creditorID)
}

func (t *liteTx) UpdateCreditor(ctx context.Context, c *models.Creditor) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE creditor SET
			last_log_entry_id = ?,
			ledger_entry_high_water = ?,
			latest_update_id = ?, latest_update_ts = ?,
			accounts_list_latest_update_id = ?, accounts_list_latest_update_ts = ?,
			transfers_list_latest_update_id = ?, transfers_list_latest_update_ts = ?
		WHERE creditor_id = ?`,
		c.LastLogEntryID,
		c.LedgerEntryHighWater,
		c.LatestUpdateID, c.LatestUpdateTS,
		c.AccountsListLatestUpdateID, c.AccountsListLatestUpdateTS,
		c.TransfersListLatestUpdateID, c.TransfersListLatestUpdateTS,
		c.CreditorID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *liteTx) MaxLogEntryID(ctx context.Context, creditorID int64) (int64, error) {
	var maxID int64
	err := t.tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(entry_id), 0) FROM log_entry WHERE creditor_id = ?`,
		creditorID).Scan(&maxID)
	return maxID, err
}

func (t *liteTx) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account (creditor_id, debtor_id, created_at, latest_update_id, latest_update_ts)
		VALUES (?, ?, ?, ?, ?)`,
		a.CreditorID, a.DebtorID, a.CreatedAt, a.LatestUpdateID, a.LatestUpdateTS,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) getAccount(ctx context.Context, creditorID, debtorID int64) (*models.Account, error) {
	var a models.Account
	err := t.tx.QueryRowContext(ctx, `
		SELECT creditor_id, debtor_id, created_at, latest_update_id, latest_update_ts
		FROM account WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID,
	).Scan(&a.CreditorID, &a.DebtorID, &a.CreatedAt, &a.LatestUpdateID, &a.LatestUpdateTS)
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	a.CreatedAt = a.CreatedAt.UTC()
	a.LatestUpdateTS = a.LatestUpdateTS.UTC()
	return &a, nil
}

func (t *liteTx) GetAccount(ctx context.Context, creditorID, debtorID int64) (*models.Account, error) {
	return t.getAccount(ctx, creditorID, debtorID)
}

func (t *liteTx) GetAccountForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.Account, error) {
	return t.getAccount(ctx, creditorID, debtorID)
}

func (t *liteTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE account SET latest_update_id = ?, latest_update_ts = ?
		WHERE creditor_id = ? AND debtor_id = ?`,
		a.LatestUpdateID, a.LatestUpdateTS, a.CreditorID, a.DebtorID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) DeleteAccount(ctx context.Context, creditorID, debtorID int64) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM account WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) ListAccountDebtorIDs(ctx context.Context, creditorID int64) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT debtor_id FROM account WHERE creditor_id = ? ORDER BY debtor_id`, creditorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *liteTx) HasPegReferences(ctx context.Context, creditorID, debtorID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM account_exchange
			WHERE creditor_id = ? AND peg_debtor_id = ?
		)`, creditorID, debtorID).Scan(&exists)
	return exists, err
}

func (t *liteTx) CreateAccountData(ctx context.Context, d *models.AccountData) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account_data (`+accountDataColumns+`)
		VALUES (`+placeholders(29)+`)`,
		d.CreditorID, d.DebtorID, d.CreationDate,
		d.LastChangeTS, d.LastChangeSeqnum,
		d.Principal, d.Interest, d.InterestRate,
		d.LastTransferNumber, d.LastTransferCommittedAt, d.LastHeartbeatTS,
		d.HasServerAccount, d.AccountIdentity, d.StatusFlags,
		d.ScheduledForDeletion, d.AllowUnsafeDeletion, d.ConfigEffectual, d.ConfigError,
		d.ConfigLatestUpdateID, d.ConfigLatestUpdateTS,
		d.InfoLatestUpdateID, d.InfoLatestUpdateTS,
		d.LedgerPrincipal, d.LedgerLastEntryID,
		d.LedgerLastTransferNumber, d.LedgerLastTransferCommittedAt,
		d.LedgerPendingTransferTS, d.LedgerLatestUpdateID, d.LedgerLatestUpdateTS,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func (t *liteTx) getAccountData(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error) {
	var d models.AccountData
	var pendingTS sql.NullTime
	err := t.tx.QueryRowContext(ctx,
		`SELECT `+accountDataColumns+` FROM account_data
		 WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID,
	).Scan(
		&d.CreditorID, &d.DebtorID, &d.CreationDate,
		&d.LastChangeTS, &d.LastChangeSeqnum,
		&d.Principal, &d.Interest, &d.InterestRate,
		&d.LastTransferNumber, &d.LastTransferCommittedAt, &d.LastHeartbeatTS,
		&d.HasServerAccount, &d.AccountIdentity, &d.StatusFlags,
		&d.ScheduledForDeletion, &d.AllowUnsafeDeletion, &d.ConfigEffectual, &d.ConfigError,
		&d.ConfigLatestUpdateID, &d.ConfigLatestUpdateTS,
		&d.InfoLatestUpdateID, &d.InfoLatestUpdateTS,
		&d.LedgerPrincipal, &d.LedgerLastEntryID,
		&d.LedgerLastTransferNumber, &d.LedgerLastTransferCommittedAt,
		&pendingTS, &d.LedgerLatestUpdateID, &d.LedgerLatestUpdateTS,
	)
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	d.LedgerPendingTransferTS = timePtr(pendingTS)
	d.CreationDate = d.CreationDate.UTC()
	d.LastChangeTS = d.LastChangeTS.UTC()
	d.LastTransferCommittedAt = d.LastTransferCommittedAt.UTC()
	d.LastHeartbeatTS = d.LastHeartbeatTS.UTC()
	d.ConfigLatestUpdateTS = d.ConfigLatestUpdateTS.UTC()
	d.InfoLatestUpdateTS = d.InfoLatestUpdateTS.UTC()
	d.LedgerLastTransferCommittedAt = d.LedgerLastTransferCommittedAt.UTC()
	d.LedgerLatestUpdateTS = d.LedgerLatestUpdateTS.UTC()
	return &d, nil
}

func (t *liteTx) GetAccountData(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error) {
	return t.getAccountData(ctx, creditorID, debtorID)
}

func (t *liteTx) GetAccountDataForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error) {
	return t.getAccountData(ctx, creditorID, debtorID)
}

func (t *liteTx) GetAccountDataShared(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error) {
	return t.getAccountData(ctx, creditorID, debtorID)
}

func (t *liteTx) UpdateAccountData(ctx context.Context, d *models.AccountData) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE account_data SET
			creation_date = ?,
			last_change_ts = ?, last_change_seqnum = ?,
			principal = ?, interest = ?, interest_rate = ?,
			last_transfer_number = ?, last_transfer_committed_at = ?, last_heartbeat_ts = ?,
			has_server_account = ?, account_identity = ?, status_flags = ?,
			scheduled_for_deletion = ?, allow_unsafe_deletion = ?,
			config_effectual = ?, config_error = ?,
			config_latest_update_id = ?, config_latest_update_ts = ?,
			info_latest_update_id = ?, info_latest_update_ts = ?,
			ledger_principal = ?, ledger_last_entry_id = ?,
			ledger_last_transfer_number = ?, ledger_last_transfer_committed_at = ?,
			ledger_pending_transfer_ts = ?,
			ledger_latest_update_id = ?, ledger_latest_update_ts = ?
		WHERE creditor_id = ? AND debtor_id = ?`,
		d.CreationDate,
		d.LastChangeTS, d.LastChangeSeqnum,
		d.Principal, d.Interest, d.InterestRate,
		d.LastTransferNumber, d.LastTransferCommittedAt, d.LastHeartbeatTS,
		d.HasServerAccount, d.AccountIdentity, d.StatusFlags,
		d.ScheduledForDeletion, d.AllowUnsafeDeletion,
		d.ConfigEffectual, d.ConfigError,
		d.ConfigLatestUpdateID, d.ConfigLatestUpdateTS,
		d.InfoLatestUpdateID, d.InfoLatestUpdateTS,
		d.LedgerPrincipal, d.LedgerLastEntryID,
		d.LedgerLastTransferNumber, d.LedgerLastTransferCommittedAt,
		d.LedgerPendingTransferTS,
		d.LedgerLatestUpdateID, d.LedgerLatestUpdateTS,
		d.CreditorID, d.DebtorID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) CreateAccountDisplay(ctx context.Context, d *models.AccountDisplay) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account_display (creditor_id, debtor_id, debtor_name, amount_divisor,
			decimal_places, unit, known_debtor, latest_update_id, latest_update_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.CreditorID, d.DebtorID, d.DebtorName, d.AmountDivisor,
		d.DecimalPlaces, d.Unit, d.KnownDebtor, d.LatestUpdateID, d.LatestUpdateTS,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) GetAccountDisplayForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountDisplay, error) {
	var d models.AccountDisplay
	var name, unit sql.NullString
	err := t.tx.QueryRowContext(ctx, `
		SELECT creditor_id, debtor_id, debtor_name, amount_divisor,
			decimal_places, unit, known_debtor, latest_update_id, latest_update_ts
		FROM account_display WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID,
	).Scan(&d.CreditorID, &d.DebtorID, &name, &d.AmountDivisor,
		&d.DecimalPlaces, &unit, &d.KnownDebtor, &d.LatestUpdateID, &d.LatestUpdateTS)
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	d.DebtorName = stringPtr(name)
	d.Unit = stringPtr(unit)
	d.LatestUpdateTS = d.LatestUpdateTS.UTC()
	return &d, nil
}

func (t *liteTx) UpdateAccountDisplay(ctx context.Context, d *models.AccountDisplay) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE account_display SET debtor_name = ?, amount_divisor = ?,
			decimal_places = ?, unit = ?, known_debtor = ?,
			latest_update_id = ?, latest_update_ts = ?
		WHERE creditor_id = ? AND debtor_id = ?`,
		d.DebtorName, d.AmountDivisor,
		d.DecimalPlaces, d.Unit, d.KnownDebtor,
		d.LatestUpdateID, d.LatestUpdateTS,
		d.CreditorID, d.DebtorID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) DebtorNameTaken(ctx context.Context, creditorID int64, debtorName string, excludeDebtorID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM account_display
			WHERE creditor_id = ? AND debtor_name = ? AND debtor_id <> ?
		)`, creditorID, debtorName, excludeDebtorID).Scan(&exists)
	return exists, err
}

func (t *liteTx) CreateAccountExchange(ctx context.Context, e *models.AccountExchange) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account_exchange (creditor_id, debtor_id, policy, min_principal,
			max_principal, peg_exchange_rate, peg_debtor_id, latest_update_id, latest_update_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreditorID, e.DebtorID, e.Policy, e.MinPrincipal,
		e.MaxPrincipal, e.PegExchangeRate, e.PegDebtorID, e.LatestUpdateID, e.LatestUpdateTS,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) GetAccountExchangeForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountExchange, error) {
	var e models.AccountExchange
	var policy sql.NullString
	var pegRate sql.NullFloat64
	var pegDebtor sql.NullInt64
	err := t.tx.QueryRowContext(ctx, `
		SELECT creditor_id, debtor_id, policy, min_principal, max_principal,
			peg_exchange_rate, peg_debtor_id, latest_update_id, latest_update_ts
		FROM account_exchange WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID,
	).Scan(&e.CreditorID, &e.DebtorID, &policy, &e.MinPrincipal, &e.MaxPrincipal,
		&pegRate, &pegDebtor, &e.LatestUpdateID, &e.LatestUpdateTS)
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	e.Policy = stringPtr(policy)
	e.PegExchangeRate = float64Ptr(pegRate)
	e.PegDebtorID = int64Ptr(pegDebtor)
	e.LatestUpdateTS = e.LatestUpdateTS.UTC()
	return &e, nil
}

func (t *liteTx) UpdateAccountExchange(ctx context.Context, e *models.AccountExchange) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE account_exchange SET policy = ?, min_principal = ?, max_principal = ?,
			peg_exchange_rate = ?, peg_debtor_id = ?, latest_update_id = ?, latest_update_ts = ?
		WHERE creditor_id = ? AND debtor_id = ?`,
		e.Policy, e.MinPrincipal, e.MaxPrincipal,
		e.PegExchangeRate, e.PegDebtorID, e.LatestUpdateID, e.LatestUpdateTS,
		e.CreditorID, e.DebtorID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) CreateAccountKnowledge(ctx context.Context, k *models.AccountKnowledge) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO account_knowledge (creditor_id, debtor_id, data, latest_update_id, latest_update_ts)
		VALUES (?, ?, ?, ?, ?)`,
		k.CreditorID, k.DebtorID, k.Data, k.LatestUpdateID, k.LatestUpdateTS,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) GetAccountKnowledgeForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountKnowledge, error) {
	var k models.AccountKnowledge
	err := t.tx.QueryRowContext(ctx, `
		SELECT creditor_id, debtor_id, data, latest_update_id, latest_update_ts
		FROM account_knowledge WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID,
	).Scan(&k.CreditorID, &k.DebtorID, &k.Data, &k.LatestUpdateID, &k.LatestUpdateTS)
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	k.LatestUpdateTS = k.LatestUpdateTS.UTC()
	return &k, nil
}

func (t *liteTx) UpdateAccountKnowledge(ctx context.Context, k *models.AccountKnowledge) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE account_knowledge SET data = ?, latest_update_id = ?, latest_update_ts = ?
		WHERE creditor_id = ? AND debtor_id = ?`,
		k.Data, k.LatestUpdateID, k.LatestUpdateTS, k.CreditorID, k.DebtorID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) InsertCommittedTransfer(ctx context.Context, ct *models.CommittedTransfer) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO committed_transfer (`+committedTransferColumns+`)
		VALUES (`+placeholders(13)+`)`,
		ct.CreditorID, ct.DebtorID, ct.CreationDate, ct.TransferNumber,
		ct.CoordinatorType, ct.SenderID, ct.RecipientID, ct.AcquiredAmount,
		ct.TransferNote, ct.TransferNoteFormat, ct.CommittedAt, ct.Principal, ct.PreviousTransferNumber,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) CommittedTransferExists(ctx context.Context, creditorID, debtorID int64, creationDate time.Time, transferNumber int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM committed_transfer
			WHERE creditor_id = ? AND debtor_id = ? AND creation_date = ? AND transfer_number = ?
		)`, creditorID, debtorID, creationDate, transferNumber).Scan(&exists)
	return exists, err
}

func (t *liteTx) ListCommittedTransfers(ctx context.Context, creditorID, debtorID int64, creationDate time.Time, afterTransferNumber int64, limit int) ([]models.CommittedTransfer, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+committedTransferColumns+` FROM committed_transfer
		WHERE creditor_id = ? AND debtor_id = ? AND creation_date = ? AND transfer_number > ?
		ORDER BY transfer_number
		LIMIT ?`,
		creditorID, debtorID, creationDate, afterTransferNumber, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CommittedTransfer
	for rows.Next() {
		var ct models.CommittedTransfer
		if err := rows.Scan(
			&ct.CreditorID, &ct.DebtorID, &ct.CreationDate, &ct.TransferNumber,
			&ct.CoordinatorType, &ct.SenderID, &ct.RecipientID, &ct.AcquiredAmount,
			&ct.TransferNote, &ct.TransferNoteFormat, &ct.CommittedAt, &ct.Principal, &ct.PreviousTransferNumber,
		); err != nil {
			return nil, err
		}
		ct.CreationDate = ct.CreationDate.UTC()
		ct.CommittedAt = ct.CommittedAt.UTC()
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (t *liteTx) DeleteCommittedTransfersBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `
		DELETE FROM committed_transfer
		WHERE rowid IN (
			SELECT rowid FROM committed_transfer WHERE committed_at < ? LIMIT ?
		)`, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (t *liteTx) InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entry (creditor_id, debtor_id, entry_id, creation_date,
			transfer_number, acquired_amount, principal, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreditorID, e.DebtorID, e.EntryID, e.CreationDate,
		e.TransferNumber, e.AcquiredAmount, e.Principal, e.AddedAt,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) ListLedgerEntries(ctx context.Context, creditorID, debtorID, beforeEntryID int64, limit int) ([]models.LedgerEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT creditor_id, debtor_id, entry_id, creation_date,
			transfer_number, acquired_amount, principal, added_at
		FROM ledger_entry
		WHERE creditor_id = ? AND debtor_id = ? AND entry_id < ?
		ORDER BY entry_id DESC
		LIMIT ?`,
		creditorID, debtorID, beforeEntryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		var creationDate sql.NullTime
		var transferNumber sql.NullInt64
		if err := rows.Scan(
			&e.CreditorID, &e.DebtorID, &e.EntryID, &creationDate,
			&transferNumber, &e.AcquiredAmount, &e.Principal, &e.AddedAt,
		); err != nil {
			return nil, err
		}
		e.CreationDate = timePtr(creationDate)
		e.TransferNumber = int64Ptr(transferNumber)
		e.AddedAt = e.AddedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *liteTx) EnsurePendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO pending_ledger_update (creditor_id, debtor_id)
		VALUES (?, ?)`,
		creditorID, debtorID)
	return err
}

func (t *liteTx) LockPendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error {
	var one int
	err := t.tx.QueryRowContext(ctx, `
		SELECT 1 FROM pending_ledger_update WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID).Scan(&one)
	return nilOnNoRows(err)
}

func (t *liteTx) DeletePendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM pending_ledger_update WHERE creditor_id = ? AND debtor_id = ?`,
		creditorID, debtorID)
	return err
}

func (t *liteTx) ListPendingLedgerUpdates(ctx context.Context, limit int) ([]models.PendingLedgerUpdate, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT creditor_id, debtor_id FROM pending_ledger_update
		ORDER BY creditor_id, debtor_id
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PendingLedgerUpdate
	for rows.Next() {
		var p models.PendingLedgerUpdate
		if err := rows.Scan(&p.CreditorID, &p.DebtorID); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (t *liteTx) StagePendingLogEntry(ctx context.Context, e *models.PendingLogEntry) error {
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO pending_log_entry (creditor_id, added_at, object_type, object_uri,
			object_update_id, object_update_seq, deleted,
			data_principal, data_next_entry_id, data_finalized_at, data_error_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.CreditorID, e.AddedAt, e.ObjectType, e.ObjectURI,
		e.ObjectUpdateID, e.ObjectUpdateSeq, e.Deleted,
		e.DataPrincipal, e.DataNextEntryID, e.DataFinalizedAt, e.DataErrorCode,
	)
	if err != nil {
		return err
	}
	e.PendingEntryID, err = res.LastInsertId()
	return err
}

func (t *liteTx) ListPendingLogEntries(ctx context.Context, creditorID int64) ([]models.PendingLogEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+pendingLogColumns+` FROM pending_log_entry
		WHERE creditor_id = ?
		ORDER BY pending_entry_id`, creditorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PendingLogEntry
	for rows.Next() {
		var e models.PendingLogEntry
		var dataPrincipal, dataNextEntryID sql.NullInt64
		var dataFinalizedAt sql.NullTime
		var dataErrorCode sql.NullString
		if err := rows.Scan(
			&e.PendingEntryID, &e.CreditorID, &e.AddedAt, &e.ObjectType, &e.ObjectURI,
			&e.ObjectUpdateID, &e.ObjectUpdateSeq, &e.Deleted,
			&dataPrincipal, &dataNextEntryID, &dataFinalizedAt, &dataErrorCode,
		); err != nil {
			return nil, err
		}
		e.DataPrincipal = int64Ptr(dataPrincipal)
		e.DataNextEntryID = int64Ptr(dataNextEntryID)
		e.DataFinalizedAt = timePtr(dataFinalizedAt)
		e.DataErrorCode = stringPtr(dataErrorCode)
		e.AddedAt = e.AddedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *liteTx) DeletePendingLogEntries(ctx context.Context, creditorID int64, upToPendingEntryID int64) error {
	_, err := t.tx.ExecContext(ctx,
		`DELETE FROM pending_log_entry WHERE creditor_id = ? AND pending_entry_id <= ?`,
		creditorID, upToPendingEntryID)
	return err
}

func (t *liteTx) ListCreditorsWithPendingLogEntries(ctx context.Context, limit int) ([]int64, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT DISTINCT creditor_id FROM pending_log_entry LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *liteTx) InsertLogEntry(ctx context.Context, e *models.LogEntry) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO log_entry (`+logColumns+`)
		VALUES (`+placeholders(13)+`)`,
		e.CreditorID, e.EntryID, e.PreviousEntryID, e.AddedAt, e.ObjectType, e.ObjectURI,
		e.ObjectUpdateID, e.ObjectUpdateSeq, e.Deleted,
		e.DataPrincipal, e.DataNextEntryID, e.DataFinalizedAt, e.DataErrorCode,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) ListLogEntries(ctx context.Context, creditorID, afterEntryID int64, limit int) ([]models.LogEntry, error) {
	rows, err := t.tx.QueryContext(ctx, `
		SELECT `+logColumns+` FROM log_entry
		WHERE creditor_id = ? AND entry_id > ?
		ORDER BY entry_id
		LIMIT ?`,
		creditorID, afterEntryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		var dataPrincipal, dataNextEntryID sql.NullInt64
		var dataFinalizedAt sql.NullTime
		var dataErrorCode sql.NullString
		if err := rows.Scan(
			&e.CreditorID, &e.EntryID, &e.PreviousEntryID, &e.AddedAt, &e.ObjectType, &e.ObjectURI,
			&e.ObjectUpdateID, &e.ObjectUpdateSeq, &e.Deleted,
			&dataPrincipal, &dataNextEntryID, &dataFinalizedAt, &dataErrorCode,
		); err != nil {
			return nil, err
		}
		e.DataPrincipal = int64Ptr(dataPrincipal)
		e.DataNextEntryID = int64Ptr(dataNextEntryID)
		e.DataFinalizedAt = timePtr(dataFinalizedAt)
		e.DataErrorCode = stringPtr(dataErrorCode)
		e.AddedAt = e.AddedAt.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *liteTx) CreateRunningTransfer(ctx context.Context, rt *models.RunningTransfer) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO running_transfer (`+runningTransferColumns+`)
		VALUES (`+placeholders(13)+`)`,
		rt.CreditorID, rt.TransferUUID.String(), rt.DebtorID, rt.Amount, rt.RecipientID,
		rt.TransferNote, rt.TransferNoteFormat, rt.InitiatedAt,
		rt.FinalizedAt, rt.ErrorCode, rt.TotalLockedAmount, rt.LatestUpdateID, rt.LatestUpdateTS,
	)
	if isSQLiteUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *liteTx) getRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) (*models.RunningTransfer, error) {
	var rt models.RunningTransfer
	var rawUUID string
	var finalizedAt sql.NullTime
	var errorCode sql.NullString
	var totalLocked sql.NullInt64
	err := t.tx.QueryRowContext(ctx,
		`SELECT `+runningTransferColumns+` FROM running_transfer
		 WHERE creditor_id = ? AND transfer_uuid = ?`,
		creditorID, transferUUID.String(),
	).Scan(
		&rt.CreditorID, &rawUUID, &rt.DebtorID, &rt.Amount, &rt.RecipientID,
		&rt.TransferNote, &rt.TransferNoteFormat, &rt.InitiatedAt,
		&finalizedAt, &errorCode, &totalLocked, &rt.LatestUpdateID, &rt.LatestUpdateTS,
	)
	if err != nil {
		return nil, nilOnNoRows(err)
	}
	rt.TransferUUID, err = uuid.Parse(rawUUID)
	if err != nil {
		return nil, err
	}
	rt.FinalizedAt = timePtr(finalizedAt)
	rt.ErrorCode = stringPtr(errorCode)
	rt.TotalLockedAmount = int64Ptr(totalLocked)
	rt.InitiatedAt = rt.InitiatedAt.UTC()
	rt.LatestUpdateTS = rt.LatestUpdateTS.UTC()
	return &rt, nil
}

func (t *liteTx) GetRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) (*models.RunningTransfer, error) {
	return t.getRunningTransfer(ctx, creditorID, transferUUID)
}

func (t *liteTx) GetRunningTransferForUpdate(ctx context.Context, creditorID int64, transferUUID uuid.UUID) (*models.RunningTransfer, error) {
	return t.getRunningTransfer(ctx, creditorID, transferUUID)
}

func (t *liteTx) UpdateRunningTransfer(ctx context.Context, rt *models.RunningTransfer) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE running_transfer SET
			finalized_at = ?, error_code = ?, total_locked_amount = ?,
			latest_update_id = ?, latest_update_ts = ?
		WHERE creditor_id = ? AND transfer_uuid = ?`,
		rt.FinalizedAt, rt.ErrorCode, rt.TotalLockedAmount,
		rt.LatestUpdateID, rt.LatestUpdateTS,
		rt.CreditorID, rt.TransferUUID.String(),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) DeleteRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) error {
	res, err := t.tx.ExecContext(ctx,
		`DELETE FROM running_transfer WHERE creditor_id = ? AND transfer_uuid = ?`,
		creditorID, transferUUID.String())
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func (t *liteTx) ListRunningTransferUUIDs(ctx context.Context, creditorID int64) ([]uuid.UUID, error) {
	rows, err := t.tx.QueryContext(ctx,
		`SELECT transfer_uuid FROM running_transfer WHERE creditor_id = ? ORDER BY initiated_at`,
		creditorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *liteTx) NextObjectUpdateSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := t.tx.QueryRowContext(ctx,
		`UPDATE object_update_seq SET seq = seq + 1 WHERE id = 1 RETURNING seq`).Scan(&seq)
	return seq, err
}
