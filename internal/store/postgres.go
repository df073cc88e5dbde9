package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/creditors-ledger/internal/models"
)

// Postgres is the production Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate applies the schema. Safe to call on every startup.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaPostgres); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *Postgres) Close() {
	s.pool.Close()
}

// InTx runs fn inside one transaction, retrying serialization failures
// (SQLSTATE 40001) with a fresh transaction and linear backoff.
func (s *Postgres) InTx(ctx context.Context, fn func(tx Tx) error) error {
	const maxRetries = 5

	for attempt := 0; ; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "40001" && attempt < maxRetries-1 {
			time.Sleep(time.Duration(attempt+1) * 10 * time.Millisecond)
			continue
		}
		return err
	}
}

func (s *Postgres) runTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.ReadCommitted,
		AccessMode: pgx.ReadWrite,
	})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

const creditorColumns = `creditor_id, created_at, last_log_entry_id, ledger_entry_high_water,
	latest_update_id, latest_update_ts,
	accounts_list_latest_update_id, accounts_list_latest_update_ts,
	transfers_list_latest_update_id, transfers_list_latest_update_ts`

func scanCreditor(row pgx.Row) (*models.Creditor, error) {
	var c models.Creditor
	err := row.Scan(
		&c.CreditorID, &c.CreatedAt, &c.LastLogEntryID, &c.LedgerEntryHighWater,
		&c.LatestUpdateID, &c.LatestUpdateTS,
		&c.AccountsListLatestUpdateID, &c.AccountsListLatestUpdateTS,
		&c.TransfersListLatestUpdateID, &c.TransfersListLatestUpdateTS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (t *pgTx) CreateCreditor(ctx context.Context, c *models.Creditor) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO creditor (`+creditorColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		c.CreditorID, c.CreatedAt, c.LastLogEntryID, c.LedgerEntryHighWater,
		c.LatestUpdateID, c.LatestUpdateTS,
		c.AccountsListLatestUpdateID, c.AccountsListLatestUpdateTS,
		c.TransfersListLatestUpdateID, c.TransfersListLatestUpdateTS,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) GetCreditor(ctx context.Context, creditorID int64) (*models.Creditor, error) {
	return scanCreditor(t.tx.QueryRow(ctx,
		`SELECT `+creditorColumns+` FROM creditor WHERE creditor_id = $1`, creditorID))
}

func (t *pgTx) GetCreditorForUpdate(ctx context.Context, creditorID int64) (*models.Creditor, error) {
	return scanCreditor(t.tx.QueryRow(ctx,
		`SELECT `+creditorColumns+` FROM creditor WHERE creditor_id = $1 FOR UPDATE`, creditorID))
}

func (t *pgTx) UpdateCreditor(ctx context.Context, c *models.Creditor) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE creditor SET
			last_log_entry_id = $2,
			ledger_entry_high_water = $3,
			latest_update_id = $4, latest_update_ts = $5,
			accounts_list_latest_update_id = $6, accounts_list_latest_update_ts = $7,
			transfers_list_latest_update_id = $8, transfers_list_latest_update_ts = $9
		WHERE creditor_id = $1`,
		c.CreditorID,
		c.LastLogEntryID,
		c.LedgerEntryHighWater,
		c.LatestUpdateID, c.LatestUpdateTS,
		c.AccountsListLatestUpdateID, c.AccountsListLatestUpdateTS,
		c.TransfersListLatestUpdateID, c.TransfersListLatestUpdateTS,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) MaxLogEntryID(ctx context.Context, creditorID int64) (int64, error) {
	var maxID int64
	err := t.tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(entry_id), 0) FROM log_entry WHERE creditor_id = $1`,
		creditorID).Scan(&maxID)
	return maxID, err
}

func (t *pgTx) CreateAccount(ctx context.Context, a *models.Account) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account (creditor_id, debtor_id, created_at, latest_update_id, latest_update_ts)
		VALUES ($1, $2, $3, $4, $5)`,
		a.CreditorID, a.DebtorID, a.CreatedAt, a.LatestUpdateID, a.LatestUpdateTS,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) getAccount(ctx context.Context, creditorID, debtorID int64, lock string) (*models.Account, error) {
	var a models.Account
	err := t.tx.QueryRow(ctx, `
		SELECT creditor_id, debtor_id, created_at, latest_update_id, latest_update_ts
		FROM account WHERE creditor_id = $1 AND debtor_id = $2`+lock,
		creditorID, debtorID,
	).Scan(&a.CreditorID, &a.DebtorID, &a.CreatedAt, &a.LatestUpdateID, &a.LatestUpdateTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (t *pgTx) GetAccount(ctx context.Context, creditorID, debtorID int64) (*models.Account, error) {
	return t.getAccount(ctx, creditorID, debtorID, "")
}

func (t *pgTx) GetAccountForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.Account, error) {
	return t.getAccount(ctx, creditorID, debtorID, " FOR UPDATE")
}

func (t *pgTx) UpdateAccount(ctx context.Context, a *models.Account) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE account SET latest_update_id = $3, latest_update_ts = $4
		WHERE creditor_id = $1 AND debtor_id = $2`,
		a.CreditorID, a.DebtorID, a.LatestUpdateID, a.LatestUpdateTS,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteAccount(ctx context.Context, creditorID, debtorID int64) error {
	// Ledger entries do not cascade: entry ids must stay reserved, and
	// history stays readable until retention prunes it.
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM account WHERE creditor_id = $1 AND debtor_id = $2`,
		creditorID, debtorID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) ListAccountDebtorIDs(ctx context.Context, creditorID int64) ([]int64, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT debtor_id FROM account WHERE creditor_id = $1 ORDER BY debtor_id`, creditorID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

func (t *pgTx) HasPegReferences(ctx context.Context, creditorID, debtorID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM account_exchange
			WHERE creditor_id = $1 AND peg_debtor_id = $2
		)`, creditorID, debtorID).Scan(&exists)
	return exists, err
}

const accountDataColumns = `creditor_id, debtor_id, creation_date,
	last_change_ts, last_change_seqnum,
	principal, interest, interest_rate,
	last_transfer_number, last_transfer_committed_at, last_heartbeat_ts,
	has_server_account, account_identity, status_flags,
	scheduled_for_deletion, allow_unsafe_deletion, config_effectual, config_error,
	config_latest_update_id, config_latest_update_ts,
	info_latest_update_id, info_latest_update_ts,
	ledger_principal, ledger_last_entry_id,
	ledger_last_transfer_number, ledger_last_transfer_committed_at,
	ledger_pending_transfer_ts, ledger_latest_update_id, ledger_latest_update_ts`

func scanAccountData(row pgx.Row) (*models.AccountData, error) {
	var d models.AccountData
	err := row.Scan(
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
		&d.LedgerPendingTransferTS, &d.LedgerLatestUpdateID, &d.LedgerLatestUpdateTS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *pgTx) CreateAccountData(ctx context.Context, d *models.AccountData) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account_data (`+accountDataColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29)`,
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
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) getAccountData(ctx context.Context, creditorID, debtorID int64, lock string) (*models.AccountData, error) {
	return scanAccountData(t.tx.QueryRow(ctx,
		`SELECT `+accountDataColumns+` FROM account_data
		 WHERE creditor_id = $1 AND debtor_id = $2`+lock,
		creditorID, debtorID))
}

func (t *pgTx) GetAccountData(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error) {
	return t.getAccountData(ctx, creditorID, debtorID, "")
}

func (t *pgTx) GetAccountDataForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error) {
	return t.getAccountData(ctx, creditorID, debtorID, " FOR UPDATE")
}

func (t *pgTx) GetAccountDataShared(ctx context.Context, creditorID, debtorID int64) (*models.AccountData, error) {
	return t.getAccountData(ctx, creditorID, debtorID, " FOR SHARE")
}

func (t *pgTx) UpdateAccountData(ctx context.Context, d *models.AccountData) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE account_data SET
			creation_date = $3,
			last_change_ts = $4, last_change_seqnum = $5,
			principal = $6, interest = $7, interest_rate = $8,
			last_transfer_number = $9, last_transfer_committed_at = $10, last_heartbeat_ts = $11,
			has_server_account = $12, account_identity = $13, status_flags = $14,
			scheduled_for_deletion = $15, allow_unsafe_deletion = $16,
			config_effectual = $17, config_error = $18,
			config_latest_update_id = $19, config_latest_update_ts = $20,
			info_latest_update_id = $21, info_latest_update_ts = $22,
			ledger_principal = $23, ledger_last_entry_id = $24,
			ledger_last_transfer_number = $25, ledger_last_transfer_committed_at = $26,
			ledger_pending_transfer_ts = $27,
			ledger_latest_update_id = $28, ledger_latest_update_ts = $29
		WHERE creditor_id = $1 AND debtor_id = $2`,
		d.CreditorID, d.DebtorID, d.CreationDate,
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
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateAccountDisplay(ctx context.Context, d *models.AccountDisplay) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account_display (creditor_id, debtor_id, debtor_name, amount_divisor,
			decimal_places, unit, known_debtor, latest_update_id, latest_update_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.CreditorID, d.DebtorID, d.DebtorName, d.AmountDivisor,
		d.DecimalPlaces, d.Unit, d.KnownDebtor, d.LatestUpdateID, d.LatestUpdateTS,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) GetAccountDisplayForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountDisplay, error) {
	var d models.AccountDisplay
	err := t.tx.QueryRow(ctx, `
		SELECT creditor_id, debtor_id, debtor_name, amount_divisor,
			decimal_places, unit, known_debtor, latest_update_id, latest_update_ts
		FROM account_display WHERE creditor_id = $1 AND debtor_id = $2 FOR UPDATE`,
		creditorID, debtorID,
	).Scan(&d.CreditorID, &d.DebtorID, &d.DebtorName, &d.AmountDivisor,
		&d.DecimalPlaces, &d.Unit, &d.KnownDebtor, &d.LatestUpdateID, &d.LatestUpdateTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *pgTx) UpdateAccountDisplay(ctx context.Context, d *models.AccountDisplay) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE account_display SET debtor_name = $3, amount_divisor = $4,
			decimal_places = $5, unit = $6, known_debtor = $7,
			latest_update_id = $8, latest_update_ts = $9
		WHERE creditor_id = $1 AND debtor_id = $2`,
		d.CreditorID, d.DebtorID, d.DebtorName, d.AmountDivisor,
		d.DecimalPlaces, d.Unit, d.KnownDebtor, d.LatestUpdateID, d.LatestUpdateTS,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DebtorNameTaken(ctx context.Context, creditorID int64, debtorName string, excludeDebtorID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM account_display
			WHERE creditor_id = $1 AND debtor_name = $2 AND debtor_id <> $3
		)`, creditorID, debtorName, excludeDebtorID).Scan(&exists)
	return exists, err
}

func (t *pgTx) CreateAccountExchange(ctx context.Context, e *models.AccountExchange) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account_exchange (creditor_id, debtor_id, policy, min_principal,
			max_principal, peg_exchange_rate, peg_debtor_id, latest_update_id, latest_update_ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.CreditorID, e.DebtorID, e.Policy, e.MinPrincipal,
		e.MaxPrincipal, e.PegExchangeRate, e.PegDebtorID, e.LatestUpdateID, e.LatestUpdateTS,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) GetAccountExchangeForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountExchange, error) {
	var e models.AccountExchange
	err := t.tx.QueryRow(ctx, `
		SELECT creditor_id, debtor_id, policy, min_principal, max_principal,
			peg_exchange_rate, peg_debtor_id, latest_update_id, latest_update_ts
		FROM account_exchange WHERE creditor_id = $1 AND debtor_id = $2 FOR UPDATE`,
		creditorID, debtorID,
	).Scan(&e.CreditorID, &e.DebtorID, &e.Policy, &e.MinPrincipal, &e.MaxPrincipal,
		&e.PegExchangeRate, &e.PegDebtorID, &e.LatestUpdateID, &e.LatestUpdateTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (t *pgTx) UpdateAccountExchange(ctx context.Context, e *models.AccountExchange) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE account_exchange SET policy = $3, min_principal = $4, max_principal = $5,
			peg_exchange_rate = $6, peg_debtor_id = $7, latest_update_id = $8, latest_update_ts = $9
		WHERE creditor_id = $1 AND debtor_id = $2`,
		e.CreditorID, e.DebtorID, e.Policy, e.MinPrincipal, e.MaxPrincipal,
		e.PegExchangeRate, e.PegDebtorID, e.LatestUpdateID, e.LatestUpdateTS,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) CreateAccountKnowledge(ctx context.Context, k *models.AccountKnowledge) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO account_knowledge (creditor_id, debtor_id, data, latest_update_id, latest_update_ts)
		VALUES ($1, $2, $3, $4, $5)`,
		k.CreditorID, k.DebtorID, k.Data, k.LatestUpdateID, k.LatestUpdateTS,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) GetAccountKnowledgeForUpdate(ctx context.Context, creditorID, debtorID int64) (*models.AccountKnowledge, error) {
	var k models.AccountKnowledge
	err := t.tx.QueryRow(ctx, `
		SELECT creditor_id, debtor_id, data, latest_update_id, latest_update_ts
		FROM account_knowledge WHERE creditor_id = $1 AND debtor_id = $2 FOR UPDATE`,
		creditorID, debtorID,
	).Scan(&k.CreditorID, &k.DebtorID, &k.Data, &k.LatestUpdateID, &k.LatestUpdateTS)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (t *pgTx) UpdateAccountKnowledge(ctx context.Context, k *models.AccountKnowledge) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE account_knowledge SET data = $3, latest_update_id = $4, latest_update_ts = $5
		WHERE creditor_id = $1 AND debtor_id = $2`,
		k.CreditorID, k.DebtorID, k.Data, k.LatestUpdateID, k.LatestUpdateTS,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const committedTransferColumns = `creditor_id, debtor_id, creation_date, transfer_number,
	coordinator_type, sender_id, recipient_id, acquired_amount,
	transfer_note, transfer_note_format, committed_at, principal, previous_transfer_number`

func (t *pgTx) InsertCommittedTransfer(ctx context.Context, ct *models.CommittedTransfer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO committed_transfer (`+committedTransferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ct.CreditorID, ct.DebtorID, ct.CreationDate, ct.TransferNumber,
		ct.CoordinatorType, ct.SenderID, ct.RecipientID, ct.AcquiredAmount,
		ct.TransferNote, ct.TransferNoteFormat, ct.CommittedAt, ct.Principal, ct.PreviousTransferNumber,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) CommittedTransferExists(ctx context.Context, creditorID, debtorID int64, creationDate time.Time, transferNumber int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM committed_transfer
			WHERE creditor_id = $1 AND debtor_id = $2 AND creation_date = $3 AND transfer_number = $4
		)`, creditorID, debtorID, creationDate, transferNumber).Scan(&exists)
	return exists, err
}

func (t *pgTx) ListCommittedTransfers(ctx context.Context, creditorID, debtorID int64, creationDate time.Time, afterTransferNumber int64, limit int) ([]models.CommittedTransfer, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+committedTransferColumns+` FROM committed_transfer
		WHERE creditor_id = $1 AND debtor_id = $2 AND creation_date = $3 AND transfer_number > $4
		ORDER BY transfer_number
		LIMIT $5`,
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
		out = append(out, ct)
	}
	return out, rows.Err()
}

func (t *pgTx) DeleteCommittedTransfersBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	tag, err := t.tx.Exec(ctx, `
		DELETE FROM committed_transfer
		WHERE (creditor_id, debtor_id, creation_date, transfer_number) IN (
			SELECT creditor_id, debtor_id, creation_date, transfer_number
			FROM committed_transfer
			WHERE committed_at < $1
			LIMIT $2
		)`, cutoff, limit)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *pgTx) InsertLedgerEntry(ctx context.Context, e *models.LedgerEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_entry (creditor_id, debtor_id, entry_id, creation_date,
			transfer_number, acquired_amount, principal, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.CreditorID, e.DebtorID, e.EntryID, e.CreationDate,
		e.TransferNumber, e.AcquiredAmount, e.Principal, e.AddedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) ListLedgerEntries(ctx context.Context, creditorID, debtorID, beforeEntryID int64, limit int) ([]models.LedgerEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT creditor_id, debtor_id, entry_id, creation_date,
			transfer_number, acquired_amount, principal, added_at
		FROM ledger_entry
		WHERE creditor_id = $1 AND debtor_id = $2 AND entry_id < $3
		ORDER BY entry_id DESC
		LIMIT $4`,
		creditorID, debtorID, beforeEntryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LedgerEntry
	for rows.Next() {
		var e models.LedgerEntry
		if err := rows.Scan(
			&e.CreditorID, &e.DebtorID, &e.EntryID, &e.CreationDate,
			&e.TransferNumber, &e.AcquiredAmount, &e.Principal, &e.AddedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) EnsurePendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO pending_ledger_update (creditor_id, debtor_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`,
		creditorID, debtorID)
	return err
}

func (t *pgTx) LockPendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error {
	var one int
	err := t.tx.QueryRow(ctx, `
		SELECT 1 FROM pending_ledger_update
		WHERE creditor_id = $1 AND debtor_id = $2 FOR UPDATE`,
		creditorID, debtorID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (t *pgTx) DeletePendingLedgerUpdate(ctx context.Context, creditorID, debtorID int64) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM pending_ledger_update WHERE creditor_id = $1 AND debtor_id = $2`,
		creditorID, debtorID)
	return err
}

func (t *pgTx) ListPendingLedgerUpdates(ctx context.Context, limit int) ([]models.PendingLedgerUpdate, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT creditor_id, debtor_id FROM pending_ledger_update
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
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

const pendingLogColumns = `pending_entry_id, creditor_id, added_at, object_type, object_uri,
	object_update_id, object_update_seq, deleted,
	data_principal, data_next_entry_id, data_finalized_at, data_error_code`

func (t *pgTx) StagePendingLogEntry(ctx context.Context, e *models.PendingLogEntry) error {
	return t.tx.QueryRow(ctx, `
		INSERT INTO pending_log_entry (creditor_id, added_at, object_type, object_uri,
			object_update_id, object_update_seq, deleted,
			data_principal, data_next_entry_id, data_finalized_at, data_error_code)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING pending_entry_id`,
		e.CreditorID, e.AddedAt, e.ObjectType, e.ObjectURI,
		e.ObjectUpdateID, e.ObjectUpdateSeq, e.Deleted,
		e.DataPrincipal, e.DataNextEntryID, e.DataFinalizedAt, e.DataErrorCode,
	).Scan(&e.PendingEntryID)
}

func (t *pgTx) ListPendingLogEntries(ctx context.Context, creditorID int64) ([]models.PendingLogEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+pendingLogColumns+` FROM pending_log_entry
		WHERE creditor_id = $1
		ORDER BY pending_entry_id
		FOR UPDATE SKIP LOCKED`, creditorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PendingLogEntry
	for rows.Next() {
		var e models.PendingLogEntry
		if err := rows.Scan(
			&e.PendingEntryID, &e.CreditorID, &e.AddedAt, &e.ObjectType, &e.ObjectURI,
			&e.ObjectUpdateID, &e.ObjectUpdateSeq, &e.Deleted,
			&e.DataPrincipal, &e.DataNextEntryID, &e.DataFinalizedAt, &e.DataErrorCode,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (t *pgTx) DeletePendingLogEntries(ctx context.Context, creditorID int64, upToPendingEntryID int64) error {
	_, err := t.tx.Exec(ctx,
		`DELETE FROM pending_log_entry WHERE creditor_id = $1 AND pending_entry_id <= $2`,
		creditorID, upToPendingEntryID)
	return err
}

func (t *pgTx) ListCreditorsWithPendingLogEntries(ctx context.Context, limit int) ([]int64, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT DISTINCT creditor_id FROM pending_log_entry LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[int64])
}

const logColumns = `creditor_id, entry_id, previous_entry_id, added_at, object_type, object_uri,
	object_update_id, object_update_seq, deleted,
	data_principal, data_next_entry_id, data_finalized_at, data_error_code`

func (t *pgTx) InsertLogEntry(ctx context.Context, e *models.LogEntry) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO log_entry (`+logColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.CreditorID, e.EntryID, e.PreviousEntryID, e.AddedAt, e.ObjectType, e.ObjectURI,
		e.ObjectUpdateID, e.ObjectUpdateSeq, e.Deleted,
		e.DataPrincipal, e.DataNextEntryID, e.DataFinalizedAt, e.DataErrorCode,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) ListLogEntries(ctx context.Context, creditorID, afterEntryID int64, limit int) ([]models.LogEntry, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+logColumns+` FROM log_entry
		WHERE creditor_id = $1 AND entry_id > $2
		ORDER BY entry_id
		LIMIT $3`,
		creditorID, afterEntryID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LogEntry
	for rows.Next() {
		var e models.LogEntry
		if err := rows.Scan(
			&e.CreditorID, &e.EntryID, &e.PreviousEntryID, &e.AddedAt, &e.ObjectType, &e.ObjectURI,
			&e.ObjectUpdateID, &e.ObjectUpdateSeq, &e.Deleted,
			&e.DataPrincipal, &e.DataNextEntryID, &e.DataFinalizedAt, &e.DataErrorCode,
		); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const runningTransferColumns = `creditor_id, transfer_uuid, debtor_id, amount, recipient_id,
	transfer_note, transfer_note_format, initiated_at,
	finalized_at, error_code, total_locked_amount, latest_update_id, latest_update_ts`

func scanRunningTransfer(row pgx.Row) (*models.RunningTransfer, error) {
	var rt models.RunningTransfer
	err := row.Scan(
		&rt.CreditorID, &rt.TransferUUID, &rt.DebtorID, &rt.Amount, &rt.RecipientID,
		&rt.TransferNote, &rt.TransferNoteFormat, &rt.InitiatedAt,
		&rt.FinalizedAt, &rt.ErrorCode, &rt.TotalLockedAmount, &rt.LatestUpdateID, &rt.LatestUpdateTS,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rt, nil
}

func (t *pgTx) CreateRunningTransfer(ctx context.Context, rt *models.RunningTransfer) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO running_transfer (`+runningTransferColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rt.CreditorID, rt.TransferUUID, rt.DebtorID, rt.Amount, rt.RecipientID,
		rt.TransferNote, rt.TransferNoteFormat, rt.InitiatedAt,
		rt.FinalizedAt, rt.ErrorCode, rt.TotalLockedAmount, rt.LatestUpdateID, rt.LatestUpdateTS,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	return err
}

func (t *pgTx) GetRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) (*models.RunningTransfer, error) {
	return scanRunningTransfer(t.tx.QueryRow(ctx,
		`SELECT `+runningTransferColumns+` FROM running_transfer
		 WHERE creditor_id = $1 AND transfer_uuid = $2`,
		creditorID, transferUUID))
}

func (t *pgTx) GetRunningTransferForUpdate(ctx context.Context, creditorID int64, transferUUID uuid.UUID) (*models.RunningTransfer, error) {
	return scanRunningTransfer(t.tx.QueryRow(ctx,
		`SELECT `+runningTransferColumns+` FROM running_transfer
		 WHERE creditor_id = $1 AND transfer_uuid = $2 FOR UPDATE`,
		creditorID, transferUUID))
}

func (t *pgTx) UpdateRunningTransfer(ctx context.Context, rt *models.RunningTransfer) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE running_transfer SET
			finalized_at = $3, error_code = $4, total_locked_amount = $5,
			latest_update_id = $6, latest_update_ts = $7
		WHERE creditor_id = $1 AND transfer_uuid = $2`,
		rt.CreditorID, rt.TransferUUID,
		rt.FinalizedAt, rt.ErrorCode, rt.TotalLockedAmount,
		rt.LatestUpdateID, rt.LatestUpdateTS,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteRunningTransfer(ctx context.Context, creditorID int64, transferUUID uuid.UUID) error {
	tag, err := t.tx.Exec(ctx,
		`DELETE FROM running_transfer WHERE creditor_id = $1 AND transfer_uuid = $2`,
		creditorID, transferUUID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) ListRunningTransferUUIDs(ctx context.Context, creditorID int64) ([]uuid.UUID, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT transfer_uuid FROM running_transfer WHERE creditor_id = $1 ORDER BY initiated_at`,
		creditorID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
}

func (t *pgTx) NextObjectUpdateSeq(ctx context.Context) (int64, error) {
	var seq int64
	err := t.tx.QueryRow(ctx, `SELECT nextval('object_update_seq')`).Scan(&seq)
	return seq, err
}
