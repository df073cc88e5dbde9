package store

// schemaPostgres is the full DDL. Migrate applies it on startup; every
// statement is idempotent.
const schemaPostgres = `
CREATE TABLE IF NOT EXISTS creditor (
    creditor_id                     BIGINT PRIMARY KEY,
    created_at                      TIMESTAMPTZ NOT NULL,
    last_log_entry_id               BIGINT NOT NULL DEFAULT 0,
    ledger_entry_high_water         BIGINT NOT NULL DEFAULT 0,
    latest_update_id                BIGINT NOT NULL DEFAULT 1,
    latest_update_ts                TIMESTAMPTZ NOT NULL,
    accounts_list_latest_update_id  BIGINT NOT NULL DEFAULT 1,
    accounts_list_latest_update_ts  TIMESTAMPTZ NOT NULL,
    transfers_list_latest_update_id BIGINT NOT NULL DEFAULT 1,
    transfers_list_latest_update_ts TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS account (
    creditor_id      BIGINT NOT NULL REFERENCES creditor(creditor_id),
    debtor_id        BIGINT NOT NULL,
    created_at       TIMESTAMPTZ NOT NULL,
    latest_update_id BIGINT NOT NULL DEFAULT 1,
    latest_update_ts TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id)
);

CREATE TABLE IF NOT EXISTS account_data (
    creditor_id                       BIGINT NOT NULL,
    debtor_id                         BIGINT NOT NULL,
    creation_date                     DATE NOT NULL,
    last_change_ts                    TIMESTAMPTZ NOT NULL,
    last_change_seqnum                INTEGER NOT NULL,
    principal                         BIGINT NOT NULL,
    interest                          DOUBLE PRECISION NOT NULL,
    interest_rate                     DOUBLE PRECISION NOT NULL,
    last_transfer_number              BIGINT NOT NULL,
    last_transfer_committed_at        TIMESTAMPTZ NOT NULL,
    last_heartbeat_ts                 TIMESTAMPTZ NOT NULL,
    has_server_account                BOOLEAN NOT NULL,
    account_identity                  TEXT NOT NULL,
    status_flags                      INTEGER NOT NULL,
    scheduled_for_deletion            BOOLEAN NOT NULL,
    allow_unsafe_deletion             BOOLEAN NOT NULL,
    config_effectual                  BOOLEAN NOT NULL,
    config_error                      TEXT NOT NULL DEFAULT '',
    config_latest_update_id           BIGINT NOT NULL DEFAULT 1,
    config_latest_update_ts           TIMESTAMPTZ NOT NULL,
    info_latest_update_id             BIGINT NOT NULL DEFAULT 1,
    info_latest_update_ts             TIMESTAMPTZ NOT NULL,
    ledger_principal                  BIGINT NOT NULL,
    ledger_last_entry_id              BIGINT NOT NULL,
    ledger_last_transfer_number       BIGINT NOT NULL,
    ledger_last_transfer_committed_at TIMESTAMPTZ NOT NULL,
    ledger_pending_transfer_ts        TIMESTAMPTZ,
    ledger_latest_update_id           BIGINT NOT NULL DEFAULT 1,
    ledger_latest_update_ts           TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS account_display (
    creditor_id       BIGINT NOT NULL,
    debtor_id         BIGINT NOT NULL,
    debtor_name       TEXT,
    amount_divisor    DOUBLE PRECISION NOT NULL DEFAULT 1.0,
    decimal_places    INTEGER NOT NULL DEFAULT 0,
    unit              TEXT,
    known_debtor      BOOLEAN NOT NULL DEFAULT FALSE,
    latest_update_id  BIGINT NOT NULL DEFAULT 1,
    latest_update_ts  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE,
    CHECK (amount_divisor > 0)
);

CREATE TABLE IF NOT EXISTS account_exchange (
    creditor_id       BIGINT NOT NULL,
    debtor_id         BIGINT NOT NULL,
    policy            TEXT,
    min_principal     BIGINT NOT NULL,
    max_principal     BIGINT NOT NULL,
    peg_exchange_rate DOUBLE PRECISION,
    peg_debtor_id     BIGINT,
    latest_update_id  BIGINT NOT NULL DEFAULT 1,
    latest_update_ts  TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE,
    CHECK (min_principal <= max_principal),
    CHECK ((peg_exchange_rate IS NULL) = (peg_debtor_id IS NULL))
);

CREATE INDEX IF NOT EXISTS idx_account_exchange_peg
    ON account_exchange (creditor_id, peg_debtor_id)
    WHERE peg_debtor_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS account_knowledge (
    creditor_id      BIGINT NOT NULL,
    debtor_id        BIGINT NOT NULL,
    data             TEXT NOT NULL DEFAULT '{}',
    latest_update_id BIGINT NOT NULL DEFAULT 1,
    latest_update_ts TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS committed_transfer (
    creditor_id              BIGINT NOT NULL,
    debtor_id                BIGINT NOT NULL,
    creation_date            DATE NOT NULL,
    transfer_number          BIGINT NOT NULL,
    coordinator_type         TEXT NOT NULL,
    sender_id                TEXT NOT NULL,
    recipient_id             TEXT NOT NULL,
    acquired_amount          BIGINT NOT NULL,
    transfer_note            TEXT NOT NULL,
    transfer_note_format     TEXT NOT NULL,
    committed_at             TIMESTAMPTZ NOT NULL,
    principal                BIGINT NOT NULL,
    previous_transfer_number BIGINT NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id, creation_date, transfer_number),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE,
    CHECK (transfer_number > 0),
    CHECK (previous_transfer_number >= 0 AND previous_transfer_number < transfer_number),
    CHECK (acquired_amount <> 0)
);

CREATE INDEX IF NOT EXISTS idx_committed_transfer_committed_at
    ON committed_transfer (committed_at);

CREATE TABLE IF NOT EXISTS ledger_entry (
    creditor_id     BIGINT NOT NULL,
    debtor_id       BIGINT NOT NULL,
    entry_id        BIGINT NOT NULL,
    creation_date   DATE,
    transfer_number BIGINT,
    acquired_amount BIGINT NOT NULL,
    principal       BIGINT NOT NULL,
    added_at        TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id, entry_id),
    CHECK (entry_id > 0),
    CHECK ((creation_date IS NULL) = (transfer_number IS NULL))
);

CREATE TABLE IF NOT EXISTS pending_ledger_update (
    creditor_id BIGINT NOT NULL,
    debtor_id   BIGINT NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pending_log_entry (
    pending_entry_id  BIGSERIAL PRIMARY KEY,
    creditor_id       BIGINT NOT NULL,
    added_at          TIMESTAMPTZ NOT NULL,
    object_type       TEXT NOT NULL,
    object_uri        TEXT NOT NULL,
    object_update_id  BIGINT NOT NULL DEFAULT 0,
    object_update_seq BIGINT NOT NULL DEFAULT 0,
    deleted           BOOLEAN NOT NULL DEFAULT FALSE,
    data_principal    BIGINT,
    data_next_entry_id BIGINT,
    data_finalized_at TIMESTAMPTZ,
    data_error_code   TEXT
);

CREATE INDEX IF NOT EXISTS idx_pending_log_entry_creditor
    ON pending_log_entry (creditor_id, pending_entry_id);

CREATE TABLE IF NOT EXISTS log_entry (
    creditor_id       BIGINT NOT NULL,
    entry_id          BIGINT NOT NULL,
    previous_entry_id BIGINT NOT NULL,
    added_at          TIMESTAMPTZ NOT NULL,
    object_type       TEXT NOT NULL,
    object_uri        TEXT NOT NULL,
    object_update_id  BIGINT NOT NULL DEFAULT 0,
    object_update_seq BIGINT NOT NULL DEFAULT 0,
    deleted           BOOLEAN NOT NULL DEFAULT FALSE,
    data_principal    BIGINT,
    data_next_entry_id BIGINT,
    data_finalized_at TIMESTAMPTZ,
    data_error_code   TEXT,
    PRIMARY KEY (creditor_id, entry_id),
    CHECK (entry_id > 0),
    CHECK (previous_entry_id >= 0 AND previous_entry_id < entry_id)
);

CREATE TABLE IF NOT EXISTS running_transfer (
    creditor_id          BIGINT NOT NULL REFERENCES creditor(creditor_id),
    transfer_uuid        UUID NOT NULL,
    debtor_id            BIGINT NOT NULL,
    amount               BIGINT NOT NULL,
    recipient_id         TEXT NOT NULL,
    transfer_note        TEXT NOT NULL,
    transfer_note_format TEXT NOT NULL,
    initiated_at         TIMESTAMPTZ NOT NULL,
    finalized_at         TIMESTAMPTZ,
    error_code           TEXT,
    total_locked_amount  BIGINT,
    latest_update_id     BIGINT NOT NULL DEFAULT 1,
    latest_update_ts     TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (creditor_id, transfer_uuid),
    CHECK (amount >= 0)
);

CREATE SEQUENCE IF NOT EXISTS object_update_seq;
`
