package store

// schemaSQLite mirrors the Postgres DDL with SQLite types. The pending log
// staging order comes from the AUTOINCREMENT rowid, and the object-update
// sequence is a one-row counter table.
const schemaSQLite = `
CREATE TABLE IF NOT EXISTS creditor (
    creditor_id                     INTEGER PRIMARY KEY,
    created_at                      TIMESTAMP NOT NULL,
    last_log_entry_id               INTEGER NOT NULL DEFAULT 0,
    ledger_entry_high_water         INTEGER NOT NULL DEFAULT 0,
    latest_update_id                INTEGER NOT NULL DEFAULT 1,
    latest_update_ts                TIMESTAMP NOT NULL,
    accounts_list_latest_update_id  INTEGER NOT NULL DEFAULT 1,
    accounts_list_latest_update_ts  TIMESTAMP NOT NULL,
    transfers_list_latest_update_id INTEGER NOT NULL DEFAULT 1,
    transfers_list_latest_update_ts TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS account (
    creditor_id      INTEGER NOT NULL REFERENCES creditor(creditor_id),
    debtor_id        INTEGER NOT NULL,
    created_at       TIMESTAMP NOT NULL,
    latest_update_id INTEGER NOT NULL DEFAULT 1,
    latest_update_ts TIMESTAMP NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id)
);

CREATE TABLE IF NOT EXISTS account_data (
    creditor_id                       INTEGER NOT NULL,
    debtor_id                         INTEGER NOT NULL,
    creation_date                     DATE NOT NULL,
    last_change_ts                    TIMESTAMP NOT NULL,
    last_change_seqnum                INTEGER NOT NULL,
    principal                         INTEGER NOT NULL,
    interest                          REAL NOT NULL,
    interest_rate                     REAL NOT NULL,
    last_transfer_number              INTEGER NOT NULL,
    last_transfer_committed_at        TIMESTAMP NOT NULL,
    last_heartbeat_ts                 TIMESTAMP NOT NULL,
    has_server_account                BOOLEAN NOT NULL,
    account_identity                  TEXT NOT NULL,
    status_flags                      INTEGER NOT NULL,
    scheduled_for_deletion            BOOLEAN NOT NULL,
    allow_unsafe_deletion             BOOLEAN NOT NULL,
    config_effectual                  BOOLEAN NOT NULL,
    config_error                      TEXT NOT NULL DEFAULT '',
    config_latest_update_id           INTEGER NOT NULL DEFAULT 1,
    config_latest_update_ts           TIMESTAMP NOT NULL,
    info_latest_update_id             INTEGER NOT NULL DEFAULT 1,
    info_latest_update_ts             TIMESTAMP NOT NULL,
    ledger_principal                  INTEGER NOT NULL,
    ledger_last_entry_id              INTEGER NOT NULL,
    ledger_last_transfer_number       INTEGER NOT NULL,
    ledger_last_transfer_committed_at TIMESTAMP NOT NULL,
    ledger_pending_transfer_ts        TIMESTAMP,
    ledger_latest_update_id           INTEGER NOT NULL DEFAULT 1,
    ledger_latest_update_ts           TIMESTAMP NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS account_display (
    creditor_id       INTEGER NOT NULL,
    debtor_id         INTEGER NOT NULL,
    debtor_name       TEXT,
    amount_divisor    REAL NOT NULL DEFAULT 1.0,
    decimal_places    INTEGER NOT NULL DEFAULT 0,
    unit              TEXT,
    known_debtor      BOOLEAN NOT NULL DEFAULT FALSE,
    latest_update_id  INTEGER NOT NULL DEFAULT 1,
    latest_update_ts  TIMESTAMP NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS account_exchange (
    creditor_id       INTEGER NOT NULL,
    debtor_id         INTEGER NOT NULL,
    policy            TEXT,
    min_principal     INTEGER NOT NULL,
    max_principal     INTEGER NOT NULL,
    peg_exchange_rate REAL,
    peg_debtor_id     INTEGER,
    latest_update_id  INTEGER NOT NULL DEFAULT 1,
    latest_update_ts  TIMESTAMP NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_account_exchange_peg
    ON account_exchange (creditor_id, peg_debtor_id)
    WHERE peg_debtor_id IS NOT NULL;

CREATE TABLE IF NOT EXISTS account_knowledge (
    creditor_id      INTEGER NOT NULL,
    debtor_id        INTEGER NOT NULL,
    data             TEXT NOT NULL DEFAULT '{}',
    latest_update_id INTEGER NOT NULL DEFAULT 1,
    latest_update_ts TIMESTAMP NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS committed_transfer (
    creditor_id              INTEGER NOT NULL,
    debtor_id                INTEGER NOT NULL,
    creation_date            DATE NOT NULL,
    transfer_number          INTEGER NOT NULL,
    coordinator_type         TEXT NOT NULL,
    sender_id                TEXT NOT NULL,
    recipient_id             TEXT NOT NULL,
    acquired_amount          INTEGER NOT NULL,
    transfer_note            TEXT NOT NULL,
    transfer_note_format     TEXT NOT NULL,
    committed_at             TIMESTAMP NOT NULL,
    principal                INTEGER NOT NULL,
    previous_transfer_number INTEGER NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id, creation_date, transfer_number),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS ledger_entry (
    creditor_id     INTEGER NOT NULL,
    debtor_id       INTEGER NOT NULL,
    entry_id        INTEGER NOT NULL,
    creation_date   DATE,
    transfer_number INTEGER,
    acquired_amount INTEGER NOT NULL,
    principal       INTEGER NOT NULL,
    added_at        TIMESTAMP NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id, entry_id)
);

CREATE TABLE IF NOT EXISTS pending_ledger_update (
    creditor_id INTEGER NOT NULL,
    debtor_id   INTEGER NOT NULL,
    PRIMARY KEY (creditor_id, debtor_id),
    FOREIGN KEY (creditor_id, debtor_id) REFERENCES account(creditor_id, debtor_id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS pending_log_entry (
    pending_entry_id  INTEGER PRIMARY KEY AUTOINCREMENT,
    creditor_id       INTEGER NOT NULL,
    added_at          TIMESTAMP NOT NULL,
    object_type       TEXT NOT NULL,
    object_uri        TEXT NOT NULL,
    object_update_id  INTEGER NOT NULL DEFAULT 0,
    object_update_seq INTEGER NOT NULL DEFAULT 0,
    deleted           BOOLEAN NOT NULL DEFAULT FALSE,
    data_principal    INTEGER,
    data_next_entry_id INTEGER,
    data_finalized_at TIMESTAMP,
    data_error_code   TEXT
);

CREATE INDEX IF NOT EXISTS idx_pending_log_entry_creditor
    ON pending_log_entry (creditor_id, pending_entry_id);

CREATE TABLE IF NOT EXISTS log_entry (
    creditor_id       INTEGER NOT NULL,
    entry_id          INTEGER NOT NULL,
    previous_entry_id INTEGER NOT NULL,
    added_at          TIMESTAMP NOT NULL,
    object_type       TEXT NOT NULL,
    object_uri        TEXT NOT NULL,
    object_update_id  INTEGER NOT NULL DEFAULT 0,
    object_update_seq INTEGER NOT NULL DEFAULT 0,
    deleted           BOOLEAN NOT NULL DEFAULT FALSE,
    data_principal    INTEGER,
    data_next_entry_id INTEGER,
    data_finalized_at TIMESTAMP,
    data_error_code   TEXT,
    PRIMARY KEY (creditor_id, entry_id)
);

CREATE TABLE IF NOT EXISTS running_transfer (
    creditor_id          INTEGER NOT NULL REFERENCES creditor(creditor_id),
    transfer_uuid        TEXT NOT NULL,
    debtor_id            INTEGER NOT NULL,
    amount               INTEGER NOT NULL,
    recipient_id         TEXT NOT NULL,
    transfer_note        TEXT NOT NULL,
    transfer_note_format TEXT NOT NULL,
    initiated_at         TIMESTAMP NOT NULL,
    finalized_at         TIMESTAMP,
    error_code           TEXT,
    total_locked_amount  INTEGER,
    latest_update_id     INTEGER NOT NULL DEFAULT 1,
    latest_update_ts     TIMESTAMP NOT NULL,
    PRIMARY KEY (creditor_id, transfer_uuid)
);

CREATE TABLE IF NOT EXISTS object_update_seq (
    id  INTEGER PRIMARY KEY CHECK (id = 1),
    seq INTEGER NOT NULL
);

INSERT OR IGNORE INTO object_update_seq (id, seq) VALUES (1, 0);
`
