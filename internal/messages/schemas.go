package messages

const committedTransferSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": [
    "debtor_id", "creditor_id", "creation_date", "transfer_number",
    "previous_transfer_number", "coordinator_type", "sender", "recipient",
    "acquired_amount", "principal", "transfer_note", "transfer_note_format",
    "committed_at", "ts", "ttl"
  ],
  "properties": {
    "debtor_id": {"type": "integer"},
    "creditor_id": {"type": "integer"},
    "creation_date": {"type": "string", "format": "date"},
    "transfer_number": {"type": "integer", "minimum": 1},
    "previous_transfer_number": {"type": "integer", "minimum": 0},
    "coordinator_type": {"type": "string", "minLength": 1, "maxLength": 30, "pattern": "^[0-9A-Za-z_-]+$"},
    "sender": {"type": "string", "maxLength": 100},
    "recipient": {"type": "string", "maxLength": 100},
    "acquired_amount": {"type": "integer", "not": {"const": 0}},
    "principal": {"type": "integer"},
    "transfer_note": {"type": "string"},
    "transfer_note_format": {"type": "string", "pattern": "^[0-9A-Za-z.-]{0,8}$"},
    "committed_at": {"type": "string", "format": "date-time"},
    "ts": {"type": "string", "format": "date-time"},
    "ttl": {"type": "integer", "minimum": 0}
  }
}`

const accountUpdateSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": [
    "debtor_id", "creditor_id", "creation_date", "last_change_ts",
    "last_change_seqnum", "principal", "interest", "interest_rate",
    "account_identity", "status_flags", "config_effectual",
    "last_transfer_number", "last_transfer_committed_at", "ts", "ttl"
  ],
  "properties": {
    "debtor_id": {"type": "integer"},
    "creditor_id": {"type": "integer"},
    "creation_date": {"type": "string", "format": "date"},
    "last_change_ts": {"type": "string", "format": "date-time"},
    "last_change_seqnum": {"type": "integer"},
    "principal": {"type": "integer"},
    "interest": {"type": "number"},
    "interest_rate": {"type": "number"},
    "account_identity": {"type": "string", "maxLength": 100},
    "status_flags": {"type": "integer", "minimum": 0},
    "config_effectual": {"type": "boolean"},
    "last_transfer_number": {"type": "integer", "minimum": 0},
    "last_transfer_committed_at": {"type": "string", "format": "date-time"},
    "ts": {"type": "string", "format": "date-time"},
    "ttl": {"type": "integer", "minimum": 0}
  }
}`

const accountPurgeSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["debtor_id", "creditor_id", "creation_date"],
  "properties": {
    "debtor_id": {"type": "integer"},
    "creditor_id": {"type": "integer"},
    "creation_date": {"type": "string", "format": "date"}
  }
}`
