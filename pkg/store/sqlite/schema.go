package sqlite

// schema is applied in full on startup; every statement is idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS events (
	aggregate_id TEXT    NOT NULL,
	sequence     INTEGER NOT NULL,
	cid          TEXT    NOT NULL,
	data         BLOB    NOT NULL,
	created_at   INTEGER NOT NULL,
	PRIMARY KEY (aggregate_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_events_cid ON events (cid);

CREATE TABLE IF NOT EXISTS contents (
	cid  TEXT PRIMARY KEY,
	data BLOB NOT NULL
);

CREATE TABLE IF NOT EXISTS snapshots (
	aggregate_id TEXT PRIMARY KEY,
	version      INTEGER NOT NULL,
	head_cid     TEXT    NOT NULL,
	data         BLOB    NOT NULL,
	created_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS checkpoints (
	consumer     TEXT    NOT NULL,
	aggregate_id TEXT    NOT NULL,
	sequence     INTEGER NOT NULL,
	updated_at   INTEGER NOT NULL,
	PRIMARY KEY (consumer, aggregate_id)
);
`
