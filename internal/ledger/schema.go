package ledger

// schema is applied idempotently at startup. Columns mirror the model
// structs; tenancy columns are NOT NULL everywhere so no row can exist
// outside a tenant.
const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id                TEXT PRIMARY KEY,
	tenant_id         TEXT NOT NULL,
	agent_type        TEXT NOT NULL,
	input_text        TEXT NOT NULL,
	input_fingerprint TEXT NOT NULL,
	decision_payload  TEXT NOT NULL DEFAULT '',
	confidence        INTEGER NOT NULL,
	source            TEXT NOT NULL,
	was_correct       INTEGER,
	corrected_to      TEXT,
	created_at        TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_tenant_agent
	ON decisions (tenant_id, agent_type);
CREATE INDEX IF NOT EXISTS idx_decisions_fingerprint
	ON decisions (tenant_id, agent_type, input_fingerprint);

CREATE TABLE IF NOT EXISTS corrections (
	id                 TEXT PRIMARY KEY,
	tenant_id          TEXT NOT NULL,
	decision_id        TEXT NOT NULL REFERENCES decisions(id),
	original_value     TEXT NOT NULL,
	corrected_value    TEXT NOT NULL,
	corrected_by       TEXT NOT NULL,
	reason             TEXT NOT NULL DEFAULT '',
	applied_to_pattern INTEGER NOT NULL DEFAULT 0,
	created_at         TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_corrections_pending
	ON corrections (tenant_id, corrected_value, applied_to_pattern);

CREATE TABLE IF NOT EXISTS patterns (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	tenant_id    TEXT NOT NULL,
	match_key    TEXT NOT NULL,
	target_value TEXT NOT NULL,
	match_count  INTEGER NOT NULL DEFAULT 0,
	confidence   REAL NOT NULL DEFAULT 0,
	source       TEXT NOT NULL,
	is_active    INTEGER NOT NULL DEFAULT 1,
	created_at   TIMESTAMP NOT NULL,
	updated_at   TIMESTAMP NOT NULL,
	UNIQUE (tenant_id, match_key)
);

CREATE TABLE IF NOT EXISTS bootstrap_state (
	key          TEXT PRIMARY KEY,
	seeded_at    TIMESTAMP NOT NULL,
	total_seeded INTEGER NOT NULL
);
`
