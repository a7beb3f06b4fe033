package store

import "context"

// schemaVersion is the current additive migration level: migrations only
// ever append columns with safe defaults, never remove or rename.
const schemaVersion = 1

// schema is written to read identically against SQLite and Postgres: every
// column is TEXT/INTEGER, ciphertext is hex-encoded TEXT rather than a
// driver-specific BLOB/BYTEA type.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS intents (
		intent_id TEXT PRIMARY KEY,
		objective TEXT NOT NULL,
		scope_json TEXT NOT NULL,
		constraints_json TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		approved_by_user INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		event_id TEXT PRIMARY KEY,
		decision_id TEXT NOT NULL UNIQUE,
		action_id TEXT NOT NULL,
		intent_id TEXT NOT NULL DEFAULT '',
		agent_id TEXT NOT NULL DEFAULT '',
		tenant_id TEXT NOT NULL DEFAULT '',
		tool TEXT NOT NULL,
		op TEXT NOT NULL,
		params_json TEXT NOT NULL,
		verdict TEXT NOT NULL,
		reason_code TEXT NOT NULL,
		explanation TEXT NOT NULL,
		policy_version TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_tenant_created ON audit_events(tenant_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_agent_created ON audit_events(agent_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_audit_events_verdict ON audit_events(verdict)`,
	`CREATE TABLE IF NOT EXISTS credentials (
		credential_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL DEFAULT '',
		tool_name TEXT NOT NULL,
		credential_type TEXT NOT NULL,
		ciphertext_hex TEXT NOT NULL,
		nonce_hex TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (credential_id, tenant_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tenants (
		tenant_id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		plan TEXT NOT NULL DEFAULT 'free',
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		user_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		email TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS api_keys (
		key_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		key_hash TEXT NOT NULL UNIQUE,
		label TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		revoked_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS channel_tokens (
		token_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		token_hash TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL,
		expires_at TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS channel_bindings (
		binding_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		external_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_bindings_channel_external ON channel_bindings(channel, external_id)`,
	`CREATE TABLE IF NOT EXISTS connect_codes (
		code TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		channel TEXT NOT NULL,
		expires_at TEXT NOT NULL,
		consumed_at TEXT,
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS rate_limit_counters (
		bucket_table TEXT NOT NULL,
		subject TEXT NOT NULL,
		window_start TEXT NOT NULL,
		count INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (bucket_table, subject, window_start)
	)`,
	`CREATE TABLE IF NOT EXISTS active_policy_preset (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		preset_name TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS memory_items (
		memory_id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_memory_items_tenant_key ON memory_items(tenant_id, key)`,
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}

	row := s.db.QueryRowContext(ctx, `SELECT version FROM schema_version LIMIT 1`)
	var version int
	if err := row.Scan(&version); err != nil {
		if _, err := s.db.ExecContext(ctx, `INSERT INTO schema_version (version) VALUES (`+s.ph(1)+`)`, schemaVersion); err != nil {
			return err
		}
	}
	return nil
}
