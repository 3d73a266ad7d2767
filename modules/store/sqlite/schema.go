package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

const schemaVersion = 1

// schemaStatements are executed in order to create the database schema.
// All use IF NOT EXISTS for idempotent re-application.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		id              TEXT    NOT NULL,
		conversation_id TEXT    NOT NULL,
		seq             INTEGER NOT NULL,
		role            TEXT    NOT NULL,
		content         TEXT    NOT NULL DEFAULT '',
		created_at      TEXT    NOT NULL,
		PRIMARY KEY (conversation_id, seq)
	)`,

	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq)`,

	`CREATE TABLE IF NOT EXISTS boards (
		conversation_id   TEXT PRIMARY KEY,
		summary           TEXT NOT NULL DEFAULT '',
		important_facts   TEXT NOT NULL DEFAULT '[]',
		action_items      TEXT NOT NULL DEFAULT '[]',
		pending_questions TEXT NOT NULL DEFAULT '[]',
		context_notes     TEXT NOT NULL DEFAULT '',
		message_count     INTEGER NOT NULL DEFAULT 0,
		last_updated      TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS chunks (
		id              TEXT PRIMARY KEY,
		conversation_id TEXT NOT NULL,
		text            TEXT NOT NULL,
		embedding       BLOB NOT NULL,
		created_at      TEXT NOT NULL,
		expires_at      TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_chunks_conversation ON chunks(conversation_id, expires_at)`,

	`CREATE INDEX IF NOT EXISTS idx_chunks_expiry ON chunks(expires_at)`,

	`CREATE TABLE IF NOT EXISTS archive (
		id               TEXT PRIMARY KEY,
		conversation_id  TEXT NOT NULL,
		summary_snapshot TEXT NOT NULL,
		embedding        BLOB NOT NULL,
		covered_from     TEXT NOT NULL,
		covered_to       TEXT NOT NULL,
		created_at       TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_archive_covered ON archive(covered_from, covered_to)`,

	`CREATE INDEX IF NOT EXISTS idx_archive_created ON archive(created_at)`,
}

// migrate creates or updates the database schema to the latest version.
// All DDL uses IF NOT EXISTS, making migration idempotent.
func migrate(db *sql.DB) error {
	ctx := context.Background()

	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("sqlite: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("sqlite: read schema version: %w", err)
	}

	if current >= schemaVersion {
		return nil
	}

	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w\nstatement: %s", err, stmt)
		}
	}

	if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("sqlite: record schema version: %w", err)
	}

	return nil
}
