package store

import (
	"database/sql"
	"fmt"
)

const (
	tableLLMEvents = "llm_request_events"
	tableReports   = "reports"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS llm_request_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		sequence INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		purpose TEXT NOT NULL DEFAULT '',
		batch TEXT NOT NULL DEFAULT '',
		attempt INTEGER NOT NULL DEFAULT 1,
		input_tokens INTEGER NOT NULL DEFAULT 0,
		output_tokens INTEGER NOT NULL DEFAULT 0,
		latency_ms INTEGER NOT NULL DEFAULT 0,
		success INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		request_body TEXT NOT NULL DEFAULT '',
		response_body TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_sequence ON llm_request_events (sequence)`,
	`CREATE INDEX IF NOT EXISTS llm_request_events_purpose ON llm_request_events (purpose)`,
	`CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		sequence INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		format_version TEXT NOT NULL,
		provider TEXT NOT NULL DEFAULT '',
		model TEXT NOT NULL DEFAULT '',
		student_count INTEGER NOT NULL DEFAULT 0,
		inactive_count INTEGER NOT NULL DEFAULT 0,
		match_rate INTEGER NOT NULL DEFAULT 0,
		validation_rate INTEGER NOT NULL DEFAULT 0,
		payload BLOB NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS reports_sequence ON reports (sequence)`,
}

// migrate creates the tables. The statements are idempotent.
func migrate(db *sql.DB) error {
	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
