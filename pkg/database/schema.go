package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaStatements create the tables this service owns. Timestamps are epoch
// millis throughout, matching the upstream protocol's time field.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS players (
		id TEXT PRIMARY KEY,
		nickname TEXT NOT NULL DEFAULT '',
		added_at BIGINT NOT NULL DEFAULT 0,
		last_redeemed_at BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS codes (
		code TEXT PRIMARY KEY,
		note TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		added_at BIGINT NOT NULL DEFAULT 0,
		last_tried_at BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS player_codes (
		player_id TEXT REFERENCES players(id) ON DELETE CASCADE,
		code TEXT REFERENCES codes(code) ON DELETE CASCADE,
		redeemed_at BIGINT,
		blocked_reason TEXT,
		PRIMARY KEY (player_id, code)
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		started_at BIGINT NOT NULL,
		finished_at BIGINT,
		total_tasks INTEGER NOT NULL DEFAULT 0,
		done INTEGER NOT NULL DEFAULT 0,
		successes INTEGER NOT NULL DEFAULT 0,
		failures INTEGER NOT NULL DEFAULT 0,
		last_event TEXT NOT NULL DEFAULT '',
		only_code TEXT NOT NULL DEFAULT '',
		only_player TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE TABLE IF NOT EXISTS history (
		id BIGSERIAL PRIMARY KEY,
		ts BIGINT NOT NULL,
		player_id TEXT NOT NULL,
		code TEXT NOT NULL,
		status TEXT NOT NULL,
		message TEXT NOT NULL DEFAULT '',
		raw JSONB
	)`,
	`CREATE INDEX IF NOT EXISTS idx_history_ts ON history (ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_history_player ON history (player_id, ts DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_started_at ON jobs (started_at DESC)`,
}

// EnsureSchema creates the service's tables and indexes if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
