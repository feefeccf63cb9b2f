package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "game_sessions table",
		sql: `
		CREATE TABLE IF NOT EXISTS game_sessions (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL UNIQUE,
			channel_id VARCHAR(64) NOT NULL,
			guild_id VARCHAR(64) NOT NULL DEFAULT '',
			owner_id VARCHAR(64) NOT NULL DEFAULT '',
			game_kind VARCHAR(32) NOT NULL,
			state JSONB NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_game_sessions_active_channel
			ON game_sessions(channel_id) WHERE is_active;
		CREATE INDEX IF NOT EXISTS idx_game_sessions_channel_time
			ON game_sessions(channel_id, created_at DESC);
		`,
	},
	{
		name: "game_results table",
		sql: `
		CREATE TABLE IF NOT EXISTS game_results (
			id BIGSERIAL PRIMARY KEY,
			session_id UUID NOT NULL,
			channel_id VARCHAR(64) NOT NULL,
			guild_id VARCHAR(64) NOT NULL DEFAULT '',
			user_id VARCHAR(64) NOT NULL,
			display_name VARCHAR(255) NOT NULL,
			game_kind VARCHAR(32) NOT NULL,
			score BIGINT NOT NULL,
			correct INT NOT NULL DEFAULT 0,
			placement INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (session_id, user_id)
		);
		CREATE INDEX IF NOT EXISTS idx_game_results_guild_user
			ON game_results(guild_id, user_id);
		CREATE INDEX IF NOT EXISTS idx_game_results_guild_time
			ON game_results(guild_id, created_at DESC);
		`,
	},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Info().Msg("Running database migrations...")

	for i, m := range migrations {
		if _, err := pool.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}

	log.Info().Msg("All migrations completed successfully")
	return nil
}
