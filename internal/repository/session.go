// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wompbot/internal/model"
)

// Common errors for repository operations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrNoResults       = errors.New("no game results")
)

// SessionRepository stores session snapshots in game_sessions.
type SessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository creates a new SessionRepository instance.
func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

// Upsert writes the latest snapshot of a session. Any other active row for
// the same channel is deactivated first so that at most one row per channel
// is active. A row that was already deactivated stays inactive.
func (r *SessionRepository) Upsert(ctx context.Context, row *model.SessionRow) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const deactivateStale = `
		UPDATE game_sessions
		SET is_active = FALSE, updated_at = NOW()
		WHERE channel_id = $1 AND is_active AND session_id <> $2
	`
	if _, err := tx.Exec(ctx, deactivateStale, row.ChannelID, row.SessionID); err != nil {
		return fmt.Errorf("failed to deactivate stale sessions: %w", err)
	}

	const upsert = `
		INSERT INTO game_sessions (session_id, channel_id, guild_id, owner_id, game_kind, state, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW())
		ON CONFLICT (session_id) DO UPDATE
		SET state = EXCLUDED.state, updated_at = NOW()
		WHERE game_sessions.is_active
	`
	if _, err := tx.Exec(ctx, upsert,
		row.SessionID,
		row.ChannelID,
		row.GuildID,
		row.OwnerID,
		row.GameKind,
		row.State,
	); err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session upsert: %w", err)
	}
	return nil
}

// Deactivate marks a session inactive and stores its final state. A nil
// state keeps the last snapshot.
func (r *SessionRepository) Deactivate(ctx context.Context, sessionID uuid.UUID, state []byte) error {
	const query = `
		UPDATE game_sessions
		SET is_active = FALSE, state = COALESCE($2, state), updated_at = NOW()
		WHERE session_id = $1
	`
	if _, err := r.pool.Exec(ctx, query, sessionID, state); err != nil {
		return fmt.Errorf("failed to deactivate session: %w", err)
	}
	return nil
}

// ListActive returns every active row, oldest first.
func (r *SessionRepository) ListActive(ctx context.Context) ([]*model.SessionRow, error) {
	const query = `
		SELECT id, session_id, channel_id, guild_id, owner_id, game_kind, state, is_active, created_at, updated_at
		FROM game_sessions
		WHERE is_active
		ORDER BY created_at
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	defer rows.Close()

	var out []*model.SessionRow
	for rows.Next() {
		row, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}
	return out, nil
}

// GetBySessionID retrieves a row by its session UUID.
func (r *SessionRepository) GetBySessionID(ctx context.Context, sessionID uuid.UUID) (*model.SessionRow, error) {
	const query = `
		SELECT id, session_id, channel_id, guild_id, owner_id, game_kind, state, is_active, created_at, updated_at
		FROM game_sessions
		WHERE session_id = $1
	`

	row, err := scanSession(r.pool.QueryRow(ctx, query, sessionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return row, nil
}

func scanSession(row pgx.Row) (*model.SessionRow, error) {
	var s model.SessionRow
	err := row.Scan(
		&s.ID,
		&s.SessionID,
		&s.ChannelID,
		&s.GuildID,
		&s.OwnerID,
		&s.GameKind,
		&s.State,
		&s.IsActive,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}
	return &s, nil
}
