package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"wompbot/internal/model"
)

// ResultRepository stores final per-player results and aggregates them into
// leaderboards.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository instance.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// RecordResults inserts all results of one session in a single batch.
// Recording the same session twice keeps the first write.
func (r *ResultRepository) RecordResults(ctx context.Context, results []model.GameResult) error {
	if len(results) == 0 {
		return nil
	}

	const query = `
		INSERT INTO game_results (session_id, channel_id, guild_id, user_id, display_name, game_kind, score, correct, placement, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (session_id, user_id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, res := range results {
		batch.Queue(query,
			res.SessionID,
			res.ChannelID,
			res.GuildID,
			res.UserID,
			res.DisplayName,
			res.GameKind,
			res.Score,
			res.Correct,
			res.Placement,
		)
	}

	if err := r.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to record results: %w", err)
	}
	return nil
}

// TopPlayers ranks players by total score in a guild since the given time.
// An empty guildID covers all guilds; a zero since covers all time.
func (r *ResultRepository) TopPlayers(ctx context.Context, guildID string, since time.Time, limit int) ([]*model.PlayerRank, error) {
	const query = `
		SELECT user_id,
			(ARRAY_AGG(display_name ORDER BY created_at DESC))[1] AS display_name,
			COALESCE(SUM(score), 0)::BIGINT AS total_score,
			COUNT(*) AS games,
			COALESCE(SUM(correct), 0) AS correct,
			COUNT(*) FILTER (WHERE placement = 1 AND score > 0) AS wins
		FROM game_results
		WHERE ($1::text = '' OR guild_id = $1)
		  AND created_at >= $2
		GROUP BY user_id
		ORDER BY total_score DESC, wins DESC, user_id
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, guildID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top players: %w", err)
	}
	defer rows.Close()

	var out []*model.PlayerRank
	for rows.Next() {
		var p model.PlayerRank
		if err := rows.Scan(
			&p.UserID,
			&p.DisplayName,
			&p.TotalScore,
			&p.Games,
			&p.Correct,
			&p.Wins,
		); err != nil {
			return nil, fmt.Errorf("failed to scan player rank: %w", err)
		}
		out = append(out, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating player ranks: %w", err)
	}
	return out, nil
}

// PlayerStats returns one player's totals and leaderboard position.
// Returns ErrNoResults if the player never finished a game in the guild.
func (r *ResultRepository) PlayerStats(ctx context.Context, guildID, userID string) (*model.PlayerStats, error) {
	const query = `
		WITH totals AS (
			SELECT user_id,
				(ARRAY_AGG(display_name ORDER BY created_at DESC))[1] AS display_name,
				SUM(score)::BIGINT AS total_score,
				COUNT(*) AS games,
				SUM(correct) AS correct,
				COUNT(*) FILTER (WHERE placement = 1 AND score > 0) AS wins,
				MAX(score) AS best_score
			FROM game_results
			WHERE ($1::text = '' OR guild_id = $1)
			GROUP BY user_id
		), ranked AS (
			SELECT *, RANK() OVER (ORDER BY total_score DESC) AS rank
			FROM totals
		)
		SELECT user_id, display_name, total_score, games, correct, wins, best_score, rank
		FROM ranked
		WHERE user_id = $2
	`

	var s model.PlayerStats
	err := r.pool.QueryRow(ctx, query, guildID, userID).Scan(
		&s.UserID,
		&s.DisplayName,
		&s.TotalScore,
		&s.Games,
		&s.Correct,
		&s.Wins,
		&s.BestScore,
		&s.Rank,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoResults
		}
		return nil, fmt.Errorf("failed to get player stats: %w", err)
	}
	return &s, nil
}
