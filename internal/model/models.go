// Package model defines the database rows used by the repositories.
package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionRow mirrors one game session. State holds the JSON snapshot.
type SessionRow struct {
	ID        int64     `db:"id"`
	SessionID uuid.UUID `db:"session_id"`
	ChannelID string    `db:"channel_id"`
	GuildID   string    `db:"guild_id"`
	OwnerID   string    `db:"owner_id"`
	GameKind  string    `db:"game_kind"`
	State     []byte    `db:"state"`
	IsActive  bool      `db:"is_active"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// GameResult is one participant's final line for a finished session.
type GameResult struct {
	ID          int64     `db:"id"`
	SessionID   uuid.UUID `db:"session_id"`
	ChannelID   string    `db:"channel_id"`
	GuildID     string    `db:"guild_id"`
	UserID      string    `db:"user_id"`
	DisplayName string    `db:"display_name"`
	GameKind    string    `db:"game_kind"`
	Score       int64     `db:"score"`
	Correct     int       `db:"correct"`
	Placement   int       `db:"placement"`
	CreatedAt   time.Time `db:"created_at"`
}

// PlayerRank is a leaderboard line aggregated over game_results.
type PlayerRank struct {
	UserID      string `db:"user_id" json:"user_id"`
	DisplayName string `db:"display_name" json:"display_name"`
	TotalScore  int64  `db:"total_score" json:"total_score"`
	Games       int    `db:"games" json:"games"`
	Correct     int    `db:"correct" json:"correct"`
	Wins        int    `db:"wins" json:"wins"`
}

// PlayerStats is one player's lifetime numbers within a guild.
type PlayerStats struct {
	PlayerRank
	BestScore int64 `db:"best_score" json:"best_score"`
	Rank      int   `db:"rank" json:"rank"`
}
