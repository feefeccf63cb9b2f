package service

import (
	"context"
	"time"

	"wompbot/internal/model"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 50
)

// ResultReader is the read side of the result repository.
type ResultReader interface {
	TopPlayers(ctx context.Context, guildID string, since time.Time, limit int) ([]*model.PlayerRank, error)
	PlayerStats(ctx context.Context, guildID, userID string) (*model.PlayerStats, error)
}

// LeaderboardService handles ranking and leaderboard operations.
type LeaderboardService struct {
	results  ResultReader
	timezone *time.Location
	now      func() time.Time
}

// NewLeaderboardService creates a new LeaderboardService instance.
func NewLeaderboardService(results ResultReader, timezone *time.Location) *LeaderboardService {
	if timezone == nil {
		timezone = time.UTC
	}
	return &LeaderboardService{
		results:  results,
		timezone: timezone,
		now:      time.Now,
	}
}

// Top returns the all-time best players of a guild.
func (s *LeaderboardService) Top(ctx context.Context, guildID string, limit int) ([]*model.PlayerRank, error) {
	return s.results.TopPlayers(ctx, guildID, time.Time{}, clampLimit(limit))
}

// TopToday returns today's best players, with the day boundary taken in the
// service's timezone.
func (s *LeaderboardService) TopToday(ctx context.Context, guildID string, limit int) ([]*model.PlayerRank, error) {
	return s.results.TopPlayers(ctx, guildID, startOfDay(s.now(), s.timezone), clampLimit(limit))
}

// Stats returns one player's totals.
func (s *LeaderboardService) Stats(ctx context.Context, guildID, userID string) (*model.PlayerStats, error) {
	return s.results.PlayerStats(ctx, guildID, userID)
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return defaultLeaderboardLimit
	case limit > maxLeaderboardLimit:
		return maxLeaderboardLimit
	}
	return limit
}

func startOfDay(t time.Time, tz *time.Location) time.Time {
	local := t.In(tz)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, tz)
}
