// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"wompbot/internal/model"
	"wompbot/internal/pkg/db"
)

// checkDockerAvailable checks if Docker is available and running
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	err := cmd.Run()
	return err == nil
}

// setupTestDB creates a PostgreSQL container and returns a migrated pool.
// Skips the test if Docker is not available
func setupTestDB(t *testing.T) (*pgxpool.Pool, func()) {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, db.Migrate(ctx, pool))
	// Running twice must be harmless.
	require.NoError(t, db.Migrate(ctx, pool))

	cleanup := func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	}

	return pool, cleanup
}

func sessionRow(channelID, state string) *model.SessionRow {
	return &model.SessionRow{
		SessionID: uuid.New(),
		ChannelID: channelID,
		GuildID:   "guild-1",
		OwnerID:   "owner-1",
		GameKind:  "trivia",
		State:     []byte(state),
	}
}

// ============================================================================
// SessionRepository Tests
// ============================================================================

func TestSessionRepository_UpsertAndList(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(pool)
	ctx := context.Background()

	row := sessionRow("chan-1", `{"index": 0}`)
	require.NoError(t, repo.Upsert(ctx, row))

	// Second upsert updates in place.
	row.State = []byte(`{"index": 1}`)
	require.NoError(t, repo.Upsert(ctx, row))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, row.SessionID, active[0].SessionID)
	assert.Equal(t, "chan-1", active[0].ChannelID)
	assert.JSONEq(t, `{"index": 1}`, string(active[0].State))
	assert.True(t, active[0].IsActive)
}

func TestSessionRepository_OneActiveRowPerChannel(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(pool)
	ctx := context.Background()

	old := sessionRow("chan-1", `{}`)
	require.NoError(t, repo.Upsert(ctx, old))

	fresh := sessionRow("chan-1", `{}`)
	require.NoError(t, repo.Upsert(ctx, fresh))

	other := sessionRow("chan-2", `{}`)
	require.NoError(t, repo.Upsert(ctx, other))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 2)

	got, err := repo.GetBySessionID(ctx, old.SessionID)
	require.NoError(t, err)
	assert.False(t, got.IsActive, "superseded row is kept but inactive")
}

func TestSessionRepository_Deactivate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewSessionRepository(pool)
	ctx := context.Background()

	row := sessionRow("chan-1", `{"status": "active"}`)
	require.NoError(t, repo.Upsert(ctx, row))
	require.NoError(t, repo.Deactivate(ctx, row.SessionID, []byte(`{"status": "ended"}`)))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	got, err := repo.GetBySessionID(ctx, row.SessionID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.JSONEq(t, `{"status": "ended"}`, string(got.State))

	// A late upsert must not bring the row back.
	row.State = []byte(`{"status": "active"}`)
	require.NoError(t, repo.Upsert(ctx, row))
	got, err = repo.GetBySessionID(ctx, row.SessionID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	// Deactivating an unknown session is a no-op.
	assert.NoError(t, repo.Deactivate(ctx, uuid.New(), nil))

	_, err = repo.GetBySessionID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// ============================================================================
// ResultRepository Tests
// ============================================================================

func results(sessionID uuid.UUID, guildID string, scores map[string]int64) []model.GameResult {
	out := make([]model.GameResult, 0, len(scores))
	for user, score := range scores {
		out = append(out, model.GameResult{
			SessionID:   sessionID,
			ChannelID:   "chan-1",
			GuildID:     guildID,
			UserID:      user,
			DisplayName: user,
			GameKind:    "trivia",
			Score:       score,
			Correct:     int(score / 100),
		})
	}
	return out
}

func withPlacement(rs []model.GameResult, winner string) []model.GameResult {
	for i := range rs {
		if rs[i].UserID == winner {
			rs[i].Placement = 1
		} else {
			rs[i].Placement = 2
		}
	}
	return rs
}

func TestResultRepository_TopPlayersAndStats(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	repo := NewResultRepository(pool)
	ctx := context.Background()

	game1 := uuid.New()
	require.NoError(t, repo.RecordResults(ctx, withPlacement(results(game1, "g1", map[string]int64{"alice": 300, "bob": 100}), "alice")))
	// Recording the same game again changes nothing.
	require.NoError(t, repo.RecordResults(ctx, withPlacement(results(game1, "g1", map[string]int64{"alice": 300, "bob": 100}), "alice")))

	game2 := uuid.New()
	require.NoError(t, repo.RecordResults(ctx, withPlacement(results(game2, "g1", map[string]int64{"bob": 500}), "bob")))

	game3 := uuid.New()
	require.NoError(t, repo.RecordResults(ctx, withPlacement(results(game3, "g2", map[string]int64{"carol": 900}), "carol")))

	top, err := repo.TopPlayers(ctx, "g1", time.Time{}, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "bob", top[0].UserID)
	assert.Equal(t, int64(600), top[0].TotalScore)
	assert.Equal(t, 2, top[0].Games)
	assert.Equal(t, 1, top[0].Wins)
	assert.Equal(t, "alice", top[1].UserID)
	assert.Equal(t, int64(300), top[1].TotalScore)

	all, err := repo.TopPlayers(ctx, "", time.Time{}, 1)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "carol", all[0].UserID)

	future, err := repo.TopPlayers(ctx, "g1", time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, future)

	stats, err := repo.PlayerStats(ctx, "g1", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(300), stats.TotalScore)
	assert.Equal(t, int64(300), stats.BestScore)
	assert.Equal(t, 2, stats.Rank)
	assert.Equal(t, 1, stats.Wins)

	_, err = repo.PlayerStats(ctx, "g1", "carol")
	assert.ErrorIs(t, err, ErrNoResults)

	assert.NoError(t, repo.RecordResults(ctx, nil))
}
