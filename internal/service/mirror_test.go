package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wompbot/internal/events"
	"wompbot/internal/game/questions"
	"wompbot/internal/game/session"
	"wompbot/internal/model"
)

// fakeSessionStore records writes in order. gate, when set, blocks every
// write until it is closed.
type fakeSessionStore struct {
	mu     sync.Mutex
	log    []string
	rows   map[uuid.UUID]*model.SessionRow
	failOn string
	gate   chan struct{}
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{rows: make(map[uuid.UUID]*model.SessionRow)}
}

func (f *fakeSessionStore) Upsert(_ context.Context, row *model.SessionRow) error {
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "upsert:"+string(row.State))
	if f.failOn == "upsert" {
		return errors.New("connection refused")
	}
	if cur, ok := f.rows[row.SessionID]; ok && !cur.IsActive {
		return nil
	}
	cp := *row
	cp.IsActive = true
	f.rows[row.SessionID] = &cp
	return nil
}

func (f *fakeSessionStore) Deactivate(_ context.Context, id uuid.UUID, state []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.log = append(f.log, "deactivate")
	if row, ok := f.rows[id]; ok {
		row.IsActive = false
		if state != nil {
			row.State = state
		}
	}
	return nil
}

func (f *fakeSessionStore) ListActive(context.Context) ([]*model.SessionRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.SessionRow
	for _, row := range f.rows {
		if row.IsActive {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeSessionStore) entries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.log...)
}

type fakeResultStore struct {
	mu      sync.Mutex
	results []model.GameResult
}

func (f *fakeResultStore) RecordResults(_ context.Context, rs []model.GameResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, rs...)
	return nil
}

func snapshot(id uuid.UUID, index int) session.Snapshot {
	return session.Snapshot{
		ID:        id,
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Kind:      "trivia",
		Items: []session.Item{
			{Question: questions.Question{Prompt: "q1", Answer: "a1", Value: 100}},
			{Question: questions.Question{Prompt: "q2", Answer: "a2", Value: 100}},
		},
		Index:        index,
		Participants: map[string]*session.Participant{},
		Status:       session.StatusActive,
		Phase:        session.PhaseQuestionAsked,
	}
}

func closeMirror(t *testing.T, m *Mirror) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, m.Close(ctx))
}

func TestMirror_SaveThenFinishKeepsOrder(t *testing.T) {
	sessions := newFakeSessionStore()
	results := &fakeResultStore{}
	m := NewMirror(sessions, results, 16, time.Second)

	id := uuid.New()
	m.Save(snapshot(id, 0))

	final := session.FinalState{
		Snapshot: snapshot(id, 1),
		Standings: []events.Standing{
			{UserID: "alice", DisplayName: "Alice", Score: 300, Correct: 2},
			{UserID: "bob", DisplayName: "Bob", Score: 100, Correct: 1},
		},
	}
	final.Status = session.StatusEnded
	m.Finish(final)
	closeMirror(t, m)

	entries := sessions.entries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "deactivate", entries[len(entries)-1])

	active, err := m.ListActive(context.Background())
	require.NoError(t, err)
	assert.Empty(t, active)

	require.Len(t, results.results, 2)
	assert.Equal(t, 1, results.results[0].Placement)
	assert.Equal(t, "alice", results.results[0].UserID)
	assert.Equal(t, 2, results.results[1].Placement)

	written, failed := m.Stats()
	assert.EqualValues(t, 2, written)
	assert.Zero(t, failed)
}

func TestMirror_CoalescesPendingSaves(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.gate = make(chan struct{})
	m := NewMirror(sessions, nil, 16, time.Second)

	// The first save is picked up by the worker and blocks on the gate; the
	// rest collapse into one pending write.
	id := uuid.New()
	m.Save(snapshot(id, 0))
	time.Sleep(20 * time.Millisecond)
	m.Save(snapshot(id, 1))
	m.Save(snapshot(id, 1))
	close(sessions.gate)
	closeMirror(t, m)

	assert.LessOrEqual(t, len(sessions.entries()), 2)

	active, err := m.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 1, active[0].Index)
}

func TestMirror_FailuresAreLoggedAndDropped(t *testing.T) {
	sessions := newFakeSessionStore()
	sessions.failOn = "upsert"
	m := NewMirror(sessions, nil, 16, time.Second)

	m.Save(snapshot(uuid.New(), 0))
	closeMirror(t, m)

	_, failed := m.Stats()
	assert.EqualValues(t, 1, failed)

	// Writes after close are ignored.
	m.Save(snapshot(uuid.New(), 0))
	assert.Len(t, sessions.entries(), 1)
}

func TestMirror_ListActiveSkipsUnreadableRows(t *testing.T) {
	sessions := newFakeSessionStore()
	good := uuid.New()
	bad := uuid.New()

	m := NewMirror(sessions, nil, 16, time.Second)
	m.Save(snapshot(good, 1))
	closeMirror(t, m)

	sessions.rows[bad] = &model.SessionRow{SessionID: bad, ChannelID: "chan-2", State: []byte(`{not json`), IsActive: true}

	active, err := m.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, good, active[0].ID)
	assert.False(t, sessions.rows[bad].IsActive)
}

func TestResultsFromFinal_TiesSharePlacement(t *testing.T) {
	final := session.FinalState{
		Snapshot: snapshot(uuid.New(), 1),
		Standings: []events.Standing{
			{UserID: "a", Score: 300},
			{UserID: "b", Score: 300},
			{UserID: "c", Score: 100},
		},
	}

	rs := ResultsFromFinal(final)
	require.Len(t, rs, 3)
	assert.Equal(t, []int{1, 1, 3}, []int{rs[0].Placement, rs[1].Placement, rs[2].Placement})
	assert.Equal(t, "trivia", rs[0].GameKind)
	assert.Equal(t, "guild-1", rs[2].GuildID)
}
