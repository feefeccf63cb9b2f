// Package service provides business logic implementations.
package service

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"wompbot/internal/game/session"
	"wompbot/internal/model"
)

// SessionStore is the part of the session repository the mirror writes to.
type SessionStore interface {
	Upsert(ctx context.Context, row *model.SessionRow) error
	Deactivate(ctx context.Context, sessionID uuid.UUID, state []byte) error
	ListActive(ctx context.Context) ([]*model.SessionRow, error)
}

// ResultStore records final standings.
type ResultStore interface {
	RecordResults(ctx context.Context, results []model.GameResult) error
}

type mirrorOp struct {
	final bool
	snap  session.Snapshot
	state session.FinalState
}

func (op mirrorOp) sessionID() uuid.UUID {
	if op.final {
		return op.state.ID
	}
	return op.snap.ID
}

// Mirror copies session state to Postgres in the background. Writes are
// applied by a single worker in the order they were queued, so a session's
// last upsert always lands before its deactivation. A pending save is
// replaced by a newer save of the same session. Failed writes are logged and
// dropped; the in-memory game never waits on the database.
type Mirror struct {
	sessions     SessionStore
	results      ResultStore
	writeTimeout time.Duration
	softLimit    int

	mu      sync.Mutex
	pending []mirrorOp
	closed  bool
	wake    chan struct{}
	done    chan struct{}

	written atomic.Int64
	failed  atomic.Int64
}

var _ session.Mirror = (*Mirror)(nil)

// NewMirror starts the background writer. queueSize is the backlog size past
// which a warning is logged.
func NewMirror(sessions SessionStore, results ResultStore, queueSize int, writeTimeout time.Duration) *Mirror {
	if queueSize <= 0 {
		queueSize = 256
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	m := &Mirror{
		sessions:     sessions,
		results:      results,
		writeTimeout: writeTimeout,
		softLimit:    queueSize,
		wake:         make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	go m.run()
	return m
}

// Save queues an upsert of the snapshot.
func (m *Mirror) Save(s session.Snapshot) {
	m.enqueue(mirrorOp{snap: s})
}

// Finish queues the deactivation of the session and the recording of its
// results.
func (m *Mirror) Finish(f session.FinalState) {
	m.enqueue(mirrorOp{final: true, state: f})
}

func (m *Mirror) enqueue(op mirrorOp) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		log.Warn().Str("session_id", op.sessionID().String()).Msg("Mirror closed, dropping write")
		return
	}

	replaced := false
	if !op.final {
		for i := range m.pending {
			p := &m.pending[i]
			if !p.final && p.snap.ID == op.snap.ID {
				*p = op
				replaced = true
				break
			}
		}
	}
	if !replaced {
		m.pending = append(m.pending, op)
	}
	backlog := len(m.pending)
	m.mu.Unlock()

	if backlog > m.softLimit {
		log.Warn().Int("backlog", backlog).Msg("Persistence backlog is growing")
	}

	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Mirror) run() {
	defer close(m.done)
	for {
		<-m.wake

		for {
			m.mu.Lock()
			if len(m.pending) == 0 {
				closed := m.closed
				m.mu.Unlock()
				if closed {
					return
				}
				break
			}
			op := m.pending[0]
			m.pending = m.pending[1:]
			m.mu.Unlock()

			m.apply(op)
		}
	}
}

func (m *Mirror) apply(op mirrorOp) {
	ctx, cancel := context.WithTimeout(context.Background(), m.writeTimeout)
	defer cancel()

	var err error
	if op.final {
		err = m.writeFinal(ctx, op.state)
	} else {
		err = m.writeSnapshot(ctx, op.snap)
	}

	if err != nil {
		m.failed.Add(1)
		log.Error().
			Err(err).
			Str("session_id", op.sessionID().String()).
			Bool("final", op.final).
			Msg("PersistenceWriteFailed: session mirror write dropped")
		return
	}
	m.written.Add(1)
}

func (m *Mirror) writeSnapshot(ctx context.Context, s session.Snapshot) error {
	state, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return m.sessions.Upsert(ctx, &model.SessionRow{
		SessionID: s.ID,
		ChannelID: s.ChannelID,
		GuildID:   s.GuildID,
		OwnerID:   s.OwnerID,
		GameKind:  s.Kind,
		State:     state,
	})
}

func (m *Mirror) writeFinal(ctx context.Context, f session.FinalState) error {
	state, err := json.Marshal(f.Snapshot)
	if err != nil {
		return err
	}
	if err := m.sessions.Deactivate(ctx, f.ID, state); err != nil {
		return err
	}

	if m.results == nil || len(f.Items) == 0 {
		return nil
	}
	results := ResultsFromFinal(f)
	if len(results) == 0 {
		return nil
	}
	return m.results.RecordResults(ctx, results)
}

// ResultsFromFinal turns final standings into result rows. Equal scores share
// a placement.
func ResultsFromFinal(f session.FinalState) []model.GameResult {
	out := make([]model.GameResult, 0, len(f.Standings))
	placement := 0
	for i, s := range f.Standings {
		if i == 0 || s.Score != f.Standings[i-1].Score {
			placement = i + 1
		}
		out = append(out, model.GameResult{
			SessionID:   f.ID,
			ChannelID:   f.ChannelID,
			GuildID:     f.GuildID,
			UserID:      s.UserID,
			DisplayName: s.DisplayName,
			GameKind:    f.Kind,
			Score:       int64(s.Score),
			Correct:     s.Correct,
			Placement:   placement,
		})
	}
	return out
}

// ListActive loads every active snapshot for recovery. Rows that no longer
// decode are deactivated and skipped.
func (m *Mirror) ListActive(ctx context.Context) ([]session.Snapshot, error) {
	rows, err := m.sessions.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]session.Snapshot, 0, len(rows))
	for _, row := range rows {
		var snap session.Snapshot
		if err := json.Unmarshal(row.State, &snap); err != nil || snap.ID != row.SessionID {
			log.Warn().
				Err(err).
				Str("session_id", row.SessionID.String()).
				Str("channel_id", row.ChannelID).
				Msg("Discarding unreadable session snapshot")
			if err := m.sessions.Deactivate(ctx, row.SessionID, nil); err != nil {
				log.Error().Err(err).Str("session_id", row.SessionID.String()).Msg("Failed to deactivate unreadable session")
			}
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

// Stats reports how many writes succeeded and failed.
func (m *Mirror) Stats() (written, failed int64) {
	return m.written.Load(), m.failed.Load()
}

// Close stops accepting writes and waits for the backlog to drain.
func (m *Mirror) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	select {
	case m.wake <- struct{}{}:
	default:
	}

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
