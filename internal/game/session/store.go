package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StartParams describes a game to start.
type StartParams struct {
	ChannelID  string
	GuildID    string
	OwnerID    string
	OwnerName  string
	Kind       string
	Topic      string
	Difficulty string
	Count      int
}

// Store maps channel IDs to live sessions. It is the only authority on
// whether a game is running in a channel.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Start registers a waiting session for channelID.
func (s *Store) Start(channelID string, p StartParams) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[channelID]; exists {
		return nil, ErrAlreadyActive
	}

	now := s.now()
	sess := &Session{Snapshot: Snapshot{
		ID:           uuid.New(),
		ChannelID:    channelID,
		GuildID:      p.GuildID,
		OwnerID:      p.OwnerID,
		OwnerName:    p.OwnerName,
		Kind:         p.Kind,
		Topic:        strings.TrimSpace(p.Topic),
		Difficulty:   p.Difficulty,
		Participants: make(map[string]*Participant),
		Status:       StatusWaiting,
		Phase:        PhaseIdle,
		StartedAt:    now,
		LastActivity: now,
	}}
	s.sessions[channelID] = sess
	return sess, nil
}

// Restore registers a session rebuilt from persistence.
func (s *Store) Restore(sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[sess.ChannelID]; exists {
		return ErrAlreadyActive
	}
	s.sessions[sess.ChannelID] = sess
	return nil
}

// Get returns the session registered for channelID.
func (s *Store) Get(channelID string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[channelID]
	return sess, ok
}

// Holds reports whether sess is still the registered instance for its channel.
func (s *Store) Holds(sess *Session) bool {
	if sess == nil {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	cur, ok := s.sessions[sess.ChannelID]
	return ok && cur == sess && cur.ID == sess.ID
}

// End removes and returns the session for channelID.
func (s *Store) End(channelID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[channelID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(s.sessions, channelID)
	return sess, nil
}

// Remove deletes sess only if it is still the registered instance.
func (s *Store) Remove(sess *Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.sessions[sess.ChannelID]
	if !ok || cur != sess {
		return false
	}
	delete(s.sessions, sess.ChannelID)
	return true
}

// List returns the registered sessions in no particular order.
func (s *Store) List() []*Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess)
	}
	return out
}

// Len returns the number of registered sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
