// Package session runs question-and-answer games, one per chat channel.
package session

import (
	"errors"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"wompbot/internal/events"
	"wompbot/internal/game/questions"
)

// Errors returned by the store and the engine.
var (
	ErrAlreadyActive   = errors.New("a game is already running in this channel")
	ErrNotFound        = errors.New("no game is running in this channel")
	ErrAlreadyAnswered = errors.New("answer already submitted for this question")
	ErrNoOpenItem      = errors.New("no question is open right now")
	ErrEmptyAnswer     = errors.New("empty answer")
	ErrNotAnAnswer     = errors.New("message is not phrased as an answer")
	ErrUnknownKind     = errors.New("unknown game kind")
	ErrSessionEnded    = errors.New("game ended before the questions were ready")
)

// Status is the coarse lifecycle of a session.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusEnded   Status = "ended"
)

// Phase is the position of a session in the turn state machine.
type Phase string

const (
	PhaseIdle          Phase = "idle"
	PhaseQuestionAsked Phase = "question_asked"
	PhaseScored        Phase = "scored"
	PhaseEnded         Phase = "ended"
)

var transitions = map[Phase][]Phase{
	PhaseIdle:          {PhaseQuestionAsked, PhaseEnded},
	PhaseQuestionAsked: {PhaseScored, PhaseEnded},
	PhaseScored:        {PhaseQuestionAsked, PhaseEnded},
}

// CanTransition reports whether the state machine allows p -> to.
func (p Phase) CanTransition(to Phase) bool {
	return slices.Contains(transitions[p], to)
}

// End reasons.
const (
	ReasonCompleted = "completed"
	ReasonStopped   = "stopped"
	ReasonIdle      = "idle"
	ReasonAbandoned = "abandoned"
)

// Item is a question inside a session.
type Item struct {
	questions.Question
	Answered    bool      `json:"answered"`
	Revealed    bool      `json:"revealed"`
	PresentedAt time.Time `json:"presented_at,omitzero"`
	WinnerID    string    `json:"winner_id,omitempty"`
	// Attempts holds each user's normalized guesses.
	Attempts map[string][]string `json:"attempts,omitempty"`
}

// Participant is one player's running tally.
type Participant struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Streak      int    `json:"streak"`
	Correct     int    `json:"correct"`
	Wrong       int    `json:"wrong"`
}

// Snapshot is the serializable state of a session. The persistence mirror
// stores it as JSON and recovery rebuilds sessions from it.
type Snapshot struct {
	ID           uuid.UUID               `json:"id"`
	ChannelID    string                  `json:"channel_id"`
	GuildID      string                  `json:"guild_id,omitempty"`
	OwnerID      string                  `json:"owner_id"`
	OwnerName    string                  `json:"owner_name,omitempty"`
	Kind         string                  `json:"kind"`
	Topic        string                  `json:"topic"`
	Difficulty   string                  `json:"difficulty"`
	Items        []Item                  `json:"items"`
	Index        int                     `json:"index"`
	Participants map[string]*Participant `json:"participants"`
	Status       Status                  `json:"status"`
	Phase        Phase                   `json:"phase"`
	StartedAt    time.Time               `json:"started_at"`
	LastActivity time.Time               `json:"last_activity"`
	EndReason    string                  `json:"end_reason,omitempty"`
}

// Current returns the item at Index, or nil when none is loaded.
func (s *Snapshot) Current() *Item {
	if s.Index < 0 || s.Index >= len(s.Items) {
		return nil
	}
	return &s.Items[s.Index]
}

// Remaining counts items not yet presented after the current one.
func (s *Snapshot) Remaining() int {
	if n := len(s.Items) - s.Index - 1; n > 0 {
		return n
	}
	return 0
}

// Standings ranks participants by score, then correct answers, then name.
func (s *Snapshot) Standings() []events.Standing {
	out := make([]events.Standing, 0, len(s.Participants))
	for _, p := range s.Participants {
		out = append(out, events.Standing{
			UserID:      p.UserID,
			DisplayName: p.DisplayName,
			Score:       p.Score,
			Correct:     p.Correct,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Correct != out[j].Correct {
			return out[i].Correct > out[j].Correct
		}
		return strings.ToLower(out[i].DisplayName) < strings.ToLower(out[j].DisplayName)
	})
	return out
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Items = make([]Item, len(s.Items))
	for i, it := range s.Items {
		it.Alternatives = slices.Clone(it.Alternatives)
		if it.Attempts != nil {
			attempts := make(map[string][]string, len(it.Attempts))
			for k, v := range it.Attempts {
				attempts[k] = slices.Clone(v)
			}
			it.Attempts = attempts
		}
		out.Items[i] = it
	}
	out.Participants = make(map[string]*Participant, len(s.Participants))
	for k, p := range s.Participants {
		cp := *p
		out.Participants[k] = &cp
	}
	return out
}

// FinalState is what remains of a session once it ends.
type FinalState struct {
	Snapshot
	Standings []events.Standing `json:"standings"`
	EndedAt   time.Time         `json:"ended_at"`
}

// Session is a live game. Every field is owned by the engine and only
// touched while holding the channel lock.
type Session struct {
	Snapshot
	timer stopper
}

type stopper interface {
	Stop() bool
}

func (s *Session) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) participant(userID, displayName string) *Participant {
	if s.Participants == nil {
		s.Participants = make(map[string]*Participant)
	}
	p, ok := s.Participants[userID]
	if !ok {
		p = &Participant{UserID: userID, DisplayName: displayName}
		s.Participants[userID] = p
	}
	if displayName != "" {
		p.DisplayName = displayName
	}
	return p
}

// claimItem marks item idx as finished. Exactly one caller can claim a given
// item; later callers get false and must not apply any effect.
func (s *Session) claimItem(idx int) bool {
	if s.Status != StatusActive || idx != s.Index || idx < 0 || idx >= len(s.Items) {
		return false
	}
	it := &s.Items[idx]
	if it.Answered {
		return false
	}
	it.Answered = true
	s.Phase = PhaseScored
	return true
}

func (s *Session) resetStreaks(except string) {
	for id, p := range s.Participants {
		if id != except {
			p.Streak = 0
		}
	}
}
