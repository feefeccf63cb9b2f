// Package events defines the state-change notifications a game session emits
// and the sinks that deliver them.
package events

import (
	"context"
	"time"
)

// Type names an event.
type Type string

const (
	QuestionPresented Type = "question_presented"
	AnswerResult      Type = "answer_result"
	ItemRevealed      Type = "item_revealed"
	SessionEnded      Type = "session_ended"
)

// Standing is one participant's line in a scoreboard.
type Standing struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Score       int    `json:"score"`
	Correct     int    `json:"correct"`
}

// Event is a single notification. Fields not relevant to Type are zero.
type Event struct {
	Type      Type   `json:"type"`
	ChannelID string `json:"channel_id"`
	GuildID   string `json:"guild_id,omitempty"`
	SessionID string `json:"session_id"`
	Kind      string `json:"kind"`

	// Item position, zero based, and the session length.
	Index int `json:"index"`
	Total int `json:"total"`

	Prompt   string `json:"prompt,omitempty"`
	Category string `json:"category,omitempty"`
	Value    int    `json:"value,omitempty"`
	// Window is how long players have to answer the presented item.
	Window time.Duration `json:"window,omitempty"`

	UserID      string  `json:"user_id,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Correct     bool    `json:"correct,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
	Points      int     `json:"points,omitempty"`
	Score       int     `json:"score,omitempty"`
	Streak      int     `json:"streak,omitempty"`
	Answer      string  `json:"answer,omitempty"`

	Standings []Standing `json:"standings,omitempty"`
	Reason    string     `json:"reason,omitempty"`

	At time.Time `json:"at"`
}

// Notifier delivers events to a presentation layer or a bus. Implementations
// must not call back into the game engine.
type Notifier interface {
	Notify(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, e Event) {
	f(ctx, e)
}

// Multi fans an event out to every notifier in order.
type Multi []Notifier

// Notify delivers e to each non-nil notifier.
func (m Multi) Notify(ctx context.Context, e Event) {
	for _, n := range m {
		if n != nil {
			n.Notify(ctx, e)
		}
	}
}

// Nop drops every event.
type Nop struct{}

// Notify does nothing.
func (Nop) Notify(context.Context, Event) {}
