package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"wompbot/internal/events"
	"wompbot/internal/game"
	"wompbot/internal/game/answer"
	"wompbot/internal/game/questions"
	"wompbot/internal/pkg/lock"
)

// Generator produces the questions for a new session.
type Generator interface {
	Generate(ctx context.Context, kind game.Kind, topic, difficulty string, count int) ([]questions.Question, error)
}

// Mirror is the best-effort persistence side channel. Save and Finish must
// not block the caller.
type Mirror interface {
	Save(s Snapshot)
	Finish(f FinalState)
	ListActive(ctx context.Context) ([]Snapshot, error)
}

// Config tunes the engine.
type Config struct {
	QuestionTimeout time.Duration
	IdleTimeout     time.Duration
	SweepInterval   time.Duration
	DefaultCount    int
	MaxCount        int
	Scoring         Scoring
}

func (c Config) withDefaults() Config {
	if c.QuestionTimeout <= 0 {
		c.QuestionTimeout = 30 * time.Second
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.DefaultCount <= 0 {
		c.DefaultCount = 5
	}
	if c.MaxCount <= 0 {
		c.MaxCount = 20
	}
	if c.DefaultCount > c.MaxCount {
		c.DefaultCount = c.MaxCount
	}
	c.Scoring = c.Scoring.withDefaults()
	return c
}

// ChatMessage is an inbound answer candidate.
type ChatMessage struct {
	ChannelID   string
	UserID      string
	DisplayName string
	Text        string
	// Timestamp is the platform's send time. It is logged only; response
	// time is measured on the engine clock.
	Timestamp time.Time
	// Explicit marks a message sent through an answer command. It skips the
	// question-form requirement of kinds that have one.
	Explicit bool
}

// AnswerResult reports what a submission did.
type AnswerResult struct {
	Correct    bool
	Similarity float64
	// Points is the score change, negative for a deduction.
	Points int
	Score  int
	Streak int
	Item   int
	// Answer is the canonical answer, set when Correct.
	Answer   string
	Advanced bool
	Ended    bool
	Final    *FinalState
}

// Engine drives every session's state machine. Transitions for one channel
// are serialized by a per-channel lock; channels are independent.
type Engine struct {
	cfg      Config
	store    *Store
	locks    *lock.ChannelLock
	kinds    *game.Registry
	gen      Generator
	matcher  *answer.Matcher
	mirror   Mirror
	notifier events.Notifier

	now       func() time.Time
	afterFunc func(d time.Duration, f func()) stopper
}

// NewEngine wires an engine. A nil mirror or notifier disables that side
// channel.
func NewEngine(cfg Config, kinds *game.Registry, gen Generator, matcher *answer.Matcher, mirror Mirror, notifier events.Notifier) *Engine {
	if matcher == nil {
		matcher = answer.NewMatcher(answer.DefaultThresholds())
	}
	if mirror == nil {
		mirror = nopMirror{}
	}
	if notifier == nil {
		notifier = events.Nop{}
	}
	return &Engine{
		cfg:      cfg.withDefaults(),
		store:    NewStore(),
		locks:    lock.NewChannelLock(),
		kinds:    kinds,
		gen:      gen,
		matcher:  matcher,
		mirror:   mirror,
		notifier: notifier,
		now:      time.Now,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
	}
}

// SetClock replaces the time source. It must be called before the engine is
// used.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
	e.store.now = now
}

// Store exposes the session store.
func (e *Engine) Store() *Store {
	return e.store
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Start reserves the channel, generates questions and presents the first one.
// The generator runs without holding the channel lock; if the game is stopped
// meanwhile, the questions are discarded and ErrSessionEnded is returned.
func (e *Engine) Start(ctx context.Context, p StartParams) (*Snapshot, error) {
	kind, ok := e.kinds.Get(strings.ToLower(p.Kind))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, p.Kind)
	}
	p.Kind = kind.Command()
	if p.Difficulty == "" {
		p.Difficulty = game.DifficultyMedium
	}
	switch {
	case p.Count <= 0:
		p.Count = e.cfg.DefaultCount
	case p.Count > e.cfg.MaxCount:
		p.Count = e.cfg.MaxCount
	}

	sess, err := e.store.Start(p.ChannelID, p)
	if err != nil {
		return nil, err
	}

	logger := log.With().
		Str("channel_id", p.ChannelID).
		Str("session_id", sess.ID.String()).
		Str("kind", p.Kind).
		Logger()
	logger.Info().Str("topic", sess.Topic).Int("count", p.Count).Msg("Generating questions")

	qs, genErr := e.gen.Generate(ctx, kind, sess.Topic, p.Difficulty, p.Count)

	e.locks.Lock(p.ChannelID)
	defer e.locks.Unlock(p.ChannelID)

	if genErr == nil && len(qs) == 0 {
		genErr = &questions.GenerationError{Reason: "no questions returned"}
	}
	if genErr != nil {
		e.store.Remove(sess)
		logger.Warn().Err(genErr).Msg("Question generation failed")
		return nil, genErr
	}
	if !e.store.Holds(sess) {
		logger.Info().Msg("Discarding questions for a game that already ended")
		return nil, ErrSessionEnded
	}

	sess.Items = make([]Item, len(qs))
	for i, q := range qs {
		sess.Items[i] = Item{Question: q}
	}
	sess.Status = StatusActive
	sess.LastActivity = e.now()
	e.present(ctx, sess, 0)
	e.mirror.Save(sess.Snapshot.Clone())

	logger.Info().Int("items", len(sess.Items)).Msg("Game started")

	snap := sess.Snapshot.Clone()
	return &snap, nil
}

// SubmitAnswer evaluates a chat message against the open item.
func (e *Engine) SubmitAnswer(ctx context.Context, msg ChatMessage) (*AnswerResult, error) {
	e.locks.Lock(msg.ChannelID)
	defer e.locks.Unlock(msg.ChannelID)

	sess, ok := e.store.Get(msg.ChannelID)
	if !ok {
		return nil, ErrNotFound
	}
	if sess.Status != StatusActive || sess.Phase != PhaseQuestionAsked {
		return nil, ErrNoOpenItem
	}
	item := sess.Current()
	if item == nil || item.Answered {
		return nil, ErrNoOpenItem
	}

	guess := answer.Normalize(msg.Text)
	if guess == "" {
		return nil, ErrEmptyAnswer
	}

	kind, _ := e.kinds.Get(sess.Kind)
	rules := rulesOf(kind)
	if rules.QuestionForm && !msg.Explicit && !answer.IsQuestionForm(msg.Text) {
		return nil, ErrNotAnAnswer
	}

	prev := item.Attempts[msg.UserID]
	if (rules.OneAttemptPerItem && len(prev) > 0) || slices.Contains(prev, guess) {
		return nil, ErrAlreadyAnswered
	}
	if item.Attempts == nil {
		item.Attempts = make(map[string][]string)
	}
	item.Attempts[msg.UserID] = append(prev, guess)

	now := e.now()
	sess.LastActivity = now

	p := sess.participant(msg.UserID, msg.DisplayName)
	match := e.matcher.Match(msg.Text, item.Answer, item.Alternatives)
	res := &AnswerResult{
		Correct:    match.Correct,
		Similarity: match.Similarity,
		Item:       sess.Index,
	}

	if !match.Correct {
		p.Wrong++
		if rules.DeductOnWrong {
			penalty := Penalty(item.Value, rules)
			p.Score -= penalty
			p.Streak = 0
			res.Points = -penalty
			res.Score, res.Streak = p.Score, p.Streak
			e.emitAnswer(ctx, sess, p, res)
			e.mirror.Save(sess.Snapshot.Clone())
			return res, nil
		}
		res.Score, res.Streak = p.Score, p.Streak
		return res, nil
	}

	idx := sess.Index
	if !sess.claimItem(idx) {
		return nil, ErrNoOpenItem
	}

	elapsed := max(now.Sub(item.PresentedAt), 0)
	p.Streak++
	p.Correct++
	points := e.cfg.Scoring.Points(item.Value, elapsed, p.Streak, rules)
	p.Score += points
	item.WinnerID = p.UserID
	sess.resetStreaks(p.UserID)

	res.Points = points
	res.Score, res.Streak = p.Score, p.Streak
	res.Answer = item.Answer
	e.emitAnswer(ctx, sess, p, res)

	log.Info().
		Str("channel_id", sess.ChannelID).
		Str("session_id", sess.ID.String()).
		Str("user_id", p.UserID).
		Int("item", idx).
		Int("points", points).
		Dur("elapsed", elapsed).
		Time("sent_at", msg.Timestamp).
		Msg("Correct answer")

	final := e.advance(ctx, sess)
	res.Advanced = true
	if final != nil {
		res.Ended = true
		res.Final = final
	}
	return res, nil
}

// Skip reveals the open item and moves on without waiting for the timer.
func (e *Engine) Skip(ctx context.Context, channelID string) (*Item, error) {
	e.locks.Lock(channelID)
	defer e.locks.Unlock(channelID)

	sess, ok := e.store.Get(channelID)
	if !ok {
		return nil, ErrNotFound
	}
	idx := sess.Index
	if sess.Phase != PhaseQuestionAsked || !sess.claimItem(idx) {
		return nil, ErrNoOpenItem
	}
	sess.LastActivity = e.now()
	revealed := e.reveal(ctx, sess, idx, "skipped")
	e.advance(ctx, sess)
	return &revealed, nil
}

// End stops the game in channelID.
func (e *Engine) End(ctx context.Context, channelID, reason string) (*FinalState, error) {
	e.locks.Lock(channelID)
	defer e.locks.Unlock(channelID)

	sess, ok := e.store.Get(channelID)
	if !ok {
		return nil, ErrNotFound
	}
	if reason == "" {
		reason = ReasonStopped
	}
	return e.finish(ctx, sess, reason), nil
}

// Get returns a copy of the session in channelID.
func (e *Engine) Get(channelID string) (Snapshot, bool) {
	e.locks.Lock(channelID)
	defer e.locks.Unlock(channelID)

	sess, ok := e.store.Get(channelID)
	if !ok {
		return Snapshot{}, false
	}
	return sess.Snapshot.Clone(), true
}

// Active returns copies of all running sessions.
func (e *Engine) Active() []Snapshot {
	var out []Snapshot
	for _, sess := range e.store.List() {
		if snap, ok := e.Get(sess.ChannelID); ok {
			out = append(out, snap)
		}
	}
	return out
}

// Recover rebuilds sessions from the mirror and re-presents each one's
// current item with a fresh answer window. It returns how many were restored.
func (e *Engine) Recover(ctx context.Context) (int, error) {
	snaps, err := e.mirror.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active sessions: %w", err)
	}

	restored := 0
	for _, snap := range snaps {
		sess := &Session{Snapshot: snap}
		if sess.Participants == nil {
			sess.Participants = make(map[string]*Participant)
		}

		logger := log.With().
			Str("channel_id", sess.ChannelID).
			Str("session_id", sess.ID.String()).
			Logger()

		if sess.ID == uuid.Nil || sess.Status != StatusActive || len(sess.Items) == 0 {
			logger.Info().Str("status", string(sess.Status)).Msg("Dropping unrecoverable session")
			sess.Status = StatusEnded
			sess.Phase = PhaseEnded
			sess.EndReason = ReasonAbandoned
			e.mirror.Finish(FinalState{Snapshot: sess.Snapshot.Clone(), Standings: sess.Standings(), EndedAt: e.now()})
			continue
		}

		if err := e.store.Restore(sess); err != nil {
			logger.Warn().Err(err).Msg("Channel already has a game, skipping restore")
			continue
		}

		e.locks.Lock(sess.ChannelID)
		sess.Phase = PhaseIdle
		sess.LastActivity = e.now()
		if cur := sess.Current(); cur != nil && !cur.Answered {
			e.present(ctx, sess, sess.Index)
			e.mirror.Save(sess.Snapshot.Clone())
		} else {
			e.advance(ctx, sess)
		}
		e.locks.Unlock(sess.ChannelID)

		logger.Info().Int("index", sess.Index).Msg("Session recovered")
		restored++
	}
	return restored, nil
}

// RunIdleSweeper ends sessions without activity for IdleTimeout. It returns
// when ctx is done. A zero IdleTimeout disables it.
func (e *Engine) RunIdleSweeper(ctx context.Context) {
	if e.cfg.IdleTimeout <= 0 {
		return
	}
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := e.sweepIdle(ctx); n > 0 {
				log.Info().Int("ended", n).Msg("Ended idle games")
			}
		}
	}
}

func (e *Engine) sweepIdle(ctx context.Context) int {
	ended := 0
	for _, sess := range e.store.List() {
		e.locks.Lock(sess.ChannelID)
		if e.store.Holds(sess) && sess.Status == StatusActive && e.now().Sub(sess.LastActivity) >= e.cfg.IdleTimeout {
			e.finish(ctx, sess, ReasonIdle)
			ended++
		}
		e.locks.Unlock(sess.ChannelID)
	}
	return ended
}

// onTimeout is the timer callback for item idx of session id. It does nothing
// when the channel now holds another session or the item already finished.
func (e *Engine) onTimeout(channelID string, id uuid.UUID, idx int) {
	e.locks.Lock(channelID)
	defer e.locks.Unlock(channelID)

	sess, ok := e.store.Get(channelID)
	if !ok || sess.ID != id {
		return
	}
	if !sess.claimItem(idx) {
		return
	}
	ctx := context.Background()
	e.reveal(ctx, sess, idx, "timeout")
	e.advance(ctx, sess)
}

// present opens item idx and arms its timer. Caller holds the channel lock.
func (e *Engine) present(ctx context.Context, sess *Session, idx int) {
	e.setPhase(sess, PhaseQuestionAsked)
	sess.Index = idx
	item := &sess.Items[idx]
	item.PresentedAt = e.now()

	sess.stopTimer()
	channelID, id := sess.ChannelID, sess.ID
	sess.timer = e.afterFunc(e.cfg.QuestionTimeout, func() {
		e.onTimeout(channelID, id, idx)
	})

	ev := e.event(sess, events.QuestionPresented)
	ev.Prompt = item.Prompt
	ev.Category = item.Category
	ev.Value = item.Value
	ev.Window = e.cfg.QuestionTimeout
	e.notifier.Notify(ctx, ev)
}

// reveal publishes the answer of a claimed item nobody won.
func (e *Engine) reveal(ctx context.Context, sess *Session, idx int, reason string) Item {
	item := &sess.Items[idx]
	item.Revealed = true
	sess.resetStreaks("")

	ev := e.event(sess, events.ItemRevealed)
	ev.Index = idx
	ev.Prompt = item.Prompt
	ev.Answer = item.Answer
	ev.Value = item.Value
	ev.Reason = reason
	e.notifier.Notify(ctx, ev)

	log.Debug().
		Str("channel_id", sess.ChannelID).
		Str("session_id", sess.ID.String()).
		Int("item", idx).
		Str("reason", reason).
		Msg("Answer revealed")
	return *item
}

// advance presents the next item or ends the session when none remain.
func (e *Engine) advance(ctx context.Context, sess *Session) *FinalState {
	sess.stopTimer()
	next := sess.Index + 1
	if next >= len(sess.Items) {
		return e.finish(ctx, sess, ReasonCompleted)
	}
	e.present(ctx, sess, next)
	e.mirror.Save(sess.Snapshot.Clone())
	return nil
}

// finish removes sess from the store and hands the final state to the
// mirror. Caller holds the channel lock.
func (e *Engine) finish(ctx context.Context, sess *Session, reason string) *FinalState {
	sess.stopTimer()
	e.store.Remove(sess)
	e.setPhase(sess, PhaseEnded)
	sess.Status = StatusEnded
	sess.EndReason = reason

	final := &FinalState{
		Snapshot:  sess.Snapshot.Clone(),
		Standings: sess.Standings(),
		EndedAt:   e.now(),
	}
	e.mirror.Finish(*final)

	ev := e.event(sess, events.SessionEnded)
	ev.Standings = final.Standings
	ev.Reason = reason
	e.notifier.Notify(ctx, ev)

	log.Info().
		Str("channel_id", sess.ChannelID).
		Str("session_id", sess.ID.String()).
		Str("reason", reason).
		Int("players", len(final.Standings)).
		Msg("Game ended")
	return final
}

func (e *Engine) setPhase(sess *Session, to Phase) {
	if sess.Phase != to && !sess.Phase.CanTransition(to) {
		log.Error().
			Str("channel_id", sess.ChannelID).
			Str("from", string(sess.Phase)).
			Str("to", string(to)).
			Msg("Unexpected phase transition")
	}
	sess.Phase = to
}

func (e *Engine) emitAnswer(ctx context.Context, sess *Session, p *Participant, res *AnswerResult) {
	ev := e.event(sess, events.AnswerResult)
	ev.UserID = p.UserID
	ev.DisplayName = p.DisplayName
	ev.Correct = res.Correct
	ev.Similarity = res.Similarity
	ev.Points = res.Points
	ev.Score = res.Score
	ev.Streak = res.Streak
	ev.Answer = res.Answer
	e.notifier.Notify(ctx, ev)
}

func (e *Engine) event(sess *Session, t events.Type) events.Event {
	return events.Event{
		Type:      t,
		ChannelID: sess.ChannelID,
		GuildID:   sess.GuildID,
		SessionID: sess.ID.String(),
		Kind:      sess.Kind,
		Index:     sess.Index,
		Total:     len(sess.Items),
		At:        e.now(),
	}
}

func rulesOf(k game.Kind) game.Rules {
	if k == nil {
		return game.Rules{}
	}
	return k.Rules()
}

// IsUserError reports whether err is a domain error the caller should turn
// into a chat reply rather than log.
func IsUserError(err error) bool {
	for _, target := range []error{
		ErrAlreadyActive, ErrNotFound, ErrAlreadyAnswered, ErrNoOpenItem,
		ErrEmptyAnswer, ErrNotAnAnswer, ErrUnknownKind, ErrSessionEnded, questions.ErrGenerationFailed,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

type nopMirror struct{}

func (nopMirror) Save(Snapshot) {}

func (nopMirror) Finish(FinalState) {}

func (nopMirror) ListActive(context.Context) ([]Snapshot, error) { return nil, nil }
