package session

import (
	"context"
	"sync"
	"time"

	"wompbot/internal/events"
	"wompbot/internal/game"
	"wompbot/internal/game/answer"
	"wompbot/internal/game/jeopardy"
	"wompbot/internal/game/questions"
	"wompbot/internal/game/trivia"
)

type fakeGen struct {
	qs  []questions.Question
	err error

	started chan struct{}
	release chan struct{}
}

func (g *fakeGen) Generate(_ context.Context, _ game.Kind, _, _ string, count int) ([]questions.Question, error) {
	if g.started != nil {
		close(g.started)
	}
	if g.release != nil {
		<-g.release
	}
	if g.err != nil {
		return nil, g.err
	}
	n := min(count, len(g.qs))
	out := make([]questions.Question, n)
	copy(out, g.qs[:n])
	return out, nil
}

type memMirror struct {
	mu       sync.Mutex
	active   map[string]Snapshot
	finished []FinalState
	saves    int
}

func newMemMirror() *memMirror {
	return &memMirror{active: make(map[string]Snapshot)}
}

func (m *memMirror) Save(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.active[s.ChannelID] = s
	m.saves++
}

func (m *memMirror) Finish(f FinalState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.active[f.ChannelID]; ok && cur.ID == f.ID {
		delete(m.active, f.ChannelID)
	}
	m.finished = append(m.finished, f)
}

func (m *memMirror) ListActive(context.Context) ([]Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Snapshot, 0, len(m.active))
	for _, s := range m.active {
		out = append(out, s.Clone())
	}
	return out, nil
}

func (m *memMirror) finishedStates() []FinalState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]FinalState(nil), m.finished...)
}

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(_ context.Context, e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) count(t events.Type) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	return c.t
}

// manualTimers records timer callbacks instead of scheduling them.
type manualTimers struct {
	mu  sync.Mutex
	fns []func()
}

type nopStopper struct{}

func (nopStopper) Stop() bool { return true }

func (m *manualTimers) afterFunc(_ time.Duration, f func()) stopper {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fns = append(m.fns, f)
	return nopStopper{}
}

func (m *manualTimers) last() func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fns[len(m.fns)-1]
}

func (m *manualTimers) at(i int) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fns[i]
}

type harness struct {
	e      *Engine
	mirror *memMirror
	rec    *recorder
	timers *manualTimers
	clock  *fakeClock
}

var t0 = time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)

func newHarness(gen Generator) *harness {
	kinds := game.NewRegistry()
	_ = kinds.Register(trivia.New())
	_ = kinds.Register(jeopardy.New(1))

	h := &harness{
		mirror: newMemMirror(),
		rec:    &recorder{},
		timers: &manualTimers{},
		clock:  &fakeClock{t: t0},
	}
	h.e = NewEngine(Config{
		QuestionTimeout: 30 * time.Second,
		IdleTimeout:     10 * time.Minute,
		MaxCount:        20,
	}, kinds, gen, answer.NewMatcher(answer.DefaultThresholds()), h.mirror, h.rec)
	h.e.SetClock(h.clock.now)
	h.e.afterFunc = h.timers.afterFunc
	return h
}

func planets() []questions.Question {
	return []questions.Question{
		{Prompt: "What is the capital of France?", Answer: "Paris", Value: 100},
		{Prompt: "What is the largest planet?", Answer: "Jupiter", Value: 100},
		{Prompt: "Which planet is called the red planet?", Answer: "Mars", Value: 100},
	}
}

func startTrivia(h *harness, channelID string, count int) *Snapshot {
	snap, err := h.e.Start(context.Background(), StartParams{
		ChannelID: channelID,
		OwnerID:   "owner",
		Kind:      "trivia",
		Topic:     "geography",
		Count:     count,
	})
	if err != nil {
		panic(err)
	}
	return snap
}

// answerAt moves the engine clock to at and builds a message sent at that
// moment.
func (h *harness) answerAt(channelID, userID, text string, at time.Time) ChatMessage {
	h.clock.set(at)
	return ChatMessage{
		ChannelID:   channelID,
		UserID:      userID,
		DisplayName: userID,
		Text:        text,
		Timestamp:   at,
	}
}
