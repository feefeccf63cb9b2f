package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

type queued struct {
	ctx context.Context
	e   Event
}

// Async hands events to next from a single goroutine. Notify never blocks,
// events reach next in the order they were notified, and a full queue drops
// the event.
type Async struct {
	name  string
	next  Notifier
	queue chan queued
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts the delivery goroutine. size <= 0 uses 256.
func NewAsync(name string, next Notifier, size int) *Async {
	if size <= 0 {
		size = 256
	}
	a := &Async{
		name:  name,
		next:  next,
		queue: make(chan queued, size),
		done:  make(chan struct{}),
	}
	go a.run()
	return a
}

// Notify queues e. The context loses its cancellation so a finished request
// does not abort delivery.
func (a *Async) Notify(ctx context.Context, e Event) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.queue <- queued{ctx: context.WithoutCancel(ctx), e: e}:
	default:
		log.Warn().
			Str("notifier", a.name).
			Str("channel_id", e.ChannelID).
			Str("type", string(e.Type)).
			Msg("Event queue full, dropping event")
	}
}

func (a *Async) run() {
	defer close(a.done)
	for q := range a.queue {
		a.next.Notify(q.ctx, q.e)
	}
}

// Close stops accepting events and waits until queued ones are delivered.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()
	<-a.done
}
