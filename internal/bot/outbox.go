package bot

import (
	"context"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"wompbot/internal/events"
	"wompbot/internal/handler"
)

type outgoing struct {
	channelID string
	text      string
}

// outbox sends rendered events for one platform from a single goroutine so
// the engine never waits on a chat API and per-channel order is kept.
type outbox struct {
	platform string
	send     func(channelID, text string) error
	queue    chan outgoing
	done     chan struct{}

	mu     sync.RWMutex
	closed bool
}

func newOutbox(platform string, size int, send func(channelID, text string) error) *outbox {
	if size <= 0 {
		size = 256
	}
	o := &outbox{
		platform: platform,
		send:     send,
		queue:    make(chan outgoing, size),
		done:     make(chan struct{}),
	}
	go o.run()
	return o
}

// Notify implements events.Notifier for channels of this platform.
func (o *outbox) Notify(_ context.Context, e events.Event) {
	local, ok := strings.CutPrefix(e.ChannelID, o.platform+":")
	if !ok {
		return
	}
	text := handler.Render(e)
	if text == "" {
		return
	}
	o.enqueue(local, text)
}

func (o *outbox) enqueue(channelID, text string) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.closed {
		return
	}
	select {
	case o.queue <- outgoing{channelID: channelID, text: text}:
	default:
		log.Warn().
			Str("platform", o.platform).
			Str("channel_id", channelID).
			Msg("Outbox full, dropping message")
	}
}

func (o *outbox) run() {
	defer close(o.done)
	for m := range o.queue {
		if err := o.send(m.channelID, m.text); err != nil {
			log.Error().
				Err(err).
				Str("platform", o.platform).
				Str("channel_id", m.channelID).
				Msg("Failed to send message")
		}
	}
}

// close stops accepting messages and waits until queued ones are sent.
func (o *outbox) close() {
	o.mu.Lock()
	if !o.closed {
		o.closed = true
		close(o.queue)
	}
	o.mu.Unlock()
	<-o.done
}
