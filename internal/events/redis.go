package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	channelPrefix  = "wompbot:events:"
	publishTimeout = 5 * time.Second
)

// RedisPublisher publishes every event as JSON on a per-channel Redis pub/sub
// channel so dashboards and other bot instances can follow games. Publishing
// happens on a background queue; Notify returns without touching the network.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	queue  *Async
}

// NewRedisPublisher creates a publisher. An empty prefix uses "wompbot:events:".
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = channelPrefix
	}
	p := &RedisPublisher{client: client, prefix: prefix}
	p.queue = NewAsync("redis", NotifierFunc(p.publish), 0)
	return p
}

// Topic returns the Redis channel for a chat channel.
func (p *RedisPublisher) Topic(channelID string) string {
	return p.prefix + channelID
}

// Notify queues e for publishing.
func (p *RedisPublisher) Notify(ctx context.Context, e Event) {
	p.queue.Notify(ctx, e)
}

// Close flushes queued events. The Redis client is left open.
func (p *RedisPublisher) Close() {
	p.queue.Close()
}

// publish sends e. Failures are logged; they never reach the game.
func (p *RedisPublisher) publish(ctx context.Context, e Event) {
	body, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("type", string(e.Type)).Msg("Failed to encode event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.client.Publish(ctx, p.Topic(e.ChannelID), body).Err(); err != nil {
		log.Warn().
			Err(err).
			Str("channel_id", e.ChannelID).
			Str("type", string(e.Type)).
			Msg("Failed to publish event to redis")
	}
}
