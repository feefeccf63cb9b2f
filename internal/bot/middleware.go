// Package bot connects chat platforms to the game handler and carries the
// middleware shared by every front end.
package bot

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"wompbot/internal/config"
	"wompbot/internal/game/session"
	"wompbot/internal/handler"
)

// Middleware wraps a handler.
type Middleware func(next handler.HandlerFunc) handler.HandlerFunc

// Chain applies middleware so the first one listed runs first.
func Chain(h handler.HandlerFunc, mws ...Middleware) handler.HandlerFunc {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

// Qualify prefixes a platform-local ID with its platform, the form used for
// channel IDs and in the admin and whitelist config.
func Qualify(platform, id string) string {
	return platform + ":" + id
}

// privateUsers tracks users who have used the bot in whitelisted channels.
// Those users may also talk to the bot in direct messages.
type privateUsers struct {
	mu    sync.RWMutex
	users map[string]bool
}

func (p *privateUsers) allow(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.users[id] = true
}

func (p *privateUsers) allowed(id string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.users[id]
}

// WhitelistMiddleware drops messages from channels that are not whitelisted.
func WhitelistMiddleware(cfg *config.Config) Middleware {
	seen := &privateUsers{users: make(map[string]bool)}

	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx context.Context, in handler.Inbound) (string, error) {
			user := Qualify(in.Platform, in.UserID)

			if in.Private {
				if len(cfg.Whitelist.Channels) == 0 || seen.allowed(user) {
					return next(ctx, in)
				}
				log.Debug().
					Str("user_id", user).
					Msg("Ignoring direct message from user not seen in a whitelisted channel")
				return "", nil
			}

			if !cfg.IsChannelAllowed(in.ChannelID) {
				log.Debug().
					Str("channel_id", in.ChannelID).
					Msg("Ignoring message from non-whitelisted channel")
				return "", nil
			}

			seen.allow(user)
			return next(ctx, in)
		}
	}
}

// SessionReader looks up the running game in a channel.
type SessionReader interface {
	Get(channelID string) (session.Snapshot, bool)
}

// AdminMiddleware restricts stop and skip to admins and the player who started
// the game. It is a no-op unless admin.gate_controls is set.
func AdminMiddleware(cfg *config.Config, sessions SessionReader, prefix string) Middleware {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		if !cfg.Admin.GateControls {
			return next
		}
		return func(ctx context.Context, in handler.Inbound) (string, error) {
			cmd, ok := handler.ParseCommand(prefix, in.Text)
			if !ok || !isControl(cmd.Action) {
				return next(ctx, in)
			}
			if cfg.IsAdmin(Qualify(in.Platform, in.UserID)) {
				return next(ctx, in)
			}
			if snap, ok := sessions.Get(in.ChannelID); !ok || snap.OwnerID == in.UserID {
				return next(ctx, in)
			}

			log.Warn().
				Str("user_id", in.UserID).
				Str("channel_id", in.ChannelID).
				Str("command", in.Text).
				Msg("Non-admin attempted game control")
			return "❌ Only the player who started the game or an admin can do that.", nil
		}
	}
}

func isControl(action string) bool {
	switch action {
	case "stop", "end", "skip", "pass":
		return true
	}
	return false
}

// LoggingMiddleware logs every inbound message at debug level and handler
// errors at error level.
func LoggingMiddleware() Middleware {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx context.Context, in handler.Inbound) (string, error) {
			log.Debug().
				Str("platform", in.Platform).
				Str("channel_id", in.ChannelID).
				Str("user_id", in.UserID).
				Str("username", in.DisplayName).
				Str("text", in.Text).
				Msg("Received message")

			reply, err := next(ctx, in)
			if err != nil {
				log.Error().
					Err(err).
					Str("channel_id", in.ChannelID).
					Str("text", in.Text).
					Msg("Handler failed")
			}
			return reply, err
		}
	}
}

// RecoveryMiddleware turns a panic in a handler into an apology.
func RecoveryMiddleware() Middleware {
	return func(next handler.HandlerFunc) handler.HandlerFunc {
		return func(ctx context.Context, in handler.Inbound) (reply string, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().
						Interface("panic", r).
						Str("channel_id", in.ChannelID).
						Msg("Recovered from panic in handler")
					reply, err = "❌ Something went wrong, please try again later.", nil
				}
			}()
			return next(ctx, in)
		}
	}
}
