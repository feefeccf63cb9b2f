package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"wompbot/internal/config"
	"wompbot/internal/game/session"
	"wompbot/internal/handler"
)

func echo(_ context.Context, in handler.Inbound) (string, error) {
	return "ok:" + in.Text, nil
}

func inbound(channelID, userID, text string) handler.Inbound {
	return handler.Inbound{
		Platform:  "discord",
		ChannelID: channelID,
		UserID:    userID,
		Text:      text,
	}
}

func TestChainOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next handler.HandlerFunc) handler.HandlerFunc {
			return func(ctx context.Context, in handler.Inbound) (string, error) {
				order = append(order, name)
				return next(ctx, in)
			}
		}
	}

	h := Chain(echo, mark("a"), mark("b"), mark("c"))
	reply, err := h(context.Background(), inbound("discord:1", "u", "hi"))
	require.NoError(t, err)
	assert.Equal(t, "ok:hi", reply)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

// For any whitelist, a channel message reaches the handler iff the whitelist
// is empty or lists the channel.
func TestWhitelistProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		channels := rapid.SliceOfDistinct(rapid.IntRange(1, 50), rapid.ID).Draw(t, "channels")
		whitelist := make([]string, len(channels))
		for i, c := range channels {
			whitelist[i] = fmt.Sprintf("discord:%d", c)
		}
		cfg := &config.Config{Whitelist: config.WhitelistConfig{Channels: whitelist}}
		h := Chain(echo, WhitelistMiddleware(cfg))

		channel := fmt.Sprintf("discord:%d", rapid.IntRange(1, 50).Draw(t, "channel"))
		reply, err := h(context.Background(), inbound(channel, "u", "hi"))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		want := len(whitelist) == 0 || cfg.IsChannelAllowed(channel)
		if (reply != "") != want {
			t.Fatalf("channel %s whitelist %v: reached=%v want %v", channel, whitelist, reply != "", want)
		}
	})
}

func TestWhitelistDirectMessages(t *testing.T) {
	cfg := &config.Config{Whitelist: config.WhitelistConfig{Channels: []string{"discord:1"}}}
	h := Chain(echo, WhitelistMiddleware(cfg))
	ctx := context.Background()

	dm := inbound("discord:dm", "alice", "hi")
	dm.Private = true

	reply, _ := h(ctx, dm)
	assert.Empty(t, reply, "unknown users are ignored in DMs")

	reply, _ = h(ctx, inbound("discord:1", "alice", "hi"))
	assert.Equal(t, "ok:hi", reply)

	reply, _ = h(ctx, dm)
	assert.Equal(t, "ok:hi", reply, "users seen in a whitelisted channel may DM")

	open := Chain(echo, WhitelistMiddleware(&config.Config{}))
	reply, _ = open(ctx, dm)
	assert.Equal(t, "ok:hi", reply)
}

type fakeSessions map[string]session.Snapshot

func (f fakeSessions) Get(channelID string) (session.Snapshot, bool) {
	s, ok := f[channelID]
	return s, ok
}

func TestAdminMiddleware(t *testing.T) {
	cfg := &config.Config{Admin: config.AdminConfig{IDs: []string{"discord:admin"}, GateControls: true}}
	sessions := fakeSessions{"discord:1": {OwnerID: "owner"}}
	h := Chain(echo, AdminMiddleware(cfg, sessions, "!"))
	ctx := context.Background()

	tests := []struct {
		name    string
		channel string
		user    string
		text    string
		allowed bool
	}{
		{"owner stops", "discord:1", "owner", "!trivia stop", true},
		{"admin skips", "discord:1", "admin", "!trivia skip", true},
		{"player stops", "discord:1", "player", "!trivia stop", false},
		{"player skips via alias", "discord:1", "player", "!jeopardy pass", false},
		{"player answers", "discord:1", "player", "mars", true},
		{"player starts", "discord:1", "player", "!trivia start space", true},
		{"no game", "discord:2", "player", "!trivia stop", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reply, err := h(ctx, inbound(tt.channel, tt.user, tt.text))
			require.NoError(t, err)
			if tt.allowed {
				assert.Equal(t, "ok:"+tt.text, reply)
			} else {
				assert.Contains(t, reply, "Only the player who started the game")
			}
		})
	}
}

// For any admin list, admins always pass the gate and other non-owners never do.
func TestAdminGateProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		admins := rapid.SliceOfNDistinct(rapid.StringMatching(`[a-z]{3,8}`), 1, 10, rapid.ID).Draw(t, "admins")
		ids := make([]string, len(admins))
		for i, a := range admins {
			ids[i] = Qualify("discord", a)
		}
		cfg := &config.Config{Admin: config.AdminConfig{IDs: ids, GateControls: true}}
		h := Chain(echo, AdminMiddleware(cfg, fakeSessions{"discord:1": {OwnerID: "OWNER"}}, "!"))

		user := rapid.StringMatching(`[a-z]{3,8}`).Draw(t, "user")
		reply, _ := h(context.Background(), inbound("discord:1", user, "!trivia stop"))

		want := cfg.IsAdmin(Qualify("discord", user))
		if allowed := reply == "ok:!trivia stop"; allowed != want {
			t.Fatalf("user %q admins %v: allowed=%v want %v", user, admins, allowed, want)
		}
	})
}

func TestAdminMiddlewareDisabled(t *testing.T) {
	h := Chain(echo, AdminMiddleware(&config.Config{}, fakeSessions{"discord:1": {OwnerID: "owner"}}, "!"))
	reply, err := h(context.Background(), inbound("discord:1", "player", "!trivia stop"))
	require.NoError(t, err)
	assert.Equal(t, "ok:!trivia stop", reply)
}

func TestRecoveryMiddleware(t *testing.T) {
	boom := func(context.Context, handler.Inbound) (string, error) {
		panic("boom")
	}
	h := Chain(boom, RecoveryMiddleware())

	reply, err := h(context.Background(), inbound("discord:1", "u", "hi"))
	assert.NoError(t, err)
	assert.Contains(t, reply, "Something went wrong")
}

func TestLoggingMiddlewarePassesThrough(t *testing.T) {
	failing := func(context.Context, handler.Inbound) (string, error) {
		return "sorry", errors.New("db down")
	}
	reply, err := Chain(failing, LoggingMiddleware())(context.Background(), inbound("discord:1", "u", "hi"))
	assert.Equal(t, "sorry", reply)
	assert.EqualError(t, err, "db down")
}
