// Package handler turns chat messages into game engine calls and engine
// events into chat text. It is shared by every chat front end.
package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"wompbot/internal/game"
	"wompbot/internal/game/questions"
	"wompbot/internal/game/session"
	"wompbot/internal/model"
	"wompbot/internal/repository"
)

// Inbound is a chat message from any platform.
type Inbound struct {
	Platform    string
	ChannelID   string
	GuildID     string
	UserID      string
	DisplayName string
	Text        string
	Timestamp   time.Time
	// Private is set for direct messages.
	Private bool
	// Notify, when set, sends an interim message before a slow operation.
	Notify func(text string)
}

// HandlerFunc handles one inbound message and returns the reply, if any.
type HandlerFunc func(ctx context.Context, in Inbound) (string, error)

// Engine is the game engine as seen by chat commands.
type Engine interface {
	Start(ctx context.Context, p session.StartParams) (*session.Snapshot, error)
	SubmitAnswer(ctx context.Context, msg session.ChatMessage) (*session.AnswerResult, error)
	Skip(ctx context.Context, channelID string) (*session.Item, error)
	End(ctx context.Context, channelID, reason string) (*session.FinalState, error)
	Get(channelID string) (session.Snapshot, bool)
}

// Leaderboard serves the top and me commands.
type Leaderboard interface {
	Top(ctx context.Context, guildID string, limit int) ([]*model.PlayerRank, error)
	Stats(ctx context.Context, guildID, userID string) (*model.PlayerStats, error)
}

// GameHandler routes commands and answers.
type GameHandler struct {
	engine Engine
	kinds  *game.Registry
	board  Leaderboard
	prefix string
}

// NewGameHandler creates a GameHandler. board may be nil when no database is
// configured.
func NewGameHandler(engine Engine, kinds *game.Registry, board Leaderboard, prefix string) *GameHandler {
	if prefix == "" {
		prefix = "!"
	}
	return &GameHandler{
		engine: engine,
		kinds:  kinds,
		board:  board,
		prefix: prefix,
	}
}

// Prefix returns the command prefix.
func (h *GameHandler) Prefix() string {
	return h.prefix
}

// Handle processes a message. Commands get a reply; any other text is tried
// as an answer and never produces a reply of its own, since results are
// announced through engine events.
func (h *GameHandler) Handle(ctx context.Context, in Inbound) (string, error) {
	cmd, ok := ParseCommand(h.prefix, in.Text)
	if ok {
		if _, known := h.kinds.Get(cmd.Game); known {
			return h.handleCommand(ctx, in, cmd)
		}
	}
	return "", h.handleAnswer(ctx, in)
}

func (h *GameHandler) handleCommand(ctx context.Context, in Inbound, cmd Command) (string, error) {
	switch cmd.Action {
	case "start", "play":
		return h.handleStart(ctx, in, cmd)
	case "stop", "end":
		return h.handleStop(ctx, in)
	case "skip", "pass":
		return h.handleSkip(ctx, in)
	case "answer", "a":
		return "", h.handleExplicitAnswer(ctx, in, cmd)
	case "status":
		return h.handleStatus(in)
	case "top", "leaderboard":
		return h.handleTop(ctx, in)
	case "me", "stats":
		return h.handleMe(ctx, in)
	default:
		return h.help(), nil
	}
}

func (h *GameHandler) handleStart(ctx context.Context, in Inbound, cmd Command) (string, error) {
	kind, _ := h.kinds.Get(cmd.Game)
	args := ParseStartArgs(cmd.Args)

	if in.Notify != nil {
		in.Notify(fmt.Sprintf("🎲 Preparing %s about %s (%s)...", kind.Name(), args.Topic, args.Difficulty))
	}

	_, err := h.engine.Start(ctx, session.StartParams{
		ChannelID:  in.ChannelID,
		GuildID:    in.GuildID,
		OwnerID:    in.UserID,
		OwnerName:  in.DisplayName,
		Kind:       kind.Command(),
		Topic:      args.Topic,
		Difficulty: args.Difficulty,
		Count:      args.Count,
	})
	if err != nil {
		return h.errorReply(err)
	}
	// The first question is announced by the engine.
	return "", nil
}

func (h *GameHandler) handleStop(ctx context.Context, in Inbound) (string, error) {
	if _, err := h.engine.End(ctx, in.ChannelID, session.ReasonStopped); err != nil {
		return h.errorReply(err)
	}
	return "", nil
}

func (h *GameHandler) handleSkip(ctx context.Context, in Inbound) (string, error) {
	if _, err := h.engine.Skip(ctx, in.ChannelID); err != nil {
		return h.errorReply(err)
	}
	return "", nil
}

func (h *GameHandler) handleStatus(in Inbound) (string, error) {
	snap, ok := h.engine.Get(in.ChannelID)
	if !ok {
		return h.errorReply(session.ErrNotFound)
	}
	return renderStatus(snap), nil
}

func (h *GameHandler) handleTop(ctx context.Context, in Inbound) (string, error) {
	if h.board == nil {
		return "📉 Leaderboards are not available.", nil
	}
	ranks, err := h.board.Top(ctx, in.GuildID, 10)
	if err != nil {
		return "❌ Could not load the leaderboard, please try again later.", err
	}
	return renderLeaderboard(ranks), nil
}

func (h *GameHandler) handleMe(ctx context.Context, in Inbound) (string, error) {
	if h.board == nil {
		return "📉 Stats are not available.", nil
	}
	stats, err := h.board.Stats(ctx, in.GuildID, in.UserID)
	if errors.Is(err, repository.ErrNoResults) {
		return "You haven't finished a game here yet.", nil
	}
	if err != nil {
		return "❌ Could not load your stats, please try again later.", err
	}
	return renderStats(stats), nil
}

func (h *GameHandler) handleAnswer(ctx context.Context, in Inbound) error {
	return h.submit(ctx, in, in.Text, false)
}

// handleExplicitAnswer submits the command's arguments as an answer even when
// the game expects question phrasing.
func (h *GameHandler) handleExplicitAnswer(ctx context.Context, in Inbound, cmd Command) error {
	return h.submit(ctx, in, strings.Join(cmd.Args, " "), true)
}

func (h *GameHandler) submit(ctx context.Context, in Inbound, text string, explicit bool) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, err := h.engine.SubmitAnswer(ctx, session.ChatMessage{
		ChannelID:   in.ChannelID,
		UserID:      in.UserID,
		DisplayName: in.DisplayName,
		Text:        text,
		Timestamp:   in.Timestamp,
		Explicit:    explicit,
	})
	if err == nil || session.IsUserError(err) {
		return nil
	}
	return err
}

func (h *GameHandler) errorReply(err error) (string, error) {
	p := h.prefix
	switch {
	case errors.Is(err, session.ErrAlreadyActive):
		return fmt.Sprintf("⚠️ A game is already running here. Use %strivia stop to end it first.", p), nil
	case errors.Is(err, session.ErrNotFound):
		return "ℹ️ No game is running in this channel.", nil
	case errors.Is(err, session.ErrNoOpenItem):
		return "ℹ️ No question is open right now.", nil
	case errors.Is(err, session.ErrSessionEnded):
		return "ℹ️ The game was stopped before it started.", nil
	case errors.Is(err, session.ErrUnknownKind):
		return h.help(), nil
	case errors.Is(err, questions.ErrGenerationFailed):
		var genErr *questions.GenerationError
		if errors.As(err, &genErr) {
			log.Warn().Str("reason", genErr.Reason).Int("raw_len", len(genErr.Raw)).Msg("Generation failed for start command")
		}
		return "❌ I couldn't come up with questions for that. Please try again, maybe with a different topic.", nil
	}
	return "❌ Something went wrong, please try again later.", err
}

func (h *GameHandler) help() string {
	p := h.prefix
	var b strings.Builder
	b.WriteString("🎮 Games\n")
	for _, k := range h.kinds.List() {
		fmt.Fprintf(&b, "• %s%s start <topic> [easy|medium|hard] [count]: %s\n", p, k.Command(), k.Description())
	}
	fmt.Fprintf(&b, "\n%sjeopardy answer <text> answers without \"what is\"\n", p)
	fmt.Fprintf(&b, "%strivia stop, %strivia skip, %strivia status\n", p, p, p)
	fmt.Fprintf(&b, "%strivia top, %strivia me", p, p)
	return b.String()
}
