package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"wompbot/internal/events"
	"wompbot/internal/handler"
)

const platformTelegram = "telegram"

// Telegram is the Telegram front end. It also notifies Telegram chats of
// engine events.
type Telegram struct {
	bot     *tele.Bot
	handle  handler.HandlerFunc
	out     *outbox
	timeout time.Duration
}

// NewTelegram creates a Telegram front end using long polling.
func NewTelegram(token string, pollTimeout time.Duration, h handler.HandlerFunc, timeout time.Duration) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}

	b, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	t := &Telegram{
		bot:     b,
		handle:  h,
		timeout: timeout,
	}
	t.out = newOutbox(platformTelegram, 0, func(chatID, text string) error {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid chat id %q: %w", chatID, err)
		}
		_, err = b.Send(tele.ChatID(id), text)
		return err
	})

	// Unregistered commands fall through to OnText, so this sees every
	// game command as well as answers.
	b.Handle(tele.OnText, t.onText)
	return t, nil
}

// Notifier returns the events.Notifier that posts to Telegram chats.
func (t *Telegram) Notifier() events.Notifier {
	return t.out
}

// Start starts polling. It blocks until Stop is called.
func (t *Telegram) Start() {
	log.Info().Msg("Starting Telegram bot...")
	t.bot.Start()
}

// Stop stops polling and flushes pending messages.
func (t *Telegram) Stop() {
	log.Info().Msg("Stopping Telegram bot...")
	t.bot.Stop()
	t.out.close()
}

func (t *Telegram) onText(c tele.Context) error {
	in, ok := telegramInbound(c.Message())
	if !ok {
		return nil
	}
	chatID := strconv.FormatInt(c.Chat().ID, 10)
	in.Notify = func(text string) { t.out.enqueue(chatID, text) }

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	reply, _ := t.handle(ctx, in)
	if reply != "" {
		t.out.enqueue(chatID, reply)
	}
	return nil
}

func telegramInbound(m *tele.Message) (handler.Inbound, bool) {
	if m == nil || m.Sender == nil || m.Chat == nil || m.Sender.IsBot {
		return handler.Inbound{}, false
	}

	chatID := Qualify(platformTelegram, strconv.FormatInt(m.Chat.ID, 10))
	return handler.Inbound{
		Platform:    platformTelegram,
		ChannelID:   chatID,
		GuildID:     chatID,
		UserID:      strconv.FormatInt(m.Sender.ID, 10),
		DisplayName: telegramName(m.Sender),
		Text:        m.Text,
		Timestamp:   m.Time(),
		Private:     m.Chat.Type == tele.ChatPrivate,
	}, true
}

func telegramName(u *tele.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name != "" {
		return name
	}
	if u.Username != "" {
		return u.Username
	}
	return strconv.FormatInt(u.ID, 10)
}
