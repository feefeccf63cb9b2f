package bot

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"wompbot/internal/events"
	"wompbot/internal/handler"
)

const platformDiscord = "discord"

// Discord is the Discord front end. It also notifies Discord channels of
// engine events.
type Discord struct {
	session *discordgo.Session
	handle  handler.HandlerFunc
	out     *outbox
	timeout time.Duration
}

// NewDiscord creates a Discord front end. Call Open to connect.
func NewDiscord(token string, h handler.HandlerFunc, timeout time.Duration) (*Discord, error) {
	if token == "" {
		return nil, fmt.Errorf("discord token is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	s.Identify.Intents = discordgo.IntentGuildMessages |
		discordgo.IntentDirectMessages |
		discordgo.IntentMessageContent

	d := &Discord{
		session: s,
		handle:  h,
		timeout: timeout,
	}
	d.out = newOutbox(platformDiscord, 0, func(channelID, text string) error {
		_, err := s.ChannelMessageSend(channelID, text)
		return err
	})
	s.AddHandler(d.onMessage)
	return d, nil
}

// Notifier returns the events.Notifier that posts to Discord channels.
func (d *Discord) Notifier() events.Notifier {
	return d.out
}

// Open connects to the gateway.
func (d *Discord) Open() error {
	log.Info().Msg("Connecting to Discord...")
	if err := d.session.Open(); err != nil {
		return fmt.Errorf("failed to open discord session: %w", err)
	}
	return nil
}

// Close flushes pending messages and disconnects.
func (d *Discord) Close() error {
	log.Info().Msg("Closing Discord session...")
	d.out.close()
	return d.session.Close()
}

func (d *Discord) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	selfID := ""
	if s.State != nil && s.State.User != nil {
		selfID = s.State.User.ID
	}
	in, ok := discordInbound(m, selfID)
	if !ok {
		return
	}
	in.Notify = func(text string) { d.out.enqueue(m.ChannelID, text) }

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	reply, _ := d.handle(ctx, in)
	if reply != "" {
		d.out.enqueue(m.ChannelID, reply)
	}
}

func discordInbound(m *discordgo.MessageCreate, selfID string) (handler.Inbound, bool) {
	if m == nil || m.Message == nil || m.Author == nil {
		return handler.Inbound{}, false
	}
	if m.Author.Bot || m.Author.ID == selfID {
		return handler.Inbound{}, false
	}

	channelID := Qualify(platformDiscord, m.ChannelID)
	guildID := channelID
	if m.GuildID != "" {
		guildID = Qualify(platformDiscord, m.GuildID)
	}

	return handler.Inbound{
		Platform:    platformDiscord,
		ChannelID:   channelID,
		GuildID:     guildID,
		UserID:      m.Author.ID,
		DisplayName: discordName(m),
		Text:        m.Content,
		Timestamp:   m.Timestamp,
		Private:     m.GuildID == "",
	}, true
}

func discordName(m *discordgo.MessageCreate) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
