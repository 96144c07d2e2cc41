// Package discord adapts the Discord Bot API to the host's abstract
// Channel contract over a persistent gateway connection.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/emanueleielo/parrotgate/internal/channels"
	"github.com/emanueleielo/parrotgate/internal/router"
)

// Channel is the Discord channel adapter.
type Channel struct {
	*channels.BaseChannel
	session   *discordgo.Session
	botUserID string
}

// New builds a Discord Channel authenticated with token.
func New(token string, allowedUsers []string) (*Channel, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: creating session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	return &Channel{
		BaseChannel: channels.NewBaseChannel("discord", allowedUsers),
		session:     session,
	}, nil
}

// Start opens the gateway connection and begins receiving events.
func (c *Channel) Start(ctx context.Context) error {
	c.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		c.handleMessage(ctx, m)
	})
	if err := c.session.Open(); err != nil {
		return fmt.Errorf("discord: opening session: %w", err)
	}
	if c.session.State != nil && c.session.State.User != nil {
		c.botUserID = c.session.State.User.ID
	}
	c.SetRunning(true)
	return nil
}

// Stop closes the gateway connection.
func (c *Channel) Stop(_ context.Context) error {
	c.SetRunning(false)
	return c.session.Close()
}

func (c *Channel) handleMessage(ctx context.Context, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot || m.Author.ID == c.botUserID {
		return
	}

	isPrivate := m.GuildID == ""

	env := router.Envelope{
		Channel:   "discord",
		ChatID:    m.ChannelID,
		UserID:    m.Author.ID,
		UserName:  m.Author.Username,
		Text:      m.Content,
		IsPrivate: isPrivate,
		MessageID: m.ID,
	}

	if strings.TrimSpace(env.Text) == "" {
		return
	}
	if !c.IsAllowed(env.UserID) {
		slog.Debug("discord: sender not allowed", "userId", env.UserID)
		return
	}

	resp := c.Dispatch(ctx, env)
	if resp == nil {
		return
	}
	if _, err := c.Send(ctx, channels.OutboundMessage{ChatID: env.ChatID, Text: resp.Text, ReplyToMessageID: env.MessageID}); err != nil {
		slog.Error("discord: failed to send response", "error", err)
	}
}

// Send delivers a plain-text message, replying to ReplyToMessageID
// when set.
func (c *Channel) Send(_ context.Context, msg channels.OutboundMessage) (channels.SentMessage, error) {
	if msg.ReplyToMessageID != "" {
		sent, err := c.session.ChannelMessageSendReply(msg.ChatID, msg.Text, &discordgo.MessageReference{
			MessageID: msg.ReplyToMessageID,
			ChannelID: msg.ChatID,
		})
		if err != nil {
			return channels.SentMessage{}, err
		}
		return channels.SentMessage{MessageID: sent.ID}, nil
	}
	sent, err := c.session.ChannelMessageSend(msg.ChatID, msg.Text)
	if err != nil {
		return channels.SentMessage{}, err
	}
	return channels.SentMessage{MessageID: sent.ID}, nil
}

// SendFile uploads a local file as an attachment.
func (c *Channel) SendFile(_ context.Context, chatID, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("discord: opening %s: %w", path, err)
	}
	defer f.Close()

	_, err = c.session.ChannelFileSendWithMessage(chatID, caption, filepath.Base(path), f)
	return err
}
