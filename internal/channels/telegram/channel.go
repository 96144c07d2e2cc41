// Package telegram adapts the Telegram Bot API to the host's abstract
// Channel contract via long polling, using github.com/mymmrac/telego.
package telegram

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/emanueleielo/parrotgate/internal/channels"
	"github.com/emanueleielo/parrotgate/internal/media"
	"github.com/emanueleielo/parrotgate/internal/router"
	"github.com/emanueleielo/parrotgate/internal/transcription"
)

// Channel is the Telegram channel adapter.
type Channel struct {
	*channels.BaseChannel
	bot            *telego.Bot
	transcriber    *transcription.Client // optional; nil disables voice-note transcription
	pollCancel     context.CancelFunc
	pollDone       chan struct{}
}

// New builds a Telegram Channel authenticated with token.
func New(token string, allowedUsers []string, transcriber *transcription.Client) (*Channel, error) {
	bot, err := telego.NewBot(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: creating bot: %w", err)
	}
	return &Channel{
		BaseChannel: channels.NewBaseChannel("telegram", allowedUsers),
		bot:         bot,
		transcriber: transcriber,
	}, nil
}

// Start begins long polling and spawns the update-consumer goroutine.
func (c *Channel) Start(ctx context.Context) error {
	pollCtx, cancel := context.WithCancel(ctx)
	c.pollCancel = cancel
	c.pollDone = make(chan struct{})

	updates, err := c.bot.UpdatesViaLongPolling(pollCtx, &telego.GetUpdatesParams{
		Timeout:        30,
		AllowedUpdates: []string{"message"},
	})
	if err != nil {
		cancel()
		return fmt.Errorf("telegram: starting long polling: %w", err)
	}

	c.SetRunning(true)

	go func() {
		defer close(c.pollDone)
		for {
			select {
			case <-pollCtx.Done():
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				c.handleUpdate(pollCtx, update)
			}
		}
	}()

	return nil
}

// Stop cancels long polling and waits (bounded) for the consumer
// goroutine to drain.
func (c *Channel) Stop(ctx context.Context) error {
	c.SetRunning(false)
	if c.pollCancel != nil {
		c.pollCancel()
	}
	select {
	case <-c.pollDone:
	case <-time.After(10 * time.Second):
		slog.Warn("telegram: timed out waiting for poll loop to drain")
	case <-ctx.Done():
	}
	return nil
}

func (c *Channel) handleUpdate(ctx context.Context, update telego.Update) {
	message := update.Message
	if message == nil {
		return
	}
	if message.From == nil {
		return
	}

	isPrivate := message.Chat.Type == telego.ChatTypePrivate
	userID := strconv.FormatInt(message.From.ID, 10)

	env := router.Envelope{
		Channel:   "telegram",
		ChatID:    strconv.FormatInt(message.Chat.ID, 10),
		UserID:    userID,
		UserName:  message.From.Username,
		Text:      message.Text,
		IsPrivate: isPrivate,
		MessageID: strconv.Itoa(message.MessageID),
	}
	if env.UserName == "" {
		env.UserName = message.From.FirstName
	}

	if message.Voice != nil && c.transcriber != nil {
		if text, err := c.transcribeVoice(ctx, message.Voice.FileID); err == nil {
			env.Text = text
		} else {
			slog.Warn("telegram: voice transcription failed", "error", err)
		}
	}

	if len(message.Photo) > 0 {
		if b64, mime, err := c.downloadAndNormalizePhoto(ctx, message.Photo); err == nil {
			env.ImageBase64 = b64
			env.ImageMimeType = mime
			if message.Caption != "" {
				env.Text = message.Caption
			}
		} else {
			slog.Warn("telegram: photo download/normalize failed", "error", err)
		}
	}

	if strings.TrimSpace(env.Text) == "" && env.ImageBase64 == "" {
		return
	}

	if !c.IsAllowed(userID) {
		slog.Debug("telegram: sender not allowed", "userId", userID)
		return
	}

	resp := c.Dispatch(ctx, env)
	if resp == nil {
		return
	}
	if _, err := c.Send(ctx, channels.OutboundMessage{ChatID: env.ChatID, Text: resp.Text, ReplyToMessageID: env.MessageID}); err != nil {
		slog.Error("telegram: failed to send response", "error", err)
	}
}

func (c *Channel) transcribeVoice(ctx context.Context, fileID string) (string, error) {
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: fileID})
	if err != nil {
		return "", err
	}
	data, err := c.bot.DownloadFile(file.FilePath)
	if err != nil {
		return "", err
	}
	return c.transcriber.Transcribe(ctx, data, "voice.ogg", "audio/ogg")
}

func (c *Channel) downloadAndNormalizePhoto(ctx context.Context, sizes []telego.PhotoSize) (string, string, error) {
	largest := sizes[len(sizes)-1]
	file, err := c.bot.GetFile(ctx, &telego.GetFileParams{FileID: largest.FileID})
	if err != nil {
		return "", "", err
	}
	data, err := c.bot.DownloadFile(file.FilePath)
	if err != nil {
		return "", "", err
	}
	normalized, mime, err := media.NormalizeImage(data)
	if err != nil {
		return "", "", err
	}
	return base64.StdEncoding.EncodeToString(normalized), mime, nil
}

// Send delivers a plain-text message, replying to ReplyToMessageID
// when set.
func (c *Channel) Send(ctx context.Context, msg channels.OutboundMessage) (channels.SentMessage, error) {
	chatID, err := strconv.ParseInt(msg.ChatID, 10, 64)
	if err != nil {
		return channels.SentMessage{}, fmt.Errorf("telegram: invalid chat id %q: %w", msg.ChatID, err)
	}
	params := tu.Message(tu.ID(chatID), msg.Text)
	if msg.ReplyToMessageID != "" {
		if replyID, err := strconv.Atoi(msg.ReplyToMessageID); err == nil {
			params = params.WithReplyParameters(&telego.ReplyParameters{MessageID: replyID})
		}
	}
	if msg.DisableNotification {
		params = params.WithDisableNotification()
	}

	sent, err := c.bot.SendMessage(ctx, params)
	if err != nil {
		return channels.SentMessage{}, err
	}
	return channels.SentMessage{MessageID: strconv.Itoa(sent.MessageID)}, nil
}

// SendFile delivers a document from a local path.
func (c *Channel) SendFile(ctx context.Context, chatID, path, caption string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	doc := tu.Document(tu.ID(id), tu.FileFromDisk(path))
	if caption != "" {
		doc = doc.WithCaption(caption)
	}
	_, err = c.bot.SendDocument(ctx, doc)
	return err
}
