// Package channels defines the abstract channel contract consumed by
// the router and the scheduler, plus a BaseChannel helper adapters
// embed for shared allowlist/send bookkeeping.
//
// The admission model is deliberately simple: a single per-channel
// allowlist rather than separate per-peer-kind DM/group policies.
package channels

import (
	"context"
	"strings"
	"sync"

	"github.com/emanueleielo/parrotgate/internal/router"
)

// OutboundMessage is what the router/scheduler hands to a channel to
// deliver back to a chat surface.
type OutboundMessage struct {
	ChatID              string
	Text                string
	ReplyToMessageID    string
	DisableNotification bool
}

// SentMessage is what Send returns on success.
type SentMessage struct {
	MessageID string
}

// MessageHandler is invoked per admitted inbound event; a nil
// response means nothing should be sent back.
type MessageHandler func(ctx context.Context, env router.Envelope) *router.AgentResponse

// Channel is the abstract send/receive surface every chat adapter
// implements.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Send(ctx context.Context, msg OutboundMessage) (SentMessage, error)
	SendFile(ctx context.Context, chatID, path, caption string) error
	OnMessage(fn MessageHandler)
	IsRunning() bool
}

// BaseChannel carries the bookkeeping common to every adapter: the
// channel's name, an optional sender allowlist, running-state, and the
// single registered message handler.
type BaseChannel struct {
	name         string
	allowedUsers []string
	running      bool
	mu           sync.RWMutex
	handler      MessageHandler
}

// NewBaseChannel builds a BaseChannel for name with the given allowlist.
func NewBaseChannel(name string, allowedUsers []string) *BaseChannel {
	return &BaseChannel{name: name, allowedUsers: allowedUsers}
}

func (b *BaseChannel) Name() string { return b.name }

func (b *BaseChannel) IsRunning() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *BaseChannel) SetRunning(v bool) {
	b.mu.Lock()
	b.running = v
	b.mu.Unlock()
}

// HasAllowList reports whether this channel restricts senders at all.
func (b *BaseChannel) HasAllowList() bool { return len(b.allowedUsers) > 0 }

// IsAllowed reports whether senderID may use this channel. An empty
// allowlist means unrestricted. Entries and the sender id are compared
// case-sensitively but with a leading "@" stripped on both sides, so
// a username-style allowlist entry matches a raw id or vice versa.
func (b *BaseChannel) IsAllowed(senderID string) bool {
	if !b.HasAllowList() {
		return true
	}
	candidate := strings.TrimPrefix(senderID, "@")
	for _, entry := range b.allowedUsers {
		if strings.TrimPrefix(entry, "@") == candidate {
			return true
		}
	}
	return false
}

// OnMessage registers the single handler invoked per admitted event.
func (b *BaseChannel) OnMessage(fn MessageHandler) {
	b.mu.Lock()
	b.handler = fn
	b.mu.Unlock()
}

// Dispatch calls the registered handler, if any, returning its result.
func (b *BaseChannel) Dispatch(ctx context.Context, env router.Envelope) *router.AgentResponse {
	b.mu.RLock()
	fn := b.handler
	b.mu.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(ctx, env)
}

// Truncate shortens s to maxLen runes, appending "..." when it does.
func Truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen]) + "..."
}
