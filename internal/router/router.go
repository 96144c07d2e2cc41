package router

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emanueleielo/parrotgate/internal/providers"
	"github.com/emanueleielo/parrotgate/internal/tierrouter"
)

// Agent is the external LLM-driven collaborator's invocation contract,
// as seen by the router: given a thread id and one formatted input
// message, produce a reply. Prompting, tool selection, and memory are
// entirely the agent's concern.
type Agent interface {
	Invoke(ctx context.Context, threadID string, input providers.Message) (string, error)
}

// ThreadIdentifier resolves a durable conversation thread id for a
// (channel, chatId) pair, the contract component H provides.
type ThreadIdentifier interface {
	ThreadID(channel, chatID string) string
	Reset(channel, chatID string) error
}

// ChannelConfig is the per-channel policy the router consults during
// admission and trigger detection.
type ChannelConfig struct {
	AllowedUsers []string // empty means unrestricted
	Trigger      string
}

func (c ChannelConfig) isAllowed(userID string) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, u := range c.AllowedUsers {
		if u == userID {
			return true
		}
	}
	return false
}

// TierResolver looks up the per-thread model tier selected via the
// switch_model tool. Optional: a Router with none configured always
// dispatches at the tier router's default.
type TierResolver interface {
	ActiveTier(threadID string) string
}

// Router implements the inbound-message handling algorithm: admission,
// reset, trigger-stripping, thread resolution, invocation, and
// session logging.
type Router struct {
	threads    ThreadIdentifier
	agent      Agent
	sessionDir string
	tiers      TierResolver
}

// New builds a Router over the given thread identifier and agent,
// logging session JSONL files under sessionDir.
func New(threads ThreadIdentifier, agent Agent, sessionDir string) *Router {
	return &Router{threads: threads, agent: agent, sessionDir: sessionDir}
}

// WithTierResolver attaches a per-thread tier resolver, letting
// switch_model selections persist across messages in the same thread.
func (r *Router) WithTierResolver(tiers TierResolver) *Router {
	r.tiers = tiers
	return r
}

// HandleMessage implements the router's 8-step algorithm. A nil
// return means nothing should be sent back to the channel (dropped,
// reset-only, or empty message).
func (r *Router) HandleMessage(ctx context.Context, env Envelope, cfg ChannelConfig) *AgentResponse {
	// 1. Admission.
	if !cfg.isAllowed(env.UserID) {
		slog.Warn("router: admission denied", "channel", env.Channel, "userId", env.UserID)
		return nil
	}

	// 2. Reset.
	if env.ResetSession {
		if err := r.threads.Reset(env.Channel, env.ChatID); err != nil {
			slog.Error("router: failed to reset thread", "error", err)
		}
		return nil
	}

	// 3. Trigger.
	cleanedText := env.Text
	if !env.IsPrivate {
		trigger := cfg.Trigger
		trimmed := strings.TrimSpace(env.Text)
		if trigger == "" || !strings.HasPrefix(strings.ToLower(trimmed), strings.ToLower(trigger)) {
			return nil
		}
		cleanedText = strings.TrimSpace(trimmed[len(trigger):])
	} else {
		cleanedText = strings.TrimSpace(env.Text)
	}

	// 4. Empty check.
	if cleanedText == "" && !env.HasImage() {
		return nil
	}

	// 5. Context propagation.
	ctx = WithInvocationContext(ctx, InvocationContext{Channel: env.Channel, ChatID: env.ChatID})

	// 6. Envelope -> agent input.
	threadID := r.threads.ThreadID(env.Channel, env.ChatID)
	input := formatInput(env, cleanedText)

	if r.tiers != nil {
		if tier := r.tiers.ActiveTier(threadID); tier != "" {
			ctx = tierrouter.WithTier(ctx, tier)
		}
	}

	r.logSession(threadID, "human", cleanedText, env.Channel, env.UserID)

	// 7. Invoke.
	reply, err := r.agent.Invoke(ctx, threadID, input)
	if err != nil {
		slog.Error("router: agent invocation failed", "threadId", threadID, "error", err)
		return &AgentResponse{Text: "Sorry, I encountered an error processing your message."}
	}

	// 8. Log + return.
	r.logSession(threadID, "ai", reply, env.Channel, "")
	return &AgentResponse{Text: reply}
}

// formatInput builds the provider-facing message as
// "[<ISO-UTC>] [<userName>]: <cleanedText>", a bare string unless
// an image is present, in which case it becomes a two-part content
// list (text, then a data-URL image).
func formatInput(env Envelope, cleanedText string) providers.Message {
	formatted := fmt.Sprintf("[%s] [%s]: %s", time.Now().UTC().Format(time.RFC3339), env.UserName, cleanedText)

	msg := providers.Message{Role: providers.RoleHuman, Content: formatted}
	if env.HasImage() {
		msg.Images = []providers.ImageContent{{
			MimeType: env.ImageMimeType,
			Data:     fmt.Sprintf("data:%s;base64,%s", env.ImageMimeType, env.ImageBase64),
			DataURL:  true,
		}}
	}
	return msg
}

type sessionLogEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
	Ts      string `json:"ts"`
	Channel string `json:"channel"`
	UserID  string `json:"user_id,omitempty"`
}

// logSession appends one JSON object per line to
// sessions/<threadId>.jsonl. Failures are logged, never propagated.
func (r *Router) logSession(threadID, role, content, channel, userID string) {
	if r.sessionDir == "" {
		return
	}
	if err := os.MkdirAll(r.sessionDir, 0o755); err != nil {
		slog.Error("router: cannot create session directory", "error", err)
		return
	}
	path := filepath.Join(r.sessionDir, threadID+".jsonl")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("router: cannot open session log", "path", path, "error", err)
		return
	}
	defer f.Close()

	entry := sessionLogEntry{Role: role, Content: content, Ts: time.Now().UTC().Format(time.RFC3339), Channel: channel, UserID: userID}
	data, err := json.Marshal(entry)
	if err != nil {
		slog.Error("router: cannot marshal session entry", "error", err)
		return
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		slog.Error("router: cannot write session entry", "error", err)
	}
}
