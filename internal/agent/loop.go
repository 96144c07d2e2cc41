// Package agent implements the host's external-agent collaborator: a
// bounded think-act-observe loop over a tierrouter.Router and a
// tools.Registry, exposing exactly what the router and scheduler need
// from it — a single Invoke method — rather than a richer run-event
// surface.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/emanueleielo/parrotgate/internal/providers"
	"github.com/emanueleielo/parrotgate/internal/store"
	"github.com/emanueleielo/parrotgate/internal/telemetry"
	"github.com/emanueleielo/parrotgate/internal/tierrouter"
	"github.com/emanueleielo/parrotgate/internal/tools"
)

// Chatter is the subset of tierrouter.Router the loop depends on.
type Chatter interface {
	Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error)
}

// defaultMaxIterations bounds the think-act-observe cycle so a
// misbehaving tool loop can never run forever.
const defaultMaxIterations = 8

// Loop is one external agent: a model behind a Chatter plus a tool
// registry, with per-thread conversation history persisted to a
// document store so restarts don't lose context.
type Loop struct {
	chat          Chatter
	toolRegistry  *tools.Registry
	systemPrompt  string
	maxIterations int
	temperature   float64
	maxTokens     int

	history   *store.Store
	historyMu sync.Mutex
}

// Config configures a new Loop.
type Config struct {
	Chat          Chatter
	Tools         *tools.Registry
	SystemPrompt  string
	History       *store.Store
	MaxIterations int
	Temperature   float64
	MaxTokens     int
}

// New builds a Loop.
func New(cfg Config) *Loop {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxIterations
	}
	return &Loop{
		chat:          cfg.Chat,
		toolRegistry:  cfg.Tools,
		systemPrompt:  cfg.SystemPrompt,
		maxIterations: maxIter,
		temperature:   cfg.Temperature,
		maxTokens:     cfg.MaxTokens,
		history:       cfg.History,
	}
}

const historyKeyPrefix = "history_"

func (l *Loop) loadHistory(threadID string) []providers.Message {
	if l.history == nil {
		return nil
	}
	raw := l.history.Get(historyKeyPrefix+threadID, nil)
	if raw == nil {
		return nil
	}
	// Stored as JSON because the document store's value type is
	// schema-less; round-trip through the provider Message shape.
	encoded, err := json.Marshal(raw)
	if err != nil {
		return nil
	}
	var msgs []providers.Message
	if err := json.Unmarshal(encoded, &msgs); err != nil {
		slog.Warn("agent: discarding unreadable history", "threadId", threadID, "error", err)
		return nil
	}
	return msgs
}

func (l *Loop) saveHistory(threadID string, msgs []providers.Message) {
	if l.history == nil {
		return
	}
	if err := l.history.Set(historyKeyPrefix+threadID, msgs); err != nil {
		slog.Error("agent: failed to persist history", "threadId", threadID, "error", err)
	}
}

// Invoke runs one think-act-observe cycle for threadID's conversation:
// the new input is appended to that thread's persisted history, the
// model is called, and any tool calls it requests are executed and
// fed back until it produces a plain text reply or maxIterations is
// hit.
func (l *Loop) Invoke(ctx context.Context, threadID string, input providers.Message) (string, error) {
	ctx, span := telemetry.StartAgentSpan(ctx, threadID)
	defer span.End()

	l.historyMu.Lock()
	defer l.historyMu.Unlock()

	history := l.loadHistory(threadID)
	history = append(history, input)

	var defs []providers.ToolDefinition
	if l.toolRegistry != nil {
		defs = l.toolRegistry.Definitions()
	}

	for i := 0; i < l.maxIterations; i++ {
		messages := make([]providers.Message, 0, len(history)+1)
		if l.systemPrompt != "" {
			messages = append(messages, providers.Message{Role: providers.RoleSystem, Content: l.systemPrompt})
		}
		messages = append(messages, history...)

		resp, err := l.chat.Chat(ctx, providers.ChatRequest{
			Messages:    messages,
			Tools:       defs,
			Temperature: l.temperature,
			MaxTokens:   l.maxTokens,
		})
		if err != nil {
			return "", fmt.Errorf("agent: chat request failed: %w", err)
		}

		history = append(history, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			l.saveHistory(threadID, history)
			return resp.Message.Content, nil
		}

		for _, call := range resp.Message.ToolCalls {
			result := l.toolRegistry.Execute(ctx, call)
			if result.TierOverride != nil {
				// A tier switch takes effect immediately: the very next
				// chat call in this same Invoke, not just a later turn.
				ctx = tierrouter.WithTier(ctx, *result.TierOverride)
			}
			history = append(history, providers.Message{
				Role:       providers.RoleTool,
				Content:    result.ForLLM,
				ToolCallID: call.ID,
			})
		}
	}

	l.saveHistory(threadID, history)
	return "", fmt.Errorf("agent: exceeded %d tool-call iterations without a final answer", l.maxIterations)
}
