package tools

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/emanueleielo/parrotgate/internal/store"
	"github.com/emanueleielo/parrotgate/internal/tierrouter"
)

type fakeTierLister struct {
	names []string
}

func (f fakeTierLister) HasTier(name string) bool {
	for _, n := range f.names {
		if n == name {
			return true
		}
	}
	return false
}

func (f fakeTierLister) TierNames() []string { return f.names }

type fakeThreadIdentifier struct{}

func (fakeThreadIdentifier) ThreadID(channel, chatID string) string { return channel + "_" + chatID }
func (fakeThreadIdentifier) Reset(channel, chatID string) error     { return nil }

func newTestSessionTiers(t *testing.T) *tierrouter.SessionTiers {
	t.Helper()
	doc, err := store.Open(filepath.Join(t.TempDir(), "tiers.json"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	return tierrouter.NewSessionTiers(doc)
}

func TestSwitchModelToolSwitchesAndPersists(t *testing.T) {
	sessions := newTestSessionTiers(t)
	tool := NewSwitchModelTool(fakeTierLister{names: []string{"fast", "standard"}}, sessions, fakeThreadIdentifier{})

	ctx := withInvocation("telegram", "chat1")
	res := tool.Execute(ctx, map[string]any{"tier": "fast"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if got := sessions.ActiveTier("telegram_chat1"); got != "fast" {
		t.Fatalf("ActiveTier = %q, want fast", got)
	}
	if res.TierOverride == nil || *res.TierOverride != "fast" {
		t.Fatalf("TierOverride = %v, want pointer to \"fast\" so the caller's live turn switches immediately", res.TierOverride)
	}
}

func TestSwitchModelToolRejectsUnknownTier(t *testing.T) {
	sessions := newTestSessionTiers(t)
	tool := NewSwitchModelTool(fakeTierLister{names: []string{"standard"}}, sessions, fakeThreadIdentifier{})

	res := tool.Execute(withInvocation("telegram", "chat1"), map[string]any{"tier": "ghost"})
	if !res.IsError {
		t.Fatalf("expected error for unknown tier")
	}
}

func TestSwitchModelToolResetsToDefault(t *testing.T) {
	sessions := newTestSessionTiers(t)
	tool := NewSwitchModelTool(fakeTierLister{names: []string{"fast"}}, sessions, fakeThreadIdentifier{})
	ctx := withInvocation("telegram", "chat1")

	tool.Execute(ctx, map[string]any{"tier": "fast"})
	res := tool.Execute(ctx, map[string]any{"tier": "default"})
	if res.IsError {
		t.Fatalf("unexpected error: %s", res.ForLLM)
	}
	if got := sessions.ActiveTier("telegram_chat1"); got != "" {
		t.Fatalf("ActiveTier after reset = %q, want empty", got)
	}
	if res.TierOverride == nil || *res.TierOverride != "" {
		t.Fatalf("TierOverride after reset = %v, want pointer to \"\"", res.TierOverride)
	}
}

func TestSwitchModelToolRequiresInvocationContext(t *testing.T) {
	sessions := newTestSessionTiers(t)
	tool := NewSwitchModelTool(fakeTierLister{names: []string{"fast"}}, sessions, fakeThreadIdentifier{})
	res := tool.Execute(context.Background(), map[string]any{"tier": "fast"})
	if !res.IsError {
		t.Fatalf("expected error without invocation context")
	}
}
