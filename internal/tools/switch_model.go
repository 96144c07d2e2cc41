package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/emanueleielo/parrotgate/internal/router"
	"github.com/emanueleielo/parrotgate/internal/tierrouter"
)

// tierLister is the subset of *tierrouter.Router the switch_model tool
// needs, kept narrow so tests can fake it without a real provider.
type tierLister interface {
	HasTier(name string) bool
	TierNames() []string
}

// SwitchModelTool lets the agent move its own conversation thread to a
// different configured model tier, persisting the choice via
// tierrouter.SessionTiers so it survives past this single reply.
type SwitchModelTool struct {
	tiers    tierLister
	sessions *tierrouter.SessionTiers
	threads  router.ThreadIdentifier
}

func NewSwitchModelTool(tiers tierLister, sessions *tierrouter.SessionTiers, threads router.ThreadIdentifier) *SwitchModelTool {
	return &SwitchModelTool{tiers: tiers, sessions: sessions, threads: threads}
}

func (t *SwitchModelTool) Name() string { return "switch_model" }

func (t *SwitchModelTool) Description() string {
	return "Switch this conversation to a different model tier, or reset to the default tier."
}

func (t *SwitchModelTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tier": map[string]any{
				"type":        "string",
				"description": `Tier name to switch to, or "default" to reset.`,
			},
		},
		"required": []string{"tier"},
	}
}

func (t *SwitchModelTool) Execute(ctx context.Context, args map[string]any) *Result {
	tier, _ := args["tier"].(string)
	tier = strings.TrimSpace(tier)
	if tier == "" {
		return ErrorResult("tier is required")
	}

	ic, ok := router.InvocationContextFromContext(ctx)
	if !ok {
		return ErrorResult("switch_model can only be used from within a conversation")
	}
	threadID := t.threads.ThreadID(ic.Channel, ic.ChatID)

	if strings.EqualFold(tier, "default") {
		if err := t.sessions.ResetActiveTier(threadID); err != nil {
			return ErrorResult(fmt.Sprintf("could not reset tier: %v", err)).WithError(err)
		}
		return NewResult("Switched back to the default model tier.").WithTierOverride("")
	}

	if !t.tiers.HasTier(tier) {
		return ErrorResult(fmt.Sprintf("unknown tier %q; available tiers: %s", tier, strings.Join(t.tiers.TierNames(), ", ")))
	}
	if err := t.sessions.SetActiveTier(threadID, tier); err != nil {
		return ErrorResult(fmt.Sprintf("could not switch tier: %v", err)).WithError(err)
	}
	return NewResult(fmt.Sprintf("Switched to model tier %q for this conversation.", tier)).WithTierOverride(tier)
}
