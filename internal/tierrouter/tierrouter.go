// Package tierrouter multiplexes one logical provider over several
// underlying tiers, picking which tier answers each generation from a
// task-local context value rather than from caller-supplied state.
//
// Grounded on the original RoutingChatModel: tools are bound once on
// every tier eagerly (binding is expensive; tier switching must be
// O(1)), and the active tier is a context.Context value inherited by
// concurrent work spawned from the same invocation — Go's native
// equivalent of the source's ContextVar.
package tierrouter

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/emanueleielo/parrotgate/internal/providers"
)

type tierKey struct{}

// WithTier returns a context carrying the named active tier. An empty
// name clears the override (the default tier answers instead).
func WithTier(ctx context.Context, tier string) context.Context {
	return context.WithValue(ctx, tierKey{}, tier)
}

// TierFromContext returns the active tier name, or "" if unset.
func TierFromContext(ctx context.Context) string {
	v, _ := ctx.Value(tierKey{}).(string)
	return v
}

// TierSpec names one tier's underlying provider and the label shown in
// the system-message annotation.
type TierSpec struct {
	Label    string
	Provider providers.Provider
}

// boundTier is a tier with tools already bound to its provider.
type boundTier struct {
	label string
	prov  providers.Provider
	tools []providers.ToolDefinition
}

// Router presents a single logical provider over N configured tiers.
type Router struct {
	defaultTier string
	tiers       map[string]*boundTier
}

// New constructs a Router over the given tier specs. defaultTier must
// be a key of tiers.
func New(defaultTier string, tiers map[string]TierSpec) (*Router, error) {
	if defaultTier == "" {
		return nil, fmt.Errorf("tierrouter: default tier must be non-empty")
	}
	if _, ok := tiers[defaultTier]; !ok {
		return nil, fmt.Errorf("tierrouter: default tier %q not present in tiers", defaultTier)
	}
	r := &Router{defaultTier: defaultTier, tiers: make(map[string]*boundTier, len(tiers))}
	for name, spec := range tiers {
		r.tiers[name] = &boundTier{label: spec.Label, prov: spec.Provider}
	}
	return r, nil
}

// BindTools binds the given tool set on every configured tier eagerly.
// Tier switching after this call is O(1): no further binding occurs
// per invocation.
func (r *Router) BindTools(tools []providers.ToolDefinition) {
	for _, bt := range r.tiers {
		bt.tools = tools
	}
}

// TierNames returns the configured tier names in a stable order, for
// the switch_model tool's allowlist error message.
func (r *Router) TierNames() []string {
	names := make([]string, 0, len(r.tiers))
	for name := range r.tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasTier reports whether name is a configured tier.
func (r *Router) HasTier(name string) bool {
	_, ok := r.tiers[name]
	return ok
}

func (r *Router) resolve(ctx context.Context) *boundTier {
	name := TierFromContext(ctx)
	if name == "" {
		return r.tiers[r.defaultTier]
	}
	if bt, ok := r.tiers[name]; ok {
		return bt
	}
	return r.tiers[r.defaultTier]
}

func (r *Router) activeTierName(ctx context.Context) string {
	name := TierFromContext(ctx)
	if name == "" || !r.HasTier(name) {
		return r.defaultTier
	}
	return name
}

// injectTierNote appends an idempotent annotation to the first system
// message of a fresh copy of messages, never mutating the caller's
// slice. If messages has no leading system message, one is not
// invented: the note is silently skipped, matching the source's
// behavior of only acting when the first message is a system message.
func injectTierNote(messages []providers.Message, tier, label string) []providers.Message {
	if len(messages) == 0 || messages[0].Role != providers.RoleSystem {
		return messages
	}
	note := fmt.Sprintf("\n\n[Current model: %s (tier: %s)]", label, tier)

	out := make([]providers.Message, len(messages))
	copy(out, messages)

	first := out[0]
	if strings.Contains(first.Content, "[Current model:") {
		// Idempotent: strip any prior note before appending the
		// current one, so repeated calls on the same logical system
		// message never accumulate duplicates.
		if idx := strings.Index(first.Content, "\n\n[Current model:"); idx >= 0 {
			first.Content = first.Content[:idx]
		}
	}
	first.Content += note
	out[0] = first
	return out
}

// Chat dispatches to the tier selected by ctx, annotating the first
// system message and forwarding to that tier's pre-bound provider.
func (r *Router) Chat(ctx context.Context, req providers.ChatRequest) (providers.ChatResponse, error) {
	bt := r.resolve(ctx)
	tier := r.activeTierName(ctx)

	annotated := req
	annotated.Messages = injectTierNote(req.Messages, tier, bt.label)
	if len(bt.tools) > 0 {
		annotated.Tools = bt.tools
	}
	return bt.prov.Chat(ctx, annotated)
}

// ChatStream is the streaming counterpart of Chat.
func (r *Router) ChatStream(ctx context.Context, req providers.ChatRequest) (<-chan providers.StreamChunk, error) {
	bt := r.resolve(ctx)
	tier := r.activeTierName(ctx)

	annotated := req
	annotated.Messages = injectTierNote(req.Messages, tier, bt.label)
	if len(bt.tools) > 0 {
		annotated.Tools = bt.tools
	}
	return bt.prov.ChatStream(ctx, annotated)
}
