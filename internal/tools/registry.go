package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/emanueleielo/parrotgate/internal/providers"
	"github.com/emanueleielo/parrotgate/internal/telemetry"
)

// Registry is the set of tools bound into one agent loop.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the provider-facing schema for every registered
// tool, in a stable order.
func (r *Registry) Definitions() []providers.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]providers.ToolDefinition, 0, len(r.tools))
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := r.tools[name]
		defs = append(defs, providers.ToolDefinition{
			Type: "function",
			Function: providers.ToolFunctionSchema{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return defs
}

// Execute looks up call.Name, decodes its JSON arguments, and runs it.
// An unknown tool name or malformed argument JSON produces an error
// Result rather than a Go error, so the agent loop can feed it straight
// back to the model as a tool observation.
func (r *Registry) Execute(ctx context.Context, call providers.ToolCall) *Result {
	ctx, span := telemetry.StartToolSpan(ctx, call.Name)
	defer span.End()

	tool, ok := r.Get(call.Name)
	if !ok {
		return ErrorResult(fmt.Sprintf("unknown tool %q", call.Name))
	}
	var args map[string]any
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return ErrorResult(fmt.Sprintf("invalid arguments for tool %q: %v", call.Name, err))
		}
	}
	return tool.Execute(ctx, args)
}
