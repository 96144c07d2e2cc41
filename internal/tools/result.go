// Package tools implements the agent-facing tool records: cron
// scheduling, tier switching, host-command execution, and web fetch.
package tools

import "context"

// Result is the unified return type from tool execution.
type Result struct {
	ForLLM  string `json:"for_llm"`
	ForUser string `json:"for_user,omitempty"`
	Silent  bool   `json:"silent"`
	IsError bool   `json:"is_error"`
	Async   bool   `json:"async"`
	Err     error  `json:"-"`

	// TierOverride, when non-nil, asks the calling loop to switch the
	// model tier used for the rest of this turn's generations: the
	// empty string means "back to default". A tool sets this rather
	// than mutating the loop's context itself, since context.Context is
	// immutable and the loop owns the ctx threaded through remaining
	// iterations.
	TierOverride *string `json:"-"`
}

func NewResult(forLLM string) *Result {
	return &Result{ForLLM: forLLM}
}

func ErrorResult(message string) *Result {
	return &Result{ForLLM: message, IsError: true}
}

func UserResult(content string) *Result {
	return &Result{ForLLM: content, ForUser: content}
}

func (r *Result) WithError(err error) *Result {
	r.Err = err
	return r
}

func (r *Result) WithTierOverride(tier string) *Result {
	r.TierOverride = &tier
	return r
}

// Tool is one agent-invocable capability.
type Tool interface {
	Name() string
	Description() string
	Parameters() map[string]any
	Execute(ctx context.Context, args map[string]any) *Result
}
