package router

import "context"

type invocationCtxKey struct{}

// InvocationContext is the task-local (channel, chatId) pair the
// schedule_task tool reads to learn where a newly scheduled task's
// results should eventually be delivered.
type InvocationContext struct {
	Channel string
	ChatID  string
}

// WithInvocationContext attaches ic to ctx, inherited by any work
// spawned from it.
func WithInvocationContext(ctx context.Context, ic InvocationContext) context.Context {
	return context.WithValue(ctx, invocationCtxKey{}, ic)
}

// InvocationContextFromContext retrieves the InvocationContext
// attached by WithInvocationContext, if any.
func InvocationContextFromContext(ctx context.Context) (InvocationContext, bool) {
	ic, ok := ctx.Value(invocationCtxKey{}).(InvocationContext)
	return ic, ok
}
