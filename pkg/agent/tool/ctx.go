package tool

import "context"

// NotifyFunc is a function that posts a progress message during tool
// execution. Tools call this to report what they are doing in real time.
type NotifyFunc func(ctx context.Context, message string)

type contextKey struct{}

// WithNotify returns a new context that carries the given NotifyFunc.
func WithNotify(ctx context.Context, fn NotifyFunc) context.Context {
	return context.WithValue(ctx, contextKey{}, fn)
}

// Update calls the NotifyFunc stored in ctx with the given message.
// If no NotifyFunc is present in ctx, the call is a no-op.
func Update(ctx context.Context, message string) {
	if fn, ok := ctx.Value(contextKey{}).(NotifyFunc); ok {
		fn(ctx, message)
	}
}
