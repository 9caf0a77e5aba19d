package retry

import "context"

type notifyKey struct{}

// WithNotify returns a context carrying a callback invoked before each retry
// sleep, in addition to the policy's own OnRetry hook. The orchestrator uses
// this to record retrying transitions without owning the policy that the
// executors run under.
func WithNotify(ctx context.Context, fn func(attempt int, err error)) context.Context {
	return context.WithValue(ctx, notifyKey{}, fn)
}

func notifyFrom(ctx context.Context) func(int, error) {
	fn, _ := ctx.Value(notifyKey{}).(func(attempt int, err error))
	return fn
}
