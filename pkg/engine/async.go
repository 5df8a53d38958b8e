package engine

import "context"

// Result carries a session outcome off its worker goroutine.
type Result[T any] struct {
	Value T
	Err   error
}

// Go runs fn on a background worker and delivers the outcome on the
// returned channel. Sessions block on OS calls, DNS, and probes, so they
// never run on the caller's goroutine; the caller stays free to watch for
// signals or render progress while waiting.
//
// The channel is buffered: an abandoned session cannot leak its worker.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) <-chan Result[T] {
	out := make(chan Result[T], 1)
	go func() {
		v, err := fn(ctx)
		out <- Result[T]{Value: v, Err: err}
	}()
	return out
}
