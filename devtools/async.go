package devtools

import "context"

// Future is the pending result of an operation started with Async.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Async runs op in its own goroutine and returns its pending result. The
// operation receives ctx, so canceling ctx stops it.
//
//	f := devtools.Async(ctx, client.List)
//	// ...
//	targets, err := f.Wait(ctx)
func Async[T any](ctx context.Context, op func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = op(ctx)
	}()
	return f
}

// Done returns a channel that is closed once the operation has finished.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation finishes or ctx is done, whichever happens
// first. In the latter case the operation keeps running and ctx.Err() is
// returned.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Callback runs op in its own goroutine and calls cb exactly once with its
// result.
func Callback[T any](ctx context.Context, op func(context.Context) (T, error), cb func(T, error)) {
	go func() {
		cb(op(ctx))
	}()
}
