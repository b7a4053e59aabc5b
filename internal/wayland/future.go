package wayland

import "context"

// Future is a single pending reply from the compositor. Await pumps the event
// stream on the calling goroutine until the reply resolves it, so a blocking
// call site states its dependency on the protocol in its signature.
type Future[T any] struct {
	c    *Client
	done bool
	val  T
	err  error
}

func NewFuture[T any](c *Client) *Future[T] {
	return &Future[T]{c: c}
}

// Resolve completes the future with v. Later calls are ignored.
func (f *Future[T]) Resolve(v T) {
	if f.done {
		return
	}
	f.val = v
	f.done = true
}

// Fail completes the future with err. Later calls are ignored.
func (f *Future[T]) Fail(err error) {
	if f.done {
		return
	}
	f.err = err
	f.done = true
}

func (f *Future[T]) Done() bool {
	return f.done
}

// Await dispatches events until the future completes, the connection fails, or
// ctx expires.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	for !f.done {
		if err := f.c.Dispatch(ctx); err != nil {
			var zero T
			return zero, err
		}
	}
	return f.val, f.err
}
