package refresh

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTimeout bounds a single refresh exchange.
const DefaultTimeout = 5 * time.Second

// Group collapses concurrent refreshes for the same key into one call. The
// call runs on a context detached from any single waiter and bounded by the
// group timeout, so a waiter that gives up does not cancel it for the rest.
type Group[T any] struct {
	sf      singleflight.Group
	timeout time.Duration
}

// NewGroup constructs a Group.
func NewGroup[T any](timeout time.Duration) *Group[T] {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Group[T]{timeout: timeout}
}

// Do runs fn once per key at a time. Waiters whose ctx ends first are
// abandoned with ctx.Err(); the in-flight call still completes and clears.
func (g *Group[T]) Do(ctx context.Context, key string, fn func(context.Context) (T, error)) (T, bool, error) {
	ch := g.sf.DoChan(key, func() (interface{}, error) {
		runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.timeout)
		defer cancel()
		return fn(runCtx)
	})
	var zero T
	select {
	case <-ctx.Done():
		return zero, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Shared, res.Err
		}
		v, _ := res.Val.(T)
		return v, res.Shared, nil
	}
}
