// Package errgroup provides an adapter that mimics golang.org/x/sync/errgroup
// semantics using the local scope implementation. It enables incremental
// migration of fan-out code to scope handles.
package errgroup

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/NetPo4ki/go-fanout/scope"
)

// Group is an errgroup-like wrapper over scope.Scope (FailFast).
type Group struct {
	s   *scope.Scope
	ctx context.Context
	sem *semaphore.Weighted
}

// WithContext creates a Group bound to ctx. The returned context is canceled
// the first time a function passed to Go returns a non-nil error or the first
// time Wait returns, whichever occurs first.
func WithContext(ctx context.Context) (*Group, context.Context) {
	s := scope.New(ctx, scope.FailFast)
	g := &Group{s: s, ctx: s.Context()}
	return g, g.ctx
}

// SetLimit limits the number of active goroutines in this group to at most n.
// A negative value indicates no limit. It must not be called while goroutines
// are active.
func (g *Group) SetLimit(n int) {
	if n < 0 {
		g.sem = nil
		return
	}
	g.sem = semaphore.NewWeighted(int64(n))
}

// Go starts a function. It blocks until the new goroutine can be added
// without exceeding the limit set by SetLimit.
func (g *Group) Go(f func() error) {
	if f == nil {
		return
	}
	if g.sem != nil {
		// Background: like errgroup, a full group blocks the caller regardless of cancellation.
		_ = g.sem.Acquire(context.Background(), 1)
	}
	g.spawn(f)
}

// TryGo starts f only if that does not exceed the limit. It reports whether
// f was started.
func (g *Group) TryGo(f func() error) bool {
	if f == nil {
		return false
	}
	if g.sem != nil && !g.sem.TryAcquire(1) {
		return false
	}
	g.spawn(f)
	return true
}

func (g *Group) spawn(f func() error) {
	sem := g.sem
	g.s.Go(func(context.Context) error {
		if sem != nil {
			defer sem.Release(1)
		}
		return f()
	})
}

// Wait blocks until all functions have returned, then cancels the group
// context. It returns the first non-nil error (FailFast semantics) or nil on
// success.
func (g *Group) Wait() error {
	return g.s.Wait()
}
