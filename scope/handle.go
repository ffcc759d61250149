package scope

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
)

// State is the lifecycle position of a spawned task.
// Transitions only move forward: Submitted -> Running -> Succeeded|Failed.
// A task whose scope is cancelled while it waits for a concurrency slot
// never runs and goes straight from Submitted to Failed.
type State int32

const (
	Submitted State = iota
	Running
	Succeeded
	Failed
)

func (st State) String() string {
	switch st {
	case Submitted:
		return "submitted"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether st is a final state.
func (st State) Terminal() bool { return st == Succeeded || st == Failed }

var errNilTask = errors.New("nil task")

// Handle is a single-use reference to the eventual result of a task started
// with Spawn. The first successful Await (or Join) consumes it.
type Handle[T any] struct {
	state    atomic.Int32
	consumed atomic.Bool
	done     chan struct{}

	// written once by the task goroutine before done is closed
	value T
	err   error
}

// Spawn starts fn as a task of s and returns its handle. The task counts
// toward s.Wait, the scope policy, limiter and observer like any task
// started with Go.
//
// With PanicAsError disabled a panicking task crashes the process and its
// handle never resolves.
func Spawn[T any](s *Scope, fn func(ctx context.Context) (T, error)) *Handle[T] {
	h := &Handle[T]{done: make(chan struct{})}
	if fn == nil {
		h.resolve(errNilTask, false)
		return h
	}
	s.start(func(ctx context.Context) error {
		h.state.Store(int32(Running))
		v, err := fn(ctx)
		h.value = v
		return err
	}, h.resolve)
	return h
}

// resolve has the signature of Scope.start's done callback; a panic is
// already carried by err as a *PanicError.
func (h *Handle[T]) resolve(err error, _ bool) {
	h.err = err
	if err != nil {
		h.state.Store(int32(Failed))
	} else {
		h.state.Store(int32(Succeeded))
	}
	close(h.done)
}

// State returns the current lifecycle state of the task.
func (h *Handle[T]) State() State { return State(h.state.Load()) }

// Done is closed once the task has resolved.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Await blocks until the task resolves or ctx is done. A task failure is
// returned wrapped in ErrTaskFailed. If ctx ends first, ctx.Err() is
// returned and the handle stays unconsumed.
func (h *Handle[T]) Await(ctx context.Context) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if h.consumed.Load() {
		return zero, ErrHandleConsumed
	}
	select {
	case <-h.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if !h.consumed.CompareAndSwap(false, true) {
		return zero, ErrHandleConsumed
	}
	if h.err != nil {
		return zero, fmt.Errorf("%w: %w", ErrTaskFailed, h.err)
	}
	return h.value, nil
}
