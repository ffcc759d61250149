package scope

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the result of one task collected by Join.
type Outcome[T any] struct {
	Index    int
	Value    T
	Err      error
	Panicked bool
}

func (o Outcome[T]) OK() bool { return o.Err == nil }

// Outcomes holds per-task results in the order the handles were given to Join.
type Outcomes[T any] []Outcome[T]

// Err joins the errors of all failed outcomes. It is nil when every task
// succeeded. Tasks are numbered from 1 in the message, Index+1.
func (outs Outcomes[T]) Err() error {
	var errs []error
	for _, o := range outs {
		if o.Err != nil {
			errs = append(errs, fmt.Errorf("task %d: %w", o.Index+1, o.Err))
		}
	}
	return errors.Join(errs...)
}

// Failed returns the outcomes that carry an error.
func (outs Outcomes[T]) Failed() Outcomes[T] {
	var out Outcomes[T]
	for _, o := range outs {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

// Values returns the value of every outcome, zero for failed ones.
func (outs Outcomes[T]) Values() []T {
	vals := make([]T, len(outs))
	for i, o := range outs {
		vals[i] = o.Value
	}
	return vals
}

// Join waits for every handle to resolve and collects their outcomes. A
// failing task does not stop the wait for the others. Join consumes the
// handles; if ctx ends first the unresolved outcomes carry ctx.Err().
func Join[T any](ctx context.Context, handles ...*Handle[T]) Outcomes[T] {
	if ctx == nil {
		ctx = context.Background()
	}
	outs := make(Outcomes[T], len(handles))
	for i, h := range handles {
		outs[i].Index = i
		if h == nil {
			outs[i].Err = fmt.Errorf("%w: %w", ErrTaskFailed, errNilTask)
			continue
		}
		v, err := h.Await(ctx)
		outs[i].Value = v
		outs[i].Err = err
		var perr *PanicError
		outs[i].Panicked = errors.As(err, &perr)
	}
	return outs
}
