package fanout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"

	"github.com/NetPo4ki/go-fanout/internal/config"
	"github.com/NetPo4ki/go-fanout/scope"
)

// ErrWorkerFailed is returned when a spawned task did not run to completion.
var ErrWorkerFailed = errors.New("worker task failed")

// Sentinel is printed after a fan-out has observed all of its tasks finish.
const Sentinel = "main thread done"

var (
	SequentialLines = []string{"Hello tokio 1", "Hello tokio 2"}
	ConcurrentLines = []string{"Task 1: Done", "Task 2: Done"}
)

// Body is the work of one task. It writes its output to out.
type Body func(ctx context.Context, out io.Writer) error

// Say returns a Body that prints line.
func Say(line string) Body {
	return func(_ context.Context, out io.Writer) error {
		_, err := fmt.Fprintln(out, line)
		return err
	}
}

func says(lines []string) []Body {
	bodies := make([]Body, len(lines))
	for i, l := range lines {
		bodies[i] = Say(l)
	}
	return bodies
}

type Option func(*Runner)

func WithLogger(log zerolog.Logger) Option { return func(r *Runner) { r.log = log } }

// WithScopeOptions is applied to every scope the runner creates.
func WithScopeOptions(opts ...scope.Option) Option {
	return func(r *Runner) { r.scopeOpts = append(r.scopeOpts, opts...) }
}

func WithJoinPolicy(p config.JoinPolicy) Option { return func(r *Runner) { r.join = p } }

type Runner struct {
	out       io.Writer
	log       zerolog.Logger
	scopeOpts []scope.Option
	join      config.JoinPolicy
}

func New(out io.Writer, opts ...Option) *Runner {
	r := &Runner{
		out:  &lineWriter{w: out},
		log:  zerolog.Nop(),
		join: config.JoinStrict,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs the reference sequential fan-out followed by the reference
// concurrent fan-out. It stops at the first error.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.Sequential(ctx, says(SequentialLines)...); err != nil {
		return err
	}
	_, err := r.Concurrent(ctx, says(ConcurrentLines)...)
	return err
}

// Sequential spawns each body as a task and awaits it before spawning the
// next one. The first failure is returned wrapped in ErrWorkerFailed and the
// remaining bodies are not started. The failure is left to the caller to log.
func (r *Runner) Sequential(ctx context.Context, bodies ...Body) error {
	log := r.log.With().Str("op", "sequential").Logger()
	s := scope.New(ctx, scope.FailFast, r.scopeOpts...)
	for i, body := range bodies {
		h := scope.Spawn(s, r.task(body))
		if _, err := h.Await(ctx); err != nil {
			s.Cancel(err)
			_ = s.Wait()
			if !errors.Is(err, scope.ErrTaskFailed) {
				return err
			}
			return fmt.Errorf("%w: task %d: %w", ErrWorkerFailed, i+1, err)
		}
		log.Debug().Int("task", i+1).Msg("task done")
	}
	_ = s.Wait()
	return r.sentinel()
}

// Concurrent spawns every body without waiting in between, then waits for
// all of them. The per-task outcomes are always returned. Under JoinStrict a
// failed task turns into an ErrWorkerFailed error; under JoinPermissive it
// is logged and ignored.
func (r *Runner) Concurrent(ctx context.Context, bodies ...Body) (scope.Outcomes[struct{}], error) {
	log := r.log.With().Str("op", "concurrent").Logger()
	s := scope.New(ctx, scope.Supervisor, r.scopeOpts...)
	handles := make([]*scope.Handle[struct{}], len(bodies))
	for i, body := range bodies {
		handles[i] = scope.Spawn(s, r.task(body))
	}
	outs := scope.Join(ctx, handles...)
	_ = s.Wait()
	if err := ctx.Err(); err != nil {
		return outs, err
	}

	err := outs.Err()
	if err == nil {
		log.Debug().Int("tasks", len(outs)).Msg("all tasks done")
		return outs, r.sentinel()
	}
	for _, o := range outs.Failed() {
		log.Warn().Err(o.Err).Int("task", o.Index+1).Bool("panicked", o.Panicked).Msg("joined task failed")
	}
	if r.join == config.JoinPermissive {
		return outs, r.sentinel()
	}
	return outs, fmt.Errorf("%w: %w", ErrWorkerFailed, err)
}

func (r *Runner) task(body Body) func(ctx context.Context) (struct{}, error) {
	return func(ctx context.Context) (struct{}, error) {
		return struct{}{}, body(ctx, r.out)
	}
}

func (r *Runner) sentinel() error {
	_, err := fmt.Fprintln(r.out, Sentinel)
	return err
}

// lineWriter serialises writes so lines from concurrent tasks never interleave.
type lineWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lineWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
