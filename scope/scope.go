package scope

import (
	"context"
	"sync"
	"time"
)

// Policy decides what a scope does when one of its tasks fails.
type Policy int

const (
	// FailFast cancels the scope context on the first task error.
	FailFast Policy = iota
	// Supervisor records the first error but lets siblings run to completion.
	Supervisor
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "failfast"
	case Supervisor:
		return "supervisor"
	default:
		return "unknown"
	}
}

type Option func(*Options)

type Options struct {
	PanicAsError   bool
	Observer       Observer
	MaxConcurrency int
	Timeout        time.Duration
}

func defaultOptions() Options { return Options{PanicAsError: true} }

func WithPanicAsError(v bool) Option { return func(o *Options) { o.PanicAsError = v } }

func WithObserver(obs Observer) Option { return func(o *Options) { o.Observer = obs } }

func WithMaxConcurrency(n int) Option { return func(o *Options) { o.MaxConcurrency = n } }

// WithTimeout bounds the lifetime of the scope context. Zero means no deadline.
func WithTimeout(d time.Duration) Option { return func(o *Options) { o.Timeout = d } }

type Observer interface {
	ScopeCreated(ctx context.Context)
	ScopeCancelled(ctx context.Context, cause error)
	ScopeJoined(ctx context.Context, wait time.Duration)
	TaskStarted(ctx context.Context)
	TaskFinished(ctx context.Context, dur time.Duration, err error, panicked bool)
}

// Scope owns every goroutine started through it. Wait is the join point.
type Scope struct {
	ctx      context.Context
	cancel   context.CancelFunc
	policy   Policy
	wg       sync.WaitGroup
	mu       sync.Mutex
	firstErr error
	canceled bool

	opts Options
	obs  Observer
	lim  Limiter
}

func New(parent context.Context, policy Policy, optFns ...Option) *Scope {
	if parent == nil {
		parent = context.Background()
	}
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return newScope(parent, policy, opts)
}

func newScope(parent context.Context, policy Policy, opts Options) *Scope {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if opts.Timeout > 0 {
		ctx, cancel = context.WithTimeout(parent, opts.Timeout)
	} else {
		ctx, cancel = context.WithCancel(parent)
	}
	s := &Scope{ctx: ctx, cancel: cancel, policy: policy, opts: opts, obs: opts.Observer}
	s.lim = newSemaphoreLimiter(opts.MaxConcurrency)
	if s.obs != nil {
		s.obs.ScopeCreated(ctx)
	}
	return s
}

func (s *Scope) Context() context.Context { return s.ctx }

func (s *Scope) Policy() Policy { return s.policy }

func (s *Scope) Go(fn func(ctx context.Context) error) {
	if fn == nil {
		return
	}
	s.start(fn, nil)
}

// start runs fn on a new goroutine and reports its result to done, if set.
// done is not called when a panic is re-raised (PanicAsError disabled).
func (s *Scope) start(fn func(ctx context.Context) error, done func(err error, panicked bool)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		err, panicked := s.run(fn)
		if done != nil {
			done(err, panicked)
		}
	}()
}

func (s *Scope) run(fn func(ctx context.Context) error) (err error, panicked bool) {
	if s.lim != nil {
		if err := s.lim.Acquire(s.ctx); err != nil {
			s.fail(err)
			return err, false
		}
		defer s.lim.Release()
	}

	var start time.Time
	if s.obs != nil {
		start = time.Now()
		s.obs.TaskStarted(s.ctx)
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if !s.opts.PanicAsError {
			if s.obs != nil {
				s.obs.TaskFinished(s.ctx, time.Since(start), nil, true)
			}
			panic(r)
		}
		perr := newPanicError(r)
		s.fail(perr)
		if s.obs != nil {
			s.obs.TaskFinished(s.ctx, time.Since(start), perr, true)
		}
		err, panicked = perr, true
	}()

	err = fn(s.ctx)
	if err != nil {
		s.fail(err)
	}
	if s.obs != nil {
		s.obs.TaskFinished(s.ctx, time.Since(start), err, false)
	}
	return err, false
}

func (s *Scope) Cancel(err error) {
	s.mu.Lock()
	wasCanceled := s.canceled
	s.canceled = true
	if s.firstErr == nil && err != nil {
		s.firstErr = err
	}
	cause := s.firstErr
	s.mu.Unlock()

	s.cancel()
	if !wasCanceled && s.obs != nil {
		s.obs.ScopeCancelled(s.ctx, cause)
	}
}

// Wait blocks until every task started through s has returned and reports the
// first recorded error. It may be called more than once.
//
// Once the tasks are joined the scope context is released: Context().Err()
// is non-nil afterwards, child scopes are cancelled, and tasks started after
// Wait see a done context. Releasing is not a cancellation and is not
// reported to the observer.
func (s *Scope) Wait() error {
	var start time.Time
	if s.obs != nil {
		start = time.Now()
	}
	s.wg.Wait()
	s.cancel()
	if s.obs != nil {
		s.obs.ScopeJoined(s.ctx, time.Since(start))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.firstErr
}

func (s *Scope) fail(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	if s.firstErr == nil {
		s.firstErr = err
	}
	shouldCancel := s.policy == FailFast
	cause := s.firstErr
	s.mu.Unlock()
	if shouldCancel {
		s.Cancel(cause)
	}
}

// Child returns a scope whose context derives from s. Options not overridden
// by optFns are inherited, except Timeout: the child already lives within
// the parent's deadline.
func (s *Scope) Child(policy Policy, optFns ...Option) *Scope {
	childOpts := s.opts
	childOpts.Timeout = 0
	for _, fn := range optFns {
		fn(&childOpts)
	}
	return newScope(s.ctx, policy, childOpts)
}
