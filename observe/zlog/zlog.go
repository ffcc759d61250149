// Package zlog logs scope lifecycle events through zerolog.
//
// Lifecycle events are logged at debug level, task errors at warn and
// panics at error with the recovered stack.
package zlog

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/NetPo4ki/go-fanout/scope"
)

// Observer implements scope.Observer. A logger attached to the scope context
// with zerolog's WithContext takes precedence over the one given to New.
type Observer struct {
	log zerolog.Logger
}

func New(log zerolog.Logger) *Observer {
	return &Observer{log: log}
}

func (o *Observer) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &o.log
}

func (o *Observer) ScopeCreated(ctx context.Context) {
	o.logger(ctx).Debug().Msg("scope created")
}

func (o *Observer) ScopeCancelled(ctx context.Context, cause error) {
	o.logger(ctx).Debug().AnErr("cause", cause).Msg("scope cancelled")
}

func (o *Observer) ScopeJoined(ctx context.Context, wait time.Duration) {
	o.logger(ctx).Debug().Dur("wait", wait).Msg("scope joined")
}

func (o *Observer) TaskStarted(ctx context.Context) {
	o.logger(ctx).Debug().Msg("task started")
}

func (o *Observer) TaskFinished(ctx context.Context, dur time.Duration, err error, panicked bool) {
	l := o.logger(ctx)
	switch {
	case panicked:
		ev := l.Error().Err(err).Dur("took", dur)
		var perr *scope.PanicError
		if errors.As(err, &perr) {
			ev = ev.Str("stack", string(perr.Stack))
		}
		ev.Msg("task panicked")
	case err != nil:
		l.Warn().Err(err).Dur("took", dur).Msg("task failed")
	default:
		l.Debug().Dur("took", dur).Msg("task finished")
	}
}
