package otel

import (
	"context"
	"errors"
	"sync"
	"time"

	global "go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NetPo4ki/go-fanout/scope"
)

const instrumentationName = "github.com/NetPo4ki/go-fanout/observe/otel"

// Observer implements scope.Observer. Events go to the recording span found
// in the scope context. A scope created without one gets its own "scope"
// span, ended at the first join.
type Observer struct {
	tracer trace.Tracer
	owned  sync.Map // context.Context -> trace.Span
}

// New returns an Observer using tp, or the global provider when tp is nil.
func New(tp trace.TracerProvider) *Observer {
	if tp == nil {
		tp = global.GetTracerProvider()
	}
	return &Observer{tracer: tp.Tracer(instrumentationName)}
}

func (o *Observer) span(ctx context.Context) trace.Span {
	if sp, ok := o.owned.Load(ctx); ok {
		return sp.(trace.Span)
	}
	return trace.SpanFromContext(ctx)
}

func (o *Observer) ScopeCreated(ctx context.Context) {
	if sp := trace.SpanFromContext(ctx); sp.IsRecording() {
		sp.AddEvent("scope.created")
		return
	}
	_, sp := o.tracer.Start(ctx, "scope")
	o.owned.Store(ctx, sp)
}

func (o *Observer) ScopeCancelled(ctx context.Context, cause error) {
	var attrs []attribute.KeyValue
	if cause != nil {
		attrs = append(attrs, attribute.String("cause", cause.Error()))
	}
	o.span(ctx).AddEvent("scope.cancelled", trace.WithAttributes(attrs...))
}

func (o *Observer) ScopeJoined(ctx context.Context, wait time.Duration) {
	o.span(ctx).AddEvent("scope.joined", trace.WithAttributes(
		attribute.Int64("wait_us", wait.Microseconds()),
	))
	if sp, ok := o.owned.LoadAndDelete(ctx); ok {
		sp.(trace.Span).End()
	}
}

func (o *Observer) TaskStarted(ctx context.Context) {
	o.span(ctx).AddEvent("task.started")
}

func (o *Observer) TaskFinished(ctx context.Context, dur time.Duration, err error, panicked bool) {
	sp := o.span(ctx)
	attrs := []attribute.KeyValue{
		attribute.Int64("duration_us", dur.Microseconds()),
		attribute.Bool("panicked", panicked),
	}
	if err == nil {
		sp.AddEvent("task.finished", trace.WithAttributes(attrs...))
		return
	}
	var perr *scope.PanicError
	if errors.As(err, &perr) {
		attrs = append(attrs, attribute.String("stack", string(perr.Stack)))
	}
	sp.AddEvent("task.failed", trace.WithAttributes(attrs...))
	sp.RecordError(err)
	sp.SetStatus(codes.Error, err.Error())
}
