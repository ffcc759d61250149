// Package prom exports scope lifecycle metrics through Prometheus collectors.
package prom

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

const (
	outcomeOK    = "ok"
	outcomeError = "error"
	outcomePanic = "panic"
)

// Metrics implements scope.Observer on top of Prometheus collectors.
type Metrics struct {
	activeTasks   prometheus.Gauge
	tasksStarted  prometheus.Counter
	tasksFinished *prometheus.CounterVec // by outcome
	taskDuration  prometheus.Histogram

	scopesCreated   prometheus.Counter
	scopesCancelled prometheus.Counter
	joinWait        prometheus.Histogram
}

type config struct {
	namespace string
	buckets   []float64
}

type Option func(*config)

// WithNamespace sets the metric namespace. Default "scope".
func WithNamespace(ns string) Option { return func(c *config) { c.namespace = ns } }

// WithBuckets overrides the histogram buckets (seconds) for task duration and join wait.
func WithBuckets(b []float64) Option { return func(c *config) { c.buckets = b } }

// New returns a Metrics observer. Collectors are not registered; see Register.
func New(opts ...Option) *Metrics {
	cfg := config{namespace: "scope", buckets: prometheus.ExponentialBuckets(0.0001, 4, 10)}
	for _, o := range opts {
		o(&cfg)
	}
	ns := cfg.namespace
	return &Metrics{
		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "active_tasks", Help: "Tasks currently running.",
		}),
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "tasks_started_total", Help: "Tasks started.",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns, Name: "tasks_finished_total", Help: "Tasks finished, by outcome.",
		}, []string{"outcome"}),
		taskDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "task_duration_seconds", Help: "Task run time.", Buckets: cfg.buckets,
		}),
		scopesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "scopes_created_total", Help: "Scopes created.",
		}),
		scopesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "scopes_cancelled_total", Help: "Scopes cancelled.",
		}),
		joinWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns, Name: "join_wait_seconds", Help: "Time spent blocked in Wait.", Buckets: cfg.buckets,
		}),
	}
}

// Collectors returns every collector owned by m.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.activeTasks, m.tasksStarted, m.tasksFinished, m.taskDuration,
		m.scopesCreated, m.scopesCancelled, m.joinWait,
	}
}

// Register registers all collectors with reg. Registering the same Metrics
// twice is a no-op; a different collector under the same name is an error.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) && are.ExistingCollector == c {
				continue
			}
			return err
		}
	}
	return nil
}

func (m *Metrics) ScopeCreated(_ context.Context) { m.scopesCreated.Inc() }

func (m *Metrics) ScopeCancelled(_ context.Context, _ error) { m.scopesCancelled.Inc() }

func (m *Metrics) ScopeJoined(_ context.Context, wait time.Duration) {
	m.joinWait.Observe(wait.Seconds())
}

func (m *Metrics) TaskStarted(_ context.Context) {
	m.activeTasks.Inc()
	m.tasksStarted.Inc()
}

func (m *Metrics) TaskFinished(_ context.Context, dur time.Duration, err error, panicked bool) {
	m.activeTasks.Dec()
	outcome := outcomeOK
	switch {
	case panicked:
		outcome = outcomePanic
	case err != nil:
		outcome = outcomeError
	}
	m.tasksFinished.WithLabelValues(outcome).Inc()
	m.taskDuration.Observe(dur.Seconds())
}

// Snapshot exposes a copy of current metric values for inspection.
// TasksErrored excludes panics, which are counted in TasksPanicked.
type Snapshot struct {
	ActiveTasks     int64
	TasksStarted    int64
	TasksFinished   int64
	TasksErrored    int64
	TasksPanicked   int64
	TaskDurSum      time.Duration
	ScopesCreated   int64
	ScopesCancelled int64
	Joins           int64
	JoinWaitSum     time.Duration
}

// GetSnapshot returns the current metrics snapshot.
func (m *Metrics) GetSnapshot() Snapshot {
	ok := value(m.tasksFinished.WithLabelValues(outcomeOK))
	errored := value(m.tasksFinished.WithLabelValues(outcomeError))
	panicked := value(m.tasksFinished.WithLabelValues(outcomePanic))
	_, taskSum := histogram(m.taskDuration)
	joins, joinSum := histogram(m.joinWait)
	return Snapshot{
		ActiveTasks:     int64(value(m.activeTasks)),
		TasksStarted:    int64(value(m.tasksStarted)),
		TasksFinished:   int64(ok + errored + panicked),
		TasksErrored:    int64(errored),
		TasksPanicked:   int64(panicked),
		TaskDurSum:      seconds(taskSum),
		ScopesCreated:   int64(value(m.scopesCreated)),
		ScopesCancelled: int64(value(m.scopesCancelled)),
		Joins:           int64(joins),
		JoinWaitSum:     seconds(joinSum),
	}
}

func value(c prometheus.Metric) float64 {
	var pb dto.Metric
	if err := c.Write(&pb); err != nil {
		return 0
	}
	switch {
	case pb.Counter != nil:
		return pb.Counter.GetValue()
	case pb.Gauge != nil:
		return pb.Gauge.GetValue()
	}
	return 0
}

func histogram(h prometheus.Histogram) (count uint64, sum float64) {
	var pb dto.Metric
	if err := h.Write(&pb); err != nil || pb.Histogram == nil {
		return 0, 0
	}
	return pb.Histogram.GetSampleCount(), pb.Histogram.GetSampleSum()
}

func seconds(s float64) time.Duration { return time.Duration(s * float64(time.Second)) }
