package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NetPo4ki/go-fanout/internal/fanout"
)

func run(t *testing.T, app *App, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	app.Stdout, app.Stderr = &out, &errOut
	code = app.Execute(context.Background(), args)
	return code, out.String(), errOut.String()
}

func TestNoArgsReferenceRun(t *testing.T) {
	code, stdout, stderr := run(t, &App{})
	require.Equal(t, ExitOK, code, stderr)
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"Hello tokio 1", "Hello tokio 2", fanout.Sentinel}, lines[:3])
	assert.ElementsMatch(t, []string{"Task 1: Done", "Task 2: Done"}, lines[3:5])
	assert.Equal(t, fanout.Sentinel, lines[5])
	assert.Empty(t, stderr, "default log level keeps stderr quiet")
}

func TestSequentialFailureExitsNonZero(t *testing.T) {
	app := &App{Run: func(ctx context.Context, r *fanout.Runner) error {
		return r.Sequential(ctx,
			fanout.Say("Hello tokio 1"),
			func(context.Context, io.Writer) error { panic("worker crashed") },
		)
	}}
	code, stdout, stderr := run(t, app)
	assert.Equal(t, ExitFailure, code)
	assert.Equal(t, "Hello tokio 1\n", stdout)
	assert.NotContains(t, stdout, fanout.Sentinel)
	assert.Contains(t, stderr, "worker task failed")
	assert.Equal(t, 1, strings.Count(stderr, "run failed"))
	assert.NotContains(t, stderr, "ERR task failed", "the failure is logged once, by the command")
}

func TestJoinPolicyFlag(t *testing.T) {
	failingJoin := func(ctx context.Context, r *fanout.Runner) error {
		_, err := r.Concurrent(ctx,
			fanout.Say("Task 1: Done"),
			func(context.Context, io.Writer) error { return errors.New("boom") },
		)
		return err
	}

	code, stdout, _ := run(t, &App{Run: failingJoin})
	assert.Equal(t, ExitFailure, code)
	assert.NotContains(t, stdout, fanout.Sentinel)

	code, stdout, stderr := run(t, &App{Run: failingJoin}, "--join-policy=permissive")
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, stdout, fanout.Sentinel)
	assert.Contains(t, stderr, "joined task failed")
}

func TestUsageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"extra"},
		{"--no-such-flag"},
		{"--log-level=loud"},
		{"--join-policy=lenient"},
		{"--max-concurrency=-2"},
	} {
		code, stdout, stderr := run(t, &App{}, args...)
		assert.Equal(t, ExitUsage, code, "args %q", args)
		assert.Empty(t, stdout, "args %q", args)
		assert.Contains(t, stderr, "fanout:", "args %q", args)
	}
}

func TestMetricsDump(t *testing.T) {
	code, stdout, stderr := run(t, &App{}, "--metrics")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stdout, fanout.Sentinel)
	assert.Contains(t, stderr, "fanout_tasks_started_total 4")
	assert.Contains(t, stderr, `fanout_tasks_finished_total{outcome="ok"} 4`)
}

func TestTraceExport(t *testing.T) {
	code, _, stderr := run(t, &App{}, "--trace")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stderr, `"Name":"scope"`)
	assert.Contains(t, stderr, "task.finished")
}

func TestDebugLogging(t *testing.T) {
	code, _, stderr := run(t, &App{}, "--log-level=debug", "--max-concurrency=1")
	require.Equal(t, ExitOK, code, stderr)
	assert.Contains(t, stderr, "task started")
	assert.Contains(t, stderr, "all tasks done")
}
