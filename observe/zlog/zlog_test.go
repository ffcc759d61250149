package zlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NetPo4ki/go-fanout/scope"
)

func decode(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m))
		out = append(out, m)
	}
	return out
}

func TestLevelsByOutcome(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(zerolog.SyncWriter(&buf)).Level(zerolog.DebugLevel)
	s := scope.New(context.Background(), scope.Supervisor, scope.WithObserver(New(log)))
	s.Go(func(_ context.Context) error { return errors.New("boom") })
	s.Go(func(_ context.Context) error { panic("p") })
	_ = s.Wait()

	levels := map[string]string{}
	for _, rec := range decode(t, &buf) {
		levels[rec["message"].(string)] = rec["level"].(string)
		if rec["message"] == "task panicked" {
			assert.NotEmpty(t, rec["stack"])
		}
	}
	assert.Equal(t, "debug", levels["scope created"])
	assert.Equal(t, "warn", levels["task failed"])
	assert.Equal(t, "error", levels["task panicked"])
	assert.Equal(t, "debug", levels["scope joined"])
}

func TestContextLoggerWins(t *testing.T) {
	var own, ctxBuf bytes.Buffer
	ctxLog := zerolog.New(zerolog.SyncWriter(&ctxBuf))
	ctx := ctxLog.WithContext(context.Background())

	s := scope.New(ctx, scope.FailFast, scope.WithObserver(New(zerolog.New(&own))))
	s.Go(func(_ context.Context) error { return nil })
	require.NoError(t, s.Wait())

	assert.Empty(t, own.String())
	assert.Contains(t, ctxBuf.String(), "task finished")
}
