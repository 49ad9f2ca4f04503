package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	require.Error(t, err)
}

func TestSetupConsoleOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, cleanup, err := Setup(Options{Level: "warn", Output: &buf})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown", slog.String("table", "customer"))
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "table=customer")
}

func TestMultiHandlerFanOut(t *testing.T) {
	var debug, errs bytes.Buffer
	multi := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	assert.True(t, multi.Enabled(context.Background(), slog.LevelDebug))

	logger := slog.New(multi).With(slog.String("query_id", "q1"))
	logger.Debug("planned")
	logger.Error("failed")

	assert.Contains(t, debug.String(), "planned")
	assert.Contains(t, debug.String(), "query_id=q1")
	assert.NotContains(t, errs.String(), "planned")
	assert.Contains(t, errs.String(), "failed")
}
