package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("unknown"))
}

func TestJSONHandlerOutput(t *testing.T) {
	var buf bytes.Buffer
	handler := newHandler(&buf, &Config{Level: "info", Format: "json"})
	log := slog.New(handler)

	log.Info("job updated", slog.String("job_id", "job-1"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "job updated", entry["msg"])
	assert.Equal(t, "job-1", entry["job_id"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	handler := newHandler(&buf, &Config{Level: "error", Format: "json"})
	log := slog.New(handler)

	log.Info("dropped")
	assert.Zero(t, buf.Len())

	log.Error("kept")
	assert.NotZero(t, buf.Len())
}

func TestConsoleHandler(t *testing.T) {
	var buf bytes.Buffer
	handler := newHandler(&buf, &Config{Level: "info", Format: "console"})
	log := slog.New(handler)

	log.Info("job updated", slog.String("job_id", "job-1"))

	assert.Contains(t, buf.String(), "job updated")
	assert.Contains(t, buf.String(), "job-1")
}

func TestWith(t *testing.T) {
	base, err := New(&Config{Level: "info", Format: "json"})
	require.NoError(t, err)

	derived := base.With(slog.String("component", "reconciler"))
	assert.NotNil(t, derived.Logger)
}
