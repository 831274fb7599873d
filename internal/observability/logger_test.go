package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chefia/internal/config"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LogConfig{Level: "warn", Format: "json"})

	logger.Info("hidden")
	logger.Warn("shown", "items", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, 3.0, entry["items"])
	assert.Contains(t, entry, slog.SourceKey)
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LogConfig{Level: "debug", Format: "TEXT"})
	logger.Debug("merged")
	assert.Contains(t, buf.String(), "msg=merged")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerTo(&buf, config.LogConfig{Format: "json"})

	assert.Equal(t, "", SessionID(context.Background()))
	ctx := WithSessionID(context.Background(), "abc")
	assert.Equal(t, "abc", SessionID(ctx))

	FromContext(ctx, logger).Info("tagged")
	assert.Contains(t, buf.String(), `"session_id":"abc"`)

	buf.Reset()
	FromContext(context.Background(), logger).Info("untagged")
	assert.NotContains(t, buf.String(), "session_id")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("bogus"))
}
