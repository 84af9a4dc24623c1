package logutil

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhdbsbz/deskbot/internal/config"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, config.LoggingConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("reply failed", "conversation", "user:U1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "reply failed", rec["msg"])
	assert.Equal(t, "user:U1", rec["conversation"])
}

func TestTextLoggerDefault(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(&buf, config.LoggingConfig{})
	require.NoError(t, err)
	logger.Debug("hidden")
	logger.Info("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown")
}

func TestInvalidConfig(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, config.LoggingConfig{Format: "xml"})
	assert.Error(t, err)
	_, err = NewWithWriter(&bytes.Buffer{}, config.LoggingConfig{Level: "loud"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestFileLogger(t *testing.T) {
	home := t.TempDir()
	t.Setenv("DESKBOT_HOME", home)

	logger, closeLog, err := New(config.LoggingConfig{File: true})
	require.NoError(t, err)
	logger.Info("to file", "event_id", "e1")
	closeLog()

	data, err := os.ReadFile(filepath.Join(home, "logs", LogFileName))
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"to file\"")
	assert.Contains(t, string(data), "event_id=e1")
}
