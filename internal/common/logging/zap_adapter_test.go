package logging

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel) (Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: level, Output: &buf})
	require.NoError(t, err)
	return logger, &buf
}

func TestZapAdapter(t *testing.T) {
	t.Run("basic logging", func(t *testing.T) {
		logger, buf := newBufferLogger(t, DebugLevel)

		logger.Debug("debug message", Field{"key", "value"})
		logger.Info("info message", Field{"count", 42})
		logger.Warn("warn message", Field{"enabled", true})
		logger.Error("error message", errors.New("geocoder down"), Field{"queue", "location"})

		output := buf.String()
		assert.Contains(t, output, "DEBUG")
		assert.Contains(t, output, "debug message")
		assert.Contains(t, output, "INFO")
		assert.Contains(t, output, "WARN")
		assert.Contains(t, output, "ERROR")
		assert.Contains(t, output, "geocoder down")
	})

	t.Run("with fields", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel)

		logger = logger.WithFields(String("component", "orchestrator"))
		logger.Info("cycle started", Int("batch_size", 5))

		output := buf.String()
		assert.Contains(t, output, "orchestrator")
		assert.Contains(t, output, "batch_size")
	})

	t.Run("with context", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel)

		ctx := ContextWithCycleID(context.Background(), "cycle-123")
		ctx = ContextWithEventID(ctx, "evt-9")
		logger.WithContext(ctx).Info("processing")

		output := buf.String()
		assert.Contains(t, output, "cycle-123")
		assert.Contains(t, output, "evt-9")
		assert.Equal(t, "cycle-123", CycleIDFromContext(ctx))
	})

	t.Run("empty context returns same logger", func(t *testing.T) {
		logger, _ := newBufferLogger(t, InfoLevel)
		assert.Same(t, logger, logger.WithContext(context.Background()))
	})

	t.Run("log level filtering", func(t *testing.T) {
		logger, buf := newBufferLogger(t, WarnLevel)

		logger.Debug("debug - should not appear")
		logger.Info("info - should not appear")
		logger.Warn("warn - should appear")
		logger.Error("error - should appear", nil)

		output := buf.String()
		assert.NotContains(t, output, "should not appear")
		assert.Contains(t, output, "warn - should appear")
		assert.Contains(t, output, "error - should appear")
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Format: FormatJSON, Output: &buf})
		require.NoError(t, err)

		logger.Info("queue drained", String("queue", "transit"), Duration("waited", 1500*time.Millisecond))

		var line map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "info", line["level"])
		assert.Equal(t, "queue drained", line["msg"])
		assert.Equal(t, "transit", line["queue"])
		assert.Equal(t, float64(1500), line["waited"])
	})

	t.Run("set level", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel)
		child := logger.WithFields(String("component", "scheduler"))

		child.Debug("hidden")
		logger.(*ZapAdapter).SetLevel(DebugLevel)
		child.Debug("visible")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "visible")
	})

	t.Run("error valued field", func(t *testing.T) {
		logger, buf := newBufferLogger(t, InfoLevel)
		logger.Warn("dropped", Err(errors.New("status 404")))
		assert.Contains(t, buf.String(), "status 404")
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"warning", WarnLevel},
		{" error ", ErrorLevel},
		{"", InfoLevel},
		{"verbose", InfoLevel},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatConsole, ParseFormat(""))
	assert.Equal(t, FormatConsole, ParseFormat("logfmt"))
}

func TestGlobalLogger(t *testing.T) {
	previous := GetGlobalLogger()
	defer SetGlobalLogger(previous)

	logger, buf := newBufferLogger(t, DebugLevel)
	SetGlobalLogger(logger)

	Info("global info")
	ForComponent("queue").Warn("component warn")

	output := buf.String()
	assert.Contains(t, output, "global info")
	assert.Contains(t, output, "component warn")
	assert.Contains(t, output, "queue")
}

func TestNopLogger(t *testing.T) {
	var logger Logger = NopLogger{}
	logger.Info("ignored")
	assert.Equal(t, logger, logger.WithFields(String("a", "b")))
}
