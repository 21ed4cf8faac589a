package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	return logEntry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "json config without output", config: &Config{Level: "debug", Format: "json"}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "info", Format: "json", Output: buf})

	logger.Info("registry ready")

	logEntry := decode(t, buf)
	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "registry ready", logEntry["message"])
	assert.NotEmpty(t, logEntry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "info", Format: "json", Output: buf})

	child := logger.Component("pool").With().
		Str("db_type", "oracle").
		Int("sources", 3).
		Bool("pooling", true).
		Dur("interval", 2*time.Second).
		Logger()

	child.Info("source registered")

	logEntry := decode(t, buf)
	assert.Equal(t, "pool", logEntry["component"])
	assert.Equal(t, "oracle", logEntry["db_type"])
	assert.Equal(t, float64(3), logEntry["sources"])
	assert.Equal(t, true, logEntry["pooling"])
	assert.Equal(t, "source registered", logEntry["message"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "error", Format: "json", Output: buf})

	logger.ErrorWith("checkout failed", errors.New("connection refused"), map[string]interface{}{
		"url":  "tcp(db1:3306)/app",
		"port": 3306,
	})

	logEntry := decode(t, buf)
	assert.Equal(t, "error", logEntry["level"])
	assert.Equal(t, "checkout failed", logEntry["message"])
	assert.Equal(t, "connection refused", logEntry["error"])
	assert.Equal(t, "tcp(db1:3306)/app", logEntry["url"])
	assert.Equal(t, float64(3306), logEntry["port"])
}

func TestLogger_Context(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(&Config{Level: "info", Format: "json", Output: buf})

	ctx := logger.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	assert.Equal(t, "from context", decode(t, buf)["message"])
}

func TestLogger_FromEmptyContextFallsBackToGlobal(t *testing.T) {
	buf := &bytes.Buffer{}
	prev := Global()
	SetGlobal(New(&Config{Level: "info", Format: "json", Output: buf}))
	t.Cleanup(func() { SetGlobal(prev) })

	FromContext(context.Background()).Info("fallback")

	assert.Equal(t, "fallback", decode(t, buf)["message"])
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{"debug level logs debug", "debug", func(l *Logger) { l.Debug("debug message") }, true},
		{"info level skips debug", "info", func(l *Logger) { l.Debug("debug message") }, false},
		{"error level logs error", "error", func(l *Logger) { l.Error("error message") }, true},
		{"error level skips info", "error", func(l *Logger) { l.Info("info message") }, false},
		{"warn level skips info fields", "warn", func(l *Logger) { l.InfoWith("x", map[string]interface{}{"a": 1}) }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			tt.logFunc(New(&Config{Level: tt.level, Format: "json", Output: buf}))

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	l.Error("dropped")
	l.ErrorWith("dropped", errors.New("x"), nil)
}

func BenchmarkLogger_WithFields(b *testing.B) {
	logger := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		logger.With().
			Str("db_type", "mysql").
			Int("attempt", i).
			Logger().
			Info("benchmark message")
	}
}
