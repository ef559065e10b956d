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

func newBufferLogger(level string) (*Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return New(&Config{Level: level, Format: "json", Output: buf}), buf
}

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: nil},
		{name: "custom json config", config: &Config{Level: "debug", Format: "json"}},
		{name: "console config", config: &Config{Level: "info", Format: "console", Output: io.Discard}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, New(tt.config))
		})
	}
}

func TestLogger_JSONOutput(t *testing.T) {
	log, buf := newBufferLogger("info")

	log.Info("schema cached")

	entry := decode(t, buf)
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "schema cached", entry["message"])
	assert.NotEmpty(t, entry["time"])
}

func TestLogger_WithFields(t *testing.T) {
	log, buf := newBufferLogger("info")

	child := log.With().
		Str("connection_id", "warehouse").
		Int("tables", 42).
		Logger()

	child.Info("live build finished")

	entry := decode(t, buf)
	assert.Equal(t, "warehouse", entry["connection_id"])
	assert.Equal(t, float64(42), entry["tables"])
	assert.Equal(t, "live build finished", entry["message"])
}

func TestLogger_WarnWith(t *testing.T) {
	log, buf := newBufferLogger("warn")

	log.WarnWith("table skipped", errors.New("permission denied"), map[string]any{
		"table": "payroll",
	})

	entry := decode(t, buf)
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "permission denied", entry["error"])
	assert.Equal(t, "payroll", entry["table"])
}

func TestLogger_ErrorWithFields(t *testing.T) {
	log, buf := newBufferLogger("error")

	log.ErrorWith("schema build failed", errors.New("connection refused"), map[string]any{
		"connection_id": "crm",
		"attempt":       1,
	})

	entry := decode(t, buf)
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "schema build failed", entry["message"])
	assert.Equal(t, "connection refused", entry["error"])
	assert.Equal(t, "crm", entry["connection_id"])
	assert.Equal(t, float64(1), entry["attempt"])
}

func TestLogger_Request(t *testing.T) {
	log, buf := newBufferLogger("info")

	log.Request("GET", "/api/connections/crm/schema", 200, 5*time.Millisecond, "req-1")

	entry := decode(t, buf)
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, float64(200), entry["status"])
	assert.Equal(t, "req-1", entry["request_id"])
}

func TestLogger_Context(t *testing.T) {
	log, buf := newBufferLogger("info")

	ctx := log.WithContext(context.Background())
	FromContext(ctx).Info("from context")

	entry := decode(t, buf)
	assert.Equal(t, "from context", entry["message"])
}

func TestFromContext_Missing(t *testing.T) {
	l := FromContext(context.Background())
	require.NotNil(t, l)
	l.Info("discarded")
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))

	log, _ := newBufferLogger("info")
	assert.Same(t, log, OrNop(log))
}

func TestLogger_Levels(t *testing.T) {
	tests := []struct {
		name     string
		level    string
		logFunc  func(*Logger)
		expected bool
	}{
		{
			name:     "debug level logs debug",
			level:    "debug",
			logFunc:  func(l *Logger) { l.Debug("debug message") },
			expected: true,
		},
		{
			name:     "info level skips debug",
			level:    "info",
			logFunc:  func(l *Logger) { l.Debug("debug message") },
			expected: false,
		},
		{
			name:     "warn level skips info",
			level:    "warn",
			logFunc:  func(l *Logger) { l.Info("info message") },
			expected: false,
		},
		{
			name:     "error level logs error",
			level:    "error",
			logFunc:  func(l *Logger) { l.Error("error message") },
			expected: true,
		},
		{
			name:     "unknown level falls back to info",
			level:    "verbose",
			logFunc:  func(l *Logger) { l.Info("info message") },
			expected: true,
		},
		{
			name:     "error level skips warn",
			level:    "error",
			logFunc:  func(l *Logger) { l.Warn("warn message") },
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log, buf := newBufferLogger(tt.level)

			tt.logFunc(log)

			if tt.expected {
				assert.NotEmpty(t, buf.String(), "expected log output")
			} else {
				assert.Empty(t, buf.String(), "expected no log output")
			}
		})
	}
}

func BenchmarkLogger_WithFields(b *testing.B) {
	log := New(&Config{Level: "info", Format: "json", Output: io.Discard})

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		log.With().
			Str("connection_id", "bench").
			Int("job", i).
			Logger().
			Info("benchmark message")
	}
}
