package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedLogger(buf *bytes.Buffer, level Level, jsonOutput bool) *DefaultLogger {
	l := New(LoggerConfig{Level: level, JSONOutput: jsonOutput, Output: buf})
	l.now = func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	return l
}

func TestDefaultLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, InfoLevel, false)

	l.Info("analyzed", "file", "loop.wl", "nodes", 6)

	assert.Equal(t, "[2024-03-01 12:00:00] INFO: analyzed file=loop.wl nodes=6\n", buf.String())
}

func TestDefaultLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, WarnLevel, false)

	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "WARN: shown")
	assert.Contains(t, lines[1], "ERROR: shown too")

	buf.Reset()
	l.SetLevel(DebugLevel)
	l.Debug("now visible")
	assert.Contains(t, buf.String(), "DEBUG: now visible")
}

func TestDefaultLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, DebugLevel, true)

	l.Debug("liveness pass", "pass", 2, "changed", true)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "liveness pass", entry["message"])
	assert.Equal(t, float64(2), entry["pass"])
	assert.Equal(t, true, entry["changed"])
}

func TestDefaultLogger_JSONErrorValues(t *testing.T) {
	var buf bytes.Buffer
	l := fixedLogger(&buf, DebugLevel, true)

	l.Warn("saving cache failed", "error", fmt.Errorf("wrap: %w", errors.New("disk full")), "at", time.Second)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "wrap: disk full", entry["error"])
	assert.Equal(t, "1s", entry["at"])
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"loud", InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNop(t *testing.T) {
	l := Nop()
	assert.NotPanics(t, func() {
		l.Debug("x")
		l.Info("x", "k", 1)
		l.Warn("x")
		l.Error("x")
	})
}

func TestProgressSpinner_StopClearsLine(t *testing.T) {
	var buf bytes.Buffer
	s := NewProgressSpinner(&buf, "analyzing")
	s.Start()
	s.Message("analyzing 2/3")
	s.Stop()

	assert.True(t, strings.HasSuffix(buf.String(), "\r\033[K"))
}
