package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := NewStructuredLoggerWithOptions(Options{
		Service: "wx-test",
		Version: "0.0.1",
		Level:   level,
		Format:  FormatJSON,
		Output:  buf,
	})
	return l, buf
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
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

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{"warning", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStructuredLogger_JSONRecord(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	ctx := WithRequestID(context.Background(), "req-1")

	l.Info(ctx, "[TEST] hello", Fields{"station": "USC00110072", "count": 3})

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	rec := lines[0]
	assert.Equal(t, "INFO", rec["level"])
	assert.Equal(t, "[TEST] hello", rec["msg"])
	assert.Equal(t, "wx-test", rec["service"])
	assert.Equal(t, "0.0.1", rec["version"])
	assert.Equal(t, "req-1", rec["request_id"])

	fields, ok := rec["fields"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "USC00110072", fields["station"])
	assert.EqualValues(t, 3, fields["count"])
}

func TestStructuredLogger_LevelFiltering(t *testing.T) {
	l, buf := newBufferLogger(WarnLevel)
	ctx := context.Background()

	l.Debug(ctx, "debug", nil)
	l.Info(ctx, "info", nil)
	l.Warn(ctx, "warn", nil)
	assert.Len(t, decodeLines(t, buf), 1)

	buf.Reset()
	l.SetLevel(DebugLevel)
	l.Debug(ctx, "debug", nil)
	assert.Len(t, decodeLines(t, buf), 1)
}

func TestStructuredLogger_ErrorCarriesCaller(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	l.Error(context.Background(), "[TEST_ERROR] boom", Fields{}, errors.New("disk full"))

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "disk full", lines[0]["error"])
	assert.NotEmpty(t, lines[0]["file"])
}

func TestStructuredLogger_Fatal(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)
	code := -1
	l.exit = func(c int) { code = c }

	l.Fatal(context.Background(), "[TEST_FATAL] stop", Fields{}, errors.New("bad"))

	assert.Equal(t, 1, code)
	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "FATAL", lines[0]["level"])
	assert.NotEmpty(t, lines[0]["stack_trace"])
}

func TestContextLogger_MergesFields(t *testing.T) {
	l, buf := newBufferLogger(InfoLevel)

	cl := l.WithFields(Fields{"file": "a.txt", "station": "A"})
	cl.Info(context.Background(), "[TEST] merged", Fields{"station": "B"})

	lines := decodeLines(t, buf)
	require.Len(t, lines, 1)
	fields := lines[0]["fields"].(map[string]any)
	assert.Equal(t, "a.txt", fields["file"])
	assert.Equal(t, "B", fields["station"])
}

func TestStructuredLogger_TextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	l := NewStructuredLoggerWithOptions(Options{
		Service: "wx-test",
		Level:   InfoLevel,
		Format:  FormatText,
		Output:  buf,
	})

	l.Info(context.Background(), "[TEST] text", Fields{"n": 1})

	assert.Contains(t, buf.String(), "[TEST] text")
}
