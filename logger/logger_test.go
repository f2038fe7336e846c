package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}

		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}

	return out
}

func TestConsoleLogger(t *testing.T) {
	t.Run("writes service, message and fields", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewConsoleLogger("netlab", zerolog.DebugLevel, &buf, false)

		l.Info("connection accepted", F("conn_id", 7), F("remote", "127.0.0.1:5000"))

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "netlab", lines[0]["service"])
		assert.Equal(t, "info", lines[0]["level"])
		assert.Equal(t, "connection accepted", lines[0]["message"])
		assert.Equal(t, float64(7), lines[0]["conn_id"])
		assert.Contains(t, lines[0], "time")
	})

	t.Run("filters below level", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewConsoleLogger("netlab", zerolog.WarnLevel, &buf, false)

		l.Debug("hidden")
		l.Info("hidden")
		l.Warn("shown")
		l.Error("shown too")

		assert.Len(t, decodeLines(t, &buf), 2)
	})

	t.Run("with attaches fields to derived logger only", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewConsoleLogger("netlab", zerolog.InfoLevel, &buf, false)

		l.With(F("server", "echo-mt")).Info("derived")
		l.Info("base")

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 2)
		assert.Equal(t, "echo-mt", lines[0]["server"])
		assert.NotContains(t, lines[1], "server")
	})

	t.Run("errors are rendered as strings", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewConsoleLogger("netlab", zerolog.InfoLevel, &buf, false)

		l.Error("send failed", F("error", errors.New("broken pipe")))

		lines := decodeLines(t, &buf)
		require.Len(t, lines, 1)
		assert.Equal(t, "broken pipe", lines[0]["error"])
	})

	t.Run("pretty output is not json", func(t *testing.T) {
		var buf bytes.Buffer
		l := NewConsoleLogger("netlab", zerolog.InfoLevel, &buf, true)

		l.Info("hello")
		assert.Contains(t, buf.String(), "hello")
		assert.False(t, json.Valid(bytes.TrimSpace(buf.Bytes())))
	})
}

func TestNop(t *testing.T) {
	l := NewNop()
	l.Info("nothing")
	l.With(F("a", 1)).Error("nothing")
	assert.NoError(t, l.Close())
}

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"":        zerolog.InfoLevel,
		"warning": zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"off":     zerolog.Disabled,
	}

	for raw, want := range cases {
		got, err := ParseLevel(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got, raw)
	}

	_, err := ParseLevel("verbose")
	assert.Error(t, err)
}

func TestFileLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	l, err := NewFileLogger("netlab", dir, zerolog.InfoLevel)
	require.NoError(t, err)

	l.Info("to file", F("k", "v"))
	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	name := filepath.Join(dir, "netlab_"+time.Now().Format(dateLayout)+".log")
	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestDailyFileWriter_Rotation(t *testing.T) {
	dir := t.TempDir()
	w, err := NewDailyFileWriter("svc", dir)
	require.NoError(t, err)
	defer w.Close()

	day := time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)
	w.mu.Lock()
	w.now = func() time.Time { return day }
	w.mu.Unlock()

	_, err = w.Write([]byte("first\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "svc_2026-01-01.log"), w.CurrentLogFile())

	w.mu.Lock()
	w.now = func() time.Time { return day.Add(2 * time.Minute) }
	w.mu.Unlock()

	_, err = w.Write([]byte("second\n"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "svc_2026-01-02.log"), w.CurrentLogFile())

	first, err := os.ReadFile(filepath.Join(dir, "svc_2026-01-01.log"))
	require.NoError(t, err)
	assert.Equal(t, "first\n", string(first))

	require.NoError(t, w.Close())
	_, err = w.Write([]byte("late"))
	assert.Error(t, err)
	assert.Empty(t, w.CurrentLogFile())
}
