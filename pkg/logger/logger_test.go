package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/ontoreason/pkg/config"
)

func withColor(t *testing.T, enabled bool) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = !enabled
	t.Cleanup(func() { color.NoColor = prev })
}

func TestColorHandlerPlain(t *testing.T) {
	withColor(t, false)

	var buf bytes.Buffer
	log := slog.New(NewColorHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log = log.With("component", "client")

	log.Debug("hidden")
	log.Info("Graph rebuilt", "nodes", 12, "note", "two words")
	log.WithGroup("req").Warn("Slow query", "ms", 250)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INFO  Graph rebuilt component=client nodes=12 note=\"two words\"")
	assert.Contains(t, lines[1], "WARN  Slow query component=client req.ms=250")
}

func TestColorHandlerColors(t *testing.T) {
	withColor(t, true)

	var buf bytes.Buffer
	log := NewDefaultLogger(&buf, slog.LevelDebug)
	log.Info("Graph exported")
	log.Info("Query processed")
	log.Error("Rebuild failed")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "\x1b[32mGraph exported")
	assert.NotContains(t, lines[1], "\x1b[32m")
	assert.Contains(t, lines[2], "\x1b[31;1m")
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	log, closer, err := New(config.LogConfig{Level: "info", Format: "json"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hello", "k", "v")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])

	_, _, err = New(config.LogConfig{Level: "info", Format: "xml"}, &buf)
	assert.Error(t, err)
	_, _, err = New(config.LogConfig{Level: "nope"}, &buf)
	assert.Error(t, err)
}

func TestNewWithRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ontoreason.log")
	var console bytes.Buffer

	log, closer, err := New(config.LogConfig{
		Level:      "warn",
		Format:     "text",
		File:       path,
		MaxSizeMB:  1,
		MaxBackups: 1,
	}, &console)
	require.NoError(t, err)

	log.Info("not written")
	log.Warn("disk almost full", "pct", 91)
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "disk almost full")
	assert.NotContains(t, console.String(), "not written")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	assert.Equal(t, "WARN", rec["level"])
	assert.Equal(t, float64(91), rec["pct"])
}
