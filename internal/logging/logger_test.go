package logging

import (
	"bytes"
	"encoding/json"
	"flag"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{"debug": LevelDebug, "INFO": LevelInfo, "": LevelInfo, "warning": LevelWarn, "error": LevelError}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestJSONLoggerFiltersAndTags(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: LevelWarn, Format: "json", Output: &buf, Component: "sim"})

	l.Info("dropped")
	l.Warn("kept", "tick", 3)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "kept", entry["msg"])
	assert.Equal(t, "sim", entry["component"])
	assert.EqualValues(t, 3, entry["tick"])
}

func TestWithOnNoOp(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.Equal(t, l, With(l, "k", "v"))
	l.Error("nothing happens")
}

func TestLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "UNKNOWN", Level(42).String())
}

func TestBindParsesFlags(t *testing.T) {
	cfg := DefaultConfig()
	fs := flag.NewFlagSet("x", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.Bind(fs)
	require.NoError(t, fs.Parse([]string{"-log-level", "debug", "-log-format", "json"}))
	assert.Equal(t, LevelDebug, cfg.Level)
	assert.Equal(t, "json", cfg.Format)

	fs = flag.NewFlagSet("y", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	cfg.Bind(fs)
	assert.Error(t, fs.Parse([]string{"-log-level", "chatty"}))
}
