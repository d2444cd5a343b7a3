package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"info":    zerolog.InfoLevel,
		"DEBUG":   zerolog.DebugLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestComponentLoggerTagsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf).Component("filecache")
	l.Info().Int("count", 2).Msg("refreshed")

	out := buf.String()
	assert.Contains(t, out, "refreshed")
	assert.Contains(t, out, "component")
	assert.Contains(t, out, "filecache")
	assert.Contains(t, out, "count")
}

func TestNewWithFileWritesJSONLines(t *testing.T) {
	t.Cleanup(func() { SetGlobalLevel(zerolog.InfoLevel) })

	path := filepath.Join(t.TempDir(), "canfiles.log")
	var console bytes.Buffer
	l, err := New(Options{Console: &console, File: path, Level: "debug"})
	require.NoError(t, err)

	l.Debug().Str("id", "7").Msg("retrieved")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"retrieved"`)
	assert.Contains(t, console.String(), "retrieved")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(Options{Level: "chatty"})
	assert.Error(t, err)
}

func TestSetOutputRedirects(t *testing.T) {
	var first, second bytes.Buffer
	l := NewLogger(&first)
	l.SetOutput(&second)
	l.Warnf("disk %s", "full")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "disk full")
	assert.Equal(t, &second, l.Output())
}

func TestNopAndOrDefault(t *testing.T) {
	Nop().Error().Msg("ignored")
	assert.NotNil(t, OrDefault(nil))
	n := Nop()
	assert.Same(t, n, OrDefault(n))
}
