package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriterHistory(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, Config{Level: "debug", MaxHistory: 3})
	require.NoError(t, err)

	l.Debug("core", "one", nil)
	l.Info("core", "two", map[string]any{"b": 2, "a": 1})
	l.Warn("core", "three", nil)
	l.Error("core", "four", errors.New("boom"), nil)

	hist := l.GetHistory(0)
	require.Len(t, hist, 3)
	assert.Equal(t, "two", hist[0].Message)
	assert.Equal(t, "a=1, b=2", hist[0].Data)
	assert.Equal(t, "error=boom", hist[2].Data)

	last := l.GetHistory(1)
	require.Len(t, last, 1)
	assert.Equal(t, "four", last[0].Message)

	out := buf.String()
	assert.Contains(t, out, `"app":"avatarcore"`)
	assert.Contains(t, out, `"component":"core"`)
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewWithWriter(&buf, Config{Level: "warn"})
	require.NoError(t, err)

	l.Info("core", "hidden", nil)
	l.Warn("core", "shown", nil)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestInvalidLevel(t *testing.T) {
	_, err := NewWithWriter(&bytes.Buffer{}, Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesFile(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Dir: dir, Level: "info"})
	require.NoError(t, err)
	feed := l.Component("feed")
	feed.Info().Msg("hello from feed")
	require.NoError(t, l.Close())

	assert.Equal(t, dir, filepath.Dir(l.GetLogPath()))
	data, err := os.ReadFile(l.GetLogPath())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "hello from feed"))
}

func TestOnceSet(t *testing.T) {
	var o OnceSet
	assert.True(t, o.First("head"))
	assert.False(t, o.First("head"))
	assert.True(t, o.First("neck"))

	o.Forget()
	assert.True(t, o.First("head"))
}
