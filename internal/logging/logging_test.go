package logging

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLoggerIsSilent(t *testing.T) {
	SetLogger(nil)
	assert.False(t, Logger().Enabled(context.Background(), slog.LevelError))
}

func TestSetLogger(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewText(&buf, "warn")
	require.NoError(t, err)

	SetLogger(l)
	defer SetLogger(nil)

	Logger().Info("hidden")
	Logger().Warn("swapchain recreated", "width", 800)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "swapchain recreated")
	assert.Contains(t, buf.String(), "width=800")
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
}
