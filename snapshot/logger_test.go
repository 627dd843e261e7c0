package snapshot

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetLogger(t *testing.T) {
	t.Cleanup(func() {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	})
}

func TestLogEnabled(t *testing.T) {
	resetLogger(t)

	assert.False(t, LogEnabled(slog.LevelDebug), "discard logger still reports levels")
	assert.True(t, LogEnabled(slog.LevelInfo))

	InitLogger("", slog.LevelDebug)
	assert.False(t, LogEnabled(slog.LevelDebug), "stderr only takes warnings")
	assert.True(t, LogEnabled(slog.LevelWarn))

	InitLogger(t.TempDir(), slog.LevelDebug)
	assert.True(t, LogEnabled(slog.LevelDebug))

	InitLogger(t.TempDir(), slog.LevelInfo)
	assert.False(t, LogEnabled(slog.LevelDebug))
	assert.True(t, LogEnabled(slog.LevelInfo))
}

func TestInitLogger_SplitsFilesByLevel(t *testing.T) {
	resetLogger(t)
	dir := t.TempDir()
	InitLogger(dir, slog.LevelDebug)

	Logger("test").Debug("quiet detail")
	Logger("test").Error("loud failure")

	debug, err := os.ReadFile(filepath.Join(dir, "snapshot_debug.log"))
	require.NoError(t, err)
	assert.Contains(t, string(debug), "quiet detail")
	assert.Contains(t, string(debug), "comp=test")
	assert.NotContains(t, string(debug), "loud failure")

	warn, err := os.ReadFile(filepath.Join(dir, "snapshot_warn.log"))
	require.NoError(t, err)
	assert.Contains(t, string(warn), "loud failure")
	assert.NotContains(t, string(warn), "quiet detail")
}
