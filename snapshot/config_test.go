package snapshot

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearSnapshotEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"CI", "SNAPSHOT_CI", "SNAPSHOT_UPDATE", "SNAPSHOT_DIR", "SNAPSHOT_LOG_LEVEL", "SNAPSHOT_HISTORY_DB"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearSnapshotEnv(t)
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, UpdateNew, cfg.Update)
	assert.Equal(t, "__snapshots__", cfg.SnapshotDir)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.LegacyEval)
	assert.False(t, cfg.CI)
}

func TestLoadConfig_CIDefaultsToNone(t *testing.T) {
	clearSnapshotEnv(t)
	t.Setenv("CI", "true")
	cfg, err := LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.True(t, cfg.CI)
	assert.Equal(t, UpdateNone, cfg.Update)

	t.Setenv("SNAPSHOT_UPDATE", "all")
	cfg, err = LoadConfig(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, UpdateAll, cfg.Update, "an explicit mode wins over CI")
}

func TestLoadConfig_File(t *testing.T) {
	clearSnapshotEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".snapshot.yaml"), []byte(
		"update: none\ndir: golden\nlog_level: debug\nhistory_db: /tmp/h.db\n"), 0644))

	cfg, err := LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, UpdateNone, cfg.Update)
	assert.Equal(t, "golden", cfg.SnapshotDir)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, "/tmp/h.db", cfg.HistoryDB)

	t.Setenv("SNAPSHOT_DIR", "fromenv")
	cfg, err = LoadConfig(dir)
	require.NoError(t, err)
	assert.Equal(t, "fromenv", cfg.SnapshotDir, "environment overrides the file")
}

func TestLoadConfig_BadValues(t *testing.T) {
	clearSnapshotEnv(t)
	t.Setenv("SNAPSHOT_UPDATE", "sometimes")
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)

	clearSnapshotEnv(t)
	t.Setenv("SNAPSHOT_LOG_LEVEL", "loud")
	_, err = LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestParseUpdateMode(t *testing.T) {
	for in, want := range map[string]UpdateMode{"": UpdateNone, "none": UpdateNone, "new": UpdateNew, "all": UpdateAll} {
		got, err := ParseUpdateMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	assert.Equal(t, "all", UpdateAll.String())
}
