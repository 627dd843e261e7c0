package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ghyeongl/snapcheck/snapshot"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_CreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"runs", "obsolete", "meta"} {
		var name string
		err := db.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		require.NoError(t, err)
		assert.Equal(t, table, name)
	}

	var version string
	require.NoError(t, db.db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version))
	assert.Equal(t, "2", version)
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.db")

	db1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db1.Record(context.Background(), snapshot.Summary{Mode: snapshot.UpdateNew, Total: 1}))
	db1.Close()

	db2, err := Open(path)
	require.NoError(t, err)
	defer db2.Close()
	runs, err := db2.Runs(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestOpen_MigratesV1(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	db, err := Open(path)
	require.NoError(t, err)
	_, err = db.db.Exec("ALTER TABLE runs DROP COLUMN files_obsolete")
	require.NoError(t, err)
	_, err = db.db.Exec("UPDATE meta SET value = '1' WHERE key = 'schema_version'")
	require.NoError(t, err)
	db.Close()

	db, err = Open(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Record(context.Background(), snapshot.Summary{Mode: snapshot.UpdateAll, FilesObsolete: 2}))
	r, err := db.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, r.FilesObsolete)
}

func TestLastRun_Empty(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.LastRun(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)

	_, _, err = db.LastObsolete(context.Background())
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestRecord_RunsAndObsolete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, db.Record(ctx, snapshot.Summary{StartedAt: started, Mode: snapshot.UpdateNone, Matched: 3, Total: 3}))
	require.NoError(t, db.Record(ctx, snapshot.Summary{
		StartedAt: started.Add(time.Minute),
		Mode:      snapshot.UpdateNew,
		Added:     1,
		Matched:   2,
		Total:     3,
		Unchecked: 3,
		Obsolete: []snapshot.ObsoleteFile{
			{FilePath: "/src/__snapshots__/b_test.go.snap", Keys: []string{"TestB 2", "TestB 1"}},
			{FilePath: "/src/__snapshots__/a_test.go.snap", Keys: []string{"TestA 1"}},
		},
	}))

	runs, err := db.Runs(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "new", runs[0].Mode)
	assert.Equal(t, "none", runs[1].Mode)
	assert.True(t, runs[1].StartedAt.Equal(started))

	limited, err := db.Runs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, runs[0].ID, limited[0].ID)

	last, files, err := db.LastObsolete(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, last.Added)
	assert.Equal(t, 3, last.Unchecked)
	assert.Equal(t, []snapshot.ObsoleteFile{
		{FilePath: "/src/__snapshots__/a_test.go.snap", Keys: []string{"TestA 1"}},
		{FilePath: "/src/__snapshots__/b_test.go.snap", Keys: []string{"TestB 1", "TestB 2"}},
	}, files)

	files, err = db.Obsolete(ctx, runs[1].ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestRecorder(t *testing.T) {
	assert.Nil(t, NewRecorder(""))

	path := filepath.Join(t.TempDir(), "history.db")
	rec := NewRecorder(path)
	require.NotNil(t, rec)
	require.NoError(t, rec.Record(context.Background(), snapshot.Summary{Mode: snapshot.UpdateAll, Updated: 4, Total: 4}))

	db, err := Open(path)
	require.NoError(t, err)
	defer db.Close()
	r, err := db.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "all", r.Mode)
	assert.Equal(t, 4, r.Updated)
}
