// Package history keeps a SQLite ledger of snapshot runs: their counts and
// the obsolete keys each run left behind.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ghyeongl/snapcheck/snapshot"
	_ "modernc.org/sqlite"
)

const schemaVersion = 2

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at      INTEGER NOT NULL,
    mode            TEXT NOT NULL,
    added           INTEGER NOT NULL DEFAULT 0,
    matched         INTEGER NOT NULL DEFAULT 0,
    unmatched       INTEGER NOT NULL DEFAULT 0,
    updated         INTEGER NOT NULL DEFAULT 0,
    total           INTEGER NOT NULL DEFAULT 0,
    files_added     INTEGER NOT NULL DEFAULT 0,
    files_updated   INTEGER NOT NULL DEFAULT 0,
    files_removed   INTEGER NOT NULL DEFAULT 0,
    files_unmatched INTEGER NOT NULL DEFAULT 0,
    files_obsolete  INTEGER NOT NULL DEFAULT 0,
    unchecked       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS obsolete (
    run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    file   TEXT NOT NULL,
    key    TEXT NOT NULL,
    PRIMARY KEY (run_id, file, key)
);

CREATE TABLE IF NOT EXISTS meta (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// ErrNoRuns is returned when the ledger holds no run yet.
var ErrNoRuns = errors.New("no recorded snapshot runs")

func sub(component string) *slog.Logger {
	return snapshot.Logger("history." + component)
}

// Run is one recorded snapshot run.
type Run struct {
	ID             int64
	StartedAt      time.Time
	Mode           string
	Added          int
	Matched        int
	Unmatched      int
	Updated        int
	Total          int
	FilesAdded     int
	FilesUpdated   int
	FilesRemoved   int
	FilesUnmatched int
	FilesObsolete  int
	Unchecked      int
}

// DB is an open run ledger.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the ledger at path.
func Open(path string) (*DB, error) {
	l := sub("db")
	l.Info("opening history database", "path", path)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
		l.Debug(pragma)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{db: db}, nil
}

func migrate(db *sql.DB) error {
	l := sub("db")
	var version int
	err := db.QueryRow("SELECT value FROM meta WHERE key = 'schema_version'").Scan(&version)
	if err != nil {
		// no meta row: fresh database
		if _, execErr := db.Exec(schema); execErr != nil {
			return fmt.Errorf("create schema: %w", execErr)
		}
		_, execErr := db.Exec("INSERT INTO meta (key, value) VALUES ('schema_version', ?)", schemaVersion)
		if execErr != nil {
			return fmt.Errorf("set schema version: %w", execErr)
		}
		l.Info("schema created", "version", schemaVersion)
		return nil
	}

	if version < schemaVersion {
		l.Info("schema upgrading", "from", version, "to", schemaVersion)
		if version < 2 {
			if err := migrateV1toV2(db); err != nil {
				return fmt.Errorf("migrate v1→v2: %w", err)
			}
			l.Info("migrated v1→v2")
		}
	} else {
		l.Debug("schema up to date", slog.Int("version", version))
	}
	return nil
}

// v1 had no obsolete-file counter.
func migrateV1toV2(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmts := []string{
		`ALTER TABLE runs ADD COLUMN files_obsolete INTEGER NOT NULL DEFAULT 0`,
		`UPDATE meta SET value = '2' WHERE key = 'schema_version'`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Record stores a run summary with its obsolete keys.
func (d *DB) Record(ctx context.Context, s snapshot.Summary) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.ExecContext(ctx, `INSERT INTO runs
		(started_at, mode, added, matched, unmatched, updated, total,
		 files_added, files_updated, files_removed, files_unmatched, files_obsolete, unchecked)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.StartedAt.UnixNano(), s.Mode.String(), s.Added, s.Matched, s.Unmatched, s.Updated, s.Total,
		s.FilesAdded, s.FilesUpdated, s.FilesRemoved, s.FilesUnmatched, s.FilesObsolete, s.Unchecked)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT OR IGNORE INTO obsolete (run_id, file, key) VALUES (?, ?, ?)")
	if err != nil {
		return fmt.Errorf("prepare obsolete: %w", err)
	}
	defer stmt.Close()
	keys := 0
	for _, f := range s.Obsolete {
		for _, k := range f.Keys {
			if _, err := stmt.ExecContext(ctx, id, f.FilePath, k); err != nil {
				return fmt.Errorf("insert obsolete %s: %w", f.FilePath, err)
			}
			keys++
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	sub("db").Debug("run recorded", "id", id, "total", s.Total, "obsoleteKeys", keys)
	return nil
}

const runColumns = `id, started_at, mode, added, matched, unmatched, updated, total,
	files_added, files_updated, files_removed, files_unmatched, files_obsolete, unchecked`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var r Run
	var started int64
	err := row.Scan(&r.ID, &started, &r.Mode, &r.Added, &r.Matched, &r.Unmatched, &r.Updated, &r.Total,
		&r.FilesAdded, &r.FilesUpdated, &r.FilesRemoved, &r.FilesUnmatched, &r.FilesObsolete, &r.Unchecked)
	if err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(0, started)
	return r, nil
}

// Runs returns up to limit runs, newest first. limit <= 0 returns all.
func (d *DB) Runs(ctx context.Context, limit int) ([]Run, error) {
	q := "SELECT " + runColumns + " FROM runs ORDER BY id DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := d.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LastRun returns the newest run, or ErrNoRuns.
func (d *DB) LastRun(ctx context.Context) (Run, error) {
	r, err := scanRun(d.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs ORDER BY id DESC LIMIT 1"))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("query last run: %w", err)
	}
	return r, nil
}

// Obsolete returns the obsolete keys of a run grouped per snapshot file,
// files and keys in ascending order.
func (d *DB) Obsolete(ctx context.Context, runID int64) ([]snapshot.ObsoleteFile, error) {
	rows, err := d.db.QueryContext(ctx,
		"SELECT file, key FROM obsolete WHERE run_id = ? ORDER BY file, key", runID)
	if err != nil {
		return nil, fmt.Errorf("query obsolete: %w", err)
	}
	defer rows.Close()

	var out []snapshot.ObsoleteFile
	for rows.Next() {
		var file, key string
		if err := rows.Scan(&file, &key); err != nil {
			return nil, fmt.Errorf("scan obsolete: %w", err)
		}
		if n := len(out); n > 0 && out[n-1].FilePath == file {
			out[n-1].Keys = append(out[n-1].Keys, key)
			continue
		}
		out = append(out, snapshot.ObsoleteFile{FilePath: file, Keys: []string{key}})
	}
	return out, rows.Err()
}

// LastObsolete returns the newest run and its obsolete keys.
func (d *DB) LastObsolete(ctx context.Context) (Run, []snapshot.ObsoleteFile, error) {
	r, err := d.LastRun(ctx)
	if err != nil {
		return Run{}, nil, err
	}
	files, err := d.Obsolete(ctx, r.ID)
	return r, files, err
}

// Recorder opens the ledger for each Record call, so a Client can carry it
// for the whole test binary without holding the database open.
type Recorder struct {
	Path string
}

// NewRecorder returns a Recorder for path, or nil when path is empty.
func NewRecorder(path string) snapshot.Recorder {
	if path == "" {
		return nil
	}
	return &Recorder{Path: path}
}

func (r *Recorder) Record(ctx context.Context, s snapshot.Summary) error {
	db, err := Open(r.Path)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.Record(ctx, s)
}
