package snapshot

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

const (
	snapshotVersion   = "1"
	snapshotHeader    = "// Snapshot v" + snapshotVersion
	defaultSnapDir    = "__snapshots__"
	snapshotExtension = ".snap"
)

// Environment is the filesystem and path collaborator of a Store. It is
// also used by the source patcher to read and write test sources.
type Environment interface {
	Version() string
	Header() string
	// ResolvePath maps a test file to its snapshot file.
	ResolvePath(testFile string) (string, error)
	// ResolveRawPath maps a file-snapshot reference to an absolute path.
	ResolveRawPath(testFile, rawRef string) (string, error)
	// ReadSnapshotFile returns ok=false when the file does not exist.
	ReadSnapshotFile(path string) (content string, ok bool, err error)
	SaveSnapshotFile(path, content string) error
	RemoveSnapshotFile(path string) error
}

// FSEnvironment implements Environment on an afero filesystem.
type FSEnvironment struct {
	fs      afero.Fs
	snapDir string
}

// NewFSEnvironment returns an Environment on fsys. Snapshot files are
// placed in snapDir (default "__snapshots__") next to each test file.
func NewFSEnvironment(fsys afero.Fs, snapDir string) *FSEnvironment {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if snapDir == "" {
		snapDir = defaultSnapDir
	}
	return &FSEnvironment{fs: fsys, snapDir: snapDir}
}

// Fs returns the underlying filesystem.
func (e *FSEnvironment) Fs() afero.Fs { return e.fs }

func (e *FSEnvironment) Version() string { return snapshotVersion }

func (e *FSEnvironment) Header() string { return snapshotHeader }

func (e *FSEnvironment) ResolvePath(testFile string) (string, error) {
	if testFile == "" {
		return "", fmt.Errorf("resolve snapshot path: empty test file")
	}
	dir, base := filepath.Split(testFile)
	return filepath.Join(dir, e.snapDir, base+snapshotExtension), nil
}

func (e *FSEnvironment) ResolveRawPath(testFile, rawRef string) (string, error) {
	if rawRef == "" {
		return "", fmt.Errorf("%w: empty reference", ErrRawPathUnresolved)
	}
	if filepath.IsAbs(rawRef) {
		return filepath.Clean(rawRef), nil
	}
	if testFile == "" {
		return "", fmt.Errorf("%w: %q has no test file to resolve against", ErrRawPathUnresolved, rawRef)
	}
	return filepath.Join(filepath.Dir(testFile), rawRef), nil
}

func (e *FSEnvironment) ReadSnapshotFile(path string) (string, bool, error) {
	data, err := afero.ReadFile(e.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read snapshot file: %w", err)
	}
	return string(data), true, nil
}

// SaveSnapshotFile writes content atomically: a temp file next to path is
// renamed over it, so readers never see a partial snapshot.
func (e *FSEnvironment) SaveSnapshotFile(path, content string) error {
	if err := e.fs.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("mkdir snapshot parent: %w", err)
	}

	perm := os.FileMode(0644)
	if info, err := e.fs.Stat(path); err == nil {
		perm = info.Mode().Perm()
	}

	tmpPath := path + ".snap-tmp"
	if err := afero.WriteFile(e.fs, tmpPath, []byte(content), perm); err != nil {
		e.fs.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("write tmp: %w", err)
	}
	if err := e.fs.Rename(tmpPath, path); err != nil {
		e.fs.Remove(tmpPath) //nolint:errcheck
		return fmt.Errorf("rename tmp to snapshot: %w", err)
	}
	return nil
}

func (e *FSEnvironment) RemoveSnapshotFile(path string) error {
	err := e.fs.Remove(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove snapshot file: %w", err)
	}
	return nil
}
