package snapshot

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/afero"
)

// IgnoreFileName is the pattern file honoured by FindSnapshotFiles.
const IgnoreFileName = ".snapignore"

// IgnoreList holds patterns loaded from a .snapignore file. Entries whose
// base name matches a pattern are skipped while walking.
type IgnoreList struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern string
	dirOnly bool // trailing / in source line
}

// LoadIgnore reads an ignore file. A missing or unreadable file ignores
// nothing.
func LoadIgnore(fsys afero.Fs, path string) *IgnoreList {
	il := &IgnoreList{}
	f, err := fsys.Open(path)
	if err != nil {
		return il
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := ignorePattern{pattern: line}
		if strings.HasSuffix(line, "/") {
			p.pattern = strings.TrimSuffix(line, "/")
			p.dirOnly = true
		}
		il.patterns = append(il.patterns, p)
	}
	sub("scan").Debug("ignore file loaded", "path", path, "patterns", len(il.patterns))
	return il
}

// IsIgnored reports whether name matches a pattern. dirOnly patterns need
// isDir.
func (il *IgnoreList) IsIgnored(name string, isDir bool) bool {
	if il == nil {
		return false
	}
	for _, p := range il.patterns {
		if p.dirOnly && !isDir {
			continue
		}
		if matched, _ := filepath.Match(p.pattern, name); matched {
			return true
		}
	}
	return false
}

// FindSnapshotFiles walks root and returns every snapshot file below it,
// sorted. Hidden directories and ignored entries are skipped.
func FindSnapshotFiles(fsys afero.Fs, root string, ignore *IgnoreList) ([]string, error) {
	l := sub("scan")
	l.Debug("scan start", "root", root)
	var found []string
	err := afero.Walk(fsys, root, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			l.Warn("scan walk error", "path", path, "err", err)
			return err
		}
		if path == root {
			return nil
		}
		name := info.Name()
		if info.IsDir() {
			if strings.HasPrefix(name, ".") || ignore.IsIgnored(name, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignore.IsIgnored(name, false) {
			return nil
		}
		if IsSnapshotFile(path) {
			found = append(found, path)
		}
		return nil
	})
	sort.Strings(found)
	l.Debug("scan complete", "root", root, "files", len(found))
	return found, err
}

// IsSnapshotFile reports whether path has the snapshot extension.
func IsSnapshotFile(path string) bool {
	return strings.HasSuffix(path, snapshotExtension)
}

// LoadSnapshotFile reads and parses one snapshot file, falling back to
// the legacy evaluator when legacy is set.
func LoadSnapshotFile(env Environment, path string, legacy bool) (map[string]string, error) {
	text, ok, err := env.ReadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("read snapshot file %s: %w", path, os.ErrNotExist)
	}
	record, err := ParseSnapshotFile(text)
	if err != nil && legacy {
		if rec, lerr := EvalLegacySnapshotFile(text); lerr == nil {
			return rec, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return record, nil
}

// PruneKeys removes keys from the snapshot file at path and returns how
// many were present. A file left empty is removed.
func PruneKeys(env Environment, path string, keys []string) (int, error) {
	record, err := LoadSnapshotFile(env, path, true)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	present := lo.Filter(keys, func(k string, _ int) bool {
		_, ok := record[k]
		return ok
	})
	if len(present) == 0 {
		return 0, nil
	}
	for _, k := range present {
		delete(record, k)
	}
	if len(record) == 0 {
		if err := env.RemoveSnapshotFile(path); err != nil {
			return 0, err
		}
		sub("scan").Info("snapshot file removed", "path", path, "pruned", len(present))
		return len(present), nil
	}
	if err := env.SaveSnapshotFile(path, RenderSnapshotFile(env.Header(), record)); err != nil {
		return 0, err
	}
	sub("scan").Info("snapshot keys pruned", "path", path, "pruned", len(present))
	return len(present), nil
}
