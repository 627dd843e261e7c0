package snapshot

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// nowFunc is the time source, replaceable in tests.
var nowFunc = time.Now

var (
	// ErrNoActiveFile is returned by Client.Assert when no test file is bound.
	ErrNoActiveFile = errors.New("no active snapshot file bound")
	// ErrCallSiteUnresolved is returned when an inline snapshot's source
	// location cannot be found. The edit is dropped.
	ErrCallSiteUnresolved = errors.New("inline snapshot call site unresolved")
	// ErrMalformedSnapshot is returned by ParseSnapshotFile for content
	// outside the store grammar.
	ErrMalformedSnapshot = errors.New("malformed snapshot file")
	// ErrRawPathUnresolved is returned when a file snapshot path cannot be
	// resolved before comparison.
	ErrRawPathUnresolved = errors.New("raw snapshot path unresolved")
	// ErrNotAnError is returned by error assertions on values that are not
	// non-nil errors.
	ErrNotAnError = errors.New("value is not a non-nil error")
)

// UpdateMode controls whether missing or mismatching snapshots are written.
type UpdateMode int

const (
	UpdateNone UpdateMode = iota // never write
	UpdateNew                    // write snapshots that do not exist yet
	UpdateAll                    // write new and mismatching snapshots, purge obsolete ones
)

// ParseUpdateMode accepts "none", "new" or "all".
func ParseUpdateMode(v string) (UpdateMode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "none", "":
		return UpdateNone, nil
	case "new":
		return UpdateNew, nil
	case "all":
		return UpdateAll, nil
	}
	return UpdateNone, fmt.Errorf("unknown update mode %q", v)
}

func (m UpdateMode) String() string {
	switch m {
	case UpdateNone:
		return "none"
	case UpdateNew:
		return "new"
	case UpdateAll:
		return "all"
	}
	return fmt.Sprintf("UpdateMode(%d)", int(m))
}

// CallSite is a position in a source file. Line and Column are 1-based;
// Column 0 means the position is only known to the line.
type CallSite struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

// InlineEdit is a queued rewrite of one inline snapshot literal.
type InlineEdit struct {
	CallSite
	Snapshot string `json:"snapshot"`
}

// RawEdit is freeform content written verbatim to File.
type RawEdit struct {
	File     string `json:"file"`
	Content  string `json:"content"`
	Readonly bool   `json:"readonly"`
}

// SaveStatus reports what Save did with the snapshot file.
type SaveStatus struct {
	Saved    bool `json:"saved"`
	Deleted  bool `json:"deleted"`  // file removed (UpdateAll only)
	Obsolete bool `json:"obsolete"` // file holds no live snapshots but was kept
}

// Counts are the per-store match tallies.
type Counts struct {
	Added     int `json:"added"`
	Matched   int `json:"matched"`
	Unmatched int `json:"unmatched"`
	Updated   int `json:"updated"`
}

// FileResult is the outcome of flushing one test file's store.
type FileResult struct {
	Counts
	FilePath      string   `json:"filePath"`
	FileDeleted   bool     `json:"fileDeleted"`
	FileObsolete  bool     `json:"fileObsolete"`
	Unchecked     int      `json:"unchecked"`
	UncheckedKeys []string `json:"uncheckedKeys"`
}

// ObsoleteFile lists keys of a snapshot file never visited during a run.
type ObsoleteFile struct {
	FilePath string   `json:"filePath"`
	Keys     []string `json:"keys"`
}

// Summary aggregates FileResults for the reporting layer.
type Summary struct {
	StartedAt      time.Time      `json:"startedAt"`
	Mode           UpdateMode     `json:"mode"`
	Added          int            `json:"added"`
	Matched        int            `json:"matched"`
	Unmatched      int            `json:"unmatched"`
	Updated        int            `json:"updated"`
	Total          int            `json:"total"`
	FilesAdded     int            `json:"filesAdded"`
	FilesUpdated   int            `json:"filesUpdated"`
	FilesRemoved   int            `json:"filesRemoved"`
	FilesUnmatched int            `json:"filesUnmatched"`
	FilesObsolete  int            `json:"filesObsolete"`
	Unchecked      int            `json:"unchecked"`
	Obsolete       []ObsoleteFile `json:"obsolete"`
}

// Add folds one file's result into the summary.
func (s *Summary) Add(r FileResult) {
	if r.Added > 0 {
		s.FilesAdded++
	}
	if r.FileDeleted {
		s.FilesRemoved++
	}
	if r.FileObsolete {
		s.FilesObsolete++
	}
	if r.Unmatched > 0 {
		s.FilesUnmatched++
	}
	if r.Updated > 0 {
		s.FilesUpdated++
	}
	s.Added += r.Added
	s.Matched += r.Matched
	s.Unmatched += r.Unmatched
	s.Updated += r.Updated
	if r.Unchecked > 0 {
		if !r.FileDeleted {
			s.Obsolete = append(s.Obsolete, ObsoleteFile{FilePath: r.FilePath, Keys: r.UncheckedKeys})
		}
		s.Unchecked += r.Unchecked
	}
	s.Total += r.Added + r.Matched + r.Unmatched + r.Updated
}

// Failed reports whether the run left unmatched snapshots.
func (s *Summary) Failed() bool {
	return s.Unmatched > 0
}
