package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// StoreOptions configure a Store. Zero values fall back to an OS-backed
// FSEnvironment, the default Serializer and the default Patcher.
type StoreOptions struct {
	Mode       UpdateMode
	Env        Environment
	Serializer *Serializer
	Patcher    *Patcher
	// LegacyEval lets unparsable files be evaluated in a script sandbox
	// before they are given up as corrupt.
	LegacyEval bool
}

// RawSnapshot describes a file whose whole content is the expected value.
type RawSnapshot struct {
	File     string
	Content  *string // nil when the file does not exist
	Readonly bool
}

// MatchOptions describe one assertion.
type MatchOptions struct {
	TestName string
	Received any
	// Key overrides the derived "<TestName> <n>" key.
	Key string
	// Inline marks an inline assertion; InlineSnapshot is its current
	// literal, nil when the call has none yet.
	Inline         bool
	InlineSnapshot *string
	// Locate resolves the inline call site. It is only called when a
	// literal has to be written.
	Locate func() (CallSite, error)
	Raw    *RawSnapshot
}

// MatchResult is the outcome of Match. Actual and Expected are only set
// when Pass is false.
type MatchResult struct {
	Pass     bool
	Key      string
	Count    int
	Actual   string
	Expected string
}

// Store owns the snapshots of one test file. It is not safe for
// concurrent use; callers serialize Match calls.
type Store struct {
	testFile     string
	snapshotPath string
	env          Environment
	serializer   *Serializer
	patcher      *Patcher
	mode         UpdateMode

	record      map[string]string
	fileExists  bool
	dirty       bool
	unchecked   map[string]struct{}
	counters    map[string]int
	inlineEdits []InlineEdit
	rawEdits    []RawEdit
	counts      Counts
}

// NewStore loads the snapshot file of testFile. A file that cannot be
// parsed yields an empty store, marked dirty unless the mode is
// UpdateNone so a clean file replaces it on save.
func NewStore(testFile string, opts StoreOptions) (*Store, error) {
	l := sub("store")
	if opts.Env == nil {
		opts.Env = NewFSEnvironment(nil, "")
	}
	if opts.Serializer == nil {
		opts.Serializer = NewSerializer()
	}
	if opts.Patcher == nil {
		opts.Patcher = NewPatcher(nil)
	}

	path, err := opts.Env.ResolvePath(testFile)
	if err != nil {
		return nil, fmt.Errorf("resolve snapshot path: %w", err)
	}
	content, exists, err := opts.Env.ReadSnapshotFile(path)
	if err != nil {
		return nil, fmt.Errorf("load snapshots of %s: %w", testFile, err)
	}

	s := &Store{
		testFile:     testFile,
		snapshotPath: path,
		env:          opts.Env,
		serializer:   opts.Serializer,
		patcher:      opts.Patcher,
		mode:         opts.Mode,
		record:       make(map[string]string),
		fileExists:   exists,
		unchecked:    make(map[string]struct{}),
		counters:     make(map[string]int),
	}

	if exists {
		record, perr := ParseSnapshotFile(content)
		if perr != nil && opts.LegacyEval {
			record, perr = EvalLegacySnapshotFile(content)
			if perr == nil {
				l.Info("legacy snapshot file loaded", "path", path, "keys", len(record))
				s.dirty = s.mode != UpdateNone
			}
		}
		if perr != nil {
			l.Warn("snapshot file unreadable, starting empty", "path", path, "err", perr)
			record = make(map[string]string)
			s.dirty = s.mode != UpdateNone
		}
		s.record = record
		for k := range record {
			s.unchecked[k] = struct{}{}
		}
	}

	l.Debug("store created", "testFile", testFile, "path", path, "exists", exists, "keys", len(s.record), "mode", s.mode)
	return s, nil
}

// Match compares opts.Received against the stored snapshot and applies
// the write policy for the store's UpdateMode.
func (s *Store) Match(opts MatchOptions) (MatchResult, error) {
	s.counters[opts.TestName]++
	count := s.counters[opts.TestName]
	key := opts.Key
	if key == "" {
		key = opts.TestName + " " + strconv.Itoa(count)
	}

	// An inline assertion whose key also lives in the external record
	// stays unchecked, so UpdateAll can purge the stale external entry.
	if _, external := s.record[key]; !(opts.Inline && external) {
		delete(s.unchecked, key)
	}

	received := s.serializer.Serialize(opts.Received)
	if opts.Raw == nil {
		received = addExtraLineBreaks(received)
	}

	var expected string
	var hasExpected bool
	switch {
	case opts.Inline:
		if opts.InlineSnapshot != nil {
			expected, hasExpected = *opts.InlineSnapshot, true
		}
	case opts.Raw != nil:
		if opts.Raw.Content != nil {
			expected, hasExpected = *opts.Raw.Content, true
			if strings.Contains(expected, "\r\n") && !strings.Contains(received, "\r\n") {
				expected = normalizeNewlines(expected)
			}
		}
	default:
		expected, hasExpected = s.record[key]
	}

	expectedTrimmed := prepareForCompare(expected)
	pass := hasExpected && expectedTrimmed == prepareForCompare(received)
	persisted := opts.Inline || opts.Raw != nil || s.fileExists

	st := policyState{Existing: hasExpected && persisted, Mode: s.mode, Pass: pass}
	act := st.Action()
	if logEnabled(slog.LevelDebug) {
		sub("store").Debug("match", "key", key, "row", st.Row(), "action", act, "inline", opts.Inline, "raw", opts.Raw != nil)
	}

	result := MatchResult{Pass: true, Key: key, Count: count}
	switch act {
	case actionAdd:
		if err := s.addSnapshot(key, received, opts); err != nil {
			return MatchResult{}, err
		}
		s.counts.Added++
	case actionOverwrite:
		if err := s.addSnapshot(key, received, opts); err != nil {
			return MatchResult{}, err
		}
		s.counts.Updated++
	case actionRecanonical:
		if !opts.Inline && opts.Raw == nil && s.record[key] != received {
			s.record[key] = received
			s.dirty = true
		}
		s.counts.Matched++
	case actionMatch:
		s.counts.Matched++
	default:
		s.counts.Unmatched++
		result.Pass = false
		result.Actual = removeExtraLineBreaks(received)
		if hasExpected {
			result.Expected = removeExtraLineBreaks(expectedTrimmed)
		}
	}
	return result, nil
}

func (s *Store) addSnapshot(key, received string, opts MatchOptions) error {
	switch {
	case opts.Inline:
		if opts.Locate == nil {
			return fmt.Errorf("%w: no locator for %q", ErrCallSiteUnresolved, key)
		}
		site, err := opts.Locate()
		if err != nil {
			if errors.Is(err, ErrCallSiteUnresolved) {
				return err
			}
			return fmt.Errorf("%w: %q: %w", ErrCallSiteUnresolved, key, err)
		}
		s.inlineEdits = append(s.inlineEdits, InlineEdit{CallSite: site, Snapshot: received})
	case opts.Raw != nil:
		s.rawEdits = append(s.rawEdits, RawEdit{File: opts.Raw.File, Content: received, Readonly: opts.Raw.Readonly})
	default:
		s.record[key] = received
	}
	s.dirty = true
	return nil
}

// UncheckedCount returns the number of stored keys not visited yet.
func (s *Store) UncheckedCount() int { return len(s.unchecked) }

// UncheckedKeys returns the unvisited keys in natural order.
func (s *Store) UncheckedKeys() []string {
	keys := make(map[string]string, len(s.unchecked))
	for k := range s.unchecked {
		keys[k] = ""
	}
	return SortKeys(keys)
}

// RemoveUncheckedKeys deletes unvisited keys from the record. It only acts
// under UpdateAll.
func (s *Store) RemoveUncheckedKeys() {
	if s.mode != UpdateAll || len(s.unchecked) == 0 {
		return
	}
	s.dirty = true
	for k := range s.unchecked {
		delete(s.record, k)
	}
	s.unchecked = make(map[string]struct{})
}

// Pack purges obsolete keys (UpdateAll only) and saves.
func (s *Store) Pack() (SaveStatus, error) {
	s.RemoveUncheckedKeys()
	return s.Save()
}

// Save persists the record and flushes queued inline and raw edits.
// A store whose record became empty deletes its file under UpdateAll and
// reports it obsolete otherwise.
func (s *Store) Save() (SaveStatus, error) {
	l := sub("store")
	var status SaveStatus
	hasExternal := len(s.record) > 0
	hasInline := len(s.inlineEdits) > 0
	hasRaw := len(s.rawEdits) > 0

	if (s.dirty || len(s.unchecked) > 0) && (hasExternal || hasInline || hasRaw) {
		if hasExternal {
			if err := s.saveSnapshotFile(); err != nil {
				return status, err
			}
			s.fileExists = true
		}
		if hasInline {
			if err := s.patcher.Apply(s.env, s.inlineEdits); err != nil {
				return status, fmt.Errorf("save inline snapshots: %w", err)
			}
			s.inlineEdits = nil
		}
		if hasRaw {
			if err := SaveRawSnapshots(context.Background(), s.env, s.rawEdits); err != nil {
				return status, fmt.Errorf("save raw snapshots: %w", err)
			}
			s.rawEdits = nil
		}
		s.dirty = false
		status.Saved = true
	}

	if !hasExternal && s.fileExists {
		if s.mode == UpdateAll {
			if err := s.env.RemoveSnapshotFile(s.snapshotPath); err != nil {
				return status, err
			}
			s.fileExists = false
			status.Deleted = true
			l.Info("snapshot file removed", "path", s.snapshotPath)
		} else {
			status.Obsolete = true
		}
	}
	return status, nil
}

func (s *Store) saveSnapshotFile() error {
	text := RenderSnapshotFile(s.env.Header(), s.record)
	old, exists, err := s.env.ReadSnapshotFile(s.snapshotPath)
	if err == nil && exists && old == text {
		sub("store").Debug("snapshot file unchanged", "path", s.snapshotPath)
		return nil
	}
	if err := s.env.SaveSnapshotFile(s.snapshotPath, text); err != nil {
		return fmt.Errorf("save snapshot file %s: %w", s.snapshotPath, err)
	}
	sub("store").Info("snapshot file written", "path", s.snapshotPath, "keys", len(s.record))
	return nil
}

// Counts returns the match tallies so far.
func (s *Store) Counts() Counts { return s.counts }

// SnapshotPath returns the resolved snapshot file path.
func (s *Store) SnapshotPath() string { return s.snapshotPath }

// TestFile returns the test file the store belongs to.
func (s *Store) TestFile() string { return s.testFile }

// FileExists reports whether the snapshot file exists on disk.
func (s *Store) FileExists() bool { return s.fileExists }

// Dirty reports whether unsaved changes exist.
func (s *Store) Dirty() bool { return s.dirty }

// Mode returns the store's update mode.
func (s *Store) Mode() UpdateMode { return s.mode }

// Record returns a copy of the current key → value mapping.
func (s *Store) Record() map[string]string {
	out := make(map[string]string, len(s.record))
	for k, v := range s.record {
		out[k] = v
	}
	return out
}
