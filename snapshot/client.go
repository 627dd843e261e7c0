package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	gosync "sync"

	"github.com/samber/lo"
)

// Recorder receives the summary of every finished run.
type Recorder interface {
	Record(ctx context.Context, summary Summary) error
}

// TestingM is the part of *testing.M used by Client.Run.
type TestingM interface {
	Run() int
}

// Client is the registry of open stores for one test run, keyed by test
// file path. Its lifecycle belongs to the caller: stores open on first use
// (or Open/Bind) and are flushed by Close, Bind or Finish.
type Client struct {
	mu         gosync.Mutex
	cfg        Config
	env        Environment
	serializer *Serializer
	patcher    *Patcher
	locate     Locator
	recorder   Recorder

	stores  map[string]*Store
	active  string
	summary Summary
}

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the client configuration.
func WithConfig(cfg Config) Option { return func(c *Client) { c.cfg = cfg } }

// WithUpdateMode overrides the configured update mode.
func WithUpdateMode(mode UpdateMode) Option { return func(c *Client) { c.cfg.Update = mode } }

// WithEnvironment sets the filesystem collaborator.
func WithEnvironment(env Environment) Option { return func(c *Client) { c.env = env } }

// WithSerializer sets the value serializer.
func WithSerializer(s *Serializer) Option { return func(c *Client) { c.serializer = s } }

// WithPatcher sets the inline source patcher.
func WithPatcher(p *Patcher) Option { return func(c *Client) { c.patcher = p } }

// WithLocator replaces the stack-based call-site locator.
func WithLocator(l Locator) Option { return func(c *Client) { c.locate = l } }

// WithRecorder sets where run summaries are recorded.
func WithRecorder(r Recorder) Option { return func(c *Client) { c.recorder = r } }

// NewClient returns a Client. Without options it writes new snapshots and
// keeps existing ones, on the OS filesystem.
func NewClient(opts ...Option) *Client {
	c := &Client{
		cfg:    Config{Update: UpdateNew, SnapshotDir: defaultSnapDir, LegacyEval: true},
		locate: StackLocator,
		stores: make(map[string]*Store),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.env == nil {
		c.env = NewFSEnvironment(nil, c.cfg.SnapshotDir)
	}
	if c.serializer == nil {
		c.serializer = NewSerializer()
	}
	if c.patcher == nil {
		c.patcher = NewPatcher(nil)
	}
	c.summary = Summary{StartedAt: nowFunc(), Mode: c.cfg.Update}
	return c
}

// NewClientFromEnv loads Config from the environment and config file,
// initializes logging and returns a Client using it.
func NewClientFromEnv(opts ...Option) (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	InitLogger(cfg.LogDir, cfg.LogLevel)
	return NewClient(append([]Option{WithConfig(cfg)}, opts...)...), nil
}

// MustClientFromEnv is NewClientFromEnv for package-level test variables.
func MustClientFromEnv(opts ...Option) *Client {
	c, err := NewClientFromEnv(opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Config returns the client configuration.
func (c *Client) Config() Config { return c.cfg }

// Environment returns the filesystem collaborator.
func (c *Client) Environment() Environment { return c.env }

// Open returns the store of testFile, creating it on first use.
func (c *Client) Open(testFile string) (*Store, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open(testFile)
}

func (c *Client) open(testFile string) (*Store, error) {
	if s, ok := c.stores[testFile]; ok {
		return s, nil
	}
	s, err := NewStore(testFile, StoreOptions{
		Mode:       c.cfg.Update,
		Env:        c.env,
		Serializer: c.serializer,
		Patcher:    c.patcher,
		LegacyEval: c.cfg.LegacyEval,
	})
	if err != nil {
		return nil, err
	}
	c.stores[testFile] = s
	return s, nil
}

// Bind makes testFile the active file. The previously active store is
// flushed before the new one is created, so queued edits never cross
// files.
func (c *Client) Bind(testFile string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active != "" && c.active != testFile {
		if _, err := c.close(c.active); err != nil {
			return fmt.Errorf("flush %s: %w", c.active, err)
		}
	}
	if _, err := c.open(testFile); err != nil {
		return err
	}
	c.active = testFile
	return nil
}

// Active returns the bound test file, or "".
func (c *Client) Active() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Assert matches against the active store. A failed comparison is
// returned as *MismatchError.
func (c *Client) Assert(opts MatchOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == "" {
		return ErrNoActiveFile
	}
	return c.matchStore(c.stores[c.active], opts, "")
}

// matchIn matches against the store of testFile without changing the
// active binding.
func (c *Client) matchIn(testFile string, opts MatchOptions, message string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, err := c.open(testFile)
	if err != nil {
		return err
	}
	return c.matchStore(s, opts, message)
}

func (c *Client) matchStore(s *Store, opts MatchOptions, message string) error {
	res, err := s.Match(opts)
	if err != nil {
		return err
	}
	if !res.Pass {
		return &MismatchError{
			Key:      res.Key,
			Message:  message,
			Expected: res.Expected,
			Actual:   res.Actual,
			colored:  c.cfg.Color,
		}
	}
	return nil
}

// RawSnapshot resolves a file snapshot reference relative to testFile and
// reads its current content.
func (c *Client) RawSnapshot(testFile, ref string, readonly bool) (*RawSnapshot, error) {
	path, err := c.env.ResolveRawPath(testFile, ref)
	if err != nil {
		if errors.Is(err, ErrRawPathUnresolved) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrRawPathUnresolved, err)
	}
	content, ok, err := c.env.ReadSnapshotFile(path)
	if err != nil {
		return nil, err
	}
	raw := &RawSnapshot{File: path, Readonly: readonly}
	if ok {
		raw.Content = &content
	}
	return raw, nil
}

// Close flushes and drops the store of testFile.
func (c *Client) Close(testFile string) (FileResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.close(testFile)
}

func (c *Client) close(testFile string) (FileResult, error) {
	s, ok := c.stores[testFile]
	if !ok {
		return FileResult{}, nil
	}
	delete(c.stores, testFile)
	if c.active == testFile {
		c.active = ""
	}

	unchecked := s.UncheckedCount()
	keys := s.UncheckedKeys()
	status, err := s.Pack()
	res := FileResult{
		Counts:       s.Counts(),
		FilePath:     s.SnapshotPath(),
		FileDeleted:  status.Deleted,
		FileObsolete: status.Obsolete,
	}
	if !status.Deleted {
		res.Unchecked = unchecked
		res.UncheckedKeys = keys
	}
	c.summary.Add(res)
	sub("client").Debug("store closed", "testFile", testFile, "saved", status.Saved, "deleted", status.Deleted,
		"added", res.Added, "matched", res.Matched, "unmatched", res.Unmatched, "updated", res.Updated, "unchecked", res.Unchecked)
	if err != nil {
		return res, fmt.Errorf("flush snapshots of %s: %w", testFile, err)
	}
	return res, nil
}

// Finish closes every open store, records the run and returns its
// summary. Flush errors are joined; every store is attempted.
func (c *Client) Finish(ctx context.Context) (Summary, error) {
	c.mu.Lock()
	files := lo.Keys(c.stores)
	sort.Strings(files)
	var errs []error
	for _, f := range files {
		if _, err := c.close(f); err != nil {
			errs = append(errs, err)
		}
	}
	summary := c.summary
	c.mu.Unlock()

	if c.recorder != nil {
		if err := c.recorder.Record(ctx, summary); err != nil {
			errs = append(errs, fmt.Errorf("record run: %w", err))
		}
	}
	l := sub("client")
	l.Info("snapshot run finished", "mode", summary.Mode, "added", summary.Added, "matched", summary.Matched,
		"unmatched", summary.Unmatched, "updated", summary.Updated, "unchecked", summary.Unchecked)
	return summary, errors.Join(errs...)
}

// Run is the TestMain helper: it runs the tests, flushes every store and
// turns persistence failures into a failing exit code.
//
//	var snaps = snapshot.MustClientFromEnv()
//
//	func TestMain(m *testing.M) { os.Exit(snaps.Run(m)) }
func (c *Client) Run(m TestingM) int {
	code := m.Run()
	summary, err := c.Finish(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "snapshot: %v\n", err)
		if code == 0 {
			code = 1
		}
	}
	if summary.Added+summary.Updated > 0 {
		fmt.Fprintf(os.Stderr, "snapshot: %d written, %d updated\n", summary.Added, summary.Updated)
	}
	if summary.Unchecked > 0 && summary.Mode != UpdateAll {
		fmt.Fprintf(os.Stderr, "snapshot: %d obsolete snapshot(s) in %d file(s); rerun with SNAPSHOT_UPDATE=all to remove\n",
			summary.Unchecked, len(summary.Obsolete))
	}
	return code
}
