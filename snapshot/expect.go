package snapshot

import (
	"errors"
	"strings"
)

// TB is the part of testing.TB used by assertions.
type TB interface {
	Helper()
	Name() string
	Errorf(format string, args ...any)
	Fatalf(format string, args ...any)
}

// Assertion is a pending snapshot assertion on one value.
type Assertion struct {
	c     *Client
	t     TB
	value any
}

// Expect starts an assertion on value. The snapshot file is chosen from
// the source file of the assertion call.
func (c *Client) Expect(t TB, value any) *Assertion {
	t.Helper()
	return &Assertion{c: c, t: t, value: value}
}

func marker(method string) string { return ".(*Assertion)." + method }

// ToMatch compares the value against the snapshot file.
func (a *Assertion) ToMatch() {
	a.t.Helper()
	a.run(marker("ToMatch"), MatchOptions{Received: a.value}, "")
}

// ToMatchNamed is ToMatch with a hint in the key: "<test>: <hint> <n>".
func (a *Assertion) ToMatchNamed(hint string) {
	a.t.Helper()
	a.run(marker("ToMatchNamed"), MatchOptions{TestName: a.t.Name() + ": " + hint, Received: a.value}, "")
}

// ToMatchProps checks the property matchers, then compares the value with
// matched properties replaced by their matchers.
func (a *Assertion) ToMatchProps(props Props) {
	a.t.Helper()
	view, ok := a.applyProps(props)
	if !ok {
		return
	}
	a.run(marker("ToMatchProps"), MatchOptions{Received: view}, "")
}

// ToMatchInline compares the value against the literal argument,
// writing the literal into the source when it is missing or updated.
func (a *Assertion) ToMatchInline(snapshot ...string) {
	a.t.Helper()
	a.run(marker("ToMatchInline"), inlineOptions(a.value, snapshot), "")
}

// ToMatchInlineProps is ToMatchInline with property matchers.
func (a *Assertion) ToMatchInlineProps(props Props, snapshot ...string) {
	a.t.Helper()
	view, ok := a.applyProps(props)
	if !ok {
		return
	}
	a.run(marker("ToMatchInlineProps"), inlineOptions(view, snapshot), "")
}

// ToMatchInlineWithMessage is ToMatchInline with a failure message.
func (a *Assertion) ToMatchInlineWithMessage(message string, snapshot ...string) {
	a.t.Helper()
	a.run(marker("ToMatchInlineWithMessage"), inlineOptions(a.value, snapshot), message)
}

// ToErrorMatching snapshots the message of an error value.
func (a *Assertion) ToErrorMatching() {
	a.t.Helper()
	msg, ok := a.errorMessage()
	if !ok {
		return
	}
	a.run(marker("ToErrorMatching"), MatchOptions{Received: msg}, "")
}

// ToErrorMatchingInline snapshots the message of an error value inline.
func (a *Assertion) ToErrorMatchingInline(snapshot ...string) {
	a.t.Helper()
	msg, ok := a.errorMessage()
	if !ok {
		return
	}
	a.run(marker("ToErrorMatchingInline"), inlineOptions(msg, snapshot), "")
}

// FileOption configures ToMatchFile.
type FileOption func(*RawSnapshot)

// ReadOnly compares against the file but never writes it.
func ReadOnly() FileOption {
	return func(r *RawSnapshot) { r.Readonly = true }
}

// ToMatchFile compares the value with the whole content of path, resolved
// relative to the test file's directory.
func (a *Assertion) ToMatchFile(path string, opts ...FileOption) {
	a.t.Helper()
	site, ok := a.site(marker("ToMatchFile"))
	if !ok {
		return
	}
	raw, err := a.c.RawSnapshot(site.File, path, false)
	if err != nil {
		a.t.Fatalf("snapshot: %v", err)
		return
	}
	for _, opt := range opts {
		opt(raw)
	}
	a.match(site, MatchOptions{Received: a.value, Raw: raw}, "")
}

func inlineOptions(value any, snapshot []string) MatchOptions {
	opts := MatchOptions{Received: value, Inline: true}
	if len(snapshot) > 0 {
		opts.InlineSnapshot = &snapshot[0]
	}
	return opts
}

func (a *Assertion) site(marker string) (CallSite, bool) {
	a.t.Helper()
	site, err := a.c.locate(marker)
	if err != nil {
		a.t.Fatalf("snapshot: %v", err)
		return CallSite{}, false
	}
	return site, true
}

func (a *Assertion) run(marker string, opts MatchOptions, message string) {
	a.t.Helper()
	site, ok := a.site(marker)
	if !ok {
		return
	}
	a.match(site, opts, message)
}

func (a *Assertion) match(site CallSite, opts MatchOptions, message string) {
	a.t.Helper()
	if opts.TestName == "" {
		opts.TestName = a.t.Name()
	}
	if opts.Inline {
		opts.Locate = func() (CallSite, error) { return site, nil }
	}
	err := a.c.matchIn(site.File, opts, message)
	if err == nil {
		return
	}
	var mismatch *MismatchError
	if errors.As(err, &mismatch) {
		a.t.Errorf("%v", err)
		return
	}
	a.t.Fatalf("snapshot: %v", err)
}

func (a *Assertion) applyProps(props Props) (any, bool) {
	a.t.Helper()
	view, failed, err := props.apply(a.value)
	if err != nil {
		a.t.Fatalf("snapshot: %v", err)
		return nil, false
	}
	if len(failed) > 0 {
		actual, _ := fieldsOf(a.value)
		a.t.Errorf("%v", &MismatchError{
			Key:      a.t.Name(),
			Message:  "properties " + strings.Join(failed, ", ") + " mismatched",
			Expected: props.String(),
			Actual:   a.c.serializer.Serialize(actual),
			colored:  a.c.cfg.Color,
		})
		return nil, false
	}
	return view, true
}

func (a *Assertion) errorMessage() (string, bool) {
	a.t.Helper()
	err, ok := a.value.(error)
	if !ok || err == nil {
		a.t.Fatalf("snapshot: %v: got %T", ErrNotAnError, a.value)
		return "", false
	}
	return err.Error(), true
}
