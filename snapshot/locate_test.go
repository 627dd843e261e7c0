package snapshot

import (
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type markerHelper struct{}

//go:noinline
func (markerHelper) Mark() (CallSite, error) {
	return StackLocator(".markerHelper.Mark")
}

func TestStackLocator_ReturnsCaller(t *testing.T) {
	_, _, line, _ := runtime.Caller(0)
	site, err := markerHelper{}.Mark()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(site.File, "locate_test.go"), site.File)
	assert.Equal(t, line+1, site.Line)
	assert.Zero(t, site.Column)
}

func TestStackLocator_MarkerMissing(t *testing.T) {
	_, err := StackLocator(".neverOnTheStack")
	assert.ErrorIs(t, err, ErrCallSiteUnresolved)
}

type fakeFrames struct {
	frames []runtime.Frame
}

func (f *fakeFrames) Next() (runtime.Frame, bool) {
	fr := f.frames[0]
	f.frames = f.frames[1:]
	return fr, len(f.frames) > 0
}

func TestCallerAfter(t *testing.T) {
	frames := &fakeFrames{frames: []runtime.Frame{
		{Function: "pkg.(*Assertion).run", File: "expect.go", Line: 10},
		{Function: "pkg.(*Assertion).ToMatchInline", File: "expect.go", Line: 20},
		{Function: "pkg.TestX", File: "x_test.go", Line: 7},
		{Function: "testing.tRunner", File: "testing.go", Line: 1},
	}}
	site, err := callerAfter(frames, ".(*Assertion).ToMatchInline")
	require.NoError(t, err)
	assert.Equal(t, CallSite{File: "x_test.go", Line: 7}, site)

	frames = &fakeFrames{frames: []runtime.Frame{
		{Function: "pkg.(*Assertion).ToMatchInline", File: "expect.go", Line: 20},
	}}
	_, err = callerAfter(frames, ".(*Assertion).ToMatchInline")
	assert.ErrorIs(t, err, ErrCallSiteUnresolved)
}
