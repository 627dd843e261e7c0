package snapshot

import (
	"fmt"
	"runtime"
	"strings"
)

// Locator resolves the source position of the call that entered the
// frame whose function name ends with marker.
type Locator func(marker string) (CallSite, error)

// StackLocator walks the goroutine's stack and returns the frame right
// after the marker frame. Go frames carry no column, so Column is 0 and
// the patcher searches the line from its start.
func StackLocator(marker string) (CallSite, error) {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	return callerAfter(frames, marker)
}

type frameIterator interface {
	Next() (runtime.Frame, bool)
}

func callerAfter(frames frameIterator, marker string) (CallSite, error) {
	seen := false
	for {
		f, more := frames.Next()
		if seen {
			if f.File == "" || f.Line == 0 {
				return CallSite{}, fmt.Errorf("%w: caller of %s has no position", ErrCallSiteUnresolved, marker)
			}
			return CallSite{File: f.File, Line: f.Line}, nil
		}
		if strings.HasSuffix(f.Function, marker) {
			seen = true
		}
		if !more {
			break
		}
	}
	return CallSite{}, fmt.Errorf("%w: %s not on the stack", ErrCallSiteUnresolved, marker)
}
