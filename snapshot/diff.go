package snapshot

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// MismatchError is the structured failure of a snapshot comparison.
type MismatchError struct {
	Key      string
	Message  string
	Expected string
	Actual   string
	colored  bool
}

func (e *MismatchError) Error() string {
	var b strings.Builder
	if e.Message != "" {
		b.WriteString(e.Message)
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "snapshot %q mismatched\n", e.Key)
	b.WriteString(e.Diff())
	return b.String()
}

// Diff renders a line diff, "- " for expected and "+ " for actual lines.
func (e *MismatchError) Diff() string {
	return LineDiff(e.Expected, e.Actual, e.colored)
}

// LineDiff renders a line-oriented diff of expected against actual.
func LineDiff(expected, actual string, colored bool) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(expected, actual)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	del, ins := fmt.Sprint, fmt.Sprint
	if colored {
		del = color.New(color.FgRed).Sprint
		ins = color.New(color.FgGreen).Sprint
	}

	var out strings.Builder
	for _, d := range diffs {
		text := strings.TrimSuffix(d.Text, "\n")
		for _, line := range strings.Split(text, "\n") {
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				out.WriteString(del("- " + line))
			case diffmatchpatch.DiffInsert:
				out.WriteString(ins("+ " + line))
			default:
				out.WriteString("  " + line)
			}
			out.WriteString("\n")
		}
	}
	return out.String()
}
