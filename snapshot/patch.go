package snapshot

import (
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/samber/lo"
)

// CallShape is the argument layout of an inline snapshot call.
type CallShape int

const (
	// ShapeLiteral: name(), name(`lit`). A composite literal first
	// argument is treated as ShapeObject.
	ShapeLiteral CallShape = iota
	// ShapeObject: name(Props{...}), name(Props{...}, `lit`).
	ShapeObject
	// ShapeMessage: name(msg), name(msg, `lit`).
	ShapeMessage
)

// DefaultCallShapes are the inline assertion methods of Assertion.
func DefaultCallShapes() map[string]CallShape {
	return map[string]CallShape{
		"ToMatchInline":            ShapeLiteral,
		"ToErrorMatchingInline":    ShapeLiteral,
		"ToMatchInlineProps":       ShapeObject,
		"ToMatchInlineWithMessage": ShapeMessage,
	}
}

// Patcher rewrites inline snapshot literals in source text.
type Patcher struct {
	shapes map[string]CallShape
}

// NewPatcher returns a Patcher recognizing the given call names; nil
// means DefaultCallShapes.
func NewPatcher(shapes map[string]CallShape) *Patcher {
	if shapes == nil {
		shapes = DefaultCallShapes()
	}
	return &Patcher{shapes: shapes}
}

// splice replaces src[start:end] with text; start == end inserts.
type splice struct {
	start, end int
	text       string
}

// Apply patches every source file named by edits. Files whose rendered
// text equals the original are not written.
func (p *Patcher) Apply(env Environment, edits []InlineEdit) error {
	l := sub("patcher")
	byFile := lo.GroupBy(edits, func(e InlineEdit) string { return e.File })
	files := lo.Keys(byFile)
	sort.Strings(files)

	for _, file := range files {
		src, ok, err := env.ReadSnapshotFile(file)
		if err != nil {
			return fmt.Errorf("read source %s: %w", file, err)
		}
		if !ok {
			return fmt.Errorf("%w: source %s does not exist", ErrCallSiteUnresolved, file)
		}
		out, err := p.Patch(src, byFile[file])
		if err != nil {
			return fmt.Errorf("patch %s: %w", file, err)
		}
		if out == src {
			l.Debug("source unchanged", "file", file)
			continue
		}
		if err := env.SaveSnapshotFile(file, out); err != nil {
			return fmt.Errorf("write source %s: %w", file, err)
		}
		l.Info("inline snapshots written", "file", file, "edits", len(byFile[file]))
	}
	return nil
}

// Patch applies edits to src and returns the new text.
func (p *Patcher) Patch(src string, edits []InlineEdit) (string, error) {
	splices := make([]splice, 0, len(edits))
	for _, e := range edits {
		offset, ok := positionToOffset(src, e.Line, e.Column)
		if !ok {
			return "", fmt.Errorf("%w: %s:%d:%d is outside the file", ErrCallSiteUnresolved, e.File, e.Line, e.Column)
		}
		sp, err := p.spliceAt(src, offset, e.Snapshot)
		if err != nil {
			return "", fmt.Errorf("%s:%d: %w", e.File, e.Line, err)
		}
		if logEnabled(slog.LevelDebug) {
			sub("patcher").Debug("splice", "file", e.File, "line", e.Line, "start", sp.start, "end", sp.end)
		}
		splices = append(splices, sp)
	}
	return applySplices(src, splices)
}

// spliceAt finds the inline call at or after offset and builds the edit
// that installs snapshot as its literal argument.
func (p *Patcher) spliceAt(src string, offset int, snapshot string) (splice, error) {
	call, ok := findCall(src, offset, p.shapes)
	if !ok {
		return splice{}, fmt.Errorf("%w: no inline snapshot call after offset %d", ErrCallSiteUnresolved, offset)
	}
	lit := newLiteral(snapshot, lineIndent(src, call.nameStart))
	args := call.arguments(src)

	if call.shape == ShapeMessage {
		switch len(args) {
		case 0:
			return splice{call.close, call.close, `"", ` + lit}, nil
		case 1:
			return splice{args[0].end, args[0].end, ", " + lit}, nil
		default:
			return splice{args[1].start, args[1].end, lit}, nil
		}
	}

	if len(args) == 0 {
		if call.shape == ShapeObject {
			return splice{}, fmt.Errorf("%w: %s needs a property argument", ErrCallSiteUnresolved, call.name)
		}
		return splice{call.close, call.close, lit}, nil
	}

	first := args[0]
	switch src[first.start] {
	case '"', '\'', '`':
		end, ok := literalEnd(src, first.start, call.close)
		if !ok {
			return splice{}, fmt.Errorf("%w: unterminated literal in %s", ErrCallSiteUnresolved, call.name)
		}
		return splice{first.start, end, lit}, nil
	}

	brace, ok := compositeBrace(src, first)
	if !ok {
		return splice{}, fmt.Errorf("%w: unsupported first argument %q of %s", ErrCallSiteUnresolved, src[first.start:first.end], call.name)
	}
	objEnd, ok := matchBrace(src, brace, call.close)
	if !ok {
		return splice{}, fmt.Errorf("%w: unbalanced braces in %s", ErrCallSiteUnresolved, call.name)
	}
	if objEnd == call.close {
		return splice{call.close, call.close, ", " + lit}, nil
	}
	return splice{objEnd, call.close, ", " + lit}, nil
}

// compositeBrace returns the '{' of a composite literal argument such as
// `Props{`, `map[string]string{` or a bare `{`.
func compositeBrace(src string, arg span) (int, bool) {
	for i := arg.start; i < arg.end; i++ {
		c := src[i]
		switch {
		case c == '{':
			return i, true
		case isIdentByte(c) || c == '.' || c == '[' || c == ']' || c == '*' || c == ' ':
		default:
			return 0, false
		}
	}
	return 0, false
}

func applySplices(src string, splices []splice) (string, error) {
	sort.SliceStable(splices, func(i, j int) bool { return splices[i].start < splices[j].start })
	var b strings.Builder
	b.Grow(len(src))
	pos := 0
	var prev *splice
	for i := range splices {
		sp := &splices[i]
		if prev != nil && *prev == *sp {
			// the same assertion reached again, e.g. from a loop
			continue
		}
		if prev != nil && (sp.start < prev.end || (sp.start == prev.start && sp.start == sp.end)) {
			return "", fmt.Errorf("conflicting inline snapshots at offset %d", sp.start)
		}
		b.WriteString(src[pos:sp.start])
		b.WriteString(sp.text)
		pos = sp.end
		prev = sp
	}
	b.WriteString(src[pos:])
	return b.String(), nil
}

// positionToOffset converts a 1-based line and column to a byte offset.
// Column 0 means the start of the line; columns past the end clamp to it.
func positionToOffset(src string, line, column int) (int, bool) {
	if line < 1 {
		return 0, false
	}
	start := 0
	for l := 1; l < line; l++ {
		nl := strings.IndexByte(src[start:], '\n')
		if nl < 0 {
			return 0, false
		}
		start += nl + 1
	}
	end := len(src)
	if nl := strings.IndexByte(src[start:], '\n'); nl >= 0 {
		end = start + nl
	}
	if column <= 1 {
		return start, true
	}
	return min(start+column-1, end), true
}

// lineIndent returns the leading whitespace of the line holding offset.
func lineIndent(src string, offset int) string {
	start := strings.LastIndexByte(src[:offset], '\n') + 1
	end := start
	for end < len(src) && (src[end] == ' ' || src[end] == '\t') {
		end++
	}
	return src[start:end]
}

// newLiteral renders snapshot as a Go string literal. Multi-line text
// becomes a raw string whose lines sit one level deeper than indent, with
// the closing backtick on its own line at indent. Text a raw string cannot
// hold is quoted instead.
func newLiteral(snapshot, indent string) string {
	text := strings.Trim(snapshot, "\n")
	if !rawSafe(text) {
		return strconv.Quote(text)
	}
	lines := strings.Split(text, "\n")
	if len(lines) <= 1 {
		return "`" + text + "`"
	}
	next := indent + "  "
	if strings.Contains(indent, "\t") {
		next = indent + "\t"
	}
	var b strings.Builder
	b.WriteString("`\n")
	for _, line := range lines {
		if line != "" {
			b.WriteString(next)
			b.WriteString(line)
		}
		b.WriteString("\n")
	}
	b.WriteString(indent)
	b.WriteString("`")
	return b.String()
}

// rawSafe reports whether text can sit verbatim inside a Go raw string
// literal: valid UTF-8 with no backtick, BOM or control character other
// than newline and tab.
func rawSafe(text string) bool {
	if !utf8.ValidString(text) {
		return false
	}
	for _, r := range text {
		switch {
		case r == '`', r == '\uFEFF', r == 0x7f:
			return false
		case r < 0x20 && r != '\n' && r != '\t':
			return false
		}
	}
	return true
}
