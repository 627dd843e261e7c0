package snapshot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/maruel/natural"
	"github.com/samber/lo"
)

// SortKeys returns the record's keys in natural order ("foo 2" < "foo 10").
func SortKeys(record map[string]string) []string {
	keys := lo.Keys(record)
	sort.Slice(keys, func(i, j int) bool { return natural.Less(keys[i], keys[j]) })
	return keys
}

// RenderSnapshotFile produces the persisted text of a record:
//
//	<header>
//
//	store["<key>"] = `<value>`;
//
// with entries separated by blank lines and a trailing newline.
func RenderSnapshotFile(header string, record map[string]string) string {
	keys := SortKeys(record)
	entries := make([]string, len(keys))
	for i, k := range keys {
		entries[i] = "store[" + strconv.Quote(k) + "] = `" + escapeBacktick(record[k]) + "`;"
	}
	return header + "\n\n" + strings.Join(entries, "\n\n") + "\n"
}

func escapeBacktick(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '`' || s[i] == '\\':
			b.WriteByte('\\')
		case s[i] == '$' && i+1 < len(s) && s[i+1] == '{':
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// ParseSnapshotFile reads the restricted assignment grammar
//
//	file  = { comment | entry }
//	entry = ("store" | "exports") "[" string "]" "=" value ";"
//	value = backtick-template | string
//
// into a fresh record. Nothing is evaluated. Errors wrap ErrMalformedSnapshot.
func ParseSnapshotFile(text string) (map[string]string, error) {
	p := &fileParser{src: text}
	record := make(map[string]string)
	for {
		p.skipSpace()
		if p.eof() {
			return record, nil
		}
		key, value, err := p.entry()
		if err != nil {
			line := 1 + strings.Count(text[:p.pos], "\n")
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedSnapshot, line, err)
		}
		record[key] = value
	}
}

type fileParser struct {
	src string
	pos int
}

func (p *fileParser) eof() bool { return p.pos >= len(p.src) }

// skipSpace skips whitespace, line comments and block comments.
func (p *fileParser) skipSpace() {
	for !p.eof() {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			p.pos++
		case strings.HasPrefix(p.src[p.pos:], "//"):
			end := strings.IndexByte(p.src[p.pos:], '\n')
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 1
		case strings.HasPrefix(p.src[p.pos:], "/*"):
			end := strings.Index(p.src[p.pos+2:], "*/")
			if end < 0 {
				p.pos = len(p.src)
				return
			}
			p.pos += end + 4
		default:
			return
		}
	}
}

func (p *fileParser) expect(tok string) error {
	p.skipSpace()
	if !strings.HasPrefix(p.src[p.pos:], tok) {
		return fmt.Errorf("expected %q at offset %d", tok, p.pos)
	}
	p.pos += len(tok)
	return nil
}

func (p *fileParser) entry() (string, string, error) {
	switch {
	case strings.HasPrefix(p.src[p.pos:], "store"):
		p.pos += len("store")
	case strings.HasPrefix(p.src[p.pos:], "exports"):
		p.pos += len("exports")
	default:
		return "", "", fmt.Errorf("expected store assignment at offset %d", p.pos)
	}
	if err := p.expect("["); err != nil {
		return "", "", err
	}
	p.skipSpace()
	key, err := p.quoted()
	if err != nil {
		return "", "", fmt.Errorf("key: %w", err)
	}
	if err := p.expect("]"); err != nil {
		return "", "", err
	}
	if err := p.expect("="); err != nil {
		return "", "", err
	}
	p.skipSpace()
	var value string
	if !p.eof() && p.src[p.pos] == '`' {
		value, err = p.template()
	} else {
		value, err = p.quoted()
	}
	if err != nil {
		return "", "", fmt.Errorf("value of %q: %w", key, err)
	}
	if err := p.expect(";"); err != nil {
		return "", "", err
	}
	return key, value, nil
}

// quoted reads a single- or double-quoted string with backslash escapes.
func (p *fileParser) quoted() (string, error) {
	if p.eof() {
		return "", fmt.Errorf("unexpected end of file")
	}
	q := p.src[p.pos]
	if q != '"' && q != '\'' {
		return "", fmt.Errorf("expected quote at offset %d", p.pos)
	}
	start := p.pos
	p.pos++
	for !p.eof() {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
			continue
		case '\n':
			return "", fmt.Errorf("newline in string at offset %d", p.pos)
		case q:
			p.pos++
			lit := p.src[start:p.pos]
			if q == '\'' {
				lit = requote(lit[1 : len(lit)-1])
			}
			s, err := strconv.Unquote(lit)
			if err != nil {
				return "", fmt.Errorf("bad string %s: %w", lit, err)
			}
			return s, nil
		}
		p.pos++
	}
	return "", fmt.Errorf("unterminated string at offset %d", start)
}

// template reads a backtick template, undoing escapeBacktick. Other
// backslash sequences are kept verbatim; interpolation is rejected.
func (p *fileParser) template() (string, error) {
	start := p.pos
	p.pos++
	var b strings.Builder
	for !p.eof() {
		c := p.src[p.pos]
		switch {
		case c == '\\' && p.pos+1 < len(p.src):
			next := p.src[p.pos+1]
			if next == '`' || next == '\\' || next == '$' {
				b.WriteByte(next)
			} else {
				b.WriteByte(c)
				b.WriteByte(next)
			}
			p.pos += 2
			continue
		case c == '$' && p.pos+1 < len(p.src) && p.src[p.pos+1] == '{':
			return "", fmt.Errorf("template interpolation at offset %d", p.pos)
		case c == '`':
			p.pos++
			return b.String(), nil
		}
		b.WriteByte(c)
		p.pos++
	}
	return "", fmt.Errorf("unterminated template at offset %d", start)
}

// requote turns the body of a single-quoted string into a double-quoted
// Go literal so strconv.Unquote can decode it.
func requote(body string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(body); i++ {
		switch c := body[i]; {
		case c == '\\' && i+1 < len(body):
			if body[i+1] != '\'' {
				b.WriteByte(c)
			}
			b.WriteByte(body[i+1])
			i++
		case c == '"':
			b.WriteString(`\"`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}
