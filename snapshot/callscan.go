package snapshot

// scanMode is the lexical context of the call scanner.
type scanMode int

const (
	modeCode scanMode = iota
	modeString
	modeRune
	modeRaw
	modeLineComment
	modeBlockComment
)

// span is a half-open byte range [start, end) of source text.
type span struct {
	start, end int
}

// callSpan is a call expression found in source text.
type callSpan struct {
	name      string
	shape     CallShape
	nameStart int
	open      int    // index of '('
	close     int    // index of the matching ')'
	args      []span // raw top-level argument ranges, commas excluded
}

// lexer tracks strings and comments while stepping through Go-like source.
// step consumes the byte at i and returns the index of the next byte to
// look at; callers only inspect bytes while mode is modeCode.
type lexer struct {
	src  string
	mode scanMode
}

func (lx *lexer) step(i int) int {
	src := lx.src
	c := src[i]
	switch lx.mode {
	case modeCode:
		switch {
		case c == '"':
			lx.mode = modeString
		case c == '\'':
			lx.mode = modeRune
		case c == '`':
			lx.mode = modeRaw
		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			lx.mode = modeLineComment
			return i + 2
		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			lx.mode = modeBlockComment
			return i + 2
		}
	case modeString, modeRune:
		quote := byte('"')
		if lx.mode == modeRune {
			quote = '\''
		}
		switch c {
		case '\\':
			return i + 2
		case quote, '\n':
			lx.mode = modeCode
		}
	case modeRaw:
		if c == '`' {
			lx.mode = modeCode
		}
	case modeLineComment:
		if c == '\n' {
			lx.mode = modeCode
		}
	case modeBlockComment:
		if c == '*' && i+1 < len(src) && src[i+1] == '/' {
			lx.mode = modeCode
			return i + 2
		}
	}
	return i + 1
}

// findCall scans forward from offset for the first call to one of the
// named functions outside strings and comments.
func findCall(src string, offset int, shapes map[string]CallShape) (callSpan, bool) {
	lx := &lexer{src: src}
	for i := offset; i < len(src); {
		if lx.mode != modeCode || !isIdentStart(src[i]) || (i > 0 && isIdentByte(src[i-1])) {
			i = lx.step(i)
			continue
		}
		j := i
		for j < len(src) && isIdentByte(src[j]) {
			j++
		}
		if shape, ok := shapes[src[i:j]]; ok {
			k := skipSpace(src, j)
			if k < len(src) && src[k] == '(' {
				call, ok := scanArgs(src, k)
				if !ok {
					return callSpan{}, false
				}
				call.name = src[i:j]
				call.shape = shape
				call.nameStart = i
				return call, true
			}
		}
		i = j
	}
	return callSpan{}, false
}

// scanArgs splits the argument list opened at src[open] == '(' on
// top-level commas. Nested brackets, strings and comments never split.
func scanArgs(src string, open int) (callSpan, bool) {
	call := callSpan{open: open}
	lx := &lexer{src: src}
	depth := 0
	argStart := open + 1
	for i := open + 1; i < len(src); {
		if lx.mode != modeCode {
			i = lx.step(i)
			continue
		}
		switch src[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			if depth > 0 {
				depth--
				break
			}
			if src[i] != ')' {
				return callSpan{}, false
			}
			call.args = append(call.args, span{argStart, i})
			call.close = i
			return call, true
		case ',':
			if depth == 0 {
				call.args = append(call.args, span{argStart, i})
				argStart = i + 1
			}
		}
		i = lx.step(i)
	}
	return callSpan{}, false
}

// arguments returns the trimmed non-empty arguments. A trailing comma
// before ')' does not produce an argument.
func (c callSpan) arguments(src string) []span {
	var out []span
	for _, a := range c.args {
		t := trimSpan(src, a)
		if t.start == t.end {
			continue
		}
		out = append(out, t)
	}
	return out
}

// trimSpan drops surrounding whitespace and leading comments.
func trimSpan(src string, s span) span {
	start := skipTrivia(src, s.start, s.end)
	end := s.end
	for end > start && isSpace(src[end-1]) {
		end--
	}
	return span{start, end}
}

// skipTrivia skips whitespace and comments in src[i:limit].
func skipTrivia(src string, i, limit int) int {
	for i < limit {
		switch {
		case isSpace(src[i]):
			i++
		case i+1 < limit && src[i] == '/' && src[i+1] == '/':
			for i < limit && src[i] != '\n' {
				i++
			}
		case i+1 < limit && src[i] == '/' && src[i+1] == '*':
			i += 2
			for i+1 < limit && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
		default:
			return i
		}
	}
	return limit
}

func skipSpace(src string, i int) int {
	for i < len(src) && isSpace(src[i]) {
		i++
	}
	return i
}

// matchBrace returns the index just past the '}' closing the '{' at open.
// Plain depth counting: property literals are shallow.
func matchBrace(src string, open, limit int) (int, bool) {
	depth := 0
	for i := open; i < limit; i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// literalEnd returns the index just past the string literal starting at
// src[start], honoring backslash escapes except in raw strings.
func literalEnd(src string, start, limit int) (int, bool) {
	quote := src[start]
	for i := start + 1; i < limit; i++ {
		switch src[i] {
		case '\\':
			if quote != '`' {
				i++
			}
		case quote:
			return i + 1, true
		}
	}
	return 0, false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}

func isIdentByte(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
