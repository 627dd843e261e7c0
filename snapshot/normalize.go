package snapshot

import "strings"

// addExtraLineBreaks wraps multi-line text in newlines so the persisted
// template literal starts and ends on its own line.
func addExtraLineBreaks(s string) string {
	if strings.Contains(s, "\n") {
		return "\n" + s + "\n"
	}
	return s
}

// removeExtraLineBreaks undoes addExtraLineBreaks.
func removeExtraLineBreaks(s string) string {
	if len(s) > 2 && strings.HasPrefix(s, "\n") && strings.HasSuffix(s, "\n") {
		return s[1 : len(s)-1]
	}
	return s
}

func normalizeNewlines(s string) string {
	return strings.ReplaceAll(s, "\r\n", "\n")
}

// prepareForCompare trims blank edge lines and the value's trailing
// whitespace, then removes the indentation shared by all non-blank lines,
// so inline literals indented to their call site compare equal to the
// serializer's flush-left output.
func prepareForCompare(s string) string {
	lines := strings.Split(s, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		switch {
		case strings.TrimSpace(line) == "":
			lines[i] = ""
		case indent > 0:
			lines[i] = line[indent:]
		}
	}
	// Trailing whitespace inside the value is content: only the value's
	// end is trimmed.
	return strings.TrimRight(strings.Join(lines, "\n"), " \t")
}
