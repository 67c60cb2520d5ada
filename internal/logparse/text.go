package logparse

import "strings"

// splitLines breaks a text buffer into lines, tolerating CRLF.
func splitLines(buf []byte) []string {
	lines := strings.Split(string(buf), "\n")
	for i := range lines {
		lines[i] = strings.TrimRight(lines[i], "\r")
	}
	return lines
}

// sniffLines returns a bounded prefix of the buffer as trimmed lines
// for format detection: at most sniffTextBytes bytes and sniffMaxLines
// lines, so sniffing never requires a full parse.
func sniffLines(buf []byte) []string {
	if len(buf) > sniffTextBytes {
		buf = buf[:sniffTextBytes]
	}
	lines := splitLines(buf)
	out := make([]string, 0, sniffMaxLines)
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) >= sniffMaxLines {
			break
		}
	}
	return out
}

// normHeader canonicalizes a column name for synonym matching.
func normHeader(s string) string {
	return strings.ToLower(strings.Trim(strings.TrimSpace(s), "\""))
}
