package xmap

import (
	"fmt"
	"strings"
)

// stripComments removes // line comments and /* */ block comments from a
// JSON-like text. Quoted sections (double or single quotes) are copied
// verbatim. Line comments keep their newline so offsets in later parser
// errors stay roughly aligned.
func stripComments(s string) (string, error) {
	if !strings.Contains(s, "/") {
		return s, nil
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			j, err := skipQuoted(s, i+1, c)
			if err != nil {
				return "", err
			}
			b.WriteString(s[i:j])
			i = j
		case c == '/' && hasPrefix(s[i:], "//"):
			j := skipLineComment(s, i+2)
			if j > i+2 && s[j-1] == '\n' {
				b.WriteByte('\n')
			}
			i = j
		case c == '/' && hasPrefix(s[i:], "/*"):
			j, err := skipBlockComment(s, i+2)
			if err != nil {
				return "", err
			}
			b.WriteByte(' ')
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// skipQuoted returns the index just past the closing quote q, honouring
// backslash escapes. i points just after the opening quote.
func skipQuoted(s string, i int, q byte) (int, error) {
	for i < len(s) {
		switch s[i] {
		case '\\':
			i += 2
			continue
		case q:
			return i + 1, nil
		}
		i++
	}
	return 0, fmt.Errorf("xmap: unterminated %c-quoted string", q)
}

func skipLineComment(s string, i int) int {
	for i < len(s) {
		if s[i] == '\n' {
			return i + 1
		}
		i++
	}
	return i
}

func skipBlockComment(s string, i int) (int, error) {
	for i < len(s)-1 {
		if s[i] == '*' && s[i+1] == '/' {
			return i + 2, nil
		}
		i++
	}
	return 0, fmt.Errorf("xmap: unterminated block comment")
}

func hasPrefix(s, p string) bool { return len(s) >= len(p) && s[:len(p)] == p }

// relax rewrites the lenient dialect into strict JSON: comments are dropped,
// single-quoted strings become double-quoted and bare object keys are
// quoted. Anything else, bare values included, is left for the strict parser
// to reject.
func relax(s string) (string, error) {
	s, err := stripComments(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.Grow(len(s) + 16)
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '"':
			j, err := skipQuoted(s, i+1, c)
			if err != nil {
				return "", err
			}
			b.WriteString(s[i:j])
			i = j
		case c == '\'':
			j, err := skipQuoted(s, i+1, c)
			if err != nil {
				return "", err
			}
			writeDoubleQuoted(&b, s[i+1:j-1])
			i = j
		case isNameByte(c):
			j := i
			for j < len(s) && isNameByte(s[j]) {
				j++
			}
			if k := skipSpace(s, j); k < len(s) && s[k] == ':' {
				b.WriteByte('"')
				b.WriteString(s[i:j])
				b.WriteByte('"')
			} else {
				b.WriteString(s[i:j])
			}
			i = j
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// writeDoubleQuoted writes the body of a single-quoted string as a
// double-quoted one.
func writeDoubleQuoted(b *strings.Builder, body string) {
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
}

func isNameByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}
