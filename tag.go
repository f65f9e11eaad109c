package xmap

import (
	"fmt"
	"strings"
)

// tagName is the struct tag key holding source descriptors.
const tagName = "source"

// parseSourceTag parses a source tag into descriptors. Descriptors are
// separated by ';', attributes by ','. The leading bare token names the
// source field:
//
//	source:"json,pointer=/title"
//	source:"subObject,path=id; moreJson,jsonpath=$['a.b'][*]"
//	source:""                      (same-named field)
//	source:"field=,pointer=/x"     (explicitly empty field name)
//
// Quoted and bracketed sections are kept intact, so path expressions may
// contain separators.
func parseSourceTag(tag string) ([]Source, error) {
	descs, err := splitTopLevel(tag, ';')
	if err != nil {
		return nil, err
	}
	out := make([]Source, 0, len(descs))
	for _, d := range descs {
		if len(descs) > 1 && strings.TrimSpace(d) == "" {
			continue
		}
		s, err := parseDescriptor(d)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func parseDescriptor(d string) (Source, error) {
	var s Source
	parts, err := splitTopLevel(d, ',')
	if err != nil {
		return s, err
	}
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		key, val, ok := strings.Cut(p, "=")
		if !ok {
			if i != 0 {
				return s, fmt.Errorf("xmap: source tag: bare token %q must come first", p)
			}
			s.Field = p
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		switch key {
		case "field":
			s.Field = orEmpty(val)
		case "path":
			if val == "" {
				s.Path = []string{}
			} else {
				s.Path = strings.Split(val, ".")
			}
		case "pointer":
			s.Pointer = orEmpty(val)
		case "jsonpath":
			s.JSONPath = orEmpty(val)
		default:
			return s, fmt.Errorf("xmap: source tag: unknown attribute %q", key)
		}
	}
	return s, nil
}

func orEmpty(v string) string {
	if v == "" {
		return Empty
	}
	return v
}

// splitTopLevel splits s on sep, ignoring separators inside quotes, brackets
// and parentheses.
func splitTopLevel(s string, sep byte) ([]string, error) {
	var parts []string
	depth, start := 0, 0
	for i := 0; i < len(s); {
		switch c := s[i]; {
		case c == '\'' || c == '"':
			j, err := skipQuoted(s, i+1, c)
			if err != nil {
				return nil, err
			}
			i = j
			continue
		case c == '[' || c == '(':
			depth++
		case c == ']' || c == ')':
			if depth > 0 {
				depth--
			}
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
		i++
	}
	return append(parts, s[start:]), nil
}
