package redact

import (
	"slices"
	"strconv"
	"strings"
)

const (
	wildcard     = "*"
	deepWildcard = "**"
)

type patternKind int

const (
	kindExact patternKind = iota
	kindWildcard
	kindDeep
)

// pattern is a compiled dotted path.
type pattern struct {
	raw      string
	kind     patternKind
	segments []string // exact and wildcard patterns
	prefix   []string // deep patterns: segments before **
	suffix   []string // deep patterns: segments after **
}

func compilePattern(raw string) (pattern, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return pattern{}, newConfigError("pattern", raw, "must not be empty")
	}
	switch n := strings.Count(raw, deepWildcard); {
	case n > 1:
		return pattern{}, newConfigError("pattern", raw, "at most one ** is allowed")
	case n == 1:
		idx := strings.Index(raw, deepWildcard)
		if (idx > 0 && raw[idx-1] != '.') || (idx+2 < len(raw) && raw[idx+2] != '.') {
			return pattern{}, newConfigError("pattern", raw, "** must be a whole segment")
		}
		prefix, err := splitSegments(raw, strings.Trim(raw[:idx], "."))
		if err != nil {
			return pattern{}, err
		}
		suffix, err := splitSegments(raw, strings.Trim(raw[idx+2:], "."))
		if err != nil {
			return pattern{}, err
		}
		return pattern{raw: raw, kind: kindDeep, prefix: prefix, suffix: suffix}, nil
	}

	segs, err := splitSegments(raw, raw)
	if err != nil {
		return pattern{}, err
	}
	p := pattern{raw: raw, kind: kindExact, segments: segs}
	if slices.Contains(segs, wildcard) {
		p.kind = kindWildcard
	}
	return p, nil
}

func splitSegments(raw, s string) ([]string, error) {
	if s == "" {
		return nil, nil
	}
	segs := strings.Split(s, ".")
	for _, seg := range segs {
		if seg == "" {
			return nil, newConfigError("pattern", raw, "empty path segment")
		}
		if seg != wildcard && strings.Contains(seg, wildcard) {
			return nil, newConfigError("pattern", raw, "partial wildcards are not supported")
		}
	}
	return segs, nil
}

// matchDeep reports whether a concrete path starts with the prefix and ends
// with the suffix. The two may not overlap.
func (p pattern) matchDeep(path []string) bool {
	if len(path) < len(p.prefix)+len(p.suffix) {
		return false
	}
	return segmentsMatch(path[:len(p.prefix)], p.prefix) &&
		segmentsMatch(path[len(path)-len(p.suffix):], p.suffix)
}

func segmentsMatch(path, pat []string) bool {
	for i, seg := range pat {
		if seg != wildcard && seg != path[i] {
			return false
		}
	}
	return true
}

func isContainer(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

// childKeys lists the keys of a container: sorted map keys or slice indexes.
func childKeys(node any) []string {
	switch n := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		return keys
	case []any:
		keys := make([]string, len(n))
		for i := range n {
			keys[i] = strconv.Itoa(i)
		}
		return keys
	}
	return nil
}

func child(node any, key string) (any, bool) {
	switch n := node.(type) {
	case map[string]any:
		v, ok := n[key]
		return v, ok
	case []any:
		i, ok := index(n, key)
		if !ok {
			return nil, false
		}
		return n[i], true
	}
	return nil, false
}

func setChild(node any, key string, v any) {
	switch n := node.(type) {
	case map[string]any:
		n[key] = v
	case []any:
		if i, ok := index(n, key); ok {
			n[i] = v
		}
	}
}

func index(s []any, key string) (int, bool) {
	i, err := strconv.Atoi(key)
	if err != nil || i < 0 || i >= len(s) {
		return 0, false
	}
	return i, true
}

func lookup(root any, path []string) (any, bool) {
	node := root
	for _, seg := range path {
		next, ok := child(node, seg)
		if !ok {
			return nil, false
		}
		node = next
	}
	return node, true
}

func joinPath(path []string) string {
	return strings.Join(path, ".")
}
