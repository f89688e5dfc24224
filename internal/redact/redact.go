// Package redact replaces values in generic JSON trees addressed by dotted
// paths. A path segment is a map key or a decimal slice index; "*" matches
// any single segment and "**" matches any number of segments.
package redact

// DefaultReplacement is written over redacted values unless a rule says otherwise.
const DefaultReplacement = "[REDACTED]"

// Replacement produces the value written at a matched path. data is the
// whole tree as it stands when the match happens.
type Replacement interface {
	Replace(value any, path string, data any) any
}

// ReplaceFunc adapts a function to Replacement.
type ReplaceFunc func(value any, path string, data any) any

func (f ReplaceFunc) Replace(value any, path string, data any) any {
	return f(value, path, data)
}

type literal struct{ value any }

func (l literal) Replace(any, string, any) any { return l.value }

// Literal replaces every match with v.
func Literal(v any) Replacement {
	return literal{value: v}
}

// Rule binds a path pattern to a replacement.
type Rule struct {
	pattern     pattern
	replacement Replacement
}

// NewRule compiles a pattern. A nil replacement means DefaultReplacement.
func NewRule(path string, r Replacement) (Rule, error) {
	p, err := compilePattern(path)
	if err != nil {
		return Rule{}, err
	}
	if r == nil {
		r = Literal(DefaultReplacement)
	}
	return Rule{pattern: p, replacement: r}, nil
}

// MustRule is NewRule for static rule sets; it panics on a bad pattern.
func MustRule(path string, r Replacement) Rule {
	rule, err := NewRule(path, r)
	if err != nil {
		panic(err)
	}
	return rule
}

func (r Rule) Pattern() string { return r.pattern.raw }

// Redact returns a redacted deep copy of data, applying rules in order so
// each rule sees the previous rule's output. data is never modified.
// Anything that is not a map or slice is returned as is.
func Redact(data any, rules ...Rule) any {
	if !isContainer(data) && !isConvertible(data) {
		return data
	}
	return apply(Clone(data), rules)
}

// apply redacts root in place and returns it.
func apply(root any, rules []Rule) any {
	if !isContainer(root) {
		return root
	}
	for _, r := range rules {
		r.apply(root)
	}
	return root
}

func (r Rule) apply(root any) {
	switch r.pattern.kind {
	case kindExact:
		r.applyExact(root, r.pattern.segments)
	case kindWildcard:
		r.applyWildcard(root, root, r.pattern.segments, nil)
	case kindDeep:
		r.applyDeep(root)
	}
}

// applyExact treats nil as absent.
func (r Rule) applyExact(root any, path []string) {
	parent, ok := lookup(root, path[:len(path)-1])
	if !ok {
		return
	}
	last := path[len(path)-1]
	v, ok := child(parent, last)
	if !ok || v == nil {
		return
	}
	setChild(parent, last, r.replacement.Replace(v, joinPath(path), root))
}

// applyWildcard expands segments left to right. A trailing "*" replaces
// every child, nil values included.
func (r Rule) applyWildcard(root, node any, segs, prefix []string) {
	seg, rest := segs[0], segs[1:]
	if seg == wildcard {
		for _, key := range childKeys(node) {
			path := append(prefix[:len(prefix):len(prefix)], key)
			v, _ := child(node, key)
			if len(rest) == 0 {
				setChild(node, key, r.replacement.Replace(v, joinPath(path), root))
				continue
			}
			r.applyWildcard(root, v, rest, path)
		}
		return
	}

	v, ok := child(node, seg)
	if !ok {
		return
	}
	path := append(prefix[:len(prefix):len(prefix)], seg)
	if len(rest) == 0 {
		if v != nil {
			setChild(node, seg, r.replacement.Replace(v, joinPath(path), root))
		}
		return
	}
	r.applyWildcard(root, v, rest, path)
}

// applyDeep collects every matching path first, in depth-first pre-order,
// then replaces them. A path whose ancestor was already replaced no longer
// resolves and is skipped.
func (r Rule) applyDeep(root any) {
	var matches [][]string
	var walk func(node any, prefix []string)
	walk = func(node any, prefix []string) {
		for _, key := range childKeys(node) {
			path := append(prefix[:len(prefix):len(prefix)], key)
			if r.pattern.matchDeep(path) {
				matches = append(matches, path)
			}
			if v, _ := child(node, key); isContainer(v) {
				walk(v, path)
			}
		}
	}
	walk(root, nil)

	for _, path := range matches {
		r.applyExact(root, path)
	}
}

// Clone deep-copies a generic tree. map[string]string and []string are
// widened to their generic forms so paths can address them.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = Clone(x)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = Clone(x)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[k] = x
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, x := range t {
			out[i] = x
		}
		return out
	default:
		return v
	}
}

func isConvertible(v any) bool {
	switch v.(type) {
	case map[string]string, []string:
		return true
	}
	return false
}
