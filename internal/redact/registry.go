package redact

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"
)

// Built-in redactor types.
const (
	TypeDotNotation   = "dot_notation"
	TypeCommonHeaders = "common_headers"
	TypeCommonBody    = "common_body"
	TypePII           = "pii"
	TypePCI           = "pci"
	TypeHIPAA         = "hipaa"
)

// Replacement strategies.
const (
	StrategyLiteral = "literal"
	StrategyLength  = "length"
	StrategyLast4   = "last4"
)

// Spec describes one redactor as it appears in configuration.
type Spec struct {
	Type        string
	Paths       []string
	Replacement string
	Strategy    string
}

// Factory builds a redactor from its paths and replacement.
type Factory func(paths []string, r Replacement) (Redactor, error)

// Registry maps redactor type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry returns a registry holding the built-in types.
func NewRegistry() *Registry {
	r := &Registry{factories: make(map[string]Factory)}
	r.Register(TypeDotNotation, func(paths []string, repl Replacement) (Redactor, error) {
		if len(paths) == 0 {
			return nil, newConfigError("paths", "", "dot_notation needs at least one path")
		}
		return NewDotNotation(paths, repl)
	})
	r.Register(TypeCommonHeaders, preset(CommonHeaderFields))
	r.Register(TypeCommonBody, preset(CommonBodyFields))
	r.Register(TypePII, preset(PII))
	r.Register(TypePCI, preset(PCI))
	r.Register(TypeHIPAA, preset(HIPAA))
	return r
}

func preset(fn func([]string, Replacement) (*DotNotation, error)) Factory {
	return func(paths []string, r Replacement) (Redactor, error) {
		return fn(paths, r)
	}
}

// Register adds or replaces a factory.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Types lists registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for name := range r.factories {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Build constructs one redactor.
func (r *Registry) Build(spec Spec) (Redactor, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, newConfigError("type", spec.Type, "unknown redactor type")
	}
	repl, err := ReplacementFor(spec.Strategy, spec.Replacement)
	if err != nil {
		return nil, err
	}
	return f(spec.Paths, repl)
}

// BuildAll constructs redactors in order, stopping at the first bad spec.
func (r *Registry) BuildAll(specs []Spec) ([]Redactor, error) {
	out := make([]Redactor, 0, len(specs))
	for i, s := range specs {
		red, err := r.Build(s)
		if err != nil {
			return nil, fmt.Errorf("redactor %d: %w", i, err)
		}
		out = append(out, red)
	}
	return out, nil
}

// ReplacementFor resolves a strategy name. The literal strategy writes text,
// or DefaultReplacement when text is empty.
func ReplacementFor(strategy, text string) (Replacement, error) {
	switch strings.ToLower(strategy) {
	case "", StrategyLiteral:
		if text == "" {
			text = DefaultReplacement
		}
		return Literal(text), nil
	case StrategyLength:
		return ReplaceFunc(lengthOf), nil
	case StrategyLast4:
		return ReplaceFunc(last4), nil
	}
	return nil, newConfigError("strategy", strategy, "unknown replacement strategy")
}

var lengthMask = regexp.MustCompile(`^\[\d+ chars\]$`)

// lengthOf leaves an existing mask alone so a second pass is a no-op.
func lengthOf(value any, _ string, _ any) any {
	if s, ok := value.(string); ok && lengthMask.MatchString(s) {
		return s
	}
	return fmt.Sprintf("[%d chars]", utf8.RuneCountInString(fmt.Sprint(value)))
}

func last4(value any, _ string, _ any) any {
	runes := []rune(fmt.Sprint(value))
	if len(runes) <= 4 {
		return strings.Repeat("*", len(runes))
	}
	return strings.Repeat("*", len(runes)-4) + string(runes[len(runes)-4:])
}
