package redact

// Redactor transforms a tree without modifying its input.
type Redactor interface {
	Redact(data any) any
}

// RedactorFunc adapts a function to Redactor. The function must not modify
// its argument.
type RedactorFunc func(data any) any

func (f RedactorFunc) Redact(data any) any { return f(data) }

// inPlaceRedactor is implemented by redactors that can work on a tree the
// pipeline already owns, saving a copy per stage.
type inPlaceRedactor interface {
	redactInPlace(data any) any
}

// DotNotation applies a fixed list of path rules.
type DotNotation struct {
	rules []Rule
}

// NewDotNotation builds a redactor that writes r at every path. A nil r
// means DefaultReplacement.
func NewDotNotation(paths []string, r Replacement) (*DotNotation, error) {
	rules := make([]Rule, 0, len(paths))
	for _, p := range paths {
		rule, err := NewRule(p, r)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return &DotNotation{rules: rules}, nil
}

// NewRules builds a redactor from prepared rules, each with its own replacement.
func NewRules(rules ...Rule) *DotNotation {
	return &DotNotation{rules: append([]Rule(nil), rules...)}
}

func (d *DotNotation) Redact(data any) any {
	return Redact(data, d.rules...)
}

func (d *DotNotation) redactInPlace(data any) any {
	return apply(data, d.rules)
}

// Patterns lists the rule patterns in application order.
func (d *DotNotation) Patterns() []string {
	out := make([]string, len(d.rules))
	for i, r := range d.rules {
		out[i] = r.Pattern()
	}
	return out
}

// Pipeline runs redactors in order over one private copy of the input.
type Pipeline struct {
	redactors []Redactor
}

func NewPipeline(redactors ...Redactor) *Pipeline {
	p := &Pipeline{}
	for _, r := range redactors {
		p.Pipe(r)
	}
	return p
}

// Pipe appends a redactor. nil is ignored.
func (p *Pipeline) Pipe(r Redactor) *Pipeline {
	if r != nil {
		p.redactors = append(p.redactors, r)
	}
	return p
}

func (p *Pipeline) Len() int { return len(p.redactors) }

// Process returns the redacted copy; data itself is left untouched. An empty
// pipeline still returns a copy.
func (p *Pipeline) Process(data any) any {
	if !isContainer(data) && !isConvertible(data) {
		return data
	}
	return p.redactInPlace(Clone(data))
}

func (p *Pipeline) Redact(data any) any { return p.Process(data) }

func (p *Pipeline) redactInPlace(data any) any {
	for _, r := range p.redactors {
		if ip, ok := r.(inPlaceRedactor); ok {
			data = ip.redactInPlace(data)
			continue
		}
		data = r.Redact(data)
	}
	return data
}
