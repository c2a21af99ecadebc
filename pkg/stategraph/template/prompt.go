package template

import (
	"errors"
	"fmt"
	"maps"
	"regexp"
	"strings"
)

var (
	// bracePattern matches $$ and ${name}.
	bracePattern = regexp.MustCompile(`\$\$|\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}`)

	// dollarPattern also matches $name, ending at a word boundary so $port
	// does not match inside $portNumber.
	dollarPattern = regexp.MustCompile(`\$\$|\$\{([a-zA-Z_][a-zA-Z0-9_]*)\}|\$([a-zA-Z_][a-zA-Z0-9_]*)\b`)
)

// ErrSyntax indicates a malformed placeholder such as an unterminated ${.
var ErrSyntax = errors.New("template: syntax error")

// segment is literal text or, when name is set, a placeholder.
type segment struct {
	text string
	name string
}

// Prompt is a parsed text template with ${name} placeholders.
// A Prompt is immutable and safe for concurrent use.
type Prompt struct {
	text     string
	segments []segment
	bound    map[string]any
	settings settings
}

// Parse parses text into a Prompt. $$ renders as a literal $.
//
// Returns an error wrapping ErrSyntax for an unterminated or empty ${.
func Parse(text string, opts ...Option) (*Prompt, error) {
	var st settings
	for _, opt := range opts {
		opt(&st)
	}

	pattern := bracePattern
	if st.dollarStyle {
		pattern = dollarPattern
	}

	var segments []segment
	literal := func(s string) error {
		if s == "" {
			return nil
		}
		if i := strings.Index(s, "${"); i >= 0 {
			return fmt.Errorf("%w: malformed placeholder at %q", ErrSyntax, s[i:])
		}
		segments = append(segments, segment{text: s})
		return nil
	}

	pos := 0
	for _, m := range pattern.FindAllStringSubmatchIndex(text, -1) {
		if err := literal(text[pos:m[0]]); err != nil {
			return nil, err
		}
		pos = m[1]

		switch {
		case m[2] >= 0:
			segments = append(segments, segment{name: text[m[2]:m[3]]})
		case len(m) > 4 && m[4] >= 0:
			segments = append(segments, segment{name: text[m[4]:m[5]]})
		default:
			segments = append(segments, segment{text: "$"})
		}
	}
	if err := literal(text[pos:]); err != nil {
		return nil, err
	}

	return &Prompt{text: text, segments: segments, settings: st}, nil
}

// MustParse is Parse that panics on error. Use it for prompts declared
// as package variables.
func MustParse(text string, opts ...Option) *Prompt {
	p, err := Parse(text, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// String returns the source text.
func (p *Prompt) String() string {
	return p.text
}

// Variables returns the names of unbound placeholders in order of first
// appearance.
func (p *Prompt) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, seg := range p.segments {
		if seg.name == "" || seen[seg.name] {
			continue
		}
		seen[seg.name] = true
		if _, ok := p.bound[seg.name]; !ok {
			names = append(names, seg.name)
		}
	}
	return names
}

// Partial returns a copy of the prompt with some variables bound.
// Values may be functions (func() string or func() any) evaluated at each
// Render, for example the current time.
//
// Example:
//
//	revise := actor.Partial(map[string]any{"instruction": reviseInstructions})
func (p *Prompt) Partial(vars map[string]any) *Prompt {
	cp := *p
	cp.bound = maps.Clone(p.bound)
	if cp.bound == nil {
		cp.bound = make(map[string]any, len(vars))
	}
	maps.Copy(cp.bound, vars)
	return &cp
}

// Render substitutes placeholders. vars take precedence over values bound
// with Partial. A stategraph.State can be passed directly.
//
// With MissingError an unbound variable returns *UndefinedVariableError
// listing every missing name.
func (p *Prompt) Render(vars map[string]any) (string, error) {
	var b strings.Builder
	b.Grow(len(p.text))

	var missing []string
	for _, seg := range p.segments {
		if seg.name == "" {
			b.WriteString(seg.text)
			continue
		}
		val, ok := vars[seg.name]
		if !ok {
			val, ok = p.bound[seg.name]
		}
		if !ok {
			switch p.settings.missing {
			case MissingKeep:
				b.WriteString("${" + seg.name + "}")
			case MissingEmpty:
			default:
				missing = append(missing, seg.name)
			}
			continue
		}
		b.WriteString(format(val))
	}

	if len(missing) > 0 {
		return "", &UndefinedVariableError{Names: missing}
	}
	return b.String(), nil
}

// MustRender is Render that panics on error.
func (p *Prompt) MustRender(vars map[string]any) string {
	out, err := p.Render(vars)
	if err != nil {
		panic(fmt.Sprintf("template: %v", err))
	}
	return out
}

func format(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case func() string:
		return v()
	case func() any:
		return format(v())
	case []string:
		return strings.Join(v, "\n")
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

// UndefinedVariableError is returned when MissingError is set and one or
// more variables are not bound.
type UndefinedVariableError struct {
	// Names is the list of undefined variable names.
	Names []string
}

// Error implements the error interface.
func (e *UndefinedVariableError) Error() string {
	if len(e.Names) == 1 {
		return fmt.Sprintf("undefined variable: %s", e.Names[0])
	}
	return fmt.Sprintf("undefined variables: %s", strings.Join(e.Names, ", "))
}

// Expand renders s once, keeping unknown placeholders as-is.
// Malformed placeholders are left untouched.
//
// Example:
//
//	out := template.Expand("Topic: ${topic}", map[string]any{"topic": "Go"})
func Expand(s string, vars map[string]any) string {
	p, err := Parse(s, WithMissingAction(MissingKeep))
	if err != nil {
		return s
	}
	out, _ := p.Render(vars)
	return out
}
