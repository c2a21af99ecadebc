package template

// MissingAction specifies how to handle missing variables.
type MissingAction int

const (
	// MissingError fails rendering when a variable is not bound.
	// This is the default for prompts.
	MissingError MissingAction = iota

	// MissingKeep keeps the placeholder as-is.
	MissingKeep

	// MissingEmpty replaces the placeholder with an empty string.
	MissingEmpty
)

// Option configures parsing and rendering of a Prompt.
type Option func(*settings)

type settings struct {
	missing     MissingAction
	dollarStyle bool
}

// WithMissingAction sets how unbound variables are handled at render time.
//
// Example:
//
//	p := template.MustParse("Hi ${name}", template.WithMissingAction(template.MissingKeep))
//	out, _ := p.Render(nil)
//	// out: "Hi ${name}"
func WithMissingAction(action MissingAction) Option {
	return func(s *settings) {
		s.missing = action
	}
}

// WithDollarStyle enables bare $var placeholders in addition to ${var}.
// Off by default so prompts can mention prices and shell snippets.
func WithDollarStyle(enabled bool) Option {
	return func(s *settings) {
		s.dollarStyle = enabled
	}
}
