/*
Package template renders prompt text with ${name} placeholders.

Workflow nodes declare their prompts once and render them from state:

	var post = template.MustParse(`LinkedIn Topic: ${topic}
	Human Feedback: ${feedback}

	Generate a structured and well-written LinkedIn post.`)

	text, err := post.Render(map[string]any{"topic": topic, "feedback": last})

A stategraph.State is a map[string]any and can be passed to Render as is.

# Missing Variables

By default Render fails with *UndefinedVariableError naming every unbound
variable. WithMissingAction(MissingKeep) leaves placeholders in place and
MissingEmpty drops them.

# Partial Binding

Partial binds some variables ahead of time. Function values are called on
every Render:

	actor := template.MustParse("Current time: ${time}\n1. ${instruction}")
	first := actor.Partial(map[string]any{
	    "time":        func() string { return time.Now().Format(time.RFC3339) },
	    "instruction": "Provide a detailed ~250 word answer",
	})

# Syntax

${name} is always recognised; $name only with WithDollarStyle(true).
$$ renders a literal dollar sign. An unterminated ${ fails Parse with
ErrSyntax.
*/
package template
