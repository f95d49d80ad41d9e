package yaml

import (
	"fmt"
	"strings"
)

// ParserError is the error type for every lexical, structural, and semantic
// failure. Mark points at the offending position; Line is the source line
// containing it, used by Error to render a caret annotation. A ParserError
// is fatal for its stream: the parser emits no further events after one.
type ParserError struct {
	Msg  string
	Mark Mark
	Line string
}

func (e *ParserError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "yaml: line %d column %d: %s", e.Mark.Line, e.Mark.Column, e.Msg)
	if e.Line != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Line)
		sb.WriteString("\n")
		col := e.Mark.Column
		if col < 1 {
			col = 1
		}
		sb.WriteString(strings.Repeat(" ", col-1))
		sb.WriteString("^")
	}
	return sb.String()
}

// Warning is a non-fatal diagnostic, delivered through the handler installed
// with Parser.SetWarningHandler. Unsupported YAML versions and unknown
// directives are reported this way and do not halt parsing.
type Warning struct {
	Msg  string
	Mark Mark
}
