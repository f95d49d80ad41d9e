package yaml

import (
	"fmt"
	"strings"
)

// Mark is a position in the input stream. Index is the byte offset in the
// decoded UTF-8 text the lexer reads (after BOM removal, UTF-16 transcoding,
// and CRLF/CR normalization); Line and Column are 1-based.
type Mark struct {
	Index  int
	Line   int
	Column int
}

func (m Mark) String() string {
	return fmt.Sprintf("line %d column %d", m.Line, m.Column)
}

// EventKind identifies the kind of an Event.
type EventKind int8

const (
	EventNone EventKind = iota

	EventStreamStart
	EventStreamEnd
	EventDocStart
	EventDocEnd
	EventMapStart
	EventMapEnd
	EventSeqStart
	EventSeqEnd
	EventScalar
	EventAlias
)

var eventKindStrings = []string{
	EventNone:        "none",
	EventStreamStart: "stream start",
	EventStreamEnd:   "stream end",
	EventDocStart:    "document start",
	EventDocEnd:      "document end",
	EventMapStart:    "mapping start",
	EventMapEnd:      "mapping end",
	EventSeqStart:    "sequence start",
	EventSeqEnd:      "sequence end",
	EventScalar:      "scalar",
	EventAlias:       "alias",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindStrings) {
		return fmt.Sprintf("unknown event %d", k)
	}
	return eventKindStrings[k]
}

// CollectionStyle is the presentation style of a mapping or sequence.
type CollectionStyle int8

const (
	StyleAny CollectionStyle = iota
	StyleBlock
	StyleFlow
)

// ScalarStyle is the presentation style of a scalar.
type ScalarStyle int8

const (
	ScalarAny ScalarStyle = iota
	ScalarPlain
	ScalarSingleQuoted
	ScalarDoubleQuoted
	ScalarLiteral
	ScalarFolded
)

// Properties are the anchor and tag attached to a node. The zero value
// means "no anchor, unresolved tag".
type Properties struct {
	Anchor string
	Tag    TagID
}

// IsSet reports whether either an anchor or a tag is present.
func (p Properties) IsSet() bool {
	return p.Anchor != "" || p.Tag != TagQuestionMark
}

// Event is one element of the parser's output stream. A single struct
// carries all kinds; which fields are meaningful depends on Kind:
//
//   - Explicit: DocStart (directives-end marker present), DocEnd ("..."
//     present).
//   - Version: DocStart, the %YAML version verbatim ("" if none).
//   - Properties: Scalar, MapStart, SeqStart; Anchor alone for Alias.
//   - Style: MapStart, SeqStart.
//   - ScalarStyle, Value: Scalar.
type Event struct {
	Kind       EventKind
	Start, End Mark

	Explicit bool
	Version  string

	Properties
	Style       CollectionStyle
	ScalarStyle ScalarStyle
	Value       string
}

// Shorthand renders the event in the compact notation used by the YAML test
// suite's *.event files: "+STR", "+DOC ---", "+MAP {}", "=VAL &a <tag> :x",
// "=ALI *a", and so on. lib resolves tag IDs to URIs; it may be nil when the
// event stream carries no custom tags.
func (e Event) Shorthand(lib *TagLibrary) string {
	var sb strings.Builder
	switch e.Kind {
	case EventStreamStart:
		sb.WriteString("+STR")
	case EventStreamEnd:
		sb.WriteString("-STR")
	case EventDocStart:
		sb.WriteString("+DOC")
		if e.Explicit {
			sb.WriteString(" ---")
		}
	case EventDocEnd:
		sb.WriteString("-DOC")
		if e.Explicit {
			sb.WriteString(" ...")
		}
	case EventMapStart:
		sb.WriteString("+MAP")
		if e.Style == StyleFlow {
			sb.WriteString(" {}")
		}
		shorthandProps(&sb, e.Properties, lib)
	case EventMapEnd:
		sb.WriteString("-MAP")
	case EventSeqStart:
		sb.WriteString("+SEQ")
		if e.Style == StyleFlow {
			sb.WriteString(" []")
		}
		shorthandProps(&sb, e.Properties, lib)
	case EventSeqEnd:
		sb.WriteString("-SEQ")
	case EventScalar:
		sb.WriteString("=VAL")
		shorthandProps(&sb, e.Properties, lib)
		switch e.ScalarStyle {
		case ScalarSingleQuoted:
			sb.WriteString(" '")
		case ScalarDoubleQuoted:
			sb.WriteString(" \"")
		case ScalarLiteral:
			sb.WriteString(" |")
		case ScalarFolded:
			sb.WriteString(" >")
		default:
			sb.WriteString(" :")
		}
		sb.WriteString(shorthandEscape(e.Value))
	case EventAlias:
		sb.WriteString("=ALI *")
		sb.WriteString(e.Anchor)
	default:
		sb.WriteString(e.Kind.String())
	}
	return sb.String()
}

func shorthandProps(sb *strings.Builder, p Properties, lib *TagLibrary) {
	if p.Anchor != "" {
		sb.WriteString(" &")
		sb.WriteString(p.Anchor)
	}
	switch p.Tag {
	case TagQuestionMark:
	case TagExclamationMark:
		sb.WriteString(" <!>")
	default:
		if lib == nil {
			lib = NewCoreTagLibrary()
		}
		uri, _ := lib.URI(p.Tag)
		sb.WriteString(" <")
		sb.WriteString(uri)
		sb.WriteString(">")
	}
}

func shorthandEscape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch r {
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\b':
			sb.WriteString(`\b`)
		case '\r':
			sb.WriteString(`\r`)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
