// Package yaml implements a pull-based streaming parser for YAML 1.2.
//
// The parser consumes a character stream and produces a flat, deterministic
// sequence of events (stream, document, mapping, and sequence boundaries,
// scalars, and aliases) without building a document tree:
//
//	p := yaml.NewParser(strings.NewReader("a: b\n"))
//	for {
//		e, err := p.Next()
//		if err == io.EOF {
//			break
//		}
//		...
//	}
//
// Tag handles are resolved through a TagLibrary, which assigns stable
// integer IDs to tag URIs and may be shared across sequential parses.
// Higher layers are expected to build native values or reject unknown
// aliases; the parser itself does neither.
package yaml

import (
	"bytes"
	"io"
	"strings"
)

// Parse consumes in completely and returns all events of the stream. On a
// parse error the events produced so far are returned along with the error.
func Parse(in []byte) ([]Event, error) {
	p := NewParser(bytes.NewReader(in))
	var events []Event
	for {
		e, err := p.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, e)
	}
}

// EventLog renders events in the test-suite shorthand, one per line. lib
// resolves custom tag IDs and may be nil.
func EventLog(events []Event, lib *TagLibrary) string {
	var sb strings.Builder
	for i, e := range events {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(e.Shorthand(lib))
	}
	return sb.String()
}
