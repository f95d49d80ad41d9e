package yaml

import "fmt"

// tokenKind identifies the kind of a lexer token.
type tokenKind int8

const (
	tokenNone tokenKind = iota

	// Structure.
	tokenStreamEnd
	tokenIndentation   // start of a content line in block context
	tokenDocumentEnd   // "..."
	tokenDirectivesEnd // "---"

	// Directives.
	tokenYamlDirective
	tokenTagDirective
	tokenUnknownDirective
	tokenDirectiveParam
	tokenTagHandle
	tokenSuffix
	tokenVerbatimTag

	// Node properties.
	tokenAnchor
	tokenAlias

	// Block structure indicators.
	tokenSeqItemInd  // "- "
	tokenMapKeyInd   // "? "
	tokenMapValueInd // ": "

	// Flow structure.
	tokenMapStart // "{"
	tokenMapEnd   // "}"
	tokenSeqStart // "["
	tokenSeqEnd   // "]"
	tokenSeqSep   // ","

	// Scalars.
	tokenPlain
	tokenSingleQuoted
	tokenDoubleQuoted
	tokenLiteral
	tokenFolded
)

var tokenKindStrings = []string{
	tokenNone:             "none",
	tokenStreamEnd:        "end of stream",
	tokenIndentation:      "indentation",
	tokenDocumentEnd:      "'...'",
	tokenDirectivesEnd:    "'---'",
	tokenYamlDirective:    "%YAML",
	tokenTagDirective:     "%TAG",
	tokenUnknownDirective: "directive",
	tokenDirectiveParam:   "directive parameter",
	tokenTagHandle:        "tag handle",
	tokenSuffix:           "tag suffix",
	tokenVerbatimTag:      "verbatim tag",
	tokenAnchor:           "anchor",
	tokenAlias:            "alias",
	tokenSeqItemInd:       "'-'",
	tokenMapKeyInd:        "'?'",
	tokenMapValueInd:      "':'",
	tokenMapStart:         "'{'",
	tokenMapEnd:           "'}'",
	tokenSeqStart:         "'['",
	tokenSeqEnd:           "']'",
	tokenSeqSep:           "','",
	tokenPlain:            "plain scalar",
	tokenSingleQuoted:     "single-quoted scalar",
	tokenDoubleQuoted:     "double-quoted scalar",
	tokenLiteral:          "literal scalar",
	tokenFolded:           "folded scalar",
}

func (k tokenKind) String() string {
	if k < 0 || int(k) >= len(tokenKindStrings) {
		return fmt.Sprintf("unknown token %d", k)
	}
	return tokenKindStrings[k]
}

// isNodeProperty reports whether k opens node properties (tag or anchor).
func (k tokenKind) isNodeProperty() bool {
	return k == tokenTagHandle || k == tokenVerbatimTag || k == tokenAnchor
}

// isScalar reports whether k is one of the five scalar token kinds.
func (k tokenKind) isScalar() bool {
	switch k {
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted, tokenLiteral, tokenFolded:
		return true
	}
	return false
}

// scalarStyle maps a scalar token kind to its event style.
func (k tokenKind) scalarStyle() ScalarStyle {
	switch k {
	case tokenPlain:
		return ScalarPlain
	case tokenSingleQuoted:
		return ScalarSingleQuoted
	case tokenDoubleQuoted:
		return ScalarDoubleQuoted
	case tokenLiteral:
		return ScalarLiteral
	case tokenFolded:
		return ScalarFolded
	}
	return ScalarAny
}

// token is one lexeme. val carries the evaluated content for scalar kinds
// (escapes resolved, folding and chomping applied), the name for
// anchors/aliases, the handle text for tag handles, and the decoded suffix
// for tag suffixes. indent is the column for tokenIndentation. multiline is
// set on scalar tokens whose content spanned more than one source line.
type token struct {
	kind       tokenKind
	start, end Mark
	val        string
	indent     int
	multiline  bool
}
