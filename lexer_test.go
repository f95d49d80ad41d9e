package yaml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// lexAll drains the lexer, simulating the parser's flow-context signals for
// the bracket tokens.
func lexAll(t *testing.T, in string) []token {
	t.Helper()
	l := newLexer(strings.NewReader(in))
	var tokens []token
	for {
		tok, err := l.next()
		require.NoError(t, err)
		switch tok.kind {
		case tokenSeqStart, tokenMapStart:
			l.enterFlow()
		case tokenSeqEnd, tokenMapEnd:
			l.leaveFlow()
		}
		tokens = append(tokens, tok)
		if tok.kind == tokenStreamEnd {
			return tokens
		}
	}
}

func kinds(tokens []token) []tokenKind {
	out := make([]tokenKind, len(tokens))
	for i, tok := range tokens {
		out[i] = tok.kind
	}
	return out
}

func TestLexerTokenKinds(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []tokenKind
	}{
		{
			name: "empty",
			in:   "",
			want: []tokenKind{tokenStreamEnd},
		},
		{
			name: "implicit map line",
			in:   "a: b\n",
			want: []tokenKind{tokenIndentation, tokenPlain, tokenMapValueInd, tokenPlain, tokenStreamEnd},
		},
		{
			name: "block sequence",
			in:   "- 1\n- 2\n",
			want: []tokenKind{
				tokenIndentation, tokenSeqItemInd, tokenPlain,
				tokenIndentation, tokenSeqItemInd, tokenPlain,
				tokenStreamEnd,
			},
		},
		{
			name: "flow collection",
			in:   "[a, {b: c}]\n",
			want: []tokenKind{
				tokenIndentation, tokenSeqStart, tokenPlain, tokenSeqSep,
				tokenMapStart, tokenPlain, tokenMapValueInd, tokenPlain, tokenMapEnd,
				tokenSeqEnd, tokenStreamEnd,
			},
		},
		{
			name: "document markers",
			in:   "---\na\n...\n",
			want: []tokenKind{tokenDirectivesEnd, tokenIndentation, tokenPlain, tokenDocumentEnd, tokenStreamEnd},
		},
		{
			name: "directives",
			in:   "%YAML 1.2\n%TAG !e! tag:example.com,2000:\n---\n",
			want: []tokenKind{
				tokenYamlDirective, tokenDirectiveParam,
				tokenTagDirective, tokenTagHandle, tokenSuffix,
				tokenDirectivesEnd, tokenStreamEnd,
			},
		},
		{
			name: "node properties",
			in:   "!!str &a x\n",
			want: []tokenKind{
				tokenIndentation, tokenTagHandle, tokenSuffix, tokenAnchor, tokenPlain,
				tokenStreamEnd,
			},
		},
		{
			name: "alias",
			in:   "*a\n",
			want: []tokenKind{tokenIndentation, tokenAlias, tokenStreamEnd},
		},
		{
			name: "explicit key",
			in:   "? k\n: v\n",
			want: []tokenKind{
				tokenIndentation, tokenMapKeyInd, tokenPlain,
				tokenIndentation, tokenMapValueInd, tokenPlain,
				tokenStreamEnd,
			},
		},
		{
			name: "comments skipped",
			in:   "# head\na: 1 # inline\n",
			want: []tokenKind{tokenIndentation, tokenPlain, tokenMapValueInd, tokenPlain, tokenStreamEnd},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, kinds(lexAll(t, tt.in)))
		})
	}
}

func TestLexerScalarEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		in        string
		kind      tokenKind
		want      string
		multiline bool
	}{
		{name: "plain", in: "hello\n", kind: tokenPlain, want: "hello"},
		{name: "plain trailing spaces trimmed", in: "hello   \n", kind: tokenPlain, want: "hello"},
		{name: "plain folds", in: "one\ntwo\n", kind: tokenPlain, want: "one two", multiline: true},
		{name: "plain blank line becomes newline", in: "one\n\ntwo\n", kind: tokenPlain, want: "one\ntwo", multiline: true},
		{name: "single quoted", in: "'it''s'\n", kind: tokenSingleQuoted, want: "it's"},
		{name: "single quoted folds", in: "'one\n two'\n", kind: tokenSingleQuoted, want: "one two", multiline: true},
		{name: "double quoted escapes", in: "\"\\u0041\\n\\t\\\\\\x42\"\n", kind: tokenDoubleQuoted, want: "A\n\t\\B"},
		{name: "double quoted long escape", in: "\"\\U0001F600\"\n", kind: tokenDoubleQuoted, want: "\U0001F600"},
		{name: "escaped line break", in: "\"one \\\n two\"\n", kind: tokenDoubleQuoted, want: "one two", multiline: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := lexAll(t, tt.in)
			require.GreaterOrEqual(t, len(tokens), 2)
			tok := tokens[1] // after the indentation token
			require.Equal(t, tt.kind, tok.kind)
			require.Equal(t, tt.want, tok.val)
			require.Equal(t, tt.multiline, tok.multiline)
		})
	}
}

func TestLexerBlockScalars(t *testing.T) {
	tests := []struct {
		name string
		in   string
		kind tokenKind
		want string
	}{
		{name: "literal clip", in: "|\n  one\n  two\n", kind: tokenLiteral, want: "one\ntwo\n"},
		{name: "literal strip", in: "|-\n  one\n\n", kind: tokenLiteral, want: "one"},
		{name: "literal keep", in: "|+\n  one\n\n", kind: tokenLiteral, want: "one\n\n"},
		{name: "literal inner blank", in: "|\n  one\n\n  two\n", kind: tokenLiteral, want: "one\n\ntwo\n"},
		{name: "folded", in: ">\n  one\n  two\n", kind: tokenFolded, want: "one two\n"},
		{name: "folded blank line", in: ">\n  one\n\n  two\n", kind: tokenFolded, want: "one\ntwo\n"},
		{name: "folded more indented", in: ">\n  one\n   keep\n  two\n", kind: tokenFolded, want: "one\n keep\ntwo\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := lexAll(t, tt.in)
			require.GreaterOrEqual(t, len(tokens), 2)
			tok := tokens[1] // after the indentation token
			require.Equal(t, tt.kind, tok.kind)
			require.Equal(t, tt.want, tok.val)
		})
	}
}

func TestLexerValueScalarEndsAtSiblingKey(t *testing.T) {
	// The value of "a" must not swallow the next key even though the key
	// line is indented relative to nothing but the mapping itself.
	tokens := lexAll(t, "- a: 1\n  b: 2\n")
	want := []tokenKind{
		tokenIndentation, tokenSeqItemInd, tokenPlain, tokenMapValueInd, tokenPlain,
		tokenIndentation, tokenPlain, tokenMapValueInd, tokenPlain,
		tokenStreamEnd,
	}
	require.Equal(t, want, kinds(tokens))
	require.Equal(t, "1", tokens[4].val)
	require.False(t, tokens[4].multiline)
}

func TestLexerMarks(t *testing.T) {
	tokens := lexAll(t, "a: b\n")
	a := tokens[1]
	require.Equal(t, Mark{Index: 0, Line: 1, Column: 1}, a.start)
	require.Equal(t, Mark{Index: 1, Line: 1, Column: 2}, a.end)
	b := tokens[3]
	require.Equal(t, Mark{Index: 3, Line: 1, Column: 4}, b.start)
	require.Equal(t, Mark{Index: 4, Line: 1, Column: 5}, b.end)
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		msg  string
	}{
		{name: "tab indentation", in: "\ta: b\n", msg: "tab characters are not allowed as indentation"},
		{name: "unterminated single", in: "'abc\n", msg: "unterminated quoted scalar"},
		{name: "unterminated double", in: "\"abc", msg: "unterminated quoted scalar"},
		{name: "invalid escape", in: "\"\\q\"\n", msg: "invalid escape character"},
		{name: "short hex escape", in: "\"\\xZ1\"\n", msg: "invalid escape character"},
		{name: "reserved indicator", in: "@foo\n", msg: "cannot start any token"},
		{name: "missing anchor name", in: "& foo\n", msg: "missing anchor name"},
		{name: "block scalar header junk", in: "| text\n", msg: "unexpected content after block scalar header"},
		{name: "double chomping", in: "|--\n  a\n", msg: "invalid block scalar header"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLexer(strings.NewReader(tt.in))
			var err error
			for i := 0; i < 32; i++ {
				var tok token
				tok, err = l.next()
				if err != nil || tok.kind == tokenStreamEnd {
					break
				}
			}
			require.Error(t, err)
			perr := &ParserError{}
			require.ErrorAs(t, err, &perr)
			require.Contains(t, perr.Msg, tt.msg)
			require.NotZero(t, perr.Mark.Line)
		})
	}
}
