package yaml

import (
	"fmt"
	"io"
	"strings"
)

// parserState enumerates the states of the push-down automaton. The set is
// closed and small, so states are dispatched through one central switch in
// step rather than through function values.
type parserState int8

const (
	atStreamStart parserState = iota
	atStreamEnd
	beforeDoc
	beforeDocEnd
	afterDirectivesEnd
	beforeImplicitRoot
	requireImplicitMapStart
	atBlockIndentation
	atBlockIndentationProps
	beforeNodeProperties
	afterCompactParent
	afterCompactParentProps
	inBlockSeq
	beforeBlockMapKey
	atBlockMapKeyProps
	beforeBlockMapValue
	afterImplicitKey
	beforeBlockIndentation
	beforeFlowItem
	beforeFlowItemProps
	afterFlowSeqSep
	afterFlowSeqSepProps
	afterFlowSeqItem
	afterFlowMapSep
	afterFlowMapKey
	afterFlowMapValue
	atEmptyPairKey
	beforePairValue
	afterImplicitPairStart
	afterPairValue
)

// indentUndecided marks a level whose owning column has not been fixed yet.
// It is never compared arithmetically; states that own an undecided level
// fix it before any comparison happens.
const indentUndecided = -1

// level is one frame of the parser stack: a state and the column that owns
// the structural context.
type level struct {
	state       parserState
	indentation int
}

// Parser produces the event stream for one input stream. It owns its lexer
// and level stack and borrows the tag library, which may be shared across
// sequential parses. A Parser is not safe for concurrent use.
type Parser struct {
	lex  *lexer
	tags *TagLibrary

	levels []level

	cur     token
	haveCur bool

	// queued is the one-slot peek buffer: a transition that needs to emit
	// two consecutive events (opening an implicit mapping around an
	// already-lexed key) stores the second one here.
	queued *Event

	// peeked backs the public Peek.
	peeked *Event

	// inlineProps are properties read on the current line; headerProps are
	// properties from earlier lines, belonging to a block node that has not
	// started yet.
	inlineProps, headerProps Properties
	inlineStart, headerStart Mark

	// blockIndentation is the column of the most recently consumed
	// indentation token.
	blockIndentation int

	version       string
	sawDirectives bool

	anchors map[string]bool
	warn    func(Warning)

	err error
}

// NewParser returns a parser reading from src with a fresh core tag
// library.
func NewParser(src io.Reader) *Parser {
	return NewParserWithTags(src, NewCoreTagLibrary())
}

// NewParserWithTags returns a parser using the given tag library. The
// library is borrowed: it must not be used by another parser concurrently,
// and %TAG handle bindings are reset at each document start.
func NewParserWithTags(src io.Reader, tags *TagLibrary) *Parser {
	return &Parser{
		lex:     newLexer(src),
		tags:    tags,
		levels:  []level{{state: atStreamStart, indentation: indentUndecided}},
		anchors: make(map[string]bool),
	}
}

// SetWarningHandler installs a sink for non-fatal diagnostics (unsupported
// YAML versions, unknown directives). A nil handler discards warnings.
func (p *Parser) SetWarningHandler(fn func(Warning)) { p.warn = fn }

// HasAnchor reports whether an anchor of the given name has been emitted in
// the current document. The parser does not resolve aliases itself; this
// lets consumers reject unknown ones.
func (p *Parser) HasAnchor(name string) bool { return p.anchors[name] }

// Tags returns the tag library the parser resolves tag IDs against.
func (p *Parser) Tags() *TagLibrary { return p.tags }

// Next returns the next event. After the EndStream event it returns io.EOF;
// after an error it returns that same error on every later call.
func (p *Parser) Next() (Event, error) {
	if p.peeked != nil {
		e := *p.peeked
		p.peeked = nil
		return e, nil
	}
	return p.next()
}

// Peek returns the event Next will return, without consuming it.
func (p *Parser) Peek() (Event, error) {
	if p.peeked == nil {
		e, err := p.next()
		if err != nil {
			return e, err
		}
		p.peeked = &e
	}
	return *p.peeked, nil
}

func (p *Parser) next() (Event, error) {
	if p.err != nil {
		return Event{}, p.err
	}
	if p.queued != nil {
		e := *p.queued
		p.queued = nil
		p.noteAnchor(e)
		return e, nil
	}
	for {
		if len(p.levels) == 0 {
			p.err = io.EOF
			return Event{}, io.EOF
		}
		e, produced, err := p.step()
		if err != nil {
			p.err = err
			return Event{}, err
		}
		if produced {
			p.noteAnchor(e)
			return e, nil
		}
	}
}

func (p *Parser) noteAnchor(e Event) {
	if e.Anchor != "" && e.Kind != EventAlias {
		p.anchors[e.Anchor] = true
	}
}

// step runs one transition of the automaton. It returns the emitted event,
// whether one was emitted, and any error. Transitions that only rearrange
// the stack return produced == false and the driver loop re-enters.
func (p *Parser) step() (Event, bool, error) {
	switch p.top().state {
	case atStreamStart:
		return p.stepStreamStart()
	case atStreamEnd:
		return p.stepStreamEnd()
	case beforeDoc:
		return p.stepBeforeDoc()
	case beforeDocEnd:
		return p.stepBeforeDocEnd()
	case afterDirectivesEnd:
		return p.stepAfterDirectivesEnd()
	case beforeImplicitRoot:
		return p.stepBeforeImplicitRoot()
	case requireImplicitMapStart:
		return p.stepRequireImplicitMapStart()
	case atBlockIndentation, atBlockIndentationProps:
		return p.stepAtBlockIndentation()
	case beforeNodeProperties:
		return p.stepBeforeNodeProperties()
	case afterCompactParent, afterCompactParentProps:
		return p.stepAfterCompactParent()
	case inBlockSeq:
		return p.stepInBlockSeq()
	case beforeBlockMapKey:
		return p.stepBeforeBlockMapKey()
	case atBlockMapKeyProps:
		return p.stepAtBlockMapKeyProps()
	case beforeBlockMapValue:
		return p.stepBeforeBlockMapValue()
	case afterImplicitKey:
		return p.stepAfterImplicitKey()
	case beforeBlockIndentation:
		return p.stepBeforeBlockIndentation()
	case beforeFlowItem, beforeFlowItemProps:
		return p.stepBeforeFlowItem()
	case afterFlowSeqSep, afterFlowSeqSepProps:
		return p.stepAfterFlowSeqSep()
	case afterFlowSeqItem:
		return p.stepAfterFlowSeqItem()
	case afterFlowMapSep:
		return p.stepAfterFlowMapSep()
	case afterFlowMapKey:
		return p.stepAfterFlowMapKey()
	case afterFlowMapValue:
		return p.stepAfterFlowMapValue()
	case atEmptyPairKey:
		return p.stepAtEmptyPairKey()
	case beforePairValue, afterImplicitPairStart:
		return p.stepBeforePairValue()
	case afterPairValue:
		return p.stepAfterPairValue()
	}
	return Event{}, false, p.internalf("state %d has no handler", p.top().state)
}

// Stack helpers.

func (p *Parser) top() *level { return &p.levels[len(p.levels)-1] }

func (p *Parser) push(s parserState, indentation int) {
	p.levels = append(p.levels, level{state: s, indentation: indentation})
}

func (p *Parser) pop() { p.levels = p.levels[:len(p.levels)-1] }

// advance consumes the current token. Consuming an indentation token
// updates blockIndentation.
func (p *Parser) advance() error {
	if p.haveCur && p.cur.kind == tokenIndentation {
		p.blockIndentation = p.cur.indent
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.cur = t
	p.haveCur = true
	return nil
}

// Error construction.

func (p *Parser) parseErrorAt(mark Mark, msg string) error {
	return &ParserError{Msg: msg, Mark: mark, Line: p.lex.r.lineContent(mark.Line)}
}

func (p *Parser) unexpected(expected string) error {
	return p.parseErrorAt(p.cur.start, fmt.Sprintf("Unexpected token %s (expected %s)", p.cur.kind, expected))
}

func (p *Parser) internalf(format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return p.parseErrorAt(p.cur.start, "internal error: "+msg+", please report this bug")
}

// Property handling. Properties read by beforeNodeProperties accumulate in
// inlineProps; crossing a line boundary shifts them into headerProps.

func (p *Parser) shiftPropsToHeader() error {
	if !p.inlineProps.IsSet() {
		return nil
	}
	if p.inlineProps.Anchor != "" {
		if p.headerProps.Anchor != "" {
			return p.parseErrorAt(p.inlineStart, "Only one anchor is allowed per node")
		}
		p.headerProps.Anchor = p.inlineProps.Anchor
	}
	if p.inlineProps.Tag != TagQuestionMark {
		if p.headerProps.Tag != TagQuestionMark {
			return p.parseErrorAt(p.inlineStart, "Only one tag is allowed per node")
		}
		p.headerProps.Tag = p.inlineProps.Tag
	}
	if p.headerStart == (Mark{}) {
		p.headerStart = p.inlineStart
	}
	p.inlineProps = Properties{}
	p.inlineStart = Mark{}
	return nil
}

func (p *Parser) takeInlineProps() (Properties, Mark) {
	props, mark := p.inlineProps, p.inlineStart
	p.inlineProps = Properties{}
	p.inlineStart = Mark{}
	return props, mark
}

func (p *Parser) takeHeaderProps() (Properties, Mark) {
	props, mark := p.headerProps, p.headerStart
	p.headerProps = Properties{}
	p.headerStart = Mark{}
	return props, mark
}

// takeMergedProps combines header and inline properties for a node that
// takes both (a standalone node on a fresh line).
func (p *Parser) takeMergedProps() (Properties, Mark, error) {
	if err := p.shiftPropsToHeader(); err != nil {
		return Properties{}, Mark{}, err
	}
	props, mark := p.takeHeaderProps()
	return props, mark, nil
}

// Event construction.

func startMark(props Properties, propsStart, tokenStart Mark) Mark {
	if props.IsSet() && propsStart != (Mark{}) {
		return propsStart
	}
	return tokenStart
}

func (p *Parser) scalarEvent(t token, props Properties, propsStart Mark) Event {
	return Event{
		Kind:        EventScalar,
		Start:       startMark(props, propsStart, t.start),
		End:         t.end,
		Properties:  props,
		ScalarStyle: t.kind.scalarStyle(),
		Value:       t.val,
	}
}

func (p *Parser) emptyScalarEvent(at Mark, props Properties, propsStart Mark) Event {
	return Event{
		Kind:        EventScalar,
		Start:       startMark(props, propsStart, at),
		End:         at,
		Properties:  props,
		ScalarStyle: ScalarPlain,
	}
}

func (p *Parser) aliasEvent(t token) (Event, error) {
	if p.inlineProps.IsSet() || p.headerProps.IsSet() {
		return Event{}, p.parseErrorAt(t.start, "An alias node must not have any properties")
	}
	return Event{Kind: EventAlias, Start: t.start, End: t.end, Properties: Properties{Anchor: t.val}}, nil
}

func (p *Parser) collectionStartEvent(kind EventKind, style CollectionStyle, t token, props Properties, propsStart Mark) Event {
	return Event{
		Kind:       kind,
		Start:      startMark(props, propsStart, t.start),
		End:        t.end,
		Properties: props,
		Style:      style,
	}
}

func (p *Parser) endEvent(kind EventKind, t token) Event {
	return Event{Kind: kind, Start: t.start, End: t.end}
}

// States.

func (p *Parser) stepStreamStart() (Event, bool, error) {
	if err := p.advance(); err != nil {
		return Event{}, false, err
	}
	m := Mark{Index: 0, Line: 1, Column: 1}
	p.top().state = atStreamEnd
	p.push(beforeDoc, indentUndecided)
	p.tags.ResetHandles()
	return Event{Kind: EventStreamStart, Start: m, End: m}, true, nil
}

func (p *Parser) stepStreamEnd() (Event, bool, error) {
	if p.cur.kind != tokenStreamEnd {
		return Event{}, false, p.internalf("%s at stream end", p.cur.kind)
	}
	p.pop()
	return p.endEvent(EventStreamEnd, p.cur), true, nil
}

func (p *Parser) stepBeforeDoc() (Event, bool, error) {
	switch p.cur.kind {
	case tokenStreamEnd:
		p.pop()
		return Event{}, false, nil
	case tokenDocumentEnd:
		return Event{}, false, p.advance()
	case tokenDirectivesEnd:
		e := Event{
			Kind:     EventDocStart,
			Start:    p.cur.start,
			End:      p.cur.end,
			Explicit: true,
			Version:  p.version,
		}
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.startDocState(afterDirectivesEnd)
		return e, true, nil
	case tokenIndentation:
		if p.sawDirectives {
			return Event{}, false, p.unexpected("'---' after directives")
		}
		e := Event{Kind: EventDocStart, Start: p.cur.start, End: p.cur.start}
		p.startDocState(beforeImplicitRoot)
		return e, true, nil
	case tokenYamlDirective:
		return Event{}, false, p.processYamlDirective()
	case tokenTagDirective:
		return Event{}, false, p.processTagDirective()
	case tokenUnknownDirective:
		p.warnf(p.cur.start, "unknown directive: %%%s", p.cur.val)
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		for p.cur.kind == tokenDirectiveParam {
			if err := p.advance(); err != nil {
				return Event{}, false, err
			}
		}
		p.sawDirectives = true
		return Event{}, false, nil
	}
	return Event{}, false, p.unexpected("directive or document")
}

func (p *Parser) startDocState(content parserState) {
	p.top().state = beforeDocEnd
	p.push(content, indentUndecided)
	for a := range p.anchors {
		delete(p.anchors, a)
	}
}

func (p *Parser) warnf(mark Mark, format string, args ...interface{}) {
	if p.warn != nil {
		p.warn(Warning{Msg: fmt.Sprintf(format, args...), Mark: mark})
	}
}

func (p *Parser) processYamlDirective() error {
	mark := p.cur.start
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur.kind != tokenDirectiveParam {
		return p.parseErrorAt(mark, "Invalid %YAML directive: missing version")
	}
	if p.version != "" {
		return p.parseErrorAt(mark, "Duplicate %YAML directive")
	}
	version := p.cur.val
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur.kind == tokenDirectiveParam {
		return p.parseErrorAt(p.cur.start, "Invalid %YAML directive: too many parameters")
	}
	major, minor, ok := splitVersion(version)
	if !ok {
		return p.parseErrorAt(mark, "Invalid %YAML directive: malformed version")
	}
	if major != 1 || minor != 2 {
		p.warnf(mark, "unsupported YAML version %s, parsing as 1.2", version)
	}
	p.version = version
	p.sawDirectives = true
	return nil
}

func splitVersion(s string) (major, minor int, ok bool) {
	dot := strings.IndexByte(s, '.')
	if dot <= 0 || dot == len(s)-1 {
		return 0, 0, false
	}
	for i := 0; i < len(s); i++ {
		if i == dot {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, false
		}
	}
	for _, c := range s[:dot] {
		major = major*10 + int(c-'0')
	}
	for _, c := range s[dot+1:] {
		minor = minor*10 + int(c-'0')
	}
	return major, minor, true
}

func (p *Parser) processTagDirective() error {
	mark := p.cur.start
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur.kind != tokenTagHandle {
		return p.parseErrorAt(mark, "Invalid %TAG directive: missing handle")
	}
	handle := p.cur.val
	if err := p.advance(); err != nil {
		return err
	}
	if p.cur.kind != tokenSuffix {
		return p.parseErrorAt(mark, "Invalid %TAG directive: missing prefix")
	}
	p.tags.RegisterHandle(handle, p.cur.val)
	p.sawDirectives = true
	return p.advance()
}

func (p *Parser) stepBeforeDocEnd() (Event, bool, error) {
	switch p.cur.kind {
	case tokenDocumentEnd:
		e := Event{Kind: EventDocEnd, Start: p.cur.start, End: p.cur.end, Explicit: true}
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.endDocState()
		return e, true, nil
	case tokenStreamEnd:
		e := Event{Kind: EventDocEnd, Start: p.cur.start, End: p.cur.start}
		p.pop()
		p.version = ""
		p.sawDirectives = false
		return e, true, nil
	case tokenDirectivesEnd:
		e := Event{Kind: EventDocEnd, Start: p.cur.start, End: p.cur.start}
		p.endDocState()
		return e, true, nil
	}
	return Event{}, false, p.unexpected("'...', '---', or end of stream")
}

func (p *Parser) endDocState() {
	p.top().state = beforeDoc
	p.version = ""
	p.sawDirectives = false
	p.tags.ResetHandles()
}

func (p *Parser) stepAfterDirectivesEnd() (Event, bool, error) {
	switch p.cur.kind {
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenIndentation:
		if err := p.shiftPropsToHeader(); err != nil {
			return Event{}, false, err
		}
		p.top().state = beforeImplicitRoot
		return Event{}, false, nil
	case tokenDirectivesEnd, tokenDocumentEnd, tokenStreamEnd:
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.emptyScalarEvent(p.cur.start, props, propsStart)
		p.pop()
		return e, true, nil
	}
	// Root node on the '---' line itself.
	return p.readRootishNode()
}

// readRootishNode handles a node that begins right after "---" or at the
// first content column of an implicit document.
func (p *Parser) readRootishNode() (Event, bool, error) {
	switch p.cur.kind {
	case tokenSeqItemInd:
		props, propsStart := p.takeHeaderProps()
		e := p.collectionStartEvent(EventSeqStart, StyleBlock, p.cur, props, propsStart)
		p.top().state = inBlockSeq
		p.top().indentation = p.cur.start.Column - 1
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.push(afterCompactParent, p.top().indentation)
		return e, true, nil
	case tokenMapKeyInd:
		props, propsStart := p.takeHeaderProps()
		e := p.collectionStartEvent(EventMapStart, StyleBlock, p.cur, props, propsStart)
		p.top().state = beforeBlockMapValue
		p.top().indentation = p.cur.start.Column - 1
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.push(afterCompactParent, p.top().indentation)
		return e, true, nil
	case tokenMapValueInd:
		props, propsStart := p.takeHeaderProps()
		e := p.collectionStartEvent(EventMapStart, StyleBlock, p.cur, props, propsStart)
		key := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		p.queued = &key
		p.top().state = afterImplicitKey
		p.top().indentation = p.cur.start.Column - 1
		return e, true, nil
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted, tokenLiteral, tokenFolded:
		t := p.cur
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if p.cur.kind == tokenMapValueInd {
			if t.multiline {
				return Event{}, false, p.parseErrorAt(t.start, "Implicit map key may not be multiline")
			}
			props, propsStart := p.takeHeaderProps()
			e := p.collectionStartEvent(EventMapStart, StyleBlock, t, props, propsStart)
			keyProps, keyStart := p.takeInlineProps()
			key := p.scalarEvent(t, keyProps, keyStart)
			p.queued = &key
			p.top().state = afterImplicitKey
			p.top().indentation = t.start.Column - 1
			return e, true, nil
		}
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.scalarEvent(t, props, propsStart)
		p.pop()
		return e, true, nil
	case tokenAlias:
		t := p.cur
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if p.cur.kind == tokenMapValueInd {
			props, propsStart := p.takeHeaderProps()
			e := p.collectionStartEvent(EventMapStart, StyleBlock, t, props, propsStart)
			key, err := p.aliasEvent(t)
			if err != nil {
				return Event{}, false, err
			}
			p.queued = &key
			p.top().state = afterImplicitKey
			p.top().indentation = t.start.Column - 1
			return e, true, nil
		}
		e, err := p.aliasEvent(t)
		if err != nil {
			return Event{}, false, err
		}
		p.pop()
		return e, true, nil
	case tokenSeqStart:
		return p.openFlowCollectionHere(EventSeqStart, afterFlowSeqSep)
	case tokenMapStart:
		return p.openFlowCollectionHere(EventMapStart, afterFlowMapSep)
	}
	return Event{}, false, p.unexpected("node content")
}

// openFlowCollectionHere turns the current level into a flow collection,
// attaching any pending properties.
func (p *Parser) openFlowCollectionHere(kind EventKind, state parserState) (Event, bool, error) {
	props, propsStart, err := p.takeMergedProps()
	if err != nil {
		return Event{}, false, err
	}
	e := p.collectionStartEvent(kind, StyleFlow, p.cur, props, propsStart)
	// The context signal must precede the next token fetch, or the lexer
	// would tokenize the first item with block-context rules.
	p.lex.enterFlow()
	if err := p.advance(); err != nil {
		return Event{}, false, err
	}
	p.top().state = state
	return e, true, nil
}

func (p *Parser) stepBeforeImplicitRoot() (Event, bool, error) {
	if p.cur.kind != tokenIndentation {
		return Event{}, false, p.internalf("%s at implicit document root", p.cur.kind)
	}
	if err := p.advance(); err != nil {
		return Event{}, false, err
	}
	p.top().indentation = p.blockIndentation
	switch p.cur.kind {
	case tokenSeqItemInd, tokenMapKeyInd:
		p.top().state = atBlockIndentation
	default:
		p.top().state = requireImplicitMapStart
	}
	return Event{}, false, nil
}

// stepRequireImplicitMapStart reads the first node of a document whose
// content starts with a scalar, alias, flow collection, or properties. A
// scalar here either becomes an implicit mapping key (when ':' follows) or
// the whole document content.
func (p *Parser) stepRequireImplicitMapStart() (Event, bool, error) {
	switch p.cur.kind {
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenIndentation:
		// Properties stood alone on their line.
		if err := p.shiftPropsToHeader(); err != nil {
			return Event{}, false, err
		}
		if p.cur.indent < p.top().indentation {
			props, propsStart := p.takeHeaderProps()
			e := p.emptyScalarEvent(p.cur.start, props, propsStart)
			p.pop()
			return e, true, nil
		}
		return Event{}, false, p.advance()
	case tokenDirectivesEnd, tokenDocumentEnd, tokenStreamEnd:
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.emptyScalarEvent(p.cur.start, props, propsStart)
		p.pop()
		return e, true, nil
	}
	return p.readRootishNode()
}

func (p *Parser) stepAtBlockIndentation() (Event, bool, error) {
	switch p.cur.kind {
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		p.top().state = atBlockIndentationProps
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenIndentation:
		if err := p.shiftPropsToHeader(); err != nil {
			return Event{}, false, err
		}
		if p.cur.indent < p.top().indentation {
			// The pending node never appeared; it is an empty scalar and
			// the dedent belongs to an outer level.
			props, propsStart := p.takeHeaderProps()
			e := p.emptyScalarEvent(p.cur.start, props, propsStart)
			p.pop()
			return e, true, nil
		}
		return Event{}, false, p.advance()
	case tokenDirectivesEnd, tokenDocumentEnd, tokenStreamEnd:
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.emptyScalarEvent(p.cur.start, props, propsStart)
		p.pop()
		return e, true, nil
	}
	return p.readRootishNode()
}

func (p *Parser) stepBeforeNodeProperties() (Event, bool, error) {
	switch p.cur.kind {
	case tokenTagHandle:
		if p.inlineProps.Tag != TagQuestionMark {
			return Event{}, false, p.parseErrorAt(p.cur.start, "Only one tag is allowed per node")
		}
		if !p.inlineProps.IsSet() {
			p.inlineStart = p.cur.start
		}
		handle := p.cur.val
		handleMark := p.cur.start
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if p.cur.kind != tokenSuffix {
			return Event{}, false, p.internalf("tag handle without suffix")
		}
		suffix := p.cur.val
		if handle == "!" && suffix == "" {
			p.inlineProps.Tag = TagExclamationMark
		} else {
			prefix := p.tags.Resolve(handle)
			if prefix == "" {
				return Event{}, false, p.parseErrorAt(handleMark, fmt.Sprintf("Unknown tag handle %s", handle))
			}
			p.inlineProps.Tag = p.tags.RegisterURI(prefix + suffix)
		}
		return Event{}, false, p.advance()
	case tokenVerbatimTag:
		if p.inlineProps.Tag != TagQuestionMark {
			return Event{}, false, p.parseErrorAt(p.cur.start, "Only one tag is allowed per node")
		}
		if !p.inlineProps.IsSet() {
			p.inlineStart = p.cur.start
		}
		p.inlineProps.Tag = p.tags.RegisterURI(p.cur.val)
		return Event{}, false, p.advance()
	case tokenAnchor:
		if p.inlineProps.Anchor != "" {
			return Event{}, false, p.parseErrorAt(p.cur.start, "Only one anchor is allowed per node")
		}
		if !p.inlineProps.IsSet() {
			p.inlineStart = p.cur.start
		}
		p.inlineProps.Anchor = p.cur.val
		return Event{}, false, p.advance()
	}
	p.pop()
	return Event{}, false, nil
}

// stepAfterCompactParent reads one node in value or item position: it may
// sit on the same line as its parent's indicator, on a deeper line, or be
// absent entirely.
func (p *Parser) stepAfterCompactParent() (Event, bool, error) {
	ownIndent := p.top().indentation
	switch p.cur.kind {
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		p.top().state = afterCompactParentProps
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenIndentation:
		if err := p.shiftPropsToHeader(); err != nil {
			return Event{}, false, err
		}
		n := p.cur.indent
		if n > ownIndent {
			if err := p.advance(); err != nil {
				return Event{}, false, err
			}
			p.top().state = atBlockIndentation
			p.top().indentation = n
			return Event{}, false, nil
		}
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if n == ownIndent && p.cur.kind == tokenSeqItemInd && p.parentIsMapping() {
			// A block sequence may sit at the same column as the mapping
			// that owns it (compact form).
			p.top().state = atBlockIndentation
			p.top().indentation = n
			return Event{}, false, nil
		}
		props, propsStart := p.takeHeaderProps()
		e := p.emptyScalarEvent(p.cur.start, props, propsStart)
		p.pop()
		return e, true, nil
	case tokenDirectivesEnd, tokenDocumentEnd, tokenStreamEnd:
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.emptyScalarEvent(p.cur.start, props, propsStart)
		p.pop()
		return e, true, nil
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted, tokenLiteral, tokenFolded:
		t := p.cur
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if p.cur.kind == tokenMapValueInd {
			if t.multiline {
				return Event{}, false, p.parseErrorAt(t.start, "Implicit map key may not be multiline")
			}
			props, propsStart := p.takeHeaderProps()
			e := p.collectionStartEvent(EventMapStart, StyleBlock, t, props, propsStart)
			keyProps, keyStart := p.takeInlineProps()
			key := p.scalarEvent(t, keyProps, keyStart)
			p.queued = &key
			p.top().state = afterImplicitKey
			p.top().indentation = t.start.Column - 1
			return e, true, nil
		}
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.scalarEvent(t, props, propsStart)
		p.pop()
		return e, true, nil
	case tokenAlias:
		t := p.cur
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if p.cur.kind == tokenMapValueInd {
			props, propsStart := p.takeHeaderProps()
			e := p.collectionStartEvent(EventMapStart, StyleBlock, t, props, propsStart)
			key, err := p.aliasEvent(t)
			if err != nil {
				return Event{}, false, err
			}
			p.queued = &key
			p.top().state = afterImplicitKey
			p.top().indentation = t.start.Column - 1
			return e, true, nil
		}
		e, err := p.aliasEvent(t)
		if err != nil {
			return Event{}, false, err
		}
		p.pop()
		return e, true, nil
	case tokenSeqItemInd:
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.collectionStartEvent(EventSeqStart, StyleBlock, p.cur, props, propsStart)
		p.top().state = inBlockSeq
		p.top().indentation = p.cur.start.Column - 1
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.push(afterCompactParent, p.top().indentation)
		return e, true, nil
	case tokenMapKeyInd:
		props, propsStart, err := p.takeMergedProps()
		if err != nil {
			return Event{}, false, err
		}
		e := p.collectionStartEvent(EventMapStart, StyleBlock, p.cur, props, propsStart)
		p.top().state = beforeBlockMapValue
		p.top().indentation = p.cur.start.Column - 1
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.push(afterCompactParent, p.top().indentation)
		return e, true, nil
	case tokenMapValueInd:
		props, propsStart := p.takeHeaderProps()
		e := p.collectionStartEvent(EventMapStart, StyleBlock, p.cur, props, propsStart)
		key := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		p.queued = &key
		p.top().state = afterImplicitKey
		p.top().indentation = p.cur.start.Column - 1
		return e, true, nil
	case tokenSeqStart:
		return p.openFlowCollectionHere(EventSeqStart, afterFlowSeqSep)
	case tokenMapStart:
		return p.openFlowCollectionHere(EventMapStart, afterFlowMapSep)
	}
	return Event{}, false, p.unexpected("node content")
}

func (p *Parser) parentIsMapping() bool {
	if len(p.levels) < 2 {
		return false
	}
	switch p.levels[len(p.levels)-2].state {
	case beforeBlockMapKey, beforeBlockMapValue, afterImplicitKey, atBlockMapKeyProps:
		return true
	}
	return false
}

func (p *Parser) stepInBlockSeq() (Event, bool, error) {
	top := p.top()
	switch p.cur.kind {
	case tokenIndentation:
		p.push(beforeBlockIndentation, indentUndecided)
		return Event{}, false, nil
	case tokenDirectivesEnd, tokenDocumentEnd, tokenStreamEnd:
		e := p.endEvent(EventSeqEnd, p.cur)
		p.pop()
		return e, true, nil
	}
	switch {
	case p.blockIndentation < top.indentation:
		e := p.endEvent(EventSeqEnd, p.cur)
		p.pop()
		return e, true, nil
	case p.blockIndentation > top.indentation:
		return Event{}, false, p.parseErrorAt(p.cur.start, "Invalid indentation: content is deeper than its sequence")
	}
	if p.cur.kind != tokenSeqItemInd {
		e := p.endEvent(EventSeqEnd, p.cur)
		p.pop()
		return e, true, nil
	}
	if err := p.advance(); err != nil {
		return Event{}, false, err
	}
	p.push(afterCompactParent, top.indentation)
	return Event{}, false, nil
}

func (p *Parser) stepBeforeBlockMapKey() (Event, bool, error) {
	top := p.top()
	switch p.cur.kind {
	case tokenIndentation:
		p.push(beforeBlockIndentation, indentUndecided)
		return Event{}, false, nil
	case tokenDirectivesEnd, tokenDocumentEnd, tokenStreamEnd:
		e := p.endEvent(EventMapEnd, p.cur)
		p.pop()
		return e, true, nil
	}
	switch {
	case p.blockIndentation < top.indentation:
		e := p.endEvent(EventMapEnd, p.cur)
		p.pop()
		return e, true, nil
	case p.blockIndentation > top.indentation:
		return Event{}, false, p.parseErrorAt(p.cur.start, "Invalid indentation: content is deeper than its mapping")
	}
	switch p.cur.kind {
	case tokenMapKeyInd:
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		top.state = beforeBlockMapValue
		p.push(afterCompactParent, top.indentation)
		return Event{}, false, nil
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		top.state = atBlockMapKeyProps
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenMapValueInd:
		e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		top.state = afterImplicitKey
		return e, true, nil
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted, tokenLiteral, tokenFolded, tokenAlias:
		return p.readImplicitMapKey()
	}
	return Event{}, false, p.unexpected("mapping key")
}

// readImplicitMapKey consumes a scalar or alias that must be followed by
// ':' inside an already-open block mapping.
func (p *Parser) readImplicitMapKey() (Event, bool, error) {
	t := p.cur
	if err := p.advance(); err != nil {
		return Event{}, false, err
	}
	if p.cur.kind != tokenMapValueInd {
		return Event{}, false, p.parseErrorAt(t.start, fmt.Sprintf("Unexpected token %s (expected ':' after implicit map key)", p.cur.kind))
	}
	if t.kind == tokenAlias {
		e, err := p.aliasEvent(t)
		if err != nil {
			return Event{}, false, err
		}
		p.top().state = afterImplicitKey
		return e, true, nil
	}
	if t.multiline {
		return Event{}, false, p.parseErrorAt(t.start, "Implicit map key may not be multiline")
	}
	props, propsStart := p.takeInlineProps()
	e := p.scalarEvent(t, props, propsStart)
	p.top().state = afterImplicitKey
	return e, true, nil
}

func (p *Parser) stepAtBlockMapKeyProps() (Event, bool, error) {
	switch p.cur.kind {
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted, tokenLiteral, tokenFolded, tokenAlias:
		return p.readImplicitMapKey()
	case tokenMapValueInd:
		props, propsStart := p.takeInlineProps()
		e := p.emptyScalarEvent(p.cur.start, props, propsStart)
		p.top().state = afterImplicitKey
		return e, true, nil
	}
	return Event{}, false, p.unexpected("mapping key")
}

func (p *Parser) stepBeforeBlockMapValue() (Event, bool, error) {
	top := p.top()
	switch p.cur.kind {
	case tokenIndentation:
		p.push(beforeBlockIndentation, indentUndecided)
		return Event{}, false, nil
	case tokenDirectivesEnd, tokenDocumentEnd, tokenStreamEnd:
		e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		top.state = beforeBlockMapKey
		return e, true, nil
	}
	if p.blockIndentation < top.indentation {
		// The explicit key never got a value.
		e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		top.state = beforeBlockMapKey
		return e, true, nil
	}
	switch p.cur.kind {
	case tokenMapValueInd:
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		top.state = beforeBlockMapKey
		p.push(afterCompactParent, top.indentation)
		return Event{}, false, nil
	case tokenMapKeyInd, tokenPlain, tokenSingleQuoted, tokenDoubleQuoted, tokenLiteral, tokenFolded, tokenAlias, tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		// The next key begins; the previous explicit key had no value.
		e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		top.state = beforeBlockMapKey
		return e, true, nil
	}
	return Event{}, false, p.unexpected("':'")
}

func (p *Parser) stepAfterImplicitKey() (Event, bool, error) {
	if p.cur.kind != tokenMapValueInd {
		return Event{}, false, p.internalf("%s after implicit key", p.cur.kind)
	}
	if err := p.advance(); err != nil {
		return Event{}, false, err
	}
	p.top().state = beforeBlockMapKey
	p.push(afterCompactParent, p.top().indentation)
	return Event{}, false, nil
}

func (p *Parser) stepBeforeBlockIndentation() (Event, bool, error) {
	if p.cur.kind == tokenIndentation {
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
	}
	p.pop()
	return Event{}, false, nil
}

// Flow states.

func (p *Parser) stepBeforeFlowItem() (Event, bool, error) {
	switch p.cur.kind {
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		p.top().state = beforeFlowItemProps
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted:
		props, propsStart := p.takeInlineProps()
		e := p.scalarEvent(p.cur, props, propsStart)
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.pop()
		return e, true, nil
	case tokenAlias:
		e, err := p.aliasEvent(p.cur)
		if err != nil {
			return Event{}, false, err
		}
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.pop()
		return e, true, nil
	case tokenSeqStart:
		return p.openFlowCollectionHere(EventSeqStart, afterFlowSeqSep)
	case tokenMapStart:
		return p.openFlowCollectionHere(EventMapStart, afterFlowMapSep)
	case tokenSeqSep, tokenSeqEnd, tokenMapEnd, tokenMapValueInd:
		props, propsStart := p.takeInlineProps()
		e := p.emptyScalarEvent(p.cur.start, props, propsStart)
		p.pop()
		return e, true, nil
	}
	return Event{}, false, p.unexpected("flow node")
}

func (p *Parser) stepAfterFlowSeqSep() (Event, bool, error) {
	switch p.cur.kind {
	case tokenSeqEnd:
		return p.closeFlowCollection(EventSeqEnd)
	case tokenSeqSep:
		// ",," — an empty sequence item.
		e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		p.top().state = afterFlowSeqItem
		return e, true, nil
	case tokenMapKeyInd:
		// A single-pair mapping without braces: "? key" inside a flow
		// sequence.
		e := p.collectionStartEvent(EventMapStart, StyleFlow, p.cur, Properties{}, Mark{})
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.top().state = beforePairValue
		p.push(beforeFlowItem, indentUndecided)
		return e, true, nil
	case tokenMapValueInd:
		// ": value" — a single-pair mapping with an empty key.
		e := p.collectionStartEvent(EventMapStart, StyleFlow, p.cur, Properties{}, Mark{})
		p.top().state = atEmptyPairKey
		return e, true, nil
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		p.top().state = afterFlowSeqSepProps
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted:
		t := p.cur
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if p.cur.kind == tokenMapValueInd {
			e := p.collectionStartEvent(EventMapStart, StyleFlow, t, Properties{}, Mark{})
			keyProps, keyStart := p.takeInlineProps()
			key := p.scalarEvent(t, keyProps, keyStart)
			p.queued = &key
			p.top().state = afterImplicitPairStart
			return e, true, nil
		}
		props, propsStart := p.takeInlineProps()
		e := p.scalarEvent(t, props, propsStart)
		p.top().state = afterFlowSeqItem
		return e, true, nil
	case tokenAlias:
		t := p.cur
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		if p.cur.kind == tokenMapValueInd {
			e := p.collectionStartEvent(EventMapStart, StyleFlow, t, Properties{}, Mark{})
			key, err := p.aliasEvent(t)
			if err != nil {
				return Event{}, false, err
			}
			p.queued = &key
			p.top().state = afterImplicitPairStart
			return e, true, nil
		}
		e, err := p.aliasEvent(t)
		if err != nil {
			return Event{}, false, err
		}
		p.top().state = afterFlowSeqItem
		return e, true, nil
	case tokenSeqStart:
		p.top().state = afterFlowSeqItem
		p.push(beforeFlowItem, indentUndecided)
		return p.openFlowCollectionHere(EventSeqStart, afterFlowSeqSep)
	case tokenMapStart:
		p.top().state = afterFlowSeqItem
		p.push(beforeFlowItem, indentUndecided)
		return p.openFlowCollectionHere(EventMapStart, afterFlowMapSep)
	case tokenStreamEnd, tokenDirectivesEnd, tokenDocumentEnd:
		return Event{}, false, p.unexpected("']'")
	}
	return Event{}, false, p.unexpected("flow sequence item or ']'")
}

func (p *Parser) closeFlowCollection(kind EventKind) (Event, bool, error) {
	e := p.endEvent(kind, p.cur)
	p.lex.leaveFlow()
	if err := p.advance(); err != nil {
		return Event{}, false, err
	}
	p.pop()
	return e, true, nil
}

func (p *Parser) stepAfterFlowSeqItem() (Event, bool, error) {
	switch p.cur.kind {
	case tokenSeqSep:
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.top().state = afterFlowSeqSep
		return Event{}, false, nil
	case tokenSeqEnd:
		return p.closeFlowCollection(EventSeqEnd)
	}
	return Event{}, false, p.unexpected("',' or ']'")
}

func (p *Parser) stepAfterFlowMapSep() (Event, bool, error) {
	switch p.cur.kind {
	case tokenMapEnd:
		return p.closeFlowCollection(EventMapEnd)
	case tokenMapKeyInd:
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.top().state = afterFlowMapKey
		p.push(beforeFlowItem, indentUndecided)
		return Event{}, false, nil
	case tokenMapValueInd:
		e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		p.top().state = afterFlowMapKey
		return e, true, nil
	case tokenTagHandle, tokenVerbatimTag, tokenAnchor:
		p.push(beforeNodeProperties, indentUndecided)
		return Event{}, false, nil
	case tokenPlain, tokenSingleQuoted, tokenDoubleQuoted, tokenAlias:
		t := p.cur
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		var e Event
		var err error
		if t.kind == tokenAlias {
			e, err = p.aliasEvent(t)
			if err != nil {
				return Event{}, false, err
			}
		} else {
			props, propsStart := p.takeInlineProps()
			e = p.scalarEvent(t, props, propsStart)
		}
		p.top().state = afterFlowMapKey
		return e, true, nil
	case tokenSeqStart:
		// A flow collection may itself be a key inside an explicit flow
		// mapping.
		p.top().state = afterFlowMapKey
		p.push(beforeFlowItem, indentUndecided)
		return p.openFlowCollectionHere(EventSeqStart, afterFlowSeqSep)
	case tokenMapStart:
		p.top().state = afterFlowMapKey
		p.push(beforeFlowItem, indentUndecided)
		return p.openFlowCollectionHere(EventMapStart, afterFlowMapSep)
	case tokenStreamEnd, tokenDirectivesEnd, tokenDocumentEnd:
		return Event{}, false, p.unexpected("'}'")
	}
	return Event{}, false, p.unexpected("flow mapping key or '}'")
}

func (p *Parser) stepAfterFlowMapKey() (Event, bool, error) {
	switch p.cur.kind {
	case tokenMapValueInd:
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.top().state = afterFlowMapValue
		p.push(beforeFlowItem, indentUndecided)
		return Event{}, false, nil
	case tokenSeqSep, tokenMapEnd:
		e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
		p.top().state = afterFlowMapValue
		return e, true, nil
	}
	return Event{}, false, p.unexpected("':'")
}

func (p *Parser) stepAfterFlowMapValue() (Event, bool, error) {
	switch p.cur.kind {
	case tokenSeqSep:
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.top().state = afterFlowMapSep
		return Event{}, false, nil
	case tokenMapEnd:
		return p.closeFlowCollection(EventMapEnd)
	}
	return Event{}, false, p.unexpected("',' or '}'")
}

func (p *Parser) stepAtEmptyPairKey() (Event, bool, error) {
	e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
	p.top().state = beforePairValue
	return e, true, nil
}

func (p *Parser) stepBeforePairValue() (Event, bool, error) {
	if p.cur.kind == tokenMapValueInd {
		if err := p.advance(); err != nil {
			return Event{}, false, err
		}
		p.top().state = afterPairValue
		p.push(beforeFlowItem, indentUndecided)
		return Event{}, false, nil
	}
	// "? key" with no value.
	e := p.emptyScalarEvent(p.cur.start, Properties{}, Mark{})
	p.top().state = afterPairValue
	return e, true, nil
}

func (p *Parser) stepAfterPairValue() (Event, bool, error) {
	e := Event{Kind: EventMapEnd, Start: p.cur.start, End: p.cur.start}
	p.top().state = afterFlowSeqItem
	return e, true, nil
}
