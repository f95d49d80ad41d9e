package yaml

import (
	"io"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/willabides/yamlstream/internal/chars"
)

// Byte order marks.
const (
	bomUTF8    = "\xef\xbb\xbf"
	bomUTF16LE = "\xff\xfe"
	bomUTF16BE = "\xfe\xff"
)

type encoding int8

const (
	encodingAny encoding = iota
	encodingUTF8
	encodingUTF16LE
	encodingUTF16BE
)

const rawChunkSize = 512

// reader turns an io.Reader into a stream of UTF-8 bytes for the lexer.
// It detects the encoding from a leading BOM (transcoding UTF-16 input),
// normalizes CR and CRLF line breaks to LF, tracks the mark of the next
// unconsumed byte, and retains the current line for error annotation.
// At end of input it delivers NUL sentinel bytes, so callers can look ahead
// without checking lengths.
type reader struct {
	src io.Reader

	raw    []byte
	rawPos int
	srcEOF bool
	enc    encoding

	buf    []byte
	bufPos int
	eof    bool // sentinel appended

	mark Mark
	line []byte // consumed bytes of the current line

	// history holds the last few completed lines so errors whose mark sits
	// before the lookahead position can still be annotated.
	history []completedLine
}

type completedLine struct {
	lineNo int
	text   string
}

const lineHistorySize = 8

func newReader(src io.Reader) *reader {
	return &reader{
		src:  src,
		raw:  make([]byte, 0, rawChunkSize),
		buf:  make([]byte, 0, rawChunkSize*3),
		mark: Mark{Index: 0, Line: 1, Column: 1},
	}
}

// peek returns the i-th unconsumed byte without consuming it. Past the end
// of input it returns the NUL sentinel.
func (r *reader) peek(i int) byte {
	if err := r.ensure(i + 1); err != nil {
		// A decoding error surfaces again when the byte is consumed.
		return 0
	}
	if r.bufPos+i < len(r.buf) {
		return r.buf[r.bufPos+i]
	}
	return 0
}

// next consumes and returns one byte, advancing the mark.
func (r *reader) next() (byte, error) {
	if err := r.ensure(1); err != nil {
		return 0, err
	}
	if r.bufPos >= len(r.buf) {
		return 0, nil
	}
	b := r.buf[r.bufPos]
	r.bufPos++
	if chars.IsZ(b) {
		return b, nil
	}
	r.mark.Index++
	if b == '\n' {
		r.history = append(r.history, completedLine{lineNo: r.mark.Line, text: string(r.line)})
		if len(r.history) > lineHistorySize {
			r.history = r.history[1:]
		}
		r.mark.Line++
		r.mark.Column = 1
		r.line = r.line[:0]
	} else {
		// Continuation bytes of a UTF-8 sequence do not advance the column.
		if b&0xC0 != 0x80 {
			r.mark.Column++
		}
		r.line = append(r.line, b)
	}
	return b, nil
}

// skip consumes n bytes, stopping at and returning the first error.
func (r *reader) skip(n int) error {
	for i := 0; i < n; i++ {
		if _, err := r.next(); err != nil {
			return err
		}
	}
	return nil
}

// lineContent returns the full text of the line numbered lineNo. For a
// line already completed it comes from the history; for the current line
// the remainder is read ahead, which is harmless since this is only called
// while building an error.
func (r *reader) lineContent(lineNo int) string {
	if lineNo != r.mark.Line {
		for _, h := range r.history {
			if h.lineNo == lineNo {
				return h.text
			}
		}
		return ""
	}
	for {
		for i := r.bufPos; i < len(r.buf); i++ {
			if r.buf[i] == '\n' || chars.IsZ(r.buf[i]) {
				return string(r.line) + string(r.buf[r.bufPos:i])
			}
		}
		if r.eof {
			return string(r.line) + string(r.buf[r.bufPos:])
		}
		if err := r.ensure(len(r.buf) - r.bufPos + rawChunkSize); err != nil {
			return string(r.line) + string(r.buf[r.bufPos:])
		}
	}
}

// ensure guarantees at least n unconsumed bytes in buf, or that the EOF
// sentinel has been appended.
func (r *reader) ensure(n int) error {
	if len(r.buf)-r.bufPos >= n || r.eof {
		return nil
	}
	// Compact the consumed prefix.
	if r.bufPos > 0 {
		r.buf = append(r.buf[:0], r.buf[r.bufPos:]...)
		r.bufPos = 0
	}
	for len(r.buf) < n && !r.eof {
		if err := r.fill(); err != nil {
			return err
		}
	}
	return nil
}

// fill decodes one chunk of raw input into buf.
func (r *reader) fill() error {
	if r.enc == encodingAny {
		if err := r.determineEncoding(); err != nil {
			return err
		}
	}
	if r.rawPos == len(r.raw) && !r.srcEOF {
		if err := r.readRaw(); err != nil {
			return err
		}
	}
	switch r.enc {
	case encodingUTF16LE, encodingUTF16BE:
		if err := r.decodeUTF16(); err != nil {
			return err
		}
	default:
		r.decodeUTF8()
	}
	if r.srcEOF && r.rawPos == len(r.raw) && !r.eof {
		r.buf = append(r.buf, 0)
		r.eof = true
	}
	return nil
}

func (r *reader) readRaw() error {
	if r.rawPos > 0 {
		r.raw = append(r.raw[:0], r.raw[r.rawPos:]...)
		r.rawPos = 0
	}
	for len(r.raw) < rawChunkSize && !r.srcEOF {
		n, err := r.src.Read(r.raw[len(r.raw):rawChunkSize])
		r.raw = r.raw[:len(r.raw)+n]
		if err == io.EOF {
			r.srcEOF = true
		} else if err != nil {
			return &ParserError{Msg: "input error: " + err.Error(), Mark: r.mark}
		}
		if n == 0 && err == nil {
			break
		}
	}
	return nil
}

func (r *reader) determineEncoding() error {
	r.raw = r.raw[:0]
	r.rawPos = 0
	if err := r.readRaw(); err != nil {
		return err
	}
	avail := len(r.raw)
	switch {
	case avail >= 2 && string(r.raw[:2]) == bomUTF16LE:
		r.enc = encodingUTF16LE
		r.rawPos = 2
	case avail >= 2 && string(r.raw[:2]) == bomUTF16BE:
		r.enc = encodingUTF16BE
		r.rawPos = 2
	case avail >= 3 && string(r.raw[:3]) == bomUTF8:
		r.enc = encodingUTF8
		r.rawPos = 3
	default:
		r.enc = encodingUTF8
	}
	return nil
}

// decodeUTF8 moves complete UTF-8 sequences from raw to buf, normalizing
// line breaks. Invalid sequences are passed through unchanged; the lexer
// does not validate UTF-8 either.
func (r *reader) decodeUTF8() {
	for r.rawPos < len(r.raw) {
		b := r.raw[r.rawPos]
		if b == '\r' {
			r.rawPos++
			if r.rawPos == len(r.raw) && !r.srcEOF {
				// Cannot tell CR from CRLF yet.
				r.rawPos--
				return
			}
			if r.rawPos < len(r.raw) && r.raw[r.rawPos] == '\n' {
				r.rawPos++
			}
			r.buf = append(r.buf, '\n')
			continue
		}
		w := chars.Width(b)
		if w == 0 {
			w = 1
		}
		if r.rawPos+w > len(r.raw) {
			if !r.srcEOF {
				return
			}
			w = len(r.raw) - r.rawPos
		}
		r.buf = append(r.buf, r.raw[r.rawPos:r.rawPos+w]...)
		r.rawPos += w
	}
}

// decodeUTF16 transcodes UTF-16 code units to UTF-8, normalizing breaks.
func (r *reader) decodeUTF16() error {
	low, high := 0, 1
	if r.enc == encodingUTF16BE {
		low, high = 1, 0
	}
	for len(r.raw)-r.rawPos >= 2 {
		unit := rune(r.raw[r.rawPos+low]) | rune(r.raw[r.rawPos+high])<<8
		width := 2
		value := unit
		if utf16.IsSurrogate(unit) {
			if unit&0xFC00 == 0xDC00 {
				return &ParserError{Msg: "unexpected low surrogate area", Mark: r.mark}
			}
			if len(r.raw)-r.rawPos < 4 {
				if r.srcEOF {
					return &ParserError{Msg: "incomplete UTF-16 surrogate pair", Mark: r.mark}
				}
				break
			}
			unit2 := rune(r.raw[r.rawPos+low+2]) | rune(r.raw[r.rawPos+high+2])<<8
			value = utf16.DecodeRune(unit, unit2)
			if value == utf8.RuneError {
				return &ParserError{Msg: "expected low surrogate area", Mark: r.mark}
			}
			width = 4
		}
		r.rawPos += width
		if value == '\r' {
			if len(r.raw)-r.rawPos < 2 && !r.srcEOF {
				r.rawPos -= width
				break
			}
			if len(r.raw)-r.rawPos >= 2 {
				next := rune(r.raw[r.rawPos+low]) | rune(r.raw[r.rawPos+high])<<8
				if next == '\n' {
					r.rawPos += 2
				}
			}
			value = '\n'
		}
		var tmp [4]byte
		n := utf8.EncodeRune(tmp[:], value)
		r.buf = append(r.buf, tmp[:n]...)
	}
	if r.srcEOF && len(r.raw)-r.rawPos == 1 {
		return &ParserError{Msg: "incomplete UTF-16 character", Mark: r.mark}
	}
	return nil
}
