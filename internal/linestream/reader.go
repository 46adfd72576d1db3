package linestream

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

type ErrorCode int

const (
	// InvalidCharacter means the input is not valid in the detected encoding.
	InvalidCharacter ErrorCode = iota + 1
	// IOError means the underlying source failed.
	IOError
)

func (c ErrorCode) String() string {
	switch c {
	case InvalidCharacter:
		return "invalid character"
	case IOError:
		return "i/o error"
	default:
		return "unknown error"
	}
}

// DecodeError records where decoding stopped. Line and Col are 1-based.
type DecodeError struct {
	Code    ErrorCode
	Line    int
	Col     int
	Message string
	Err     error
}

func (e *DecodeError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Code.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("line %d, col %d: %s: %v", e.Line, e.Col, msg, e.Err)
	}
	return fmt.Sprintf("line %d, col %d: %s", e.Line, e.Col, msg)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF32BE = []byte{0x00, 0x00, 0xFE, 0xFF}
	bomUTF32LE = []byte{0xFF, 0xFE, 0x00, 0x00}
	bomUTF16BE = []byte{0xFE, 0xFF}
	bomUTF16LE = []byte{0xFF, 0xFE}
)

const (
	lineSeparator      = '\u2028'
	paragraphSeparator = '\u2029'
	sub                = 0x1A
)

// Reader splits a byte stream into decoded lines. It detects the encoding
// from a leading byte order mark and counts line terminators so the file's
// line ending style is known once the input is exhausted.
//
// A Reader is not restartable: after ReadLine reports false it stays done.
type Reader struct {
	src        *bufio.Reader
	autodetect bool
	format     Format
	detected   bool
	done       bool
	err        *DecodeError

	line int
	col  int

	back    rune
	hasBack bool

	lf   int
	cr   int
	crlf int
}

// NewReader returns a Reader over src. With autodetect disabled a stream
// without a byte order mark must be plain 7-bit ASCII.
func NewReader(src io.Reader, autodetect bool) *Reader {
	return &Reader{
		src:        bufio.NewReader(src),
		autodetect: autodetect,
		format:     Format{Encoding: EncodingUnknown, LineEnding: LineEndingUnknown},
	}
}

func (r *Reader) detect() {
	r.detected = true
	head, err := r.src.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		r.fail(IOError, "read failed", err)
		return
	}
	boms := []struct {
		mark []byte
		enc  Encoding
	}{
		{bomUTF8, UTF8},
		{bomUTF32BE, UTF32BE},
		{bomUTF32LE, UTF32LE},
		{bomUTF16BE, UTF16BE},
		{bomUTF16LE, UTF16LE},
	}
	for _, b := range boms {
		if bytes.HasPrefix(head, b.mark) {
			_, _ = r.src.Discard(len(b.mark))
			r.format.Encoding = b.enc
			r.format.BOM = true
			return
		}
	}
	if r.autodetect {
		r.format.Encoding = UTF8
	} else {
		r.format.Encoding = ASCII
	}
}

func (r *Reader) fail(code ErrorCode, msg string, cause error) {
	r.err = &DecodeError{
		Code:    code,
		Line:    r.line + 1,
		Col:     r.col + 1,
		Message: msg,
		Err:     cause,
	}
	r.done = true
}

// ReadLine returns the next line without its terminator. The text after the
// last terminator is always returned as a final line, possibly empty, so an
// empty stream yields exactly one empty line. ok is false at end of input or
// after a decoding error; see Err.
func (r *Reader) ReadLine() (line []rune, ok bool) {
	if r.done {
		return nil, false
	}
	if !r.detected {
		r.detect()
		if r.done {
			return nil, false
		}
	}
	line = []rune{}
	r.col = 0
	for {
		c, more := r.next()
		if !more {
			if r.err != nil {
				return nil, false
			}
			r.done = true
			return line, true
		}
		switch c {
		case 0, sub:
			r.done = true
			return line, true
		case '\n':
			r.lf++
			r.line++
			return line, true
		case '\r':
			// the lookahead already belongs to the next line
			r.line++
			r.col = 0
			if n, ok := r.next(); ok {
				if n == '\n' {
					r.crlf++
				} else {
					r.unread(n)
					r.cr++
				}
			} else {
				r.cr++
			}
			return line, true
		case lineSeparator, paragraphSeparator:
			r.line++
			return line, true
		default:
			line = append(line, c)
			r.col++
		}
	}
}

// ReadAll drains the reader. On a decoding error it returns the lines read
// so far together with the error.
func (r *Reader) ReadAll() ([][]rune, error) {
	var lines [][]rune
	for {
		line, ok := r.ReadLine()
		if !ok {
			break
		}
		lines = append(lines, line)
	}
	if err := r.Err(); err != nil {
		return lines, err
	}
	return lines, nil
}

// Err returns the decoding error, if any. It stays set once reported.
func (r *Reader) Err() error {
	if r.err == nil {
		return nil
	}
	return r.err
}

// Format returns the detected encoding and the line ending style seen so far.
func (r *Reader) Format() Format {
	f := r.format
	kinds := 0
	if r.lf > 0 {
		kinds++
		f.LineEnding = LF
	}
	if r.crlf > 0 {
		kinds++
		f.LineEnding = CRLF
	}
	if r.cr > 0 {
		kinds++
		f.LineEnding = CR
	}
	switch kinds {
	case 0:
		f.LineEnding = LineEndingUnknown
	case 1:
	default:
		f.LineEnding = LineEndingMixed
	}
	return f
}

func (r *Reader) unread(c rune) {
	r.back = c
	r.hasBack = true
}

// next decodes one code point. It returns false at end of input and on error.
func (r *Reader) next() (rune, bool) {
	if r.hasBack {
		r.hasBack = false
		return r.back, true
	}
	if r.err != nil {
		return 0, false
	}
	switch r.format.Encoding {
	case ASCII:
		b, err := r.src.ReadByte()
		if err != nil {
			return r.eof(err)
		}
		if b > 0x7F {
			r.fail(InvalidCharacter, fmt.Sprintf("non-ascii byte 0x%02X", b), nil)
			return 0, false
		}
		return rune(b), true
	case UTF16BE, UTF16LE:
		return r.nextUTF16()
	case UTF32BE, UTF32LE:
		return r.nextUTF32()
	default:
		c, size, err := r.src.ReadRune()
		if err != nil {
			return r.eof(err)
		}
		if c == utf8.RuneError && size == 1 {
			r.fail(InvalidCharacter, "invalid utf-8 sequence", nil)
			return 0, false
		}
		return c, true
	}
}

func (r *Reader) eof(err error) (rune, bool) {
	if !errors.Is(err, io.EOF) {
		r.fail(IOError, "read failed", err)
	}
	return 0, false
}

// readUnits reads exactly len(buf) bytes. A partial read at the end of the
// stream is a truncated character.
func (r *Reader) readUnits(buf []byte) bool {
	n, err := io.ReadFull(r.src, buf)
	if err == nil {
		return true
	}
	if errors.Is(err, io.EOF) && n == 0 {
		return false
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		r.fail(InvalidCharacter, "truncated character at end of input", nil)
		return false
	}
	r.fail(IOError, "read failed", err)
	return false
}

func (r *Reader) unit16(b []byte) uint16 {
	if r.format.Encoding == UTF16BE {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[1])<<8 | uint16(b[0])
}

func (r *Reader) nextUTF16() (rune, bool) {
	var buf [2]byte
	if !r.readUnits(buf[:]) {
		return 0, false
	}
	u := r.unit16(buf[:])
	switch {
	case u < 0xD800 || u > 0xDFFF:
		return rune(u), true
	case u >= 0xDC00:
		r.fail(InvalidCharacter, "unpaired low surrogate", nil)
		return 0, false
	}
	if !r.readUnits(buf[:]) {
		if r.err == nil {
			r.fail(InvalidCharacter, "unpaired high surrogate", nil)
		}
		return 0, false
	}
	lo := r.unit16(buf[:])
	c := utf16.DecodeRune(rune(u), rune(lo))
	if c == utf8.RuneError {
		r.fail(InvalidCharacter, "unpaired high surrogate", nil)
		return 0, false
	}
	return c, true
}

func (r *Reader) nextUTF32() (rune, bool) {
	var b [4]byte
	if !r.readUnits(b[:]) {
		return 0, false
	}
	var v uint32
	if r.format.Encoding == UTF32BE {
		v = uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	} else {
		v = uint32(b[3])<<24 | uint32(b[2])<<16 | uint32(b[1])<<8 | uint32(b[0])
	}
	if v > utf8.MaxRune || (v >= 0xD800 && v <= 0xDFFF) {
		r.fail(InvalidCharacter, fmt.Sprintf("invalid code point 0x%X", v), nil)
		return 0, false
	}
	return rune(v), true
}
