package linestream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
	"golang.org/x/text/transform"
)

// ErrUnencodable is returned when a line holds a character the target
// encoding cannot represent.
var ErrUnencodable = errors.New("character not representable in target encoding")

const writeChunk = 16 << 10

// Writer writes lines in a given Format. Terminators go between lines, so
// writing the lines produced by a Reader reproduces the original bytes.
type Writer struct {
	buf     *bufio.Writer
	out     io.Writer
	tw      *transform.Writer
	format  Format
	eol     string
	scratch []byte
	lines   int
	err     error
}

// NewWriter returns a Writer targeting dst. Unknown or mixed format fields
// are normalized first, see Format.Normalized.
func NewWriter(dst io.Writer, f Format) *Writer {
	f = f.Normalized()
	w := &Writer{
		buf:    bufio.NewWriterSize(dst, writeChunk),
		format: f,
		eol:    f.LineEnding.Terminator(),
	}
	w.out = w.buf
	if enc := encoderFor(f.Encoding); enc != nil {
		w.tw = transform.NewWriter(w.buf, enc)
		w.out = w.tw
	}
	return w
}

func encoderFor(e Encoding) *encoding.Encoder {
	switch e {
	case UTF16BE:
		return unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewEncoder()
	case UTF16LE:
		return unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder()
	case UTF32BE:
		return utf32.UTF32(utf32.BigEndian, utf32.IgnoreBOM).NewEncoder()
	case UTF32LE:
		return utf32.UTF32(utf32.LittleEndian, utf32.IgnoreBOM).NewEncoder()
	default:
		return nil
	}
}

// Format returns the normalized format the writer produces.
func (w *Writer) Format() Format {
	return w.format
}

func (w *Writer) WriteLine(line []rune) error {
	if w.err != nil {
		return w.err
	}
	w.scratch = w.scratch[:0]
	if w.lines == 0 && w.format.BOM {
		w.scratch = utf8.AppendRune(w.scratch, '\uFEFF')
	}
	if w.lines > 0 {
		w.scratch = append(w.scratch, w.eol...)
	}
	for i, c := range line {
		if w.format.Encoding == ASCII && c > 0x7F {
			w.err = fmt.Errorf("line %d, col %d: %w", w.lines+1, i+1, ErrUnencodable)
			return w.err
		}
		w.scratch = utf8.AppendRune(w.scratch, c)
	}
	w.lines++
	if _, err := w.out.Write(w.scratch); err != nil {
		w.err = err
		return err
	}
	return nil
}

func (w *Writer) WriteLines(lines [][]rune) error {
	for _, line := range lines {
		if err := w.WriteLine(line); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered output. It does not close the destination.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if w.lines == 0 && w.format.BOM {
		if err := w.WriteLine(nil); err != nil {
			return err
		}
	}
	if w.tw != nil {
		if err := w.tw.Close(); err != nil {
			w.err = err
			return err
		}
	}
	if err := w.buf.Flush(); err != nil {
		w.err = err
		return err
	}
	return nil
}
