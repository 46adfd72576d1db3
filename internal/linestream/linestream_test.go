package linestream

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"testing/iotest"
)

func readAll(t *testing.T, data []byte, autodetect bool) ([]string, *Reader) {
	t.Helper()
	r := NewReader(bytes.NewReader(data), autodetect)
	lines, err := r.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll error: %v", err)
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out, r
}

func equalLines(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestReaderDetectsUTF8BOM(t *testing.T) {
	data := append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello\nworld")...)
	lines, r := readAll(t, data, true)
	if want := []string{"hello", "world"}; !equalLines(lines, want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	f := r.Format()
	if f.Encoding != UTF8 || !f.BOM {
		t.Fatalf("format = %v, want utf-8 with bom", f)
	}
	if f.LineEnding != LF {
		t.Fatalf("line ending = %v, want lf", f.LineEnding)
	}
}

func TestReaderLineEndings(t *testing.T) {
	tests := []struct {
		name  string
		input string
		lines []string
		eol   LineEnding
	}{
		{"lf", "a\nb\nc", []string{"a", "b", "c"}, LF},
		{"crlf", "a\r\nb\r\nc", []string{"a", "b", "c"}, CRLF},
		{"cr", "a\rb", []string{"a", "b"}, CR},
		{"mixed", "a\nb\r\nc", []string{"a", "b", "c"}, LineEndingMixed},
		{"none", "abc", []string{"abc"}, LineEndingUnknown},
		{"trailing", "a\n", []string{"a", ""}, LF},
		{"trailing cr", "a\r", []string{"a", ""}, CR},
		{"empty", "", []string{""}, LineEndingUnknown},
		{"blank lines", "\n\n", []string{"", "", ""}, LF},
		{"separators", "a\u2028b\u2029c", []string{"a", "b", "c"}, LineEndingUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lines, r := readAll(t, []byte(tt.input), true)
			if !equalLines(lines, tt.lines) {
				t.Fatalf("lines = %q, want %q", lines, tt.lines)
			}
			if got := r.Format().LineEnding; got != tt.eol {
				t.Fatalf("line ending = %v, want %v", got, tt.eol)
			}
		})
	}
}

func TestReaderStopsAtNulAndSub(t *testing.T) {
	lines, _ := readAll(t, []byte("ab\x00cd\nxy"), true)
	if want := []string{"ab"}; !equalLines(lines, want) {
		t.Fatalf("nul: lines = %q, want %q", lines, want)
	}
	lines, _ = readAll(t, []byte("one\ntwo\x1Athree"), true)
	if want := []string{"one", "two"}; !equalLines(lines, want) {
		t.Fatalf("sub: lines = %q, want %q", lines, want)
	}
}

func TestReaderInvalidUTF8(t *testing.T) {
	r := NewReader(strings.NewReader("ok\nab\xffc\nmore"), true)
	line, ok := r.ReadLine()
	if !ok || string(line) != "ok" {
		t.Fatalf("first line = %q, %v", string(line), ok)
	}
	if _, ok := r.ReadLine(); ok {
		t.Fatalf("second ReadLine succeeded on malformed input")
	}
	if _, ok := r.ReadLine(); ok {
		t.Fatalf("ReadLine succeeded after error")
	}
	var de *DecodeError
	if !errors.As(r.Err(), &de) {
		t.Fatalf("Err = %v, want *DecodeError", r.Err())
	}
	if de.Code != InvalidCharacter {
		t.Fatalf("code = %v, want InvalidCharacter", de.Code)
	}
	if de.Line != 2 || de.Col != 3 {
		t.Fatalf("error at %d:%d, want 2:3", de.Line, de.Col)
	}

	// the position of a bad byte does not depend on the terminator before it
	for _, input := range []string{"ab\n\xffcd", "ab\r\xffcd", "ab\r\n\xffcd"} {
		_, err := NewReader(strings.NewReader(input), true).ReadAll()
		if !errors.As(err, &de) {
			t.Fatalf("%q: Err = %v, want *DecodeError", input, err)
		}
		if de.Line != 2 || de.Col != 1 {
			t.Fatalf("%q: error at %d:%d, want 2:1", input, de.Line, de.Col)
		}
	}
}

func TestReaderStrictASCII(t *testing.T) {
	lines, r := readAll(t, []byte("plain\ntext"), false)
	if !equalLines(lines, []string{"plain", "text"}) {
		t.Fatalf("lines = %q", lines)
	}
	if r.Format().Encoding != ASCII {
		t.Fatalf("encoding = %v, want ascii", r.Format().Encoding)
	}

	r = NewReader(strings.NewReader("hé"), false)
	if _, err := r.ReadAll(); err == nil {
		t.Fatalf("ReadAll accepted non-ascii input in strict mode")
	}
}

func TestReaderUTF16Surrogates(t *testing.T) {
	// U+1F600 as a UTF-16BE surrogate pair.
	data := []byte{0xFE, 0xFF, 0xD8, 0x3D, 0xDE, 0x00, 0x00, 'a'}
	lines, r := readAll(t, data, true)
	if want := []string{"\U0001F600a"}; !equalLines(lines, want) {
		t.Fatalf("lines = %q, want %q", lines, want)
	}
	if f := r.Format(); f.Encoding != UTF16BE || !f.BOM {
		t.Fatalf("format = %v, want utf-16be bom", f)
	}

	bad := []byte{0xFF, 0xFE, 0x00, 0xDC, 'a', 0x00}
	r = NewReader(bytes.NewReader(bad), true)
	if _, err := r.ReadAll(); err == nil {
		t.Fatalf("lone low surrogate accepted")
	}

	truncated := []byte{0xFE, 0xFF, 0x00}
	r = NewReader(bytes.NewReader(truncated), true)
	if _, err := r.ReadAll(); err == nil {
		t.Fatalf("truncated utf-16 accepted")
	}
}

func TestReaderIOError(t *testing.T) {
	r := NewReader(iotest.ErrReader(errors.New("disk gone")), true)
	if _, ok := r.ReadLine(); ok {
		t.Fatalf("ReadLine succeeded on failing source")
	}
	var de *DecodeError
	if !errors.As(r.Err(), &de) || de.Code != IOError {
		t.Fatalf("Err = %v, want IOError", r.Err())
	}
}

func TestWriterUTF16LE(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Format{Encoding: UTF16LE, LineEnding: CRLF, BOM: true})
	if err := w.WriteLines([][]rune{[]rune("hé"), []rune("x")}); err != nil {
		t.Fatalf("WriteLines error: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	want := []byte{0xFF, 0xFE, 'h', 0x00, 0xE9, 0x00, '\r', 0x00, '\n', 0x00, 'x', 0x00}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("bytes = % X, want % X", buf.Bytes(), want)
	}

	lines, r := readAll(t, buf.Bytes(), true)
	if !equalLines(lines, []string{"hé", "x"}) {
		t.Fatalf("decoded lines = %q", lines)
	}
	if f := r.Format(); f != (Format{Encoding: UTF16LE, LineEnding: CRLF, BOM: true}) {
		t.Fatalf("decoded format = %v", f)
	}
}

func TestWriterUTF32RoundTrip(t *testing.T) {
	for _, enc := range []Encoding{UTF32BE, UTF32LE} {
		var buf bytes.Buffer
		f := Format{Encoding: enc, LineEnding: LF, BOM: true}
		w := NewWriter(&buf, f)
		if err := w.WriteLines([][]rune{[]rune("\U0001F600 smile"), []rune("")}); err != nil {
			t.Fatalf("%v: WriteLines error: %v", enc, err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("%v: Close error: %v", enc, err)
		}
		if buf.Len() != 4*(1+7+1) {
			t.Fatalf("%v: wrote %d bytes, want %d", enc, buf.Len(), 4*9)
		}
		lines, r := readAll(t, buf.Bytes(), true)
		if !equalLines(lines, []string{"\U0001F600 smile", ""}) {
			t.Fatalf("%v: lines = %q", enc, lines)
		}
		if r.Format() != f {
			t.Fatalf("%v: format = %v, want %v", enc, r.Format(), f)
		}
	}
}

func TestWriterASCIIRejectsWideRunes(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, Format{Encoding: ASCII, LineEnding: LF})
	err := w.WriteLine([]rune("café"))
	if !errors.Is(err, ErrUnencodable) {
		t.Fatalf("WriteLine error = %v, want ErrUnencodable", err)
	}
	if err := w.Close(); err == nil {
		t.Fatalf("Close after failed write returned nil")
	}
}

func TestWriterNormalizesFormat(t *testing.T) {
	w := NewWriter(&bytes.Buffer{}, Format{Encoding: EncodingUnknown, LineEnding: LineEndingMixed})
	f := w.Format()
	if f.Encoding != UTF8 {
		t.Fatalf("encoding = %v, want utf-8", f.Encoding)
	}
	if f.LineEnding != PlatformLineEnding() {
		t.Fatalf("line ending = %v, want platform default", f.LineEnding)
	}
}

func TestRoundTripUTF8(t *testing.T) {
	inputs := []string{
		"",
		"single",
		"a\nb\nc\n",
		"\n\nx\n\n",
		"unicode é世界\nline two",
		"\xEF\xBB\xBFbom first\nsecond\n",
		"dos\r\nline\r\n",
	}
	for _, in := range inputs {
		r := NewReader(strings.NewReader(in), true)
		lines, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll(%q) error: %v", in, err)
		}
		var buf bytes.Buffer
		w := NewWriter(&buf, r.Format())
		if err := w.WriteLines(lines); err != nil {
			t.Fatalf("WriteLines error: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
		if got := buf.String(); got != in {
			t.Fatalf("round trip = %q, want %q", got, in)
		}
	}
}

func TestParseNames(t *testing.T) {
	for _, s := range []string{"utf8", "UTF-8", "utf16le", "utf-32be", "ascii"} {
		if _, err := ParseEncoding(s); err != nil {
			t.Fatalf("ParseEncoding(%q) error: %v", s, err)
		}
	}
	if _, err := ParseEncoding("latin1"); err == nil {
		t.Fatalf("ParseEncoding(latin1) succeeded")
	}
	if le, err := ParseLineEnding("CRLF"); err != nil || le != CRLF {
		t.Fatalf("ParseLineEnding(CRLF) = %v, %v", le, err)
	}
}
