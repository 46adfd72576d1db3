package linestream

import (
	"fmt"
	"runtime"
	"strings"
)

type Encoding int

const (
	UTF8 Encoding = iota
	UTF16BE
	UTF16LE
	UTF32BE
	UTF32LE
	ASCII
	EncodingUnknown
)

var encodingNames = map[Encoding]string{
	UTF8:            "utf-8",
	UTF16BE:         "utf-16be",
	UTF16LE:         "utf-16le",
	UTF32BE:         "utf-32be",
	UTF32LE:         "utf-32le",
	ASCII:           "ascii",
	EncodingUnknown: "unknown",
}

func (e Encoding) String() string {
	if name, ok := encodingNames[e]; ok {
		return name
	}
	return fmt.Sprintf("encoding(%d)", int(e))
}

// ParseEncoding accepts the names printed by Encoding.String, case-insensitively,
// with or without the dash ("utf8", "UTF-16LE").
func ParseEncoding(s string) (Encoding, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.ReplaceAll(key, "_", "-")
	switch key {
	case "utf8":
		key = "utf-8"
	case "utf16be", "utf16le", "utf32be", "utf32le":
		key = key[:3] + "-" + key[3:]
	}
	for enc, name := range encodingNames {
		if name == key {
			return enc, nil
		}
	}
	return EncodingUnknown, fmt.Errorf("unknown encoding %q", s)
}

type LineEnding int

const (
	LF LineEnding = iota
	CRLF
	CR
	LineEndingUnknown
	LineEndingMixed
)

var lineEndingNames = map[LineEnding]string{
	LF:                "lf",
	CRLF:              "crlf",
	CR:                "cr",
	LineEndingUnknown: "unknown",
	LineEndingMixed:   "mixed",
}

func (l LineEnding) String() string {
	if name, ok := lineEndingNames[l]; ok {
		return name
	}
	return fmt.Sprintf("lineending(%d)", int(l))
}

func ParseLineEnding(s string) (LineEnding, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	for le, name := range lineEndingNames {
		if name == key {
			return le, nil
		}
	}
	return LineEndingUnknown, fmt.Errorf("unknown line ending %q", s)
}

// Terminator returns the byte sequence for a concrete line ending.
// Unknown and Mixed resolve to the platform default.
func (l LineEnding) Terminator() string {
	switch l {
	case LF:
		return "\n"
	case CRLF:
		return "\r\n"
	case CR:
		return "\r"
	default:
		return PlatformLineEnding().Terminator()
	}
}

func PlatformLineEnding() LineEnding {
	if runtime.GOOS == "windows" {
		return CRLF
	}
	return LF
}

// Format describes how a text file is stored on disk.
type Format struct {
	Encoding   Encoding
	LineEnding LineEnding
	BOM        bool
}

// DefaultFormat is used for documents that were never loaded from a file.
func DefaultFormat() Format {
	return Format{Encoding: UTF8, LineEnding: PlatformLineEnding()}
}

// Normalized resolves unknown or mixed fields to concrete values suitable for writing.
func (f Format) Normalized() Format {
	if f.Encoding == EncodingUnknown {
		f.Encoding = UTF8
	}
	if f.LineEnding == LineEndingUnknown || f.LineEnding == LineEndingMixed {
		f.LineEnding = PlatformLineEnding()
	}
	if f.Encoding == ASCII {
		f.BOM = false
	}
	return f
}

func (f Format) String() string {
	s := f.Encoding.String() + " " + f.LineEnding.String()
	if f.BOM {
		s += " bom"
	}
	return s
}
