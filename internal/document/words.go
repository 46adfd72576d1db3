package document

import (
	"unicode"

	"github.com/mattn/go-runewidth"

	"github.com/kobzarvs/qdoc/internal/textpos"
)

// IsWordChar reports whether r belongs to an identifier.
func IsWordChar(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

func IsBracket(r rune) bool {
	switch r {
	case '(', ')', '[', ']', '{', '}', '<', '>':
		return true
	}
	return false
}

// IsPunct reports punctuation and symbols that are not word characters.
// Brackets are punctuation too.
func IsPunct(r rune) bool {
	if IsWordChar(r) || unicode.IsSpace(r) {
		return false
	}
	return unicode.IsPunct(r) || unicode.IsSymbol(r)
}

type charClass int

const (
	classSpace charClass = iota
	classWord
	classBracket
	classPunct
)

// classify resolves overlaps: word beats bracket beats punctuation. Runes in
// no class (control characters) group with punctuation.
func classify(r rune) charClass {
	switch {
	case unicode.IsSpace(r):
		return classSpace
	case IsWordChar(r):
		return classWord
	case IsBracket(r):
		return classBracket
	default:
		return classPunct
	}
}

// camelBoundary reports whether a word splits between line[i-1] and line[i]:
// "fooBar" splits before 'B', "HTTPServer" before 'S'.
func camelBoundary(line []rune, i int) bool {
	if i <= 0 || i >= len(line) {
		return false
	}
	prev, cur := line[i-1], line[i]
	if !IsWordChar(prev) || !IsWordChar(cur) {
		return false
	}
	if unicode.IsUpper(cur) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
		return true
	}
	return unicode.IsUpper(prev) && unicode.IsUpper(cur) && i+1 < len(line) && unicode.IsLower(line[i+1])
}

func clampCol(line []rune, col int) int {
	if col < 0 {
		return 0
	}
	if col > len(line) {
		return len(line)
	}
	return col
}

// WordBounds returns the half-open run of same-class runes around col.
// At the end of a line the run ending there is used.
func WordBounds(line []rune, col int) (start, end int) {
	return wordBounds(line, col, false)
}

func wordBounds(line []rune, col int, camel bool) (start, end int) {
	col = clampCol(line, col)
	if len(line) == 0 {
		return 0, 0
	}
	if col == len(line) {
		col--
	}
	c := classify(line[col])
	if c == classBracket {
		return col, col + 1
	}
	start, end = col, col+1
	for start > 0 && classify(line[start-1]) == c && !(camel && c == classWord && camelBoundary(line, start)) {
		start--
	}
	for end < len(line) && classify(line[end]) == c && !(camel && c == classWord && camelBoundary(line, end)) {
		end++
	}
	return start, end
}

type LineMeasure struct {
	// Indent is the visual width of the leading whitespace.
	Indent int
	// Leading and Trailing count whitespace runes at each end.
	Leading  int
	Trailing int
	// Width is the visual width of the whole line.
	Width int
	Blank bool
}

// MeasureLine expands tabs to tabSize stops while measuring. Wide runes
// count as two columns and combining marks as none.
func MeasureLine(line []rune, tabSize int) LineMeasure {
	if tabSize <= 0 {
		tabSize = 4
	}
	var m LineMeasure
	width := 0
	leading := true
	for _, r := range line {
		if leading && !unicode.IsSpace(r) {
			leading = false
			m.Indent = width
		}
		if leading {
			m.Leading++
		}
		if r == '\t' {
			width += tabSize - width%tabSize
		} else {
			width += runewidth.RuneWidth(r)
		}
	}
	m.Width = width
	if leading {
		m.Blank = true
		m.Indent = width
		return m
	}
	for i := len(line) - 1; i >= 0 && unicode.IsSpace(line[i]); i-- {
		m.Trailing++
	}
	return m
}

// FirstNonSpace returns the index of the first non-space rune, or len(line).
func FirstNonSpace(line []rune) int {
	for i, r := range line {
		if !unicode.IsSpace(r) {
			return i
		}
	}
	return len(line)
}

// LastNonSpace returns the index of the last non-space rune, or -1.
func LastNonSpace(line []rune) int {
	for i := len(line) - 1; i >= 0; i-- {
		if !unicode.IsSpace(line[i]) {
			return i
		}
	}
	return -1
}

// MoveByWord returns the next word stop from pos in direction dir
// (negative moves left). Line ends are stops of their own.
func (b *Buffer) MoveByWord(pos textpos.Pos, dir int) textpos.Pos {
	pos = b.clampPos(pos)
	line := b.lines[pos.Line]
	camel := b.opts.CamelCaseWords
	if dir < 0 {
		if pos.Col == 0 {
			if pos.Line == 0 {
				return pos
			}
			return textpos.Pos{Line: pos.Line - 1, Col: len(b.lines[pos.Line-1])}
		}
		return textpos.Pos{Line: pos.Line, Col: wordLeft(line, pos.Col, camel)}
	}
	if pos.Col >= len(line) {
		if pos.Line >= len(b.lines)-1 {
			return pos
		}
		return textpos.Pos{Line: pos.Line + 1}
	}
	return textpos.Pos{Line: pos.Line, Col: wordRight(line, pos.Col, camel)}
}

func wordLeft(line []rune, col int, camel bool) int {
	idx := col - 1
	for idx > 0 && unicode.IsSpace(line[idx]) {
		idx--
	}
	c := classify(line[idx])
	switch c {
	case classSpace:
		return 0
	case classBracket:
		return idx
	}
	for idx > 0 && classify(line[idx-1]) == c && !(camel && c == classWord && camelBoundary(line, idx)) {
		idx--
	}
	return idx
}

func wordRight(line []rune, col int, camel bool) int {
	idx := col
	c := classify(line[idx])
	switch c {
	case classSpace:
		for idx < len(line) && unicode.IsSpace(line[idx]) {
			idx++
		}
		return idx
	case classBracket:
		idx++
	default:
		idx++
		for idx < len(line) && classify(line[idx]) == c && !(camel && c == classWord && camelBoundary(line, idx)) {
			idx++
		}
	}
	for idx < len(line) && unicode.IsSpace(line[idx]) {
		idx++
	}
	return idx
}

// WordRangeAt returns the range of the word-class run under pos.
func (b *Buffer) WordRangeAt(pos textpos.Pos) textpos.Range {
	pos = b.clampPos(pos)
	start, end := wordBounds(b.lines[pos.Line], pos.Col, b.opts.CamelCaseWords)
	return textpos.NewRange(pos.Line, start, pos.Line, end)
}
