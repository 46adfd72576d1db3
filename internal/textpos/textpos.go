package textpos

import "fmt"

// Pos is a (line, column) location in line-based text. Columns count runes.
type Pos struct {
	Line int
	Col  int
}

// Compare returns -1, 0 or 1 ordering a and b by line, then column.
func Compare(a, b Pos) int {
	switch {
	case a.Line < b.Line:
		return -1
	case a.Line > b.Line:
		return 1
	case a.Col < b.Col:
		return -1
	case a.Col > b.Col:
		return 1
	}
	return 0
}

func (p Pos) Less(o Pos) bool {
	return Compare(p, o) < 0
}

// Offset returns p moved by delta columns on the same line.
func (p Pos) Offset(delta int) Pos {
	return Pos{Line: p.Line, Col: p.Col + delta}
}

func (p Pos) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Range is the span [Start, End) of text.
type Range struct {
	Start Pos
	End   Pos
}

func NewRange(startLine, startCol, endLine, endCol int) Range {
	return Range{
		Start: Pos{Line: startLine, Col: startCol},
		End:   Pos{Line: endLine, Col: endCol},
	}
}

// IsEmpty reports whether the range covers no text (End <= Start).
func (r Range) IsEmpty() bool {
	return Compare(r.End, r.Start) <= 0
}

// Normalized returns r with Start and End swapped when End is before Start.
func (r Range) Normalized() Range {
	if r.End.Less(r.Start) {
		return Range{Start: r.End, End: r.Start}
	}
	return r
}

// Contains reports whether p is inside the half-open range.
func (r Range) Contains(p Pos) bool {
	return Compare(r.Start, p) <= 0 && p.Less(r.End)
}

// ContainsOrTouchesEnd is Contains that also accepts p == End.
func (r Range) ContainsOrTouchesEnd(p Pos) bool {
	return Compare(r.Start, p) <= 0 && Compare(p, r.End) <= 0
}

// Intersects reports whether the two ranges share at least one position.
func (r Range) Intersects(o Range) bool {
	if r.IsEmpty() || o.IsEmpty() {
		return false
	}
	return r.Start.Less(o.End) && o.Start.Less(r.End)
}

func (r Range) IsSingleLine() bool {
	return r.Start.Line == r.End.Line
}

func (r Range) LineCount() int {
	return r.End.Line - r.Start.Line + 1
}

func (r Range) String() string {
	return r.Start.String() + "-" + r.End.String()
}
