package textpos

import "testing"

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Pos
		want int
	}{
		{Pos{0, 0}, Pos{0, 0}, 0},
		{Pos{0, 5}, Pos{1, 0}, -1},
		{Pos{2, 0}, Pos{1, 9}, 1},
		{Pos{3, 4}, Pos{3, 2}, 1},
		{Pos{3, 1}, Pos{3, 2}, -1},
	}
	for _, tt := range tests {
		if got := Compare(tt.a, tt.b); got != tt.want {
			t.Fatalf("Compare(%v, %v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOffset(t *testing.T) {
	p := Pos{Line: 2, Col: 3}.Offset(-2)
	if p != (Pos{Line: 2, Col: 1}) {
		t.Fatalf("Offset = %v, want 2:1", p)
	}
}

func TestRangePredicates(t *testing.T) {
	r := NewRange(1, 2, 1, 6)
	if r.IsEmpty() {
		t.Fatalf("range %v reported empty", r)
	}
	if !r.IsSingleLine() {
		t.Fatalf("range %v should be single line", r)
	}
	if r.LineCount() != 1 {
		t.Fatalf("LineCount = %d, want 1", r.LineCount())
	}
	if !r.Contains(Pos{1, 2}) || r.Contains(Pos{1, 6}) {
		t.Fatalf("Contains must be half-open")
	}
	if !r.ContainsOrTouchesEnd(Pos{1, 6}) {
		t.Fatalf("ContainsOrTouchesEnd(1:6) = false, want true")
	}
	if r.Contains(Pos{0, 4}) || r.Contains(Pos{2, 0}) {
		t.Fatalf("Contains accepted a position on another line")
	}

	empty := NewRange(3, 1, 3, 1)
	if !empty.IsEmpty() {
		t.Fatalf("zero-width range not empty")
	}
	if !NewRange(3, 4, 3, 1).IsEmpty() {
		t.Fatalf("inverted range not empty")
	}
}

func TestRangeIntersects(t *testing.T) {
	a := NewRange(0, 0, 2, 0)
	if !a.Intersects(NewRange(1, 5, 4, 0)) {
		t.Fatalf("overlapping ranges do not intersect")
	}
	if a.Intersects(NewRange(2, 0, 3, 0)) {
		t.Fatalf("adjacent ranges intersect")
	}
	if a.Intersects(NewRange(1, 1, 1, 1)) {
		t.Fatalf("empty range intersects")
	}
}

func TestNormalized(t *testing.T) {
	r := NewRange(4, 2, 1, 7).Normalized()
	if r.Start != (Pos{1, 7}) || r.End != (Pos{4, 2}) {
		t.Fatalf("Normalized = %v, want 1:7-4:2", r)
	}
	if r.LineCount() != 4 {
		t.Fatalf("LineCount = %d, want 4", r.LineCount())
	}
}

func TestSplitJoinLines(t *testing.T) {
	lines := SplitLines("a\r\nb\rc\n")
	if len(lines) != 4 {
		t.Fatalf("SplitLines len = %d, want 4", len(lines))
	}
	if got := JoinLines(lines); got != "a\nb\nc\n" {
		t.Fatalf("JoinLines = %q, want %q", got, "a\nb\nc\n")
	}
	if got := SplitLines(""); len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("SplitLines(\"\") = %q, want one empty line", got)
	}
}

func TestExtent(t *testing.T) {
	start := Pos{Line: 2, Col: 4}
	if got := Extent(start, [][]rune{[]rune("abc")}); got != NewRange(2, 4, 2, 7) {
		t.Fatalf("single line extent = %v", got)
	}
	if got := Extent(start, [][]rune{[]rune("x"), []rune(""), []rune("yz")}); got != NewRange(2, 4, 4, 2) {
		t.Fatalf("multi line extent = %v", got)
	}
	if got := Extent(start, nil); got != NewRange(2, 4, 2, 4) {
		t.Fatalf("empty extent = %v", got)
	}
}
