// Package markers keeps per-line annotations (bookmarks, breakpoints,
// diagnostics) sorted by line and re-anchors them as text is edited.
package markers

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/kobzarvs/qdoc/internal/textpos"
)

type Kind int

const (
	Bookmark Kind = iota
	Breakpoint
	Error
)

func (k Kind) String() string {
	switch k {
	case Bookmark:
		return "bookmark"
	case Breakpoint:
		return "breakpoint"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind accepts the names returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	for k := Bookmark; k <= Error; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown marker kind %q", s)
}

type Marker struct {
	Kind    Kind
	Line    int
	Payload any
}

type Direction int

const (
	Forward Direction = iota
	Backward
)

// Index is an ordered set of markers keyed by (Line, Kind).
type Index struct {
	items []*Marker
}

func NewIndex() *Index {
	return &Index{}
}

func less(a, b *Marker) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Kind < b.Kind
}

// search returns the first position whose marker is not less than (line, kind).
func (x *Index) search(line int, kind Kind) int {
	key := &Marker{Line: line, Kind: kind}
	return sort.Search(len(x.items), func(i int) bool { return !less(x.items[i], key) })
}

// Insert places m after any equal keys and returns its position.
func (x *Index) Insert(m *Marker) int {
	i := sort.Search(len(x.items), func(i int) bool { return less(m, x.items[i]) })
	x.items = append(x.items, nil)
	copy(x.items[i+1:], x.items[i:])
	x.items[i] = m
	return i
}

func (x *Index) RemoveAt(i int) *Marker {
	if i < 0 || i >= len(x.items) {
		return nil
	}
	m := x.items[i]
	x.items = append(x.items[:i], x.items[i+1:]...)
	return m
}

// Remove deletes m by identity.
func (x *Index) Remove(m *Marker) bool {
	for i, it := range x.items {
		if it == m {
			x.RemoveAt(i)
			return true
		}
	}
	return false
}

// RemovePayload deletes the first marker whose payload equals p.
// Non-comparable payloads never match.
func (x *Index) RemovePayload(p any) *Marker {
	if p == nil || !reflect.TypeOf(p).Comparable() {
		return nil
	}
	for i, it := range x.items {
		if payloadEqual(it.Payload, p) {
			return x.RemoveAt(i)
		}
	}
	return nil
}

func payloadEqual(a, b any) bool {
	if a == nil || reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return a == b
}

func (x *Index) RemoveLine(line int, kind Kind) *Marker {
	if _, i := x.Find(line, kind); i >= 0 {
		return x.RemoveAt(i)
	}
	return nil
}

func (x *Index) FindAll(kind Kind) []*Marker {
	var out []*Marker
	for _, it := range x.items {
		if it.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

// Find returns the first marker of kind on line and its position, or (nil, -1).
func (x *Index) Find(line int, kind Kind) (*Marker, int) {
	i := x.search(line, kind)
	if i < len(x.items) && x.items[i].Line == line && x.items[i].Kind == kind {
		return x.items[i], i
	}
	return nil, -1
}

// Toggle removes the marker of kind on line if present, otherwise inserts
// one carrying payload. It reports whether a marker was added.
func (x *Index) Toggle(line int, kind Kind, payload any) (*Marker, bool) {
	if m := x.RemoveLine(line, kind); m != nil {
		return m, false
	}
	m := &Marker{Kind: kind, Line: line, Payload: payload}
	x.Insert(m)
	return m, true
}

// Nearest finds the marker of kind closest to from in direction dir. When
// nothing lies in that direction the closest marker on the other side is
// returned instead.
func (x *Index) Nearest(kind Kind, from int, dir Direction) *Marker {
	var before, after *Marker
	for _, it := range x.items {
		if it.Kind != kind {
			continue
		}
		switch dir {
		case Forward:
			if it.Line >= from {
				return it
			}
			before = it
		default:
			if it.Line <= from {
				before = it
				continue
			}
			if after == nil {
				after = it
			}
		}
	}
	if dir == Forward {
		return before
	}
	if before != nil {
		return before
	}
	return after
}

// Reanchor updates marker lines after an edit that replaced before with
// after, both expressed as the edited range in pre- and post-edit
// coordinates. Markers whose lines were consumed by the edit are removed.
func (x *Index) Reanchor(before, after textpos.Range) (moved, removed []*Marker) {
	delta := after.End.Line - before.End.Line
	if delta == 0 || len(x.items) == 0 {
		return nil, nil
	}
	aligned := before.End.Col == 0 && after.End.Col == 0
	shifts := func(line int) bool {
		if aligned {
			return line >= before.End.Line
		}
		return line > before.End.Line
	}
	consumed := func(line int) bool {
		if delta > 0 {
			return false
		}
		if aligned {
			return line >= after.End.Line && line < before.End.Line
		}
		return line > after.End.Line && line <= before.End.Line
	}

	kept := x.items[:0]
	for _, it := range x.items {
		switch {
		case consumed(it.Line):
			removed = append(removed, it)
			continue
		case shifts(it.Line):
			it.Line += delta
			moved = append(moved, it)
		}
		kept = append(kept, it)
	}
	for i := len(kept); i < len(x.items); i++ {
		x.items[i] = nil
	}
	x.items = kept
	sort.SliceStable(x.items, func(i, j int) bool { return less(x.items[i], x.items[j]) })
	return moved, removed
}

func (x *Index) Len() int { return len(x.items) }
func (x *Index) At(i int) *Marker { return x.items[i] }

// All returns a copy of the ordered markers.
func (x *Index) All() []*Marker {
	return append([]*Marker(nil), x.items...)
}

// Clear removes every marker and returns them.
func (x *Index) Clear() []*Marker {
	out := x.items
	x.items = nil
	return out
}
