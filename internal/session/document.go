package session

import (
	"fmt"
	"time"

	"github.com/kobzarvs/qdoc/internal/document"
	"github.com/kobzarvs/qdoc/internal/linestream"
	"github.com/kobzarvs/qdoc/internal/markers"
)

// Capture records the markers and on-disk format of b.
func Capture(b *document.Buffer) FileState {
	f := b.Format()
	state := FileState{LastOpened: time.Now()}
	if f.Encoding != linestream.EncodingUnknown {
		state.Encoding = f.Encoding.String()
		state.LineEnding = f.LineEnding.String()
		state.BOM = f.BOM
	}
	for _, m := range b.Markers().All() {
		ms := MarkerState{Kind: m.Kind.String(), Line: m.Line}
		if note, ok := m.Payload.(string); ok {
			ms.Note = note
		}
		state.Markers = append(state.Markers, ms)
	}
	return state
}

// Restore adds the persisted markers to b. Markers past the end of the
// document are dropped; an unknown kind is an error.
func Restore(b *document.Buffer, state FileState) error {
	for _, ms := range state.Markers {
		kind, err := markers.ParseKind(ms.Kind)
		if err != nil {
			return fmt.Errorf("restore marker at line %d: %w", ms.Line, err)
		}
		var payload any
		if ms.Note != "" {
			payload = ms.Note
		}
		if m, _ := b.Markers().Find(ms.Line, kind); m != nil {
			continue
		}
		b.AddMarker(&markers.Marker{Kind: kind, Line: ms.Line, Payload: payload})
	}
	return nil
}

// Format returns the remembered format, if any.
func (s FileState) Format() (linestream.Format, bool) {
	if s.Encoding == "" {
		return linestream.Format{}, false
	}
	enc, err := linestream.ParseEncoding(s.Encoding)
	if err != nil {
		return linestream.Format{}, false
	}
	le, err := linestream.ParseLineEnding(s.LineEnding)
	if err != nil {
		le = linestream.LineEndingUnknown
	}
	return linestream.Format{Encoding: enc, LineEnding: le, BOM: s.BOM}, true
}
