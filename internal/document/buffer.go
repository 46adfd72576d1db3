// Package document implements the editable text buffer: lines with
// parallel token and edit-mark arrays, an undo log and line markers.
package document

import (
	"errors"
	"fmt"

	"github.com/kobzarvs/qdoc/internal/history"
	"github.com/kobzarvs/qdoc/internal/linestream"
	"github.com/kobzarvs/qdoc/internal/markers"
	"github.com/kobzarvs/qdoc/internal/textpos"
)

var ErrReadOnly = errors.New("document is read-only")

type Options struct {
	Multiline          bool
	ReadOnly           bool
	AutodetectEncoding bool
	// MaxUndo bounds the undo stack; zero keeps everything.
	MaxUndo        int
	CamelCaseWords bool
}

func DefaultOptions() Options {
	return Options{Multiline: true, AutodetectEncoding: true}
}

// Reason tells listeners which operation produced a change.
type Reason int

const (
	ReasonEdit Reason = iota
	ReasonUndo
	ReasonRedo
	ReasonLoad
	ReasonSave
	ReasonSetText
)

func (r Reason) String() string {
	switch r {
	case ReasonEdit:
		return "edit"
	case ReasonUndo:
		return "undo"
	case ReasonRedo:
		return "redo"
	case ReasonLoad:
		return "load"
	case ReasonSave:
		return "save"
	case ReasonSetText:
		return "set-text"
	default:
		return fmt.Sprintf("reason(%d)", int(r))
	}
}

type ChangeEvent struct {
	Op     *history.Operation
	Before textpos.Range
	After  textpos.Range
	Source any
	Reason Reason
}

// Highlighter fills tokens[i] with one category byte per rune of lines[i]
// for every i in [start, end). Leaving tokens[i] nil means no highlighting.
type Highlighter interface {
	Highlight(lines [][]rune, tokens [][]byte, start, end int)
}

type HighlightFunc func(lines [][]rune, tokens [][]byte, start, end int)

func (f HighlightFunc) Highlight(lines [][]rune, tokens [][]byte, start, end int) {
	f(lines, tokens, start, end)
}

// Buffer is owned by a single goroutine. Listeners run synchronously and
// must not mutate the buffer.
type Buffer struct {
	// lines, tokens and marks always have the same length; only
	// insertLines and removeLines resize them.
	lines  [][]rune
	tokens [][]byte
	marks  []history.LineState

	opts     Options
	log      *history.Log
	markers  *markers.Index
	format   linestream.Format
	filename string

	highlighter Highlighter
	onContent   []func(ChangeEvent)
	onMarkers   []func(moved, removed []*markers.Marker)
}

func New(opts Options) *Buffer {
	return &Buffer{
		lines:   [][]rune{{}},
		tokens:  [][]byte{nil},
		marks:   []history.LineState{history.Unchanged},
		opts:    opts,
		log:     history.NewLog(opts.MaxUndo),
		markers: markers.NewIndex(),
		format:  linestream.Format{Encoding: linestream.EncodingUnknown, LineEnding: linestream.LineEndingUnknown},
	}
}

func (b *Buffer) Options() Options { return b.opts }

// SetReadOnly toggles the read-only flag at runtime.
func (b *Buffer) SetReadOnly(ro bool) { b.opts.ReadOnly = ro }

func (b *Buffer) OnContentChanged(fn func(ChangeEvent)) {
	b.onContent = append(b.onContent, fn)
}

func (b *Buffer) OnMarkersChanged(fn func(moved, removed []*markers.Marker)) {
	b.onMarkers = append(b.onMarkers, fn)
}

// SetHighlighter attaches h and recomputes tokens for the whole document.
// A nil h clears all tokens.
func (b *Buffer) SetHighlighter(h Highlighter) {
	b.highlighter = h
	for i := range b.tokens {
		b.tokens[i] = nil
	}
	b.highlight(0, len(b.lines))
}

func (b *Buffer) highlight(start, end int) {
	if b.highlighter == nil || start >= end {
		return
	}
	b.highlighter.Highlight(b.lines, b.tokens, start, end)
}

func (b *Buffer) notify(ev ChangeEvent) {
	for _, fn := range b.onContent {
		fn(ev)
	}
}

func (b *Buffer) notifyMarkers(moved, removed []*markers.Marker) {
	if len(moved) == 0 && len(removed) == 0 {
		return
	}
	for _, fn := range b.onMarkers {
		fn(moved, removed)
	}
}

// insertLines opens n empty lines before index at.
func (b *Buffer) insertLines(at, n int) {
	if n <= 0 {
		return
	}
	b.lines = append(b.lines[:at], append(make([][]rune, n), b.lines[at:]...)...)
	b.tokens = append(b.tokens[:at], append(make([][]byte, n), b.tokens[at:]...)...)
	b.marks = append(b.marks[:at], append(make([]history.LineState, n), b.marks[at:]...)...)
}

// removeLines drops n lines starting at index at.
func (b *Buffer) removeLines(at, n int) {
	if n <= 0 {
		return
	}
	b.lines = append(b.lines[:at], b.lines[at+n:]...)
	b.tokens = append(b.tokens[:at], b.tokens[at+n:]...)
	b.marks = append(b.marks[:at], b.marks[at+n:]...)
}

func (b *Buffer) clampPos(p textpos.Pos) textpos.Pos {
	if p.Line < 0 {
		return textpos.Pos{}
	}
	if p.Line >= len(b.lines) {
		last := len(b.lines) - 1
		return textpos.Pos{Line: last, Col: len(b.lines[last])}
	}
	if p.Col < 0 {
		p.Col = 0
	}
	if n := len(b.lines[p.Line]); p.Col > n {
		p.Col = n
	}
	return p
}

// ClampRange normalizes r and clamps both ends into the document.
func (b *Buffer) ClampRange(r textpos.Range) textpos.Range {
	r = r.Normalized()
	return textpos.Range{Start: b.clampPos(r.Start), End: b.clampPos(r.End)}
}

// ClampPos moves p to the nearest valid position.
func (b *Buffer) ClampPos(p textpos.Pos) textpos.Pos {
	return b.clampPos(p)
}

func (b *Buffer) rangeLines(r textpos.Range) [][]rune {
	if r.IsSingleLine() {
		return [][]rune{cloneRunes(b.lines[r.Start.Line][r.Start.Col:r.End.Col])}
	}
	out := make([][]rune, 0, r.LineCount())
	out = append(out, cloneRunes(b.lines[r.Start.Line][r.Start.Col:]))
	for i := r.Start.Line + 1; i < r.End.Line; i++ {
		out = append(out, cloneRunes(b.lines[i]))
	}
	return append(out, cloneRunes(b.lines[r.End.Line][:r.End.Col]))
}

func (b *Buffer) rangeMarks(r textpos.Range) []history.LineState {
	out := make([]history.LineState, r.LineCount())
	copy(out, b.marks[r.Start.Line:r.End.Line+1])
	return out
}

// splice replaces r with content and returns the range the content now
// occupies. When restore is non-nil it supplies the marks of the new lines,
// otherwise every touched line becomes Changed.
func (b *Buffer) splice(r textpos.Range, content [][]rune, restore []history.LineState) textpos.Range {
	if len(content) == 0 {
		content = [][]rune{{}}
	}
	newRange := textpos.Extent(r.Start, content)
	head := b.lines[r.Start.Line][:r.Start.Col]
	tail := b.lines[r.End.Line][r.End.Col:]

	oldCount, newCount := r.LineCount(), len(content)
	switch {
	case newCount > oldCount:
		b.insertLines(r.Start.Line+oldCount, newCount-oldCount)
	case newCount < oldCount:
		b.removeLines(r.Start.Line+newCount, oldCount-newCount)
	}

	for i, c := range content {
		n := len(c)
		if i == 0 {
			n += len(head)
		}
		if i == newCount-1 {
			n += len(tail)
		}
		line := make([]rune, 0, n)
		if i == 0 {
			line = append(line, head...)
		}
		line = append(line, c...)
		if i == newCount-1 {
			line = append(line, tail...)
		}
		at := r.Start.Line + i
		b.lines[at] = line
		b.tokens[at] = nil
		if restore != nil && i < len(restore) {
			b.marks[at] = restore[i]
		} else {
			b.marks[at] = history.Changed
		}
	}
	b.highlight(r.Start.Line, r.Start.Line+newCount)
	return newRange
}

// collapse joins content onto a single line for single-line buffers.
func collapse(content [][]rune) [][]rune {
	if len(content) <= 1 {
		return content
	}
	var line []rune
	for _, c := range content {
		line = append(line, c...)
	}
	return [][]rune{line}
}

// ApplyEdit performs op. For Replace the range is normalized and clamped,
// the previous text and marks are captured into op, the change is recorded
// for undo and markers are re-anchored. Notification-only actions are
// forwarded to listeners without touching the content.
func (b *Buffer) ApplyEdit(op *history.Operation, source any) error {
	if op.Action != history.Replace {
		b.notify(ChangeEvent{Op: op, Before: op.Range, After: op.NewRange, Source: source, Reason: ReasonEdit})
		return nil
	}
	if b.opts.ReadOnly {
		return ErrReadOnly
	}
	op.Range = b.ClampRange(op.Range)
	if len(op.NewContent) == 0 {
		op.NewContent = [][]rune{{}}
	}
	if !b.opts.Multiline {
		op.NewContent = collapse(op.NewContent)
	}
	op.OldContent = b.rangeLines(op.Range)
	op.OldMarks = b.rangeMarks(op.Range)
	op.NewRange = b.splice(op.Range, op.NewContent, nil)
	b.log.Push(op)
	b.finish(op, op.Range, op.NewRange, source, ReasonEdit)
	return nil
}

func (b *Buffer) finish(op *history.Operation, before, after textpos.Range, source any, reason Reason) {
	moved, removed := b.markers.Reanchor(before, after)
	b.notifyMarkers(moved, removed)
	b.notify(ChangeEvent{Op: op, Before: before, After: after, Source: source, Reason: reason})
}

// Insert places text at pos and returns the position after it.
func (b *Buffer) Insert(pos textpos.Pos, text string, source any) (textpos.Pos, error) {
	op := history.NewReplace(textpos.Range{Start: pos, End: pos}, text)
	if err := b.ApplyEdit(op, source); err != nil {
		return pos, err
	}
	return op.NewRange.End, nil
}

// Delete removes r and returns the removed text.
func (b *Buffer) Delete(r textpos.Range, source any) (string, error) {
	op := history.NewReplace(r, "")
	if err := b.ApplyEdit(op, source); err != nil {
		return "", err
	}
	return textpos.JoinLines(op.OldContent), nil
}

// Replace substitutes r with text and returns the range the text occupies.
func (b *Buffer) Replace(r textpos.Range, text string, source any) (textpos.Range, error) {
	op := history.NewReplace(r, text)
	if err := b.ApplyEdit(op, source); err != nil {
		return textpos.Range{}, err
	}
	return op.NewRange, nil
}

// SetText replaces the whole document and discards history.
func (b *Buffer) SetText(text string, source any) error {
	if b.opts.ReadOnly {
		return ErrReadOnly
	}
	lines := textpos.SplitLines(text)
	if !b.opts.Multiline {
		lines = collapse(lines)
	}
	b.reset(lines, history.Changed)
	b.log.MarkUnsaved()
	b.notifyWhole(source, ReasonSetText)
	return nil
}

// reset installs lines as the whole content, clearing history and markers.
func (b *Buffer) reset(lines [][]rune, mark history.LineState) {
	if len(lines) == 0 {
		lines = [][]rune{{}}
	}
	b.lines = lines
	b.tokens = make([][]byte, len(lines))
	b.marks = make([]history.LineState, len(lines))
	for i := range b.marks {
		b.marks[i] = mark
	}
	b.log.Clear()
	b.notifyMarkers(nil, b.markers.Clear())
	b.highlight(0, len(b.lines))
}

func (b *Buffer) notifyWhole(source any, reason Reason) {
	op := &history.Operation{Action: history.ReplaceWholeContent}
	b.notify(ChangeEvent{Op: op, Source: source, Reason: reason})
}

// Undo reverts the most recent edit. It reports false when there is
// nothing to undo.
func (b *Buffer) Undo(source any) (bool, error) {
	if b.opts.ReadOnly {
		return false, ErrReadOnly
	}
	op, ok := b.log.Undo()
	if !ok {
		return false, nil
	}
	b.splice(op.NewRange, op.OldContent, op.OldMarks)
	b.finish(op, op.NewRange, op.Range, source, ReasonUndo)
	return true, nil
}

// Redo replays the most recently undone edit. Replayed lines are marked
// Changed, or Saved when the redo returns to the save point.
func (b *Buffer) Redo(source any) (bool, error) {
	if b.opts.ReadOnly {
		return false, ErrReadOnly
	}
	op, ok := b.log.Redo()
	if !ok {
		return false, nil
	}
	r := b.splice(op.Range, op.NewContent, nil)
	if !b.log.Modified() {
		// back on the save point: the replayed lines are what is on disk
		for i := r.Start.Line; i <= r.End.Line; i++ {
			b.marks[i] = history.Saved
		}
	}
	b.finish(op, op.Range, op.NewRange, source, ReasonRedo)
	return true, nil
}

func (b *Buffer) LineCount() int { return len(b.lines) }

// Line returns line i; the slice must not be modified.
func (b *Buffer) Line(i int) []rune {
	if i < 0 || i >= len(b.lines) {
		return nil
	}
	return b.lines[i]
}

func (b *Buffer) Lines() [][]rune { return b.lines }

func (b *Buffer) Text() string { return textpos.JoinLines(b.lines) }

func (b *Buffer) RangeText(r textpos.Range) string {
	return textpos.JoinLines(b.rangeLines(b.ClampRange(r)))
}

// Tokens returns the token categories of line i, nil when unhighlighted.
func (b *Buffer) Tokens(i int) []byte {
	if i < 0 || i >= len(b.tokens) {
		return nil
	}
	return b.tokens[i]
}

func (b *Buffer) Mark(i int) history.LineState {
	if i < 0 || i >= len(b.marks) {
		return history.Unchanged
	}
	return b.marks[i]
}

// Format returns the on-disk format detected by the last load or used by
// the last save. Fields are Unknown for a buffer that never touched disk.
func (b *Buffer) Format() linestream.Format { return b.format }

func (b *Buffer) SetFormat(f linestream.Format) { b.format = f }

func (b *Buffer) Filename() string { return b.filename }

func (b *Buffer) Modified() bool { return b.log.Modified() }

func (b *Buffer) CanUndo() bool { return b.log.CanUndo() }

func (b *Buffer) CanRedo() bool { return b.log.CanRedo() }

// History exposes the undo log for inspection.
func (b *Buffer) History() *history.Log { return b.log }

func (b *Buffer) Markers() *markers.Index { return b.markers }

// ToggleMarker flips a marker of kind on line, clamping line into the document.
func (b *Buffer) ToggleMarker(line int, kind markers.Kind, payload any) (*markers.Marker, bool) {
	if line < 0 {
		line = 0
	}
	if line >= len(b.lines) {
		line = len(b.lines) - 1
	}
	return b.markers.Toggle(line, kind, payload)
}

// AddMarker inserts a marker without toggling, used when restoring state.
func (b *Buffer) AddMarker(m *markers.Marker) {
	if m.Line < 0 || m.Line >= len(b.lines) {
		return
	}
	b.markers.Insert(m)
}

func (b *Buffer) NearestMarker(kind markers.Kind, from int, dir markers.Direction) *markers.Marker {
	return b.markers.Nearest(kind, from, dir)
}

func cloneRunes(r []rune) []rune {
	out := make([]rune, len(r))
	copy(out, r)
	return out
}
