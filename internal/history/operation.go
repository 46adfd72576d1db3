package history

import (
	"fmt"

	"github.com/kobzarvs/qdoc/internal/textpos"
)

type Action int

const (
	// Replace substitutes Range with NewContent. It is the only undoable action.
	Replace Action = iota
	// ReplaceWholeContent announces that the whole document was replaced.
	ReplaceWholeContent
	// ContentSaved announces a successful save.
	ContentSaved
)

func (a Action) String() string {
	switch a {
	case Replace:
		return "replace"
	case ReplaceWholeContent:
		return "replace-all"
	case ContentSaved:
		return "saved"
	default:
		return fmt.Sprintf("action(%d)", int(a))
	}
}

// LineState is the per-line edit mark shown in gutters.
type LineState uint8

const (
	Unchanged LineState = iota
	Changed
	Saved
)

func (s LineState) String() string {
	switch s {
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	case Saved:
		return "saved"
	default:
		return fmt.Sprintf("linestate(%d)", int(s))
	}
}

type opClass uint8

const (
	classOther opClass = iota
	classTyping
	classDelete
)

// Operation is one content change. Range is in pre-edit coordinates,
// NewRange in post-edit coordinates. The buffer fills NewRange, OldContent
// and OldMarks when it applies the operation.
type Operation struct {
	Action     Action
	Range      textpos.Range
	NewRange   textpos.Range
	NewContent [][]rune
	OldContent [][]rune
	OldMarks   []LineState

	class opClass
}

// NewReplace returns a Replace operation substituting r with text.
func NewReplace(r textpos.Range, text string) *Operation {
	return &Operation{Action: Replace, Range: r, NewContent: textpos.SplitLines(text)}
}

func (op *Operation) String() string {
	return fmt.Sprintf("%s %v -> %v (%d lines)", op.Action, op.Range, op.NewRange, len(op.NewContent))
}

func classify(op *Operation) opClass {
	if op.Action != Replace || len(op.NewContent) != 1 {
		return classOther
	}
	r := op.Range
	if r.IsEmpty() && len(op.NewContent[0]) == 1 {
		return classTyping
	}
	if len(op.NewContent[0]) == 0 && r.IsSingleLine() && r.End.Col == r.Start.Col+1 && len(op.OldContent) == 1 {
		return classDelete
	}
	return classOther
}

func concat(a, b []rune) []rune {
	out := make([]rune, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// merge folds op into prev when both are keystroke-sized edits adjacent on
// the same line. prev keeps the classification it had when first pushed.
func merge(prev, op *Operation) bool {
	if prev.Range.Start.Line != op.Range.Start.Line {
		return false
	}
	if len(prev.NewContent) != 1 || len(op.NewContent) != 1 {
		return false
	}
	switch {
	case prev.class == classTyping && op.class == classTyping:
		if prev.NewRange.End != op.Range.Start {
			return false
		}
		prev.NewContent[0] = concat(prev.NewContent[0], op.NewContent[0])
		prev.NewRange.End.Col++
		return true
	case prev.class == classDelete && op.class == classDelete:
		if len(prev.OldContent) != 1 {
			return false
		}
		if op.Range.End == prev.Range.Start {
			prev.Range.Start = op.Range.Start
			prev.NewRange = textpos.Range{Start: op.Range.Start, End: op.Range.Start}
			prev.OldContent[0] = concat(op.OldContent[0], prev.OldContent[0])
			return true
		}
		if op.Range.Start == prev.Range.Start {
			prev.Range.End.Col++
			prev.OldContent[0] = concat(prev.OldContent[0], op.OldContent[0])
			return true
		}
	}
	return false
}
