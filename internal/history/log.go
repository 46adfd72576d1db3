// Package history keeps the undo and redo stacks of a document together
// with the saved watermark used to answer "is the buffer modified".
package history

// unreachable marks a watermark trimmed off the bottom of the undo stack.
var unreachable = &Operation{}

// Log is not safe for concurrent use; the owning buffer serializes access.
type Log struct {
	undo     []*Operation
	redo     []*Operation
	saved    *Operation
	maxDepth int
}

// NewLog returns an empty log. maxDepth <= 0 keeps every operation.
func NewLog(maxDepth int) *Log {
	return &Log{maxDepth: maxDepth}
}

// Push records an applied operation. The redo stack is always dropped.
// When op can be coalesced into the previous entry it is folded in and
// Push reports true.
func (l *Log) Push(op *Operation) bool {
	l.redo = nil
	op.class = classify(op)
	if top := l.Top(); top != nil && top != l.saved && op.Action == Replace && top.Action == Replace {
		if merge(top, op) {
			return true
		}
	}
	l.undo = append(l.undo, op)
	if l.maxDepth > 0 && len(l.undo) > l.maxDepth {
		drop := len(l.undo) - l.maxDepth
		for _, old := range l.undo[:drop] {
			if old == l.saved {
				l.saved = unreachable
			}
		}
		l.undo = append(l.undo[:0:0], l.undo[drop:]...)
	}
	return false
}

// Top returns the most recent undoable operation, or nil when there is none.
func (l *Log) Top() *Operation {
	if len(l.undo) == 0 {
		return nil
	}
	return l.undo[len(l.undo)-1]
}

// Undo moves the top operation to the redo stack and returns it.
func (l *Log) Undo() (*Operation, bool) {
	if len(l.undo) == 0 {
		return nil, false
	}
	op := l.undo[len(l.undo)-1]
	l.undo = l.undo[:len(l.undo)-1]
	l.redo = append(l.redo, op)
	return op, true
}

// Redo moves the top redo operation back onto the undo stack and returns it.
func (l *Log) Redo() (*Operation, bool) {
	if len(l.redo) == 0 {
		return nil, false
	}
	op := l.redo[len(l.redo)-1]
	l.redo = l.redo[:len(l.redo)-1]
	l.undo = append(l.undo, op)
	return op, true
}

// MarkSaved sets the watermark to the current top and demotes every
// recorded Changed mark to Saved.
func (l *Log) MarkSaved() {
	l.saved = l.Top()
	demote := func(ops []*Operation) {
		for _, op := range ops {
			for i, m := range op.OldMarks {
				if m == Changed {
					op.OldMarks[i] = Saved
				}
			}
		}
	}
	demote(l.undo)
	demote(l.redo)
}

// Modified reports whether the top of the undo stack differs from the
// saved watermark. An empty log with no watermark is unmodified.
func (l *Log) Modified() bool {
	return l.saved != l.Top()
}

// SavedInRedo reports whether the watermark sits in the redo stack, i.e.
// the saved state is reachable only by redoing.
func (l *Log) SavedInRedo() bool {
	if l.saved == nil {
		return false
	}
	for _, op := range l.redo {
		if op == l.saved {
			return true
		}
	}
	return false
}

// Clear empties both stacks and resets the watermark to the empty state.
func (l *Log) Clear() {
	l.undo = nil
	l.redo = nil
	l.saved = nil
}

// MarkUnsaved forgets the watermark; the log reports modified until the
// next MarkSaved.
func (l *Log) MarkUnsaved() {
	l.saved = unreachable
}

func (l *Log) CanUndo() bool { return len(l.undo) > 0 }
func (l *Log) CanRedo() bool { return len(l.redo) > 0 }
func (l *Log) UndoLen() int { return len(l.undo) }
func (l *Log) RedoLen() int { return len(l.redo) }
