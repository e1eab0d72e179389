package editor

// DefaultHistoryLimit bounds each stack of a History.
const DefaultHistoryLimit = 500

// History is a two-stack undo/redo log of content snapshots. Once the undo
// stack is full the oldest snapshot is dropped.
type History struct {
	undo  []string
	redo  []string
	limit int
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Record saves prev as the state to return to and clears redo. Call it
// before every content mutation.
func (h *History) Record(prev string) {
	h.undo = h.push(h.undo, prev)
	h.redo = nil
}

// Undo returns the previous content and stashes current for Redo. ok is
// false when there is nothing to undo.
func (h *History) Undo(current string) (prev string, ok bool) {
	if len(h.undo) == 0 {
		return current, false
	}
	prev = h.undo[len(h.undo)-1]
	h.undo = h.undo[:len(h.undo)-1]
	h.redo = h.push(h.redo, current)
	return prev, true
}

// Redo is the inverse of Undo.
func (h *History) Redo(current string) (next string, ok bool) {
	if len(h.redo) == 0 {
		return current, false
	}
	next = h.redo[len(h.redo)-1]
	h.redo = h.redo[:len(h.redo)-1]
	h.undo = h.push(h.undo, current)
	return next, true
}

// Depths reports the sizes of the undo and redo stacks.
func (h *History) Depths() (undo, redo int) {
	return len(h.undo), len(h.redo)
}

func (h *History) push(stack []string, s string) []string {
	if len(stack) >= h.limit {
		copy(stack, stack[1:])
		stack = stack[:len(stack)-1]
	}
	return append(stack, s)
}
