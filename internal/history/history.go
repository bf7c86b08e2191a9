// Package history records reversible task store mutations.
package history

import "tasktree/internal/task"

// Entry is one recorded mutation. The set of entry kinds is closed:
// Added, RemovedAt and Completed.
type Entry interface {
	// Target returns the task the entry refers to.
	Target() *task.Task
	entry()
}

// Added records that Task was appended to the root sequence.
type Added struct {
	Task *task.Task
}

// RemovedAt records that Task was removed from root position Index.
// The entry owns the removed task until it is undone or discarded.
type RemovedAt struct {
	Task  *task.Task
	Index int
}

// Completed records that Task was marked completed.
type Completed struct {
	Task *task.Task
}

func (e Added) Target() *task.Task     { return e.Task }
func (e RemovedAt) Target() *task.Task { return e.Task }
func (e Completed) Target() *task.Task { return e.Task }

func (Added) entry()     {}
func (RemovedAt) entry() {}
func (Completed) entry() {}

// Action returns the persisted action name of an entry.
func Action(e Entry) string {
	switch e.(type) {
	case Added:
		return ActionAdd
	case RemovedAt:
		return ActionRemove
	case Completed:
		return ActionComplete
	default:
		return ""
	}
}

// Persisted action names
const (
	ActionAdd      = "add"
	ActionRemove   = "remove"
	ActionComplete = "complete"
)

// Stack is a LIFO of history entries with an optional size cap.
type Stack struct {
	entries []Entry
	limit   int
}

// NewStack creates a stack. A limit of 0 or less means unbounded; otherwise
// pushing onto a full stack discards the oldest entry.
func NewStack(limit int) *Stack {
	if limit < 0 {
		limit = 0
	}
	return &Stack{limit: limit}
}

// Push records an entry.
func (s *Stack) Push(e Entry) {
	s.entries = append(s.entries, e)
	if s.limit > 0 && len(s.entries) > s.limit {
		drop := len(s.entries) - s.limit
		for i := 0; i < drop; i++ {
			s.entries[i] = nil
		}
		s.entries = s.entries[drop:]
	}
}

// Pop removes and returns the most recent entry.
func (s *Stack) Pop() (Entry, bool) {
	if len(s.entries) == 0 {
		return nil, false
	}
	last := len(s.entries) - 1
	e := s.entries[last]
	s.entries[last] = nil
	s.entries = s.entries[:last]
	return e, true
}

// Peek returns the most recent entry without removing it.
func (s *Stack) Peek() (Entry, bool) {
	if len(s.entries) == 0 {
		return nil, false
	}
	return s.entries[len(s.entries)-1], true
}

// Len returns the number of recorded entries.
func (s *Stack) Len() int {
	return len(s.entries)
}

// Limit returns the configured cap, 0 when unbounded.
func (s *Stack) Limit() int {
	return s.limit
}

// Entries returns the entries oldest first. The slice is a copy.
func (s *Stack) Entries() []Entry {
	result := make([]Entry, len(s.entries))
	copy(result, s.entries)
	return result
}

// Clear discards every entry.
func (s *Stack) Clear() {
	s.entries = nil
}
