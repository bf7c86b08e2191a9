package store

import (
	"context"

	"tasktree/internal/history"
	"tasktree/internal/utils"
)

// Undo reverses the most recent recorded mutation and returns its entry.
// It returns ErrNothingToUndo when the history is empty.
//
// Undoing a completion only clears the completed flag: a recurrence
// successor created by that completion has its own Added entry and stays
// in place unless that entry is undone as well. A parent reopened this way
// keeps its completed subtasks and is recomputed on the next subtask change.
func (s *Store) Undo(ctx context.Context) (history.Entry, error) {
	e, ok := s.history.Pop()
	if !ok {
		return nil, ErrNothingToUndo
	}

	switch e := e.(type) {
	case history.Added:
		if i := s.indexOf(e.Task.ID); i >= 0 {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			utils.Debugf("undo: removed added task %q", e.Task.Title)
		} else {
			utils.Warnf("undo: added task %q is no longer present", e.Task.Title)
		}
	case history.RemovedAt:
		idx := e.Index
		if idx > len(s.tasks) {
			idx = len(s.tasks)
		}
		s.tasks = append(s.tasks, nil)
		copy(s.tasks[idx+1:], s.tasks[idx:])
		s.tasks[idx] = e.Task
		utils.Debugf("undo: restored task %q at position %d", e.Task.Title, idx)
	case history.Completed:
		e.Task.Completed = false
		utils.Debugf("undo: reopened task %q", e.Task.Title)
	}

	return e, s.save(ctx)
}

// indexOf returns the root position of the task with id, or -1.
func (s *Store) indexOf(id string) int {
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
