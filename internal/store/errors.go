package store

import "errors"

// Sentinel errors for store operations. None of them leaves the store in a
// partially mutated state, except ErrPersistence, which is returned after
// the in-memory mutation has been applied.
var (
	ErrIndexOutOfRange = errors.New("index out of range")
	ErrPendingSubtasks = errors.New("task has pending subtasks")
	ErrNothingToUndo   = errors.New("nothing to undo")
	ErrPersistence     = errors.New("failed to save tasks")
)
