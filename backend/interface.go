package backend

import (
	"context"
	"fmt"

	"tasktree/internal/history"
	"tasktree/internal/task"
)

// Snapshot is the full persisted state: the root task sequence and the
// history stack, oldest entry first.
type Snapshot struct {
	Tasks   []*task.Task
	History []history.Entry
}

// Gateway defines the interface for task storage backends
type Gateway interface {
	// Load reads the stored snapshot. Absent storage yields an empty
	// snapshot, not an error.
	Load(ctx context.Context) (*Snapshot, error)

	// Save replaces the stored snapshot.
	Save(ctx context.Context, snap *Snapshot) error

	// Close releases the backend
	Close() error
}

// TaskRecord is the storage representation of a task.
type TaskRecord struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Priority   string        `json:"priority"`
	Tags       []string      `json:"tags"`
	Due        *string       `json:"due"`
	Recurrence string        `json:"recurrence"`
	Comments   []string      `json:"comments"`
	Subtasks   []*TaskRecord `json:"subtasks"`
	Completed  bool          `json:"completed"`
}

// HistoryRecord is the storage representation of a history entry.
// Index is only meaningful for the remove action.
type HistoryRecord struct {
	Action string      `json:"action"`
	Task   *TaskRecord `json:"task"`
	Index  *int        `json:"index,omitempty"`
}

// ToRecord converts a task tree to its storage representation.
func ToRecord(t *task.Task) *TaskRecord {
	r := &TaskRecord{
		ID:         t.ID,
		Title:      t.Title,
		Priority:   string(t.Priority),
		Tags:       append([]string{}, t.Tags...),
		Recurrence: string(t.Recurrence),
		Comments:   append([]string{}, t.Comments...),
		Subtasks:   []*TaskRecord{},
		Completed:  t.Completed,
	}
	if t.Due != nil {
		s := task.FormatDate(t.Due)
		r.Due = &s
	}
	for _, sub := range t.Subtasks {
		r.Subtasks = append(r.Subtasks, ToRecord(sub))
	}
	return r
}

// FromRecord converts a storage record back to a task tree.
// A malformed due date is dropped rather than failing the load.
func FromRecord(r *TaskRecord) *task.Task {
	t := &task.Task{
		ID:         r.ID,
		Title:      r.Title,
		Priority:   task.Priority(r.Priority),
		Tags:       append([]string(nil), r.Tags...),
		Recurrence: task.Recurrence(r.Recurrence),
		Comments:   append([]string(nil), r.Comments...),
		Completed:  r.Completed,
	}
	if r.Due != nil {
		if d, err := task.ParseDate(*r.Due); err == nil {
			t.Due = d
		}
	}
	for _, sub := range r.Subtasks {
		t.Subtasks = append(t.Subtasks, FromRecord(sub))
	}
	t.Normalize()
	return t
}

// ToHistoryRecord converts a history entry to its storage representation.
func ToHistoryRecord(e history.Entry) (HistoryRecord, error) {
	switch e := e.(type) {
	case history.Added:
		return HistoryRecord{Action: history.ActionAdd, Task: ToRecord(e.Task)}, nil
	case history.RemovedAt:
		idx := e.Index
		return HistoryRecord{Action: history.ActionRemove, Task: ToRecord(e.Task), Index: &idx}, nil
	case history.Completed:
		return HistoryRecord{Action: history.ActionComplete, Task: ToRecord(e.Task)}, nil
	default:
		return HistoryRecord{}, fmt.Errorf("unknown history entry type %T", e)
	}
}

// FromHistoryRecord converts a storage record back to a history entry.
// The entry's task is a detached copy until Relink runs.
func FromHistoryRecord(r HistoryRecord) (history.Entry, error) {
	if r.Task == nil {
		return nil, fmt.Errorf("history record %q has no task", r.Action)
	}
	t := FromRecord(r.Task)
	switch r.Action {
	case history.ActionAdd:
		return history.Added{Task: t}, nil
	case history.ActionRemove:
		idx := 0
		if r.Index != nil {
			idx = *r.Index
		}
		if idx < 0 {
			idx = 0
		}
		return history.RemovedAt{Task: t, Index: idx}, nil
	case history.ActionComplete:
		return history.Completed{Task: t}, nil
	default:
		return nil, fmt.Errorf("unknown history action: %q", r.Action)
	}
}

// Relink points Added and Completed entries at the task instances they
// refer to, matching by ID. Candidates are the root tasks first, then tasks
// owned by RemovedAt entries. Entries whose task cannot be found keep their
// detached copy; the number of such entries is returned.
func Relink(snap *Snapshot) int {
	byID := make(map[string]*task.Task, len(snap.Tasks))
	for _, e := range snap.History {
		if r, ok := e.(history.RemovedAt); ok {
			byID[r.Task.ID] = r.Task
		}
	}
	for _, t := range snap.Tasks {
		byID[t.ID] = t
	}

	unresolved := 0
	for i, e := range snap.History {
		switch e := e.(type) {
		case history.Added:
			if live, ok := byID[e.Task.ID]; ok {
				snap.History[i] = history.Added{Task: live}
			} else {
				unresolved++
			}
		case history.Completed:
			if live, ok := byID[e.Task.ID]; ok {
				snap.History[i] = history.Completed{Task: live}
			} else {
				unresolved++
			}
		case history.RemovedAt:
		}
	}
	return unresolved
}

// EncodeSnapshot converts a snapshot to storage records.
func EncodeSnapshot(snap *Snapshot) ([]*TaskRecord, []HistoryRecord, error) {
	tasks := make([]*TaskRecord, 0, len(snap.Tasks))
	for _, t := range snap.Tasks {
		tasks = append(tasks, ToRecord(t))
	}
	hist := make([]HistoryRecord, 0, len(snap.History))
	for _, e := range snap.History {
		r, err := ToHistoryRecord(e)
		if err != nil {
			return nil, nil, err
		}
		hist = append(hist, r)
	}
	return tasks, hist, nil
}

// DecodeSnapshot converts storage records to a relinked snapshot.
func DecodeSnapshot(tasks []*TaskRecord, hist []HistoryRecord) (*Snapshot, error) {
	snap := &Snapshot{
		Tasks:   make([]*task.Task, 0, len(tasks)),
		History: make([]history.Entry, 0, len(hist)),
	}
	for _, r := range tasks {
		snap.Tasks = append(snap.Tasks, FromRecord(r))
	}
	for _, r := range hist {
		e, err := FromHistoryRecord(r)
		if err != nil {
			return nil, err
		}
		snap.History = append(snap.History, e)
	}
	Relink(snap)
	return snap, nil
}
