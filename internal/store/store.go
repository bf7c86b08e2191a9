// Package store owns the root task sequence and its undo history. Every
// mutating operation applies its change in memory, records what is needed to
// reverse it, and then saves the whole state through a backend.Gateway.
//
// A Store is not safe for concurrent use; callers serialize access.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"tasktree/backend"
	"tasktree/internal/history"
	"tasktree/internal/task"
	"tasktree/internal/utils"
)

// Store is an ordered collection of root tasks with an undo history
type Store struct {
	gateway backend.Gateway
	tasks   []*task.Task
	history *history.Stack
	now     func() time.Time
	// soonDays is the due-soon window used by Urgency
	soonDays int
}

// Option configures a Store
type Option func(*Store)

// WithHistoryLimit caps the number of undoable entries. 0 means unbounded.
func WithHistoryLimit(n int) Option {
	return func(s *Store) { s.history = history.NewStack(n) }
}

// WithClock overrides the clock used for urgency computations.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDueSoonDays sets how many days ahead a due date counts as due soon.
func WithDueSoonDays(n int) Option {
	return func(s *Store) { s.soonDays = n }
}

// Item is a root task together with its position in the root sequence
type Item struct {
	Index int
	Task  *task.Task
}

// New loads the stored state through gw and returns a ready Store.
func New(ctx context.Context, gw backend.Gateway, opts ...Option) (*Store, error) {
	s := &Store{
		gateway: gw,
		history: history.NewStack(0),
		now:      time.Now,
		soonDays: task.DueSoonDays,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload replaces the in-memory state with what the gateway currently
// holds, discarding unsaved changes. It is used to pick up writes made by
// another process. On error the current state is kept.
func (s *Store) Reload(ctx context.Context) error {
	return s.load(ctx)
}

func (s *Store) load(ctx context.Context) error {
	snap, err := s.gateway.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load tasks: %w", err)
	}
	if snap == nil {
		snap = &backend.Snapshot{}
	}
	if n := backend.Relink(snap); n > 0 {
		utils.Warnf("%d history entries refer to tasks that no longer exist", n)
	}

	s.tasks = append([]*task.Task(nil), snap.Tasks...)
	s.history.Clear()
	for _, e := range snap.History {
		s.history.Push(e)
	}
	utils.Debugf("loaded %d tasks and %d history entries", len(s.tasks), s.history.Len())
	return nil
}

// Close performs a final save and closes the gateway.
func (s *Store) Close(ctx context.Context) error {
	saveErr := s.save(ctx)
	closeErr := s.gateway.Close()
	if saveErr != nil {
		return saveErr
	}
	return closeErr
}

// save persists the current state. Failures are wrapped in ErrPersistence;
// the in-memory state stays authoritative.
func (s *Store) save(ctx context.Context) error {
	snap := &backend.Snapshot{
		Tasks:   s.tasks,
		History: s.history.Entries(),
	}
	if err := s.gateway.Save(ctx, snap); err != nil {
		utils.Warnf("save failed: %v", err)
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Len returns the number of root tasks.
func (s *Store) Len() int {
	return len(s.tasks)
}

// HistoryLen returns the number of undoable entries.
func (s *Store) HistoryLen() int {
	return s.history.Len()
}

// History returns the recorded entries, oldest first.
func (s *Store) History() []history.Entry {
	return s.history.Entries()
}

// Tasks returns the root tasks in stored order. The slice is a copy; the
// tasks are not.
func (s *Store) Tasks() []*task.Task {
	result := make([]*task.Task, len(s.tasks))
	copy(result, s.tasks)
	return result
}

// Get returns the root task at index.
func (s *Store) Get(index int) (*task.Task, error) {
	if index < 0 || index >= len(s.tasks) {
		return nil, fmt.Errorf("%w: task %d (have %d)", ErrIndexOutOfRange, index+1, len(s.tasks))
	}
	return s.tasks[index], nil
}

// WouldConflict reports whether a root task already has title, ignoring case.
func (s *Store) WouldConflict(title string) bool {
	title = task.NormalizeTitle(title)
	for _, t := range s.tasks {
		if t.TitleMatches(title) {
			return true
		}
	}
	return false
}

// Add appends t to the root sequence. Conflicts are the caller's concern:
// duplicate reports whether a root task with the same title already
// existed, but the task is appended regardless.
func (s *Store) Add(ctx context.Context, t *task.Task) (duplicate bool, err error) {
	duplicate = s.WouldConflict(t.Title)
	s.tasks = append(s.tasks, t)
	s.history.Push(history.Added{Task: t})
	utils.Debugf("added task %q (%s)", t.Title, t.ID)
	return duplicate, s.save(ctx)
}

// Remove pops the root task at index.
func (s *Store) Remove(ctx context.Context, index int) (*task.Task, error) {
	t, err := s.Get(index)
	if err != nil {
		return nil, err
	}
	s.tasks = append(s.tasks[:index], s.tasks[index+1:]...)
	s.history.Push(history.RemovedAt{Task: t, Index: index})
	utils.Debugf("removed task %q from position %d", t.Title, index)
	return t, s.save(ctx)
}

// Complete marks the root task at index completed. A parent task can only
// be completed once all of its subtasks are. When the task recurs and has a
// due date, its successor is appended as a new root task and returned.
func (s *Store) Complete(ctx context.Context, index int) (*task.Task, error) {
	t, err := s.Get(index)
	if err != nil {
		return nil, err
	}
	if t.IsParent() && !t.RecomputeCompletion() {
		return nil, fmt.Errorf("%w: %q", ErrPendingSubtasks, t.Title)
	}

	t.Completed = true
	s.history.Push(history.Completed{Task: t})
	utils.Debugf("completed task %q", t.Title)
	saveErr := s.save(ctx)

	next := t.NextOccurrence()
	if next == nil {
		return nil, saveErr
	}
	// Successors are always inserted, whatever their title. The second save
	// covers the completion too, so its result is the one reported.
	_, err = s.Add(ctx, next)
	utils.Debugf("scheduled next occurrence of %q on %s", next.Title, task.FormatDate(next.Due))
	return next, err
}

// ListFiltered returns the root tasks carrying tag (all tasks when tag is
// empty), ordered by priority. Tasks of equal priority keep their stored
// order. The stored order itself is not changed.
func (s *Store) ListFiltered(tag string) []Item {
	tag = strings.TrimSpace(tag)
	var items []Item
	for i, t := range s.tasks {
		if tag != "" && !t.HasTag(tag) {
			continue
		}
		items = append(items, Item{Index: i, Task: t})
	}
	sort.SliceStable(items, func(a, b int) bool {
		return items[a].Task.Priority.Rank() < items[b].Task.Priority.Rank()
	})
	return items
}

// Urgency returns the due-date marker of t relative to the store clock and
// due-soon window.
func (s *Store) Urgency(t *task.Task) task.Urgency {
	return t.UrgencyWithin(s.now(), s.soonDays)
}
