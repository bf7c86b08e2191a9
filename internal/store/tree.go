package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tasktree/internal/task"
	"tasktree/internal/utils"
)

// SubtaskConflict reports whether the parent at index already has a
// subtask titled title, ignoring case.
func (s *Store) SubtaskConflict(parentIndex int, title string) (bool, error) {
	parent, err := s.Get(parentIndex)
	if err != nil {
		return false, err
	}
	title = task.NormalizeTitle(title)
	for _, sub := range parent.Subtasks {
		if sub.TitleMatches(title) {
			return true, nil
		}
	}
	return false, nil
}

// AddSubtask appends a new leaf task titled title under the root task at
// parentIndex. As with Add, duplicate is a warning and the subtask is
// appended regardless.
func (s *Store) AddSubtask(ctx context.Context, parentIndex int, title string) (duplicate bool, err error) {
	duplicate, err = s.SubtaskConflict(parentIndex, title)
	if err != nil {
		return false, err
	}
	parent := s.tasks[parentIndex]
	sub := task.New(title)
	parent.Subtasks = append(parent.Subtasks, sub)
	parent.RecomputeCompletion()
	utils.Debugf("added subtask %q to %q", sub.Title, parent.Title)
	return duplicate, s.save(ctx)
}

// Subtasks returns the subtasks of the root task at parentIndex.
func (s *Store) Subtasks(parentIndex int) ([]*task.Task, error) {
	parent, err := s.Get(parentIndex)
	if err != nil {
		return nil, err
	}
	result := make([]*task.Task, len(parent.Subtasks))
	copy(result, parent.Subtasks)
	return result, nil
}

// CompleteSubtask marks a subtask completed and re-derives the parent's
// completion flag.
func (s *Store) CompleteSubtask(ctx context.Context, parentIndex, subIndex int) error {
	parent, err := s.Get(parentIndex)
	if err != nil {
		return err
	}
	if subIndex < 0 || subIndex >= len(parent.Subtasks) {
		return fmt.Errorf("%w: subtask %d of %q (have %d)", ErrIndexOutOfRange, subIndex+1, parent.Title, len(parent.Subtasks))
	}
	sub := parent.Subtasks[subIndex]
	if sub.IsParent() && !sub.RecomputeCompletion() {
		return fmt.Errorf("%w: %q", ErrPendingSubtasks, sub.Title)
	}

	sub.Completed = true
	parent.RecomputeCompletion()
	utils.Debugf("completed subtask %q of %q", sub.Title, parent.Title)
	return s.save(ctx)
}

// AddComment appends a comment to the root task at index.
func (s *Store) AddComment(ctx context.Context, index int, text string) error {
	t, err := s.Get(index)
	if err != nil {
		return err
	}
	t.Comments = append(t.Comments, strings.TrimSpace(text))
	return s.save(ctx)
}

// Comments returns the comments of the root task at index.
func (s *Store) Comments(index int) ([]string, error) {
	t, err := s.Get(index)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), t.Comments...), nil
}

// RemoveComment removes and returns the comment at commentIndex of the root
// task at index.
func (s *Store) RemoveComment(ctx context.Context, index, commentIndex int) (string, error) {
	t, err := s.Get(index)
	if err != nil {
		return "", err
	}
	if commentIndex < 0 || commentIndex >= len(t.Comments) {
		return "", fmt.Errorf("%w: comment %d of %q (have %d)", ErrIndexOutOfRange, commentIndex+1, t.Title, len(t.Comments))
	}
	removed := t.Comments[commentIndex]
	t.Comments = append(t.Comments[:commentIndex], t.Comments[commentIndex+1:]...)
	return removed, s.save(ctx)
}

// Patch describes an edit of a task. Nil fields are left unchanged.
type Patch struct {
	Title      *string
	Priority   *task.Priority
	Tags       *[]string
	Due        *time.Time
	ClearDue   bool
	Recurrence *task.Recurrence
}

// Update applies p to the root task at index.
func (s *Store) Update(ctx context.Context, index int, p Patch) error {
	t, err := s.Get(index)
	if err != nil {
		return err
	}
	if p.Title != nil {
		t.Title = task.NormalizeTitle(*p.Title)
	}
	if p.Priority != nil {
		t.Priority = task.ParsePriority(string(*p.Priority))
	}
	if p.Tags != nil {
		t.Tags = task.NormalizeTags(*p.Tags)
	}
	if p.ClearDue {
		t.Due = nil
	} else if p.Due != nil {
		t.Due = task.TruncateDate(p.Due)
	}
	if p.Recurrence != nil {
		t.Recurrence = task.ParseRecurrence(string(*p.Recurrence))
	}
	utils.Debugf("updated task %q", t.Title)
	return s.save(ctx)
}
