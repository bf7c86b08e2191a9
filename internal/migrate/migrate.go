// Package migrate copies the stored task tree and undo history from one
// storage backend to another.
package migrate

import (
	"context"
	"errors"
	"fmt"

	"tasktree/backend"
	"tasktree/internal/task"
	"tasktree/internal/utils"
)

// ErrTargetNotEmpty is returned when the destination already holds tasks
// and the copy was not forced.
var ErrTargetNotEmpty = errors.New("target backend already contains tasks")

// Options controls a migration
type Options struct {
	Force       bool // overwrite a non-empty target
	SkipHistory bool // migrate tasks only; the target starts with an empty undo log
}

// Result summarizes a migration
type Result struct {
	Tasks    int // root tasks
	Subtasks int // subtasks at any depth
	History  int // undo entries
}

// Copy loads the snapshot from src and saves it into dst.
func Copy(ctx context.Context, src, dst backend.Gateway, opts Options) (Result, error) {
	snap, err := src.Load(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to read source: %w", err)
	}

	if !opts.Force {
		existing, err := dst.Load(ctx)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read target: %w", err)
		}
		if len(existing.Tasks) > 0 {
			return Result{}, fmt.Errorf("%w (%d tasks)", ErrTargetNotEmpty, len(existing.Tasks))
		}
	}

	if opts.SkipHistory {
		snap = &backend.Snapshot{Tasks: snap.Tasks}
	}

	if err := dst.Save(ctx, snap); err != nil {
		return Result{}, fmt.Errorf("failed to write target: %w", err)
	}

	res := Result{Tasks: len(snap.Tasks), History: len(snap.History)}
	for _, t := range snap.Tasks {
		res.Subtasks += countSubtasks(t)
	}
	utils.Debugf("migrated %d tasks, %d subtasks, %d history entries", res.Tasks, res.Subtasks, res.History)
	return res, nil
}

func countSubtasks(t *task.Task) int {
	n := len(t.Subtasks)
	for _, sub := range t.Subtasks {
		n += countSubtasks(sub)
	}
	return n
}
