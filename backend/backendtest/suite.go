// Package backendtest provides a shared round-trip suite for backend.Gateway
// implementations.
package backendtest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tasktree/backend"
	"tasktree/internal/history"
	"tasktree/internal/task"
)

// Factory opens a gateway over the storage at path. The path does not exist
// yet the first time it is passed in.
type Factory func(t *testing.T, path string) backend.Gateway

// Fixture builds a snapshot exercising every persisted field: nested
// subtasks, comments, dates, and all three history entry kinds, including
// a removed task with its own subtree.
func Fixture() *backend.Snapshot {
	due := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)

	trip := task.New("Trip",
		task.WithPriority(task.PriorityHigh),
		task.WithTags("travel", "family"),
		task.WithComments("passports!", "check visas"),
	)
	pack := task.New("Pack")
	pack.Subtasks = []*task.Task{task.New("Socks"), task.New("Charger")}
	pack.Subtasks[0].Completed = true
	trip.Subtasks = []*task.Task{pack, task.New("Book hotel")}

	plants := task.New("Water plants",
		task.WithRecurrence(task.RecurrenceDaily),
		task.WithDue(&due),
	)
	plants.Completed = true

	removed := task.New("Old idea", task.WithPriority(task.PriorityLow), task.WithComments("dropped"))
	removed.Subtasks = []*task.Task{task.New("Sketch")}

	return &backend.Snapshot{
		Tasks: []*task.Task{trip, plants},
		History: []history.Entry{
			history.Added{Task: trip},
			history.Added{Task: removed},
			history.Added{Task: plants},
			history.RemovedAt{Task: removed, Index: 1},
			history.Completed{Task: plants},
		},
	}
}

// Run saves the fixture through one gateway, loads it through a second one
// and checks the result.
func Run(t *testing.T, factory Factory) {
	t.Helper()
	ctx := context.Background()
	opener := func(t *testing.T) func(t *testing.T) backend.Gateway {
		path := filepath.Join(t.TempDir(), "tasks")
		return func(t *testing.T) backend.Gateway {
			gw := factory(t, path)
			t.Cleanup(func() { _ = gw.Close() })
			return gw
		}
	}

	t.Run("empty storage loads empty snapshot", func(t *testing.T) {
		gw := opener(t)(t)
		snap, err := gw.Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(snap.Tasks) != 0 || len(snap.History) != 0 {
			t.Errorf("Load() = %d tasks, %d entries, want none", len(snap.Tasks), len(snap.History))
		}
	})

	t.Run("round trip", func(t *testing.T) {
		open := opener(t)
		want := Fixture()
		if err := open(t).Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := open(t).Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		AssertTasksEqual(t, got.Tasks, want.Tasks)
		assertHistory(t, got)
	})

	t.Run("tags keep separators", func(t *testing.T) {
		open := opener(t)
		report := task.New("Report", task.WithTags("client:acme,inc", "work", "a;b|c"))
		want := &backend.Snapshot{Tasks: []*task.Task{report}}
		if err := open(t).Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := open(t).Load(ctx)
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		AssertTasksEqual(t, got.Tasks, want.Tasks)
	})

	t.Run("save replaces previous state", func(t *testing.T) {
		open := opener(t)
		gw := open(t)
		if err := gw.Save(ctx, Fixture()); err != nil {
			t.Fatal(err)
		}
		only := task.New("Only")
		if err := gw.Save(ctx, &backend.Snapshot{Tasks: []*task.Task{only}}); err != nil {
			t.Fatal(err)
		}

		got, err := open(t).Load(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(got.Tasks) != 1 || got.Tasks[0].ID != only.ID || len(got.History) != 0 {
			t.Errorf("Load() = %d tasks, %d entries after overwrite", len(got.Tasks), len(got.History))
		}
	})
}

func assertHistory(t *testing.T, got *backend.Snapshot) {
	t.Helper()
	if len(got.History) != 5 {
		t.Fatalf("history has %d entries, want 5", len(got.History))
	}

	trip, plants := got.Tasks[0], got.Tasks[1]
	if e, ok := got.History[0].(history.Added); !ok || e.Task != trip {
		t.Errorf("entry 0 = %#v, want Added linked to the live Trip", got.History[0])
	}
	if e, ok := got.History[4].(history.Completed); !ok || e.Task != plants {
		t.Errorf("entry 4 = %#v, want Completed linked to the live Water plants", got.History[4])
	}

	rm, ok := got.History[3].(history.RemovedAt)
	if !ok {
		t.Fatalf("entry 3 = %T, want RemovedAt", got.History[3])
	}
	if rm.Index != 1 || rm.Task.Title != "Old idea" || len(rm.Task.Subtasks) != 1 || rm.Task.Comments[0] != "dropped" {
		t.Errorf("removed task not restored: %#v", rm)
	}
	if e, ok := got.History[1].(history.Added); !ok || e.Task != rm.Task {
		t.Error("Added entry of the removed task should link to the task owned by its RemovedAt entry")
	}
}

// AssertTasksEqual compares two task forests field by field.
func AssertTasksEqual(t *testing.T, got, want []*task.Task) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d tasks, want %d", len(got), len(want))
	}
	for i := range want {
		g, w := got[i], want[i]
		if g.ID != w.ID || g.Title != w.Title || g.Priority != w.Priority ||
			g.Recurrence != w.Recurrence || g.Completed != w.Completed {
			t.Errorf("task %d = %+v, want %+v", i, g, w)
		}
		if task.FormatDate(g.Due) != task.FormatDate(w.Due) {
			t.Errorf("task %q due = %q, want %q", w.Title, task.FormatDate(g.Due), task.FormatDate(w.Due))
		}
		if !equalStrings(g.Tags, w.Tags) {
			t.Errorf("task %q tags = %q, want %q", w.Title, g.Tags, w.Tags)
		}
		if !equalStrings(g.Comments, w.Comments) {
			t.Errorf("task %q comments = %q, want %q", w.Title, g.Comments, w.Comments)
		}
		AssertTasksEqual(t, g.Subtasks, w.Subtasks)
	}
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
