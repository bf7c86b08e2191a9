package migrate_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tasktree/backend"
	"tasktree/backend/backendtest"
	"tasktree/backend/jsonfile"
	"tasktree/backend/sqlite"
	"tasktree/internal/migrate"
	"tasktree/internal/task"
)

func openJSON(t *testing.T, path string) backend.Gateway {
	t.Helper()
	gw, err := jsonfile.New(jsonfile.Config{FilePath: path})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

func openSQLite(t *testing.T, path string) backend.Gateway {
	t.Helper()
	gw, err := sqlite.New(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}

// TestMigrateJSONToSQLite copies the full fixture and reads it back.
func TestMigrateJSONToSQLite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := openJSON(t, filepath.Join(dir, "tasks.json"))
	dst := openSQLite(t, filepath.Join(dir, "tasks.db"))

	fixture := backendtest.Fixture()
	if err := src.Save(ctx, fixture); err != nil {
		t.Fatal(err)
	}

	res, err := migrate.Copy(ctx, src, dst, migrate.Options{})
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if res != (migrate.Result{Tasks: 2, Subtasks: 4, History: 5}) {
		t.Errorf("Copy() = %+v", res)
	}

	got, err := openSQLite(t, filepath.Join(dir, "tasks.db")).Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	backendtest.AssertTasksEqual(t, got.Tasks, fixture.Tasks)
	if len(got.History) != 5 {
		t.Errorf("history has %d entries, want 5", len(got.History))
	}
}

// TestMigrateSQLiteToJSONWithoutHistory drops the undo log on request.
func TestMigrateSQLiteToJSONWithoutHistory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := openSQLite(t, filepath.Join(dir, "tasks.db"))
	dst := openJSON(t, filepath.Join(dir, "tasks.json"))

	if err := src.Save(ctx, backendtest.Fixture()); err != nil {
		t.Fatal(err)
	}
	res, err := migrate.Copy(ctx, src, dst, migrate.Options{SkipHistory: true})
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if res.History != 0 || res.Tasks != 2 {
		t.Errorf("Copy() = %+v", res)
	}

	got, err := dst.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Tasks) != 2 || len(got.History) != 0 {
		t.Errorf("target has %d tasks, %d entries", len(got.Tasks), len(got.History))
	}
}

// TestMigrateRefusesNonEmptyTarget leaves the target untouched unless forced.
func TestMigrateRefusesNonEmptyTarget(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := openJSON(t, filepath.Join(dir, "tasks.json"))
	dst := openSQLite(t, ":memory:")

	if err := src.Save(ctx, backendtest.Fixture()); err != nil {
		t.Fatal(err)
	}
	keep := task.New("Keep me")
	if err := dst.Save(ctx, &backend.Snapshot{Tasks: []*task.Task{keep}}); err != nil {
		t.Fatal(err)
	}

	if _, err := migrate.Copy(ctx, src, dst, migrate.Options{}); !errors.Is(err, migrate.ErrTargetNotEmpty) {
		t.Fatalf("Copy() error = %v, want ErrTargetNotEmpty", err)
	}
	got, _ := dst.Load(ctx)
	if len(got.Tasks) != 1 || got.Tasks[0].ID != keep.ID {
		t.Error("a refused migration must not touch the target")
	}

	if _, err := migrate.Copy(ctx, src, dst, migrate.Options{Force: true}); err != nil {
		t.Fatalf("forced Copy() error = %v", err)
	}
	got, _ = dst.Load(ctx)
	if len(got.Tasks) != 2 {
		t.Errorf("forced migration left %d tasks, want 2", len(got.Tasks))
	}
}

// TestMigrateEmptySource succeeds with nothing to copy.
func TestMigrateEmptySource(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	res, err := migrate.Copy(ctx, openJSON(t, filepath.Join(dir, "none.json")), openSQLite(t, ":memory:"), migrate.Options{})
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if res != (migrate.Result{}) {
		t.Errorf("Copy() = %+v, want zero", res)
	}
}
