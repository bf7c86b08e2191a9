package tui_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"tasktree/backend/sqlite"
	"tasktree/internal/store"
	"tasktree/internal/task"
	"tasktree/internal/tui"
)

// sendKeyAndWait sends a key message and waits briefly for processing.
func sendKeyAndWait(tm *teatest.TestModel, key tea.KeyMsg) {
	tm.Send(key)
	time.Sleep(20 * time.Millisecond)
}

// sendRunesAndWait sends a rune key message and waits briefly for processing.
func sendRunesAndWait(tm *teatest.TestModel, runes []rune) {
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyRunes, Runes: runes})
}

// typeText sends text one rune at a time, then Enter.
func typeText(tm *teatest.TestModel, text string) {
	for _, r := range text {
		tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyEnter})
}

// newStore opens a store over a fresh SQLite database holding titles.
func newStore(t *testing.T, titles ...string) *store.Store {
	t.Helper()
	return openStore(t, filepath.Join(t.TempDir(), "tasks.db"), titles...)
}

// openStore opens a store over the SQLite database at path and adds titles.
func openStore(t *testing.T, path string, titles ...string) *store.Store {
	t.Helper()
	gw, err := sqlite.New(path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	s, err := store.New(context.Background(), gw)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })

	for _, title := range titles {
		if _, err := s.Add(context.Background(), task.New(title)); err != nil {
			t.Fatalf("failed to add %q: %v", title, err)
		}
	}
	return s
}

// start launches the browser and waits for the first frame.
func start(t *testing.T, s *store.Store) *teatest.TestModel {
	t.Helper()
	tm := teatest.NewTestModel(t, tui.New(context.Background(), s), teatest.WithInitialTermSize(100, 30))
	time.Sleep(100 * time.Millisecond)
	return tm
}

// quit stops the program and returns everything it rendered.
func quit(t *testing.T, tm *teatest.TestModel) []byte {
	t.Helper()
	sendRunesAndWait(tm, []rune{'q'})
	return readAll(t, tm.FinalOutput(t, teatest.WithFinalTimeout(time.Second)))
}

// readAll reads all output from a reader and returns as bytes
func readAll(t *testing.T, r io.Reader) []byte {
	t.Helper()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	return out
}

func TestTUILaunch(t *testing.T) {
	s := newStore(t, "Review PR", "Buy groceries")
	tm := start(t, s)

	out := quit(t, tm)
	for _, want := range []string{"Review PR", "Buy groceries", "q:quit"} {
		if !bytes.Contains(out, []byte(want)) {
			t.Errorf("expected %q to be rendered", want)
		}
	}
}

func TestTUIEmptyStore(t *testing.T) {
	tm := start(t, newStore(t))
	if out := quit(t, tm); !bytes.Contains(out, []byte("No tasks")) {
		t.Error("expected empty state message")
	}
}

func TestTUIAddTask(t *testing.T) {
	s := newStore(t, "Review PR")
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'a'})
	typeText(tm, "Write tests")

	out := quit(t, tm)
	if !bytes.Contains(out, []byte("Added: Write tests")) {
		t.Error("expected status message for the new task")
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	if got, _ := s.Get(1); got.Title != "Write tests" {
		t.Errorf("task 2 = %q", got.Title)
	}
}

func TestTUIAddDuplicate(t *testing.T) {
	tests := []struct {
		name    string
		answer  rune
		wantLen int
	}{
		{"confirmed", 'y', 2},
		{"declined", 'n', 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t, "Groceries")
			tm := start(t, s)

			sendRunesAndWait(tm, []rune{'a'})
			typeText(tm, "groceries")
			sendRunesAndWait(tm, []rune{tt.answer})

			out := quit(t, tm)
			if !bytes.Contains(out, []byte("already exists")) {
				t.Error("expected duplicate confirmation dialog")
			}
			if s.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", s.Len(), tt.wantLen)
			}
		})
	}
}

func TestTUICompleteTask(t *testing.T) {
	s := newStore(t, "Review PR")
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'c'})

	out := quit(t, tm)
	if !bytes.Contains(out, []byte("[x]")) {
		t.Error("expected task completion indicator")
	}
	if got, _ := s.Get(0); !got.Completed {
		t.Error("task should be completed")
	}
}

func TestTUICompleteWithPendingSubtasks(t *testing.T) {
	s := newStore(t, "Trip")
	if _, err := s.AddSubtask(context.Background(), 0, "Pack"); err != nil {
		t.Fatal(err)
	}
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'c'})

	out := quit(t, tm)
	if !bytes.Contains(out, []byte("pending subtasks")) {
		t.Errorf("expected pending subtasks error in status bar, got:\n%s", out)
	}
	if got, _ := s.Get(0); got.Completed {
		t.Error("task with pending subtasks must stay open")
	}
}

func TestTUIDeleteAndUndo(t *testing.T) {
	s := newStore(t, "Review PR", "Buy groceries")
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'d'})
	sendRunesAndWait(tm, []rune{'y'})
	sendRunesAndWait(tm, []rune{'u'})

	out := quit(t, tm)
	if !bytes.Contains(out, []byte("Removed: Review PR")) {
		t.Error("expected removal status")
	}
	if !bytes.Contains(out, []byte("Undid remove: Review PR")) {
		t.Error("expected undo status")
	}
	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after undo", s.Len())
	}
	if got, _ := s.Get(0); got.Title != "Review PR" {
		t.Errorf("undo should restore position 1, got %q", got.Title)
	}
}

func TestTUIDeleteCancelled(t *testing.T) {
	s := newStore(t, "Review PR")
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'d'})
	sendRunesAndWait(tm, []rune{'n'})

	quit(t, tm)
	if s.Len() != 1 {
		t.Errorf("Len() = %d, declined removal should keep the task", s.Len())
	}
}

func TestTUIUndoEmpty(t *testing.T) {
	s := newStore(t)
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'u'})

	if out := quit(t, tm); !bytes.Contains(out, []byte("Nothing to undo")) {
		t.Error("expected nothing to undo message")
	}
}

func TestTUISubtasks(t *testing.T) {
	s := newStore(t, "Trip")
	tm := start(t, s)

	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyTab})
	sendRunesAndWait(tm, []rune{'a'})
	typeText(tm, "Book hotel")
	sendRunesAndWait(tm, []rune{'c'})

	out := quit(t, tm)
	if !bytes.Contains(out, []byte("Book hotel")) {
		t.Error("expected subtask in detail pane")
	}
	parent, _ := s.Get(0)
	if len(parent.Subtasks) != 1 || !parent.Subtasks[0].Completed {
		t.Fatalf("subtasks = %+v", parent.Subtasks)
	}
	if !parent.Completed {
		t.Error("completing the only subtask should complete the parent")
	}
}

func TestTUIComment(t *testing.T) {
	s := newStore(t, "Report")
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'m'})
	typeText(tm, "draft sent")

	out := quit(t, tm)
	if !bytes.Contains(out, []byte("draft sent")) {
		t.Error("expected comment in detail pane")
	}
	if comments, _ := s.Comments(0); len(comments) != 1 || comments[0] != "draft sent" {
		t.Errorf("Comments() = %q", comments)
	}
}

func TestTUIFilterByTag(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, tk := range []*task.Task{
		task.New("Review PR", task.WithTags("work")),
		task.New("Buy groceries", task.WithTags("home")),
	} {
		if _, err := s.Add(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'/'})
	typeText(tm, "home")

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Tag: home"))
	}, teatest.WithDuration(time.Second))

	// Completing the only visible task must hit the filtered one.
	sendRunesAndWait(tm, []rune{'c'})
	quit(t, tm)

	work, _ := s.Get(0)
	home, _ := s.Get(1)
	if work.Completed || !home.Completed {
		t.Errorf("completed flags = %v/%v, want false/true", work.Completed, home.Completed)
	}
}

func TestTUIPriorityOrder(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	if _, err := s.Add(ctx, task.New("Later", task.WithPriority(task.PriorityLow))); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add(ctx, task.New("Now", task.WithPriority(task.PriorityHigh))); err != nil {
		t.Fatal(err)
	}
	tm := start(t, s)

	sendRunesAndWait(tm, []rune{'c'})
	quit(t, tm)

	if got, _ := s.Get(1); !got.Completed {
		t.Error("the cursor should start on the highest priority task")
	}
}

func TestTUIHelp(t *testing.T) {
	tm := start(t, newStore(t, "Review PR"))

	sendRunesAndWait(tm, []rune{'?'})
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Key Bindings"))
	}, teatest.WithDuration(time.Second))
	sendRunesAndWait(tm, []rune{'x'})

	out := quit(t, tm)
	if !strings.Contains(string(out), "Review PR") {
		t.Error("expected task list after closing help")
	}
}

func TestTUIReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s := openStore(t, path, "Review PR")
	other := openStore(t, path)
	tm := start(t, s)

	if err := other.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := other.Add(context.Background(), task.New("Added elsewhere")); err != nil {
		t.Fatal(err)
	}
	tm.Send(tui.ReloadMsg{})

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Added elsewhere"))
	}, teatest.WithDuration(time.Second))
	quit(t, tm)

	if s.Len() != 2 {
		t.Errorf("Len() = %d after reload, want 2", s.Len())
	}
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	s := openStore(t, path, "Review PR")

	var out bytes.Buffer
	err := tui.Run(context.Background(), s, tui.Options{
		WatchPath: path,
		In:        strings.NewReader("q"),
		Out:       &out,
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.Contains(out.String(), "Review PR") {
		t.Errorf("expected task list in output, got:\n%s", out.String())
	}
}

func TestTUIQuit(t *testing.T) {
	tm := start(t, newStore(t))
	sendKeyAndWait(tm, tea.KeyMsg{Type: tea.KeyCtrlC})
	tm.WaitFinished(t, teatest.WithFinalTimeout(time.Second))
}
