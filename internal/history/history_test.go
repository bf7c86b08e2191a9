package history

import (
	"testing"

	"tasktree/internal/task"
)

func TestStackLIFO(t *testing.T) {
	s := NewStack(0)
	a, b := task.New("a"), task.New("b")

	s.Push(Added{Task: a})
	s.Push(RemovedAt{Task: b, Index: 3})

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}

	e, ok := s.Pop()
	if !ok {
		t.Fatal("Pop() on non-empty stack returned false")
	}
	r, isRemoved := e.(RemovedAt)
	if !isRemoved || r.Task != b || r.Index != 3 {
		t.Errorf("Pop() = %#v, want RemovedAt(b, 3)", e)
	}

	e, _ = s.Pop()
	if e.Target() != a {
		t.Error("second Pop() should return the Added entry for a")
	}

	if _, ok := s.Pop(); ok {
		t.Error("Pop() on empty stack should return false")
	}
}

func TestStackLimitDropsOldest(t *testing.T) {
	s := NewStack(2)
	first, second, third := task.New("1"), task.New("2"), task.New("3")
	s.Push(Added{Task: first})
	s.Push(Completed{Task: second})
	s.Push(Added{Task: third})

	if s.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", s.Len())
	}
	entries := s.Entries()
	if entries[0].Target() != second || entries[1].Target() != third {
		t.Error("expected the oldest entry to be discarded")
	}
}

func TestStackEntriesIsCopy(t *testing.T) {
	s := NewStack(0)
	s.Push(Added{Task: task.New("a")})
	entries := s.Entries()
	entries[0] = nil
	if top, _ := s.Peek(); top == nil {
		t.Error("mutating Entries() result changed the stack")
	}
}

func TestAction(t *testing.T) {
	tk := task.New("x")
	tests := []struct {
		entry Entry
		want  string
	}{
		{Added{Task: tk}, ActionAdd},
		{RemovedAt{Task: tk}, ActionRemove},
		{Completed{Task: tk}, ActionComplete},
	}
	for _, tt := range tests {
		if got := Action(tt.entry); got != tt.want {
			t.Errorf("Action(%T) = %q, want %q", tt.entry, got, tt.want)
		}
	}
}

func TestClear(t *testing.T) {
	s := NewStack(0)
	s.Push(Added{Task: task.New("a")})
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len() after Clear = %d", s.Len())
	}
}
