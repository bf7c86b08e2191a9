package task

import (
	"testing"
	"time"
)

func date(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestNewDefaults(t *testing.T) {
	tk := New("   ")
	if tk.Title != PlaceholderTitle {
		t.Errorf("Title = %q, want %q", tk.Title, PlaceholderTitle)
	}
	if tk.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want Medium", tk.Priority)
	}
	if tk.Recurrence != RecurrenceNone {
		t.Errorf("Recurrence = %q, want none", tk.Recurrence)
	}
	if tk.ID == "" {
		t.Error("expected task to have ID")
	}
	if tk.Completed {
		t.Error("new task should not be completed")
	}
}

func TestNewNormalizesOptions(t *testing.T) {
	tk := New(" Write report ",
		WithPriority(Priority("urgent")),
		WithTags(" work ", "", "work", "home"),
		WithRecurrence(ParseRecurrence("monthly")),
	)
	if tk.Title != "Write report" {
		t.Errorf("Title = %q, want trimmed", tk.Title)
	}
	if tk.Priority != PriorityMedium {
		t.Errorf("Priority = %q, want Medium for invalid input", tk.Priority)
	}
	if len(tk.Tags) != 2 || tk.Tags[0] != "work" || tk.Tags[1] != "home" {
		t.Errorf("Tags = %v, want [work home]", tk.Tags)
	}
	if tk.Recurrence != RecurrenceNone {
		t.Errorf("Recurrence = %q, want none", tk.Recurrence)
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
	}{
		{"High", PriorityHigh},
		{"high", PriorityHigh},
		{" LOW ", PriorityLow},
		{"medium", PriorityMedium},
		{"", PriorityMedium},
		{"critical", PriorityMedium},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParsePriority(tt.in); got != tt.want {
				t.Errorf("ParsePriority(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPriorityRank(t *testing.T) {
	if !(PriorityHigh.Rank() < PriorityMedium.Rank() &&
		PriorityMedium.Rank() < PriorityLow.Rank() &&
		PriorityLow.Rank() < Priority("other").Rank()) {
		t.Error("expected High < Medium < Low < unknown")
	}
}

func TestRecomputeCompletion(t *testing.T) {
	t.Run("leaf keeps its flag", func(t *testing.T) {
		tk := New("leaf")
		if tk.RecomputeCompletion() {
			t.Error("leaf should stay incomplete")
		}
		tk.Completed = true
		if !tk.RecomputeCompletion() {
			t.Error("leaf should stay completed")
		}
	})

	t.Run("parent follows subtasks", func(t *testing.T) {
		parent := New("parent")
		a, b := New("a"), New("b")
		parent.Subtasks = []*Task{a, b}

		a.Completed = true
		if parent.RecomputeCompletion() {
			t.Error("parent should be incomplete while b is pending")
		}
		b.Completed = true
		if !parent.RecomputeCompletion() || !parent.Completed {
			t.Error("parent should be completed once all subtasks are")
		}
		parent.Subtasks = append(parent.Subtasks, New("c"))
		if parent.RecomputeCompletion() {
			t.Error("adding a pending subtask should reopen the parent")
		}
	})
}

func TestDeepCopyIsIndependent(t *testing.T) {
	orig := New("orig", WithTags("work"), WithDue(date(2024, 1, 10)), WithComments("first"))
	orig.Subtasks = []*Task{New("child")}

	c := orig.DeepCopy()
	if c.ID == orig.ID {
		t.Error("copy should get a fresh ID")
	}
	c.Tags[0] = "changed"
	c.Comments[0] = "changed"
	c.Subtasks[0].Title = "changed"
	*c.Due = c.Due.AddDate(0, 0, 5)

	if orig.Tags[0] != "work" || orig.Comments[0] != "first" || orig.Subtasks[0].Title != "child" {
		t.Error("mutating the copy changed the original")
	}
	if FormatDate(orig.Due) != "2024-01-10" {
		t.Errorf("original due changed to %s", FormatDate(orig.Due))
	}
}

func TestNextOccurrence(t *testing.T) {
	tests := []struct {
		name       string
		recurrence Recurrence
		due        *time.Time
		wantDue    string
	}{
		{"daily", RecurrenceDaily, date(2024, 1, 10), "2024-01-11"},
		{"weekly", RecurrenceWeekly, date(2024, 1, 10), "2024-01-17"},
		{"daily across month", RecurrenceDaily, date(2024, 1, 31), "2024-02-01"},
		{"no due date", RecurrenceDaily, nil, ""},
		{"not recurring", RecurrenceNone, date(2024, 1, 10), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orig := New("water plants",
				WithPriority(PriorityHigh),
				WithTags("home"),
				WithRecurrence(tt.recurrence),
				WithDue(tt.due),
				WithComments("use rain water"),
			)
			orig.Subtasks = []*Task{New("sub")}
			orig.Completed = true

			next := orig.NextOccurrence()
			if tt.wantDue == "" {
				if next != nil {
					t.Fatalf("expected no successor, got due %s", FormatDate(next.Due))
				}
				return
			}
			if next == nil {
				t.Fatal("expected a successor")
			}
			if got := FormatDate(next.Due); got != tt.wantDue {
				t.Errorf("due = %s, want %s", got, tt.wantDue)
			}
			if next.Title != orig.Title || next.Priority != orig.Priority || next.Recurrence != orig.Recurrence {
				t.Error("successor should copy title, priority and recurrence")
			}
			if len(next.Tags) != 1 || next.Tags[0] != "home" {
				t.Errorf("Tags = %v, want [home]", next.Tags)
			}
			if len(next.Comments) != 1 || next.Comments[0] != "use rain water" {
				t.Errorf("Comments = %v", next.Comments)
			}
			next.Comments[0] = "changed"
			if orig.Comments[0] != "use rain water" {
				t.Error("successor comments must not share storage with the original")
			}
			if next.Completed || len(next.Subtasks) != 0 {
				t.Error("successor should be a fresh incomplete leaf")
			}
		})
	}
}

func TestUrgency(t *testing.T) {
	now := time.Date(2024, 1, 10, 18, 30, 0, 0, time.UTC)
	tests := []struct {
		name string
		due  *time.Time
		want Urgency
	}{
		{"no due date", nil, UrgencyNone},
		{"yesterday", date(2024, 1, 9), UrgencyOverdue},
		{"today", date(2024, 1, 10), UrgencyDueSoon},
		{"in three days", date(2024, 1, 13), UrgencyDueSoon},
		{"in four days", date(2024, 1, 14), UrgencyNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tk := New("t", WithDue(tt.due))
			if got := tk.Urgency(now); got != tt.want {
				t.Errorf("Urgency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("ParseDate error: %v", err)
	}
	if FormatDate(d) != "2024-02-29" {
		t.Errorf("FormatDate = %s", FormatDate(d))
	}

	d, err = ParseDate("")
	if err != nil || d != nil {
		t.Errorf("empty input should give nil, nil; got %v, %v", d, err)
	}

	if _, err := ParseDate("10/01/2024"); err == nil {
		t.Error("expected error for malformed date")
	}
}
