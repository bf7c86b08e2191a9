// Package markdown renders task trees as markdown checklists.
package markdown

import (
	"fmt"
	"strings"
	"time"

	"tasktree/internal/task"
)

// Options controls how a task tree is rendered
type Options struct {
	// Comments includes each task's comments as quoted lines.
	Comments bool
	// Now is the reference time for urgency markers. Zero disables them.
	Now time.Time
	// DueSoonDays is the due-soon window for urgency markers.
	DueSoonDays int
	// Marker formats an urgency marker. Defaults to "[Overdue]" style.
	Marker func(task.Urgency) string
}

// Item is a task to render together with its label, usually its 1-based
// position.
type Item struct {
	Label string
	Task  *task.Task
}

// Render writes items and their subtasks as a markdown checklist.
func Render(items []Item, opts Options) string {
	var sb strings.Builder
	for _, it := range items {
		WriteTaskTree(&sb, it.Label, it.Task, 0, opts)
	}
	return sb.String()
}

// WriteTaskTree writes a task and its subtasks with proper indentation to a strings.Builder.
// Subtasks are labelled with their 1-based position under the parent.
func WriteTaskTree(sb *strings.Builder, label string, t *task.Task, level int, opts Options) {
	indent := strings.Repeat("  ", level)

	sb.WriteString(indent)
	sb.WriteString("- [")
	sb.WriteString(FormatStatusChar(t.Completed))
	sb.WriteString("] ")
	if label != "" {
		sb.WriteString(label)
		sb.WriteString(". ")
	}
	sb.WriteString(FormatTaskText(t))
	if !opts.Now.IsZero() && !t.Completed {
		if u := t.UrgencyWithin(opts.Now, opts.DueSoonDays); u != task.UrgencyNone {
			sb.WriteString(" ")
			sb.WriteString(formatMarker(u, opts.Marker))
		}
	}
	sb.WriteString("\n")

	if opts.Comments {
		for _, c := range t.Comments {
			sb.WriteString(indent)
			sb.WriteString("  > ")
			sb.WriteString(c)
			sb.WriteString("\n")
		}
	}

	for i, sub := range t.Subtasks {
		WriteTaskTree(sb, fmt.Sprintf("%d", i+1), sub, level+1, opts)
	}
}

func formatMarker(u task.Urgency, marker func(task.Urgency) string) string {
	if marker != nil {
		return marker(u)
	}
	return "[" + u.String() + "]"
}

// FormatStatusChar converts a completion flag to a markdown checkbox character.
func FormatStatusChar(completed bool) string {
	if completed {
		return "x"
	}
	return " "
}

// FormatTaskText formats a task as a single markdown line body.
// Format: "Title !high @2024-01-15 #tag1 #tag2 (daily)"
func FormatTaskText(t *task.Task) string {
	parts := []string{t.Title}

	if t.Priority != task.PriorityMedium {
		parts = append(parts, "!"+strings.ToLower(string(t.Priority)))
	}

	if t.Due != nil {
		parts = append(parts, "@"+task.FormatDate(t.Due))
	}

	for _, tag := range t.Tags {
		parts = append(parts, "#"+tag)
	}

	if t.Recurrence != task.RecurrenceNone && t.Recurrence != "" {
		parts = append(parts, "("+string(t.Recurrence)+")")
	}

	return strings.Join(parts, " ")
}
