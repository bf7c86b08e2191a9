// Package task defines the task tree node, its completion propagation rule
// and the recurrence successor rule.
package task

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// PlaceholderTitle is used when a task is created with an empty title.
const PlaceholderTitle = "Untitled task"

// Priority is the importance of a task
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Rank returns the display sort rank of a priority.
// High sorts first, unknown values sort last.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 3
	default:
		return 4
	}
}

// ParsePriority normalizes user input to a Priority.
// Matching is case-insensitive; anything unrecognized becomes Medium.
func ParsePriority(s string) Priority {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "h":
		return PriorityHigh
	case "low", "l":
		return PriorityLow
	default:
		return PriorityMedium
	}
}

// Recurrence is the renewal rule of a task occurrence
type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// ParseRecurrence normalizes user input to a Recurrence.
// Anything other than daily or weekly becomes RecurrenceNone.
func ParseRecurrence(s string) Recurrence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "d":
		return RecurrenceDaily
	case "weekly", "w":
		return RecurrenceWeekly
	default:
		return RecurrenceNone
	}
}

// Interval returns the number of days between occurrences, 0 for none.
func (r Recurrence) Interval() int {
	switch r {
	case RecurrenceDaily:
		return 1
	case RecurrenceWeekly:
		return 7
	default:
		return 0
	}
}

// Task is a node of the task tree
type Task struct {
	ID         string
	Title      string
	Priority   Priority
	Tags       []string
	Due        *time.Time // date only, midnight UTC
	Recurrence Recurrence
	Comments   []string
	Subtasks   []*Task
	Completed  bool
}

// Option configures a Task built by New
type Option func(*Task)

// WithPriority sets the priority.
func WithPriority(p Priority) Option {
	return func(t *Task) { t.Priority = p }
}

// WithTags sets the tags. Tags are trimmed and de-duplicated.
func WithTags(tags ...string) Option {
	return func(t *Task) { t.Tags = NormalizeTags(tags) }
}

// WithDue sets the due date. A nil date clears it.
func WithDue(due *time.Time) Option {
	return func(t *Task) { t.Due = TruncateDate(due) }
}

// WithRecurrence sets the recurrence rule.
func WithRecurrence(r Recurrence) Option {
	return func(t *Task) { t.Recurrence = r }
}

// WithComments sets the initial comments.
func WithComments(comments ...string) Option {
	return func(t *Task) { t.Comments = append([]string(nil), comments...) }
}

// New creates a task with a fresh ID and normalized fields.
func New(title string, opts ...Option) *Task {
	t := &Task{
		ID:         GenerateID(),
		Title:      NormalizeTitle(title),
		Priority:   PriorityMedium,
		Recurrence: RecurrenceNone,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.Normalize()
	return t
}

// Normalize repairs field values that may come from untrusted input,
// such as a decoded snapshot. It recurses into subtasks.
func (t *Task) Normalize() {
	if t.ID == "" {
		t.ID = GenerateID()
	}
	t.Title = NormalizeTitle(t.Title)
	switch t.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow:
	default:
		t.Priority = ParsePriority(string(t.Priority))
	}
	t.Recurrence = ParseRecurrence(string(t.Recurrence))
	t.Tags = NormalizeTags(t.Tags)
	t.Due = TruncateDate(t.Due)
	for _, sub := range t.Subtasks {
		sub.Normalize()
	}
}

// NormalizeTitle trims a title and substitutes the placeholder when empty.
func NormalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return PlaceholderTitle
	}
	return title
}

// NormalizeTags trims tags, drops empty ones and keeps the first
// occurrence of each tag in insertion order.
func NormalizeTags(tags []string) []string {
	var result []string
	seen := make(map[string]bool, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		result = append(result, tag)
	}
	return result
}

// TitleMatches reports whether title equals the task title, ignoring case
// and surrounding whitespace.
func (t *Task) TitleMatches(title string) bool {
	return strings.EqualFold(t.Title, strings.TrimSpace(title))
}

// HasTag reports whether the task carries the given tag.
func (t *Task) HasTag(tag string) bool {
	for _, tg := range t.Tags {
		if tg == tag {
			return true
		}
	}
	return false
}

// IsParent reports whether the task has subtasks.
func (t *Task) IsParent() bool {
	return len(t.Subtasks) > 0
}

// RecomputeCompletion re-derives the completion flag of a parent task from
// its subtasks and returns the result. A leaf task keeps its flag.
func (t *Task) RecomputeCompletion() bool {
	if len(t.Subtasks) == 0 {
		return t.Completed
	}
	done := true
	for _, sub := range t.Subtasks {
		if !sub.Completed {
			done = false
			break
		}
	}
	t.Completed = done
	return done
}

// DeepCopy returns an independent copy of the task and its subtree.
// Every node of the copy gets a fresh ID.
func (t *Task) DeepCopy() *Task {
	c := &Task{
		ID:         GenerateID(),
		Title:      t.Title,
		Priority:   t.Priority,
		Recurrence: t.Recurrence,
		Completed:  t.Completed,
	}
	if t.Tags != nil {
		c.Tags = append([]string(nil), t.Tags...)
	}
	if t.Comments != nil {
		c.Comments = append([]string(nil), t.Comments...)
	}
	if t.Due != nil {
		d := *t.Due
		c.Due = &d
	}
	for _, sub := range t.Subtasks {
		c.Subtasks = append(c.Subtasks, sub.DeepCopy())
	}
	return c
}

// NextOccurrence returns the successor of a recurring task, or nil when
// the task does not recur or has no due date. The successor carries the
// same title, priority, tags, recurrence and comments, no subtasks, and a
// due date advanced by the recurrence interval.
func (t *Task) NextOccurrence() *Task {
	days := t.Recurrence.Interval()
	if days == 0 || t.Due == nil {
		return nil
	}
	next := t.DeepCopy()
	next.Subtasks = nil
	next.Completed = false
	due := t.Due.AddDate(0, 0, days)
	next.Due = &due
	return next
}

// GenerateID generates a unique task identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}
