// Package prompt handles interactive prompts with no-prompt mode support.
// It provides filtered task selection for commands run without a position
// and an interactive add mode with field validation.
package prompt

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tasktree/internal/store"
	"tasktree/internal/task"
	"tasktree/internal/utils"
)

// Sentinel errors for prompt operations.
var (
	ErrSelectionCancelled = errors.New("selection cancelled")
	ErrNoPromptMode       = errors.New("interactive prompts disabled (--no-prompt / -y)")
	ErrNoTasks            = errors.New("no tasks available")
	ErrNoMatches          = errors.New("no tasks match the filter")
)

// TaskSelector lets the user pick a root task by filtering its title.
type TaskSelector struct {
	Items    []store.Item
	Prompt   string
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the task selection prompt.
// If NoPrompt is true, returns ErrNoPromptMode.
// If there is exactly one task, auto-selects it.
// Otherwise, prompts the user to filter and select a task.
func (s *TaskSelector) Run() (store.Item, error) {
	if s.NoPrompt {
		return store.Item{}, ErrNoPromptMode
	}

	if len(s.Items) == 0 {
		return store.Item{}, ErrNoTasks
	}

	if len(s.Items) == 1 {
		return s.Items[0], nil
	}

	writer := s.Writer
	if writer == nil {
		writer = io.Discard
	}
	br := utils.NewLineReader(s.Reader)

	// Step 1: Prompt for filter text
	_, _ = fmt.Fprintf(writer, "%s\nFilter (or press Enter to show all): ", s.Prompt)
	filter, ok := utils.ReadLine(br)
	if !ok {
		return store.Item{}, ErrSelectionCancelled
	}

	// Step 2: Apply filter
	var filtered []store.Item
	if filter == "" {
		filtered = s.Items
	} else {
		filterLower := strings.ToLower(filter)
		for _, it := range s.Items {
			if strings.Contains(strings.ToLower(it.Task.Title), filterLower) {
				filtered = append(filtered, it)
			}
		}
	}

	if len(filtered) == 0 {
		return store.Item{}, ErrNoMatches
	}

	if len(filtered) == 1 {
		_, _ = fmt.Fprintf(writer, "Auto-selected: %s\n", filtered[0].Task.Title)
		return filtered[0], nil
	}

	// Step 3: Display the candidates with their metadata
	for i, it := range filtered {
		_, _ = fmt.Fprintf(writer, "  %d) %s\n", i+1, formatTaskLine(it.Task))
	}

	// Step 4: Prompt for selection number
	_, _ = fmt.Fprintf(writer, "Select (0 to cancel): ")
	input, ok := utils.ReadLine(br)
	if !ok {
		return store.Item{}, ErrSelectionCancelled
	}

	num, err := strconv.Atoi(input)
	if err != nil {
		return store.Item{}, fmt.Errorf("invalid selection: %s", input)
	}
	if num == 0 {
		return store.Item{}, ErrSelectionCancelled
	}
	if num < 1 || num > len(filtered) {
		return store.Item{}, fmt.Errorf("selection out of range: %d", num)
	}

	return filtered[num-1], nil
}

// formatTaskLine formats a task for selection with its state, priority,
// due date, subtask progress and tags.
func formatTaskLine(t *task.Task) string {
	meta := []string{"pending"}
	if t.Completed {
		meta[0] = "done"
	}
	meta = append(meta, string(t.Priority))

	if t.Due != nil {
		meta = append(meta, "due: "+task.FormatDate(t.Due))
	}
	if n := len(t.Subtasks); n > 0 {
		done := 0
		for _, sub := range t.Subtasks {
			if sub.Completed {
				done++
			}
		}
		meta = append(meta, fmt.Sprintf("subtasks: %d/%d", done, n))
	}
	if len(t.Tags) > 0 {
		meta = append(meta, "tags: "+strings.Join(t.Tags, ","))
	}

	return fmt.Sprintf("%s [%s]", t.Title, strings.Join(meta, ", "))
}

// FilterItemsByAction returns the items a selection for action should offer.
// Completing a task or starting a timer on it only makes sense for pending
// tasks; showAll overrides this.
func FilterItemsByAction(items []store.Item, action string, showAll bool) []store.Item {
	pendingOnly := map[string]bool{
		"complete": true,
		"timer":    true,
	}

	if showAll || !pendingOnly[action] {
		result := make([]store.Item, len(items))
		copy(result, items)
		return result
	}

	var filtered []store.Item
	for _, it := range items {
		if !it.Task.Completed {
			filtered = append(filtered, it)
		}
	}
	return filtered
}

// AddFields holds the field values collected during interactive add mode.
type AddFields struct {
	Title      string
	Priority   string
	DueDate    string
	Tags       string
	Recurrence string
}

// InteractiveAdder provides sequential field prompts with validation
// for adding a task when no title is provided.
type InteractiveAdder struct {
	Reader   io.Reader
	Writer   io.Writer
	NoPrompt bool
}

// Run executes the interactive add mode, prompting for each field in turn:
// title (required), priority, due date, tags and recurrence.
func (a *InteractiveAdder) Run() (*AddFields, error) {
	if a.NoPrompt {
		return nil, ErrNoPromptMode
	}

	writer := a.Writer
	if writer == nil {
		writer = io.Discard
	}

	br := utils.NewLineReader(a.Reader)
	fields := &AddFields{}

	for {
		_, _ = fmt.Fprint(writer, "Title (required): ")
		line, ok := utils.ReadLine(br)
		if !ok {
			return nil, errors.New("no input for title")
		}
		fields.Title = line
		if fields.Title != "" {
			break
		}
		_, _ = fmt.Fprintln(writer, "Title cannot be empty.")
	}

	for {
		_, _ = fmt.Fprint(writer, "Priority (high, medium, low, optional): ")
		input, ok := utils.ReadLine(br)
		if !ok || input == "" {
			break
		}
		switch strings.ToLower(input) {
		case "high", "h", "medium", "m", "low", "l":
			fields.Priority = input
		default:
			_, _ = fmt.Fprintln(writer, "Invalid priority: use high, medium or low")
			continue
		}
		break
	}

	for {
		_, _ = fmt.Fprint(writer, "Due date (YYYY-MM-DD, today, tomorrow, +Nd, optional): ")
		input, ok := utils.ReadLine(br)
		if !ok || input == "" {
			break
		}
		if _, err := utils.ParseDateFlag(input); err != nil {
			_, _ = fmt.Fprintf(writer, "Invalid date: %s. Use YYYY-MM-DD, today, tomorrow, +Nd, +Nw, +Nm\n", input)
			continue
		}
		fields.DueDate = input
		break
	}

	_, _ = fmt.Fprint(writer, "Tags (comma-separated, optional): ")
	if line, ok := utils.ReadLine(br); ok {
		fields.Tags = line
	}

	for {
		_, _ = fmt.Fprint(writer, "Recurrence (daily, weekly, none, optional): ")
		input, ok := utils.ReadLine(br)
		if !ok || input == "" {
			break
		}
		switch strings.ToLower(input) {
		case "daily", "d", "weekly", "w", "none":
			fields.Recurrence = input
		default:
			_, _ = fmt.Fprintln(writer, "Invalid recurrence: use daily, weekly or none")
			continue
		}
		break
	}

	return fields, nil
}

// SplitTags splits a comma-separated tag list.
func SplitTags(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}
