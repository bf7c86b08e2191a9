package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"tasktree/internal/cli/prompt"
	"tasktree/internal/history"
	"tasktree/internal/markdown"
	"tasktree/internal/store"
	"tasktree/internal/task"
	"tasktree/internal/utils"
)

// taskJSON is the JSON representation of a task
type taskJSON struct {
	Position   int        `json:"position"`
	ID         string     `json:"id"`
	Title      string     `json:"title"`
	Priority   string     `json:"priority"`
	Tags       []string   `json:"tags"`
	Due        string     `json:"due,omitempty"`
	Recurrence string     `json:"recurrence"`
	Completed  bool       `json:"completed"`
	Urgency    string     `json:"urgency,omitempty"`
	Comments   []string   `json:"comments"`
	Subtasks   []taskJSON `json:"subtasks"`
}

func taskToJSON(position int, t *task.Task, now time.Time, soonDays int) taskJSON {
	out := taskJSON{
		Position:   position,
		ID:         t.ID,
		Title:      t.Title,
		Priority:   string(t.Priority),
		Tags:       append([]string{}, t.Tags...),
		Due:        task.FormatDate(t.Due),
		Recurrence: string(t.Recurrence),
		Completed:  t.Completed,
		Comments:   append([]string{}, t.Comments...),
		Subtasks:   []taskJSON{},
	}
	if !t.Completed {
		out.Urgency = t.UrgencyWithin(now, soonDays).String()
	}
	for i, sub := range t.Subtasks {
		out.Subtasks = append(out.Subtasks, taskToJSON(i+1, sub, now, soonDays))
	}
	return out
}

// actionJSON is the JSON result of a mutating command
type actionJSON struct {
	Action string    `json:"action"`
	Task   *taskJSON `json:"task,omitempty"`
	Next   *taskJSON `json:"next,omitempty"`
	Result string    `json:"result"`
}

func (s *session) outputAction(action string, index int, t, next *task.Task) error {
	now, soon := s.cfg.now(), s.settings.GetDueSoonDays()
	out := actionJSON{Action: action, Result: ResultActionCompleted}
	if t != nil {
		tj := taskToJSON(index+1, t, now, soon)
		out.Task = &tj
	}
	if next != nil {
		nj := taskToJSON(s.store.Len(), next, now, soon)
		out.Next = &nj
	}
	return outputJSON(s.stdout, out)
}

// parseDue parses a --due value. An invalid date is reported as a warning
// and the task is stored without one.
func parseDue(s string, now time.Time) *time.Time {
	due, err := utils.ParseDateFlagAt(s, now)
	if err != nil {
		utils.Warnf("%v", err)
		return nil
	}
	return due
}

// newAddCmd creates the 'add' command
func newAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add [title]",
		Short: "Add a task",
		Long:  "Add a root task. Without a title, the task fields are asked for interactively.",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			priority, _ := cmd.Flags().GetString("priority")
			tags, _ := cmd.Flags().GetStringSlice("tag")
			due, _ := cmd.Flags().GetString("due")
			recur, _ := cmd.Flags().GetString("recur")

			title := strings.Join(args, " ")
			if len(args) == 0 {
				adder := &prompt.InteractiveAdder{Reader: s.in, Writer: stdout, NoPrompt: cfg.NoPrompt}
				fields, err := adder.Run()
				if errors.Is(err, prompt.ErrNoPromptMode) {
					return utils.WrapWithSuggestion(errors.New("a task title is required"), "Usage: tasktree add \"Title\" [-p high] [--due tomorrow]")
				}
				if err != nil {
					return err
				}
				title, priority, due, recur = fields.Title, fields.Priority, fields.DueDate, fields.Recurrence
				tags = prompt.SplitTags(fields.Tags)
			}

			t := task.New(title,
				task.WithPriority(task.ParsePriority(priority)),
				task.WithTags(tags...),
				task.WithDue(parseDue(due, cfg.now())),
				task.WithRecurrence(task.ParseRecurrence(recur)),
			)
			return doAdd(cmd.Context(), s, t)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().StringP("priority", "p", "", "Task priority (high, medium, low)")
	cmd.Flags().StringSlice("tag", nil, "Tag (can be specified multiple times or comma-separated)")
	cmd.Flags().String("due", "", "Due date (YYYY-MM-DD, today, tomorrow, +Nd, +Nw, +Nm)")
	cmd.Flags().String("recur", "", "Recurrence (daily, weekly, none)")
	return cmd
}

// doAdd appends t, asking for confirmation when the title is already taken
func doAdd(ctx context.Context, s *session, t *task.Task) error {
	if s.store.WouldConflict(t.Title) {
		if s.cfg.NoPrompt {
			utils.Warnf("a task titled %q already exists", t.Title)
		} else if !utils.PromptYesNoWithReader(fmt.Sprintf("A task titled %q already exists. Add anyway?", t.Title), s.in, s.stdout) {
			return utils.ErrCancelled()
		}
	}

	_, err := s.store.Add(ctx, t)
	if err := s.check(err); err != nil {
		return err
	}

	index := s.store.Len() - 1
	if s.jsonOutput() {
		return s.outputAction("add", index, t, nil)
	}
	_, _ = fmt.Fprintf(s.stdout, "Added task %d: %s\n", index+1, t.Title)
	s.done(ResultActionCompleted)
	return nil
}

// newListCmd creates the 'list' command
func newListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tasks by priority",
		Long:  "List root tasks ordered by priority, with their subtasks. Positions shown are the ones other commands take.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			tag, _ := cmd.Flags().GetString("tag")
			comments, _ := cmd.Flags().GetBool("comments")
			return doList(s, tag, comments)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("tag", "", "Only show tasks with this tag")
	cmd.Flags().BoolP("comments", "c", false, "Show task comments")
	return cmd
}

func doList(s *session, tag string, comments bool) error {
	items := s.store.ListFiltered(tag)
	now, soon := s.cfg.now(), s.settings.GetDueSoonDays()

	if s.jsonOutput() {
		out := make([]taskJSON, 0, len(items))
		for _, it := range items {
			out = append(out, taskToJSON(it.Index+1, it.Task, now, soon))
		}
		return outputJSON(s.stdout, out)
	}

	if len(items) == 0 {
		if tag != "" {
			_, _ = fmt.Fprintf(s.stdout, "No tasks tagged %q.\n", tag)
		} else {
			_, _ = fmt.Fprintln(s.stdout, "No tasks found. Add one with: tasktree add \"Title\"")
		}
		s.done(ResultInfoOnly)
		return nil
	}

	rendered := make([]markdown.Item, 0, len(items))
	for _, it := range items {
		rendered = append(rendered, markdown.Item{Label: strconv.Itoa(it.Index + 1), Task: it.Task})
	}
	opts := markdown.Options{
		Comments:    comments,
		Now:         now,
		DueSoonDays: soon,
	}
	if isTerminal(s.stdout) {
		opts.Marker = urgencyMarker
	}

	_, _ = fmt.Fprintf(s.stdout, "Tasks (%d):\n\n", len(items))
	_, _ = fmt.Fprint(s.stdout, markdown.Render(rendered, opts))
	s.done(ResultInfoOnly)
	return nil
}

var (
	overdueStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	dueSoonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// urgencyMarker colours urgency markers on a terminal
func urgencyMarker(u task.Urgency) string {
	label := "[" + u.String() + "]"
	if u == task.UrgencyOverdue {
		return overdueStyle.Render(label)
	}
	return dueSoonStyle.Render(label)
}

// newCompleteCmd creates the 'complete' command
func newCompleteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "complete [position]",
		Aliases: []string{"done"},
		Short:   "Complete a task",
		Long:    "Mark a root task completed. Completing a recurring task with a due date schedules its next occurrence.",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			index, err := s.resolvePosition(args, "complete")
			if err != nil {
				return err
			}
			return doComplete(cmd.Context(), s, index)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

func doComplete(ctx context.Context, s *session, index int) error {
	next, err := s.store.Complete(ctx, index)
	if err := s.check(err); err != nil {
		return err
	}
	t, _ := s.store.Get(index)

	if s.jsonOutput() {
		return s.outputAction("complete", index, t, next)
	}
	_, _ = fmt.Fprintf(s.stdout, "Completed task %d: %s\n", index+1, t.Title)
	if next != nil {
		_, _ = fmt.Fprintf(s.stdout, "Next occurrence added as task %d, due %s\n", s.store.Len(), task.FormatDate(next.Due))
	}
	s.done(ResultActionCompleted)
	return nil
}

// newRemoveCmd creates the 'remove' command
func newRemoveCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "remove [position]",
		Aliases: []string{"rm", "delete"},
		Short:   "Remove a task",
		Long:    "Remove a root task together with its subtasks. The removal can be undone.",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			index, err := s.resolvePosition(args, "remove")
			if err != nil {
				return err
			}

			removed, err := s.store.Remove(cmd.Context(), index)
			if err := s.check(err); err != nil {
				return err
			}
			if s.jsonOutput() {
				return s.outputAction("remove", index, removed, nil)
			}
			_, _ = fmt.Fprintf(stdout, "Removed task %d: %s\n", index+1, removed.Title)
			s.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newUndoCmd creates the 'undo' command
func newUndoCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Undo the last add, remove or complete",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			e, err := s.store.Undo(cmd.Context())
			if errors.Is(err, store.ErrNothingToUndo) {
				if s.jsonOutput() {
					return outputJSON(stdout, actionJSON{Action: "undo", Result: ResultInfoOnly})
				}
				_, _ = fmt.Fprintln(stdout, "Nothing to undo.")
				s.done(ResultInfoOnly)
				return nil
			}
			if err := s.check(err); err != nil {
				return err
			}

			if s.jsonOutput() {
				return s.outputAction("undo "+history.Action(e), 0, e.Target(), nil)
			}
			_, _ = fmt.Fprintln(stdout, describeUndo(e))
			s.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// describeUndo returns the message shown after undoing e
func describeUndo(e history.Entry) string {
	switch e := e.(type) {
	case history.Added:
		return fmt.Sprintf("Undid add: %s", e.Task.Title)
	case history.RemovedAt:
		return fmt.Sprintf("Restored task: %s", e.Task.Title)
	case history.Completed:
		return fmt.Sprintf("Reopened task: %s", e.Task.Title)
	default:
		return "Undone."
	}
}

// newEditCmd creates the 'edit' command
func newEditCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "edit <position>",
		Aliases: []string{"update"},
		Short:   "Edit a task",
		Long:    "Change the title, priority, tags, due date or recurrence of a root task. Edits are not undoable.",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			index, err := utils.ParsePosition(args[0])
			if err != nil {
				return err
			}

			var p store.Patch
			flags := cmd.Flags()
			if flags.Changed("title") {
				title, _ := flags.GetString("title")
				p.Title = &title
			}
			if flags.Changed("priority") {
				v, _ := flags.GetString("priority")
				prio := task.ParsePriority(v)
				p.Priority = &prio
			}
			if flags.Changed("tag") {
				tags, _ := flags.GetStringSlice("tag")
				p.Tags = &tags
			}
			if flags.Changed("due") {
				v, _ := flags.GetString("due")
				if strings.TrimSpace(v) == "" {
					p.ClearDue = true
				} else {
					p.Due = parseDue(v, cfg.now())
				}
			}
			if flags.Changed("recur") {
				v, _ := flags.GetString("recur")
				rec := task.ParseRecurrence(v)
				p.Recurrence = &rec
			}

			if err := s.check(s.store.Update(cmd.Context(), index, p)); err != nil {
				return err
			}
			t, _ := s.store.Get(index)
			if s.jsonOutput() {
				return s.outputAction("edit", index, t, nil)
			}
			_, _ = fmt.Fprintf(stdout, "Updated task %d: %s\n", index+1, markdown.FormatTaskText(t))
			s.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("title", "", "New title")
	cmd.Flags().StringP("priority", "p", "", "New priority (high, medium, low)")
	cmd.Flags().StringSlice("tag", nil, "Replace tags (use --tag \"\" to clear)")
	cmd.Flags().String("due", "", "New due date (use \"\" to clear)")
	cmd.Flags().String("recur", "", "New recurrence (daily, weekly, none)")
	return cmd
}
