package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"tasktree/internal/markdown"
	"tasktree/internal/utils"
)

// newSubtaskCmd creates the 'subtask' command group
func newSubtaskCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subtask",
		Short: "Manage the subtasks of a task",
		Long:  "Add, list and complete subtasks. A task with subtasks is completed once all of them are.",
	}
	cmd.AddCommand(newSubtaskAddCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSubtaskListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSubtaskCompleteCmd(stdout, stderr, cfg))
	return cmd
}

// newSubtaskAddCmd creates the 'subtask add' subcommand
func newSubtaskAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add <position> <title>",
		Short: "Add a subtask",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			parent, err := utils.ParsePosition(args[0])
			if err != nil {
				return err
			}
			title := strings.Join(args[1:], " ")

			conflict, err := s.store.SubtaskConflict(parent, title)
			if err != nil {
				return withSuggestion(err)
			}
			if conflict {
				if cfg.NoPrompt {
					utils.Warnf("a subtask titled %q already exists", strings.TrimSpace(title))
				} else if !utils.PromptYesNoWithReader(fmt.Sprintf("A subtask titled %q already exists. Add anyway?", strings.TrimSpace(title)), s.in, stdout) {
					return utils.ErrCancelled()
				}
			}

			_, err = s.store.AddSubtask(cmd.Context(), parent, title)
			if err := s.check(err); err != nil {
				return err
			}
			subs, _ := s.store.Subtasks(parent)
			sub := subs[len(subs)-1]
			if s.jsonOutput() {
				return outputJSON(stdout, taskToJSON(len(subs), sub, cfg.now(), s.settings.GetDueSoonDays()))
			}
			_, _ = fmt.Fprintf(stdout, "Added subtask %d.%d: %s\n", parent+1, len(subs), sub.Title)
			s.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newSubtaskListCmd creates the 'subtask list' subcommand
func newSubtaskListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list <position>",
		Short: "List the subtasks of a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			parent, err := utils.ParsePosition(args[0])
			if err != nil {
				return err
			}
			t, err := s.store.Get(parent)
			if err != nil {
				return withSuggestion(err)
			}

			if s.jsonOutput() {
				out := make([]taskJSON, 0, len(t.Subtasks))
				for i, sub := range t.Subtasks {
					out = append(out, taskToJSON(i+1, sub, cfg.now(), s.settings.GetDueSoonDays()))
				}
				return outputJSON(stdout, out)
			}

			if len(t.Subtasks) == 0 {
				_, _ = fmt.Fprintf(stdout, "%s has no subtasks.\n", t.Title)
				s.done(ResultInfoOnly)
				return nil
			}
			items := make([]markdown.Item, 0, len(t.Subtasks))
			for i, sub := range t.Subtasks {
				items = append(items, markdown.Item{Label: strconv.Itoa(i + 1), Task: sub})
			}
			_, _ = fmt.Fprintf(stdout, "Subtasks of %s (%d):\n\n", t.Title, len(t.Subtasks))
			_, _ = fmt.Fprint(stdout, markdown.Render(items, markdown.Options{}))
			s.done(ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newSubtaskCompleteCmd creates the 'subtask complete' subcommand
func newSubtaskCompleteCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "complete <position> <subtask>",
		Short: "Complete a subtask",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			parent, err := utils.ParsePosition(args[0])
			if err != nil {
				return err
			}
			sub, err := utils.ParsePosition(args[1])
			if err != nil {
				return err
			}

			if err := s.check(s.store.CompleteSubtask(cmd.Context(), parent, sub)); err != nil {
				return err
			}
			t, _ := s.store.Get(parent)
			if s.jsonOutput() {
				return s.outputAction("complete subtask", parent, t, nil)
			}
			_, _ = fmt.Fprintf(stdout, "Completed subtask %d.%d: %s\n", parent+1, sub+1, t.Subtasks[sub].Title)
			if t.Completed {
				_, _ = fmt.Fprintf(stdout, "All subtasks done, completed task %d: %s\n", parent+1, t.Title)
			}
			s.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCommentCmd creates the 'comment' command group
func newCommentCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "comment",
		Short: "Manage the comments of a task",
	}
	cmd.AddCommand(newCommentAddCmd(stdout, stderr, cfg))
	cmd.AddCommand(newCommentListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newCommentRemoveCmd(stdout, stderr, cfg))
	return cmd
}

// newCommentAddCmd creates the 'comment add' subcommand
func newCommentAddCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "add <position> <text>",
		Short: "Add a comment to a task",
		Args:  cobra.MinimumNArgs(2),
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
			if err := s.check(s.store.AddComment(cmd.Context(), index, strings.Join(args[1:], " "))); err != nil {
				return err
			}
			t, _ := s.store.Get(index)
			if s.jsonOutput() {
				return s.outputAction("comment", index, t, nil)
			}
			_, _ = fmt.Fprintf(stdout, "Added comment %d to task %d: %s\n", len(t.Comments), index+1, t.Title)
			s.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCommentListCmd creates the 'comment list' subcommand
func newCommentListCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "list <position>",
		Short: "List the comments of a task",
		Args:  cobra.ExactArgs(1),
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
			comments, err := s.store.Comments(index)
			if err != nil {
				return withSuggestion(err)
			}

			if s.jsonOutput() {
				if comments == nil {
					comments = []string{}
				}
				return outputJSON(stdout, comments)
			}
			if len(comments) == 0 {
				_, _ = fmt.Fprintln(stdout, "No comments.")
				s.done(ResultInfoOnly)
				return nil
			}
			for i, c := range comments {
				_, _ = fmt.Fprintf(stdout, "%d. %s\n", i+1, c)
			}
			s.done(ResultInfoOnly)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newCommentRemoveCmd creates the 'comment remove' subcommand
func newCommentRemoveCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <position> <comment>",
		Aliases: []string{"rm"},
		Short:   "Remove a comment from a task",
		Args:    cobra.ExactArgs(2),
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
			c, err := utils.ParsePosition(args[1])
			if err != nil {
				return err
			}

			removed, err := s.store.RemoveComment(cmd.Context(), index, c)
			if err := s.check(err); err != nil {
				return err
			}
			if s.jsonOutput() {
				t, _ := s.store.Get(index)
				return s.outputAction("remove comment", index, t, nil)
			}
			_, _ = fmt.Fprintf(stdout, "Removed comment: %s\n", removed)
			s.done(ResultActionCompleted)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
