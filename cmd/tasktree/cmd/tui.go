package cmd

import (
	"context"
	"errors"
	"io"
	"os"
	"syscall"

	"github.com/spf13/cobra"

	"tasktree/internal/tui"
	"tasktree/internal/utils"
)

// newTUICmd creates the 'tui' command
func newTUICmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Browse and edit tasks in an interactive terminal interface",
		Long:  "Open a two-pane terminal browser. Press ? inside the interface for key bindings.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			if cfg.NoPrompt || s.jsonOutput() {
				return utils.WrapWithSuggestion(
					errors.New("the interactive interface cannot run in no-prompt or JSON mode"),
					"Use 'tasktree list' and the other subcommands for scripted use",
				)
			}

			opts := tui.Options{
				WatchPath: dataPath(s.settings, s.settings.DefaultBackend, cfg.DataDir),
			}
			// The real terminal is used unless the caller supplied its own input.
			if cfg.Stdin != nil {
				opts.In, opts.Out = cfg.Stdin, stdout
			}

			s.shutdown.HandleSignals(os.Interrupt, syscall.SIGTERM)
			err = tui.Run(s.shutdown.Context(), s.store, opts)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}
