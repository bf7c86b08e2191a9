package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"tasktree/internal/config"
	"tasktree/internal/migrate"
	"tasktree/internal/utils"
)

// newMigrateCmd creates the 'migrate' command
func newMigrateCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Copy tasks and undo history between backends",
		Long:  "Copy the whole task tree and its undo history from one storage backend to another. The target must be empty unless --force is given.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, cfg, stderr)
			if err != nil {
				return err
			}

			from, _ := cmd.Flags().GetString("from")
			to, _ := cmd.Flags().GetString("to")
			force, _ := cmd.Flags().GetBool("force")
			skipHistory, _ := cmd.Flags().GetBool("skip-history")

			if from == to {
				return utils.WrapWithSuggestion(
					fmt.Errorf("source and target are both %q", from),
					"Use --from json --to sqlite or --from sqlite --to json",
				)
			}

			src, err := openGateway(settings, from, cfg.DataDir)
			if err != nil {
				return err
			}
			defer func() { _ = src.Close() }()

			dst, err := openGateway(settings, to, cfg.DataDir)
			if err != nil {
				return err
			}
			defer func() { _ = dst.Close() }()

			res, err := migrate.Copy(cmd.Context(), src, dst, migrate.Options{Force: force, SkipHistory: skipHistory})
			if errors.Is(err, migrate.ErrTargetNotEmpty) {
				return utils.WrapWithSuggestion(err, "Use --force to overwrite the target backend")
			}
			if err != nil {
				return err
			}

			if cfg.OutputFormat == "json" {
				type migrateJSON struct {
					From     string `json:"from"`
					To       string `json:"to"`
					Tasks    int    `json:"tasks"`
					Subtasks int    `json:"subtasks"`
					History  int    `json:"history"`
					Result   string `json:"result"`
				}
				return outputJSON(stdout, migrateJSON{from, to, res.Tasks, res.Subtasks, res.History, ResultActionCompleted})
			}

			_, _ = fmt.Fprintf(stdout, "Migrated %d task(s) (%d subtasks, %d history entries) from %s to %s\n",
				res.Tasks, res.Subtasks, res.History, from, to)
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().String("from", config.BackendJSON, "Source backend (json or sqlite)")
	cmd.Flags().String("to", config.BackendSQLite, "Target backend (json or sqlite)")
	cmd.Flags().Bool("force", false, "Overwrite a target that already holds tasks")
	cmd.Flags().Bool("skip-history", false, "Do not copy the undo history")
	return cmd
}

// newConfigCmd creates the 'config' command group
func newConfigCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyGlobalFlags(cmd, cfg, stderr)
			path := cfg.ConfigPath
			if path == "" {
				path = config.DefaultConfigPath()
			}
			_, _ = fmt.Fprintln(stdout, path)
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			if cfg.OutputFormat == "json" {
				return outputJSON(stdout, settings)
			}
			out, err := yaml.Marshal(settings)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(stdout, string(out))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return cmd
}
