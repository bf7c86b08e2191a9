package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"tasktree/backend"
	"tasktree/backend/jsonfile"
	"tasktree/backend/sqlite"
	"tasktree/internal/cli/prompt"
	"tasktree/internal/config"
	"tasktree/internal/shutdown"
	"tasktree/internal/store"
	"tasktree/internal/utils"
)

// Version is set at build time
var Version = "dev"

// Result codes for CLI output (used in no-prompt mode)
const (
	ResultActionCompleted = "ACTION_COMPLETED"
	ResultInfoOnly        = "INFO_ONLY"
	ResultError           = "ERROR"
)

// teardownTimeout bounds the final save on exit.
const teardownTimeout = 5 * time.Second

// Config holds application configuration
type Config struct {
	NoPrompt     bool
	Verbose      bool
	OutputFormat string
	Backend      string    // Backend name overriding default_backend
	ConfigPath   string    // Path to config file (for testing)
	DataDir      string    // Directory holding the backend files, replacing configured paths (for testing)
	Stdin        io.Reader // Input for prompts; os.Stdin if nil

	NotificationLogPath string // Notification log path (for testing)
	NotificationMock    bool   // Use a mock executor for OS notifications (for testing)

	TimerUnit time.Duration    // Length of one timer minute (for testing)
	Now       func() time.Time // Clock for urgency markers (for testing)
}

func (c *Config) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Execute runs the CLI with the given arguments and IO writers
func Execute(args []string, stdout, stderr io.Writer, cfg *Config) int {
	// Flags only affect this run
	run := Config{}
	if cfg != nil {
		run = *cfg
	}
	cfg = &run
	rootCmd := NewTaskTree(stdout, stderr, cfg)

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	if err := rootCmd.Execute(); err != nil {
		if containsJSONFlag(args) || cfg.OutputFormat == "json" {
			outputErrorJSON(err, stdout)
		} else {
			_, _ = fmt.Fprintln(stderr, "Error:", err)
			// Emit ERROR result code in no-prompt mode
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultError)
			}
		}
		return 1
	}
	return 0
}

// containsJSONFlag checks if args contain --json flag
func containsJSONFlag(args []string) bool {
	for _, arg := range args {
		if arg == "--json" {
			return true
		}
	}
	return false
}

// NewTaskTree creates the root command with injectable IO
func NewTaskTree(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	if cfg == nil {
		cfg = &Config{}
	}

	cmd := &cobra.Command{
		Use:     "tasktree",
		Short:   "A task tree manager with undo",
		Long:    "tasktree tracks tasks and subtasks with priorities, due dates, recurring renewal, comments and an undo history.",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Add global flags
	cmd.PersistentFlags().BoolP("no-prompt", "y", false, "Disable interactive prompts")
	cmd.PersistentFlags().BoolP("verbose", "V", false, "Enable verbose/debug output")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().String("config", "", "Path to config file")
	cmd.PersistentFlags().String("backend", "", "Storage backend to use (json or sqlite)")

	cmd.AddCommand(newAddCmd(stdout, stderr, cfg))
	cmd.AddCommand(newListCmd(stdout, stderr, cfg))
	cmd.AddCommand(newCompleteCmd(stdout, stderr, cfg))
	cmd.AddCommand(newRemoveCmd(stdout, stderr, cfg))
	cmd.AddCommand(newUndoCmd(stdout, stderr, cfg))
	cmd.AddCommand(newEditCmd(stdout, stderr, cfg))
	cmd.AddCommand(newSubtaskCmd(stdout, stderr, cfg))
	cmd.AddCommand(newCommentCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTimerCmd(stdout, stderr, cfg))
	cmd.AddCommand(newTUICmd(stdout, stderr, cfg))
	cmd.AddCommand(newNotificationCmd(stdout, stderr, cfg))
	cmd.AddCommand(newMigrateCmd(stdout, stderr, cfg))
	cmd.AddCommand(newConfigCmd(stdout, stderr, cfg))

	return cmd
}

// applyGlobalFlags copies persistent flag values into cfg
func applyGlobalFlags(cmd *cobra.Command, cfg *Config, stderr io.Writer) {
	if noPrompt, _ := cmd.Flags().GetBool("no-prompt"); noPrompt {
		cfg.NoPrompt = true
	}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		cfg.Verbose = true
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		cfg.OutputFormat = "json"
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg.ConfigPath = path
	}
	if name, _ := cmd.Flags().GetString("backend"); name != "" {
		cfg.Backend = name
	}

	utils.SetOutput(stderr)
	utils.SetVerboseMode(cfg.Verbose)
}

// loadSettings loads the config file and applies flag overrides
func loadSettings(cmd *cobra.Command, cfg *Config, stderr io.Writer) (*config.Config, error) {
	applyGlobalFlags(cmd, cfg, stderr)

	settings, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	settings.ApplyFlags(cfg.NoPrompt, cfg.OutputFormat, cfg.Backend)
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	cfg.NoPrompt = settings.NoPrompt
	cfg.OutputFormat = settings.OutputFormat
	utils.Debugf("using %s backend", settings.DefaultBackend)
	return settings, nil
}

// dataPath returns the storage file of the named backend
func dataPath(settings *config.Config, name, dataDir string) string {
	path := settings.GetBackendPath(name)
	if dataDir != "" {
		path = filepath.Join(dataDir, filepath.Base(path))
	}
	return path
}

// openGateway opens the named storage backend
func openGateway(settings *config.Config, name, dataDir string) (backend.Gateway, error) {
	path := dataPath(settings, name, dataDir)

	switch name {
	case config.BackendJSON:
		return jsonfile.New(jsonfile.Config{FilePath: path})
	case config.BackendSQLite:
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		return sqlite.New(path)
	default:
		return nil, utils.ErrBackendNotConfigured(name)
	}
}

// session is one command run against the task store
type session struct {
	cfg      *Config
	settings *config.Config
	store    *store.Store
	stdout   io.Writer
	in       *bufio.Reader
	shutdown *shutdown.Manager
}

// openSession loads settings and the task store. The store is saved and
// closed by finish.
func openSession(cmd *cobra.Command, cfg *Config, stdout, stderr io.Writer) (*session, error) {
	settings, err := loadSettings(cmd, cfg, stderr)
	if err != nil {
		return nil, err
	}

	gw, err := openGateway(settings, settings.DefaultBackend, cfg.DataDir)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	st, err := store.New(ctx, gw,
		store.WithHistoryLimit(settings.GetHistoryLimit()),
		store.WithClock(cfg.now),
		store.WithDueSoonDays(settings.GetDueSoonDays()),
	)
	if err != nil {
		_ = gw.Close()
		return nil, err
	}

	in := cfg.Stdin
	if in == nil {
		in = os.Stdin
	}

	s := &session{
		cfg:      cfg,
		settings: settings,
		store:    st,
		stdout:   stdout,
		in:       utils.NewLineReader(in),
		shutdown: shutdown.NewManager(),
	}
	s.shutdown.RegisterCleanup("task store", st.Close)
	return s, nil
}

// finish runs the final save and releases the backend. A failed final save
// is reported but does not fail the command.
func (s *session) finish() {
	s.shutdown.Shutdown()
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := s.shutdown.Wait(ctx); err != nil {
		utils.Warnf("final save failed: %v", err)
	}
}

func (s *session) jsonOutput() bool {
	return s.cfg.OutputFormat == "json"
}

// check turns a save failure into a warning: the change was applied but may
// not have reached storage.
func (s *session) check(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrPersistence) {
		utils.Warnf("%v; the change may be lost", err)
		return nil
	}
	return withSuggestion(err)
}

// done prints the result code of a successful action in no-prompt mode
func (s *session) done(code string) {
	if s.cfg.NoPrompt && !s.jsonOutput() {
		_, _ = fmt.Fprintln(s.stdout, code)
	}
}

// withSuggestion attaches a hint to store errors
func withSuggestion(err error) error {
	switch {
	case errors.Is(err, store.ErrIndexOutOfRange):
		return utils.ErrPositionOutOfRange(err)
	case errors.Is(err, store.ErrPendingSubtasks):
		return utils.ErrSubtasksPending(err)
	}
	return err
}

// resolvePosition returns the 0-based root index named by args[0], or asks
// the user to pick a task when no position was given.
func (s *session) resolvePosition(args []string, action string) (int, error) {
	if len(args) > 0 {
		return utils.ParsePosition(args[0])
	}

	selector := &prompt.TaskSelector{
		Items:    prompt.FilterItemsByAction(s.store.ListFiltered(""), action, false),
		Prompt:   fmt.Sprintf("Select task to %s:", action),
		Reader:   s.in,
		Writer:   s.stdout,
		NoPrompt: s.cfg.NoPrompt,
	}
	item, err := selector.Run()
	if errors.Is(err, prompt.ErrNoPromptMode) {
		return 0, utils.WrapWithSuggestion(
			errors.New("a task position is required"),
			"Pass the position shown by 'tasktree list', or run without --no-prompt to pick a task",
		)
	}
	if errors.Is(err, prompt.ErrSelectionCancelled) {
		return 0, utils.ErrCancelled()
	}
	if err != nil {
		return 0, err
	}
	return item.Index, nil
}

// isTerminal reports whether w is an interactive terminal
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// outputJSON writes v as a single JSON line
func outputJSON(stdout io.Writer, v interface{}) error {
	jsonBytes, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(stdout, string(jsonBytes))
	return nil
}

// outputErrorJSON writes an error as JSON
func outputErrorJSON(err error, stdout io.Writer) {
	type errorJSON struct {
		Error      string `json:"error"`
		Suggestion string `json:"suggestion,omitempty"`
		Result     string `json:"result"`
	}
	out := errorJSON{Error: err.Error(), Result: ResultError}
	var ews *utils.ErrorWithSuggestion
	if errors.As(err, &ews) {
		out.Error = ews.Err.Error()
		out.Suggestion = ews.Suggestion
	}
	_ = outputJSON(stdout, out)
}
