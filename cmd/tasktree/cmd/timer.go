package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tasktree/internal/config"
	"tasktree/internal/notification"
	"tasktree/internal/timer"
	"tasktree/internal/utils"
)

// newTimerCmd creates the 'timer' command
func newTimerCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timer [position]",
		Short: "Run a focus timer on a task",
		Long:  "Count down a focus session for a task and send a notification when it ends. On a terminal the timer is interactive; press q or Ctrl+C to stop early.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, cfg, stdout, stderr)
			if err != nil {
				return err
			}
			defer s.finish()

			index, err := s.resolvePosition(args, "timer")
			if err != nil {
				return err
			}
			t, err := s.store.Get(index)
			if err != nil {
				return withSuggestion(err)
			}

			minutes := s.settings.GetTimerMinutes()
			if cmd.Flags().Changed("minutes") {
				minutes, _ = cmd.Flags().GetInt("minutes")
			}
			if err := utils.ValidateTimerMinutes(minutes); err != nil {
				return err
			}

			unit := cfg.TimerUnit
			if unit <= 0 {
				unit = time.Minute
			}
			opts := timer.Options{
				Title:       t.Title,
				Duration:    time.Duration(minutes) * unit,
				Interval:    unit / 60,
				Interactive: isTerminal(stdout) && !cfg.NoPrompt && !s.jsonOutput(),
				Out:         stdout,
			}
			if cfg.Stdin != nil {
				opts.In = cfg.Stdin
			}

			s.shutdown.HandleSignals(os.Interrupt, syscall.SIGTERM)
			outcome, err := timer.Run(s.shutdown.Context(), opts)
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return reportTimer(s, t.Title, opts.Duration, outcome)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.Flags().IntP("minutes", "m", 0, "Timer length in minutes (default from timer.default_minutes)")
	return cmd
}

// reportTimer prints the timer outcome and sends the matching notification
func reportTimer(s *session, title string, d time.Duration, outcome timer.Outcome) error {
	n := notification.TimerFinished(title, d, time.Now())
	if !outcome.Finished {
		n = notification.TimerStopped(title, d, outcome.Remaining, time.Now())
	}

	mgr := newNotificationManager(s.cfg, s.settings)
	if err := mgr.Send(n); err != nil {
		utils.Warnf("failed to send notification: %v", err)
	}
	_ = mgr.Close()

	if s.jsonOutput() {
		type timerJSON struct {
			Task      string `json:"task"`
			Finished  bool   `json:"finished"`
			Remaining string `json:"remaining"`
			Result    string `json:"result"`
		}
		return outputJSON(s.stdout, timerJSON{
			Task:      title,
			Finished:  outcome.Finished,
			Remaining: timer.FormatRemaining(outcome.Remaining),
			Result:    ResultActionCompleted,
		})
	}
	if outcome.Finished {
		_, _ = fmt.Fprintf(s.stdout, "Focus session finished: %s\n", title)
	} else {
		_, _ = fmt.Fprintf(s.stdout, "Focus session stopped with %s left: %s\n", timer.FormatRemaining(outcome.Remaining), title)
	}
	s.done(ResultActionCompleted)
	return nil
}

// newNotificationManager builds the notification channels enabled in settings
func newNotificationManager(cfg *Config, settings *config.Config) notification.NotificationManager {
	logPath := settings.Notification.LogPath
	if cfg.NotificationLogPath != "" {
		logPath = cfg.NotificationLogPath
	}

	ncfg := &notification.Config{
		OSNotification: notification.OSNotificationConfig{
			Enabled:         settings.IsOSNotificationEnabled(),
			OnTimerFinished: true,
		},
		LogNotification: notification.LogNotificationConfig{
			Enabled: settings.IsLogNotificationEnabled() || cfg.NotificationLogPath != "",
			Path:    logPath,
		},
	}

	var opts []notification.Option
	if cfg.NotificationMock {
		opts = append(opts, notification.WithCommandExecutor(&notification.MockCommandExecutor{}))
	}
	return notification.NewManager(ncfg, opts...)
}

// notificationLogPath returns the log file used by the log channel
func notificationLogPath(cfg *Config, settings *config.Config) string {
	if cfg.NotificationLogPath != "" {
		return cfg.NotificationLogPath
	}
	return settings.Notification.LogPath
}

// newNotificationCmd creates the 'notification' command group
func newNotificationCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notification",
		Short: "Test notifications and inspect the notification log",
	}
	cmd.AddCommand(newNotificationTestCmd(stdout, stderr, cfg))
	cmd.AddCommand(newNotificationLogCmd(stdout, stderr, cfg))
	return cmd
}

// newNotificationTestCmd creates the 'notification test' subcommand
func newNotificationTestCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, cfg, stderr)
			if err != nil {
				return err
			}

			mgr := newNotificationManager(cfg, settings)
			defer func() { _ = mgr.Close() }()

			if mgr.ChannelCount() == 0 {
				_, _ = fmt.Fprintln(stdout, "All notification channels are disabled.")
				if cfg.NoPrompt {
					_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
				}
				return nil
			}

			err = mgr.Send(notification.Notification{
				Type:      notification.NotifyTest,
				Title:     "tasktree",
				Message:   "Test notification",
				Timestamp: time.Now(),
			})
			if err != nil {
				return fmt.Errorf("failed to send test notification: %w", err)
			}

			_, _ = fmt.Fprintf(stdout, "Test notification sent to %d channel(s)\n", mgr.ChannelCount())
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// newNotificationLogCmd creates the 'notification log' subcommand
func newNotificationLogCmd(stdout, stderr io.Writer, cfg *Config) *cobra.Command {
	logCmd := &cobra.Command{
		Use:   "log",
		Short: "Show the notification log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, cfg, stderr)
			if err != nil {
				return err
			}

			entries, err := notification.ReadLog(notificationLogPath(cfg, settings))
			if err != nil {
				return fmt.Errorf("failed to read notification log: %w", err)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(stdout, "No notifications logged.")
			}
			for _, e := range entries {
				_, _ = fmt.Fprintln(stdout, e.String())
			}
			if sessions, focused := notification.Summarize(entries); sessions > 0 {
				_, _ = fmt.Fprintf(stdout, "Focused %s over %d session(s)\n", focused, sessions)
			}
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultInfoOnly)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	logCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Clear the notification log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd, cfg, stderr)
			if err != nil {
				return err
			}
			if err := notification.ClearLog(notificationLogPath(cfg, settings)); err != nil {
				return fmt.Errorf("failed to clear notification log: %w", err)
			}
			_, _ = fmt.Fprintln(stdout, "Notification log cleared.")
			if cfg.NoPrompt {
				_, _ = fmt.Fprintln(stdout, ResultActionCompleted)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	})

	return logCmd
}
