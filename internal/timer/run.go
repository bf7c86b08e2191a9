package timer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tasktree/internal/utils"
)

// Outcome is the result of a timer run
type Outcome struct {
	Finished  bool          // the countdown ran out
	Remaining time.Duration // time left when the run ended
}

// Options configures a timer run
type Options struct {
	Title       string
	Duration    time.Duration
	Interval    time.Duration // refresh interval; DefaultInterval if zero
	Interactive bool          // run the bubbletea program instead of plain lines
	In          io.Reader
	Out         io.Writer
}

// Run counts down opts.Duration. Cancelling ctx stops the countdown early
// and returns ctx.Err() with the remaining time.
func Run(ctx context.Context, opts Options) (Outcome, error) {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Interactive {
		return runProgram(ctx, opts)
	}
	return RunPlain(ctx, opts.Out, opts.Title, opts.Duration, opts.Interval)
}

func runProgram(ctx context.Context, opts Options) (Outcome, error) {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.In != nil {
		progOpts = append(progOpts, tea.WithInput(opts.In))
	}
	if opts.Out != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Out))
	}

	final, err := tea.NewProgram(New(opts.Title, opts.Duration, opts.Interval), progOpts...).Run()
	if ctx.Err() != nil {
		m, _ := final.(Model)
		return Outcome{Remaining: m.Remaining()}, ctx.Err()
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("timer program failed: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return Outcome{}, errors.New("unexpected timer model type")
	}
	return Outcome{Finished: m.Finished(), Remaining: m.Remaining()}, nil
}

// RunPlain counts down d, writing the remaining time to w every interval.
// It is used when output is not a terminal.
func RunPlain(ctx context.Context, w io.Writer, title string, d, interval time.Duration) (Outcome, error) {
	if w == nil {
		w = io.Discard
	}
	if interval <= 0 {
		interval = DefaultInterval
	}

	_, _ = fmt.Fprintf(w, "Focus: %s (%s)\n", title, FormatRemaining(d))
	utils.Debugf("timer started for %q: %s every %s", title, d, interval)

	deadline := time.Now().Add(d)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	expired := time.NewTimer(d)
	defer expired.Stop()

	for {
		select {
		case <-ctx.Done():
			remaining := time.Until(deadline)
			_, _ = fmt.Fprintf(w, "Stopped with %s left\n", FormatRemaining(remaining))
			return Outcome{Remaining: remaining}, ctx.Err()
		case <-expired.C:
			_, _ = fmt.Fprintln(w, "Time's up!")
			return Outcome{Finished: true}, nil
		case <-ticker.C:
			_, _ = fmt.Fprintf(w, "%s remaining\n", FormatRemaining(time.Until(deadline)))
		}
	}
}
