package utils

import (
	"errors"
	"fmt"
)

// ErrorWithSuggestion wraps an error with a user-friendly suggestion.
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface.
func (e *ErrorWithSuggestion) Error() string {
	return fmt.Sprintf("%s\n\nSuggestion: %s", e.Err.Error(), e.Suggestion)
}

// GetSuggestion returns the suggestion text.
func (e *ErrorWithSuggestion) GetSuggestion() string {
	return e.Suggestion
}

// Unwrap returns the underlying error for error chain support.
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// WrapWithSuggestion wraps an existing error with a suggestion.
func WrapWithSuggestion(err error, suggestion string) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// ErrInvalidDate returns an error for an invalid date string.
func ErrInvalidDate(dateStr string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid date: %s", dateStr),
		Suggestion: "Use date format YYYY-MM-DD (e.g., 2026-01-15), today, tomorrow or +Nd/+Nw/+Nm",
	}
}

// ErrInvalidPosition returns an error for a task position that is not a
// positive number.
func ErrInvalidPosition(arg string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid position: %s", arg),
		Suggestion: "Positions are the numbers shown by 'tasktree list', starting at 1",
	}
}

// ErrPositionOutOfRange wraps an out-of-range store error.
func ErrPositionOutOfRange(err error) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: "Run 'tasktree list' to see valid task positions",
	}
}

// ErrSubtasksPending wraps a pending-subtasks store error.
func ErrSubtasksPending(err error) error {
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: "Complete the remaining subtasks first with 'tasktree subtask complete'",
	}
}

// ErrBackendNotConfigured returns an error when a backend is not configured.
func ErrBackendNotConfigured(name string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("backend not configured: %s", name),
		Suggestion: "Set default_backend to 'json' or 'sqlite' in your config file",
	}
}

// ErrCancelled returns an error when the user declines a confirmation.
func ErrCancelled() error {
	return &ErrorWithSuggestion{
		Err:        errors.New("operation cancelled"),
		Suggestion: "Use --no-prompt (-y) to accept duplicate titles without asking",
	}
}
