package task

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the boundary encoding of calendar dates.
const DateLayout = "2006-01-02"

// DueSoonDays is the default window, in days, for the due-soon marker.
const DueSoonDays = 3

// ErrInvalidDateFormat is returned for date input that is not YYYY-MM-DD.
var ErrInvalidDateFormat = errors.New("invalid date format")

// ParseDate parses a YYYY-MM-DD date. Empty input returns nil, nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q (use YYYY-MM-DD)", ErrInvalidDateFormat, s)
	}
	return &d, nil
}

// FormatDate formats a date as YYYY-MM-DD, or "" for nil.
func FormatDate(d *time.Time) string {
	if d == nil {
		return ""
	}
	return d.Format(DateLayout)
}

// TruncateDate drops the time-of-day component, keeping the calendar date
// as seen in the value's own location, and returns it at midnight UTC.
func TruncateDate(d *time.Time) *time.Time {
	if d == nil {
		return nil
	}
	t := Date(*d)
	return &t
}

// Date returns the calendar date of t at midnight UTC.
func Date(t time.Time) time.Time {
	y, m, day := t.Date()
	return time.Date(y, m, day, 0, 0, 0, 0, time.UTC)
}

// Urgency is the due-date marker shown next to a task
type Urgency int

const (
	UrgencyNone Urgency = iota
	UrgencyDueSoon
	UrgencyOverdue
)

// String returns the display label of an urgency marker.
func (u Urgency) String() string {
	switch u {
	case UrgencyOverdue:
		return "Overdue"
	case UrgencyDueSoon:
		return "Due soon"
	default:
		return ""
	}
}

// Urgency computes the due-date marker relative to now using the default
// due-soon window.
func (t *Task) Urgency(now time.Time) Urgency {
	return t.UrgencyWithin(now, DueSoonDays)
}

// UrgencyWithin computes the due-date marker relative to now. Only calendar
// dates are compared: a task due today is due soon, not overdue.
func (t *Task) UrgencyWithin(now time.Time, soonDays int) Urgency {
	if t.Due == nil {
		return UrgencyNone
	}
	today := Date(now)
	due := Date(*t.Due)
	if due.Before(today) {
		return UrgencyOverdue
	}
	days := int(due.Sub(today).Hours() / 24)
	if days <= soonDays {
		return UrgencyDueSoon
	}
	return UrgencyNone
}
