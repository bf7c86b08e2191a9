// Package notification delivers focus timer notifications through the
// desktop notification system and an append-only log file.
package notification

import (
	"time"
)

// NotificationType identifies the type of notification
type NotificationType string

const (
	NotifyTimerFinished  NotificationType = "timer_finished"
	NotifyTimerCancelled NotificationType = "timer_cancelled"
	NotifyTest           NotificationType = "test"
)

// Notification represents a notification to be sent
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Timestamp time.Time

	// Timer notifications only.
	Task      string
	Duration  time.Duration
	Remaining time.Duration
}

// TimerFinished builds the notification sent when a focus timer on
// taskTitle runs out.
func TimerFinished(taskTitle string, d time.Duration, now time.Time) Notification {
	return Notification{
		Type:      NotifyTimerFinished,
		Title:     "Focus timer finished",
		Message:   "Time's up for \"" + taskTitle + "\" (" + d.String() + ")",
		Timestamp: now,
		Task:      taskTitle,
		Duration:  d,
	}
}

// TimerStopped builds the notification sent when a focus timer on
// taskTitle is stopped with remaining time left.
func TimerStopped(taskTitle string, d, remaining time.Duration, now time.Time) Notification {
	return Notification{
		Type:      NotifyTimerCancelled,
		Title:     "Focus timer stopped",
		Message:   "Stopped \"" + taskTitle + "\" with " + remaining.String() + " left",
		Timestamp: now,
		Task:      taskTitle,
		Duration:  d,
		Remaining: remaining,
	}
}

// NotificationManager is the interface for managing notifications
type NotificationManager interface {
	Send(n Notification) error
	Close() error
	ChannelCount() int
}

// NotificationChannel is the interface for a notification channel
type NotificationChannel interface {
	Send(n Notification) error
	Close() error
}

// Config holds the notification configuration
type Config struct {
	OSNotification  OSNotificationConfig
	LogNotification LogNotificationConfig
}

// OSNotificationConfig holds OS notification configuration
type OSNotificationConfig struct {
	Enabled         bool
	OnTimerFinished bool
}

// LogNotificationConfig holds log notification configuration
type LogNotificationConfig struct {
	Enabled   bool
	Path      string
	MaxSizeMB int // 0 disables rotation
}

// CommandExecutor is the interface for executing system commands
type CommandExecutor interface {
	Execute(cmd string, args ...string) error
}

// MockCommandExecutor is a mock implementation of CommandExecutor for testing
type MockCommandExecutor struct {
	ExecuteFunc func(cmd string, args ...string) error
}

// Execute implements CommandExecutor
func (m *MockCommandExecutor) Execute(cmd string, args ...string) error {
	if m.ExecuteFunc != nil {
		return m.ExecuteFunc(cmd, args...)
	}
	return nil
}

// Option is a functional option for configuring notification channels
type Option func(interface{})

// WithCommandExecutor sets a custom command executor
func WithCommandExecutor(executor CommandExecutor) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.executor = executor
		}
		if mgr, ok := c.(*manager); ok {
			mgr.commandExecutor = executor
		}
	}
}

// WithPlatform sets the platform for OS notifications
func WithPlatform(platform string) Option {
	return func(c interface{}) {
		if ch, ok := c.(*osNotificationChannel); ok {
			ch.platform = platform
		}
		if mgr, ok := c.(*manager); ok {
			mgr.platform = platform
		}
	}
}
