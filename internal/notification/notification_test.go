package notification_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tasktree/internal/notification"
)

type recordingExecutor struct {
	cmds [][]string
	err  error
}

func (r *recordingExecutor) Execute(cmd string, args ...string) error {
	r.cmds = append(r.cmds, append([]string{cmd}, args...))
	return r.err
}

func sampleNotification() notification.Notification {
	return notification.TimerFinished("Write report", 25*time.Minute, time.Date(2026, 1, 16, 10, 30, 0, 0, time.UTC))
}

func TestTimerFinished(t *testing.T) {
	n := sampleNotification()
	if n.Type != notification.NotifyTimerFinished {
		t.Errorf("Type = %q, want %q", n.Type, notification.NotifyTimerFinished)
	}
	if !strings.Contains(n.Message, `"Write report"`) || !strings.Contains(n.Message, "25m0s") {
		t.Errorf("Message = %q", n.Message)
	}
}

// TestOSNotificationPlatforms verifies the command used on each platform
func TestOSNotificationPlatforms(t *testing.T) {
	tests := []struct {
		platform string
		cmd      string
		contains string
	}{
		{"linux", "notify-send", "Focus timer finished"},
		{"darwin", "osascript", "display notification"},
		{"windows", "powershell", "BalloonTipTitle"},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			exec := &recordingExecutor{}
			ch := notification.NewOSNotificationChannel(
				&notification.OSNotificationConfig{Enabled: true, OnTimerFinished: true},
				notification.WithCommandExecutor(exec),
				notification.WithPlatform(tt.platform),
			)

			if err := ch.Send(sampleNotification()); err != nil {
				t.Fatalf("Send() error = %v", err)
			}
			if len(exec.cmds) != 1 || exec.cmds[0][0] != tt.cmd {
				t.Fatalf("executed %v, want %s", exec.cmds, tt.cmd)
			}
			if args := strings.Join(exec.cmds[0][1:], " "); !strings.Contains(args, tt.contains) {
				t.Errorf("args %q should contain %q", args, tt.contains)
			}
		})
	}
}

// TestOSNotificationEscaping verifies quotes in task titles cannot break out of scripts
func TestOSNotificationEscaping(t *testing.T) {
	exec := &recordingExecutor{}
	ch := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true},
		notification.WithCommandExecutor(exec),
		notification.WithPlatform("darwin"),
	)
	n := notification.Notification{Type: notification.NotifyTest, Title: `a"b`, Message: `c\d`}
	if err := ch.Send(n); err != nil {
		t.Fatal(err)
	}
	script := exec.cmds[0][2]
	if !strings.Contains(script, `a\"b`) || !strings.Contains(script, `c\\d`) {
		t.Errorf("script not escaped: %s", script)
	}
}

func TestOSNotificationUnsupportedPlatform(t *testing.T) {
	ch := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true},
		notification.WithCommandExecutor(&recordingExecutor{}),
		notification.WithPlatform("plan9"),
	)
	if err := ch.Send(notification.Notification{Type: notification.NotifyTest}); err == nil {
		t.Error("expected error for unsupported platform")
	}
}

// TestNotificationTypeFiltering verifies types are filtered based on config
func TestNotificationTypeFiltering(t *testing.T) {
	exec := &recordingExecutor{}
	ch := notification.NewOSNotificationChannel(
		&notification.OSNotificationConfig{Enabled: true, OnTimerFinished: false},
		notification.WithCommandExecutor(exec),
		notification.WithPlatform("linux"),
	)

	for _, typ := range []notification.NotificationType{
		notification.NotifyTimerFinished,
		notification.NotifyTimerCancelled,
		notification.NotifyTest,
	} {
		if err := ch.Send(notification.Notification{Type: typ, Title: string(typ)}); err != nil {
			t.Fatalf("Send(%s) error = %v", typ, err)
		}
	}

	if len(exec.cmds) != 1 || exec.cmds[0][2] != string(notification.NotifyTest) {
		t.Errorf("only the test notification should be sent, got %v", exec.cmds)
	}
}

// TestLogNotification verifies a finished session is written as one line
// with the task and planned duration as fields
func TestLogNotification(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "notifications.log")
	ch := notification.NewLogNotificationChannel(&notification.LogNotificationConfig{Enabled: true, Path: logPath})
	defer func() { _ = ch.Close() }()

	if err := ch.Send(sampleNotification()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	raw, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	want := `2026-01-16T10:30:00Z [TIMER_FINISHED] task="Write report" planned=25m0s` + "\n"
	if string(raw) != want {
		t.Errorf("log = %q, want %q", raw, want)
	}

	entries, err := notification.ReadLog(logPath)
	if err != nil {
		t.Fatalf("ReadLog() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Task != "Write report" || e.Planned != 25*time.Minute || !e.IsSession() {
		t.Errorf("entry = %+v", e)
	}
}

// TestParseEntry verifies every line shape written by the log channel
func TestParseEntry(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    notification.Entry
		wantErr bool
	}{
		{
			name: "finished",
			line: `2026-01-16T10:30:00Z [TIMER_FINISHED] task="Write report" planned=25m0s`,
			want: notification.Entry{Type: notification.NotifyTimerFinished, Task: "Write report", Planned: 25 * time.Minute},
		},
		{
			name: "stopped with quoted title",
			line: `2026-01-16T10:30:00Z [TIMER_CANCELLED] task="Read \"Dune\" = fun" planned=25m0s remaining=10m0s`,
			want: notification.Entry{Type: notification.NotifyTimerCancelled, Task: `Read "Dune" = fun`, Planned: 25 * time.Minute, Remaining: 10 * time.Minute},
		},
		{
			name: "test message",
			line: `2026-01-16T10:30:00Z [TEST] message="Test notification"`,
			want: notification.Entry{Type: notification.NotifyTest, Message: "Test notification"},
		},
		{name: "no type", line: "2026-01-16T10:30:00Z hello", wantErr: true},
		{name: "bad time", line: "yesterday [TEST] message=\"x\"", wantErr: true},
		{name: "bad duration", line: `2026-01-16T10:30:00Z [TIMER_FINISHED] task="x" planned=soon`, wantErr: true},
		{name: "unterminated quote", line: `2026-01-16T10:30:00Z [TIMER_FINISHED] task="x planned=1m`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := notification.ParseEntry(tt.line)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseEntry() = %+v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEntry() error = %v", err)
			}
			got.Time = time.Time{}
			if got != tt.want {
				t.Errorf("ParseEntry() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

// TestSessionSummary verifies stopped sessions count only the time spent
func TestSessionSummary(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "notifications.log")
	ch := notification.NewLogNotificationChannel(&notification.LogNotificationConfig{Enabled: true, Path: logPath})
	now := time.Date(2026, 1, 16, 10, 30, 0, 0, time.UTC)

	for _, n := range []notification.Notification{
		notification.TimerFinished("Write report", 25*time.Minute, now),
		notification.TimerStopped("Review PR", 25*time.Minute, 10*time.Minute, now),
		{Type: notification.NotifyTest, Message: "Test notification", Timestamp: now},
	} {
		if err := ch.Send(n); err != nil {
			t.Fatal(err)
		}
	}
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("garbage line\n")
	_ = f.Close()

	entries, err := notification.ReadLog(logPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 3 {
		t.Fatalf("ReadLog() returned %d entries, want 3", len(entries))
	}
	sessions, focused := notification.Summarize(entries)
	if sessions != 2 || focused != 40*time.Minute {
		t.Errorf("Summarize() = %d, %s, want 2, 40m0s", sessions, focused)
	}
	if s := entries[1].String(); !strings.Contains(s, "stopped") || !strings.Contains(s, "15m0s/25m0s") || !strings.Contains(s, "Review PR") {
		t.Errorf("String() = %q", s)
	}
}

// TestLogRotation verifies an oversized log is moved aside before writing
func TestLogRotation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "notifications.log")
	big := strings.Repeat("x", 1024*1024+1)
	if err := os.WriteFile(logPath, []byte(big), 0644); err != nil {
		t.Fatal(err)
	}

	ch := notification.NewLogNotificationChannel(&notification.LogNotificationConfig{Enabled: true, Path: logPath, MaxSizeMB: 1})
	defer func() { _ = ch.Close() }()
	if err := ch.Send(sampleNotification()); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(logPath + ".old"); err != nil {
		t.Errorf("rotated file missing: %v", err)
	}
	entries, _ := notification.ReadLog(logPath)
	if len(entries) != 1 {
		t.Errorf("new log should hold 1 entry, got %d", len(entries))
	}
}

func TestReadAndClearLogMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "none.log")
	entries, err := notification.ReadLog(path)
	if err != nil || entries != nil {
		t.Errorf("ReadLog(missing) = %v, %v, want nil, nil", entries, err)
	}
	if err := notification.ClearLog(path); err != nil {
		t.Errorf("ClearLog(missing) error = %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("ClearLog should not create a missing file")
	}
}

// TestNotificationConfig verifies configuration enables/disables channels
func TestNotificationConfig(t *testing.T) {
	tests := []struct {
		name             string
		osEnabled        bool
		logEnabled       bool
		expectedChannels int
	}{
		{"both enabled", true, true, 2},
		{"only os enabled", true, false, 1},
		{"only log enabled", false, true, 1},
		{"both disabled", false, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &notification.Config{
				OSNotification:  notification.OSNotificationConfig{Enabled: tt.osEnabled, OnTimerFinished: true},
				LogNotification: notification.LogNotificationConfig{Enabled: tt.logEnabled, Path: filepath.Join(t.TempDir(), "n.log")},
			}
			m := notification.NewManager(cfg, notification.WithCommandExecutor(&recordingExecutor{}))
			defer func() { _ = m.Close() }()

			if got := m.ChannelCount(); got != tt.expectedChannels {
				t.Errorf("expected %d channels, got %d", tt.expectedChannels, got)
			}
			if err := m.Send(sampleNotification()); err != nil {
				t.Errorf("Send() error = %v", err)
			}
		})
	}
}

// TestManagerJoinsErrors verifies a failing channel does not stop the others
func TestManagerJoinsErrors(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "n.log")
	boom := errors.New("notify-send missing")
	cfg := &notification.Config{
		OSNotification:  notification.OSNotificationConfig{Enabled: true, OnTimerFinished: true},
		LogNotification: notification.LogNotificationConfig{Enabled: true, Path: logPath},
	}
	m := notification.NewManager(cfg,
		notification.WithCommandExecutor(&recordingExecutor{err: boom}),
		notification.WithPlatform("linux"),
	)
	defer func() { _ = m.Close() }()

	if err := m.Send(sampleNotification()); !errors.Is(err, boom) {
		t.Errorf("Send() error = %v, want %v", err, boom)
	}
	if entries, _ := notification.ReadLog(logPath); len(entries) != 1 {
		t.Error("log channel should still receive the notification")
	}
}
