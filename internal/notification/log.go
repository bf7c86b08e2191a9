package notification

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"tasktree/internal/utils"
)

const logTimeFormat = "2006-01-02T15:04:05Z"

// sessionLog appends one line per notification. Timer notifications carry
// the task and durations as key=value fields, so the file is also the record
// of past focus sessions:
//
//	2026-01-16T10:30:00Z [TIMER_FINISHED] task="Write report" planned=25m0s
//	2026-01-16T11:10:00Z [TIMER_CANCELLED] task="Review PR" planned=25m0s remaining=10m0s
type sessionLog struct {
	path     string
	maxBytes int64
	mu       sync.Mutex
}

// NewLogNotificationChannel creates the session log channel
func NewLogNotificationChannel(cfg *LogNotificationConfig) NotificationChannel {
	return &sessionLog{
		path:     cfg.Path,
		maxBytes: int64(cfg.MaxSizeMB) * 1024 * 1024,
	}
}

// Send appends n to the log, rotating the file first when it is too large
func (l *sessionLog) Send(n Notification) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := l.rotate(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	if _, err := f.WriteString(formatEntry(n) + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write notification: %w", err)
	}
	return f.Close()
}

// rotate moves the current file to <path>.old once it reaches maxBytes
func (l *sessionLog) rotate() error {
	if l.maxBytes <= 0 {
		return nil
	}
	info, err := os.Stat(l.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < l.maxBytes {
		return nil
	}
	if err := os.Rename(l.path, l.path+".old"); err != nil {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	return nil
}

// Close is a no-op; the file is opened per entry.
func (l *sessionLog) Close() error {
	return nil
}

func formatEntry(n Notification) string {
	var b strings.Builder
	b.WriteString(n.Timestamp.UTC().Format(logTimeFormat))
	b.WriteString(" [" + strings.ToUpper(string(n.Type)) + "]")
	if n.Task == "" {
		b.WriteString(" message=" + strconv.Quote(n.Message))
		return b.String()
	}
	b.WriteString(" task=" + strconv.Quote(n.Task))
	b.WriteString(" planned=" + n.Duration.String())
	if n.Type == NotifyTimerCancelled {
		b.WriteString(" remaining=" + n.Remaining.String())
	}
	return b.String()
}

// Entry is one line of the session log
type Entry struct {
	Time      time.Time
	Type      NotificationType
	Task      string
	Planned   time.Duration
	Remaining time.Duration
	Message   string
}

// IsSession reports whether the entry records a focus timer run
func (e Entry) IsSession() bool {
	return e.Type == NotifyTimerFinished || e.Type == NotifyTimerCancelled
}

// Focused returns how much of the planned time was spent
func (e Entry) Focused() time.Duration {
	return e.Planned - e.Remaining
}

// String renders the entry for `notification log`
func (e Entry) String() string {
	stamp := e.Time.Local().Format("2006-01-02 15:04")
	switch e.Type {
	case NotifyTimerFinished:
		return fmt.Sprintf("%s  finished  %-12s %s", stamp, e.Planned, e.Task)
	case NotifyTimerCancelled:
		return fmt.Sprintf("%s  stopped   %-12s %s", stamp, e.Focused().String()+"/"+e.Planned.String(), e.Task)
	default:
		return fmt.Sprintf("%s  %-9s %s", stamp, string(e.Type), e.Message)
	}
}

// ParseEntry reads a line written by the session log
func ParseEntry(line string) (Entry, error) {
	stamp, rest, ok := strings.Cut(line, " [")
	if !ok {
		return Entry{}, fmt.Errorf("malformed log line: %q", line)
	}
	ts, err := time.Parse(logTimeFormat, stamp)
	if err != nil {
		return Entry{}, fmt.Errorf("malformed log time in %q: %w", line, err)
	}
	typ, fields, ok := strings.Cut(rest, "]")
	if !ok {
		return Entry{}, fmt.Errorf("malformed log line: %q", line)
	}

	e := Entry{Time: ts, Type: NotificationType(strings.ToLower(typ))}
	fields = strings.TrimSpace(fields)
	for fields != "" {
		key, val, ok := strings.Cut(fields, "=")
		if !ok {
			return Entry{}, fmt.Errorf("malformed field in %q", line)
		}

		var raw string
		if strings.HasPrefix(val, `"`) {
			quoted, err := strconv.QuotedPrefix(val)
			if err != nil {
				return Entry{}, fmt.Errorf("malformed %s in %q: %w", key, line, err)
			}
			raw, _ = strconv.Unquote(quoted)
			val = val[len(quoted):]
		} else {
			raw, val, _ = strings.Cut(val, " ")
		}
		fields = strings.TrimSpace(val)

		switch key {
		case "task":
			e.Task = raw
		case "message":
			e.Message = raw
		case "planned":
			e.Planned, err = time.ParseDuration(raw)
		case "remaining":
			e.Remaining, err = time.ParseDuration(raw)
		}
		if err != nil {
			return Entry{}, fmt.Errorf("malformed %s in %q: %w", key, line, err)
		}
	}
	return e, nil
}

// ReadLog returns the entries of the log at path. Lines that do not parse
// are skipped. A missing file yields no entries.
func ReadLog(path string) ([]Entry, error) {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = file.Close() }()

	var entries []Entry
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if strings.TrimSpace(scanner.Text()) == "" {
			continue
		}
		e, err := ParseEntry(scanner.Text())
		if err != nil {
			utils.Debugf("skipping log line: %v", err)
			continue
		}
		entries = append(entries, e)
	}
	return entries, scanner.Err()
}

// Summarize counts focus sessions and the total time spent in them
func Summarize(entries []Entry) (sessions int, focused time.Duration) {
	for _, e := range entries {
		if e.IsSession() {
			sessions++
			focused += e.Focused()
		}
	}
	return sessions, focused
}

// ClearLog truncates the log file. A missing file is not an error.
func ClearLog(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return os.WriteFile(path, []byte{}, 0644)
}
