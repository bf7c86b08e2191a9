// Package timer runs a focus countdown bound to a task, either as an
// interactive bubbletea program or as plain progress lines.
package timer

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	countdown "github.com/charmbracelet/bubbles/timer"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// DefaultInterval is the refresh interval of the countdown.
const DefaultInterval = time.Second

// KeyMap defines key bindings
type KeyMap struct {
	Toggle key.Binding
	Reset  key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "p"),
			key.WithHelp("space/p", "pause/resume"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "restart"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "esc", "ctrl+c"),
			key.WithHelp("q", "stop"),
		),
	}
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Toggle, k.Reset, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Model is the focus timer program state
type Model struct {
	title    string
	total    time.Duration
	interval time.Duration
	timer    countdown.Model
	keys     KeyMap
	help     help.Model
	width    int

	finished bool
	stopped  bool

	titleStyle  lipgloss.Style
	clockStyle  lipgloss.Style
	pausedStyle lipgloss.Style
	doneStyle   lipgloss.Style
	barStyle    lipgloss.Style
}

// New creates a timer model counting down d for the task titled title.
// A non-positive interval uses DefaultInterval.
func New(title string, d, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return Model{
		title:    title,
		total:    d,
		interval: interval,
		timer:    countdown.NewWithInterval(d, interval),
		keys:     DefaultKeyMap(),
		help:     help.New(),
		width:    40,

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		clockStyle: lipgloss.NewStyle().
			Bold(true).
			Padding(0, 1),
		pausedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		doneStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("42")),
		barStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")),
	}
}

// Init starts the countdown.
func (m Model) Init() tea.Cmd {
	return m.timer.Init()
}

// Update handles countdown ticks and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case countdown.TickMsg:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd

	case countdown.StartStopMsg:
		var cmd tea.Cmd
		m.timer, cmd = m.timer.Update(msg)
		return m, cmd

	case countdown.TimeoutMsg:
		m.finished = true
		return m, tea.Quit

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.stopped = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Toggle):
			return m, m.timer.Toggle()
		case key.Matches(msg, m.keys.Reset):
			m.timer.Timeout = m.total
			if !m.timer.Running() {
				return m, m.timer.Start()
			}
			return m, nil
		}
	}
	return m, nil
}

// View renders the countdown.
func (m Model) View() string {
	var b strings.Builder
	b.WriteString(m.titleStyle.Render("Focus: " + m.title))
	b.WriteString("\n\n")

	if m.finished {
		b.WriteString(m.doneStyle.Render("Time's up!"))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(m.clockStyle.Render(FormatRemaining(m.timer.Timeout)))
	if !m.timer.Running() {
		b.WriteString(m.pausedStyle.Render(" paused"))
	}
	b.WriteString("\n")
	b.WriteString(m.barStyle.Render(progressBar(m.total-m.timer.Timeout, m.total, m.barWidth())))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) barWidth() int {
	w := m.width - 2
	if w > 60 {
		w = 60
	}
	if w < 10 {
		w = 10
	}
	return w
}

// Finished reports whether the countdown ran out.
func (m Model) Finished() bool {
	return m.finished
}

// Stopped reports whether the user stopped the countdown early.
func (m Model) Stopped() bool {
	return m.stopped
}

// Remaining returns the time left on the countdown.
func (m Model) Remaining() time.Duration {
	if m.finished {
		return 0
	}
	return m.timer.Timeout
}

// FormatRemaining formats a duration as MM:SS, or H:MM:SS from one hour up.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	mins := int(d%time.Hour) / int(time.Minute)
	secs := int(d%time.Minute) / int(time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, mins, secs)
	}
	return fmt.Sprintf("%02d:%02d", mins, secs)
}

func progressBar(elapsed, total time.Duration, width int) string {
	filled := 0
	if total > 0 {
		filled = int(float64(width) * float64(elapsed) / float64(total))
	}
	if filled < 0 {
		filled = 0
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}
