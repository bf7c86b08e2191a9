// Package tui provides an interactive terminal browser over the task store.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tasktree/internal/history"
	"tasktree/internal/markdown"
	"tasktree/internal/store"
	"tasktree/internal/task"
	"tasktree/internal/utils"
	"tasktree/internal/watcher"
)

// Store is the subset of store operations the browser drives
type Store interface {
	ListFiltered(tag string) []store.Item
	Get(index int) (*task.Task, error)
	WouldConflict(title string) bool
	Add(ctx context.Context, t *task.Task) (bool, error)
	Remove(ctx context.Context, index int) (*task.Task, error)
	Complete(ctx context.Context, index int) (*task.Task, error)
	Undo(ctx context.Context) (history.Entry, error)
	SubtaskConflict(parentIndex int, title string) (bool, error)
	AddSubtask(ctx context.Context, parentIndex int, title string) (bool, error)
	CompleteSubtask(ctx context.Context, parentIndex, subIndex int) error
	AddComment(ctx context.Context, index int, text string) error
	Urgency(t *task.Task) task.Urgency
	Reload(ctx context.Context) error
}

var _ Store = (*store.Store)(nil)

// Focus indicates which pane has focus
type Focus int

const (
	FocusTasks Focus = iota
	FocusSubtasks
)

// Mode indicates the current input mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeAdd
	ModeAddSubtask
	ModeComment
	ModeFilter
	ModeHelp
	ModeConfirmDelete
	ModeConfirmDuplicate
)

// Model represents the TUI state
type Model struct {
	store Store
	ctx   context.Context

	// Data
	items []store.Item
	tag   string

	// Selection
	cursor    int
	subCursor int
	focus     Focus

	// Mode and input
	mode      Mode
	textInput textinput.Model
	pending   string // title waiting for duplicate confirmation
	status    string
	statusErr bool

	// UI dimensions
	width  int
	height int

	// Styles
	listPaneStyle   lipgloss.Style
	detailPaneStyle lipgloss.Style
	selectedStyle   lipgloss.Style
	completedStyle  lipgloss.Style
	overdueStyle    lipgloss.Style
	dueSoonStyle    lipgloss.Style
	helpStyle       lipgloss.Style
	errorStyle      lipgloss.Style
	dialogStyle     lipgloss.Style
	statusBarStyle  lipgloss.Style
}

// New creates a new TUI model. Store operations run synchronously inside
// Update; the store must not be used elsewhere while the program runs.
func New(ctx context.Context, s Store) *Model {
	ti := textinput.New()
	ti.Placeholder = "Enter text..."
	ti.CharLimit = 256

	m := &Model{
		store:       s,
		ctx:         ctx,
		textInput:   ti,
		focus:       FocusTasks,
		mode:        ModeNormal,
		listPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		detailPaneStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
		selectedStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212")),
		completedStyle: lipgloss.NewStyle().
			Strikethrough(true).
			Foreground(lipgloss.Color("240")),
		overdueStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		dueSoonStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		helpStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")),
		dialogStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(1, 2),
		statusBarStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("252")).
			Padding(0, 1),
	}
	m.refresh()
	return m
}

// ReloadMsg asks the browser to reload the store from storage
type ReloadMsg struct{}

// Options configures Run
type Options struct {
	// WatchPath is the data file to watch for changes made by other
	// processes. Empty disables reloading.
	WatchPath string
	// In and Out replace the terminal when set.
	In  io.Reader
	Out io.Writer
}

// Run starts the browser and blocks until it exits.
func Run(ctx context.Context, s Store, opts Options) error {
	progOpts := []tea.ProgramOption{tea.WithContext(ctx)}
	if opts.In != nil {
		progOpts = append(progOpts, tea.WithInput(opts.In))
	}
	if opts.Out != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Out))
	} else {
		progOpts = append(progOpts, tea.WithAltScreen())
	}

	p := tea.NewProgram(New(ctx, s), progOpts...)

	if opts.WatchPath != "" {
		w, err := watcher.New(watcher.Config{
			Path:     opts.WatchPath,
			OnChange: func() { p.Send(ReloadMsg{}) },
		})
		if err == nil {
			err = w.Start()
		}
		if err != nil {
			utils.Warnf("changes from other processes will not be shown: %v", err)
		} else {
			defer w.Stop()
		}
	}

	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("interface failed: %w", err)
	}
	return nil
}

// Init initializes the TUI
func (m *Model) Init() tea.Cmd {
	return nil
}

// refresh reloads the visible items and clamps the cursors
func (m *Model) refresh() {
	m.items = m.store.ListFiltered(m.tag)
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if t := m.selected(); t == nil || m.subCursor >= len(t.Subtasks) {
		m.subCursor = 0
	}
}

// selected returns the task under the cursor, or nil
func (m *Model) selected() *task.Task {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return nil
	}
	return m.items[m.cursor].Task
}

func (m *Model) selectedIndex() int {
	return m.items[m.cursor].Index
}

func (m *Model) setStatus(msg string) {
	m.status = msg
	m.statusErr = false
}

// setError reports err in the status bar. A failed save is reported but the
// change stays visible.
func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
}

// result handles the error of a store operation and reports whether the
// operation took effect
func (m *Model) result(err error) bool {
	if err == nil {
		return true
	}
	m.setError(err)
	return errors.Is(err, store.ErrPersistence)
}

// Update handles messages
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case ReloadMsg:
		// Our own saves trigger reloads too; reloading them is a no-op.
		if err := m.store.Reload(m.ctx); err != nil {
			m.setError(err)
			return m, nil
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch m.mode {
		case ModeAdd, ModeAddSubtask, ModeComment, ModeFilter:
			return m.handleInputMode(msg)
		case ModeHelp:
			m.mode = ModeNormal
			return m, nil
		case ModeConfirmDelete:
			return m.handleConfirmDeleteMode(msg)
		case ModeConfirmDuplicate:
			return m.handleConfirmDuplicateMode(msg)
		}
		return m.handleNormalMode(msg)
	}

	if m.mode == ModeAdd || m.mode == ModeAddSubtask || m.mode == ModeComment || m.mode == ModeFilter {
		m.textInput, cmd = m.textInput.Update(msg)
	}
	return m, cmd
}

func (m *Model) startInput(mode Mode, placeholder, value string) tea.Cmd {
	m.mode = mode
	m.textInput.Reset()
	m.textInput.Placeholder = placeholder
	m.textInput.SetValue(value)
	m.textInput.Focus()
	return textinput.Blink
}

func (m *Model) handleNormalMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "tab":
		if m.focus == FocusTasks && m.selected() != nil {
			m.focus = FocusSubtasks
		} else {
			m.focus = FocusTasks
		}
		return m, nil

	case "up", "k":
		if m.focus == FocusTasks {
			if m.cursor > 0 {
				m.cursor--
				m.subCursor = 0
			}
		} else if m.subCursor > 0 {
			m.subCursor--
		}
		return m, nil

	case "down", "j":
		if m.focus == FocusTasks {
			if m.cursor < len(m.items)-1 {
				m.cursor++
				m.subCursor = 0
			}
		} else if t := m.selected(); t != nil && m.subCursor < len(t.Subtasks)-1 {
			m.subCursor++
		}
		return m, nil

	case "a":
		if m.focus == FocusSubtasks && m.selected() != nil {
			return m, m.startInput(ModeAddSubtask, "New subtask title...", "")
		}
		return m, m.startInput(ModeAdd, "New task title...", "")

	case "m":
		if m.selected() != nil {
			return m, m.startInput(ModeComment, "Comment...", "")
		}
		return m, nil

	case "c":
		m.completeSelected()
		return m, nil

	case "d":
		if m.selected() != nil && m.focus == FocusTasks {
			m.mode = ModeConfirmDelete
		}
		return m, nil

	case "u":
		e, err := m.store.Undo(m.ctx)
		if errors.Is(err, store.ErrNothingToUndo) {
			m.setStatus("Nothing to undo")
			return m, nil
		}
		if m.result(err) {
			if err == nil {
				m.setStatus(fmt.Sprintf("Undid %s: %s", history.Action(e), e.Target().Title))
			}
			m.refresh()
		}
		return m, nil

	case "/":
		return m, m.startInput(ModeFilter, "Tag...", m.tag)

	case "esc":
		if m.tag != "" {
			m.tag = ""
			m.refresh()
		}
		m.focus = FocusTasks
		return m, nil

	case "?":
		m.mode = ModeHelp
		return m, nil
	}
	return m, nil
}

func (m *Model) completeSelected() {
	t := m.selected()
	if t == nil {
		return
	}
	index := m.selectedIndex()

	if m.focus == FocusSubtasks {
		if len(t.Subtasks) == 0 {
			return
		}
		sub := t.Subtasks[m.subCursor]
		if m.result(m.store.CompleteSubtask(m.ctx, index, m.subCursor)) {
			m.setStatus("Completed subtask: " + sub.Title)
			m.refresh()
		}
		return
	}

	next, err := m.store.Complete(m.ctx, index)
	if !m.result(err) {
		return
	}
	if err == nil {
		m.setStatus("Completed: " + t.Title)
		if next != nil {
			m.setStatus(fmt.Sprintf("Completed: %s, next due %s", t.Title, task.FormatDate(next.Due)))
		}
	}
	m.refresh()
}

func (m *Model) handleInputMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg.Type {
	case tea.KeyEnter:
		value := strings.TrimSpace(m.textInput.Value())
		mode := m.mode
		m.mode = ModeNormal
		m.submit(mode, value)
		return m, nil

	case tea.KeyEsc:
		m.mode = ModeNormal
		return m, nil
	}

	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

// submit applies the text entered in an input mode
func (m *Model) submit(mode Mode, value string) {
	switch mode {
	case ModeFilter:
		m.tag = value
		m.cursor = 0
		m.refresh()

	case ModeAdd:
		if value == "" {
			return
		}
		if m.store.WouldConflict(value) {
			m.pending = value
			m.mode = ModeConfirmDuplicate
			return
		}
		m.addTask(value)

	case ModeAddSubtask:
		if value == "" || m.selected() == nil {
			return
		}
		index := m.selectedIndex()
		if conflict, err := m.store.SubtaskConflict(index, value); err == nil && conflict {
			m.pending = value
			m.mode = ModeConfirmDuplicate
			return
		}
		m.addSubtask(value)

	case ModeComment:
		if value == "" || m.selected() == nil {
			return
		}
		if m.result(m.store.AddComment(m.ctx, m.selectedIndex(), value)) {
			m.setStatus("Comment added")
		}
	}
}

func (m *Model) addTask(title string) {
	t := task.New(title)
	_, err := m.store.Add(m.ctx, t)
	if !m.result(err) {
		return
	}
	if err == nil {
		m.setStatus("Added: " + t.Title)
	}
	m.refresh()
	for i, it := range m.items {
		if it.Task == t {
			m.cursor = i
		}
	}
}

func (m *Model) addSubtask(title string) {
	_, err := m.store.AddSubtask(m.ctx, m.selectedIndex(), title)
	if !m.result(err) {
		return
	}
	if err == nil {
		m.setStatus("Added subtask: " + title)
	}
	m.refresh()
	if t := m.selected(); t != nil {
		m.subCursor = len(t.Subtasks) - 1
	}
}

func (m *Model) handleConfirmDuplicateMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		if m.focus == FocusSubtasks {
			m.addSubtask(m.pending)
		} else {
			m.addTask(m.pending)
		}
		m.pending = ""
	case "n", "N", "esc":
		m.mode = ModeNormal
		m.setStatus("Cancelled")
		m.pending = ""
	}
	return m, nil
}

func (m *Model) handleConfirmDeleteMode(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		m.mode = ModeNormal
		if m.selected() == nil {
			return m, nil
		}
		removed, err := m.store.Remove(m.ctx, m.selectedIndex())
		if !m.result(err) {
			return m, nil
		}
		if err == nil {
			m.setStatus("Removed: " + removed.Title + " (u to undo)")
		}
		m.refresh()
	case "n", "N", "esc":
		m.mode = ModeNormal
	}
	return m, nil
}

// View renders the TUI
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		m.width = 80
		m.height = 24
	}

	switch m.mode {
	case ModeAdd:
		return m.renderInputDialog("Add Task", "Enter: add  Esc: cancel")
	case ModeAddSubtask:
		return m.renderInputDialog("Add Subtask to: "+m.selected().Title, "Enter: add  Esc: cancel")
	case ModeComment:
		return m.renderInputDialog("Comment on: "+m.selected().Title, "Enter: add  Esc: cancel")
	case ModeFilter:
		return m.renderInputDialog("Filter by Tag", "Enter: filter  Empty: show all  Esc: cancel")
	case ModeHelp:
		return m.centerDialog(m.dialogStyle.Render(helpText))
	case ModeConfirmDelete:
		return m.centerDialog(m.dialogStyle.Render(
			"Remove \"" + m.selected().Title + "\" and its subtasks?\n\n" +
				m.helpStyle.Render("y: yes  n: no"),
		))
	case ModeConfirmDuplicate:
		return m.centerDialog(m.dialogStyle.Render(
			"\"" + m.pending + "\" already exists. Add anyway?\n\n" +
				m.helpStyle.Render("y: yes  n: no"),
		))
	}

	listWidth := m.width / 2
	detailWidth := m.width - listWidth - 4

	listPane := m.listPaneStyle.Width(listWidth).Height(m.height - 4).Render(m.renderTaskPane(listWidth - 4))
	detailPane := m.detailPaneStyle.Width(detailWidth).Height(m.height - 4).Render(m.renderDetailPane(detailWidth - 4))

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, listPane, detailPane))
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	return b.String()
}

func (m *Model) renderTaskPane(width int) string {
	var b strings.Builder
	b.WriteString("Tasks\n")
	b.WriteString(strings.Repeat("─", max(width, 1)))
	b.WriteString("\n")

	if len(m.items) == 0 {
		b.WriteString("No tasks\n")
		return b.String()
	}

	for i, it := range m.items {
		cursor := " "
		if i == m.cursor && m.focus == FocusTasks {
			cursor = ">"
		}
		text := strconv.Itoa(it.Index+1) + ". " + markdown.FormatTaskText(it.Task)
		switch {
		case it.Task.Completed:
			text = m.completedStyle.Render(text)
		case i == m.cursor:
			text = m.selectedStyle.Render(text)
		}
		b.WriteString(cursor + " [" + markdown.FormatStatusChar(it.Task.Completed) + "] " + text)
		if !it.Task.Completed {
			b.WriteString(m.renderUrgency(it.Task))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderUrgency(t *task.Task) string {
	switch u := m.store.Urgency(t); u {
	case task.UrgencyOverdue:
		return " " + m.overdueStyle.Render("["+u.String()+"]")
	case task.UrgencyDueSoon:
		return " " + m.dueSoonStyle.Render("["+u.String()+"]")
	}
	return ""
}

func (m *Model) renderDetailPane(width int) string {
	var b strings.Builder
	t := m.selected()
	if t == nil {
		b.WriteString("Details\n")
		b.WriteString(strings.Repeat("─", max(width, 1)))
		b.WriteString("\n")
		return b.String()
	}

	b.WriteString(t.Title + "\n")
	b.WriteString(strings.Repeat("─", max(width, 1)))
	b.WriteString("\n")
	b.WriteString("Priority:   " + string(t.Priority) + "\n")
	if t.Due != nil {
		b.WriteString("Due:        " + task.FormatDate(t.Due) + "\n")
	}
	if t.Recurrence != task.RecurrenceNone {
		b.WriteString("Recurrence: " + string(t.Recurrence) + "\n")
	}
	if len(t.Tags) > 0 {
		b.WriteString("Tags:       " + strings.Join(t.Tags, ", ") + "\n")
	}

	b.WriteString("\nSubtasks\n")
	if len(t.Subtasks) == 0 {
		b.WriteString("  none\n")
	}
	for i, sub := range t.Subtasks {
		cursor := " "
		if i == m.subCursor && m.focus == FocusSubtasks {
			cursor = ">"
		}
		title := sub.Title
		switch {
		case sub.Completed:
			title = m.completedStyle.Render(title)
		case i == m.subCursor && m.focus == FocusSubtasks:
			title = m.selectedStyle.Render(title)
		}
		b.WriteString(cursor + " [" + markdown.FormatStatusChar(sub.Completed) + "] " + title + "\n")
	}

	if len(t.Comments) > 0 {
		b.WriteString("\nComments\n")
		for _, c := range t.Comments {
			b.WriteString("  > " + c + "\n")
		}
	}
	return b.String()
}

func (m *Model) renderStatusBar() string {
	left := m.status
	if m.statusErr {
		left = m.errorStyle.Render(left)
	}

	right := "q:quit  ?:help"
	if m.tag != "" {
		right = "Tag: " + m.tag + "  " + right
	}

	padding := m.width - lipgloss.Width(left) - len(right) - 2
	if padding < 1 {
		padding = 1
	}

	return m.statusBarStyle.Width(m.width).Render(left + strings.Repeat(" ", padding) + right)
}

func (m *Model) renderInputDialog(title, help string) string {
	return m.centerDialog(m.dialogStyle.Render(
		title + "\n\n" +
			m.textInput.View() + "\n\n" +
			m.helpStyle.Render(help),
	))
}

const helpText = `Help - Key Bindings

Navigation:
  j/↓    Move down
  k/↑    Move up
  Tab    Switch between tasks and subtasks

Actions:
  a      Add task (or subtask in the subtask pane)
  c      Complete task or subtask
  d      Remove task (with confirm)
  m      Comment on task
  u      Undo last add, remove or complete
  /      Filter by tag
  Esc    Clear filter

General:
  ?      Show this help
  q      Quit

Press any key to close`

func (m *Model) centerDialog(dialog string) string {
	lines := strings.Split(dialog, "\n")
	dialogHeight := len(lines)
	dialogWidth := lipgloss.Width(dialog)

	topPad := (m.height - dialogHeight) / 2
	leftPad := (m.width - dialogWidth) / 2
	if topPad < 0 {
		topPad = 0
	}
	if leftPad < 0 {
		leftPad = 0
	}

	var b strings.Builder
	for i := 0; i < topPad; i++ {
		b.WriteString("\n")
	}
	for _, line := range lines {
		b.WriteString(strings.Repeat(" ", leftPad))
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
