package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"goattach/internal/app"
	"goattach/internal/journal"
)

// RefreshInterval is how often the viewer polls the attacher.
const RefreshInterval = 2 * time.Second

// Controller defines the subset of app.App behaviour the TUI needs.
type Controller interface {
	Status() (app.DaemonStatus, error)
	Outcomes(context.Context, app.ListParams) ([]journal.Entry, error)
	Counts(context.Context, time.Duration) (map[journal.Outcome]int, error)
}

// Model represents the Bubble Tea state.
type Model struct {
	controller Controller

	list    list.Model
	entries []journal.Entry
	counts  map[journal.Outcome]int

	daemonStatus app.DaemonStatus
	statusMsg    string

	err     error
	loading bool

	width  int
	height int

	filters app.ListFilters

	lastUpdated time.Time
}

// New constructs a TUI model with default styles.
func New(ctrl Controller) *Model {
	delegate := list.NewDefaultDelegate()
	lst := list.New([]list.Item{}, delegate, 0, 0)
	lst.Title = "Attach outcomes"
	lst.SetShowHelp(false)
	lst.SetFilteringEnabled(false)
	lst.DisableQuitKeybindings()

	return &Model{
		controller: ctrl,
		list:       lst,
		statusMsg:  "Checking attacher status…",
		loading:    true,
	}
}

// Run spins up the Bubble Tea program with sensible defaults.
func Run(ctrl Controller) error {
	m := New(ctrl)
	prog := tea.NewProgram(m, tea.WithAltScreen())
	_, err := prog.Run()
	return err
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), tickCmd())
}

func (m *Model) refresh() tea.Cmd {
	return tea.Batch(checkStatusCmd(m.controller), loadOutcomesCmd(m.controller, m.filters))
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		if m.height > 5 {
			m.list.SetSize(msg.Width, msg.Height-5)
		}

	case statusMsg:
		m.daemonStatus = msg.status
		if msg.status.Running {
			if msg.status.PID > 0 {
				m.statusMsg = fmt.Sprintf("Attacher running (pid %d) on %s.", msg.status.PID, msg.status.Socket)
			} else {
				m.statusMsg = fmt.Sprintf("Attacher running on %s.", msg.status.Socket)
			}
		} else {
			m.statusMsg = "No attacher is serving status. Start one with --serve-status."
			m.loading = false
			m.entries = nil
			m.counts = nil
			m.list.SetItems(nil)
		}

	case outcomesLoadedMsg:
		m.loading = false
		m.err = nil
		m.entries = msg.entries
		m.counts = msg.counts
		// newest first
		items := make([]list.Item, 0, len(msg.entries))
		for i := len(msg.entries) - 1; i >= 0; i-- {
			items = append(items, entryItem{Entry: msg.entries[i]})
		}
		m.list.SetItems(items)
		m.lastUpdated = time.Now()

	case tickMsg:
		if !m.daemonStatus.Running && !m.loading {
			return m, tea.Batch(checkStatusCmd(m.controller), tickCmd())
		}
		return m, tea.Batch(m.refresh(), tickCmd())

	case errMsg:
		m.loading = false
		m.err = msg.err

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			m.loading = true
			return m, m.refresh()
		case "f":
			m.filters.FailedOnly = !m.filters.FailedOnly
			m.loading = true
			return m, loadOutcomesCmd(m.controller, m.filters)
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m *Model) View() string {
	var b strings.Builder

	statusStyle := lipgloss.NewStyle().Bold(true)
	if !m.daemonStatus.Running {
		statusStyle = statusStyle.Foreground(lipgloss.Color("203"))
	} else {
		statusStyle = statusStyle.Foreground(lipgloss.Color("42"))
	}
	b.WriteString(statusStyle.Render(m.statusMsg))
	b.WriteByte('\n')

	if len(m.counts) > 0 {
		b.WriteString(formatCounts(m.counts))
		b.WriteByte('\n')
	}

	if m.loading {
		b.WriteString("Loading outcomes…\n")
	} else if m.err != nil {
		errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
		b.WriteString(errStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteByte('\n')
	}

	if len(m.list.Items()) == 0 && !m.loading && m.err == nil && m.daemonStatus.Running {
		b.WriteString("No outcomes recorded yet.\n")
	} else {
		b.WriteString(m.list.View())
		b.WriteByte('\n')
	}

	if current := m.currentEntry(); current != nil {
		detail := fmt.Sprintf(
			"pid=%s user=%s version=%s cycle=%d\nmain=%s\nrule=%s\ndetail=%s",
			current.PID,
			valueOrDash(current.User),
			valueOrDash(current.Version),
			current.Cycle,
			valueOrDash(current.Main),
			valueOrDash(current.Rule),
			valueOrDash(current.Detail),
		)
		detailStyle := lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1).MarginBottom(1)
		b.WriteString(detailStyle.Render(detail))
		b.WriteByte('\n')
	}

	help := "Commands: q quit • r reload • f failed only"
	if m.filters.FailedOnly {
		help += " (on)"
	}
	if !m.lastUpdated.IsZero() {
		help += fmt.Sprintf(" • last update %s", m.lastUpdated.Format(time.Kitchen))
	}
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	b.WriteString(helpStyle.Render(help))

	return b.String()
}

// entryItem adapts journal.Entry to the bubbles list item interface.
type entryItem struct {
	Entry journal.Entry
}

func (e entryItem) Title() string {
	return fmt.Sprintf("[%s] pid=%s %s", e.Entry.Outcome, e.Entry.PID, valueOrDash(e.Entry.Main))
}

func (e entryItem) Description() string {
	return fmt.Sprintf("user=%s at %s", valueOrDash(e.Entry.User), e.Entry.At.Local().Format(time.TimeOnly))
}

func (e entryItem) FilterValue() string {
	return fmt.Sprintf("%s %s %s %s", e.Entry.PID, e.Entry.User, e.Entry.Main, e.Entry.Outcome)
}

func (m *Model) currentEntry() *journal.Entry {
	item, ok := m.list.SelectedItem().(entryItem)
	if !ok {
		return nil
	}
	return &item.Entry
}

func formatCounts(counts map[journal.Outcome]int) string {
	parts := make([]string, 0, len(counts))
	for _, o := range journal.Outcomes {
		if n := counts[o]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", o, n))
		}
	}
	return strings.Join(parts, " ")
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

type statusMsg struct {
	status app.DaemonStatus
}

type outcomesLoadedMsg struct {
	entries []journal.Entry
	counts  map[journal.Outcome]int
}

type tickMsg time.Time

type errMsg struct{ err error }

func (e errMsg) Error() string { return e.err.Error() }

func tickCmd() tea.Cmd {
	return tea.Tick(RefreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func checkStatusCmd(ctrl Controller) tea.Cmd {
	return func() tea.Msg {
		status, err := ctrl.Status()
		if err != nil {
			return errMsg{err}
		}
		return statusMsg{status: status}
	}
}

func loadOutcomesCmd(ctrl Controller, filters app.ListFilters) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
		defer cancel()
		entries, err := ctrl.Outcomes(ctx, app.ListParams{
			Filters: filters,
			Timeout: 4 * time.Second,
		})
		if err != nil {
			return errMsg{err}
		}
		counts, err := ctrl.Counts(ctx, 4*time.Second)
		if err != nil {
			return errMsg{err}
		}
		return outcomesLoadedMsg{entries: entries, counts: counts}
	}
}
