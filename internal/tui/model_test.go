package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"goattach/internal/app"
	"goattach/internal/journal"
)

type fakeController struct {
	status  app.DaemonStatus
	entries []journal.Entry
	counts  map[journal.Outcome]int
	err     error
	params  []app.ListParams
}

func (f *fakeController) Status() (app.DaemonStatus, error) { return f.status, nil }

func (f *fakeController) Outcomes(_ context.Context, p app.ListParams) ([]journal.Entry, error) {
	f.params = append(f.params, p)
	return f.entries, f.err
}

func (f *fakeController) Counts(context.Context, time.Duration) (map[journal.Outcome]int, error) {
	return f.counts, nil
}

func TestLoadOutcomesShowsNewestFirst(t *testing.T) {
	ctrl := &fakeController{
		status: app.DaemonStatus{Running: true, PID: 42, Socket: "/tmp/s"},
		entries: []journal.Entry{
			{ID: 1, PID: "100", Main: "com.example.Old", Outcome: journal.Excluded},
			{ID: 2, PID: "101", Main: "com.example.New", Outcome: journal.Attached},
		},
		counts: map[journal.Outcome]int{journal.Attached: 1, journal.Excluded: 1},
	}
	m := New(ctrl)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m.Update(checkStatusCmd(ctrl)())
	m.Update(loadOutcomesCmd(ctrl, m.filters)())

	if m.loading {
		t.Fatalf("expected loading to finish")
	}
	cur := m.currentEntry()
	if cur == nil || cur.PID != "101" {
		t.Fatalf("expected newest entry selected, got %+v", cur)
	}
	view := m.View()
	if !strings.Contains(view, "pid 42") || !strings.Contains(view, "attached=1 excluded=1") {
		t.Fatalf("unexpected view:\n%s", view)
	}
}

func TestToggleFailedOnly(t *testing.T) {
	ctrl := &fakeController{status: app.DaemonStatus{Running: true}}
	m := New(ctrl)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("f")})
	if cmd == nil {
		t.Fatalf("expected reload command")
	}
	cmd()
	if len(ctrl.params) != 1 || !ctrl.params[0].Filters.FailedOnly {
		t.Fatalf("expected failed-only filter, got %+v", ctrl.params)
	}
}

func TestNotRunningClearsEntries(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl)
	m.entries = []journal.Entry{{PID: "1"}}
	m.Update(statusMsg{status: app.DaemonStatus{Running: false}})
	if m.entries != nil || m.loading {
		t.Fatalf("expected cleared state, got %+v loading=%v", m.entries, m.loading)
	}
	if !strings.Contains(m.View(), "No attacher is serving status") {
		t.Fatalf("unexpected view: %s", m.View())
	}
}

func TestLoadErrorIsShown(t *testing.T) {
	ctrl := &fakeController{status: app.DaemonStatus{Running: true}, err: errors.New("boom")}
	m := New(ctrl)
	m.Update(loadOutcomesCmd(ctrl, m.filters)())
	if m.err == nil || !strings.Contains(m.View(), "Error: boom") {
		t.Fatalf("expected error in view: %s", m.View())
	}
}
