package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

func TestView_RendersGrid(t *testing.T) {
	m, _ := newTestApp(t)
	view := m.View()

	for _, want := range []string{
		"crewgrid", "2 projects", "connecting",
		"Jan 5", "Jan 12", "Jan 26",
		"Atlas Replatform", "Northwind",
		"Beacon App", "Juniper",
		"Dana Reyes", "Ed Okafor", "QA Engineer",
		"total",
		"1 row × 1 week",
		"q: quit",
	} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q:\n%s", want, view)
		}
	}
	// Project totals come from the snapshot, not from summing rows.
	if !strings.Contains(view, "28") {
		t.Fatalf("expected proj-a weekly total 28 in view:\n%s", view)
	}
}

func TestView_EmptyBeforeFirstWindowSize(t *testing.T) {
	f := &fakeBackend{snapshot: testSnapshot()}
	m := newAppModel(Services{Snapshot: f, Rows: f, Hours: f, Totals: f, Conflicts: f}, 4, grid.Scope{})
	if got := m.View(); got != "" {
		t.Fatalf("expected empty view before sizing, got %q", got)
	}
}

func TestView_LoadingAndLoadError(t *testing.T) {
	f := &fakeBackend{snapshot: testSnapshot()}
	m := newAppModel(Services{Snapshot: f, Rows: f, Hours: f, Totals: f, Conflicts: f}, 4, grid.Scope{})
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	m = mm.(appModel)

	if view := m.View(); !strings.Contains(view, "loading grid") {
		t.Fatalf("expected loading screen, got:\n%s", view)
	}

	mm, _ = m.Update(snapshotMsg{err: errors.New("connection refused")})
	m = mm.(appModel)
	view := m.View()
	if !strings.Contains(view, "cannot reach server") || !strings.Contains(view, "connection refused") {
		t.Fatalf("expected load error screen, got:\n%s", view)
	}
	if !strings.Contains(view, "r: retry") {
		t.Fatalf("expected retry hint, got:\n%s", view)
	}
}

func TestView_CollapsedProjectShowsCountAndTotals(t *testing.T) {
	m, _ := newTestApp(t)

	// Fold proj-b: its row disappears, the count shows on the header line.
	m, _ = pressKey(t, m, tea.KeyDown)
	m, _ = pressKey(t, m, tea.KeyDown)
	m, _ = pressKey(t, m, tea.KeyTab)

	view := m.View()
	if strings.Contains(view, "QA Engineer") {
		t.Fatalf("expected folded project's rows hidden:\n%s", view)
	}
	if !strings.Contains(view, "(1)") {
		t.Fatalf("expected row count on the folded header:\n%s", view)
	}
	if !strings.Contains(view, "Dana Reyes") {
		t.Fatalf("expected other projects unaffected:\n%s", view)
	}

	// Fold proj-a too: rows vanish but its weekly totals stay visible inline.
	m, _ = pressKey(t, m, tea.KeyTab)
	view = m.View()
	if strings.Contains(view, "Dana Reyes") || strings.Contains(view, "Ed Okafor") {
		t.Fatalf("expected proj-a rows hidden:\n%s", view)
	}
	if !strings.Contains(view, "28") {
		t.Fatalf("expected inline totals on the folded header:\n%s", view)
	}
}

func TestView_DeliveryMarkers(t *testing.T) {
	m, _ := newTestApp(t)
	pct := 80.0
	snap := testSnapshot()
	snap.Markers = map[string]map[string][]model.DeliverableMarker{
		"proj-a": {
			week1: {{Type: "delivery", Percentage: &pct}},
			week2: {{Type: "milestone"}},
		},
	}
	mm, _ := m.Update(snapshotMsg{snap: snap})
	m = mm.(appModel)

	view := m.View()
	if !strings.Contains(view, "◆80") {
		t.Fatalf("expected delivery marker with percentage:\n%s", view)
	}
	if !strings.Contains(view, "◇") {
		t.Fatalf("expected milestone marker:\n%s", view)
	}
}

func TestView_StatusBarSelectionAndExtend(t *testing.T) {
	m, _ := newTestApp(t)

	m, _ = pressKey(t, m, tea.KeyShiftDown)
	m, _ = pressKey(t, m, tea.KeyShiftRight)
	if view := m.View(); !strings.Contains(view, "2 rows × 2 weeks") {
		t.Fatalf("expected selection summary in status bar:\n%s", view)
	}

	m, _ = pressRune(t, m, 'v')
	if view := m.View(); !strings.Contains(view, "extend") {
		t.Fatalf("expected extend indicator:\n%s", view)
	}
}

func TestView_EditingAndSavingIndicators(t *testing.T) {
	m, _ := newTestApp(t)

	m, _ = pressRune(t, m, '5')
	if view := m.View(); !strings.Contains(view, "editing Dana Reyes") {
		t.Fatalf("expected editing indicator:\n%s", view)
	}

	m, _ = pressKey(t, m, tea.KeyEnter) // persistence still in flight
	view := m.View()
	if !strings.Contains(view, "saving 1") {
		t.Fatalf("expected pending-save counter:\n%s", view)
	}
	if !strings.Contains(view, "5…") {
		t.Fatalf("expected saving glyph on the cell:\n%s", view)
	}
}

func TestView_MinibufferShowsAdvisory(t *testing.T) {
	m, _ := newTestApp(t)

	mm, _ := m.Update(advisorMsg{warnings: []grid.Warning{{
		PersonName: "Dana Reyes",
		WeekKey:    week0,
		Message:    "booked 44h across 2 projects in week of Jan 5 (capacity 40h)",
	}}})
	m = mm.(appModel)

	if view := m.View(); !strings.Contains(view, "Dana Reyes booked 44h") {
		t.Fatalf("expected advisory in minibuffer:\n%s", view)
	}
}
