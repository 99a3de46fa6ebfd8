package grid

import "testing"

// fakeLayout backs selection tests with a fixed visible-row order, standing
// in for the rendered grid.
type fakeLayout struct {
	rows  []RowRef
	weeks []string
}

func (l *fakeLayout) RowCount() int { return len(l.rows) }

func (l *fakeLayout) RowAt(i int) (RowRef, bool) {
	if i < 0 || i >= len(l.rows) {
		return RowRef{}, false
	}
	return l.rows[i], true
}

func (l *fakeLayout) RowIndexOf(rowID string) (int, bool) {
	for i, r := range l.rows {
		if r.RowID == rowID {
			return i, true
		}
	}
	return 0, false
}

func (l *fakeLayout) WeekCount() int { return len(l.weeks) }

func (l *fakeLayout) WeekAt(i int) (string, bool) {
	if i < 0 || i >= len(l.weeks) {
		return "", false
	}
	return l.weeks[i], true
}

func (l *fakeLayout) WeekIndexOf(weekKey string) (int, bool) {
	for i, w := range l.weeks {
		if w == weekKey {
			return i, true
		}
	}
	return 0, false
}

func testLayout() *fakeLayout {
	return &fakeLayout{
		rows: []RowRef{
			{RowID: "row-dana", ProjectID: "proj-alpha"},
			{RowID: "row-ed", ProjectID: "proj-alpha"},
			{RowID: "row-slot", ProjectID: "proj-alpha"},
			{RowID: "row-dana-b", ProjectID: "proj-beta"},
		},
		weeks: []string{"2026-03-02", "2026-03-09", "2026-03-16", "2026-03-23"},
	}
}

func cellSet(cells []CellRef) map[CellRef]bool {
	set := map[CellRef]bool{}
	for _, c := range cells {
		set[c] = true
	}
	return set
}

func TestSelection_BeginThenExtend_RectangleCells(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-dana", "2026-03-09")
	sel.Extend("row-ed", "2026-03-16")

	cells := sel.Cells()
	if len(cells) != 4 {
		t.Fatalf("expected 2x2 rectangle = 4 cells, got %d: %v", len(cells), cells)
	}
	set := cellSet(cells)
	for _, want := range []CellRef{
		{RowID: "row-dana", WeekKey: "2026-03-09"},
		{RowID: "row-dana", WeekKey: "2026-03-16"},
		{RowID: "row-ed", WeekKey: "2026-03-09"},
		{RowID: "row-ed", WeekKey: "2026-03-16"},
	} {
		if !set[want] {
			t.Fatalf("expected cell %v selected, got %v", want, cells)
		}
	}
	if got := sel.Summary(); got != "2 rows × 2 weeks" {
		t.Fatalf("expected summary %q, got %q", "2 rows × 2 weeks", got)
	}
}

func TestSelection_ExtendIntoOtherProjectIgnored(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-slot", "2026-03-02")
	sel.Extend("row-dana-b", "2026-03-02")

	if f, _ := sel.Focus(); f.RowID != "row-slot" {
		t.Fatalf("expected focus pinned inside scope project, got %v", f)
	}
	if got := sel.ScopeProject(); got != "proj-alpha" {
		t.Fatalf("expected scope proj-alpha, got %q", got)
	}
	if len(sel.Cells()) != 1 {
		t.Fatalf("expected single-cell selection, got %v", sel.Cells())
	}
}

func TestSelection_BeginSwitchesScope(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-dana", "2026-03-02")
	sel.Begin("row-dana-b", "2026-03-09")

	if got := sel.ScopeProject(); got != "proj-beta" {
		t.Fatalf("expected re-anchoring to switch scope to proj-beta, got %q", got)
	}
	cells := sel.Cells()
	if len(cells) != 1 || cells[0] != (CellRef{RowID: "row-dana-b", WeekKey: "2026-03-09"}) {
		t.Fatalf("expected fresh single-cell selection, got %v", cells)
	}
}

func TestSelection_AdditiveTogglesExtraCell(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-dana", "2026-03-02")
	sel.SelectSingle("row-ed", "2026-03-23", true)

	if len(sel.Cells()) != 2 {
		t.Fatalf("expected rectangle plus extra = 2 cells, got %v", sel.Cells())
	}
	if !sel.Contains("row-ed", "2026-03-23") {
		t.Fatalf("expected additive cell to render selected")
	}

	// Toggling the same cell again removes it.
	sel.SelectSingle("row-ed", "2026-03-23", true)
	if sel.Contains("row-ed", "2026-03-23") {
		t.Fatalf("expected additive cell toggled off")
	}

	// Additive clicks outside the scope project are ignored.
	sel.SelectSingle("row-dana-b", "2026-03-02", true)
	if sel.Contains("row-dana-b", "2026-03-02") {
		t.Fatalf("expected cross-project additive click to be ignored")
	}
}

func TestSelection_MoveClampsAtEdges(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-dana", "2026-03-02")
	sel.Move(-1, -1, false)

	if f, _ := sel.Focus(); f.RowID != "row-dana" || f.WeekKey != "2026-03-02" {
		t.Fatalf("expected focus clamped at top-left, got %v", f)
	}

	sel.Move(0, 10, false)
	if f, _ := sel.Focus(); f.WeekKey != "2026-03-23" {
		t.Fatalf("expected focus clamped at last week, got %v", f)
	}
}

func TestSelection_MoveExtendKeepsAnchor(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-dana", "2026-03-02")
	sel.Move(0, 1, true)
	sel.Move(0, 1, true)

	a, _ := sel.Anchor()
	f, _ := sel.Focus()
	if a.WeekKey != "2026-03-02" || f.WeekKey != "2026-03-16" {
		t.Fatalf("expected anchor 2026-03-02 focus 2026-03-16, got anchor=%v focus=%v", a, f)
	}
	if len(sel.Cells()) != 3 {
		t.Fatalf("expected 1x3 selection, got %v", sel.Cells())
	}
}

func TestSelection_MoveExtendAcrossProjectBoundaryIgnored(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-slot", "2026-03-02")
	sel.Move(1, 0, true) // next visible row belongs to proj-beta

	if f, _ := sel.Focus(); f.RowID != "row-slot" {
		t.Fatalf("expected extend across project boundary to be ignored, focus=%v", f)
	}

	// Without extend the same step re-anchors in the other project.
	sel.Move(1, 0, false)
	if got := sel.ScopeProject(); got != "proj-beta" {
		t.Fatalf("expected plain move to re-anchor into proj-beta, got %q", got)
	}
}

func TestSelection_StaleRowInvalidatesRectangle(t *testing.T) {
	layout := testLayout()
	sel := NewSelection(layout)

	sel.Begin("row-ed", "2026-03-02")
	sel.Extend("row-slot", "2026-03-09")

	// The anchor row disappears from the visible layout (remote delete).
	layout.rows = []RowRef{
		{RowID: "row-dana", ProjectID: "proj-alpha"},
		{RowID: "row-slot", ProjectID: "proj-alpha"},
		{RowID: "row-dana-b", ProjectID: "proj-beta"},
	}

	if cells := sel.Cells(); cells != nil {
		t.Fatalf("expected stale selection to yield no cells, got %v", cells)
	}
	if got := sel.Summary(); got != "" {
		t.Fatalf("expected empty summary for stale selection, got %q", got)
	}
}

func TestSelection_ClearResets(t *testing.T) {
	sel := NewSelection(testLayout())

	sel.Begin("row-dana", "2026-03-02")
	sel.SelectSingle("row-ed", "2026-03-09", true)
	sel.Clear()

	if sel.Active() {
		t.Fatalf("expected inactive after clear")
	}
	if cells := sel.Cells(); len(cells) != 0 {
		t.Fatalf("expected no cells after clear, got %v", cells)
	}
}
