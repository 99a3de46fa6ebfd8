package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"

	"crewgrid/internal/feed"
	"crewgrid/internal/grid"
)

const (
	// flushDebounce is the window remote change events are batched over
	// before one reconciler flush applies them all.
	flushDebounce = 50 * time.Millisecond

	requestTimeout           = 10 * time.Second
	minibufferAutoClearAfter = 6 * time.Second
	noticeTickEvery          = 500 * time.Millisecond

	nameColW = 22
	cellW    = 7
)

// Services bundles the server-backed dependencies the grid runs on. The API
// client satisfies every field; tests substitute fakes.
type Services struct {
	Snapshot  grid.SnapshotService
	Rows      grid.AssignmentService
	Hours     grid.HoursService
	Totals    grid.TotalsService
	Conflicts grid.ConflictChecker
}

// editGuard is a stable indirection so the reconciler keeps guarding the
// current editor across snapshot reloads (which replace the editor to drop
// stale optimistic state).
type editGuard struct{ ed *grid.Editor }

func (g *editGuard) RowBusy(rowID string) bool {
	return g.ed != nil && g.ed.RowBusy(rowID)
}

type appModel struct {
	svc   Services
	weeks int
	scope grid.Scope

	grid    *grid.Store
	layout  *gridLayout
	sel     *grid.Selection
	editor  *grid.Editor
	guard   *editGuard
	recon   *grid.Reconciler
	advisor *grid.Advisor

	loaded  bool
	loadErr error

	// collapsed projects contribute no rows to the layout; their header line
	// shows a row count instead.
	collapsed map[string]bool

	// extendSel makes plain arrow keys grow the selection (toggled with "v"),
	// matching shift+arrows for terminals that swallow the modifier.
	extendSel bool

	cellInput textinput.Model
	input     textinput.Model

	modal        modalKind
	modalRowID   string
	modalRowName string
	modalProject string
	confirmFocus confirmModalFocus

	feedStatus feed.Status
	// wasLive distinguishes the first connect from a reconnect; a reconnect
	// reloads the snapshot because events may have been missed while offline.
	wasLive bool

	width          int
	height         int
	seenWindowSize bool

	// colOffset/lineOffset scroll the week columns and grid lines so the
	// selection focus stays in view.
	colOffset  int
	lineOffset int

	minibufferText  string
	minibufferKind  noticeKind
	minibufferSetAt time.Time
}

// noticeKind styles the minibuffer: plain feedback, advisory warning, or a
// failure that needs attention.
type noticeKind int

const (
	noticeInfo noticeKind = iota
	noticeWarn
	noticeError
)

func newAppModel(svc Services, weeks int, scope grid.Scope) appModel {
	st := grid.NewStore()
	layout := newGridLayout()
	sel := grid.NewSelection(layout)
	editor := grid.NewEditor(st, sel)
	guard := &editGuard{ed: editor}

	m := appModel{
		svc:       svc,
		weeks:     weeks,
		scope:     scope,
		grid:      st,
		layout:    layout,
		sel:       sel,
		editor:    editor,
		guard:     guard,
		recon:     grid.NewReconciler(st, guard),
		advisor:   grid.NewAdvisor(svc.Conflicts),
		collapsed: map[string]bool{},
	}

	m.cellInput = textinput.New()
	m.cellInput.CharLimit = 8
	m.cellInput.Prompt = ""

	m.input = textinput.New()
	m.input.CharLimit = 80
	m.input.Prompt = ""

	return m
}

func (m *appModel) rebuildLayout() {
	m.layout.rebuild(m.grid, m.collapsed)
}

// resetEditState replaces the editor so a fresh snapshot is authoritative:
// open sessions close, saving marks vanish, and in-flight batches can no
// longer roll anything back (their completion only triggers a totals refresh).
func (m *appModel) resetEditState() {
	m.editor = grid.NewEditor(m.grid, m.sel)
	m.guard.ed = m.editor
	m.cellInput.Blur()
	m.cellInput.SetValue("")
}

// ensureSelection keeps a valid focus cell: if the current one vanished
// (removed row, collapsed project, new horizon) the selection restarts at the
// top-left visible cell.
func (m *appModel) ensureSelection() {
	if m.layout.RowCount() == 0 || m.layout.WeekCount() == 0 {
		m.sel.Clear()
		return
	}
	if f, ok := m.sel.Focus(); ok {
		if _, ok := m.layout.RowIndexOf(f.RowID); ok {
			if _, ok := m.layout.WeekIndexOf(f.WeekKey); ok {
				return
			}
		}
	}
	ref, _ := m.layout.RowAt(0)
	week, _ := m.layout.WeekAt(0)
	m.sel.Begin(ref.RowID, week)
	m.followFocus()
}

func (m *appModel) showMinibuffer(text string) {
	m.minibufferText = text
	m.minibufferKind = noticeInfo
	m.minibufferSetAt = time.Now()
}

func (m *appModel) showMinibufferWarning(text string) {
	m.minibufferText = text
	m.minibufferKind = noticeWarn
	m.minibufferSetAt = time.Now()
}

func (m *appModel) showMinibufferError(text string) {
	m.minibufferText = text
	m.minibufferKind = noticeError
	m.minibufferSetAt = time.Now()
}

func (m *appModel) clearMinibuffer() {
	m.minibufferText = ""
	m.minibufferKind = noticeInfo
}

func (m *appModel) closeAllModals() {
	m.modal = modalNone
	m.modalRowID = ""
	m.modalRowName = ""
	m.modalProject = ""
	m.confirmFocus = confirmFocusConfirm
	m.input.Blur()
	m.input.SetValue("")
}

// focusCell is the cell the cursor sits on, if any.
func (m *appModel) focusCell() (grid.CellRef, bool) {
	return m.sel.Focus()
}

// focusRowRef resolves the focused row and its project.
func (m *appModel) focusRowRef() (grid.RowRef, bool) {
	f, ok := m.sel.Focus()
	if !ok {
		return grid.RowRef{}, false
	}
	i, ok := m.layout.RowIndexOf(f.RowID)
	if !ok {
		return grid.RowRef{}, false
	}
	return m.layout.RowAt(i)
}

// focusProjectID is the project collapse/add actions operate on: the focused
// row's project, or the only project when nothing is selectable yet.
func (m *appModel) focusProjectID() string {
	if ref, ok := m.focusRowRef(); ok {
		return ref.ProjectID
	}
	if ps := m.grid.Projects(); len(ps) == 1 {
		return ps[0].ID
	}
	return ""
}

// lineKind distinguishes the three grid line shapes.
type lineKind int

const (
	lineProject lineKind = iota
	lineRow
	lineTotals
)

// gridLine describes one rendered grid body line. The same descriptor list
// drives rendering and focus-follow scrolling so the two can't drift apart.
type gridLine struct {
	kind      lineKind
	projectID string
	rowID     string
}

func (m *appModel) gridLines() []gridLine {
	var out []gridLine
	for _, p := range m.grid.Projects() {
		out = append(out, gridLine{kind: lineProject, projectID: p.ID})
		if m.collapsed[p.ID] {
			continue
		}
		for _, r := range m.grid.RowsOf(p.ID) {
			out = append(out, gridLine{kind: lineRow, projectID: p.ID, rowID: r.ID})
		}
		out = append(out, gridLine{kind: lineTotals, projectID: p.ID})
	}
	return out
}

// visibleWeekCols is how many week columns fit beside the name gutter.
func (m *appModel) visibleWeekCols() int {
	w := (m.width - nameColW) / cellW
	if w < 1 {
		w = 1
	}
	if n := m.layout.WeekCount(); n > 0 && w > n {
		w = n
	}
	return w
}

// visibleBodyLines is how many grid lines fit between the chrome (header,
// week labels, status bar, minibuffer, help).
func (m *appModel) visibleBodyLines() int {
	h := m.height - 5
	if h < 1 {
		h = 1
	}
	return h
}

// followFocus scrolls the week window and the line window so the focus cell
// stays visible.
func (m *appModel) followFocus() {
	f, ok := m.sel.Focus()
	if !ok {
		return
	}
	if wi, ok := m.layout.WeekIndexOf(f.WeekKey); ok {
		vis := m.visibleWeekCols()
		if wi < m.colOffset {
			m.colOffset = wi
		}
		if wi >= m.colOffset+vis {
			m.colOffset = wi - vis + 1
		}
		m.colOffset = clampInt(m.colOffset, 0, maxInt(0, m.layout.WeekCount()-vis))
	}

	lines := m.gridLines()
	focusLine := -1
	for i, ln := range lines {
		if ln.kind == lineRow && ln.rowID == f.RowID {
			focusLine = i
			break
		}
	}
	if focusLine < 0 {
		return
	}
	vis := m.visibleBodyLines()
	if focusLine < m.lineOffset {
		m.lineOffset = focusLine
	}
	if focusLine >= m.lineOffset+vis {
		m.lineOffset = focusLine - vis + 1
	}
	m.lineOffset = clampInt(m.lineOffset, 0, maxInt(0, len(lines)-vis))
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
