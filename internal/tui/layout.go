package tui

import (
	"strings"

	xansi "github.com/charmbracelet/x/ansi"

	"crewgrid/internal/grid"
)

// gridLayout is the selection engine's index space: the rows currently
// visible in display order (collapsed projects contribute none) plus the week
// axis. It is rebuilt whenever the store or the collapse state changes; the
// selection holds onto the same instance, so rebuilding in place keeps its
// row/week lookups current.
type gridLayout struct {
	rows    []grid.RowRef
	rowIdx  map[string]int
	weeks   []string
	weekIdx map[string]int
}

func newGridLayout() *gridLayout {
	return &gridLayout{
		rowIdx:  map[string]int{},
		weekIdx: map[string]int{},
	}
}

func (l *gridLayout) rebuild(st *grid.Store, collapsed map[string]bool) {
	l.rows = l.rows[:0]
	l.rowIdx = map[string]int{}
	for _, p := range st.Projects() {
		if collapsed[p.ID] {
			continue
		}
		for _, r := range st.RowsOf(p.ID) {
			l.rowIdx[r.ID] = len(l.rows)
			l.rows = append(l.rows, grid.RowRef{RowID: r.ID, ProjectID: p.ID})
		}
	}
	l.weeks = st.Axis().Keys()
	l.weekIdx = make(map[string]int, len(l.weeks))
	for i, k := range l.weeks {
		l.weekIdx[k] = i
	}
}

func (l *gridLayout) RowCount() int { return len(l.rows) }

func (l *gridLayout) RowAt(i int) (grid.RowRef, bool) {
	if i < 0 || i >= len(l.rows) {
		return grid.RowRef{}, false
	}
	return l.rows[i], true
}

func (l *gridLayout) RowIndexOf(rowID string) (int, bool) {
	i, ok := l.rowIdx[rowID]
	return i, ok
}

func (l *gridLayout) WeekCount() int { return len(l.weeks) }

func (l *gridLayout) WeekAt(i int) (string, bool) {
	if i < 0 || i >= len(l.weeks) {
		return "", false
	}
	return l.weeks[i], true
}

func (l *gridLayout) WeekIndexOf(weekKey string) (int, bool) {
	i, ok := l.weekIdx[weekKey]
	return i, ok
}

// fitLine forces s to exactly width columns (ANSI-aware): overlong content is
// cut with styling terminated so colors can't bleed into the padding.
func fitLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	w := xansi.StringWidth(s)
	if w > width {
		s = xansi.Cut(s, 0, width) + "\x1b[0m"
		w = xansi.StringWidth(s)
	}
	if w < width {
		s += strings.Repeat(" ", width-w)
	}
	return s
}

// truncLine cuts s to at most width columns, marking the cut with an ellipsis.
func truncLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if xansi.StringWidth(s) <= width {
		return s
	}
	if width == 1 {
		return xansi.Cut(s, 0, 1)
	}
	return xansi.Cut(s, 0, width-1) + "…"
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
