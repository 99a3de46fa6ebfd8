package grid

import "fmt"

// RowRef identifies one visible grid row and its owning project.
type RowRef struct {
	RowID     string
	ProjectID string
}

// CellRef addresses one logical cell.
type CellRef struct {
	RowID   string
	WeekKey string
}

// Layout is the selection engine's view of what the grid currently renders:
// visible rows in display order (collapsed or filtered-out rows are absent)
// and the week axis. The UI owns the layout; tests supply fakes.
type Layout interface {
	RowCount() int
	RowAt(i int) (RowRef, bool)
	RowIndexOf(rowID string) (int, bool)
	WeekCount() int
	WeekAt(i int) (string, bool)
	WeekIndexOf(weekKey string) (int, bool)
}

// Selection tracks the rectangular cell selection, scoped to a single project
// at a time. Anchor and focus are kept as stable ids (not indices) so the
// rectangle survives re-renders; indices are resolved through the layout on
// demand and rows that are no longer visible contribute no cells.
type Selection struct {
	layout Layout

	active     bool
	scope      string // project id the selection is locked to
	anchorRow  string
	anchorWeek string
	focusRow   string
	focusWeek  string

	// extras are individually toggled cells (additive select) within scope.
	extras map[CellRef]bool
}

func NewSelection(layout Layout) *Selection {
	return &Selection{layout: layout, extras: map[CellRef]bool{}}
}

// Begin anchors a fresh selection at the cell and locks the scope to the
// row's project. Unknown rows or weeks are ignored.
func (s *Selection) Begin(rowID, weekKey string) {
	ref, ok := s.rowRef(rowID)
	if !ok {
		return
	}
	if _, ok := s.layout.WeekIndexOf(weekKey); !ok {
		return
	}
	s.active = true
	s.scope = ref.ProjectID
	s.anchorRow, s.anchorWeek = rowID, weekKey
	s.focusRow, s.focusWeek = rowID, weekKey
	s.extras = map[CellRef]bool{}
}

// Extend moves only the focus corner. Movement into another project is
// ignored rather than silently switching scope.
func (s *Selection) Extend(rowID, weekKey string) {
	if !s.active {
		s.Begin(rowID, weekKey)
		return
	}
	ref, ok := s.rowRef(rowID)
	if !ok || ref.ProjectID != s.scope {
		return
	}
	if _, ok := s.layout.WeekIndexOf(weekKey); !ok {
		return
	}
	s.focusRow, s.focusWeek = rowID, weekKey
}

// SelectSingle selects exactly one cell. With additive set and a matching
// scope the cell is toggled into (or out of) the selection alongside the
// current rectangle; otherwise it replaces the selection.
func (s *Selection) SelectSingle(rowID, weekKey string, additive bool) {
	if !additive || !s.active {
		s.Begin(rowID, weekKey)
		return
	}
	ref, ok := s.rowRef(rowID)
	if !ok || ref.ProjectID != s.scope {
		return
	}
	if _, ok := s.layout.WeekIndexOf(weekKey); !ok {
		return
	}
	c := CellRef{RowID: rowID, WeekKey: weekKey}
	if s.extras[c] {
		delete(s.extras, c)
		return
	}
	s.extras[c] = true
}

func (s *Selection) Clear() {
	s.active = false
	s.scope = ""
	s.anchorRow, s.anchorWeek = "", ""
	s.focusRow, s.focusWeek = "", ""
	s.extras = map[CellRef]bool{}
}

func (s *Selection) Active() bool         { return s.active }
func (s *Selection) ScopeProject() string { return s.scope }

// Anchor returns the anchor cell of the current rectangle.
func (s *Selection) Anchor() (CellRef, bool) {
	if !s.active {
		return CellRef{}, false
	}
	return CellRef{RowID: s.anchorRow, WeekKey: s.anchorWeek}, true
}

// Focus returns the focus corner (the cell the cursor is on).
func (s *Selection) Focus() (CellRef, bool) {
	if !s.active {
		return CellRef{}, false
	}
	return CellRef{RowID: s.focusRow, WeekKey: s.focusWeek}, true
}

// Move steps the focus by one row/column. With extend the anchor stays put
// and scope rules apply (cross-project steps are ignored); without extend it
// re-anchors at the stepped cell, which may begin a new scope.
func (s *Selection) Move(dRow, dCol int, extend bool) {
	if !s.active {
		return
	}
	ri, ok := s.layout.RowIndexOf(s.focusRow)
	if !ok {
		return
	}
	wi, ok := s.layout.WeekIndexOf(s.focusWeek)
	if !ok {
		return
	}
	ri = clamp(ri+dRow, 0, s.layout.RowCount()-1)
	wi = clamp(wi+dCol, 0, s.layout.WeekCount()-1)
	ref, ok := s.layout.RowAt(ri)
	if !ok {
		return
	}
	week, ok := s.layout.WeekAt(wi)
	if !ok {
		return
	}
	if extend {
		s.Extend(ref.RowID, week)
		return
	}
	s.Begin(ref.RowID, week)
}

// rect resolves the current rectangle to index bounds. Stale anchor/focus
// rows (removed or collapsed away) invalidate the rectangle.
func (s *Selection) rect() (r0, r1, w0, w1 int, ok bool) {
	if !s.active {
		return 0, 0, 0, 0, false
	}
	ar, ok1 := s.layout.RowIndexOf(s.anchorRow)
	fr, ok2 := s.layout.RowIndexOf(s.focusRow)
	aw, ok3 := s.layout.WeekIndexOf(s.anchorWeek)
	fw, ok4 := s.layout.WeekIndexOf(s.focusWeek)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return 0, 0, 0, 0, false
	}
	r0, r1 = minMax(ar, fr)
	w0, w1 = minMax(aw, fw)
	return r0, r1, w0, w1, true
}

// Cells returns the selected cells: the rectangular cross product of the
// row range × week range restricted to rows visible under the scope project,
// plus any additively toggled cells.
func (s *Selection) Cells() []CellRef {
	r0, r1, w0, w1, ok := s.rect()
	if !ok {
		return nil
	}
	var out []CellRef
	seen := map[CellRef]bool{}
	for ri := r0; ri <= r1; ri++ {
		ref, ok := s.layout.RowAt(ri)
		if !ok || ref.ProjectID != s.scope {
			continue
		}
		for wi := w0; wi <= w1; wi++ {
			week, ok := s.layout.WeekAt(wi)
			if !ok {
				continue
			}
			c := CellRef{RowID: ref.RowID, WeekKey: week}
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	for c := range s.extras {
		if _, ok := s.layout.RowIndexOf(c.RowID); !ok {
			continue
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}

// Contains reports whether the cell renders as selected.
func (s *Selection) Contains(rowID, weekKey string) bool {
	if !s.active {
		return false
	}
	if s.extras[CellRef{RowID: rowID, WeekKey: weekKey}] {
		return true
	}
	r0, r1, w0, w1, ok := s.rect()
	if !ok {
		return false
	}
	ri, ok := s.layout.RowIndexOf(rowID)
	if !ok || ri < r0 || ri > r1 {
		return false
	}
	ref, ok := s.layout.RowAt(ri)
	if !ok || ref.ProjectID != s.scope {
		return false
	}
	wi, ok := s.layout.WeekIndexOf(weekKey)
	if !ok || wi < w0 || wi > w1 {
		return false
	}
	return true
}

// Summary is the live selection description announced for accessibility,
// e.g. "3 rows × 4 weeks".
func (s *Selection) Summary() string {
	r0, r1, w0, w1, ok := s.rect()
	if !ok {
		return ""
	}
	rows := 0
	for ri := r0; ri <= r1; ri++ {
		if ref, ok := s.layout.RowAt(ri); ok && ref.ProjectID == s.scope {
			rows++
		}
	}
	weeks := w1 - w0 + 1
	if rows == 0 || weeks == 0 {
		return ""
	}
	return fmt.Sprintf("%s × %s", plural(rows, "row"), plural(weeks, "week"))
}

func (s *Selection) rowRef(rowID string) (RowRef, bool) {
	i, ok := s.layout.RowIndexOf(rowID)
	if !ok {
		return RowRef{}, false
	}
	return s.layout.RowAt(i)
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minMax(a, b int) (int, int) {
	if a <= b {
		return a, b
	}
	return b, a
}
