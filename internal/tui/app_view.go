package tui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	xansi "github.com/charmbracelet/x/ansi"

	"crewgrid/internal/feed"
	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

func (m appModel) View() string {
	if m.width <= 0 || m.height <= 0 {
		return ""
	}
	if !m.loaded {
		if m.loadErr != nil {
			return m.renderLoadError()
		}
		return m.renderLoading()
	}
	if m.modal != modalNone {
		return m.renderModal()
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderWeekHeader())
	b.WriteString("\n")
	b.WriteString(m.renderBody())
	b.WriteString("\n")
	b.WriteString(m.renderStatusBar())
	b.WriteString("\n")
	b.WriteString(m.renderMinibuffer())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m appModel) renderLoading() string {
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center,
		styleMuted().Render("loading grid…"))
}

func (m appModel) renderLoadError() string {
	msg := "cannot reach server: " + m.loadErr.Error() + "\n\n" +
		styleMuted().Render("r: retry   q: quit")
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

func (m appModel) renderHeader() string {
	left := lipgloss.NewStyle().Bold(true).Render("crewgrid")
	parts := []string{fmt.Sprintf("%d projects", len(m.grid.Projects()))}
	if m.scope.Department != "" {
		parts = append(parts, "dept "+m.scope.Department)
	}
	if m.scope.Vertical != "" {
		parts = append(parts, "vertical "+m.scope.Vertical)
	}
	left += "  " + styleMuted().Render(strings.Join(parts, " "+glyphSeparator()+" "))

	right := m.renderFeedStatus()
	gap := m.width - xansi.StringWidth(left) - xansi.StringWidth(right)
	if gap < 1 {
		gap = 1
	}
	return truncLine(left+strings.Repeat(" ", gap)+right, m.width)
}

func (m appModel) renderFeedStatus() string {
	st := lipgloss.NewStyle().Foreground(colorOfflineFg)
	switch m.feedStatus {
	case feed.StatusLive:
		st = lipgloss.NewStyle().Foreground(colorLiveFg)
	case feed.StatusConnecting:
		st = styleMuted()
	}
	return st.Render(glyphFeedDot() + " " + m.feedStatus.String())
}

func (m appModel) renderWeekHeader() string {
	var b strings.Builder
	b.WriteString(strings.Repeat(" ", nameColW))
	focusWeek := ""
	if f, ok := m.sel.Focus(); ok {
		focusWeek = f.WeekKey
	}
	for _, col := range m.weekWindow() {
		label := fmt.Sprintf("%*s ", cellW-1, col.Label)
		st := styleMuted()
		if col.Key == focusWeek {
			st = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
		}
		b.WriteString(st.Render(label))
	}
	return truncLine(b.String(), m.width)
}

// weekWindow is the slice of labeled axis columns currently scrolled into view.
func (m appModel) weekWindow() []model.WeekColumn {
	cols := m.grid.Axis().Columns()
	vis := m.visibleWeekCols()
	start := clampInt(m.colOffset, 0, maxInt(0, len(cols)-vis))
	end := start + vis
	if end > len(cols) {
		end = len(cols)
	}
	return cols[start:end]
}

func (m appModel) renderBody() string {
	lines := m.gridLines()
	vis := m.visibleBodyLines()
	start := clampInt(m.lineOffset, 0, maxInt(0, len(lines)-vis))
	end := start + vis
	if end > len(lines) {
		end = len(lines)
	}

	out := make([]string, 0, vis)
	for _, ln := range lines[start:end] {
		switch ln.kind {
		case lineProject:
			out = append(out, m.renderProjectLine(ln.projectID))
		case lineRow:
			out = append(out, m.renderRowLine(ln.rowID))
		case lineTotals:
			out = append(out, m.renderTotalsLine(ln.projectID))
		}
	}
	for len(out) < vis {
		out = append(out, "")
	}
	return strings.Join(out, "\n")
}

func (m appModel) renderProjectLine(projectID string) string {
	p, ok := m.grid.Project(projectID)
	if !ok {
		return ""
	}
	twisty := glyphTwistyExpanded()
	if m.collapsed[projectID] {
		twisty = glyphTwistyCollapsed()
	}
	head := twisty + " " + p.Name
	if m.collapsed[projectID] {
		head += fmt.Sprintf(" (%d)", len(m.grid.RowsOf(projectID)))
	}
	if p.Client != "" {
		head += " " + glyphSeparator() + " " + p.Client
	}
	if p.Status != "" && p.Status != model.ProjectActive {
		head += " [" + string(p.Status) + "]"
	}
	gutter := fitLine(lipgloss.NewStyle().Bold(true).Render(truncLine(head, nameColW-1)), nameColW)

	var b strings.Builder
	b.WriteString(gutter)
	for _, col := range m.weekWindow() {
		if m.collapsed[projectID] {
			// Folded projects surface their weekly totals inline.
			b.WriteString(m.renderTotalsCell(projectID, col.Key))
			continue
		}
		b.WriteString(m.renderMarkerCell(projectID, col.Key))
	}
	return truncLine(b.String(), m.width)
}

func (m appModel) renderMarkerCell(projectID, wk string) string {
	txt := ""
	for _, mk := range m.grid.MarkersAt(projectID, wk) {
		switch mk.Type {
		case "delivery":
			g := glyphDelivery()
			if mk.Percentage != nil {
				g += strconv.Itoa(int(*mk.Percentage))
			}
			txt = g
		case "milestone":
			if txt == "" {
				txt = glyphMilestone()
			}
		}
	}
	if txt == "" && m.grid.DeliverableCount(projectID, wk) > 0 {
		txt = glyphDelivery()
	}
	if txt == "" {
		return strings.Repeat(" ", cellW)
	}
	return styleMuted().Render(fmt.Sprintf("%*s ", cellW-1, txt))
}

func (m appModel) renderRowLine(rowID string) string {
	row, ok := m.grid.Row(rowID)
	if !ok {
		return ""
	}

	gutterStyle := lipgloss.NewStyle()
	if row.PersonID == nil {
		// Unfilled role slots read as placeholders.
		gutterStyle = styleMuted()
	}
	if f, ok := m.sel.Focus(); ok && f.RowID == rowID {
		gutterStyle = gutterStyle.Bold(true)
	}
	gutter := fitLine(gutterStyle.Render(truncLine("  "+row.DisplayName(), nameColW-1)), nameColW)

	var b strings.Builder
	b.WriteString(gutter)
	session, editing := m.editor.Editing()
	for _, col := range m.weekWindow() {
		if editing && session.RowID == rowID && session.WeekKey == col.Key {
			b.WriteString(m.renderEditingCell())
			continue
		}
		b.WriteString(m.renderHoursCell(rowID, col.Key))
	}
	return truncLine(b.String(), m.width)
}

func (m appModel) renderHoursCell(rowID, wk string) string {
	v := m.grid.Hours(rowID, wk)
	saving := m.editor.CellSaving(rowID, wk)
	txt := glyphEmptyCell()
	if v != 0 {
		txt = formatHours(v)
	}
	if saving {
		txt += glyphSaving()
	}
	cell := fmt.Sprintf("%*s ", cellW-1, txt)

	st := lipgloss.NewStyle()
	if v == 0 && !saving {
		st = styleMuted()
	}
	if f, ok := m.sel.Focus(); ok && f.RowID == rowID && f.WeekKey == wk {
		st = lipgloss.NewStyle().Background(colorAccent).Foreground(colorAccentFg).Bold(true)
	} else if m.sel.Contains(rowID, wk) {
		st = lipgloss.NewStyle().Background(colorSelectedBg).Foreground(colorSelectedFg)
	}
	return st.Render(cell)
}

func (m appModel) renderEditingCell() string {
	view := strings.ReplaceAll(m.cellInput.View(), "\n", " ")
	line := lipgloss.NewStyle().Background(colorInputBg).Render(" ") + view
	return fitLine(line, cellW)
}

func (m appModel) renderTotalsCell(projectID, wk string) string {
	v := m.grid.TotalFor(projectID, wk)
	txt := glyphEmptyCell()
	if v != 0 {
		txt = formatHours(v)
	}
	return styleMuted().Render(fmt.Sprintf("%*s ", cellW-1, txt))
}

func (m appModel) renderTotalsLine(projectID string) string {
	gutter := fitLine(styleMuted().Render("  total"), nameColW)
	var b strings.Builder
	b.WriteString(gutter)
	for _, col := range m.weekWindow() {
		b.WriteString(m.renderTotalsCell(projectID, col.Key))
	}
	return truncLine(b.String(), m.width)
}

func (m appModel) renderStatusBar() string {
	var parts []string
	if s, ok := m.editor.Editing(); ok {
		row, _ := m.grid.Row(s.RowID)
		parts = append(parts, "editing "+row.DisplayName()+" "+glyphSeparator()+" "+grid.WeekLabel(s.WeekKey))
	} else if sum := m.sel.Summary(); sum != "" {
		parts = append(parts, sum)
	}
	if m.extendSel {
		parts = append(parts, "extend")
	}
	if n := m.editor.PendingCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("saving %d", n))
	}
	return truncLine(strings.Join(parts, "   "), m.width)
}

func (m appModel) renderMinibuffer() string {
	if m.minibufferText == "" {
		return ""
	}
	st := lipgloss.NewStyle().Foreground(colorSurfaceFg)
	switch m.minibufferKind {
	case noticeWarn:
		st = lipgloss.NewStyle().Foreground(colorWarnFg)
	case noticeError:
		st = lipgloss.NewStyle().Foreground(colorErrFg).Bold(true)
	}
	return truncLine(st.Render(m.minibufferText), m.width)
}

func (m appModel) renderHelp() string {
	help := "arrows: move   shift+arrows: select   0-9/enter: edit   tab: fold   a: add person   A: add role   x: remove   r: reload   q: quit"
	return truncLine(styleMuted().Render(help), m.width)
}

func (m appModel) renderModal() string {
	var box string
	switch m.modal {
	case modalAddPerson:
		p, _ := m.grid.Project(m.modalProject)
		box = renderInputModal(m.width, "Add person: "+p.Name, m.input.View())
	case modalAddRole:
		p, _ := m.grid.Project(m.modalProject)
		box = renderInputModal(m.width, "Add role slot: "+p.Name, m.input.View())
	case modalConfirmRemove:
		body := "Remove " + m.modalRowName + " from the project?\nTheir week allocations are deleted."
		box = renderConfirmModal(m.width, "Remove assignment", body, "Remove", "Cancel", m.confirmFocus)
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
