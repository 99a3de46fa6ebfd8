package tui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"crewgrid/internal/feed"
	"crewgrid/internal/grid"
)

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.loadSnapshot(), tickNotices())
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.seenWindowSize = true
		m.followFocus()
		return m, nil

	case snapshotMsg:
		if msg.err != nil {
			m.loadErr = msg.err
			if m.loaded {
				m.showMinibufferError("reload failed: " + msg.err.Error())
			}
			return m, nil
		}
		// A fresh snapshot is authoritative: stale optimistic state and queued
		// remote events are both superseded by it.
		m.resetEditState()
		m.recon.Reset()
		m.grid.LoadSnapshot(msg.snap)
		m.loaded = true
		m.loadErr = nil
		m.rebuildLayout()
		m.ensureSelection()
		m.followFocus()
		return m, nil

	case commitDoneMsg:
		batch, rolledBack := m.editor.Complete(msg.batchID, msg.err)
		if batch == nil {
			// The batch predates a snapshot reload; the store was replaced
			// wholesale. If the write landed anyway, refresh its totals.
			if msg.err == nil {
				return m, m.fetchTotals(msg.projects)
			}
			return m, nil
		}
		if rolledBack {
			m.showMinibufferError("save failed, edit rolled back: " + msg.err.Error())
			return m, nil
		}
		cmds := []tea.Cmd{m.fetchTotals(msg.projects)}
		if qs := grid.BuildQueries(batch, m.grid); len(qs) > 0 {
			cmds = append(cmds, m.runAdvisor(qs))
		}
		return m, tea.Batch(cmds...)

	case totalsMsg:
		if msg.err != nil {
			// Keep showing the previous totals; the next change refreshes.
			return m, nil
		}
		for pid, th := range msg.totals {
			m.grid.ApplyTotals(pid, th)
		}
		return m, nil

	case rowFetchedMsg:
		if msg.err != nil || msg.row == nil {
			// Most likely the row was deleted between event and refetch; the
			// delete event handles it.
			return m, nil
		}
		pid := m.recon.ApplyFetched(*msg.row)
		m.rebuildLayout()
		m.ensureSelection()
		if pid != "" {
			return m, m.fetchTotals([]string{pid})
		}
		return m, nil

	case feedEventMsg:
		return m, tickFlush(m.recon.Enqueue(msg.ev))

	case flushTickMsg:
		if !m.recon.Due(msg.seq) {
			return m, nil
		}
		cmd := m.applyPlan(m.recon.Flush())
		return m, cmd

	case feedStatusMsg:
		m.feedStatus = msg.status
		if msg.status == feed.StatusLive {
			if m.wasLive {
				// Events may have been missed while offline: resync from a
				// fresh snapshot rather than trusting the local projection.
				m.recon.Reset()
				return m, m.loadSnapshot()
			}
			m.wasLive = true
		}
		return m, nil

	case advisorMsg:
		if len(msg.warnings) == 0 {
			return m, nil
		}
		parts := make([]string, 0, len(msg.warnings))
		for _, w := range msg.warnings {
			parts = append(parts, w.PersonName+" "+w.Message)
		}
		m.showMinibufferWarning(strings.Join(parts, "; "))
		return m, nil

	case rowAddedMsg:
		if msg.err != nil {
			m.showMinibufferError("could not add: " + msg.err.Error())
			return m, nil
		}
		if msg.row == nil {
			return m, nil
		}
		m.grid.UpsertRow(*msg.row)
		// Make sure the new row is actually visible before selecting it.
		delete(m.collapsed, msg.row.ProjectID)
		m.rebuildLayout()
		week := ""
		if f, ok := m.sel.Focus(); ok {
			week = f.WeekKey
		}
		if _, ok := m.layout.WeekIndexOf(week); !ok {
			week, _ = m.layout.WeekAt(0)
		}
		m.sel.Begin(msg.row.ID, week)
		m.followFocus()
		m.showMinibuffer("added " + msg.row.DisplayName())
		return m, nil

	case rowRemovedMsg:
		if msg.err != nil {
			m.showMinibufferError("could not remove: " + msg.err.Error())
			return m, nil
		}
		m.grid.RemoveRow(msg.rowID)
		m.rebuildLayout()
		m.ensureSelection()
		m.followFocus()
		return m, m.fetchTotals([]string{msg.projectID})

	case noticeTickMsg:
		if m.minibufferText != "" && time.Since(m.minibufferSetAt) >= minibufferAutoClearAfter {
			m.clearMinibuffer()
		}
		return m, tickNotices()

	case tea.BlurMsg:
		// Losing terminal focus commits the open edit in place.
		if m.modal == modalNone {
			if _, editing := m.editor.Editing(); editing {
				return m.commitEdit(grid.EndBlur, 0, 0)
			}
		}
		return m, nil

	case tea.KeyMsg:
		if m.modal != modalNone {
			return m.updateModalKey(msg)
		}
		if _, editing := m.editor.Editing(); editing {
			return m.updateEditKey(msg)
		}
		return m.updateGridKey(msg)
	}
	return m, nil
}

// applyPlan executes a reconciler flush plan: cancel edits on rows that were
// deleted remotely, refresh the layout, and schedule the follow-up fetches.
func (m *appModel) applyPlan(plan grid.Plan) tea.Cmd {
	for _, rowID := range plan.Removed {
		if s, ok := m.editor.Editing(); ok && s.RowID == rowID {
			_, _ = m.editor.End(grid.EndEscape)
			m.cellInput.Blur()
			m.cellInput.SetValue("")
			m.showMinibufferError("assignment was removed in another session, edit cancelled")
		}
		if m.modal == modalConfirmRemove && m.modalRowID == rowID {
			m.closeAllModals()
		}
	}
	if plan.Dirty {
		m.rebuildLayout()
		m.ensureSelection()
		m.followFocus()
	}
	var cmds []tea.Cmd
	for _, rowID := range plan.Refetch {
		cmds = append(cmds, m.fetchRow(rowID))
	}
	if c := m.fetchTotals(plan.Totals); c != nil {
		cmds = append(cmds, c)
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}

func (m appModel) updateGridKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key := msg.String(); key {
	case "ctrl+c", "q":
		return m, tea.Quit

	case "r":
		return m, m.loadSnapshot()

	case "esc":
		if m.minibufferText != "" {
			m.clearMinibuffer()
			return m, nil
		}
		if m.extendSel {
			m.extendSel = false
			return m, nil
		}
		// Collapse a multi-cell selection back to the focus cell.
		if f, ok := m.sel.Focus(); ok {
			m.sel.Begin(f.RowID, f.WeekKey)
		}
		return m, nil

	case "up", "k":
		m.moveFocus(-1, 0, m.extendSel)
		return m, nil
	case "down", "j":
		m.moveFocus(1, 0, m.extendSel)
		return m, nil
	case "left", "h":
		m.moveFocus(0, -1, m.extendSel)
		return m, nil
	case "right", "l":
		m.moveFocus(0, 1, m.extendSel)
		return m, nil
	case "shift+up":
		m.moveFocus(-1, 0, true)
		return m, nil
	case "shift+down":
		m.moveFocus(1, 0, true)
		return m, nil
	case "shift+left":
		m.moveFocus(0, -1, true)
		return m, nil
	case "shift+right":
		m.moveFocus(0, 1, true)
		return m, nil

	case "v":
		m.extendSel = !m.extendSel
		return m, nil

	case "tab", " ":
		if pid := m.focusProjectID(); pid != "" {
			m.toggleCollapse(pid)
		}
		return m, nil

	case "enter":
		return m.beginEdit("")

	case "a":
		return m.openAddModal(modalAddPerson)
	case "A":
		return m.openAddModal(modalAddRole)
	case "x":
		return m.openConfirmRemove()

	default:
		if isHoursSeed(key) {
			return m.beginEdit(key)
		}
	}
	return m, nil
}

func (m appModel) updateEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit

	case "esc":
		_, _ = m.editor.End(grid.EndEscape)
		m.cellInput.Blur()
		m.cellInput.SetValue("")
		return m, nil

	case "enter":
		return m.commitEdit(grid.EndEnter, 0, 1)
	case "tab":
		return m.commitEdit(grid.EndNavigate, 0, 1)
	case "up":
		return m.commitEdit(grid.EndNavigate, -1, 0)
	case "down":
		return m.commitEdit(grid.EndNavigate, 1, 0)

	default:
		// left/right move the text cursor; typing flows into the cell input.
		var cmd tea.Cmd
		m.cellInput, cmd = m.cellInput.Update(msg)
		m.editor.SetInput(m.cellInput.Value())
		return m, cmd
	}
}

// commitEdit runs the synchronous half of the commit protocol and schedules
// persistence. Validation and busy errors keep the session open so the value
// can be fixed in place.
func (m appModel) commitEdit(reason grid.EndReason, dRow, dCol int) (tea.Model, tea.Cmd) {
	batch, err := m.editor.End(reason)
	if err != nil {
		m.showMinibufferError(err.Error())
		return m, nil
	}
	m.cellInput.Blur()
	m.cellInput.SetValue("")
	if batch == nil {
		return m, nil
	}
	if (dRow != 0 || dCol != 0) && batch.SingleCell() {
		m.sel.Move(dRow, dCol, false)
		m.followFocus()
	}
	return m, m.persistBatch(batch)
}

func (m appModel) beginEdit(seed string) (tea.Model, tea.Cmd) {
	f, ok := m.sel.Focus()
	if !ok {
		return m, nil
	}
	display := seed
	if seed == "" {
		// Enter-edit starts from the cell's current value.
		if v := m.grid.Hours(f.RowID, f.WeekKey); v != 0 {
			display = formatHours(v)
		}
	}
	if err := m.editor.Begin(f.RowID, f.WeekKey, display); err != nil {
		m.showMinibufferError(err.Error())
		return m, nil
	}
	m.cellInput.SetValue(display)
	m.cellInput.CursorEnd()
	cmd := m.cellInput.Focus()
	return m, cmd
}

func (m *appModel) moveFocus(dRow, dCol int, extend bool) {
	if !m.sel.Active() {
		m.ensureSelection()
		return
	}
	m.sel.Move(dRow, dCol, extend)
	m.followFocus()
}

func (m *appModel) toggleCollapse(projectID string) {
	keepWeek := ""
	displayIdx := 0
	if f, ok := m.sel.Focus(); ok {
		keepWeek = f.WeekKey
		if i, ok := m.layout.RowIndexOf(f.RowID); ok {
			displayIdx = i
		}
	}
	if m.collapsed[projectID] {
		delete(m.collapsed, projectID)
	} else {
		m.collapsed[projectID] = true
	}
	m.rebuildLayout()
	if m.layout.RowCount() == 0 || m.layout.WeekCount() == 0 {
		m.sel.Clear()
		return
	}
	if _, ok := m.layout.WeekIndexOf(keepWeek); !ok {
		keepWeek, _ = m.layout.WeekAt(0)
	}
	if f, ok := m.sel.Focus(); ok {
		if _, still := m.layout.RowIndexOf(f.RowID); still {
			m.followFocus()
			return
		}
	}
	// The focused row folded away: land on the nearest visible row.
	ref, _ := m.layout.RowAt(clampInt(displayIdx, 0, m.layout.RowCount()-1))
	m.sel.Begin(ref.RowID, keepWeek)
	m.followFocus()
}

func (m appModel) openAddModal(kind modalKind) (tea.Model, tea.Cmd) {
	pid := m.focusProjectID()
	if pid == "" {
		m.showMinibufferError("no project focused")
		return m, nil
	}
	m.modal = kind
	m.modalProject = pid
	m.input.SetValue("")
	cmd := m.input.Focus()
	return m, cmd
}

func (m appModel) openConfirmRemove() (tea.Model, tea.Cmd) {
	ref, ok := m.focusRowRef()
	if !ok {
		return m, nil
	}
	row, ok := m.grid.Row(ref.RowID)
	if !ok {
		return m, nil
	}
	m.modal = modalConfirmRemove
	m.modalRowID = row.ID
	m.modalRowName = row.DisplayName()
	// Destructive action: default focus on Cancel.
	m.confirmFocus = confirmFocusCancel
	return m, nil
}

func (m appModel) updateModalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.modal {
	case modalAddPerson, modalAddRole:
		switch msg.String() {
		case "esc", "ctrl+g":
			m.closeAllModals()
			return m, nil
		case "enter":
			name := strings.TrimSpace(m.input.Value())
			if name == "" {
				m.showMinibufferError("name is required")
				return m, nil
			}
			na := grid.NewAssignment{ProjectID: m.modalProject}
			if m.modal == modalAddPerson {
				na.PersonName = name
			} else {
				na.RoleName = name
			}
			m.closeAllModals()
			return m, m.addRow(na)
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}

	case modalConfirmRemove:
		switch msg.String() {
		case "esc", "ctrl+g", "n":
			m.closeAllModals()
			return m, nil
		case "tab", "left", "right":
			if m.confirmFocus == confirmFocusConfirm {
				m.confirmFocus = confirmFocusCancel
			} else {
				m.confirmFocus = confirmFocusConfirm
			}
			return m, nil
		case "y":
			return m.confirmRemove()
		case "enter":
			if m.confirmFocus == confirmFocusCancel {
				m.closeAllModals()
				return m, nil
			}
			return m.confirmRemove()
		}
	}
	return m, nil
}

func (m appModel) confirmRemove() (tea.Model, tea.Cmd) {
	rowID := m.modalRowID
	pid, _ := m.grid.ProjectOf(rowID)
	m.closeAllModals()
	return m, m.removeRow(rowID, pid)
}

func isHoursSeed(key string) bool {
	if len(key) != 1 {
		return false
	}
	c := key[0]
	return (c >= '0' && c <= '9') || c == '.'
}
