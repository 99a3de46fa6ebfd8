package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"crewgrid/internal/grid"
)

// Commands capture plain values, never the model, so the async work reads no
// state the update loop might be mutating.

func tickNotices() tea.Cmd {
	return tea.Tick(noticeTickEvery, func(time.Time) tea.Msg { return noticeTickMsg{} })
}

func tickFlush(seq int) tea.Cmd {
	return tea.Tick(flushDebounce, func(time.Time) tea.Msg { return flushTickMsg{seq: seq} })
}

func (m appModel) loadSnapshot() tea.Cmd {
	svc := m.svc.Snapshot
	weeks := m.weeks
	scope := m.scope
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		snap, err := svc.GetSnapshot(ctx, weeks, scope)
		return snapshotMsg{snap: snap, err: err}
	}
}

// persistBatch is the asynchronous half of the commit protocol. A single cell
// goes through the row call; anything larger collapses into one bulk call so
// the server applies it atomically.
func (m appModel) persistBatch(b *grid.PendingBatch) tea.Cmd {
	svc := m.svc.Hours
	id := b.ID
	projects := b.Projects
	if b.SingleCell() {
		rowID := b.Cells[0].RowID
		hours := b.Updates[rowID].Next
		return func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
			defer cancel()
			err := svc.UpdateHours(ctx, rowID, hours)
			return commitDoneMsg{batchID: id, projects: projects, err: err}
		}
	}
	payloads := b.RowPayloads()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := svc.BulkUpdateHours(ctx, payloads)
		return commitDoneMsg{batchID: id, projects: projects, err: err}
	}
}

func (m appModel) fetchTotals(projectIDs []string) tea.Cmd {
	if len(projectIDs) == 0 {
		return nil
	}
	svc := m.svc.Totals
	weeks := m.weeks
	scope := m.scope
	ids := append([]string(nil), projectIDs...)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		totals, err := svc.GetTotals(ctx, ids, weeks, scope)
		return totalsMsg{totals: totals, err: err}
	}
}

func (m appModel) fetchRow(rowID string) tea.Cmd {
	svc := m.svc.Rows
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		row, err := svc.Get(ctx, rowID)
		return rowFetchedMsg{row: row, err: err}
	}
}

func (m appModel) runAdvisor(queries []grid.ConflictQuery) tea.Cmd {
	adv := m.advisor
	qs := append([]grid.ConflictQuery(nil), queries...)
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return advisorMsg{warnings: adv.Review(ctx, qs)}
	}
}

func (m appModel) addRow(na grid.NewAssignment) tea.Cmd {
	svc := m.svc.Rows
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		row, err := svc.Create(ctx, na)
		return rowAddedMsg{row: row, err: err}
	}
}

func (m appModel) removeRow(rowID, projectID string) tea.Cmd {
	svc := m.svc.Rows
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		err := svc.Delete(ctx, rowID)
		return rowRemovedMsg{rowID: rowID, projectID: projectID, err: err}
	}
}
