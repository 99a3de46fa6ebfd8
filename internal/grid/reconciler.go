package grid

import (
	"sort"
	"time"

	"crewgrid/internal/model"
)

// RowGuard reports local edit intent on a row. While a row is busy (open
// edit session or in-flight batch) remote hour changes are not merged into
// it; the local write wins and the usual last-writer-wins rule resumes once
// the batch resolves.
type RowGuard interface {
	RowBusy(rowID string) bool
}

// Plan is the follow-up work a flush leaves for the caller: rows to refetch
// (events that arrived without an inline payload), projects whose totals must
// be re-read from the server, and rows that were deleted so an open edit on
// one of them can be cancelled.
type Plan struct {
	Refetch []string
	Totals  []string
	Removed []string
	Dirty   bool
}

type queued struct {
	ev      model.ChangeEvent
	arrival int
}

// Reconciler folds remote change events into the store. Events are queued as
// they arrive and applied in one debounced flush: per-assignment coalescing
// first, then apply in server-time order, dropping anything older than what
// has already been applied for that assignment.
//
// It is not safe for concurrent use; the update loop owns it and the feed
// hands events over as messages.
type Reconciler struct {
	store *Store
	guard RowGuard

	queue      []queued
	arrivals   int
	seq        int
	lastRemote map[string]time.Time
}

func NewReconciler(store *Store, guard RowGuard) *Reconciler {
	return &Reconciler{
		store:      store,
		guard:      guard,
		lastRemote: map[string]time.Time{},
	}
}

// Enqueue queues an event and returns the debounce generation. The caller
// schedules a flush tick carrying the generation; ticks whose generation is
// no longer Due are stale and ignored, so a burst of events flushes once.
func (r *Reconciler) Enqueue(ev model.ChangeEvent) int {
	r.arrivals++
	r.queue = append(r.queue, queued{ev: ev, arrival: r.arrivals})
	r.seq++
	return r.seq
}

// Due reports whether a flush tick of the given generation is still current.
func (r *Reconciler) Due(seq int) bool {
	return seq == r.seq && len(r.queue) > 0
}

// Pending is the number of queued, not yet flushed events.
func (r *Reconciler) Pending() int { return len(r.queue) }

// Reset drops queued events and forgets per-assignment clocks. Used when the
// grid is reloaded from a fresh snapshot.
func (r *Reconciler) Reset() {
	r.queue = nil
	r.seq++
	r.lastRemote = map[string]time.Time{}
}

// Flush drains the queue and applies the surviving events to the store.
func (r *Reconciler) Flush() Plan {
	if len(r.queue) == 0 {
		return Plan{}
	}
	events := coalesce(r.queue)
	r.queue = nil

	var plan Plan
	totals := map[string]bool{}
	for _, ev := range events {
		r.applyEvent(ev, &plan, totals)
	}
	plan.Totals = sortedKeys(totals)
	return plan
}

func (r *Reconciler) applyEvent(ev model.ChangeEvent, plan *Plan, totals map[string]bool) {
	id := ev.AssignmentID
	if id == "" {
		return
	}
	// Strictly older than something already applied: drop. Equal re-applies;
	// the payload is absolute state, so that is harmless.
	if last, ok := r.lastRemote[id]; ok && ev.ServerTime.Before(last) {
		return
	}
	r.lastRemote[id] = ev.ServerTime

	switch ev.Type {
	case model.ChangeDeleted:
		if r.store.RemoveRow(id) {
			plan.Removed = append(plan.Removed, id)
			plan.Dirty = true
			if ev.ProjectID != "" {
				totals[ev.ProjectID] = true
			}
		}
	case model.ChangeUpdated:
		if ev.Row == nil {
			plan.Refetch = append(plan.Refetch, id)
			return
		}
		if _, ok := r.store.Project(ev.Row.ProjectID); !ok {
			// Outside the loaded scope; nothing on screen to update.
			return
		}
		if r.mergeRow(*ev.Row) {
			totals[ev.Row.ProjectID] = true
		}
		plan.Dirty = true
	}
}

// ApplyFetched merges a row fetched in response to a payload-less event.
// The returned project id, when non-empty, needs a totals refresh.
func (r *Reconciler) ApplyFetched(row model.AssignmentRow) string {
	if _, ok := r.store.Project(row.ProjectID); !ok {
		return ""
	}
	if r.mergeRow(row) {
		return row.ProjectID
	}
	return ""
}

// mergeRow writes the remote row into the store. Rows with local edit intent
// keep their local hours (only the non-hours fields land); everything else is
// replaced wholesale. Reports whether the stored hours changed.
func (r *Reconciler) mergeRow(row model.AssignmentRow) bool {
	if local, ok := r.store.RowHours(row.ID); ok && r.guard != nil && r.guard.RowBusy(row.ID) {
		row.WeeklyHours = local
		r.store.UpsertRow(row)
		return false
	}
	r.store.UpsertRow(row)
	return true
}

// coalesce keeps one event per assignment (the newest by server time, later
// arrival winning ties) and returns the survivors in server-time order.
func coalesce(queue []queued) []model.ChangeEvent {
	kept := map[string]queued{}
	for _, q := range queue {
		prev, ok := kept[q.ev.AssignmentID]
		if !ok || !q.ev.ServerTime.Before(prev.ev.ServerTime) {
			kept[q.ev.AssignmentID] = q
		}
	}
	out := make([]queued, 0, len(kept))
	for _, q := range kept {
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ev.ServerTime.Equal(out[j].ev.ServerTime) {
			return out[i].arrival < out[j].arrival
		}
		return out[i].ev.ServerTime.Before(out[j].ev.ServerTime)
	})
	events := make([]model.ChangeEvent, len(out))
	for i, q := range out {
		events[i] = q.ev
	}
	return events
}
