package grid

import "sort"

// RowUpdate holds one row's before/after WeeklyHours snapshots. Both maps are
// immutable by store convention, so rollback is a pure reassignment of Prev.
type RowUpdate struct {
	Prev map[string]float64
	Next map[string]float64
}

// PendingBatch is one in-flight commit: the optimistic writes already applied
// to the store, keyed by row, plus the cells marked as saving. It exists from
// commit time until the persistence call resolves, then is discarded.
type PendingBatch struct {
	ID    int
	Value float64

	Updates  map[string]RowUpdate // by row id
	Cells    []CellRef            // every targeted cell, saving-marked
	Projects []string             // touched project ids, deduped

	// Origin is the cell whose edit session triggered the commit; the UI
	// advances focus from it after a successful single-row commit.
	Origin CellRef
}

// RowPayloads shapes the batch for persistence: one entry per affected row
// carrying the full next hours map.
func (b *PendingBatch) RowPayloads() []RowHours {
	ids := make([]string, 0, len(b.Updates))
	for id := range b.Updates {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]RowHours, 0, len(ids))
	for _, id := range ids {
		out = append(out, RowHours{RowID: id, WeeklyHours: b.Updates[id].Next})
	}
	return out
}

// SingleCell reports whether the batch persists through the single-row call
// rather than the bulk call.
func (b *PendingBatch) SingleCell() bool {
	return len(b.Cells) == 1
}
