package grid

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"crewgrid/internal/model"
)

// EndReason says which gesture ended a cell edit. Everything except Escape is
// an implicit commit attempt; only Escape discards the input.
type EndReason int

const (
	EndEnter EndReason = iota
	EndBlur
	EndNavigate
	EndEscape
)

// Session is the single interactive text-edit state. At most one exists
// system-wide; it lives from begin-edit until commit or cancel.
type Session struct {
	RowID   string
	WeekKey string
	Seed    string
	Input   string
}

func (s *Session) Cell() CellRef {
	return CellRef{RowID: s.RowID, WeekKey: s.WeekKey}
}

// Editor owns the editing-cell state machine (idle → editing → committing)
// and the commit protocol: optimistic apply, batch persistence bookkeeping,
// rollback. Persistence itself is the caller's job (it is the async part);
// the editor hands out a PendingBatch and is told how it resolved.
type Editor struct {
	store *Store
	sel   *Selection

	session *Session

	nextID  int
	batches map[int]*PendingBatch
	saving  map[CellRef]int // cell -> owning batch id
}

func NewEditor(store *Store, sel *Selection) *Editor {
	return &Editor{
		store:   store,
		sel:     sel,
		batches: map[int]*PendingBatch{},
		saving:  map[CellRef]int{},
	}
}

// Begin opens the edit session on a cell. Seed is the text the session starts
// with (a typed digit, or the current value for enter/double-click edits).
func (e *Editor) Begin(rowID, weekKey, seed string) error {
	cell := CellRef{RowID: rowID, WeekKey: weekKey}
	if _, busy := e.saving[cell]; busy {
		return ErrCellBusy
	}
	if e.session != nil && e.session.Cell() != cell {
		return ErrSessionOpen
	}
	if _, ok := e.store.Row(rowID); !ok {
		return NotFoundError{Kind: "assignment", ID: rowID}
	}
	e.session = &Session{RowID: rowID, WeekKey: weekKey, Seed: seed, Input: seed}
	return nil
}

// Editing returns a copy of the open session, if any.
func (e *Editor) Editing() (Session, bool) {
	if e.session == nil {
		return Session{}, false
	}
	return *e.session, true
}

func (e *Editor) SetInput(text string) {
	if e.session != nil {
		e.session.Input = text
	}
}

// End closes the session for the given reason. For commit reasons it runs the
// commit protocol and returns the pending batch the caller must persist; the
// caller reports the outcome via Complete. Validation and collision errors
// keep the session open so the user can retry in place; Escape always closes
// without persisting.
func (e *Editor) End(reason EndReason) (*PendingBatch, error) {
	if e.session == nil {
		return nil, ErrNoSession
	}
	if reason == EndEscape {
		e.session = nil
		return nil, nil
	}

	v, err := ParseHours(e.session.Input)
	if err != nil {
		return nil, err
	}

	cells, err := e.commitTargets()
	if err != nil {
		return nil, err
	}
	for _, c := range cells {
		if _, busy := e.saving[c]; busy {
			return nil, ErrCellBusy
		}
	}

	batch, err := e.apply(v, cells, e.session.Cell())
	if err != nil {
		return nil, err
	}
	e.session = nil
	return batch, nil
}

// commitTargets resolves which cells the committed value applies to: the full
// selection when the edited cell sits inside a larger contiguous selection,
// otherwise just the edited cell.
func (e *Editor) commitTargets() ([]CellRef, error) {
	own := e.session.Cell()
	cells := e.sel.Cells()
	if len(cells) < 2 || !containsCell(cells, own) {
		return []CellRef{own}, nil
	}
	if err := checkContiguous(cells, e.store.Axis(), e.store); err != nil {
		return nil, err
	}
	return cells, nil
}

// apply performs the synchronous half of the protocol: snapshot prev, build
// next, write optimistically, mark saving. The store is already updated when
// this returns, so callers read their own write before persistence is issued.
func (e *Editor) apply(v float64, cells []CellRef, origin CellRef) (*PendingBatch, error) {
	weeksByRow := map[string][]string{}
	for _, c := range cells {
		weeksByRow[c.RowID] = append(weeksByRow[c.RowID], c.WeekKey)
	}

	updates := make(map[string]RowUpdate, len(weeksByRow))
	projects := map[string]bool{}
	kept := make([]CellRef, 0, len(cells))
	for rowID, weeks := range weeksByRow {
		prev, ok := e.store.RowHours(rowID)
		if !ok {
			// Row vanished (remote delete) since selection; skip it.
			continue
		}
		next := model.CloneHours(prev)
		for _, w := range weeks {
			next[w] = v
			kept = append(kept, CellRef{RowID: rowID, WeekKey: w})
		}
		updates[rowID] = RowUpdate{Prev: prev, Next: next}
		if pid, ok := e.store.ProjectOf(rowID); ok {
			projects[pid] = true
		}
	}
	if len(updates) == 0 {
		return nil, NotFoundError{Kind: "assignment", ID: origin.RowID}
	}

	e.nextID++
	batch := &PendingBatch{
		ID:       e.nextID,
		Value:    v,
		Updates:  updates,
		Cells:    kept,
		Projects: sortedKeys(projects),
		Origin:   origin,
	}

	for rowID, u := range updates {
		e.store.SetRowHours(rowID, u.Next)
	}
	for _, c := range kept {
		e.saving[c] = batch.ID
	}
	e.batches[batch.ID] = batch
	return batch, nil
}

// Complete resolves a batch. On failure every touched row's hours revert to
// the pre-batch snapshot (full rollback, never partial). The saving marks are
// cleared on both paths so a stuck saving indicator is impossible.
func (e *Editor) Complete(batchID int, persistErr error) (*PendingBatch, bool) {
	batch, ok := e.batches[batchID]
	if !ok {
		return nil, false
	}
	delete(e.batches, batchID)

	rolledBack := false
	if persistErr != nil {
		for rowID, u := range batch.Updates {
			// Rows deleted while in flight simply have nothing to restore.
			e.store.SetRowHours(rowID, u.Prev)
		}
		rolledBack = true
	}
	for _, c := range batch.Cells {
		if e.saving[c] == batchID {
			delete(e.saving, c)
		}
	}
	return batch, rolledBack
}

// CellSaving reports whether the cell has an outstanding batch.
func (e *Editor) CellSaving(rowID, weekKey string) bool {
	_, ok := e.saving[CellRef{RowID: rowID, WeekKey: weekKey}]
	return ok
}

// RowBusy reports whether the row has an open edit session or any cell in an
// outstanding batch. The sync reconciler uses this to let local intent win
// over racing remote hour changes.
func (e *Editor) RowBusy(rowID string) bool {
	if e.session != nil && e.session.RowID == rowID {
		return true
	}
	for c := range e.saving {
		if c.RowID == rowID {
			return true
		}
	}
	return false
}

// PendingCount is the number of outstanding batches.
func (e *Editor) PendingCount() int { return len(e.batches) }

// ParseHours validates cell input: a syntactically valid, finite,
// non-negative number.
func ParseHours(text string) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, ErrInvalidHours
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0, ErrInvalidHours
	}
	return v, nil
}

// checkContiguous enforces the multi-cell apply rule: one project and an
// unbroken week-index run.
func checkContiguous(cells []CellRef, axis *Axis, store *Store) error {
	project := ""
	weekIdx := map[int]bool{}
	for _, c := range cells {
		pid, ok := store.ProjectOf(c.RowID)
		if !ok {
			continue
		}
		if project == "" {
			project = pid
		} else if pid != project {
			return ErrNonContiguous
		}
		wi, ok := axis.Index(c.WeekKey)
		if !ok {
			return ErrNonContiguous
		}
		weekIdx[wi] = true
	}
	if len(weekIdx) == 0 {
		return ErrNonContiguous
	}
	idxs := make([]int, 0, len(weekIdx))
	for i := range weekIdx {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	for i := 1; i < len(idxs); i++ {
		if idxs[i] != idxs[0]+i {
			return ErrNonContiguous
		}
	}
	return nil
}

func containsCell(cells []CellRef, c CellRef) bool {
	for _, x := range cells {
		if x == c {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
