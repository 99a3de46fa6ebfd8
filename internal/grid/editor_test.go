package grid

import (
	"errors"
	"testing"
)

func newTestEditor(t *testing.T) (*Store, *Selection, *Editor) {
	t.Helper()
	s := newTestStore(t)
	sel := NewSelection(testLayout())
	return s, sel, NewEditor(s, sel)
}

func TestEditor_CommitSingleCell_OptimisticThenResolved(t *testing.T) {
	s, _, ed := newTestEditor(t)

	if err := ed.Begin("row-dana", "2026-03-09", "6"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	batch, err := ed.End(EndEnter)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if batch == nil || !batch.SingleCell() || batch.Value != 6 {
		t.Fatalf("expected single-cell batch of 6, got %+v", batch)
	}

	// The write is visible immediately, before persistence resolves.
	if got := s.Hours("row-dana", "2026-03-09"); got != 6 {
		t.Fatalf("expected optimistic 6, got %v", got)
	}
	if !ed.CellSaving("row-dana", "2026-03-09") {
		t.Fatalf("expected cell marked saving")
	}
	if _, open := ed.Editing(); open {
		t.Fatalf("expected session closed once commit starts")
	}
	// Totals stay server-authoritative: nothing recomputed locally.
	if got := s.TotalFor("proj-alpha", "2026-03-09"); got != 0 {
		t.Fatalf("expected totals untouched by optimistic write, got %v", got)
	}

	payloads := batch.RowPayloads()
	if len(payloads) != 1 || payloads[0].RowID != "row-dana" {
		t.Fatalf("expected one row payload, got %+v", payloads)
	}
	if payloads[0].WeeklyHours["2026-03-02"] != 4 || payloads[0].WeeklyHours["2026-03-09"] != 6 {
		t.Fatalf("expected payload to carry the full next map, got %v", payloads[0].WeeklyHours)
	}

	resolved, rolledBack := ed.Complete(batch.ID, nil)
	if resolved == nil || rolledBack {
		t.Fatalf("expected clean resolution, batch=%v rolledBack=%v", resolved, rolledBack)
	}
	if ed.CellSaving("row-dana", "2026-03-09") {
		t.Fatalf("expected saving mark cleared")
	}
	if got := s.Hours("row-dana", "2026-03-09"); got != 6 {
		t.Fatalf("expected committed value kept, got %v", got)
	}
}

func TestEditor_FailedPersistRollsBackEveryCell(t *testing.T) {
	s, sel, ed := newTestEditor(t)

	// 2 rows x 1 week rectangle, edited from the focus cell.
	sel.Begin("row-dana", "2026-03-09")
	sel.Extend("row-ed", "2026-03-09")
	if err := ed.Begin("row-ed", "2026-03-09", "5"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	batch, err := ed.End(EndEnter)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if len(batch.Updates) != 2 || batch.SingleCell() {
		t.Fatalf("expected bulk batch over 2 rows, got %+v", batch)
	}
	if s.Hours("row-dana", "2026-03-09") != 5 || s.Hours("row-ed", "2026-03-09") != 5 {
		t.Fatalf("expected optimistic 5s, got %v and %v",
			s.Hours("row-dana", "2026-03-09"), s.Hours("row-ed", "2026-03-09"))
	}

	_, rolledBack := ed.Complete(batch.ID, errors.New("persist failed"))
	if !rolledBack {
		t.Fatalf("expected rollback")
	}
	if got := s.Hours("row-dana", "2026-03-09"); got != 0 {
		t.Fatalf("expected row-dana week restored to 0, got %v", got)
	}
	if got := s.Hours("row-ed", "2026-03-09"); got != 0 {
		t.Fatalf("expected row-ed week restored to 0, got %v", got)
	}
	// Untouched weeks keep their values through the rollback.
	if got := s.Hours("row-dana", "2026-03-02"); got != 4 {
		t.Fatalf("expected untouched week preserved, got %v", got)
	}
	if ed.CellSaving("row-dana", "2026-03-09") || ed.CellSaving("row-ed", "2026-03-09") {
		t.Fatalf("expected saving marks cleared after rollback")
	}

	// A duplicate resolution for the same batch is ignored.
	if b, again := ed.Complete(batch.ID, errors.New("persist failed")); b != nil || again {
		t.Fatalf("expected duplicate completion to be a no-op")
	}
	if got := s.Hours("row-dana", "2026-03-02"); got != 4 {
		t.Fatalf("expected store untouched by duplicate completion, got %v", got)
	}
}

func TestEditor_SelectionFillAppliesOneValueAcrossWeeks(t *testing.T) {
	s, sel, ed := newTestEditor(t)

	// 1x3 selection, then type the value at the focus cell and press enter.
	sel.Begin("row-ed", "2026-03-02")
	sel.Move(0, 1, true)
	sel.Move(0, 1, true)
	if err := ed.Begin("row-ed", "2026-03-16", "12"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	batch, err := ed.End(EndEnter)
	if err != nil {
		t.Fatalf("end: %v", err)
	}

	for _, wk := range []string{"2026-03-02", "2026-03-09", "2026-03-16"} {
		if got := s.Hours("row-ed", wk); got != 12 {
			t.Fatalf("expected 12 in %s, got %v", wk, got)
		}
		if !ed.CellSaving("row-ed", wk) {
			t.Fatalf("expected %s marked saving", wk)
		}
	}
	if len(batch.Cells) != 3 || len(batch.Updates) != 1 {
		t.Fatalf("expected one-row three-cell batch, got cells=%d updates=%d",
			len(batch.Cells), len(batch.Updates))
	}
	if batch.SingleCell() {
		t.Fatalf("expected bulk persistence for a multi-cell batch")
	}
}

func TestEditor_NonContiguousSelectionKeepsSessionOpen(t *testing.T) {
	s, sel, ed := newTestEditor(t)

	// Rectangle at week 0 plus an additive cell at week 2 leaves a gap.
	sel.Begin("row-ed", "2026-03-02")
	sel.SelectSingle("row-ed", "2026-03-16", true)
	if err := ed.Begin("row-ed", "2026-03-02", "3"); err != nil {
		t.Fatalf("begin: %v", err)
	}

	batch, err := ed.End(EndEnter)
	if !errors.Is(err, ErrNonContiguous) {
		t.Fatalf("expected ErrNonContiguous, got batch=%v err=%v", batch, err)
	}
	if _, open := ed.Editing(); !open {
		t.Fatalf("expected session kept open for correction")
	}
	if got := s.Hours("row-ed", "2026-03-02"); got != 0 {
		t.Fatalf("expected no optimistic write on validation failure, got %v", got)
	}
}

func TestEditor_InvalidInputKeepsSessionOpen(t *testing.T) {
	s, _, ed := newTestEditor(t)

	if err := ed.Begin("row-dana", "2026-03-09", "abc"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	for _, input := range []string{"abc", "-2", "", "12..5"} {
		ed.SetInput(input)
		if _, err := ed.End(EndEnter); !errors.Is(err, ErrInvalidHours) {
			t.Fatalf("input %q: expected ErrInvalidHours, got %v", input, err)
		}
		if _, open := ed.Editing(); !open {
			t.Fatalf("input %q: expected session kept open", input)
		}
	}

	// A corrected value then commits normally.
	ed.SetInput("7.5")
	batch, err := ed.End(EndEnter)
	if err != nil || batch == nil {
		t.Fatalf("expected corrected commit, got batch=%v err=%v", batch, err)
	}
	if got := s.Hours("row-dana", "2026-03-09"); got != 7.5 {
		t.Fatalf("expected 7.5, got %v", got)
	}
}

func TestEditor_EscapeDiscardsWithoutWriting(t *testing.T) {
	s, _, ed := newTestEditor(t)

	if err := ed.Begin("row-dana", "2026-03-09", "9"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	batch, err := ed.End(EndEscape)
	if batch != nil || err != nil {
		t.Fatalf("expected silent discard, got batch=%v err=%v", batch, err)
	}
	if _, open := ed.Editing(); open {
		t.Fatalf("expected session closed")
	}
	if got := s.Hours("row-dana", "2026-03-09"); got != 0 {
		t.Fatalf("expected no write on escape, got %v", got)
	}
}

func TestEditor_SavingCellRejectsNewEdits(t *testing.T) {
	_, sel, ed := newTestEditor(t)

	if err := ed.Begin("row-dana", "2026-03-09", "6"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	batch, err := ed.End(EndEnter)
	if err != nil {
		t.Fatalf("end: %v", err)
	}

	// Re-editing the in-flight cell is rejected until the batch resolves.
	if err := ed.Begin("row-dana", "2026-03-09", "7"); !errors.Is(err, ErrCellBusy) {
		t.Fatalf("expected ErrCellBusy, got %v", err)
	}
	// Other cells stay editable.
	if err := ed.Begin("row-dana", "2026-03-16", "2"); err != nil {
		t.Fatalf("expected sibling cell editable, got %v", err)
	}
	if _, err := ed.End(EndEscape); err != nil {
		t.Fatalf("escape: %v", err)
	}

	// A selection commit that overlaps the in-flight cell is rejected whole.
	sel.Begin("row-dana", "2026-03-09")
	sel.Extend("row-ed", "2026-03-09")
	if err := ed.Begin("row-ed", "2026-03-09", "4"); err != nil {
		t.Fatalf("begin on sibling row: %v", err)
	}
	if _, err := ed.End(EndEnter); !errors.Is(err, ErrCellBusy) {
		t.Fatalf("expected overlapping commit rejected with ErrCellBusy, got %v", err)
	}
	if _, open := ed.Editing(); !open {
		t.Fatalf("expected session kept open after collision")
	}

	ed.Complete(batch.ID, nil)
	if _, err := ed.End(EndEnter); err != nil {
		t.Fatalf("expected commit to pass once batch resolved, got %v", err)
	}
}

func TestEditor_SecondSessionRejectedUntilFirstEnds(t *testing.T) {
	_, _, ed := newTestEditor(t)

	if err := ed.Begin("row-dana", "2026-03-09", "1"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := ed.Begin("row-ed", "2026-03-09", "2"); !errors.Is(err, ErrSessionOpen) {
		t.Fatalf("expected ErrSessionOpen, got %v", err)
	}
	// Re-beginning the same cell reseeds instead of erroring.
	if err := ed.Begin("row-dana", "2026-03-09", "3"); err != nil {
		t.Fatalf("expected same-cell re-begin allowed, got %v", err)
	}
	if sess, _ := ed.Editing(); sess.Input != "3" {
		t.Fatalf("expected reseeded input 3, got %q", sess.Input)
	}
}

func TestEditor_RollbackSkipsRowDeletedInFlight(t *testing.T) {
	s, _, ed := newTestEditor(t)

	if err := ed.Begin("row-dana", "2026-03-09", "6"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	batch, err := ed.End(EndEnter)
	if err != nil {
		t.Fatalf("end: %v", err)
	}

	// Remote deletion lands while the batch is in flight.
	s.RemoveRow("row-dana")

	_, rolledBack := ed.Complete(batch.ID, errors.New("persist failed"))
	if !rolledBack {
		t.Fatalf("expected rollback path")
	}
	if _, ok := s.Row("row-dana"); ok {
		t.Fatalf("expected deleted row to stay deleted through rollback")
	}
	if ed.CellSaving("row-dana", "2026-03-09") {
		t.Fatalf("expected saving mark cleared for deleted row")
	}
}

func TestEditor_RowBusyTracksSessionAndBatches(t *testing.T) {
	_, _, ed := newTestEditor(t)

	if ed.RowBusy("row-dana") {
		t.Fatalf("expected idle row not busy")
	}
	if err := ed.Begin("row-dana", "2026-03-09", "6"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !ed.RowBusy("row-dana") {
		t.Fatalf("expected open session to mark row busy")
	}
	batch, err := ed.End(EndEnter)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !ed.RowBusy("row-dana") {
		t.Fatalf("expected in-flight batch to mark row busy")
	}
	if ed.RowBusy("row-ed") {
		t.Fatalf("expected unrelated row not busy")
	}
	ed.Complete(batch.ID, nil)
	if ed.RowBusy("row-dana") {
		t.Fatalf("expected row idle after resolution")
	}
}

func TestEditor_CommitOutsideSelectionTargetsOwnCellOnly(t *testing.T) {
	s, sel, ed := newTestEditor(t)

	// A selection exists elsewhere; the edited cell is not part of it.
	sel.Begin("row-ed", "2026-03-02")
	sel.Extend("row-ed", "2026-03-16")

	if err := ed.Begin("row-dana", "2026-03-23", "2"); err != nil {
		t.Fatalf("begin: %v", err)
	}
	batch, err := ed.End(EndEnter)
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !batch.SingleCell() {
		t.Fatalf("expected single-cell commit, got %+v", batch)
	}
	if got := s.Hours("row-ed", "2026-03-02"); got != 0 {
		t.Fatalf("expected selection cells untouched, got %v", got)
	}
}

func TestParseHours(t *testing.T) {
	valid := map[string]float64{
		"0":     0,
		"7":     7,
		" 7.5 ": 7.5,
		"40":    40,
	}
	for in, want := range valid {
		got, err := ParseHours(in)
		if err != nil || got != want {
			t.Fatalf("ParseHours(%q): expected %v, got %v err=%v", in, want, got, err)
		}
	}
	for _, in := range []string{"", " ", "abc", "-1", "1e999", "NaN", "Inf", "12..5"} {
		if _, err := ParseHours(in); !errors.Is(err, ErrInvalidHours) {
			t.Fatalf("ParseHours(%q): expected ErrInvalidHours, got %v", in, err)
		}
	}
}
