package grid

import (
	"testing"
	"time"
)

func TestNewAxis_DedupesAndIndexes(t *testing.T) {
	a := NewAxis([]string{"2026-03-02", "", "2026-03-09", "2026-03-02", "2026-03-16"})

	if a.Len() != 3 {
		t.Fatalf("expected 3 weeks after dedup, got %d", a.Len())
	}
	if k, ok := a.At(1); !ok || k != "2026-03-09" {
		t.Fatalf("expected week 1 = 2026-03-09, got %q ok=%v", k, ok)
	}
	if i, ok := a.Index("2026-03-16"); !ok || i != 2 {
		t.Fatalf("expected 2026-03-16 at index 2, got %d ok=%v", i, ok)
	}
	if _, ok := a.Index("2026-04-06"); ok {
		t.Fatalf("expected unknown week to miss")
	}
}

func TestWeekLabel(t *testing.T) {
	if got := WeekLabel("2026-03-02"); got != "Mar 2" {
		t.Fatalf("expected label Mar 2, got %q", got)
	}
	// Unparseable keys fall back to the raw key.
	if got := WeekLabel("w-bogus"); got != "w-bogus" {
		t.Fatalf("expected raw fallback, got %q", got)
	}
}

func TestWeekKeyFor_SnapsToMonday(t *testing.T) {
	// 2026-03-04 is a Wednesday; its week starts Monday 2026-03-02.
	wed := time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC)
	if got := WeekKeyFor(wed); got != "2026-03-02" {
		t.Fatalf("expected 2026-03-02, got %q", got)
	}
	// Sunday belongs to the week that began the previous Monday.
	sun := time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC)
	if got := WeekKeyFor(sun); got != "2026-03-02" {
		t.Fatalf("expected Sunday to map back to 2026-03-02, got %q", got)
	}
	mon := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	if got := WeekKeyFor(mon); got != "2026-03-02" {
		t.Fatalf("expected Monday to map to itself, got %q", got)
	}
}

func TestHorizonKeys_ConsecutiveWeeks(t *testing.T) {
	keys := HorizonKeys(time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC), 4)
	want := []string{"2026-03-02", "2026-03-09", "2026-03-16", "2026-03-23"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d keys, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("expected keys[%d]=%s, got %s", i, want[i], keys[i])
		}
	}
	if got := HorizonKeys(time.Now(), 0); got != nil {
		t.Fatalf("expected nil for zero horizon, got %v", got)
	}
}

func TestAxisColumns_LabelsEveryKey(t *testing.T) {
	a := NewAxis([]string{"2026-03-02", "2026-03-09"})
	cols := a.Columns()
	if len(cols) != 2 {
		t.Fatalf("expected 2 columns, got %d", len(cols))
	}
	if cols[0].Key != "2026-03-02" || cols[0].Label != "Mar 2" {
		t.Fatalf("expected labeled column, got %+v", cols[0])
	}
}
