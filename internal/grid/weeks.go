package grid

import (
	"time"

	"crewgrid/internal/model"
)

// Axis is the ordered week horizon that labels grid columns. Keys come from
// the server's snapshot and are immutable once fetched; the key order defines
// column indices 0..Len()-1.
type Axis struct {
	keys  []string
	index map[string]int
}

func NewAxis(weekKeys []string) *Axis {
	a := &Axis{
		keys:  make([]string, 0, len(weekKeys)),
		index: make(map[string]int, len(weekKeys)),
	}
	for _, k := range weekKeys {
		if k == "" {
			continue
		}
		if _, dup := a.index[k]; dup {
			continue
		}
		a.index[k] = len(a.keys)
		a.keys = append(a.keys, k)
	}
	return a
}

func (a *Axis) Len() int {
	if a == nil {
		return 0
	}
	return len(a.keys)
}

func (a *Axis) At(i int) (string, bool) {
	if a == nil || i < 0 || i >= len(a.keys) {
		return "", false
	}
	return a.keys[i], true
}

func (a *Axis) Index(key string) (int, bool) {
	if a == nil {
		return 0, false
	}
	i, ok := a.index[key]
	return i, ok
}

// Keys returns a copy of the ordered week keys.
func (a *Axis) Keys() []string {
	if a == nil {
		return nil
	}
	out := make([]string, len(a.keys))
	copy(out, a.keys)
	return out
}

// Columns materializes the axis as labeled columns for rendering.
func (a *Axis) Columns() []model.WeekColumn {
	if a == nil {
		return nil
	}
	out := make([]model.WeekColumn, 0, len(a.keys))
	for _, k := range a.keys {
		out = append(out, model.WeekColumn{Key: k, Label: WeekLabel(k)})
	}
	return out
}

// WeekLabel renders a short column header ("Jan 5") from a YYYY-MM-DD key.
// Unparseable keys fall back to the raw key so the column is never blank.
func WeekLabel(key string) string {
	t, err := time.Parse("2006-01-02", key)
	if err != nil {
		return key
	}
	return t.Format("Jan 2")
}

// WeekKeyFor returns the grid key (Monday, YYYY-MM-DD) of the week containing t.
func WeekKeyFor(t time.Time) string {
	wd := int(t.Weekday())
	// time.Weekday puts Sunday at 0; shift so Monday is the week start.
	if wd == 0 {
		wd = 7
	}
	monday := t.AddDate(0, 0, -(wd - 1))
	return monday.Format("2006-01-02")
}

// HorizonKeys builds n consecutive week keys starting at the week containing start.
func HorizonKeys(start time.Time, n int) []string {
	if n <= 0 {
		return nil
	}
	first, _ := time.Parse("2006-01-02", WeekKeyFor(start))
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, first.AddDate(0, 0, 7*i).Format("2006-01-02"))
	}
	return out
}
