package grid

import (
	"context"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ConflictQuery is one distinct (person, week) check derived from a resolved
// batch. Queries are built on the update loop, where store access is safe,
// and reviewed on a worker goroutine.
type ConflictQuery struct {
	PersonID   string
	PersonName string
	ProjectID  string
	WeekKey    string
	Delta      float64
}

// Warning is a single advisory message for the notice area.
type Warning struct {
	PersonName string
	WeekKey    string
	Message    string
}

// BuildQueries derives the advisor's work from a successfully persisted
// batch: one query per distinct (person, week) whose allocation changed in
// either direction. A reduced week still gets checked; the person may stay
// over capacity on other projects that week. Rows without a person (unnamed
// role rows) have nobody to overallocate and are skipped.
func BuildQueries(batch *PendingBatch, store *Store) []ConflictQuery {
	type key struct{ person, week string }
	agg := map[key]*ConflictQuery{}
	for rowID, u := range batch.Updates {
		row, ok := store.Row(rowID)
		if !ok || row.PersonID == nil || *row.PersonID == "" {
			continue
		}
		for week, next := range u.Next {
			delta := next - u.Prev[week]
			if delta == 0 {
				continue
			}
			k := key{person: *row.PersonID, week: week}
			q, ok := agg[k]
			if !ok {
				q = &ConflictQuery{
					PersonID:   *row.PersonID,
					PersonName: row.PersonName,
					ProjectID:  row.ProjectID,
					WeekKey:    week,
				}
				agg[k] = q
			}
			q.Delta += delta
		}
	}
	out := make([]ConflictQuery, 0, len(agg))
	for _, q := range agg {
		out = append(out, *q)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].PersonID != out[j].PersonID {
			return out[i].PersonID < out[j].PersonID
		}
		return out[i].WeekKey < out[j].WeekKey
	})
	return out
}

// Advisor runs best-effort conflict checks after a commit lands. It never
// blocks or fails an edit: check errors are dropped and only positive
// findings surface.
type Advisor struct {
	checker ConflictChecker
	limit   int
}

func NewAdvisor(checker ConflictChecker) *Advisor {
	return &Advisor{checker: checker, limit: 4}
}

// Review runs the queries concurrently and returns the warnings in a stable
// order. Safe to call off the update loop; it touches no shared state.
func (a *Advisor) Review(ctx context.Context, queries []ConflictQuery) []Warning {
	if a.checker == nil || len(queries) == 0 {
		return nil
	}
	var (
		mu       sync.Mutex
		warnings []Warning
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.limit)
	for _, q := range queries {
		g.Go(func() error {
			msgs, err := a.checker.Check(ctx, q.PersonID, q.ProjectID, q.WeekKey, q.Delta)
			if err != nil {
				// Advisory only; a failed check is silence, not an error.
				return nil
			}
			if len(msgs) == 0 {
				return nil
			}
			mu.Lock()
			for _, m := range msgs {
				warnings = append(warnings, Warning{
					PersonName: q.PersonName,
					WeekKey:    q.WeekKey,
					Message:    m,
				})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	sort.Slice(warnings, func(i, j int) bool {
		if warnings[i].PersonName != warnings[j].PersonName {
			return warnings[i].PersonName < warnings[j].PersonName
		}
		if warnings[i].WeekKey != warnings[j].WeekKey {
			return warnings[i].WeekKey < warnings[j].WeekKey
		}
		return warnings[i].Message < warnings[j].Message
	})
	return warnings
}
