package grid

import (
	"crewgrid/internal/model"
)

// Store is the in-memory projection the grid renders from: projects, their
// assignment rows, per-project weekly totals, and deliverable markers.
//
// It is mutated only by the edit engine, the sync reconciler, and snapshot
// loads, and it is owned by the UI update loop; no internal locking. Every
// hours write replaces the row's whole WeeklyHours map (clone-on-write), so a
// reader never observes a partially applied change and a rollback is a pure
// map reassignment.
type Store struct {
	axis     *Axis
	projects []model.Project
	rows     map[string][]model.AssignmentRow // by project id, row order preserved
	rowProj  map[string]string                // row id -> project id
	totals   map[string]model.ProjectHours
	markers  map[string]map[string][]model.DeliverableMarker
	deliv    map[string]map[string]int
}

func NewStore() *Store {
	return &Store{
		axis:    NewAxis(nil),
		rows:    map[string][]model.AssignmentRow{},
		rowProj: map[string]string{},
		totals:  map[string]model.ProjectHours{},
		markers: map[string]map[string][]model.DeliverableMarker{},
		deliv:   map[string]map[string]int{},
	}
}

// LoadSnapshot replaces the whole projection with a server snapshot.
func (s *Store) LoadSnapshot(snap *model.GridSnapshot) {
	if snap == nil {
		return
	}
	s.axis = NewAxis(snap.WeekKeys)
	s.projects = append([]model.Project(nil), snap.Projects...)
	s.rows = make(map[string][]model.AssignmentRow, len(snap.RowsByProject))
	s.rowProj = map[string]string{}
	for pid, rows := range snap.RowsByProject {
		bucket := make([]model.AssignmentRow, 0, len(rows))
		for _, r := range rows {
			bucket = append(bucket, r.Clone())
			s.rowProj[r.ID] = pid
		}
		s.rows[pid] = bucket
	}
	s.totals = make(map[string]model.ProjectHours, len(snap.HoursByProject))
	for pid, th := range snap.HoursByProject {
		s.totals[pid] = model.ProjectHours(model.CloneHours(th))
	}
	s.markers = snap.Markers
	if s.markers == nil {
		s.markers = map[string]map[string][]model.DeliverableMarker{}
	}
	s.deliv = snap.Deliverables
	if s.deliv == nil {
		s.deliv = map[string]map[string]int{}
	}
}

func (s *Store) Axis() *Axis { return s.axis }

// Projects returns the ordered project list. Callers must not mutate it.
func (s *Store) Projects() []model.Project { return s.projects }

func (s *Store) Project(id string) (model.Project, bool) {
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.Project{}, false
}

// RowsOf returns a project's rows in display order. Callers must not mutate.
func (s *Store) RowsOf(projectID string) []model.AssignmentRow {
	return s.rows[projectID]
}

// Row returns a copy of the row, so callers can read it without aliasing
// store state.
func (s *Store) Row(id string) (model.AssignmentRow, bool) {
	pid, ok := s.rowProj[id]
	if !ok {
		return model.AssignmentRow{}, false
	}
	for _, r := range s.rows[pid] {
		if r.ID == id {
			return r.Clone(), true
		}
	}
	return model.AssignmentRow{}, false
}

// ProjectOf resolves a row's owning project.
func (s *Store) ProjectOf(rowID string) (string, bool) {
	pid, ok := s.rowProj[rowID]
	return pid, ok
}

// Hours reads one cell; missing rows and weeks read as 0.
func (s *Store) Hours(rowID, weekKey string) float64 {
	r, ok := s.Row(rowID)
	if !ok {
		return 0
	}
	return r.HoursFor(weekKey)
}

// RowHours returns the row's current WeeklyHours map. The returned map is the
// live snapshot reference; by store convention it is never mutated in place,
// which is what makes it safe to keep as a rollback snapshot.
func (s *Store) RowHours(rowID string) (map[string]float64, bool) {
	pid, ok := s.rowProj[rowID]
	if !ok {
		return nil, false
	}
	for i := range s.rows[pid] {
		if s.rows[pid][i].ID == rowID {
			return s.rows[pid][i].WeeklyHours, true
		}
	}
	return nil, false
}

// SetRowHours atomically replaces a row's WeeklyHours map.
func (s *Store) SetRowHours(rowID string, hours map[string]float64) bool {
	pid, ok := s.rowProj[rowID]
	if !ok {
		return false
	}
	bucket := s.rows[pid]
	for i := range bucket {
		if bucket[i].ID == rowID {
			bucket[i].WeeklyHours = hours
			return true
		}
	}
	return false
}

// UpsertRow replaces the row in place when present (keeping its position),
// otherwise appends it to its project's list.
func (s *Store) UpsertRow(row model.AssignmentRow) {
	if row.ID == "" || row.ProjectID == "" {
		return
	}
	row = row.Clone()
	if prevPID, ok := s.rowProj[row.ID]; ok {
		if prevPID == row.ProjectID {
			bucket := s.rows[prevPID]
			for i := range bucket {
				if bucket[i].ID == row.ID {
					bucket[i] = row
					return
				}
			}
		}
		// Project moved: drop from the old bucket and fall through to append.
		s.removeFromBucket(prevPID, row.ID)
	}
	s.rows[row.ProjectID] = append(s.rows[row.ProjectID], row)
	s.rowProj[row.ID] = row.ProjectID
}

func (s *Store) removeFromBucket(projectID, rowID string) {
	bucket := s.rows[projectID]
	for i := range bucket {
		if bucket[i].ID == rowID {
			s.rows[projectID] = append(bucket[:i:i], bucket[i+1:]...)
			return
		}
	}
}

// RemoveRow deletes the row from its project's assignment list.
func (s *Store) RemoveRow(rowID string) bool {
	pid, ok := s.rowProj[rowID]
	if !ok {
		return false
	}
	s.removeFromBucket(pid, rowID)
	delete(s.rowProj, rowID)
	return true
}

// ApplyTotals replaces a project's weekly totals with the authoritative
// server values. Totals are never re-summed client-side.
func (s *Store) ApplyTotals(projectID string, totals model.ProjectHours) {
	s.totals[projectID] = model.ProjectHours(model.CloneHours(totals))
}

func (s *Store) Totals(projectID string) model.ProjectHours {
	return s.totals[projectID]
}

// TotalFor reads one project-week total, defaulting to 0.
func (s *Store) TotalFor(projectID, weekKey string) float64 {
	return s.totals[projectID][weekKey]
}

func (s *Store) MarkersAt(projectID, weekKey string) []model.DeliverableMarker {
	return s.markers[projectID][weekKey]
}

func (s *Store) DeliverableCount(projectID, weekKey string) int {
	return s.deliv[projectID][weekKey]
}
