package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

var ErrNegativeHours = errors.New("hours must be non-negative")

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// Project is the server-side project record: the wire shape plus the opaque
// scope fields snapshots and totals are narrowed by.
type Project struct {
	model.Project
	Department string `json:"department,omitempty"`
	Vertical   string `json:"vertical,omitempty"`
}

func (p Project) inScope(scope grid.Scope) bool {
	if scope.Department != "" && !strings.EqualFold(scope.Department, p.Department) {
		return false
	}
	if scope.Vertical != "" && !strings.EqualFold(scope.Vertical, p.Vertical) {
		return false
	}
	return true
}

// Store is the authoritative planning state: projects, assignment rows with
// their weekly hour maps, and deliverable markers. State lives in memory and
// every mutation is written through to SQLite in the same critical section,
// so a restart resumes exactly where the last write left off.
type Store struct {
	db *sql.DB

	mu       sync.RWMutex
	projects []Project
	rows     map[string][]model.AssignmentRow // by project id, insertion order
	rowProj  map[string]string
	markers  map[string]map[string][]model.DeliverableMarker
}

// OpenStore opens (creating if needed) the SQLite database at path and loads
// the full state into memory.
func OpenStore(ctx context.Context, path string) (*Store, error) {
	// modernc.org/sqlite driver name is "sqlite".
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// WAL enables one writer + many readers; busy_timeout helps avoid
	// "database is locked" flakiness.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &Store{
		db:      db,
		rows:    map[string][]model.AssignmentRow{},
		rowProj: map[string]string{},
		markers: map[string]map[string][]model.DeliverableMarker{},
	}
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			department TEXT NOT NULL,
			vertical TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS assignments (
			id TEXT PRIMARY KEY,
			project_id TEXT NOT NULL,
			person_id TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at_unixms INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_project ON assignments(project_id);`,
		`CREATE INDEX IF NOT EXISTS idx_assignments_person ON assignments(person_id);`,
		`CREATE TABLE IF NOT EXISTS markers (
			project_id TEXT NOT NULL,
			week_key TEXT NOT NULL,
			json TEXT NOT NULL,
			PRIMARY KEY (project_id, week_key)
		);`,
	}
	for _, st := range stmts {
		if _, err := db.ExecContext(ctx, st); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) load(ctx context.Context) error {
	projects, err := readJSONRows[Project](ctx, s.db, `SELECT json FROM projects ORDER BY name, id`)
	if err != nil {
		return err
	}
	s.projects = projects

	assignments, err := readJSONRows[model.AssignmentRow](ctx, s.db, `SELECT json FROM assignments ORDER BY updated_at_unixms, id`)
	if err != nil {
		return err
	}
	for _, r := range assignments {
		if r.WeeklyHours == nil {
			r.WeeklyHours = map[string]float64{}
		}
		s.rows[r.ProjectID] = append(s.rows[r.ProjectID], r)
		s.rowProj[r.ID] = r.ProjectID
	}

	mrows, err := s.db.QueryContext(ctx, `SELECT project_id, week_key, json FROM markers`)
	if err != nil {
		return err
	}
	defer mrows.Close()
	for mrows.Next() {
		var pid, week, raw string
		if err := mrows.Scan(&pid, &week, &raw); err != nil {
			return err
		}
		var ms []model.DeliverableMarker
		if err := json.Unmarshal([]byte(raw), &ms); err != nil {
			return err
		}
		if s.markers[pid] == nil {
			s.markers[pid] = map[string][]model.DeliverableMarker{}
		}
		s.markers[pid][week] = ms
	}
	return mrows.Err()
}

func readJSONRows[T any](ctx context.Context, db *sql.DB, query string) ([]T, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// Empty reports whether the store holds no projects (fresh database).
func (s *Store) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.projects) == 0
}

// Snapshot assembles the one-fetch grid load for the given horizon and scope.
func (s *Store) Snapshot(weekKeys []string, scope grid.Scope) *model.GridSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &model.GridSnapshot{
		WeekKeys:       weekKeys,
		RowsByProject:  map[string][]model.AssignmentRow{},
		HoursByProject: map[string]model.ProjectHours{},
		Deliverables:   map[string]map[string]int{},
		Markers:        map[string]map[string][]model.DeliverableMarker{},
	}
	for _, p := range s.projects {
		if !p.inScope(scope) {
			continue
		}
		snap.Projects = append(snap.Projects, p.Project)
		bucket := make([]model.AssignmentRow, 0, len(s.rows[p.ID]))
		for _, r := range s.rows[p.ID] {
			bucket = append(bucket, r.Clone())
		}
		snap.RowsByProject[p.ID] = bucket
		snap.HoursByProject[p.ID] = s.totalsLocked(p.ID, weekKeys)
		if ms := s.markers[p.ID]; len(ms) > 0 {
			counts := map[string]int{}
			weeks := map[string][]model.DeliverableMarker{}
			for week, list := range ms {
				counts[week] = len(list)
				weeks[week] = list
			}
			snap.Deliverables[p.ID] = counts
			snap.Markers[p.ID] = weeks
		}
	}
	return snap
}

// ListRows returns rows of one project, or of every in-scope project when
// projectID is empty.
func (s *Store) ListRows(projectID string, scope grid.Scope) []model.AssignmentRow {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.AssignmentRow
	for _, p := range s.projects {
		if projectID != "" && p.ID != projectID {
			continue
		}
		if !p.inScope(scope) {
			continue
		}
		for _, r := range s.rows[p.ID] {
			out = append(out, r.Clone())
		}
	}
	return out
}

func (s *Store) Row(id string) (model.AssignmentRow, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rowLocked(id)
	if !ok {
		return model.AssignmentRow{}, false
	}
	return r.Clone(), true
}

func (s *Store) rowLocked(id string) (model.AssignmentRow, bool) {
	pid, ok := s.rowProj[id]
	if !ok {
		return model.AssignmentRow{}, false
	}
	for _, r := range s.rows[pid] {
		if r.ID == id {
			return r, true
		}
	}
	return model.AssignmentRow{}, false
}

// CreateProject registers a project. Used by seeding and tests; the grid
// itself never creates projects.
func (s *Store) CreateProject(ctx context.Context, p Project) (Project, error) {
	if p.ID == "" {
		p.ID = "proj-" + uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := json.Marshal(p)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO projects(id, name, department, vertical, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Department, p.Vertical, string(raw), time.Now().UTC().UnixMilli())
	if err != nil {
		return Project{}, err
	}
	for i := range s.projects {
		if s.projects[i].ID == p.ID {
			s.projects[i] = p
			return p, nil
		}
	}
	s.projects = append(s.projects, p)
	return p, nil
}

// SetMarkers attaches deliverable markers to a project week. Markers are
// enrichment data owned elsewhere; the grid only reads them.
func (s *Store) SetMarkers(ctx context.Context, projectID, weekKey string, ms []model.DeliverableMarker) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, _ := json.Marshal(ms)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO markers(project_id, week_key, json) VALUES(?, ?, ?)`,
		projectID, weekKey, string(raw))
	if err != nil {
		return err
	}
	if s.markers[projectID] == nil {
		s.markers[projectID] = map[string][]model.DeliverableMarker{}
	}
	s.markers[projectID][weekKey] = ms
	return nil
}

// CreateRow adds an assignment row from an explicit add-person / add-role
// action. Row ids are server-minted; a named person without an id gets one
// minted too so cross-project allocation checks can track them.
func (s *Store) CreateRow(ctx context.Context, na grid.NewAssignment) (model.AssignmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := false
	for _, p := range s.projects {
		if p.ID == na.ProjectID {
			found = true
			break
		}
	}
	if !found {
		return model.AssignmentRow{}, NotFoundError{Kind: "project", ID: na.ProjectID}
	}

	row := model.AssignmentRow{
		ID:          "row-" + uuid.NewString(),
		ProjectID:   na.ProjectID,
		PersonName:  strings.TrimSpace(na.PersonName),
		RoleID:      na.RoleID,
		RoleName:    strings.TrimSpace(na.RoleName),
		WeeklyHours: map[string]float64{},
	}
	switch {
	case na.PersonID != nil && *na.PersonID != "":
		row.PersonID = na.PersonID
	case row.PersonName != "":
		id := "per-" + uuid.NewString()
		row.PersonID = &id
	}

	if err := s.persistRow(ctx, row); err != nil {
		return model.AssignmentRow{}, err
	}
	s.rows[row.ProjectID] = append(s.rows[row.ProjectID], row)
	s.rowProj[row.ID] = row.ProjectID
	return row.Clone(), nil
}

// UpdateRowFields applies a partial non-hours update.
func (s *Store) UpdateRowFields(ctx context.Context, id string, fields grid.RowFields) (model.AssignmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rowLocked(id)
	if !ok {
		return model.AssignmentRow{}, NotFoundError{Kind: "assignment", ID: id}
	}
	if fields.PersonName != nil {
		row.PersonName = strings.TrimSpace(*fields.PersonName)
	}
	if fields.RoleName != nil {
		row.RoleName = strings.TrimSpace(*fields.RoleName)
	}
	if err := s.persistRow(ctx, row); err != nil {
		return model.AssignmentRow{}, err
	}
	s.replaceLocked(row)
	return row.Clone(), nil
}

// DeleteRow removes the row, returning its last state for event emission.
func (s *Store) DeleteRow(ctx context.Context, id string) (model.AssignmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.rowLocked(id)
	if !ok {
		return model.AssignmentRow{}, NotFoundError{Kind: "assignment", ID: id}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = ?`, id); err != nil {
		return model.AssignmentRow{}, err
	}
	bucket := s.rows[row.ProjectID]
	for i := range bucket {
		if bucket[i].ID == id {
			s.rows[row.ProjectID] = append(bucket[:i:i], bucket[i+1:]...)
			break
		}
	}
	delete(s.rowProj, id)
	return row, nil
}

// SetRowHours replaces one row's weekly allocation map.
func (s *Store) SetRowHours(ctx context.Context, id string, hours map[string]float64) (model.AssignmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setHoursLocked(ctx, id, hours)
}

// BulkSetRowHours applies several rows' hours in one transaction: the whole
// payload lands or none of it does.
func (s *Store) BulkSetRowHours(ctx context.Context, updates []grid.RowHours) ([]model.AssignmentRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything up front so a bad entry rejects the whole batch
	// before any state changes.
	next := make([]model.AssignmentRow, 0, len(updates))
	for _, u := range updates {
		row, ok := s.rowLocked(u.RowID)
		if !ok {
			return nil, NotFoundError{Kind: "assignment", ID: u.RowID}
		}
		if err := validateHours(u.WeeklyHours); err != nil {
			return nil, err
		}
		row.WeeklyHours = sanitizeHours(u.WeeklyHours)
		next = append(next, row)
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()
	nowMs := time.Now().UTC().UnixMilli()
	for _, row := range next {
		raw, _ := json.Marshal(row)
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO assignments(id, project_id, person_id, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
			row.ID, row.ProjectID, personIDOf(row), string(raw), nowMs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	out := make([]model.AssignmentRow, 0, len(next))
	for _, row := range next {
		s.replaceLocked(row)
		out = append(out, row.Clone())
	}
	return out, nil
}

func (s *Store) setHoursLocked(ctx context.Context, id string, hours map[string]float64) (model.AssignmentRow, error) {
	row, ok := s.rowLocked(id)
	if !ok {
		return model.AssignmentRow{}, NotFoundError{Kind: "assignment", ID: id}
	}
	if err := validateHours(hours); err != nil {
		return model.AssignmentRow{}, err
	}
	row.WeeklyHours = sanitizeHours(hours)
	if err := s.persistRow(ctx, row); err != nil {
		return model.AssignmentRow{}, err
	}
	s.replaceLocked(row)
	return row.Clone(), nil
}

// Totals sums each requested project's rows per week, restricted to the
// horizon. This is the authoritative figure clients refresh after commits.
func (s *Store) Totals(projectIDs []string, weekKeys []string, scope grid.Scope) map[string]model.ProjectHours {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := map[string]bool{}
	for _, id := range projectIDs {
		want[id] = true
	}
	out := map[string]model.ProjectHours{}
	for _, p := range s.projects {
		if len(want) > 0 && !want[p.ID] {
			continue
		}
		if !p.inScope(scope) {
			continue
		}
		out[p.ID] = s.totalsLocked(p.ID, weekKeys)
	}
	return out
}

func (s *Store) totalsLocked(projectID string, weekKeys []string) model.ProjectHours {
	totals := model.ProjectHours{}
	inHorizon := map[string]bool{}
	for _, k := range weekKeys {
		inHorizon[k] = true
	}
	for _, r := range s.rows[projectID] {
		for week, v := range r.WeeklyHours {
			if len(inHorizon) > 0 && !inHorizon[week] {
				continue
			}
			if v == 0 {
				continue
			}
			totals[week] += v
		}
	}
	return totals
}

// PersonWeekLoad is the person's allocation summed across every project for
// one week, plus the number of projects contributing hours. Drives the
// overallocation check.
func (s *Store) PersonWeekLoad(personID, weekKey string) (total float64, projects int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, bucket := range s.rows {
		var onProject float64
		for _, r := range bucket {
			if r.PersonID == nil || *r.PersonID != personID {
				continue
			}
			onProject += r.WeeklyHours[weekKey]
		}
		if onProject > 0 {
			total += onProject
			projects++
		}
	}
	return total, projects
}

func (s *Store) persistRow(ctx context.Context, row model.AssignmentRow) error {
	raw, _ := json.Marshal(row)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO assignments(id, project_id, person_id, json, updated_at_unixms) VALUES(?, ?, ?, ?, ?)`,
		row.ID, row.ProjectID, personIDOf(row), string(raw), time.Now().UTC().UnixMilli())
	return err
}

func (s *Store) replaceLocked(row model.AssignmentRow) {
	bucket := s.rows[row.ProjectID]
	for i := range bucket {
		if bucket[i].ID == row.ID {
			bucket[i] = row
			return
		}
	}
	s.rows[row.ProjectID] = append(bucket, row)
	s.rowProj[row.ID] = row.ProjectID
}

func personIDOf(row model.AssignmentRow) string {
	if row.PersonID == nil {
		return ""
	}
	return *row.PersonID
}

func validateHours(hours map[string]float64) error {
	for _, v := range hours {
		if v < 0 {
			return ErrNegativeHours
		}
	}
	return nil
}

// sanitizeHours copies the map, dropping zero entries so rows don't
// accumulate dead keys as cells are cleared.
func sanitizeHours(hours map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(hours))
	for k, v := range hours {
		if v == 0 {
			continue
		}
		out[k] = v
	}
	return out
}

// ProjectIDs returns every project id, for callers that fan out per project.
func (s *Store) ProjectIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.projects))
	for _, p := range s.projects {
		out = append(out, p.ID)
	}
	sort.Strings(out)
	return out
}
