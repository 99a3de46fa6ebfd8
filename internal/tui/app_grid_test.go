package tui

import (
	"context"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

func strPtr(s string) *string { return &s }

type updateHoursCall struct {
	rowID string
	hours map[string]float64
}

type checkCall struct {
	personID  string
	projectID string
	weekKey   string
	delta     float64
}

// fakeBackend satisfies every grid service and records calls. Tests execute
// the returned commands by hand; only the conflict checker runs on worker
// goroutines, so the recorder is mutex-guarded throughout for uniformity.
type fakeBackend struct {
	mu sync.Mutex

	snapshot      *model.GridSnapshot
	snapshotErr   error
	snapshotCalls int

	updates  []updateHoursCall
	bulk     [][]grid.RowHours
	hoursErr error

	totals      map[string]model.ProjectHours
	totalsCalls [][]string

	row    *model.AssignmentRow
	rowErr error
	gets   []string

	createRow *model.AssignmentRow
	createErr error
	created   []grid.NewAssignment

	deleteErr error
	deleted   []string

	checkMsgs []string
	checkErr  error
	checks    []checkCall
}

func (f *fakeBackend) GetSnapshot(ctx context.Context, weeks int, scope grid.Scope) (*model.GridSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshotCalls++
	if f.snapshotErr != nil {
		return nil, f.snapshotErr
	}
	return f.snapshot, nil
}

func (f *fakeBackend) List(ctx context.Context, projectID string, scope grid.Scope) ([]model.AssignmentRow, error) {
	return nil, nil
}

func (f *fakeBackend) Get(ctx context.Context, rowID string) (*model.AssignmentRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets = append(f.gets, rowID)
	if f.rowErr != nil {
		return nil, f.rowErr
	}
	return f.row, nil
}

func (f *fakeBackend) Create(ctx context.Context, na grid.NewAssignment) (*model.AssignmentRow, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, na)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.createRow, nil
}

func (f *fakeBackend) Update(ctx context.Context, rowID string, fields grid.RowFields) (*model.AssignmentRow, error) {
	return nil, nil
}

func (f *fakeBackend) Delete(ctx context.Context, rowID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, rowID)
	return f.deleteErr
}

func (f *fakeBackend) UpdateHours(ctx context.Context, rowID string, hours map[string]float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, updateHoursCall{rowID: rowID, hours: hours})
	return f.hoursErr
}

func (f *fakeBackend) BulkUpdateHours(ctx context.Context, updates []grid.RowHours) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bulk = append(f.bulk, updates)
	return f.hoursErr
}

func (f *fakeBackend) GetTotals(ctx context.Context, projectIDs []string, weeks int, scope grid.Scope) (map[string]model.ProjectHours, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.totalsCalls = append(f.totalsCalls, projectIDs)
	return f.totals, nil
}

func (f *fakeBackend) Check(ctx context.Context, personID, projectID, weekKey string, deltaHours float64) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks = append(f.checks, checkCall{personID: personID, projectID: projectID, weekKey: weekKey, delta: deltaHours})
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return f.checkMsgs, nil
}

// Four-week fixture: two projects, a two-person project and one with a single
// unfilled role slot.
const (
	week0 = "2026-01-05"
	week1 = "2026-01-12"
	week2 = "2026-01-19"
	week3 = "2026-01-26"
)

func testSnapshot() *model.GridSnapshot {
	return &model.GridSnapshot{
		WeekKeys: []string{week0, week1, week2, week3},
		Projects: []model.Project{
			{ID: "proj-a", Name: "Atlas Replatform", Client: "Northwind", Status: model.ProjectActive},
			{ID: "proj-b", Name: "Beacon App", Client: "Juniper", Status: model.ProjectActive},
		},
		RowsByProject: map[string][]model.AssignmentRow{
			"proj-a": {
				{ID: "row-dana", ProjectID: "proj-a", PersonID: strPtr("per-dana"), PersonName: "Dana Reyes",
					WeeklyHours: map[string]float64{week0: 20, week1: 20}},
				{ID: "row-ed", ProjectID: "proj-a", PersonID: strPtr("per-ed"), PersonName: "Ed Okafor",
					WeeklyHours: map[string]float64{week1: 8}},
			},
			"proj-b": {
				{ID: "row-role", ProjectID: "proj-b", RoleID: strPtr("role-qa"), RoleName: "QA Engineer",
					WeeklyHours: map[string]float64{}},
			},
		},
		HoursByProject: map[string]model.ProjectHours{
			"proj-a": {week0: 20, week1: 28},
			"proj-b": {},
		},
	}
}

// newTestApp builds a sized, loaded model. The snapshot is injected directly
// so the fake's snapshot call counter starts at zero.
func newTestApp(t *testing.T) (appModel, *fakeBackend) {
	t.Helper()
	f := &fakeBackend{snapshot: testSnapshot(), totals: map[string]model.ProjectHours{}}
	m := newAppModel(Services{Snapshot: f, Rows: f, Hours: f, Totals: f, Conflicts: f}, 4, grid.Scope{})
	mm, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	m = mm.(appModel)
	mm, _ = m.Update(snapshotMsg{snap: testSnapshot()})
	m = mm.(appModel)
	return m, f
}

func pressRune(t *testing.T, m appModel, r rune) (appModel, tea.Cmd) {
	t.Helper()
	mm, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	return mm.(appModel), cmd
}

func pressKey(t *testing.T, m appModel, key tea.KeyType) (appModel, tea.Cmd) {
	t.Helper()
	mm, cmd := m.Update(tea.KeyMsg{Type: key})
	return mm.(appModel), cmd
}

// drainCmd executes a command tree (following batches and ticks) and returns
// the produced messages in execution order.
func drainCmd(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drainCmd(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// feedMsgs applies messages to the model in order, draining any follow-up
// commands they produce.
func feedMsgs(t *testing.T, m appModel, msgs []tea.Msg) appModel {
	t.Helper()
	for len(msgs) > 0 {
		msg := msgs[0]
		msgs = msgs[1:]
		mm, cmd := m.Update(msg)
		m = mm.(appModel)
		msgs = append(msgs, drainCmd(cmd)...)
	}
	return m
}
