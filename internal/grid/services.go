package grid

import (
	"context"

	"crewgrid/internal/model"
)

// Scope carries the opaque narrowing filters (department/vertical) that every
// server call is scoped by. Empty fields mean "no filter".
type Scope struct {
	Department string
	Vertical   string
}

// RowHours is one row's worth of a bulk hours write.
type RowHours struct {
	RowID       string             `json:"rowId"`
	WeeklyHours map[string]float64 `json:"weeklyHours"`
}

// NewAssignment describes an explicit "add person" / "add role" action.
// Exactly one of PersonName or RoleName is expected.
type NewAssignment struct {
	ProjectID  string  `json:"projectId"`
	PersonID   *string `json:"personId,omitempty"`
	PersonName string  `json:"personName,omitempty"`
	RoleID     *string `json:"roleId,omitempty"`
	RoleName   string  `json:"roleName,omitempty"`
}

// RowFields is a partial non-hours update (hours go through HoursService).
type RowFields struct {
	PersonName *string `json:"personName,omitempty"`
	RoleName   *string `json:"roleName,omitempty"`
}

// SnapshotService loads the whole grid in one fetch.
type SnapshotService interface {
	GetSnapshot(ctx context.Context, weeks int, scope Scope) (*model.GridSnapshot, error)
}

// AssignmentService is the row CRUD surface.
type AssignmentService interface {
	List(ctx context.Context, projectID string, scope Scope) ([]model.AssignmentRow, error)
	Get(ctx context.Context, rowID string) (*model.AssignmentRow, error)
	Create(ctx context.Context, na NewAssignment) (*model.AssignmentRow, error)
	Update(ctx context.Context, rowID string, fields RowFields) (*model.AssignmentRow, error)
	Delete(ctx context.Context, rowID string) error
}

// HoursService persists hour allocations. A single-cell commit uses
// UpdateHours; a multi-cell commit collapses into one BulkUpdateHours call.
type HoursService interface {
	UpdateHours(ctx context.Context, rowID string, hours map[string]float64) error
	BulkUpdateHours(ctx context.Context, updates []RowHours) error
}

// TotalsService fetches authoritative per-project weekly totals.
type TotalsService interface {
	GetTotals(ctx context.Context, projectIDs []string, weeks int, scope Scope) (map[string]model.ProjectHours, error)
}

// ConflictChecker is the best-effort overallocation advisory. Failures are
// swallowed by the caller; a failed check never blocks an edit.
type ConflictChecker interface {
	Check(ctx context.Context, personID, projectID, weekKey string, deltaHours float64) ([]string, error)
}
