package model

import "time"

type ProjectStatus string

const (
	ProjectActive   ProjectStatus = "active"
	ProjectPipeline ProjectStatus = "pipeline"
	ProjectOnHold   ProjectStatus = "on_hold"
	ProjectClosed   ProjectStatus = "closed"
)

// WeekColumn labels one grid column. Key is the Monday of the week as
// YYYY-MM-DD; the ordered key sequence from the server defines column indices.
type WeekColumn struct {
	Key   string `json:"key"`
	Label string `json:"label,omitempty"`
}

type Project struct {
	ID     string        `json:"id"`
	Name   string        `json:"name"`
	Client string        `json:"client,omitempty"`
	Status ProjectStatus `json:"status,omitempty"`
}

// AssignmentRow is one grid row: a person (or an unfilled role slot) staffed
// on a project, with hour allocations keyed by week.
//
// PersonID nil means a placeholder role slot that nobody fills yet; such rows
// still carry allocations so the project can be planned before staffing.
type AssignmentRow struct {
	ID         string  `json:"id"`
	ProjectID  string  `json:"projectId"`
	PersonID   *string `json:"personId,omitempty"`
	PersonName string  `json:"personName,omitempty"`
	RoleID     *string `json:"roleId,omitempty"`
	RoleName   string  `json:"roleName,omitempty"`

	// WeeklyHours maps WeekColumn.Key -> allocated hours. Missing key means 0.
	// Values are non-negative; validation happens before any write.
	WeeklyHours map[string]float64 `json:"weeklyHours"`
}

// DisplayName is what the row line shows: the person, else the role slot.
func (r AssignmentRow) DisplayName() string {
	if r.PersonID != nil && r.PersonName != "" {
		return r.PersonName
	}
	if r.RoleName != "" {
		return r.RoleName + " (unfilled)"
	}
	return r.PersonName
}

// HoursFor returns the allocation for a week, defaulting to 0.
func (r AssignmentRow) HoursFor(weekKey string) float64 {
	if r.WeeklyHours == nil {
		return 0
	}
	return r.WeeklyHours[weekKey]
}

// DeliverableMarker is read-only enrichment attached to (projectID, weekKey).
// The grid only displays it; classification happens elsewhere.
type DeliverableMarker struct {
	Type       string   `json:"type"`
	Percentage *float64 `json:"percentage,omitempty"`
	Dates      []string `json:"dates,omitempty"`
}

type ChangeType string

const (
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// ChangeEvent is a remote-change notification pushed to every session.
// Ordering is by ServerTime (server clock), never by arrival order.
type ChangeEvent struct {
	AssignmentID string     `json:"assignmentId"`
	ProjectID    string     `json:"projectId,omitempty"`
	Type         ChangeType `json:"type"`
	Fields       []string   `json:"fields,omitempty"`
	ServerTime   time.Time  `json:"serverTime"`
	// Row is the optional inline payload; when absent the consumer refetches.
	Row *AssignmentRow `json:"row,omitempty"`
}

// HoursChanged reports whether the event's changed fields include the
// weekly-hours map (the only field the edit guard cares about).
func (e ChangeEvent) HoursChanged() bool {
	for _, f := range e.Fields {
		if f == FieldWeeklyHours {
			return true
		}
	}
	return false
}

// Field names used in ChangeEvent.Fields.
const (
	FieldWeeklyHours = "weeklyHours"
	FieldPersonName  = "personName"
	FieldRoleName    = "roleName"
)

// ProjectHours holds a project's weekly totals as reported by the server.
type ProjectHours map[string]float64

// GridSnapshot is the initial load: the week horizon plus everything needed
// to render the grid in one fetch.
type GridSnapshot struct {
	WeekKeys       []string                                  `json:"weekKeys"`
	Projects       []Project                                 `json:"projects"`
	RowsByProject  map[string][]AssignmentRow                `json:"rowsByProject"`
	HoursByProject map[string]ProjectHours                   `json:"hoursByProject"`
	Deliverables   map[string]map[string]int                 `json:"deliverablesByProjectWeek,omitempty"`
	Markers        map[string]map[string][]DeliverableMarker `json:"markersByProjectWeek,omitempty"`
}

// Clone returns a deep copy of the row (fresh WeeklyHours map). Store writes
// always go through clones so readers never observe in-place mutation.
func (r AssignmentRow) Clone() AssignmentRow {
	out := r
	out.WeeklyHours = CloneHours(r.WeeklyHours)
	return out
}

// CloneHours copies a weekly-hours map; nil stays nil-safe (empty map).
func CloneHours(h map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
