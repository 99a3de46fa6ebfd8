package server

import (
	"context"
	"time"

	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

// seedDemo loads a small believable staffing picture into an empty store:
// three projects, a handful of people (one of them split across projects),
// an unfilled role slot, and a couple of deliverable markers inside the
// default horizon.
func seedDemo(ctx context.Context, st *Store) error {
	weeks := grid.HorizonKeys(time.Now(), 8)

	projects := []Project{
		{Project: model.Project{ID: "proj-atlas", Name: "Atlas Replatform", Client: "Northwind", Status: model.ProjectActive}, Department: "Engineering", Vertical: "Retail"},
		{Project: model.Project{ID: "proj-beacon", Name: "Beacon Mobile App", Client: "Juniper Health", Status: model.ProjectActive}, Department: "Engineering", Vertical: "Health"},
		{Project: model.Project{ID: "proj-calliope", Name: "Calliope Brand Refresh", Client: "Violet & Co", Status: model.ProjectPipeline}, Department: "Design", Vertical: "Retail"},
	}
	for _, p := range projects {
		if _, err := st.CreateProject(ctx, p); err != nil {
			return err
		}
	}

	maya := "per-maya"
	jonas := "per-jonas"
	priya := "per-priya"
	sam := "per-sam"
	qa := "role-qa"

	seedRows := []struct {
		na    grid.NewAssignment
		hours map[string]float64
	}{
		{
			na:    grid.NewAssignment{ProjectID: "proj-atlas", PersonID: &maya, PersonName: "Maya Chen"},
			hours: map[string]float64{weeks[0]: 32, weeks[1]: 32, weeks[2]: 24, weeks[3]: 24},
		},
		{
			na:    grid.NewAssignment{ProjectID: "proj-atlas", PersonID: &jonas, PersonName: "Jonas Weber"},
			hours: map[string]float64{weeks[0]: 40, weeks[1]: 40, weeks[2]: 40},
		},
		{
			na:    grid.NewAssignment{ProjectID: "proj-atlas", RoleID: &qa, RoleName: "QA Engineer"},
			hours: map[string]float64{weeks[2]: 16, weeks[3]: 16, weeks[4]: 16},
		},
		{
			na:    grid.NewAssignment{ProjectID: "proj-beacon", PersonID: &priya, PersonName: "Priya Nair"},
			hours: map[string]float64{weeks[0]: 24, weeks[1]: 24, weeks[2]: 32, weeks[3]: 32},
		},
		{
			// Maya is split across Atlas and Beacon, so pushing either
			// side up trips the overallocation advisory.
			na:    grid.NewAssignment{ProjectID: "proj-beacon", PersonID: &maya, PersonName: "Maya Chen"},
			hours: map[string]float64{weeks[0]: 8, weeks[1]: 8, weeks[2]: 8},
		},
		{
			na:    grid.NewAssignment{ProjectID: "proj-calliope", PersonID: &sam, PersonName: "Sam Ortiz"},
			hours: map[string]float64{weeks[1]: 16, weeks[2]: 16},
		},
	}
	for _, sr := range seedRows {
		row, err := st.CreateRow(ctx, sr.na)
		if err != nil {
			return err
		}
		if _, err := st.SetRowHours(ctx, row.ID, sr.hours); err != nil {
			return err
		}
	}

	pct := 60.0
	if err := st.SetMarkers(ctx, "proj-atlas", weeks[3], []model.DeliverableMarker{
		{Type: "delivery", Percentage: &pct, Dates: []string{weeks[3]}},
	}); err != nil {
		return err
	}
	return st.SetMarkers(ctx, "proj-beacon", weeks[5], []model.DeliverableMarker{
		{Type: "milestone", Dates: []string{weeks[5]}},
	})
}
