package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"crewgrid/internal/model"
)

func newGridCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "grid",
		Short: "Print the staffing grid as a table",
		Long: strings.TrimSpace(`
Fetch the grid snapshot and print it as a plain table: one line per assignment
row with its row id and hours per week, plus a totals line per project. Week
columns use the same YYYY-MM-DD keys that hours set/get take, so the output
can be fed back into scripts.
`),
		Example: strings.TrimSpace(`
  # Whole grid for the configured horizon
  crewgrid grid

  # Eight weeks of one department
  crewgrid grid --weeks 8 --department Engineering
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			snap, err := newClient(cfg).GetSnapshot(cmd.Context(), cfg.Grid.Weeks, scopeOf(cfg))
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := writeGridTable(cmd.OutOrStdout(), snap); err != nil {
				return writeErr(cmd, err)
			}
			return nil
		},
	}
	return cmd
}

func writeGridTable(w io.Writer, snap *model.GridSnapshot) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	cols := len(snap.WeekKeys) + 2

	// Every line carries the full cell count so tabwriter keeps one aligned
	// block for the whole table.
	line := func(cells ...string) {
		for len(cells) < cols {
			cells = append(cells, "")
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}

	line(append([]string{"PROJECT / ASSIGNMENT", "ROW"}, snap.WeekKeys...)...)

	for _, p := range snap.Projects {
		title := p.Name
		if p.Client != "" {
			title += " / " + p.Client
		}
		line(title)

		for _, r := range snap.RowsByProject[p.ID] {
			cells := make([]string, 0, cols)
			cells = append(cells, "  "+r.DisplayName(), r.ID)
			for _, wk := range snap.WeekKeys {
				cells = append(cells, tableHours(r.WeeklyHours[wk]))
			}
			line(cells...)
		}

		totals := snap.HoursByProject[p.ID]
		cells := make([]string, 0, cols)
		cells = append(cells, "  total", "")
		for _, wk := range snap.WeekKeys {
			cells = append(cells, tableHours(totals[wk]))
		}
		line(cells...)
	}
	return tw.Flush()
}

func tableHours(v float64) string {
	if v == 0 {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
