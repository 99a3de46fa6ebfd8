package cli

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

func newHoursCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hours",
		Short: "Read or write one row's week allocations",
	}
	cmd.AddCommand(newHoursSetCmd(app))
	cmd.AddCommand(newHoursGetCmd(app))
	return cmd
}

func newHoursSetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <row-id> <week> <hours>",
		Short: "Set one cell (0 clears it)",
		Long: strings.TrimSpace(`
Set the hours for one row and week. The week is any date in YYYY-MM-DD form
and snaps to the Monday of its week. Hours of 0 clear the cell.

The write replaces the row's full allocation map on the server, so concurrent
edits to other weeks of the same row can be lost; the interactive grid is the
safer tool when several people edit at once.
`),
		Example: strings.TrimSpace(`
  crewgrid hours set row-7f3a 2026-01-05 24

  # Clear the cell
  crewgrid hours set row-7f3a 2026-01-05 0
`),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			rowID := args[0]
			week, err := parseWeekArg(args[1])
			if err != nil {
				return writeErr(cmd, err)
			}
			hours, err := grid.ParseHours(args[2])
			if err != nil {
				return writeErr(cmd, fmt.Errorf("%w: %q", err, args[2]))
			}

			client := newClient(cfg)
			row, err := client.Get(cmd.Context(), rowID)
			if err != nil {
				return writeErr(cmd, err)
			}
			next := model.CloneHours(row.WeeklyHours)
			if hours == 0 {
				delete(next, week)
			} else {
				next[week] = hours
			}
			if err := client.UpdateHours(cmd.Context(), rowID, next); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s\n", rowID, week, tableHours(hours))
			return nil
		},
	}
	return cmd
}

func newHoursGetCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <row-id>",
		Short: "Print a row's allocations, one week per line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			row, err := newClient(cfg).Get(cmd.Context(), args[0])
			if err != nil {
				return writeErr(cmd, err)
			}

			weeks := make([]string, 0, len(row.WeeklyHours))
			for wk := range row.WeeklyHours {
				weeks = append(weeks, wk)
			}
			sort.Strings(weeks)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\t%s\n", row.ID, row.DisplayName())
			for _, wk := range weeks {
				fmt.Fprintf(tw, "%s\t%s\n", wk, tableHours(row.WeeklyHours[wk]))
			}
			return tw.Flush()
		},
	}
	return cmd
}

// parseWeekArg validates a YYYY-MM-DD date and snaps it to its week key.
func parseWeekArg(s string) (string, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return "", fmt.Errorf("invalid week %q (want YYYY-MM-DD)", s)
	}
	return grid.WeekKeyFor(t), nil
}
