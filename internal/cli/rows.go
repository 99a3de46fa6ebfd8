package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"crewgrid/internal/grid"
)

func newRowsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rows",
		Short: "Manage assignment rows",
	}
	cmd.AddCommand(newRowsAddCmd(app))
	cmd.AddCommand(newRowsRemoveCmd(app))
	return cmd
}

func newRowsAddCmd(app *App) *cobra.Command {
	var project string
	var person string
	var role string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a person or an unfilled role slot to a project",
		Example: strings.TrimSpace(`
  crewgrid rows add --project proj-atlas --person "Dana Reyes"
  crewgrid rows add --project proj-atlas --role "QA Engineer"
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			person = strings.TrimSpace(person)
			role = strings.TrimSpace(role)
			switch {
			case person != "" && role != "":
				return writeErr(cmd, errors.New("provide exactly one of --person or --role"))
			case person == "" && role == "":
				return writeErr(cmd, errors.New("missing --person or --role"))
			}

			row, err := newClient(cfg).Create(cmd.Context(), grid.NewAssignment{
				ProjectID:  project,
				PersonName: person,
				RoleName:   role,
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", row.ID, row.DisplayName())
			return nil
		},
	}

	cmd.Flags().StringVar(&project, "project", "", "Project id")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVar(&person, "person", "", "Person name")
	cmd.Flags().StringVar(&role, "role", "", "Role name for an unfilled slot")
	return cmd
}

func newRowsRemoveCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <row-id>",
		Short: "Remove an assignment row and its allocations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			if err := newClient(cfg).Delete(cmd.Context(), args[0]); err != nil {
				return writeErr(cmd, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
			return nil
		},
	}
	return cmd
}
