// Package cli wires the crewgrid commands: the interactive grid (default),
// the embedded planning server, and the scriptable grid/hours/rows commands
// that talk to a running server over the same JSON API the TUI uses.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"crewgrid/internal/api"
	"crewgrid/internal/config"
	"crewgrid/internal/grid"
	"crewgrid/internal/tui"
)

// App carries the persistent flag values shared by every subcommand. Zero
// values mean "not set on the command line"; loadConfig layers the flags over
// the config file and environment.
type App struct {
	ConfigPath string
	Server     string
	Weeks      int
	Department string
	Vertical   string
}

func NewRootCmd() *cobra.Command {
	app := &App{}

	cmd := &cobra.Command{
		Use:          "crewgrid",
		Short:        "Terminal staffing grid for weekly hour allocations",
		SilenceUsage: true,
		Example: strings.TrimSpace(`
  # Start the interactive grid against the configured server
  crewgrid

  # Run the planning server with a demo dataset
  crewgrid serve --db crewgrid.db --seed

  # Scriptable commands
  crewgrid grid --weeks 8
  crewgrid hours set row-7f3a 2026-01-05 24
  crewgrid rows add --project proj-atlas --person "Dana Reyes"
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			// No subcommand => interactive grid.
			if cmd.HasSubCommands() && len(args) == 0 {
				return runTUI(app)
			}
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().StringVar(&app.ConfigPath, "config", envOr("CREWGRID_CONFIG", ""), "Config file (default ~/.config/crewgrid/config.toml)")
	cmd.PersistentFlags().StringVar(&app.Server, "server", "", "Planning server URL (overrides config)")
	cmd.PersistentFlags().IntVar(&app.Weeks, "weeks", 0, "Week columns to load (overrides config)")
	cmd.PersistentFlags().StringVar(&app.Department, "department", "", "Narrow the grid to one department")
	cmd.PersistentFlags().StringVar(&app.Vertical, "vertical", "", "Narrow the grid to one vertical")

	cmd.AddCommand(newServeCmd(app))
	cmd.AddCommand(newGridCmd(app))
	cmd.AddCommand(newHoursCmd(app))
	cmd.AddCommand(newRowsCmd(app))

	return cmd
}

func runTUI(app *App) error {
	cfg, err := loadConfig(app)
	if err != nil {
		return err
	}
	return tui.Run(tui.Options{
		Client:   newClient(cfg),
		Weeks:    cfg.Grid.Weeks,
		Scope:    scopeOf(cfg),
		DebugLog: cfg.Debug.Log,
	})
}

// loadConfig resolves file and environment settings, then applies the
// command-line overrides on top.
func loadConfig(app *App) (*config.Config, error) {
	cfg, err := config.Load(app.ConfigPath)
	if err != nil {
		return nil, err
	}
	if app.Server != "" {
		cfg.Server.URL = app.Server
	}
	if app.Weeks > 0 {
		cfg.Grid.Weeks = app.Weeks
	}
	if app.Department != "" {
		cfg.Scope.Department = app.Department
	}
	if app.Vertical != "" {
		cfg.Scope.Vertical = app.Vertical
	}
	return cfg, nil
}

// newClient mints a fresh session id per invocation so the change feed can
// tell this process apart from other editors.
func newClient(cfg *config.Config) *api.Client {
	return api.New(cfg.Server.URL).WithSession(uuid.NewString())
}

func scopeOf(cfg *config.Config) grid.Scope {
	return grid.Scope{Department: cfg.Scope.Department, Vertical: cfg.Scope.Vertical}
}

func envOr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func writeErr(cmd *cobra.Command, err error) error {
	fmt.Fprintln(cmd.ErrOrStderr(), err.Error())
	return err
}
