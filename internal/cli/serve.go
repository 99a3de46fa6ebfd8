package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"crewgrid/internal/server"
)

func newServeCmd(app *App) *cobra.Command {
	var addr string
	var dbPath string
	var capacity float64
	var seed bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the planning server",
		Long: strings.TrimSpace(`
Run the HTTP planning server the grid talks to.

State lives in a single SQLite file. The server exposes the grid snapshot,
assignment CRUD, hour updates, per-project totals, the overallocation check,
and a websocket change feed at /api/changes.
`),
		Example: strings.TrimSpace(`
  # Serve on the configured address with the configured database file
  crewgrid serve

  # Fresh demo dataset on another port
  crewgrid serve --addr :9090 --db demo.db --seed
`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(app)
			if err != nil {
				return writeErr(cmd, err)
			}
			listenAddr := strings.TrimSpace(addr)
			if listenAddr == "" {
				listenAddr = cfg.Server.Addr
			}
			if listenAddr == "" {
				return writeErr(cmd, errors.New("serve: missing --addr"))
			}
			path := strings.TrimSpace(dbPath)
			if path == "" {
				path = cfg.Server.DB
			}

			srv, err := server.NewServer(server.Config{
				Addr:          listenAddr,
				DBPath:        path,
				Weeks:         cfg.Grid.Weeks,
				CapacityHours: capacity,
				Seed:          seed,
				Logger:        slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil)),
			})
			if err != nil {
				return writeErr(cmd, err)
			}
			defer srv.Close()

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return writeErr(cmd, err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "crewgrid server listening on http://%s (db=%s)\n", ln.Addr(), path)
			return http.Serve(ln, srv.Handler())
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Bind address (host:port or :port; default from config)")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database path (default from config)")
	cmd.Flags().Float64Var(&capacity, "capacity", 0, "Weekly hours per person before the conflict check warns (default 40)")
	cmd.Flags().BoolVar(&seed, "seed", false, "Seed a demo dataset when the database is empty")
	return cmd
}
