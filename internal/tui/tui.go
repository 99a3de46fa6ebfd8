// Package tui is the interactive staffing grid: projects and their assignment
// rows down the side, the week horizon across the top, hour allocations in the
// cells. Edits apply optimistically and persist in the background; remote
// changes stream in over the change feed and reconcile into the grid.
package tui

import (
	"context"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"crewgrid/internal/api"
	"crewgrid/internal/feed"
	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

// Options configure the interactive grid.
type Options struct {
	Client *api.Client
	Weeks  int
	Scope  grid.Scope

	// DebugLog, when set, appends feed diagnostics to the file. The TUI owns
	// the terminal, so logs can't go to stderr.
	DebugLog string
}

func Run(opts Options) error {
	applyColorProfilePreference()
	applyThemePreference()
	applyGlyphPreference()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if opts.DebugLog != "" {
		f, err := os.OpenFile(opts.DebugLog, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return err
		}
		defer f.Close()
		log = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	weeks := opts.Weeks
	if weeks <= 0 {
		weeks = 12
	}
	svc := Services{
		Snapshot:  opts.Client,
		Rows:      opts.Client,
		Hours:     opts.Client,
		Totals:    opts.Client,
		Conflicts: opts.Client,
	}
	p := tea.NewProgram(newAppModel(svc, weeks, opts.Scope), tea.WithAltScreen(), tea.WithReportFocus())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub := &feed.Subscriber{
		URL:    opts.Client.FeedURL(),
		Logger: log,
		OnEvent: func(ev model.ChangeEvent) {
			p.Send(feedEventMsg{ev: ev})
		},
		OnStatus: func(st feed.Status) {
			p.Send(feedStatusMsg{status: st})
		},
	}
	go func() { _ = sub.Run(ctx) }()

	_, err := p.Run()
	return err
}
