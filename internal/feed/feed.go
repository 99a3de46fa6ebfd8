// Package feed maintains the live change-event subscription. It owns one
// websocket at a time, decodes change events, and hands them to the consumer;
// on any failure it reconnects with capped backoff until the context ends.
package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"crewgrid/internal/model"
)

type Status int

const (
	StatusConnecting Status = iota
	StatusLive
	StatusOffline
)

func (s Status) String() string {
	switch s {
	case StatusLive:
		return "live"
	case StatusOffline:
		return "offline"
	default:
		return "connecting"
	}
}

// Subscriber is configured by its fields, then driven by Run. OnEvent and
// OnStatus are called from the subscriber's goroutine; consumers that are not
// concurrency-safe must hand the values off (the TUI forwards them into its
// message loop).
type Subscriber struct {
	URL      string
	OnEvent  func(model.ChangeEvent)
	OnStatus func(Status)
	Logger   *slog.Logger

	// MinBackoff/MaxBackoff bound the reconnect delay; zero values pick the
	// defaults (1s / 30s).
	MinBackoff time.Duration
	MaxBackoff time.Duration

	dialer *websocket.Dialer
	status Status
}

// Run connects and consumes events until ctx is cancelled. It never returns
// early on connection trouble; every failure path waits and redials.
func (s *Subscriber) Run(ctx context.Context) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	dialer := s.dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	minWait := s.MinBackoff
	if minWait <= 0 {
		minWait = time.Second
	}
	maxWait := s.MaxBackoff
	if maxWait <= 0 {
		maxWait = 30 * time.Second
	}

	wait := minWait
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		conn, resp, err := dialer.DialContext(ctx, s.URL, nil)
		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}
		if err != nil {
			s.setStatus(StatusOffline)
			log.Debug("feed dial failed", "url", s.URL, "err", err)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			wait = min(wait*2, maxWait)
			continue
		}

		wait = minWait
		s.setStatus(StatusLive)
		err = s.consume(ctx, conn)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.setStatus(StatusOffline)
		log.Debug("feed connection lost", "err", err)
		if !sleep(ctx, wait) {
			return ctx.Err()
		}
		wait = min(wait*2, maxWait)
	}
}

func (s *Subscriber) consume(ctx context.Context, conn *websocket.Conn) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	conn.SetReadLimit(1 << 20)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var ev model.ChangeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			// Unknown frames are skipped, not fatal.
			continue
		}
		if ev.AssignmentID == "" {
			continue
		}
		if s.OnEvent != nil {
			s.OnEvent(ev)
		}
	}
}

func (s *Subscriber) setStatus(st Status) {
	if st == s.status {
		return
	}
	s.status = st
	if s.OnStatus != nil {
		s.OnStatus(st)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

