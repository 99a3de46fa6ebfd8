package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"crewgrid/internal/model"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitEvent(t *testing.T, ch <-chan model.ChangeEvent) model.ChangeEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for event")
		return model.ChangeEvent{}
	}
}

func waitStatus(t *testing.T, ch <-chan Status, want Status) {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case st := <-ch:
			if st == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %v", want)
		}
	}
}

func TestSubscriber_DeliversEventsAndReconnects(t *testing.T) {
	var conns atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		n := conns.Add(1)
		_ = conn.WriteJSON(model.ChangeEvent{
			AssignmentID: fmt.Sprintf("row-%d", n),
			Type:         model.ChangeUpdated,
			ServerTime:   time.Now().UTC(),
		})
		// Dropping the connection forces the subscriber to redial.
		conn.Close()
	}))
	defer srv.Close()

	events := make(chan model.ChangeEvent, 8)
	statuses := make(chan Status, 8)
	sub := &Subscriber{
		URL:        wsURL(srv),
		MinBackoff: 10 * time.Millisecond,
		OnEvent:    func(ev model.ChangeEvent) { events <- ev },
		OnStatus:   func(st Status) { statuses <- st },
	}

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- sub.Run(ctx) }()

	waitStatus(t, statuses, StatusLive)
	if ev := waitEvent(t, events); ev.AssignmentID != "row-1" {
		t.Fatalf("expected first connection's event, got %+v", ev)
	}
	waitStatus(t, statuses, StatusOffline)

	// The second event proves the automatic reconnect happened.
	if ev := waitEvent(t, events); ev.AssignmentID != "row-2" {
		t.Fatalf("expected second connection's event, got %+v", ev)
	}

	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for Run to return")
	}
}

func TestSubscriber_SkipsMalformedFrames(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"assignmentId":""}`))
		_ = conn.WriteJSON(model.ChangeEvent{
			AssignmentID: "row-ok",
			Type:         model.ChangeUpdated,
			ServerTime:   time.Now().UTC(),
		})
		// Keep the connection open long enough for the client to read.
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	events := make(chan model.ChangeEvent, 8)
	sub := &Subscriber{
		URL:        wsURL(srv),
		MinBackoff: 10 * time.Millisecond,
		OnEvent:    func(ev model.ChangeEvent) { events <- ev },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = sub.Run(ctx) }()

	if ev := waitEvent(t, events); ev.AssignmentID != "row-ok" {
		t.Fatalf("expected only the well-formed event, got %+v", ev)
	}
	select {
	case ev := <-events:
		t.Fatalf("expected no further events, got %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}
