package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"crewgrid/internal/model"
)

const (
	feedWriteWait  = 10 * time.Second
	feedPongWait   = 60 * time.Second
	feedPingPeriod = 50 * time.Second // must be under feedPongWait
	feedSendBuffer = 64
)

var feedUpgrader = websocket.Upgrader{
	ReadBufferSize:  4 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		if origin == "" {
			return true
		}
		// Basic same-origin check; good enough for localhost use.
		host := strings.TrimSpace(r.Host)
		return strings.Contains(origin, "://"+host)
	},
}

type feedClient struct {
	session string
	conn    *websocket.Conn
	send    chan []byte
}

// Hub fans change events out to every live feed connection. Each mutation is
// broadcast to all sessions except the one that caused it, so the originator
// never sees an echo of its own write.
type Hub struct {
	log *slog.Logger

	mu      sync.Mutex
	clients map[*feedClient]struct{}
	closed  bool
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{log: log, clients: map[*feedClient]struct{}{}}
}

// Broadcast sends ev to every connected session except exceptSession. A
// consumer that can't keep up is dropped; its subscriber reconnects and the
// client resyncs from a fresh snapshot.
func (h *Hub) Broadcast(ev model.ChangeEvent, exceptSession string) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.log.Error("feed: marshal event", "err", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if exceptSession != "" && c.session == exceptSession {
			continue
		}
		select {
		case c.send <- raw:
		default:
			delete(h.clients, c)
			close(c.send)
			h.log.Warn("feed: dropping slow client", "session", c.session)
		}
	}
}

// Sessions reports the number of live feed connections.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
	}
	h.clients = map[*feedClient]struct{}{}
}

func (h *Hub) register(c *feedClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) drop(c *feedClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// ServeWS upgrades the request and runs the connection until either side
// hangs up. The originating session rides in as ?session= so Broadcast can
// exclude it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := feedUpgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Warn("feed: upgrade failed", "err", err)
		return
	}

	c := &feedClient{
		session: strings.TrimSpace(r.URL.Query().Get("session")),
		conn:    conn,
		send:    make(chan []byte, feedSendBuffer),
	}
	if !h.register(c) {
		_ = conn.Close()
		return
	}
	h.log.Info("feed: client connected", "session", c.session)

	go c.writePump()
	go c.readPump(h)
}

func (c *feedClient) writePump() {
	ticker := time.NewTicker(feedPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump exists to notice disconnects and answer pings; the feed is
// one-way, so inbound frames are discarded.
func (c *feedClient) readPump(h *Hub) {
	defer func() {
		h.drop(c)
		_ = c.conn.Close()
		h.log.Info("feed: client disconnected", "session", c.session)
	}()
	c.conn.SetReadLimit(1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(feedPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
