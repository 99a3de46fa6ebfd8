// Package server is the embedded crewgrid planning server: a JSON API over a
// SQLite-backed store plus a websocket feed that pushes change events to every
// session except the one that made the change.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

const (
	defaultWeeks    = 12
	defaultCapacity = 40 // weekly hours before a person counts as overallocated
)

type Config struct {
	Addr          string
	DBPath        string
	Weeks         int     // horizon used when a request doesn't say
	CapacityHours float64 // overallocation threshold
	Seed          bool    // load demo data into an empty database
	Logger        *slog.Logger
}

type Server struct {
	cfg Config
	st  *Store
	hub *Hub
	log *slog.Logger
}

func NewServer(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		return nil, errors.New("server: database path required")
	}
	if cfg.Weeks <= 0 {
		cfg.Weeks = defaultWeeks
	}
	if cfg.CapacityHours <= 0 {
		cfg.CapacityHours = defaultCapacity
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	st, err := OpenStore(context.Background(), cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if cfg.Seed && st.Empty() {
		if err := seedDemo(context.Background(), st); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("seed demo data: %w", err)
		}
		cfg.Logger.Info("seeded demo data", "db", cfg.DBPath)
	}

	return &Server{
		cfg: cfg,
		st:  st,
		hub: NewHub(cfg.Logger),
		log: cfg.Logger,
	}, nil
}

func (s *Server) Addr() string  { return s.cfg.Addr }
func (s *Server) Store() *Store { return s.st }

func (s *Server) Close() error {
	s.hub.Close()
	return s.st.Close()
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/grid", s.handleGrid)
	mux.HandleFunc("GET /api/assignments", s.handleAssignmentList)
	mux.HandleFunc("POST /api/assignments", s.handleAssignmentCreate)
	mux.HandleFunc("GET /api/assignments/{rowID}", s.handleAssignmentGet)
	mux.HandleFunc("PATCH /api/assignments/{rowID}", s.handleAssignmentUpdate)
	mux.HandleFunc("DELETE /api/assignments/{rowID}", s.handleAssignmentDelete)
	mux.HandleFunc("PUT /api/assignments/{rowID}/hours", s.handleHoursSet)
	mux.HandleFunc("PUT /api/hours", s.handleHoursBulk)
	mux.HandleFunc("GET /api/totals", s.handleTotals)
	mux.HandleFunc("GET /api/conflicts", s.handleConflicts)
	mux.HandleFunc("GET /api/changes", s.hub.ServeWS)
	return s.withLogging(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleGrid(w http.ResponseWriter, r *http.Request) {
	weeks := intQuery(r, "weeks", s.cfg.Weeks)
	keys := grid.HorizonKeys(time.Now(), weeks)
	writeJSON(w, http.StatusOK, s.st.Snapshot(keys, scopeOf(r)))
}

func (s *Server) handleAssignmentList(w http.ResponseWriter, r *http.Request) {
	rows := s.st.ListRows(strings.TrimSpace(r.URL.Query().Get("projectId")), scopeOf(r))
	if rows == nil {
		rows = []model.AssignmentRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) handleAssignmentGet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("rowID"))
	row, ok := s.st.Row(id)
	if !ok {
		writeError(w, http.StatusNotFound, "assignment not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleAssignmentCreate(w http.ResponseWriter, r *http.Request) {
	var na grid.NewAssignment
	if err := decodeBody(r, &na); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(na.ProjectID) == "" {
		writeError(w, http.StatusBadRequest, "projectId required")
		return
	}
	if strings.TrimSpace(na.PersonName) == "" && strings.TrimSpace(na.RoleName) == "" {
		writeError(w, http.StatusBadRequest, "personName or roleName required")
		return
	}
	row, err := s.st.CreateRow(r.Context(), na)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.broadcast(r, model.ChangeEvent{
		AssignmentID: row.ID,
		ProjectID:    row.ProjectID,
		Type:         model.ChangeUpdated,
		Row:          &row,
	})
	writeJSON(w, http.StatusCreated, row)
}

func (s *Server) handleAssignmentUpdate(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("rowID"))
	var fields grid.RowFields
	if err := decodeBody(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	row, err := s.st.UpdateRowFields(r.Context(), id, fields)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	var changed []string
	if fields.PersonName != nil {
		changed = append(changed, model.FieldPersonName)
	}
	if fields.RoleName != nil {
		changed = append(changed, model.FieldRoleName)
	}
	s.broadcast(r, model.ChangeEvent{
		AssignmentID: row.ID,
		ProjectID:    row.ProjectID,
		Type:         model.ChangeUpdated,
		Fields:       changed,
		Row:          &row,
	})
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleAssignmentDelete(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("rowID"))
	row, err := s.st.DeleteRow(r.Context(), id)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.broadcast(r, model.ChangeEvent{
		AssignmentID: row.ID,
		ProjectID:    row.ProjectID,
		Type:         model.ChangeDeleted,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHoursSet(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("rowID"))
	var body struct {
		WeeklyHours map[string]float64 `json:"weeklyHours"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	row, err := s.st.SetRowHours(r.Context(), id, body.WeeklyHours)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	s.broadcast(r, model.ChangeEvent{
		AssignmentID: row.ID,
		ProjectID:    row.ProjectID,
		Type:         model.ChangeUpdated,
		Fields:       []string{model.FieldWeeklyHours},
		Row:          &row,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHoursBulk(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Updates []grid.RowHours `json:"updates"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(body.Updates) == 0 {
		writeError(w, http.StatusBadRequest, "updates required")
		return
	}
	rows, err := s.st.BulkSetRowHours(r.Context(), body.Updates)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	// One event per touched row, all stamped with the same instant so
	// consumers coalesce them as a single remote change.
	now := time.Now().UTC()
	for i := range rows {
		s.broadcastAt(r, model.ChangeEvent{
			AssignmentID: rows[i].ID,
			ProjectID:    rows[i].ProjectID,
			Type:         model.ChangeUpdated,
			Fields:       []string{model.FieldWeeklyHours},
			Row:          &rows[i],
		}, now)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	weeks := intQuery(r, "weeks", s.cfg.Weeks)
	keys := grid.HorizonKeys(time.Now(), weeks)
	var projectIDs []string
	if raw := strings.TrimSpace(r.URL.Query().Get("projectIds")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				projectIDs = append(projectIDs, id)
			}
		}
	}
	writeJSON(w, http.StatusOK, s.st.Totals(projectIDs, keys, scopeOf(r)))
}

func (s *Server) handleConflicts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	personID := strings.TrimSpace(q.Get("personId"))
	weekKey := strings.TrimSpace(q.Get("weekKey"))
	if personID == "" || weekKey == "" {
		writeError(w, http.StatusBadRequest, "personId and weekKey required")
		return
	}
	if raw := strings.TrimSpace(q.Get("deltaHours")); raw != "" {
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			writeError(w, http.StatusBadRequest, "invalid deltaHours")
			return
		}
	}

	// The write this check follows has already landed, so the person's
	// current booked total is the post-change figure.
	total, projects := s.st.PersonWeekLoad(personID, weekKey)
	var warnings []string
	if total > s.cfg.CapacityHours {
		warnings = append(warnings, fmt.Sprintf(
			"booked %sh across %d project%s in week of %s (capacity %sh)",
			formatHours(total), projects, plural(projects),
			grid.WeekLabel(weekKey), formatHours(s.cfg.CapacityHours)))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"warnings": warnings})
}

// broadcast stamps the event with the server clock and fans it out to every
// session except the originator (X-Session-ID).
func (s *Server) broadcast(r *http.Request, ev model.ChangeEvent) {
	s.broadcastAt(r, ev, time.Now().UTC())
}

func (s *Server) broadcastAt(r *http.Request, ev model.ChangeEvent, at time.Time) {
	ev.ServerTime = at
	s.hub.Broadcast(ev, sessionOf(r))
}

func sessionOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Session-ID"))
}

func scopeOf(r *http.Request) grid.Scope {
	q := r.URL.Query()
	return grid.Scope{
		Department: strings.TrimSpace(q.Get("department")),
		Vertical:   strings.TrimSpace(q.Get("vertical")),
	}
}

func intQuery(r *http.Request, key string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func decodeBody(r *http.Request, out any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	var nf NotFoundError
	switch {
	case errors.As(err, &nf):
		writeError(w, http.StatusNotFound, nf.Error())
	case errors.Is(err, ErrNegativeHours):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The feed endpoint hijacks the connection; wrapping its writer
		// breaks the upgrade, so log it on the way in instead.
		if r.URL.Path == "/api/changes" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Info("http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"dur", time.Since(start).Round(time.Microsecond))
	})
}
