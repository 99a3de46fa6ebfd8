// Package api is the HTTP client for the crewgrid server. It implements the
// grid service interfaces with context-bound JSON round trips; every non-2xx
// reply surfaces as *Error.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"crewgrid/internal/grid"
	"crewgrid/internal/model"
)

const defaultTimeout = 10 * time.Second

type Client struct {
	base    string
	session string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: defaultTimeout},
	}
}

// WithHTTPClient swaps the underlying http.Client (tests, custom transports).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.http = hc
	return c
}

// WithSession tags every request with a session id so the server's change
// feed can skip echoing this client's own writes back to it.
func (c *Client) WithSession(id string) *Client {
	c.session = id
	return c
}

func (c *Client) BaseURL() string { return c.base }

// GetSnapshot loads the whole grid for the given horizon and scope.
func (c *Client) GetSnapshot(ctx context.Context, weeks int, scope grid.Scope) (*model.GridSnapshot, error) {
	q := url.Values{}
	if weeks > 0 {
		q.Set("weeks", strconv.Itoa(weeks))
	}
	scopeQuery(q, scope)
	var snap model.GridSnapshot
	if err := c.do(ctx, http.MethodGet, "/api/grid", q, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (c *Client) List(ctx context.Context, projectID string, scope grid.Scope) ([]model.AssignmentRow, error) {
	q := url.Values{}
	if projectID != "" {
		q.Set("projectId", projectID)
	}
	scopeQuery(q, scope)
	var rows []model.AssignmentRow
	if err := c.do(ctx, http.MethodGet, "/api/assignments", q, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) Get(ctx context.Context, rowID string) (*model.AssignmentRow, error) {
	var row model.AssignmentRow
	if err := c.do(ctx, http.MethodGet, "/api/assignments/"+url.PathEscape(rowID), nil, nil, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *Client) Create(ctx context.Context, na grid.NewAssignment) (*model.AssignmentRow, error) {
	var row model.AssignmentRow
	if err := c.do(ctx, http.MethodPost, "/api/assignments", nil, na, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *Client) Update(ctx context.Context, rowID string, fields grid.RowFields) (*model.AssignmentRow, error) {
	var row model.AssignmentRow
	if err := c.do(ctx, http.MethodPatch, "/api/assignments/"+url.PathEscape(rowID), nil, fields, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

func (c *Client) Delete(ctx context.Context, rowID string) error {
	return c.do(ctx, http.MethodDelete, "/api/assignments/"+url.PathEscape(rowID), nil, nil, nil)
}

// UpdateHours replaces one row's weekly allocations.
func (c *Client) UpdateHours(ctx context.Context, rowID string, hours map[string]float64) error {
	body := hoursRequest{WeeklyHours: hours}
	return c.do(ctx, http.MethodPut, "/api/assignments/"+url.PathEscape(rowID)+"/hours", nil, body, nil)
}

// BulkUpdateHours replaces allocations on several rows in one call. The
// server applies the whole payload or none of it.
func (c *Client) BulkUpdateHours(ctx context.Context, updates []grid.RowHours) error {
	body := bulkHoursRequest{Updates: updates}
	return c.do(ctx, http.MethodPut, "/api/hours", nil, body, nil)
}

func (c *Client) GetTotals(ctx context.Context, projectIDs []string, weeks int, scope grid.Scope) (map[string]model.ProjectHours, error) {
	q := url.Values{}
	if len(projectIDs) > 0 {
		q.Set("projectIds", strings.Join(projectIDs, ","))
	}
	if weeks > 0 {
		q.Set("weeks", strconv.Itoa(weeks))
	}
	scopeQuery(q, scope)
	var totals map[string]model.ProjectHours
	if err := c.do(ctx, http.MethodGet, "/api/totals", q, nil, &totals); err != nil {
		return nil, err
	}
	return totals, nil
}

// Check asks the server whether the added hours push the person over their
// weekly capacity. Returned strings are ready-to-display warnings.
func (c *Client) Check(ctx context.Context, personID, projectID, weekKey string, deltaHours float64) ([]string, error) {
	q := url.Values{}
	q.Set("personId", personID)
	q.Set("projectId", projectID)
	q.Set("weekKey", weekKey)
	q.Set("deltaHours", strconv.FormatFloat(deltaHours, 'f', -1, 64))
	var resp conflictsResponse
	if err := c.do(ctx, http.MethodGet, "/api/conflicts", q, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Warnings, nil
}

// FeedURL is the websocket endpoint carrying change events, derived from the
// HTTP base URL. The session id rides along so the server can exclude this
// client from its own echoes.
func (c *Client) FeedURL() string {
	u := c.base + "/api/changes"
	if c.session != "" {
		u += "?session=" + url.QueryEscape(c.session)
	}
	if strings.HasPrefix(u, "https://") {
		return "wss://" + strings.TrimPrefix(u, "https://")
	}
	return "ws://" + strings.TrimPrefix(u, "http://")
}

type hoursRequest struct {
	WeeklyHours map[string]float64 `json:"weeklyHours"`
}

type bulkHoursRequest struct {
	Updates []grid.RowHours `json:"updates"`
}

type conflictsResponse struct {
	Warnings []string `json:"warnings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.session != "" {
		req.Header.Set("X-Session-ID", c.session)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var envelope errorResponse
	if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Error != "" {
		return &Error{Status: resp.StatusCode, Message: envelope.Error}
	}
	return &Error{Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
}

func scopeQuery(q url.Values, scope grid.Scope) {
	if scope.Department != "" {
		q.Set("department", scope.Department)
	}
	if scope.Vertical != "" {
		q.Set("vertical", scope.Vertical)
	}
}

// Interface checks: the client is the production implementation of every
// grid service.
var (
	_ grid.SnapshotService   = (*Client)(nil)
	_ grid.AssignmentService = (*Client)(nil)
	_ grid.HoursService      = (*Client)(nil)
	_ grid.TotalsService     = (*Client)(nil)
	_ grid.ConflictChecker   = (*Client)(nil)
)
