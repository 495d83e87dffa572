package goallinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal goalline HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v0",
		Timeout:  10 * time.Second,
	}
}

// Goal represents the API goal model.
type Goal struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	State          string   `json:"state"`
	TextChangedAt  string   `json:"text_changed_at,omitempty"`
	StateChangedAt string   `json:"state_changed_at,omitempty"`
	ScheduleAt     string   `json:"schedule_at,omitempty"`
	Order          int      `json:"order"`
	ParentIDs      []string `json:"parent_ids"`
	ChildIDs       []string `json:"child_ids"`
	NoteCount      int      `json:"note_count"`
	CreatedAt      string   `json:"created_at"`
}

// Note is a timestamped log entry attached to a goal.
type Note struct {
	ID            string `json:"id"`
	GoalID        string `json:"goal_id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at"`
	TextChangedAt string `json:"text_changed_at,omitempty"`
}

// Summary counts what a sync changed.
type Summary struct {
	MissionID    string `json:"mission_id,omitempty"`
	Created      int    `json:"created"`
	TextChanged  int    `json:"text_changed"`
	StateChanged int    `json:"state_changed"`
	Rescheduled  int    `json:"rescheduled"`
	Reparented   int    `json:"reparented"`
	NotesCreated int    `json:"notes_created"`
	NotesChanged int    `json:"notes_changed"`
	Dropped      []struct {
		ChildID  string `json:"child_id"`
		ParentID string `json:"parent_id"`
	} `json:"dropped_edges,omitempty"`
}

// SyncResult is the summary of a sync plus the re-rendered document.
type SyncResult struct {
	Summary Summary `json:"summary"`
	Text    string  `json:"text"`
}

// Document is rendered outline text; MissionID is set for mission documents.
type Document struct {
	MissionID string `json:"mission_id,omitempty"`
	Text      string `json:"text"`
}

type Stats struct {
	Pending   int `json:"pending"`
	Done      int `json:"done"`
	Cancelled int `json:"cancelled"`
	Notes     int `json:"notes"`
}

// Event represents a log entry.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityID   string         `json:"entity_id"`
	EntityKind string         `json:"entity_kind"`
	Payload    map[string]any `json:"payload"`
}

// PaginatedEvents wraps list responses with cursors.
type PaginatedEvents struct {
	Items      []Event `json:"items"`
	NextCursor string  `json:"next_cursor"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Goals lists pending goals, or every goal when all is set.
func (c *Client) Goals(ctx context.Context, all bool) ([]Goal, error) {
	var resp []Goal
	err := c.do(ctx, http.MethodGet, withAll("goals", all), nil, &resp)
	return resp, err
}

func (c *Client) Goal(ctx context.Context, id string) (Goal, error) {
	var resp Goal
	err := c.do(ctx, http.MethodGet, "goals/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) Notes(ctx context.Context, goalID string) ([]Note, error) {
	var resp []Note
	err := c.do(ctx, http.MethodGet, "goals/"+url.PathEscape(goalID)+"/notes", nil, &resp)
	return resp, err
}

// Outline renders the task tree.
func (c *Client) Outline(ctx context.Context, all bool) (string, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, withAll("outline", all), nil, &resp)
	return resp.Text, err
}

// SyncOutline merges edited task tree text.
func (c *Client) SyncOutline(ctx context.Context, text string) (SyncResult, error) {
	var resp SyncResult
	err := c.do(ctx, http.MethodPut, "outline", map[string]string{"text": text}, &resp)
	return resp, err
}

func (c *Client) Schedule(ctx context.Context, all bool) (string, error) {
	var resp Document
	err := c.do(ctx, http.MethodGet, withAll("schedule", all), nil, &resp)
	return resp.Text, err
}

func (c *Client) SyncSchedule(ctx context.Context, text string) (SyncResult, error) {
	var resp SyncResult
	err := c.do(ctx, http.MethodPut, "schedule", map[string]string{"text": text}, &resp)
	return resp, err
}

// Mission renders the mission document of id, or of the current mission when id is empty.
func (c *Client) Mission(ctx context.Context, id string) (Document, error) {
	if id == "" {
		id = "current"
	}
	var resp Document
	err := c.do(ctx, http.MethodGet, "missions/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) SyncMission(ctx context.Context, text string) (SyncResult, error) {
	var resp SyncResult
	err := c.do(ctx, http.MethodPut, "missions", map[string]string{"text": text}, &resp)
	return resp, err
}

func (c *Client) Stats(ctx context.Context) (Stats, error) {
	var resp Stats
	err := c.do(ctx, http.MethodGet, "stats", nil, &resp)
	return resp, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	page, err := c.EventsPage(ctx, limit, "")
	return page.Items, err
}

// EventsPage returns a paginated event listing.
func (c *Client) EventsPage(ctx context.Context, limit int, cursor string) (PaginatedEvents, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	if cursor != "" {
		q.Set("cursor", cursor)
	}
	endpoint := "events"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp PaginatedEvents
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func withAll(endpoint string, all bool) string {
	if all {
		return endpoint + "?all=true"
	}
	return endpoint
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Error.Code
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.Trim(c.BasePath, "/")
}
