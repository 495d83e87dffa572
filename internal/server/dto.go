package server

import (
	"encoding/json"
	"time"

	"goalline/internal/domain"
	"goalline/internal/engine"
)

// Request payloads

type DocumentRequest struct {
	Text string `json:"text" doc:"Outline text as edited by the user"`
}

type DoctorRequest struct {
	Fix bool `json:"fix,omitempty"`
}

// Response payloads

type GoalResponse struct {
	ID             string   `json:"id"`
	Text           string   `json:"text"`
	State          string   `json:"state" enum:"pending,done,cancelled"`
	TextChangedAt  string   `json:"text_changed_at,omitempty" format:"date-time"`
	StateChangedAt string   `json:"state_changed_at,omitempty" format:"date-time"`
	ScheduleAt     string   `json:"schedule_at,omitempty" format:"date-time"`
	Order          int      `json:"order"`
	ParentIDs      []string `json:"parent_ids"`
	ChildIDs       []string `json:"child_ids"`
	NoteCount      int      `json:"note_count"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
}

type NoteResponse struct {
	ID            string `json:"id"`
	GoalID        string `json:"goal_id"`
	Text          string `json:"text"`
	CreatedAt     string `json:"created_at" format:"date-time"`
	TextChangedAt string `json:"text_changed_at,omitempty" format:"date-time"`
}

type DocumentResponse struct {
	MissionID string `json:"mission_id,omitempty"`
	Text      string `json:"text"`
}

type SyncResponse struct {
	Summary engine.Summary `json:"summary"`
	Text    string         `json:"text"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entity_kind"`
	EntityID   string         `json:"entity_id,omitempty"`
	Payload    map[string]any `json:"payload"`
}

type paginatedEvents struct {
	Items      []EventResponse `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

func goalResponse(g domain.Goal) GoalResponse {
	return GoalResponse{
		ID:             g.ID,
		Text:           g.Text,
		State:          g.State.String(),
		TextChangedAt:  timeString(g.TextChangedAt),
		StateChangedAt: timeString(g.StateChangedAt),
		ScheduleAt:     timeString(g.ScheduleAt),
		Order:          g.Order,
		ParentIDs:      nonNilSlice(g.ParentIDs),
		ChildIDs:       nonNilSlice(g.ChildIDs),
		NoteCount:      g.NoteCount,
		CreatedAt:      g.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func mapGoals(items []domain.Goal) []GoalResponse {
	out := make([]GoalResponse, 0, len(items))
	for _, g := range items {
		out = append(out, goalResponse(g))
	}
	return out
}

func mapNotes(items []domain.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(items))
	for _, n := range items {
		out = append(out, NoteResponse{
			ID:            n.ID,
			GoalID:        n.GoalID,
			Text:          n.Text,
			CreatedAt:     n.CreatedAt.UTC().Format(time.RFC3339),
			TextChangedAt: timeString(n.TextChangedAt),
		})
	}
	return out
}

func eventResponse(e domain.Event) EventResponse {
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    decodeJSONMap(e.Payload),
	}
}

// JSON helpers

func decodeJSONMap(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
		return map[string]any{}
	}
	return obj
}

func timeString(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}
