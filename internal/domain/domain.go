package domain

import (
	"fmt"
	"strings"
	"time"
)

// GoalState is the lifecycle state of a goal. Done and Cancelled goals are archived.
type GoalState int

const (
	StateCancelled GoalState = -1
	StatePending   GoalState = 0
	StateDone      GoalState = 1
)

func (s GoalState) String() string {
	switch s {
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	default:
		return "pending"
	}
}

// Archived reports whether the state hides the goal from default listings.
func (s GoalState) Archived() bool {
	return s != StatePending
}

func ParseGoalState(v string) (GoalState, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "", "pending":
		return StatePending, nil
	case "done":
		return StateDone, nil
	case "cancelled", "canceled":
		return StateCancelled, nil
	}
	return StatePending, fmt.Errorf("unknown goal state %q", v)
}

type Goal struct {
	ID             string     `json:"id"`
	Text           string     `json:"text"`
	TextChangedAt  *time.Time `json:"text_changed_at,omitempty"`
	State          GoalState  `json:"state"`
	StateChangedAt *time.Time `json:"state_changed_at,omitempty"`
	ScheduleAt     *time.Time `json:"schedule_at,omitempty"`
	Order          int        `json:"order"`
	ParentIDs      []string   `json:"parent_ids,omitempty"`
	ChildIDs       []string   `json:"child_ids,omitempty"`
	NoteCount      int        `json:"note_count"`
	CreatedAt      time.Time  `json:"created_at"`
}

// HasNotes drives the notes marker in rendered metadata.
func (g Goal) HasNotes() bool {
	return g.NoteCount > 0
}

type Note struct {
	ID            string     `json:"id"`
	GoalID        string     `json:"goal_id"`
	Text          string     `json:"text"`
	CreatedAt     time.Time  `json:"created_at"`
	TextChangedAt *time.Time `json:"text_changed_at,omitempty"`
}

type Link struct {
	ChildID  string `json:"child_id"`
	ParentID string `json:"parent_id"`
	Position int    `json:"position"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    string `json:"payload"`
}

type Stats struct {
	Pending   int `json:"pending"`
	Done      int `json:"done"`
	Cancelled int `json:"cancelled"`
	Notes     int `json:"notes"`
}

func (s Stats) Total() int {
	return s.Pending + s.Done + s.Cancelled
}
