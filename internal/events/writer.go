package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	GoalCreated      = "goal.created"
	GoalTextChanged  = "goal.text_changed"
	GoalStateChanged = "goal.state_changed"
	GoalRescheduled  = "goal.rescheduled"
	GoalReparented   = "goal.reparented"
	GoalUnlinked     = "goal.unlinked"
	NoteCreated      = "note.created"
	NoteChanged      = "note.changed"
)

// Writer appends to the events table of the transaction it is given.
type Writer struct {
	Now func() time.Time
}

type EventPayload map[string]any

// Append records one event inside tx.
func (w Writer) Append(ctx context.Context, tx *sql.Tx, evtType, entityKind, entityID string, payload EventPayload) error {
	if w.Now == nil {
		w.Now = time.Now
	}
	ts := w.Now().UTC().Format(time.RFC3339)
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO events(ts,type,entity_kind,entity_id,payload_json) VALUES (?,?,?,?,?)`,
		ts, evtType, entityKind, nullable(entityID), string(data))
	return err
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}
