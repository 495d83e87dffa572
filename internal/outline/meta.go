package outline

import (
	"strings"
	"time"
)

// Meta is the decoded trailing metadata block of a line.
type Meta struct {
	ScheduleAt *time.Time
	ID         string
	HasNotes   bool
}

// ParseMeta scans tokens right to left, so the leftmost timestamp and the leftmost
// identity-length token win. Unrecognized tokens, including the notes marker, are ignored.
func ParseMeta(clock Clock, text string) Meta {
	var m Meta
	fields := strings.Fields(text)
	for i := len(fields) - 1; i >= 0; i-- {
		tok := fields[i]
		if t, err := clock.ParseTimestamp(tok); err == nil {
			m.ScheduleAt = &t
			continue
		}
		if len(tok) == IDLength {
			m.ID = tok
		}
	}
	return m
}

// FormatMeta renders the block including the leading separator, or "" when empty.
func FormatMeta(clock Clock, m Meta) string {
	var parts []string
	if m.ScheduleAt != nil {
		parts = append(parts, clock.FormatTimestamp(*m.ScheduleAt))
	}
	if m.HasNotes {
		parts = append(parts, NotesMarker)
	}
	if m.ID != "" {
		parts = append(parts, m.ID)
	}
	if len(parts) == 0 {
		return ""
	}
	return Separator + strings.Join(parts, " ")
}
