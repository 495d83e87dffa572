package outline

import (
	"strings"
	"time"
)

// ScheduleEntry is a goal line read from a schedule block.
type ScheduleEntry struct {
	Line       Line
	Meta       Meta
	ScheduleAt *time.Time
}

// ParseSchedule reads a schedule block: bare date headings, each followed by goal lines.
// A goal under a heading is scheduled on the heading's day at the clock time of its own
// token (midnight without one). Lines before the first heading keep their own token.
func ParseSchedule(clock Clock, text string) []ScheduleEntry {
	return parseScheduleLines(clock, splitLines(text))
}

func parseScheduleLines(clock Clock, lines []string) []ScheduleEntry {
	var entries []ScheduleEntry
	var day *time.Time
	for _, raw := range lines {
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}
		if d, err := clock.ParseDate(trimmed); err == nil {
			day = &d
			continue
		}
		line := TokenizeLine(raw)
		meta := ParseMeta(clock, line.Meta)
		at := meta.ScheduleAt
		if day != nil {
			combined := *day
			if at != nil {
				combined = combine(clock.Location(), *day, *at)
			}
			at = &combined
		}
		entries = append(entries, ScheduleEntry{Line: line, Meta: meta, ScheduleAt: at})
	}
	return entries
}

func combine(loc *time.Location, day, at time.Time) time.Time {
	ld := day.In(loc)
	la := at.In(loc)
	y, m, d := ld.Date()
	return time.Date(y, m, d, la.Hour(), la.Minute(), 0, 0, loc).UTC()
}

func localDay(loc *time.Location, t time.Time) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
