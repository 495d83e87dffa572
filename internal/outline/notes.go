package outline

import (
	"strings"
	"time"

	"goalline/internal/domain"
)

// LogEntry is one note block of a log: a header line "<timestamp>  # <id>" followed by
// body lines up to the next header.
type LogEntry struct {
	ID        string
	CreatedAt *time.Time
	Text      string
}

// ParseLog reads note blocks. Body lines that precede any header form a note without
// identity or timestamp.
func ParseLog(clock Clock, text string) []LogEntry {
	return parseLogLines(clock, splitLines(text))
}

func parseLogLines(clock Clock, lines []string) []LogEntry {
	var entries []LogEntry
	var cur *LogEntry
	var body []string
	flush := func() {
		text := strings.TrimRight(strings.Join(body, "\n"), " \t\n")
		text = strings.TrimLeft(text, "\n")
		if cur != nil || text != "" {
			e := LogEntry{Text: text}
			if cur != nil {
				e.ID = cur.ID
				e.CreatedAt = cur.CreatedAt
			}
			entries = append(entries, e)
		}
		cur = nil
		body = nil
	}
	for _, raw := range lines {
		if header, ok := parseLogHeader(clock, raw); ok {
			flush()
			cur = &header
			continue
		}
		body = append(body, strings.TrimRight(raw, " \t\r"))
	}
	flush()
	return entries
}

func parseLogHeader(clock Clock, raw string) (LogEntry, bool) {
	line := TokenizeLine(raw)
	if line.Depth != 0 || line.State != domain.StatePending || line.Body == "" {
		return LogEntry{}, false
	}
	at, err := clock.ParseTimestamp(line.Body)
	if err != nil {
		return LogEntry{}, false
	}
	meta := ParseMeta(clock, line.Meta)
	return LogEntry{ID: meta.ID, CreatedAt: &at}, true
}

// FormatLog renders notes oldest first, blocks separated by a blank line.
func FormatLog(clock Clock, notes []domain.Note) string {
	blocks := make([]string, 0, len(notes))
	for _, n := range notes {
		header := clock.FormatTimestamp(n.CreatedAt) + " " + Separator + n.ID
		if n.Text == "" {
			blocks = append(blocks, header)
			continue
		}
		blocks = append(blocks, header+"\n"+n.Text)
	}
	return strings.Join(blocks, "\n\n")
}
