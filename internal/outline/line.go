package outline

import (
	"strings"

	"goalline/internal/domain"
)

// Line is one tokenized goal line.
type Line struct {
	Depth int
	State domain.GoalState
	Body  string
	Meta  string
}

// TokenizeLine splits a raw line into depth, state, body and metadata text.
// It accepts any input.
func TokenizeLine(raw string) Line {
	raw = strings.TrimRight(raw, " \t\r\n")
	i := 0
	depth := 0
	for i < len(raw) && (raw[i] == ' ' || raw[i] == '\t') {
		if raw[i] == '\t' {
			depth += TabWidth
		} else {
			depth++
		}
		i++
	}
	line := Line{Depth: depth, State: domain.StatePending}
	rest := raw[i:]
	if rest != "" {
		switch rest[0] {
		case '_':
			line.State = domain.StateCancelled
			rest = rest[1:]
		case '+':
			line.State = domain.StateDone
			rest = rest[1:]
		}
	}
	body, meta := splitMeta(rest)
	line.Body = collapse(body)
	line.Meta = strings.TrimSpace(meta)
	return line
}

func splitMeta(s string) (string, string) {
	trimmed := strings.TrimLeft(s, " \t")
	if strings.HasPrefix(trimmed, "# ") {
		return "", trimmed[2:]
	}
	if i := strings.LastIndex(s, Separator); i >= 0 {
		return s[:i], s[i+len(Separator):]
	}
	return s, ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func statusPrefix(s domain.GoalState) string {
	switch s {
	case domain.StateDone:
		return "+ "
	case domain.StateCancelled:
		return "_ "
	}
	return ""
}
