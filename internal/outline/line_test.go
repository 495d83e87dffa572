package outline_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"goalline/internal/domain"
	"goalline/internal/outline"
	"goalline/internal/whenio"
)

var utc = whenio.New(time.UTC)

func TestTokenizeLine(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		want outline.Line
	}{
		{"plain", "Ship release", outline.Line{Body: "Ship release"}},
		{"indented", "        Draft post  # ABCDEFG", outline.Line{Depth: 8, Body: "Draft post", Meta: "ABCDEFG"}},
		{"tab expands", "\t\tNested", outline.Line{Depth: 8, Body: "Nested"}},
		{"mixed indent", "\t  Nested", outline.Line{Depth: 6, Body: "Nested"}},
		{"done", "    + Write changelog  # BCDEFGH", outline.Line{Depth: 4, State: domain.StateDone, Body: "Write changelog", Meta: "BCDEFGH"}},
		{"cancelled without space", "_Announce", outline.Line{State: domain.StateCancelled, Body: "Announce"}},
		{"collapse whitespace", "  a   b \t c  ", outline.Line{Depth: 2, Body: "a b c"}},
		{"last separator wins", "Fix # 12 bug  # ABCDEFG", outline.Line{Body: "Fix # 12 bug", Meta: "ABCDEFG"}},
		{"hash without separator", "Learn C#", outline.Line{Body: "Learn C#"}},
		{"empty body", "    # ABCDEFG", outline.Line{Depth: 4, Meta: "ABCDEFG"}},
		{"empty body done", "+ # ABCDEFG", outline.Line{State: domain.StateDone, Meta: "ABCDEFG"}},
		{"blank", "   ", outline.Line{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, outline.TokenizeLine(tc.raw))
		})
	}
}

func TestParseMeta(t *testing.T) {
	m := outline.ParseMeta(utc, "20240105-0930 ... ABCDEFG")
	if assert.NotNil(t, m.ScheduleAt) {
		assert.Equal(t, time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC), *m.ScheduleAt)
	}
	assert.Equal(t, "ABCDEFG", m.ID)

	m = outline.ParseMeta(utc, "ABCDEFG BCDEFGH 20240106 20240105 junk")
	assert.Equal(t, "ABCDEFG", m.ID)
	if assert.NotNil(t, m.ScheduleAt) {
		assert.Equal(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), *m.ScheduleAt)
	}

	m = outline.ParseMeta(utc, "no use here")
	assert.Empty(t, m.ID)
	assert.Nil(t, m.ScheduleAt)
}

func TestCancelledScheduledLine(t *testing.T) {
	line := outline.TokenizeLine("  _ Old task  # 20240102 Z9Y8X7W")
	assert.Equal(t, outline.Line{Depth: 2, State: domain.StateCancelled, Body: "Old task", Meta: "20240102 Z9Y8X7W"}, line)
	m := outline.ParseMeta(utc, line.Meta)
	assert.Equal(t, "Z9Y8X7W", m.ID)
	if assert.NotNil(t, m.ScheduleAt) {
		assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), *m.ScheduleAt)
	}
}

func TestFormatMeta(t *testing.T) {
	at := time.Date(2024, 1, 5, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, " # 20240105-0930 ... ABCDEFG", outline.FormatMeta(utc, outline.Meta{ScheduleAt: &at, HasNotes: true, ID: "ABCDEFG"}))
	assert.Equal(t, " # ABCDEFG", outline.FormatMeta(utc, outline.Meta{ID: "ABCDEFG"}))
	assert.Equal(t, "", outline.FormatMeta(utc, outline.Meta{}))
}

func TestReconstruct(t *testing.T) {
	assert.Equal(t, []int{-1, 0, 1, 0, -1, 4}, outline.Reconstruct([]int{0, 4, 8, 4, 0, 2}))
	// odd indentation attaches to the deepest shallower line still open
	assert.Equal(t, []int{-1, 0, 1, 1, 0}, outline.Reconstruct([]int{0, 2, 4, 3, 1}))
	// a first line that is indented is still a root
	assert.Equal(t, []int{-1, -1, 1}, outline.Reconstruct([]int{4, 0, 4}))
	assert.Empty(t, outline.Reconstruct(nil))
}

func TestParseOutlineSkipsBlankLines(t *testing.T) {
	nodes := outline.ParseOutline(utc, "A\n\n    B\r\n   \n    C\n")
	if assert.Len(t, nodes, 3) {
		assert.Equal(t, -1, nodes[0].Parent)
		assert.Equal(t, 0, nodes[1].Parent)
		assert.Equal(t, 0, nodes[2].Parent)
		assert.Equal(t, []int{1, 2, 3}, []int{nodes[0].Order, nodes[1].Order, nodes[2].Order})
	}
}
