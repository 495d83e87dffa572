package outline_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goalline/internal/domain"
	"goalline/internal/outline"
)

func TestParseSchedule(t *testing.T) {
	text := "Loose  # 20240103-1200 LOOSEID\n" +
		"20240105\n" +
		"    Call vendor  # 20240101-1000 AAAAAAA\n" +
		"    Pay rent  # BBBBBBB\n" +
		"20240106\n" +
		"    New item"
	entries := outline.ParseSchedule(utc, text)
	require.Len(t, entries, 4)

	assert.Equal(t, "LOOSEID", entries[0].Meta.ID)
	assert.Equal(t, time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC), *entries[0].ScheduleAt)

	assert.Equal(t, "Call vendor", entries[1].Line.Body)
	assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), *entries[1].ScheduleAt)

	assert.Equal(t, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), *entries[2].ScheduleAt)

	assert.Empty(t, entries[3].Meta.ID)
	assert.Equal(t, time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), *entries[3].ScheduleAt)
}

func scheduled(id, text string, at time.Time, state domain.GoalState) domain.Goal {
	return domain.Goal{ID: id, Text: text, ScheduleAt: &at, State: state}
}

func TestRenderScheduleBucketsByDay(t *testing.T) {
	goals := []domain.Goal{
		scheduled("BBBBBBB", "Late", time.Date(2024, 1, 5, 17, 0, 0, 0, time.UTC), domain.StatePending),
		scheduled("AAAAAAA", "Early", time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), domain.StatePending),
		scheduled("CCCCCCC", "Tie", time.Date(2024, 1, 5, 9, 0, 0, 0, time.UTC), domain.StatePending),
		scheduled("DDDDDDD", "Next day", time.Date(2024, 1, 6, 0, 0, 0, 0, time.UTC), domain.StatePending),
		scheduled("EEEEEEE", "Finished", time.Date(2024, 1, 6, 8, 0, 0, 0, time.UTC), domain.StateDone),
		{ID: "FFFFFFF", Text: "Unscheduled"},
	}
	want := "20240105\n" +
		"    Early  # 20240105-0900 AAAAAAA\n" +
		"    Tie  # 20240105-0900 CCCCCCC\n" +
		"    Late  # 20240105-1700 BBBBBBB\n" +
		"20240106\n" +
		"    Next day  # 20240106 DDDDDDD"
	assert.Equal(t, want, outline.Renderer{Clock: utc}.Schedule(goals))

	// rendering is a fixed point of parsing
	for i, e := range outline.ParseSchedule(utc, want) {
		assert.NotEmpty(t, e.Meta.ID, i)
	}
}

func TestLogRoundTrip(t *testing.T) {
	created := time.Date(2024, 1, 2, 9, 30, 0, 0, time.UTC)
	notes := []domain.Note{
		{ID: "NOTEAAA", Text: "first line\n\n  indented detail", CreatedAt: created},
		{ID: "NOTEBBB", Text: "second", CreatedAt: created.Add(24 * time.Hour)},
	}
	text := outline.FormatLog(utc, notes)
	assert.Equal(t, "20240102-0930  # NOTEAAA\nfirst line\n\n  indented detail\n\n20240103-0930  # NOTEBBB\nsecond", text)

	entries := outline.ParseLog(utc, text)
	require.Len(t, entries, 2)
	assert.Equal(t, "NOTEAAA", entries[0].ID)
	assert.Equal(t, "first line\n\n  indented detail", entries[0].Text)
	assert.Equal(t, created, *entries[0].CreatedAt)
	assert.Equal(t, "second", entries[1].Text)
}

func TestParseLogLeadingBodyIsNewNote(t *testing.T) {
	entries := outline.ParseLog(utc, "jotted down\n20240102  # NOTEAAA\nkept")
	require.Len(t, entries, 2)
	assert.Equal(t, outline.LogEntry{Text: "jotted down"}, entries[0])
	assert.Equal(t, "NOTEAAA", entries[1].ID)
}

func TestParseMissionRequiresMission(t *testing.T) {
	_, err := outline.ParseMission(utc, "# Mission\n\n# Tasks\nSomething")
	assert.ErrorIs(t, err, outline.ErrEmptyDocument)
	_, err = outline.ParseMission(utc, "")
	assert.ErrorIs(t, err, outline.ErrEmptyDocument)
}

func syncMission(t *testing.T, store *fakeStore, text string, now time.Time) (outline.Result, string) {
	t.Helper()
	ctx := context.Background()
	doc, err := outline.ParseMission(utc, text)
	require.NoError(t, err)
	pass := outline.NewPass(store, now)
	mission, err := pass.ApplyMission(ctx, doc)
	require.NoError(t, err)
	res, err := pass.Finalize(ctx)
	require.NoError(t, err)
	store.save(res)
	return res, mission.Goal.ID
}

func storeNotes(store *fakeStore, goalID string) []domain.Note {
	var notes []domain.Note
	for _, n := range store.notes {
		if n.GoalID == goalID {
			notes = append(notes, n)
		}
	}
	return notes
}

func TestMissionDocumentRoundTrip(t *testing.T) {
	store := newFakeStore()
	text := "# Mission\n" +
		"Launch shop  # MISSION\n\n" +
		"# Log\n" +
		"20240101-0800  # NOTEAAA\n" +
		"talked to designer\n\n" +
		"# Schedule\n" +
		"20240105\n" +
		"    Order samples  # 20240105-1000 SAMPLES\n\n" +
		"# Tasks\n" +
		"Launch shop  # MISSION\n" +
		"    Order samples  # 20240105-1000 SAMPLES\n" +
		"    + Pick name  # PICKNAM"
	_, missionID := syncMission(t, store, text, t0)
	assert.Equal(t, "MISSION", missionID)

	rendered := outline.Renderer{Clock: utc}.Mission(store.all(), storeNotes(store, missionID), missionID)
	want := "# Mission\n" +
		"Launch shop  # ... MISSION\n\n" +
		"# Log\n" +
		"20240101-0800  # NOTEAAA\n" +
		"talked to designer\n\n" +
		"# Schedule\n" +
		"20240105\n" +
		"    Order samples  # 20240105-1000 SAMPLES\n\n" +
		"# Tasks\n" +
		"Launch shop  # ... MISSION\n" +
		"    Order samples  # 20240105-1000 SAMPLES\n" +
		"    + Pick name  # PICKNAM"
	assert.Equal(t, want, rendered)

	res, _ := syncMission(t, store, rendered, t1)
	for _, rec := range res.Goals {
		assert.False(t, rec.Changed(), rec.Goal.ID)
	}
	for _, nr := range res.Notes {
		assert.False(t, nr.Changed(), nr.Note.ID)
	}
}

func TestMissionAdoptsLooseTasks(t *testing.T) {
	store := newFakeStore()
	res, missionID := syncMission(t, store, "# Mission\nGrow garden  # GARDENS\n# Tasks\nBuy seeds\n    Compare brands", t0)
	seeds := res.Goals[1]
	brands := res.Goals[2]
	assert.Equal(t, "Buy seeds", seeds.Goal.Text)
	assert.Equal(t, []string{missionID}, seeds.Goal.ParentIDs)
	assert.Equal(t, []string{seeds.Goal.ID}, brands.Goal.ParentIDs)
	mission, _ := res.Goal(missionID)
	assert.Empty(t, mission.Goal.ParentIDs)
}

func TestMissionStaleBlockDoesNotUndoEdit(t *testing.T) {
	store := newFakeStore()
	base := "# Mission\nM  # MISSION\n# Schedule\n20240105\n    Task  # 20240105-1000 TASKAAA\n# Tasks\nM  # MISSION\n    %s  # 20240105-1000 TASKAAA"
	syncMission(t, store, fmt.Sprintf(base, "Task"), t0)

	// the task is renamed in the tree only; the schedule block still has the old text
	res, _ := syncMission(t, store, fmt.Sprintf(base, "Task renamed"), t1)
	task, _ := res.Goal("TASKAAA")
	assert.Equal(t, "Task renamed", task.Goal.Text)
	assert.Equal(t, t1, *task.Goal.TextChangedAt)
}

func TestMissionLogAddsNotes(t *testing.T) {
	store := newFakeStore()
	res, missionID := syncMission(t, store, "# Mission\nM  # MISSION\n# Log\nquick thought", t0)
	require.Len(t, res.Notes, 1)
	n := res.Notes[0]
	assert.True(t, n.New)
	assert.Equal(t, missionID, n.Note.GoalID)
	assert.Equal(t, "quick thought", n.Note.Text)
	assert.Equal(t, t0, n.Note.CreatedAt)
	assert.Equal(t, 1, store.goals[missionID].NoteCount)
}

func TestMissionAdoptsNewScheduledGoals(t *testing.T) {
	store := newFakeStore(
		goal("GARDENS", "Grow garden", 1),
		goal("ELSEWHR", "Elsewhere", 2),
		goal("FENCEAA", "Fix fence", 3, "ELSEWHR"),
	)
	res, _ := syncMission(t, store, "# Mission\nGrow garden  # GARDENS\n# Schedule\n20240105\n    Water beds\n    Fix fence  # FENCEAA\n# Tasks", t0)
	var water *outline.Record
	for _, rec := range res.Goals {
		if rec.Goal.Text == "Water beds" {
			water = rec
		}
	}
	require.NotNil(t, water)
	assert.True(t, water.New)
	assert.Equal(t, []string{"GARDENS"}, water.Goal.ParentIDs)

	fence, _ := res.Goal("FENCEAA")
	assert.Equal(t, []string{"ELSEWHR"}, fence.Goal.ParentIDs)
	assert.False(t, fence.ParentsChanged())
}
