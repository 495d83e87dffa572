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

type fakeStore struct {
	goals   map[string]domain.Goal
	notes   map[string]domain.Note
	queued  []string
	counter int
}

func newFakeStore(goals ...domain.Goal) *fakeStore {
	s := &fakeStore{goals: map[string]domain.Goal{}, notes: map[string]domain.Note{}}
	for _, g := range goals {
		s.goals[g.ID] = g
	}
	return s
}

func (s *fakeStore) LookupGoal(_ context.Context, id string) (domain.Goal, bool, error) {
	g, ok := s.goals[id]
	return g, ok, nil
}

func (s *fakeStore) AllocateGoalID(_ context.Context) (string, error) {
	if len(s.queued) > 0 {
		id := s.queued[0]
		s.queued = s.queued[1:]
		return id, nil
	}
	s.counter++
	return fmt.Sprintf("NEW%04d", s.counter), nil
}

func (s *fakeStore) LookupNote(_ context.Context, id string) (domain.Note, bool, error) {
	n, ok := s.notes[id]
	return n, ok, nil
}

func (s *fakeStore) AllocateNoteID(_ context.Context) (string, error) {
	s.counter++
	return fmt.Sprintf("NOT%04d", s.counter), nil
}

// save persists a result the way the engine does.
func (s *fakeStore) save(res outline.Result) {
	for _, rec := range res.Goals {
		s.goals[rec.Goal.ID] = rec.Goal
	}
	for _, nr := range res.Notes {
		s.notes[nr.Note.ID] = nr.Note
		owner := s.goals[nr.Note.GoalID]
		if nr.New {
			owner.NoteCount++
		}
		s.goals[owner.ID] = owner
	}
}

func (s *fakeStore) all() []domain.Goal {
	var goals []domain.Goal
	for _, g := range s.goals {
		goals = append(goals, g)
	}
	return goals
}

var (
	t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)
	t1 = time.Date(2024, 1, 2, 8, 0, 0, 0, time.UTC)
)

func syncOutline(t *testing.T, store *fakeStore, text string, now time.Time) outline.Result {
	t.Helper()
	ctx := context.Background()
	pass := outline.NewPass(store, now)
	_, err := pass.ApplyOutline(ctx, outline.ParseOutline(utc, text))
	require.NoError(t, err)
	res, err := pass.Finalize(ctx)
	require.NoError(t, err)
	store.save(res)
	return res
}

func goal(id, text string, order int, parents ...string) domain.Goal {
	stamp := t0.Add(-time.Hour)
	return domain.Goal{
		ID:            id,
		Text:          text,
		TextChangedAt: &stamp,
		Order:         order,
		ParentIDs:     parents,
		CreatedAt:     stamp,
	}
}

func TestRoundTripIsIdempotent(t *testing.T) {
	text := "Ship release  # AAAAAAA\n" +
		"    + Write changelog  # 20240105-0930 BBBBBBB\n" +
		"    _ Announce  # CCCCCCC\n" +
		"        Draft post  # 20240106 DDDDDDD\n" +
		"Backlog  # EEEEEEE"
	store := newFakeStore()
	syncOutline(t, store, text, t0)

	archived := outline.Renderer{Clock: utc, IncludeArchived: true}
	assert.Equal(t, text, archived.Tree(store.all()))

	before := store.all()
	res := syncOutline(t, store, archived.Tree(store.all()), t1)
	for _, rec := range res.Goals {
		assert.False(t, rec.Changed(), rec.Goal.ID)
	}
	assert.ElementsMatch(t, before, store.all())
	assert.Equal(t, text, archived.Tree(store.all()))
}

func TestRendererHidesArchivedSubtrees(t *testing.T) {
	store := newFakeStore()
	syncOutline(t, store, "A  # AAAAAAA\n    + B  # BBBBBBB\n        C  # CCCCCCC\n    D  # DDDDDDD", t0)
	pending := outline.Renderer{Clock: utc}
	assert.Equal(t, "A  # AAAAAAA\n    D  # DDDDDDD", pending.Tree(store.all()))
}

func TestEditOneTextStampsOnlyThatGoal(t *testing.T) {
	store := newFakeStore(
		goal("AAAAAAA", "A", 1),
		goal("BBBBBBB", "B", 2, "AAAAAAA"),
		goal("CCCCCCC", "C", 3, "AAAAAAA"),
	)
	res := syncOutline(t, store, "A edited  # AAAAAAA\n    B  # BBBBBBB\n    C  # CCCCCCC", t1)

	a, _ := res.Goal("AAAAAAA")
	assert.Equal(t, "A edited", a.Goal.Text)
	assert.Equal(t, t1, *a.Goal.TextChangedAt)
	assert.True(t, a.TextChanged())

	for _, id := range []string{"BBBBBBB", "CCCCCCC"} {
		rec, _ := res.Goal(id)
		assert.False(t, rec.Changed(), id)
		assert.Equal(t, t0.Add(-time.Hour), *rec.Goal.TextChangedAt)
		assert.Equal(t, []string{"AAAAAAA"}, rec.Goal.ParentIDs)
	}
}

func TestStateChangeStamps(t *testing.T) {
	store := newFakeStore(goal("AAAAAAA", "A", 1))
	res := syncOutline(t, store, "+ A  # AAAAAAA", t1)
	a, _ := res.Goal("AAAAAAA")
	assert.Equal(t, domain.StateDone, a.Goal.State)
	assert.Equal(t, t1, *a.Goal.StateChangedAt)
	assert.False(t, a.TextChanged())
}

func TestPartialViewKeepsHiddenParents(t *testing.T) {
	// B lives under A and X; the text only shows A's subtree.
	store := newFakeStore(
		goal("AAAAAAA", "A", 1),
		goal("XXXXXXX", "X", 2),
		goal("BBBBBBB", "B", 3, "AAAAAAA", "XXXXXXX"),
	)
	res := syncOutline(t, store, "A  # AAAAAAA\n    B renamed  # BBBBBBB", t1)
	b, _ := res.Goal("BBBBBBB")
	assert.Equal(t, []string{"AAAAAAA", "XXXXXXX"}, b.Goal.ParentIDs)
	assert.False(t, b.ParentsChanged())
	_, touched := res.Goal("XXXXXXX")
	assert.False(t, touched)
}

func TestMovingGoalReplacesVisibleParent(t *testing.T) {
	store := newFakeStore(
		goal("AAAAAAA", "A", 1),
		goal("BBBBBBB", "B", 2),
		goal("CCCCCCC", "C", 3, "AAAAAAA"),
	)
	res := syncOutline(t, store, "A  # AAAAAAA\nB  # BBBBBBB\n    C  # CCCCCCC", t1)
	c, _ := res.Goal("CCCCCCC")
	assert.Equal(t, []string{"BBBBBBB"}, c.Goal.ParentIDs)
	assert.True(t, c.ParentsChanged())
}

func TestMultiParentRendersUnderEachParent(t *testing.T) {
	store := newFakeStore()
	text := "A  # AAAAAAA\n    C  # CCCCCCC\nB  # BBBBBBB\n    C  # CCCCCCC"
	res := syncOutline(t, store, text, t0)
	c, _ := res.Goal("CCCCCCC")
	assert.Equal(t, []string{"AAAAAAA", "BBBBBBB"}, c.Goal.ParentIDs)
	assert.Equal(t, text, outline.Renderer{Clock: utc}.Tree(store.all()))
}

func TestNewLinesGetDistinctIDs(t *testing.T) {
	store := newFakeStore()
	store.queued = []string{"DUPLICA", "DUPLICA", "OTHERID"}
	res := syncOutline(t, store, "First\nSecond", t0)
	require.Len(t, res.Goals, 2)
	assert.Equal(t, "DUPLICA", res.Goals[0].Goal.ID)
	assert.Equal(t, "OTHERID", res.Goals[1].Goal.ID)
	assert.True(t, res.Goals[0].New)
	assert.Equal(t, t0, *res.Goals[0].Goal.TextChangedAt)
}

func TestUnknownIDCreatesGoalWithThatID(t *testing.T) {
	store := newFakeStore()
	res := syncOutline(t, store, "Imported  # IMPORTD", t0)
	require.Len(t, res.Goals, 1)
	assert.Equal(t, "IMPORTD", res.Goals[0].Goal.ID)
	assert.True(t, res.Goals[0].New)
}

func TestSelfParentIsDropped(t *testing.T) {
	store := newFakeStore()
	res := syncOutline(t, store, "A  # AAAAAAA\n    A  # AAAAAAA", t0)
	a, _ := res.Goal("AAAAAAA")
	assert.Empty(t, a.Goal.ParentIDs)
	assert.Equal(t, []outline.Edge{{ChildID: "AAAAAAA", ParentID: "AAAAAAA"}}, res.Dropped)
}

func TestCycleThroughHiddenGoalIsDropped(t *testing.T) {
	// A sits under X, X sits under B; the text now puts B under A.
	store := newFakeStore(
		goal("AAAAAAA", "A", 1, "XXXXXXX"),
		goal("XXXXXXX", "X", 2, "BBBBBBB"),
		goal("BBBBBBB", "B", 3),
	)
	res := syncOutline(t, store, "A  # AAAAAAA\n    B  # BBBBBBB", t1)
	a, _ := res.Goal("AAAAAAA")
	b, _ := res.Goal("BBBBBBB")
	assert.Equal(t, []string{"XXXXXXX"}, a.Goal.ParentIDs)
	assert.Empty(t, b.Goal.ParentIDs)
	assert.Equal(t, []outline.Edge{{ChildID: "BBBBBBB", ParentID: "AAAAAAA"}}, res.Dropped)
}

func TestScheduleTokenRemovalClearsSchedule(t *testing.T) {
	store := newFakeStore()
	syncOutline(t, store, "A  # 20240105 AAAAAAA", t0)
	require.NotNil(t, store.goals["AAAAAAA"].ScheduleAt)
	syncOutline(t, store, "A  # AAAAAAA", t1)
	assert.Nil(t, store.goals["AAAAAAA"].ScheduleAt)
}

func TestRepeatedWritesInOnePass(t *testing.T) {
	store := newFakeStore(goal("AAAAAAA", "A", 1))
	ctx := context.Background()
	pass := outline.NewPass(store, t1)
	rec, err := pass.Resolve(ctx, "AAAAAAA")
	require.NoError(t, err)

	assert.True(t, rec.SetText("B", t1))
	assert.False(t, rec.SetText("B", t1))
	// a stale copy of the loaded value does not undo the edit
	assert.False(t, rec.SetText("A", t1))
	assert.Equal(t, "B", rec.Goal.Text)

	same, err := pass.Resolve(ctx, "AAAAAAA")
	require.NoError(t, err)
	assert.Same(t, rec, same)
}

func TestTwoSpaceForestKeepsIDsAndMintsMissing(t *testing.T) {
	store := newFakeStore()
	res := syncOutline(t, store, "Mission title  # A1B2C3D\n  Sub task one  # B1B2C3D\n  Sub task two", t0)
	require.Len(t, res.Goals, 3)
	root, one, two := res.Goals[0], res.Goals[1], res.Goals[2]
	assert.Equal(t, "A1B2C3D", root.Goal.ID)
	assert.Empty(t, root.Goal.ParentIDs)
	assert.Equal(t, "B1B2C3D", one.Goal.ID)
	assert.Equal(t, []string{"A1B2C3D"}, one.Goal.ParentIDs)
	assert.True(t, two.New)
	assert.Len(t, two.Goal.ID, 7)
	assert.Equal(t, []string{"A1B2C3D"}, two.Goal.ParentIDs)

	want := "Mission title  # A1B2C3D\n    Sub task one  # B1B2C3D\n    Sub task two  # " + two.Goal.ID
	assert.Equal(t, want, outline.Renderer{Clock: utc}.Tree(store.all()))
}
