package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"goalline/internal/config"
	"goalline/internal/domain"
	"goalline/internal/events"
	"goalline/internal/outline"
	"goalline/internal/repo"
	"goalline/internal/whenio"
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Config *config.Config
	Clock  whenio.Codec
	Log    *zap.Logger
	Now    func() time.Time

	// mu serializes write passes; copies of an Engine share it.
	mu *sync.Mutex
}

func New(db *sql.DB, cfg *config.Config, log *zap.Logger) (Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if log == nil {
		log = zap.NewNop()
	}
	clock, err := whenio.Load(cfg.Editor.Timezone)
	if err != nil {
		return Engine{}, err
	}
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{Now: time.Now},
		Config: cfg,
		Clock:  clock,
		Log:    log,
		Now:    time.Now,
		mu:     &sync.Mutex{},
	}, nil
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) lock() func() {
	if e.mu == nil {
		return func() {}
	}
	e.mu.Lock()
	return e.mu.Unlock
}

func (e Engine) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e Engine) renderer(includeArchived bool) outline.Renderer {
	return outline.Renderer{Clock: e.Clock, IncludeArchived: includeArchived}
}

// Edge is a parent link a pass refused because it would close a cycle.
type Edge struct {
	ChildID  string `json:"child_id"`
	ParentID string `json:"parent_id"`
}

// Summary counts what a write pass changed.
type Summary struct {
	MissionID    string `json:"mission_id,omitempty"`
	Created      int    `json:"created"`
	TextChanged  int    `json:"text_changed"`
	StateChanged int    `json:"state_changed"`
	Rescheduled  int    `json:"rescheduled"`
	Reparented   int    `json:"reparented"`
	NotesCreated int    `json:"notes_created"`
	NotesChanged int    `json:"notes_changed"`
	Dropped      []Edge `json:"dropped_edges,omitempty"`
}

func (s Summary) Changes() int {
	return s.Created + s.TextChanged + s.StateChanged + s.Rescheduled + s.Reparented + s.NotesCreated + s.NotesChanged
}

// TasksText renders the whole goal forest.
func (e Engine) TasksText(ctx context.Context, includeArchived bool) (string, error) {
	goals, err := e.Repo.ListGoals(ctx, repo.GoalFilter{})
	if err != nil {
		return "", err
	}
	return e.renderer(includeArchived).Tree(goals), nil
}

// ScheduleText renders scheduled goals grouped by day.
func (e Engine) ScheduleText(ctx context.Context, includeArchived bool) (string, error) {
	goals, err := e.Repo.ListGoals(ctx, repo.GoalFilter{Scheduled: true})
	if err != nil {
		return "", err
	}
	return e.renderer(includeArchived).Schedule(goals), nil
}

const blankMission = "# Mission\n\n# Log\n\n# Schedule\n\n# Tasks"

// MissionText renders the mission document of missionID, or of the first pending goal
// when missionID is empty. With no goal to show it returns an empty template and "".
func (e Engine) MissionText(ctx context.Context, missionID string) (string, string, error) {
	if missionID == "" {
		g, err := e.Repo.FirstPendingGoal(ctx)
		if errors.Is(err, repo.ErrNotFound) {
			return "", blankMission, nil
		}
		if err != nil {
			return "", "", err
		}
		missionID = g.ID
	} else if _, err := e.Repo.GetGoal(ctx, missionID); err != nil {
		return "", "", err
	}
	ids, err := e.subtreeIDs(ctx, missionID)
	if err != nil {
		return "", "", err
	}
	goals, err := e.Repo.ListGoals(ctx, repo.GoalFilter{IDs: ids})
	if err != nil {
		return "", "", err
	}
	notes, err := e.Repo.ListNotes(ctx, missionID)
	if err != nil {
		return "", "", err
	}
	return missionID, e.renderer(false).Mission(goals, notes, missionID), nil
}

// subtreeIDs returns rootID followed by every goal linked below it.
func (e Engine) subtreeIDs(ctx context.Context, rootID string) ([]string, error) {
	links, err := e.Repo.ListLinks(ctx)
	if err != nil {
		return nil, err
	}
	children := map[string][]string{}
	for _, l := range links {
		children[l.ParentID] = append(children[l.ParentID], l.ChildID)
	}
	ids := []string{rootID}
	seen := map[string]bool{rootID: true}
	for i := 0; i < len(ids); i++ {
		for _, child := range children[ids[i]] {
			if !seen[child] {
				seen[child] = true
				ids = append(ids, child)
			}
		}
	}
	return ids, nil
}

// SyncTasks merges an edited outline. Text without any goal line returns
// outline.ErrEmptyDocument.
func (e Engine) SyncTasks(ctx context.Context, text string) (Summary, error) {
	nodes := outline.ParseOutline(e.Clock, text)
	if len(nodes) == 0 {
		return Summary{}, outline.ErrEmptyDocument
	}
	defer e.lock()()
	pass := outline.NewPass(e.Repo, e.now())
	if _, err := pass.ApplyOutline(ctx, nodes); err != nil {
		return Summary{}, err
	}
	return e.finish(ctx, pass, "tasks")
}

// SyncSchedule merges an edited schedule block. Parent links are never changed.
func (e Engine) SyncSchedule(ctx context.Context, text string) (Summary, error) {
	entries := outline.ParseSchedule(e.Clock, text)
	if len(entries) == 0 {
		return Summary{}, outline.ErrEmptyDocument
	}
	defer e.lock()()
	pass := outline.NewPass(e.Repo, e.now())
	if _, err := pass.ApplySchedule(ctx, entries); err != nil {
		return Summary{}, err
	}
	return e.finish(ctx, pass, "schedule")
}

// SyncMission merges an edited mission document.
func (e Engine) SyncMission(ctx context.Context, text string) (Summary, error) {
	doc, err := outline.ParseMission(e.Clock, text)
	if err != nil {
		return Summary{}, err
	}
	defer e.lock()()
	pass := outline.NewPass(e.Repo, e.now())
	mission, err := pass.ApplyMission(ctx, doc)
	if err != nil {
		return Summary{}, err
	}
	sum, err := e.finish(ctx, pass, "mission")
	sum.MissionID = mission.Goal.ID
	return sum, err
}

func (e Engine) finish(ctx context.Context, pass *outline.Pass, kind string) (Summary, error) {
	res, err := pass.Finalize(ctx)
	if err != nil {
		return Summary{}, err
	}
	log := e.logger().With(zap.String("document", kind))
	for _, edge := range res.Dropped {
		log.Warn("dropped parent link that would close a cycle",
			zap.String("child_id", edge.ChildID), zap.String("parent_id", edge.ParentID))
	}
	sum, err := e.commit(ctx, res)
	if err != nil {
		return Summary{}, err
	}
	log.Info("sync complete",
		zap.Int("goals_created", sum.Created),
		zap.Int("text_changed", sum.TextChanged),
		zap.Int("state_changed", sum.StateChanged),
		zap.Int("rescheduled", sum.Rescheduled),
		zap.Int("reparented", sum.Reparented),
		zap.Int("notes_created", sum.NotesCreated),
		zap.Int("dropped_edges", len(sum.Dropped)))
	return sum, nil
}

// commit writes every changed record of res in one transaction.
func (e Engine) commit(ctx context.Context, res outline.Result) (Summary, error) {
	var sum Summary
	for _, d := range res.Dropped {
		sum.Dropped = append(sum.Dropped, Edge{ChildID: d.ChildID, ParentID: d.ParentID})
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return sum, err
	}
	defer tx.Rollback()

	w := e.Events
	w.Now = e.now

	// goals first so every link target exists
	for _, rec := range res.Goals {
		if !rec.Changed() {
			continue
		}
		if err := e.Repo.UpsertGoalTx(ctx, tx, rec.Goal); err != nil {
			return sum, err
		}
	}
	for _, rec := range res.Goals {
		if !rec.Changed() {
			continue
		}
		g := rec.Goal
		if rec.InOutline() && (rec.New || rec.ParentsChanged()) {
			if err := e.Repo.ReplaceParentsTx(ctx, tx, g.ID, g.ParentIDs); err != nil {
				return sum, err
			}
		}
		if err := e.appendGoalEvents(ctx, tx, w, rec, &sum); err != nil {
			return sum, err
		}
	}
	for _, nr := range res.Notes {
		if !nr.Changed() {
			continue
		}
		if err := e.Repo.UpsertNoteTx(ctx, tx, nr.Note); err != nil {
			return sum, err
		}
		evtType := events.NoteChanged
		if nr.New {
			evtType = events.NoteCreated
			sum.NotesCreated++
		} else {
			sum.NotesChanged++
		}
		if err := w.Append(ctx, tx, evtType, "note", nr.Note.ID, events.EventPayload{"goal_id": nr.Note.GoalID}); err != nil {
			return sum, err
		}
	}
	if err := tx.Commit(); err != nil {
		return sum, fmt.Errorf("commit sync: %w", err)
	}
	return sum, nil
}

func (e Engine) appendGoalEvents(ctx context.Context, tx *sql.Tx, w events.Writer, rec *outline.Record, sum *Summary) error {
	g := rec.Goal
	if rec.New {
		sum.Created++
		return w.Append(ctx, tx, events.GoalCreated, "goal", g.ID, events.EventPayload{
			"text":       g.Text,
			"state":      g.State.String(),
			"parent_ids": g.ParentIDs,
		})
	}
	if rec.TextChanged() {
		sum.TextChanged++
		if err := w.Append(ctx, tx, events.GoalTextChanged, "goal", g.ID, events.EventPayload{"text": g.Text}); err != nil {
			return err
		}
	}
	if rec.StateChanged() {
		sum.StateChanged++
		if err := w.Append(ctx, tx, events.GoalStateChanged, "goal", g.ID, events.EventPayload{"state": g.State.String()}); err != nil {
			return err
		}
	}
	if rec.ScheduleChanged() {
		sum.Rescheduled++
		payload := events.EventPayload{"schedule_at": nil}
		if g.ScheduleAt != nil {
			payload["schedule_at"] = g.ScheduleAt.UTC().Format(time.RFC3339)
		}
		if err := w.Append(ctx, tx, events.GoalRescheduled, "goal", g.ID, payload); err != nil {
			return err
		}
	}
	if rec.ParentsChanged() {
		sum.Reparented++
		if err := w.Append(ctx, tx, events.GoalReparented, "goal", g.ID, events.EventPayload{"parent_ids": g.ParentIDs}); err != nil {
			return err
		}
	}
	return nil
}

// Goals lists goals by order; archived goals only when includeArchived.
func (e Engine) Goals(ctx context.Context, includeArchived bool) ([]domain.Goal, error) {
	f := repo.GoalFilter{}
	if !includeArchived {
		f.States = []domain.GoalState{domain.StatePending}
	}
	return e.Repo.ListGoals(ctx, f)
}

func (e Engine) Goal(ctx context.Context, id string) (domain.Goal, error) {
	return e.Repo.GetGoal(ctx, id)
}

func (e Engine) Notes(ctx context.Context, goalID string) ([]domain.Note, error) {
	if _, err := e.Repo.GetGoal(ctx, goalID); err != nil {
		return nil, err
	}
	return e.Repo.ListNotes(ctx, goalID)
}

func (e Engine) Stats(ctx context.Context) (domain.Stats, error) {
	return e.Repo.Stats(ctx)
}

func (e Engine) LatestEvents(ctx context.Context, limit int, evtType string) ([]domain.Event, error) {
	return e.Repo.LatestEvents(ctx, limit, evtType, "", "")
}
