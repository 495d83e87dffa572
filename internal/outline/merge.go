package outline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"goalline/internal/domain"
)

const maxAllocAttempts = 32

var ErrIDSpaceExhausted = errors.New("could not allocate a free id")

type snapshot struct {
	text       string
	state      domain.GoalState
	scheduleAt *time.Time
	order      int
	parentIDs  []string
}

// Record is a goal touched by a merge pass. Goal holds the pending values; the values
// loaded from the store are kept aside so repeated writes within one pass are stable.
type Record struct {
	Goal domain.Goal
	New  bool

	original   snapshot
	candidates []string
	inOutline  bool
}

// SetText applies text unless it equals the loaded value or the value already applied
// in this pass. Applied changes are stamped with now.
func (r *Record) SetText(text string, now time.Time) bool {
	if text == r.original.text || text == r.Goal.Text {
		return false
	}
	r.Goal.Text = text
	r.Goal.TextChangedAt = &now
	return true
}

// SetState follows the same rules as SetText.
func (r *Record) SetState(state domain.GoalState, now time.Time) bool {
	if state == r.original.state || state == r.Goal.State {
		return false
	}
	r.Goal.State = state
	r.Goal.StateChangedAt = &now
	return true
}

// SetSchedule follows the same rules as SetText without stamping.
func (r *Record) SetSchedule(at *time.Time) bool {
	if sameTime(at, r.original.scheduleAt) || sameTime(at, r.Goal.ScheduleAt) {
		return false
	}
	if at == nil {
		r.Goal.ScheduleAt = nil
		return true
	}
	t := at.UTC()
	r.Goal.ScheduleAt = &t
	return true
}

func (r *Record) TextChanged() bool {
	return r.Goal.Text != r.original.text
}

func (r *Record) StateChanged() bool {
	return r.Goal.State != r.original.state
}

func (r *Record) ScheduleChanged() bool {
	return !sameTime(r.Goal.ScheduleAt, r.original.scheduleAt)
}

func (r *Record) ParentsChanged() bool {
	return !sameIDs(r.Goal.ParentIDs, r.original.parentIDs)
}

// Changed reports whether the record has anything to persist.
func (r *Record) Changed() bool {
	return r.New || r.TextChanged() || r.StateChanged() || r.ScheduleChanged() ||
		r.Goal.Order != r.original.order || r.ParentsChanged()
}

// InOutline reports whether Finalize settled the record's parents.
func (r *Record) InOutline() bool {
	return r.inOutline
}

// NoteRecord is a note touched by a merge pass.
type NoteRecord struct {
	Note domain.Note
	New  bool

	originalText string
}

func (n *NoteRecord) SetText(text string, now time.Time) bool {
	if text == n.originalText || text == n.Note.Text {
		return false
	}
	n.Note.Text = text
	n.Note.TextChangedAt = &now
	return true
}

func (n *NoteRecord) Changed() bool {
	return n.New || n.Note.Text != n.originalText
}

// Edge is a parent link the pass refused to create.
type Edge struct {
	ChildID  string
	ParentID string
}

// Result is the outcome of a pass, records in resolution order.
type Result struct {
	Goals   []*Record
	Notes   []*NoteRecord
	Dropped []Edge
}

// Goal returns the merged record for id.
func (r Result) Goal(id string) (*Record, bool) {
	for _, rec := range r.Goals {
		if rec.Goal.ID == id {
			return rec, true
		}
	}
	return nil, false
}

// Pass merges one or more parsed batches into goal records. A pass captures a single
// now and is not safe for concurrent use.
type Pass struct {
	store Store
	now   time.Time

	records   map[string]*Record
	order     []string
	explicit  map[string][]string
	mission   string
	notes     map[string]*NoteRecord
	noteOrder []string
}

func NewPass(store Store, now time.Time) *Pass {
	return &Pass{
		store:    store,
		now:      now.UTC(),
		records:  map[string]*Record{},
		explicit: map[string][]string{},
		notes:    map[string]*NoteRecord{},
	}
}

func (p *Pass) Now() time.Time {
	return p.now
}

// Resolve returns the record for id, loading or creating it. An empty id allocates a
// fresh identity that is unused both in the store and in this pass.
func (p *Pass) Resolve(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		fresh, err := p.allocateGoalID(ctx)
		if err != nil {
			return nil, err
		}
		return p.adopt(domain.Goal{ID: fresh, CreatedAt: p.now}, true), nil
	}
	if rec, ok := p.records[id]; ok {
		return rec, nil
	}
	g, found, err := p.store.LookupGoal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup goal %s: %w", id, err)
	}
	if !found {
		return p.adopt(domain.Goal{ID: id, CreatedAt: p.now}, true), nil
	}
	return p.adopt(g, false), nil
}

func (p *Pass) adopt(g domain.Goal, isNew bool) *Record {
	g.ParentIDs = append([]string(nil), g.ParentIDs...)
	rec := &Record{
		Goal: g,
		New:  isNew,
		original: snapshot{
			text:       g.Text,
			state:      g.State,
			scheduleAt: g.ScheduleAt,
			order:      g.Order,
			parentIDs:  append([]string(nil), g.ParentIDs...),
		},
	}
	p.records[g.ID] = rec
	p.order = append(p.order, g.ID)
	return rec
}

func (p *Pass) allocateGoalID(ctx context.Context) (string, error) {
	for i := 0; i < maxAllocAttempts; i++ {
		id, err := p.store.AllocateGoalID(ctx)
		if err != nil {
			return "", fmt.Errorf("allocate goal id: %w", err)
		}
		if _, taken := p.records[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate goal id: %w", ErrIDSpaceExhausted)
}

func (p *Pass) allocateNoteID(ctx context.Context) (string, error) {
	for i := 0; i < maxAllocAttempts; i++ {
		id, err := p.store.AllocateNoteID(ctx)
		if err != nil {
			return "", fmt.Errorf("allocate note id: %w", err)
		}
		if _, taken := p.notes[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate note id: %w", ErrIDSpaceExhausted)
}

// ApplyOutline merges an outline batch. Every goal in the batch gets its parents
// rewritten at Finalize: indentation parents first, then persisted parents that do
// not appear in the batch.
func (p *Pass) ApplyOutline(ctx context.Context, nodes []Node) ([]*Record, error) {
	recs := make([]*Record, len(nodes))
	for i, n := range nodes {
		rec, err := p.Resolve(ctx, n.Meta.ID)
		if err != nil {
			return nil, err
		}
		recs[i] = rec
		rec.SetText(n.Line.Body, p.now)
		rec.SetState(n.Line.State, p.now)
		rec.SetSchedule(n.Meta.ScheduleAt)
		rec.Goal.Order = n.Order
		rec.inOutline = true
		if n.Parent >= 0 {
			p.link(rec.Goal.ID, recs[n.Parent].Goal.ID)
		}
	}
	return recs, nil
}

func (p *Pass) link(childID, parentID string) {
	for _, existing := range p.explicit[childID] {
		if existing == parentID {
			return
		}
	}
	p.explicit[childID] = append(p.explicit[childID], parentID)
}

// ApplySchedule merges schedule entries. Parent links are left untouched.
func (p *Pass) ApplySchedule(ctx context.Context, entries []ScheduleEntry) ([]*Record, error) {
	recs := make([]*Record, 0, len(entries))
	for _, e := range entries {
		rec, err := p.Resolve(ctx, e.Meta.ID)
		if err != nil {
			return nil, err
		}
		rec.SetText(e.Line.Body, p.now)
		rec.SetState(e.Line.State, p.now)
		if e.ScheduleAt != nil {
			rec.SetSchedule(e.ScheduleAt)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// AttachMission makes id the parent of every outline goal left without parents.
func (p *Pass) AttachMission(id string) {
	p.mission = id
}

// ApplyLog merges log entries as notes owned by goalID.
func (p *Pass) ApplyLog(ctx context.Context, goalID string, entries []LogEntry) ([]*NoteRecord, error) {
	recs := make([]*NoteRecord, 0, len(entries))
	for _, e := range entries {
		nr, err := p.resolveNote(ctx, e.ID, goalID)
		if err != nil {
			return nil, err
		}
		if nr.New && e.CreatedAt != nil {
			nr.Note.CreatedAt = e.CreatedAt.UTC()
		}
		nr.SetText(e.Text, p.now)
		recs = append(recs, nr)
	}
	return recs, nil
}

func (p *Pass) resolveNote(ctx context.Context, id, goalID string) (*NoteRecord, error) {
	if id != "" {
		if nr, ok := p.notes[id]; ok {
			return nr, nil
		}
		n, found, err := p.store.LookupNote(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("lookup note %s: %w", id, err)
		}
		if found {
			return p.adoptNote(n, false), nil
		}
	} else {
		fresh, err := p.allocateNoteID(ctx)
		if err != nil {
			return nil, err
		}
		id = fresh
	}
	return p.adoptNote(domain.Note{ID: id, GoalID: goalID, CreatedAt: p.now}, true), nil
}

func (p *Pass) adoptNote(n domain.Note, isNew bool) *NoteRecord {
	nr := &NoteRecord{Note: n, New: isNew, originalText: n.Text}
	p.notes[n.ID] = nr
	p.noteOrder = append(p.noteOrder, n.ID)
	return nr
}

// Finalize settles parent links for outline goals and returns every touched record.
// A link that would make a goal its own ancestor is dropped and reported.
func (p *Pass) Finalize(ctx context.Context) (Result, error) {
	var res Result
	for _, id := range p.order {
		rec := p.records[id]
		if !rec.inOutline {
			continue
		}
		candidates := append([]string(nil), p.explicit[id]...)
		for _, pid := range rec.original.parentIDs {
			if other, ok := p.records[pid]; ok && other.inOutline {
				continue
			}
			if !containsID(candidates, pid) {
				candidates = append(candidates, pid)
			}
		}
		if len(candidates) == 0 && p.mission != "" && id != p.mission {
			candidates = []string{p.mission}
		}
		rec.candidates = candidates
		rec.Goal.ParentIDs = nil
	}

	stored := map[string][]string{}
	for _, id := range p.order {
		rec := p.records[id]
		if !rec.inOutline {
			continue
		}
		for _, pid := range rec.candidates {
			cyclic, err := p.reaches(ctx, pid, id, stored)
			if err != nil {
				return Result{}, err
			}
			if cyclic {
				res.Dropped = append(res.Dropped, Edge{ChildID: id, ParentID: pid})
				continue
			}
			rec.Goal.ParentIDs = append(rec.Goal.ParentIDs, pid)
		}
		rec.candidates = nil
	}

	for _, id := range p.order {
		res.Goals = append(res.Goals, p.records[id])
	}
	for _, id := range p.noteOrder {
		res.Notes = append(res.Notes, p.notes[id])
	}
	return res, nil
}

// reaches reports whether target is from itself or one of its ancestors.
func (p *Pass) reaches(ctx context.Context, from, target string, stored map[string][]string) (bool, error) {
	seen := map[string]bool{}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true, nil
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		parents, err := p.parentsOf(ctx, cur, stored)
		if err != nil {
			return false, err
		}
		queue = append(queue, parents...)
	}
	return false, nil
}

func (p *Pass) parentsOf(ctx context.Context, id string, stored map[string][]string) ([]string, error) {
	if rec, ok := p.records[id]; ok {
		return rec.Goal.ParentIDs, nil
	}
	if parents, ok := stored[id]; ok {
		return parents, nil
	}
	g, found, err := p.store.LookupGoal(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lookup goal %s: %w", id, err)
	}
	if !found {
		stored[id] = nil
		return nil, nil
	}
	stored[id] = g.ParentIDs
	return g.ParentIDs, nil
}

func containsID(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
