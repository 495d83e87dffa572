package engine

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"goalline/internal/domain"
	"goalline/internal/events"
	"goalline/internal/repo"
)

// MaxVisits bounds how often a walk from the roots may reach the same goal before the
// goal is reported as tangled.
const MaxVisits = 3

type DoctorReport struct {
	Cyclic      []string `json:"cyclic"`
	Overvisited []string `json:"overvisited"`
	Unlinked    int64    `json:"unlinked"`
}

// Flagged returns every reported goal once, sorted.
func (r DoctorReport) Flagged() []string {
	set := map[string]bool{}
	for _, id := range r.Cyclic {
		set[id] = true
	}
	for _, id := range r.Overvisited {
		set[id] = true
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Doctor inspects the link graph for goals that sit on a cycle or are reached more than
// MaxVisits times from the roots. With fix, every link touching those goals is removed.
func (e Engine) Doctor(ctx context.Context, fix bool) (DoctorReport, error) {
	defer e.lock()()
	goals, err := e.Repo.ListGoals(ctx, repo.GoalFilter{})
	if err != nil {
		return DoctorReport{}, err
	}
	report := inspect(goals)
	if !fix || len(report.Flagged()) == 0 {
		return report, nil
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return report, err
	}
	defer tx.Rollback()
	w := e.Events
	w.Now = e.now
	for _, id := range report.Flagged() {
		n, err := e.Repo.DeleteLinksTx(ctx, tx, id)
		if err != nil {
			return report, err
		}
		report.Unlinked += n
		if err := w.Append(ctx, tx, events.GoalUnlinked, "goal", id, events.EventPayload{"links_removed": n}); err != nil {
			return report, err
		}
	}
	if err := tx.Commit(); err != nil {
		return report, err
	}
	e.logger().Info("doctor removed links",
		zap.Strings("goal_ids", report.Flagged()), zap.Int64("links_removed", report.Unlinked))
	return report, nil
}

func inspect(goals []domain.Goal) DoctorReport {
	parents := make(map[string][]string, len(goals))
	children := map[string][]string{}
	var roots []string
	for _, g := range goals {
		parents[g.ID] = g.ParentIDs
		for _, pid := range g.ParentIDs {
			children[pid] = append(children[pid], g.ID)
		}
		if len(g.ParentIDs) == 0 {
			roots = append(roots, g.ID)
		}
	}

	var report DoctorReport
	for _, g := range goals {
		if onCycle(g.ID, parents) {
			report.Cyclic = append(report.Cyclic, g.ID)
		}
	}

	visits := map[string]int{}
	stack := append([]string(nil), roots...)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		visits[id]++
		if visits[id] > MaxVisits {
			continue
		}
		stack = append(stack, children[id]...)
	}
	for id, n := range visits {
		if n > MaxVisits {
			report.Overvisited = append(report.Overvisited, id)
		}
	}
	sort.Strings(report.Cyclic)
	sort.Strings(report.Overvisited)
	return report
}

func onCycle(id string, parents map[string][]string) bool {
	seen := map[string]bool{}
	queue := append([]string(nil), parents[id]...)
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == id {
			return true
		}
		if seen[cur] {
			continue
		}
		seen[cur] = true
		queue = append(queue, parents[cur]...)
	}
	return false
}
