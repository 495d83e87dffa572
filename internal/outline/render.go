package outline

import (
	"sort"
	"strings"

	"goalline/internal/domain"
)

// Renderer turns goal records into canonical outline text.
type Renderer struct {
	Clock           Clock
	IncludeArchived bool
}

// Line renders a single goal at depth indent units.
func (r Renderer) Line(g domain.Goal, depth int) string {
	indent := strings.Repeat(IndentUnit, depth)
	meta := FormatMeta(r.Clock, Meta{ScheduleAt: g.ScheduleAt, ID: g.ID, HasNotes: g.HasNotes()})
	if g.Text == "" {
		return indent + statusPrefix(g.State) + strings.TrimLeft(meta, " ")
	}
	body := indent + statusPrefix(g.State) + g.Text
	if meta == "" {
		return body
	}
	return body + " " + meta
}

type graph struct {
	byID     map[string]domain.Goal
	children map[string][]string
	roots    []string
}

func newGraph(goals []domain.Goal) graph {
	gr := graph{byID: make(map[string]domain.Goal, len(goals)), children: map[string][]string{}}
	for _, g := range goals {
		gr.byID[g.ID] = g
	}
	for _, g := range goals {
		hasParent := false
		for _, pid := range g.ParentIDs {
			if _, ok := gr.byID[pid]; !ok {
				continue
			}
			hasParent = true
			if !containsID(gr.children[pid], g.ID) {
				gr.children[pid] = append(gr.children[pid], g.ID)
			}
		}
		if !hasParent {
			gr.roots = append(gr.roots, g.ID)
		}
	}
	gr.sortIDs(gr.roots)
	for _, ids := range gr.children {
		gr.sortIDs(ids)
	}
	return gr
}

func (gr graph) sortIDs(ids []string) {
	sort.SliceStable(ids, func(i, j int) bool {
		a, b := gr.byID[ids[i]], gr.byID[ids[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	})
}

// Tree renders every root and its descendants depth first. Goals with several
// parents appear under each of them.
func (r Renderer) Tree(goals []domain.Goal) string {
	gr := newGraph(goals)
	var lines []string
	path := map[string]bool{}
	for _, id := range gr.roots {
		lines = r.walk(gr, id, 0, path, lines, false)
	}
	return strings.Join(lines, "\n")
}

// Subtree renders rootID and its descendants. The root is shown even when archived.
func (r Renderer) Subtree(goals []domain.Goal, rootID string) string {
	gr := newGraph(goals)
	if _, ok := gr.byID[rootID]; !ok {
		return ""
	}
	lines := r.walk(gr, rootID, 0, map[string]bool{}, nil, true)
	return strings.Join(lines, "\n")
}

func (r Renderer) walk(gr graph, id string, depth int, path map[string]bool, lines []string, force bool) []string {
	g := gr.byID[id]
	if path[id] {
		return lines
	}
	if !force && !r.IncludeArchived && g.State.Archived() {
		return lines
	}
	lines = append(lines, r.Line(g, depth))
	path[id] = true
	for _, child := range gr.children[id] {
		lines = r.walk(gr, child, depth+1, path, lines, false)
	}
	delete(path, id)
	return lines
}

// Schedule renders scheduled goals bucketed by local day under bare date headings.
func (r Renderer) Schedule(goals []domain.Goal) string {
	var scheduled []domain.Goal
	for _, g := range goals {
		if g.ScheduleAt == nil {
			continue
		}
		if !r.IncludeArchived && g.State.Archived() {
			continue
		}
		scheduled = append(scheduled, g)
	}
	sort.SliceStable(scheduled, func(i, j int) bool {
		a, b := scheduled[i], scheduled[j]
		if !a.ScheduleAt.Equal(*b.ScheduleAt) {
			return a.ScheduleAt.Before(*b.ScheduleAt)
		}
		return a.ID < b.ID
	})
	loc := r.Clock.Location()
	var lines []string
	var heading string
	for _, g := range scheduled {
		day := r.Clock.FormatDate(localDay(loc, *g.ScheduleAt))
		if day != heading {
			heading = day
			lines = append(lines, heading)
		}
		lines = append(lines, r.Line(g, 1))
	}
	return strings.Join(lines, "\n")
}

// Descendants returns every goal reachable below rootID, each once.
func Descendants(goals []domain.Goal, rootID string) []domain.Goal {
	gr := newGraph(goals)
	seen := map[string]bool{rootID: true}
	var out []domain.Goal
	queue := append([]string(nil), gr.children[rootID]...)
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, gr.byID[id])
		queue = append(queue, gr.children[id]...)
	}
	return out
}
