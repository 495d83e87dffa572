package outline

import (
	"context"
	"strings"

	"goalline/internal/domain"
)

const (
	SectionMission  = "mission"
	SectionLog      = "log"
	SectionSchedule = "schedule"
	SectionTasks    = "tasks"
)

var sectionTitles = map[string]string{
	SectionMission:  "# Mission",
	SectionLog:      "# Log",
	SectionSchedule: "# Schedule",
	SectionTasks:    "# Tasks",
}

// MissionDocument is one goal seen from every angle: its own line, its notes, the
// schedule of what lies below it, and its task tree.
type MissionDocument struct {
	Mission  Node
	Log      []LogEntry
	Schedule []ScheduleEntry
	Tasks    []Node
}

// ParseMission splits text into its sections. A document without a mission line
// returns ErrEmptyDocument.
func ParseMission(clock Clock, text string) (MissionDocument, error) {
	sections := splitSections(text)
	missionNodes := parseLines(clock, sections[SectionMission])
	if len(missionNodes) == 0 {
		return MissionDocument{}, ErrEmptyDocument
	}
	mission := missionNodes[0]
	mission.Parent = -1
	return MissionDocument{
		Mission:  mission,
		Log:      parseLogLines(clock, sections[SectionLog]),
		Schedule: parseScheduleLines(clock, sections[SectionSchedule]),
		Tasks:    parseLines(clock, sections[SectionTasks]),
	}, nil
}

// Lines outside a known section are ignored.
func splitSections(text string) map[string][]string {
	sections := map[string][]string{}
	current := ""
	for _, raw := range splitLines(text) {
		trimmed := strings.TrimSpace(raw)
		if strings.HasPrefix(trimmed, "# ") {
			name := strings.ToLower(strings.TrimSpace(trimmed[2:]))
			if _, ok := sectionTitles[name]; ok {
				current = name
				continue
			}
		}
		if current != "" {
			sections[current] = append(sections[current], raw)
		}
	}
	return sections
}

// ApplyMission merges a mission document: the mission line, its log, the task tree with
// the mission as hub for loose roots, and finally the schedule block.
func (p *Pass) ApplyMission(ctx context.Context, doc MissionDocument) (*Record, error) {
	mission, err := p.Resolve(ctx, doc.Mission.Meta.ID)
	if err != nil {
		return nil, err
	}
	mission.SetText(doc.Mission.Line.Body, p.now)
	mission.SetState(doc.Mission.Line.State, p.now)
	mission.SetSchedule(doc.Mission.Meta.ScheduleAt)
	p.AttachMission(mission.Goal.ID)
	if _, err := p.ApplyLog(ctx, mission.Goal.ID, doc.Log); err != nil {
		return nil, err
	}
	if _, err := p.ApplyOutline(ctx, doc.Tasks); err != nil {
		return nil, err
	}
	scheduled, err := p.ApplySchedule(ctx, doc.Schedule)
	if err != nil {
		return nil, err
	}
	// new goals typed into the schedule belong to the mission like loose tasks do
	for _, rec := range scheduled {
		if rec.New && !rec.inOutline {
			rec.inOutline = true
		}
	}
	return mission, nil
}

// Mission renders the mission document for missionID. Notes are expected oldest first.
func (r Renderer) Mission(goals []domain.Goal, notes []domain.Note, missionID string) string {
	var mission domain.Goal
	found := false
	for _, g := range goals {
		if g.ID == missionID {
			mission, found = g, true
			break
		}
	}
	if !found {
		return ""
	}
	pending := Renderer{Clock: r.Clock}
	archived := Renderer{Clock: r.Clock, IncludeArchived: true}
	blocks := []string{
		section(SectionMission, r.Line(mission, 0)),
		section(SectionLog, FormatLog(r.Clock, notes)),
		section(SectionSchedule, pending.Schedule(Descendants(goals, missionID))),
		section(SectionTasks, archived.Subtree(goals, missionID)),
	}
	return strings.Join(blocks, "\n\n")
}

func section(name, body string) string {
	if body == "" {
		return sectionTitles[name]
	}
	return sectionTitles[name] + "\n" + body
}
