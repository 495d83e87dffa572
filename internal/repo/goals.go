package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"goalline/internal/domain"
)

const goalColumns = `g.id,g.text,g.text_changed_at,g.state,g.state_changed_at,g.schedule_at,g.sort_order,g.created_at,
(SELECT COUNT(1) FROM notes n WHERE n.goal_id=g.id) AS note_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGoal(row rowScanner) (domain.Goal, error) {
	var (
		g                           domain.Goal
		textAt, stateAt, scheduleAt sql.NullString
		createdAt                   string
		state                       int
	)
	if err := row.Scan(&g.ID, &g.Text, &textAt, &state, &stateAt, &scheduleAt, &g.Order, &createdAt, &g.NoteCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g, ErrNotFound
		}
		return g, err
	}
	g.State = domain.GoalState(state)
	var err error
	if g.TextChangedAt, err = parseNullTime(textAt); err != nil {
		return g, fmt.Errorf("goal %s text_changed_at: %w", g.ID, err)
	}
	if g.StateChangedAt, err = parseNullTime(stateAt); err != nil {
		return g, fmt.Errorf("goal %s state_changed_at: %w", g.ID, err)
	}
	if g.ScheduleAt, err = parseNullTime(scheduleAt); err != nil {
		return g, fmt.Errorf("goal %s schedule_at: %w", g.ID, err)
	}
	if g.CreatedAt, err = parseTime(createdAt); err != nil {
		return g, fmt.Errorf("goal %s created_at: %w", g.ID, err)
	}
	return g, nil
}

func (r Repo) GetGoal(ctx context.Context, id string) (domain.Goal, error) {
	g, err := scanGoal(r.DB.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals g WHERE g.id=?`, id))
	if err != nil {
		return g, err
	}
	if g.ParentIDs, err = r.listIDs(ctx, `SELECT parent_id FROM goal_links WHERE child_id=? ORDER BY position, parent_id`, id); err != nil {
		return g, err
	}
	if g.ChildIDs, err = r.listIDs(ctx, `SELECT l.child_id FROM goal_links l JOIN goals c ON c.id=l.child_id WHERE l.parent_id=? ORDER BY c.sort_order, c.id`, id); err != nil {
		return g, err
	}
	return g, nil
}

// LookupGoal is GetGoal with absence reported as found=false.
func (r Repo) LookupGoal(ctx context.Context, id string) (domain.Goal, bool, error) {
	g, err := r.GetGoal(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return domain.Goal{}, false, nil
	}
	if err != nil {
		return domain.Goal{}, false, err
	}
	return g, true, nil
}

func (r Repo) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type GoalFilter struct {
	IDs       []string
	States    []domain.GoalState
	Scheduled bool
}

// ListGoals returns matching goals with their parent and child links attached.
func (r Repo) ListGoals(ctx context.Context, f GoalFilter) ([]domain.Goal, error) {
	clauses := []string{"1=1"}
	var args []any
	if len(f.IDs) > 0 {
		clauses = append(clauses, "g.id IN ("+placeholders(len(f.IDs))+")")
		for _, id := range f.IDs {
			args = append(args, id)
		}
	}
	if len(f.States) > 0 {
		clauses = append(clauses, "g.state IN ("+placeholders(len(f.States))+")")
		for _, s := range f.States {
			args = append(args, int(s))
		}
	}
	if f.Scheduled {
		clauses = append(clauses, "g.schedule_at IS NOT NULL")
	}
	query := fmt.Sprintf(`SELECT %s FROM goals g WHERE %s ORDER BY g.sort_order, g.id`, goalColumns, strings.Join(clauses, " AND "))
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var res []domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		res = append(res, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()
	if err := r.attachLinks(ctx, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (r Repo) attachLinks(ctx context.Context, goals []domain.Goal) error {
	if len(goals) == 0 {
		return nil
	}
	index := make(map[string]int, len(goals))
	for i, g := range goals {
		index[g.ID] = i
	}
	links, err := r.ListLinks(ctx)
	if err != nil {
		return err
	}
	for _, l := range links {
		if i, ok := index[l.ChildID]; ok {
			goals[i].ParentIDs = append(goals[i].ParentIDs, l.ParentID)
		}
		if i, ok := index[l.ParentID]; ok {
			goals[i].ChildIDs = append(goals[i].ChildIDs, l.ChildID)
		}
	}
	return nil
}

// ListLinks returns every parent link ordered by child then position.
func (r Repo) ListLinks(ctx context.Context) ([]domain.Link, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT child_id,parent_id,position FROM goal_links ORDER BY child_id, position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Link
	for rows.Next() {
		var l domain.Link
		if err := rows.Scan(&l.ChildID, &l.ParentID, &l.Position); err != nil {
			return nil, err
		}
		res = append(res, l)
	}
	return res, rows.Err()
}

// FirstPendingGoal returns the pending goal with the lowest order.
func (r Repo) FirstPendingGoal(ctx context.Context) (domain.Goal, error) {
	var id string
	err := r.DB.QueryRowContext(ctx, `SELECT id FROM goals WHERE state=? ORDER BY sort_order, id LIMIT 1`, int(domain.StatePending)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Goal{}, ErrNotFound
	}
	if err != nil {
		return domain.Goal{}, err
	}
	return r.GetGoal(ctx, id)
}

func (r Repo) UpsertGoalTx(ctx context.Context, tx *sql.Tx, g domain.Goal) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO goals(id,text,text_changed_at,state,state_changed_at,schedule_at,sort_order,created_at)
VALUES (?,?,?,?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET text=excluded.text,text_changed_at=excluded.text_changed_at,state=excluded.state,
state_changed_at=excluded.state_changed_at,schedule_at=excluded.schedule_at,sort_order=excluded.sort_order`,
		g.ID, g.Text, nullableTime(g.TextChangedAt), int(g.State), nullableTime(g.StateChangedAt), nullableTime(g.ScheduleAt), g.Order, formatTime(g.CreatedAt))
	if err != nil {
		return fmt.Errorf("upsert goal %s: %w", g.ID, err)
	}
	return nil
}

// ReplaceParentsTx rewrites the parent links of childID, keeping the given order.
func (r Repo) ReplaceParentsTx(ctx context.Context, tx *sql.Tx, childID string, parentIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM goal_links WHERE child_id=?`, childID); err != nil {
		return fmt.Errorf("clear parents of %s: %w", childID, err)
	}
	for i, pid := range parentIDs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO goal_links(child_id,parent_id,position) VALUES (?,?,?)`, childID, pid, i); err != nil {
			return fmt.Errorf("link %s to %s: %w", childID, pid, err)
		}
	}
	return nil
}

// DeleteLinksTx removes every link touching goalID and reports how many went.
func (r Repo) DeleteLinksTx(ctx context.Context, tx *sql.Tx, goalID string) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM goal_links WHERE child_id=? OR parent_id=?`, goalID, goalID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r Repo) Stats(ctx context.Context) (domain.Stats, error) {
	var s domain.Stats
	rows, err := r.DB.QueryContext(ctx, `SELECT state, COUNT(1) FROM goals GROUP BY state`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var state, n int
		if err := rows.Scan(&state, &n); err != nil {
			return s, err
		}
		switch domain.GoalState(state) {
		case domain.StateDone:
			s.Done = n
		case domain.StateCancelled:
			s.Cancelled = n
		default:
			s.Pending += n
		}
	}
	if err := rows.Err(); err != nil {
		return s, err
	}
	if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM notes`).Scan(&s.Notes); err != nil {
		return s, err
	}
	return s, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
