package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"goalline/internal/domain"
)

func scanNote(row rowScanner) (domain.Note, error) {
	var (
		n         domain.Note
		createdAt string
		changedAt sql.NullString
	)
	if err := row.Scan(&n.ID, &n.GoalID, &n.Text, &createdAt, &changedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return n, ErrNotFound
		}
		return n, err
	}
	var err error
	if n.CreatedAt, err = parseTime(createdAt); err != nil {
		return n, fmt.Errorf("note %s created_at: %w", n.ID, err)
	}
	if n.TextChangedAt, err = parseNullTime(changedAt); err != nil {
		return n, fmt.Errorf("note %s text_changed_at: %w", n.ID, err)
	}
	return n, nil
}

func (r Repo) GetNote(ctx context.Context, id string) (domain.Note, error) {
	return scanNote(r.DB.QueryRowContext(ctx, `SELECT id,goal_id,text,created_at,text_changed_at FROM notes WHERE id=?`, id))
}

func (r Repo) LookupNote(ctx context.Context, id string) (domain.Note, bool, error) {
	n, err := r.GetNote(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return domain.Note{}, false, nil
	}
	if err != nil {
		return domain.Note{}, false, err
	}
	return n, true, nil
}

// ListNotes returns the notes of goalID oldest first.
func (r Repo) ListNotes(ctx context.Context, goalID string) ([]domain.Note, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,goal_id,text,created_at,text_changed_at FROM notes WHERE goal_id=? ORDER BY created_at, id`, goalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) UpsertNoteTx(ctx context.Context, tx *sql.Tx, n domain.Note) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO notes(id,goal_id,text,created_at,text_changed_at) VALUES (?,?,?,?,?)
ON CONFLICT(id) DO UPDATE SET goal_id=excluded.goal_id,text=excluded.text,text_changed_at=excluded.text_changed_at`,
		n.ID, n.GoalID, n.Text, formatTime(n.CreatedAt), nullableTime(n.TextChangedAt))
	if err != nil {
		return fmt.Errorf("upsert note %s: %w", n.ID, err)
	}
	return nil
}
