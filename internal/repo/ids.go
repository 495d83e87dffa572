package repo

import (
	"context"
	"encoding/base32"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// IDLength is the width of goal and note identities.
const IDLength = 7

const maxIDAttempts = 16

var ErrIDExhausted = errors.New("no free id after retries")

var idEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a random identity drawn from A-Z2-7.
func NewID() string {
	u := uuid.New()
	return idEncoding.EncodeToString(u[:])[:IDLength]
}

func (r Repo) AllocateGoalID(ctx context.Context) (string, error) {
	return r.allocate(ctx, "goals")
}

func (r Repo) AllocateNoteID(ctx context.Context) (string, error) {
	return r.allocate(ctx, "notes")
}

func (r Repo) allocate(ctx context.Context, table string) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := NewID()
		var n int
		if err := r.DB.QueryRowContext(ctx, `SELECT COUNT(1) FROM `+table+` WHERE id=?`, id).Scan(&n); err != nil {
			return "", err
		}
		if n == 0 {
			return id, nil
		}
	}
	return "", fmt.Errorf("allocate %s id: %w", table, ErrIDExhausted)
}
