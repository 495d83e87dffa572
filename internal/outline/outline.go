// Package outline maps indented goal text to goal records and back.
//
// A document is a flat list of lines. Indentation encodes the parent/child relation,
// an optional leading status marker encodes the goal state, and a trailing metadata
// block after the last " # " carries the schedule token, the notes marker and the goal
// identity:
//
//	Ship release  # ABCDEFG
//	    + Write changelog  # 20240105-0930 BCDEFGH
//	    _ Announce on forum  # CDEFGHI
//
// Parsing never fails on malformed lines. Records are merged against a Store so that
// identities and change stamps survive round trips through an editor.
package outline

import (
	"context"
	"errors"
	"time"

	"goalline/internal/domain"
)

const (
	IndentUnit  = "    "
	TabWidth    = 4
	Separator   = " # "
	IDLength    = 7
	NotesMarker = "..."
)

// ErrEmptyDocument is returned when a document lacks the content required to merge it.
var ErrEmptyDocument = errors.New("empty document")

// Store is the storage view the merge pass needs.
type Store interface {
	LookupGoal(ctx context.Context, id string) (domain.Goal, bool, error)
	AllocateGoalID(ctx context.Context) (string, error)
	LookupNote(ctx context.Context, id string) (domain.Note, bool, error)
	AllocateNoteID(ctx context.Context) (string, error)
}

// Clock converts schedule tokens. Parse failures wrap whenio.ErrInvalidTimestamp.
type Clock interface {
	ParseTimestamp(token string) (time.Time, error)
	FormatTimestamp(t time.Time) string
	ParseDate(token string) (time.Time, error)
	FormatDate(t time.Time) string
	Location() *time.Location
}
