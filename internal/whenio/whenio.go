// Package whenio converts between schedule tokens found in outline text and instants.
//
// Two token shapes are understood, both read in the codec's zone:
//
//	20240105        midnight of that day
//	20240105-0930   that day at 09:30
package whenio

import (
	"errors"
	"fmt"
	"time"
)

const (
	DateLayout      = "20060102"
	TimestampLayout = "20060102-1504"
)

var ErrInvalidTimestamp = errors.New("invalid timestamp")

// Codec parses and formats tokens in a fixed location. The zero value uses time.Local.
type Codec struct {
	loc *time.Location
}

func New(loc *time.Location) Codec {
	return Codec{loc: loc}
}

// Load resolves an IANA zone name; empty or "Local" selects the process zone.
func Load(name string) (Codec, error) {
	if name == "" || name == "Local" {
		return Codec{loc: time.Local}, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Codec{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return Codec{loc: loc}, nil
}

func (c Codec) Location() *time.Location {
	if c.loc == nil {
		return time.Local
	}
	return c.loc
}

// ParseTimestamp accepts either token shape and returns the instant in UTC.
func (c Codec) ParseTimestamp(token string) (time.Time, error) {
	switch len(token) {
	case len(DateLayout):
		return c.ParseDate(token)
	case len(TimestampLayout):
		t, err := time.ParseInLocation(TimestampLayout, token, c.Location())
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, token)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, token)
}

// FormatTimestamp drops the clock part when the instant falls on local midnight.
func (c Codec) FormatTimestamp(t time.Time) string {
	local := t.In(c.Location())
	if local.Hour() == 0 && local.Minute() == 0 {
		return local.Format(DateLayout)
	}
	return local.Format(TimestampLayout)
}

// ParseDate accepts only the date shape and returns local midnight in UTC.
func (c Codec) ParseDate(token string) (time.Time, error) {
	if len(token) != len(DateLayout) {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, token)
	}
	t, err := time.ParseInLocation(DateLayout, token, c.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidTimestamp, token)
	}
	return t.UTC(), nil
}

func (c Codec) FormatDate(t time.Time) string {
	return t.In(c.Location()).Format(DateLayout)
}
