package domain

import "time"

// Clock tells the engine which calendar day "today" is.
// Every deployment pins a single reference location; client clocks are never consulted.
type Clock interface {
	Today() Date
	Location() *time.Location
}

type ReferenceClock struct {
	loc *time.Location
	now func() time.Time
}

func NewReferenceClock(loc *time.Location) *ReferenceClock {
	if loc == nil {
		loc = time.UTC
	}
	return &ReferenceClock{loc: loc, now: time.Now}
}

func (c *ReferenceClock) Today() Date {
	return DateIn(c.now(), c.loc)
}

func (c *ReferenceClock) Location() *time.Location {
	return c.loc
}

// FixedClock always reports the same day. Used by tests and by manual backfills.
type FixedClock struct {
	Day Date
	Loc *time.Location
}

func (c FixedClock) Today() Date { return c.Day }

func (c FixedClock) Location() *time.Location {
	if c.Loc == nil {
		return time.UTC
	}
	return c.Loc
}
