// Package system provides the real clock implementation.
package system

import "time"

// Clock implements clock.Clock using time.Now in a fixed location.
type Clock struct {
	loc *time.Location
}

// New returns a clock in the local time zone, used for display.
func New() *Clock {
	return &Clock{loc: time.Local}
}

// NewUTC returns a clock reporting UTC, used for recorded timestamps.
func NewUTC() *Clock {
	return &Clock{loc: time.UTC}
}

// Now returns the current time.
func (c *Clock) Now() time.Time {
	return time.Now().In(c.loc)
}
