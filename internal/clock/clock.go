// Package clock defines the time source used by sessions and the status bar.
package clock

import "time"

// DisplayLayout renders a 12-hour, zero-padded wall clock such as "09:05 PM".
const DisplayLayout = "03:04 PM"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Display formats t for the status bar. Midnight and noon render as 12.
func Display(t time.Time) string {
	return t.Format(DisplayLayout)
}

// Func adapts a function to Clock.
type Func func() time.Time

// Now calls f.
func (f Func) Now() time.Time {
	return f()
}
