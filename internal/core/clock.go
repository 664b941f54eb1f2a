package core

import "time"

// Clock returns the current time. Components treat a nil Clock as SystemClock.
type Clock func() time.Time

// SystemClock returns the current time with its monotonic reading intact.
// Convert to UTC only where a time is displayed or persisted.
func SystemClock() time.Time {
	return time.Now()
}

// Now evaluates c, falling back to the system clock when c is nil.
func (c Clock) Now() time.Time {
	if c != nil {
		return c()
	}
	return SystemClock()
}
