package services

import "time"

// Clock supplies the current time. Retention cutoffs and export timestamps
// are computed in the location of the returned time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always returns the same instant
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// startOfDay returns midnight of t's calendar day in t's location
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
