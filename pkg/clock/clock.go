// Package clock abstracts time so the sweep engines are testable
// without real time passing.
package clock

import "time"

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// System is the production clock
type System struct{}

// Now returns the current UTC time
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed is a clock pinned to a single instant, for tests
type Fixed struct {
	Time time.Time
}

// Now returns the pinned instant
func (f Fixed) Now() time.Time {
	return f.Time
}

// DaysSince returns the whole number of days elapsed from t to now,
// rounded down. Negative when t is in the future.
func DaysSince(now, t time.Time) int {
	d := now.Sub(t)
	days := int(d.Hours() / 24)
	if d < 0 && d.Hours()/24 != float64(days) {
		days--
	}
	return days
}

// DaysUntil returns the whole number of days remaining from now to t,
// truncated toward zero. Zero or negative means t has passed.
func DaysUntil(now, t time.Time) int {
	return int(t.Sub(now).Hours() / 24)
}
