// Package tradingday maps instants onto trading days.
//
// A trading day starts at a fixed UTC reset hour rather than at midnight, so an
// instant before the reset hour belongs to the previous calendar date. Every
// function takes "now" as an argument and never reads the wall clock.
package tradingday

import "time"

// Length is the duration of one trading day.
const Length = 24 * time.Hour

// ReferenceDate returns the UTC midnight labelling the trading day that now belongs to.
func ReferenceDate(now time.Time, resetHour int) time.Time {
	now = now.UTC()
	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if now.Hour() < resetHour {
		date = date.AddDate(0, 0, -1)
	}
	return date
}

// Start returns the instant a trading day begins.
func Start(ref time.Time, resetHour int) time.Time {
	ref = ref.UTC()
	return time.Date(ref.Year(), ref.Month(), ref.Day(), resetHour, 0, 0, 0, time.UTC)
}

// NeedsRollover reports whether a tick stamped lastRef belongs to a trading day
// that has already closed at now.
//
// For a one-day gap this is "lastRef differs from today's calendar date and the
// reset hour has passed"; before the reset hour ticks keep accumulating against
// the previous day.
func NeedsRollover(lastRef, now time.Time, resetHour int) bool {
	return truncate(lastRef).Before(ReferenceDate(now, resetHour))
}

// Progress returns the elapsed fraction of now's trading day, clamped to [0, 1].
func Progress(now time.Time, resetHour int) float64 {
	start := Start(ReferenceDate(now, resetHour), resetHour)
	p := float64(now.Sub(start)) / float64(Length)
	switch {
	case p < 0:
		return 0
	case p > 1:
		return 1
	}
	return p
}

// DayProgress returns how far through trading day ref the instant now is.
// Days that closed before now report 1 and days that have not started report 0.
func DayProgress(ref, now time.Time, resetHour int) float64 {
	current := ReferenceDate(now, resetHour)
	switch ref = truncate(ref); {
	case current.After(ref):
		return 1
	case ref.After(current):
		return 0
	}
	return Progress(now, resetHour)
}

// SameDay reports whether a and b carry the same reference date.
func SameDay(a, b time.Time) bool {
	return truncate(a).Equal(truncate(b))
}

func truncate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
