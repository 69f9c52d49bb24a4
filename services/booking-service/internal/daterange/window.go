// Package daterange collapses an optional calendar-date pair into a concrete
// half-open instant window, applying the default availability horizon before
// any query is built.
package daterange

import "time"

// Window is a half-open instant range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Resolve turns optional start/end dates into a window. An absent start
// defaults to today; an absent end defaults to seven days from today. An
// explicit end date is inclusive, so the window runs to the start of the
// following day. Dates are truncated to midnight UTC; now supplies "today".
func Resolve(startDate, endDate *time.Time, now time.Time) Window {
	today := truncateToDay(now)

	from := today
	if startDate != nil {
		from = truncateToDay(*startDate)
	}

	to := today.AddDate(0, 0, 7)
	if endDate != nil {
		to = truncateToDay(*endDate).AddDate(0, 0, 1)
	}

	return Window{From: from, To: to}
}

func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
