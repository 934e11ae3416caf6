package domain

import "time"

// TimeWindow is an inclusive [Start, End] day range.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Days returns the window length in whole days, inclusive of both ends.
func (w TimeWindow) Days() int {
	return DaysBetween(w.Start, w.End) + 1
}

// Contains reports whether t's calendar day falls inside the window.
func (w TimeWindow) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(w.Start) && !d.After(w.End)
}

// WindowPair holds a current window and its equal-length, contiguous
// predecessor: Previous.End + 1 day == Current.Start.
type WindowPair struct {
	Current  TimeWindow `json:"current"`
	Previous TimeWindow `json:"previous"`

	// Degraded is set when the requested period was shrunk because the
	// data span was too short; Warning carries the human-readable note.
	Degraded bool   `json:"degraded,omitempty"`
	Warning  string `json:"warning,omitempty"`
	Custom   bool   `json:"custom,omitempty"`
}
