package domain

import "time"

// Window is the half-open interval [Start, End) processed by one run.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Empty reports whether the window spans no time.
func (w Window) Empty() bool { return !w.End.After(w.Start) }

// ComputeWindow derives the next window from the persisted watermark.
// End never exceeds now and never precedes Start; a watermark at or past now yields an empty window.
func ComputeWindow(watermark *time.Time, defaultStart time.Time, catchUp time.Duration, now time.Time) Window {
	start := defaultStart
	if watermark != nil {
		start = *watermark
	}
	start = start.UTC()
	now = now.UTC()

	end := start.Add(catchUp)
	if end.After(now) {
		end = now
	}
	if end.Before(start) {
		end = start
	}
	return Window{Start: start, End: end}
}
