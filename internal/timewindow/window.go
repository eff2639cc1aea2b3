// Package timewindow decides which events belong to "today" and which are
// live relative to a query instant. All arithmetic is on UTC unix seconds.
package timewindow

import (
	"time"

	"dailybrief/internal/model"
)

const (
	// DaySeconds is the width of a calendar day.
	DaySeconds int64 = 86400
	// SoonSeconds is how far ahead an event counts as starting soon.
	SoonSeconds int64 = 1800
)

type Status int

const (
	Past Status = iota
	Today
	Now
	Soon
	Future
)

func (s Status) String() string {
	switch s {
	case Past:
		return "past"
	case Today:
		return "today"
	case Now:
		return "now"
	case Soon:
		return "soon"
	default:
		return "future"
	}
}

// Window is the today window evaluated at a fixed instant.
type Window struct {
	Now   int64
	Start int64 // midnight UTC of Now's date
	End   int64 // Start + 86399
}

func At(now time.Time) Window {
	n := now.UTC()
	midnight := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC).Unix()
	return Window{
		Now:   n.Unix(),
		Start: midnight,
		End:   midnight + DaySeconds - 1,
	}
}

// Overlaps reports whether [start, end) belongs to today: it starts within the
// window, or it began at or before midnight and is still running.
func (w Window) Overlaps(start, end int64) bool {
	if start >= w.Start && start <= w.End {
		return true
	}
	return start <= w.Start && end >= w.Now
}

func (w Window) IsNow(start, end int64) bool {
	return start <= w.Now && w.Now < end
}

func (w Window) IsSoon(start, end int64) bool {
	return !w.IsNow(start, end) && w.Now < start && start <= w.Now+SoonSeconds
}

func (w Window) Classify(start, end int64) Status {
	switch {
	case w.IsNow(start, end):
		return Now
	case w.IsSoon(start, end):
		return Soon
	case end <= w.Now:
		return Past
	case w.Overlaps(start, end):
		return Today
	default:
		return Future
	}
}

// Annotate sets IsNow and IsSoon on every event in place.
func (w Window) Annotate(events []model.Event) {
	for i := range events {
		events[i].IsNow = w.IsNow(events[i].StartTime, events[i].EndTime)
		events[i].IsSoon = w.IsSoon(events[i].StartTime, events[i].EndTime)
	}
}

// Filter returns the events overlapping today, annotated and sorted.
// The input slice is not modified. The result is never nil.
func (w Window) Filter(events []model.Event) []model.Event {
	out := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if w.Overlaps(ev.StartTime, ev.EndTime) {
			out = append(out, ev)
		}
	}
	w.Annotate(out)
	model.SortEvents(out)
	return out
}

// DayIndex is the number of whole UTC days since the unix epoch.
func DayIndex(unix int64) int64 {
	d := unix / DaySeconds
	if unix%DaySeconds < 0 {
		d--
	}
	return d
}
