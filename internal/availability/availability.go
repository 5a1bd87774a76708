// Package availability turns busy intervals into ranked free time slots.
// The resolver is pure: callers fetch busy data from the calendar
// capability and pass it in.
package availability

import (
	"sort"
	"time"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/state"
)

// Options tune the slot search. Zero values select the defaults.
type Options struct {
	WorkingHoursStart int           // hour of day, default 8
	WorkingHoursEnd   int           // hour of day, default 20
	Step              time.Duration // candidate spacing, default 30m
	TopK              int           // result cap, default 10
}

func (o Options) withDefaults() Options {
	if o.WorkingHoursStart == 0 && o.WorkingHoursEnd == 0 {
		o.WorkingHoursStart, o.WorkingHoursEnd = 8, 20
	}
	if o.Step <= 0 {
		o.Step = 30 * time.Minute
	}
	if o.TopK <= 0 {
		o.TopK = 10
	}
	return o
}

// FindSlots walks the gaps between busy intervals across all sources and
// returns up to TopK candidate slots of the requested duration, scored in
// [0,1] and sorted by score descending. Candidates are clipped to working
// hours. Overlapping busy intervals are tolerated without coalescing; the
// cursor simply never moves backward.
func FindSlots(busyBySource map[string][]calendar.BusyInterval, rangeStart, rangeEnd time.Time, duration time.Duration, opts Options) []state.TimeSlot {
	if duration <= 0 || !rangeStart.Before(rangeEnd) {
		return nil
	}
	o := opts.withDefaults()

	// Normalize every timestamp into the range's zone so working-hours
	// clipping is consistent across sources.
	ref := rangeStart.Location()
	var busy []calendar.BusyInterval
	for _, intervals := range busyBySource {
		for _, b := range intervals {
			busy = append(busy, calendar.BusyInterval{Start: b.Start.In(ref), End: b.End.In(ref)})
		}
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })

	var slots []state.TimeSlot
	cursor := rangeStart
	for _, b := range busy {
		if b.Start.After(cursor) {
			slots = append(slots, sliceGap(cursor, minTime(b.Start, rangeEnd), duration, o)...)
		}
		if b.End.After(cursor) {
			cursor = b.End
		}
	}
	if cursor.Before(rangeEnd) {
		slots = append(slots, sliceGap(cursor, rangeEnd, duration, o)...)
	}

	for i := range slots {
		slots[i].Score = scoreSlot(slots[i].Start)
	}
	sort.SliceStable(slots, func(i, j int) bool {
		if slots[i].Score != slots[j].Score {
			return slots[i].Score > slots[j].Score
		}
		return slots[i].Start.Before(slots[j].Start)
	})

	if len(slots) > o.TopK {
		slots = slots[:o.TopK]
	}
	return slots
}

// sliceGap cuts a free gap into fixed-step candidate windows that fit the
// duration and fall inside working hours.
func sliceGap(gapStart, gapEnd time.Time, duration time.Duration, o Options) []state.TimeSlot {
	var slots []state.TimeSlot
	cur := gapStart
	for {
		cur = clipToWorkingHours(cur, o)
		end := cur.Add(duration)
		if end.After(gapEnd) {
			break
		}
		dayEnd := time.Date(cur.Year(), cur.Month(), cur.Day(), o.WorkingHoursEnd, 0, 0, 0, cur.Location())
		if !end.After(dayEnd) {
			slots = append(slots, state.TimeSlot{Start: cur, End: end})
		}
		cur = cur.Add(o.Step)
	}
	return slots
}

// clipToWorkingHours moves a cursor forward to the nearest working-hours
// start; it never moves backward.
func clipToWorkingHours(t time.Time, o Options) time.Time {
	switch {
	case t.Hour() < o.WorkingHoursStart:
		return time.Date(t.Year(), t.Month(), t.Day(), o.WorkingHoursStart, 0, 0, 0, t.Location())
	case t.Hour() >= o.WorkingHoursEnd:
		next := t.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), o.WorkingHoursStart, 0, 0, 0, t.Location())
	default:
		return t
	}
}

// scoreSlot favors mid-day windows, weekdays, and earlier-in-week days.
func scoreSlot(start time.Time) float64 {
	score := 0.5

	h := start.Hour()
	switch {
	case h >= 10 && h <= 14:
		score += 0.3
	case (h >= 8 && h < 10) || (h > 14 && h <= 17):
		score += 0.2
	}

	// Monday-based weekday index.
	wd := (int(start.Weekday()) + 6) % 7
	if wd < 5 {
		score += 0.1
	}
	score += float64(5-wd) * 0.02

	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
