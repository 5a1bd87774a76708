// Package recurrence expands compact repeat rules (iCalendar RRULE format)
// into concrete event occurrences. Rule parsing and iteration are delegated
// to teambition/rrule-go; this package adds window intersection, instance
// caps and canonical instance ids.
package recurrence

import (
	"errors"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// Instance is a single occurrence of a recurring event.
type Instance struct {
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	RecurrenceID string    `json:"recurrence_id"`
	IsException  bool      `json:"is_exception"`
}

const (
	// DefaultMaxInstances bounds expansion against pathological
	// high-frequency rules over large windows.
	DefaultMaxInstances = 100

	// iterationBudget bounds raw rule iteration independent of the
	// instance cap, so a secondly rule anchored years before the window
	// cannot spin unbounded while seeking the window start.
	iterationBudget = 100000

	recurrenceIDLayout = "20060102T150405"
)

func parseRule(rule string, anchor time.Time) (*rrule.RRule, error) {
	r, err := rrule.StrToRRule(strings.TrimSpace(rule))
	if err != nil {
		return nil, err
	}
	r.DTStart(anchor)
	return r, nil
}

// Expand returns the occurrences of rule anchored at anchor that start
// within [windowStart, windowEnd], in order, capped at maxInstances.
// It never fails: an empty or unparseable rule yields no instances.
func Expand(rule string, anchor time.Time, duration time.Duration, windowStart, windowEnd time.Time, maxInstances int) []Instance {
	if strings.TrimSpace(rule) == "" {
		return nil
	}
	if maxInstances <= 0 {
		maxInstances = DefaultMaxInstances
	}

	r, err := parseRule(rule, anchor)
	if err != nil {
		return nil
	}

	var instances []Instance
	next := r.Iterator()
	for i := 0; i < iterationBudget; i++ {
		occ, ok := next()
		if !ok || occ.After(windowEnd) {
			break
		}
		if occ.Before(windowStart) {
			continue
		}
		instances = append(instances, Instance{
			Start:        occ,
			End:          occ.Add(duration),
			RecurrenceID: FormatRecurrenceID(occ),
		})
		if len(instances) >= maxInstances {
			break
		}
	}
	return instances
}

// FormatRecurrenceID renders an occurrence start as a canonical id in
// YYYYMMDDTHHMMSS form, matching iCalendar RECURRENCE-ID semantics so
// exceptions recorded against an instance can be matched later.
func FormatRecurrenceID(t time.Time) string {
	return t.Format(recurrenceIDLayout)
}

// ParseRecurrenceID parses a canonical recurrence id back to a time.
func ParseRecurrenceID(id string) (time.Time, error) {
	return time.Parse(recurrenceIDLayout, id)
}

// NextOccurrence returns the first occurrence strictly after the given
// time, if the rule produces one.
func NextOccurrence(rule string, anchor, after time.Time) (time.Time, bool) {
	r, err := parseRule(rule, anchor)
	if err != nil {
		return time.Time{}, false
	}
	occ := r.After(after, false)
	if occ.IsZero() {
		return time.Time{}, false
	}
	return occ, true
}

// Validate checks that a rule is well formed: it must carry a FREQ term and
// produce at least one occurrence after a reference date. The returned
// error explains the failure; validation never panics.
func Validate(rule string) error {
	trimmed := strings.TrimSpace(rule)
	if trimmed == "" {
		return errors.New("recurrence rule is empty")
	}
	if !strings.Contains(strings.ToUpper(trimmed), "FREQ=") {
		return errors.New("recurrence rule must contain a FREQ term")
	}

	reference := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	r, err := parseRule(trimmed, reference)
	if err != nil {
		return errors.New("recurrence rule failed to parse: " + err.Error())
	}
	if r.After(reference, true).IsZero() {
		return errors.New("recurrence rule produces no occurrences")
	}
	return nil
}

// CountInRange counts occurrences within [windowStart, windowEnd] without
// materializing instances, stopping once maxCount is reached. Callers use
// it to decide whether a full expansion is affordable.
func CountInRange(rule string, anchor, windowStart, windowEnd time.Time, maxCount int) int {
	if strings.TrimSpace(rule) == "" {
		return 0
	}
	if maxCount <= 0 {
		maxCount = 1000
	}

	r, err := parseRule(rule, anchor)
	if err != nil {
		return 0
	}

	count := 0
	next := r.Iterator()
	for i := 0; i < iterationBudget; i++ {
		occ, ok := next()
		if !ok || occ.After(windowEnd) {
			break
		}
		if occ.Before(windowStart) {
			continue
		}
		count++
		if count >= maxCount {
			break
		}
	}
	return count
}
