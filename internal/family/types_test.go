package family

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConstraintBlockedWindow(t *testing.T) {
	c := Constraint{
		Type:        ConstraintBlockedWindow,
		Level:       LevelHard,
		WindowStart: "08:30",
		WindowEnd:   "15:30",
		DaysOfWeek:  []int{0, 1, 2, 3, 4}, // weekdays, Monday-based
		Active:      true,
	}

	monday := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.True(t, c.Violated(monday, monday.Add(time.Hour)))

	// Same window on Saturday does not apply.
	saturday := time.Date(2026, 3, 7, 10, 0, 0, 0, time.UTC)
	assert.False(t, c.Violated(saturday, saturday.Add(time.Hour)))

	// Evening events clear the window.
	evening := time.Date(2026, 3, 2, 16, 0, 0, 0, time.UTC)
	assert.False(t, c.Violated(evening, evening.Add(time.Hour)))

	// Touching the window boundary is not a violation.
	boundary := time.Date(2026, 3, 2, 15, 30, 0, 0, time.UTC)
	assert.False(t, c.Violated(boundary, boundary.Add(time.Hour)))
}

func TestConstraintPreferredWindow(t *testing.T) {
	c := Constraint{
		Type:        ConstraintPreferredWindow,
		Level:       LevelSoft,
		WindowStart: "09:00",
		WindowEnd:   "17:00",
		Active:      true,
	}

	inside := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.False(t, c.Violated(inside, inside.Add(time.Hour)))

	before := time.Date(2026, 3, 2, 7, 0, 0, 0, time.UTC)
	assert.True(t, c.Violated(before, before.Add(time.Hour)))

	after := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	assert.True(t, c.Violated(after, after.Add(time.Hour)))
}

func TestConstraintInactiveOrMalformed(t *testing.T) {
	inactive := Constraint{
		Type: ConstraintBlockedWindow, WindowStart: "08:00", WindowEnd: "18:00",
	}
	at := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	assert.False(t, inactive.Violated(at, at.Add(time.Hour)))

	malformed := Constraint{
		Type: ConstraintBlockedWindow, WindowStart: "late", WindowEnd: "18:00", Active: true,
	}
	assert.False(t, malformed.Violated(at, at.Add(time.Hour)), "malformed windows disable evaluation")
}

func TestConstraintCrossMidnightEvent(t *testing.T) {
	c := Constraint{
		Type:        ConstraintBlockedWindow,
		WindowStart: "22:00",
		WindowEnd:   "23:59",
		Active:      true,
	}
	// Event runs 21:00 to 01:00 next day; its effective end on the start
	// day is midnight, overlapping the window.
	start := time.Date(2026, 3, 2, 21, 0, 0, 0, time.UTC)
	assert.True(t, c.Violated(start, start.Add(4*time.Hour)))
}
