// Package family holds the household configuration the scheduler reads:
// members, bookable resources, and scheduling constraints.
package family

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a member or resource does not exist.
var ErrNotFound = errors.New("family: not found")

// Member is one person in the household.
type Member struct {
	ID             string `json:"id" yaml:"id" db:"id"`
	Name           string `json:"name" yaml:"name" db:"name"`
	Role           string `json:"role,omitempty" yaml:"role" db:"role"`
	CalendarSource string `json:"calendar_source,omitempty" yaml:"calendar_source" db:"calendar_source"`
	Active         bool   `json:"active" yaml:"active" db:"active"`
}

// Resource is a bookable household resource (car, room, equipment).
// Capacity above one models shared resources. A resource without a
// calendar source has no tracked commitments: it is always available
// while active and never available while inactive.
type Resource struct {
	ID             string `json:"id" yaml:"id" db:"id"`
	Name           string `json:"name" yaml:"name" db:"name"`
	Type           string `json:"type,omitempty" yaml:"type" db:"type"`
	Capacity       int    `json:"capacity" yaml:"capacity" db:"capacity"`
	CalendarSource string `json:"calendar_source,omitempty" yaml:"calendar_source" db:"calendar_source"`
	Active         bool   `json:"active" yaml:"active" db:"active"`
}

// ConstraintLevel separates blocking rules from preferences.
type ConstraintLevel string

const (
	LevelHard ConstraintLevel = "hard"
	LevelSoft ConstraintLevel = "soft"
)

// Constraint types understood by the conflict detector.
const (
	ConstraintBlockedWindow   = "blocked_window"
	ConstraintPreferredWindow = "preferred_window"
)

// Constraint is a scheduling rule scoped to a time window and optionally
// to days of the week. MemberID empty means family-wide.
type Constraint struct {
	ID          string          `json:"id" yaml:"id" db:"id"`
	Name        string          `json:"name" yaml:"name" db:"name"`
	Description string          `json:"description,omitempty" yaml:"description" db:"description"`
	MemberID    string          `json:"member_id,omitempty" yaml:"member_id" db:"member_id"`
	Type        string          `json:"type" yaml:"type" db:"type"`
	Level       ConstraintLevel `json:"level" yaml:"level" db:"level"`
	Priority    int             `json:"priority" yaml:"priority" db:"priority"`
	WindowStart string          `json:"window_start,omitempty" yaml:"window_start" db:"window_start"` // HH:MM
	WindowEnd   string          `json:"window_end,omitempty" yaml:"window_end" db:"window_end"`       // HH:MM
	DaysOfWeek  []int           `json:"days_of_week,omitempty" yaml:"days_of_week" db:"-"`            // 0=Monday
	Active      bool            `json:"active" yaml:"active" db:"active"`
}

// appliesOnDay reports whether the constraint covers the given day.
// An empty day list means every day.
func (c Constraint) appliesOnDay(t time.Time) bool {
	if len(c.DaysOfWeek) == 0 {
		return true
	}
	wd := (int(t.Weekday()) + 6) % 7
	for _, d := range c.DaysOfWeek {
		if d == wd {
			return true
		}
	}
	return false
}

// windowMinutes parses the HH:MM bounds into minutes-of-day. Malformed or
// missing bounds yield ok=false, which disables window evaluation.
func (c Constraint) windowMinutes() (startMin, endMin int, ok bool) {
	parse := func(s string) (int, bool) {
		if len(s) != 5 || s[2] != ':' {
			return 0, false
		}
		h := int(s[0]-'0')*10 + int(s[1]-'0')
		m := int(s[3]-'0')*10 + int(s[4]-'0')
		if h < 0 || h > 23 || m < 0 || m > 59 {
			return 0, false
		}
		return h*60 + m, true
	}
	var okS, okE bool
	startMin, okS = parse(c.WindowStart)
	endMin, okE = parse(c.WindowEnd)
	return startMin, endMin, okS && okE
}

// Violated reports whether an event spanning [start, end) violates the
// constraint. A blocked window is violated by any overlap; a preferred
// window is violated when the event starts outside it.
func (c Constraint) Violated(start, end time.Time) bool {
	if !c.Active || !c.appliesOnDay(start) {
		return false
	}
	winStart, winEnd, ok := c.windowMinutes()
	if !ok {
		return false
	}

	startMin := start.Hour()*60 + start.Minute()
	endMin := end.Hour()*60 + end.Minute()
	if end.Day() != start.Day() {
		endMin = 24 * 60
	}

	switch c.Type {
	case ConstraintBlockedWindow:
		return startMin < winEnd && endMin > winStart
	case ConstraintPreferredWindow:
		return startMin < winStart || startMin >= winEnd
	default:
		return false
	}
}

// Directory is the read-only household configuration consumed by nodes.
type Directory interface {
	Members(ctx context.Context) ([]Member, error)
	MemberByName(ctx context.Context, name string) (*Member, error)
	Resources(ctx context.Context) ([]Resource, error)
	ResourceByName(ctx context.Context, name string) (*Resource, error)

	// ConstraintsFor returns the active constraints for a member,
	// including family-wide ones.
	ConstraintsFor(ctx context.Context, memberID string) ([]Constraint, error)
}
