// Package calendar defines the external calendar capability the workflow
// consumes: busy-interval lookup and event CRUD, with a typed error
// taxonomy so node code can classify failures as retryable or not.
package calendar

import (
	"context"
	"errors"
	"time"
)

// Event is a calendar event as reported by the backing calendar.
type Event struct {
	ID             string    `json:"id"`
	CalendarID     string    `json:"calendar_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Location       string    `json:"location,omitempty"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Attendees      []string  `json:"attendees,omitempty"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	Status         string    `json:"status"` // confirmed, tentative, cancelled
	CreatedBy      string    `json:"created_by,omitempty"`
}

// BusyInterval is a time range during which a source is committed.
type BusyInterval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether the interval overlaps [start, end).
func (b BusyInterval) Overlaps(start, end time.Time) bool {
	return b.Start.Before(end) && b.End.After(start)
}

// CreateEventRequest carries the fields needed to create an event.
type CreateEventRequest struct {
	Title          string
	Description    string
	Location       string
	Start          time.Time
	End            time.Time
	Attendees      []string
	RecurrenceRule string
	CreatedBy      string
}

// EventPatch is a partial update for an existing event.
type EventPatch struct {
	Title    *string
	Location *string
	Start    *time.Time
	End      *time.Time
}

// Service is the calendar/availability capability boundary. All methods are
// blocking and fallible; callers decide on timeouts and retries.
type Service interface {
	// BusyIntervals returns committed intervals per source id within
	// [start, end). A source with no tracked commitments yields an
	// empty (not missing) entry.
	BusyIntervals(ctx context.Context, sourceIDs []string, start, end time.Time) (map[string][]BusyInterval, error)

	// EventsInRange returns events overlapping [start, end).
	EventsInRange(ctx context.Context, start, end time.Time) ([]Event, error)

	CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error)
	UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (*Event, error)
	DeleteEvent(ctx context.Context, eventID string) error
}

// Error taxonomy for calendar backends. Wrap these sentinels so callers
// can classify failures with errors.Is.
var (
	ErrAuth          = errors.New("calendar: authorization failed")
	ErrNotFound      = errors.New("calendar: not found")
	ErrQuotaExceeded = errors.New("calendar: quota exceeded")
	ErrRateLimited   = errors.New("calendar: rate limited")
	ErrStaleVersion  = errors.New("calendar: stale version")
)

// Retryable reports whether an error is worth retrying. Quota, rate-limit
// and stale-version failures are transient; auth and not-found are not.
func Retryable(err error) bool {
	return errors.Is(err, ErrQuotaExceeded) ||
		errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrStaleVersion)
}

// Kind returns a short classifier string for error records.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrAuth):
		return "auth_failure"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrStaleVersion):
		return "stale_version"
	default:
		return "calendar_failure"
	}
}
