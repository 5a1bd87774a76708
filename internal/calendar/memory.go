package calendar

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryService is an in-memory Service used by tests and the demo binary.
// Busy intervals for a source are derived from events whose attendee list
// contains the source id; the special source id equal to the calendar id
// reflects every event.
type MemoryService struct {
	mu         sync.RWMutex
	calendarID string
	events     map[string]Event

	// FailWith, when set, is returned by every method. Lets tests drive
	// the node-boundary error path.
	FailWith error
}

// NewMemoryService returns an empty in-memory calendar.
func NewMemoryService(calendarID string) *MemoryService {
	return &MemoryService{
		calendarID: calendarID,
		events:     make(map[string]Event),
	}
}

// Seed inserts an event directly, bypassing failure injection.
func (m *MemoryService) Seed(ev Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.CalendarID == "" {
		ev.CalendarID = m.calendarID
	}
	if ev.Status == "" {
		ev.Status = "confirmed"
	}
	m.events[ev.ID] = ev
}

func (m *MemoryService) BusyIntervals(ctx context.Context, sourceIDs []string, start, end time.Time) (map[string][]BusyInterval, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	busy := make(map[string][]BusyInterval, len(sourceIDs))
	for _, src := range sourceIDs {
		busy[src] = []BusyInterval{}
	}
	for _, ev := range m.events {
		if ev.Status == "cancelled" || !ev.Start.Before(end) || !ev.End.After(start) {
			continue
		}
		for _, src := range sourceIDs {
			if src == m.calendarID || attends(ev, src) {
				busy[src] = append(busy[src], BusyInterval{Start: ev.Start, End: ev.End})
			}
		}
	}
	for src := range busy {
		sort.Slice(busy[src], func(i, j int) bool { return busy[src][i].Start.Before(busy[src][j].Start) })
	}
	return busy, nil
}

func (m *MemoryService) EventsInRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Event
	for _, ev := range m.events {
		if ev.Start.Before(end) && ev.End.After(start) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *MemoryService) CreateEvent(ctx context.Context, req CreateEventRequest) (*Event, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ev := Event{
		ID:             uuid.New().String(),
		CalendarID:     m.calendarID,
		Title:          req.Title,
		Description:    req.Description,
		Location:       req.Location,
		Start:          req.Start,
		End:            req.End,
		Attendees:      append([]string(nil), req.Attendees...),
		RecurrenceRule: req.RecurrenceRule,
		Status:         "confirmed",
		CreatedBy:      req.CreatedBy,
	}
	m.events[ev.ID] = ev
	return &ev, nil
}

func (m *MemoryService) UpdateEvent(ctx context.Context, eventID string, patch EventPatch) (*Event, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	ev, ok := m.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	if patch.Title != nil {
		ev.Title = *patch.Title
	}
	if patch.Location != nil {
		ev.Location = *patch.Location
	}
	if patch.Start != nil {
		ev.Start = *patch.Start
	}
	if patch.End != nil {
		ev.End = *patch.End
	}
	m.events[eventID] = ev
	return &ev, nil
}

func (m *MemoryService) DeleteEvent(ctx context.Context, eventID string) error {
	if m.FailWith != nil {
		return m.FailWith
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.events[eventID]; !ok {
		return ErrNotFound
	}
	delete(m.events, eventID)
	return nil
}

func attends(ev Event, participant string) bool {
	for _, a := range ev.Attendees {
		if strings.EqualFold(a, participant) {
			return true
		}
	}
	return false
}
