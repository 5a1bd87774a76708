package nodes

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/state"
)

// AutoConfirm commits the event to the calendar when no conflicts block
// it, and completes the turn.
func (n *Nodes) AutoConfirm(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing auto_confirm node",
		zap.String("conversation_id", st.ConversationID))

	parsed := st.Parsed
	if parsed == nil {
		return n.fail(state.StepAutoConfirm, "data_integrity",
			"no parsed event data available for confirmation", false)
	}

	start, end := n.resolveTimes(st)
	title := parsed.Title
	if title == "" {
		title = "Untitled Event"
	}

	created, err := n.Calendar.CreateEvent(ctx, calendar.CreateEventRequest{
		Title:          title,
		Location:       parsed.Location,
		Start:          start,
		End:            end,
		Attendees:      parsed.Participants,
		RecurrenceRule: parsed.RecurrenceRule,
		CreatedBy:      st.UserID,
	})
	if err != nil {
		return n.failExternal(state.StepAutoConfirm, err)
	}

	event := &state.ProposedEvent{
		EventID:        created.ID,
		Title:          created.Title,
		Start:          created.Start,
		End:            created.End,
		Location:       created.Location,
		Participants:   created.Attendees,
		Resources:      parsed.Resources,
		RecurrenceRule: created.RecurrenceRule,
		Status:         "confirmed",
		CalendarID:     created.CalendarID,
		CreatedAt:      n.now(),
	}

	explanation := fmt.Sprintf("Event %q created and confirmed", event.Title)
	n.Logger.Info("Auto confirm completed",
		zap.String("conversation_id", st.ConversationID),
		zap.String("event_id", event.EventID),
		zap.String("title", event.Title))

	return state.Delta{
		Step:   state.StepAutoConfirm,
		Status: state.StatusCompleted,
		Output: n.output(state.OutputData{Confirm: &state.ConfirmData{Event: *event}},
			explanation, 1.0, "Committed the event to the calendar"),
		ProposedEvent: event,
		Messages: []state.Message{{
			Role:      "assistant",
			Content:   explanation,
			Timestamp: n.now(),
		}},
	}
}

// resolveTimes prefers the selected slot, then the parsed times, then a
// one-hour default from now.
func (n *Nodes) resolveTimes(st *state.State) (time.Time, time.Time) {
	if st.SelectedSlot != nil {
		return st.SelectedSlot.Start, st.SelectedSlot.End
	}
	parsed := st.Parsed
	if parsed.StartTime != nil {
		start := *parsed.StartTime
		if parsed.EndTime != nil {
			return start, *parsed.EndTime
		}
		return start, start.Add(defaultEventDuration)
	}
	start := n.now()
	return start, start.Add(defaultEventDuration)
}
