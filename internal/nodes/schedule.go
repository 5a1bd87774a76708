package nodes

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/availability"
	"github.com/hearthlabs/scheduler/internal/family"
	"github.com/hearthlabs/scheduler/internal/state"
)

const defaultEventDuration = time.Hour

// Schedule selects candidate time slots: the requested time verbatim when
// one was given, otherwise a ranked search over participant availability.
func (n *Nodes) Schedule(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing schedule node",
		zap.String("conversation_id", st.ConversationID))

	parsed := st.Parsed
	if parsed == nil {
		return n.fail(state.StepSchedule, "data_integrity",
			"no parsed event data available for scheduling", false)
	}

	duration := defaultEventDuration
	if parsed.StartTime != nil && parsed.EndTime != nil && parsed.EndTime.After(*parsed.StartTime) {
		duration = parsed.EndTime.Sub(*parsed.StartTime)
	}

	var (
		candidates  []state.TimeSlot
		confidence  float64
		explanation string
	)

	if parsed.StartTime != nil {
		// A requested time is the sole candidate. An end that does not
		// follow the start falls back to the default duration.
		end := parsed.StartTime.Add(duration)
		if parsed.EndTime != nil && parsed.EndTime.After(*parsed.StartTime) {
			end = *parsed.EndTime
		}
		candidates = []state.TimeSlot{{
			Start:                 *parsed.StartTime,
			End:                   end,
			Score:                 1.0,
			AvailableParticipants: parsed.Participants,
		}}
		confidence = 0.95
		explanation = fmt.Sprintf("Using requested time %s", parsed.StartTime.Format(time.RFC3339))
	} else {
		searchStart := n.now()
		searchEnd := searchStart.Add(n.searchWindow())

		sources := n.participantSources(ctx, parsed.Participants)
		busy, err := n.Calendar.BusyIntervals(ctx, sources, searchStart, searchEnd)
		if err != nil {
			return n.failExternal(state.StepSchedule, err)
		}

		candidates = availability.FindSlots(busy, searchStart, searchEnd, duration, n.Slots)
		if len(candidates) == 0 {
			confidence = 0.3
			explanation = "No available slots found in the search window"
		} else {
			confidence = 0.8
			explanation = fmt.Sprintf("Found %d candidate slots", len(candidates))
		}
	}

	data := &state.ScheduleData{Candidates: candidates}
	delta := state.Delta{
		Step:   state.StepSchedule,
		Status: state.StatusInProgress,
		Output: n.output(state.OutputData{Schedule: data}, explanation, confidence,
			"Analyzed calendar availability for the requested event"),
	}
	if len(candidates) > 0 {
		best := candidates[0]
		data.Recommended = &best.Start
		delta.SelectedSlot = &best
	}

	n.Logger.Info("Schedule completed",
		zap.String("conversation_id", st.ConversationID),
		zap.Int("candidates", len(candidates)),
		zap.Float64("confidence", confidence))
	return delta
}

// participantSources maps participant names to their calendar source ids,
// falling back to the raw name when the member is unknown or has no
// tracked calendar.
func (n *Nodes) participantSources(ctx context.Context, participants []string) []string {
	sources := make([]string, 0, len(participants))
	for _, name := range participants {
		member, err := n.Family.MemberByName(ctx, name)
		if err == nil && member.CalendarSource != "" {
			sources = append(sources, member.CalendarSource)
			continue
		}
		if err != nil && err != family.ErrNotFound {
			n.Logger.Warn("Member lookup failed",
				zap.String("participant", name), zap.Error(err))
		}
		sources = append(sources, name)
	}
	return sources
}
