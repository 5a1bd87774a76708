package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/conflict"
	"github.com/hearthlabs/scheduler/internal/family"
	"github.com/hearthlabs/scheduler/internal/metrics"
	"github.com/hearthlabs/scheduler/internal/recurrence"
	"github.com/hearthlabs/scheduler/internal/state"
)

// DetectConflicts runs the pure conflict detector against the selected
// slot, assembling overlapping commitments and constraints first. For a
// recurring request the upcoming occurrences inside the search window
// are checked as well.
func (n *Nodes) DetectConflicts(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing detect_conflicts node",
		zap.String("conversation_id", st.ConversationID))

	slot := st.SelectedSlot
	parsed := st.Parsed
	if slot == nil || parsed == nil {
		return n.fail(state.StepDetectConflicts, "data_integrity",
			"no selected slot available for conflict detection", false)
	}

	overlapping, err := n.Calendar.EventsInRange(ctx, slot.Start, slot.End)
	if err != nil {
		return n.failExternal(state.StepDetectConflicts, err)
	}

	in := conflict.Input{
		Slot:                     *slot,
		CommitmentsByParticipant: make(map[string][]calendar.Event),
		ConstraintsByParticipant: make(map[string][]family.Constraint),
	}

	for _, name := range parsed.Participants {
		member := n.resolveMember(ctx, name)
		in.Participants = append(in.Participants, member)

		for _, ev := range overlapping {
			if attendeeMatch(ev.Attendees, member.Name) {
				in.CommitmentsByParticipant[member.ID] = append(in.CommitmentsByParticipant[member.ID], ev)
			}
		}

		constraints, err := n.Family.ConstraintsFor(ctx, member.ID)
		if err != nil {
			n.Logger.Warn("Constraint lookup failed",
				zap.String("member", member.Name), zap.Error(err))
			continue
		}
		in.ConstraintsByParticipant[member.ID] = constraints
	}

	for _, name := range parsed.Resources {
		res, err := n.Family.ResourceByName(ctx, name)
		if errors.Is(err, family.ErrNotFound) {
			continue // already surfaced by the resource check
		}
		if err != nil {
			return n.failExternal(state.StepDetectConflicts, err)
		}
		reserved := 0
		if res.CalendarSource != "" {
			busy, err := n.Calendar.BusyIntervals(ctx, []string{res.CalendarSource}, slot.Start, slot.End)
			if err != nil {
				return n.failExternal(state.StepDetectConflicts, err)
			}
			reserved = len(busy[res.CalendarSource])
		}
		in.Resources = append(in.Resources, conflict.ResourceRequest{
			Resource: *res,
			Quantity: 1,
			Reserved: reserved,
		})
	}

	detected := conflict.Detect(in)
	if parsed.RecurrenceRule != "" {
		more, err := n.recurringConflicts(ctx, in, parsed.RecurrenceRule)
		if err != nil {
			return n.failExternal(state.StepDetectConflicts, err)
		}
		detected = append(detected, more...)
	}

	set := conflict.NewSet(detected)
	for _, c := range set.Conflicts {
		metrics.ConflictsDetected.WithLabelValues(string(c.Type)).Inc()
	}

	explanation := "No conflicts detected"
	if set.HasConflicts() {
		explanation = fmt.Sprintf("Detected %d conflicts (%d blocking)",
			len(set.Conflicts), len(set.BlockingIDs))
	}

	n.Logger.Info("Conflict detection completed",
		zap.String("conversation_id", st.ConversationID),
		zap.Int("conflicts", len(set.Conflicts)))

	return state.Delta{
		Step:   state.StepDetectConflicts,
		Status: state.StatusInProgress,
		Output: n.output(state.OutputData{Conflicts: set}, explanation, 1.0,
			"Compared the selected slot against commitments, capacity and constraints"),
		DetectedConflicts: set,
	}
}

// maxRecurringOccurrences bounds how many upcoming occurrences of a
// recurring request are checked beyond the anchor slot.
const maxRecurringOccurrences = 8

// recurringConflicts expands a recurrence rule anchored at the selected
// slot and runs detection against each upcoming occurrence inside the
// search window. Resource capacity is checked on the anchor slot only;
// commitments and constraints are re-checked per occurrence so a weekly
// event cannot slide past a Tuesday standing appointment.
func (n *Nodes) recurringConflicts(ctx context.Context, base conflict.Input, rule string) ([]state.Conflict, error) {
	duration := base.Slot.End.Sub(base.Slot.Start)
	windowEnd := base.Slot.Start.Add(n.searchWindow())
	instances := recurrence.Expand(rule, base.Slot.Start, duration,
		base.Slot.Start, windowEnd, maxRecurringOccurrences+1)

	var conflicts []state.Conflict
	for _, inst := range instances {
		if inst.Start.Equal(base.Slot.Start) {
			continue // the anchor slot was already checked
		}

		overlapping, err := n.Calendar.EventsInRange(ctx, inst.Start, inst.End)
		if err != nil {
			return nil, err
		}

		occ := conflict.Input{
			Slot:                     state.TimeSlot{Start: inst.Start, End: inst.End},
			Participants:             base.Participants,
			CommitmentsByParticipant: make(map[string][]calendar.Event),
			ConstraintsByParticipant: base.ConstraintsByParticipant,
		}
		for _, member := range base.Participants {
			for _, ev := range overlapping {
				if attendeeMatch(ev.Attendees, member.Name) {
					occ.CommitmentsByParticipant[member.ID] = append(occ.CommitmentsByParticipant[member.ID], ev)
				}
			}
		}

		for _, c := range conflict.Detect(occ) {
			c.Details = fmt.Sprintf("%s (occurrence %s)", c.Details, inst.Start.Format("2006-01-02"))
			conflicts = append(conflicts, c)
		}
	}
	return conflicts, nil
}

// resolveMember looks a participant up in the directory; unknown names
// become synthetic members so their calendar commitments still count.
func (n *Nodes) resolveMember(ctx context.Context, name string) family.Member {
	member, err := n.Family.MemberByName(ctx, name)
	if err == nil {
		return *member
	}
	if !errors.Is(err, family.ErrNotFound) {
		n.Logger.Warn("Member lookup failed", zap.String("participant", name), zap.Error(err))
	}
	return family.Member{ID: name, Name: name, Active: true}
}

func attendeeMatch(attendees []string, name string) bool {
	for _, a := range attendees {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}
