package nodes

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/state"
)

// Resolve asks the proposer for ranked alternatives to the detected
// conflicts and hands the decision to the user: the turn always ends
// awaiting user input.
func (n *Nodes) Resolve(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing resolve node",
		zap.String("conversation_id", st.ConversationID))

	set := st.DetectedConflicts
	if !set.HasConflicts() {
		return n.fail(state.StepResolve, "data_integrity",
			"resolve invoked without detected conflicts", false)
	}

	// Nearby events give the generator context; fetching them is best
	// effort.
	var nearby []calendar.Event
	if st.SelectedSlot != nil {
		windowStart := st.SelectedSlot.Start.Add(-24 * time.Hour)
		windowEnd := st.SelectedSlot.End.Add(24 * time.Hour)
		if evs, err := n.Calendar.EventsInRange(ctx, windowStart, windowEnd); err == nil {
			nearby = evs
		}
	}

	data, fromModel := n.Resolver.Propose(ctx, set.Conflicts, st.Parsed, nearby)

	explanation := fmt.Sprintf("Generated %d resolution options", len(data.Proposed))
	confidence := 0.85
	if !fromModel {
		confidence = 0.6
	}

	n.Logger.Info("Resolution completed",
		zap.String("conversation_id", st.ConversationID),
		zap.Int("options", len(data.Proposed)),
		zap.Bool("from_model", fromModel))

	return state.Delta{
		Step:   state.StepResolve,
		Status: state.StatusAwaitingUser,
		Output: n.output(state.OutputData{Resolution: data}, explanation, confidence,
			"Proposed alternatives for the detected conflicts"),
		Validation: &state.ValidationResult{
			Step:      state.StepResolve,
			Passed:    fromModel,
			Timestamp: n.now(),
		},
	}
}
