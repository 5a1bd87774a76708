// Package workflow wires the step actions into a deterministic state
// machine: a pure router decides the next step from recorded outputs, and
// the engine executes steps until a terminal status, checkpointing the
// state between turns.
package workflow

import (
	"fmt"

	"github.com/hearthlabs/scheduler/internal/state"
)

// Next returns the step that follows the one just executed. It is a pure
// function of the recorded state: same state in, same step out. An
// unroutable combination returns an error instead of a silent default.
func Next(from state.Step, st *state.State) (state.Step, error) {
	switch from {
	case state.StepStart:
		return state.StepParse, nil

	case state.StepParse:
		if st.Status == state.StatusFailed {
			return state.StepEnd, nil
		}
		if st.Confidence(state.StepParse) < state.ConfidenceThreshold {
			return state.StepClarify, nil
		}
		if st.Parsed != nil && st.Parsed.Intent == state.IntentQuery {
			return state.StepQuery, nil
		}
		return state.StepSchedule, nil

	case state.StepSchedule:
		if st.Status == state.StatusFailed {
			return state.StepEnd, nil
		}
		out, ok := st.Output(state.StepSchedule)
		if !ok || out.Data.Schedule == nil {
			return 0, fmt.Errorf("no schedule output recorded")
		}
		if len(out.Data.Schedule.Candidates) == 0 {
			return state.StepClarify, nil
		}
		return state.StepCheckResources, nil

	case state.StepCheckResources:
		if st.Status == state.StatusFailed {
			return state.StepEnd, nil
		}
		out, ok := st.Output(state.StepCheckResources)
		if !ok || out.Data.Resources == nil {
			return 0, fmt.Errorf("no resource-check output recorded")
		}
		if !out.Data.Resources.AllAvailable {
			return state.StepClarify, nil
		}
		return state.StepDetectConflicts, nil

	case state.StepDetectConflicts:
		if st.Status == state.StatusFailed {
			return state.StepEnd, nil
		}
		if st.DetectedConflicts != nil && st.DetectedConflicts.HasConflicts() {
			return state.StepResolve, nil
		}
		return state.StepAutoConfirm, nil

	case state.StepResolve, state.StepQuery, state.StepAutoConfirm, state.StepClarify:
		return state.StepEnd, nil

	case state.StepEnd:
		return 0, fmt.Errorf("routing past end")

	default:
		return 0, fmt.Errorf("unroutable step %q", from)
	}
}
