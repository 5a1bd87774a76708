package nodes

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/state"
)

// Clarify identifies what is missing or ambiguous and asks the user for
// it; the turn always ends awaiting user input.
func (n *Nodes) Clarify(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing clarify node",
		zap.String("conversation_id", st.ConversationID))

	var missing []string
	if st.Parsed == nil || st.Parsed.Title == "" {
		missing = append(missing, "event title")
	}
	if st.Parsed == nil || st.Parsed.StartTime == nil {
		missing = append(missing, "start time")
	}
	if st.Parsed == nil || len(st.Parsed.Participants) == 0 {
		missing = append(missing, "participants")
	}

	// Resource shortfalls also land here; name them so the user can pick
	// an alternative.
	if out, ok := st.Output(state.StepCheckResources); ok && out.Data.Resources != nil {
		for _, r := range out.Data.Resources.Availability {
			if !r.Available {
				missing = append(missing, fmt.Sprintf("an alternative for %q", r.ResourceName))
			}
		}
	}

	var message string
	switch {
	case len(missing) > 0:
		message = fmt.Sprintf(
			"I need a bit more information to schedule your event. Could you please specify: %s?",
			strings.Join(missing, ", "))
	case st.Confidence(state.StepParse) < state.ConfidenceThreshold:
		message = fmt.Sprintf(
			"I'm not quite sure I understood your request: %q. Could you please rephrase or provide more details?",
			st.RawInput)
	default:
		message = "Could you please provide more details about your request?"
	}

	explanation := "Requesting clarification"
	if len(missing) > 0 {
		explanation = fmt.Sprintf("Requesting clarification: %s", strings.Join(missing, ", "))
	}

	n.Logger.Info("Clarification requested",
		zap.String("conversation_id", st.ConversationID),
		zap.Strings("missing_fields", missing))

	return state.Delta{
		Step:   state.StepClarify,
		Status: state.StatusAwaitingUser,
		Output: n.output(state.OutputData{Clarify: &state.ClarifyData{
			Message:       message,
			MissingFields: missing,
		}}, explanation, 0.5, "Identified missing or ambiguous information"),
		Messages: []state.Message{{Role: "assistant", Content: message, Timestamp: n.now()}},
	}
}
