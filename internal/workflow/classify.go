package workflow

import (
	"fmt"
	"strings"

	"github.com/hearthlabs/scheduler/internal/state"
)

// Turn outcomes.
const (
	OutcomeEventCreated          = "event_created"
	OutcomeAwaitingResolution    = "awaiting_resolution"
	OutcomeAwaitingClarification = "awaiting_clarification"
	OutcomeQueryAnswered         = "query_answered"
	OutcomeError                 = "error"
)

// Result is what a turn hands back to the caller: the terminal state, a
// coarse outcome, the user-facing message for that outcome, and a summary
// assembled from the per-step explanations.
type Result struct {
	State   *state.State
	Outcome string
	Message string
	Summary string
}

// Classify derives the turn outcome from the terminal state. Because
// outputs from earlier turns persist on the state, the outcome follows the
// last node this turn actually executed, not mere output presence.
func Classify(st *state.State) *Result {
	res := &Result{State: st, Summary: summarize(st)}

	if st.Status == state.StatusFailed {
		res.Outcome = OutcomeError
		if n := len(st.Errors); n > 0 {
			res.Message = st.Errors[n-1].Message
		}
		return res
	}

	switch lastExecutedStep(st) {
	case state.StepAutoConfirm:
		res.Outcome = OutcomeEventCreated
		res.Message = lastAssistantMessage(st)
	case state.StepResolve:
		res.Outcome = OutcomeAwaitingResolution
		if out, ok := st.Output(state.StepResolve); ok && out.Data.Resolution != nil {
			res.Message = resolutionMessage(out.Data.Resolution)
		}
	case state.StepClarify:
		res.Outcome = OutcomeAwaitingClarification
		if out, ok := st.Output(state.StepClarify); ok && out.Data.Clarify != nil {
			res.Message = out.Data.Clarify.Message
		}
	case state.StepQuery:
		res.Outcome = OutcomeQueryAnswered
		if out, ok := st.Output(state.StepQuery); ok && out.Data.Query != nil {
			res.Message = out.Data.Query.Response
		}
	default:
		res.Outcome = OutcomeError
		res.Message = "The request ended without a result."
	}
	return res
}

// lastExecutedStep is the final node invocation in the audit log.
func lastExecutedStep(st *state.State) state.Step {
	for i := len(st.AuditLog) - 1; i >= 0; i-- {
		if st.AuditLog[i].Action != "transition" {
			return st.AuditLog[i].Step
		}
	}
	return state.StepStart
}

// resolutionMessage renders the proposed options for the user to choose
// from.
func resolutionMessage(data *state.ResolutionData) string {
	var b strings.Builder
	b.WriteString("This request conflicts with your schedule. Here are your options:\n")
	for i, p := range data.Proposed {
		fmt.Fprintf(&b, "%d. %s", i+1, p.Description)
		if p.ID == data.Recommended {
			b.WriteString(" (recommended)")
		}
		b.WriteString("\n")
	}
	b.WriteString("Which would you like?")
	return b.String()
}

func lastAssistantMessage(st *state.State) string {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == "assistant" {
			return st.Messages[i].Content
		}
	}
	return ""
}

// summarize joins the step explanations from the audit log in execution
// order, skipping bare transitions.
func summarize(st *state.State) string {
	var parts []string
	for _, entry := range st.AuditLog {
		if entry.Action == "transition" || entry.Explanation == "" {
			continue
		}
		parts = append(parts, entry.Explanation)
	}
	return strings.Join(parts, ". ")
}
