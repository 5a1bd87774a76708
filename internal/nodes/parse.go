package nodes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/llm"
	"github.com/hearthlabs/scheduler/internal/metrics"
	"github.com/hearthlabs/scheduler/internal/recurrence"
	"github.com/hearthlabs/scheduler/internal/state"
)

// Parse extracts a structured intent from the raw natural-language input
// via the reasoning capability, computes a local confidence score, and
// fills gaps from the previous turn's parse when the conversation resumes.
func (n *Nodes) Parse(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing parse node",
		zap.String("conversation_id", st.ConversationID))

	input := st.RawInput
	prompt := llm.ParsePrompt(input, st.RecentMessages(3), n.now())

	text, err := n.LLM.Complete(ctx, prompt)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("parse", "error").Inc()
		return n.fail(state.StepParse, "agent_failure",
			fmt.Sprintf("failed to parse input: %v", err), true)
	}
	metrics.LLMCalls.WithLabelValues("parse", "ok").Inc()

	var issues []string
	parsed, decodeErr := llm.DecodeParsedEvent(text)
	if decodeErr != nil {
		// Malformed reasoning output is a validation error, never fatal
		// to the turn: default to a minimal create intent.
		parsed = &state.ParsedEvent{Intent: state.IntentCreate, Title: input}
		issues = append(issues, decodeErr.Error())
	}

	backfillFromPrior(parsed, st.Parsed)

	if parsed.RecurrenceRule != "" {
		if err := recurrence.Validate(parsed.RecurrenceRule); err != nil {
			issues = append(issues, err.Error())
			parsed.RecurrenceRule = ""
		}
	}

	confidence := parseConfidence(parsed, input)
	explanation := fmt.Sprintf("Understood as: %s event %q", parsed.Intent, parsed.Title)

	n.Logger.Info("Parse completed",
		zap.String("conversation_id", st.ConversationID),
		zap.String("intent", string(parsed.Intent)),
		zap.Float64("confidence", confidence))

	return state.Delta{
		Step:   state.StepParse,
		Status: state.StatusInProgress,
		Output: n.output(state.OutputData{Parse: parsed}, explanation, confidence,
			"Parsed natural language input via the reasoning capability"),
		Parsed: parsed,
		Validation: &state.ValidationResult{
			Step:      state.StepParse,
			Passed:    len(issues) == 0,
			Issues:    issues,
			Timestamp: n.now(),
		},
	}
}

// backfillFromPrior fills fields missing from the new utterance with the
// previous turn's parse, so a clarifying answer completes the earlier
// request instead of starting over.
func backfillFromPrior(parsed, prior *state.ParsedEvent) {
	if prior == nil {
		return
	}
	if parsed.Title == "" {
		parsed.Title = prior.Title
	}
	if parsed.StartTime == nil {
		parsed.StartTime = prior.StartTime
	}
	if parsed.EndTime == nil {
		parsed.EndTime = prior.EndTime
	}
	if parsed.Location == "" {
		parsed.Location = prior.Location
	}
	if len(parsed.Participants) == 0 {
		parsed.Participants = prior.Participants
	}
	if len(parsed.Resources) == 0 {
		parsed.Resources = prior.Resources
	}
	if parsed.RecurrenceRule == "" {
		parsed.RecurrenceRule = prior.RecurrenceRule
	}
}

// parseConfidence scores parse completeness locally: field presence raises
// it, very short input lowers it. The score drives routing only.
func parseConfidence(parsed *state.ParsedEvent, input string) float64 {
	confidence := 0.5

	if parsed.Intent != "" {
		confidence += 0.1
	}
	if parsed.Title != "" {
		confidence += 0.1
	}
	if parsed.StartTime != nil {
		confidence += 0.15
	}
	if len(parsed.Participants) > 0 {
		confidence += 0.1
	}
	if len(input) < 10 {
		confidence -= 0.2
	}

	if confidence > 1 {
		confidence = 1
	}
	if confidence < 0 {
		confidence = 0
	}
	return confidence
}
