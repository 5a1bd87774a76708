package nodes

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/llm"
	"github.com/hearthlabs/scheduler/internal/metrics"
	"github.com/hearthlabs/scheduler/internal/state"
)

// Query answers an informational request over fetched schedule data and
// always completes the turn. The model's answer is user-facing prose; it
// never drives a state transition.
func (n *Nodes) Query(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing query node",
		zap.String("conversation_id", st.ConversationID))

	windowStart := n.now()
	windowEnd := windowStart.Add(n.searchWindow())

	events, err := n.Calendar.EventsInRange(ctx, windowStart, windowEnd)
	if err != nil {
		return n.failExternal(state.StepQuery, err)
	}

	prompt := llm.QueryPrompt(st.RawInput, events, windowStart, windowEnd)
	answer, err := n.LLM.Complete(ctx, prompt)
	if err != nil {
		metrics.LLMCalls.WithLabelValues("query", "error").Inc()
		return n.fail(state.StepQuery, "agent_failure",
			fmt.Sprintf("failed to answer query: %v", err), true)
	}
	metrics.LLMCalls.WithLabelValues("query", "ok").Inc()

	confidence := 0.85
	if len(events) > 0 {
		confidence = 0.9
	}
	explanation := fmt.Sprintf("Answered schedule query over %d events", len(events))

	n.Logger.Info("Query completed",
		zap.String("conversation_id", st.ConversationID),
		zap.Int("events", len(events)))

	return state.Delta{
		Step:   state.StepQuery,
		Status: state.StatusCompleted,
		Output: n.output(state.OutputData{Query: &state.QueryData{
			QueryType:   "schedule",
			Response:    answer,
			EventsFound: len(events),
			WindowStart: windowStart,
			WindowEnd:   windowEnd,
		}}, explanation, confidence,
			"Fetched calendar events and answered via the reasoning capability"),
		Messages: []state.Message{{Role: "assistant", Content: answer, Timestamp: n.now()}},
	}
}
