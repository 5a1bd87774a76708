// Package resolution proposes ranked alternatives for detected conflicts.
// Generation is delegated to the reasoning capability; its output passes
// the validating decoder before anything reaches workflow state, and a
// deterministic fallback covers generator failure.
package resolution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/llm"
	"github.com/hearthlabs/scheduler/internal/state"
)

// Proposer generates conflict resolutions.
type Proposer struct {
	client llm.Client
	logger *zap.Logger
}

// NewProposer returns a proposer backed by the given reasoning client.
func NewProposer(client llm.Client, logger *zap.Logger) *Proposer {
	return &Proposer{client: client, logger: logger}
}

// Propose returns 2-4 ranked resolutions for the conflicts. The second
// return value reports whether the proposals came from the validated model
// response; false means the deterministic fallback was used.
func (p *Proposer) Propose(ctx context.Context, conflicts []state.Conflict, request *state.ParsedEvent, nearby []calendar.Event) (*state.ResolutionData, bool) {
	prompt := llm.ResolutionPrompt(conflicts, request, nearby)

	text, err := p.client.Complete(ctx, prompt)
	if err != nil {
		p.logger.Warn("Resolution generation failed, using fallback", zap.Error(err))
		return Fallback(conflicts, request), false
	}

	data, err := llm.DecodeResolutions(text)
	if err != nil {
		p.logger.Warn("Resolution response rejected by decoder, using fallback", zap.Error(err))
		return Fallback(conflicts, request), false
	}
	return data, true
}

// Fallback builds deterministic resolutions straight from the conflicts:
// move the new event, or shorten it when times are known.
func Fallback(conflicts []state.Conflict, request *state.ParsedEvent) *state.ResolutionData {
	resolved := make([]string, 0, len(conflicts))
	for _, c := range conflicts {
		resolved = append(resolved, c.ID)
	}

	title := "the event"
	if request != nil && request.Title != "" {
		title = fmt.Sprintf("%q", request.Title)
	}

	proposed := []state.ProposedResolution{
		{
			ID:                "res_move",
			Strategy:          state.StrategyMove,
			Score:             0.8,
			Description:       fmt.Sprintf("Reschedule %s to the next free slot", title),
			ConflictsResolved: resolved,
		},
		{
			ID:                "res_cancel",
			Strategy:          state.StrategyCancel,
			Score:             0.3,
			Description:       fmt.Sprintf("Cancel %s", title),
			ConflictsResolved: resolved,
		},
	}

	if request != nil && request.StartTime != nil && request.EndTime != nil &&
		request.EndTime.Sub(*request.StartTime) > 30*time.Minute {
		proposed = append(proposed, state.ProposedResolution{
			ID:       "res_shorten",
			Strategy: state.StrategyShorten,
			Score:    0.5,
			Description: fmt.Sprintf("Shorten %s to reduce the overlap", title),
			Changes: []state.FieldChange{{
				Field:    "end_time",
				OldValue: request.EndTime.Format(time.RFC3339),
				Action:   "shorten",
			}},
			ConflictsResolved: resolved,
		})
	}

	// Keep ranked order: move, shorten (if present), cancel.
	if len(proposed) == 3 {
		proposed[1], proposed[2] = proposed[2], proposed[1]
	}

	return &state.ResolutionData{Proposed: proposed, Recommended: "res_move"}
}
