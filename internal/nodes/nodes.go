// Package nodes implements the workflow step actions. Each node maps the
// current state to a partial delta and never panics outward: internal
// faults become error records with a failed status, and external-capability
// failures are caught exactly at the node boundary.
package nodes

import (
	"time"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/availability"
	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/family"
	"github.com/hearthlabs/scheduler/internal/llm"
	"github.com/hearthlabs/scheduler/internal/metrics"
	"github.com/hearthlabs/scheduler/internal/resolution"
	"github.com/hearthlabs/scheduler/internal/state"
)

// Nodes bundles the collaborators every step action shares.
type Nodes struct {
	LLM      llm.Client
	Calendar calendar.Service
	Family   family.Directory
	Resolver *resolution.Proposer
	Logger   *zap.Logger

	// Clock is injectable for deterministic tests; nil means time.Now.
	Clock func() time.Time

	// SearchWindowDays bounds the slot search when no time was given;
	// zero means 7.
	SearchWindowDays int

	// Slots tunes the availability resolver.
	Slots availability.Options
}

func (n *Nodes) now() time.Time {
	if n.Clock != nil {
		return n.Clock()
	}
	return time.Now().UTC()
}

func (n *Nodes) searchWindow() time.Duration {
	days := n.SearchWindowDays
	if days <= 0 {
		days = 7
	}
	return time.Duration(days) * 24 * time.Hour
}

// output builds the standard hybrid step output.
func (n *Nodes) output(data state.OutputData, explanation string, confidence float64, reasoning string) *state.StepOutput {
	return &state.StepOutput{
		Data:        data,
		Explanation: explanation,
		Confidence:  confidence,
		Reasoning:   reasoning,
		Timestamp:   n.now(),
	}
}

// fail converts a node-boundary failure into a state error record plus a
// failed status; it is the only way a node reports a fault.
func (n *Nodes) fail(step state.Step, errType, msg string, retryable bool) state.Delta {
	metrics.NodeErrors.WithLabelValues(step.String(), errType).Inc()
	return state.Delta{
		Step:   step,
		Status: state.StatusFailed,
		Err: &state.ErrorInfo{
			Step:      step,
			ErrorType: errType,
			Message:   msg,
			Retryable: retryable,
			Timestamp: n.now(),
		},
	}
}

// failExternal classifies a calendar-capability failure using the error
// taxonomy before recording it.
func (n *Nodes) failExternal(step state.Step, err error) state.Delta {
	return n.fail(step, calendar.Kind(err), err.Error(), calendar.Retryable(err))
}
