package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/checkpoint"
	"github.com/hearthlabs/scheduler/internal/metrics"
	"github.com/hearthlabs/scheduler/internal/nodes"
	"github.com/hearthlabs/scheduler/internal/state"
)

// maxStepsPerTurn bounds a single turn; the longest legal path is seven
// steps, so hitting the bound means the router is broken.
const maxStepsPerTurn = 12

// Input is one user turn.
type Input struct {
	ConversationID string
	UserID         string
	RawInput       string
}

// Engine drives a turn through the step graph: load or create the
// conversation state, execute nodes as the router directs, persist the
// result. The engine owns no step logic of its own.
type Engine struct {
	Nodes  *nodes.Nodes
	Store  checkpoint.Store
	Logger *zap.Logger

	// Clock is injectable for deterministic tests; nil means time.Now.
	Clock func() time.Time
}

func (e *Engine) now() time.Time {
	if e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// Execute runs one conversation turn to a terminal status and persists the
// resulting state. A missing conversation id starts a fresh conversation.
func (e *Engine) Execute(ctx context.Context, in Input) (*Result, error) {
	if in.RawInput == "" {
		return nil, errors.New("workflow: empty input")
	}

	start := e.now()
	metrics.TurnsStarted.Inc()

	st, err := e.loadOrCreate(ctx, in, start)
	if err != nil {
		return nil, err
	}

	e.Logger.Info("Turn started",
		zap.String("conversation_id", st.ConversationID),
		zap.String("user_id", st.UserID),
		zap.Int("retry_count", st.RetryCount))

	cur := state.StepStart
	for i := 0; i < maxStepsPerTurn; i++ {
		next, err := Next(cur, st)
		if err != nil {
			return nil, fmt.Errorf("workflow: route from %s: %w", cur, err)
		}
		st.RecordTransition(cur, next, e.now())
		if next == state.StepEnd {
			cur = next
			break
		}

		delta := e.runNode(ctx, next, st)
		st.Apply(delta, e.now())
		cur = next
	}
	if cur != state.StepEnd {
		return nil, fmt.Errorf("workflow: turn exceeded %d steps", maxStepsPerTurn)
	}
	st.CurrentStep = state.StepEnd
	if st.Status == state.StatusInProgress {
		st.Status = state.StatusCompleted
	}

	if err := e.Store.Put(ctx, st); err != nil {
		// The turn itself succeeded; losing the checkpoint only costs
		// resumability, so report it on the result rather than failing.
		e.Logger.Error("Checkpoint write failed",
			zap.String("conversation_id", st.ConversationID),
			zap.Error(err))
	}

	res := Classify(st)
	metrics.TurnsCompleted.WithLabelValues(res.Outcome).Inc()
	metrics.TurnDuration.Observe(e.now().Sub(start).Seconds())

	e.Logger.Info("Turn completed",
		zap.String("conversation_id", st.ConversationID),
		zap.String("outcome", res.Outcome),
		zap.String("status", string(st.Status)))
	return res, nil
}

func (e *Engine) loadOrCreate(ctx context.Context, in Input, now time.Time) (*state.State, error) {
	if in.ConversationID == "" {
		st := state.New(uuid.NewString(), in.UserID, in.RawInput, now)
		st.Messages = append(st.Messages, state.Message{Role: "user", Content: in.RawInput, Timestamp: now})
		return st, nil
	}

	st, err := e.Store.Get(ctx, in.ConversationID)
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		st = state.New(in.ConversationID, in.UserID, in.RawInput, now)
	case err != nil:
		return nil, fmt.Errorf("workflow: load checkpoint: %w", err)
	default:
		st.BeginTurn(in.RawInput, now)
	}
	st.Messages = append(st.Messages, state.Message{Role: "user", Content: in.RawInput, Timestamp: now})
	return st, nil
}

// runNode dispatches one step and converts a node panic into a recorded
// failure so a single bad turn cannot take the engine down.
func (e *Engine) runNode(ctx context.Context, step state.Step, st *state.State) (delta state.Delta) {
	begin := e.now()
	defer func() {
		metrics.NodeDuration.WithLabelValues(step.String()).Observe(e.now().Sub(begin).Seconds())
		if r := recover(); r != nil {
			e.Logger.Error("Node panicked",
				zap.String("step", step.String()),
				zap.String("conversation_id", st.ConversationID),
				zap.Any("panic", r))
			delta = state.Delta{
				Step:   step,
				Status: state.StatusFailed,
				Err: &state.ErrorInfo{
					Step:      step,
					ErrorType: "panic",
					Message:   fmt.Sprintf("node %s panicked: %v", step, r),
					Retryable: false,
					Timestamp: e.now(),
				},
			}
		}
	}()

	switch step {
	case state.StepParse:
		return e.Nodes.Parse(ctx, st)
	case state.StepSchedule:
		return e.Nodes.Schedule(ctx, st)
	case state.StepCheckResources:
		return e.Nodes.CheckResources(ctx, st)
	case state.StepDetectConflicts:
		return e.Nodes.DetectConflicts(ctx, st)
	case state.StepResolve:
		return e.Nodes.Resolve(ctx, st)
	case state.StepQuery:
		return e.Nodes.Query(ctx, st)
	case state.StepAutoConfirm:
		return e.Nodes.AutoConfirm(ctx, st)
	case state.StepClarify:
		return e.Nodes.Clarify(ctx, st)
	default:
		return state.Delta{
			Step:   step,
			Status: state.StatusFailed,
			Err: &state.ErrorInfo{
				Step:      step,
				ErrorType: "data_integrity",
				Message:   fmt.Sprintf("no action registered for step %s", step),
				Retryable: false,
				Timestamp: e.now(),
			},
		}
	}
}
