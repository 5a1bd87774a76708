package workflow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/checkpoint"
	"github.com/hearthlabs/scheduler/internal/family"
	"github.com/hearthlabs/scheduler/internal/llm"
	"github.com/hearthlabs/scheduler/internal/nodes"
	"github.com/hearthlabs/scheduler/internal/resolution"
	"github.com/hearthlabs/scheduler/internal/state"
)

// engineNow is a Monday morning; the "requested" scenarios use Thursday
// afternoon of the same week.
var engineNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type stubDirectory struct {
	members     []family.Member
	resources   []family.Resource
	constraints map[string][]family.Constraint
}

func (s *stubDirectory) Members(ctx context.Context) ([]family.Member, error) {
	return s.members, nil
}

func (s *stubDirectory) MemberByName(ctx context.Context, name string) (*family.Member, error) {
	for _, m := range s.members {
		if strings.EqualFold(m.Name, name) {
			cp := m
			return &cp, nil
		}
	}
	return nil, family.ErrNotFound
}

func (s *stubDirectory) Resources(ctx context.Context) ([]family.Resource, error) {
	return s.resources, nil
}

func (s *stubDirectory) ResourceByName(ctx context.Context, name string) (*family.Resource, error) {
	for _, r := range s.resources {
		if strings.EqualFold(r.Name, name) {
			cp := r
			return &cp, nil
		}
	}
	return nil, family.ErrNotFound
}

func (s *stubDirectory) ConstraintsFor(ctx context.Context, memberID string) ([]family.Constraint, error) {
	return s.constraints[memberID], nil
}

func testDirectory() *stubDirectory {
	return &stubDirectory{
		members: []family.Member{
			{ID: "mem-alex", Name: "Alex", CalendarSource: "alex@family.local", Active: true},
			{ID: "mem-sam", Name: "Sam", CalendarSource: "sam@family.local", Active: true},
		},
		resources: []family.Resource{
			{ID: "res-car", Name: "Car", Capacity: 1, Active: true},
		},
	}
}

func newTestEngine(client llm.Client, cal calendar.Service, dir family.Directory) (*Engine, *checkpoint.MemoryStore) {
	logger := zap.NewNop()
	store := checkpoint.NewMemoryStore(0, 0)
	engine := &Engine{
		Nodes: &nodes.Nodes{
			LLM:      client,
			Calendar: cal,
			Family:   dir,
			Resolver: resolution.NewProposer(client, logger),
			Logger:   logger,
			Clock:    func() time.Time { return engineNow },
		},
		Store:  store,
		Logger: logger,
		Clock:  func() time.Time { return engineNow },
	}
	return engine, store
}

const dentistParseResponse = `{
	"event_type": "create",
	"title": "Dentist appointment",
	"start_time": "2026-03-05T14:00:00Z",
	"end_time": "2026-03-05T15:00:00Z",
	"participants": ["Sam"]
}`

func TestExecuteCreateHappyPath(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemoryService("family")
	engine, _ := newTestEngine(llm.NewScripted(dentistParseResponse), cal, testDirectory())

	res, err := engine.Execute(ctx, Input{
		UserID:   "user-1",
		RawInput: "Schedule a dentist appointment for Sam on Thursday at 2pm",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeEventCreated, res.Outcome)
	assert.Equal(t, state.StatusCompleted, res.State.Status)
	assert.NotEmpty(t, res.State.ConversationID, "a conversation id is minted")

	require.NotNil(t, res.State.ProposedEvent)
	assert.Equal(t, "confirmed", res.State.ProposedEvent.Status)
	assert.Equal(t, "Dentist appointment", res.State.ProposedEvent.Title)

	// The event really landed on the calendar.
	events, err := cal.EventsInRange(ctx,
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, []string{"Sam"}, events[0].Attendees)

	// Every hop is on the audit trail.
	var transitions []string
	for _, entry := range res.State.AuditLog {
		if entry.Action == "transition" {
			transitions = append(transitions, entry.From.String()+">"+entry.To.String())
		}
	}
	assert.Equal(t, []string{
		"start>parse",
		"parse>schedule",
		"schedule>check_resources",
		"check_resources>detect_conflicts",
		"detect_conflicts>auto_confirm",
		"auto_confirm>end",
	}, transitions)
	assert.NotEmpty(t, res.Summary)
}

func TestExecuteConflictPath(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemoryService("family")
	cal.Seed(calendar.Event{
		Title:     "Standup",
		Start:     time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC),
		Attendees: []string{"Alex"},
	})

	parseResponse := `{
		"event_type": "create",
		"title": "Budget review",
		"start_time": "2026-03-05T14:00:00Z",
		"end_time": "2026-03-05T15:00:00Z",
		"participants": ["Alex"]
	}`
	resolutionResponse := `{
		"proposed_resolutions": [
			{"resolution_id": "res_1", "strategy": "move", "score": 0.8, "description": "Move the review to 4pm"},
			{"resolution_id": "res_2", "strategy": "shorten", "score": 0.5, "description": "Shorten to 30 minutes"}
		],
		"recommended_resolution": "res_1"
	}`
	engine, _ := newTestEngine(llm.NewScripted(parseResponse, resolutionResponse), cal, testDirectory())

	res, err := engine.Execute(ctx, Input{
		UserID:   "user-1",
		RawInput: "Schedule a budget review with Alex on Thursday at 2pm",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAwaitingResolution, res.Outcome)
	assert.Equal(t, state.StatusAwaitingUser, res.State.Status)

	require.True(t, res.State.DetectedConflicts.HasConflicts())
	assert.NotEmpty(t, res.State.DetectedConflicts.BlockingIDs)

	out, ok := res.State.Output(state.StepResolve)
	require.True(t, ok)
	require.NotNil(t, out.Data.Resolution)
	assert.GreaterOrEqual(t, len(out.Data.Resolution.Proposed), 2)
	assert.Equal(t, "res_1", out.Data.Resolution.Recommended)

	// Nothing was committed to the calendar.
	events, err := cal.EventsInRange(ctx,
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, events, 1, "only the seeded event remains")
}

func TestExecuteConflictFallbackResolutions(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemoryService("family")
	cal.Seed(calendar.Event{
		Title:     "Standup",
		Start:     time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC),
		Attendees: []string{"Alex"},
	})

	parseResponse := `{
		"event_type": "create",
		"title": "Budget review",
		"start_time": "2026-03-05T14:00:00Z",
		"participants": ["Alex"]
	}`
	// The resolution response is garbage; the deterministic fallback
	// still hands the user real options.
	engine, _ := newTestEngine(llm.NewScripted(parseResponse, "no json here"), cal, testDirectory())

	res, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Budget review with Alex Thursday 2pm"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAwaitingResolution, res.Outcome)
	out, _ := res.State.Output(state.StepResolve)
	require.NotNil(t, out.Data.Resolution)
	assert.GreaterOrEqual(t, len(out.Data.Resolution.Proposed), 2)
	assert.Equal(t, "res_move", out.Data.Resolution.Recommended)
}

func TestExecuteInvertedEndTimeStillDetectsConflicts(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemoryService("family")
	cal.Seed(calendar.Event{
		Title:     "School pickup",
		Start:     time.Date(2026, 3, 5, 15, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 3, 5, 15, 30, 0, 0, time.UTC),
		Attendees: []string{"Alex"},
	})

	// The generator swapped the bounds; the event must still cover the
	// requested hour, not an inverted range that slips past detection.
	parseResponse := `{
		"event_type": "create",
		"title": "Budget review",
		"start_time": "2026-03-05T15:00:00Z",
		"end_time": "2026-03-05T14:00:00Z",
		"participants": ["Alex"]
	}`
	engine, _ := newTestEngine(llm.NewScripted(parseResponse, "no json here"), cal, testDirectory())

	res, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Budget review with Alex Thursday at 3pm"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAwaitingResolution, res.Outcome)
	require.True(t, res.State.DetectedConflicts.HasConflicts())

	// Nothing was committed, and nothing with End before Start exists.
	events, err := cal.EventsInRange(ctx,
		time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, events, 1, "only the seeded event remains")
	for _, ev := range events {
		assert.True(t, ev.End.After(ev.Start))
	}
}

func TestExecuteLowConfidenceAsksForClarification(t *testing.T) {
	ctx := context.Background()
	engine, _ := newTestEngine(
		llm.NewScripted(`{"event_type": "create"}`),
		calendar.NewMemoryService("family"), testDirectory())

	res, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "schedule something"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAwaitingClarification, res.Outcome)
	assert.Equal(t, state.StatusAwaitingUser, res.State.Status)
	assert.Contains(t, res.Message, "event title")
	assert.Contains(t, res.Message, "start time")
}

func TestExecuteClarifyThenComplete(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemoryService("family")
	engine, store := newTestEngine(
		llm.NewScripted(`{"event_type": "create"}`, dentistParseResponse),
		cal, testDirectory())

	first, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "schedule something"})
	require.NoError(t, err)
	require.Equal(t, OutcomeAwaitingClarification, first.Outcome)

	// The checkpoint survives between turns.
	_, err = store.Get(ctx, first.State.ConversationID)
	require.NoError(t, err)

	second, err := engine.Execute(ctx, Input{
		ConversationID: first.State.ConversationID,
		UserID:         "user-1",
		RawInput:       "A dentist appointment for Sam on Thursday at 2pm",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeEventCreated, second.Outcome)
	assert.Equal(t, first.State.ConversationID, second.State.ConversationID)

	// History accumulated across both turns.
	assert.GreaterOrEqual(t, len(second.State.Messages), 3)
	assert.Zero(t, second.State.RetryCount, "answering a clarification is not a retry")
}

func TestExecuteQueryIntent(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemoryService("family")
	cal.Seed(calendar.Event{
		Title:     "Soccer practice",
		Start:     engineNow.Add(48 * time.Hour),
		End:       engineNow.Add(49 * time.Hour),
		Attendees: []string{"Sam"},
	})

	// Intent plus title lands exactly on the routing threshold.
	engine, _ := newTestEngine(
		llm.NewScripted(
			`{"event_type": "query", "title": "soccer practice"}`,
			"Soccer practice is on Wednesday at 9am."),
		cal, testDirectory())

	res, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "When is soccer practice this week?"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeQueryAnswered, res.Outcome)
	assert.Equal(t, state.StatusCompleted, res.State.Status)
	assert.Equal(t, "Soccer practice is on Wednesday at 9am.", res.Message)

	out, ok := res.State.Output(state.StepQuery)
	require.True(t, ok)
	assert.Equal(t, 1, out.Data.Query.EventsFound)
}

func TestExecuteUnknownResourceRoutesToClarify(t *testing.T) {
	ctx := context.Background()
	parseResponse := `{
		"event_type": "create",
		"title": "Movie night",
		"start_time": "2026-03-05T19:00:00Z",
		"participants": ["Sam"],
		"resources": ["Projector"]
	}`
	engine, _ := newTestEngine(llm.NewScripted(parseResponse),
		calendar.NewMemoryService("family"), testDirectory())

	res, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Movie night Thursday 7pm with Sam using the projector"})
	require.NoError(t, err)

	assert.Equal(t, OutcomeAwaitingClarification, res.Outcome)
	assert.Contains(t, res.Message, "Projector")
}

func TestExecuteReasoningFailureFailsTurn(t *testing.T) {
	ctx := context.Background()
	client := llm.NewScripted()
	client.Err = errors.New("capability unavailable")
	engine, _ := newTestEngine(client, calendar.NewMemoryService("family"), testDirectory())

	res, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Schedule dinner on Friday"})
	require.NoError(t, err, "a failed turn is a result, not an engine error")

	assert.Equal(t, OutcomeError, res.Outcome)
	assert.Equal(t, state.StatusFailed, res.State.Status)
	require.NotEmpty(t, res.State.Errors)
	assert.Equal(t, "agent_failure", res.State.Errors[0].ErrorType)
	assert.True(t, res.State.Errors[0].Retryable)
}

func TestExecuteRetryAfterFailure(t *testing.T) {
	ctx := context.Background()
	client := llm.NewScripted(dentistParseResponse)
	client.Err = errors.New("capability unavailable")
	engine, _ := newTestEngine(client, calendar.NewMemoryService("family"), testDirectory())

	first, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Dentist for Sam Thursday 2pm"})
	require.NoError(t, err)
	require.Equal(t, OutcomeError, first.Outcome)

	// The capability recovers; retrying the same conversation succeeds.
	client.Err = nil
	second, err := engine.Execute(ctx, Input{
		ConversationID: first.State.ConversationID,
		UserID:         "user-1",
		RawInput:       "Dentist for Sam Thursday 2pm",
	})
	require.NoError(t, err)

	assert.Equal(t, OutcomeEventCreated, second.Outcome)
	assert.Equal(t, 1, second.State.RetryCount)
}

func TestExecuteConversationsAreIsolated(t *testing.T) {
	ctx := context.Background()
	cal := calendar.NewMemoryService("family")
	engine, _ := newTestEngine(llm.NewScripted(dentistParseResponse, `{
		"event_type": "create",
		"title": "Grocery run",
		"start_time": "2026-03-06T10:00:00Z",
		"participants": ["Alex"]
	}`), cal, testDirectory())

	first, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Dentist for Sam Thursday at 2pm"})
	require.NoError(t, err)
	second, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Grocery run with Alex Friday at 10am"})
	require.NoError(t, err)

	assert.NotEqual(t, first.State.ConversationID, second.State.ConversationID)

	// The second conversation's history carries nothing from the first:
	// its audit log is a single fresh turn, not an accumulation, and its
	// messages never mention the first request.
	assert.Equal(t, len(first.State.AuditLog), len(second.State.AuditLog))
	require.Len(t, second.State.Messages, 2, "one user message, one confirmation")
	for _, msg := range second.State.Messages {
		assert.NotContains(t, msg.Content, "Dentist")
		assert.NotContains(t, msg.Content, "Sam")
	}
	require.NotNil(t, second.State.ProposedEvent)
	assert.Equal(t, "Grocery run", second.State.ProposedEvent.Title)
}

func TestExecuteEmptyInput(t *testing.T) {
	engine, _ := newTestEngine(llm.NewScripted(), calendar.NewMemoryService("family"), testDirectory())
	_, err := engine.Execute(context.Background(), Input{UserID: "user-1"})
	assert.Error(t, err)
}

func TestExecutePersistsTerminalState(t *testing.T) {
	ctx := context.Background()
	engine, store := newTestEngine(llm.NewScripted(dentistParseResponse),
		calendar.NewMemoryService("family"), testDirectory())

	res, err := engine.Execute(ctx, Input{UserID: "user-1", RawInput: "Dentist for Sam Thursday 2pm"})
	require.NoError(t, err)

	persisted, err := store.Get(ctx, res.State.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, state.StatusCompleted, persisted.Status)
	assert.Equal(t, state.StepEnd, persisted.CurrentStep)
	require.NotNil(t, persisted.ProposedEvent)
}
