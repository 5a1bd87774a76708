package state

import (
	"fmt"
	"time"
)

// Status is the lifecycle status of a conversation turn.
type Status string

const (
	StatusInProgress   Status = "in_progress"
	StatusAwaitingUser Status = "awaiting_user"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Terminal reports whether the status ends the current turn.
func (s Status) Terminal() bool {
	return s == StatusAwaitingUser || s == StatusCompleted || s == StatusFailed
}

// Step identifies one node in the workflow graph. The set is closed:
// the router matches it exhaustively and the engine rejects anything else.
type Step int

const (
	StepStart Step = iota
	StepParse
	StepSchedule
	StepCheckResources
	StepDetectConflicts
	StepResolve
	StepQuery
	StepAutoConfirm
	StepClarify
	StepEnd
)

var stepNames = map[Step]string{
	StepStart:           "start",
	StepParse:           "parse",
	StepSchedule:        "schedule",
	StepCheckResources:  "check_resources",
	StepDetectConflicts: "detect_conflicts",
	StepResolve:         "resolve",
	StepQuery:           "query",
	StepAutoConfirm:     "auto_confirm",
	StepClarify:         "clarify",
	StepEnd:             "end",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// MarshalText lets Step serve as a JSON map key in the outputs map.
func (s Step) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Step) UnmarshalText(text []byte) error {
	name := string(text)
	for step, n := range stepNames {
		if n == name {
			*s = step
			return nil
		}
	}
	return fmt.Errorf("unknown workflow step %q", name)
}

// Intent is the parsed purpose of a user request.
type Intent string

const (
	IntentCreate Intent = "create"
	IntentModify Intent = "modify"
	IntentCancel Intent = "cancel"
	IntentQuery  Intent = "query"
)

// ParsedEvent is the structured result of natural-language parsing.
type ParsedEvent struct {
	Intent         Intent     `json:"intent"`
	Title          string     `json:"title,omitempty"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	Location       string     `json:"location,omitempty"`
	Participants   []string   `json:"participants,omitempty"`
	Resources      []string   `json:"resources,omitempty"`
	RecurrenceRule string     `json:"recurrence_rule,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	Flexibility    string     `json:"flexibility,omitempty"`
}

// TimeSlot is one candidate window for an event.
type TimeSlot struct {
	Start                 time.Time `json:"start"`
	End                   time.Time `json:"end"`
	Score                 float64   `json:"score"`
	AvailableParticipants []string  `json:"available_participants,omitempty"`
	ConstraintViolations  []string  `json:"constraint_violations,omitempty"`
}

// ScheduleData is the scheduling step output.
type ScheduleData struct {
	Candidates  []TimeSlot `json:"candidates"`
	Recommended *time.Time `json:"recommended,omitempty"`
}

// ResourceAvailability describes one requested resource at the selected slot.
type ResourceAvailability struct {
	ResourceID        string   `json:"resource_id"`
	ResourceName      string   `json:"resource_name"`
	Available         bool     `json:"available"`
	AvailableCapacity int      `json:"available_capacity"`
	TotalCapacity     int      `json:"total_capacity"`
	ConflictingEvents []string `json:"conflicting_events,omitempty"`
}

// ResourceData is the resource-check step output.
type ResourceData struct {
	Availability []ResourceAvailability `json:"availability"`
	AllAvailable bool                   `json:"all_available"`
}

// ConflictType classifies a detected conflict.
type ConflictType string

const (
	ConflictTime       ConflictType = "time"
	ConflictResource   ConflictType = "resource"
	ConflictConstraint ConflictType = "constraint"
)

// Severity grades conflict impact.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Conflict is one detected scheduling conflict.
type Conflict struct {
	ID           string       `json:"id"`
	Type         ConflictType `json:"type"`
	Severity     Severity     `json:"severity"`
	EventID      string       `json:"event_id,omitempty"`
	EventTitle   string       `json:"event_title,omitempty"`
	Participants []string     `json:"participants,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`
	ConstraintID string       `json:"constraint_id,omitempty"`
	Blocking     bool         `json:"blocking"`
	Details      string       `json:"details,omitempty"`
}

// ConflictSet is the conflict-detection step output.
type ConflictSet struct {
	Conflicts   []Conflict `json:"conflicts"`
	BlockingIDs []string   `json:"blocking_ids,omitempty"`
}

// HasConflicts reports whether any conflict was detected.
func (c *ConflictSet) HasConflicts() bool {
	return c != nil && len(c.Conflicts) > 0
}

// Strategy names a conflict-resolution approach.
type Strategy string

const (
	StrategyMove                Strategy = "move"
	StrategyShorten             Strategy = "shorten"
	StrategySplit               Strategy = "split"
	StrategyCancel              Strategy = "cancel"
	StrategyOverrideConstraint  Strategy = "override_constraint"
	StrategyAlternativeResource Strategy = "alternative_resource"
	StrategySwapParticipants    Strategy = "swap_participants"
	StrategySuggestVirtual      Strategy = "suggest_virtual"
)

// KnownStrategy reports whether s is one of the closed strategy names.
func KnownStrategy(s Strategy) bool {
	switch s {
	case StrategyMove, StrategyShorten, StrategySplit, StrategyCancel,
		StrategyOverrideConstraint, StrategyAlternativeResource,
		StrategySwapParticipants, StrategySuggestVirtual:
		return true
	}
	return false
}

// FieldChange is one concrete edit a resolution would make.
type FieldChange struct {
	EventID  string `json:"event_id,omitempty"`
	Field    string `json:"field,omitempty"`
	OldValue string `json:"old_value,omitempty"`
	NewValue string `json:"new_value,omitempty"`
	Action   string `json:"action,omitempty"`
}

// ProposedResolution is one ranked alternative offered to the user.
type ProposedResolution struct {
	ID                string        `json:"id"`
	Strategy          Strategy      `json:"strategy"`
	Score             float64       `json:"score"`
	Description       string        `json:"description"`
	Changes           []FieldChange `json:"changes,omitempty"`
	SideEffects       []string      `json:"side_effects,omitempty"`
	ConflictsResolved []string      `json:"conflicts_resolved,omitempty"`
}

// ResolutionData is the resolution step output.
type ResolutionData struct {
	Proposed    []ProposedResolution `json:"proposed"`
	Recommended string               `json:"recommended,omitempty"`
}

// QueryData is the query step output.
type QueryData struct {
	QueryType   string    `json:"query_type"`
	Response    string    `json:"response"`
	EventsFound int       `json:"events_found"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
}

// ClarifyData is the clarification step output.
type ClarifyData struct {
	Message       string   `json:"message"`
	MissingFields []string `json:"missing_fields,omitempty"`
}

// ProposedEvent is an event that has been committed (or staged) on the
// calendar as part of this conversation.
type ProposedEvent struct {
	EventID        string    `json:"event_id"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Location       string    `json:"location,omitempty"`
	Participants   []string  `json:"participants,omitempty"`
	Resources      []string  `json:"resources,omitempty"`
	RecurrenceRule string    `json:"recurrence_rule,omitempty"`
	Status         string    `json:"status"`
	CalendarID     string    `json:"calendar_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// ConfirmData is the auto-confirm step output.
type ConfirmData struct {
	Event ProposedEvent `json:"event"`
}

// OutputData is a tagged union keyed by the producing step: exactly one
// field is set for any given StepOutput.
type OutputData struct {
	Parse      *ParsedEvent    `json:"parse,omitempty"`
	Schedule   *ScheduleData   `json:"schedule,omitempty"`
	Resources  *ResourceData   `json:"resources,omitempty"`
	Conflicts  *ConflictSet    `json:"conflicts,omitempty"`
	Resolution *ResolutionData `json:"resolution,omitempty"`
	Query      *QueryData      `json:"query,omitempty"`
	Confirm    *ConfirmData    `json:"confirm,omitempty"`
	Clarify    *ClarifyData    `json:"clarify,omitempty"`
}

// StepOutput is the standard hybrid output every node records: structured
// data for routing plus a human explanation and a confidence score.
type StepOutput struct {
	Data        OutputData `json:"data"`
	Explanation string     `json:"explanation"`
	Confidence  float64    `json:"confidence"`
	Reasoning   string     `json:"reasoning,omitempty"`
	Timestamp   time.Time  `json:"timestamp"`
}

// AuditEntry is one append-only record of a node invocation or a routing
// transition. Entries are never removed or reordered.
type AuditEntry struct {
	Step        Step      `json:"step"`
	Action      string    `json:"action,omitempty"` // "" for node entries, "transition" for routing
	From        Step      `json:"from,omitempty"`
	To          Step      `json:"to,omitempty"`
	Confidence  *float64  `json:"confidence,omitempty"`
	Explanation string    `json:"explanation,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// ErrorInfo records a node-boundary failure.
type ErrorInfo struct {
	Step      Step      `json:"step"`
	ErrorType string    `json:"error_type"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
}

// ValidationResult records a per-step validation outcome.
type ValidationResult struct {
	Step      Step      `json:"step"`
	Passed    bool      `json:"passed"`
	Issues    []string  `json:"issues,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Message is one entry in the conversation history.
type Message struct {
	Role      string    `json:"role"` // "user", "assistant", "system"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// State is the record threaded through every workflow step. One instance
// exists per conversation; it is persisted between turns and mutated only
// through Apply within a turn.
type State struct {
	ConversationID string `json:"conversation_id"`
	UserID         string `json:"user_id"`
	RawInput       string `json:"raw_input"`

	CurrentStep Step   `json:"current_step"`
	Status      Status `json:"status"`
	NextAction  string `json:"next_action,omitempty"`

	Messages []Message `json:"messages,omitempty"`

	Outputs           map[Step]StepOutput `json:"outputs"`
	ValidationResults []ValidationResult  `json:"validation_results,omitempty"`
	AuditLog          []AuditEntry        `json:"audit_log"`
	Errors            []ErrorInfo         `json:"errors,omitempty"`
	RetryCount        int                 `json:"retry_count"`

	// Convenience pointers filled in by specific nodes.
	Parsed            *ParsedEvent   `json:"parsed,omitempty"`
	SelectedSlot      *TimeSlot      `json:"selected_slot,omitempty"`
	DetectedConflicts *ConflictSet   `json:"detected_conflicts,omitempty"`
	ProposedEvent     *ProposedEvent `json:"proposed_event,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a fresh state for the first turn of a conversation.
func New(conversationID, userID, rawInput string, now time.Time) *State {
	return &State{
		ConversationID: conversationID,
		UserID:         userID,
		RawInput:       rawInput,
		CurrentStep:    StepStart,
		Status:         StatusInProgress,
		Outputs:        make(map[Step]StepOutput),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// ConfidenceThreshold is the minimum parse confidence that lets a request
// proceed without clarification. The boundary is inclusive: exactly the
// threshold proceeds. Routing and the clarify prompt share it so the two
// cannot disagree about what "too uncertain" means.
const ConfidenceThreshold = 0.7

// Output returns the recorded output for a step, if any.
func (s *State) Output(step Step) (StepOutput, bool) {
	out, ok := s.Outputs[step]
	return out, ok
}

// Confidence returns the confidence recorded for a step, or 0.
func (s *State) Confidence(step Step) float64 {
	if out, ok := s.Outputs[step]; ok {
		return out.Confidence
	}
	return 0
}

// RecentMessages returns the most recent n conversation messages.
func (s *State) RecentMessages(n int) []Message {
	if len(s.Messages) <= n {
		return s.Messages
	}
	return s.Messages[len(s.Messages)-n:]
}
