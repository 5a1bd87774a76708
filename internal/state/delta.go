package state

import "time"

// Delta is the partial update a node returns. Only non-zero fields are
// merged; everything the node did not touch is preserved as-is.
type Delta struct {
	Step   Step        // producing step, always set
	Output *StepOutput // recorded under Step in the outputs map
	Status Status      // "" leaves the status unchanged

	NextAction string

	Parsed            *ParsedEvent
	SelectedSlot      *TimeSlot
	DetectedConflicts *ConflictSet
	ProposedEvent     *ProposedEvent

	Validation *ValidationResult
	Err        *ErrorInfo
	Messages   []Message
}

var statusRank = map[Status]int{
	StatusInProgress:   0,
	StatusAwaitingUser: 1,
	StatusCompleted:    1,
	StatusFailed:       1,
}

// Apply merges a node delta into the state. It assigns only the keys the
// delta carries, appends exactly one audit entry for the invocation, and
// never reorders or drops existing audit-log entries. Status moves forward
// only: a terminal status is never downgraded within a turn.
func (s *State) Apply(d Delta, now time.Time) {
	s.CurrentStep = d.Step

	if d.Output != nil {
		if s.Outputs == nil {
			s.Outputs = make(map[Step]StepOutput)
		}
		s.Outputs[d.Step] = *d.Output
	}

	if d.Status != "" && statusRank[d.Status] >= statusRank[s.Status] {
		s.Status = d.Status
	}
	if d.NextAction != "" {
		s.NextAction = d.NextAction
	}
	if d.Parsed != nil {
		s.Parsed = d.Parsed
	}
	if d.SelectedSlot != nil {
		s.SelectedSlot = d.SelectedSlot
	}
	if d.DetectedConflicts != nil {
		s.DetectedConflicts = d.DetectedConflicts
	}
	if d.ProposedEvent != nil {
		s.ProposedEvent = d.ProposedEvent
	}
	if d.Validation != nil {
		s.ValidationResults = append(s.ValidationResults, *d.Validation)
	}
	if d.Err != nil {
		s.Errors = append(s.Errors, *d.Err)
	}
	if len(d.Messages) > 0 {
		s.Messages = append(s.Messages, d.Messages...)
	}

	entry := AuditEntry{
		Step:      d.Step,
		Timestamp: now,
	}
	if d.Output != nil {
		c := d.Output.Confidence
		entry.Confidence = &c
		entry.Explanation = d.Output.Explanation
	} else if d.Err != nil {
		entry.Explanation = d.Err.Message
	}
	s.AuditLog = append(s.AuditLog, entry)

	s.UpdatedAt = now
}

// RecordTransition appends a routing transition to the audit log.
func (s *State) RecordTransition(from, to Step, now time.Time) {
	s.AuditLog = append(s.AuditLog, AuditEntry{
		Step:      from,
		Action:    "transition",
		From:      from,
		To:        to,
		Timestamp: now,
	})
	s.UpdatedAt = now
}

// BeginTurn prepares a persisted state for a new turn with fresh input.
// History, outputs and the audit log carry over; the status returns to
// in_progress so routing can run again.
func (s *State) BeginTurn(rawInput string, now time.Time) {
	if s.Status == StatusFailed {
		s.RetryCount++
	}
	s.RawInput = rawInput
	s.Status = StatusInProgress
	s.CurrentStep = StepStart
	s.NextAction = ""
	s.UpdatedAt = now
}
