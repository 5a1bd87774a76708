// Package conflict detects scheduling conflicts for a candidate slot. The
// detector is pure: all availability and constraint data is assembled by
// the caller, so detection itself never performs I/O.
package conflict

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/family"
	"github.com/hearthlabs/scheduler/internal/state"
)

// ResourceRequest pairs a requested resource with the quantity needed and
// the capacity already reserved during the candidate slot.
type ResourceRequest struct {
	Resource family.Resource
	Quantity int
	Reserved int
}

// Input carries everything the detector compares the candidate against.
type Input struct {
	Slot         state.TimeSlot
	Participants []family.Member
	Resources    []ResourceRequest

	// CommitmentsByParticipant maps member id to the events that overlap
	// the candidate slot.
	CommitmentsByParticipant map[string][]calendar.Event

	// ConstraintsByParticipant maps member id to the member's active
	// constraints, family-wide ones included.
	ConstraintsByParticipant map[string][]family.Constraint
}

// Detect compares the candidate slot against known commitments, resource
// capacity and constraints. A conflict is blocking only when it is a
// hard-constraint violation or a double-booking of a required participant.
func Detect(in Input) []state.Conflict {
	var conflicts []state.Conflict

	for _, member := range in.Participants {
		for _, ev := range in.CommitmentsByParticipant[member.ID] {
			if ev.Status == "cancelled" {
				continue
			}
			if !ev.Start.Before(in.Slot.End) || !ev.End.After(in.Slot.Start) {
				continue
			}
			conflicts = append(conflicts, state.Conflict{
				ID:           uuid.New().String(),
				Type:         state.ConflictTime,
				Severity:     state.SeverityHigh,
				EventID:      ev.ID,
				EventTitle:   ev.Title,
				Participants: []string{member.ID},
				Blocking:     true,
				Details: fmt.Sprintf("%s is already committed to %q (%s - %s)",
					member.Name, ev.Title,
					ev.Start.Format("15:04"), ev.End.Format("15:04")),
			})
		}
	}

	for _, req := range in.Resources {
		quantity := req.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		if !req.Resource.Active {
			conflicts = append(conflicts, state.Conflict{
				ID:         uuid.New().String(),
				Type:       state.ConflictResource,
				Severity:   state.SeverityMedium,
				ResourceID: req.Resource.ID,
				Details:    fmt.Sprintf("resource %q is inactive", req.Resource.Name),
			})
			continue
		}
		if remaining := req.Resource.Capacity - req.Reserved; quantity > remaining {
			conflicts = append(conflicts, state.Conflict{
				ID:         uuid.New().String(),
				Type:       state.ConflictResource,
				Severity:   state.SeverityMedium,
				ResourceID: req.Resource.ID,
				Details: fmt.Sprintf("resource %q has %d of %d capacity left, %d requested",
					req.Resource.Name, max(remaining, 0), req.Resource.Capacity, quantity),
			})
		}
	}

	for _, member := range in.Participants {
		for _, c := range in.ConstraintsByParticipant[member.ID] {
			if !c.Violated(in.Slot.Start, in.Slot.End) {
				continue
			}
			severity := state.SeverityLow
			blocking := false
			if c.Level == family.LevelHard {
				severity = state.SeverityHigh
				blocking = true
			}
			conflicts = append(conflicts, state.Conflict{
				ID:           uuid.New().String(),
				Type:         state.ConflictConstraint,
				Severity:     severity,
				Participants: []string{member.ID},
				ConstraintID: c.ID,
				Blocking:     blocking,
				Details:      fmt.Sprintf("violates %s constraint %q", c.Level, c.Name),
			})
		}
	}

	return conflicts
}

// NewSet wraps detected conflicts into the state representation, recording
// blocking ids for quick routing checks.
func NewSet(conflicts []state.Conflict) *state.ConflictSet {
	set := &state.ConflictSet{Conflicts: conflicts}
	for _, c := range conflicts {
		if c.Blocking {
			set.BlockingIDs = append(set.BlockingIDs, c.ID)
		}
	}
	return set
}
