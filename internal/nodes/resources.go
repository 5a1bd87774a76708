package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hearthlabs/scheduler/internal/family"
	"github.com/hearthlabs/scheduler/internal/state"
)

// CheckResources verifies that every requested resource has capacity left
// at the selected slot. A resource without a tracked commitment source is
// available while active and never available while inactive.
func (n *Nodes) CheckResources(ctx context.Context, st *state.State) state.Delta {
	n.Logger.Info("Executing check_resources node",
		zap.String("conversation_id", st.ConversationID))

	parsed := st.Parsed
	if parsed == nil {
		return n.fail(state.StepCheckResources, "data_integrity",
			"no parsed event data available for resource check", false)
	}

	availabilityList := make([]state.ResourceAvailability, 0, len(parsed.Resources))
	allAvailable := true

	for _, name := range parsed.Resources {
		entry, err := n.checkOneResource(ctx, st, name)
		if err != nil {
			return n.failExternal(state.StepCheckResources, err)
		}
		if !entry.Available {
			allAvailable = false
		}
		availabilityList = append(availabilityList, entry)
	}

	confidence := 1.0
	explanation := "All requested resources are available"
	if !allAvailable {
		confidence = 0.8
		var unavailable []string
		for _, a := range availabilityList {
			if !a.Available {
				unavailable = append(unavailable, a.ResourceName)
			}
		}
		explanation = fmt.Sprintf("Unavailable resources: %s", strings.Join(unavailable, ", "))
	}

	n.Logger.Info("Resource check completed",
		zap.String("conversation_id", st.ConversationID),
		zap.Bool("all_available", allAvailable),
		zap.Int("checked", len(availabilityList)))

	return state.Delta{
		Step:   state.StepCheckResources,
		Status: state.StatusInProgress,
		Output: n.output(state.OutputData{Resources: &state.ResourceData{
			Availability: availabilityList,
			AllAvailable: allAvailable,
		}}, explanation, confidence,
			"Checked requested resources against existing commitments"),
	}
}

func (n *Nodes) checkOneResource(ctx context.Context, st *state.State, name string) (state.ResourceAvailability, error) {
	res, err := n.Family.ResourceByName(ctx, name)
	if errors.Is(err, family.ErrNotFound) {
		// Unknown resources route to clarification rather than failing
		// the turn.
		return state.ResourceAvailability{
			ResourceName: name,
			Available:    false,
		}, nil
	}
	if err != nil {
		return state.ResourceAvailability{}, err
	}

	entry := state.ResourceAvailability{
		ResourceID:        res.ID,
		ResourceName:      res.Name,
		TotalCapacity:     res.Capacity,
		AvailableCapacity: res.Capacity,
	}
	if !res.Active {
		entry.AvailableCapacity = 0
		return entry, nil
	}
	if res.CalendarSource == "" || st.SelectedSlot == nil {
		// No tracked commitments: active means available.
		entry.Available = true
		return entry, nil
	}

	busy, err := n.Calendar.BusyIntervals(ctx, []string{res.CalendarSource},
		st.SelectedSlot.Start, st.SelectedSlot.End)
	if err != nil {
		return state.ResourceAvailability{}, err
	}

	reserved := 0
	for _, b := range busy[res.CalendarSource] {
		if b.Overlaps(st.SelectedSlot.Start, st.SelectedSlot.End) {
			reserved++
		}
	}
	entry.AvailableCapacity = res.Capacity - reserved
	if entry.AvailableCapacity < 0 {
		entry.AvailableCapacity = 0
	}
	entry.Available = entry.AvailableCapacity >= 1
	return entry, nil
}
