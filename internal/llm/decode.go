package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hearthlabs/scheduler/internal/state"
)

// ErrNoJSON is returned when a response contains no JSON object at all.
var ErrNoJSON = errors.New("llm: no JSON object in response")

// maxResolutions caps how many proposals an external generator may inject.
const maxResolutions = 4

// extractJSON pulls the outermost JSON object out of a model response that
// may carry prose around it.
func extractJSON(text string) (string, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", ErrNoJSON
	}
	return text[start : end+1], nil
}

// parsedEventWire is the untrusted shape a parse response arrives in.
type parsedEventWire struct {
	Intent         string   `json:"event_type"`
	Title          string   `json:"title"`
	StartTime      string   `json:"start_time"`
	EndTime        string   `json:"end_time"`
	Location       string   `json:"location"`
	Participants   []string `json:"participants"`
	Resources      []string `json:"resources"`
	RecurrenceRule string   `json:"recurrence_rule"`
	Priority       string   `json:"priority"`
	Flexibility    string   `json:"flexibility"`
}

func parseWireTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unparseable time %q", s)
}

// DecodeParsedEvent validates a parse response into a typed ParsedEvent.
// Unknown intents and malformed timestamps are rejected, not passed
// through; the caller decides how to degrade.
func DecodeParsedEvent(text string) (*state.ParsedEvent, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var wire parsedEventWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("decode parse response: %w", err)
	}

	intent := state.Intent(strings.ToLower(strings.TrimSpace(wire.Intent)))
	switch intent {
	case state.IntentCreate, state.IntentModify, state.IntentCancel, state.IntentQuery:
	case "":
		intent = state.IntentCreate
	default:
		return nil, fmt.Errorf("unknown intent %q", wire.Intent)
	}

	start, err := parseWireTime(wire.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseWireTime(wire.EndTime)
	if err != nil {
		return nil, err
	}
	// An end at or before the start would invert the slot downstream;
	// drop it and let the default duration apply.
	if start != nil && end != nil && !end.After(*start) {
		end = nil
	}

	return &state.ParsedEvent{
		Intent:         intent,
		Title:          strings.TrimSpace(wire.Title),
		StartTime:      start,
		EndTime:        end,
		Location:       strings.TrimSpace(wire.Location),
		Participants:   trimAll(wire.Participants),
		Resources:      trimAll(wire.Resources),
		RecurrenceRule: strings.TrimSpace(wire.RecurrenceRule),
		Priority:       strings.ToLower(strings.TrimSpace(wire.Priority)),
		Flexibility:    strings.ToLower(strings.TrimSpace(wire.Flexibility)),
	}, nil
}

// resolutionWire is the untrusted shape a resolution response arrives in.
type resolutionWire struct {
	Proposed []struct {
		ID                string              `json:"resolution_id"`
		Strategy          string              `json:"strategy"`
		Score             float64             `json:"score"`
		Description       string              `json:"description"`
		Changes           []state.FieldChange `json:"changes"`
		SideEffects       []string            `json:"side_effects"`
		ConflictsResolved []string            `json:"conflicts_resolved"`
	} `json:"proposed_resolutions"`
	Recommended string `json:"recommended_resolution"`
}

// DecodeResolutions validates a resolution response. Entries missing a
// strategy or description are rejected, scores are clamped into [0,1],
// the list is capped and sorted by score descending. This is the only
// defense between an untrusted generator and workflow state.
func DecodeResolutions(text string) (*state.ResolutionData, error) {
	raw, err := extractJSON(text)
	if err != nil {
		return nil, err
	}

	var wire resolutionWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return nil, fmt.Errorf("decode resolution response: %w", err)
	}

	var proposed []state.ProposedResolution
	for i, p := range wire.Proposed {
		strategy := state.Strategy(strings.ToLower(strings.TrimSpace(p.Strategy)))
		if !state.KnownStrategy(strategy) || strings.TrimSpace(p.Description) == "" {
			continue
		}
		id := strings.TrimSpace(p.ID)
		if id == "" {
			id = fmt.Sprintf("res_%d", i+1)
		}
		proposed = append(proposed, state.ProposedResolution{
			ID:                id,
			Strategy:          strategy,
			Score:             clamp01(p.Score),
			Description:       strings.TrimSpace(p.Description),
			Changes:           p.Changes,
			SideEffects:       p.SideEffects,
			ConflictsResolved: p.ConflictsResolved,
		})
	}
	if len(proposed) == 0 {
		return nil, errors.New("llm: no valid resolutions in response")
	}

	sort.SliceStable(proposed, func(i, j int) bool { return proposed[i].Score > proposed[j].Score })
	if len(proposed) > maxResolutions {
		proposed = proposed[:maxResolutions]
	}

	recommended := strings.TrimSpace(wire.Recommended)
	if !containsID(proposed, recommended) {
		recommended = proposed[0].ID
	}

	return &state.ResolutionData{Proposed: proposed, Recommended: recommended}, nil
}

func containsID(rs []state.ProposedResolution, id string) bool {
	for _, r := range rs {
		if r.ID == id {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func trimAll(ss []string) []string {
	var out []string
	for _, s := range ss {
		if t := strings.TrimSpace(s); t != "" {
			out = append(out, t)
		}
	}
	return out
}
