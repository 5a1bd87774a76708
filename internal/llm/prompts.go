package llm

import (
	"fmt"
	"strings"
	"time"

	"github.com/hearthlabs/scheduler/internal/calendar"
	"github.com/hearthlabs/scheduler/internal/state"
)

// ParsePrompt builds the extraction prompt for a natural-language
// scheduling request, including recent conversation context so follow-up
// turns can fill gaps from earlier ones.
func ParsePrompt(input string, history []state.Message, now time.Time) string {
	var b strings.Builder
	b.WriteString("You are a natural language parser for a household scheduling assistant.\n")
	b.WriteString("Extract structured event data from the user's request.\n\n")
	fmt.Fprintf(&b, "Current date and time: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "User request: %s\n\n", input)

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range history {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}

	b.WriteString(`Return a JSON object with these fields:
- event_type: "create", "modify", "cancel", or "query"
- title: event title, if any
- start_time: ISO 8601 datetime, if mentioned
- end_time: ISO 8601 datetime, if mentioned
- participants: names mentioned
- resources: resources needed (car, room, ...)
- recurrence_rule: RRULE string if the event repeats
- priority: "low", "medium" or "high" if mentioned
- flexibility: "fixed", "flexible" or "very_flexible" if mentioned

Use null for anything not provided. Respond with ONLY the JSON object.`)
	return b.String()
}

// ResolutionPrompt asks the model for 2-4 conflict resolution options.
func ResolutionPrompt(conflicts []state.Conflict, request *state.ParsedEvent, nearby []calendar.Event) string {
	var b strings.Builder
	b.WriteString("You are a scheduling assistant resolving calendar conflicts.\n\nConflicts:\n")
	for _, c := range conflicts {
		fmt.Fprintf(&b, "- [%s] %s (%s severity, id=%s)\n", c.Type, c.Details, c.Severity, c.ID)
	}

	if request != nil {
		fmt.Fprintf(&b, "\nRequested event: %q", request.Title)
		if request.StartTime != nil {
			fmt.Fprintf(&b, " starting %s", request.StartTime.Format(time.RFC3339))
		}
		if len(request.Participants) > 0 {
			fmt.Fprintf(&b, " with %s", strings.Join(request.Participants, ", "))
		}
		b.WriteString("\n")
	}

	if len(nearby) > 0 {
		b.WriteString("\nNearby existing events:\n")
		for _, ev := range nearby {
			fmt.Fprintf(&b, "- %q %s - %s\n", ev.Title,
				ev.Start.Format("Mon 15:04"), ev.End.Format("15:04"))
		}
	}

	b.WriteString(`
Generate 2 to 4 resolution options. Respond with ONLY a JSON object:
{
  "proposed_resolutions": [
    {
      "resolution_id": "res_1",
      "strategy": "move" | "shorten" | "split" | "cancel" | "override_constraint" | "alternative_resource" | "swap_participants" | "suggest_virtual",
      "score": 0.0-1.0,
      "description": "human-readable description",
      "conflicts_resolved": ["conflict ids"]
    }
  ],
  "recommended_resolution": "resolution_id of the best option"
}`)
	return b.String()
}

// QueryPrompt asks the model to answer a schedule question over fetched
// calendar data.
func QueryPrompt(input string, events []calendar.Event, windowStart, windowEnd time.Time) string {
	var b strings.Builder
	b.WriteString("You are a helpful household scheduling assistant with access to the family calendar.\n\n")
	fmt.Fprintf(&b, "User question: %s\n\n", input)
	fmt.Fprintf(&b, "Calendar events between %s and %s:\n",
		windowStart.Format("2006-01-02"), windowEnd.Format("2006-01-02"))

	if len(events) == 0 {
		b.WriteString("(no events scheduled)\n")
	}
	for i, ev := range events {
		if i >= 20 {
			break
		}
		fmt.Fprintf(&b, "- %q %s - %s", ev.Title,
			ev.Start.Format("2006-01-02 15:04"), ev.End.Format("15:04"))
		if len(ev.Attendees) > 0 {
			fmt.Fprintf(&b, " with %s", strings.Join(ev.Attendees, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nAnswer the question using this calendar data. Be specific with dates and times.")
	return b.String()
}
