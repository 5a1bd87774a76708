package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthlabs/scheduler/internal/calendar"
)

// rangeStart is a Monday at 08:00 UTC.
var rangeStart = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestFindSlotsNoBusyIntervals(t *testing.T) {
	rangeEnd := rangeStart.Add(12 * time.Hour)
	slots := FindSlots(nil, rangeStart, rangeEnd, time.Hour, Options{})

	require.NotEmpty(t, slots)
	assert.LessOrEqual(t, len(slots), 10)

	for _, s := range slots {
		assert.Equal(t, time.Hour, s.End.Sub(s.Start))
		assert.GreaterOrEqual(t, s.Start.Hour(), 8)
		assert.LessOrEqual(t, s.End.Hour(), 20)
		assert.GreaterOrEqual(t, s.Score, 0.0)
		assert.LessOrEqual(t, s.Score, 1.0)
	}
}

func TestFindSlotsSortedByScore(t *testing.T) {
	rangeEnd := rangeStart.Add(12 * time.Hour)
	slots := FindSlots(nil, rangeStart, rangeEnd, time.Hour, Options{})

	require.NotEmpty(t, slots)
	for i := 1; i < len(slots); i++ {
		if slots[i].Score == slots[i-1].Score {
			assert.True(t, slots[i-1].Start.Before(slots[i].Start),
				"equal scores must keep the earlier start first")
			continue
		}
		assert.Greater(t, slots[i-1].Score, slots[i].Score)
	}

	// Mid-day windows outrank morning ones on the same day.
	assert.GreaterOrEqual(t, slots[0].Start.Hour(), 10)
	assert.LessOrEqual(t, slots[0].Start.Hour(), 14)
}

func TestFindSlotsExcludesBusyOverlap(t *testing.T) {
	rangeEnd := rangeStart.Add(12 * time.Hour)
	busy := map[string][]calendar.BusyInterval{
		"alex@family.local": {
			{Start: rangeStart.Add(2 * time.Hour), End: rangeStart.Add(4 * time.Hour)}, // 10:00-12:00
		},
	}

	slots := FindSlots(busy, rangeStart, rangeEnd, time.Hour, Options{TopK: 100})
	require.NotEmpty(t, slots)
	for _, s := range slots {
		for _, b := range busy["alex@family.local"] {
			assert.False(t, s.Start.Before(b.End) && b.Start.Before(s.End),
				"slot %v overlaps busy %v", s, b)
		}
	}
}

func TestFindSlotsOverlappingBusyFromTwoSources(t *testing.T) {
	rangeEnd := rangeStart.Add(12 * time.Hour)
	busy := map[string][]calendar.BusyInterval{
		"alex@family.local":   {{Start: rangeStart.Add(time.Hour), End: rangeStart.Add(3 * time.Hour)}},
		"jordan@family.local": {{Start: rangeStart.Add(2 * time.Hour), End: rangeStart.Add(5 * time.Hour)}},
	}

	slots := FindSlots(busy, rangeStart, rangeEnd, time.Hour, Options{TopK: 100})
	require.NotEmpty(t, slots)
	merged := calendar.BusyInterval{Start: rangeStart.Add(time.Hour), End: rangeStart.Add(5 * time.Hour)}
	for _, s := range slots {
		assert.False(t, s.Start.Before(merged.End) && merged.Start.Before(s.End))
	}
}

func TestFindSlotsRespectsTopK(t *testing.T) {
	rangeEnd := rangeStart.AddDate(0, 0, 7)
	slots := FindSlots(nil, rangeStart, rangeEnd, 30*time.Minute, Options{TopK: 3})
	assert.Len(t, slots, 3)
}

func TestFindSlotsDegenerateInputs(t *testing.T) {
	assert.Nil(t, FindSlots(nil, rangeStart, rangeStart, time.Hour, Options{}))
	assert.Nil(t, FindSlots(nil, rangeStart.Add(time.Hour), rangeStart, time.Hour, Options{}))
	assert.Nil(t, FindSlots(nil, rangeStart, rangeStart.Add(time.Hour), 0, Options{}))
}

func TestFindSlotsFullyBooked(t *testing.T) {
	rangeEnd := rangeStart.Add(12 * time.Hour)
	busy := map[string][]calendar.BusyInterval{
		"alex@family.local": {{Start: rangeStart, End: rangeEnd}},
	}
	assert.Empty(t, FindSlots(busy, rangeStart, rangeEnd, time.Hour, Options{}))
}

func TestFindSlotsClipsToWorkingHours(t *testing.T) {
	// Range starts at midnight; candidates must not appear before 08:00.
	midnight := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	slots := FindSlots(nil, midnight, midnight.Add(24*time.Hour), time.Hour, Options{TopK: 100})

	require.NotEmpty(t, slots)
	for _, s := range slots {
		assert.GreaterOrEqual(t, s.Start.Hour(), 8)
	}
}

func TestScoreSlotPrefersWeekdaysAndMidDay(t *testing.T) {
	monNoon := time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
	satNoon := time.Date(2026, 3, 7, 12, 0, 0, 0, time.UTC)
	monEvening := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)

	assert.Greater(t, scoreSlot(monNoon), scoreSlot(satNoon))
	assert.Greater(t, scoreSlot(monNoon), scoreSlot(monEvening))
	assert.InDelta(t, 1.0, scoreSlot(monNoon), 1e-9, "Monday noon sits at the ceiling")
	assert.LessOrEqual(t, scoreSlot(monNoon), 1.0)
}
