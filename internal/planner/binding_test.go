package planner

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsplan/internal/model"
)

func allDay(id string, d time.Time) model.Event {
	return model.Event{ID: id, Start: d, End: d, AllDay: true}
}

func TestBindDayTruncatesAtThree(t *testing.T) {
	day := date(2025, 3, 15)
	var events []model.Event
	for i := 0; i < 5; i++ {
		events = append(events, allDay(fmt.Sprintf("e%d", i), day))
	}
	events = append(events, allDay("elsewhere", date(2025, 3, 16)))

	c := BindDay(day, events, paris, date(2025, 3, 1))
	require.Len(t, c.Events, 3)
	assert.Equal(t, "e0", c.Events[0].ID)
	assert.Equal(t, "e2", c.Events[2].ID)
	assert.Equal(t, 2, c.Hidden)
	assert.Equal(t, "+2 more", c.MoreLabel())
	assert.Equal(t, "2025-03-15", c.Key)
	assert.False(t, c.IsToday)
}

func TestBindDayStartOrEndOnly(t *testing.T) {
	// A span is shown on its first and last day, not the days in between.
	span := model.Event{ID: "span", Start: date(2025, 3, 10), End: date(2025, 3, 12), AllDay: true}

	for _, tt := range []struct {
		day  time.Time
		want int
	}{
		{date(2025, 3, 10), 1},
		{date(2025, 3, 11), 0},
		{date(2025, 3, 12), 1},
	} {
		c := BindDay(tt.day, []model.Event{span}, paris, tt.day)
		assert.Len(t, c.Events, tt.want, c.Key)
		assert.Empty(t, c.MoreLabel())
		assert.True(t, c.IsToday)
	}
}

func TestBindDayIgnoresInvalid(t *testing.T) {
	c := BindDay(date(1, 1, 1), []model.Event{{ID: "bad", Invalid: true}}, paris, date(2025, 3, 1))
	assert.Empty(t, c.Events)
	assert.NotNil(t, c.Events)
}

func TestBindWeek(t *testing.T) {
	events := []model.Event{
		allDay("holiday", date(2025, 3, 12)),
		{ID: "standup", Start: time.Date(2025, 3, 11, 9, 15, 0, 0, paris), End: time.Date(2025, 3, 11, 9, 30, 0, 0, paris)},
		{ID: "late", Start: time.Date(2025, 3, 16, 23, 0, 0, 0, paris), End: time.Date(2025, 3, 17, 1, 0, 0, 0, paris)},
		{ID: "next-week", Start: time.Date(2025, 3, 17, 9, 0, 0, 0, paris), End: time.Date(2025, 3, 17, 10, 0, 0, 0, paris)},
	}

	cols := BindWeek(date(2025, 3, 13), events, paris, time.Date(2025, 3, 11, 8, 0, 0, 0, paris))

	assert.Equal(t, "2025-03-10", cols[0].AllDay.Key)
	assert.Equal(t, "2025-03-16", cols[6].AllDay.Key)

	require.Len(t, cols[2].AllDay.Events, 1)
	assert.Equal(t, "holiday", cols[2].AllDay.Events[0].ID)

	require.Len(t, cols[1].Slots[9].Events, 1)
	assert.Equal(t, "standup", cols[1].Slots[9].Events[0].ID)
	assert.Equal(t, 9, cols[1].Slots[9].Hour)
	assert.True(t, cols[1].Slots[9].IsToday)
	assert.False(t, cols[2].AllDay.IsToday)

	require.Len(t, cols[6].Slots[23].Events, 1)

	total := 0
	for _, col := range cols {
		total += len(col.AllDay.Events)
		for _, s := range col.Slots {
			total += len(s.Events)
		}
	}
	assert.Equal(t, 3, total)
}

func TestBindWeekSlotTruncation(t *testing.T) {
	var events []model.Event
	for i := 0; i < 4; i++ {
		at := time.Date(2025, 3, 10, 14, i*10, 0, 0, paris)
		events = append(events, model.Event{ID: fmt.Sprint(i), Start: at, End: at})
	}
	cols := BindWeek(date(2025, 3, 10), events, paris, date(2025, 1, 1))
	assert.Len(t, cols[0].Slots[14].Events, 3)
	assert.Equal(t, "+1 more", cols[0].Slots[14].MoreLabel())
}
