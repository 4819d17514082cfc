package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opsplan/internal/model"
)

func TestMonthGrid(t *testing.T) {
	tests := []struct {
		name      string
		anchor    time.Time
		days      int
		leading   int
		trailing  int
		weeksRows int
	}{
		// 1 Jan 2025 is a Wednesday.
		{"wednesday start", date(2025, 1, 17), 31, 2, 2, 5},
		// 1 Jun 2025 is a Sunday.
		{"sunday start", date(2025, 6, 30), 30, 6, 6, 6},
		// 1 Feb 2021 is a Monday, 28 days.
		{"four exact weeks", date(2021, 2, 10), 28, 0, 0, 4},
		{"leap february", date(2024, 2, 29), 29, 3, 3, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := MonthGrid(tt.anchor)
			assert.Equal(t, tt.days, l.DaysInMonth)
			assert.Equal(t, tt.leading, l.LeadingBlanks)
			assert.Equal(t, tt.trailing, l.TrailingBlanks)
			assert.Equal(t, tt.weeksRows, l.Weeks())
			assert.Zero(t, (l.LeadingBlanks+l.DaysInMonth+l.TrailingBlanks)%7)
			assert.Equal(t, 1, l.First.Day())
		})
	}
}

func TestWeekStartIsMonday(t *testing.T) {
	// Sunday 16 March 2025 belongs to the week of Monday 10 March.
	assert.Equal(t, date(2025, 3, 10), WeekStart(date(2025, 3, 16)))
	assert.Equal(t, date(2025, 3, 10), WeekStart(time.Date(2025, 3, 10, 18, 30, 0, 0, paris)))

	days := WeekDays(date(2025, 3, 12))
	assert.Equal(t, date(2025, 3, 10), days[0])
	assert.Equal(t, date(2025, 3, 16), days[6])
	for i := 1; i < len(days); i++ {
		assert.Equal(t, days[i-1].AddDate(0, 0, 1), days[i])
	}
}

func TestWeekCrossingMonthBoundary(t *testing.T) {
	days := WeekDays(date(2025, 4, 2))
	assert.Equal(t, date(2025, 3, 31), days[0])
	assert.Equal(t, date(2025, 4, 6), days[6])
}

func TestAgendaOrdering(t *testing.T) {
	events := []model.Event{
		{ID: "late", Start: date(2025, 3, 20)},
		{ID: "bad", Invalid: true},
		{ID: "early", Start: date(2025, 3, 1)},
		{ID: "tie-a", Start: date(2025, 3, 10)},
		{ID: "tie-b", Start: date(2025, 3, 10)},
	}

	got := Agenda(events)
	ids := make([]string, len(got))
	for i, e := range got {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"early", "tie-a", "tie-b", "late", "bad"}, ids)
	assert.Equal(t, "late", events[0].ID, "input is not reordered")
}

func TestDayEvents(t *testing.T) {
	events := []model.Event{
		{ID: "meeting", Start: time.Date(2025, 3, 10, 9, 0, 0, 0, paris), End: time.Date(2025, 3, 10, 10, 0, 0, 0, paris)},
		{ID: "deadline", Start: date(2025, 3, 10), End: date(2025, 3, 10), AllDay: true},
		{ID: "other", Start: date(2025, 3, 11), End: date(2025, 3, 11), AllDay: true},
		{ID: "spanning", Start: date(2025, 3, 8), End: date(2025, 3, 10), AllDay: true},
	}

	got := DayEvents(date(2025, 3, 10), events, paris)
	require.Len(t, got, 3)
	assert.Equal(t, "spanning", got[0].ID)
	assert.Equal(t, "deadline", got[1].ID)
	assert.Equal(t, "meeting", got[2].ID)
}
