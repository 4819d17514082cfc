package planner

import (
	"slices"
	"time"

	"opsplan/internal/model"
)

// HoursPerDay is the number of hourly rows in the week grid.
const HoursPerDay = 24

// MondayIndex maps a weekday to a Monday-first column (Mon=0 ... Sun=6).
func MondayIndex(wd time.Weekday) int {
	if wd == time.Sunday {
		return 6
	}
	return int(wd) - 1
}

// MonthLayout is the geometry of a Monday-first month grid.
type MonthLayout struct {
	First          time.Time `json:"first"`
	DaysInMonth    int       `json:"days_in_month"`
	LeadingBlanks  int       `json:"leading_blanks"`
	TrailingBlanks int       `json:"trailing_blanks"`
}

// Weeks is the number of grid rows.
func (l MonthLayout) Weeks() int {
	return (l.LeadingBlanks + l.DaysInMonth + l.TrailingBlanks) / 7
}

// MonthGrid lays out the month containing anchor.
func MonthGrid(anchor time.Time) MonthLayout {
	first := time.Date(anchor.Year(), anchor.Month(), 1, 0, 0, 0, 0, anchor.Location())
	days := DaysIn(first)
	lead := MondayIndex(first.Weekday())

	trail := (7 - (lead+days)%7) % 7
	return MonthLayout{
		First:          first,
		DaysInMonth:    days,
		LeadingBlanks:  lead,
		TrailingBlanks: trail,
	}
}

// Day returns the date of day-of-month d (1-based).
func (l MonthLayout) Day(d int) time.Time {
	return l.First.AddDate(0, 0, d-1)
}

// WeekStart returns the Monday on or before anchor, at midnight.
func WeekStart(anchor time.Time) time.Time {
	d := midnight(anchor)
	return d.AddDate(0, 0, -MondayIndex(d.Weekday()))
}

// WeekDays returns the 7 consecutive dates of anchor's Monday-first week.
func WeekDays(anchor time.Time) [7]time.Time {
	var days [7]time.Time
	start := WeekStart(anchor)
	for i := range days {
		days[i] = start.AddDate(0, 0, i)
	}
	return days
}

// Agenda returns all events sorted ascending by start. The sort is stable;
// invalid events go last.
func Agenda(events []model.Event) []model.Event {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b model.Event) int {
		switch {
		case a.Invalid && b.Invalid:
			return 0
		case a.Invalid:
			return 1
		case b.Invalid:
			return -1
		}
		return a.Start.Compare(b.Start)
	})
	return out
}

// DayEvents returns every event bound to date (same key rule as grid
// cells), all-day first, then by start. Nothing is truncated.
func DayEvents(date time.Time, events []model.Event, loc *time.Location) []model.Event {
	key := model.DateKey(date, loc)
	out := make([]model.Event, 0)
	for _, e := range events {
		if matchesDay(e, key, loc) {
			out = append(out, e)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Event) int {
		if a.AllDay != b.AllDay {
			if a.AllDay {
				return -1
			}
			return 1
		}
		return a.Start.Compare(b.Start)
	})
	return out
}
