package planner

import (
	"fmt"
	"time"

	"opsplan/internal/model"
)

// MaxEventsPerCell is how many events a grid cell shows before "+N more".
const MaxEventsPerCell = 3

// Cell is a grid cell with its bound events.
type Cell struct {
	Date    time.Time     `json:"date"`
	Key     string        `json:"key"`
	Hour    int           `json:"hour,omitempty"`
	Events  []model.Event `json:"events"`
	Hidden  int           `json:"hidden,omitempty"`
	IsToday bool          `json:"is_today"`
}

// MoreLabel returns "+N more" when events were truncated, else "".
// The indicator has no click target; hidden events stay in the agenda.
func (c Cell) MoreLabel() string {
	if c.Hidden <= 0 {
		return ""
	}
	return fmt.Sprintf("+%d more", c.Hidden)
}

// BindDay builds the cell for date: events whose start or end key equals
// the cell key, capped at MaxEventsPerCell.
func BindDay(date time.Time, events []model.Event, loc *time.Location, now time.Time) Cell {
	key := model.DateKey(date, loc)
	var bound []model.Event
	for _, e := range events {
		if matchesDay(e, key, loc) {
			bound = append(bound, e)
		}
	}
	c := Cell{
		Date:    date,
		Key:     key,
		IsToday: key == model.DateKey(now, loc),
	}
	c.Events, c.Hidden = truncate(bound)
	return c
}

// WeekColumn is one day of the week grid: an all-day row and 24 hour slots.
type WeekColumn struct {
	AllDay Cell              `json:"all_day"`
	Slots  [HoursPerDay]Cell `json:"slots"`
}

// BindWeek binds events to the 7 columns of anchor's week. All-day events
// go to the all-day row by the day rule; timed events go to the slot of
// their start hour.
func BindWeek(anchor time.Time, events []model.Event, loc *time.Location, now time.Time) [7]WeekColumn {
	var cols [7]WeekColumn
	todayKey := model.DateKey(now, loc)

	for i, day := range WeekDays(anchor) {
		key := model.DateKey(day, loc)

		var allDay []model.Event
		var slots [HoursPerDay][]model.Event
		for _, e := range events {
			if e.Invalid {
				continue
			}
			if e.AllDay {
				if matchesDay(e, key, loc) {
					allDay = append(allDay, e)
				}
				continue
			}
			if e.StartKey(loc) == key {
				h := e.Start.In(loc).Hour()
				slots[h] = append(slots[h], e)
			}
		}

		col := &cols[i]
		col.AllDay = Cell{Date: day, Key: key, IsToday: key == todayKey}
		col.AllDay.Events, col.AllDay.Hidden = truncate(allDay)
		for h := 0; h < HoursPerDay; h++ {
			slot := Cell{
				Date:    time.Date(day.Year(), day.Month(), day.Day(), h, 0, 0, 0, day.Location()),
				Key:     key,
				Hour:    h,
				IsToday: key == todayKey,
			}
			slot.Events, slot.Hidden = truncate(slots[h])
			col.Slots[h] = slot
		}
	}
	return cols
}

func matchesDay(e model.Event, key string, loc *time.Location) bool {
	if e.Invalid {
		return false
	}
	return e.StartKey(loc) == key || e.EndKey(loc) == key
}

func truncate(events []model.Event) ([]model.Event, int) {
	if events == nil {
		events = []model.Event{}
	}
	if len(events) <= MaxEventsPerCell {
		return events, 0
	}
	return events[:MaxEventsPerCell], len(events) - MaxEventsPerCell
}
