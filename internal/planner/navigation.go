package planner

import (
	"fmt"
	"time"
)

// Mode is the calendar view mode.
type Mode string

const (
	ModeMonth  Mode = "month"
	ModeWeek   Mode = "week"
	ModeDay    Mode = "day"
	ModeAgenda Mode = "agenda"
)

// ParseMode accepts month, week, day or agenda; "" means month.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeMonth, nil
	case ModeMonth, ModeWeek, ModeDay, ModeAgenda:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown view mode %q", s)
	}
}

// State is the navigation state: an anchor date and a view mode. It only
// changes through Prev, Next, Today and WithMode; data refreshes never touch it.
type State struct {
	Anchor time.Time
	Mode   Mode
}

// NewState truncates anchor to midnight of its date in its own location.
func NewState(anchor time.Time, mode Mode) State {
	return State{Anchor: midnight(anchor), Mode: mode}
}

// Prev steps one period back.
func (s State) Prev() State { return s.step(-1) }

// Next steps one period forward.
func (s State) Next() State { return s.step(1) }

// Today moves the anchor to the wall-clock date, keeping the mode.
func (s State) Today(now time.Time) State {
	return State{Anchor: midnight(now), Mode: s.Mode}
}

// WithMode switches the view mode, keeping the anchor.
func (s State) WithMode(m Mode) State {
	return State{Anchor: s.Anchor, Mode: m}
}

// Navigate applies "prev", "next" or "today"; "" is a no-op.
func (s State) Navigate(action string, now time.Time) (State, error) {
	switch action {
	case "":
		return s, nil
	case "prev":
		return s.Prev(), nil
	case "next":
		return s.Next(), nil
	case "today":
		return s.Today(now), nil
	default:
		return s, fmt.Errorf("unknown navigation action %q", action)
	}
}

func (s State) step(dir int) State {
	switch s.Mode {
	case ModeWeek:
		return State{Anchor: s.Anchor.AddDate(0, 0, 7*dir), Mode: s.Mode}
	case ModeDay:
		return State{Anchor: s.Anchor.AddDate(0, 0, dir), Mode: s.Mode}
	default:
		return State{Anchor: AddMonths(s.Anchor, dir), Mode: s.Mode}
	}
}

// AddMonths moves t by n calendar months, clamping the day to the length of
// the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	if last := DaysIn(first); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysIn returns the number of days in t's month.
func DaysIn(t time.Time) int {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return first.AddDate(0, 1, -1).Day()
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
