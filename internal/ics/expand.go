package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	appLog "opsplan/internal/log"
	"opsplan/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the zone occurrences are converted to. nil means time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the occurrences (inclusive).
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps a single series. Zero means the default.
	MaxOccurrencesPerEvent int
}

func (cfg *ExpandConfig) defaults() error {
	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}
	return nil
}

// ExpandResult holds calendar events plus the UIDs that hit the cap.
type ExpandResult struct {
	Events          []model.Event
	TruncatedEvents []string
}

// Expand turns parsed feed events into calendar events of type "event"
// inside the configured range. It applies RRULE, EXDATE and RECURRENCE-ID
// overrides; all-day occurrences are re-anchored to midnight of their date
// in the display zone.
func Expand(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult
	if err := cfg.defaults(); err != nil {
		return result, err
	}

	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	var order []string

	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
			continue
		}
		if _, seen := baseByUID[ev.UID]; !seen {
			order = append(order, ev.UID)
		}
		baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
	}

	for _, uid := range order {
		truncated := false
		for _, ev := range baseByUID[uid] {
			out, hitCap := expandEvent(ev, overridesByUID[uid], cfg)
			truncated = truncated || hitCap
			result.Events = append(result.Events, out...)
		}
		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: truncated occurrences", errors.New("max occurrences reached"),
				"uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.Event, bool) {
	if ev.RawRRule == "" {
		if !overlaps(ev.Start, ev.End, cfg.RangeStart, cfg.RangeEnd) {
			return nil, false
		}
		if o, ok := findOverride(overrides, ev.Start); ok {
			ev = o
		}
		return []model.Event{makeEvent(ev, ev.Start, ev.End, cfg.DisplayLocation)}, false
	}

	starts, hitCap, err := Occurrences(ev.RawRRule, ev.Start, ev.ExDates, cfg.RangeStart, cfg.RangeEnd, cfg.MaxOccurrencesPerEvent)
	if err != nil {
		appLog.Error("expand: failed to parse RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return nil, false
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]model.Event, 0, len(starts))
	for _, occStart := range starts {
		occEnd := occStart.Add(dur)
		if ev.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
			occEnd = occStart.AddDate(0, 0, 1)
		}

		base := ev
		if o, ok := findOverride(overrides, occStart); ok {
			base = o
			occStart, occEnd = o.Start, o.End
		}
		out = append(out, makeEvent(base, occStart, occEnd, cfg.DisplayLocation))
	}
	return out, hitCap
}

// Occurrences expands rawRule from dtStart and returns the starts inside
// [from, to], minus exDates, capped at max. It is shared by feed expansion
// and recurring project meetings.
func Occurrences(rawRule string, dtStart time.Time, exDates []time.Time, from, to time.Time, max int) ([]time.Time, bool, error) {
	r, err := rrule.StrToRRule(rawRule)
	if err != nil {
		return nil, false, fmt.Errorf("parse rrule %q: %w", rawRule, err)
	}
	r.DTStart(dtStart)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range exDates {
		set.ExDate(ex.In(dtStart.Location()))
	}

	times := set.Between(from.In(dtStart.Location()), to.In(dtStart.Location()), true)
	if max > 0 && len(times) > max {
		return times[:max], true, nil
	}
	return times, false, nil
}

func findOverride(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence != nil && ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

func makeEvent(ev ParsedEvent, start, end time.Time, loc *time.Location) model.Event {
	if ev.AllDay {
		start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
		// DTEND of an all-day event is exclusive; the planner binds by the
		// last covered day.
		lastDay := end.AddDate(0, 0, -1)
		end = time.Date(lastDay.Year(), lastDay.Month(), lastDay.Day(), 0, 0, 0, 0, loc)
		if end.Before(start) {
			end = start
		}
	} else {
		start = start.In(loc)
		end = end.In(loc)
	}

	desc := ev.Description
	if ev.Location != "" {
		if desc != "" {
			desc += "\n"
		}
		desc += ev.Location
	}

	return model.Event{
		ID:          ev.Feed.ID + ":" + ev.UID + ":" + start.Format(time.RFC3339),
		Title:       ev.Summary,
		Description: desc,
		Start:       start,
		End:         end,
		AllDay:      ev.AllDay,
		Color:       ev.Feed.Color,
		Type:        model.EventEvent,
		Source:      ev.Feed.ID,
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
