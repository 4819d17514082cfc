package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"opsplan/internal/model"
)

// ExportOptions describes the exported VCALENDAR.
type ExportOptions struct {
	Name string
	// Now stamps DTSTAMP. Zero means time.Now().
	Now time.Time
	// Link, if set, returns the URL property for an event ("" to omit).
	Link func(model.Event) string
}

// Export serializes events as an iCalendar document. Invalid events are
// left out. All-day events use VALUE=DATE with an exclusive DTEND.
func Export(events []model.Event, opts ExportOptions) string {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//OpsFlux//opsplan//FR")
	if opts.Name != "" {
		cal.SetXWRCalName(opts.Name)
	}

	for _, e := range events {
		if e.Invalid {
			continue
		}

		ve := cal.AddEvent(e.ID)
		ve.SetDtStampTime(now.UTC())
		ve.SetSummary(e.Title)
		if e.Description != "" {
			ve.SetDescription(e.Description)
		}
		if e.AllDay {
			ve.SetAllDayStartAt(e.Start)
			ve.SetAllDayEndAt(e.End.AddDate(0, 0, 1))
		} else {
			ve.SetStartAt(e.Start)
			ve.SetEndAt(e.End)
		}
		ve.SetProperty(ical.ComponentPropertyCategories, string(e.Type))
		if e.Color != "" {
			ve.SetProperty(ical.ComponentPropertyColor, e.Color)
		}
		if opts.Link != nil {
			if u := opts.Link(e); u != "" {
				ve.SetURL(u)
			}
		}
	}

	return cal.Serialize()
}
