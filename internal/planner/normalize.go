package planner

import (
	"fmt"
	"strings"
	"time"

	"opsplan/internal/ics"
	appLog "opsplan/internal/log"
	"opsplan/internal/model"
	"opsplan/internal/opsapi"
)

// maxMeetingOccurrences caps one recurring meeting inside the window.
const maxMeetingOccurrences = 1000

// Normalizer converts backend records into calendar events.
type Normalizer struct {
	// Location anchors date-only values; nil means time.Local.
	Location *time.Location

	// WindowStart / WindowEnd bound recurring meeting expansion. Meetings
	// without a recurrence rule are emitted regardless of the window.
	WindowStart time.Time
	WindowEnd   time.Time
}

// Normalize returns the flat event list for tasks and projects. It never
// fails: items without the relevant date are skipped, and dates that do
// not parse produce events flagged Invalid.
//
// Tasks come first in input order, then for each project its start/end
// events, its milestones and its meetings.
func (n Normalizer) Normalize(projects []opsapi.Project, tasks []opsapi.Task) []model.Event {
	loc := n.loc()
	colors := ProjectColors(projects)

	events := make([]model.Event, 0, len(tasks)+2*len(projects))
	for _, t := range tasks {
		if e, ok := n.taskEvent(t, colors, loc); ok {
			events = append(events, e)
		}
	}
	for _, p := range projects {
		events = append(events, n.projectEvents(p, colors[p.ID], loc)...)
	}
	return events
}

// ProjectColors assigns each project its own color when it names a known
// display color (case-insensitive), otherwise the palette color of its
// position in the list.
func ProjectColors(projects []opsapi.Project) map[string]string {
	colors := make(map[string]string, len(projects))
	for i, p := range projects {
		if _, seen := colors[p.ID]; seen {
			continue
		}
		if c := strings.ToLower(strings.TrimSpace(p.Color)); KnownColor(c) {
			colors[p.ID] = c
			continue
		}
		colors[p.ID] = PaletteColor(i)
	}
	return colors
}

func (n Normalizer) taskEvent(t opsapi.Task, colors map[string]string, loc *time.Location) (model.Event, bool) {
	if strings.TrimSpace(t.DueDate) == "" {
		return model.Event{}, false
	}

	e := model.Event{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		AllDay:      true,
		Type:        model.EventDeadline,
		ProjectID:   t.ProjectID,
		TaskID:      t.ID,
		Source:      model.SourceOpsFlux,
	}
	if t.Status == opsapi.StatusDone {
		e.Type = model.EventTask
	}

	switch t.Priority {
	case opsapi.PriorityCritical:
		e.Color = ColorCritical
	case opsapi.PriorityHigh:
		e.Color = ColorHigh
	default:
		e.Color = colors[t.ProjectID]
		if e.Color == "" {
			e.Color = PaletteColor(0)
		}
	}

	setDay(&e, t.DueDate, loc)
	return e, true
}

func (n Normalizer) projectEvents(p opsapi.Project, color string, loc *time.Location) []model.Event {
	var out []model.Event

	milestone := func(id, title, date, desc string) {
		e := model.Event{
			ID:          id,
			Title:       title,
			Description: desc,
			AllDay:      true,
			Color:       color,
			Type:        model.EventMilestone,
			ProjectID:   p.ID,
			Source:      model.SourceOpsFlux,
		}
		setDay(&e, date, loc)
		out = append(out, e)
	}

	if strings.TrimSpace(p.StartDate) != "" {
		milestone(p.ID+"-start", "Début : "+p.Name, p.StartDate, "")
	}
	if strings.TrimSpace(p.EndDate) != "" {
		milestone(p.ID+"-end", "Fin : "+p.Name, p.EndDate, "")
	}
	for i, m := range p.Milestones {
		if strings.TrimSpace(m.Date) == "" {
			continue
		}
		id := m.ID
		if id == "" {
			id = fmt.Sprintf("%d", i)
		}
		milestone(p.ID+"-milestone-"+id, "Jalon : "+m.Name, m.Date, m.Description)
	}

	for _, m := range p.Meetings {
		out = append(out, n.meetingEvents(p, m, color, loc)...)
	}
	return out
}

func (n Normalizer) meetingEvents(p opsapi.Project, m opsapi.Meeting, color string, loc *time.Location) []model.Event {
	if strings.TrimSpace(m.Start) == "" {
		return nil
	}

	base := model.Event{
		ID:        p.ID + "-meeting-" + m.ID,
		Title:     m.Title,
		Color:     color,
		Type:      model.EventMeeting,
		ProjectID: p.ID,
		Source:    model.SourceOpsFlux,
	}

	start, startDateOnly, err := parseDate(m.Start, loc)
	if err != nil {
		base.Invalid = true
		return []model.Event{base}
	}
	end := start
	if strings.TrimSpace(m.End) != "" {
		if e, _, err := parseDate(m.End, loc); err == nil && !e.Before(start) {
			end = e
		}
	}
	base.AllDay = startDateOnly

	if m.RRule == "" {
		base.Start, base.End = start, end
		return []model.Event{base}
	}

	if n.WindowEnd.IsZero() || n.WindowEnd.Before(n.WindowStart) {
		return nil
	}
	starts, capped, err := ics.Occurrences(m.RRule, start, nil, n.WindowStart, n.WindowEnd, maxMeetingOccurrences)
	if err != nil {
		appLog.Error("meeting rrule rejected", err, "project", p.ID, "meeting", m.ID)
		base.Start, base.End = start, end
		return []model.Event{base}
	}
	if capped {
		appLog.Info("meeting occurrences capped", "project", p.ID, "meeting", m.ID, "cap", maxMeetingOccurrences)
	}

	dur := end.Sub(start)
	out := make([]model.Event, 0, len(starts))
	for _, s := range starts {
		e := base
		e.ID = base.ID + ":" + s.In(loc).Format("2006-01-02T15:04")
		e.Start = s.In(loc)
		e.End = e.Start.Add(dur)
		out = append(out, e)
	}
	return out
}

func (n Normalizer) loc() *time.Location {
	if n.Location == nil {
		return time.Local
	}
	return n.Location
}

// setDay fills an all-day event from a date string, or flags it Invalid.
func setDay(e *model.Event, raw string, loc *time.Location) {
	t, _, err := parseDate(raw, loc)
	if err != nil {
		e.Invalid = true
		appLog.Debug("unparseable source date", "event", e.ID, "value", raw)
		return
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	e.Start, e.End = day, day
}

// parseDate accepts yyyy-MM-dd or RFC 3339. Date-only values are midnight in
// loc; timestamps keep the calendar date they were written with when
// truncated by callers. The bool reports a date-only value.
func parseDate(raw string, loc *time.Location) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.ParseInLocation(model.DateLayout, raw, loc); err == nil {
		return t, true, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, false, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unrecognized date %q", raw)
}
