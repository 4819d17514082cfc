package model

import "time"

// EventType classifies a calendar entry for styling and filtering.
type EventType string

const (
	EventTask      EventType = "task"
	EventMeeting   EventType = "meeting"
	EventDeadline  EventType = "deadline"
	EventMilestone EventType = "milestone"
	EventEvent     EventType = "event"
)

// SourceOpsFlux marks events derived from backend projects and tasks.
// Events from ICS feeds carry the feed ID instead.
const SourceOpsFlux = "opsflux"

// DateLayout is the zero-padded date key used for grid cells and navigation.
const DateLayout = "2006-01-02"

// TimeLayout is the hour:minute format passed to the task-creation route.
const TimeLayout = "15:04"

// Event is the uniform calendar representation built from source records.
// Start <= End. All-day events are placed by date only.
type Event struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	AllDay      bool      `json:"all_day"`
	Color       string    `json:"color"`
	Type        EventType `json:"type"`

	ProjectID string `json:"project_id,omitempty"`
	TaskID    string `json:"task_id,omitempty"`

	// Source is SourceOpsFlux or an ICS feed ID.
	Source string `json:"source"`

	// Invalid is set when a source date could not be parsed. Start/End are
	// zero and the event never binds to a grid cell.
	Invalid bool `json:"invalid,omitempty"`
}

// StartKey returns the yyyy-MM-dd key of the start instant in loc.
func (e Event) StartKey(loc *time.Location) string {
	return DateKey(e.Start, loc)
}

// EndKey returns the yyyy-MM-dd key of the end instant in loc.
func (e Event) EndKey(loc *time.Location) string {
	return DateKey(e.End, loc)
}

// DateKey formats t as yyyy-MM-dd in loc. All-day dates are stored at
// midnight of their own location, so callers pass that location or nil.
func DateKey(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateLayout)
}

// User is a roster entry for a project participant.
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Color    string `json:"color"`
}
