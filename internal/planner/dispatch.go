package planner

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"opsplan/internal/model"
)

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrPanelClosed  = errors.New("detail panel is closed")
	ErrNoTarget     = errors.New("event has no task or project to open")
)

// Routes builds navigation targets in the OpsFlux front end.
type Routes struct {
	// Base is prepended to every path ("" keeps them relative).
	Base string
}

// TaskCreate is the task-creation route for a clicked day or time slot.
// hour < 0 means a day click (no startTime).
func (r Routes) TaskCreate(date time.Time, hour int) string {
	q := url.Values{}
	q.Set("startDate", date.Format(model.DateLayout))
	if hour >= 0 {
		t := time.Date(date.Year(), date.Month(), date.Day(), hour, 0, 0, 0, date.Location())
		q.Set("startTime", t.Format(model.TimeLayout))
	}
	return r.Base + "/projects/tasks/new?" + q.Encode()
}

// TaskDetail is the task detail route.
func (r Routes) TaskDetail(id string) string {
	return r.Base + "/projects/tasks/" + url.PathEscape(id)
}

// ProjectDetail is the project detail route.
func (r Routes) ProjectDetail(id string) string {
	return r.Base + "/projects/" + url.PathEscape(id)
}

// EventLink is the detail route an event points to: its task, else its
// project, else "".
func (r Routes) EventLink(e model.Event) string {
	switch {
	case e.TaskID != "":
		return r.TaskDetail(e.TaskID)
	case e.ProjectID != "":
		return r.ProjectDetail(e.ProjectID)
	default:
		return ""
	}
}

// PanelState is the detail panel state.
type PanelState string

const (
	PanelClosed PanelState = "closed"
	PanelOpen   PanelState = "open"
)

// DetailPanel holds the selected event. closed -> open on an event click;
// open -> closed on close or on a "view" action.
type DetailPanel struct {
	selected *model.Event
}

// State reports whether the panel is open.
func (p *DetailPanel) State() PanelState {
	if p.selected == nil {
		return PanelClosed
	}
	return PanelOpen
}

// Selected returns the selected event, if any.
func (p *DetailPanel) Selected() (model.Event, bool) {
	if p.selected == nil {
		return model.Event{}, false
	}
	return *p.selected, true
}

// Open selects e.
func (p *DetailPanel) Open(e model.Event) {
	p.selected = &e
}

// Close clears the selection.
func (p *DetailPanel) Close() {
	p.selected = nil
}

// InteractionKind is the class of user input.
type InteractionKind string

const (
	ClickEvent  InteractionKind = "event"
	ClickDay    InteractionKind = "day"
	ClickSlot   InteractionKind = "slot"
	ViewTask    InteractionKind = "view_task"
	ViewProject InteractionKind = "view_project"
	ClosePanel  InteractionKind = "close"
)

// Interaction is one user input on the calendar.
type Interaction struct {
	Kind    InteractionKind `json:"kind"`
	EventID string          `json:"event_id,omitempty"`
	// Date is yyyy-MM-dd for day and slot clicks.
	Date string `json:"date,omitempty"`
	// Hour (0-23) for slot clicks; required for them.
	Hour *int `json:"hour,omitempty"`
}

// ActionKind is what the client must do after an interaction.
type ActionKind string

const (
	ActionOpenDetail  ActionKind = "open_detail"
	ActionCloseDetail ActionKind = "close_detail"
	ActionNavigate    ActionKind = "navigate"
)

// Action is the result of dispatching an interaction. No action writes to
// the backend; mutations happen on the destination route.
type Action struct {
	Kind  ActionKind   `json:"kind"`
	URL   string       `json:"url,omitempty"`
	Event *model.Event `json:"event,omitempty"`
	Panel PanelState   `json:"panel"`
}

// Dispatcher routes interactions to detail-panel updates or navigation.
type Dispatcher struct {
	Routes   Routes
	Location *time.Location
	// Lookup resolves an event ID in the current snapshot.
	Lookup func(id string) (model.Event, bool)
}

// Dispatch applies in to panel and returns the resulting action.
func (d Dispatcher) Dispatch(panel *DetailPanel, in Interaction) (Action, error) {
	switch in.Kind {
	case ClickEvent:
		e, ok := d.lookup(in.EventID)
		if !ok {
			return Action{}, fmt.Errorf("%w: %s", ErrUnknownEvent, in.EventID)
		}
		panel.Open(e)
		return Action{Kind: ActionOpenDetail, Event: &e, Panel: panel.State()}, nil

	case ClickDay, ClickSlot:
		date, err := time.ParseInLocation(model.DateLayout, in.Date, d.loc())
		if err != nil {
			return Action{}, fmt.Errorf("invalid date %q: %w", in.Date, err)
		}
		hour := -1
		if in.Kind == ClickSlot {
			if in.Hour == nil {
				return Action{}, errors.New("slot click without hour")
			}
			if *in.Hour < 0 || *in.Hour >= HoursPerDay {
				return Action{}, fmt.Errorf("invalid hour %d", *in.Hour)
			}
			hour = *in.Hour
		}
		return Action{Kind: ActionNavigate, URL: d.Routes.TaskCreate(date, hour), Panel: panel.State()}, nil

	case ViewTask, ViewProject:
		e, ok := panel.Selected()
		if !ok {
			return Action{}, ErrPanelClosed
		}
		var target string
		if in.Kind == ViewTask && e.TaskID != "" {
			target = d.Routes.TaskDetail(e.TaskID)
		}
		if in.Kind == ViewProject && e.ProjectID != "" {
			target = d.Routes.ProjectDetail(e.ProjectID)
		}
		if target == "" {
			return Action{}, ErrNoTarget
		}
		panel.Close()
		return Action{Kind: ActionNavigate, URL: target, Panel: panel.State()}, nil

	case ClosePanel:
		panel.Close()
		return Action{Kind: ActionCloseDetail, Panel: panel.State()}, nil

	default:
		return Action{}, fmt.Errorf("unknown interaction %q", in.Kind)
	}
}

func (d Dispatcher) lookup(id string) (model.Event, bool) {
	if d.Lookup == nil || id == "" {
		return model.Event{}, false
	}
	return d.Lookup(id)
}

func (d Dispatcher) loc() *time.Location {
	if d.Location == nil {
		return time.Local
	}
	return d.Location
}
