package planner

import (
	"fmt"
	"time"

	"opsplan/internal/model"
)

var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// WeekdayLabels are the Monday-first column headers.
var WeekdayLabels = [7]string{"lun.", "mar.", "mer.", "jeu.", "ven.", "sam.", "dim."}

// MonthView is the month grid: rows of 7 cells, nil for blank cells.
type MonthView struct {
	Layout MonthLayout `json:"layout"`
	Weeks  [][]*Cell   `json:"weeks"`
}

// View is everything needed to render one navigation state.
type View struct {
	Mode   Mode   `json:"mode"`
	Anchor string `json:"anchor"`
	Title  string `json:"title"`
	Today  string `json:"today"`
	Prev   string `json:"prev"`
	Next   string `json:"next"`

	Month  *MonthView    `json:"month,omitempty"`
	Week   []WeekColumn  `json:"week,omitempty"`
	Day    []model.Event `json:"day,omitempty"`
	Agenda []model.Event `json:"agenda,omitempty"`
	Roster []model.User  `json:"roster"`
}

// Builder renders views in a fixed location with an injectable clock.
type Builder struct {
	Location *time.Location
	Now      func() time.Time
}

// Build lays out events for state. Derived data is rebuilt from scratch on
// every call.
func (b Builder) Build(state State, events []model.Event, roster []model.User) View {
	loc := b.loc()
	now := b.now().In(loc)
	anchor := midnight(state.Anchor.In(loc))
	state = State{Anchor: anchor, Mode: state.Mode}

	if roster == nil {
		roster = []model.User{}
	}
	v := View{
		Mode:   state.Mode,
		Anchor: anchor.Format(model.DateLayout),
		Title:  Title(state),
		Today:  now.Format(model.DateLayout),
		Prev:   state.Prev().Anchor.Format(model.DateLayout),
		Next:   state.Next().Anchor.Format(model.DateLayout),
		Roster: roster,
	}

	switch state.Mode {
	case ModeWeek:
		cols := BindWeek(anchor, events, loc, now)
		v.Week = cols[:]
	case ModeDay:
		v.Day = DayEvents(anchor, events, loc)
	case ModeAgenda:
		v.Agenda = Agenda(events)
	default:
		v.Month = buildMonth(anchor, events, loc, now)
	}
	return v
}

func buildMonth(anchor time.Time, events []model.Event, loc *time.Location, now time.Time) *MonthView {
	layout := MonthGrid(anchor)
	mv := &MonthView{Layout: layout}

	total := layout.LeadingBlanks + layout.DaysInMonth + layout.TrailingBlanks
	row := make([]*Cell, 0, 7)
	for i := 0; i < total; i++ {
		d := i - layout.LeadingBlanks + 1
		if d >= 1 && d <= layout.DaysInMonth {
			c := BindDay(layout.Day(d), events, loc, now)
			row = append(row, &c)
		} else {
			row = append(row, nil)
		}
		if len(row) == 7 {
			mv.Weeks = append(mv.Weeks, row)
			row = make([]*Cell, 0, 7)
		}
	}
	return mv
}

// Title is the French heading for a state: "mars 2025", "semaine du 10 mars 2025",
// "10 mars 2025".
func Title(s State) string {
	a := s.Anchor
	switch s.Mode {
	case ModeWeek:
		ws := WeekStart(a)
		return fmt.Sprintf("semaine du %d %s %d", ws.Day(), frenchMonths[ws.Month()-1], ws.Year())
	case ModeDay:
		return fmt.Sprintf("%d %s %d", a.Day(), frenchMonths[a.Month()-1], a.Year())
	default:
		return fmt.Sprintf("%s %d", frenchMonths[a.Month()-1], a.Year())
	}
}

// DayLabel is the short French day heading, e.g. "lun. 10 mars 2025".
func DayLabel(t time.Time) string {
	return fmt.Sprintf("%s %d %s %d", WeekdayLabels[MondayIndex(t.Weekday())], t.Day(), frenchMonths[t.Month()-1], t.Year())
}

func (b Builder) loc() *time.Location {
	if b.Location == nil {
		return time.Local
	}
	return b.Location
}

func (b Builder) now() time.Time {
	if b.Now == nil {
		return time.Now()
	}
	return b.Now()
}
