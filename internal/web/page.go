package web

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"opsplan/internal/ics"
	appLog "opsplan/internal/log"
	"opsplan/internal/model"
	"opsplan/internal/planner"
)

//go:embed templates
var templateFS embed.FS

var pageTmpl = template.Must(template.New("calendar.html").Funcs(template.FuncMap{
	"hourLabel": func(h int) string { return fmt.Sprintf("%02d:00", h) },
	"dayLabel":  planner.DayLabel,
	"timeRange": func(e model.Event) string {
		if e.Invalid {
			return "Date invalide"
		}
		if e.AllDay {
			return "Toute la journée"
		}
		return e.Start.Format(model.TimeLayout) + " - " + e.End.Format(model.TimeLayout)
	},
}).ParseFS(templateFS, "templates/calendar.html"))

var modeLabels = []struct {
	Mode  planner.Mode
	Label string
}{
	{planner.ModeMonth, "Mois"},
	{planner.ModeWeek, "Semaine"},
	{planner.ModeDay, "Jour"},
	{planner.ModeAgenda, "Agenda"},
}

type modeLink struct {
	Label  string
	URL    string
	Active bool
}

// page is the template data for /calendar.
type page struct {
	View     planner.View
	Weekdays [7]string
	Hours    []int
	Modes    []modeLink

	PrevURL  string
	NextURL  string
	TodayURL string

	Detail   *eventDetail
	CloseURL string

	Error    string
	RetryURL string

	mode   planner.Mode
	anchor string
}

func calendarURL(mode planner.Mode, date, selected string) string {
	q := url.Values{}
	q.Set("view", string(mode))
	q.Set("date", date)
	if selected != "" {
		q.Set("selected", selected)
	}
	return "/calendar?" + q.Encode()
}

// SelectURL reopens the current view with id in the detail panel.
func (p *page) SelectURL(id string) string {
	return calendarURL(p.mode, p.anchor, id)
}

// NewURL is the creation link of a day (hour < 0) or an hour slot.
func (p *page) NewURL(key string, hour int) string {
	q := url.Values{}
	q.Set("date", key)
	if hour >= 0 {
		q.Set("time", fmt.Sprintf("%02d:00", hour))
	}
	return "/calendar/new?" + q.Encode()
}

// ViewURL is the "view task" / "view project" button target.
func (p *page) ViewURL(kind, id string) string {
	return "/calendar/view/" + kind + "/" + url.PathEscape(id)
}

func (s *Server) newPage(state planner.State) *page {
	anchor := state.Anchor.Format(model.DateLayout)
	p := &page{
		Weekdays: planner.WeekdayLabels,
		mode:     state.Mode,
		anchor:   anchor,
		PrevURL:  calendarURL(state.Mode, state.Prev().Anchor.Format(model.DateLayout), ""),
		NextURL:  calendarURL(state.Mode, state.Next().Anchor.Format(model.DateLayout), ""),
		TodayURL: calendarURL(state.Mode, s.now().In(s.loc).Format(model.DateLayout), ""),
		CloseURL: calendarURL(state.Mode, anchor, ""),
	}
	for h := 0; h < planner.HoursPerDay; h++ {
		p.Hours = append(p.Hours, h)
	}
	for _, m := range modeLabels {
		p.Modes = append(p.Modes, modeLink{
			Label:  m.Label,
			URL:    calendarURL(m.Mode, anchor, ""),
			Active: m.Mode == state.Mode,
		})
	}
	return p
}

// handleCalendarPage renders the calendar. The root element carries
// data-ready="true" once the page is complete, including the error state.
//
// GET /calendar?view=month&date=2025-03-10&nav=next&selected=T1
func (s *Server) handleCalendarPage(w http.ResponseWriter, r *http.Request) {
	state, err := s.stateFromQuery(r)
	if err != nil {
		http.Error(w, "Paramètres invalides : "+err.Error(), http.StatusBadRequest)
		return
	}
	p := s.newPage(state)

	snap, err := s.src.Get(r.Context())
	if err != nil {
		appLog.Error("calendar page: data unavailable", err)
		p.Error = fetchFailedMessage
		p.RetryURL = r.URL.RequestURI()
		s.renderPage(w, http.StatusBadGateway, p)
		return
	}

	p.View = s.builder().Build(state, snap.Events, snap.Roster)
	if id := r.URL.Query().Get("selected"); id != "" {
		if e, ok := snap.Lookup(id); ok {
			d := s.detailFor(e)
			p.Detail = &d
		}
	}
	s.renderPage(w, http.StatusOK, p)
}

func (s *Server) renderPage(w http.ResponseWriter, status int, p *page) {
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, p); err != nil {
		appLog.Error("calendar template failed", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// handleNewTask turns a day or slot click into a redirect to task creation.
//
// GET /calendar/new?date=2025-03-15&time=09:00
func (s *Server) handleNewTask(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	in := planner.Interaction{Kind: planner.ClickDay, Date: q.Get("date")}
	if raw := q.Get("time"); raw != "" {
		hour, err := parseHour(raw)
		if err != nil {
			http.Error(w, "Heure invalide.", http.StatusBadRequest)
			return
		}
		in.Kind, in.Hour = planner.ClickSlot, &hour
	}

	d := planner.Dispatcher{Routes: s.routes, Location: s.loc}
	var panel planner.DetailPanel
	action, err := d.Dispatch(&panel, in)
	if err != nil {
		http.Error(w, "Date invalide.", http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, action.URL, http.StatusFound)
}

// handleViewTarget follows a detail panel button to the task or project.
func (s *Server) handleViewTarget(w http.ResponseWriter, r *http.Request) {
	var kind planner.InteractionKind
	switch r.PathValue("kind") {
	case "task":
		kind = planner.ViewTask
	case "project":
		kind = planner.ViewProject
	default:
		http.NotFound(w, r)
		return
	}

	snap, err := s.src.Get(r.Context())
	if err != nil {
		writeLoadError(w, r, err)
		return
	}
	e, ok := snap.Lookup(r.PathValue("id"))
	if !ok {
		http.Error(w, "Événement introuvable.", http.StatusNotFound)
		return
	}

	var panel planner.DetailPanel
	panel.Open(e)
	d := planner.Dispatcher{Routes: s.routes, Location: s.loc, Lookup: snap.Lookup}
	action, err := d.Dispatch(&panel, planner.Interaction{Kind: kind})
	if errors.Is(err, planner.ErrNoTarget) {
		http.Error(w, "Cet événement n'est lié à aucune tâche ni projet.", http.StatusUnprocessableEntity)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Redirect(w, r, action.URL, http.StatusFound)
}

// handleExport serves the current events as an iCalendar subscription.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.src.Get(r.Context())
	if err != nil {
		writeLoadError(w, r, err)
		return
	}
	body := ics.Export(snap.Events, ics.ExportOptions{
		Name: "OpsFlux",
		Now:  s.now(),
		Link: s.routes.EventLink,
	})
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `inline; filename="opsflux.ics"`)
	_, _ = w.Write([]byte(body))
}

// parseHour accepts "HH" or "HH:mm" and returns the hour.
func parseHour(raw string) (int, error) {
	h, _, _ := strings.Cut(raw, ":")
	n, err := strconv.Atoi(h)
	if err != nil || n < 0 || n >= planner.HoursPerDay {
		return 0, fmt.Errorf("invalid time %q", raw)
	}
	return n, nil
}
