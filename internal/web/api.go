package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"opsplan/internal/model"
	"opsplan/internal/planner"
)

// stateFromQuery reads view, date and nav. Missing date means today.
func (s *Server) stateFromQuery(r *http.Request) (planner.State, error) {
	q := r.URL.Query()

	mode, err := planner.ParseMode(q.Get("view"))
	if err != nil {
		return planner.State{}, err
	}

	now := s.now().In(s.loc)
	anchor := now
	if raw := q.Get("date"); raw != "" {
		anchor, err = time.ParseInLocation(model.DateLayout, raw, s.loc)
		if err != nil {
			return planner.State{}, fmt.Errorf("invalid date %q", raw)
		}
	}

	return planner.NewState(anchor, mode).Navigate(q.Get("nav"), now)
}

func (s *Server) builder() planner.Builder {
	return planner.Builder{Location: s.loc, Now: s.now}
}

// handleCalendarAPI returns the laid-out view for one navigation state.
//
// GET /api/calendar?view=week&date=2025-03-10&nav=next
func (s *Server) handleCalendarAPI(w http.ResponseWriter, r *http.Request) {
	state, err := s.stateFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Paramètres invalides : "+err.Error())
		return
	}

	snap, err := s.src.Get(r.Context())
	if err != nil {
		writeLoadError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, s.builder().Build(state, snap.Events, snap.Roster))
}

func (s *Server) handleRoster(w http.ResponseWriter, r *http.Request) {
	snap, err := s.src.Get(r.Context())
	if err != nil {
		writeLoadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap.Roster)
}

// eventDetail is the detail panel payload.
type eventDetail struct {
	Event      model.Event `json:"event"`
	TaskURL    string      `json:"task_url,omitempty"`
	ProjectURL string      `json:"project_url,omitempty"`
}

func (s *Server) detailFor(e model.Event) eventDetail {
	d := eventDetail{Event: e}
	if e.TaskID != "" {
		d.TaskURL = s.routes.TaskDetail(e.TaskID)
	}
	if e.ProjectID != "" {
		d.ProjectURL = s.routes.ProjectDetail(e.ProjectID)
	}
	return d
}

func (s *Server) handleEventDetail(w http.ResponseWriter, r *http.Request) {
	snap, err := s.src.Get(r.Context())
	if err != nil {
		writeLoadError(w, r, err)
		return
	}
	e, ok := snap.Lookup(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "Événement introuvable.")
		return
	}
	writeJSON(w, http.StatusOK, s.detailFor(e))
}

// interactionRequest is a click plus the event currently shown in the
// detail panel, if any. The server keeps no panel state between requests.
type interactionRequest struct {
	planner.Interaction
	Selected string `json:"selected,omitempty"`
}

// handleInteraction dispatches one click and returns the resulting action.
//
// POST /api/interactions {"kind":"day","date":"2025-03-15"}
func (s *Server) handleInteraction(w http.ResponseWriter, r *http.Request) {
	var req interactionRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Requête invalide.")
		return
	}

	snap, err := s.src.Get(r.Context())
	if err != nil {
		writeLoadError(w, r, err)
		return
	}

	var panel planner.DetailPanel
	if req.Selected != "" {
		e, ok := snap.Lookup(req.Selected)
		if !ok {
			writeError(w, http.StatusNotFound, "Événement introuvable.")
			return
		}
		panel.Open(e)
	}

	d := planner.Dispatcher{Routes: s.routes, Location: s.loc, Lookup: snap.Lookup}
	action, err := d.Dispatch(&panel, req.Interaction)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, action)
	case errors.Is(err, planner.ErrUnknownEvent):
		writeError(w, http.StatusNotFound, "Événement introuvable.")
	case errors.Is(err, planner.ErrPanelClosed):
		writeError(w, http.StatusConflict, "Aucun événement sélectionné.")
	case errors.Is(err, planner.ErrNoTarget):
		writeError(w, http.StatusUnprocessableEntity, "Cet événement n'est lié à aucune tâche ni projet.")
	default:
		writeError(w, http.StatusBadRequest, "Interaction invalide : "+err.Error())
	}
}

type refreshResponse struct {
	Seq       uint64    `json:"seq"`
	FetchedAt time.Time `json:"fetched_at"`
	Events    int       `json:"events"`
}

// handleRefresh drops the snapshot and loads a new one.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.src.Invalidate()
	snap, err := s.src.Get(r.Context())
	if err != nil {
		writeLoadError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Seq:       snap.Seq,
		FetchedAt: snap.FetchedAt,
		Events:    len(snap.Events),
	})
}
