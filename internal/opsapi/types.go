package opsapi

import (
	"encoding/json"
	"strings"
)

// Member is a person referenced by a project (team member or manager).
type Member struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Email     string `json:"email,omitempty"`
}

// DisplayName prefers the full name, then first/last name, then email.
func (m Member) DisplayName() string {
	if n := strings.TrimSpace(m.Name); n != "" {
		return n
	}
	if n := strings.TrimSpace(m.FirstName + " " + m.LastName); n != "" {
		return n
	}
	return m.Email
}

// Milestone is an explicit project milestone.
type Milestone struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Date        string `json:"date"`
	Description string `json:"description,omitempty"`
}

// Meeting is a (possibly recurring) project meeting. RRule uses RFC 5545
// syntax without the "RRULE:" prefix, e.g. "FREQ=WEEKLY;BYDAY=MO".
type Meeting struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Start string `json:"start"`
	End   string `json:"end"`
	RRule string `json:"rrule,omitempty"`
}

// Project as returned by GET /projects.
type Project struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Code        string      `json:"code,omitempty"`
	Status      string      `json:"status,omitempty"`
	Archived    bool        `json:"archived"`
	Color       string      `json:"color,omitempty"`
	StartDate   string      `json:"start_date,omitempty"`
	EndDate     string      `json:"end_date,omitempty"`
	Manager     *Member     `json:"manager,omitempty"`
	TeamMembers []Member    `json:"team_members,omitempty"`
	Milestones  []Milestone `json:"milestones,omitempty"`
	Meetings    []Meeting   `json:"meetings,omitempty"`
}

// Task priorities and the done status sentinel.
const (
	PriorityCritical = "critical"
	PriorityHigh     = "high"
	StatusDone       = "done"
)

// Task as returned by GET /projects/{id}/tasks.
type Task struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	DueDate     string `json:"due_date,omitempty"`
	Priority    string `json:"priority,omitempty"`
	Status      string `json:"status,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
}

// listEnvelope is the {"items": [...]} form of a list response.
type listEnvelope struct {
	Items json.RawMessage `json:"items"`
}
