package planner

import (
	"strings"
	"unicode"

	"opsplan/internal/model"
	"opsplan/internal/opsapi"
)

// Roster deduplicates the team members and managers of projects into users.
// Each project contributes its team members, then its manager; the first
// occurrence of an ID wins. The Nth unique user gets PaletteColor(N).
func Roster(projects []opsapi.Project) []model.User {
	seen := make(map[string]struct{})
	users := make([]model.User, 0)

	add := func(m opsapi.Member) {
		if m.ID == "" {
			return
		}
		if _, dup := seen[m.ID]; dup {
			return
		}
		seen[m.ID] = struct{}{}

		name := m.DisplayName()
		users = append(users, model.User{
			ID:       m.ID,
			Name:     name,
			Initials: Initials(name),
			Color:    PaletteColor(len(users)),
		})
	}

	for _, p := range projects {
		for _, m := range p.TeamMembers {
			add(m)
		}
		if p.Manager != nil {
			add(*p.Manager)
		}
	}
	return users
}

// Initials takes the first letter of each space-separated token, uppercased,
// keeping at most two.
func Initials(name string) string {
	var b strings.Builder
	n := 0
	for _, tok := range strings.Fields(name) {
		if n == 2 {
			break
		}
		r := []rune(tok)[0]
		b.WriteRune(unicode.ToUpper(r))
		n++
	}
	return b.String()
}
