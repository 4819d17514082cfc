// Package planner builds the OpsFlux calendar views: it normalizes projects
// and tasks into events, extracts the participant roster, lays out month and
// week grids, binds events to cells, steps the navigation state and turns
// clicks into actions.
//
// Everything here is a pure function of its inputs plus an explicit clock.
package planner

import "slices"

// Palette is the fixed cycle of display colors for projects and people.
var Palette = []string{"blue", "green", "purple", "pink", "indigo", "teal", "cyan", "amber"}

// Priority colors override the project color for urgent tasks.
const (
	ColorCritical = "red"
	ColorHigh     = "orange"
	ColorNeutral  = "gray"
)

// KnownColor reports whether c is a display color the UI can render:
// a palette entry, a priority color or the neutral gray used by feeds.
func KnownColor(c string) bool {
	switch c {
	case ColorCritical, ColorHigh, ColorNeutral:
		return true
	}
	return slices.Contains(Palette, c)
}

// PaletteColor returns Palette[i mod len(Palette)].
func PaletteColor(i int) string {
	if i < 0 {
		i = -i
	}
	return Palette[i%len(Palette)]
}
