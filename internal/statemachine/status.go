// Package statemachine normalizes provider status strings into the
// canonical CallSession status set and decides terminality (spec.md §4.10).
package statemachine

import (
	"strings"

	"coachline/internal/models"
)

// Normalize maps an arbitrary provider status string onto the canonical set.
// Matching is substring-based and case-insensitive, checked in the order
// the spec lists: queued, ring, in-progress/active, fail/error/busy,
// end/complete/cancel, else unknown.
func Normalize(raw string) models.Status {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "queued"):
		return models.StatusQueued
	case strings.Contains(s, "ring"):
		return models.StatusRinging
	case strings.Contains(s, "in progress"), strings.Contains(s, "in-progress"), strings.Contains(s, "active"):
		return models.StatusInProgress
	case strings.Contains(s, "fail"), strings.Contains(s, "error"), strings.Contains(s, "busy"):
		return models.StatusFailed
	case strings.Contains(s, "end"), strings.Contains(s, "complete"), strings.Contains(s, "cancel"):
		return models.StatusEnded
	default:
		return models.StatusUnknown
	}
}

// Terminal reports whether status blocks further transitions (I4).
func Terminal(s models.Status) bool {
	return s.Terminal()
}

// NextStatus applies a new raw status against the current persisted status,
// honoring I4: once current is terminal, no further transition is applied
// and ok is false.
func NextStatus(current models.Status, rawNext string) (next models.Status, ok bool) {
	if current.Terminal() {
		return current, false
	}
	return Normalize(rawNext), true
}
