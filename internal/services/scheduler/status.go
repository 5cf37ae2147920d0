// Package scheduler normalizes and mutates the backend auto-trading
// scheduler's enabled/disabled flag.
package scheduler

import (
	"strings"

	"github.com/jwpark-dev/tradedash/internal/models"
)

// Marker phrases the backend embeds in its free-text status responses.
// markerDisabled contains markerEnabled as a suffix, so the disabled check
// must run first.
const (
	markerDisabled = "비활성화됨"
	markerEnabled  = "활성화됨"
)

// Normalize maps a free-text scheduler status response to the closed status
// enum. Total and idempotent: any input, including the empty string, yields
// one of the three statuses. Text without a known marker collapses to
// UNKNOWN so the dashboard never claims a trading state it cannot verify.
func Normalize(raw string) models.SchedulerStatus {
	text := strings.TrimSpace(raw)

	switch {
	case strings.Contains(text, markerDisabled):
		return models.SchedulerDisabled
	case strings.Contains(text, markerEnabled):
		return models.SchedulerEnabled
	default:
		return models.SchedulerUnknown
	}
}

// ActionFor returns the toggle action that flips the given status: an enabled
// scheduler gets disabled, anything else (including UNKNOWN) gets enabled.
func ActionFor(current models.SchedulerStatus) models.ToggleAction {
	if current == models.SchedulerEnabled {
		return models.ActionDisable
	}
	return models.ActionEnable
}
