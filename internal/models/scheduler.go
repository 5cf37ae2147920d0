// Package models defines data structures for tradedash
package models

import (
	"fmt"
	"time"
)

// SchedulerStatus is the normalized state of the backend's auto-trading scheduler.
type SchedulerStatus string

const (
	SchedulerEnabled  SchedulerStatus = "ENABLED"
	SchedulerDisabled SchedulerStatus = "DISABLED"
	SchedulerUnknown  SchedulerStatus = "UNKNOWN"
)

// ToggleAction is the requested scheduler mutation.
type ToggleAction string

const (
	ActionEnable  ToggleAction = "enable"
	ActionDisable ToggleAction = "disable"
)

// Expected returns the scheduler status the backend should report once the
// action has taken effect.
func (a ToggleAction) Expected() SchedulerStatus {
	if a == ActionEnable {
		return SchedulerEnabled
	}
	return SchedulerDisabled
}

// ToggleState is the controller's position in the toggle lifecycle.
type ToggleState string

const (
	ToggleIdle      ToggleState = "idle"
	ToggleToggling  ToggleState = "toggling"
	ToggleVerifying ToggleState = "verifying"
	ToggleRetrying  ToggleState = "retrying"
)

// ToggleOperation is the transient record of a single in-flight toggle.
// At most one exists at a time; concurrent toggles are rejected, not queued.
type ToggleOperation struct {
	ID             string          `json:"id"`
	Action         ToggleAction    `json:"action"`
	ExpectedStatus SchedulerStatus `json:"expected_status"`
	StartedAt      time.Time       `json:"started_at"`
	Attempt        int             `json:"attempt"`
	MaxAttempts    int             `json:"max_attempts"`
}

// ReconcileError reports a toggle whose verification never observed the
// expected status. The remote command may still have succeeded, so this is
// "uncertain", not "failed", and must stay distinguishable from transport
// errors.
type ReconcileError struct {
	Action   ToggleAction
	Expected SchedulerStatus
	Observed SchedulerStatus
	Attempts int
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("scheduler %s not confirmed after %d checks: backend still reports %s (the command may have succeeded; re-check status before retrying)",
		e.Action, e.Attempts, e.Observed)
}
