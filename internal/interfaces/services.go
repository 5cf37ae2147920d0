package interfaces

import (
	"context"

	"github.com/jwpark-dev/tradedash/internal/models"
)

// ToggleController drives the enable/disable scheduler operation.
type ToggleController interface {
	// Toggle issues the action, verifies the transition, and returns the
	// confirmed status. A second call while one is in flight is rejected.
	Toggle(ctx context.Context, action models.ToggleAction) (models.SchedulerStatus, error)

	// State reports the controller's current lifecycle position
	State() models.ToggleState

	// Busy is true while a toggle is toggling or verifying; the orchestrator
	// suppresses its periodic scheduler poll during that window
	Busy() bool
}

// Orchestrator owns the repeating refresh timer for all four domains.
type Orchestrator interface {
	Start()
	Stop()

	// SelectSymbol switches the active chart symbol and triggers an immediate
	// out-of-band chart refresh
	SelectSymbol(ctx context.Context, symbol string)

	// RefreshChart refreshes the active chart series, honoring the per-symbol
	// freshness window unless force is set
	RefreshChart(ctx context.Context, symbol string, force bool)
}
