package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/interfaces"
	"github.com/jwpark-dev/tradedash/internal/models"
)

// ErrToggleInFlight is returned when a toggle is requested while another is
// still toggling or verifying. Concurrent toggles are rejected, not queued.
var ErrToggleInFlight = errors.New("scheduler toggle already in flight")

// SleepFunc waits for the given duration or returns early with the context's
// error. Injected so tests can run the retry cycle without wall-clock delays.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Controller is the toggle state machine:
//
//	IDLE -> TOGGLING -> VERIFYING -> (confirmed | RETRYING -> VERIFYING | unconfirmed) -> IDLE
//
// The enable/disable command is issued exactly once per operation; only the
// verification read is retried, with exponential backoff.
type Controller struct {
	client interfaces.BackendClient
	logger *common.Logger

	settleDelay time.Duration
	retryBase   time.Duration
	maxRetries  int
	sleep       SleepFunc

	mu      sync.Mutex
	state   models.ToggleState
	current *models.ToggleOperation
}

// ControllerOption configures the controller.
type ControllerOption func(*Controller)

// WithSleep replaces the wait function (tests).
func WithSleep(sleep SleepFunc) ControllerOption {
	return func(c *Controller) {
		c.sleep = sleep
	}
}

// NewController creates a toggle controller with timing from config.
func NewController(client interfaces.BackendClient, logger *common.Logger, cfg common.SchedulerConfig, opts ...ControllerOption) *Controller {
	c := &Controller{
		client:      client,
		logger:      logger,
		settleDelay: cfg.GetSettleDelay(),
		retryBase:   cfg.GetRetryBase(),
		maxRetries:  cfg.GetMaxRetries(),
		sleep:       defaultSleep,
		state:       models.ToggleIdle,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State reports the controller's current lifecycle position.
func (c *Controller) State() models.ToggleState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Busy is true while a toggle is in flight.
func (c *Controller) Busy() bool {
	return c.State() != models.ToggleIdle
}

// Operation returns a copy of the in-flight operation, or nil when idle.
func (c *Controller) Operation() *models.ToggleOperation {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	op := *c.current
	return &op
}

// begin claims the state machine for a new operation. Returns false if one is
// already in flight.
func (c *Controller) begin(action models.ToggleAction) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != models.ToggleIdle {
		return false
	}
	c.state = models.ToggleToggling
	c.current = &models.ToggleOperation{
		ID:             uuid.New().String(),
		Action:         action,
		ExpectedStatus: action.Expected(),
		StartedAt:      time.Now(),
		MaxAttempts:    c.maxRetries,
	}
	return true
}

func (c *Controller) setState(s models.ToggleState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finish releases the state machine. Every terminal outcome returns to IDLE,
// re-enabling new toggles.
func (c *Controller) finish() {
	c.mu.Lock()
	c.state = models.ToggleIdle
	c.current = nil
	c.mu.Unlock()
}

// Toggle issues the action, waits for the backend to settle, then polls the
// status endpoint until it reports the expected state or retries are
// exhausted. Transport failure of the command itself fails immediately; the
// mutating command is never re-issued.
func (c *Controller) Toggle(ctx context.Context, action models.ToggleAction) (models.SchedulerStatus, error) {
	if !c.begin(action) {
		return models.SchedulerUnknown, ErrToggleInFlight
	}
	defer c.finish()

	op := c.Operation()
	expected := op.ExpectedStatus

	c.logger.Info().
		Str("op_id", op.ID).
		Str("action", string(action)).
		Msg("Scheduler toggle started")

	if err := c.client.SetScheduler(ctx, action); err != nil {
		c.logger.Warn().Str("action", string(action)).Err(err).Msg("Scheduler command failed")
		return models.SchedulerUnknown, fmt.Errorf("scheduler %s command failed: %w", action, err)
	}

	// The backend applies the flag asynchronously; give it a settle window
	// before the first verification read.
	c.setState(models.ToggleVerifying)
	if err := c.sleep(ctx, c.settleDelay); err != nil {
		return models.SchedulerUnknown, err
	}

	observed := c.verify(ctx)
	if observed == expected {
		c.logger.Info().Str("op_id", op.ID).Msg("Scheduler toggle confirmed")
		return observed, nil
	}

	// Mismatch: retry the verification read with exponential backoff.
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		c.setState(models.ToggleRetrying)
		c.bumpAttempt()

		wait := c.retryBase * (1 << attempt)
		if err := c.sleep(ctx, wait); err != nil {
			return models.SchedulerUnknown, err
		}

		c.setState(models.ToggleVerifying)
		observed = c.verify(ctx)
		if observed == expected {
			c.logger.Info().
				Str("op_id", op.ID).
				Int("retries", attempt+1).
				Msg("Scheduler toggle confirmed after retries")
			return observed, nil
		}

		c.logger.Debug().
			Str("op_id", op.ID).
			Int("attempt", attempt+1).
			Int("max", c.maxRetries).
			Str("observed", string(observed)).
			Str("expected", string(expected)).
			Msg("Scheduler status not yet settled")
	}

	err := &models.ReconcileError{
		Action:   action,
		Expected: expected,
		Observed: observed,
		Attempts: c.maxRetries + 1,
	}
	c.logger.Warn().Str("op_id", op.ID).Err(err).Msg("Scheduler toggle unconfirmed")
	return observed, err
}

// verify reads and normalizes the current status. Transport failures during
// verification collapse to UNKNOWN and count against the retry budget rather
// than aborting: the command has already been sent.
func (c *Controller) verify(ctx context.Context) models.SchedulerStatus {
	raw, err := c.client.GetSchedulerStatus(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Status read failed during verification")
		return models.SchedulerUnknown
	}
	return Normalize(raw)
}

func (c *Controller) bumpAttempt() {
	c.mu.Lock()
	if c.current != nil {
		c.current.Attempt++
	}
	c.mu.Unlock()
}

// Ensure Controller implements the contract
var _ interfaces.ToggleController = (*Controller)(nil)
