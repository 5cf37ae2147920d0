package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/models"
)

// fakeBackend scripts the backend's scheduler endpoints and counts command
// issues so tests can prove the mutating command is sent at most once.
type fakeBackend struct {
	mu           sync.Mutex
	commandCalls int
	commandErr   error
	statuses     []string // consumed one per GetSchedulerStatus call; last repeats
	statusErrs   []error
	statusCalls  int

	commandStarted chan struct{}
	commandRelease chan struct{}
}

func (f *fakeBackend) SetScheduler(ctx context.Context, action models.ToggleAction) error {
	f.mu.Lock()
	f.commandCalls++
	f.mu.Unlock()
	if f.commandStarted != nil {
		close(f.commandStarted)
		f.commandStarted = nil
	}
	if f.commandRelease != nil {
		<-f.commandRelease
	}
	return f.commandErr
}

func (f *fakeBackend) GetSchedulerStatus(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.statusCalls
	f.statusCalls++
	if i < len(f.statusErrs) && f.statusErrs[i] != nil {
		return "", f.statusErrs[i]
	}
	if len(f.statuses) == 0 {
		return "", nil
	}
	if i >= len(f.statuses) {
		i = len(f.statuses) - 1
	}
	return f.statuses[i], nil
}

func (f *fakeBackend) CommandCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.commandCalls
}

func (f *fakeBackend) GetIndexSeries(ctx context.Context, endpoint string) ([]models.RawChartPoint, error) {
	return nil, nil
}

func (f *fakeBackend) GetAccountBalance(ctx context.Context) (*models.AccountBalance, error) {
	return nil, nil
}

func (f *fakeBackend) SearchStocks(ctx context.Context, query string) ([]models.SearchResult, error) {
	return nil, nil
}

func (f *fakeBackend) GetStockChart(ctx context.Context, symbol string) ([]models.RawChartPoint, error) {
	return nil, nil
}

func testConfig() common.SchedulerConfig {
	return common.SchedulerConfig{
		SettleDelay: "1s",
		RetryBase:   "1s",
		MaxRetries:  3,
	}
}

// recordedSleep captures every wait without actually sleeping.
func recordedSleep(waits *[]time.Duration) SleepFunc {
	var mu sync.Mutex
	return func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		*waits = append(*waits, d)
		mu.Unlock()
		return ctx.Err()
	}
}

func TestToggle_ConfirmedFirstVerify(t *testing.T) {
	backend := &fakeBackend{statuses: []string{"자동매매 활성화됨"}}
	var waits []time.Duration
	c := NewController(backend, common.NewSilentLogger(), testConfig(), WithSleep(recordedSleep(&waits)))

	status, err := c.Toggle(context.Background(), models.ActionEnable)

	require.NoError(t, err)
	assert.Equal(t, models.SchedulerEnabled, status)
	assert.Equal(t, 1, backend.CommandCalls())
	assert.Equal(t, 1, backend.statusCalls)
	require.Len(t, waits, 1) // settle delay only
	assert.Equal(t, time.Second, waits[0])
	assert.Equal(t, models.ToggleIdle, c.State())
}

func TestToggle_ConfirmedAfterTwoRetries(t *testing.T) {
	// Backend keeps reporting the old state for the settle read and the first
	// retry, then flips.
	backend := &fakeBackend{statuses: []string{"비활성화됨", "비활성화됨", "활성화됨"}}
	var waits []time.Duration
	c := NewController(backend, common.NewSilentLogger(), testConfig(), WithSleep(recordedSleep(&waits)))

	status, err := c.Toggle(context.Background(), models.ActionEnable)

	require.NoError(t, err)
	assert.Equal(t, models.SchedulerEnabled, status)
	assert.Equal(t, 1, backend.CommandCalls())
	assert.Equal(t, 3, backend.statusCalls)

	// Settle delay, then exponential backoff: base*1, base*2.
	require.Len(t, waits, 3)
	assert.Equal(t, time.Second, waits[0])
	assert.Equal(t, 1*time.Second, waits[1])
	assert.Equal(t, 2*time.Second, waits[2])
}

func TestToggle_ExhaustedRetriesReturnsReconcileError(t *testing.T) {
	backend := &fakeBackend{statuses: []string{"비활성화됨"}}
	var waits []time.Duration
	c := NewController(backend, common.NewSilentLogger(), testConfig(), WithSleep(recordedSleep(&waits)))

	status, err := c.Toggle(context.Background(), models.ActionEnable)

	require.Error(t, err)
	var reconcile *models.ReconcileError
	require.ErrorAs(t, err, &reconcile)
	assert.Equal(t, models.ActionEnable, reconcile.Action)
	assert.Equal(t, models.SchedulerEnabled, reconcile.Expected)
	assert.Equal(t, models.SchedulerDisabled, reconcile.Observed)
	assert.Equal(t, 4, reconcile.Attempts) // initial verify + 3 retries
	assert.NotEmpty(t, reconcile.Error())

	assert.Equal(t, models.SchedulerDisabled, status)
	assert.Equal(t, 1, backend.CommandCalls())
	assert.Equal(t, 4, backend.statusCalls)
	// Waits: settle, base*1, base*2, base*4.
	assert.Equal(t, []time.Duration{time.Second, 1 * time.Second, 2 * time.Second, 4 * time.Second}, waits)
	assert.Equal(t, models.ToggleIdle, c.State())
}

func TestToggle_CommandFailureNeverRetriesCommand(t *testing.T) {
	backend := &fakeBackend{commandErr: errors.New("connection refused")}
	c := NewController(backend, common.NewSilentLogger(), testConfig(), WithSleep(recordedSleep(&[]time.Duration{})))

	status, err := c.Toggle(context.Background(), models.ActionDisable)

	require.Error(t, err)
	var reconcile *models.ReconcileError
	assert.False(t, errors.As(err, &reconcile), "transport failure must not look like an unconfirmed toggle")
	assert.Equal(t, models.SchedulerUnknown, status)
	assert.Equal(t, 1, backend.CommandCalls())
	assert.Equal(t, 0, backend.statusCalls, "no verification after a failed command")
	assert.Equal(t, models.ToggleIdle, c.State())
}

func TestToggle_VerifyTransportErrorCountsAsUnknown(t *testing.T) {
	transportErr := errors.New("timeout")
	backend := &fakeBackend{
		statusErrs: []error{transportErr},
		statuses:   []string{"", "활성화됨"},
	}
	var waits []time.Duration
	c := NewController(backend, common.NewSilentLogger(), testConfig(), WithSleep(recordedSleep(&waits)))

	status, err := c.Toggle(context.Background(), models.ActionEnable)

	require.NoError(t, err)
	assert.Equal(t, models.SchedulerEnabled, status)
	assert.Equal(t, 1, backend.CommandCalls())
	assert.Equal(t, 2, backend.statusCalls)
}

func TestToggle_RejectsConcurrentToggle(t *testing.T) {
	backend := &fakeBackend{
		statuses:       []string{"활성화됨"},
		commandStarted: make(chan struct{}),
		commandRelease: make(chan struct{}),
	}
	started := backend.commandStarted
	var waits []time.Duration
	c := NewController(backend, common.NewSilentLogger(), testConfig(), WithSleep(recordedSleep(&waits)))

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := c.Toggle(context.Background(), models.ActionEnable)
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, c.Busy())

	// Second toggle while the first is in flight: rejected, command not sent.
	_, err := c.Toggle(context.Background(), models.ActionEnable)
	require.ErrorIs(t, err, ErrToggleInFlight)
	assert.Equal(t, 1, backend.CommandCalls())

	close(backend.commandRelease)
	<-done

	assert.False(t, c.Busy())
	assert.Equal(t, 1, backend.CommandCalls())
}

func TestToggle_ContextCancelledDuringSettle(t *testing.T) {
	backend := &fakeBackend{statuses: []string{"활성화됨"}}
	c := NewController(backend, common.NewSilentLogger(), testConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	status, err := c.Toggle(ctx, models.ActionEnable)

	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, models.SchedulerUnknown, status)
	assert.Equal(t, 0, backend.statusCalls)
	assert.Equal(t, models.ToggleIdle, c.State())
}
