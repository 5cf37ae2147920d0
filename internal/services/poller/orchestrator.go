// Package poller owns the repeating refresh loop that reconciles dashboard
// state from the trading backend. Each tick refreshes the four domains
// (market, portfolio, scheduler, chart) concurrently and independently; a
// failure in one never blocks or rolls back the others.
package poller

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/interfaces"
	"github.com/jwpark-dev/tradedash/internal/models"
	"github.com/jwpark-dev/tradedash/internal/services/market"
	"github.com/jwpark-dev/tradedash/internal/services/portfolio"
	"github.com/jwpark-dev/tradedash/internal/services/scheduler"
	"github.com/jwpark-dev/tradedash/internal/state"
)

// Orchestrator drives the fixed-interval polling loop.
type Orchestrator struct {
	client interfaces.BackendClient
	toggle interfaces.ToggleController
	store  *state.Store
	logger *common.Logger

	interval  time.Duration
	freshness time.Duration
	alerts    common.AlertConfig

	mu      sync.Mutex
	fetched map[string]time.Time // per-symbol last successful chart fetch

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates a polling orchestrator. All timings and thresholds
// come from the config value, injected at construction so tests can run with
// alternate timings and no wall-clock delays.
func NewOrchestrator(
	client interfaces.BackendClient,
	toggle interfaces.ToggleController,
	store *state.Store,
	logger *common.Logger,
	cfg *common.Config,
) *Orchestrator {
	return &Orchestrator{
		client:    client,
		toggle:    toggle,
		store:     store,
		logger:    logger,
		interval:  cfg.Polling.GetInterval(),
		freshness: cfg.Polling.GetFreshnessWindow(),
		alerts:    cfg.Alerts,
		fetched:   make(map[string]time.Time),
	}
}

// Start launches the polling loop. Safe to call multiple times; stops any
// existing loop before starting.
func (o *Orchestrator) Start() {
	if o.cancel != nil {
		o.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.pollLoop(ctx)
	}()

	o.logger.Info().
		Dur("interval", o.interval).
		Dur("freshness_window", o.freshness).
		Msg("Polling orchestrator started")
}

// Stop cancels the loop and waits for in-flight refreshes to finish.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
	o.wg.Wait()
	o.logger.Info().Msg("Polling orchestrator stopped")
}

// pollLoop ticks at the fixed interval, with an initial refresh immediately.
func (o *Orchestrator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	o.Tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Tick(ctx)
		}
	}
}

// Tick refreshes all four domains concurrently. Completions may interleave
// in any order; no domain depends on another's result within the same tick,
// except portfolio reading the last known exchange rate (which may be one
// tick stale; accepted).
func (o *Orchestrator) Tick(ctx context.Context) {
	start := time.Now()

	var wg sync.WaitGroup
	run := func(domain models.Domain, fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer o.recoverDomain(domain)
			fn(ctx)
		}()
	}

	run(models.DomainMarket, o.refreshMarket)
	run(models.DomainPortfolio, o.refreshPortfolio)
	run(models.DomainScheduler, o.refreshScheduler)
	run(models.DomainChart, func(ctx context.Context) {
		symbol, _ := o.store.Selection()
		o.RefreshChart(ctx, symbol, false)
	})

	wg.Wait()

	o.logger.Debug().Dur("elapsed", time.Since(start)).Msg("Poll tick complete")
}

// recoverDomain converts a panic inside a domain refresh into that domain's
// error slot. The loop itself must never crash the process.
func (o *Orchestrator) recoverDomain(domain models.Domain) {
	if r := recover(); r != nil {
		o.logger.Error().
			Str("domain", string(domain)).
			Str("panic", fmt.Sprintf("%v", r)).
			Str("stack", string(debug.Stack())).
			Msg("Recovered from panic in domain refresh")
		o.store.SetError(domain, fmt.Sprintf("internal error: %v", r))
	}
}

// refreshMarket fetches the four index series concurrently, derives the card
// list, and refreshes the exchange rate from the usd-krw card. Endpoints
// that fail are skipped; the domain error reports the first failure while
// surviving cards still commit.
func (o *Orchestrator) refreshMarket(ctx context.Context) {
	o.store.ClearError(models.DomainMarket)

	type result struct {
		index models.MarketIndex
		raw   []models.RawChartPoint
		err   error
	}

	results := make([]result, len(models.TrackedIndices))
	var wg sync.WaitGroup
	for i, idx := range models.TrackedIndices {
		wg.Add(1)
		go func(i int, idx models.MarketIndex) {
			defer wg.Done()
			raw, err := o.client.GetIndexSeries(ctx, idx.Endpoint)
			results[i] = result{index: idx, raw: raw, err: err}
		}(i, idx)
	}
	wg.Wait()

	cards := make([]models.MarketCard, 0, len(results))
	var firstErr error
	for _, r := range results {
		if r.err != nil {
			if firstErr == nil {
				firstErr = r.err
			}
			o.logger.Warn().Str("endpoint", r.index.Endpoint).Err(r.err).Msg("Index fetch failed")
			continue
		}
		if card, ok := market.BuildCard(r.index, r.raw); ok {
			cards = append(cards, card)
		}
	}

	rate, rateOK := market.LatestRate(cards)
	o.store.SetMarket(cards, market.Summarize(cards), rate, rateOK)

	if firstErr != nil {
		o.store.SetError(models.DomainMarket, fmt.Sprintf("market index fetch failed: %v", firstErr))
	}
}

// refreshPortfolio rebuilds the portfolio snapshot from a fresh account
// fetch and the last known exchange rate. On failure the documented fallback
// snapshot (all zeros, one alert) replaces the previous one.
func (o *Orchestrator) refreshPortfolio(ctx context.Context) {
	o.store.ClearError(models.DomainPortfolio)

	rate := o.store.ExchangeRate()

	balance, err := o.client.GetAccountBalance(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Account fetch failed")
		o.store.SetError(models.DomainPortfolio, fmt.Sprintf("account fetch failed: %v", err))
		o.store.SetPortfolio(portfolio.FallbackSnapshot(rate))
		return
	}

	o.store.SetPortfolio(portfolio.BuildSnapshot(balance, rate, o.alerts))
}

// refreshScheduler polls the scheduler status, unless the toggle controller
// is mid-operation: a periodic poll during verification could observe a
// stale state and clobber the controller's own read.
func (o *Orchestrator) refreshScheduler(ctx context.Context) {
	o.store.SetToggleState(o.toggle.State())

	if o.toggle.Busy() {
		o.logger.Debug().Msg("Scheduler poll skipped: toggle in flight")
		return
	}

	o.store.ClearError(models.DomainScheduler)

	raw, err := o.client.GetSchedulerStatus(ctx)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Scheduler status fetch failed")
		o.store.SetError(models.DomainScheduler, fmt.Sprintf("scheduler status fetch failed: %v", err))
		o.store.SetSchedulerStatus(models.SchedulerUnknown)
		return
	}

	o.store.SetSchedulerStatus(scheduler.Normalize(raw))
}

// RefreshChart fetches and commits the series for symbol. Without force, the
// fetch is skipped when the same symbol succeeded within the freshness
// window, typically right after a user-triggered selection already
// populated it. The selection generation is captured at issue time; a result
// arriving after the user has moved on is discarded, not committed.
func (o *Orchestrator) RefreshChart(ctx context.Context, symbol string, force bool) {
	if symbol == "" {
		return
	}

	if !force && o.isFresh(symbol) {
		o.logger.Debug().Str("symbol", symbol).Msg("Chart refresh skipped: still fresh")
		return
	}

	// Symbol and token must come from the same read. The caller sampled the
	// selection earlier; if it moved on since, fetching the old symbol would
	// commit its series under the new generation.
	selected, token := o.store.Selection()
	if selected != symbol {
		o.logger.Debug().
			Str("symbol", symbol).
			Str("selected", selected).
			Msg("Chart refresh skipped: selection changed")
		return
	}

	o.store.ClearError(models.DomainChart)

	raw, err := o.fetchSeries(ctx, symbol)
	if err != nil {
		o.logger.Warn().Str("symbol", symbol).Err(err).Msg("Chart fetch failed")
		o.store.SetError(models.DomainChart, fmt.Sprintf("chart fetch failed for %s: %v", symbol, err))

		// Degraded fallback: a synthetic walk, clearly flagged, regenerated
		// each time and never persisted.
		synthetic := market.GenerateSyntheticSeries(30, o.basePriceFor(symbol))
		o.store.CommitSeries(token, synthetic, true)
		return
	}

	series := market.Transform(raw)
	if !o.store.CommitSeries(token, series, false) {
		o.logger.Debug().Str("symbol", symbol).Msg("Chart result discarded: selection changed")
		return
	}

	o.markFetched(symbol)
}

// SelectSymbol switches the active chart symbol and triggers an immediate
// out-of-band refresh, independent of the timer.
func (o *Orchestrator) SelectSymbol(ctx context.Context, symbol string) {
	o.store.Select(symbol)
	o.RefreshChart(ctx, symbol, true)
}

// fetchSeries routes index tickers to their index endpoint and everything
// else to the per-symbol chart endpoint.
func (o *Orchestrator) fetchSeries(ctx context.Context, symbol string) ([]models.RawChartPoint, error) {
	if market.IsIndexTicker(symbol) {
		return o.client.GetIndexSeries(ctx, market.EndpointFor(symbol))
	}
	return o.client.GetStockChart(ctx, symbol)
}

// basePriceFor seeds the synthetic fallback from the symbol's card price
// when available.
func (o *Orchestrator) basePriceFor(symbol string) float64 {
	for _, card := range o.store.Snapshot().Cards {
		if card.Ticker == symbol && card.Price > 0 {
			return card.Price
		}
	}
	return 100
}

func (o *Orchestrator) isFresh(symbol string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return common.IsFresh(o.fetched[symbol], o.freshness)
}

func (o *Orchestrator) markFetched(symbol string) {
	o.mu.Lock()
	o.fetched[symbol] = time.Now()
	o.mu.Unlock()
}

// Ensure Orchestrator implements the contract
var _ interfaces.Orchestrator = (*Orchestrator)(nil)
