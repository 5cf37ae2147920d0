// Package state holds the mutable dashboard state shared between the polling
// orchestrator and the HTTP/WebSocket surface. The orchestration layer is the
// only writer; every mutation is a whole-value replacement so concurrent
// completions stay simple to reason about.
package state

import (
	"sync"
	"time"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/models"
)

// Store is the single source of truth for the reconciled dashboard state.
type Store struct {
	mu sync.RWMutex

	schedulerStatus models.SchedulerStatus
	toggleState     models.ToggleState
	cards           []models.MarketCard
	summary         models.MarketSummary
	portfolio       *models.PortfolioSnapshot
	exchangeRate    float64

	selectedSymbol  string
	selectionGen    uint64
	series          []models.ChartPoint
	seriesSynthetic bool

	errors    models.DomainErrors
	updatedAt time.Time

	onChange func(models.Domain, models.DashboardSnapshot)
}

// NewStore creates a store seeded with the documented defaults: UNKNOWN
// scheduler status, the fallback exchange rate, and the default index
// selection.
func NewStore() *Store {
	return &Store{
		schedulerStatus: models.SchedulerUnknown,
		toggleState:     models.ToggleIdle,
		exchangeRate:    common.DefaultUSDKRWRate,
		selectedSymbol:  models.TrackedIndices[0].Ticker,
		errors:          make(models.DomainErrors),
	}
}

// OnChange registers a callback invoked after every commit with the domain
// that changed and a fresh snapshot. Used by the WebSocket hub.
func (s *Store) OnChange(fn func(models.Domain, models.DashboardSnapshot)) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// notify must be called without the lock held.
func (s *Store) notify(domain models.Domain) {
	s.mu.RLock()
	fn := s.onChange
	s.mu.RUnlock()
	if fn != nil {
		fn(domain, s.Snapshot())
	}
}

// Snapshot returns a wholesale copy of the current state.
func (s *Store) Snapshot() models.DashboardSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.DashboardSnapshot{
		SchedulerStatus: s.schedulerStatus,
		ToggleState:     s.toggleState,
		Cards:           append([]models.MarketCard(nil), s.cards...),
		Summary:         s.summary,
		SelectedSymbol:  s.selectedSymbol,
		Series:          append([]models.ChartPoint(nil), s.series...),
		SeriesSynthetic: s.seriesSynthetic,
		ExchangeRate:    s.exchangeRate,
		UpdatedAt:       s.updatedAt,
	}

	if s.portfolio != nil {
		p := *s.portfolio
		snap.Portfolio = &p
	}

	if len(s.errors) > 0 {
		snap.Errors = make(models.DomainErrors, len(s.errors))
		for d, msg := range s.errors {
			snap.Errors[d] = msg
		}
	}

	return snap
}

// SetSchedulerStatus replaces the scheduler status.
func (s *Store) SetSchedulerStatus(status models.SchedulerStatus) {
	s.mu.Lock()
	s.schedulerStatus = status
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify(models.DomainScheduler)
}

// SchedulerStatus returns the current scheduler status.
func (s *Store) SchedulerStatus() models.SchedulerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.schedulerStatus
}

// SetToggleState mirrors the toggle controller's lifecycle position for the
// presentation layer.
func (s *Store) SetToggleState(state models.ToggleState) {
	s.mu.Lock()
	s.toggleState = state
	s.mu.Unlock()
	s.notify(models.DomainScheduler)
}

// SetMarket replaces the card list and summary, and refreshes the exchange
// rate when the usd-krw card carries a positive price.
func (s *Store) SetMarket(cards []models.MarketCard, summary models.MarketSummary, rate float64, rateOK bool) {
	s.mu.Lock()
	s.cards = cards
	s.summary = summary
	if rateOK && rate > 0 {
		s.exchangeRate = rate
	}
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify(models.DomainMarket)
}

// ExchangeRate returns the last known USD to KRW rate. Never zero: the
// default applies until the first successful fetch, and may be one tick
// stale.
func (s *Store) ExchangeRate() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.exchangeRate
}

// SetPortfolio replaces the portfolio snapshot wholesale.
func (s *Store) SetPortfolio(snapshot *models.PortfolioSnapshot) {
	s.mu.Lock()
	s.portfolio = snapshot
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify(models.DomainPortfolio)
}

// Select switches the active chart symbol, discards the prior series, and
// bumps the selection generation. The returned token must accompany the
// eventual series commit.
func (s *Store) Select(symbol string) uint64 {
	s.mu.Lock()
	if symbol != s.selectedSymbol {
		s.selectedSymbol = symbol
		s.series = nil
		s.seriesSynthetic = false
	}
	s.selectionGen++
	gen := s.selectionGen
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify(models.DomainChart)
	return gen
}

// Selection returns the active symbol and the current generation token.
// Every chart fetch captures the token at issue time.
func (s *Store) Selection() (string, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selectedSymbol, s.selectionGen
}

// CommitSeries replaces the chart series only when the token still matches
// the live selection. A stale token means the user has moved on; the late
// result is dropped so it cannot overwrite the newer selection's data.
// Returns false when the commit was discarded.
func (s *Store) CommitSeries(token uint64, series []models.ChartPoint, synthetic bool) bool {
	s.mu.Lock()
	if token != s.selectionGen {
		s.mu.Unlock()
		return false
	}
	s.series = series
	s.seriesSynthetic = synthetic
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify(models.DomainChart)
	return true
}

// ClearError empties the domain's error slot at the start of a fetch attempt.
func (s *Store) ClearError(domain models.Domain) {
	s.mu.Lock()
	delete(s.errors, domain)
	s.mu.Unlock()
}

// SetError records the domain's failure message for the presentation layer.
func (s *Store) SetError(domain models.Domain, msg string) {
	s.mu.Lock()
	s.errors[domain] = msg
	s.updatedAt = time.Now()
	s.mu.Unlock()
	s.notify(domain)
}

// Error returns the domain's current error message, empty when clear.
func (s *Store) Error(domain models.Domain) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.errors[domain]
}
