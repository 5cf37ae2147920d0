package models

import "time"

// Domain is one of the four independently-polled data categories.
type Domain string

const (
	DomainMarket    Domain = "market"
	DomainPortfolio Domain = "portfolio"
	DomainScheduler Domain = "scheduler"
	DomainChart     Domain = "chart"
)

// Domains lists all polled domains in a stable order.
var Domains = []Domain{DomainMarket, DomainPortfolio, DomainScheduler, DomainChart}

// DomainErrors maps each domain to its current error message, empty when the
// last attempt for that domain succeeded. Market, portfolio and chart errors
// clear themselves on the next poll tick; scheduler mutation errors require a
// manual retry.
type DomainErrors map[Domain]string

// DashboardSnapshot is the wholesale-copied state served to the browser.
type DashboardSnapshot struct {
	SchedulerStatus SchedulerStatus    `json:"scheduler_status"`
	ToggleState     ToggleState        `json:"toggle_state"`
	Cards           []MarketCard       `json:"cards"`
	Summary         MarketSummary      `json:"summary"`
	Portfolio       *PortfolioSnapshot `json:"portfolio,omitempty"`
	SelectedSymbol  string             `json:"selected_symbol"`
	Series          []ChartPoint       `json:"series"`
	SeriesSynthetic bool               `json:"series_synthetic"`
	ExchangeRate    float64            `json:"exchange_rate"`
	Errors          DomainErrors       `json:"errors,omitempty"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// DashboardEvent is broadcast over the WebSocket hub after a domain commits.
type DashboardEvent struct {
	Domain    Domain            `json:"domain"`
	Snapshot  DashboardSnapshot `json:"snapshot"`
	Timestamp time.Time         `json:"timestamp"`
}
