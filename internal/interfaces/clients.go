// Package interfaces defines service contracts for tradedash
package interfaces

import (
	"context"

	"github.com/jwpark-dev/tradedash/internal/models"
)

// BackendClient provides access to the trading backend REST API.
type BackendClient interface {
	// GetSchedulerStatus retrieves the raw scheduler status text
	GetSchedulerStatus(ctx context.Context) (string, error)

	// SetScheduler issues the enable or disable command
	SetScheduler(ctx context.Context, action models.ToggleAction) error

	// GetIndexSeries retrieves the time series for an index endpoint path
	GetIndexSeries(ctx context.Context, endpoint string) ([]models.RawChartPoint, error)

	// GetAccountBalance retrieves the raw portfolio payload
	GetAccountBalance(ctx context.Context) (*models.AccountBalance, error)

	// SearchStocks searches symbols by free-text query
	SearchStocks(ctx context.Context, query string) ([]models.SearchResult, error)

	// GetStockChart retrieves the per-symbol time series
	GetStockChart(ctx context.Context, symbol string) ([]models.RawChartPoint, error)
}
