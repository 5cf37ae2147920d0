package market

import (
	"github.com/jwpark-dev/tradedash/internal/models"
)

// BuildCard derives a market card from an index's raw series: the last
// element is the latest reading. Returns false when the series is empty.
func BuildCard(index models.MarketIndex, raw []models.RawChartPoint) (models.MarketCard, bool) {
	if len(raw) == 0 {
		return models.MarketCard{}, false
	}

	latest := raw[len(raw)-1]
	price := latest.Price.Float64()
	if price <= 0 {
		price = latest.Value.Float64()
	}
	if price <= 0 {
		return models.MarketCard{}, false
	}

	ticker := latest.Ticker
	if ticker == "" {
		ticker = index.Ticker
	}

	return models.MarketCard{
		Ticker:     ticker,
		Name:       index.Name,
		Price:      price,
		ChangeRate: latest.Rate.Float64(),
		AsOf:       pointTime(latest),
	}, true
}

// Summarize aggregates the card list into the overview header figures.
// Average change above +1% reads as a bull market, below -1% as a bear
// market, anything between as flat.
func Summarize(cards []models.MarketCard) models.MarketSummary {
	summary := models.MarketSummary{
		TotalCount: len(cards),
		Sentiment:  models.SentimentFlat,
	}
	if len(cards) == 0 {
		return summary
	}

	var sum float64
	for _, c := range cards {
		sum += c.ChangeRate
		if c.ChangeRate > 0 {
			summary.PositiveCount++
		}
	}
	summary.AverageChange = sum / float64(len(cards))

	switch {
	case summary.AverageChange > 1:
		summary.Sentiment = models.SentimentBull
	case summary.AverageChange < -1:
		summary.Sentiment = models.SentimentBear
	}

	return summary
}

// DayRange returns the min and max price across the series, or zeros for an
// empty series.
func DayRange(points []models.ChartPoint) (low, high float64) {
	for i, p := range points {
		if i == 0 || p.Price < low {
			low = p.Price
		}
		if p.Price > high {
			high = p.Price
		}
	}
	return low, high
}

// LatestRate extracts the USD/KRW conversion rate from the usd-krw card:
// the index's price is the rate. Returns false when the card is missing or
// non-positive.
func LatestRate(cards []models.MarketCard) (float64, bool) {
	for _, c := range cards {
		if c.Ticker == models.USDKRWTicker && c.Price > 0 {
			return c.Price, true
		}
	}
	return 0, false
}

// EndpointFor maps a card ticker to its index endpoint, defaulting to the
// first tracked index for unknown tickers.
func EndpointFor(ticker string) string {
	for _, idx := range models.TrackedIndices {
		if idx.Ticker == ticker {
			return idx.Endpoint
		}
	}
	return models.TrackedIndices[0].Endpoint
}

// IsIndexTicker reports whether the symbol is one of the four tracked
// indices (as opposed to a searched stock symbol).
func IsIndexTicker(symbol string) bool {
	for _, idx := range models.TrackedIndices {
		if idx.Ticker == symbol {
			return true
		}
	}
	return false
}
