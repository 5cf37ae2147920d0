package market

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwpark-dev/tradedash/internal/models"
)

func nasdaq() models.MarketIndex {
	return models.TrackedIndices[0]
}

func TestBuildCard_LatestElementWins(t *testing.T) {
	raw := []models.RawChartPoint{
		{Date: "2026-08-28", Price: 21000},
		{Date: "2026-08-29", Price: 21500, Rate: 1.2},
	}

	card, ok := BuildCard(nasdaq(), raw)
	require.True(t, ok)
	assert.Equal(t, "COMP", card.Ticker)
	assert.Equal(t, "NASDAQ", card.Name)
	assert.Equal(t, 21500.0, card.Price)
	assert.Equal(t, 1.2, card.ChangeRate)
}

func TestBuildCard_TickerFromPayloadWhenPresent(t *testing.T) {
	raw := []models.RawChartPoint{{Date: "2026-08-29", Price: 100, Ticker: "IXIC"}}

	card, ok := BuildCard(nasdaq(), raw)
	require.True(t, ok)
	assert.Equal(t, "IXIC", card.Ticker)
}

func TestBuildCard_EmptyOrWorthlessSeries(t *testing.T) {
	_, ok := BuildCard(nasdaq(), nil)
	assert.False(t, ok)

	_, ok = BuildCard(nasdaq(), []models.RawChartPoint{{Date: "2026-08-29"}})
	assert.False(t, ok)
}

func TestSummarize(t *testing.T) {
	cards := []models.MarketCard{
		{ChangeRate: 2.0},
		{ChangeRate: 1.5},
		{ChangeRate: -0.5},
	}

	summary := Summarize(cards)
	assert.Equal(t, 3, summary.TotalCount)
	assert.Equal(t, 2, summary.PositiveCount)
	assert.InDelta(t, 1.0, summary.AverageChange, 1e-9)
	assert.Equal(t, models.SentimentFlat, summary.Sentiment)

	bull := Summarize([]models.MarketCard{{ChangeRate: 2}, {ChangeRate: 3}})
	assert.Equal(t, models.SentimentBull, bull.Sentiment)

	bear := Summarize([]models.MarketCard{{ChangeRate: -2}, {ChangeRate: -3}})
	assert.Equal(t, models.SentimentBear, bear.Sentiment)
}

func TestSummarize_Empty(t *testing.T) {
	summary := Summarize(nil)
	assert.Equal(t, 0, summary.TotalCount)
	assert.Equal(t, models.SentimentFlat, summary.Sentiment)
	assert.Zero(t, summary.AverageChange)
}

func TestDayRange(t *testing.T) {
	points := []models.ChartPoint{{Price: 3}, {Price: 1}, {Price: 2}}
	low, high := DayRange(points)
	assert.Equal(t, 1.0, low)
	assert.Equal(t, 3.0, high)

	low, high = DayRange(nil)
	assert.Zero(t, low)
	assert.Zero(t, high)
}

func TestLatestRate(t *testing.T) {
	cards := []models.MarketCard{
		{Ticker: "COMP", Price: 21500},
		{Ticker: "FX@KRW", Price: 1342.5},
	}

	rate, ok := LatestRate(cards)
	require.True(t, ok)
	assert.Equal(t, 1342.5, rate)

	_, ok = LatestRate([]models.MarketCard{{Ticker: "COMP", Price: 21500}})
	assert.False(t, ok)

	_, ok = LatestRate([]models.MarketCard{{Ticker: "FX@KRW", Price: 0}})
	assert.False(t, ok)
}

func TestEndpointFor(t *testing.T) {
	assert.Equal(t, "/indices/snp500", EndpointFor("SPX"))
	assert.Equal(t, "/indices/usd-krw", EndpointFor("FX@KRW"))
	assert.Equal(t, "/indices/nasdaq", EndpointFor("does-not-exist"))
}

func TestIsIndexTicker(t *testing.T) {
	assert.True(t, IsIndexTicker("COMP"))
	assert.True(t, IsIndexTicker(".DJI"))
	assert.False(t, IsIndexTicker("AAPL"))
	assert.False(t, IsIndexTicker(""))
}
