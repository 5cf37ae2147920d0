package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// FlexFloat64 handles JSON values that may be either a number or a string.
// The broker gateway serializes most numeric fields as strings; missing or
// unparsable values decode to zero instead of failing the whole payload.
type FlexFloat64 float64

func (f *FlexFloat64) UnmarshalJSON(data []byte) error {
	var num float64
	if err := json.Unmarshal(data, &num); err == nil {
		*f = FlexFloat64(num)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if s == "" || s == "N/A" {
			*f = 0
			return nil
		}
		num, err := strconv.ParseFloat(s, 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat64(num)
		return nil
	}
	// null, objects, arrays: treat as absent
	*f = 0
	return nil
}

// Float64 returns the underlying value.
func (f FlexFloat64) Float64() float64 { return float64(f) }

// RawChartPoint is one element of an upstream index or stock series.
// Field names vary between endpoints (date vs timestamp, price vs value),
// so every field is optional with a documented zero default.
type RawChartPoint struct {
	Date      string      `json:"date,omitempty"`
	Timestamp int64       `json:"timestamp,omitempty"` // epoch millis
	Price     FlexFloat64 `json:"price,omitempty"`
	Value     FlexFloat64 `json:"value,omitempty"`
	Volume    FlexFloat64 `json:"volume,omitempty"`
	Rate      FlexFloat64 `json:"rate,omitempty"` // daily change percent, card endpoints only
	Ticker    string      `json:"ticker,omitempty"`
}

// ChartPoint is the canonical series element used everywhere downstream.
type ChartPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    int64     `json:"volume"`
}

// TimeRange describes one selectable chart window. Days == 0 means unbounded.
type TimeRange struct {
	Key  string `json:"key"`
	Days int    `json:"days"`
}

// RangeAll returns the full series from FilterByRange regardless of age.
const RangeAll = "ALL"

// DefaultTimeRanges mirrors the dashboard's filter buttons.
var DefaultTimeRanges = map[string]TimeRange{
	"1D":     {Key: "1D", Days: 1},
	"1W":     {Key: "1W", Days: 7},
	"1M":     {Key: "1M", Days: 30},
	"1Y":     {Key: "1Y", Days: 365},
	RangeAll: {Key: RangeAll, Days: 0},
}

// MarketIndex identifies one of the four tracked indices.
type MarketIndex struct {
	Ticker   string // card ticker, e.g. "COMP"
	Name     string // display name, e.g. "NASDAQ"
	Endpoint string // backend path, e.g. "/indices/nasdaq"
}

// TrackedIndices lists the four dashboard indices in card order.
// The last entry's latest price doubles as the USD/KRW conversion rate.
var TrackedIndices = []MarketIndex{
	{Ticker: "COMP", Name: "NASDAQ", Endpoint: "/indices/nasdaq"},
	{Ticker: ".DJI", Name: "DOW JONES", Endpoint: "/indices/dow-jones"},
	{Ticker: "SPX", Name: "S&P 500", Endpoint: "/indices/snp500"},
	{Ticker: "FX@KRW", Name: "USD/KRW", Endpoint: "/indices/usd-krw"},
}

// USDKRWTicker is the index whose latest price is the conversion rate.
const USDKRWTicker = "FX@KRW"

// MarketCard is the per-index summary derived from the latest series element.
type MarketCard struct {
	Ticker     string    `json:"ticker"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	ChangeRate float64   `json:"change_rate"`
	AsOf       time.Time `json:"as_of"`
}

// MarketSentiment classifies the overall card list.
type MarketSentiment string

const (
	SentimentBull MarketSentiment = "bull"
	SentimentBear MarketSentiment = "bear"
	SentimentFlat MarketSentiment = "flat"
)

// MarketSummary aggregates the card list for the overview header.
type MarketSummary struct {
	AverageChange float64         `json:"average_change"`
	PositiveCount int             `json:"positive_count"`
	TotalCount    int             `json:"total_count"`
	Sentiment     MarketSentiment `json:"sentiment"`
}

// SearchResult is one stock search match from the backend.
type SearchResult struct {
	Symbol       string `json:"symbol"`
	KoreaName    string `json:"koreaName,omitempty"`
	Name         string `json:"name,omitempty"`
	EnglishName  string `json:"englishName,omitempty"`
	ExchangeName string `json:"exchangeName,omitempty"`
}

// DisplayName prefers the Korean name, then the generic name, then English.
func (r SearchResult) DisplayName() string {
	if r.KoreaName != "" {
		return r.KoreaName
	}
	if r.Name != "" {
		return r.Name
	}
	return r.EnglishName
}
