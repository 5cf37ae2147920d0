// Package market transforms raw index and stock series into the canonical
// chart shape and derives the market overview cards.
package market

import (
	"math/rand"
	"time"

	"github.com/jwpark-dev/tradedash/internal/models"
)

// Transform maps heterogeneous upstream points into canonical ChartPoints.
// Accepts date or timestamp for time, price or value for price, and an
// optional volume. Points with a non-positive price are dropped. Output order
// matches input order: callers supply chronological input and the pipeline
// never re-sorts.
func Transform(raw []models.RawChartPoint) []models.ChartPoint {
	points := make([]models.ChartPoint, 0, len(raw))

	for _, item := range raw {
		price := item.Price.Float64()
		if price <= 0 {
			price = item.Value.Float64()
		}
		if price <= 0 {
			continue
		}

		points = append(points, models.ChartPoint{
			Timestamp: pointTime(item),
			Price:     price,
			Volume:    int64(item.Volume.Float64()),
		})
	}

	return points
}

// pointTime resolves a point's time from its timestamp (epoch millis) or
// date string, falling back to now when both are absent or malformed.
func pointTime(item models.RawChartPoint) time.Time {
	if item.Timestamp > 0 {
		return time.UnixMilli(item.Timestamp)
	}
	if item.Date != "" {
		for _, layout := range []string{"2006-01-02", time.RFC3339} {
			if t, err := time.Parse(layout, item.Date); err == nil {
				return t
			}
		}
	}
	return time.Now()
}

// FilterByRange keeps points within the range's day window of now. The ALL
// key, an unrecognized key, or a zero-day range returns the input content
// unchanged. Pure filter: no fetching, no re-sorting.
func FilterByRange(points []models.ChartPoint, rangeKey string, table map[string]models.TimeRange) []models.ChartPoint {
	r, ok := table[rangeKey]
	if !ok || r.Days <= 0 {
		return points
	}

	cutoff := time.Now().AddDate(0, 0, -r.Days)
	filtered := make([]models.ChartPoint, 0, len(points))
	for _, p := range points {
		if !p.Timestamp.Before(cutoff) {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

// GenerateSyntheticSeries produces a randomized daily walk ending at now.
// Used only as a degraded fallback when the real series cannot be fetched;
// it is regenerated on every call and never persisted, so it can never be
// mistaken for recorded market data.
func GenerateSyntheticSeries(days int, basePrice float64) []models.ChartPoint {
	if days <= 0 {
		days = 30
	}
	if basePrice <= 0 {
		basePrice = 100
	}

	points := make([]models.ChartPoint, 0, days+1)
	now := time.Now()
	price := basePrice

	for i := days; i >= 0; i-- {
		change := (rand.Float64() - 0.5) * 0.1
		price = price * (1 + change)

		points = append(points, models.ChartPoint{
			Timestamp: now.AddDate(0, 0, -i),
			Price:     float64(int(price*100)) / 100,
			Volume:    int64(rand.Intn(1000000)),
		})
	}

	return points
}
