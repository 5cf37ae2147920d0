// Package portfolio derives the dashboard's portfolio snapshot from the raw
// broker account payload. All functions here are pure and never panic: any
// missing or malformed upstream field degrades to zero, never to NaN or Inf.
package portfolio

import (
	"math"
	"time"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/models"
)

// ParseForeignValues extracts the USD-denominated account figures.
// Absent branches of the payload (nil balance, empty cash rows) contribute
// zero rather than failing the computation.
func ParseForeignValues(balance *models.AccountBalance) models.ForeignValues {
	var v models.ForeignValues
	if balance == nil {
		return v
	}

	v.StockValueUSD = sanitize(balance.StockBalance.Summary.TotalEvaluation.Float64())
	v.PurchaseValueUSD = sanitize(balance.StockBalance.Summary.PurchaseAmount.Float64())

	if len(balance.CashBalance.Output) > 0 {
		v.CashValueUSD = sanitize(balance.CashBalance.Output[0].DepositAmount.Float64())
	}

	return v
}

// ConvertToLocal converts the USD figures to KRW with the given rate.
// The caller supplies a valid positive rate (the store falls back to
// common.DefaultUSDKRWRate until the first usd-krw fetch).
func ConvertToLocal(values models.ForeignValues, rate float64) models.LocalValues {
	rate = sanitize(rate)
	return models.LocalValues{
		StockValueKRW:    values.StockValueUSD * rate,
		PurchaseValueKRW: values.PurchaseValueUSD * rate,
		CashValueKRW:     values.CashValueUSD * rate,
		TotalValueKRW:    (values.StockValueUSD + values.CashValueUSD) * rate,
	}
}

// TotalReturn returns the percentage gain of current over purchase value.
// A zero or negative cost basis has no meaningful return, so it yields 0
// rather than NaN or an error.
func TotalReturn(currentValue, purchaseValue float64) float64 {
	if purchaseValue <= 0 {
		return 0
	}
	return sanitize((currentValue - purchaseValue) / purchaseValue * 100)
}

// TodayReturn sums each holding's daily delta, converted at rate, over the
// current total. Holdings with a missing previous close fall back to the
// current price, contributing zero to the delta instead of shrinking the
// denominator's implied population.
func TodayReturn(holdings []models.Holding, rate, currentTotal float64) float64 {
	if currentTotal <= 0 {
		return 0
	}

	rate = sanitize(rate)
	var delta float64
	for _, h := range holdings {
		price := sanitize(h.CurrentPrice.Float64())
		prev := sanitize(h.PreviousClose.Float64())
		if prev <= 0 {
			prev = price
		}
		qty := sanitize(h.Quantity.Float64())
		delta += (price - prev) * qty * rate
	}

	return sanitize(delta / currentTotal * 100)
}

// AlertCount returns 0..2: one alert when the total return crosses the total
// loss threshold, a second independent one when today's return crosses the
// (looser) daily threshold. Thresholds come from config, not code.
func AlertCount(totalReturn, todayReturn float64, cfg common.AlertConfig) int {
	count := 0
	if totalReturn <= cfg.TotalLossPct {
		count++
	}
	if todayReturn <= cfg.DailyLossPct {
		count++
	}
	return count
}

// HoldingReturnRate derives the per-position gain from purchase vs current
// evaluation amount. Zero cost basis yields 0.
func HoldingReturnRate(h models.Holding) float64 {
	purchase := sanitize(h.PurchaseAmt.Float64())
	if purchase <= 0 {
		return 0
	}
	current := sanitize(h.Evaluation.Float64())
	return sanitize((current - purchase) / purchase * 100)
}

// BuildSnapshot folds the raw account payload and the latest exchange rate
// into a fresh PortfolioSnapshot. The result is immutable-per-computation:
// callers replace the previous snapshot wholesale, never patch it.
func BuildSnapshot(balance *models.AccountBalance, rate float64, cfg common.AlertConfig) *models.PortfolioSnapshot {
	values := ParseForeignValues(balance)
	local := ConvertToLocal(values, rate)

	var holdings []models.Holding
	if balance != nil {
		holdings = balance.StockBalance.Holdings
	}

	totalReturn := TotalReturn(values.StockValueUSD, values.PurchaseValueUSD)
	todayReturn := TodayReturn(holdings, rate, local.TotalValueKRW)

	views := make([]models.HoldingView, 0, len(holdings))
	for _, h := range holdings {
		views = append(views, models.HoldingView{
			Symbol:     h.Symbol,
			Name:       h.Name,
			ValueUSD:   sanitize(h.Evaluation.Float64()),
			Quantity:   int(sanitize(h.Quantity.Float64())),
			ReturnRate: HoldingReturnRate(h),
		})
	}

	return &models.PortfolioSnapshot{
		TotalReturnPct:    totalReturn,
		TodayReturnPct:    todayReturn,
		PortfolioValueKRW: local.TotalValueKRW,
		AvailableCashKRW:  local.CashValueKRW,
		AlertCount:        AlertCount(totalReturn, todayReturn, cfg),
		HoldingsCount:     len(views),
		Holdings:          views,
		ExchangeRate:      rate,
		LastUpdated:       time.Now(),
	}
}

// FallbackSnapshot is the documented stand-in when the account fetch fails:
// all values zero, a single alert signaling that the data is stale.
func FallbackSnapshot(rate float64) *models.PortfolioSnapshot {
	return &models.PortfolioSnapshot{
		AlertCount:   1,
		ExchangeRate: rate,
		LastUpdated:  time.Now(),
	}
}

// sanitize collapses NaN and infinities to zero so no downstream consumer
// ever sees a non-finite number.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
