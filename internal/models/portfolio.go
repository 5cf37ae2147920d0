package models

import "time"

// AccountBalance is the raw /account payload from the broker gateway.
// Every field is optional; absent fields decode to their zero value so one
// malformed branch never fails the whole snapshot computation.
type AccountBalance struct {
	StockBalance StockBalance `json:"stock_balance_res"`
	CashBalance  CashBalance  `json:"cash_balance_res"`
}

// StockBalance carries the holdings list (output1) and the account-level
// aggregates (output2) in the broker's own field naming.
type StockBalance struct {
	Holdings []Holding          `json:"output1"`
	Summary  StockBalanceTotals `json:"output2"`
}

// StockBalanceTotals holds the USD-denominated account aggregates.
type StockBalanceTotals struct {
	TotalEvaluation FlexFloat64 `json:"tot_evlu_pfls_amt"` // total stock evaluation amount
	PurchaseAmount  FlexFloat64 `json:"frcr_pchs_amt1"`    // foreign-currency purchase amount
}

// CashBalance wraps the cash output rows; only the first row is meaningful.
type CashBalance struct {
	Output []CashRow `json:"output"`
}

// CashRow holds one foreign-currency cash line.
type CashRow struct {
	DepositAmount FlexFloat64 `json:"frcr_dncl_amt1"`
}

// Holding is one raw position row. Read-only: it is only folded into a
// PortfolioSnapshot, never mutated locally.
type Holding struct {
	Symbol        string      `json:"ovrs_pdno"`
	Name          string      `json:"ovrs_item_name"`
	CurrentPrice  FlexFloat64 `json:"now_pric2"`
	PreviousClose FlexFloat64 `json:"prdy_clpr"` // may be absent; falls back to current price
	Quantity      FlexFloat64 `json:"ord_psbl_qty"`
	Evaluation    FlexFloat64 `json:"ovrs_stck_evlu_amt"`
	PurchaseAmt   FlexFloat64 `json:"frcr_pchs_amt1"`
}

// ForeignValues are the parsed USD-denominated account figures.
type ForeignValues struct {
	StockValueUSD    float64 `json:"stock_value_usd"`
	PurchaseValueUSD float64 `json:"purchase_value_usd"`
	CashValueUSD     float64 `json:"cash_value_usd"`
}

// LocalValues are the KRW-converted account figures.
type LocalValues struct {
	StockValueKRW    float64 `json:"stock_value_krw"`
	PurchaseValueKRW float64 `json:"purchase_value_krw"`
	CashValueKRW     float64 `json:"cash_value_krw"`
	TotalValueKRW    float64 `json:"total_value_krw"`
}

// HoldingView is the per-position slice of a snapshot, with the return rate
// derived from purchase vs current evaluation.
type HoldingView struct {
	Symbol     string  `json:"symbol"`
	Name       string  `json:"name"`
	ValueUSD   float64 `json:"value_usd"`
	Quantity   int     `json:"quantity"`
	ReturnRate float64 `json:"return_rate"`
}

// PortfolioSnapshot is the derived, immutable-per-computation portfolio view.
// It is rebuilt wholesale on every successful account fetch or exchange-rate
// change and never partially mutated.
type PortfolioSnapshot struct {
	TotalReturnPct    float64       `json:"total_return_pct"`
	TodayReturnPct    float64       `json:"today_return_pct"`
	PortfolioValueKRW float64       `json:"portfolio_value_krw"`
	AvailableCashKRW  float64       `json:"available_cash_krw"`
	AlertCount        int           `json:"alert_count"`
	HoldingsCount     int           `json:"holdings_count"`
	Holdings          []HoldingView `json:"holdings,omitempty"`
	ExchangeRate      float64       `json:"exchange_rate"`
	LastUpdated       time.Time     `json:"last_updated"`
}
