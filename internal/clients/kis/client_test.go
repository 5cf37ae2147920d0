package kis

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwpark-dev/tradedash/internal/models"
)

func newTestClient(handler http.Handler) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(
		WithBaseURL(srv.URL),
		WithRateLimit(1000),
	)
	return c, srv
}

func TestGetSchedulerStatus_BareText(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/scheduler/status", r.URL.Path)
		w.Write([]byte("자동매매 활성화됨"))
	}))
	defer srv.Close()

	status, err := c.GetSchedulerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "자동매매 활성화됨", status)
}

func TestGetSchedulerStatus_JSONQuoted(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`"스케줄러 비활성화됨"`))
	}))
	defer srv.Close()

	status, err := c.GetSchedulerStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "스케줄러 비활성화됨", status)
}

func TestGetSchedulerStatus_ErrorStatus(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "scheduler offline", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := c.GetSchedulerStatus(context.Background())
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Equal(t, "scheduler offline", apiErr.Message)
	assert.Equal(t, "/scheduler/status", apiErr.Endpoint)
}

func TestSetScheduler(t *testing.T) {
	var gotPath, gotMethod string
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, c.SetScheduler(context.Background(), models.ActionEnable))
	assert.Equal(t, "/scheduler/enable", gotPath)
	assert.Equal(t, http.MethodPost, gotMethod)

	require.NoError(t, c.SetScheduler(context.Background(), models.ActionDisable))
	assert.Equal(t, "/scheduler/disable", gotPath)
}

func TestGetIndexSeries(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indices/nasdaq", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"date": "2026-08-28", "price": "21400.5", "rate": "0.8"},
			{"date": "2026-08-29", "price": 21500, "rate": 1.2}
		]`))
	}))
	defer srv.Close()

	points, err := c.GetIndexSeries(context.Background(), "/indices/nasdaq")
	require.NoError(t, err)
	require.Len(t, points, 2)

	// String and numeric prices decode identically.
	assert.Equal(t, 21400.5, points[0].Price.Float64())
	assert.Equal(t, 21500.0, points[1].Price.Float64())
	assert.Equal(t, 1.2, points[1].Rate.Float64())
}

func TestGetAccountBalance(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/account", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"stock_balance_res": {
				"output1": [{"ovrs_pdno": "AAPL", "now_pric2": "230.10"}],
				"output2": {"tot_evlu_pfls_amt": "1000"}
			},
			"cash_balance_res": {"output": [{"frcr_dncl_amt1": "200"}]}
		}`))
	}))
	defer srv.Close()

	balance, err := c.GetAccountBalance(context.Background())
	require.NoError(t, err)
	require.Len(t, balance.StockBalance.Holdings, 1)
	assert.Equal(t, "AAPL", balance.StockBalance.Holdings[0].Symbol)
	assert.Equal(t, 230.10, balance.StockBalance.Holdings[0].CurrentPrice.Float64())
	assert.Equal(t, 1000.0, balance.StockBalance.Summary.TotalEvaluation.Float64())
}

func TestSearchStocks(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stocks/search", r.URL.Path)
		assert.Equal(t, "테슬라", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"symbol": "TSLA", "koreaName": "테슬라", "englishName": "Tesla Inc"}]`))
	}))
	defer srv.Close()

	results, err := c.SearchStocks(context.Background(), "테슬라")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "TSLA", results[0].Symbol)
	assert.Equal(t, "테슬라", results[0].DisplayName())
}

func TestGetStockChart_EscapesSymbol(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stocks/BRK.B/chart", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"date": "2026-08-29", "price": 495.3}]`))
	}))
	defer srv.Close()

	points, err := c.GetStockChart(context.Background(), "BRK.B")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 495.3, points[0].Price.Float64())
}

func TestDo_NonJSONErrorBody(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := c.GetIndexSeries(context.Background(), "/indices/nasdaq")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadGateway, apiErr.StatusCode)
	assert.Contains(t, apiErr.Error(), "bad gateway")
}

func TestDo_ContextCancelled(t *testing.T) {
	c, srv := newTestClient(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetIndexSeries(ctx, "/indices/nasdaq")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}
