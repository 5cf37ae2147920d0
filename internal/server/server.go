// Package server exposes the reconciled dashboard state over HTTP and
// WebSocket for the browser frontend.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/interfaces"
	"github.com/jwpark-dev/tradedash/internal/models"
	"github.com/jwpark-dev/tradedash/internal/services/market"
	"github.com/jwpark-dev/tradedash/internal/services/scheduler"
	"github.com/jwpark-dev/tradedash/internal/state"
)

// Server wraps the HTTP server and its collaborators.
type Server struct {
	store        *state.Store
	orchestrator interfaces.Orchestrator
	toggle       interfaces.ToggleController
	client       interfaces.BackendClient
	hub          *StateHub
	chartFn      func(symbol string, points []models.ChartPoint) ([]byte, error)
	search       common.SearchConfig
	polling      common.PollingConfig
	logger       *common.Logger
	server       *http.Server
}

// NewServer creates the HTTP REST API server and wires the state hub to the
// store's change notifications.
func NewServer(
	store *state.Store,
	orchestrator interfaces.Orchestrator,
	toggle interfaces.ToggleController,
	client interfaces.BackendClient,
	chartFn func(symbol string, points []models.ChartPoint) ([]byte, error),
	logger *common.Logger,
	cfg *common.Config,
) *Server {
	s := &Server{
		store:        store,
		orchestrator: orchestrator,
		toggle:       toggle,
		client:       client,
		hub:          NewStateHub(logger),
		chartFn:      chartFn,
		search:       cfg.Search,
		polling:      cfg.Polling,
		logger:       logger,
	}

	store.OnChange(func(domain models.Domain, snapshot models.DashboardSnapshot) {
		s.hub.Broadcast(models.DashboardEvent{
			Domain:    domain,
			Snapshot:  snapshot,
			Timestamp: time.Now(),
		})
	})

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	handler := applyMiddleware(mux, logger)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Handler returns the HTTP handler for testing.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start runs the WebSocket hub and the HTTP server (blocking).
func (s *Server) Start() error {
	go s.hub.Run()
	s.logger.Info().Str("addr", s.server.Addr).Msg("Starting dashboard API server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server and the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.server.Shutdown(ctx)
}

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/config", s.handleUIConfig)

	// Dashboard state
	mux.HandleFunc("/api/dashboard", s.handleDashboard)
	mux.HandleFunc("/api/market", s.handleMarket)
	mux.HandleFunc("/api/portfolio", s.handlePortfolio)

	// Scheduler
	mux.HandleFunc("/api/scheduler/status", s.handleSchedulerStatus)
	mux.HandleFunc("/api/scheduler/toggle", s.handleSchedulerToggle)

	// Chart
	mux.HandleFunc("/api/chart/select", s.handleChartSelect)
	mux.HandleFunc("/api/chart.png", s.handleChartImage)

	// Search
	mux.HandleFunc("/api/stocks/search", s.handleStockSearch)

	// WebSocket state stream
	mux.HandleFunc("/ws/dashboard", s.hub.ServeWS)
}

// handleHealth responds to GET/HEAD /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleVersion responds to GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet, http.MethodHead) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"build":   common.GetBuild(),
		"commit":  common.GetGitCommit(),
		"full":    common.GetFullVersion(),
	})
}

// handleUIConfig serves the constraints the browser frontend needs: search
// input rules and the expected poll cadence.
func (s *Server) handleUIConfig(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"search": map[string]int{
			"min_query_length": s.search.MinQueryLength,
			"max_results":      s.search.MaxResults,
			"debounce_ms":      s.search.DebounceMS,
		},
		"poll_interval_ms": s.polling.GetInterval().Milliseconds(),
		"ranges":           models.DefaultTimeRanges,
	})
}

// handleDashboard returns the full reconciled state snapshot.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, s.store.Snapshot())
}

// handleMarket returns the card list and summary.
func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.store.Snapshot()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cards":   snap.Cards,
		"summary": snap.Summary,
		"error":   snap.Errors[models.DomainMarket],
	})
}

// handlePortfolio returns the latest portfolio snapshot.
func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.store.Snapshot()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"portfolio": snap.Portfolio,
		"error":     snap.Errors[models.DomainPortfolio],
	})
}

// handleSchedulerStatus returns the normalized scheduler status and the
// toggle controller's position.
func (s *Server) handleSchedulerStatus(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	snap := s.store.Snapshot()
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":       snap.SchedulerStatus,
		"toggle_state": snap.ToggleState,
		"error":        snap.Errors[models.DomainScheduler],
	})
}

type toggleRequest struct {
	Action string `json:"action,omitempty"` // "enable", "disable", or empty to flip
}

// handleSchedulerToggle drives the toggle controller. With no explicit
// action the current status is flipped. Responds 409 while another toggle is
// in flight and 502 with "uncertain" semantics when verification times out.
func (s *Server) handleSchedulerToggle(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req toggleRequest
	if r.ContentLength > 0 && !DecodeJSON(w, r, &req) {
		return
	}

	var action models.ToggleAction
	switch req.Action {
	case "enable":
		action = models.ActionEnable
	case "disable":
		action = models.ActionDisable
	case "":
		action = scheduler.ActionFor(s.store.SchedulerStatus())
	default:
		WriteError(w, http.StatusBadRequest, "action must be \"enable\" or \"disable\"")
		return
	}

	status, err := s.toggle.Toggle(r.Context(), action)

	// Mirror the controller outcome into shared state. Mutation failures are
	// not auto-retried by the polling loop; the user retries manually.
	s.store.SetToggleState(s.toggle.State())

	if err != nil {
		var reconcile *models.ReconcileError
		switch {
		case errors.Is(err, scheduler.ErrToggleInFlight):
			WriteErrorWithCode(w, http.StatusConflict, err.Error(), "toggle_in_flight")
		case errors.As(err, &reconcile):
			s.store.SetError(models.DomainScheduler, err.Error())
			WriteErrorWithCode(w, http.StatusBadGateway, err.Error(), "toggle_unconfirmed")
		default:
			s.store.SetError(models.DomainScheduler, err.Error())
			WriteErrorWithCode(w, http.StatusBadGateway, err.Error(), "toggle_failed")
		}
		return
	}

	s.store.SetSchedulerStatus(status)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"action": action,
	})
}

type selectRequest struct {
	Symbol string `json:"symbol"`
	Range  string `json:"range,omitempty"` // 1D/1W/1M/1Y/ALL; empty means ALL
}

// handleChartSelect switches the active chart symbol and triggers an
// immediate out-of-band refresh of the chart domain only. The optional range
// narrows the returned series without affecting the stored one.
func (s *Server) handleChartSelect(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req selectRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if req.Symbol == "" {
		WriteError(w, http.StatusBadRequest, "symbol is required")
		return
	}

	s.orchestrator.SelectSymbol(r.Context(), req.Symbol)

	snap := s.store.Snapshot()
	series := market.FilterByRange(snap.Series, req.Range, models.DefaultTimeRanges)
	low, high := market.DayRange(series)

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"selected_symbol": snap.SelectedSymbol,
		"series":          series,
		"synthetic":       snap.SeriesSynthetic,
		"low":             low,
		"high":            high,
		"error":           snap.Errors[models.DomainChart],
	})
}

// handleChartImage renders the active series as a PNG.
func (s *Server) handleChartImage(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	snap := s.store.Snapshot()
	if len(snap.Series) < 2 {
		WriteError(w, http.StatusNotFound, "no chart series available")
		return
	}

	png, err := s.chartFn(snap.SelectedSymbol, snap.Series)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "chart render failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// handleStockSearch proxies the backend symbol search, enforcing the minimum
// query length and capping the result count.
func (s *Server) handleStockSearch(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	query := r.URL.Query().Get("q")
	if len([]rune(query)) < s.search.MinQueryLength {
		WriteJSON(w, http.StatusOK, []searchResult{})
		return
	}

	results, err := s.client.SearchStocks(r.Context(), query)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "stock search failed: "+err.Error())
		return
	}

	if len(results) > s.search.MaxResults {
		results = results[:s.search.MaxResults]
	}

	out := make([]searchResult, 0, len(results))
	for _, r := range results {
		out = append(out, searchResult{
			Symbol:      r.Symbol,
			DisplayName: r.DisplayName(),
			Exchange:    r.ExchangeName,
		})
	}

	WriteJSON(w, http.StatusOK, out)
}

// searchResult is the flattened search entry served to the browser. The
// backend's three name variants collapse into a single display name.
type searchResult struct {
	Symbol      string `json:"symbol"`
	DisplayName string `json:"display_name"`
	Exchange    string `json:"exchange,omitempty"`
}
