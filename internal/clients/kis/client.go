// Package kis provides a client for the trading backend's REST gateway.
package kis

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/jwpark-dev/tradedash/internal/common"
	"github.com/jwpark-dev/tradedash/internal/interfaces"
	"github.com/jwpark-dev/tradedash/internal/models"
)

const (
	DefaultBaseURL   = "http://localhost:8080/api"
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = 10 // requests per second
)

// Client implements the BackendClient interface
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests).
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new backend client
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-2xx response from the backend
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend API error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// do performs a rate-limited request and decodes the JSON response into result.
// A nil result discards the body after the status check.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, result interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.logger.Debug().Str("method", method).Str("path", path).Msg("Backend API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if result == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// GetSchedulerStatus retrieves the raw scheduler status text. The endpoint
// returns free text, not JSON, so the body is read as-is.
func (c *Client) GetSchedulerStatus(ctx context.Context) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/scheduler/status", nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   "/scheduler/status",
		}
	}

	// The status may arrive as a bare string or a JSON-quoted one.
	text := strings.TrimSpace(string(body))
	var quoted string
	if json.Unmarshal(body, &quoted) == nil {
		text = quoted
	}

	return text, nil
}

// SetScheduler issues the enable or disable command. The command is never
// retried here: re-issuing a mutating command is unsafe, only verification
// retries (in the toggle controller).
func (c *Client) SetScheduler(ctx context.Context, action models.ToggleAction) error {
	path := "/scheduler/" + string(action)
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// GetIndexSeries retrieves the time series for an index endpoint path,
// chronological with the latest element last.
func (c *Client) GetIndexSeries(ctx context.Context, endpoint string) ([]models.RawChartPoint, error) {
	var points []models.RawChartPoint
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// GetAccountBalance retrieves the raw portfolio payload.
func (c *Client) GetAccountBalance(ctx context.Context) (*models.AccountBalance, error) {
	var balance models.AccountBalance
	if err := c.do(ctx, http.MethodGet, "/account", nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

// SearchStocks searches symbols by free-text query.
func (c *Client) SearchStocks(ctx context.Context, query string) ([]models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", query)

	var results []models.SearchResult
	if err := c.do(ctx, http.MethodGet, "/stocks/search", params, &results); err != nil {
		return nil, err
	}
	return results, nil
}

// GetStockChart retrieves the per-symbol time series.
func (c *Client) GetStockChart(ctx context.Context, symbol string) ([]models.RawChartPoint, error) {
	path := fmt.Sprintf("/stocks/%s/chart", url.PathEscape(symbol))

	var points []models.RawChartPoint
	if err := c.do(ctx, http.MethodGet, path, nil, &points); err != nil {
		return nil, err
	}
	return points, nil
}

// Ensure Client implements BackendClient
var _ interfaces.BackendClient = (*Client)(nil)
