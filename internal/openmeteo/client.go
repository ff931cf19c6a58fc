package openmeteo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tmarchal/climatekit/internal/circuitbreaker"
	"github.com/tmarchal/climatekit/internal/models"
	"github.com/tmarchal/climatekit/internal/observability"
)

// ArchiveClient fetches daily temperature extremes from a historical weather archive.
type ArchiveClient interface {
	GetDailyTemperatures(ctx context.Context, lat, lon float64, start, end time.Time) ([]models.DailyTemperature, error)
	Ping(ctx context.Context) error
}

var (
	// ErrUpstreamFailure covers 5xx responses and transport-level failures.
	ErrUpstreamFailure = errors.New("upstream failure")
	// ErrRateLimited is returned on HTTP 429. Retryable.
	ErrRateLimited = errors.New("rate limited")
	// ErrBadRequest is returned when the API rejects the request parameters.
	ErrBadRequest = errors.New("rejected request")
	// ErrMalformedResponse is returned when the response shape does not match
	// the documented daily time-series schema.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrDataUnavailable is returned when the archive has no records for part
	// of the requested range (null entries or missing days).
	ErrDataUnavailable = errors.New("data unavailable for requested range")
)

// Client calls the Open-Meteo archive API with retries and an optional circuit breaker.
type Client struct {
	apiURL         string
	timeout        time.Duration
	client         *http.Client
	retryAttempts  int
	retryBaseDelay time.Duration
	retryMaxDelay  time.Duration
	breaker        *circuitbreaker.CircuitBreaker
}

// NewClient creates a Client with default retry settings (3 attempts,
// 100ms base delay, 2s max delay).
func NewClient(apiURL string, timeout time.Duration) (*Client, error) {
	return NewClientWithRetry(apiURL, timeout, 3, 100*time.Millisecond, 2*time.Second)
}

// NewClientWithRetry creates a Client with explicit retry settings.
func NewClientWithRetry(apiURL string, timeout time.Duration, retryAttempts int, retryBaseDelay, retryMaxDelay time.Duration) (*Client, error) {
	if apiURL == "" {
		return nil, fmt.Errorf("archive API URL is required")
	}
	if _, err := url.Parse(apiURL); err != nil {
		return nil, fmt.Errorf("invalid archive API URL: %w", err)
	}
	if retryAttempts <= 0 {
		retryAttempts = 1
	}

	return &Client{
		apiURL:         apiURL,
		timeout:        timeout,
		retryAttempts:  retryAttempts,
		retryBaseDelay: retryBaseDelay,
		retryMaxDelay:  retryMaxDelay,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker wraps upstream calls with the given breaker. Intended for
// the long-running service; the CLI leaves it unset.
func (c *Client) SetCircuitBreaker(cb *circuitbreaker.CircuitBreaker) {
	c.breaker = cb
}

// archiveResponse mirrors the documented daily time-series schema. Temperature
// entries are pointers because the archive returns null for days it has not
// ingested yet.
type archiveResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timezone  string  `json:"timezone"`
	Daily     struct {
		Time           []string   `json:"time"`
		TemperatureMax []*float64 `json:"temperature_2m_max"`
		TemperatureMin []*float64 `json:"temperature_2m_min"`
	} `json:"daily"`
}

// archiveError is the API's error payload ({"error": true, "reason": "..."}).
type archiveError struct {
	Error  bool   `json:"error"`
	Reason string `json:"reason"`
}

// GetDailyTemperatures returns one record per day in [start, end], both inclusive.
// Retries transient failures with exponential backoff and jitter.
func (c *Client) GetDailyTemperatures(ctx context.Context, lat, lon float64, start, end time.Time) ([]models.DailyTemperature, error) {
	var lastErr error

	for attempt := 0; attempt < c.retryAttempts; attempt++ {
		if attempt > 0 {
			observability.ArchiveAPIRetriesTotal.Inc()
			delay := c.calculateBackoff(attempt)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result, err := c.callAPI(ctx, lat, lon, start, end)
		if err == nil {
			return result, nil
		}

		lastErr = err
		if !c.isRetryable(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("exhausted retries: %w", lastErr)
}

func (c *Client) callAPI(ctx context.Context, lat, lon float64, start, end time.Time) ([]models.DailyTemperature, error) {
	if c.breaker == nil {
		return c.doCall(ctx, lat, lon, start, end)
	}
	var out []models.DailyTemperature
	err := c.breaker.Call(ctx, func() error {
		var callErr error
		out, callErr = c.doCall(ctx, lat, lon, start, end)
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) doCall(ctx context.Context, lat, lon float64, start, end time.Time) ([]models.DailyTemperature, error) {
	startTime := time.Now()

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(reqCtx, lat, lon, start, end)
	if err != nil {
		observability.ArchiveAPICallsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("build request: %w", err)
	}

	corrID := extractCorrelationID(ctx)
	if corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		duration := time.Since(startTime).Seconds()
		observability.ArchiveAPICallsTotal.WithLabelValues("error").Inc()
		observability.ArchiveAPIDuration.WithLabelValues("error").Observe(duration)

		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("request timeout: %w", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	duration := time.Since(startTime).Seconds()
	status := statusLabel(resp.StatusCode)
	observability.ArchiveAPICallsTotal.WithLabelValues(status).Inc()
	observability.ArchiveAPIDuration.WithLabelValues(status).Observe(duration)

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if err := c.handleErrorResponse(resp.StatusCode, body); err != nil {
		return nil, err
	}

	var apiResp archiveResponse
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return c.mapResponse(apiResp)
}

func (c *Client) isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure) {
		return true
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "context deadline exceeded") || strings.Contains(errStr, "context canceled") {
		return true
	}

	return false
}

func (c *Client) calculateBackoff(attempt int) time.Duration {
	delay := float64(c.retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.retryMaxDelay) {
		delay = float64(c.retryMaxDelay)
	}

	jitter := delay * 0.1 * rand.Float64()
	return time.Duration(delay + jitter)
}

func (c *Client) buildRequest(ctx context.Context, lat, lon float64, start, end time.Time) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	params.Set("start_date", start.Format("2006-01-02"))
	params.Set("end_date", end.Format("2006-01-02"))
	params.Set("daily", "temperature_2m_max,temperature_2m_min")
	params.Set("timezone", "auto")
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	reason := ""
	var apiErr archiveError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Reason != "" {
		reason = ": " + apiErr.Reason
	}

	switch {
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%w%s", ErrBadRequest, reason)
	case statusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w%s", ErrRateLimited, reason)
	default:
		return fmt.Errorf("%w: HTTP %d%s", ErrUpstreamFailure, statusCode, reason)
	}
}

// mapResponse converts the wire schema into DailyTemperature records, rejecting
// shape mismatches (length skew) and null temperature entries.
func (c *Client) mapResponse(apiResp archiveResponse) ([]models.DailyTemperature, error) {
	daily := apiResp.Daily
	n := len(daily.Time)
	if n == 0 {
		return nil, fmt.Errorf("%w: empty daily series", ErrDataUnavailable)
	}
	if len(daily.TemperatureMax) != n || len(daily.TemperatureMin) != n {
		return nil, fmt.Errorf("%w: series length mismatch (time=%d, t_max=%d, t_min=%d)",
			ErrMalformedResponse, n, len(daily.TemperatureMax), len(daily.TemperatureMin))
	}

	out := make([]models.DailyTemperature, 0, n)
	for i := 0; i < n; i++ {
		date, err := time.ParseInLocation("2006-01-02", daily.Time[i], time.UTC)
		if err != nil {
			return nil, fmt.Errorf("%w: bad date %q", ErrMalformedResponse, daily.Time[i])
		}
		if daily.TemperatureMax[i] == nil || daily.TemperatureMin[i] == nil {
			return nil, fmt.Errorf("%w: no record for %s", ErrDataUnavailable, daily.Time[i])
		}
		out = append(out, models.DailyTemperature{
			Date: date,
			TMax: *daily.TemperatureMax[i],
			TMin: *daily.TemperatureMin[i],
		})
	}
	return out, nil
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

func statusLabel(statusCode int) string {
	if statusCode >= 200 && statusCode < 300 {
		return "success"
	}
	if statusCode == 429 {
		return "rate_limited"
	}
	if statusCode >= 400 && statusCode < 500 {
		return "client_error"
	}
	if statusCode >= 500 {
		return "server_error"
	}
	return "error"
}

// Ping issues a minimal one-day request to verify the archive is reachable.
// Used by the service health check; the API requires no authentication.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	day := time.Now().UTC().AddDate(0, 0, -7)
	req, err := c.buildRequest(ctx, 48.8, 2.49, day, day)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("ping request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping failed: HTTP %d", resp.StatusCode)
	}

	return nil
}
