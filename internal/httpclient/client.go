// Package httpclient provides the shared request primitive every data-source
// collector calls: a rate-limited HTTP GET with retry, backoff, and
// circuit-breaker semantics.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/advisor/internal/ratelimit"
)

const (
	defaultTimeout  = 30 * time.Second
	maxAttempts     = 3
	baseRetryDelay  = 500 * time.Millisecond
	maxRetryDelay   = 5 * time.Second
)

// APIError represents a non-2xx response from a provider.
type APIError struct {
	Source     string
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error: %s (status: %d, endpoint: %s)", e.Source, e.Message, e.StatusCode, e.Endpoint)
}

// BreakerOpenError is returned without any network call while an endpoint's
// circuit breaker is inside its cool-down.
type BreakerOpenError struct {
	Source   string
	Endpoint string
}

func (e *BreakerOpenError) Error() string {
	return fmt.Sprintf("%s circuit open for endpoint %s", e.Source, e.Endpoint)
}

// Client is the rate-limited JSON GET client shared by all collectors.
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.Limiter
	breaker    *Breaker
	logger     arbor.ILogger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a Client over the process-wide limiter and breaker.
func NewClient(limiter *ratelimit.Limiter, breaker *Breaker, logger arbor.ILogger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    limiter,
		breaker:    breaker,
		logger:     logger,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// SetHTTPClient overrides the underlying HTTP client (used by tests).
func (c *Client) SetHTTPClient(hc *http.Client) {
	c.httpClient = hc
}

// GetJSON performs a rate-limited GET against rawURL with params and decodes
// the JSON response into out.
//
// Status handling: 429 fires the limiter's throttle callback and is retried;
// 401/402/403 open the (source, path) breaker for its cool-down and fail
// immediately; 404 fails immediately without retry; transient transport
// errors retry with doubling backoff up to the attempt ceiling.
func (c *Client) GetJSON(ctx context.Context, source, rawURL string, params url.Values, out any) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid url %s: %w", rawURL, err)
	}
	endpoint := parsed.Path

	if c.breaker.IsOpen(source, endpoint) {
		return &BreakerOpenError{Source: source, Endpoint: endpoint}
	}

	if params != nil {
		parsed.RawQuery = params.Encode()
	}
	reqURL := parsed.String()

	delay := baseRetryDelay
	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.Acquire(ctx, source); err != nil {
			return err
		}

		retryable, err := c.doOnce(ctx, source, endpoint, reqURL, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable {
			return err
		}

		if attempt < maxAttempts {
			c.logger.Debug().
				Str("source", source).
				Str("endpoint", endpoint).
				Int("attempt", attempt).
				Err(err).
				Msg("Retrying request after transient failure")
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			delay *= 2
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
		}
	}

	return fmt.Errorf("%s request failed after %d attempts: %w", source, maxAttempts, lastErr)
}

// doOnce performs a single attempt. The bool reports retryability.
func (c *Client) doOnce(ctx context.Context, source, endpoint, reqURL string, out any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Timeouts and connection resets are transient.
		return true, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("failed to decode %s response: %w", source, err)
		}
		return false, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		c.limiter.NotifyThrottled(source)
		return true, &APIError{Source: source, StatusCode: resp.StatusCode, Endpoint: endpoint, Message: "rate limited"}

	case resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusPaymentRequired,
		resp.StatusCode == http.StatusForbidden:
		c.breaker.Open(source, endpoint)
		c.logger.Warn().
			Str("source", source).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg("Auth failure, circuit opened for endpoint")
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return false, &APIError{Source: source, StatusCode: resp.StatusCode, Endpoint: endpoint, Message: string(body)}

	case resp.StatusCode == http.StatusNotFound:
		return false, &APIError{Source: source, StatusCode: resp.StatusCode, Endpoint: endpoint, Message: "not found"}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		apiErr := &APIError{Source: source, StatusCode: resp.StatusCode, Endpoint: endpoint, Message: string(body)}
		// 5xx responses are worth retrying; other client errors are not.
		return resp.StatusCode >= 500, apiErr
	}
}
