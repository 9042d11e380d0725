package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/ratelimit"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	limiter := ratelimit.NewLimiter(nil, 1000)
	c := NewClient(limiter, NewBreaker(time.Hour), common.GetLogger())
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }
	return c
}

func TestGetJSONSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbol":"AAPL","price":201.5}`))
	}))
	defer srv.Close()

	var out struct {
		Symbol string  `json:"symbol"`
		Price  float64 `json:"price"`
	}
	c := newTestClient(t)
	err := c.GetJSON(context.Background(), "fmp", srv.URL+"/quote", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "AAPL", out.Symbol)
	assert.Equal(t, 201.5, out.Price)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out map[string]any
	c := newTestClient(t)
	err := c.GetJSON(context.Background(), "fmp", srv.URL+"/quote", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestGetJSONAuthFailureOpensBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	var out map[string]any
	c := newTestClient(t)

	err := c.GetJSON(context.Background(), "fmp", srv.URL+"/fundamentals", nil, &out)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Equal(t, 1, calls, "auth failures must not retry")

	// Second call must fast-fail without touching the server.
	err = c.GetJSON(context.Background(), "fmp", srv.URL+"/fundamentals", nil, &out)
	var openErr *BreakerOpenError
	require.ErrorAs(t, err, &openErr)
	assert.Equal(t, 1, calls)

	// A different endpoint of the same source is unaffected.
	err = c.GetJSON(context.Background(), "fmp", srv.URL+"/quote", nil, &out)
	require.NotErrorAs(t, err, &openErr)
}

func TestGetJSONNotFoundIsNonRetryable(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	var out map[string]any
	c := newTestClient(t)
	err := c.GetJSON(context.Background(), "fmp", srv.URL+"/quote", nil, &out)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestGetJSONTooManyRequestsFiresThrottle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	limiter := ratelimit.NewLimiter(nil, 1000)
	throttled := 0
	limiter.SetThrottleCallback(func(source string) { throttled++ })

	c := NewClient(limiter, NewBreaker(time.Hour), common.GetLogger())
	c.sleep = func(ctx context.Context, d time.Duration) error { return ctx.Err() }

	var out map[string]any
	err := c.GetJSON(context.Background(), "fmp", srv.URL+"/quote", nil, &out)
	require.Error(t, err)
	assert.Equal(t, 1, throttled, "repeated 429s within the debounce window notify once")
}

func TestBreakerCoolDownExpires(t *testing.T) {
	b := NewBreaker(time.Hour)
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return now }

	b.Open("fmp", "/fundamentals")
	assert.True(t, b.IsOpen("fmp", "/fundamentals"))
	assert.False(t, b.IsOpen("fmp", "/quote"))
	assert.False(t, b.IsOpen("finnhub", "/fundamentals"))

	now = now.Add(61 * time.Minute)
	assert.False(t, b.IsOpen("fmp", "/fundamentals"))
}

func TestGetJSONInvalidURL(t *testing.T) {
	c := newTestClient(t)
	var out map[string]any
	err := c.GetJSON(context.Background(), "fmp", "://bad", nil, &out)
	require.Error(t, err)
	var openErr *BreakerOpenError
	assert.False(t, errors.As(err, &openErr))
}
