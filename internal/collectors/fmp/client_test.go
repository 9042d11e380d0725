package fmp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ternarybob/advisor/internal/common"
	"github.com/ternarybob/advisor/internal/httpclient"
	"github.com/ternarybob/advisor/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	limiter := ratelimit.NewLimiter(nil, 1000)
	hc := httpclient.NewClient(limiter, httpclient.NewBreaker(time.Hour), common.GetLogger())
	return NewClient("test-key", hc, common.GetLogger(), WithBaseURL(server.URL))
}

func TestGetQuoteMapsResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/quote/AAPL", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("apikey"))
		w.Write([]byte(`[{"symbol":"AAPL","price":201.5,"change":3.2,"changesPercentage":1.61,"dayHigh":202.1,"dayLow":198.4,"volume":51000000,"previousClose":198.3,"timestamp":1756600000}]`))
	})

	quote, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", quote.Symbol)
	assert.Equal(t, 201.5, quote.Price)
	assert.Equal(t, 1.61, quote.ChangePercent)
	assert.Equal(t, int64(51000000), quote.Volume)
}

func TestGetQuoteEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := client.GetQuote(context.Background(), "ZZZZ")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no quote")
}

func TestGetPeers(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v4/stock_peers", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		w.Write([]byte(`[{"symbol":"AAPL","peersList":["MSFT","GOOGL","NVDA"]}]`))
	})

	peers, err := client.GetPeers(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, []string{"MSFT", "GOOGL", "NVDA"}, peers)
}

func TestGetAnalystRatingsDerivesRevisions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[
			{"date":"2026-08-01","analystRatingsStrongBuy":12,"analystRatingsbuy":20,"analystRatingsHold":8,"analystRatingsSell":2,"analystRatingsStrongSell":1},
			{"date":"2026-07-01","analystRatingsStrongBuy":10,"analystRatingsbuy":18,"analystRatingsHold":10,"analystRatingsSell":3,"analystRatingsStrongSell":1}
		]`))
	})

	ratings, err := client.GetAnalystRatings(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 12, ratings.StrongBuy)
	assert.Equal(t, 8, ratings.Hold)
	assert.Equal(t, "2026-08-01", ratings.LastUpdated.Format("2006-01-02"))
	assert.Equal(t, 4, ratings.RevisionsUp, "buy-side gain month over month")
	assert.Equal(t, 0, ratings.RevisionsDown, "sell-side shrank, no downward revisions")
}
