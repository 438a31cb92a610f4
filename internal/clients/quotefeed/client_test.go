package quotefeed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/internal/domain"
)

// fakeClock is a controllable MarketClock.
type fakeClock struct {
	now  time.Time
	open bool
}

func (f *fakeClock) Now() time.Time              { return f.now }
func (f *fakeClock) IsMarketOpen(time.Time) bool { return f.open }

func newQuoteServer(t *testing.T, hits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/quote", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"` + r.URL.Query().Get("symbol") + `","price":123.45}`))
	})
	mux.HandleFunc("/v1/close", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"` + r.URL.Query().Get("symbol") + `","date":"` + r.URL.Query().Get("date") + `","close":99.5}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestGetQuoteFetchesAndCaches(t *testing.T) {
	var hits atomic.Int64
	srv := newQuoteServer(t, &hits)
	clock := &fakeClock{now: time.Now(), open: true}
	client := NewClient(srv.URL, "test-key", clock, zerolog.Nop())

	price, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 123.45, price)
	assert.Equal(t, int64(1), hits.Load())

	// Second call inside the freshness window hits the cache.
	price, err = client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 123.45, price)
	assert.Equal(t, int64(1), hits.Load())
}

func TestQuoteCacheExpiresDuringMarketHours(t *testing.T) {
	var hits atomic.Int64
	srv := newQuoteServer(t, &hits)
	clock := &fakeClock{now: time.Now(), open: true}
	client := NewClient(srv.URL, "", clock, zerolog.Nop())

	_, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	// Advance past the freshness window; the cache must be bypassed.
	clock.now = clock.now.Add(2 * time.Minute)
	_, err = client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load())
}

func TestQuoteCacheUnlimitedWhenMarketClosed(t *testing.T) {
	var hits atomic.Int64
	srv := newQuoteServer(t, &hits)
	clock := &fakeClock{now: time.Now(), open: true}
	client := NewClient(srv.URL, "", clock, zerolog.Nop())

	_, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	// Market closes; even a very old cached quote stays valid.
	clock.open = false
	clock.now = clock.now.Add(12 * time.Hour)
	price, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 123.45, price)
	assert.Equal(t, int64(1), hits.Load())
}

func TestGetHistoricalClose(t *testing.T) {
	var hits atomic.Int64
	srv := newQuoteServer(t, &hits)
	client := NewClient(srv.URL, "", &fakeClock{now: time.Now()}, zerolog.Nop())

	price, err := client.GetHistoricalClose(context.Background(), "MSFT", domain.MustParseDate("2025-03-03"))
	require.NoError(t, err)
	assert.Equal(t, 99.5, price)
}

func TestUnconfiguredFeedFails(t *testing.T) {
	client := NewClient("", "", &fakeClock{now: time.Now()}, zerolog.Nop())

	_, err := client.GetQuote(context.Background(), "AAPL")
	assert.Error(t, err)

	_, err = client.GetHistoricalClose(context.Background(), "AAPL", domain.MustParseDate("2025-03-03"))
	assert.Error(t, err)
}

func TestSetQuoteFeedsCache(t *testing.T) {
	clock := &fakeClock{now: time.Now(), open: true}
	client := NewClient("", "", clock, zerolog.Nop())

	// A streamed tick makes the quote available without any HTTP fetch.
	client.SetQuote("TSLA", 250.0)
	price, err := client.GetQuote(context.Background(), "TSLA")
	require.NoError(t, err)
	assert.Equal(t, 250.0, price)
}

type countingCounter struct {
	n atomic.Int64
}

func (c *countingCounter) Inc() { c.n.Add(1) }

func TestCallCounterTracksOutboundRequests(t *testing.T) {
	var hits atomic.Int64
	srv := newQuoteServer(t, &hits)
	clock := &fakeClock{now: time.Now(), open: true}
	client := NewClient(srv.URL, "", clock, zerolog.Nop())

	counter := &countingCounter{}
	client.SetCallCounter(counter)

	_, err := client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	// Cache hits do not reach the provider and must not count.
	_, err = client.GetQuote(context.Background(), "AAPL")
	require.NoError(t, err)

	_, err = client.GetHistoricalClose(context.Background(), "AAPL", domain.MustParseDate("2025-03-03"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), counter.n.Load())
}

func TestProviderErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(srv.URL, "", &fakeClock{now: time.Now(), open: true}, zerolog.Nop())
	_, err := client.GetQuote(context.Background(), "AAPL")
	assert.ErrorContains(t, err, "status 500")
}
