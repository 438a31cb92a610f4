// Package quotefeed is the client for the external market-data provider. It
// exposes live quotes and historical closes, rate-limits outbound calls and
// caches quotes with a market-aware freshness window: about a minute while the
// market trades, unlimited while it is closed (prices cannot move).
package quotefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/openfolio/openfolio/internal/domain"
)

// openMarketQuoteTTL bounds how stale a cached quote may be while trading.
const openMarketQuoteTTL = time.Minute

// MarketClock is the slice of the exchange calendar the client needs.
type MarketClock interface {
	Now() time.Time
	IsMarketOpen(t time.Time) bool
}

// CallCounter counts outbound provider calls. Satisfied by prometheus counters.
type CallCounter interface {
	Inc()
}

// cachedQuote is one freshness-cache entry.
type cachedQuote struct {
	price     float64
	fetchedAt time.Time
}

// Client is the market-data provider client.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	clock   MarketClock
	log     zerolog.Logger

	mu     sync.RWMutex
	quotes map[string]cachedQuote

	callCounter CallCounter
}

// SetCallCounter attaches a counter incremented on every outbound provider
// request. Safe to leave unset.
func (c *Client) SetCallCounter(counter CallCounter) {
	c.callCounter = counter
}

// NewClient creates a new quote feed client. The limiter allows a sustained
// 5 req/s with small bursts, matching the provider's documented limits.
func NewClient(baseURL, apiKey string, clock MarketClock, log zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		clock:   clock,
		log:     log.With().Str("client", "quotefeed").Logger(),
		quotes:  make(map[string]cachedQuote),
	}
}

// quoteResponse is the provider's live quote payload.
type quoteResponse struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// closeResponse is the provider's historical close payload.
type closeResponse struct {
	Symbol string  `json:"symbol"`
	Date   string  `json:"date"`
	Close  float64 `json:"close"`
}

// GetQuote returns a live price for the ticker, served from the freshness
// cache when possible.
func (c *Client) GetQuote(ctx context.Context, symbol string) (float64, error) {
	if price, ok := c.cachedFreshQuote(symbol); ok {
		return price, nil
	}

	if c.baseURL == "" {
		return 0, fmt.Errorf("quote feed not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	var resp quoteResponse
	if err := c.getJSON(ctx, "/v1/quote", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch quote for %s: %w", symbol, err)
	}
	if resp.Price <= 0 {
		return 0, fmt.Errorf("provider returned non-positive quote for %s", symbol)
	}

	c.SetQuote(symbol, resp.Price)
	return resp.Price, nil
}

// GetHistoricalClose returns the close price for the ticker on the given day.
func (c *Client) GetHistoricalClose(ctx context.Context, symbol string, day domain.Date) (float64, error) {
	if c.baseURL == "" {
		return 0, fmt.Errorf("quote feed not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter wait cancelled: %w", err)
	}

	var resp closeResponse
	params := url.Values{"symbol": {symbol}, "date": {day.String()}}
	if err := c.getJSON(ctx, "/v1/close", params, &resp); err != nil {
		return 0, fmt.Errorf("failed to fetch close for %s on %s: %w", symbol, day, err)
	}
	if resp.Close <= 0 {
		return 0, fmt.Errorf("provider returned non-positive close for %s on %s", symbol, day)
	}
	return resp.Close, nil
}

// SetQuote stores a price in the freshness cache. Called on fetches and by the
// streaming subscriber on every tick.
func (c *Client) SetQuote(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes[symbol] = cachedQuote{price: price, fetchedAt: c.clock.Now()}
}

// cachedFreshQuote returns a cached price when it is still trustworthy.
func (c *Client) cachedFreshQuote(symbol string) (float64, bool) {
	c.mu.RLock()
	entry, ok := c.quotes[symbol]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}

	now := c.clock.Now()
	if !c.clock.IsMarketOpen(now) {
		// Prices don't move while the market is closed.
		return entry.price, true
	}
	if now.Sub(entry.fetchedAt) < openMarketQuoteTTL {
		return entry.price, true
	}
	return 0, false
}

// ClearCache drops all cached quotes.
func (c *Client) ClearCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.quotes = make(map[string]cachedQuote)
}

func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	u := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	if c.callCounter != nil {
		c.callCounter.Inc()
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
