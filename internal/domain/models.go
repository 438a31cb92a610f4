// Package domain holds the shared types of the performance engine. The domain
// layer is pure: no database, HTTP, or logging dependencies.
package domain

import "time"

// Holding is a single position in a user's portfolio, as delivered by the
// external trade-execution feed. Quantity is zero when a position was fully
// closed; such rows are kept so cost basis history survives.
type Holding struct {
	UserID    string  `json:"user_id"`
	Symbol    string  `json:"symbol"`
	Quantity  float64 `json:"quantity"`
	CostBasis float64 `json:"cost_basis"` // per-share acquisition price
}

// User is the minimal projection of a user this engine needs: identity for
// ranking tie-breaks and the subscriber count surfaced on leaderboards.
type User struct {
	ID              string `json:"id"`
	DisplayName     string `json:"display_name"`
	SubscriberCount int    `json:"subscriber_count"`
}

// Security carries per-symbol metadata used for category filters.
type Security struct {
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	CapClass string `json:"cap_class"` // "large_cap" or "small_cap"
}

// DailySnapshot is the end-of-day valuation record. Exactly one row exists per
// (user, trading day); same-day upserts before close are the only mutation.
type DailySnapshot struct {
	UserID        string  `json:"user_id"`
	TradingDay    Date    `json:"trading_day"`
	TotalValue    float64 `json:"total_value"`
	CashDeployed  float64 `json:"cumulative_cash_deployed"`
	CashWithdrawn float64 `json:"cumulative_cash_withdrawn"`
	Quality       string  `json:"quality"` // worst PriceTier used by the valuation
}

// IntradaySnapshot is an append-only valuation taken during market hours.
type IntradaySnapshot struct {
	UserID     string    `json:"user_id"`
	Timestamp  time.Time `json:"timestamp"`
	TotalValue float64   `json:"total_value"`
}

// MarketDataPoint is a close price for a symbol on a trading day. Unique per
// (symbol, trading day). The benchmark index is stored under its own symbol.
type MarketDataPoint struct {
	Symbol     string  `json:"symbol"`
	TradingDay Date    `json:"trading_day"`
	ClosePrice float64 `json:"close_price"`
}

// CashFlow is a deposit (positive) or withdrawal (negative) event.
type CashFlow struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
	Day    Date    `json:"day"`
}

// PriceTier identifies which fallback tier resolved a price. Ordered from best
// to worst so the valuation quality flag is simply the maximum tier used.
type PriceTier int

const (
	// TierLiveQuote is a fresh quote from the feed (today, market open).
	TierLiveQuote PriceTier = iota
	// TierClose is the stored close for the exact trading day.
	TierClose
	// TierLastClose is the most recent stored close before the trading day.
	TierLastClose
	// TierCostBasis is the holding's own cost basis, the last resort.
	TierCostBasis
)

// String returns the wire name of the tier.
func (t PriceTier) String() string {
	switch t {
	case TierLiveQuote:
		return "live_quote"
	case TierClose:
		return "close"
	case TierLastClose:
		return "last_close"
	case TierCostBasis:
		return "cost_basis"
	}
	return "unknown"
}

// ParsePriceTier maps a stored tier name back to its PriceTier. Unknown names
// rank as TierCostBasis so corrupt rows degrade quality instead of inflating it.
func ParsePriceTier(s string) PriceTier {
	switch s {
	case "live_quote":
		return TierLiveQuote
	case "close":
		return TierClose
	case "last_close":
		return TierLastClose
	}
	return TierCostBasis
}

// PriceResolution records how one holding was priced.
type PriceResolution struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Tier   PriceTier `json:"tier"`
}

// Valuation is the result of valuing a user's holdings on a trading day.
// Quality is the worst tier among the resolutions; an empty portfolio values to
// zero with no resolutions, which is the only legitimate zero.
type Valuation struct {
	UserID      string            `json:"user_id"`
	TradingDay  Date              `json:"trading_day"`
	TotalValue  float64           `json:"total_value"`
	Quality     PriceTier         `json:"quality"`
	Resolutions []PriceResolution `json:"resolutions"`
}

// SeriesPoint is one aligned point of a chart series. Nil values are gap
// markers (non-trading intervals, missing benchmark data) and must be rendered
// as breaks, never interpolated.
type SeriesPoint struct {
	Label     string   `json:"date" msgpack:"label"`
	Portfolio *float64 `json:"portfolio_pct" msgpack:"portfolio"`
	Benchmark *float64 `json:"benchmark_pct" msgpack:"benchmark"`
}

// ChartSeries is the generated payload for one (user, period). The final
// portfolio point and PortfolioReturn come from the same Modified-Dietz
// computation, so headline and chart can never disagree.
type ChartSeries struct {
	UserID          string        `json:"user_id" msgpack:"user_id"`
	Period          string        `json:"period" msgpack:"period"`
	PortfolioReturn float64       `json:"portfolio_return" msgpack:"portfolio_return"`
	BenchmarkReturn float64       `json:"benchmark_return" msgpack:"benchmark_return"`
	Quality         string        `json:"quality,omitempty" msgpack:"quality"`
	Points          []SeriesPoint `json:"series" msgpack:"points"`
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank            int     `json:"rank" msgpack:"rank"`
	UserID          string  `json:"user_id" msgpack:"user_id"`
	DisplayName     string  `json:"display_name" msgpack:"display_name"`
	ReturnPct       float64 `json:"return_pct" msgpack:"return_pct"`
	SubscriberCount int     `json:"subscriber_count" msgpack:"subscriber_count"`
}
