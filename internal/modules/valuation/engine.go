// Package valuation prices user portfolios with a tiered price fallback.
package valuation

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/domain"
)

// QuoteSource provides live quotes from the external feed.
type QuoteSource interface {
	GetQuote(ctx context.Context, symbol string) (float64, error)
}

// MarketRepository is the slice of the market data repository the engine needs.
type MarketRepository interface {
	GetClose(ctx context.Context, symbol string, day domain.Date) (float64, error)
	GetLastCloseBefore(ctx context.Context, symbol string, day domain.Date) (domain.MarketDataPoint, error)
	UpsertClose(ctx context.Context, p domain.MarketDataPoint) error
}

// HoldingSource returns the current holdings for a user.
type HoldingSource interface {
	GetByUser(ctx context.Context, userID string) ([]domain.Holding, error)
}

// MarketCalendar is the calendar slice the engine needs to decide whether a
// live quote is admissible for the requested day.
type MarketCalendar interface {
	CurrentTradingDay() domain.Date
	IsMarketOpenNow() bool
}

// Engine values portfolios. Every holding is priced through a 4-tier fallback:
//  1. Live quote from the feed (only for today, while the market is open)
//  2. Stored close for the exact trading day
//  3. Most recent stored close before the trading day
//  4. The holding's own cost basis
//
// When no tier resolves, Valuate fails with a *domain.ValuationError rather
// than pricing the holding at zero.
type Engine struct {
	quotes   QuoteSource
	market   MarketRepository
	holdings HoldingSource
	calendar MarketCalendar
	log      zerolog.Logger
}

// NewEngine creates a valuation engine. quotes may be nil when no live feed is
// configured; the engine then starts at the stored-close tier.
func NewEngine(quotes QuoteSource, market MarketRepository, holdings HoldingSource, calendar MarketCalendar, log zerolog.Logger) *Engine {
	return &Engine{
		quotes:   quotes,
		market:   market,
		holdings: holdings,
		calendar: calendar,
		log:      log.With().Str("service", "valuation").Logger(),
	}
}

// Valuate values the user's current holdings for the given trading day.
// An empty portfolio values to zero with no resolutions; that is the only
// path that returns a zero total without an error.
func (e *Engine) Valuate(ctx context.Context, userID string, day domain.Date) (*domain.Valuation, error) {
	holdings, err := e.holdings.GetByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load holdings for %s: %w", userID, err)
	}
	return e.ValuateHoldings(ctx, userID, day, holdings)
}

// ValuateHoldings values an explicit set of holdings for the given trading
// day. Quality is the worst tier used across all resolutions.
func (e *Engine) ValuateHoldings(ctx context.Context, userID string, day domain.Date, holdings []domain.Holding) (*domain.Valuation, error) {
	v := &domain.Valuation{
		UserID:     userID,
		TradingDay: day,
	}

	live := e.calendar.CurrentTradingDay().Equal(day) && e.calendar.IsMarketOpenNow()

	for _, h := range holdings {
		if h.Quantity == 0 {
			continue
		}

		res, err := e.resolvePrice(ctx, h, day, live)
		if err != nil {
			return nil, &domain.ValuationError{
				UserID: userID,
				Symbol: h.Symbol,
				Day:    day,
				Cause:  err,
			}
		}

		v.TotalValue += h.Quantity * res.Price
		if res.Tier > v.Quality {
			v.Quality = res.Tier
		}
		v.Resolutions = append(v.Resolutions, res)
	}

	return v, nil
}

// resolvePrice walks the fallback tiers for one holding.
func (e *Engine) resolvePrice(ctx context.Context, h domain.Holding, day domain.Date, live bool) (domain.PriceResolution, error) {
	// Tier 1: live quote (only admissible for the current day, market open)
	if live && e.quotes != nil {
		price, err := e.quotes.GetQuote(ctx, h.Symbol)
		if err == nil && price > 0 {
			e.log.Debug().
				Str("symbol", h.Symbol).
				Float64("price", price).
				Str("source", "live_quote").
				Msg("Priced holding from live quote")
			e.writeBack(h.Symbol, day, price)
			return domain.PriceResolution{Symbol: h.Symbol, Price: price, Tier: domain.TierLiveQuote}, nil
		}
		e.log.Warn().Err(err).Str("symbol", h.Symbol).Msg("Live quote failed, trying stored close")
	}

	// Tier 2: stored close for the exact day
	price, err := e.market.GetClose(ctx, h.Symbol, day)
	if err == nil && price > 0 {
		return domain.PriceResolution{Symbol: h.Symbol, Price: price, Tier: domain.TierClose}, nil
	}

	// Tier 3: most recent close before the day
	p, err := e.market.GetLastCloseBefore(ctx, h.Symbol, day)
	if err == nil && p.ClosePrice > 0 {
		e.log.Debug().
			Str("symbol", h.Symbol).
			Str("day", day.String()).
			Str("close_day", p.TradingDay.String()).
			Msg("Using stale close for valuation")
		return domain.PriceResolution{Symbol: h.Symbol, Price: p.ClosePrice, Tier: domain.TierLastClose}, nil
	}

	// Tier 4: cost basis (last resort)
	if h.CostBasis > 0 {
		e.log.Warn().
			Str("symbol", h.Symbol).
			Str("day", day.String()).
			Msg("No market data, falling back to cost basis")
		return domain.PriceResolution{Symbol: h.Symbol, Price: h.CostBasis, Tier: domain.TierCostBasis}, nil
	}

	return domain.PriceResolution{}, fmt.Errorf("no price available for %s on %s", h.Symbol, day)
}

// writeBack persists a live quote as a provisional close so later reads within
// the same day hit tier 2 instead of the feed. Best-effort: failures are
// logged, never surfaced.
func (e *Engine) writeBack(symbol string, day domain.Date, price float64) {
	go func() {
		ctx := context.Background()
		if err := e.market.UpsertClose(ctx, domain.MarketDataPoint{
			Symbol:     symbol,
			TradingDay: day,
			ClosePrice: price,
		}); err != nil {
			e.log.Warn().Err(err).Str("symbol", symbol).Msg("Failed to persist live quote")
		}
	}()
}
