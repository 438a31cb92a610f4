package di

import (
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/clients/quotefeed"
	"github.com/openfolio/openfolio/internal/config"
	"github.com/openfolio/openfolio/internal/metrics"
	"github.com/openfolio/openfolio/internal/modules/calendar"
	"github.com/openfolio/openfolio/internal/modules/charts"
	"github.com/openfolio/openfolio/internal/modules/holdings"
	"github.com/openfolio/openfolio/internal/modules/leaderboard"
	"github.com/openfolio/openfolio/internal/modules/marketdata"
	"github.com/openfolio/openfolio/internal/modules/snapshots"
	"github.com/openfolio/openfolio/internal/modules/valuation"
	"github.com/openfolio/openfolio/internal/scheduler"
)

// Wire initializes all dependencies and returns a fully configured container.
// Order of operations: databases, repositories, clients, services, jobs.
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := initializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed successfully")

	return container, nil
}

func initializeServices(c *Container, cfg *config.Config, log zerolog.Logger) error {
	cal, err := calendar.New(cfg.ExchangeTZ)
	if err != nil {
		return fmt.Errorf("failed to build exchange calendar: %w", err)
	}
	c.Calendar = cal
	c.Metrics = metrics.New()

	c.MarketRepo = marketdata.NewRepository(c.MarketDB.Conn(), log)
	c.HoldingsRepo = holdings.NewRepository(c.PortfolioDB.Conn(), log)
	c.SnapshotRepo = snapshots.NewRepository(c.PortfolioDB.Conn(), log)
	c.ChartCache = charts.NewCacheRepository(c.CacheDB.Conn(), log)

	// The quote feed is optional. Without it the valuation engine starts at
	// the stored-close tier.
	var quotes valuation.QuoteSource
	if cfg.QuoteFeedURL != "" {
		c.QuoteClient = quotefeed.NewClient(cfg.QuoteFeedURL, cfg.QuoteFeedAPIKey, cal, log)
		c.QuoteClient.SetCallCounter(c.Metrics.QuoteFeedCalls)
		quotes = c.QuoteClient
		if cfg.QuoteStreamURL != "" {
			c.QuoteStream = quotefeed.NewQuoteStream(cfg.QuoteStreamURL, c.QuoteClient, log)
		}
	}

	c.Valuer = valuation.NewEngine(quotes, c.MarketRepo, c.HoldingsRepo, cal, log)
	c.SnapshotService = snapshots.NewService(c.SnapshotRepo, c.Valuer, cal, log)

	c.ChartBuilder = charts.NewBuilder(c.SnapshotRepo, c.MarketRepo, cal, cfg.BenchmarkSymbol, log)
	c.Charts = charts.NewCachedBuilder(c.ChartBuilder, c.ChartCache, cal, c.Metrics, log)

	if cfg.RedisAddr != "" {
		c.RedisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
	}
	boards := leaderboard.NewService(c.HoldingsRepo, c.SnapshotRepo, c.MarketRepo, cal, log)
	c.Leaderboard = leaderboard.NewCachedService(boards, c.RedisClient, cal, log)

	c.Jobs = scheduler.NewJobs(c.HoldingsRepo, c.SnapshotService, c.Charts, c.Leaderboard, cal, c.Metrics, log)

	return nil
}
