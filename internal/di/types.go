// Package di provides dependency injection wiring and initialization.
package di

import (
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/clients/quotefeed"
	"github.com/openfolio/openfolio/internal/config"
	"github.com/openfolio/openfolio/internal/database"
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

// Container holds every shared dependency, wired once at startup.
type Container struct {
	Config *config.Config
	Log    zerolog.Logger

	// Databases
	MarketDB    *database.DB
	PortfolioDB *database.DB
	CacheDB     *database.DB

	// Ambient
	Calendar *calendar.Calendar
	Metrics  *metrics.Metrics

	// Repositories
	MarketRepo   *marketdata.Repository
	HoldingsRepo *holdings.Repository
	SnapshotRepo *snapshots.Repository
	ChartCache   *charts.CacheRepository

	// External clients. QuoteClient and QuoteStream are nil when no feed is
	// configured; RedisClient is nil when no Redis address is configured.
	QuoteClient *quotefeed.Client
	QuoteStream *quotefeed.QuoteStream
	RedisClient *redis.Client

	// Services
	Valuer          *valuation.Engine
	SnapshotService *snapshots.Service
	ChartBuilder    *charts.Builder
	Charts          *charts.CachedBuilder
	Leaderboard     *leaderboard.CachedService

	// Batch jobs
	Jobs *scheduler.Jobs
}

// Close releases the container's long-lived resources in reverse wiring order.
func (c *Container) Close() {
	if c.QuoteStream != nil {
		if err := c.QuoteStream.Stop(); err != nil {
			c.Log.Warn().Err(err).Msg("Failed to stop quote stream")
		}
	}
	if c.RedisClient != nil {
		if err := c.RedisClient.Close(); err != nil {
			c.Log.Warn().Err(err).Msg("Failed to close Redis client")
		}
	}
	for _, db := range []*database.DB{c.CacheDB, c.PortfolioDB, c.MarketDB} {
		if db == nil {
			continue
		}
		if err := db.Close(); err != nil {
			c.Log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to close database")
		}
	}
}
