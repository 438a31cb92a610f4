package di

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		DataDir:         t.TempDir(),
		ExchangeTZ:      "America/New_York",
		BenchmarkSymbol: "SPX",
	}
}

func TestWireMinimalConfig(t *testing.T) {
	c, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.MarketDB)
	assert.NotNil(t, c.PortfolioDB)
	assert.NotNil(t, c.CacheDB)
	assert.NotNil(t, c.Calendar)
	assert.NotNil(t, c.Metrics)
	assert.NotNil(t, c.SnapshotService)
	assert.NotNil(t, c.Charts)
	assert.NotNil(t, c.Leaderboard)
	assert.NotNil(t, c.Jobs)

	// No feed or Redis configured: optional clients stay nil.
	assert.Nil(t, c.QuoteClient)
	assert.Nil(t, c.QuoteStream)
	assert.Nil(t, c.RedisClient)
}

func TestWireWithQuoteFeed(t *testing.T) {
	cfg := testConfig(t)
	cfg.QuoteFeedURL = "http://127.0.0.1:1"
	cfg.QuoteFeedAPIKey = "test-key"

	c, err := Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	assert.NotNil(t, c.QuoteClient)
	assert.Nil(t, c.QuoteStream)
}

func TestWireSchemaApplied(t *testing.T) {
	c, err := Wire(testConfig(t), zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	var n int
	err = c.PortfolioDB.Conn().QueryRow(
		`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'daily_snapshots'`).Scan(&n)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestWireBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.ExchangeTZ = "Not/AZone"

	_, err := Wire(cfg, zerolog.Nop())
	require.Error(t, err)
}
