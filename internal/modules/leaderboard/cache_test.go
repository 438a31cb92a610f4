package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/internal/domain"
	"github.com/openfolio/openfolio/internal/modules/charts"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func boardFixture(t *testing.T) (*Service, *fakeCal) {
	t.Helper()
	users := &fakeUsers{users: []domain.User{{ID: "a", DisplayName: "A"}}}
	snaps := &fakeSnaps{dailies: map[string][]domain.DailySnapshot{
		"a": window("a", "2025-06-02", 100, 110),
	}}
	cal := &fakeCal{today: d("2025-06-09"), now: time.Date(2025, 6, 9, 15, 0, 0, 0, time.UTC), open: true}
	return newTestService(users, snaps, &fakeMarket{}, cal), cal
}

func TestCachedGetStoresAndServes(t *testing.T) {
	svc, cal := boardFixture(t)
	mr, client := setupRedis(t)
	cached := NewCachedService(svc, client, cal, zerolog.Nop())
	ctx := context.Background()

	board, err := cached.Get(ctx, charts.Period1M, CategoryAll)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
	assert.True(t, mr.Exists("leaderboard:1M:all"))

	// TTL is 15 minutes while the market trades.
	assert.Equal(t, openTTL, mr.TTL("leaderboard:1M:all"))

	again, err := cached.Get(ctx, charts.Period1M, CategoryAll)
	require.NoError(t, err)
	assert.Equal(t, board.Entries[0].ReturnPct, again.Entries[0].ReturnPct)
}

func TestCachedGetClosedMarketTTL(t *testing.T) {
	svc, cal := boardFixture(t)
	cal.open = false
	mr, client := setupRedis(t)
	cached := NewCachedService(svc, client, cal, zerolog.Nop())

	_, err := cached.Get(context.Background(), charts.Period1M, CategoryAll)
	require.NoError(t, err)
	// fakeCal opens again 12 hours from now.
	assert.Equal(t, 12*time.Hour, mr.TTL("leaderboard:1M:all"))
}

func TestCachedGetNilClientComputes(t *testing.T) {
	svc, cal := boardFixture(t)
	cached := NewCachedService(svc, nil, cal, zerolog.Nop())

	board, err := cached.Get(context.Background(), charts.Period1M, CategoryAll)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
}

func TestCachedGetCorruptPayloadRecomputes(t *testing.T) {
	svc, cal := boardFixture(t)
	mr, client := setupRedis(t)
	cached := NewCachedService(svc, client, cal, zerolog.Nop())

	require.NoError(t, mr.Set("leaderboard:1M:all", "not msgpack"))

	board, err := cached.Get(context.Background(), charts.Period1M, CategoryAll)
	require.NoError(t, err)
	require.Len(t, board.Entries, 1)
}

func TestRefreshPopulatesAllKeys(t *testing.T) {
	svc, cal := boardFixture(t)
	mr, client := setupRedis(t)
	cached := NewCachedService(svc, client, cal, zerolog.Nop())

	succeeded, failed := cached.Refresh(context.Background())
	assert.Zero(t, failed)
	assert.Equal(t, len(charts.AllPeriods)*3, succeeded)
	assert.True(t, mr.Exists("leaderboard:MAX:all"))
	assert.True(t, mr.Exists("leaderboard:YTD:small_cap"))
}
