package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/internal/config"
	"github.com/openfolio/openfolio/internal/di"
	"github.com/openfolio/openfolio/internal/domain"
)

func newTestServer(t *testing.T) (*Server, *di.Container) {
	t.Helper()

	cfg := &config.Config{
		DataDir:         t.TempDir(),
		Port:            0,
		ExchangeTZ:      "America/New_York",
		BenchmarkSymbol: "SPX",
	}
	container, err := di.Wire(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(container.Close)

	return New(Config{Log: zerolog.Nop(), Config: cfg, Container: container}), container
}

// seedHistory writes a run of daily snapshots ending on the current trading
// day, rising from startValue to endValue.
func seedHistory(t *testing.T, c *di.Container, userID string, days int, startValue, endValue float64) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, c.HoldingsRepo.UpsertUser(ctx, domain.User{ID: userID, DisplayName: userID}))

	today := c.Calendar.CurrentTradingDay()
	step := (endValue - startValue) / float64(days-1)
	for i := 0; i < days; i++ {
		snap := domain.DailySnapshot{
			UserID:     userID,
			TradingDay: today.AddDays(i - days + 1),
			TotalValue: startValue + step*float64(i),
			Quality:    "close",
		}
		require.NoError(t, c.SnapshotRepo.UpsertDaily(ctx, snap))
	}
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
}

func TestPerformanceEndpoint(t *testing.T) {
	s, c := newTestServer(t)
	seedHistory(t, c, "alice", 10, 100, 110)

	rec := doJSON(t, s, http.MethodGet, "/api/performance/alice?period=1M", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var series domain.ChartSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	assert.Equal(t, "alice", series.UserID)
	assert.Equal(t, "1M", series.Period)
	assert.InDelta(t, 10.0, series.PortfolioReturn, 0.01)
	assert.Len(t, series.Points, 10)
}

func TestPerformanceUnknownUser(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/performance/nobody?period=1M", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPerformanceBadPeriod(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/performance/alice?period=2W", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLeaderboardEndpoint(t *testing.T) {
	s, c := newTestServer(t)
	seedHistory(t, c, "alice", 10, 100, 110)
	seedHistory(t, c, "bob", 10, 100, 105)

	rec := doJSON(t, s, http.MethodGet, "/api/leaderboard?period=1M", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var board struct {
		Entries []domain.LeaderboardEntry `json:"entries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &board))
	require.Len(t, board.Entries, 2)
	assert.Equal(t, "alice", board.Entries[0].UserID)
	assert.Equal(t, 1, board.Entries[0].Rank)
	assert.Equal(t, "bob", board.Entries[1].UserID)
}

func TestLeaderboardBadCategory(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/leaderboard?category=mega_cap", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReplaceHoldings(t *testing.T) {
	s, c := newTestServer(t)

	body := map[string]interface{}{
		"display_name":     "Alice",
		"subscriber_count": 42,
		"holdings": []map[string]interface{}{
			{"symbol": "AAPL", "quantity": 10, "cost_basis": 150},
			{"symbol": "MSFT", "quantity": 5, "cost_basis": 300},
		},
	}
	rec := doJSON(t, s, http.MethodPut, "/api/users/alice/holdings", body)
	require.Equal(t, http.StatusOK, rec.Code)

	holdings, err := c.HoldingsRepo.GetByUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, holdings, 2)

	user, err := c.HoldingsRepo.GetUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 42, user.SubscriberCount)
}

func TestRecordCashFlow(t *testing.T) {
	s, c := newTestServer(t)
	seedHistory(t, c, "alice", 5, 100, 104)
	day := c.Calendar.CurrentTradingDay()

	body := map[string]interface{}{"amount": 250.0, "day": day.String()}
	rec := doJSON(t, s, http.MethodPost, "/api/users/alice/cash-flows", body)
	require.Equal(t, http.StatusCreated, rec.Code)

	flows, err := c.SnapshotRepo.GetFlowsAfter(context.Background(), "alice", day.AddDays(-1), day)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, 250.0, flows[0].Amount)
}

func TestRecordCashFlowZeroAmount(t *testing.T) {
	s, c := newTestServer(t)
	day := c.Calendar.CurrentTradingDay()

	body := map[string]interface{}{"amount": 0.0, "day": day.String()}
	rec := doJSON(t, s, http.MethodPost, "/api/users/alice/cash-flows", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertCloses(t *testing.T) {
	s, c := newTestServer(t)
	day := c.Calendar.CurrentTradingDay()

	body := map[string]interface{}{
		"closes": []map[string]interface{}{
			{"symbol": "AAPL", "trading_day": day.String(), "close_price": 180.5},
			{"symbol": "SPX", "trading_day": day.String(), "close_price": 5000.0},
		},
	}
	rec := doJSON(t, s, http.MethodPost, "/api/market-data/closes", body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"stored":2`)

	price, err := c.MarketRepo.GetClose(context.Background(), "AAPL", day)
	require.NoError(t, err)
	assert.Equal(t, 180.5, price)
}

func TestUpsertClosesRejectsBadDate(t *testing.T) {
	s, _ := newTestServer(t)

	body := map[string]interface{}{
		"closes": []map[string]interface{}{
			{"symbol": "AAPL", "trading_day": "06/16/2025", "close_price": 180.5},
		},
	}
	rec := doJSON(t, s, http.MethodPost, "/api/market-data/closes", body)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWipeCacheEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodDelete, "/api/cache", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"deleted":0`)
}

func TestMarketHoursEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/market-hours/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "America/New_York", resp["timezone"])
	assert.NotEmpty(t, resp["current_trading_day"])
}

func TestTriggerDailySnapshotBatch(t *testing.T) {
	s, c := newTestServer(t)

	// A user whose single holding prices from the stored close.
	ctx := context.Background()
	require.NoError(t, c.HoldingsRepo.UpsertUser(ctx, domain.User{ID: "alice"}))
	require.NoError(t, c.HoldingsRepo.ReplaceUserHoldings(ctx, "alice", []domain.Holding{
		{UserID: "alice", Symbol: "AAPL", Quantity: 10, CostBasis: 150},
	}))
	day := c.Calendar.LastCompletedTradingDay()
	require.NoError(t, c.MarketRepo.UpsertClose(ctx, domain.MarketDataPoint{
		Symbol: "AAPL", TradingDay: day, ClosePrice: 180,
	}))

	rec := doJSON(t, s, http.MethodPost, "/api/jobs/daily-snapshot", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var report struct {
		RunID     string `json:"run_id"`
		Job       string `json:"job"`
		Succeeded int    `json:"succeeded"`
		Failed    int    `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "daily_snapshot", report.Job)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 0, report.Failed)

	snap, err := c.SnapshotRepo.GetDaily(ctx, "alice", day)
	require.NoError(t, err)
	assert.Equal(t, 1800.0, snap.TotalValue)
}

func TestMetricsEndpoint(t *testing.T) {
	s, c := newTestServer(t)
	seedHistory(t, c, "alice", 5, 100, 104)

	// One chart build so a counter has been touched.
	rec := doJSON(t, s, http.MethodGet, "/api/performance/alice?period=1M", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "openfolio_chart_cache")
}

func TestSystemStatusEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/system/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.False(t, resp.QuoteFeed)
	assert.False(t, resp.RedisCache)
}

func TestDatabaseStatsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodGet, "/api/system/database/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DatabaseStatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	names := make([]string, len(resp.Databases))
	for i, db := range resp.Databases {
		names[i] = db.Name
	}
	assert.ElementsMatch(t, []string{"market", "portfolio", "cache"}, names)
}
