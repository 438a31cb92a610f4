package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/openfolio/openfolio/internal/modules/charts"
)

// openTTL caches boards for 15 minutes while the market trades; outside
// market hours a board cannot change until the next open.
const openTTL = 15 * time.Minute

// CacheCalendar extends the board calendar with TTL decisions.
type CacheCalendar interface {
	BoardCalendar
	IsMarketOpenNow() bool
	NextOpen() time.Time
}

// CachedService fronts the Service with a Redis cache. A nil client degrades
// to compute-on-demand, so Redis is an optimization, never a dependency.
type CachedService struct {
	svc    *Service
	client *redis.Client
	cal    CacheCalendar
	log    zerolog.Logger
}

// NewCachedService creates the cached leaderboard service. client may be nil.
func NewCachedService(svc *Service, client *redis.Client, cal CacheCalendar, log zerolog.Logger) *CachedService {
	return &CachedService{
		svc:    svc,
		client: client,
		cal:    cal,
		log:    log.With().Str("service", "leaderboard_cache").Logger(),
	}
}

func cacheKey(period charts.Period, category Category) string {
	return fmt.Sprintf("leaderboard:%s:%s", period, category)
}

// Get returns the board for (period, category), from Redis when fresh.
// Cache failures degrade to computing; they never fail the read.
func (s *CachedService) Get(ctx context.Context, period charts.Period, category Category) (*Board, error) {
	if s.client == nil {
		return s.svc.Compute(ctx, period, category)
	}

	key := cacheKey(period, category)
	payload, err := s.client.Get(ctx, key).Bytes()
	if err == nil {
		var board Board
		if err := msgpack.Unmarshal(payload, &board); err == nil {
			return &board, nil
		}
		s.log.Warn().Str("key", key).Msg("Corrupt leaderboard payload, recomputing")
	} else if !errors.Is(err, redis.Nil) {
		s.log.Warn().Err(err).Str("key", key).Msg("Redis read failed, computing directly")
	}

	board, err := s.svc.Compute(ctx, period, category)
	if err != nil {
		return nil, err
	}
	s.store(ctx, key, board)
	return board, nil
}

// Refresh recomputes and stores every (period, category) board. Used by the
// scheduler; per-key failures are collected into the returned error count.
func (s *CachedService) Refresh(ctx context.Context) (succeeded, failed int) {
	for _, period := range charts.AllPeriods {
		for _, category := range []Category{CategoryAll, CategoryLargeCap, CategorySmallCap} {
			board, err := s.svc.Compute(ctx, period, category)
			if err != nil {
				s.log.Error().Err(err).
					Str("period", period.String()).
					Str("category", string(category)).
					Msg("Leaderboard refresh failed")
				failed++
				continue
			}
			if s.client != nil {
				s.store(ctx, cacheKey(period, category), board)
			}
			succeeded++
		}
	}
	s.log.Info().Int("succeeded", succeeded).Int("failed", failed).Msg("Leaderboard refresh completed")
	return succeeded, failed
}

// store writes a board with a market-aware TTL. Best effort.
func (s *CachedService) store(ctx context.Context, key string, board *Board) {
	if s.client == nil {
		return
	}
	payload, err := msgpack.Marshal(board)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to encode leaderboard")
		return
	}

	ttl := openTTL
	if !s.cal.IsMarketOpenNow() {
		if until := s.cal.NextOpen().Sub(s.cal.Now()); until > ttl {
			ttl = until
		}
	}
	if err := s.client.Set(ctx, key, payload, ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache leaderboard")
	}
}
