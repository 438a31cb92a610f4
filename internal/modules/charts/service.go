package charts

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/openfolio/openfolio/internal/domain"
	"github.com/openfolio/openfolio/internal/metrics"
)

// regenWorkers bounds the fan-out of RegenerateAll.
const regenWorkers = 8

// CachedBuilder fronts the Builder with the chart cache. 1D is always built
// live; every other period is served from cache.db while the entry still
// covers the current trading day.
type CachedBuilder struct {
	builder *Builder
	cache   *CacheRepository
	cal     BuilderCalendar
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewCachedBuilder creates the cached chart service.
func NewCachedBuilder(builder *Builder, cache *CacheRepository, cal BuilderCalendar, m *metrics.Metrics, log zerolog.Logger) *CachedBuilder {
	return &CachedBuilder{
		builder: builder,
		cache:   cache,
		cal:     cal,
		metrics: m,
		log:     log.With().Str("service", "chart_cache").Logger(),
	}
}

// Get returns the series for (user, period), regenerating on miss or
// staleness. A stale entry is never served: when regeneration fails the
// caller gets domain.ErrDataUnavailable, not yesterday's chart.
func (s *CachedBuilder) Get(ctx context.Context, userID string, period Period) (*domain.ChartSeries, error) {
	if period == Period1D {
		// Intraday data outruns any useful TTL.
		return s.builder.Build(ctx, userID, period)
	}

	today := s.cal.CurrentTradingDay()
	if entry, err := s.cache.Get(ctx, userID, period); err == nil && entry.ThroughDay.Equal(today) {
		var series domain.ChartSeries
		if err := msgpack.Unmarshal(entry.Payload, &series); err == nil {
			s.metrics.ChartCacheHits.Inc()
			return &series, nil
		}
		s.log.Warn().Str("user", userID).Str("period", period.String()).Msg("Corrupt cache payload, regenerating")
	}

	s.metrics.ChartCacheMisses.Inc()
	series, err := s.Regenerate(ctx, userID, period)
	if err != nil {
		var nb *domain.NoBaselineError
		if errors.Is(err, domain.ErrNoSnapshots) || errors.As(err, &nb) {
			return nil, err
		}
		s.metrics.ChartCacheErrors.Inc()
		s.log.Error().Err(err).Str("user", userID).Str("period", period.String()).Msg("Chart regeneration failed")
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrDataUnavailable, userID, period)
	}
	return series, nil
}

// Regenerate rebuilds and stores one (user, period) entry. Identical inputs
// produce byte-identical payloads: the series is fully determined by
// snapshots and market data, and the msgpack encoding of the struct is stable.
func (s *CachedBuilder) Regenerate(ctx context.Context, userID string, period Period) (*domain.ChartSeries, error) {
	series, err := s.builder.Build(ctx, userID, period)
	if err != nil {
		return nil, err
	}

	payload, err := msgpack.Marshal(series)
	if err != nil {
		return nil, fmt.Errorf("failed to encode series for %s/%s: %w", userID, period, err)
	}
	entry := CacheEntry{
		UserID:      userID,
		Period:      period,
		ThroughDay:  s.cal.CurrentTradingDay(),
		GeneratedAt: s.cal.Now(),
		Payload:     payload,
	}
	if err := s.cache.Upsert(ctx, entry); err != nil {
		return nil, err
	}
	return series, nil
}

// RegenFailure records one failed (user, period) key of a batch run.
type RegenFailure struct {
	UserID string `json:"user"`
	Period string `json:"period"`
	Reason string `json:"reason"`
}

// RegenerateAll rebuilds cache entries for every given user across all
// cacheable periods with a bounded worker pool. One key's failure never
// aborts the rest; failures come back collected.
func (s *CachedBuilder) RegenerateAll(ctx context.Context, userIDs []string) (succeeded int, failures []RegenFailure) {
	type key struct {
		userID string
		period Period
	}

	keys := make(chan key)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < regenWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := range keys {
				_, err := s.Regenerate(ctx, k.userID, k.period)
				mu.Lock()
				switch {
				case err == nil:
					succeeded++
				case errors.Is(err, domain.ErrNoSnapshots):
					// Nothing to chart yet; not a failure.
				default:
					s.metrics.ChartCacheErrors.Inc()
					failures = append(failures, RegenFailure{
						UserID: k.userID,
						Period: k.period.String(),
						Reason: err.Error(),
					})
				}
				mu.Unlock()
			}
		}()
	}

	for _, userID := range userIDs {
		for _, period := range AllPeriods {
			if period == Period1D {
				continue
			}
			keys <- key{userID: userID, period: period}
		}
	}
	close(keys)
	wg.Wait()

	s.log.Info().
		Int("succeeded", succeeded).
		Int("failed", len(failures)).
		Msg("Chart cache regeneration completed")
	return succeeded, failures
}

// Wipe drops every cache entry. Safe: all entries are pure projections.
func (s *CachedBuilder) Wipe(ctx context.Context) (int64, error) {
	return s.cache.DeleteAll(ctx)
}
