package charts

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/domain"
)

// CacheEntry is one stored chart payload with its validity metadata.
type CacheEntry struct {
	UserID      string
	Period      Period
	ThroughDay  domain.Date // last trading day the payload covers
	GeneratedAt time.Time
	Payload     []byte // msgpack-encoded domain.ChartSeries
}

// CacheRepository stores generated chart payloads in cache.db. Everything in
// here is a rederivable projection; DeleteAll is always safe.
type CacheRepository struct {
	cacheDB *sql.DB // cache.db - chart_cache
	log     zerolog.Logger
}

// NewCacheRepository creates a new chart cache repository.
func NewCacheRepository(cacheDB *sql.DB, log zerolog.Logger) *CacheRepository {
	return &CacheRepository{
		cacheDB: cacheDB,
		log:     log.With().Str("repo", "chart_cache").Logger(),
	}
}

// Get returns the cached entry for (user, period), or sql.ErrNoRows wrapped.
func (r *CacheRepository) Get(ctx context.Context, userID string, period Period) (*CacheEntry, error) {
	e := &CacheEntry{UserID: userID, Period: period}
	var throughStr, genStr string
	err := r.cacheDB.QueryRowContext(ctx, `
		SELECT through_day, generated_at, payload FROM chart_cache
		WHERE user_id = ? AND period = ?`,
		userID, string(period),
	).Scan(&throughStr, &genStr, &e.Payload)
	if err != nil {
		return nil, fmt.Errorf("no cache entry for %s/%s: %w", userID, period, err)
	}
	if e.ThroughDay, err = domain.ParseDate(throughStr); err != nil {
		return nil, fmt.Errorf("corrupt through_day for %s/%s: %w", userID, period, err)
	}
	if e.GeneratedAt, err = time.Parse(time.RFC3339, genStr); err != nil {
		return nil, fmt.Errorf("corrupt generated_at for %s/%s: %w", userID, period, err)
	}
	return e, nil
}

// Upsert writes the entry, replacing any previous payload for the key.
// Last write wins; regeneration is pure so concurrent writers converge.
func (r *CacheRepository) Upsert(ctx context.Context, e CacheEntry) error {
	_, err := r.cacheDB.ExecContext(ctx, `
		INSERT INTO chart_cache (user_id, period, through_day, generated_at, payload)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, period) DO UPDATE SET
			through_day = excluded.through_day,
			generated_at = excluded.generated_at,
			payload = excluded.payload`,
		e.UserID, string(e.Period), e.ThroughDay.String(), e.GeneratedAt.UTC().Format(time.RFC3339), e.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert cache entry for %s/%s: %w", e.UserID, e.Period, err)
	}
	return nil
}

// Delete removes the entry for one key.
func (r *CacheRepository) Delete(ctx context.Context, userID string, period Period) error {
	_, err := r.cacheDB.ExecContext(ctx,
		`DELETE FROM chart_cache WHERE user_id = ? AND period = ?`,
		userID, string(period),
	)
	if err != nil {
		return fmt.Errorf("failed to delete cache entry for %s/%s: %w", userID, period, err)
	}
	return nil
}

// DeleteAll wipes the chart cache.
func (r *CacheRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.cacheDB.ExecContext(ctx, `DELETE FROM chart_cache`)
	if err != nil {
		return 0, fmt.Errorf("failed to wipe chart cache: %w", err)
	}
	n, _ := res.RowsAffected()
	r.log.Info().Int64("entries", n).Msg("Chart cache wiped")
	return n, nil
}
