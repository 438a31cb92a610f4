// Package marketdata persists close prices and security metadata in market.db.
package marketdata

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/domain"
)

// Repository handles market data database operations.
type Repository struct {
	marketDB *sql.DB // market.db - market_data, securities
	log      zerolog.Logger
}

// NewRepository creates a new market data repository.
func NewRepository(marketDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		marketDB: marketDB,
		log:      log.With().Str("repo", "marketdata").Logger(),
	}
}

// UpsertClose inserts or replaces the close price for (symbol, trading day).
func (r *Repository) UpsertClose(ctx context.Context, p domain.MarketDataPoint) error {
	_, err := r.marketDB.ExecContext(ctx, `
		INSERT INTO market_data (symbol, trading_day, close_price, updated_at)
		VALUES (?, ?, ?, datetime('now'))
		ON CONFLICT(symbol, trading_day) DO UPDATE SET
			close_price = excluded.close_price,
			updated_at = excluded.updated_at`,
		p.Symbol, p.TradingDay.String(), p.ClosePrice,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert close for %s on %s: %w", p.Symbol, p.TradingDay, err)
	}
	return nil
}

// GetClose returns the close price for the exact trading day, or sql.ErrNoRows
// wrapped when absent.
func (r *Repository) GetClose(ctx context.Context, symbol string, day domain.Date) (float64, error) {
	var price float64
	err := r.marketDB.QueryRowContext(ctx,
		`SELECT close_price FROM market_data WHERE symbol = ? AND trading_day = ?`,
		symbol, day.String(),
	).Scan(&price)
	if err != nil {
		return 0, fmt.Errorf("no close for %s on %s: %w", symbol, day, err)
	}
	return price, nil
}

// GetLastCloseBefore returns the most recent close strictly before the given
// day, or sql.ErrNoRows wrapped when none exists.
func (r *Repository) GetLastCloseBefore(ctx context.Context, symbol string, day domain.Date) (domain.MarketDataPoint, error) {
	var p domain.MarketDataPoint
	var dayStr string
	err := r.marketDB.QueryRowContext(ctx, `
		SELECT symbol, trading_day, close_price FROM market_data
		WHERE symbol = ? AND trading_day < ?
		ORDER BY trading_day DESC LIMIT 1`,
		symbol, day.String(),
	).Scan(&p.Symbol, &dayStr, &p.ClosePrice)
	if err != nil {
		return domain.MarketDataPoint{}, fmt.Errorf("no close for %s before %s: %w", symbol, day, err)
	}
	p.TradingDay, err = domain.ParseDate(dayStr)
	if err != nil {
		return domain.MarketDataPoint{}, fmt.Errorf("corrupt trading_day for %s: %w", symbol, err)
	}
	return p, nil
}

// GetCloses returns all closes for symbol in [from, to], ascending by day.
func (r *Repository) GetCloses(ctx context.Context, symbol string, from, to domain.Date) ([]domain.MarketDataPoint, error) {
	rows, err := r.marketDB.QueryContext(ctx, `
		SELECT symbol, trading_day, close_price FROM market_data
		WHERE symbol = ? AND trading_day >= ? AND trading_day <= ?
		ORDER BY trading_day ASC`,
		symbol, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query closes for %s: %w", symbol, err)
	}
	defer rows.Close()

	var points []domain.MarketDataPoint
	for rows.Next() {
		var p domain.MarketDataPoint
		var dayStr string
		if err := rows.Scan(&p.Symbol, &dayStr, &p.ClosePrice); err != nil {
			return nil, fmt.Errorf("failed to scan close: %w", err)
		}
		if p.TradingDay, err = domain.ParseDate(dayStr); err != nil {
			return nil, fmt.Errorf("corrupt trading_day for %s: %w", symbol, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating closes: %w", err)
	}
	return points, nil
}

// CloseMap returns closes for symbol in [from, to] keyed by day, for aligned
// series lookups.
func (r *Repository) CloseMap(ctx context.Context, symbol string, from, to domain.Date) (map[domain.Date]float64, error) {
	points, err := r.GetCloses(ctx, symbol, from, to)
	if err != nil {
		return nil, err
	}
	m := make(map[domain.Date]float64, len(points))
	for _, p := range points {
		m[p.TradingDay] = p.ClosePrice
	}
	return m, nil
}

// UpsertSecurity inserts or updates security metadata.
func (r *Repository) UpsertSecurity(ctx context.Context, s domain.Security) error {
	_, err := r.marketDB.ExecContext(ctx, `
		INSERT INTO securities (symbol, name, cap_class) VALUES (?, ?, ?)
		ON CONFLICT(symbol) DO UPDATE SET name = excluded.name, cap_class = excluded.cap_class`,
		s.Symbol, s.Name, s.CapClass,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert security %s: %w", s.Symbol, err)
	}
	return nil
}

// GetSecurities returns all security metadata keyed by symbol.
func (r *Repository) GetSecurities(ctx context.Context) (map[string]domain.Security, error) {
	rows, err := r.marketDB.QueryContext(ctx, `SELECT symbol, name, cap_class FROM securities`)
	if err != nil {
		return nil, fmt.Errorf("failed to query securities: %w", err)
	}
	defer rows.Close()

	securities := make(map[string]domain.Security)
	for rows.Next() {
		var s domain.Security
		if err := rows.Scan(&s.Symbol, &s.Name, &s.CapClass); err != nil {
			return nil, fmt.Errorf("failed to scan security: %w", err)
		}
		securities[s.Symbol] = s
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating securities: %w", err)
	}
	return securities, nil
}
