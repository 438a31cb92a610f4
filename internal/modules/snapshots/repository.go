// Package snapshots persists daily and intraday portfolio valuations plus the
// cash-flow events that feed return calculations.
package snapshots

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/database"
	"github.com/openfolio/openfolio/internal/domain"
)

// Repository handles snapshot and cash-flow database operations.
type Repository struct {
	portfolioDB *sql.DB // portfolio.db - daily_snapshots, intraday_snapshots, cash_flows
	log         zerolog.Logger
}

// NewRepository creates a new snapshots repository.
func NewRepository(portfolioDB *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		portfolioDB: portfolioDB,
		log:         log.With().Str("repo", "snapshots").Logger(),
	}
}

// UpsertDaily inserts or replaces the snapshot for (user, trading day). The
// cumulative cash fields are preserved on conflict; they only move through
// RecordCashFlow.
func (r *Repository) UpsertDaily(ctx context.Context, s domain.DailySnapshot) error {
	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO daily_snapshots
			(user_id, trading_day, total_value, cumulative_cash_deployed, cumulative_cash_withdrawn, quality)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, trading_day) DO UPDATE SET
			total_value = excluded.total_value,
			quality = excluded.quality`,
		s.UserID, s.TradingDay.String(), s.TotalValue, s.CashDeployed, s.CashWithdrawn, s.Quality,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert snapshot for %s on %s: %w", s.UserID, s.TradingDay, err)
	}
	return nil
}

// GetDaily returns the snapshot for the exact (user, trading day).
func (r *Repository) GetDaily(ctx context.Context, userID string, day domain.Date) (domain.DailySnapshot, error) {
	row := r.portfolioDB.QueryRowContext(ctx, `
		SELECT user_id, trading_day, total_value, cumulative_cash_deployed, cumulative_cash_withdrawn, quality
		FROM daily_snapshots WHERE user_id = ? AND trading_day = ?`,
		userID, day.String(),
	)
	return scanDaily(row)
}

// FirstDailyInRange returns the earliest snapshot in [from, to], or
// domain.ErrNoSnapshots when the window is empty.
func (r *Repository) FirstDailyInRange(ctx context.Context, userID string, from, to domain.Date) (domain.DailySnapshot, error) {
	row := r.portfolioDB.QueryRowContext(ctx, `
		SELECT user_id, trading_day, total_value, cumulative_cash_deployed, cumulative_cash_withdrawn, quality
		FROM daily_snapshots
		WHERE user_id = ? AND trading_day >= ? AND trading_day <= ?
		ORDER BY trading_day ASC LIMIT 1`,
		userID, from.String(), to.String(),
	)
	return scanDaily(row)
}

// LastDailyInRange returns the latest snapshot in [from, to], or
// domain.ErrNoSnapshots when the window is empty.
func (r *Repository) LastDailyInRange(ctx context.Context, userID string, from, to domain.Date) (domain.DailySnapshot, error) {
	row := r.portfolioDB.QueryRowContext(ctx, `
		SELECT user_id, trading_day, total_value, cumulative_cash_deployed, cumulative_cash_withdrawn, quality
		FROM daily_snapshots
		WHERE user_id = ? AND trading_day >= ? AND trading_day <= ?
		ORDER BY trading_day DESC LIMIT 1`,
		userID, from.String(), to.String(),
	)
	return scanDaily(row)
}

// FirstDaily returns the user's earliest snapshot of all time (MAX period
// anchor), or domain.ErrNoSnapshots.
func (r *Repository) FirstDaily(ctx context.Context, userID string) (domain.DailySnapshot, error) {
	row := r.portfolioDB.QueryRowContext(ctx, `
		SELECT user_id, trading_day, total_value, cumulative_cash_deployed, cumulative_cash_withdrawn, quality
		FROM daily_snapshots WHERE user_id = ?
		ORDER BY trading_day ASC LIMIT 1`,
		userID,
	)
	return scanDaily(row)
}

// GetDailyRange returns all snapshots in [from, to], ascending by day.
func (r *Repository) GetDailyRange(ctx context.Context, userID string, from, to domain.Date) ([]domain.DailySnapshot, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, `
		SELECT user_id, trading_day, total_value, cumulative_cash_deployed, cumulative_cash_withdrawn, quality
		FROM daily_snapshots
		WHERE user_id = ? AND trading_day >= ? AND trading_day <= ?
		ORDER BY trading_day ASC`,
		userID, from.String(), to.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for %s: %w", userID, err)
	}
	defer rows.Close()

	var snaps []domain.DailySnapshot
	for rows.Next() {
		var s domain.DailySnapshot
		var dayStr string
		if err := rows.Scan(&s.UserID, &dayStr, &s.TotalValue, &s.CashDeployed, &s.CashWithdrawn, &s.Quality); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		if s.TradingDay, err = domain.ParseDate(dayStr); err != nil {
			return nil, fmt.Errorf("corrupt trading_day for %s: %w", userID, err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snaps, nil
}

// AppendIntraday inserts an intraday valuation row. Append-only.
func (r *Repository) AppendIntraday(ctx context.Context, s domain.IntradaySnapshot) error {
	_, err := r.portfolioDB.ExecContext(ctx, `
		INSERT INTO intraday_snapshots (user_id, timestamp, total_value) VALUES (?, ?, ?)`,
		s.UserID, s.Timestamp.UTC().Format(time.RFC3339), s.TotalValue,
	)
	if err != nil {
		return fmt.Errorf("failed to append intraday snapshot for %s: %w", s.UserID, err)
	}
	return nil
}

// GetIntradayRange returns intraday rows with timestamp in [from, to),
// ascending.
func (r *Repository) GetIntradayRange(ctx context.Context, userID string, from, to time.Time) ([]domain.IntradaySnapshot, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, `
		SELECT user_id, timestamp, total_value FROM intraday_snapshots
		WHERE user_id = ? AND timestamp >= ? AND timestamp < ?
		ORDER BY timestamp ASC`,
		userID, from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query intraday snapshots for %s: %w", userID, err)
	}
	defer rows.Close()

	var snaps []domain.IntradaySnapshot
	for rows.Next() {
		var s domain.IntradaySnapshot
		var tsStr string
		if err := rows.Scan(&s.UserID, &tsStr, &s.TotalValue); err != nil {
			return nil, fmt.Errorf("failed to scan intraday snapshot: %w", err)
		}
		if s.Timestamp, err = time.Parse(time.RFC3339, tsStr); err != nil {
			return nil, fmt.Errorf("corrupt timestamp for %s: %w", userID, err)
		}
		snaps = append(snaps, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating intraday snapshots: %w", err)
	}
	return snaps, nil
}

// InsertCashFlow records a deposit/withdrawal event and bumps the cumulative
// counters on the matching daily snapshot, both inside one transaction. When
// no snapshot exists yet for the day the counters catch up at the next upsert,
// which reads the flow history.
func (r *Repository) InsertCashFlow(ctx context.Context, flow domain.CashFlow) error {
	return database.WithTransaction(r.portfolioDB, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cash_flows (user_id, amount, day) VALUES (?, ?, ?)`,
			flow.UserID, flow.Amount, flow.Day.String(),
		); err != nil {
			return fmt.Errorf("failed to insert cash flow: %w", err)
		}

		column := "cumulative_cash_deployed"
		magnitude := flow.Amount
		if flow.Amount < 0 {
			column = "cumulative_cash_withdrawn"
			magnitude = -flow.Amount
		}

		// Counters only ever grow; the CHECK constraints reject anything else.
		query := fmt.Sprintf(`
			UPDATE daily_snapshots SET %s = %s + ?
			WHERE user_id = ? AND trading_day = ?`, column, column)
		if _, err := tx.ExecContext(ctx, query, magnitude, flow.UserID, flow.Day.String()); err != nil {
			return fmt.Errorf("failed to bump %s: %w", column, err)
		}
		return nil
	})
}

// GetFlowsAfter returns flows with start < day <= end, the window the
// Modified-Dietz calculator weights. Flows on the start day are part of the
// starting value, not the window.
func (r *Repository) GetFlowsAfter(ctx context.Context, userID string, start, end domain.Date) ([]domain.CashFlow, error) {
	rows, err := r.portfolioDB.QueryContext(ctx, `
		SELECT user_id, amount, day FROM cash_flows
		WHERE user_id = ? AND day > ? AND day <= ?
		ORDER BY day ASC`,
		userID, start.String(), end.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query cash flows for %s: %w", userID, err)
	}
	defer rows.Close()

	var flows []domain.CashFlow
	for rows.Next() {
		var f domain.CashFlow
		var dayStr string
		if err := rows.Scan(&f.UserID, &f.Amount, &dayStr); err != nil {
			return nil, fmt.Errorf("failed to scan cash flow: %w", err)
		}
		if f.Day, err = domain.ParseDate(dayStr); err != nil {
			return nil, fmt.Errorf("corrupt day for %s: %w", userID, err)
		}
		flows = append(flows, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cash flows: %w", err)
	}
	return flows, nil
}

// CumulativeFlows returns the sums of deployed and withdrawn cash up to and
// including day, used to carry the counters onto a new snapshot row.
func (r *Repository) CumulativeFlows(ctx context.Context, userID string, day domain.Date) (deployed, withdrawn float64, err error) {
	err = r.portfolioDB.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN amount > 0 THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN amount < 0 THEN -amount ELSE 0 END), 0)
		FROM cash_flows WHERE user_id = ? AND day <= ?`,
		userID, day.String(),
	).Scan(&deployed, &withdrawn)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum cash flows for %s: %w", userID, err)
	}
	return deployed, withdrawn, nil
}

func scanDaily(row *sql.Row) (domain.DailySnapshot, error) {
	var s domain.DailySnapshot
	var dayStr string
	err := row.Scan(&s.UserID, &dayStr, &s.TotalValue, &s.CashDeployed, &s.CashWithdrawn, &s.Quality)
	if err == sql.ErrNoRows {
		return domain.DailySnapshot{}, domain.ErrNoSnapshots
	}
	if err != nil {
		return domain.DailySnapshot{}, fmt.Errorf("failed to scan snapshot: %w", err)
	}
	if s.TradingDay, err = domain.ParseDate(dayStr); err != nil {
		return domain.DailySnapshot{}, fmt.Errorf("corrupt trading_day: %w", err)
	}
	return s, nil
}
