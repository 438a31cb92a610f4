package snapshots

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/domain"
)

// Valuer produces portfolio valuations. Implemented by valuation.Engine.
type Valuer interface {
	Valuate(ctx context.Context, userID string, day domain.Date) (*domain.Valuation, error)
}

// MarketCalendar is the calendar slice the service needs.
type MarketCalendar interface {
	IsMarketOpen(t time.Time) bool
	CurrentTradingDay() domain.Date
}

// Service coordinates valuation and snapshot persistence.
type Service struct {
	repo     *Repository
	valuer   Valuer
	calendar MarketCalendar
	log      zerolog.Logger
}

// NewService creates a new snapshots service.
func NewService(repo *Repository, valuer Valuer, calendar MarketCalendar, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		valuer:   valuer,
		calendar: calendar,
		log:      log.With().Str("service", "snapshots").Logger(),
	}
}

// UpsertDailySnapshot values the user's holdings for the trading day and
// writes the single snapshot row for (user, day). A valuation failure leaves
// the store untouched so the next batch run retries cleanly.
func (s *Service) UpsertDailySnapshot(ctx context.Context, userID string, day domain.Date) (*domain.DailySnapshot, error) {
	v, err := s.valuer.Valuate(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	deployed, withdrawn, err := s.repo.CumulativeFlows(ctx, userID, day)
	if err != nil {
		return nil, err
	}

	snap := domain.DailySnapshot{
		UserID:        userID,
		TradingDay:    day,
		TotalValue:    v.TotalValue,
		CashDeployed:  deployed,
		CashWithdrawn: withdrawn,
		Quality:       v.Quality.String(),
	}
	if err := s.repo.UpsertDaily(ctx, snap); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("user", userID).
		Str("day", day.String()).
		Float64("total_value", v.TotalValue).
		Str("quality", v.Quality.String()).
		Msg("Daily snapshot written")
	return &snap, nil
}

// AppendInstant values the user's holdings right now and appends an intraday
// row. Rejected outside market hours so the intraday series never carries
// after-hours noise.
func (s *Service) AppendInstant(ctx context.Context, userID string, at time.Time) error {
	if !s.calendar.IsMarketOpen(at) {
		return fmt.Errorf("market closed at %s: intraday snapshot rejected", at.Format(time.RFC3339))
	}

	v, err := s.valuer.Valuate(ctx, userID, s.calendar.CurrentTradingDay())
	if err != nil {
		return err
	}

	return s.repo.AppendIntraday(ctx, domain.IntradaySnapshot{
		UserID:     userID,
		Timestamp:  at,
		TotalValue: v.TotalValue,
	})
}

// RecordCashFlow stores a deposit (positive) or withdrawal (negative) event.
func (s *Service) RecordCashFlow(ctx context.Context, userID string, amount float64, day domain.Date) error {
	if amount == 0 {
		return fmt.Errorf("cash flow amount must be non-zero")
	}
	if err := s.repo.InsertCashFlow(ctx, domain.CashFlow{UserID: userID, Amount: amount, Day: day}); err != nil {
		return err
	}
	s.log.Info().
		Str("user", userID).
		Float64("amount", amount).
		Str("day", day.String()).
		Msg("Cash flow recorded")
	return nil
}

// Repo exposes the repository for read paths (chart builder, leaderboard).
func (s *Service) Repo() *Repository { return s.repo }
