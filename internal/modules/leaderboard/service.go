// Package leaderboard ranks users by Modified-Dietz return over a period,
// with optional cap-class category filters.
package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/openfolio/openfolio/internal/domain"
	"github.com/openfolio/openfolio/internal/modules/charts"
	"github.com/openfolio/openfolio/internal/modules/returns"
)

// Category filters the leaderboard to portfolios dominated by one cap class.
type Category string

const (
	CategoryAll      Category = "all"
	CategoryLargeCap Category = "large_cap"
	CategorySmallCap Category = "small_cap"
)

// ParseCategory validates a category string from the API. Empty means all.
func ParseCategory(s string) (Category, error) {
	switch Category(s) {
	case "", CategoryAll:
		return CategoryAll, nil
	case CategoryLargeCap:
		return CategoryLargeCap, nil
	case CategorySmallCap:
		return CategorySmallCap, nil
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// UserSource lists users and their holdings.
type UserSource interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
	GetByUser(ctx context.Context, userID string) ([]domain.Holding, error)
}

// SnapshotSource is the snapshot repository slice the aggregator reads.
type SnapshotSource interface {
	FirstDaily(ctx context.Context, userID string) (domain.DailySnapshot, error)
	FirstDailyInRange(ctx context.Context, userID string, from, to domain.Date) (domain.DailySnapshot, error)
	LastDailyInRange(ctx context.Context, userID string, from, to domain.Date) (domain.DailySnapshot, error)
	GetFlowsAfter(ctx context.Context, userID string, start, end domain.Date) ([]domain.CashFlow, error)
}

// MarketSource prices holdings for the category dominance check.
type MarketSource interface {
	GetLastCloseBefore(ctx context.Context, symbol string, day domain.Date) (domain.MarketDataPoint, error)
	GetSecurities(ctx context.Context) (map[string]domain.Security, error)
}

// BoardCalendar is the calendar slice the aggregator needs.
type BoardCalendar interface {
	Now() time.Time
	CurrentTradingDay() domain.Date
	PreviousTradingDay(d domain.Date) domain.Date
}

// Stats summarizes the distribution of returns on a board.
type Stats struct {
	Mean   float64 `json:"mean" msgpack:"mean"`
	Median float64 `json:"median" msgpack:"median"`
	StdDev float64 `json:"stddev" msgpack:"stddev"`
}

// Board is one computed leaderboard.
type Board struct {
	Period      string                    `json:"period" msgpack:"period"`
	Category    string                    `json:"category" msgpack:"category"`
	GeneratedAt time.Time                 `json:"generated_at" msgpack:"generated_at"`
	Entries     []domain.LeaderboardEntry `json:"entries" msgpack:"entries"`
	Stats       Stats                     `json:"stats" msgpack:"stats"`
}

// Service computes leaderboards from snapshot history.
type Service struct {
	users  UserSource
	snaps  SnapshotSource
	market MarketSource
	cal    BoardCalendar
	log    zerolog.Logger
}

// NewService creates a leaderboard service.
func NewService(users UserSource, snaps SnapshotSource, market MarketSource, cal BoardCalendar, log zerolog.Logger) *Service {
	return &Service{
		users:  users,
		snaps:  snaps,
		market: market,
		cal:    cal,
		log:    log.With().Str("service", "leaderboard").Logger(),
	}
}

// Compute builds the board for (period, category). Users whose return cannot
// be established (no snapshots, no baseline) are excluded, never shown as 0%.
// Ties sort by ascending user ID so ranks are deterministic.
func (s *Service) Compute(ctx context.Context, period charts.Period, category Category) (*Board, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	var securities map[string]domain.Security
	if category != CategoryAll {
		if securities, err = s.market.GetSecurities(ctx); err != nil {
			return nil, fmt.Errorf("failed to load securities: %w", err)
		}
	}

	end := s.cal.CurrentTradingDay()
	board := &Board{
		Period:      period.String(),
		Category:    string(category),
		GeneratedAt: s.cal.Now().UTC(),
	}

	for _, u := range users {
		if category != CategoryAll {
			ok, err := s.inCategory(ctx, u.ID, category, securities, end)
			if err != nil {
				s.log.Warn().Err(err).Str("user", u.ID).Msg("Category check failed, excluding user")
				continue
			}
			if !ok {
				continue
			}
		}

		ret, err := s.userReturn(ctx, u.ID, period, end)
		if err != nil {
			var nb *domain.NoBaselineError
			if errors.Is(err, domain.ErrNoSnapshots) || errors.As(err, &nb) {
				continue
			}
			s.log.Warn().Err(err).Str("user", u.ID).Msg("Return computation failed, excluding user")
			continue
		}

		board.Entries = append(board.Entries, domain.LeaderboardEntry{
			UserID:          u.ID,
			DisplayName:     u.DisplayName,
			ReturnPct:       math.Round(ret*10000) / 100,
			SubscriberCount: u.SubscriberCount,
		})
	}

	sort.Slice(board.Entries, func(i, j int) bool {
		a, b := board.Entries[i], board.Entries[j]
		if a.ReturnPct != b.ReturnPct {
			return a.ReturnPct > b.ReturnPct
		}
		return a.UserID < b.UserID
	})
	for i := range board.Entries {
		board.Entries[i].Rank = i + 1
	}
	board.Stats = summarize(board.Entries)

	return board, nil
}

// userReturn computes the Modified-Dietz return for one user over the period.
func (s *Service) userReturn(ctx context.Context, userID string, period charts.Period, end domain.Date) (float64, error) {
	var start domain.Date
	if period == charts.PeriodMax {
		first, err := s.snaps.FirstDaily(ctx, userID)
		if err != nil {
			return 0, err
		}
		start = first.TradingDay
	} else {
		start = period.Start(s.cal, end)
	}

	first, err := s.snaps.FirstDailyInRange(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}
	last, err := s.snaps.LastDailyInRange(ctx, userID, start, end)
	if err != nil {
		return 0, err
	}
	flows, err := s.snaps.GetFlowsAfter(ctx, userID, first.TradingDay, last.TradingDay)
	if err != nil {
		return 0, err
	}

	result, err := returns.Compute(userID, first.TradingDay, last.TradingDay, first.TotalValue, last.TotalValue, flows)
	if err != nil {
		return 0, err
	}
	return result.Return, nil
}

// inCategory reports whether more than half of the user's portfolio value sits
// in securities of the category's cap class. Symbols without a stored close
// fall back to cost basis for weighing.
func (s *Service) inCategory(ctx context.Context, userID string, category Category, securities map[string]domain.Security, end domain.Date) (bool, error) {
	holdings, err := s.users.GetByUser(ctx, userID)
	if err != nil {
		return false, err
	}

	var total, inClass float64
	for _, h := range holdings {
		price := h.CostBasis
		if p, err := s.market.GetLastCloseBefore(ctx, h.Symbol, end.AddDays(1)); err == nil {
			price = p.ClosePrice
		}
		value := h.Quantity * price
		total += value
		if sec, ok := securities[h.Symbol]; ok && sec.CapClass == string(category) {
			inClass += value
		}
	}
	if total == 0 {
		return false, nil
	}
	return inClass/total > 0.5, nil
}

// summarize computes distribution stats over the board's return percentages.
func summarize(entries []domain.LeaderboardEntry) Stats {
	if len(entries) == 0 {
		return Stats{}
	}
	values := make([]float64, len(entries))
	for i, e := range entries {
		values[i] = e.ReturnPct
	}
	sort.Float64s(values)

	st := Stats{
		Mean:   stat.Mean(values, nil),
		Median: stat.Quantile(0.5, stat.Empirical, values, nil),
	}
	if len(values) > 1 {
		st.StdDev = stat.StdDev(values, nil)
	}
	return st
}
