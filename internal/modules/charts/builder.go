package charts

import (
	"context"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/domain"
	"github.com/openfolio/openfolio/internal/modules/returns"
)

// SnapshotSource is the slice of the snapshot repository the builder reads.
type SnapshotSource interface {
	GetDailyRange(ctx context.Context, userID string, from, to domain.Date) ([]domain.DailySnapshot, error)
	GetIntradayRange(ctx context.Context, userID string, from, to time.Time) ([]domain.IntradaySnapshot, error)
	FirstDaily(ctx context.Context, userID string) (domain.DailySnapshot, error)
	GetFlowsAfter(ctx context.Context, userID string, start, end domain.Date) ([]domain.CashFlow, error)
}

// BenchmarkSource provides benchmark index closes.
type BenchmarkSource interface {
	CloseMap(ctx context.Context, symbol string, from, to domain.Date) (map[domain.Date]float64, error)
}

// BuilderCalendar is the calendar slice the builder needs.
type BuilderCalendar interface {
	Now() time.Time
	CurrentTradingDay() domain.Date
	PreviousTradingDay(d domain.Date) domain.Date
	Location() *time.Location
}

// Builder generates aligned portfolio/benchmark percentage series. Building
// is a pure function of stored snapshots and market data, which is what makes
// the cache layer freely wipeable.
type Builder struct {
	snaps     SnapshotSource
	market    BenchmarkSource
	cal       BuilderCalendar
	benchmark string // benchmark index symbol
	log       zerolog.Logger
}

// NewBuilder creates a chart series builder.
func NewBuilder(snaps SnapshotSource, market BenchmarkSource, cal BuilderCalendar, benchmark string, log zerolog.Logger) *Builder {
	return &Builder{
		snaps:     snaps,
		market:    market,
		cal:       cal,
		benchmark: benchmark,
		log:       log.With().Str("service", "charts").Logger(),
	}
}

// sample is one selected row before percentage conversion.
type sample struct {
	day   domain.Date
	label string
	value float64
}

// Build generates the series for (user, period). The first selected value is
// the baseline; the final point and the headline PortfolioReturn come from a
// single Modified-Dietz computation so they can never disagree.
func (b *Builder) Build(ctx context.Context, userID string, period Period) (*domain.ChartSeries, error) {
	end := b.cal.CurrentTradingDay()

	var start domain.Date
	if period == PeriodMax {
		first, err := b.snaps.FirstDaily(ctx, userID)
		if err != nil {
			return nil, err
		}
		start = first.TradingDay
	} else {
		start = period.Start(b.cal, end)
	}

	samples, quality, err := b.selectSamples(ctx, userID, period, start, end)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, domain.ErrNoSnapshots
	}

	firstDay := samples[0].day
	lastDay := samples[len(samples)-1].day
	baseline := samples[0].value

	flows, err := b.snaps.GetFlowsAfter(ctx, userID, firstDay, lastDay)
	if err != nil {
		return nil, err
	}
	result, err := returns.Compute(userID, firstDay, lastDay, baseline, samples[len(samples)-1].value, flows)
	if err != nil {
		return nil, err
	}

	closes, err := b.market.CloseMap(ctx, b.benchmark, firstDay, end)
	if err != nil {
		return nil, err
	}
	benchBaseline, ok := closes[firstDay]
	if !ok {
		// First sample day has no benchmark close (YTD windows that open on
		// a snapshot taken before the first stored benchmark day). Anchor on
		// the earliest close among the sampled days instead.
		for _, s := range samples {
			if c, found := closes[s.day]; found {
				benchBaseline = c
				break
			}
		}
	}

	series := &domain.ChartSeries{
		UserID:          userID,
		Period:          period.String(),
		PortfolioReturn: round2(result.Return * 100),
		Quality:         quality,
		Points:          make([]domain.SeriesPoint, 0, len(samples)),
	}

	var lastBench *float64
	for i, s := range samples {
		point := domain.SeriesPoint{Label: s.label}

		if i == len(samples)-1 {
			point.Portfolio = ptr(series.PortfolioReturn)
		} else if baseline > 0 {
			point.Portfolio = ptr(round2((s.value - baseline) / baseline * 100))
		}

		if c, found := closes[s.day]; found && benchBaseline > 0 {
			point.Benchmark = ptr(round2((c - benchBaseline) / benchBaseline * 100))
			lastBench = point.Benchmark
		}

		series.Points = append(series.Points, point)
	}
	if lastBench != nil {
		series.BenchmarkReturn = *lastBench
	}

	return series, nil
}

// selectSamples picks the underlying rows for the window. Daily snapshots are
// the default; the short periods chart intraday rows per day when present so
// the line moves during the session.
func (b *Builder) selectSamples(ctx context.Context, userID string, period Period, start, end domain.Date) ([]sample, string, error) {
	dailies, err := b.snaps.GetDailyRange(ctx, userID, start, end)
	if err != nil {
		return nil, "", err
	}

	quality := domain.TierLiveQuote
	byDay := make(map[domain.Date]domain.DailySnapshot, len(dailies))
	for _, d := range dailies {
		byDay[d.TradingDay] = d
		if t := domain.ParsePriceTier(d.Quality); t > quality {
			quality = t
		}
	}
	if !period.UsesIntraday() {
		samples := make([]sample, 0, len(dailies))
		for _, d := range dailies {
			samples = append(samples, sample{day: d.TradingDay, label: d.TradingDay.String(), value: d.TotalValue})
		}
		return samples, quality.String(), nil
	}

	loc := b.cal.Location()
	from := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)
	to := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1)
	intraday, err := b.snaps.GetIntradayRange(ctx, userID, from, to)
	if err != nil {
		return nil, "", err
	}

	intradayDays := make(map[domain.Date]bool)
	for _, s := range intraday {
		intradayDays[domain.DateOf(s.Timestamp, loc)] = true
	}

	// Per day: intraday rows when the day has any, otherwise the daily close.
	var samples []sample
	for d := start; !d.After(end); d = d.AddDays(1) {
		if intradayDays[d] {
			for _, s := range intraday {
				if domain.DateOf(s.Timestamp, loc) != d {
					continue
				}
				samples = append(samples, sample{
					day:   d,
					label: s.Timestamp.In(loc).Format("2006-01-02 15:04"),
					value: s.TotalValue,
				})
			}
			continue
		}
		if snap, ok := byDay[d]; ok {
			samples = append(samples, sample{day: d, label: d.String(), value: snap.TotalValue})
		}
	}
	return samples, quality.String(), nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func ptr(v float64) *float64 { return &v }
