package snapshots

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openfolio/openfolio/internal/domain"
)

type fakeValuer struct {
	valuation *domain.Valuation
	err       error
	calls     int
}

func (f *fakeValuer) Valuate(_ context.Context, userID string, day domain.Date) (*domain.Valuation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	v := *f.valuation
	v.UserID = userID
	v.TradingDay = day
	return &v, nil
}

type fakeCalendar struct {
	open  bool
	today domain.Date
}

func (f *fakeCalendar) IsMarketOpen(time.Time) bool    { return f.open }
func (f *fakeCalendar) CurrentTradingDay() domain.Date { return f.today }

func TestUpsertDailySnapshotWritesValuation(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	valuer := &fakeValuer{valuation: &domain.Valuation{TotalValue: 1234.5, Quality: domain.TierClose}}
	svc := NewService(repo, valuer, &fakeCalendar{}, zerolog.Nop())
	ctx := context.Background()
	d := day("2025-06-16")

	require.NoError(t, svc.RecordCashFlow(ctx, "u1", 500, day("2025-06-10")))

	snap, err := svc.UpsertDailySnapshot(ctx, "u1", d)
	require.NoError(t, err)
	assert.Equal(t, 1234.5, snap.TotalValue)
	assert.Equal(t, 500.0, snap.CashDeployed)

	stored, err := repo.GetDaily(ctx, "u1", d)
	require.NoError(t, err)
	assert.Equal(t, 1234.5, stored.TotalValue)
}

func TestUpsertDailySnapshotValuationFailureWritesNothing(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	valuer := &fakeValuer{err: &domain.ValuationError{UserID: "u1", Symbol: "GHOST", Day: day("2025-06-16")}}
	svc := NewService(repo, valuer, &fakeCalendar{}, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.UpsertDailySnapshot(ctx, "u1", day("2025-06-16"))
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))

	_, err = repo.GetDaily(ctx, "u1", day("2025-06-16"))
	assert.ErrorIs(t, err, domain.ErrNoSnapshots)
}

func TestAppendInstantRejectedWhenMarketClosed(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	valuer := &fakeValuer{valuation: &domain.Valuation{TotalValue: 100}}
	svc := NewService(repo, valuer, &fakeCalendar{open: false}, zerolog.Nop())

	err := svc.AppendInstant(context.Background(), "u1", time.Now())
	require.Error(t, err)
	assert.Zero(t, valuer.calls)
}

func TestAppendInstantDuringMarketHours(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	valuer := &fakeValuer{valuation: &domain.Valuation{TotalValue: 2500, Quality: domain.TierLiveQuote}}
	svc := NewService(repo, valuer, &fakeCalendar{open: true, today: day("2025-06-16")}, zerolog.Nop())
	ctx := context.Background()

	at := time.Date(2025, 6, 16, 15, 0, 0, 0, time.UTC)
	require.NoError(t, svc.AppendInstant(ctx, "u1", at))

	snaps, err := repo.GetIntradayRange(ctx, "u1", at.Add(-time.Minute), at.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 2500.0, snaps[0].TotalValue)
}

func TestRecordCashFlowRejectsZero(t *testing.T) {
	repo := NewRepository(setupTestDB(t), zerolog.Nop())
	svc := NewService(repo, &fakeValuer{}, &fakeCalendar{}, zerolog.Nop())

	err := svc.RecordCashFlow(context.Background(), "u1", 0, day("2025-06-16"))
	assert.Error(t, err)
}
