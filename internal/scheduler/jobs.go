package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/openfolio/openfolio/internal/domain"
	"github.com/openfolio/openfolio/internal/metrics"
	"github.com/openfolio/openfolio/internal/modules/charts"
)

// snapshotWorkers bounds the per-user fan-out of batch jobs.
const snapshotWorkers = 8

// BatchFailure names one user (or cache key) that failed within a batch.
type BatchFailure struct {
	User   string `json:"user"`
	Reason string `json:"reason"`
}

// BatchReport summarizes one batch run. Returned by the trigger endpoints and
// logged after every scheduled run.
type BatchReport struct {
	RunID     string         `json:"run_id"`
	Job       string         `json:"job"`
	Started   time.Time      `json:"started"`
	Finished  time.Time      `json:"finished"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  []BatchFailure `json:"failures,omitempty"`
}

func newReport(job string) *BatchReport {
	return &BatchReport{
		RunID:   uuid.NewString(),
		Job:     job,
		Started: time.Now().UTC(),
	}
}

func (r *BatchReport) finish() *BatchReport {
	r.Finished = time.Now().UTC()
	r.Failed = len(r.Failures)
	return r
}

// UserLister lists the users a batch iterates.
type UserLister interface {
	ListUsers(ctx context.Context) ([]domain.User, error)
}

// SnapshotWriter writes snapshots. Implemented by snapshots.Service.
type SnapshotWriter interface {
	UpsertDailySnapshot(ctx context.Context, userID string, day domain.Date) (*domain.DailySnapshot, error)
	AppendInstant(ctx context.Context, userID string, at time.Time) error
}

// ChartRegenerator rebuilds chart cache entries.
type ChartRegenerator interface {
	RegenerateAll(ctx context.Context, userIDs []string) (int, []charts.RegenFailure)
}

// BoardRefresher recomputes cached leaderboards.
type BoardRefresher interface {
	Refresh(ctx context.Context) (succeeded, failed int)
}

// JobCalendar is the calendar slice the jobs need.
type JobCalendar interface {
	Now() time.Time
	LastCompletedTradingDay() domain.Date
	IsMarketOpenNow() bool
}

// Jobs bundles the batch jobs' shared dependencies.
type Jobs struct {
	users   UserLister
	snaps   SnapshotWriter
	charts  ChartRegenerator
	boards  BoardRefresher
	cal     JobCalendar
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewJobs creates the batch job set.
func NewJobs(users UserLister, snaps SnapshotWriter, chartsRegen ChartRegenerator, boards BoardRefresher, cal JobCalendar, m *metrics.Metrics, log zerolog.Logger) *Jobs {
	return &Jobs{
		users:   users,
		snaps:   snaps,
		charts:  chartsRegen,
		boards:  boards,
		cal:     cal,
		metrics: m,
		log:     log.With().Str("component", "jobs").Logger(),
	}
}

// forEachUser fans work out across users with a bounded pool, collecting
// per-user failures. One user's failure never stops the rest.
func (j *Jobs) forEachUser(ctx context.Context, report *BatchReport, fn func(ctx context.Context, userID string) error) error {
	users, err := j.users.ListUsers(ctx)
	if err != nil {
		return fmt.Errorf("failed to list users: %w", err)
	}

	ids := make(chan string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < snapshotWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				err := fn(ctx, id)
				mu.Lock()
				if err != nil {
					report.Failures = append(report.Failures, BatchFailure{User: id, Reason: err.Error()})
					j.metrics.SnapshotsFailed.WithLabelValues(report.Job).Inc()
				} else {
					report.Succeeded++
					j.metrics.SnapshotsSucceeded.WithLabelValues(report.Job).Inc()
				}
				mu.Unlock()
			}
		}()
	}

	for _, u := range users {
		ids <- u.ID
	}
	close(ids)
	wg.Wait()
	return nil
}

// DailySnapshots values every user for the last completed trading day and
// upserts the daily rows.
func (j *Jobs) DailySnapshots(ctx context.Context) (*BatchReport, error) {
	report := newReport("daily_snapshot")
	timer := time.Now()
	day := j.cal.LastCompletedTradingDay()

	err := j.forEachUser(ctx, report, func(ctx context.Context, userID string) error {
		_, err := j.snaps.UpsertDailySnapshot(ctx, userID, day)
		return err
	})
	if err != nil {
		return nil, err
	}

	j.metrics.BatchDuration.WithLabelValues(report.Job).Observe(time.Since(timer).Seconds())
	report.finish()
	j.log.Info().
		Str("run_id", report.RunID).
		Str("day", day.String()).
		Int("succeeded", report.Succeeded).
		Int("failed", report.Failed).
		Msg("Daily snapshot batch completed")
	return report, nil
}

// IntradaySnapshots appends an intraday valuation for every user. Outside
// market hours the batch is a no-op.
func (j *Jobs) IntradaySnapshots(ctx context.Context) (*BatchReport, error) {
	report := newReport("intraday_snapshot")
	if !j.cal.IsMarketOpenNow() {
		j.log.Debug().Msg("Market closed, skipping intraday batch")
		return report.finish(), nil
	}

	timer := time.Now()
	at := j.cal.Now()
	err := j.forEachUser(ctx, report, func(ctx context.Context, userID string) error {
		return j.snaps.AppendInstant(ctx, userID, at)
	})
	if err != nil {
		return nil, err
	}

	j.metrics.BatchDuration.WithLabelValues(report.Job).Observe(time.Since(timer).Seconds())
	return report.finish(), nil
}

// RegenerateCaches rebuilds every user's chart cache entries.
func (j *Jobs) RegenerateCaches(ctx context.Context) (*BatchReport, error) {
	report := newReport("cache_regeneration")
	timer := time.Now()

	users, err := j.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	ids := make([]string, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}

	succeeded, failures := j.charts.RegenerateAll(ctx, ids)
	report.Succeeded = succeeded
	for _, f := range failures {
		report.Failures = append(report.Failures, BatchFailure{
			User:   f.UserID + "/" + f.Period,
			Reason: f.Reason,
		})
	}

	j.metrics.BatchDuration.WithLabelValues(report.Job).Observe(time.Since(timer).Seconds())
	return report.finish(), nil
}

// RefreshLeaderboards recomputes every cached leaderboard.
func (j *Jobs) RefreshLeaderboards(ctx context.Context) (*BatchReport, error) {
	report := newReport("leaderboard_refresh")
	timer := time.Now()

	succeeded, failed := j.boards.Refresh(ctx)
	report.Succeeded = succeeded
	for i := 0; i < failed; i++ {
		report.Failures = append(report.Failures, BatchFailure{Reason: "refresh failed"})
	}

	j.metrics.BatchDuration.WithLabelValues(report.Job).Observe(time.Since(timer).Seconds())
	return report.finish(), nil
}

// jobFunc adapts a batch method to the scheduler's Job interface.
type jobFunc struct {
	name string
	fn   func(ctx context.Context) (*BatchReport, error)
}

func (f jobFunc) Name() string { return f.name }

func (f jobFunc) Run() error {
	_, err := f.fn(context.Background())
	return err
}

// Register wires the batch jobs onto the scheduler with their production
// schedules (exchange-local).
func (j *Jobs) Register(s *Scheduler) error {
	schedules := []struct {
		spec string
		job  jobFunc
	}{
		// Half an hour after the close; the daily job itself resolves the
		// last completed session, so holidays are naturally skipped.
		{"0 30 16 * * MON-FRI", jobFunc{"daily_snapshot", j.DailySnapshots}},
		{"@every 15m", jobFunc{"intraday_snapshot", j.IntradaySnapshots}},
		{"0 0 17 * * MON-FRI", jobFunc{"cache_regeneration", j.RegenerateCaches}},
		{"0 15 17 * * MON-FRI", jobFunc{"leaderboard_refresh", j.RefreshLeaderboards}},
	}
	for _, s2 := range schedules {
		if err := s.AddJob(s2.spec, s2.job); err != nil {
			return fmt.Errorf("failed to register %s: %w", s2.job.name, err)
		}
	}
	return nil
}
