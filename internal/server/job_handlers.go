package server

import (
	"context"
	"net/http"

	"github.com/openfolio/openfolio/internal/scheduler"
)

// Batch trigger endpoints. Each runs the batch synchronously and responds with
// its BatchReport, the same report the scheduled run logs.

func (s *Server) handleTriggerDailySnapshot(w http.ResponseWriter, r *http.Request) {
	s.runBatch(w, r, s.container.Jobs.DailySnapshots)
}

func (s *Server) handleTriggerIntradaySnapshot(w http.ResponseWriter, r *http.Request) {
	s.runBatch(w, r, s.container.Jobs.IntradaySnapshots)
}

func (s *Server) handleTriggerCacheRegeneration(w http.ResponseWriter, r *http.Request) {
	s.runBatch(w, r, s.container.Jobs.RegenerateCaches)
}

func (s *Server) handleTriggerLeaderboardRefresh(w http.ResponseWriter, r *http.Request) {
	s.runBatch(w, r, s.container.Jobs.RefreshLeaderboards)
}

func (s *Server) runBatch(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context) (*scheduler.BatchReport, error)) {
	report, err := fn(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Batch trigger failed")
		s.writeError(w, http.StatusInternalServerError, "batch failed to run")
		return
	}

	s.writeJSON(w, http.StatusOK, report)
}
