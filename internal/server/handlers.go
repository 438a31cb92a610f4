package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/openfolio/openfolio/internal/domain"
	"github.com/openfolio/openfolio/internal/modules/charts"
	"github.com/openfolio/openfolio/internal/modules/leaderboard"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"version": "1.0.0",
		"service": "openfolio",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handlePerformance returns the chart series and headline return for one user
// and period. An unavailable series is a 503, never a fabricated flat chart.
func (s *Server) handlePerformance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	period, err := charts.ParsePeriod(r.URL.Query().Get("period"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	series, err := s.container.Charts.Get(r.Context(), userID, period)
	if err != nil {
		var nb *domain.NoBaselineError
		switch {
		case errors.Is(err, domain.ErrNoSnapshots), errors.As(err, &nb):
			s.writeError(w, http.StatusNotFound, "no performance history for this user and period")
		case errors.Is(err, domain.ErrDataUnavailable):
			s.writeError(w, http.StatusServiceUnavailable, "performance data temporarily unavailable")
		default:
			s.log.Error().Err(err).Str("user_id", userID).Str("period", string(period)).Msg("Failed to build performance series")
			s.writeError(w, http.StatusInternalServerError, "failed to build performance series")
		}
		return
	}

	s.writeJSON(w, http.StatusOK, series)
}

// handleLeaderboard returns the ranked board for a period and category.
func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	periodParam := r.URL.Query().Get("period")
	if periodParam == "" {
		periodParam = string(charts.Period1M)
	}
	period, err := charts.ParsePeriod(periodParam)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	category, err := leaderboard.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	board, err := s.container.Leaderboard.Get(r.Context(), period, category)
	if err != nil {
		s.log.Error().Err(err).Str("period", string(period)).Msg("Failed to compute leaderboard")
		s.writeError(w, http.StatusServiceUnavailable, "leaderboard temporarily unavailable")
		return
	}

	s.writeJSON(w, http.StatusOK, board)
}

// handleMarketHours reports the exchange calendar's view of the clock.
func (s *Server) handleMarketHours(w http.ResponseWriter, r *http.Request) {
	cal := s.container.Calendar
	today := cal.CurrentTradingDay()

	response := map[string]interface{}{
		"is_open":              cal.IsMarketOpenNow(),
		"timezone":             cal.Location().String(),
		"current_trading_day":  today.String(),
		"previous_trading_day": cal.PreviousTradingDay(today).String(),
		"next_open":            cal.NextOpen().Format(time.RFC3339),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleWipeCache deletes every chart cache entry. Rebuilt lazily or by the
// regeneration batch.
func (s *Server) handleWipeCache(w http.ResponseWriter, r *http.Request) {
	n, err := s.container.Charts.Wipe(r.Context())
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to wipe chart cache")
		s.writeError(w, http.StatusInternalServerError, "failed to wipe cache")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": n})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes a JSON error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
