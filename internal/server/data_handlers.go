package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/openfolio/openfolio/internal/domain"
)

// replaceHoldingsRequest is the full-state payload from the trade-execution
// feed: the complete current portfolio of one user.
type replaceHoldingsRequest struct {
	DisplayName     string `json:"display_name"`
	SubscriberCount int    `json:"subscriber_count"`
	Holdings        []struct {
		Symbol    string  `json:"symbol"`
		Quantity  float64 `json:"quantity"`
		CostBasis float64 `json:"cost_basis"`
	} `json:"holdings"`
}

// handleReplaceHoldings replaces a user's holdings wholesale and upserts the
// user row. Positions absent from the payload are gone, not zeroed.
func (s *Server) handleReplaceHoldings(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req replaceHoldingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := domain.User{
		ID:              userID,
		DisplayName:     req.DisplayName,
		SubscriberCount: req.SubscriberCount,
	}
	if err := s.container.HoldingsRepo.UpsertUser(r.Context(), user); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to upsert user")
		s.writeError(w, http.StatusInternalServerError, "failed to store user")
		return
	}

	holdings := make([]domain.Holding, len(req.Holdings))
	for i, h := range req.Holdings {
		if h.Symbol == "" {
			s.writeError(w, http.StatusBadRequest, "holding symbol must not be empty")
			return
		}
		holdings[i] = domain.Holding{
			UserID:    userID,
			Symbol:    h.Symbol,
			Quantity:  h.Quantity,
			CostBasis: h.CostBasis,
		}
	}

	if err := s.container.HoldingsRepo.ReplaceUserHoldings(r.Context(), userID, holdings); err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to replace holdings")
		s.writeError(w, http.StatusInternalServerError, "failed to store holdings")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":  userID,
		"holdings": len(holdings),
	})
}

// recordCashFlowRequest is one deposit (positive) or withdrawal (negative).
type recordCashFlowRequest struct {
	Amount float64 `json:"amount"`
	Day    string  `json:"day"`
}

func (s *Server) handleRecordCashFlow(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req recordCashFlowRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	day, err := domain.ParseDate(req.Day)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "day must be an ISO date (YYYY-MM-DD)")
		return
	}

	if err := s.container.SnapshotService.RecordCashFlow(r.Context(), userID, req.Amount, day); err != nil {
		if req.Amount == 0 {
			s.writeError(w, http.StatusBadRequest, "amount must not be zero")
			return
		}
		s.log.Error().Err(err).Str("user_id", userID).Msg("Failed to record cash flow")
		s.writeError(w, http.StatusInternalServerError, "failed to record cash flow")
		return
	}

	s.writeJSON(w, http.StatusCreated, map[string]interface{}{
		"user_id": userID,
		"amount":  req.Amount,
		"day":     day.String(),
	})
}

// upsertClosesRequest carries a batch of end-of-day closes, benchmark included.
type upsertClosesRequest struct {
	Closes []struct {
		Symbol     string  `json:"symbol"`
		TradingDay string  `json:"trading_day"`
		ClosePrice float64 `json:"close_price"`
	} `json:"closes"`
}

func (s *Server) handleUpsertCloses(w http.ResponseWriter, r *http.Request) {
	var req upsertClosesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Closes) == 0 {
		s.writeError(w, http.StatusBadRequest, "closes must not be empty")
		return
	}

	stored := 0
	for _, c := range req.Closes {
		day, err := domain.ParseDate(c.TradingDay)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "trading_day must be an ISO date (YYYY-MM-DD)")
			return
		}
		if c.Symbol == "" || c.ClosePrice <= 0 {
			s.writeError(w, http.StatusBadRequest, "each close needs a symbol and a positive price")
			return
		}

		point := domain.MarketDataPoint{Symbol: c.Symbol, TradingDay: day, ClosePrice: c.ClosePrice}
		if err := s.container.MarketRepo.UpsertClose(r.Context(), point); err != nil {
			s.log.Error().Err(err).Str("symbol", c.Symbol).Msg("Failed to upsert close")
			s.writeError(w, http.StatusInternalServerError, "failed to store closes")
			return
		}
		stored++
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{"stored": stored})
}
