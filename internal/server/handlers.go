package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/rickgao/emission-engine/internal/api"
	"github.com/rickgao/emission-engine/internal/auth"
	"github.com/rickgao/emission-engine/internal/mining"
	"github.com/rickgao/emission-engine/internal/model"
	"github.com/rickgao/emission-engine/internal/procedure"
	"github.com/rickgao/emission-engine/internal/version"
)

const defaultHistoryLimit = 100

// tradeActions maps the {action} path segment to its routine.
var tradeActions = map[string]string{
	"initiate":  procedure.InitiateTrade,
	"mark-paid": procedure.MarkTradePaid,
	"release":   procedure.ReleaseTradeFunds,
	"dispute":   procedure.RaiseTradeDispute,
}

// -----------------------------------------------------------------------------
// Price
// -----------------------------------------------------------------------------

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Price.GenerateTick(r.Context())
	if err != nil {
		s.logger.Error("tick generation failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody(api.CodeInternal, "tick generation failed"))
		return
	}
	writeJSON(w, http.StatusOK, api.NewTickResponse(res))
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	tick, err := s.deps.Price.Latest(r.Context())
	if errors.Is(err, model.ErrNotFound) {
		writeError(w, http.StatusNotFound, errorBody(api.CodeNotFound, "no ticks yet"))
		return
	}
	if err != nil {
		s.logger.Error("read latest tick failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody(api.CodeInternal, "read latest tick failed"))
		return
	}
	writeJSON(w, http.StatusOK, api.NewPriceTick(tick))
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, errorBody(api.CodeBadRequest, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	limit = min(limit, s.cfg.MaxHistory)

	ticks, err := s.deps.Price.History(r.Context(), limit)
	if err != nil {
		s.logger.Error("read tick history failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody(api.CodeInternal, "read tick history failed"))
		return
	}

	resp := api.HistoryResponse{Ticks: make([]api.PriceTick, 0, len(ticks))}
	for _, t := range ticks {
		resp.Ticks = append(resp.Ticks, api.NewPriceTick(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// -----------------------------------------------------------------------------
// Mining
// -----------------------------------------------------------------------------

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Mining.Claim(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		status, body := claimError(err)
		writeError(w, status, body)
		return
	}
	writeJSON(w, http.StatusOK, api.NewClaimResponse(res))
}

// claimError maps a claim failure to its response.
func claimError(err error) (int, api.ErrorBody) {
	var notYet *mining.NotYetEligibleError
	switch {
	case errors.Is(err, mining.ErrNotAuthenticated):
		return http.StatusUnauthorized, errorBody(api.CodeNotAuthenticated, "a valid session is required")
	case errors.As(err, &notYet):
		next := notYet.NextEligibleAt
		body := errorBody(api.CodeNotYetEligible, "mining is on cooldown")
		body.NextMine = &next
		return http.StatusConflict, body
	case errors.Is(err, model.ErrSupplyExhausted):
		zero := decimal.Zero
		body := errorBody(api.CodeSupplyExhausted, "the global supply has been fully mined")
		body.Amount = &zero
		return http.StatusGone, body
	default:
		return http.StatusInternalServerError, errorBody(api.CodeInternal, "claim failed")
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Mining.Status(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, mining.ErrNotAuthenticated) {
			writeError(w, http.StatusUnauthorized, errorBody(api.CodeNotAuthenticated, "a valid session is required"))
			return
		}
		s.logger.Error("mining status failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody(api.CodeInternal, "mining status failed"))
		return
	}
	writeJSON(w, http.StatusOK, api.NewStatusResponse(st))
}

func (s *Server) handleSupply(w http.ResponseWriter, r *http.Request) {
	supply, err := s.deps.Mining.Supply(r.Context())
	if err != nil {
		s.logger.Error("read supply failed", "error", err)
		writeError(w, http.StatusInternalServerError, errorBody(api.CodeInternal, "read supply failed"))
		return
	}
	writeJSON(w, http.StatusOK, api.NewSupplyResponse(supply))
}

// -----------------------------------------------------------------------------
// Trades
// -----------------------------------------------------------------------------

func (s *Server) handleTradeAction(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	name, ok := tradeActions[vars["action"]]
	if !ok {
		writeError(w, http.StatusNotFound, errorBody(api.CodeNotFound, "unknown trade action"))
		return
	}

	userID := auth.UserID(r.Context())
	res, err := s.deps.Procedures.Call(r.Context(), name, vars["tradeID"], userID)

	var procErr *procedure.ProcedureError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, api.TradeActionResponse{Success: res.Success, Message: res.Message})
	case errors.As(err, &procErr):
		writeError(w, http.StatusConflict, errorBody(api.CodeProcedureFailed, procErr.Message))
	case errors.Is(err, procedure.ErrUnknownProcedure):
		writeError(w, http.StatusNotFound, errorBody(api.CodeNotFound, "unknown trade action"))
	default:
		s.logger.Error("trade action failed",
			"action", vars["action"],
			"trade_id", vars["tradeID"],
			"user_id", userID,
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, errorBody(api.CodeInternal, "trade action failed"))
	}
}

// -----------------------------------------------------------------------------
// Operational
// -----------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			s.logger.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, api.HealthResponse{Status: "unhealthy"})
			return
		}
	}
	writeJSON(w, http.StatusOK, api.HealthResponse{Status: "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, version.Get())
}
