package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/tgparkk/AutoSwingTrade/internal/domain"
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.bot.Status())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	positions := s.bot.PositionsSnapshot()
	if positions == nil {
		positions = []domain.Position{}
	}
	s.writeJSON(w, positions)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	records, err := s.tradeRepo.ListTradeRecords(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list trade records", zap.Error(err))
		http.Error(w, "Failed to list trade records", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*domain.TradeRecord{}
	}
	s.writeJSON(w, records)
}

func (s *Server) handleOrderStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, s.bot.OrderStats())
}

type commandRequest struct {
	Command domain.CommandType `json:"command"`
}

func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid command payload", http.StatusBadRequest)
		return
	}

	result := s.bot.Dispatch(req.Command)
	s.logger.Info("Command dispatched",
		zap.String("command", string(req.Command)),
		zap.Bool("accepted", result.Accepted),
		zap.String("state", string(result.State)))

	if !result.Accepted {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(result)
		return
	}
	s.writeJSON(w, result)
}

func (s *Server) handleSubmitSignal(w http.ResponseWriter, r *http.Request) {
	var sig domain.TradingSignal
	if err := json.NewDecoder(r.Body).Decode(&sig); err != nil {
		http.Error(w, "Invalid signal payload", http.StatusBadRequest)
		return
	}
	if sig.StockCode == "" || sig.SignalType == "" {
		http.Error(w, "stock_code and signal_type are required", http.StatusBadRequest)
		return
	}

	if !s.bot.SubmitSignal(sig) {
		http.Error(w, "Signal queue full", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusAccepted)
	s.writeJSON(w, map[string]string{"status": "queued"})
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}
