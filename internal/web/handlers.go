package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"bingx-market-analyzer/internal/usecase"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"state":  s.orchestrator.State(),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, struct {
		usecase.Status
		Subscribers int `json:"ws_subscribers"`
	}{s.orchestrator.Status(), s.hub.Subscribers()})
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			http.Error(w, "limit must be 1..500", http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := s.signalRepo.ListRecent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list signals", zap.Error(err))
		http.Error(w, "Failed to list signals", http.StatusInternalServerError)
		return
	}

	type signalJSON struct {
		ID         string          `json:"id"`
		Symbol     string          `json:"symbol"`
		Type       string          `json:"signal_type"`
		Confidence float64         `json:"confidence"`
		Rules      []string        `json:"rules_triggered"`
		Snapshot   json.RawMessage `json:"snapshot"`
		CreatedAt  string          `json:"created_at"`
	}
	out := make([]signalJSON, 0, len(records))
	for _, rec := range records {
		out = append(out, signalJSON{
			ID:         rec.ID,
			Symbol:     rec.Symbol,
			Type:       string(rec.Type),
			Confidence: rec.Confidence,
			Rules:      rec.Rules,
			Snapshot:   rec.Snapshot,
			CreatedAt:  rec.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	wire := r.PathValue("symbol")
	if wire == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}
	symbol := strings.ReplaceAll(wire, "-", "/")

	result, err := s.orchestrator.AnalyzeSymbol(r.Context(), symbol)
	if err != nil {
		s.logger.Error("On-demand analysis failed", zap.String("symbol", symbol), zap.Error(err))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	if result.Failed() {
		s.writeJSON(w, http.StatusBadGateway, result)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}
