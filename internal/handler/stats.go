package handler

import (
	"net/http"

	"fruition-api/internal/service"
	"fruition-api/pkg/response"
)

// StatsHandler serves the caller's consumption and waste history.
type StatsHandler struct {
	sessionResolver
	stats *service.StatsAggregator
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(sessions *service.SessionManager, stats *service.StatsAggregator) *StatsHandler {
	return &StatsHandler{sessionResolver: sessionResolver{sessions: sessions}, stats: stats}
}

// Get handles GET /api/v1/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	stats, err := h.stats.ComputeStats(r.Context(), s.UserID())
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, stats)
}

// Summary handles GET /api/v1/stats/summary
func (h *StatsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}

	summary, err := h.stats.Summarize(r.Context(), s.UserID(), s.Location())
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	response.OK(w, summary)
}
