package handler

import (
	"net/http"
	"strconv"

	"fruition-api/internal/model"
	"fruition-api/internal/service"
	"fruition-api/pkg/response"
)

// Feed page limits.
const (
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

// FeedHandler serves the anonymized public feed.
type FeedHandler struct {
	feed service.FeedReader
}

// NewFeedHandler creates a new feed handler.
func NewFeedHandler(feed service.FeedReader) *FeedHandler {
	return &FeedHandler{feed: feed}
}

// Recent handles GET /api/v1/feed?limit=
func (h *FeedHandler) Recent(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > MaxFeedLimit {
		limit = DefaultFeedLimit
	}

	events, err := h.feed.Recent(r.Context(), limit)
	if err != nil {
		response.Error(w, toAPIError(err))
		return
	}
	if events == nil {
		events = []model.FeedEvent{}
	}

	w.Header().Set("Cache-Control", "public, max-age=5")
	response.List(w, events, limit, len(events))
}
