package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/models"
	"event-enricher/internal/storage"
)

type searchResponse struct {
	Query  string          `json:"query"`
	Count  int             `json:"count"`
	Events []*models.Event `json:"events"`
}

// GetEventStatus reports which enrichment parts of one event are populated
func (h *Handlers) GetEventStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	event, err := h.deps.Store.FindOne(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		h.sendError(w, http.StatusNotFound, "event not found")
		return
	}
	if err != nil {
		h.logger.Error("Failed to load event", err, logging.String("event_id", id))
		h.sendError(w, http.StatusInternalServerError, "failed to load event")
		return
	}

	h.sendJSON(w, http.StatusOK, models.StatusOf(event))
}

// SearchEvents runs a text search over stored events. Responses are cached
// under the events prefix, so every refresh invalidates them.
func (h *Handlers) SearchEvents(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		h.sendError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	limit := DefaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, MaxSearchLimit)
	}

	ctx := r.Context()
	key := searchKey(query, limit)

	if h.deps.Cache != nil {
		var cached []*models.Event
		if cache.GetJSON(ctx, h.deps.Cache, key, &cached) {
			w.Header().Set("X-Cache", "HIT")
			h.sendJSON(w, http.StatusOK, searchResponse{Query: query, Count: len(cached), Events: cached})
			return
		}
	}

	events, err := h.deps.Store.Search(ctx, query, limit)
	if err != nil {
		h.logger.Error("Search failed", err, logging.String("query", query))
		h.sendError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if events == nil {
		events = []*models.Event{}
	}

	if h.deps.Cache != nil {
		if err := cache.SetJSON(ctx, h.deps.Cache, key, events, h.deps.SearchTTL); err != nil {
			h.logger.Warn("Failed to cache search results", logging.Err(err))
		}
	}

	w.Header().Set("X-Cache", "MISS")
	h.sendJSON(w, http.StatusOK, searchResponse{Query: query, Count: len(events), Events: events})
}

func searchKey(query string, limit int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	return cache.SearchPrefix + normalized + "|" + strconv.Itoa(limit)
}
