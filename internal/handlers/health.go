package handlers

import (
	"context"
	"net/http"
	"time"

	"event-enricher/internal/common/logging"
	"event-enricher/internal/enrichment"
	"event-enricher/internal/models"
)

type refreshStatus struct {
	InProgress bool       `json:"in_progress"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
}

type healthResponse struct {
	Status    string             `json:"status"`
	Timestamp time.Time          `json:"timestamp"`
	Store     string             `json:"store"`
	Events    int64              `json:"events"`
	Reference models.Coordinate  `json:"reference"`
	Refresh   refreshStatus      `json:"refresh"`
	Queues    []enrichment.Stats `json:"queues"`
}

// HealthCheck reports store reachability, refresh state and queue stats.
// It answers 503 when the store cannot be reached.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Store:     "ok",
		Queues:    make([]enrichment.Stats, 0, len(h.deps.Queues)),
	}
	status := http.StatusOK

	if err := h.deps.Store.Health(ctx); err != nil {
		h.logger.Warn("Store health check failed", logging.Err(err))
		resp.Status = "unhealthy"
		resp.Store = err.Error()
		status = http.StatusServiceUnavailable
	} else if count, err := h.deps.Store.Count(ctx); err == nil {
		resp.Events = count
	}

	if state := h.deps.State; state != nil {
		resp.Reference = state.Reference()
		resp.Refresh.InProgress = state.IsCycleInProgress()
		if started := state.CycleStartedAt(); !started.IsZero() {
			resp.Refresh.StartedAt = &started
		}
	}

	for _, q := range h.deps.Queues {
		resp.Queues = append(resp.Queues, q.Stats())
	}

	h.sendJSON(w, status, resp)
}
