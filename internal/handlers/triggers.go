package handlers

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"

	"event-enricher/internal/common/logging"
	"event-enricher/internal/models"
)

type referenceRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lon *float64 `json:"lon" validate:"required,longitude"`
}

type referenceResponse struct {
	Reference  models.Coordinate `json:"reference"`
	Changed    bool              `json:"changed"`
	Scanned    int               `json:"scanned"`
	Recomputed int               `json:"recomputed"`
}

// TriggerRefresh starts a refresh cycle in the background. It answers 409
// when a cycle is already running.
func (h *Handlers) TriggerRefresh(w http.ResponseWriter, r *http.Request) {
	if h.deps.State != nil && h.deps.State.IsCycleInProgress() {
		h.sendError(w, http.StatusConflict, "refresh already in progress")
		return
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.runRefresh(h.baseCtx)
	}()

	h.sendJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func (h *Handlers) runRefresh(ctx context.Context) {
	report, ran := h.deps.Refresher.FetchAllEvents(ctx)
	if !ran {
		h.logger.Info("Manual refresh skipped, another cycle is running")
		return
	}
	h.logger.Info("Manual refresh finished",
		logging.String("cycle_id", report.ID),
		logging.Duration("duration", report.Duration),
	)
}

// UpdateReference moves the reference coordinate and recomputes stored
// distances when it changed
func (h *Handlers) UpdateReference(w http.ResponseWriter, r *http.Request) {
	var req referenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.sendError(w, http.StatusBadRequest, "lat and lon must be a valid coordinate")
		return
	}

	reference := models.Coordinate{Lat: *req.Lat, Lon: *req.Lon}
	report, changed, err := h.deps.Recalculator.UpdateReference(r.Context(), reference)
	if err != nil {
		h.logger.Error("Distance recalculation failed", err)
		h.sendError(w, http.StatusInternalServerError, "distance recalculation failed")
		return
	}

	if changed && h.deps.OnRecalculated != nil {
		h.deps.OnRecalculated(report.Updated)
	}

	h.sendJSON(w, http.StatusOK, referenceResponse{
		Reference:  reference,
		Changed:    changed,
		Scanned:    report.Scanned,
		Recomputed: report.Updated,
	})
}
