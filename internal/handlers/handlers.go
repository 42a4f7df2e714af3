// Package handlers exposes the status and trigger API of the enricher.
package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	json "github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/enrichment"
	"event-enricher/internal/middleware"
	"event-enricher/internal/models"
	"event-enricher/internal/pipeline"
	"event-enricher/internal/storage"
)

const (
	DefaultSearchLimit = 20
	MaxSearchLimit     = 100
	DefaultSearchTTL   = 10 * time.Minute
)

// Refresher runs a refresh cycle
type Refresher interface {
	FetchAllEvents(ctx context.Context) (pipeline.CycleReport, bool)
}

// ReferenceUpdater moves the reference coordinate
type ReferenceUpdater interface {
	UpdateReference(ctx context.Context, reference models.Coordinate) (pipeline.RecalculationReport, bool, error)
}

// QueueStats reports the state of an enrichment queue
type QueueStats interface {
	Stats() enrichment.Stats
}

// Deps groups what the handlers read from and trigger
type Deps struct {
	Store        storage.Store
	Cache        cache.Cache
	State        *pipeline.RuntimeState
	Refresher    Refresher
	Recalculator ReferenceUpdater
	Queues       []QueueStats
	Metrics      http.Handler
	SearchTTL    time.Duration

	// OnRecalculated receives the number of rewritten distances
	OnRecalculated func(int)
}

type Handlers struct {
	deps     Deps
	validate *validator.Validate
	logger   logging.Logger

	// background refreshes outlive their request
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(deps Deps) *Handlers {
	if deps.SearchTTL <= 0 {
		deps.SearchTTL = DefaultSearchTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handlers{
		deps:     deps,
		validate: validator.New(),
		logger:   logging.ForComponent("handlers"),
		baseCtx:  ctx,
		cancel:   cancel,
	}
}

func (h *Handlers) SetLogger(logger logging.Logger) {
	h.logger = logger
}

// Router builds the mux router serving every endpoint
func (h *Handlers) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Recover(h.logger), middleware.Logging(h.logger))

	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	if h.deps.Metrics != nil {
		router.Handle("/metrics", h.deps.Metrics).Methods(http.MethodGet)
	}

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/events/search", h.SearchEvents).Methods(http.MethodGet)
	api.HandleFunc("/events/{id}/status", h.GetEventStatus).Methods(http.MethodGet)
	api.HandleFunc("/refresh", h.TriggerRefresh).Methods(http.MethodPost)
	api.HandleFunc("/reference", h.UpdateReference).Methods(http.MethodPost)

	return router
}

// Close cancels background refreshes and waits for them to return
func (h *Handlers) Close() {
	h.cancel()
	h.wg.Wait()
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *Handlers) sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Warn("Failed to encode response", logging.Err(err))
	}
}

func (h *Handlers) sendError(w http.ResponseWriter, status int, msg string) {
	h.sendJSON(w, status, errorResponse{Error: msg})
}
