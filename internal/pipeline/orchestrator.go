package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/feeds"
	"event-enricher/internal/locks"
	"event-enricher/internal/models"
)

// DefaultCycleTimeout force-clears a cycle that never completes
const DefaultCycleTimeout = 30 * time.Minute

// RefreshLockKey is the cross-instance lock held for a whole cycle
const RefreshLockKey = "events:refresh"

// FeedReport summarises one feed pass
type FeedReport struct {
	Feed   models.Feed `json:"feed"`
	Events int         `json:"events"`
	Failed int         `json:"failed"`
	Error  string      `json:"error,omitempty"`
}

// CycleReport summarises one refresh cycle
type CycleReport struct {
	ID         string        `json:"id"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	Feeds      []FeedReport  `json:"feeds"`
	TimedOut   bool          `json:"timed_out"`
	CacheClear int           `json:"cache_cleared"`
}

// Failed reports whether any feed pass failed outright
func (r CycleReport) Failed() bool {
	for _, f := range r.Feeds {
		if f.Error != "" {
			return true
		}
	}
	return false
}

// Observer is told about finished cycles
type Observer interface {
	CycleFinished(report CycleReport)
}

// OrchestratorConfig configures an Orchestrator
type OrchestratorConfig struct {
	Timeout   time.Duration
	BatchSize int
}

// Orchestrator runs full refresh cycles: every feed in order, each processed
// in small concurrent batches, followed by listing cache invalidation
type Orchestrator struct {
	sources     []feeds.Source
	coordinator *Coordinator
	state       *RuntimeState
	cache       cache.Cache
	locker      locks.Locker
	observer    Observer
	clock       clockwork.Clock
	config      OrchestratorConfig
	logger      logging.Logger
}

// NewOrchestrator creates an orchestrator. Sources run in the order given;
// cache, locker and observer may be nil.
func NewOrchestrator(sources []feeds.Source, coordinator *Coordinator, state *RuntimeState, c cache.Cache, config OrchestratorConfig) *Orchestrator {
	if config.Timeout <= 0 {
		config.Timeout = DefaultCycleTimeout
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	return &Orchestrator{
		sources:     sources,
		coordinator: coordinator,
		state:       state,
		cache:       c,
		clock:       clockwork.NewRealClock(),
		config:      config,
		logger:      logging.ForComponent("orchestrator"),
	}
}

// SetLocker makes cycles also hold RefreshLockKey, so that instances sharing
// a lock backend do not refresh at the same time
func (o *Orchestrator) SetLocker(locker locks.Locker) {
	o.locker = locker
}

func (o *Orchestrator) SetObserver(observer Observer) {
	o.observer = observer
}

func (o *Orchestrator) SetClock(clock clockwork.Clock) {
	o.clock = clock
}

func (o *Orchestrator) SetLogger(logger logging.Logger) {
	o.logger = logger
}

// FetchAllEvents runs one refresh cycle. It returns false without doing
// anything when a cycle is already running here or on another instance.
func (o *Orchestrator) FetchAllEvents(ctx context.Context) (CycleReport, bool) {
	started := o.clock.Now()
	generation, ok := o.state.TryBeginCycle(started)
	if !ok {
		o.logger.Info("Refresh already in progress, skipping")
		return CycleReport{}, false
	}

	report := CycleReport{ID: uuid.NewString(), StartedAt: started.UTC()}
	ctx = logging.ContextWithCycleID(ctx, report.ID)
	logger := o.logger.WithContext(ctx)

	deadline := o.clock.AfterFunc(o.config.Timeout, func() {
		if o.state.EndCycle(generation) {
			logger.Warn("Refresh cycle exceeded its deadline, releasing",
				logging.Duration("timeout", o.config.Timeout))
		}
	})
	defer deadline.Stop()

	if o.locker != nil {
		lock, err := o.locker.TryLock(ctx, RefreshLockKey, o.config.Timeout)
		if err != nil {
			o.state.EndCycle(generation)
			if errors.Is(err, locks.ErrLockHeld) {
				logger.Info("Refresh running on another instance, skipping")
			} else {
				logger.Error("Failed to acquire refresh lock", err)
			}
			return CycleReport{}, false
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				logger.Warn("Failed to release refresh lock", logging.Err(err))
			}
		}()
	}

	logger.Info("Refresh cycle started", logging.Int("feeds", len(o.sources)))

	for _, source := range o.sources {
		report.Feeds = append(report.Feeds, o.runFeed(ctx, source))
	}

	if o.cache != nil {
		cleared, err := o.cache.ClearByPattern(ctx, cache.EventsPrefix)
		if err != nil {
			logger.Warn("Failed to invalidate event cache", logging.Err(err))
		}
		report.CacheClear = cleared
	}

	report.TimedOut = !o.state.EndCycle(generation)
	report.Duration = o.clock.Since(started)

	logger.Info("Refresh cycle finished",
		logging.Duration("duration", report.Duration),
		logging.Bool("timed_out", report.TimedOut),
		logging.Int("cache_cleared", report.CacheClear),
	)

	if o.observer != nil {
		o.observer.CycleFinished(report)
	}
	return report, true
}

// runFeed loads and stores one feed. Its failures are logged and reported,
// never returned, so the next feed still runs.
func (o *Orchestrator) runFeed(ctx context.Context, source feeds.Source) FeedReport {
	feed := source.Feed()
	report := FeedReport{Feed: feed}
	logger := o.logger.WithContext(ctx).WithFields(logging.String("feed", string(feed)))

	events, err := source.Load(ctx)
	if err != nil {
		logger.Error("Feed pass failed", err)
		report.Error = err.Error()
		return report
	}

	fromXML := feed == models.FeedXML
	result := RunBatches(ctx, events, o.config.BatchSize, func(ctx context.Context, e *models.Event) error {
		return o.coordinator.ProcessAndStoreEvent(ctx, e, fromXML)
	})

	report.Events = result.Total
	report.Failed = result.Failed

	if result.Failed > 0 {
		logger.Warn("Feed pass finished with failures",
			logging.Int("events", result.Total),
			logging.Int("failed", result.Failed),
			logging.Err(errors.Join(result.Errors...)),
		)
	} else {
		logger.Info("Feed pass finished", logging.Int("events", result.Total))
	}
	return report
}
