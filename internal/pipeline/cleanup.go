package pipeline

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/storage"
)

// Cleaner deletes events that have ended. JSON events are only ever removed
// here; XML events are already filtered at ingestion.
type Cleaner struct {
	store  storage.Store
	cache  cache.Cache
	clock  clockwork.Clock
	logger logging.Logger
}

func NewCleaner(store storage.Store, c cache.Cache, clock clockwork.Clock) *Cleaner {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Cleaner{
		store:  store,
		cache:  c,
		clock:  clock,
		logger: logging.ForComponent("cleaner"),
	}
}

// PurgeEnded removes every event whose end time has passed
func (c *Cleaner) PurgeEnded(ctx context.Context) (int64, error) {
	deleted, err := c.store.DeleteEndedBefore(ctx, c.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete ended events: %w", err)
	}

	if deleted > 0 && c.cache != nil {
		if _, err := c.cache.ClearByPattern(ctx, cache.EventsPrefix); err != nil {
			c.logger.Warn("Failed to invalidate event cache", logging.Err(err))
		}
	}

	c.logger.Info("Ended events purged", logging.Int64("deleted", deleted))
	return deleted, nil
}
