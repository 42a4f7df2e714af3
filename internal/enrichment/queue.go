// Package enrichment runs the background lookups that complete stored events:
// reverse geocoding, nearest transit station and detail-page image. Each
// lookup kind has its own bounded FIFO queue drained by a single worker that
// paces itself between requests and writes results straight into storage.
package enrichment

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"event-enricher/internal/circuitbreaker"
	"event-enricher/internal/common/logging"
)

// Request is one pending lookup for an event
type Request[P any] struct {
	Key        string
	SubjectID  string
	Params     P
	EnqueuedAt time.Time
	Attempts   int
}

// Handler performs the external call for req and persists its result
type Handler[P any] func(ctx context.Context, req Request[P]) error

// Breaker is the circuit breaker a queue consults before dequeuing
type Breaker interface {
	Execute(ctx context.Context, fn func() error) error
	IsOpen() bool
	Remaining() time.Duration
	Stats() circuitbreaker.Stats
}

// Options configures a queue
type Options struct {
	Name         string
	MaxLength    int
	MaxRetries   int
	Delay        time.Duration
	IdleInterval time.Duration
	// BreakerPoll bounds each sleep while the breaker is open
	BreakerPoll time.Duration
	Clock       clockwork.Clock
	Logger      logging.Logger
}

// DefaultOptions returns the settings used when a field is left zero
func DefaultOptions(name string) Options {
	return Options{
		Name:         name,
		MaxLength:    1000,
		MaxRetries:   3,
		Delay:        time.Second,
		IdleInterval: 5 * time.Second,
		BreakerPoll:  5 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.Name)
	if o.MaxLength <= 0 {
		o.MaxLength = d.MaxLength
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.Delay < 0 {
		o.Delay = 0
	}
	if o.IdleInterval <= 0 {
		o.IdleInterval = d.IdleInterval
	}
	if o.BreakerPoll <= 0 {
		o.BreakerPoll = d.BreakerPoll
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = logging.GetGlobalLogger()
	}
	return o
}

// Stats is a snapshot of a queue's counters
type Stats struct {
	Name      string                `json:"name"`
	Depth     int                   `json:"depth"`
	InFlight  bool                  `json:"in_flight"`
	Enqueued  uint64                `json:"enqueued"`
	Processed uint64                `json:"processed"`
	Retried   uint64                `json:"retried"`
	Dropped   uint64                `json:"dropped"`
	Evicted   uint64                `json:"evicted"`
	Breaker   *circuitbreaker.Stats `json:"breaker,omitempty"`
}

// Queue is a bounded FIFO of lookups drained by one worker. A key stays
// reserved from Enqueue until its request succeeds or is dropped, so a
// lookup is never queued twice.
type Queue[P any] struct {
	opts    Options
	handle  Handler[P]
	policy  Policy
	breaker Breaker
	logger  logging.Logger

	mu       sync.Mutex
	pending  []Request[P]
	reserved map[string]struct{}
	inFlight bool
	stats    Stats
}

// NewQueue creates a queue. breaker may be nil.
func NewQueue[P any](opts Options, handle Handler[P], policy Policy, breaker Breaker) *Queue[P] {
	opts = opts.withDefaults()
	if policy.Classify == nil {
		policy = ServerErrorPolicy()
	}
	return &Queue[P]{
		opts:     opts,
		handle:   handle,
		policy:   policy,
		breaker:  breaker,
		logger:   opts.Logger.WithFields(logging.String("queue", opts.Name)),
		reserved: make(map[string]struct{}),
		stats:    Stats{Name: opts.Name},
	}
}

// Name returns the queue name
func (q *Queue[P]) Name() string {
	return q.opts.Name
}

// Enqueue appends a lookup unless one with the same key is already queued or
// running. When the queue is full the oldest pending request is evicted.
func (q *Queue[P]) Enqueue(subjectID, key string, params P) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.reserved[key]; ok {
		return false
	}

	q.reserved[key] = struct{}{}
	q.pushBackLocked(Request[P]{
		Key:        key,
		SubjectID:  subjectID,
		Params:     params,
		EnqueuedAt: q.opts.Clock.Now(),
	})
	q.stats.Enqueued++
	return true
}

func (q *Queue[P]) pushBackLocked(req Request[P]) {
	for len(q.pending) >= q.opts.MaxLength {
		evicted := q.pending[0]
		q.pending[0] = Request[P]{}
		q.pending = q.pending[1:]
		delete(q.reserved, evicted.Key)
		q.stats.Evicted++
		q.logger.Debug("Queue full, evicted oldest request",
			logging.String("event_id", evicted.SubjectID),
			logging.Int("max_length", q.opts.MaxLength),
		)
	}
	q.pending = append(q.pending, req)
}

func (q *Queue[P]) pushFront(req Request[P]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight = false
	q.pending = append([]Request[P]{req}, q.pending...)
	if len(q.pending) > q.opts.MaxLength {
		evicted := q.pending[len(q.pending)-1]
		q.pending = q.pending[:len(q.pending)-1]
		delete(q.reserved, evicted.Key)
		q.stats.Evicted++
	}
}

func (q *Queue[P]) pop() (Request[P], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return Request[P]{}, false
	}
	req := q.pending[0]
	q.pending[0] = Request[P]{}
	q.pending = q.pending[1:]
	q.inFlight = true
	return req, true
}

// release frees the key of a finished request
func (q *Queue[P]) release(req Request[P], counter *uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight = false
	delete(q.reserved, req.Key)
	*counter++
}

func (q *Queue[P]) retry(req Request[P]) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.inFlight = false
	q.stats.Retried++
	q.pushBackLocked(req)
}

// Len returns the number of pending requests
func (q *Queue[P]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Pending reports whether key is queued or running
func (q *Queue[P]) Pending(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	_, ok := q.reserved[key]
	return ok
}

// Stats returns a snapshot of the queue counters
func (q *Queue[P]) Stats() Stats {
	q.mu.Lock()
	stats := q.stats
	stats.Depth = len(q.pending)
	stats.InFlight = q.inFlight
	q.mu.Unlock()

	if q.breaker != nil {
		b := q.breaker.Stats()
		stats.Breaker = &b
	}
	return stats
}

// Clear discards every pending request and returns how many were discarded
func (q *Queue[P]) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.pending)
	for _, req := range q.pending {
		delete(q.reserved, req.Key)
	}
	q.pending = nil
	return n
}

// Run drains the queue until ctx is cancelled. Pending requests are
// discarded on return; they are enqueued again by the next refresh cycle.
func (q *Queue[P]) Run(ctx context.Context) {
	q.logger.Info("Enrichment queue started",
		logging.Int("max_length", q.opts.MaxLength),
		logging.Duration("delay", q.opts.Delay),
	)

	for {
		if ctx.Err() != nil {
			break
		}

		wait := q.step(ctx)

		timer := q.opts.Clock.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.Chan():
		}
	}

	discarded := q.Clear()
	q.logger.Info("Enrichment queue stopped", logging.Int("discarded", discarded))
}

// step processes at most one request and returns how long the worker should
// sleep before the next step.
func (q *Queue[P]) step(ctx context.Context) time.Duration {
	if q.breaker != nil && q.breaker.IsOpen() {
		return q.breakerWait()
	}

	req, ok := q.pop()
	if !ok {
		return q.opts.IdleInterval
	}

	var err error
	if q.breaker != nil {
		err = q.breaker.Execute(ctx, func() error {
			return q.handle(ctx, req)
		})
	} else {
		err = q.handle(ctx, req)
	}

	if err == nil {
		q.release(req, &q.stats.Processed)
		return q.opts.Delay
	}

	fields := []logging.Field{
		logging.String("event_id", req.SubjectID),
		logging.Int("attempts", req.Attempts),
	}

	decision := q.policy.Classify(err)
	if errors.Is(err, circuitbreaker.ErrOpen) {
		decision = RequeueFront
	}

	switch decision {
	case RequeueFront:
		q.pushFront(req)
		q.logger.Warn("Upstream unavailable, pausing queue", append(fields, logging.Err(err))...)
		return q.breakerWait()

	case Retry:
		req.Attempts++
		if req.Attempts > q.opts.MaxRetries {
			q.release(req, &q.stats.Dropped)
			q.logger.Error("Enrichment request dropped after retries", err, fields...)
		} else {
			q.retry(req)
			q.logger.Warn("Enrichment request failed, retrying", append(fields, logging.Err(err))...)
		}

	default:
		q.release(req, &q.stats.Dropped)
		q.logger.Warn("Enrichment request dropped", append(fields, logging.Err(err))...)
	}

	return q.opts.Delay * time.Duration(q.policy.delayFactor(err))
}

func (q *Queue[P]) breakerWait() time.Duration {
	wait := q.opts.BreakerPoll
	if q.breaker != nil {
		if remaining := q.breaker.Remaining(); remaining > 0 && remaining < wait {
			wait = remaining
		}
	}
	return wait
}
