package enrichment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-enricher/internal/common/logging"
	"event-enricher/internal/providers/nominatim"
	"event-enricher/internal/storage"
	"event-enricher/internal/testutil"
)

func testOptions() Options {
	return Options{
		Name:         "test",
		MaxLength:    10,
		MaxRetries:   2,
		Delay:        time.Second,
		IdleInterval: 5 * time.Second,
		BreakerPoll:  time.Second,
		Logger:       logging.NopLogger{},
	}
}

// recorder is a handler that records processed keys and fails according to errs
type recorder struct {
	mu   sync.Mutex
	seen []string
	errs map[string][]error
}

func (r *recorder) handle(ctx context.Context, req Request[int]) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, req.Key)
	if queued := r.errs[req.Key]; len(queued) > 0 {
		err := queued[0]
		r.errs[req.Key] = queued[1:]
		return err
	}
	return nil
}

func (r *recorder) processed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func newTestQueue(opts Options, policy Policy, errs map[string][]error) (*Queue[int], *recorder) {
	rec := &recorder{errs: errs}
	if rec.errs == nil {
		rec.errs = map[string][]error{}
	}
	return NewQueue[int](opts, rec.handle, policy, nil), rec
}

func TestQueue_EnqueueDeduplicates(t *testing.T) {
	q, _ := newTestQueue(testOptions(), ServerErrorPolicy(), nil)

	assert.True(t, q.Enqueue("1", "a", 1))
	assert.False(t, q.Enqueue("1", "a", 1))
	assert.True(t, q.Enqueue("2", "b", 2))

	assert.Equal(t, 2, q.Len())
	assert.Equal(t, uint64(2), q.Stats().Enqueued)
}

func TestQueue_CapEvictsOldest(t *testing.T) {
	opts := testOptions()
	opts.MaxLength = 3
	q, rec := newTestQueue(opts, ServerErrorPolicy(), nil)

	for i, key := range []string{"a", "b", "c", "d", "e"} {
		q.Enqueue(key, key, i)
		assert.LessOrEqual(t, q.Len(), 3)
	}

	assert.Equal(t, 3, q.Len())
	assert.False(t, q.Pending("a"))
	assert.False(t, q.Pending("b"))
	assert.True(t, q.Pending("e"))
	assert.Equal(t, uint64(2), q.Stats().Evicted)

	// an evicted key can be queued again
	assert.True(t, q.Enqueue("a", "a", 0))
	assert.False(t, q.Pending("c"))

	ctx := context.Background()
	for q.Len() > 0 {
		q.step(ctx)
	}
	assert.Equal(t, []string{"d", "e", "a"}, rec.processed())
}

func TestQueue_StepSuccess(t *testing.T) {
	q, rec := newTestQueue(testOptions(), ServerErrorPolicy(), nil)
	q.Enqueue("1", "a", 1)

	wait := q.step(context.Background())

	assert.Equal(t, time.Second, wait)
	assert.Equal(t, []string{"a"}, rec.processed())
	assert.False(t, q.Pending("a"))
	assert.Equal(t, uint64(1), q.Stats().Processed)

	// finished keys can be requested again
	assert.True(t, q.Enqueue("1", "a", 1))
}

func TestQueue_StepIdle(t *testing.T) {
	q, rec := newTestQueue(testOptions(), ServerErrorPolicy(), nil)

	assert.Equal(t, 5*time.Second, q.step(context.Background()))
	assert.Empty(t, rec.processed())
}

func TestQueue_RetryGoesToTail(t *testing.T) {
	q, rec := newTestQueue(testOptions(), ServerErrorPolicy(), map[string][]error{
		"a": {testutil.UpstreamStatus(503)},
	})
	q.Enqueue("1", "a", 1)
	q.Enqueue("2", "b", 2)
	ctx := context.Background()

	q.step(ctx)
	assert.True(t, q.Pending("a"))
	assert.Equal(t, 2, q.Len())

	q.step(ctx)
	q.step(ctx)

	assert.Equal(t, []string{"a", "b", "a"}, rec.processed())
	assert.Equal(t, 0, q.Len())
	stats := q.Stats()
	assert.Equal(t, uint64(1), stats.Retried)
	assert.Equal(t, uint64(2), stats.Processed)
}

func TestQueue_DropAfterMaxRetries(t *testing.T) {
	failure := testutil.UpstreamStatus(500)
	q, rec := newTestQueue(testOptions(), ServerErrorPolicy(), map[string][]error{
		"a": {failure, failure, failure, failure},
	})
	q.Enqueue("1", "a", 1)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		q.step(ctx)
	}

	// first attempt plus two retries
	assert.Len(t, rec.processed(), 3)
	assert.False(t, q.Pending("a"))
	stats := q.Stats()
	assert.Equal(t, uint64(2), stats.Retried)
	assert.Equal(t, uint64(1), stats.Dropped)
}

func TestQueue_PermanentErrorDropped(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
		err    error
	}{
		{"server policy 404", ServerErrorPolicy(), testutil.UpstreamStatus(404)},
		{"server policy 429", ServerErrorPolicy(), testutil.UpstreamStatus(429)},
		{"server policy network", ServerErrorPolicy(), testutil.NetworkFailure()},
		{"geocoder policy 400", GeocoderPolicy(), testutil.UpstreamStatus(400)},
		{"geocoder policy no result", GeocoderPolicy(), nominatim.ErrNoResult},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, rec := newTestQueue(testOptions(), tt.policy, map[string][]error{"a": {tt.err}})
			q.Enqueue("1", "a", 1)

			q.step(context.Background())

			assert.Len(t, rec.processed(), 1)
			assert.Equal(t, 0, q.Len())
			assert.Equal(t, uint64(1), q.Stats().Dropped)
		})
	}
}

func TestPolicies(t *testing.T) {
	notStored := errors.Join(storage.ErrNotFound, errors.New("id 1"))

	tests := []struct {
		name     string
		policy   Policy
		err      error
		expected Decision
	}{
		{"geocoder refused", GeocoderPolicy(), testutil.ConnectionRefused(), RequeueFront},
		{"geocoder network", GeocoderPolicy(), testutil.NetworkFailure(), Retry},
		{"geocoder 500", GeocoderPolicy(), testutil.UpstreamStatus(500), Retry},
		{"geocoder 429", GeocoderPolicy(), testutil.UpstreamStatus(429), Retry},
		{"geocoder 404", GeocoderPolicy(), testutil.UpstreamStatus(404), Drop},
		{"geocoder not stored yet", GeocoderPolicy(), notStored, Retry},
		{"geocoder plain error", GeocoderPolicy(), testutil.ErrTestFailure, Drop},
		{"server 502", ServerErrorPolicy(), testutil.UpstreamStatus(502), Retry},
		{"server refused", ServerErrorPolicy(), testutil.ConnectionRefused(), Drop},
		{"server 403", ServerErrorPolicy(), testutil.UpstreamStatus(403), Drop},
		{"server not stored yet", ServerErrorPolicy(), notStored, Retry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.policy.Classify(tt.err))
		})
	}
}

func TestQueue_RateLimitSlowsDown(t *testing.T) {
	q, _ := newTestQueue(testOptions(), GeocoderPolicy(), map[string][]error{
		"a": {testutil.UpstreamStatus(429)},
	})
	q.Enqueue("1", "a", 1)
	ctx := context.Background()

	assert.Equal(t, 4*time.Second, q.step(ctx))
	assert.Equal(t, time.Second, q.step(ctx))
}

func TestQueue_ServerPolicyKeepsPacing(t *testing.T) {
	q, _ := newTestQueue(testOptions(), ServerErrorPolicy(), map[string][]error{
		"a": {testutil.UpstreamStatus(429)},
	})
	q.Enqueue("1", "a", 1)

	assert.Equal(t, time.Second, q.step(context.Background()))
}

func TestQueue_Clear(t *testing.T) {
	q, _ := newTestQueue(testOptions(), ServerErrorPolicy(), nil)
	q.Enqueue("1", "a", 1)
	q.Enqueue("2", "b", 2)

	assert.Equal(t, 2, q.Clear())
	assert.Equal(t, 0, q.Len())
	assert.False(t, q.Pending("a"))
}

func TestQueue_RunPacesAndStops(t *testing.T) {
	clock := clockwork.NewFakeClock()
	opts := testOptions()
	opts.Clock = clock

	var calls atomic.Int32
	q := NewQueue[int](opts, func(ctx context.Context, req Request[int]) error {
		calls.Add(1)
		return nil
	}, ServerErrorPolicy(), nil)

	q.Enqueue("1", "a", 1)
	q.Enqueue("2", "b", 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer waitCancel()

	done := make(chan struct{})
	go func() {
		q.Run(ctx)
		close(done)
	}()

	// first request runs immediately, then the worker waits out the delay
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(500 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, int32(2), calls.Load())

	// empty queue: idle sleep
	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(waitCtx, 1))
	assert.Equal(t, int32(2), calls.Load())

	q.Enqueue("3", "c", 3)
	cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
		t.Fatal("queue did not stop")
	}

	assert.Equal(t, 0, q.Len())
	assert.Equal(t, int32(2), calls.Load())
}
