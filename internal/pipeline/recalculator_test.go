package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-enricher/internal/common/cache"
	"event-enricher/internal/common/logging"
	"event-enricher/internal/models"
	"event-enricher/internal/testutil"
)

func newTestRecalculator(store *testutil.MockStore, c cache.Cache, state *RuntimeState, batchSize int) *Recalculator {
	r := NewRecalculator(store, c, state, batchSize)
	r.logger = logging.NopLogger{}
	return r
}

func TestRecalculator_UpdatesOnlyChangedDistances(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMockStore()
	state := NewRuntimeState(testutil.PuertaDelSol)
	newReference := testutil.Retiro

	store.Put(testutil.NewEventBuilder("stale").
		WithCoordinates(testutil.CondeDuque.Lat, testutil.CondeDuque.Lon).
		WithDistance(models.HaversineKm(testutil.PuertaDelSol, testutil.CondeDuque)).
		Build())
	store.Put(testutil.NewEventBuilder("current").
		WithCoordinates(testutil.PuertaDelSol.Lat, testutil.PuertaDelSol.Lon).
		WithDistance(models.HaversineKm(newReference, testutil.PuertaDelSol)).
		Build())
	store.Put(testutil.NewEventBuilder("no-coordinates").Build())
	store.Put(testutil.NewEventBuilder("lost-coordinates").WithDistance(3.2).Build())

	c := cache.NewLocalCache(time.Minute, time.Minute)
	require.NoError(t, c.Set(ctx, cache.EventsPrefix+"list", []byte("[]"), time.Minute))

	r := newTestRecalculator(store, c, state, 10)
	report, changed, err := r.UpdateReference(ctx, newReference)
	require.NoError(t, err)
	require.True(t, changed)

	assert.Equal(t, 4, report.Scanned)
	assert.Equal(t, 2, report.Updated)
	assert.Equal(t, newReference, state.Reference())

	require.NotNil(t, store.Get("stale").DistanceKm)
	assert.InDelta(t, models.HaversineKm(newReference, testutil.CondeDuque), *store.Get("stale").DistanceKm, 1e-9)
	assert.Nil(t, store.Get("lost-coordinates").DistanceKm)
	assert.Nil(t, store.Get("no-coordinates").DistanceKm)

	_, ok := c.Get(ctx, cache.EventsPrefix+"list")
	assert.False(t, ok)
}

func TestRecalculator_UnchangedReferenceIsNoop(t *testing.T) {
	store := testutil.NewMockStore()
	state := NewRuntimeState(testutil.PuertaDelSol)
	r := newTestRecalculator(store, nil, state, 10)

	_, changed, err := r.UpdateReference(context.Background(), testutil.PuertaDelSol)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, 0, store.Calls("ForEachCoordinates"))
}

func TestRecalculator_RejectsInvalidReference(t *testing.T) {
	state := NewRuntimeState(testutil.PuertaDelSol)
	r := newTestRecalculator(testutil.NewMockStore(), nil, state, 10)

	_, _, err := r.UpdateReference(context.Background(), models.Coordinate{Lat: 123, Lon: 0})
	assert.Error(t, err)
	assert.Equal(t, testutil.PuertaDelSol, state.Reference())
}

func TestRecalculator_WritesInBatches(t *testing.T) {
	store := testutil.NewMockStore()
	for i := 0; i < 5; i++ {
		store.Put(testutil.NewEventBuilder(fmt.Sprintf("e%d", i)).
			WithCoordinates(40.40+float64(i)/100, -3.70).
			Build())
	}
	r := newTestRecalculator(store, nil, NewRuntimeState(testutil.PuertaDelSol), 2)

	report, err := r.Recalculate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, report.Updated)
	assert.Equal(t, 3, store.Calls("BulkUpdateDistances"))

	// nothing left to change
	report, err = r.Recalculate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Updated)
	assert.Equal(t, 3, store.Calls("BulkUpdateDistances"))
}

func TestRecalculator_WriteFailure(t *testing.T) {
	store := testutil.NewMockStore()
	store.Put(testutil.NewEventBuilder("1").WithCoordinates(40.5, -3.6).Build())
	store.SetError("BulkUpdateDistances", testutil.ErrTestFailure)
	r := newTestRecalculator(store, nil, NewRuntimeState(testutil.PuertaDelSol), 10)

	_, err := r.Recalculate(context.Background())
	assert.ErrorIs(t, err, testutil.ErrTestFailure)
}
