package storage_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-enricher/internal/storage"
	"event-enricher/internal/testutil"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	registry := storage.NewRegistry()

	opened := 0
	registry.Register("memory", storage.FactoryFunc(func(ctx context.Context) (storage.Store, error) {
		opened++
		return testutil.NewMockStore(), nil
	}))
	registry.Register("broken", storage.FactoryFunc(func(ctx context.Context) (storage.Store, error) {
		return nil, testutil.ErrTestFailure
	}))

	assert.Equal(t, []string{"broken", "memory"}, registry.Types())

	store, err := registry.Create(ctx, "memory")
	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, 1, opened)

	_, err = registry.Create(ctx, "broken")
	assert.ErrorIs(t, err, testutil.ErrTestFailure)

	_, err = registry.Create(ctx, "mongodb")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mongodb")
}
