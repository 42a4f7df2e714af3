package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"event-enricher/internal/common/logging"
)

var errRefused = errors.New("connection refused")

func isRefused(err error) bool {
	return errors.Is(err, errRefused)
}

func TestGoBreakerAdapter(t *testing.T) {
	logger := logging.NopLogger{}

	t.Run("starts closed", func(t *testing.T) {
		cb := NewGoBreaker("test-basic", DefaultConfig(), logger)

		assert.Equal(t, StateClosed, cb.State())
		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
		assert.Zero(t, cb.Remaining())
	})

	t.Run("ignored errors do not trip", func(t *testing.T) {
		cb := NewGoBreaker("test-ignored", CooldownConfig(time.Minute, isRefused), logger)

		for i := 0; i < 5; i++ {
			err := cb.Execute(context.Background(), func() error { return errors.New("HTTP 503") })
			assert.EqualError(t, err, "HTTP 503")
		}
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("qualifying error opens for the cooldown", func(t *testing.T) {
		cb := NewGoBreaker("test-cooldown", CooldownConfig(time.Minute, isRefused), logger)

		err := cb.Execute(context.Background(), func() error { return errRefused })
		assert.ErrorIs(t, err, errRefused)

		assert.True(t, cb.IsOpen())
		assert.Greater(t, cb.Remaining(), 50*time.Second)

		called := false
		err = cb.Execute(context.Background(), func() error {
			called = true
			return nil
		})
		assert.ErrorIs(t, err, ErrOpen)
		assert.False(t, called)

		stats := cb.Stats()
		assert.Equal(t, "open", stats.State)
		assert.Equal(t, 1, stats.Trips)
		require.NotNil(t, stats.OpenUntil)
	})

	t.Run("recovers after timeout", func(t *testing.T) {
		cb := NewGoBreaker("test-recover", CooldownConfig(30*time.Millisecond, isRefused), logger)

		_ = cb.Execute(context.Background(), func() error { return errRefused })
		require.True(t, cb.IsOpen())

		require.Eventually(t, func() bool { return !cb.IsOpen() }, time.Second, 5*time.Millisecond)
		assert.Equal(t, StateHalfOpen, cb.State())

		require.NoError(t, cb.Execute(context.Background(), func() error { return nil }))
		assert.Equal(t, StateClosed, cb.State())
	})

	t.Run("failed probe reopens", func(t *testing.T) {
		cb := NewGoBreaker("test-probe", CooldownConfig(20*time.Millisecond, isRefused), logger)

		_ = cb.Execute(context.Background(), func() error { return errRefused })
		require.Eventually(t, func() bool { return !cb.IsOpen() }, time.Second, 5*time.Millisecond)

		_ = cb.Execute(context.Background(), func() error { return errRefused })
		assert.True(t, cb.IsOpen())
		assert.Equal(t, 2, cb.Stats().Trips)
	})

	t.Run("invalid config falls back to defaults", func(t *testing.T) {
		cb := NewGoBreaker("test-invalid", Config{IsFailure: isRefused}, logger)

		_ = cb.Execute(context.Background(), func() error { return errRefused })
		assert.Equal(t, StateClosed, cb.State(), "default config needs five failures")
	})
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())
	assert.NoError(t, CooldownConfig(time.Second, nil).Validate())
	assert.Error(t, Config{Timeout: time.Second, MaxConcurrentRequests: 1}.Validate())
	assert.Error(t, Config{MaxFailures: 1, MaxConcurrentRequests: 1}.Validate())
	assert.Error(t, Config{MaxFailures: 1, Timeout: time.Second}.Validate())
}
