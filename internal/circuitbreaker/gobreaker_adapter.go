// Package circuitbreaker provides circuit breaker functionality using Sony's gobreaker
package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"event-enricher/internal/common/logging"
)

// ErrOpen is returned by Execute while the breaker rejects calls
var ErrOpen = errors.New("circuit breaker is open")

// Config holds the configuration for a circuit breaker
type Config struct {
	// MaxFailures is the number of consecutive failures that opens the breaker
	MaxFailures int
	// Timeout is how long the breaker stays open before letting a probe through
	Timeout time.Duration
	// MaxConcurrentRequests is the number of probes allowed while half-open
	MaxConcurrentRequests int
	// IsFailure decides which errors count against the breaker.
	// nil means every non-nil error counts.
	IsFailure func(err error) bool
}

// DefaultConfig returns a sensible default configuration
func DefaultConfig() Config {
	return Config{
		MaxFailures:           5,
		Timeout:               60 * time.Second,
		MaxConcurrentRequests: 1,
	}
}

// CooldownConfig opens on the first qualifying failure and stays open for cooldown
func CooldownConfig(cooldown time.Duration, isFailure func(error) bool) Config {
	return Config{
		MaxFailures:           1,
		Timeout:               cooldown,
		MaxConcurrentRequests: 1,
		IsFailure:             isFailure,
	}
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.MaxFailures <= 0 {
		return fmt.Errorf("MaxFailures must be positive, got %d", c.MaxFailures)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("Timeout must be positive, got %v", c.Timeout)
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("MaxConcurrentRequests must be positive, got %d", c.MaxConcurrentRequests)
	}
	return nil
}

// State represents the current state of the circuit breaker
type State int

const (
	// StateClosed means requests flow through
	StateClosed State = iota
	// StateOpen means requests are rejected until the timeout elapses
	StateOpen
	// StateHalfOpen means a probe request is allowed through
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Stats returns statistics about the circuit breaker
type Stats struct {
	Name      string     `json:"name"`
	State     string     `json:"state"`
	Failures  int        `json:"failures"`
	Successes int        `json:"successes"`
	Trips     int        `json:"trips"`
	OpenUntil *time.Time `json:"open_until,omitempty"`
}

// GoBreakerAdapter wraps Sony's gobreaker and tracks when the open window ends
type GoBreakerAdapter struct {
	name    string
	timeout time.Duration
	breaker *gobreaker.CircuitBreaker
	logger  logging.Logger

	mu        sync.Mutex
	openUntil time.Time
	trips     int
}

// NewGoBreaker creates a new circuit breaker using Sony's gobreaker implementation
func NewGoBreaker(name string, config Config, logger logging.Logger) *GoBreakerAdapter {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}

	if err := config.Validate(); err != nil {
		logger.Warn("Invalid circuit breaker config, using defaults",
			logging.Err(err),
			logging.String("name", name),
		)
		isFailure := config.IsFailure
		config = DefaultConfig()
		config.IsFailure = isFailure
	}

	g := &GoBreakerAdapter{
		name:    name,
		timeout: config.Timeout,
		logger:  logger,
	}

	isFailure := config.IsFailure
	settings := gobreaker.Settings{
		Name:        name,
		MaxRequests: uint32(config.MaxConcurrentRequests),
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(config.MaxFailures)
		},
		OnStateChange: g.onStateChange,
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if isFailure == nil {
				return false
			}
			return !isFailure(err)
		},
	}
	g.breaker = gobreaker.NewCircuitBreaker(settings)

	return g
}

func (g *GoBreakerAdapter) onStateChange(name string, from gobreaker.State, to gobreaker.State) {
	g.mu.Lock()
	if to == gobreaker.StateOpen {
		g.openUntil = time.Now().Add(g.timeout)
		g.trips++
	} else {
		g.openUntil = time.Time{}
	}
	g.mu.Unlock()

	g.logger.Warn("Circuit breaker state changed",
		logging.String("breaker", name),
		logging.String("from", from.String()),
		logging.String("to", to.String()),
	)
}

// Execute runs fn within the circuit breaker. fn's error is returned unchanged;
// a rejected call returns an error wrapping ErrOpen.
func (g *GoBreakerAdapter) Execute(ctx context.Context, fn func() error) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrOpen, g.name)
	}

	return err
}

// State returns the current state of the circuit breaker
func (g *GoBreakerAdapter) State() State {
	switch g.breaker.State() {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// IsOpen returns true while the breaker rejects calls
func (g *GoBreakerAdapter) IsOpen() bool {
	return g.State() == StateOpen
}

// Remaining returns how long the breaker stays open, zero when it is not open
func (g *GoBreakerAdapter) Remaining() time.Duration {
	if !g.IsOpen() {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	remaining := time.Until(g.openUntil)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Stats returns current statistics
func (g *GoBreakerAdapter) Stats() Stats {
	counts := g.breaker.Counts()
	state := g.State()

	stats := Stats{
		Name:      g.name,
		State:     state.String(),
		Failures:  int(counts.TotalFailures),
		Successes: int(counts.TotalSuccesses),
	}

	g.mu.Lock()
	stats.Trips = g.trips
	if state == StateOpen && !g.openUntil.IsZero() {
		until := g.openUntil
		stats.OpenUntil = &until
	}
	g.mu.Unlock()

	return stats
}
