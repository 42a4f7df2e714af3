// Package pipeline ingests both feeds, merges persisted enrichment into each
// event, fans out enrichment requests and keeps distances current.
package pipeline

import (
	"sync"
	"time"

	"event-enricher/internal/models"
)

// RuntimeState holds the process-wide reference coordinate and the refresh
// single-flight flag. Each cycle gets a generation so a cycle that outlives
// its deadline cannot end a newer one.
type RuntimeState struct {
	mu         sync.RWMutex
	reference  models.Coordinate
	running    bool
	generation uint64
	startedAt  time.Time
}

func NewRuntimeState(reference models.Coordinate) *RuntimeState {
	return &RuntimeState{reference: reference}
}

// Reference returns the coordinate distances are measured from
func (s *RuntimeState) Reference() models.Coordinate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reference
}

// SetReference replaces the reference coordinate and reports whether it changed
func (s *RuntimeState) SetReference(c models.Coordinate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reference == c {
		return false
	}
	s.reference = c
	return true
}

// TryBeginCycle marks a cycle as running. ok is false when one already is.
func (s *RuntimeState) TryBeginCycle(now time.Time) (generation uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return 0, false
	}
	s.generation++
	s.running = true
	s.startedAt = now
	return s.generation, true
}

// EndCycle clears the running flag if generation is still the current cycle
func (s *RuntimeState) EndCycle(generation uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.generation != generation {
		return false
	}
	s.running = false
	s.startedAt = time.Time{}
	return true
}

// IsCycleInProgress reports whether a refresh cycle is running
func (s *RuntimeState) IsCycleInProgress() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// CycleStartedAt returns when the running cycle started, zero when idle
func (s *RuntimeState) CycleStartedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.startedAt
}
