package enrichment

import (
	"errors"

	commonhttp "event-enricher/internal/common/http"
	"event-enricher/internal/storage"
)

// Decision is what the worker does with a failed request
type Decision int

const (
	// Drop discards the request
	Drop Decision = iota
	// Retry appends the request to the tail and counts an attempt
	Retry
	// RequeueFront puts the request back at the head without counting an attempt
	RequeueFront
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	case RequeueFront:
		return "requeue_front"
	default:
		return "drop"
	}
}

// Policy classifies handler errors for a queue
type Policy struct {
	Classify func(err error) Decision
	// DelayFactor scales the pacing delay after a failed request. nil keeps it fixed.
	DelayFactor func(err error) int
}

func (p Policy) delayFactor(err error) int {
	if p.DelayFactor == nil {
		return 1
	}
	if f := p.DelayFactor(err); f > 1 {
		return f
	}
	return 1
}

// RateLimitSlowdown multiplies the geocoder delay after a 429
const RateLimitSlowdown = 4

// ServerErrorPolicy retries 5xx responses and drops everything else
func ServerErrorPolicy() Policy {
	return Policy{Classify: classifyServerError}
}

// GeocoderPolicy retries 5xx, 429 and network failures, pauses the queue on a
// refused connection and slows down after a 429
func GeocoderPolicy() Policy {
	return Policy{
		Classify:    classifyGeocoder,
		DelayFactor: rateLimitFactor,
	}
}

func classifyServerError(err error) Decision {
	if pendingWrite(err) {
		return Retry
	}
	if upstream, ok := commonhttp.AsUpstream(err); ok && upstream.IsServerError() {
		return Retry
	}
	return Drop
}

func classifyGeocoder(err error) Decision {
	if pendingWrite(err) {
		return Retry
	}

	upstream, ok := commonhttp.AsUpstream(err)
	if !ok {
		return Drop
	}

	switch {
	case upstream.IsConnectionRefused():
		return RequeueFront
	case !upstream.HasResponse(), upstream.IsServerError(), upstream.IsRateLimited():
		return Retry
	default:
		return Drop
	}
}

func rateLimitFactor(err error) int {
	if upstream, ok := commonhttp.AsUpstream(err); ok && upstream.IsRateLimited() {
		return RateLimitSlowdown
	}
	return 1
}

// pendingWrite reports a lookup that finished before its event was stored
func pendingWrite(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
