package collector

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// RequestGate bounds the number of outbound requests in flight. A gate built with a
// non-positive limit admits every request.
type RequestGate struct {
	weighted *semaphore.Weighted
}

// NewRequestGate constructs a gate admitting at most maximumConcurrentRequests requests at once.
func NewRequestGate(maximumConcurrentRequests int) *RequestGate {
	if maximumConcurrentRequests <= 0 {
		return &RequestGate{}
	}
	return &RequestGate{weighted: semaphore.NewWeighted(int64(maximumConcurrentRequests))}
}

func (gate *RequestGate) acquire(executionContext context.Context) error {
	if gate == nil || gate.weighted == nil {
		return executionContext.Err()
	}
	return gate.weighted.Acquire(executionContext, 1)
}

func (gate *RequestGate) release() {
	if gate == nil || gate.weighted == nil {
		return
	}
	gate.weighted.Release(1)
}

// throughGate holds one permit for the duration of a single request.
func throughGate[Result any](executionContext context.Context, gate *RequestGate, request func(context.Context) (Result, error)) (Result, error) {
	if acquireError := gate.acquire(executionContext); acquireError != nil {
		var zeroResult Result
		return zeroResult, acquireError
	}
	defer gate.release()
	return request(executionContext)
}
