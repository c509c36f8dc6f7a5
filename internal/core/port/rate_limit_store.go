package port

import (
	"context"
	"time"
)

// RateLimitDecision is the outcome of recording one attempt against a sliding window.
type RateLimitDecision struct {
	Allowed bool
	// Count is the number of attempts inside the window after this call.
	Count int
	// Oldest is the earliest attempt still inside the window; the window frees a slot at Oldest+window.
	Oldest time.Time
}

// RateLimitStore records attempts in a sliding window. Hit is atomic: the check and
// the record happen in one step, and rejected attempts are not recorded.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration, at time.Time) (RateLimitDecision, error)
}
