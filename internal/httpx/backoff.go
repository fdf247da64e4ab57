package httpx

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff computes retry delays: exponential growth with jitter, raised to
// any server-published floor such as the Retry-After window on Zendesk 429
// responses.
type Backoff struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    float64

	mu   sync.Mutex
	rand *rand.Rand
}

// NewBackoff returns a Backoff initialized with the supplied parameters.
func NewBackoff(base, max time.Duration, jitter float64) Backoff {
	if base <= 0 {
		base = 50 * time.Millisecond
	}
	if max <= 0 {
		max = time.Second
	}
	if jitter < 0 {
		jitter = 0
	}
	return Backoff{
		BaseDelay: base,
		MaxDelay:  max,
		Jitter:    jitter,
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Delay returns the wait before retry attempt (0-indexed). A positive floor
// is the server's own minimum; it is honored exactly and never jittered
// below, so a published rate-limit window is not re-entered early.
func (b *Backoff) Delay(attempt int, floor time.Duration) time.Duration {
	delay := b.BaseDelay
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay <= 0 || delay >= b.MaxDelay {
			delay = b.MaxDelay
			break
		}
	}
	delay = time.Duration(float64(delay) * b.jitterFactor())
	if floor > delay {
		return floor
	}
	return delay
}

// jitterFactor draws a multiplier in [1-Jitter, 1+Jitter], clamped at zero.
func (b *Backoff) jitterFactor() float64 {
	if b.Jitter == 0 {
		return 1
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	factor := 1 + (b.rand.Float64()*2-1)*math.Min(b.Jitter, 1)
	if factor < 0 {
		factor = 0
	}
	return factor
}
