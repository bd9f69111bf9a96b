package mail

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottlePause is how long sends pause after the provider throttles.
const DefaultThrottlePause = 2 * time.Second

// RateLimiter controls the frequency of provider calls.
type RateLimiter struct {
	limiter *rate.Limiter

	// additional pause after a throttling error
	throttledUntil time.Time
	mu             sync.Mutex
}

// NewRateLimiter creates a limiter allowing rps sends per second with burst.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Wait blocks until the next send is allowed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	waitUntil := r.throttledUntil
	r.mu.Unlock()

	if time.Now().Before(waitUntil) {
		timer := time.NewTimer(time.Until(waitUntil))
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return r.limiter.Wait(ctx)
}

// SetThrottled pauses all sends for d.
func (r *RateLimiter) SetThrottled(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.throttledUntil = time.Now().Add(d)
}

// RateLimited wraps a transport with a shared rate limiter.
type RateLimited struct {
	next    Transport
	limiter *RateLimiter
	pause   time.Duration
}

// NewRateLimited wraps next.
func NewRateLimited(next Transport, limiter *RateLimiter) *RateLimited {
	return &RateLimited{next: next, limiter: limiter, pause: DefaultThrottlePause}
}

// Send waits for a token, then delegates. A throttled send pauses the limiter.
func (t *RateLimited) Send(ctx context.Context, msg Message) (string, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}
	id, err := t.next.Send(ctx, msg)
	if errors.Is(err, ErrThrottled) {
		t.limiter.SetThrottled(t.pause)
	}
	return id, err
}
