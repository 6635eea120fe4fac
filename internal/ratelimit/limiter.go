package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Errors
var (
	ErrInvalidLimit  = errors.New("max requests must be positive")
	ErrInvalidWindow = errors.New("window must be positive")
)

// Limiter allows at most maxRequests actions within any trailing window.
//
// It keeps the completion times of recent actions and counts how many fall
// inside the window at each check (sliding window, no fixed-bucket reset).
// A single Limiter is safe for concurrent use.
type Limiter struct {
	maxRequests int
	window      time.Duration

	mu     sync.Mutex
	stamps []time.Time // chronological, all within window of the last evict
}

// New creates a Limiter that permits maxRequests actions per window.
func New(maxRequests int, window time.Duration) (*Limiter, error) {
	if maxRequests <= 0 {
		return nil, fmt.Errorf("ratelimit: max_requests %d: %w", maxRequests, ErrInvalidLimit)
	}
	if window <= 0 {
		return nil, fmt.Errorf("ratelimit: window %s: %w", window, ErrInvalidWindow)
	}
	return &Limiter{
		maxRequests: maxRequests,
		window:      window,
		stamps:      make([]time.Time, 0, maxRequests),
	}, nil
}

// Limit returns the request ceiling per window.
func (l *Limiter) Limit() int { return l.maxRequests }

// Window returns the window length.
func (l *Limiter) Window() time.Duration { return l.window }

// Acquire blocks until the caller may perform one rate-limited action.
//
// If fewer than maxRequests actions were recorded within the trailing
// window, the action is recorded and Acquire returns immediately.
// Otherwise the caller sleeps until the oldest recorded action leaves the
// window and the check runs again; a concurrent caller may win the freed
// slot, so waiters loop rather than assuming a single sleep is enough.
// No fairness is guaranteed between waiters.
//
// Acquire never fails on its own. The only error it returns is ctx.Err()
// when the context is cancelled during a wait.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		now := time.Now()

		l.mu.Lock()
		l.evict(now)
		if len(l.stamps) < l.maxRequests {
			l.stamps = append(l.stamps, now)
			l.mu.Unlock()
			return nil
		}
		// Window is full: wait until the oldest entry ages out.
		wait := l.window - now.Sub(l.stamps[0])
		l.mu.Unlock()

		if wait < 0 {
			wait = 0
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// InWindow reports how many recorded actions currently fall inside the
// trailing window.
func (l *Limiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.evict(time.Now())
	return len(l.stamps)
}

// evict drops timestamps older than now minus window. Must be called with
// the lock held.
func (l *Limiter) evict(now time.Time) {
	cutoff := now.Add(-l.window)
	i := 0
	for i < len(l.stamps) && !l.stamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}
