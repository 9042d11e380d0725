// Package ratelimit provides per-source sliding-window admission control for
// outbound API calls.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

const windowSize = 60 * time.Second

// ThrottleFunc is invoked when a server actively signals throttling (429),
// independent of local admission control.
type ThrottleFunc func(source string)

type sourceWindow struct {
	mu         sync.Mutex
	timestamps []time.Time
	limit      int
}

// Limiter admits at most N calls per source per 60 seconds. Sources are
// fully isolated; concurrent callers for the same source serialize through
// that source's lock only.
type Limiter struct {
	mu       sync.Mutex
	sources  map[string]*sourceWindow
	limits   map[string]int
	fallback int

	onThrottle   ThrottleFunc
	throttleMu   sync.Mutex
	lastThrottle map[string]time.Time
	debounce     time.Duration

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewLimiter creates a limiter with per-source requests-per-minute ceilings.
// Sources absent from limits fall back to defaultLimit.
func NewLimiter(limits map[string]int, defaultLimit int) *Limiter {
	if defaultLimit <= 0 {
		defaultLimit = 60
	}
	return &Limiter{
		sources:      make(map[string]*sourceWindow),
		limits:       limits,
		fallback:     defaultLimit,
		lastThrottle: make(map[string]time.Time),
		debounce:     30 * time.Second,
		now:          time.Now,
		sleep: func(ctx context.Context, d time.Duration) error {
			t := time.NewTimer(d)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
				return nil
			}
		},
	}
}

// SetThrottleCallback registers the debounced 429 callback.
func (l *Limiter) SetThrottleCallback(fn ThrottleFunc) {
	l.onThrottle = fn
}

func (l *Limiter) window(source string) *sourceWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.sources[source]
	if !ok {
		limit := l.fallback
		if v, ok := l.limits[source]; ok && v > 0 {
			limit = v
		}
		w = &sourceWindow{limit: limit}
		l.sources[source] = w
	}
	return w
}

// Acquire blocks until admitting one more call for source would not exceed
// its requests-per-60s limit, then records the call. The wait is bounded only
// by the window itself; ctx cancellation aborts the wait.
func (l *Limiter) Acquire(ctx context.Context, source string) error {
	w := l.window(source)

	w.mu.Lock()
	defer w.mu.Unlock()

	for {
		now := l.now()
		w.prune(now)

		if len(w.timestamps) < w.limit {
			w.timestamps = append(w.timestamps, now)
			return nil
		}

		// Sleep until the oldest recorded call leaves the window, then
		// re-prune and try again.
		wait := w.timestamps[0].Add(windowSize).Sub(now)
		if wait < 0 {
			wait = 0
		}
		w.mu.Unlock()
		err := l.sleep(ctx, wait)
		w.mu.Lock()
		if err != nil {
			return err
		}
	}
}

// NotifyThrottled reports a server-side 429 for source, firing the registered
// callback at most once per debounce window.
func (l *Limiter) NotifyThrottled(source string) {
	if l.onThrottle == nil {
		return
	}

	l.throttleMu.Lock()
	last, seen := l.lastThrottle[source]
	now := l.now()
	if seen && now.Sub(last) < l.debounce {
		l.throttleMu.Unlock()
		return
	}
	l.lastThrottle[source] = now
	l.throttleMu.Unlock()

	l.onThrottle(source)
}

func (w *sourceWindow) prune(now time.Time) {
	cutoff := now.Add(-windowSize)
	i := 0
	for i < len(w.timestamps) && !w.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}
