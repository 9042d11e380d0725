package httpclient

import (
	"sync"
	"time"
)

// Breaker fast-fails requests to endpoints that recently returned an auth or
// permission error. State is keyed by (source, URL path) so a bad endpoint
// does not block unrelated endpoints of the same source.
type Breaker struct {
	mu       sync.Mutex
	openedAt map[string]time.Time
	coolDown time.Duration
	now      func() time.Time
}

// NewBreaker creates a breaker with the given cool-down window.
func NewBreaker(coolDown time.Duration) *Breaker {
	if coolDown <= 0 {
		coolDown = time.Hour
	}
	return &Breaker{
		openedAt: make(map[string]time.Time),
		coolDown: coolDown,
		now:      time.Now,
	}
}

func breakerKey(source, path string) string {
	return source + "|" + path
}

// Open trips the breaker for (source, path).
func (b *Breaker) Open(source, path string) {
	b.mu.Lock()
	b.openedAt[breakerKey(source, path)] = b.now()
	b.mu.Unlock()
}

// IsOpen reports whether (source, path) is still inside its cool-down.
// An expired breaker is cleared on the way out.
func (b *Breaker) IsOpen(source, path string) bool {
	key := breakerKey(source, path)

	b.mu.Lock()
	defer b.mu.Unlock()

	opened, ok := b.openedAt[key]
	if !ok {
		return false
	}
	if b.now().Sub(opened) >= b.coolDown {
		delete(b.openedAt, key)
		return false
	}
	return true
}
