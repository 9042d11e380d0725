package router

import (
	"sync"
	"time"
)

// BudgetTracker counts deep-tier dispatches against a daily cap. The count
// resets at local-date rollover, checked lazily on read. Constructed once at
// startup and shared by the router and the orchestration loop; RecordCall is
// invoked only after a deep-tier call is actually dispatched, so a demoted
// request never consumes budget.
type BudgetTracker struct {
	mu        sync.Mutex
	limit     int
	count     int
	resetDate string

	now func() time.Time
}

func NewBudgetTracker(dailyLimit int) *BudgetTracker {
	return &BudgetTracker{limit: dailyLimit, now: time.Now}
}

func (b *BudgetTracker) checkAndMaybeReset() {
	today := b.now().Format("2006-01-02")
	if b.resetDate != today {
		b.resetDate = today
		b.count = 0
	}
}

// HasCapacity reports whether another deep-tier call fits today's budget.
func (b *BudgetTracker) HasCapacity() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkAndMaybeReset()
	return b.count < b.limit
}

// RecordCall consumes one unit of today's budget.
func (b *BudgetTracker) RecordCall() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkAndMaybeReset()
	b.count++
}

// Remaining returns today's unused budget.
func (b *BudgetTracker) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.checkAndMaybeReset()
	if r := b.limit - b.count; r > 0 {
		return r
	}
	return 0
}
