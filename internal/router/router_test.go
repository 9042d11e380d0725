package router

import (
	"testing"
	"time"

	"github.com/ternarybob/advisor/internal/common"
)

func newTestRouter(deepBudget int) *ModelRouter {
	cfg := common.DefaultConfig()
	return New(cfg.Claude.Tiers, NewBudgetTracker(deepBudget), common.GetLogger())
}

func TestRoute(t *testing.T) {
	r := newTestRouter(25)

	tests := []struct {
		name         string
		content      string
		forceTier    string
		hasPortfolio bool
		want         Tier
	}{
		{"price lookup", "what is the price of AAPL", "", false, TierRoutine},
		{"quote lookup", "quote for MSFT please", "", false, TierRoutine},
		{"watchlist listing", "show my watchlist", "", false, TierRoutine},
		{"sentiment scoring", "classify the sentiment of this headline", "", false, TierRoutine},
		{"portfolio decision with holdings", "should I buy more NVDA", "", true, TierStandard},
		{"buy more with holdings", "time to buy more TSLA?", "", true, TierStandard},
		{"rebalancing with holdings", "help me rebalance my allocation", "", true, TierStandard},
		{"portfolio phrasing without holdings", "should I buy more NVDA", "", false, TierStandard},
		{"deep analysis", "deep analysis of TSLA", "", false, TierDeep},
		{"valuation model", "build a DCF for AMZN", "", false, TierDeep},
		{"comparison", "compare AAPL and MSFT fundamentals", "", false, TierDeep},
		{"thesis", "write an investment thesis for NVDA", "", false, TierDeep},
		{"default", "tell me about semiconductor supply chains", "", false, TierStandard},
		{"forced routine overrides content", "deep analysis of TSLA", "routine", false, TierRoutine},
		{"forced deep overrides content", "what is the price of AAPL", "deep", false, TierDeep},
		{"forced unknown defaults standard", "what is the price of AAPL", "turbo", false, TierStandard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Route(tt.content, tt.forceTier, tt.hasPortfolio)
			if got != tt.want {
				t.Errorf("Route(%q, force=%q, portfolio=%v) = %v, want %v",
					tt.content, tt.forceTier, tt.hasPortfolio, got, tt.want)
			}
		})
	}
}

func TestRouteDeepBudgetExhausted(t *testing.T) {
	r := newTestRouter(1)
	r.Budget().RecordCall()

	if got := r.Route("deep analysis of TSLA", "", false); got != TierStandard {
		t.Errorf("exhausted deep budget should demote to standard, got %v", got)
	}
	// Forced deep still wins; the budget gates inference, not explicit asks.
	if got := r.Route("deep analysis of TSLA", "deep", false); got != TierDeep {
		t.Errorf("forced deep should override budget, got %v", got)
	}
}

func TestRouteDemotionDoesNotConsumeBudget(t *testing.T) {
	r := newTestRouter(1)
	for i := 0; i < 5; i++ {
		r.Route("deep analysis of TSLA", "", false)
	}
	if got := r.Budget().Remaining(); got != 1 {
		t.Errorf("routing alone must not consume budget, remaining = %d, want 1", got)
	}
}

func TestBudgetTrackerDailyReset(t *testing.T) {
	b := NewBudgetTracker(2)
	current := time.Date(2026, 3, 10, 23, 50, 0, 0, time.Local)
	b.now = func() time.Time { return current }

	b.RecordCall()
	b.RecordCall()
	if b.HasCapacity() {
		t.Fatal("budget should be exhausted")
	}

	current = current.Add(20 * time.Minute) // crosses midnight
	if !b.HasCapacity() {
		t.Fatal("budget should reset at date rollover")
	}
	if got := b.Remaining(); got != 2 {
		t.Errorf("Remaining after rollover = %d, want 2", got)
	}
}

func TestEntryMapsTiers(t *testing.T) {
	r := newTestRouter(25)
	if r.Entry(TierRoutine).Model == r.Entry(TierDeep).Model {
		t.Error("routine and deep tiers should bind different models")
	}
	if r.Entry(TierDeep).ThinkingBudget == 0 {
		t.Error("deep tier should carry a thinking budget")
	}
}
