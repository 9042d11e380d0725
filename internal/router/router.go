// Package router classifies free-text requests into a model-capability tier
// and enforces the deep-tier daily budget.
package router

import (
	"regexp"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/advisor/internal/common"
)

// Tier is a named model-capability level.
type Tier string

const (
	TierRoutine  Tier = "routine"
	TierStandard Tier = "standard"
	TierDeep     Tier = "deep"
)

// Rule groups are checked in a fixed order; the first match wins.
var (
	deepPatterns = []*regexp.Regexp{
		regexp.MustCompile(`deep\s+(dive|analysis|research)`),
		regexp.MustCompile(`(dcf|discounted cash flow|valuation model|intrinsic value)`),
		regexp.MustCompile(`compare\s+\S+.*\b(and|vs\.?|versus|against|with)\b`),
		regexp.MustCompile(`(investment thesis|bull case|bear case|risk assessment|synthesi[sz]e)`),
		regexp.MustCompile(`comprehensive\s+(report|review|analysis)`),
	}

	portfolioDecisionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`should i (buy|sell|hold|add|trim|exit)`),
		regexp.MustCompile(`\b(buy|sell) more\b`),
		regexp.MustCompile(`(rebalance|rebalancing|allocation|allocate)`),
		regexp.MustCompile(`(tax.loss|tax harvest)`),
		regexp.MustCompile(`(position siz|how much should i)`),
	}

	routinePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^(what('s| is) the )?(current |latest )?(price|quote)\b`),
		regexp.MustCompile(`\bprice of\b`),
		regexp.MustCompile(`how (is|did) \S+ (doing|do|trading|trade)`),
		regexp.MustCompile(`(show|list|what('s| is on)) my watchlist`),
		regexp.MustCompile(`(classify|sentiment|is this (good|bad) news)`),
	}
)

// ModelRouter picks the tier for a request.
type ModelRouter struct {
	tiers  common.TierConfig
	budget *BudgetTracker
	logger arbor.ILogger
}

func New(tiers common.TierConfig, budget *BudgetTracker, logger arbor.ILogger) *ModelRouter {
	return &ModelRouter{tiers: tiers, budget: budget, logger: logger}
}

// Budget exposes the tracker so the loop can record dispatched deep calls.
func (r *ModelRouter) Budget() *BudgetTracker {
	return r.budget
}

// Route classifies content into a tier. A forced tier maps directly, with
// unknown values defaulting to Standard. Deep triggers are demoted to
// Standard when the daily budget is exhausted. Portfolio-decision phrasing
// from a caller with holdings is floored at Standard because routine-tier
// quality is not good enough for advice that moves real money.
func (r *ModelRouter) Route(content, forceTier string, hasPortfolio bool) Tier {
	if forceTier != "" {
		switch Tier(strings.ToLower(forceTier)) {
		case TierRoutine:
			return TierRoutine
		case TierStandard:
			return TierStandard
		case TierDeep:
			return TierDeep
		default:
			return TierStandard
		}
	}

	lower := strings.ToLower(content)

	if matchAny(deepPatterns, lower) {
		if r.budget.HasCapacity() {
			return TierDeep
		}
		r.logger.Debug().Msg("Deep budget exhausted, demoting to standard")
		return TierStandard
	}

	if hasPortfolio && matchAny(portfolioDecisionPatterns, lower) {
		return TierStandard
	}

	if matchAny(routinePatterns, lower) {
		return TierRoutine
	}

	return TierStandard
}

// Entry returns the model binding for a tier.
func (r *ModelRouter) Entry(tier Tier) common.TierEntry {
	switch tier {
	case TierRoutine:
		return r.tiers.Routine
	case TierDeep:
		return r.tiers.Deep
	default:
		return r.tiers.Standard
	}
}

func matchAny(patterns []*regexp.Regexp, content string) bool {
	for _, p := range patterns {
		if p.MatchString(content) {
			return true
		}
	}
	return false
}
