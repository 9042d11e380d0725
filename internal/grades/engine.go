// Package grades derives peer-relative factor letter grades and a composite
// rating for a security, plus portfolio-level health roll-ups.
package grades

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/advisor/internal/models"
)

const maxPeers = 12

// historyDays covers roughly twelve months of trading days with headroom
// for holidays.
const historyDays = 270

// MarketData is the slice of the aggregator surface the engine consumes.
type MarketData interface {
	GetQuote(ctx context.Context, symbol string) (*models.Quote, error)
	GetProfile(ctx context.Context, symbol string) (*models.CompanyProfile, error)
	GetFundamentals(ctx context.Context, symbol string) (*models.Fundamentals, error)
	GetPeers(ctx context.Context, symbol string) []string
	GetAnalystRatings(ctx context.Context, symbol string) *models.AnalystRatings
	GetEarnings(ctx context.Context, symbol string) []models.EarningsEvent
	GetPriceHistory(ctx context.Context, symbol string, days int) []models.PriceBar
}

// Engine computes factor grades over aggregator data.
type Engine struct {
	data   MarketData
	logger arbor.ILogger
}

func NewEngine(data MarketData, logger arbor.ILogger) *Engine {
	return &Engine{data: data, logger: logger}
}

// peerData is the per-peer snapshot the factor ranks run against. Peers
// whose fundamentals fetch failed are dropped before ranking.
type peerData struct {
	symbol       string
	fundamentals *models.Fundamentals
	ratings      *models.AnalystRatings
	earnings     []models.EarningsEvent
}

// ComputeGrades assesses a symbol against its sector peer cohort.
func (e *Engine) ComputeGrades(ctx context.Context, symbol string) (*FactorGrades, error) {
	symbol = strings.ToUpper(symbol)

	profile, err := e.data.GetProfile(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("cannot grade %s without a sector: %w", symbol, err)
	}

	subjectFund, err := e.data.GetFundamentals(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("cannot grade %s without fundamentals: %w", symbol, err)
	}

	peerSymbols := e.resolvePeers(ctx, symbol, profile.Sector)
	peers := e.fetchPeers(ctx, peerSymbols)

	subject := peerData{
		symbol:       symbol,
		fundamentals: subjectFund,
		ratings:      e.data.GetAnalystRatings(ctx, symbol),
		earnings:     e.data.GetEarnings(ctx, symbol),
	}

	result := &FactorGrades{
		Symbol:        symbol,
		Sector:        profile.Sector,
		PeerCount:     len(peers),
		Value:         e.valueFactor(subject, peers),
		Growth:        e.growthFactor(subject, peers),
		Profitability: e.profitabilityFactor(subject, peers),
		Momentum:      e.momentumFactor(ctx, symbol),
		Revisions:     e.revisionsFactor(subject, peers),
	}

	result.Composite = (result.Value.Score + result.Growth.Score +
		result.Profitability.Score + result.Momentum.Score +
		result.Revisions.Score) / 5
	result.Label = LabelForComposite(result.Composite)

	e.logger.Debug().
		Str("symbol", symbol).
		Str("sector", profile.Sector).
		Int("peers", len(peers)).
		Str("label", result.Label).
		Msg("Computed factor grades")

	return result, nil
}

// resolvePeers prefers the live peer list and falls back to the curated
// per-sector list, always excluding the subject and capping the cohort.
func (e *Engine) resolvePeers(ctx context.Context, symbol, sector string) []string {
	peers := e.data.GetPeers(ctx, symbol)
	if len(peers) == 0 {
		peers = CuratedPeers(sector, symbol)
		e.logger.Debug().Str("symbol", symbol).Str("sector", sector).
			Int("count", len(peers)).Msg("Using curated peer list")
	}

	filtered := make([]string, 0, len(peers))
	for _, p := range peers {
		p = strings.ToUpper(p)
		if p == symbol || p == "" {
			continue
		}
		filtered = append(filtered, p)
		if len(filtered) == maxPeers {
			break
		}
	}
	return filtered
}

// fetchPeers pulls each peer's data in parallel. A peer that fails its
// fundamentals fetch is dropped from the cohort rather than failing the
// whole computation.
func (e *Engine) fetchPeers(ctx context.Context, symbols []string) []peerData {
	results := make([]*peerData, len(symbols))
	var wg sync.WaitGroup
	for i, sym := range symbols {
		wg.Add(1)
		go func(i int, sym string) {
			defer wg.Done()
			fund, err := e.data.GetFundamentals(ctx, sym)
			if err != nil {
				e.logger.Debug().Str("peer", sym).Err(err).Msg("Dropping peer from cohort")
				return
			}
			results[i] = &peerData{
				symbol:       sym,
				fundamentals: fund,
				ratings:      e.data.GetAnalystRatings(ctx, sym),
				earnings:     e.data.GetEarnings(ctx, sym),
			}
		}(i, sym)
	}
	wg.Wait()

	peers := make([]peerData, 0, len(symbols))
	for _, r := range results {
		if r != nil {
			peers = append(peers, *r)
		}
	}
	return peers
}

// metricRank ranks one subject metric against the peers' values of the same
// metric. Zero values mean "not reported" and are excluded on both sides.
func metricRank(subject float64, peers []peerData, pick func(*models.Fundamentals) float64, higherIsBetter bool) (float64, bool) {
	if subject == 0 {
		return 0, false
	}
	var values []float64
	for _, p := range peers {
		if v := pick(p.fundamentals); v != 0 {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0, false
	}
	return Percentile(subject, values, higherIsBetter), true
}

// factorFrom averages the available sub-metric percentiles, defaulting to
// the neutral 50th when no sub-metric could be ranked.
func factorFrom(percentiles []float64) FactorGrade {
	if len(percentiles) == 0 {
		return factorGrade(50)
	}
	return factorGrade(mean(percentiles))
}

func (e *Engine) valueFactor(subject peerData, peers []peerData) FactorGrade {
	f := subject.fundamentals
	var pcts []float64
	submetrics := []struct {
		value float64
		pick  func(*models.Fundamentals) float64
	}{
		{f.PERatio, func(x *models.Fundamentals) float64 { return x.PERatio }},
		{f.ForwardPE, func(x *models.Fundamentals) float64 { return x.ForwardPE }},
		{f.PriceToSales, func(x *models.Fundamentals) float64 { return x.PriceToSales }},
		{f.PriceToBook, func(x *models.Fundamentals) float64 { return x.PriceToBook }},
		{f.EVToEBITDA, func(x *models.Fundamentals) float64 { return x.EVToEBITDA }},
	}
	for _, m := range submetrics {
		// Valuation multiples rank inverted, lower is better.
		if pct, ok := metricRank(m.value, peers, m.pick, false); ok {
			pcts = append(pcts, pct)
		}
	}
	return factorFrom(pcts)
}

func (e *Engine) growthFactor(subject peerData, peers []peerData) FactorGrade {
	f := subject.fundamentals
	var pcts []float64
	if pct, ok := metricRank(f.RevenueGrowthYoY, peers, func(x *models.Fundamentals) float64 { return x.RevenueGrowthYoY }, true); ok {
		pcts = append(pcts, pct)
	}
	if pct, ok := metricRank(f.EPSGrowthYoY, peers, func(x *models.Fundamentals) float64 { return x.EPSGrowthYoY }, true); ok {
		pcts = append(pcts, pct)
	}
	return factorFrom(pcts)
}

func (e *Engine) profitabilityFactor(subject peerData, peers []peerData) FactorGrade {
	f := subject.fundamentals
	var pcts []float64
	submetrics := []struct {
		value float64
		pick  func(*models.Fundamentals) float64
	}{
		{f.GrossMargin, func(x *models.Fundamentals) float64 { return x.GrossMargin }},
		{f.OperatingMargin, func(x *models.Fundamentals) float64 { return x.OperatingMargin }},
		{f.NetMargin, func(x *models.Fundamentals) float64 { return x.NetMargin }},
		{f.ReturnOnEquity, func(x *models.Fundamentals) float64 { return x.ReturnOnEquity }},
		{f.ReturnOnAssets, func(x *models.Fundamentals) float64 { return x.ReturnOnAssets }},
	}
	for _, m := range submetrics {
		if pct, ok := metricRank(m.value, peers, m.pick, true); ok {
			pcts = append(pcts, pct)
		}
	}
	return factorFrom(pcts)
}

// momentumFactor scales the trailing 3 and 6 month returns into
// pseudo-percentiles with fixed linear multipliers rather than ranking them
// against peer returns, which are never fetched. Fewer than 21 bars of
// history yields the neutral 50th.
func (e *Engine) momentumFactor(ctx context.Context, symbol string) FactorGrade {
	bars := e.data.GetPriceHistory(ctx, symbol, historyDays)
	if len(bars) < 21 {
		return factorGrade(50)
	}

	last := bars[len(bars)-1].Close
	ret := func(tradingDays int) (float64, bool) {
		idx := len(bars) - 1 - tradingDays
		if idx < 0 {
			return 0, false
		}
		base := bars[idx].Close
		if base == 0 {
			return 0, false
		}
		return (last - base) / base, true
	}

	// Return windows in trading days: 3m=63, 6m=126.
	var pcts []float64
	if r3, ok := ret(63); ok {
		pcts = append(pcts, clampPercentile(50+r3*250))
	}
	if r6, ok := ret(126); ok {
		pcts = append(pcts, clampPercentile(50+r6*150))
	}
	return factorFrom(pcts)
}

// revisionsFactor ranks the subject's net analyst revision balance and its
// latest reported earnings surprise against the cohort.
func (e *Engine) revisionsFactor(subject peerData, peers []peerData) FactorGrade {
	var pcts []float64

	if ratio, ok := revisionRatio(subject.ratings); ok {
		var values []float64
		for _, p := range peers {
			if r, ok := revisionRatio(p.ratings); ok {
				values = append(values, r)
			}
		}
		if len(values) > 0 {
			pcts = append(pcts, Percentile(ratio, values, true))
		}
	}

	if surprise, ok := latestSurprise(subject.earnings); ok {
		var values []float64
		for _, p := range peers {
			if s, ok := latestSurprise(p.earnings); ok {
				values = append(values, s)
			}
		}
		if len(values) > 0 {
			pcts = append(pcts, Percentile(surprise, values, true))
		}
	}

	return factorFrom(pcts)
}

func revisionRatio(r *models.AnalystRatings) (float64, bool) {
	if r == nil {
		return 0, false
	}
	total := r.RevisionsUp + r.RevisionsDown
	if total == 0 {
		return 0, false
	}
	return float64(r.RevisionsUp-r.RevisionsDown) / float64(total), true
}

// latestSurprise picks the most recently reported surprise. Events arrive
// most recent first, with upcoming unreported quarters ahead of reported ones.
func latestSurprise(events []models.EarningsEvent) (float64, bool) {
	for _, ev := range events {
		if ev.Reported {
			return ev.SurprisePct, true
		}
	}
	return 0, false
}

// PortfolioHealth rolls per-holding composites into a value-weighted score
// with a sector-concentration Herfindahl index. Holdings whose quote fails
// are valued at cost basis so the weights still sum sensibly.
func (e *Engine) PortfolioHealth(ctx context.Context, holdings []models.Holding) (*PortfolioHealth, error) {
	if len(holdings) == 0 {
		return nil, fmt.Errorf("portfolio is empty")
	}

	health := &PortfolioHealth{Holdings: make([]HoldingAssessment, 0, len(holdings))}
	sectorValue := make(map[string]float64)

	for _, h := range holdings {
		symbol := strings.ToUpper(h.Symbol)

		price := h.CostBasis
		if quote, err := e.data.GetQuote(ctx, symbol); err == nil {
			price = quote.Price
		}
		value := price * h.Quantity

		sector := "Unknown"
		if profile, err := e.data.GetProfile(ctx, symbol); err == nil && profile.Sector != "" {
			sector = profile.Sector
		}

		composite := 3.0
		if fg, err := e.ComputeGrades(ctx, symbol); err == nil {
			composite = fg.Composite
		} else {
			e.logger.Debug().Str("symbol", symbol).Err(err).Msg("Holding graded neutrally")
		}

		health.TotalValue += value
		sectorValue[sector] += value
		health.Holdings = append(health.Holdings, HoldingAssessment{
			Symbol:    symbol,
			Sector:    sector,
			Value:     value,
			Composite: composite,
		})
	}

	if health.TotalValue == 0 {
		return nil, fmt.Errorf("portfolio has no valued holdings")
	}

	for i := range health.Holdings {
		h := &health.Holdings[i]
		h.Weight = h.Value / health.TotalValue
		health.Composite += h.Composite * h.Weight
	}

	for _, v := range sectorValue {
		w := v / health.TotalValue
		health.Herfindahl += w * w
	}

	health.Label = LabelForComposite(health.Composite)
	health.Diversification = DiversificationForHerfindahl(health.Herfindahl)
	return health, nil
}
