package models

import "time"

// Quote is the normalized real-time quote shape served by the aggregator,
// independent of which provider answered.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"change_percent"`
	DayHigh       float64   `json:"day_high"`
	DayLow        float64   `json:"day_low"`
	Volume        int64     `json:"volume"`
	PreviousClose float64   `json:"previous_close"`
	Timestamp     time.Time `json:"timestamp"`
}

// CompanyProfile is static descriptive data, cached on a long TTL.
type CompanyProfile struct {
	Symbol      string  `json:"symbol"`
	Name        string  `json:"name"`
	Sector      string  `json:"sector"`
	Industry    string  `json:"industry"`
	MarketCap   float64 `json:"market_cap"`
	Description string  `json:"description"`
	Exchange    string  `json:"exchange"`
	Website     string  `json:"website"`
}

// Fundamentals carries the valuation and quality metrics the grade engine
// compares across a peer cohort. Zero means "not reported" for ratio fields.
type Fundamentals struct {
	Symbol           string  `json:"symbol"`
	PERatio          float64 `json:"pe_ratio"`
	ForwardPE        float64 `json:"forward_pe"`
	PriceToSales     float64 `json:"price_to_sales"`
	PriceToBook      float64 `json:"price_to_book"`
	EVToEBITDA       float64 `json:"ev_to_ebitda"`
	RevenueGrowthYoY float64 `json:"revenue_growth_yoy"`
	EPSGrowthYoY     float64 `json:"eps_growth_yoy"`
	GrossMargin      float64 `json:"gross_margin"`
	OperatingMargin  float64 `json:"operating_margin"`
	NetMargin        float64 `json:"net_margin"`
	ReturnOnEquity   float64 `json:"return_on_equity"`
	ReturnOnAssets   float64 `json:"return_on_assets"`
	DebtToEquity     float64 `json:"debt_to_equity"`
}

// NewsArticle is the normalized article shape merged from the sentiment-rich
// and generic news providers.
type NewsArticle struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	URL          string    `json:"url"`
	Source       string    `json:"source"`
	PublishedAt  time.Time `json:"published_at"`
	Symbols      []string  `json:"symbols,omitempty"`
	Sentiment    float64   `json:"sentiment"` // -1..1, 0 when the provider has none
	HasSentiment bool      `json:"has_sentiment"`
}

// PriceBar is one OHLCV observation.
type PriceBar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// TechnicalIndicators is the record joined from the six-way provider fan-out.
// MACD is derived locally as EMA12 - EMA26, never fetched.
type TechnicalIndicators struct {
	Symbol string  `json:"symbol"`
	SMA20  float64 `json:"sma_20"`
	SMA50  float64 `json:"sma_50"`
	SMA200 float64 `json:"sma_200"`
	RSI14  float64 `json:"rsi_14"`
	EMA12  float64 `json:"ema_12"`
	EMA26  float64 `json:"ema_26"`
	MACD   float64 `json:"macd"`
}

// EarningsEvent is an upcoming or reported earnings date.
type EarningsEvent struct {
	Symbol      string    `json:"symbol"`
	Date        time.Time `json:"date"`
	EPSEstimate float64   `json:"eps_estimate"`
	EPSActual   float64   `json:"eps_actual"`
	Reported    bool      `json:"reported"`
	SurprisePct float64   `json:"surprise_pct"`
}

// AnalystRatings summarizes the current analyst consensus for a symbol.
type AnalystRatings struct {
	Symbol        string    `json:"symbol"`
	StrongBuy     int       `json:"strong_buy"`
	Buy           int       `json:"buy"`
	Hold          int       `json:"hold"`
	Sell          int       `json:"sell"`
	StrongSell    int       `json:"strong_sell"`
	TargetPrice   float64   `json:"target_price"`
	LastUpdated   time.Time `json:"last_updated"`
	RevisionsUp   int       `json:"revisions_up"` // EPS estimate revisions, trailing period
	RevisionsDown int       `json:"revisions_down"`
}

// MacroPoint is one observation of a macro series (rates, CPI, unemployment).
type MacroPoint struct {
	SeriesID string    `json:"series_id"`
	Date     time.Time `json:"date"`
	Value    float64   `json:"value"`
}

// PredictionMarket is a normalized prediction-market snapshot.
type PredictionMarket struct {
	Slug        string   `json:"slug"`
	Question    string   `json:"question"`
	Category    string   `json:"category"`
	Volume      float64  `json:"volume"`
	Probability float64  `json:"probability"` // implied probability of YES, 0..1
	Tags        []string `json:"tags,omitempty"`
}
