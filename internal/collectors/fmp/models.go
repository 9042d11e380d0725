package fmp

type quoteResponse struct {
	Symbol            string  `json:"symbol"`
	Price             float64 `json:"price"`
	Change            float64 `json:"change"`
	ChangesPercentage float64 `json:"changesPercentage"`
	DayHigh           float64 `json:"dayHigh"`
	DayLow            float64 `json:"dayLow"`
	Volume            int64   `json:"volume"`
	PreviousClose     float64 `json:"previousClose"`
	Timestamp         int64   `json:"timestamp"`
}

type profileResponse struct {
	Symbol            string  `json:"symbol"`
	CompanyName       string  `json:"companyName"`
	Sector            string  `json:"sector"`
	Industry          string  `json:"industry"`
	MktCap            float64 `json:"mktCap"`
	Description       string  `json:"description"`
	ExchangeShortName string  `json:"exchangeShortName"`
	Website           string  `json:"website"`
}

type ratiosTTMResponse struct {
	PERatioTTM                 float64 `json:"peRatioTTM"`
	PriceToSalesRatioTTM       float64 `json:"priceToSalesRatioTTM"`
	PriceToBookRatioTTM        float64 `json:"priceToBookRatioTTM"`
	EnterpriseValueMultipleTTM float64 `json:"enterpriseValueMultipleTTM"`
	GrossProfitMarginTTM       float64 `json:"grossProfitMarginTTM"`
	OperatingProfitMarginTTM   float64 `json:"operatingProfitMarginTTM"`
	NetProfitMarginTTM         float64 `json:"netProfitMarginTTM"`
	ReturnOnEquityTTM          float64 `json:"returnOnEquityTTM"`
	ReturnOnAssetsTTM          float64 `json:"returnOnAssetsTTM"`
	DebtEquityRatioTTM         float64 `json:"debtEquityRatioTTM"`
}

type growthResponse struct {
	RevenueGrowth float64 `json:"revenueGrowth"`
	EPSGrowth     float64 `json:"epsgrowth"`
}

type peersResponse struct {
	Symbol    string   `json:"symbol"`
	PeersList []string `json:"peersList"`
}

type analystResponse struct {
	Date                     string `json:"date"`
	AnalystRatingsStrongBuy  int    `json:"analystRatingsStrongBuy"`
	AnalystRatingsBuy        int    `json:"analystRatingsbuy"`
	AnalystRatingsHold       int    `json:"analystRatingsHold"`
	AnalystRatingsSell       int    `json:"analystRatingsSell"`
	AnalystRatingsStrongSell int    `json:"analystRatingsStrongSell"`
}

type earningsResponse struct {
	Date         string   `json:"date"`
	EPS          *float64 `json:"eps"`
	EPSEstimated float64  `json:"epsEstimated"`
}

type historyResponse struct {
	Symbol     string `json:"symbol"`
	Historical []struct {
		Date   string  `json:"date"`
		Open   float64 `json:"open"`
		High   float64 `json:"high"`
		Low    float64 `json:"low"`
		Close  float64 `json:"close"`
		Volume int64   `json:"volume"`
	} `json:"historical"`
}
