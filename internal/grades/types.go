package grades

// FactorGrade is one factor's percentile rank and its letter grade.
type FactorGrade struct {
	Grade      string  `json:"grade"`
	Percentile float64 `json:"percentile"`
	Score      float64 `json:"score"`
}

// FactorGrades is the full relative assessment of one security against its
// peer cohort.
type FactorGrades struct {
	Symbol        string      `json:"symbol"`
	Sector        string      `json:"sector"`
	PeerCount     int         `json:"peer_count"`
	Value         FactorGrade `json:"value"`
	Growth        FactorGrade `json:"growth"`
	Profitability FactorGrade `json:"profitability"`
	Momentum      FactorGrade `json:"momentum"`
	Revisions     FactorGrade `json:"revisions"`
	Composite     float64     `json:"composite"`
	Label         string      `json:"label"`
}

// HoldingAssessment is one portfolio position's contribution to health.
type HoldingAssessment struct {
	Symbol    string  `json:"symbol"`
	Sector    string  `json:"sector"`
	Value     float64 `json:"value"`
	Weight    float64 `json:"weight"`
	Composite float64 `json:"composite"`
}

// PortfolioHealth is the value-weighted roll-up across holdings.
type PortfolioHealth struct {
	TotalValue      float64             `json:"total_value"`
	Composite       float64             `json:"composite"`
	Label           string              `json:"label"`
	Herfindahl      float64             `json:"herfindahl"`
	Diversification string              `json:"diversification"`
	Holdings        []HoldingAssessment `json:"holdings"`
}
