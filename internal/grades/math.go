package grades

// gradeBand maps a minimum percentile to a letter grade. Bands are checked
// top down, so the table is total over [0,100].
type gradeBand struct {
	min   float64
	grade string
}

var gradeBands = []gradeBand{
	{95, "A+"},
	{85, "A"},
	{75, "A-"},
	{65, "B+"},
	{55, "B"},
	{45, "B-"},
	{35, "C+"},
	{25, "C"},
	{15, "C-"},
	{8, "D+"},
	{3, "D"},
}

var gradeScores = map[string]float64{
	"A+": 5.0,
	"A":  4.7,
	"A-": 4.3,
	"B+": 4.0,
	"B":  3.7,
	"B-": 3.3,
	"C+": 3.0,
	"C":  2.7,
	"C-": 2.3,
	"D+": 2.0,
	"D":  1.5,
	"F":  1.0,
}

// Percentile ranks value within peers, splitting ties evenly:
// (below + 0.5*equal) / n * 100. When higherIsBetter is false the rank is
// inverted, so lower raw values earn higher percentiles. An empty cohort
// returns the neutral 50th.
func Percentile(value float64, peers []float64, higherIsBetter bool) float64 {
	if len(peers) == 0 {
		return 50
	}
	var below, equal int
	for _, p := range peers {
		switch {
		case p < value:
			below++
		case p == value:
			equal++
		}
	}
	pct := (float64(below) + 0.5*float64(equal)) / float64(len(peers)) * 100
	if !higherIsBetter {
		pct = 100 - pct
	}
	return pct
}

// GradeForPercentile maps a percentile onto the fixed letter-grade table.
func GradeForPercentile(pct float64) string {
	for _, band := range gradeBands {
		if pct >= band.min {
			return band.grade
		}
	}
	return "F"
}

// ScoreForGrade converts a letter grade into its numeric score, 5.0 at the
// top and 1.0 at the bottom.
func ScoreForGrade(grade string) float64 {
	if s, ok := gradeScores[grade]; ok {
		return s
	}
	return 1.0
}

// LabelForComposite maps the 1.0-5.0 composite onto a recommendation label.
func LabelForComposite(composite float64) string {
	switch {
	case composite >= 4.5:
		return "Strong Buy"
	case composite >= 3.5:
		return "Buy"
	case composite >= 2.5:
		return "Hold"
	case composite >= 1.5:
		return "Sell"
	default:
		return "Strong Sell"
	}
}

// DiversificationForHerfindahl buckets a sector-concentration Herfindahl
// index. Higher concentration means worse diversification.
func DiversificationForHerfindahl(h float64) string {
	switch {
	case h > 0.4:
		return "Poor"
	case h > 0.25:
		return "Fair"
	case h > 0.15:
		return "Good"
	default:
		return "Excellent"
	}
}

func factorGrade(pct float64) FactorGrade {
	grade := GradeForPercentile(pct)
	return FactorGrade{Grade: grade, Percentile: pct, Score: ScoreForGrade(grade)}
}

func clampPercentile(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
