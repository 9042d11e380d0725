package grades

import (
	"math"
	"testing"
)

func TestPercentile(t *testing.T) {
	peers := []float64{10, 20, 30, 40, 50}

	tests := []struct {
		name           string
		value          float64
		higherIsBetter bool
		want           float64
	}{
		{"below all", 5, true, 0},
		{"above all", 60, true, 100},
		{"middle", 35, true, 60},
		{"tie splits evenly", 30, true, 50},
		{"inverted below all", 5, false, 100},
		{"inverted tie", 30, false, 50},
		{"inverted middle", 35, false, 40},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentile(tt.value, peers, tt.higherIsBetter)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Percentile(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestPercentileEmptyCohortIsNeutral(t *testing.T) {
	if got := Percentile(42, nil, true); got != 50 {
		t.Errorf("Percentile with no peers = %v, want 50", got)
	}
}

func TestPercentileInversionIdentity(t *testing.T) {
	peers := []float64{12, 18, 25, 31, 47, 52, 68}
	for _, v := range []float64{5, 18, 30, 47, 90} {
		up := Percentile(v, peers, true)
		down := Percentile(v, peers, false)
		if math.Abs(up+down-100) > 1e-9 {
			t.Errorf("Percentile(%v): %v + %v != 100", v, up, down)
		}
	}
}

func TestPercentileMonotonic(t *testing.T) {
	peers := []float64{10, 20, 20, 30, 40}
	prev := -1.0
	for v := 0.0; v <= 50; v += 0.5 {
		got := Percentile(v, peers, true)
		if got < prev {
			t.Fatalf("Percentile not monotonic at %v: %v < %v", v, got, prev)
		}
		prev = got
	}
}

func TestGradeForPercentileTableIsTotal(t *testing.T) {
	tests := []struct {
		pct  float64
		want string
	}{
		{100, "A+"}, {95, "A+"}, {94.9, "A"}, {85, "A"}, {75, "A-"},
		{65, "B+"}, {55, "B"}, {50, "B-"}, {45, "B-"}, {35, "C+"},
		{25, "C"}, {15, "C-"}, {8, "D+"}, {3, "D"}, {2.9, "F"}, {0, "F"},
	}
	for _, tt := range tests {
		if got := GradeForPercentile(tt.pct); got != tt.want {
			t.Errorf("GradeForPercentile(%v) = %q, want %q", tt.pct, got, tt.want)
		}
	}
	// Every percentile maps to some grade with a defined score.
	for pct := 0.0; pct <= 100; pct += 0.1 {
		grade := GradeForPercentile(pct)
		if ScoreForGrade(grade) < 1.0 || ScoreForGrade(grade) > 5.0 {
			t.Fatalf("grade %q at pct %v has score outside 1.0-5.0", grade, pct)
		}
	}
}

func TestScoreForGradeBounds(t *testing.T) {
	if got := ScoreForGrade("A+"); got != 5.0 {
		t.Errorf("ScoreForGrade(A+) = %v, want 5.0", got)
	}
	if got := ScoreForGrade("F"); got != 1.0 {
		t.Errorf("ScoreForGrade(F) = %v, want 1.0", got)
	}
	if got := ScoreForGrade("unknown"); got != 1.0 {
		t.Errorf("ScoreForGrade(unknown) = %v, want 1.0", got)
	}
}

func TestLabelForComposite(t *testing.T) {
	tests := []struct {
		composite float64
		want      string
	}{
		{5.0, "Strong Buy"}, {4.5, "Strong Buy"}, {4.49, "Buy"},
		{3.5, "Buy"}, {3.0, "Hold"}, {2.5, "Hold"},
		{2.0, "Sell"}, {1.5, "Sell"}, {1.2, "Strong Sell"},
	}
	for _, tt := range tests {
		if got := LabelForComposite(tt.composite); got != tt.want {
			t.Errorf("LabelForComposite(%v) = %q, want %q", tt.composite, got, tt.want)
		}
	}
}

func TestDiversificationForHerfindahl(t *testing.T) {
	tests := []struct {
		h    float64
		want string
	}{
		{0.9, "Poor"}, {0.41, "Poor"}, {0.4, "Fair"}, {0.26, "Fair"},
		{0.25, "Good"}, {0.16, "Good"}, {0.15, "Excellent"}, {0.09, "Excellent"},
	}
	for _, tt := range tests {
		if got := DiversificationForHerfindahl(tt.h); got != tt.want {
			t.Errorf("DiversificationForHerfindahl(%v) = %q, want %q", tt.h, got, tt.want)
		}
	}
}

func TestCuratedPeersExcludesSubject(t *testing.T) {
	peers := CuratedPeers("Technology", "AAPL")
	if len(peers) == 0 {
		t.Fatal("expected curated Technology peers")
	}
	for _, p := range peers {
		if p == "AAPL" {
			t.Fatal("subject must be excluded from its own peer list")
		}
	}
}

func TestCuratedPeersUnknownSector(t *testing.T) {
	if peers := CuratedPeers("Cryptozoology", "AAPL"); peers != nil {
		t.Errorf("unknown sector should return nil, got %v", peers)
	}
}
