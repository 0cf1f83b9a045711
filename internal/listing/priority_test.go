package listing

import (
	"testing"
	"time"
)

func testListing(shelfHours, riskScore float64, qty int, prepared time.Time) *Listing {
	return &Listing{
		PreparedAt: prepared,
		Quantity:   Quantity{Value: qty, Unit: "servings"},
		AIAssessment: AIAssessment{
			Safe:           true,
			RiskScore:      riskScore,
			ShelfLifeHours: shelfHours,
		},
	}
}

func TestScoreFreshListingIsCritical(t *testing.T) {
	now := time.Now()
	l := testListing(6, 90, 40, now)

	score, band := Score(l, now)
	if score < 80 || score > 100 {
		t.Fatalf("fresh listing score = %.2f, want within [80, 100]", score)
	}
	if band != BandCritical {
		t.Fatalf("fresh listing band = %s, want %s", band, BandCritical)
	}
}

func TestScoreZeroAtShelfLife(t *testing.T) {
	now := time.Now()
	l := testListing(4, 90, 40, now.Add(-4*time.Hour))

	score, band := Score(l, now)
	if score != 0 {
		t.Fatalf("score at shelf-life end = %.2f, want 0", score)
	}
	if band != BandLow {
		t.Fatalf("band at shelf-life end = %s, want %s", band, BandLow)
	}

	// and it stays 0 past the end
	score, _ = Score(l, now.Add(time.Hour))
	if score != 0 {
		t.Fatalf("score past shelf life = %.2f, want 0", score)
	}
}

func TestScoreMonotonicDecay(t *testing.T) {
	prepared := time.Now()
	l := testListing(6, 75, 120, prepared)

	prev := 101.0
	for i := 0; i <= 24; i++ {
		at := prepared.Add(time.Duration(i) * 15 * time.Minute)
		score, _ := Score(l, at)
		if score > prev {
			t.Fatalf("score rose from %.4f to %.4f at t+%dm", prev, score, i*15)
		}
		prev = score
	}
}

func TestScoreHalfwayThroughShelfLife(t *testing.T) {
	// Bakery items three hours into a six-hour window should rank HIGH,
	// not CRITICAL and not yet MEDIUM.
	now := time.Now()
	l := testListing(6, 88, 45, now.Add(-3*time.Hour))

	score, band := Score(l, now)
	if band != BandHigh {
		t.Fatalf("halfway band = %s (score %.2f), want %s", band, score, BandHigh)
	}
}

func TestBandThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  Band
	}{
		{100, BandCritical},
		{80, BandCritical},
		{79.99, BandHigh},
		{60, BandHigh},
		{59.99, BandMedium},
		{40, BandMedium},
		{39.99, BandLow},
		{0, BandLow},
	}
	for _, tc := range cases {
		if got := BandFor(tc.score); got != tc.want {
			t.Errorf("BandFor(%.2f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestScoreClampedToBounds(t *testing.T) {
	now := time.Now()

	// Worst risk, tiny quantity: must not go below 0 even when fresh
	// enough that the base term is small.
	l := testListing(6, 0, 1, now.Add(-5*time.Hour-50*time.Minute))
	if score, _ := Score(l, now); score < 0 {
		t.Fatalf("score = %.2f, want >= 0", score)
	}

	// Best risk, huge quantity: must not exceed 100.
	l = testListing(6, 100, 10000, now)
	if score, _ := Score(l, now); score > 100 {
		t.Fatalf("score = %.2f, want <= 100", score)
	}
}

func TestScoreZeroShelfLife(t *testing.T) {
	now := time.Now()
	l := testListing(0, 90, 40, now)
	if score, _ := Score(l, now); score != 0 {
		t.Fatalf("score with zero shelf life = %.2f, want 0", score)
	}
}
