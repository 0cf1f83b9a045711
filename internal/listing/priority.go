package listing

import (
	"math"
	"time"
)

// Band classifies a priority score for the dashboards.
type Band string

const (
	BandCritical Band = "CRITICAL"
	BandHigh     Band = "HIGH"
	BandMedium   Band = "MEDIUM"
	BandLow      Band = "LOW"
)

// Band thresholds as shown on the priority dashboards.
const (
	criticalFloor = 80
	highFloor     = 60
	mediumFloor   = 40
)

// Score computes the time-decaying priority of a listing at the given
// instant. It is pure and side-effect free; callers recompute it on every
// read, the cached columns are never authoritative.
//
// The decay is a quadratic ease-out over the consumed fraction of the
// assessed shelf life: the score stays high while the food is fresh and
// falls away sharply as the window closes, reaching exactly 0 once the
// shelf life has fully elapsed. For a fixed assessment the score is
// non-increasing as time passes. The vision risk score (higher = safer)
// and donation size adjust the curve by a constant, so monotonicity and
// the 0..100 bounds hold regardless of assessment values.
func Score(l *Listing, now time.Time) (float64, Band) {
	shelf := l.ShelfLife()
	if shelf <= 0 {
		return 0, BandLow
	}

	elapsed := now.Sub(l.PreparedAt)
	r := float64(elapsed) / float64(shelf)
	if r >= 1 {
		return 0, BandLow
	}
	if r < 0 {
		r = 0
	}

	base := 100 * (1 - r*r)
	risk := (100 - l.AIAssessment.RiskScore) * 0.1
	size := math.Min(float64(l.Quantity.Value)/100, 1) * 5

	score := base - risk + size
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, BandFor(score)
}

// BandFor maps a score onto its dashboard band.
func BandFor(score float64) Band {
	switch {
	case score >= criticalFloor:
		return BandCritical
	case score >= highFloor:
		return BandHigh
	case score >= mediumFloor:
		return BandMedium
	default:
		return BandLow
	}
}

// bandWeight orders bands for ranking, highest first.
func bandWeight(b Band) int {
	switch b {
	case BandCritical:
		return 4
	case BandHigh:
		return 3
	case BandMedium:
		return 2
	default:
		return 1
	}
}
