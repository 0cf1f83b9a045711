package listing

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Demand is an NGO's live request for meals.
type Demand struct {
	MealsRequired  int      `json:"meals_required"`
	FoodPreference string   `json:"food_preference"`
	Urgency        int      `json:"urgency"` // 1..10, higher = sooner
	NgoLocation    Location `json:"ngo_location"`
}

// matchEligible filters out anything an NGO may not claim.
func matchEligible(l *Listing, d Demand) bool {
	if l.Status != StatusAvailable || !l.AIAssessment.Safe {
		return false
	}
	if l.Quantity.Value <= 0 {
		return false
	}
	pref := strings.TrimSpace(d.FoodPreference)
	if pref == "" || strings.EqualFold(pref, "Any") {
		return true
	}
	return strings.EqualFold(l.Category, pref)
}

// Rank orders eligible listings for a demand, best match first. Partial
// fills are allowed: a listing smaller than MealsRequired still ranks,
// the NGO may claim several. Ties fall back to created_at ascending so
// early donors are not starved.
func Rank(listings []*Listing, d Demand, now time.Time) []*Listing {
	type scored struct {
		l   *Listing
		key float64
	}

	var out []scored
	for _, l := range listings {
		if !matchEligible(l, d) {
			continue
		}
		score, band := Score(l, now)
		l.PriorityScore = score
		l.PriorityBand = band

		// Composite: band dominates, then urgency alignment, then
		// proximity, then how much of the demand the listing covers.
		key := float64(bandWeight(band)) * 1000
		key += urgencyAlignment(l, d, now) * 100
		key += proximity(l.Location, d.NgoLocation) * 10
		key += sufficiency(l.Quantity.Value, d.MealsRequired)
		out = append(out, scored{l: l, key: key})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].key != out[j].key {
			return out[i].key > out[j].key
		}
		return out[i].l.CreatedAt.Before(out[j].l.CreatedAt)
	})

	ranked := make([]*Listing, len(out))
	for i, s := range out {
		ranked[i] = s.l
	}
	return ranked
}

// urgencyAlignment rewards listings whose remaining window matches how
// soon the NGO needs food: urgent demand pairs with nearly-spent shelf
// lives, relaxed demand with fresh ones. Returns 0..1.
func urgencyAlignment(l *Listing, d Demand, now time.Time) float64 {
	shelf := l.ShelfLife()
	if shelf <= 0 {
		return 0
	}
	r := float64(now.Sub(l.PreparedAt)) / float64(shelf)
	r = math.Max(0, math.Min(1, r))

	want := float64(d.Urgency) / 10
	if want < 0 {
		want = 0
	}
	if want > 1 {
		want = 1
	}
	return 1 - math.Abs(want-r)
}

// proximity maps haversine distance to 0..1, 1 at the NGO's door and
// ~0 beyond 50km.
func proximity(a, b Location) float64 {
	km := haversineKm(a.Lat, a.Lng, b.Lat, b.Lng)
	if km >= 50 {
		return 0
	}
	return 1 - km/50
}

// sufficiency is the fraction of the demand this listing covers, capped
// at 1.
func sufficiency(qty, required int) float64 {
	if required <= 0 {
		return 1
	}
	f := float64(qty) / float64(required)
	if f > 1 {
		f = 1
	}
	return f
}

const earthRadiusKm = 6371

func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	rad := math.Pi / 180
	dLat := (lat2 - lat1) * rad
	dLng := (lng2 - lng1) * rad
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*rad)*math.Cos(lat2*rad)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}
