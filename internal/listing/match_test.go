package listing

import (
	"testing"
	"time"
)

func matchDemand(meals int, pref string, urgency int) Demand {
	return Demand{
		MealsRequired:  meals,
		FoodPreference: pref,
		Urgency:        urgency,
		NgoLocation:    Location{Lat: 12.97, Lng: 77.59},
	}
}

func availableListing(id, category string, qty int, prepared time.Time) *Listing {
	l := testListing(6, 85, qty, prepared)
	l.ID = id
	l.Category = category
	l.Status = StatusAvailable
	l.CreatedAt = prepared
	l.Location = Location{Lat: 12.97, Lng: 77.60}
	return l
}

func TestRankFiltersIneligible(t *testing.T) {
	now := time.Now()

	claimed := availableListing("claimed", "Cooked Meals", 30, now)
	claimed.Status = StatusClaimed

	unsafe := availableListing("unsafe", "Cooked Meals", 30, now)
	unsafe.AIAssessment.Safe = false

	empty := availableListing("empty", "Cooked Meals", 0, now)
	good := availableListing("good", "Cooked Meals", 30, now)

	ranked := Rank([]*Listing{claimed, unsafe, empty, good}, matchDemand(20, "Cooked Meals", 5), now)
	if len(ranked) != 1 || ranked[0].ID != "good" {
		t.Fatalf("ranked = %v, want only %q", ids(ranked), "good")
	}
}

func TestRankCategoryPreference(t *testing.T) {
	now := time.Now()
	bakery := availableListing("bakery", "Bakery", 30, now)
	cooked := availableListing("cooked", "Cooked Meals", 30, now)

	ranked := Rank([]*Listing{bakery, cooked}, matchDemand(20, "Bakery", 5), now)
	if len(ranked) != 1 || ranked[0].ID != "bakery" {
		t.Fatalf("preference Bakery ranked %v, want only bakery", ids(ranked))
	}

	// "Any" (and empty) match every category, case-insensitively.
	for _, pref := range []string{"Any", "any", ""} {
		ranked = Rank([]*Listing{bakery, cooked}, matchDemand(20, pref, 5), now)
		if len(ranked) != 2 {
			t.Fatalf("preference %q ranked %v, want both", pref, ids(ranked))
		}
	}
}

func TestRankPartialFillStillRanks(t *testing.T) {
	now := time.Now()
	small := availableListing("small", "Cooked Meals", 10, now)

	ranked := Rank([]*Listing{small}, matchDemand(100, "Any", 5), now)
	if len(ranked) != 1 {
		t.Fatalf("partial-fill listing excluded, want it ranked")
	}
}

func TestRankHigherBandWins(t *testing.T) {
	now := time.Now()

	fresh := availableListing("fresh", "Cooked Meals", 30, now)
	// Old enough to sit in a lower band but with perfect proximity and
	// sufficiency: the band must still dominate.
	fading := availableListing("fading", "Cooked Meals", 200, now.Add(-4*time.Hour))
	fading.Location = Location{Lat: 12.97, Lng: 77.59}

	ranked := Rank([]*Listing{fading, fresh}, matchDemand(30, "Any", 1), now)
	if len(ranked) != 2 || ranked[0].ID != "fresh" {
		t.Fatalf("ranked = %v, want fresh first", ids(ranked))
	}
}

func TestRankTieBreaksOnCreatedAt(t *testing.T) {
	now := time.Now()

	older := availableListing("older", "Cooked Meals", 30, now)
	older.CreatedAt = now.Add(-30 * time.Minute)
	newer := availableListing("newer", "Cooked Meals", 30, now)
	newer.CreatedAt = now

	ranked := Rank([]*Listing{newer, older}, matchDemand(30, "Any", 5), now)
	if len(ranked) != 2 || ranked[0].ID != "older" {
		t.Fatalf("ranked = %v, want older donor first on tie", ids(ranked))
	}
}

func TestRankAnnotatesPriority(t *testing.T) {
	now := time.Now()
	l := availableListing("l1", "Cooked Meals", 30, now)

	ranked := Rank([]*Listing{l}, matchDemand(30, "Any", 5), now)
	if len(ranked) != 1 {
		t.Fatal("expected one ranked listing")
	}
	if ranked[0].PriorityScore <= 0 || ranked[0].PriorityBand == "" {
		t.Fatalf("ranking did not annotate priority: score=%.2f band=%q",
			ranked[0].PriorityScore, ranked[0].PriorityBand)
	}
}

func ids(ls []*Listing) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID
	}
	return out
}
