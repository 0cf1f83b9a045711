package dispatch

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rescuebite/rescuebite/internal/listing"
)

// stubRouter returns a fixed path, or fails when down.
type stubRouter struct {
	down bool
}

func (r *stubRouter) Route(ctx context.Context, from, to listing.Location) ([]listing.Waypoint, error) {
	if r.down {
		return nil, listing.ErrOracleUnavailable
	}
	return []listing.Waypoint{
		{Lat: from.Lat, Lng: from.Lng},
		{Lat: to.Lat, Lng: to.Lng},
	}, nil
}

func testCoordinator(t *testing.T) (*Coordinator, *stubRouter, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	ensureDispatchSchema(t, pool)

	router := &stubRouter{}
	return NewCoordinator(listing.NewStore(pool), router), router, pool
}

func ensureDispatchSchema(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()
	for _, q := range []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			password TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'rider',
			karma BIGINT NOT NULL DEFAULT 0,
			meals_saved BIGINT NOT NULL DEFAULT 0,
			meals_received BIGINT NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS karma_entries (
			id UUID PRIMARY KEY,
			rider_id TEXT NOT NULL,
			listing_id UUID NOT NULL,
			points BIGINT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS listings (
			id UUID PRIMARY KEY,
			donor_id TEXT NOT NULL,
			ngo_id TEXT NOT NULL DEFAULT '',
			rider_id TEXT NOT NULL DEFAULT '',
			category TEXT NOT NULL,
			qty_value INTEGER NOT NULL,
			qty_unit TEXT NOT NULL DEFAULT 'servings',
			prepared_at TIMESTAMPTZ NOT NULL,
			temp_ok TEXT NOT NULL DEFAULT 'unsure',
			smell_ok TEXT NOT NULL DEFAULT 'unsure',
			packing_ok TEXT NOT NULL DEFAULT 'unsure',
			ai_safe BOOLEAN NOT NULL,
			ai_risk_score DOUBLE PRECISION NOT NULL DEFAULT 0,
			ai_shelf_life_hours DOUBLE PRECISION NOT NULL,
			ai_message TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL,
			otp TEXT NOT NULL DEFAULT '',
			lat DOUBLE PRECISION NOT NULL DEFAULT 0,
			lng DOUBLE PRECISION NOT NULL DEFAULT 0,
			address TEXT NOT NULL DEFAULT '',
			drop_lat DOUBLE PRECISION NOT NULL DEFAULT 0,
			drop_lng DOUBLE PRECISION NOT NULL DEFAULT 0,
			drop_address TEXT NOT NULL DEFAULT '',
			route_waypoints JSONB NOT NULL DEFAULT '[]',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			version BIGINT NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS listing_events (
			id UUID PRIMARY KEY,
			listing_id UUID NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
	} {
		if _, err := pool.Exec(ctx, q); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
}

func seedUser(t *testing.T, pool *pgxpool.Pool, role string) string {
	t.Helper()
	id := uuid.New().String()
	_, err := pool.Exec(context.Background(),
		`INSERT INTO users (id, name, email, role) VALUES ($1, $2, $3, $4)`,
		id, role+"-"+id[:8], id[:8]+"@test.local", role)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return id
}

func seedListing(t *testing.T, co *Coordinator, donorID string) *listing.Listing {
	t.Helper()
	l, err := co.Store.Create(context.Background(), listing.CreateInput{
		DonorID:    donorID,
		Category:   "Cooked Meals",
		Quantity:   listing.Quantity{Value: 40, Unit: "servings"},
		PreparedAt: time.Now().Add(-30 * time.Minute),
		Assessment: listing.AIAssessment{Safe: true, RiskScore: 88, ShelfLifeHours: 6},
		Location:   listing.Location{Lat: 12.97, Lng: 77.60, Address: "MG Road"},
	})
	if err != nil {
		t.Fatalf("seed listing: %v", err)
	}
	return l
}

func TestFullRescueLifecycle(t *testing.T) {
	co, _, pool := testCoordinator(t)
	ctx := context.Background()

	donor := seedUser(t, pool, "donor")
	ngo := seedUser(t, pool, "ngo")
	rider := seedUser(t, pool, "rider")
	l := seedListing(t, co, donor)

	drop := listing.Location{Lat: 12.99, Lng: 77.61, Address: "Shelter"}
	claimed, code, err := co.Claim(ctx, l.ID, ngo, l.Version, drop)
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if claimed.Status != listing.StatusClaimed || claimed.NgoID != ngo {
		t.Fatalf("claimed = %s/%s", claimed.Status, claimed.NgoID)
	}
	if len(code) != 6 {
		t.Fatalf("otp %q, want 6 digits", code)
	}

	accepted, err := co.Accept(ctx, l.ID, rider, claimed.Version)
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if accepted.Status != listing.StatusAccepted || accepted.RiderID != rider {
		t.Fatalf("accepted = %s/%s", accepted.Status, accepted.RiderID)
	}
	if len(accepted.RouteWaypoints) == 0 {
		t.Fatal("accept did not attach route waypoints")
	}

	inTransit, _, err := co.VerifyPickup(ctx, l.ID, rider, code)
	if err != nil {
		t.Fatalf("VerifyPickup: %v", err)
	}
	if inTransit.Status != listing.StatusTransit {
		t.Fatalf("after pickup status = %s, want transit", inTransit.Status)
	}
	if inTransit.OTP != "" {
		t.Fatal("pickup code survived verification, want it burned")
	}

	// the burned code cannot be replayed
	if _, _, err := co.VerifyPickup(ctx, l.ID, rider, code); !errors.Is(err, listing.ErrInvalidState) {
		t.Fatalf("otp replay = %v, want ErrInvalidState", err)
	}

	done, err := co.ConfirmDelivery(ctx, l.ID, rider)
	if err != nil {
		t.Fatalf("ConfirmDelivery: %v", err)
	}
	if done.Status != listing.StatusCompleted {
		t.Fatalf("final status = %s, want completed", done.Status)
	}

	// karma credit landed with the same commit
	var riderKarma int64
	if err := pool.QueryRow(ctx, `SELECT karma FROM users WHERE id = $1`, rider).Scan(&riderKarma); err != nil {
		t.Fatalf("karma query: %v", err)
	}
	if riderKarma != 50 {
		t.Fatalf("rider karma = %d, want 50", riderKarma)
	}
	var mealsSaved int64
	if err := pool.QueryRow(ctx, `SELECT meals_saved FROM users WHERE id = $1`, donor).Scan(&mealsSaved); err != nil {
		t.Fatalf("impact query: %v", err)
	}
	if mealsSaved != 40 {
		t.Fatalf("donor meals_saved = %d, want 40", mealsSaved)
	}
}

func TestClaimConflictLoserGetsConflict(t *testing.T) {
	co, _, pool := testCoordinator(t)
	ctx := context.Background()

	donor := seedUser(t, pool, "donor")
	ngoA := seedUser(t, pool, "ngo")
	ngoB := seedUser(t, pool, "ngo")
	l := seedListing(t, co, donor)

	drop := listing.Location{Lat: 12.99, Lng: 77.61}
	if _, _, err := co.Claim(ctx, l.ID, ngoA, l.Version, drop); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	// The loser carried the same pre-claim version, so this is a lost
	// race and must read as retryable conflict, not a state error.
	_, _, err := co.Claim(ctx, l.ID, ngoB, l.Version, drop)
	if !errors.Is(err, listing.ErrConflict) {
		t.Fatalf("second claim on same version = %v, want ErrConflict", err)
	}

	// Claiming on a fresh read of the now-claimed listing is the other
	// shape: the version is current but the status is wrong.
	_, _, err = co.Claim(ctx, l.ID, ngoB, 0, drop)
	if !errors.Is(err, listing.ErrInvalidState) {
		t.Fatalf("claim on fresh read of claimed listing = %v, want ErrInvalidState", err)
	}

	got, err := co.Store.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.NgoID != ngoA {
		t.Fatalf("winner = %q, want first claimant %q", got.NgoID, ngoA)
	}
}

func TestAcceptLeavesListingUntouchedWhenRouterDown(t *testing.T) {
	co, router, pool := testCoordinator(t)
	ctx := context.Background()

	donor := seedUser(t, pool, "donor")
	ngo := seedUser(t, pool, "ngo")
	rider := seedUser(t, pool, "rider")
	l := seedListing(t, co, donor)

	claimed, _, err := co.Claim(ctx, l.ID, ngo, l.Version, listing.Location{Lat: 12.99, Lng: 77.61})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	router.down = true
	if _, err := co.Accept(ctx, l.ID, rider, claimed.Version); !errors.Is(err, listing.ErrOracleUnavailable) {
		t.Fatalf("accept with router down = %v, want ErrOracleUnavailable", err)
	}

	got, err := co.Store.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != listing.StatusClaimed || got.RiderID != "" || got.Version != claimed.Version {
		t.Fatalf("listing changed under failed accept: %s/%q v%d", got.Status, got.RiderID, got.Version)
	}

	// retry succeeds once the oracle is back
	router.down = false
	if _, err := co.Accept(ctx, l.ID, rider, claimed.Version); err != nil {
		t.Fatalf("accept retry: %v", err)
	}
}

func TestVerifyPickupWrongCode(t *testing.T) {
	co, _, pool := testCoordinator(t)
	ctx := context.Background()

	donor := seedUser(t, pool, "donor")
	ngo := seedUser(t, pool, "ngo")
	rider := seedUser(t, pool, "rider")
	l := seedListing(t, co, donor)

	claimed, code, err := co.Claim(ctx, l.ID, ngo, l.Version, listing.Location{Lat: 12.99, Lng: 77.61})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := co.Accept(ctx, l.ID, rider, claimed.Version); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	_, remaining, err := co.VerifyPickup(ctx, l.ID, rider, wrong)
	if !errors.Is(err, listing.ErrOtpMismatch) {
		t.Fatalf("wrong code = %v, want ErrOtpMismatch", err)
	}
	if remaining != maxOtpAttempts-1 {
		t.Fatalf("remaining = %d, want %d", remaining, maxOtpAttempts-1)
	}

	// listing state and code untouched by the miss
	got, err := co.Store.Get(ctx, l.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != listing.StatusAccepted || got.OTP != code {
		t.Fatalf("listing disturbed by failed verify: %s otp=%q", got.Status, got.OTP)
	}
}

func TestConfirmDeliveryRequiresAssignedRider(t *testing.T) {
	co, _, pool := testCoordinator(t)
	ctx := context.Background()

	donor := seedUser(t, pool, "donor")
	ngo := seedUser(t, pool, "ngo")
	rider := seedUser(t, pool, "rider")
	imposter := seedUser(t, pool, "rider")
	l := seedListing(t, co, donor)

	claimed, code, err := co.Claim(ctx, l.ID, ngo, l.Version, listing.Location{Lat: 12.99, Lng: 77.61})
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if _, err := co.Accept(ctx, l.ID, rider, claimed.Version); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, _, err := co.VerifyPickup(ctx, l.ID, rider, code); err != nil {
		t.Fatalf("VerifyPickup: %v", err)
	}

	if _, err := co.ConfirmDelivery(ctx, l.ID, imposter); !errors.Is(err, listing.ErrInvalidState) {
		t.Fatalf("imposter delivery = %v, want ErrInvalidState", err)
	}
}
