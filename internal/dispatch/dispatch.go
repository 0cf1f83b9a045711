package dispatch

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/rescuebite/rescuebite/internal/listing"
	"github.com/rescuebite/rescuebite/internal/oracle"
)

// Coordinator arbitrates NGO claims and rider assignments over the
// listing store. All contention is resolved by the store's version and
// status guards; the coordinator never holds its own locks around a
// transition.
type Coordinator struct {
	Store  *listing.Store
	Router oracle.RoadNetwork
	otp    otpGuard
}

func NewCoordinator(store *listing.Store, router oracle.RoadNetwork) *Coordinator {
	return &Coordinator{Store: store, Router: router}
}

// resolveVersion lets callers omit expected_version and race on the
// version the coordinator reads itself. Explicit versions still win for
// clients that carry one from a prior read.
func (c *Coordinator) resolveVersion(ctx context.Context, listingID string, expected int64) (int64, error) {
	if expected > 0 {
		return expected, nil
	}
	l, err := c.Store.Get(ctx, listingID)
	if err != nil {
		return 0, err
	}
	return l.Version, nil
}

// Claim binds an NGO to an available listing and mints its single-use
// pickup code. Exactly one of two concurrent claims succeeds; the loser
// sees listing.ErrConflict and must re-match against fresh state.
func (c *Coordinator) Claim(ctx context.Context, listingID, ngoID string, expectedVersion int64, drop listing.Location) (*listing.Listing, string, error) {
	if ngoID == "" {
		return nil, "", listing.ErrInvalidState
	}
	version, err := c.resolveVersion(ctx, listingID, expectedVersion)
	if err != nil {
		return nil, "", err
	}

	code, err := generateOTP()
	if err != nil {
		return nil, "", err
	}

	l, err := c.Store.Transition(ctx, listingID, version,
		listing.StatusAvailable, listing.StatusClaimed,
		ngoID, "claimed by NGO",
		func(l *listing.Listing) error {
			l.NgoID = ngoID
			l.OTP = code
			l.DropLocation = drop
			return nil
		}, nil)
	if err != nil {
		return nil, "", err
	}
	return l, code, nil
}

// Accept assigns a rider to a claimed listing. The road-network oracle is
// consulted first; if it is unreachable the listing is left untouched and
// the rider can retry. When two riders race, the version guard lets
// exactly one transition through.
func (c *Coordinator) Accept(ctx context.Context, listingID, riderID string, expectedVersion int64) (*listing.Listing, error) {
	if riderID == "" {
		return nil, listing.ErrInvalidState
	}
	current, err := c.Store.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if current.Status != listing.StatusClaimed {
		return nil, listing.ErrInvalidState
	}
	version := expectedVersion
	if version == 0 {
		version = current.Version
	}

	dest := current.DropLocation
	if dest.Lat == 0 && dest.Lng == 0 {
		dest = current.Location
	}
	waypoints, err := c.Router.Route(ctx, current.Location, dest)
	if err != nil {
		return nil, err
	}

	return c.Store.Transition(ctx, listingID, version,
		listing.StatusClaimed, listing.StatusAccepted,
		riderID, "accepted by rider",
		func(l *listing.Listing) error {
			l.RiderID = riderID
			l.RouteWaypoints = waypoints
			return nil
		}, nil)
}

// generateOTP mints a 6-digit pickup code from crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
