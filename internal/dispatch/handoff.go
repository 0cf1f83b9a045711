package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rescuebite/rescuebite/internal/karma"
	"github.com/rescuebite/rescuebite/internal/listing"
	"github.com/rescuebite/rescuebite/internal/metrics"
)

// Wrong-code policy: five consecutive misses lock the listing out of
// verification for a cooldown. The counter is in-memory on purpose; it is
// advisory rate limiting, not lifecycle state, and does not touch the
// listing version.
const (
	maxOtpAttempts = 5
	otpCooldown    = 15 * time.Minute

	// Entries idle this long are dropped, so listings that expire or get
	// swept while under verification do not pin counters forever. Longer
	// than the cooldown, so aging out cannot shortcut a lockout.
	otpRetention = time.Hour
)

type otpGuard struct {
	mu    sync.Mutex
	state map[string]*otpAttempts
}

type otpAttempts struct {
	fails       int
	lockedUntil time.Time
	touched     time.Time
}

func (g *otpGuard) entry(listingID string, now time.Time) *otpAttempts {
	if g.state == nil {
		g.state = make(map[string]*otpAttempts)
	}
	for id, a := range g.state {
		if now.Sub(a.touched) > otpRetention {
			delete(g.state, id)
		}
	}
	a, ok := g.state[listingID]
	if !ok {
		a = &otpAttempts{}
		g.state[listingID] = a
	}
	a.touched = now
	return a
}

// check refuses attempts during an active cooldown. An elapsed cooldown
// clears the counter.
func (g *otpGuard) check(listingID string, now time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.entry(listingID, now)
	if now.Before(a.lockedUntil) {
		return listing.ErrOtpLocked
	}
	if !a.lockedUntil.IsZero() && !now.Before(a.lockedUntil) {
		a.fails = 0
		a.lockedUntil = time.Time{}
	}
	return nil
}

// fail records a mismatch and returns attempts remaining before lockout.
func (g *otpGuard) fail(listingID string, now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := g.entry(listingID, now)
	a.fails++
	if a.fails >= maxOtpAttempts {
		a.lockedUntil = now.Add(otpCooldown)
	}
	return maxOtpAttempts - a.fails
}

func (g *otpGuard) reset(listingID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.state, listingID)
}

// VerifyPickup compares the rider's submitted code against the stored
// one. A match moves the listing into transit and burns the code; a
// replay afterwards fails with ErrInvalidState because the listing has
// left accepted. On mismatch the remaining attempt count is returned
// alongside ErrOtpMismatch.
func (c *Coordinator) VerifyPickup(ctx context.Context, listingID, riderID, submitted string) (*listing.Listing, int, error) {
	now := time.Now()
	if err := c.otp.check(listingID, now); err != nil {
		return nil, 0, err
	}

	current, err := c.Store.Get(ctx, listingID)
	if err != nil {
		return nil, 0, err
	}
	if current.Status != listing.StatusAccepted || current.RiderID != riderID {
		return nil, 0, listing.ErrInvalidState
	}

	if strings.TrimSpace(submitted) != current.OTP || current.OTP == "" {
		remaining := c.otp.fail(listingID, now)
		metrics.OtpFailures.Inc()
		return nil, remaining, listing.ErrOtpMismatch
	}

	l, err := c.Store.Transition(ctx, listingID, current.Version,
		listing.StatusAccepted, listing.StatusTransit,
		riderID, "pickup verified",
		func(l *listing.Listing) error {
			l.OTP = ""
			return nil
		}, nil)
	if err != nil {
		return nil, 0, err
	}
	c.otp.reset(listingID)
	return l, 0, nil
}

// ConfirmDelivery completes the rescue. The rider's karma credit and the
// donor/NGO impact counters ride in the same transaction as the status
// change, so a crash can never apply one without the other.
func (c *Coordinator) ConfirmDelivery(ctx context.Context, listingID, riderID string) (*listing.Listing, error) {
	current, err := c.Store.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if current.Status != listing.StatusTransit || current.RiderID != riderID {
		return nil, listing.ErrInvalidState
	}

	l, err := c.Store.Transition(ctx, listingID, current.Version,
		listing.StatusTransit, listing.StatusCompleted,
		riderID, "delivery confirmed",
		nil,
		func(ctx context.Context, tx pgx.Tx, l *listing.Listing) error {
			if err := karma.Credit(ctx, tx, riderID, l.ID, karma.DeliveryPoints, "delivery completed"); err != nil {
				return err
			}
			return karma.RecordImpact(ctx, tx, l.DonorID, l.NgoID, l.Quantity.Value)
		})
	if err != nil {
		return nil, err
	}
	metrics.Deliveries.Inc()
	return l, nil
}
