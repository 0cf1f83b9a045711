package workers

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/rescuebite/rescuebite/internal/alerts"
	"github.com/rescuebite/rescuebite/internal/db"
	"github.com/rescuebite/rescuebite/internal/listing"
	"github.com/rescuebite/rescuebite/internal/metrics"
)

// Sweeper expires listings past their assessed shelf life and reverts
// stalled claims so abandoned NGOs and riders cannot starve a donation.
// The windows are deployment policy, not contract, so they come from env.
type Sweeper struct {
	Store          *listing.Store
	Interval       time.Duration
	ClaimTimeout   time.Duration
	AcceptTimeout  time.Duration
	TransitTimeout time.Duration
}

func NewSweeperFromEnv(store *listing.Store) *Sweeper {
	return &Sweeper{
		Store:          store,
		Interval:       envDuration("SWEEP_INTERVAL", 30*time.Second),
		ClaimTimeout:   envDuration("CLAIM_TIMEOUT", 20*time.Minute),
		AcceptTimeout:  envDuration("ACCEPT_TIMEOUT", 30*time.Minute),
		TransitTimeout: envDuration("TRANSIT_TIMEOUT", 2*time.Hour),
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[sweeper] bad %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.sweepOnce(ctx); err != nil {
				log.Printf("[sweeper] error: %v", err)
			}
		}
	}
}

func (s *Sweeper) sweepOnce(ctx context.Context) error {
	now := time.Now()

	if err := s.expirePastShelfLife(ctx, now); err != nil {
		return err
	}

	stale := []struct {
		status  listing.Status
		timeout time.Duration
	}{
		{listing.StatusClaimed, s.ClaimTimeout},
		{listing.StatusAccepted, s.AcceptTimeout},
		{listing.StatusTransit, s.TransitTimeout},
	}
	for _, st := range stale {
		if err := s.revertStale(ctx, st.status, now.Add(-st.timeout)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) expirePastShelfLife(ctx context.Context, now time.Time) error {
	expired, err := s.Store.ListPastShelfLife(ctx, now)
	if err != nil {
		return err
	}
	for _, l := range expired {
		_, err := s.Store.Transition(ctx, l.ID, l.Version, l.Status, listing.StatusExpired,
			"system", "shelf life elapsed", nil, nil)
		if err != nil {
			// a concurrent writer moved it first; pick it up next pass
			continue
		}
		metrics.Expirations.Inc()
		log.Printf("[sweeper] expired listing=%s", l.ID)
		notifyExpired(l)
	}
	return nil
}

func (s *Sweeper) revertStale(ctx context.Context, status listing.Status, cutoff time.Time) error {
	stalled, err := s.Store.ListStale(ctx, status, cutoff)
	if err != nil {
		return err
	}
	for _, l := range stalled {
		_, err := s.Store.Transition(ctx, l.ID, l.Version, status, listing.StatusAvailable,
			"system", "stalled "+string(status)+" reverted",
			listing.ClearAssignments, nil)
		if err != nil {
			continue
		}
		metrics.Reverts.Inc()
		log.Printf("[sweeper] reverted stalled %s listing=%s", status, l.ID)
	}
	return nil
}

func notifyExpired(l *listing.Listing) {
	if db.Conn == nil {
		return
	}
	var email string
	_ = db.Conn.QueryRow(context.Background(), `SELECT email FROM users WHERE id = $1`, l.DonorID).Scan(&email)
	if email != "" {
		_ = alerts.EnqueueListingExpired(l.ID, l.DonorID, email)
	}
}
