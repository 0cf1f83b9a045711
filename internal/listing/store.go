package listing

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the durable record of listings and the sole synchronization
// point for mutations. Every write goes through Transition; no other
// code path touches status or version.
type Store struct {
	Pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

// CreateInput carries everything a donor submits plus the vision verdict.
type CreateInput struct {
	DonorID       string
	Category      string
	Quantity      Quantity
	PreparedAt    time.Time
	SafetyAnswers SafetyAnswers
	Assessment    AIAssessment
	Location      Location
}

func (in *CreateInput) validate(now time.Time) error {
	switch {
	case in.DonorID == "":
		return invalidf("donor_id", "required")
	case in.Category == "":
		return invalidf("category", "required")
	case in.Quantity.Value <= 0:
		return invalidf("quantity", "must be positive")
	case in.PreparedAt.IsZero():
		return invalidf("prepared_at", "required")
	case in.PreparedAt.After(now):
		return invalidf("prepared_at", "cannot be in the future")
	case in.Assessment.ShelfLifeHours <= 0:
		return invalidf("ai_assessment.shelf_life_hours", "must be positive")
	}
	if in.Quantity.Unit == "" {
		in.Quantity.Unit = "servings"
	}
	return nil
}

// Create persists a new listing. Food older than MaxListingAge is refused
// outright. An unsafe vision verdict still persists the listing, but
// terminally rejected, and Create reports ErrUnsafeFood alongside it so
// the caller can show the oracle's reason.
func (s *Store) Create(ctx context.Context, in CreateInput) (*Listing, error) {
	now := time.Now()
	if err := in.validate(now); err != nil {
		return nil, err
	}
	if now.Sub(in.PreparedAt) > MaxListingAge {
		return nil, ErrExpiredAtCreation
	}

	l := &Listing{
		ID:            uuid.New().String(),
		DonorID:       in.DonorID,
		Category:      in.Category,
		Quantity:      in.Quantity,
		PreparedAt:    in.PreparedAt,
		SafetyAnswers: in.SafetyAnswers,
		AIAssessment:  in.Assessment,
		Status:        StatusAvailable,
		Location:      in.Location,
		CreatedAt:     now,
		UpdatedAt:     now,
		Version:       1,
	}
	if !in.Assessment.Safe {
		l.Status = StatusRejected
	}
	l.PriorityScore, l.PriorityBand = Score(l, now)

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO listings (
			id, donor_id, ngo_id, rider_id, category, qty_value, qty_unit,
			prepared_at, temp_ok, smell_ok, packing_ok,
			ai_safe, ai_risk_score, ai_shelf_life_hours, ai_message,
			status, otp, lat, lng, address,
			drop_lat, drop_lng, drop_address, route_waypoints,
			created_at, updated_at, version
		) VALUES ($1,$2,'','',$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,'',$15,$16,$17,0,0,'','[]',$18,$19,$20)`,
		l.ID, l.DonorID, l.Category, l.Quantity.Value, l.Quantity.Unit,
		l.PreparedAt, string(l.SafetyAnswers.TempOk), string(l.SafetyAnswers.SmellOk), string(l.SafetyAnswers.PackingOk),
		l.AIAssessment.Safe, l.AIAssessment.RiskScore, l.AIAssessment.ShelfLifeHours, l.AIAssessment.Message,
		string(l.Status), l.Location.Lat, l.Location.Lng, l.Location.Address,
		l.CreatedAt, l.UpdatedAt, l.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := insertEvent(ctx, tx, l.ID, "", l.Status, l.DonorID, "listing created"); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	if l.Status == StatusRejected {
		return l, ErrUnsafeFood
	}
	return l, nil
}

const listingColumns = `
	id, donor_id, ngo_id, rider_id, category, qty_value, qty_unit,
	prepared_at, temp_ok, smell_ok, packing_ok,
	ai_safe, ai_risk_score, ai_shelf_life_hours, ai_message,
	status, otp, lat, lng, address,
	drop_lat, drop_lng, drop_address, route_waypoints,
	created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(row rowScanner) (*Listing, error) {
	var (
		l         Listing
		temp      string
		smell     string
		packing   string
		status    string
		waypoints []byte
	)
	err := row.Scan(
		&l.ID, &l.DonorID, &l.NgoID, &l.RiderID, &l.Category,
		&l.Quantity.Value, &l.Quantity.Unit,
		&l.PreparedAt, &temp, &smell, &packing,
		&l.AIAssessment.Safe, &l.AIAssessment.RiskScore,
		&l.AIAssessment.ShelfLifeHours, &l.AIAssessment.Message,
		&status, &l.OTP, &l.Location.Lat, &l.Location.Lng, &l.Location.Address,
		&l.DropLocation.Lat, &l.DropLocation.Lng, &l.DropLocation.Address,
		&waypoints, &l.CreatedAt, &l.UpdatedAt, &l.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	l.SafetyAnswers = SafetyAnswers{TempOk: TriState(temp), SmellOk: TriState(smell), PackingOk: TriState(packing)}
	l.Status = Status(status)
	if len(waypoints) > 0 {
		if err := json.Unmarshal(waypoints, &l.RouteWaypoints); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

// Get fetches one listing. The priority score is recomputed live; the
// stored value is never trusted.
func (s *Store) Get(ctx context.Context, id string) (*Listing, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1`, id)
	l, err := scanListing(row)
	if err != nil {
		return nil, err
	}
	l.PriorityScore, l.PriorityBand = Score(l, time.Now())
	return l, nil
}

// List returns listings, optionally filtered by status, newest first,
// each with a freshly computed priority score.
func (s *Store) List(ctx context.Context, status Status) ([]*Listing, error) {
	q := `SELECT ` + listingColumns + ` FROM listings ORDER BY created_at DESC`
	args := []any{}
	if status != "" {
		q = `SELECT ` + listingColumns + ` FROM listings WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, string(status))
	}
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		l.PriorityScore, l.PriorityBand = Score(l, now)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListMatchable returns the pool the matching engine ranks: available,
// vision-approved, non-empty listings.
func (s *Store) ListMatchable(ctx context.Context) ([]*Listing, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status = 'available' AND ai_safe AND qty_value > 0
		ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListStale returns non-terminal listings whose updated_at is older than
// the cutoff for their status. Used by the abandonment sweeper.
func (s *Store) ListStale(ctx context.Context, status Status, cutoff time.Time) ([]*Listing, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status = $1 AND updated_at < $2`, string(status), cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListPastShelfLife returns non-terminal listings whose assessed shelf
// life has fully elapsed.
func (s *Store) ListPastShelfLife(ctx context.Context, now time.Time) ([]*Listing, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+listingColumns+` FROM listings
		WHERE status NOT IN ('completed','rejected','expired')
		  AND prepared_at + (ai_shelf_life_hours * interval '1 hour') < $1`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// PostFn runs inside the Transition transaction after the listing row is
// written. Karma credits and impact counters ride here so they commit or
// roll back together with the status change.
type PostFn func(ctx context.Context, tx pgx.Tx, l *Listing) error

// Transition is the single mutation path for listings. Inside one
// transaction it locks the row, checks the caller's expected version
// (optimistic concurrency) and the required source status, validates the
// move against the transition table, applies the mutator, bumps the
// version, stamps updated_at, appends an audit event and runs post.
// Losers of a concurrent race get ErrConflict; wrong-state callers get
// ErrInvalidState.
func (s *Store) Transition(
	ctx context.Context,
	id string,
	expectedVersion int64,
	from, to Status,
	actorID, detail string,
	mutate func(*Listing) error,
	post PostFn,
) (*Listing, error) {
	if !CanTransition(from, to) {
		return nil, ErrInvalidState
	}

	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+listingColumns+` FROM listings WHERE id = $1 FOR UPDATE`, id)
	l, err := scanListing(row)
	if err != nil {
		return nil, err
	}
	// Version first: a mismatch means the caller lost a race and should
	// re-read and retry, even when the winner also moved the status. Only
	// a wrong status at the expected version is a true state error.
	if l.Version != expectedVersion {
		return nil, ErrConflict
	}
	if l.Status != from {
		return nil, ErrInvalidState
	}

	if mutate != nil {
		if err := mutate(l); err != nil {
			return nil, err
		}
	}
	prev := l.Status
	l.Status = to
	l.Version++
	l.UpdatedAt = time.Now()

	waypoints, err := json.Marshal(l.RouteWaypoints)
	if err != nil {
		return nil, err
	}
	if l.RouteWaypoints == nil {
		waypoints = []byte("[]")
	}

	_, err = tx.Exec(ctx, `
		UPDATE listings SET
			ngo_id = $2, rider_id = $3, status = $4, otp = $5,
			drop_lat = $6, drop_lng = $7, drop_address = $8,
			route_waypoints = $9, updated_at = $10, version = $11
		WHERE id = $1`,
		l.ID, l.NgoID, l.RiderID, string(l.Status), l.OTP,
		l.DropLocation.Lat, l.DropLocation.Lng, l.DropLocation.Address,
		waypoints, l.UpdatedAt, l.Version,
	)
	if err != nil {
		return nil, err
	}

	if err := insertEvent(ctx, tx, l.ID, prev, l.Status, actorID, detail); err != nil {
		return nil, err
	}
	if post != nil {
		if err := post(ctx, tx, l); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	l.PriorityScore, l.PriorityBand = Score(l, l.UpdatedAt)
	return l, nil
}

// ClearAssignments strips the NGO, rider, pickup code and route from a
// listing. Used when a stalled claim reverts to available.
func ClearAssignments(l *Listing) error {
	l.NgoID = ""
	l.RiderID = ""
	l.OTP = ""
	l.DropLocation = Location{}
	l.RouteWaypoints = nil
	return nil
}

func insertEvent(ctx context.Context, tx pgx.Tx, listingID string, from, to Status, actorID, detail string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO listing_events (id, listing_id, from_status, to_status, actor_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.New().String(), listingID, string(from), string(to), actorID, detail, time.Now(),
	)
	return err
}

// Event is one append-only audit record of a lifecycle move.
type Event struct {
	ID         string    `json:"id"`
	ListingID  string    `json:"listing_id"`
	FromStatus string    `json:"from_status"`
	ToStatus   string    `json:"to_status"`
	ActorID    string    `json:"actor_id"`
	Detail     string    `json:"detail"`
	CreatedAt  time.Time `json:"created_at"`
}

// Events returns the audit trail for a listing, oldest first.
func (s *Store) Events(ctx context.Context, listingID string) ([]Event, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, listing_id, from_status, to_status, actor_id, detail, created_at
		FROM listing_events WHERE listing_id = $1 ORDER BY created_at ASC`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.ListingID, &e.FromStatus, &e.ToStatus, &e.ActorID, &e.Detail, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
