package karma

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DeliveryPoints is the fixed reward for one completed rescue.
const DeliveryPoints = 50

// Credit awards points to a rider inside the caller's transaction. It is
// invoked from the delivery Transition so the karma entry, the counter
// bump and the status change commit or roll back together.
func Credit(ctx context.Context, tx pgx.Tx, riderID, listingID string, points int64, reason string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO karma_entries (id, rider_id, listing_id, points, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), riderID, listingID, points, reason, time.Now(),
	)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE users SET karma = karma + $1 WHERE id = $2`, points, riderID)
	return err
}

// RecordImpact bumps the donor's meals_saved and the NGO's meals_received
// counters, in the same transaction as the delivery transition.
func RecordImpact(ctx context.Context, tx pgx.Tx, donorID, ngoID string, meals int) error {
	if donorID != "" {
		if _, err := tx.Exec(ctx, `UPDATE users SET meals_saved = meals_saved + $1 WHERE id = $2`, meals, donorID); err != nil {
			return err
		}
	}
	if ngoID != "" {
		if _, err := tx.Exec(ctx, `UPDATE users SET meals_received = meals_received + $1 WHERE id = $2`, meals, ngoID); err != nil {
			return err
		}
	}
	return nil
}

// LeaderboardEntry is one rider on the community board. Rescues derives
// from karma at the fixed per-delivery rate.
type LeaderboardEntry struct {
	RiderID string `json:"rider_id"`
	Name    string `json:"name"`
	Karma   int64  `json:"karma"`
	Rescues int64  `json:"rescues"`
}

// Leaderboard returns the top riders by karma.
func Leaderboard(ctx context.Context, pool *pgxpool.Pool, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := pool.Query(ctx, `
		SELECT id, name, karma FROM users
		WHERE role = 'rider' ORDER BY karma DESC, name ASC LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.RiderID, &e.Name, &e.Karma); err != nil {
			return nil, err
		}
		e.Rescues = e.Karma / DeliveryPoints
		out = append(out, e)
	}
	return out, rows.Err()
}
