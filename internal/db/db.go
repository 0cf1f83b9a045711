package db

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Conn *pgxpool.Pool

// Init connects to Postgres and ensures the schema the handlers expect.
func Init() {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s",
			os.Getenv("DB_USER"),
			os.Getenv("DB_PASSWORD"),
			os.Getenv("DB_HOST"),
			os.Getenv("DB_PORT"),
			os.Getenv("DB_NAME"),
		)
	}

	var err error
	Conn, err = pgxpool.New(context.Background(), dsn)
	if err != nil {
		log.Fatalf("Unable to connect to database: %v\n", err)
	}

	if err = Conn.Ping(context.Background()); err != nil {
		log.Fatalf("Unable to ping database: %v\n", err)
	}

	log.Println("Connected to Postgres successfully")

	EnsureSchema(Conn)
}

// EnsureSchema applies idempotent DDL for every table the core touches.
// Safe to run on every boot.
func EnsureSchema(pool *pgxpool.Pool) {
	ensureUsersTable(pool)
	ensureListingsTable(pool)
	ensureListingEventsTable(pool)
	ensureKarmaLedgerTable(pool)
}

func ensureUsersTable(pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('donor','ngo','rider','admin')),
			karma BIGINT NOT NULL DEFAULT 0,
			meals_saved BIGINT NOT NULL DEFAULT 0,
			meals_received BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		log.Printf("failed to ensure users table: %v", err)
		return
	}
	// karma/impact columns for databases created before they existed
	_, _ = pool.Exec(ctx, `ALTER TABLE users ADD COLUMN IF NOT EXISTS karma BIGINT NOT NULL DEFAULT 0`)
	_, _ = pool.Exec(ctx, `ALTER TABLE users ADD COLUMN IF NOT EXISTS meals_saved BIGINT NOT NULL DEFAULT 0`)
	_, _ = pool.Exec(ctx, `ALTER TABLE users ADD COLUMN IF NOT EXISTS meals_received BIGINT NOT NULL DEFAULT 0`)
}

func ensureListingsTable(pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
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
			status TEXT NOT NULL CHECK (status IN (
				'available','claimed','accepted','transit',
				'completed','rejected','expired'
			)),
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
		)`)
	if err != nil {
		log.Printf("failed to ensure listings table: %v", err)
		return
	}
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_listings_status ON listings(status)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_listings_donor ON listings(donor_id)`)
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_listings_status_updated ON listings(status, updated_at)`)
}

func ensureListingEventsTable(pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS listing_events (
			id UUID PRIMARY KEY,
			listing_id UUID NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status TEXT NOT NULL,
			actor_id TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		log.Printf("failed to ensure listing_events table: %v", err)
		return
	}
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_listing_events_listing ON listing_events(listing_id, created_at)`)
}

func ensureKarmaLedgerTable(pool *pgxpool.Pool) {
	ctx := context.Background()
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS karma_entries (
			id UUID PRIMARY KEY,
			rider_id UUID NOT NULL,
			listing_id UUID NOT NULL,
			points BIGINT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		log.Printf("failed to ensure karma_entries table: %v", err)
		return
	}
	_, _ = pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_karma_entries_rider ON karma_entries(rider_id, created_at)`)
}
