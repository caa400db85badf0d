// Package postgres persists listings as JSONB documents with a few promoted
// columns for scanning. It supports the full incremental contract; booking
// merges run in Go against the stored document inside a transaction.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

// Store implements port.PersistencePort on a PostgreSQL database.
type Store struct {
	pool *pgxpool.Pool
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS listings (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	geohash    TEXT,
	deleted    BOOLEAN NOT NULL DEFAULT FALSE,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS listings_updated_at_idx ON listings (updated_at) WHERE NOT deleted;
CREATE INDEX IF NOT EXISTS listings_geohash_idx ON listings (geohash);
`

// NewStore connects to the database and makes sure the schema exists.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("postgres store: failed to connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createTableSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres store: failed to ensure schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Save upserts a batch of listings in one transaction.
func (s *Store) Save(ctx context.Context, listings []domain.Listing, appendMode bool) error {
	if len(listings) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, listing := range listings {
		doc, err := json.Marshal(listing)
		if err != nil {
			return fmt.Errorf("postgres store: failed to serialize listing %s: %w", listing.ID, err)
		}
		batch.Queue(`
			INSERT INTO listings (id, doc, geohash, deleted, updated_at)
			VALUES ($1, $2, $3, FALSE, $4)
			ON CONFLICT (id) DO UPDATE SET
				doc = EXCLUDED.doc,
				geohash = EXCLUDED.geohash,
				deleted = FALSE,
				updated_at = EXCLUDED.updated_at`,
			listing.ID, doc, listing.Geohash, listing.UpdatedAt)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("postgres store: batch save failed: %w", err)
	}
	return tx.Commit(ctx)
}

// MarkDeleted tombstones a listing instead of removing it.
func (s *Store) MarkDeleted(ctx context.Context, listingID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE listings
		SET deleted = TRUE, doc = jsonb_set(doc, '{deleted}', 'true')
		WHERE id = $1`, listingID)
	if err != nil {
		return fmt.Errorf("postgres store: failed to mark listing %s deleted: %w", listingID, err)
	}
	return nil
}

// ForEachStaleID streams ids not updated within the staleness window,
// excluding tombstoned listings.
func (s *Store) ForEachStaleID(ctx context.Context, olderThan time.Duration, fn func(listingID string) error) error {
	rows, err := s.pool.Query(ctx, `
		SELECT id FROM listings
		WHERE NOT deleted AND updated_at <= now() - $1::interval
		ORDER BY updated_at`, olderThan.String())
	if err != nil {
		return fmt.Errorf("postgres store: stale id query failed: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("postgres store: failed to scan stale id: %w", err)
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return rows.Err()
}

// UpdateCalendar merges the calendar's booked dates into the stored booking
// list and stamps updated_at. The merge runs in Go with the row locked, so
// concurrent refreshes of different listings stay independent.
func (s *Store) UpdateCalendar(ctx context.Context, listingID string, calendar domain.BookingCalendar) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var stored []byte
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(doc->'bookings', '[]'::jsonb) FROM listings WHERE id = $1 FOR UPDATE`,
		listingID).Scan(&stored); err != nil {
		return fmt.Errorf("postgres store: failed to load bookings of listing %s: %w", listingID, err)
	}

	var existing []domain.Booking
	if err := json.Unmarshal(stored, &existing); err != nil {
		return fmt.Errorf("postgres store: corrupt bookings of listing %s: %w", listingID, err)
	}

	merged, err := json.Marshal(domain.MergeBookings(existing, calendar.BookedDates()))
	if err != nil {
		return fmt.Errorf("postgres store: failed to serialize bookings of listing %s: %w", listingID, err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE listings
		SET doc = jsonb_set(doc, '{bookings}', $2::jsonb), updated_at = now()
		WHERE id = $1`, listingID, merged); err != nil {
		return fmt.Errorf("postgres store: failed to update calendar of listing %s: %w", listingID, err)
	}
	return tx.Commit(ctx)
}

// UpdatePricing merges the compact pricing fields into the stored document.
func (s *Store) UpdatePricing(ctx context.Context, listingID string, doc domain.PricingDoc) error {
	pricing, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("postgres store: failed to serialize pricing of listing %s: %w", listingID, err)
	}
	_, err = s.pool.Exec(ctx, `
		UPDATE listings
		SET doc = doc || $2::jsonb, updated_at = now()
		WHERE id = $1`, listingID, pricing)
	if err != nil {
		return fmt.Errorf("postgres store: failed to update pricing of listing %s: %w", listingID, err)
	}
	return nil
}
