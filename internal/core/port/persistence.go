package port

import (
	"context"
	"errors"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

// ErrIncrementalUnsupported is returned by storage backends that only support
// one-shot saves (the flat-file writer).
var ErrIncrementalUnsupported = errors.New("storage backend does not support incremental updates")

// PersistencePort is the storage contract. Writes are keyed by listing id, so
// calls for different listings are safe to issue concurrently.
type PersistencePort interface {
	// Save upserts a batch of listings. With appendMode the batch extends a
	// run already in progress (streaming persistence after each page).
	Save(ctx context.Context, listings []domain.Listing, appendMode bool) error

	// MarkDeleted tombstones a listing (deleted=true) instead of removing it,
	// so it stays queryable for audit but drops out of staleness scans.
	MarkDeleted(ctx context.Context, listingID string) error

	// ForEachStaleID streams ids not updated within the staleness window,
	// excluding tombstoned listings. fn returning an error stops iteration.
	ForEachStaleID(ctx context.Context, olderThan time.Duration, fn func(listingID string) error) error

	// UpdateCalendar merges the calendar's booked dates into the stored
	// booking list (sorted, no duplicates, never discarding stored bookings)
	// and stamps updated_at.
	UpdateCalendar(ctx context.Context, listingID string, calendar domain.BookingCalendar) error

	// UpdatePricing updates the listing's compact pricing fields.
	UpdatePricing(ctx context.Context, listingID string, doc domain.PricingDoc) error
}
