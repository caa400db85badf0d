package port

import (
	"context"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

// EventsPort publishes scraped-listing events for downstream consumers.
// Wiring it is optional; the pipeline treats a nil publisher as disabled.
type EventsPort interface {
	PublishListingScraped(ctx context.Context, listing domain.Listing) error
	Close() error
}
