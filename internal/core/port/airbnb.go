package port

import (
	"context"
	"encoding/json"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

// ExplorePort drives the paginated search endpoint.
type ExplorePort interface {
	// SearchURL builds the request URL for a query with the given filters.
	SearchURL(query string, filters domain.SearchFilters) (string, error)
	// Search fetches and parses one result page from a previously built URL.
	Search(ctx context.Context, url string) (*domain.SearchPage, error)
	// CarriedFilters parses the server-normalized filter values back out of
	// the URL a page was fetched with, for the next page request.
	CarriedFilters(url string) (domain.CarriedFilters, error)
}

// PdpPort fetches and parses one listing's detail page.
type PdpPort interface {
	// GetListing merges the detail response with the cached search summary,
	// geography and reviews into one Listing.
	GetListing(ctx context.Context, listingID string, summary domain.ListingSummary, geography domain.Geography, reviews []domain.Review) (*domain.Listing, error)
	// GetRawListing returns the unparsed detail document (data subcommand).
	GetRawListing(ctx context.Context, listingID string) (json.RawMessage, error)
}

// ReviewsPort fetches all reviews of a listing, paginating internally.
type ReviewsPort interface {
	GetReviews(ctx context.Context, listingID string) ([]domain.Review, error)
}

// CalendarPort fetches a listing's 12-month availability feed.
type CalendarPort interface {
	// GetCalendar returns the booking calendar plus the listing's min/max
	// night constraints (mode over all calendar days).
	GetCalendar(ctx context.Context, listingID string) (domain.BookingCalendar, int, int, error)
}

// PricingPort requests one priced quote for specific dates.
type PricingPort interface {
	GetPricing(ctx context.Context, checkin, checkout, listingID string) (*domain.PricingQuote, error)
}

// ExistencePort re-checks a listing's public page after a Forbidden response.
type ExistencePort interface {
	// Exists returns true on HTTP 200, false on 410 (gone); any other status
	// is an error.
	Exists(ctx context.Context, listingID string) (bool, error)
}
