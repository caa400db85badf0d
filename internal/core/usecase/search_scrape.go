package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmcloughlin/geohash"

	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/contracts"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
	"github.com/JoeBashe/stl-scraper/internal/pool"
)

// geohashPrecision gives ~150m cells, enough to group listings by block
// without leaking exact coordinates.
const geohashPrecision = 7

// CityResolver reconciles a search result's conflicting location names into
// one city and neighborhood.
type CityResolver interface {
	Resolve(ctx context.Context, summary domain.ListingSummary, geography domain.Geography) (city, neighborhood string)
}

// SearchScrapeUseCase walks a paginated search, scrapes every listing's
// detail page and reviews, and streams the assembled documents to storage
// page by page.
type SearchScrapeUseCase struct {
	explore     port.ExplorePort
	pdp         port.PdpPort
	reviews     port.ReviewsPort
	persistence port.PersistencePort
	events      port.EventsPort // nil = disabled
	resolver    CityResolver    // nil = trust reported names

	workers int

	// ids seen across every search this process ran; a listing can appear in
	// several result pages (or several searches) but is scraped once
	seen *pool.IDSet
}

func NewSearchScrapeUseCase(
	explore port.ExplorePort,
	pdp port.PdpPort,
	reviews port.ReviewsPort,
	persistence port.PersistencePort,
	events port.EventsPort,
	resolver CityResolver,
	workers int,
) *SearchScrapeUseCase {
	return &SearchScrapeUseCase{
		explore:     explore,
		pdp:         pdp,
		reviews:     reviews,
		persistence: persistence,
		events:      events,
		resolver:    resolver,
		workers:     workers,
		seen:        pool.NewIDSet(),
	}
}

// Execute runs one search to exhaustion. Every page is processed, including
// the final one, and results are saved after each page so an aborted run
// keeps everything scraped so far.
func (uc *SearchScrapeUseCase) Execute(ctx context.Context, query string, filters domain.SearchFilters) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "SearchScrape", "query": query})

	url, err := uc.explore.SearchURL(query, filters)
	if err != nil {
		return fmt.Errorf("search scrape: failed to build search URL: %w", err)
	}
	page, err := uc.explore.Search(ctx, url)
	if err != nil {
		return fmt.Errorf("search scrape: initial search failed: %w", err)
	}

	geography := normalizeGeography(page.Geography, query)
	logger.Info("Starting search", port.Fields{
		"total_count":  page.Pagination.TotalCount,
		"full_address": geography.FullAddress,
	})

	scraped := 0
	for pageNum := 1; ; pageNum++ {
		logger.Info("Processing search page", port.Fields{"page": pageNum, "items": len(page.Items)})

		listings := uc.scrapePage(ctx, page.Items, geography, logger)
		scraped += len(listings)

		if err := uc.persistence.Save(ctx, listings, true); err != nil {
			return fmt.Errorf("search scrape: failed to save page %d: %w", pageNum, err)
		}
		uc.publish(ctx, listings, logger)

		if !page.Pagination.HasNextPage {
			break
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		// the server normalizes some filters in the URL it actually served;
		// the next request must carry them forward or pagination drifts
		carried, err := uc.explore.CarriedFilters(page.URL)
		if err != nil {
			return fmt.Errorf("search scrape: failed to carry filters from page %d: %w", pageNum, err)
		}
		filters = filters.Merge(carried).WithOffset(page.Pagination.ItemsOffset)

		url, err = uc.explore.SearchURL(query, filters)
		if err != nil {
			return fmt.Errorf("search scrape: failed to build URL for page %d: %w", pageNum+1, err)
		}
		page, err = uc.explore.Search(ctx, url)
		if err != nil {
			return fmt.Errorf("search scrape: failed to fetch page %d: %w", pageNum+1, err)
		}
	}

	logger.Info("Search finished", port.Fields{"listings": scraped})
	return nil
}

// scrapePage fetches details for every not-yet-seen listing of one result
// page. A failed listing is logged and skipped; it never aborts the page.
func (uc *SearchScrapeUseCase) scrapePage(ctx context.Context, items []domain.SearchResultItem, geography domain.Geography, logger port.LoggerPort) []domain.Listing {
	workers := pool.New(uc.workers, 0)

	var mu sync.Mutex
	var listings []domain.Listing

	for _, item := range items {
		if !uc.seen.Add(item.ID) {
			// expected near page boundaries, the grid overlaps slightly
			logger.Warn("Duplicate listing", port.Fields{"listing_id": item.ID})
			continue
		}

		summary := item.Summary
		if uc.resolver != nil {
			summary.City, summary.Neighborhood = uc.resolver.Resolve(ctx, summary, geography)
		}

		listingID := item.ID
		workers.Submit(ctx, func() {
			listing, err := uc.scrapeListing(ctx, listingID, summary, geography)
			if err != nil {
				logger.Error("Failed to scrape listing", err, port.Fields{"listing_id": listingID})
				return
			}
			logger.Info("Scraped listing", port.Fields{
				"listing_id": listing.ID,
				"city":       listing.City,
				"name":       listing.Name,
				"url":        listing.URL,
			})

			mu.Lock()
			listings = append(listings, *listing)
			mu.Unlock()
		})
	}
	workers.Wait()

	return listings
}

func (uc *SearchScrapeUseCase) scrapeListing(ctx context.Context, listingID string, summary domain.ListingSummary, geography domain.Geography) (*domain.Listing, error) {
	reviews, err := uc.reviews.GetReviews(ctx, listingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get reviews: %w", err)
	}

	listing, err := uc.pdp.GetListing(ctx, listingID, summary, geography, reviews)
	if err != nil {
		return nil, fmt.Errorf("failed to get detail page: %w", err)
	}
	listing.Geohash = geohash.EncodeWithPrecision(listing.Latitude, listing.Longitude, geohashPrecision)

	if err := contracts.ValidateListing(*listing); err != nil {
		return nil, err
	}
	return listing, nil
}

func (uc *SearchScrapeUseCase) publish(ctx context.Context, listings []domain.Listing, logger port.LoggerPort) {
	if uc.events == nil {
		return
	}
	for _, listing := range listings {
		if err := uc.events.PublishListingScraped(ctx, listing); err != nil {
			// events are best-effort, storage already has the listing
			logger.Warn("Failed to publish scraped event", port.Fields{
				"listing_id": listing.ID,
				"error":      err.Error(),
			})
		}
	}
}

// normalizeGeography fills in the city from a "City, Country" query when the
// server metadata leaves it empty.
func normalizeGeography(geography domain.Geography, query string) domain.Geography {
	if geography.City == "" {
		if components := strings.Split(query, ", "); len(components) == 2 {
			geography.City = components[0]
		}
	}
	return geography
}

// sleepCtx sleeps for d unless ctx is cancelled first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
