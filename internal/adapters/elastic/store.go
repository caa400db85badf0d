// Package elastic persists listings in an Elasticsearch index. It is the only
// backend with full incremental support: streaming upserts, staleness scans,
// tombstones and in-place calendar/pricing updates.
package elastic

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/olivere/elastic/v7"

	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
)

// Config configures the Elasticsearch store.
type Config struct {
	Hosts    []string
	Username string
	Password string
	Index    string
}

// Store implements port.PersistencePort on an Elasticsearch index.
type Store struct {
	client *elastic.Client
	index  string
}

// NewStore connects to the cluster and makes sure the index exists with the
// expected mappings.
func NewStore(ctx context.Context, cfg Config) (*Store, error) {
	options := []elastic.ClientOptionFunc{
		elastic.SetURL(cfg.Hosts...),
		elastic.SetSniff(false),
	}
	if cfg.Username != "" {
		options = append(options, elastic.SetBasicAuth(cfg.Username, cfg.Password))
	}

	client, err := elastic.NewClient(options...)
	if err != nil {
		return nil, fmt.Errorf("elastic store: failed to connect: %w", err)
	}

	store := &Store{client: client, index: cfg.Index}
	if err := store.ensureIndex(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

const indexMappings = `{
	"mappings": {
		"properties": {
			"access":                 {"type": "text"},
			"additional_house_rules": {"type": "text"},
			"allows_events":          {"type": "boolean"},
			"amenities":              {"type": "keyword"},
			"amenity_ids":            {"type": "keyword"},
			"avg_rating":             {"type": "float"},
			"bathrooms":              {"type": "float"},
			"bedrooms":               {"type": "short"},
			"beds":                   {"type": "integer"},
			"bookings": {
				"type": "nested",
				"properties": {"date": {"type": "date", "format": "yyyy-MM-dd"}}
			},
			"business_travel_ready":  {"type": "boolean"},
			"can_instant_book":       {"type": "boolean"},
			"city":                   {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"coordinates":            {"type": "geo_point"},
			"country":                {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"deleted":                {"type": "boolean"},
			"description":            {"type": "text"},
			"discount_monthly":       {"type": "float"},
			"discount_weekly":        {"type": "float"},
			"geohash":                {"type": "keyword"},
			"host_id":                {"type": "long"},
			"house_rules":            {"type": "text"},
			"interaction":            {"type": "text"},
			"is_hotel":               {"type": "boolean"},
			"latitude":               {"type": "double"},
			"listing_expectations":   {"type": "text"},
			"longitude":              {"type": "double"},
			"monthly_price_factor":   {"type": "float"},
			"name":                   {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"neighborhood":           {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"neighborhood_overview":  {"type": "text"},
			"nights_max":             {"type": "integer"},
			"nights_min":             {"type": "integer"},
			"person_capacity":        {"type": "integer"},
			"photo_count":            {"type": "integer"},
			"photos":                 {"type": "keyword"},
			"place_id":               {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"price_cleaning":         {"type": "float"},
			"price_nightly":          {"type": "float"},
			"price_rate":             {"type": "integer"},
			"price_rate_type":        {"type": "keyword"},
			"product_id":             {"type": "keyword"},
			"province":               {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"rating_accuracy":        {"type": "float"},
			"rating_checkin":         {"type": "float"},
			"rating_cleanliness":     {"type": "float"},
			"rating_communication":   {"type": "float"},
			"rating_location":        {"type": "float"},
			"rating_value":           {"type": "float"},
			"review_count":           {"type": "integer"},
			"reviews":                {"type": "nested"},
			"room_and_property_type": {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"room_type":              {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"room_type_category":     {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"satisfaction_guest":     {"type": "float"},
			"source":                 {"type": "keyword"},
			"star_rating":            {"type": "float"},
			"state":                  {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"total_price":            {"type": "integer"},
			"transit":                {"type": "text"},
			"updated_at":             {"type": "date"},
			"url":                    {"type": "text", "fields": {"keyword": {"type": "keyword"}}},
			"weekly_price_factor":    {"type": "float"}
		}
	}
}`

func (s *Store) ensureIndex(ctx context.Context) error {
	exists, err := s.client.IndexExists(s.index).Do(ctx)
	if err != nil {
		return fmt.Errorf("elastic store: failed to check index %q: %w", s.index, err)
	}
	if exists {
		return nil
	}

	_, err = s.client.CreateIndex(s.index).BodyString(indexMappings).Do(ctx)
	if err != nil {
		// concurrent runs may race on index creation
		if elastic.IsConflict(err) {
			return nil
		}
		return fmt.Errorf("elastic store: failed to create index %q: %w", s.index, err)
	}
	return nil
}

// Save bulk-upserts listings. Upserts make appendMode a no-op distinction:
// re-saved listings are overwritten in place either way.
func (s *Store) Save(ctx context.Context, listings []domain.Listing, appendMode bool) error {
	if len(listings) == 0 {
		return nil
	}

	bulk := s.client.Bulk().Index(s.index)
	for _, listing := range listings {
		bulk.Add(elastic.NewBulkUpdateRequest().
			Id(listing.ID).
			Doc(listing).
			DocAsUpsert(true))
	}

	resp, err := bulk.Do(ctx)
	if err != nil {
		return fmt.Errorf("elastic store: bulk save failed: %w", err)
	}
	if failed := resp.Failed(); len(failed) > 0 {
		logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "ElasticStore"})
		for _, item := range failed {
			logger.Error("Failed to save listing", nil, port.Fields{"listing_id": item.Id, "reason": item.Error.Reason})
		}
		return fmt.Errorf("elastic store: bulk save failed for %d of %d listings", len(failed), len(listings))
	}
	return nil
}

// MarkDeleted tombstones a listing instead of removing it.
func (s *Store) MarkDeleted(ctx context.Context, listingID string) error {
	_, err := s.client.Update().
		Index(s.index).
		Id(listingID).
		Doc(map[string]interface{}{"deleted": true}).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("elastic store: failed to mark listing %s deleted: %w", listingID, err)
	}
	return nil
}

// ForEachStaleID scrolls over ids not updated within the staleness window,
// excluding tombstoned listings.
func (s *Store) ForEachStaleID(ctx context.Context, olderThan time.Duration, fn func(listingID string) error) error {
	query := elastic.NewBoolQuery().
		MustNot(elastic.NewTermQuery("deleted", true)).
		Must(elastic.NewRangeQuery("updated_at").Lte(fmt.Sprintf("now-%ds", int64(olderThan.Seconds()))))

	scroll := s.client.Scroll(s.index).Query(query).Scroll("2m").FetchSource(false)
	defer scroll.Clear(context.Background())

	for {
		page, err := scroll.Do(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("elastic store: stale id scroll failed: %w", err)
		}
		for _, hit := range page.Hits.Hits {
			if err := fn(hit.Id); err != nil {
				return err
			}
		}
	}
}

// mergeBookingsScript folds new booked dates into the stored booking list:
// no duplicates, sorted ascending, stored bookings never discarded. ISO dates
// sort correctly as plain strings.
const mergeBookingsScript = `
if (ctx._source.bookings == null) {
	ctx._source.bookings = [];
}
boolean updated = false;
for (booking in params.bookings) {
	boolean found = false;
	for (existing in ctx._source.bookings) {
		if (existing.date == booking.date) {
			found = true;
			break;
		}
	}
	if (!found) {
		ctx._source.bookings.add(booking);
		updated = true;
	}
}
if (updated) {
	ctx._source.bookings.sort((a, b) -> a.date.compareTo(b.date));
}
ctx._source.updated_at = params.now;
`

// UpdateCalendar merges the calendar's booked dates into the stored document
// and stamps updated_at, so refreshed listings drop out of the staleness scan
// even when nothing changed.
func (s *Store) UpdateCalendar(ctx context.Context, listingID string, calendar domain.BookingCalendar) error {
	bookings := make([]map[string]string, 0)
	for _, date := range calendar.BookedDates() {
		bookings = append(bookings, map[string]string{"date": date})
	}

	script := elastic.NewScript(mergeBookingsScript).Params(map[string]interface{}{
		"bookings": bookings,
		"now":      time.Now().UTC().Format(time.RFC3339),
	})
	_, err := s.client.Update().
		Index(s.index).
		Id(listingID).
		Script(script).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("elastic store: failed to update calendar of listing %s: %w", listingID, err)
	}
	return nil
}

// UpdatePricing updates the listing's compact pricing fields.
func (s *Store) UpdatePricing(ctx context.Context, listingID string, doc domain.PricingDoc) error {
	_, err := s.client.Update().
		Index(s.index).
		Id(listingID).
		Doc(doc).
		Do(ctx)
	if err != nil {
		return fmt.Errorf("elastic store: failed to update pricing of listing %s: %w", listingID, err)
	}
	return nil
}
