// Package csvfile writes scraped listings to a flat CSV file. It is a
// one-shot export backend: it cannot look up what it already wrote, so every
// incremental operation reports port.ErrIncrementalUnsupported.
package csvfile

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
)

// Writer implements port.PersistencePort on a local CSV file.
type Writer struct {
	path string
}

func NewWriter(path string) *Writer {
	return &Writer{path: path}
}

var header = []string{
	"id", "name", "url", "source", "updated_at",
	"city", "neighborhood", "country", "state", "latitude", "longitude", "geohash",
	"room_type", "room_and_property_type", "person_capacity", "bedrooms", "beds", "bathrooms",
	"amenities", "description", "house_rules",
	"host_id", "photo_count", "review_count", "avg_rating", "star_rating", "satisfaction_guest",
	"price_rate", "price_rate_type", "total_price",
	"price_nightly", "price_cleaning", "discount_weekly", "discount_monthly",
	"nights_min", "nights_max", "bookings",
}

// Save writes the batch to the CSV file. In appendMode rows extend the
// existing file and the header is only written when the file is new.
func (w *Writer) Save(ctx context.Context, listings []domain.Listing, appendMode bool) error {
	if len(listings) == 0 {
		return nil
	}

	flags := os.O_CREATE | os.O_WRONLY
	writeHeader := true
	if appendMode {
		flags |= os.O_APPEND
		if info, err := os.Stat(w.path); err == nil && info.Size() > 0 {
			writeHeader = false
		}
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(w.path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("csv writer: failed to open %s: %w", w.path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if writeHeader {
		if err := writer.Write(header); err != nil {
			return fmt.Errorf("csv writer: failed to write header: %w", err)
		}
	}
	for _, listing := range listings {
		if err := writer.Write(row(listing)); err != nil {
			return fmt.Errorf("csv writer: failed to write listing %s: %w", listing.ID, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("csv writer: failed to flush %s: %w", w.path, err)
	}
	return nil
}

func row(l domain.Listing) []string {
	return []string{
		l.ID, l.Name, l.URL, l.Source, l.UpdatedAt.Format(time.RFC3339),
		l.City, l.Neighborhood, l.Country, l.State,
		formatFloat(l.Latitude), formatFloat(l.Longitude), l.Geohash,
		l.RoomType, l.RoomAndPropertyType,
		strconv.Itoa(l.PersonCapacity), strconv.Itoa(l.Bedrooms), strconv.Itoa(l.Beds), formatFloat(l.Bathrooms),
		asJSON(l.Amenities), l.Description, asJSON(l.HouseRules),
		strconv.FormatInt(l.HostID, 10), strconv.Itoa(l.PhotoCount), strconv.Itoa(l.ReviewCount),
		formatFloat(l.AvgRating), formatFloat(l.StarRating), formatFloat(l.SatisfactionGuest),
		formatIntPtr(l.PriceRate), l.PriceRateType, formatIntPtr(l.TotalPrice),
		formatFloatPtr(l.PriceNightly), formatFloatPtr(l.PriceCleaning),
		formatFloatPtr(l.DiscountWeekly), formatFloatPtr(l.DiscountMonthly),
		strconv.Itoa(l.NightsMin), strconv.Itoa(l.NightsMax), asJSON(l.Bookings),
	}
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func formatFloatPtr(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatIntPtr(i *int) string {
	if i == nil {
		return ""
	}
	return strconv.Itoa(*i)
}

func asJSON(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}

// MarkDeleted is unsupported: the file has no per-listing addressing.
func (w *Writer) MarkDeleted(ctx context.Context, listingID string) error {
	return port.ErrIncrementalUnsupported
}

// ForEachStaleID is unsupported.
func (w *Writer) ForEachStaleID(ctx context.Context, olderThan time.Duration, fn func(listingID string) error) error {
	return port.ErrIncrementalUnsupported
}

// UpdateCalendar is unsupported.
func (w *Writer) UpdateCalendar(ctx context.Context, listingID string, calendar domain.BookingCalendar) error {
	return port.ErrIncrementalUnsupported
}

// UpdatePricing is unsupported.
func (w *Writer) UpdatePricing(ctx context.Context, listingID string, doc domain.PricingDoc) error {
	return port.ErrIncrementalUnsupported
}
