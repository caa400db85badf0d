package usecase

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

type fakeCalendar struct {
	calendars map[string]domain.BookingCalendar
	minNights int
	maxNights int
	errFor    map[string]error
}

func (f *fakeCalendar) GetCalendar(ctx context.Context, listingID string) (domain.BookingCalendar, int, int, error) {
	if err := f.errFor[listingID]; err != nil {
		return nil, 0, 0, err
	}
	// copy so StripDates in the use case cannot mutate the fixture
	calendar := domain.BookingCalendar{}
	for dt, booked := range f.calendars[listingID] {
		calendar[dt] = booked
	}
	return calendar, f.minNights, f.maxNights, nil
}

type fakePricing struct {
	quotes map[int]*domain.PricingQuote
	calls  []string
	err    error
}

func (f *fakePricing) GetPricing(ctx context.Context, checkin, checkout, listingID string) (*domain.PricingQuote, error) {
	f.calls = append(f.calls, checkin+".."+checkout)
	if f.err != nil {
		return nil, f.err
	}
	start, _ := time.Parse(domain.ISODate, checkin)
	end, _ := time.Parse(domain.ISODate, checkout)
	nights := int(end.Sub(start).Hours() / 24)
	if quote, ok := f.quotes[nights]; ok {
		return quote, nil
	}
	return nil, domain.NewAPIError(domain.ErrKindDataShape, "no quote for tier")
}

type fakeExistence struct {
	exists bool
	err    error
	calls  int
}

func (f *fakeExistence) Exists(ctx context.Context, listingID string) (bool, error) {
	f.calls++
	return f.exists, f.err
}

// runOf builds consecutive calendar days starting at start.
func runOf(calendar domain.BookingCalendar, start string, days int, booked bool) {
	day, _ := time.Parse(domain.ISODate, start)
	for i := 0; i < days; i++ {
		calendar[day.AddDate(0, 0, i).Format(domain.ISODate)] = booked
	}
}

func newRefreshUC(calendar *fakeCalendar, pricing *fakePricing, existence *fakeExistence, persistence *fakePersistence) *CalendarRefreshUseCase {
	uc := NewCalendarRefreshUseCase(calendar, pricing, existence, persistence, RefreshConfig{
		StripNights: 62,
		WarnNights:  50,
		Workers:     1,
	})
	uc.prober.transportBackoff = 0
	return uc
}

func TestRefreshOne(t *testing.T) {
	calendar := domain.BookingCalendar{}
	runOf(calendar, "2026-04-01", 30, false)
	runOf(calendar, "2026-05-01", 3, true)

	weekly := 0.1
	fakeCal := &fakeCalendar{
		calendars: map[string]domain.BookingCalendar{"42": calendar},
		minNights: 2, maxNights: 365,
	}
	pricing := &fakePricing{quotes: map[int]*domain.PricingQuote{
		2: {Nights: 2, PriceNightly: 100, PriceCleaning: 30},
		7: {Nights: 7, PriceNightly: 95, PriceCleaning: 30, DiscountWeekly: &weekly},
		// no 28-night quote: that tier is skipped, not fatal
	}}
	persistence := newFakePersistence()

	uc := newRefreshUC(fakeCal, pricing, &fakeExistence{}, persistence)
	if err := uc.RefreshOne(context.Background(), "42"); err != nil {
		t.Fatalf("RefreshOne: %v", err)
	}

	stored, ok := persistence.calendars["42"]
	if !ok {
		t.Fatal("calendar was not persisted")
	}
	if got := len(stored.BookedDates()); got != 3 {
		t.Errorf("stored %d booked dates; want 3", got)
	}

	doc, ok := persistence.pricing["42"]
	if !ok {
		t.Fatal("pricing doc was not persisted")
	}
	if doc.PriceNightly != 100 || doc.NightsMin != 2 || doc.NightsMax != 365 {
		t.Errorf("doc = %+v", doc)
	}
	if doc.DiscountWeekly == nil || *doc.DiscountWeekly != weekly {
		t.Errorf("DiscountWeekly = %v; want %v", doc.DiscountWeekly, weekly)
	}
}

func TestRefreshOneStripsLongBookedRuns(t *testing.T) {
	calendar := domain.BookingCalendar{}
	runOf(calendar, "2026-04-01", 10, false)
	runOf(calendar, "2026-05-01", 70, true) // longer than StripNights
	runOf(calendar, "2026-08-01", 3, true)

	fakeCal := &fakeCalendar{
		calendars: map[string]domain.BookingCalendar{"42": calendar},
		minNights: 2, maxNights: 30,
	}
	pricing := &fakePricing{quotes: map[int]*domain.PricingQuote{
		2: {Nights: 2, PriceNightly: 80},
		7: {Nights: 7, PriceNightly: 80},
	}}
	persistence := newFakePersistence()

	uc := newRefreshUC(fakeCal, pricing, &fakeExistence{}, persistence)
	if err := uc.RefreshOne(context.Background(), "42"); err != nil {
		t.Fatalf("RefreshOne: %v", err)
	}

	stored := persistence.calendars["42"]
	if got := len(stored.BookedDates()); got != 3 {
		t.Errorf("stored %d booked dates; the 70-night run must be stripped as host-blocked time", got)
	}
}

func TestRefreshOneForbiddenGoneListing(t *testing.T) {
	fakeCal := &fakeCalendar{errFor: map[string]error{"42": domain.NewAPIError(domain.ErrKindForbidden, "denied")}}
	existence := &fakeExistence{exists: false}
	persistence := newFakePersistence()

	uc := newRefreshUC(fakeCal, &fakePricing{}, existence, persistence)
	if err := uc.RefreshOne(context.Background(), "42"); err != nil {
		t.Fatalf("RefreshOne: %v", err)
	}
	if existence.calls != 1 {
		t.Errorf("existence checked %d times; want 1", existence.calls)
	}
	if len(persistence.deleted) != 1 || persistence.deleted[0] != "42" {
		t.Errorf("deleted = %v; a gone listing must be tombstoned", persistence.deleted)
	}
}

func TestRefreshOneForbiddenLiveListing(t *testing.T) {
	fakeCal := &fakeCalendar{errFor: map[string]error{"42": domain.NewAPIError(domain.ErrKindForbidden, "denied")}}
	existence := &fakeExistence{exists: true}
	persistence := newFakePersistence()

	uc := newRefreshUC(fakeCal, &fakePricing{}, existence, persistence)
	err := uc.RefreshOne(context.Background(), "42")
	if err == nil {
		t.Fatal("a 403 on a listing whose public page is live must surface as an error")
	}
	if len(persistence.deleted) != 0 {
		t.Errorf("deleted = %v; a live listing must not be tombstoned", persistence.deleted)
	}
}

func TestRefreshOneOtherErrorPropagates(t *testing.T) {
	fakeCal := &fakeCalendar{errFor: map[string]error{"42": errors.New("boom")}}
	existence := &fakeExistence{}
	persistence := newFakePersistence()

	uc := newRefreshUC(fakeCal, &fakePricing{}, existence, persistence)
	if err := uc.RefreshOne(context.Background(), "42"); err == nil {
		t.Fatal("expected error")
	}
	if existence.calls != 0 {
		t.Error("existence check is reserved for 403s")
	}
}

func TestExecuteAllIsolatesFailures(t *testing.T) {
	good := domain.BookingCalendar{}
	runOf(good, "2026-04-01", 14, false)

	fakeCal := &fakeCalendar{
		calendars: map[string]domain.BookingCalendar{"1": good, "3": good},
		minNights: 2, maxNights: 30,
		errFor: map[string]error{"2": errors.New("boom")},
	}
	pricing := &fakePricing{quotes: map[int]*domain.PricingQuote{
		2: {Nights: 2, PriceNightly: 80},
		7: {Nights: 7, PriceNightly: 80},
	}}
	persistence := newFakePersistence()
	persistence.staleIDs = []string{"1", "2", "3"}

	uc := newRefreshUC(fakeCal, pricing, &fakeExistence{}, persistence)
	if err := uc.ExecuteAll(context.Background(), 24*time.Hour); err != nil {
		t.Fatalf("ExecuteAll: %v", err)
	}

	for _, id := range []string{"1", "3"} {
		if _, ok := persistence.calendars[id]; !ok {
			t.Errorf("listing %s was not refreshed; one failing listing must not stop the sweep", id)
		}
	}
}

func TestInspectDoesNotPersist(t *testing.T) {
	calendar := domain.BookingCalendar{}
	runOf(calendar, "2026-04-01", 14, false)

	fakeCal := &fakeCalendar{
		calendars: map[string]domain.BookingCalendar{"42": calendar},
		minNights: 2, maxNights: 30,
	}
	pricing := &fakePricing{quotes: map[int]*domain.PricingQuote{
		2: {Nights: 2, PriceNightly: 80},
		7: {Nights: 7, PriceNightly: 80},
	}}
	persistence := newFakePersistence()

	uc := newRefreshUC(fakeCal, pricing, &fakeExistence{}, persistence)
	cal, quotes, err := uc.Inspect(context.Background(), "42")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if len(cal) != 14 {
		t.Errorf("calendar has %d days; want 14", len(cal))
	}
	if len(quotes) != 2 {
		t.Errorf("got %d quotes; want the 2- and 7-night tiers", len(quotes))
	}
	if len(persistence.calendars) != 0 || len(persistence.pricing) != 0 {
		t.Error("Inspect must not touch storage")
	}
}

func TestRateProbeProbesLongestCandidateFirst(t *testing.T) {
	pricing := &fakePricing{quotes: map[int]*domain.PricingQuote{7: {Nights: 7}}}
	prober := newRateProber(pricing)
	prober.transportBackoff = 0

	short := rangeFrom("2026-04-01", 8)
	long := rangeFrom("2026-06-01", 20)
	quotes := prober.probe(context.Background(), "42", []domain.DateRange{short, long}, 7, 7)

	if len(quotes) != 1 || quotes[7] == nil {
		t.Fatalf("quotes = %v; want the 7-night tier", quotes)
	}
	if len(pricing.calls) == 0 || pricing.calls[0] != "2026-06-01..2026-06-08" {
		t.Errorf("calls = %v; the longest open run must be probed first", pricing.calls)
	}
}

func TestRateProbeSkipsTiersOutsideConstraints(t *testing.T) {
	pricing := &fakePricing{quotes: map[int]*domain.PricingQuote{
		3: {Nights: 3}, 7: {Nights: 7}, 28: {Nights: 28},
	}}
	prober := newRateProber(pricing)
	prober.transportBackoff = 0

	// max 10 nights: the 28-night tier must never be requested
	quotes := prober.probe(context.Background(), "42",
		[]domain.DateRange{rangeFrom("2026-04-01", 30)}, 3, 10)

	if _, ok := quotes[28]; ok {
		t.Error("the 28-night tier exceeds maxNights and must be skipped")
	}
	if len(quotes) != 2 {
		t.Errorf("quotes = %v; want the 3- and 7-night tiers", quotes)
	}
}

func rangeFrom(start string, days int) domain.DateRange {
	day, err := time.Parse(domain.ISODate, start)
	if err != nil {
		panic(fmt.Sprintf("bad test date %q: %v", start, err))
	}
	return domain.DateRange{Start: day, End: day.AddDate(0, 0, days), Length: days}
}
