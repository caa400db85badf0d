package airbnb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const pdpFixture = `{
  "data": {"merlin": {"pdpSections": {
    "id": "555",
    "sections": [
      {"sectionId": "AMENITIES_DEFAULT", "section": {
        "seeAllAmenitiesGroups": [
          {"title": "Guest access", "amenities": [
            {"id": "pdp_v3_guest_entrance_97_0", "title": "Private entrance", "subtitle": "Separate street entrance", "available": true}
          ]},
          {"title": "Essentials", "amenities": [
            {"id": "pdp_v3_essentials_40_1", "title": "Wifi", "available": true},
            {"id": "pdp_v3_essentials_30_2", "title": "Heating", "subtitle": "Central", "available": true},
            {"id": "pdp_v3_essentials_8_3", "title": "TV", "available": false}
          ]}
        ]
      }},
      {"sectionId": "DESCRIPTION_DEFAULT", "section": {
        "htmlDescription": {"htmlText": "Bright flat<br/>near the park"}
      }},
      {"sectionId": "POLICIES_DEFAULT", "section": {
        "additionalHouseRules": "Quiet after 22:00",
        "houseRules": [
          {"title": "No smoking"},
          {"title": "No parties or events"}
        ],
        "listingExpectations": [
          {"title": "Stairs", "subtitle": "Four flights, no lift"}
        ]
      }},
      {"sectionId": "LOCATION_DEFAULT", "section": {
        "seeAllLocationDetails": [
          {"title": "Getting around", "content": {"htmlText": "Metro two blocks away"}}
        ]
      }},
      {"sectionId": "HOST_PROFILE_DEFAULT", "section": {
        "hostInfos": [
          {"title": "During your stay", "html": {"htmlText": "Available by phone"}}
        ]
      }}
    ],
    "metadata": {
      "bookingPrefetchData": {"canInstantBook": true, "isHotelRatePlanEnabled": false},
      "loggingContext": {"eventDataLogging": {
        "accuracyRating": 4.9, "cleanlinessRating": 4.8, "guestSatisfactionOverall": 4.85
      }}
    }
  }}}
}`

func TestGetListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(pdpFixture))
	}))
	defer server.Close()

	pdp := NewPdp(testClientFor(t, server), "USD")
	pdp.now = func() time.Time { return time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC) }

	summary := domain.ListingSummary{
		Name:      "Bright flat",
		City:      "Madrid",
		Latitude:  40.4,
		Longitude: -3.7,
		HostID:    987,
	}
	geography := domain.Geography{Country: "Spain", City: "Madrid"}
	reviews := []domain.Review{{Comments: "great", Rating: 5}}

	listing, err := pdp.GetListing(context.Background(), "555", summary, geography, reviews)
	if err != nil {
		t.Fatalf("GetListing: %v", err)
	}

	if listing.ID != "555" || listing.Name != "Bright flat" {
		t.Errorf("identity = %q/%q", listing.ID, listing.Name)
	}
	if listing.Country != "Spain" || listing.City != "Madrid" {
		t.Errorf("location = %q/%q", listing.Country, listing.City)
	}
	if !listing.CanInstantBook || listing.IsHotel {
		t.Errorf("booking flags = %t/%t", listing.CanInstantBook, listing.IsHotel)
	}
	if listing.SatisfactionGuest != 4.85 {
		t.Errorf("guest satisfaction = %v", listing.SatisfactionGuest)
	}
	if len(listing.Reviews) != 1 {
		t.Errorf("reviews = %v", listing.Reviews)
	}

	wantAmenities := []string{
		"Private entrance - Separate street entrance",
		"Wifi",
		"Heating - Central",
	}
	if !reflect.DeepEqual(listing.Amenities, wantAmenities) {
		t.Errorf("amenities = %v; want %v (unavailable ones dropped)", listing.Amenities, wantAmenities)
	}
	if !reflect.DeepEqual(listing.AmenityIDs, []int{97, 40, 30}) {
		t.Errorf("amenity ids = %v; want [97 40 30]", listing.AmenityIDs)
	}
	if listing.Access != "Private entrance: Separate street entrance" {
		t.Errorf("access = %q", listing.Access)
	}

	if listing.Description != "Bright flat\nnear the park" {
		t.Errorf("description = %q; <br/> must become a newline", listing.Description)
	}
	if !reflect.DeepEqual(listing.HouseRules, []string{"No smoking", "No parties or events"}) {
		t.Errorf("house rules = %v", listing.HouseRules)
	}
	if !listing.AllowsEvents {
		t.Error("AllowsEvents must be set when the parties rule is present")
	}
	if listing.AdditionalHouseRules != "Quiet after 22:00" {
		t.Errorf("additional rules = %q", listing.AdditionalHouseRules)
	}
	if listing.ListingExpectations != "Stairs: Four flights, no lift" {
		t.Errorf("expectations = %q", listing.ListingExpectations)
	}
	if listing.Transit != "Metro two blocks away" {
		t.Errorf("transit = %q", listing.Transit)
	}
	if listing.Interaction != "Available by phone" {
		t.Errorf("interaction = %q", listing.Interaction)
	}
	if !listing.UpdatedAt.Equal(time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("updated at = %v", listing.UpdatedAt)
	}
}

func TestGetListingEmptyResponseIsDataShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"merlin":{"pdpSections":{}}}}`))
	}))
	defer server.Close()

	pdp := NewPdp(testClientFor(t, server), "USD")
	_, err := pdp.GetListing(context.Background(), "555", domain.ListingSummary{}, domain.Geography{}, nil)
	if !domain.IsDataShape(err) {
		t.Fatalf("err = %v; want data-shape error", err)
	}
}

func TestAmenityID(t *testing.T) {
	tests := []struct {
		in   string
		want int
		ok   bool
	}{
		{"pdp_v3_essentials_40_1", 40, true},
		{"pdp_v3_guest_entrance_97_0", 97, true},
		{"no-digits-here", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := amenityID(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("amenityID(%q) = %d, %t; want %d, %t", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
