package contracts

import (
	"testing"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

func validListing() domain.Listing {
	return domain.Listing{
		ID:        "123",
		Name:      "A flat",
		URL:       "https://www.airbnb.com/rooms/123",
		ProductID: "StayListing:123",
		Source:    domain.Source,
		UpdatedAt: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
		Latitude:  40.4,
		Longitude: -3.7,
	}
}

func TestValidateListing(t *testing.T) {
	if err := ValidateListing(validListing()); err != nil {
		t.Fatalf("ValidateListing: %v", err)
	}
}

func TestValidateListingRejectsBadDocuments(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.Listing)
	}{
		{"missing id", func(l *domain.Listing) { l.ID = "" }},
		{"wrong source", func(l *domain.Listing) { l.Source = "bookings" }},
		{"latitude out of range", func(l *domain.Listing) { l.Latitude = 91 }},
		{"longitude out of range", func(l *domain.Listing) { l.Longitude = -200 }},
	}
	for _, tt := range tests {
		listing := validListing()
		tt.mutate(&listing)
		if err := ValidateListing(listing); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
