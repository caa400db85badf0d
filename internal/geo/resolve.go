package geo

import (
	"context"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

// ReverseGeocoder is what Resolver needs from the geocoding backend.
type ReverseGeocoder interface {
	Reverse(ctx context.Context, lat, lon float64) (Address, bool)
	IsCity(ctx context.Context, name, country string) bool
}

// Resolver reconciles the several conflicting location names a search result
// carries into one city and neighborhood.
type Resolver struct {
	geocoder ReverseGeocoder
}

func NewResolver(geocoder ReverseGeocoder) *Resolver {
	return &Resolver{geocoder: geocoder}
}

// Resolve determines the actual city and neighborhood of a search result.
// The fast path trusts the reported city when it matches the searched city;
// otherwise the public address components are cross-checked and, as a last
// resort, the coordinates are reverse-geocoded.
func (r *Resolver) Resolve(ctx context.Context, summary domain.ListingSummary, geography domain.Geography) (string, string) {
	searchCity := geography.City
	city := capitalizeFirst(summary.City)
	neighborhood := summary.Neighborhood
	localizedCity := capitalizeFirst(summary.LocalizedCity)
	localizedNeighborhood := summary.LocalizedNeighborhood

	if searchCity == city {
		return city, firstNonEmpty(localizedNeighborhood, neighborhood)
	}
	if searchCity == localizedCity {
		city = localizedCity
	}

	var addressCity, addressNeighborhood string
	var unknown []string
	for _, component := range splitAddress(summary.PublicAddress) {
		switch {
		case component == searchCity:
			addressCity = component
		case component == localizedNeighborhood:
			addressNeighborhood = component
		case isRegionName(component, geography):
			// countries and state/province subdivisions carry no city signal
		default:
			unknown = append(unknown, component)
		}
	}

	if addressCity != "" && localizedNeighborhood != "" {
		return addressCity, localizedNeighborhood
	}
	if len(unknown) == 0 {
		return firstNonEmpty(addressCity, city), neighborhood
	}
	if len(unknown) == 1 && addressCity != "" && addressNeighborhood == "" {
		addressNeighborhood = unknown[0]
	}

	reverse, ok := r.geocoder.Reverse(ctx, summary.Latitude, summary.Longitude)
	if ok {
		switch reverse.City {
		case searchCity, city, localizedCity:
			return reverse.City, localizedNeighborhood
		}
		if r.geocoder.IsCity(ctx, reverse.City, reverse.Country) {
			return reverse.City, localizedNeighborhood
		}
		if r.geocoder.IsCity(ctx, firstNonEmpty(city, localizedCity), reverse.Country) {
			return firstNonEmpty(city, localizedCity), neighborhood
		}
	}

	return city, neighborhood
}

func splitAddress(publicAddress string) []string {
	var components []string
	for _, part := range strings.Split(publicAddress, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			components = append(components, trimmed)
		}
	}
	return components
}

func isRegionName(component string, geography domain.Geography) bool {
	for _, region := range []string{geography.Country, geography.State, geography.Province} {
		if region != "" && strings.EqualFold(component, region) {
			return true
		}
	}
	return false
}

var titleCaser = cases.Title(language.Und)

// capitalizeFirst title-cases the leading letter only; the rest of a city
// name is left alone so particles like "de" keep their casing.
func capitalizeFirst(name string) string {
	runes := []rune(name)
	if len(runes) == 0 {
		return name
	}
	return titleCaser.String(string(runes[:1])) + string(runes[1:])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
