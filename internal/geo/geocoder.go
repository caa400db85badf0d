// Package geo resolves the real city and neighborhood of a listing. The
// search API routinely puts boroughs or districts into the city field, or
// returns listings from neighboring cities entirely, so coordinates are
// reverse-geocoded through Nominatim when the reported names disagree.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"
)

const nominatimHost = "nominatim.openstreetmap.org"

// Address is a reverse-geocoded location.
type Address struct {
	City    string
	Country string
}

// Geocoder queries Nominatim with the mandated one-request-per-second pacing.
type Geocoder struct {
	httpClient *http.Client
	userAgent  string

	mu       sync.Mutex
	lastCall time.Time
	minDelay time.Duration
}

func NewGeocoder() *Geocoder {
	return &Geocoder{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		userAgent:  fmt.Sprintf("stl-scraper-%d", rand.Intn(10000)+1),
		minDelay:   time.Second,
	}
}

type nominatimReverse struct {
	Address struct {
		City    string `json:"city"`
		Town    string `json:"town"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

type nominatimSearchResult struct {
	Type string `json:"type"`
}

// Reverse resolves coordinates to an address. The city field falls back to
// town, then state, the way smaller places are reported. Returns ok=false on
// any failure; resolution is best-effort.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (Address, bool) {
	q := url.Values{}
	q.Set("lat", fmt.Sprintf("%f", lat))
	q.Set("lon", fmt.Sprintf("%f", lon))
	q.Set("format", "jsonv2")
	q.Set("accept-language", "en")

	body, err := g.get(ctx, "/reverse", q)
	if err != nil {
		return Address{}, false
	}

	var result nominatimReverse
	if err := json.Unmarshal(body, &result); err != nil {
		return Address{}, false
	}

	city := result.Address.City
	if city == "" {
		city = result.Address.Town
	}
	if city == "" {
		city = result.Address.State
	}
	if city == "" {
		return Address{}, false
	}
	return Address{City: city, Country: result.Address.Country}, true
}

// IsCity reports whether Nominatim knows name as a city of the given country.
func (g *Geocoder) IsCity(ctx context.Context, name, country string) bool {
	if name == "" {
		return false
	}

	q := url.Values{}
	q.Set("city", name)
	q.Set("country", country)
	q.Set("format", "jsonv2")
	q.Set("limit", "1")

	body, err := g.get(ctx, "/search", q)
	if err != nil {
		return false
	}

	var results []nominatimSearchResult
	if err := json.Unmarshal(body, &results); err != nil || len(results) == 0 {
		return false
	}
	return results[0].Type == "city"
}

func (g *Geocoder) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	g.throttle(ctx)

	u := url.URL{Scheme: "https", Host: nominatimHost, Path: path, RawQuery: query.Encode()}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geocoder: unexpected status %d from %s", resp.StatusCode, path)
	}
	return io.ReadAll(resp.Body)
}

func (g *Geocoder) throttle(ctx context.Context) {
	g.mu.Lock()
	wait := g.minDelay - time.Since(g.lastCall)
	g.lastCall = time.Now().Add(wait)
	g.mu.Unlock()

	if wait <= 0 {
		return
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
