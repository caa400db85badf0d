package airbnb

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
)

const (
	apiHost       = "www.airbnb.com"
	defaultLocale = "en"
)

// buildURL assembles an https URL on the marketplace host.
func buildURL(path string, query url.Values) string {
	u := url.URL{Scheme: "https", Host: apiHost, Path: path}
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// compactJSON serializes v without any whitespace. The upstream API expects
// the variables/extensions sub-fields embedded as compact JSON *strings*, not
// nested objects, byte-for-byte.
func compactJSON(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to serialize query param: %w", err)
	}
	return string(raw), nil
}

// persistedQuery references a server-side-cached GraphQL operation by hash.
func persistedQuery(sha256Hash string) map[string]interface{} {
	return map[string]interface{}{
		"persistedQuery": map[string]interface{}{
			"version":    1,
			"sha256Hash": sha256Hash,
		},
	}
}

// ProductID derives the checkout product id from a listing id.
func ProductID(listingID string) string {
	return base64.StdEncoding.EncodeToString([]byte("StayListing:" + listingID))
}

// ListingURL is the public page of a listing.
func ListingURL(listingID string) string {
	return buildURL("/rooms/"+listingID, nil)
}
