package rest

// SearchRequest triggers a search scrape run.
type SearchRequest struct {
	Query     string   `json:"query"`
	Checkin   string   `json:"checkin,omitempty"`
	Checkout  string   `json:"checkout,omitempty"`
	PriceMin  int      `json:"price_min,omitempty"`
	PriceMax  int      `json:"price_max,omitempty"`
	RoomTypes []string `json:"room_types,omitempty"`
}

// RefreshRequest triggers a calendar refresh run. With a listing id only that
// listing is refreshed; without one every stale listing is.
type RefreshRequest struct {
	ListingID string `json:"listing_id,omitempty"`
	// UpdatedWithin overrides the staleness window, e.g. "24h".
	UpdatedWithin string `json:"updated_within,omitempty"`
}

// RunResponse acknowledges an accepted background run.
type RunResponse struct {
	RunID string `json:"run_id"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}
