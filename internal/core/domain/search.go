package domain

// SearchFilters is the immutable filter state of one search run. Pagination
// replaces it each iteration with a merged copy instead of mutating in place,
// so concurrent runs and tests stay deterministic.
type SearchFilters struct {
	RoomTypes   []string
	Checkin     string
	Checkout    string
	PriceMin    int
	PriceMax    int
	NeLat       string
	NeLng       string
	SwLat       string
	SwLng       string
	ItemsOffset int
}

// CarriedFilters is the subset of filters the server normalizes and returns in
// the request URL it actually used (check-in/out dates, price bounds, map
// bounding box). Pagination must carry these forward to the next page request.
type CarriedFilters struct {
	Checkin  string
	Checkout string
	PriceMin *int
	PriceMax *int
	NeLat    string
	NeLng    string
	SwLat    string
	SwLng    string
}

// Merge returns a copy of f with the server-normalized values applied.
func (f SearchFilters) Merge(carried CarriedFilters) SearchFilters {
	next := f
	if carried.Checkin != "" {
		next.Checkin = carried.Checkin
		next.Checkout = carried.Checkout
	}
	if carried.PriceMin != nil {
		next.PriceMin = *carried.PriceMin
	}
	if carried.PriceMax != nil {
		next.PriceMax = *carried.PriceMax
	}
	if carried.NeLat != "" {
		next.NeLat = carried.NeLat
	}
	if carried.NeLng != "" {
		next.NeLng = carried.NeLng
	}
	if carried.SwLat != "" {
		next.SwLat = carried.SwLat
	}
	if carried.SwLng != "" {
		next.SwLng = carried.SwLng
	}
	return next
}

// WithOffset returns a copy of f positioned at the given pagination offset.
func (f SearchFilters) WithOffset(offset int) SearchFilters {
	next := f
	next.ItemsOffset = offset
	return next
}

// Pagination is the server-reported page state of one search response.
type Pagination struct {
	HasNextPage bool
	ItemsOffset int
	TotalCount  int
}

// SearchResultItem is one listing row of a search-result section: the id plus
// the summary data the detail endpoint will not repeat.
type SearchResultItem struct {
	ID      string
	Summary ListingSummary
}

// SearchPage is one parsed Explore response.
type SearchPage struct {
	Items      []SearchResultItem
	Pagination Pagination
	Geography  Geography
	// URL is the request URL this page was actually fetched with; the
	// pipeline parses server-normalized filters back out of it.
	URL string
}
