package domain

import "time"

// Source is the marketplace tag stamped on every scraped listing.
const Source = "airbnb"

// GeoPoint is the stored coordinate pair (geo_point in the search index).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Review is one normalized listing review.
type Review struct {
	Comments  string `json:"comments"`
	CreatedAt string `json:"created_at"`
	Language  string `json:"language"`
	Rating    int    `json:"rating"`
	Response  string `json:"response"`
}

// Geography is the normalized location metadata of one search.
type Geography struct {
	FullAddress string `json:"full_address"`
	City        string `json:"city"`
	Country     string `json:"country"`
	State       string `json:"state"`
	Province    string `json:"province"`
	PlaceID     string `json:"place_id"`
}

// ListingSummary holds the partial attributes harvested from a search-result
// section. The detail endpoint does not repeat this data, so it must be cached
// before the per-listing detail call and read back when assembling the final
// Listing.
type ListingSummary struct {
	AvgRating            float64
	Bathrooms            float64
	Bedrooms             int
	Beds                 int
	BusinessTravelReady  bool
	City                 string
	HostID               int64
	Latitude             float64
	Longitude            float64
	Name                 string
	Neighborhood         string
	NeighborhoodOverview string
	PersonCapacity       int
	PhotoCount           int
	Photos               []string
	ReviewCount          int
	RoomAndPropertyType  string
	RoomType             string
	RoomTypeCategory     string
	StarRating           float64

	// raw location hints used to resolve the real city and neighborhood
	PublicAddress         string
	LocalizedCity         string
	LocalizedNeighborhood string

	// pricing snapshot from the search-result quote, when present
	MonthlyPriceFactor *float64
	WeeklyPriceFactor  *float64
	PriceRate          *int
	PriceRateType      string
	TotalPrice         *int
}

// Listing is the merged document assembled from the search summary, the
// detail page, reviews and pricing. Owned by the persistence layer once
// stored; keyed by ID.
type Listing struct {
	ID                   string    `json:"id"`
	Name                 string    `json:"name"`
	URL                  string    `json:"url"`
	ProductID            string    `json:"product_id"`
	Source               string    `json:"source"`
	UpdatedAt            time.Time `json:"updated_at"`
	Deleted              bool      `json:"deleted"`
	City                 string    `json:"city,omitempty"`
	Neighborhood         string    `json:"neighborhood,omitempty"`
	NeighborhoodOverview string    `json:"neighborhood_overview,omitempty"`
	Country              string    `json:"country,omitempty"`
	State                string    `json:"state,omitempty"`
	Province             string    `json:"province,omitempty"`
	PlaceID              string    `json:"place_id,omitempty"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	Coordinates          GeoPoint  `json:"coordinates"`
	Geohash              string    `json:"geohash,omitempty"`

	RoomType            string `json:"room_type,omitempty"`
	RoomTypeCategory    string `json:"room_type_category,omitempty"`
	RoomAndPropertyType string `json:"room_and_property_type,omitempty"`
	PersonCapacity      int    `json:"person_capacity"`
	Bedrooms            int    `json:"bedrooms"`
	Beds                int    `json:"beds"`
	Bathrooms           float64 `json:"bathrooms"`

	Amenities  []string `json:"amenities,omitempty"`
	AmenityIDs []int    `json:"amenity_ids,omitempty"`
	Access     string   `json:"access,omitempty"`

	Description          string   `json:"description,omitempty"`
	HouseRules           []string `json:"house_rules,omitempty"`
	AdditionalHouseRules string   `json:"additional_house_rules,omitempty"`
	ListingExpectations  string   `json:"listing_expectations,omitempty"`
	Transit              string   `json:"transit,omitempty"`
	Interaction          string   `json:"interaction,omitempty"`
	AllowsEvents         bool     `json:"allows_events"`
	IsHotel              bool     `json:"is_hotel"`
	CanInstantBook       bool     `json:"can_instant_book"`
	BusinessTravelReady  bool     `json:"business_travel_ready"`

	HostID     int64    `json:"host_id"`
	PhotoCount int      `json:"photo_count"`
	Photos     []string `json:"photos,omitempty"`

	AvgRating           float64 `json:"avg_rating"`
	StarRating          float64 `json:"star_rating"`
	RatingAccuracy      float64 `json:"rating_accuracy"`
	RatingCheckin       float64 `json:"rating_checkin"`
	RatingCleanliness   float64 `json:"rating_cleanliness"`
	RatingCommunication float64 `json:"rating_communication"`
	RatingLocation      float64 `json:"rating_location"`
	RatingValue         float64 `json:"rating_value"`
	SatisfactionGuest   float64 `json:"satisfaction_guest"`
	ReviewCount         int     `json:"review_count"`
	Reviews             []Review `json:"reviews,omitempty"`

	PriceRate          *int     `json:"price_rate,omitempty"`
	PriceRateType      string   `json:"price_rate_type,omitempty"`
	TotalPrice         *int     `json:"total_price,omitempty"`
	MonthlyPriceFactor *float64 `json:"monthly_price_factor,omitempty"`
	WeeklyPriceFactor  *float64 `json:"weekly_price_factor,omitempty"`

	PriceNightly    *float64 `json:"price_nightly,omitempty"`
	PriceCleaning   *float64 `json:"price_cleaning,omitempty"`
	DiscountWeekly  *float64 `json:"discount_weekly,omitempty"`
	DiscountMonthly *float64 `json:"discount_monthly,omitempty"`
	NightsMin       int      `json:"nights_min,omitempty"`
	NightsMax       int      `json:"nights_max,omitempty"`

	Bookings []Booking `json:"bookings,omitempty"`
}
