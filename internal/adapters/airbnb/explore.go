package airbnb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const (
	explorePath = "/api/v3/ExploreSearch"
	exploreHash = "13aa9971e70fbf5ab888f2a851c765ea098d8ae68c81e1f4ce06e2046d91b6ea"

	listingsGridSection = "listings_ListingsGrid_Explore"
)

// Explore drives the paginated search endpoint.
type Explore struct {
	client   *Client
	currency string
	locale   string
}

func NewExplore(client *Client, currency string) *Explore {
	return &Explore{client: client, currency: currency, locale: defaultLocale}
}

// SearchURL builds the persisted-query search URL. The variables and
// extensions params are appended as pre-serialized compact JSON strings, the
// way the upstream contract requires.
func (e *Explore) SearchURL(query string, filters domain.SearchFilters) (string, error) {
	request := map[string]interface{}{
		"metadataOnly":          false,
		"version":               "1.7.9",
		"itemsPerGrid":          200,
		"tabId":                 "home_tab",
		"refinementPaths":       []string{"/homes"},
		"source":                "structured_search_input_header",
		"searchType":            "filter_change",
		"query":                 query,
		"cdnCacheSafe":          false,
		"simpleSearchTreatment": "simple_search_only",
		"treatmentFlags": []string{
			"simple_search_1_1",
			"simple_search_desktop_v3_full_bleed",
			"flexible_dates_options_extend_one_three_seven_days",
		},
		"screenSize": "large",
	}
	applyFilters(request, filters)

	variables, err := compactJSON(map[string]interface{}{"request": request})
	if err != nil {
		return "", err
	}
	extensions, err := compactJSON(persistedQuery(exploreHash))
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("operationName", "ExploreSearch")
	q.Set("locale", e.locale)
	q.Set("currency", e.currency)
	q.Set("variables", variables)
	q.Set("extensions", extensions)

	return buildURL(explorePath, q), nil
}

func applyFilters(request map[string]interface{}, filters domain.SearchFilters) {
	if len(filters.RoomTypes) > 0 {
		request["roomTypes"] = filters.RoomTypes
	}
	if filters.Checkin != "" {
		request["checkin"] = filters.Checkin
		request["checkout"] = filters.Checkout
	}
	if filters.PriceMin > 0 {
		request["priceMin"] = filters.PriceMin
	}
	if filters.PriceMax > 0 {
		request["priceMax"] = filters.PriceMax
	}
	if filters.NeLat != "" {
		request["ne_lat"] = filters.NeLat
		request["ne_lng"] = filters.NeLng
		request["sw_lat"] = filters.SwLat
		request["sw_lng"] = filters.SwLng
	}
	if filters.ItemsOffset > 0 {
		request["itemsOffset"] = filters.ItemsOffset
	}
}

type exploreResponse struct {
	Data struct {
		Dora struct {
			ExploreV3 struct {
				Metadata struct {
					PaginationMetadata struct {
						HasNextPage bool `json:"hasNextPage"`
						ItemsOffset int  `json:"itemsOffset"`
						TotalCount  int  `json:"totalCount"`
					} `json:"paginationMetadata"`
					Geography struct {
						FullAddress string `json:"fullAddress"`
						City        string `json:"city"`
						Country     string `json:"country"`
						State       string `json:"state"`
						Province    string `json:"province"`
						PlaceID     string `json:"placeId"`
					} `json:"geography"`
				} `json:"metadata"`
				Sections []exploreSection `json:"sections"`
			} `json:"exploreV3"`
		} `json:"dora"`
	} `json:"data"`
}

type exploreSection struct {
	SectionComponentType string        `json:"sectionComponentType"`
	Items                []exploreItem `json:"items"`
}

type exploreItem struct {
	Listing      exploreListing       `json:"listing"`
	PricingQuote *explorePricingQuote `json:"pricingQuote"`
}

type exploreListing struct {
	ID                    string  `json:"id"`
	AvgRating             float64 `json:"avgRating"`
	Bathrooms             float64 `json:"bathrooms"`
	Bedrooms              int     `json:"bedrooms"`
	Beds                  int     `json:"beds"`
	IsBusinessTravelReady bool    `json:"isBusinessTravelReady"`
	City                  string  `json:"city"`
	Lat                   float64 `json:"lat"`
	Lng                   float64 `json:"lng"`
	Name                  string  `json:"name"`
	Neighborhood          string  `json:"neighborhood"`
	NeighborhoodOverview  string  `json:"neighborhoodOverview"`
	PersonCapacity        int     `json:"personCapacity"`
	PictureCount          int     `json:"pictureCount"`
	ReviewsCount          int     `json:"reviewsCount"`
	RoomAndPropertyType   string  `json:"roomAndPropertyType"`
	RoomType              string  `json:"roomType"`
	RoomTypeCategory      string  `json:"roomTypeCategory"`
	StarRating            float64 `json:"starRating"`
	PublicAddress         string  `json:"publicAddress"`
	LocalizedCity         string  `json:"localizedCity"`
	LocalizedNeighborhood string  `json:"localizedNeighborhood"`
	User                  struct {
		ID int64 `json:"id"`
	} `json:"user"`
	ContextualPictures []struct {
		Picture string `json:"picture"`
	} `json:"contextualPictures"`
}

type explorePricingQuote struct {
	MonthlyPriceFactor         *float64 `json:"monthlyPriceFactor"`
	WeeklyPriceFactor          *float64 `json:"weeklyPriceFactor"`
	StructuredStayDisplayPrice struct {
		PrimaryLine struct {
			Price           string `json:"price"`
			DiscountedPrice string `json:"discountedPrice"`
			Qualifier       string `json:"qualifier"`
		} `json:"primaryLine"`
		SecondaryLine *struct {
			Price string `json:"price"`
		} `json:"secondaryLine"`
	} `json:"structuredStayDisplayPrice"`
}

// Search fetches one result page and extracts pagination metadata, geography
// and the per-listing summaries from the listings-grid sections.
func (e *Explore) Search(ctx context.Context, urlStr string) (*domain.SearchPage, error) {
	body, err := e.client.Request(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, err
	}

	var resp exploreResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("explore: failed to parse search response: %w", err)
	}

	explore := resp.Data.Dora.ExploreV3
	page := &domain.SearchPage{
		URL: urlStr,
		Pagination: domain.Pagination{
			HasNextPage: explore.Metadata.PaginationMetadata.HasNextPage,
			ItemsOffset: explore.Metadata.PaginationMetadata.ItemsOffset,
			TotalCount:  explore.Metadata.PaginationMetadata.TotalCount,
		},
		Geography: domain.Geography{
			FullAddress: strings.TrimSpace(explore.Metadata.Geography.FullAddress),
			City:        strings.TrimSpace(explore.Metadata.Geography.City),
			Country:     strings.TrimSpace(explore.Metadata.Geography.Country),
			State:       strings.TrimSpace(explore.Metadata.Geography.State),
			Province:    strings.TrimSpace(explore.Metadata.Geography.Province),
			PlaceID:     explore.Metadata.Geography.PlaceID,
		},
	}

	for _, section := range explore.Sections {
		if section.SectionComponentType != listingsGridSection {
			continue
		}
		for _, item := range section.Items {
			page.Items = append(page.Items, domain.SearchResultItem{
				ID:      item.Listing.ID,
				Summary: toSummary(item),
			})
		}
	}

	return page, nil
}

func toSummary(item exploreItem) domain.ListingSummary {
	listing := item.Listing
	summary := domain.ListingSummary{
		AvgRating:            listing.AvgRating,
		Bathrooms:            listing.Bathrooms,
		Bedrooms:             listing.Bedrooms,
		Beds:                 listing.Beds,
		BusinessTravelReady:  listing.IsBusinessTravelReady,
		City:                 listing.City,
		HostID:               listing.User.ID,
		Latitude:             listing.Lat,
		Longitude:            listing.Lng,
		Name:                 listing.Name,
		Neighborhood:         listing.Neighborhood,
		NeighborhoodOverview: listing.NeighborhoodOverview,
		PersonCapacity:       listing.PersonCapacity,
		PhotoCount:           listing.PictureCount,
		ReviewCount:          listing.ReviewsCount,
		RoomAndPropertyType:  listing.RoomAndPropertyType,
		RoomType:             listing.RoomType,
		RoomTypeCategory:     listing.RoomTypeCategory,
		StarRating:           listing.StarRating,

		PublicAddress:         listing.PublicAddress,
		LocalizedCity:         listing.LocalizedCity,
		LocalizedNeighborhood: listing.LocalizedNeighborhood,
	}
	for _, p := range listing.ContextualPictures {
		summary.Photos = append(summary.Photos, p.Picture)
	}

	if quote := item.PricingQuote; quote != nil {
		summary.MonthlyPriceFactor = quote.MonthlyPriceFactor
		summary.WeeklyPriceFactor = quote.WeeklyPriceFactor
		summary.PriceRateType = quote.StructuredStayDisplayPrice.PrimaryLine.Qualifier
		if rate, ok := parsePriceAmount(primaryPrice(quote)); ok {
			summary.PriceRate = &rate
		}
		if total, ok := parsePriceAmount(totalPrice(quote)); ok {
			summary.TotalPrice = &total
		}
	}

	return summary
}

func primaryPrice(quote *explorePricingQuote) string {
	if quote.StructuredStayDisplayPrice.PrimaryLine.Price != "" {
		return quote.StructuredStayDisplayPrice.PrimaryLine.Price
	}
	return quote.StructuredStayDisplayPrice.PrimaryLine.DiscountedPrice
}

func totalPrice(quote *explorePricingQuote) string {
	if quote.StructuredStayDisplayPrice.SecondaryLine != nil {
		return quote.StructuredStayDisplayPrice.SecondaryLine.Price
	}
	return primaryPrice(quote)
}

// parsePriceAmount extracts the integer amount from a display price like
// "$1,234 night".
func parsePriceAmount(price string) (int, bool) {
	var digits strings.Builder
	for _, r := range price {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	if digits.Len() == 0 {
		return 0, false
	}
	amount, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0, false
	}
	return amount, true
}

// CarriedFilters parses the server-normalized filter values back out of the
// request URL a page was actually fetched with. The server fills in
// normalized check-in/out dates and price bounds that the next page request
// must carry forward.
func (e *Explore) CarriedFilters(urlStr string) (domain.CarriedFilters, error) {
	var carried domain.CarriedFilters

	parsed, err := url.Parse(urlStr)
	if err != nil {
		return carried, fmt.Errorf("explore: failed to parse request URL: %w", err)
	}
	q := parsed.Query()

	var variables struct {
		Request struct {
			Checkin  string `json:"checkin"`
			Checkout string `json:"checkout"`
			PriceMin *int   `json:"priceMin"`
			PriceMax *int   `json:"priceMax"`
			NeLat    string `json:"ne_lat"`
			NeLng    string `json:"ne_lng"`
			SwLat    string `json:"sw_lat"`
			SwLng    string `json:"sw_lng"`
		} `json:"request"`
	}
	if raw := q.Get("variables"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &variables); err != nil {
			return carried, fmt.Errorf("explore: failed to parse variables of request URL: %w", err)
		}
	}

	carried.Checkin = variables.Request.Checkin
	carried.Checkout = variables.Request.Checkout
	carried.PriceMin = variables.Request.PriceMin
	carried.PriceMax = variables.Request.PriceMax
	carried.NeLat = variables.Request.NeLat
	carried.NeLng = variables.Request.NeLng
	carried.SwLat = variables.Request.SwLat
	carried.SwLng = variables.Request.SwLng

	return carried, nil
}
