package airbnb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/htmltext"
)

const (
	pdpPath = "/api/v3/PdpPlatformSections"
	pdpHash = "625a4ba56ba72f8e8585d60078eb95ea0030428cac8772fde09de073da1bcdd0"
)

// Section ids of the detail-page sections the parser consumes.
const (
	sectionAmenities   = "AMENITIES_DEFAULT"
	sectionDescription = "DESCRIPTION_DEFAULT"
	sectionHostProfile = "HOST_PROFILE_DEFAULT"
	sectionLocation    = "LOCATION_DEFAULT"
	sectionPolicies    = "POLICIES_DEFAULT"
)

// amenityIDPattern extracts the numeric amenity id from ids like
// "pdp_v3_essentials_40_...".
var amenityIDPattern = regexp.MustCompile(`^([a-z0-9]+_)+([0-9]+)_`)

// Pdp fetches and parses one listing's detail page.
type Pdp struct {
	client   *Client
	currency string
	locale   string
	now      func() time.Time
}

func NewPdp(client *Client, currency string) *Pdp {
	return &Pdp{client: client, currency: currency, locale: defaultLocale, now: time.Now}
}

func (p *Pdp) detailURL(listingID string) (string, error) {
	request := map[string]interface{}{
		"id":                            listingID,
		"layouts":                       []string{"SIDEBAR", "SINGLE_COLUMN"},
		"pdpTypeOverride":               nil,
		"translateUgc":                  nil,
		"preview":                       false,
		"bypassTargetings":              false,
		"displayExtensions":             nil,
		"adults":                        "1",
		"children":                      nil,
		"infants":                       nil,
		"causeId":                       nil,
		"disasterId":                    nil,
		"priceDropSource":               nil,
		"promotionUuid":                 nil,
		"selectedCancellationPolicyId":  nil,
		"forceBoostPriorityMessageType": nil,
		"privateBooking":                false,
		"invitationClaimed":             false,
		"discountedGuestFeeVersion":     nil,
		"staysBookingMigrationEnabled":  false,
		"useNewSectionWrapperApi":       false,
		"previousStateCheckIn":          nil,
		"previousStateCheckOut":         nil,
		"federatedSearchId":             nil,
		"interactionType":               nil,
		"searchId":                      nil,
		"sectionIds":                    nil,
		"checkIn":                       nil,
		"checkOut":                      nil,
		"p3ImpressionId":                "p3_1608841700_z2VzPeybmBEdZG20",
	}

	variables, err := compactJSON(map[string]interface{}{"request": request})
	if err != nil {
		return "", err
	}
	extensions, err := compactJSON(persistedQuery(pdpHash))
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("operationName", "PdpPlatformSections")
	q.Set("locale", p.locale)
	q.Set("currency", p.currency)
	q.Set("variables", variables)
	q.Set("extensions", extensions)

	return buildURL(pdpPath, q), nil
}

// GetRawListing returns the unparsed detail document.
func (p *Pdp) GetRawListing(ctx context.Context, listingID string) (json.RawMessage, error) {
	urlStr, err := p.detailURL(listingID)
	if err != nil {
		return nil, err
	}
	return p.client.Request(ctx, "GET", urlStr, nil)
}

type pdpResponse struct {
	Data struct {
		Merlin struct {
			PdpSections struct {
				ID       string `json:"id"`
				Sections []struct {
					SectionID string          `json:"sectionId"`
					Section   json.RawMessage `json:"section"`
				} `json:"sections"`
				Metadata struct {
					BookingPrefetchData struct {
						CanInstantBook         bool `json:"canInstantBook"`
						IsHotelRatePlanEnabled bool `json:"isHotelRatePlanEnabled"`
					} `json:"bookingPrefetchData"`
					LoggingContext struct {
						EventDataLogging struct {
							AccuracyRating           float64 `json:"accuracyRating"`
							CheckinRating            float64 `json:"checkinRating"`
							CleanlinessRating        float64 `json:"cleanlinessRating"`
							CommunicationRating      float64 `json:"communicationRating"`
							LocationRating           float64 `json:"locationRating"`
							ValueRating              float64 `json:"valueRating"`
							GuestSatisfactionOverall float64 `json:"guestSatisfactionOverall"`
						} `json:"eventDataLogging"`
					} `json:"loggingContext"`
				} `json:"metadata"`
			} `json:"pdpSections"`
		} `json:"merlin"`
	} `json:"data"`
}

type titledEntry struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type amenitiesSection struct {
	SeeAllAmenitiesGroups []struct {
		Title     string `json:"title"`
		Amenities []struct {
			titledEntry
			Available bool `json:"available"`
		} `json:"amenities"`
	} `json:"seeAllAmenitiesGroups"`
}

type descriptionSection struct {
	HTMLDescription *struct {
		HTMLText string `json:"htmlText"`
	} `json:"htmlDescription"`
}

type policiesSection struct {
	AdditionalHouseRules string        `json:"additionalHouseRules"`
	HouseRules           []titledEntry `json:"houseRules"`
	ListingExpectations  []titledEntry `json:"listingExpectations"`
}

type locationSection struct {
	SeeAllLocationDetails []struct {
		Title   string `json:"title"`
		Content struct {
			HTMLText string `json:"htmlText"`
		} `json:"content"`
	} `json:"seeAllLocationDetails"`
}

type hostProfileSection struct {
	HostInfos []struct {
		Title string `json:"title"`
		HTML  struct {
			HTMLText string `json:"htmlText"`
		} `json:"html"`
	} `json:"hostInfos"`
}

// GetListing fetches the detail page and merges it with the cached search
// summary, search geography and previously fetched reviews into one Listing.
func (p *Pdp) GetListing(ctx context.Context, listingID string, summary domain.ListingSummary, geography domain.Geography, reviews []domain.Review) (*domain.Listing, error) {
	body, err := p.GetRawListing(ctx, listingID)
	if err != nil {
		return nil, err
	}

	var resp pdpResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pdp: failed to parse detail response for listing %s: %w", listingID, err)
	}
	pdp := resp.Data.Merlin.PdpSections
	if pdp.ID == "" {
		return nil, domain.NewAPIError(domain.ErrKindDataShape, fmt.Sprintf("pdp: detail response for listing %s has no sections", listingID))
	}

	sections := make(map[string]json.RawMessage, len(pdp.Sections))
	for _, s := range pdp.Sections {
		sections[s.SectionID] = s.Section
	}

	name := summary.Name
	if name == "" {
		name = pdp.ID
	}
	city := summary.City
	if city == "" {
		city = geography.City
	}

	logging := pdp.Metadata.LoggingContext.EventDataLogging
	listing := &domain.Listing{
		ID:                   pdp.ID,
		Name:                 name,
		URL:                  ListingURL(pdp.ID),
		ProductID:            ProductID(pdp.ID),
		Source:               domain.Source,
		UpdatedAt:            p.now().UTC(),
		City:                 city,
		Neighborhood:         summary.Neighborhood,
		NeighborhoodOverview: summary.NeighborhoodOverview,
		Country:              geography.Country,
		State:                geography.State,
		Province:             geography.Province,
		PlaceID:              geography.PlaceID,
		Latitude:             summary.Latitude,
		Longitude:            summary.Longitude,
		Coordinates:          domain.GeoPoint{Lat: summary.Latitude, Lon: summary.Longitude},

		RoomType:            summary.RoomType,
		RoomTypeCategory:    summary.RoomTypeCategory,
		RoomAndPropertyType: summary.RoomAndPropertyType,
		PersonCapacity:      summary.PersonCapacity,
		Bedrooms:            summary.Bedrooms,
		Beds:                summary.Beds,
		Bathrooms:           summary.Bathrooms,

		IsHotel:             pdp.Metadata.BookingPrefetchData.IsHotelRatePlanEnabled,
		CanInstantBook:      pdp.Metadata.BookingPrefetchData.CanInstantBook,
		BusinessTravelReady: summary.BusinessTravelReady,

		HostID:     summary.HostID,
		PhotoCount: summary.PhotoCount,
		Photos:     summary.Photos,

		AvgRating:           summary.AvgRating,
		StarRating:          summary.StarRating,
		RatingAccuracy:      logging.AccuracyRating,
		RatingCheckin:       logging.CheckinRating,
		RatingCleanliness:   logging.CleanlinessRating,
		RatingCommunication: logging.CommunicationRating,
		RatingLocation:      logging.LocationRating,
		RatingValue:         logging.ValueRating,
		SatisfactionGuest:   logging.GuestSatisfactionOverall,
		ReviewCount:         summary.ReviewCount,
		Reviews:             reviews,

		PriceRate:          summary.PriceRate,
		PriceRateType:      summary.PriceRateType,
		TotalPrice:         summary.TotalPrice,
		MonthlyPriceFactor: summary.MonthlyPriceFactor,
		WeeklyPriceFactor:  summary.WeeklyPriceFactor,
	}

	if raw, ok := sections[sectionAmenities]; ok {
		parseAmenities(raw, listing)
	}
	if raw, ok := sections[sectionDescription]; ok {
		var section descriptionSection
		if json.Unmarshal(raw, &section) == nil && section.HTMLDescription != nil {
			listing.Description = htmltext.Render(section.HTMLDescription.HTMLText)
		}
	}
	if raw, ok := sections[sectionPolicies]; ok {
		parsePolicies(raw, listing)
	}
	if raw, ok := sections[sectionLocation]; ok {
		var section locationSection
		if json.Unmarshal(raw, &section) == nil {
			for _, detail := range section.SeeAllLocationDetails {
				if detail.Title == "Getting around" {
					listing.Transit = htmltext.Render(detail.Content.HTMLText)
					break
				}
			}
		}
	}
	if raw, ok := sections[sectionHostProfile]; ok {
		var section hostProfileSection
		if json.Unmarshal(raw, &section) == nil {
			for _, info := range section.HostInfos {
				if info.Title == "During your stay" {
					listing.Interaction = htmltext.Render(info.HTML.HTMLText)
					break
				}
			}
		}
	}

	return listing, nil
}

func parseAmenities(raw json.RawMessage, listing *domain.Listing) {
	var section amenitiesSection
	if json.Unmarshal(raw, &section) != nil {
		return
	}
	for _, group := range section.SeeAllAmenitiesGroups {
		if group.Title == "Guest access" {
			var lines []string
			for _, amenity := range group.Amenities {
				lines = append(lines, renderTitle(amenity.titledEntry, ": "))
			}
			listing.Access = strings.Join(lines, "\n")
		}
		for _, amenity := range group.Amenities {
			if !amenity.Available {
				continue
			}
			listing.Amenities = append(listing.Amenities, renderTitle(amenity.titledEntry, " - "))
			if id, ok := amenityID(amenity.ID); ok {
				listing.AmenityIDs = append(listing.AmenityIDs, id)
			}
		}
	}
}

func parsePolicies(raw json.RawMessage, listing *domain.Listing) {
	var section policiesSection
	if json.Unmarshal(raw, &section) != nil {
		return
	}
	listing.AdditionalHouseRules = section.AdditionalHouseRules
	for _, rule := range section.HouseRules {
		listing.HouseRules = append(listing.HouseRules, rule.Title)
		if rule.Title == "No parties or events" {
			listing.AllowsEvents = true
		}
	}
	if len(section.ListingExpectations) > 0 {
		var lines []string
		for _, expectation := range section.ListingExpectations {
			lines = append(lines, renderTitle(expectation, ": "))
		}
		listing.ListingExpectations = strings.Join(lines, "\n")
	}
}

func renderTitle(entry titledEntry, sep string) string {
	if entry.Subtitle != "" {
		return entry.Title + sep + entry.Subtitle
	}
	return entry.Title
}

func amenityID(id string) (int, bool) {
	match := amenityIDPattern.FindStringSubmatch(id)
	if match == nil {
		return 0, false
	}
	parsed, err := strconv.Atoi(match[2])
	if err != nil {
		return 0, false
	}
	return parsed, true
}
