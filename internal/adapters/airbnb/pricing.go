package airbnb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const (
	pricingPath = "/api/v3/startStaysCheckout"
	pricingHash = "4a01261214aad9adf8c85202020722e6e05bfc7d5f3d0b865531f9a6987a3bd1"

	micros = 1_000_000
)

// Pricing requests one priced quote for specific dates through the checkout
// endpoint and normalizes the returned price breakdown.
type Pricing struct {
	client   *Client
	currency string
	locale   string
}

func NewPricing(client *Client, currency string) *Pricing {
	return &Pricing{client: client, currency: currency, locale: defaultLocale}
}

type checkoutResponse struct {
	Data struct {
		StartStayCheckoutFlow struct {
			StayCheckout struct {
				Sections struct {
					TemporaryQuickPayData *struct {
						BootstrapPaymentsJSON string `json:"bootstrapPaymentsJSON"`
					} `json:"temporaryQuickPayData"`
					Metadata struct {
						ErrorData struct {
							ErrorMessage string `json:"errorMessage"`
						} `json:"errorData"`
					} `json:"metadata"`
				} `json:"sections"`
			} `json:"stayCheckout"`
		} `json:"startStayCheckoutFlow"`
	} `json:"data"`
}

type priceItem struct {
	Type           string `json:"type"`
	LocalizedTitle string `json:"localizedTitle"`
	Total          struct {
		AmountMicros int64 `json:"amountMicros"`
	} `json:"total"`
}

type priceBreakdown struct {
	PriceItems []priceItem `json:"priceItems"`
	Total      struct {
		Total struct {
			AmountMicros int64 `json:"amountMicros"`
		} `json:"total"`
	} `json:"total"`
}

type quickPayData struct {
	ProductPriceBreakdown struct {
		PriceBreakdown priceBreakdown `json:"priceBreakdown"`
	} `json:"productPriceBreakdown"`
}

// GetPricing fetches and normalizes the price breakdown for a stay from
// checkin to checkout (ISO dates, checkout exclusive).
func (p *Pricing) GetPricing(ctx context.Context, checkin, checkout, listingID string) (*domain.PricingQuote, error) {
	start, err := time.Parse(domain.ISODate, checkin)
	if err != nil {
		return nil, fmt.Errorf("pricing: bad checkin date %q: %w", checkin, err)
	}
	end, err := time.Parse(domain.ISODate, checkout)
	if err != nil {
		return nil, fmt.Errorf("pricing: bad checkout date %q: %w", checkout, err)
	}
	nights := int(end.Sub(start).Hours() / 24)
	if nights <= 0 {
		return nil, fmt.Errorf("pricing: checkout %s is not after checkin %s", checkout, checkin)
	}

	body, err := p.getRates(ctx, ProductID(listingID), checkin, checkout)
	if err != nil {
		return nil, err
	}

	var resp checkoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("pricing: failed to parse checkout response for listing %s: %w", listingID, err)
	}
	sections := resp.Data.StartStayCheckoutFlow.StayCheckout.Sections
	if sections.TemporaryQuickPayData == nil || sections.TemporaryQuickPayData.BootstrapPaymentsJSON == "" {
		return nil, domain.NewAPIError(domain.ErrKindDataShape,
			fmt.Sprintf("pricing: error retrieving pricing: %s", sections.Metadata.ErrorData.ErrorMessage))
	}

	// bootstrapPaymentsJSON is a JSON document embedded as a string
	var quickPay quickPayData
	if err := json.Unmarshal([]byte(sections.TemporaryQuickPayData.BootstrapPaymentsJSON), &quickPay); err != nil {
		return nil, fmt.Errorf("pricing: failed to parse payments JSON for listing %s: %w", listingID, err)
	}

	return normalizePricing(quickPay.ProductPriceBreakdown.PriceBreakdown, nights)
}

func (p *Pricing) getRates(ctx context.Context, productID, checkin, checkout string) ([]byte, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"operationName": "startStaysCheckout",
		"variables": map[string]interface{}{
			"input": map[string]interface{}{
				"businessTravel": map[string]interface{}{"workTrip": false},
				"checkinDate":    checkin,
				"checkoutDate":   checkout,
				"guestCounts": map[string]interface{}{
					"numberOfAdults":   1,
					"numberOfChildren": 0,
					"numberOfInfants":  0,
					"numberOfPets":     0,
				},
				"guestCurrencyOverride": p.currency,
				"lux":                   map[string]interface{}{},
				"metadata": map[string]interface{}{
					"internalFlags": []string{"LAUNCH_LOGIN_PHONE_AUTH"},
				},
				"org":          map[string]interface{}{},
				"productId":    productID,
				"china":        map[string]interface{}{},
				"quickPayData": nil,
			},
		},
		"extensions": persistedQuery(pricingHash),
	})
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("operationName", "startStaysCheckout")
	q.Set("locale", p.locale)
	q.Set("currency", p.currency)

	return p.client.Request(ctx, "POST", buildURL(pricingPath, q), payload)
}

// knownPriceItemTypes is the full set of line-item types a well-formed
// breakdown may carry. ACCOMMODATION is mandatory, the rest optional.
var knownPriceItemTypes = []string{"ACCOMMODATION", "AIRBNB_GUEST_FEE", "CLEANING_FEE", "DISCOUNT", "TAXES"}

func normalizePricing(breakdown priceBreakdown, nights int) (*domain.PricingQuote, error) {
	if len(breakdown.PriceItems) > len(knownPriceItemTypes) {
		types := make([]string, 0, len(breakdown.PriceItems))
		for _, item := range breakdown.PriceItems {
			types = append(types, item.Type)
		}
		return nil, domain.NewAPIError(domain.ErrKindDataShape,
			fmt.Sprintf("pricing: unexpected extra section types: %s", strings.Join(types, ", ")))
	}

	items := map[string]priceItem{}
	for _, typeName := range knownPriceItemTypes {
		for _, item := range breakdown.PriceItems {
			if item.Type != typeName {
				continue
			}
			if _, dup := items[typeName]; dup {
				return nil, domain.NewAPIError(domain.ErrKindDataShape,
					fmt.Sprintf("pricing: unexpected multiple section type %s", typeName))
			}
			items[typeName] = item
		}
	}
	accommodation, ok := items["ACCOMMODATION"]
	if !ok {
		return nil, domain.NewAPIError(domain.ErrKindDataShape, "pricing: no ACCOMMODATION pricing found")
	}

	amount := func(typeName string) float64 {
		return float64(items[typeName].Total.AmountMicros) / micros
	}

	priceAccommodation := float64(accommodation.Total.AmountMicros) / micros
	quote := &domain.PricingQuote{
		Nights:             nights,
		PriceNightly:       priceAccommodation / float64(nights),
		PriceAccommodation: priceAccommodation,
		PriceCleaning:      amount("CLEANING_FEE"),
		Taxes:              amount("TAXES"),
		AirbnbFee:          amount("AIRBNB_GUEST_FEE"),
		Total:              float64(breakdown.Total.Total.AmountMicros) / micros,
	}

	if discountItem, ok := items["DISCOUNT"]; ok {
		discount := -1 * (float64(discountItem.Total.AmountMicros) / micros)
		quote.Discount = discount
		quote.TaxRate = quote.Taxes / (priceAccommodation + quote.PriceCleaning - discount)
		rate := discount / priceAccommodation
		switch discountItem.LocalizedTitle {
		case "Weekly discount", "Weekly stay discount":
			quote.DiscountWeekly = &rate
		case "Monthly discount", "Monthly stay discount":
			quote.DiscountMonthly = &rate
		default:
			return nil, domain.NewAPIError(domain.ErrKindDataShape,
				fmt.Sprintf("pricing: unhandled discount type %q", discountItem.LocalizedTitle))
		}
	} else {
		quote.TaxRate = quote.Taxes / (priceAccommodation + quote.PriceCleaning)
	}

	return quote, nil
}
