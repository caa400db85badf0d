package airbnb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const (
	calendarPath = "/api/v3/PdpAvailabilityCalendar"
	calendarHash = "8f08e03c7bd16fcad3c92a3592c19a8b559a0d0855a84028d1163d4733ed9ade"

	calendarMonths = 12
)

// Calendar fetches a listing's 12-month availability feed.
type Calendar struct {
	client   *Client
	currency string
	locale   string
	now      func() time.Time
}

func NewCalendar(client *Client, currency string) *Calendar {
	return &Calendar{client: client, currency: currency, locale: defaultLocale, now: time.Now}
}

type calendarResponse struct {
	Data struct {
		Merlin struct {
			PdpAvailabilityCalendar struct {
				CalendarMonths []struct {
					Days []struct {
						CalendarDate string `json:"calendarDate"`
						Available    bool   `json:"available"`
						MinNights    int    `json:"minNights"`
						MaxNights    int    `json:"maxNights"`
					} `json:"days"`
				} `json:"calendarMonths"`
			} `json:"pdpAvailabilityCalendar"`
		} `json:"merlin"`
	} `json:"data"`
}

// GetCalendar returns the booking calendar keyed by ISO date (true = booked)
// plus the listing's min/max night constraints, taken as the mode over all
// calendar days. Past dates are skipped.
func (c *Calendar) GetCalendar(ctx context.Context, listingID string) (domain.BookingCalendar, int, int, error) {
	urlStr, err := c.calendarURL(listingID)
	if err != nil {
		return nil, 0, 0, err
	}
	body, err := c.client.Request(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, 0, 0, err
	}

	var resp calendarResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, 0, fmt.Errorf("calendar: failed to parse response for listing %s: %w", listingID, err)
	}

	today := c.now()
	startOfToday := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	calendar := domain.BookingCalendar{}
	minCounts := map[int]int{}
	maxCounts := map[int]int{}
	for _, month := range resp.Data.Merlin.PdpAvailabilityCalendar.CalendarMonths {
		for _, day := range month.Days {
			minCounts[day.MinNights]++
			maxCounts[day.MaxNights]++

			date, err := time.Parse(domain.ISODate, day.CalendarDate)
			if err != nil {
				return nil, 0, 0, fmt.Errorf("calendar: bad date %q for listing %s: %w", day.CalendarDate, listingID, err)
			}
			if date.Before(startOfToday) {
				continue
			}
			calendar[day.CalendarDate] = !day.Available
		}
	}
	if len(minCounts) == 0 {
		return nil, 0, 0, domain.NewAPIError(domain.ErrKindDataShape, fmt.Sprintf("calendar: empty calendar for listing %s", listingID))
	}

	return calendar, mode(minCounts), mode(maxCounts), nil
}

func mode(counts map[int]int) int {
	best, bestCount := 0, -1
	for value, count := range counts {
		if count > bestCount || (count == bestCount && value < best) {
			best, bestCount = value, count
		}
	}
	return best
}

func (c *Calendar) calendarURL(listingID string) (string, error) {
	today := c.now()
	variables, err := compactJSON(map[string]interface{}{
		"request": map[string]interface{}{
			"count":     calendarMonths,
			"listingId": listingID,
			"month":     int(today.Month()),
			"year":      today.Year(),
		},
	})
	if err != nil {
		return "", err
	}
	extensions, err := compactJSON(persistedQuery(calendarHash))
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("operationName", "PdpAvailabilityCalendar")
	q.Set("locale", c.locale)
	q.Set("currency", c.currency)
	q.Set("variables", variables)
	q.Set("extensions", extensions)

	return buildURL(calendarPath, q), nil
}
