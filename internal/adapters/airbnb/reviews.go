package airbnb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const (
	reviewsPath = "/api/v3/PdpReviews"
	reviewsHash = "4730a25512c4955aa741389d8df80ff1e57e516c469d2b91952636baf6eee3bd"

	reviewsPageLimit = 50
)

// Reviews fetches all reviews of a listing, paginating internally against the
// server-reported total count.
type Reviews struct {
	client   *Client
	currency string
	locale   string
}

func NewReviews(client *Client, currency string) *Reviews {
	return &Reviews{client: client, currency: currency, locale: defaultLocale}
}

type reviewsResponse struct {
	Data struct {
		Merlin struct {
			PdpReviews *struct {
				Metadata *struct {
					ReviewsCount int `json:"reviewsCount"`
				} `json:"metadata"`
				Reviews []struct {
					Comments  string `json:"comments"`
					CreatedAt string `json:"createdAt"`
					Language  string `json:"language"`
					Rating    int    `json:"rating"`
					Response  string `json:"response"`
				} `json:"reviews"`
			} `json:"pdpReviews"`
		} `json:"merlin"`
	} `json:"data"`
}

func (r *Reviews) GetReviews(ctx context.Context, listingID string) ([]domain.Review, error) {
	reviews, total, err := r.getBatch(ctx, listingID, reviewsPageLimit, 0)
	if err != nil {
		return nil, err
	}
	for offset := reviewsPageLimit; offset < total; offset += reviewsPageLimit {
		batch, _, err := r.getBatch(ctx, listingID, reviewsPageLimit, offset)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, batch...)
	}
	return reviews, nil
}

func (r *Reviews) getBatch(ctx context.Context, listingID string, limit, offset int) ([]domain.Review, int, error) {
	urlStr, err := r.batchURL(listingID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	body, err := r.client.Request(ctx, "GET", urlStr, nil)
	if err != nil {
		return nil, 0, err
	}

	var resp reviewsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, 0, fmt.Errorf("reviews: failed to parse response for listing %s: %w", listingID, err)
	}
	pdpReviews := resp.Data.Merlin.PdpReviews
	if pdpReviews == nil {
		return nil, 0, nil
	}

	total := len(pdpReviews.Reviews)
	if pdpReviews.Metadata != nil {
		total = pdpReviews.Metadata.ReviewsCount
	}

	reviews := make([]domain.Review, 0, len(pdpReviews.Reviews))
	for _, review := range pdpReviews.Reviews {
		reviews = append(reviews, domain.Review{
			Comments:  review.Comments,
			CreatedAt: review.CreatedAt,
			Language:  review.Language,
			Rating:    review.Rating,
			Response:  review.Response,
		})
	}
	return reviews, total, nil
}

func (r *Reviews) batchURL(listingID string, limit, offset int) (string, error) {
	request := map[string]interface{}{
		"fieldSelector":    "for_p3",
		"limit":            limit,
		"listingId":        listingID,
		"numberOfAdults":   "1",
		"numberOfChildren": "0",
		"numberOfInfants":  "0",
	}
	if offset > 0 {
		request["offset"] = offset
	}

	variables, err := compactJSON(map[string]interface{}{"request": request})
	if err != nil {
		return "", err
	}
	extensions, err := compactJSON(persistedQuery(reviewsHash))
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("operationName", "PdpReviews")
	q.Set("locale", r.locale)
	q.Set("currency", r.currency)
	q.Set("variables", variables)
	q.Set("extensions", extensions)

	return buildURL(reviewsPath, q), nil
}
