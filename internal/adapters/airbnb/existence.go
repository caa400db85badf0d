package airbnb

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/gocolly/colly/v2/extensions"

	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
)

// ExistenceChecker re-checks a listing's public page after the API returned
// an embedded 403. The API hides delisted listings behind Forbidden responses,
// so only the public page distinguishes "gone" from "temporarily blocked".
type ExistenceChecker struct {
	collector *colly.Collector
	mu        sync.Mutex
}

func NewExistenceChecker(proxy string) (*ExistenceChecker, error) {
	c := colly.NewCollector(colly.AllowedDomains(apiHost), colly.AllowURLRevisit())

	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  apiHost,
		Parallelism: 1,
		RandomDelay: 3 * time.Second,
	}); err != nil {
		return nil, fmt.Errorf("existence checker: failed to set limit rule: %w", err)
	}

	if proxy != "" {
		if err := c.SetProxy(proxy); err != nil {
			return nil, fmt.Errorf("existence checker: invalid proxy URL %q: %w", proxy, err)
		}
	}

	// look like a real browser, the public page blocks obvious bots
	extensions.RandomUserAgent(c)
	extensions.Referer(c)

	return &ExistenceChecker{collector: c}, nil
}

// Exists reports whether the listing's public page is still served: true on
// HTTP 200, false on 410 Gone. Any other status is an error, so callers never
// mistake an outage for a deletion.
func (e *ExistenceChecker) Exists(ctx context.Context, listingID string) (bool, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "ExistenceChecker"})

	// one check at a time keeps the shared rate limit honest
	e.mu.Lock()
	defer e.mu.Unlock()

	url := ListingURL(listingID)
	statusCode := 0

	c := e.collector.Clone()
	c.OnResponse(func(r *colly.Response) {
		statusCode = r.StatusCode
	})
	c.OnError(func(r *colly.Response, err error) {
		statusCode = r.StatusCode
		logger.Warn("Public page request failed", port.Fields{
			"url":    url,
			"status": r.StatusCode,
			"error":  err.Error(),
		})
	})

	if err := c.Visit(url); err != nil && statusCode == 0 {
		return false, fmt.Errorf("existence checker: request to %s failed: %w", url, err)
	}
	c.Wait()

	switch statusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusGone:
		return false, nil
	default:
		return false, fmt.Errorf("existence checker: unexpected status %d for %s", statusCode, url)
	}
}
