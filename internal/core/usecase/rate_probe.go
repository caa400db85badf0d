package usecase

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
)

// rateProber turns a listing's open availability into per-tier price quotes.
// Each test length gets probed against candidate date ranges until one quote
// succeeds.
type rateProber struct {
	pricing port.PricingPort

	// wait after a transport failure before trying the next candidate;
	// shortened in tests
	transportBackoff time.Duration
}

func newRateProber(pricing port.PricingPort) *rateProber {
	return &rateProber{pricing: pricing, transportBackoff: 60 * time.Second}
}

// probe requests one quote per allowed stay-length tier. Candidate ranges are
// tried longest first: long open runs are the least likely to conflict with
// hidden calendar rules. A tier with no successful candidate is skipped with
// a warning, never an error.
func (p *rateProber) probe(ctx context.Context, listingID string, available []domain.DateRange, minNights, maxNights int) map[int]*domain.PricingQuote {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "RateProbe", "listing_id": listingID})

	quotes := make(map[int]*domain.PricingQuote)
	for _, testLength := range domain.TestLengths(minNights, maxNights) {
		if testLength > maxNights || testLength < minNights {
			continue
		}

		candidates := make([]domain.DateRange, 0, len(available))
		for _, r := range available {
			if r.Length >= testLength {
				candidates = append(candidates, r)
			}
		}
		sort.Slice(candidates, func(i, j int) bool { return candidates[i].Length > candidates[j].Length })

		quote := p.probeTier(ctx, listingID, candidates, testLength, logger)
		if quote == nil {
			logger.Warn("Unable to find available range for tier", port.Fields{"nights": testLength})
			continue
		}
		quotes[testLength] = quote
	}

	return quotes
}

func (p *rateProber) probeTier(ctx context.Context, listingID string, candidates []domain.DateRange, testLength int, logger port.LoggerPort) *domain.PricingQuote {
	for _, candidate := range candidates {
		if ctx.Err() != nil {
			return nil
		}

		checkin := candidate.Start.Format(domain.ISODate)
		checkout := candidate.Start.AddDate(0, 0, testLength).Format(domain.ISODate)

		quote, err := p.pricing.GetPricing(ctx, checkin, checkout, listingID)
		if err == nil {
			return quote
		}

		logger.Error("Could not get pricing data", err, port.Fields{
			"checkin":  checkin,
			"checkout": checkout,
			"nights":   testLength,
		})

		var apiErr *domain.APIError
		if !errors.As(err, &apiErr) {
			// transport-level failure, give the network a moment to recover
			if sleepCtx(ctx, p.transportBackoff) != nil {
				return nil
			}
		}
	}
	return nil
}
