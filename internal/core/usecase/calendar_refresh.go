package usecase

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
	"github.com/JoeBashe/stl-scraper/internal/pool"
)

// RefreshConfig tunes the anomaly thresholds of the calendar refresh.
type RefreshConfig struct {
	// Booked runs longer than StripNights are treated as host-blocked time,
	// not real bookings, and removed from the calendar before persisting.
	StripNights int
	// Booked runs longer than WarnNights are logged for review.
	WarnNights int
	// Workers bounds concurrent per-listing refreshes during ExecuteAll.
	Workers int
}

// CalendarRefreshUseCase re-scrapes availability and pricing for listings the
// incremental backend reports as stale, tombstoning the ones that are gone.
type CalendarRefreshUseCase struct {
	calendar    port.CalendarPort
	existence   port.ExistencePort
	persistence port.PersistencePort
	prober      *rateProber
	cfg         RefreshConfig
}

func NewCalendarRefreshUseCase(
	calendar port.CalendarPort,
	pricing port.PricingPort,
	existence port.ExistencePort,
	persistence port.PersistencePort,
	cfg RefreshConfig,
) *CalendarRefreshUseCase {
	return &CalendarRefreshUseCase{
		calendar:    calendar,
		existence:   existence,
		persistence: persistence,
		prober:      newRateProber(pricing),
		cfg:         cfg,
	}
}

// ExecuteAll refreshes every listing not updated within the staleness window.
// Failures are isolated per listing: one bad listing never stops the sweep.
func (uc *CalendarRefreshUseCase) ExecuteAll(ctx context.Context, olderThan time.Duration) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "CalendarRefresh"})

	workers := pool.New(uc.cfg.Workers, 0)
	var refreshed, failed atomic.Int64

	err := uc.persistence.ForEachStaleID(ctx, olderThan, func(listingID string) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		workers.Submit(ctx, func() {
			if err := uc.RefreshOne(ctx, listingID); err != nil {
				failed.Add(1)
				logger.Error("Failed to refresh listing", err, port.Fields{"listing_id": listingID})
				return
			}
			refreshed.Add(1)
		})
		return nil
	})
	workers.Wait()

	logger.Info("Calendar refresh finished", port.Fields{
		"refreshed": refreshed.Load(),
		"failed":    failed.Load(),
	})
	if err != nil {
		return fmt.Errorf("calendar refresh: stale id scan failed: %w", err)
	}
	return nil
}

// RefreshOne refreshes the calendar and pricing of a single stored listing.
func (uc *CalendarRefreshUseCase) RefreshOne(ctx context.Context, listingID string) error {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "CalendarRefresh", "listing_id": listingID})
	logger.Info("Getting pricing and calendar data", nil)

	calendar, minNights, maxNights, err := uc.calendar.GetCalendar(ctx, listingID)
	if err != nil {
		if domain.IsForbidden(err) {
			return uc.handleForbidden(ctx, listingID, logger)
		}
		return fmt.Errorf("failed to get calendar: %w", err)
	}

	if err := uc.stripAnomalousBookings(calendar, logger); err != nil {
		return err
	}

	if err := uc.persistence.UpdateCalendar(ctx, listingID, calendar); err != nil {
		return fmt.Errorf("failed to persist calendar: %w", err)
	}

	available, err := domain.ComputeDateRanges(calendar, domain.StatusAvailable)
	if err != nil {
		return fmt.Errorf("failed to compute available ranges: %w", err)
	}

	quotes := uc.prober.probe(ctx, listingID, available, minNights, maxNights)
	doc := domain.CompactPricingDoc(quotes, minNights, maxNights)
	if doc == nil {
		logger.Warn("Could not get any pricing data", nil)
		return nil
	}
	if err := uc.persistence.UpdatePricing(ctx, listingID, *doc); err != nil {
		return fmt.Errorf("failed to persist pricing: %w", err)
	}
	return nil
}

// Inspect fetches the calendar and all per-tier quotes of one listing without
// touching storage (the calendar subcommand in single-listing mode).
func (uc *CalendarRefreshUseCase) Inspect(ctx context.Context, listingID string) (domain.BookingCalendar, map[int]*domain.PricingQuote, error) {
	calendar, minNights, maxNights, err := uc.calendar.GetCalendar(ctx, listingID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get calendar: %w", err)
	}
	available, err := domain.ComputeDateRanges(calendar, domain.StatusAvailable)
	if err != nil {
		return nil, nil, err
	}
	return calendar, uc.prober.probe(ctx, listingID, available, minNights, maxNights), nil
}

// stripAnomalousBookings removes booked runs longer than the strip threshold.
// Hosts block long stretches to take listings off the market; recording those
// as bookings would wreck occupancy numbers downstream.
func (uc *CalendarRefreshUseCase) stripAnomalousBookings(calendar domain.BookingCalendar, logger port.LoggerPort) error {
	booked, err := domain.ComputeDateRanges(calendar, domain.StatusBooked)
	if err != nil {
		return fmt.Errorf("failed to compute booked ranges: %w", err)
	}
	for _, r := range booked {
		if r.Length > uc.cfg.StripNights {
			calendar.StripDates(domain.DatesOfRange(r))
		} else if r.Length > uc.cfg.WarnNights {
			logger.Warn("Unusually long booking", port.Fields{
				"nights": r.Length,
				"start":  r.Start.Format(domain.ISODate),
			})
		}
	}
	return nil
}

// handleForbidden decides what a 403 on the calendar endpoint means: the API
// hides delisted listings behind Forbidden, so the public page is the tie
// breaker. A live page plus a 403 is an error worth surfacing, not a silent
// deletion.
func (uc *CalendarRefreshUseCase) handleForbidden(ctx context.Context, listingID string, logger port.LoggerPort) error {
	exists, err := uc.existence.Exists(ctx, listingID)
	if err != nil {
		return fmt.Errorf("existence check after 403 failed: %w", err)
	}
	if exists {
		return fmt.Errorf("could not get calendar for existing listing %s", listingID)
	}

	logger.Warn("Listing gone, marking deleted", nil)
	if err := uc.persistence.MarkDeleted(ctx, listingID); err != nil {
		return fmt.Errorf("failed to mark listing deleted: %w", err)
	}
	return nil
}
