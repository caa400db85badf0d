package domain

import (
	"fmt"
	"sort"
	"time"
)

// ISODate is the wire format for calendar dates.
const ISODate = "2006-01-02"

// BookingCalendar maps an ISO date to its booked state (true = booked). It
// spans today through a fixed horizon; dates before today are never present.
// Rebuilt in full on every calendar fetch.
type BookingCalendar map[string]bool

// RangeStatus selects which dates a date-range computation groups.
type RangeStatus string

const (
	StatusAvailable RangeStatus = "available"
	StatusBooked    RangeStatus = "booked"
)

// DateRange is a maximal run of consecutive dates sharing one availability
// status. End is exclusive; Length is in days.
type DateRange struct {
	Start  time.Time `json:"start"`
	End    time.Time `json:"end"`
	Length int       `json:"length"`
}

// BookedDates returns the booked dates of the calendar in ascending order.
func (c BookingCalendar) BookedDates() []string {
	var dates []string
	for dt, booked := range c {
		if booked {
			dates = append(dates, dt)
		}
	}
	sort.Strings(dates)
	return dates
}

// StripDates removes the given dates from the calendar.
func (c BookingCalendar) StripDates(dates []string) {
	for _, dt := range dates {
		delete(c, dt)
	}
}

// ComputeDateRanges groups the calendar's dates of the given status into
// maximal consecutive runs, returned in ascending calendar order. No two
// returned ranges are adjacent.
func ComputeDateRanges(calendar BookingCalendar, status RangeStatus) ([]DateRange, error) {
	if status != StatusAvailable && status != StatusBooked {
		return nil, fmt.Errorf(`status must be one of "available" or "booked", got %q`, status)
	}

	wantBooked := status == StatusBooked
	var ordinals []int
	for dt, booked := range calendar {
		if booked != wantBooked {
			continue
		}
		parsed, err := time.Parse(ISODate, dt)
		if err != nil {
			return nil, fmt.Errorf("invalid calendar date %q: %w", dt, err)
		}
		ordinals = append(ordinals, int(parsed.Unix()/86400))
	}
	sort.Ints(ordinals)

	var ranges []DateRange
	for i := 0; i < len(ordinals); {
		j := i + 1
		// a run continues while ordinal[j] - j stays constant
		for j < len(ordinals) && ordinals[j]-j == ordinals[i]-i {
			j++
		}
		start := time.Unix(int64(ordinals[i])*86400, 0).UTC()
		end := time.Unix(int64(ordinals[j-1]+1)*86400, 0).UTC()
		ranges = append(ranges, DateRange{
			Start:  start,
			End:    end,
			Length: ordinals[j-1] + 1 - ordinals[i],
		})
		i = j
	}

	return ranges, nil
}

// DatesOfRange expands a range back into its ISO dates.
func DatesOfRange(r DateRange) []string {
	dates := make([]string, 0, r.Length)
	for d := r.Start; d.Before(r.End); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d.Format(ISODate))
	}
	return dates
}
