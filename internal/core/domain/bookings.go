package domain

import "sort"

// Booking is one recorded booked night.
type Booking struct {
	Date string `json:"date"`
}

// MergeBookings merges newly observed booked dates into the stored booking
// list without duplicating or discarding previously recorded bookings. The
// result is sorted by date (ISO dates sort lexicographically).
func MergeBookings(existing []Booking, newDates []string) []Booking {
	seen := make(map[string]struct{}, len(existing)+len(newDates))
	merged := make([]Booking, 0, len(existing)+len(newDates))
	for _, b := range existing {
		if _, ok := seen[b.Date]; ok {
			continue
		}
		seen[b.Date] = struct{}{}
		merged = append(merged, b)
	}
	for _, dt := range newDates {
		if _, ok := seen[dt]; ok {
			continue
		}
		seen[dt] = struct{}{}
		merged = append(merged, Booking{Date: dt})
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Date < merged[j].Date })
	return merged
}
