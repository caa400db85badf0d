package airbnb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

const calendarFixture = `{
  "data": {"merlin": {"pdpAvailabilityCalendar": {"calendarMonths": [
    {"days": [
      {"calendarDate": "2026-03-09", "available": true, "minNights": 2, "maxNights": 365},
      {"calendarDate": "2026-03-10", "available": true, "minNights": 2, "maxNights": 365},
      {"calendarDate": "2026-03-11", "available": false, "minNights": 2, "maxNights": 365},
      {"calendarDate": "2026-03-12", "available": false, "minNights": 3, "maxNights": 365},
      {"calendarDate": "2026-03-13", "available": true, "minNights": 2, "maxNights": 90}
    ]}
  ]}}}
}`

func TestGetCalendar(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Path; got != calendarPath {
			t.Errorf("path = %s; want %s", got, calendarPath)
		}
		_, _ = w.Write([]byte(calendarFixture))
	}))
	defer server.Close()

	cal := NewCalendar(testClientFor(t, server), "USD")
	cal.now = func() time.Time { return time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC) }

	calendar, minNights, maxNights, err := cal.GetCalendar(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetCalendar: %v", err)
	}

	if _, ok := calendar["2026-03-09"]; ok {
		t.Error("yesterday must be dropped from the calendar")
	}
	if booked := calendar["2026-03-10"]; booked {
		t.Error("2026-03-10 is available, must map to booked=false")
	}
	if booked := calendar["2026-03-11"]; !booked {
		t.Error("2026-03-11 is unavailable, must map to booked=true")
	}
	if minNights != 2 {
		t.Errorf("minNights = %d; want mode 2", minNights)
	}
	if maxNights != 365 {
		t.Errorf("maxNights = %d; want mode 365", maxNights)
	}
}

func TestGetCalendarEmptyIsDataShape(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"merlin":{"pdpAvailabilityCalendar":{"calendarMonths":[]}}}}`))
	}))
	defer server.Close()

	cal := NewCalendar(testClientFor(t, server), "USD")
	_, _, _, err := cal.GetCalendar(context.Background(), "12345")
	if !domain.IsDataShape(err) {
		t.Fatalf("err = %v; want data-shape error", err)
	}
}

func TestMode(t *testing.T) {
	tests := []struct {
		counts map[int]int
		want   int
	}{
		{map[int]int{2: 300, 3: 60}, 2},
		{map[int]int{5: 10, 1: 10}, 1}, // tie broken by smaller value
		{map[int]int{7: 1}, 7},
	}
	for _, tt := range tests {
		if got := mode(tt.counts); got != tt.want {
			t.Errorf("mode(%v) = %d; want %d", tt.counts, got, tt.want)
		}
	}
}
