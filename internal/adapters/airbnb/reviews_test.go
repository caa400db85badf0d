package airbnb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func reviewsFixture(count, total int, prefix string) string {
	reviews := make([]string, 0, count)
	for i := 0; i < count; i++ {
		reviews = append(reviews, fmt.Sprintf(`{"comments":"%s-%d","createdAt":"2026-01-01T00:00:00Z","language":"en","rating":5}`, prefix, i))
	}
	return fmt.Sprintf(`{"data":{"merlin":{"pdpReviews":{"metadata":{"reviewsCount":%d},"reviews":[%s]}}}}`,
		total, strings.Join(reviews, ","))
}

func requestOffset(t *testing.T, r *http.Request) int {
	t.Helper()
	var variables struct {
		Request struct {
			Offset int `json:"offset"`
		} `json:"request"`
	}
	if err := json.Unmarshal([]byte(r.URL.Query().Get("variables")), &variables); err != nil {
		t.Fatalf("parse variables: %v", err)
	}
	return variables.Request.Offset
}

func TestGetReviewsSinglePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(reviewsFixture(3, 3, "r")))
	}))
	defer server.Close()

	reviews, err := NewReviews(testClientFor(t, server), "USD").GetReviews(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetReviews: %v", err)
	}
	if len(reviews) != 3 {
		t.Fatalf("got %d reviews; want 3", len(reviews))
	}
	if reviews[0].Comments != "r-0" || reviews[0].Rating != 5 {
		t.Errorf("first review = %+v", reviews[0])
	}
}

func TestGetReviewsPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestOffset(t, r) == 0 {
			_, _ = w.Write([]byte(reviewsFixture(reviewsPageLimit, reviewsPageLimit+10, "a")))
			return
		}
		_, _ = w.Write([]byte(reviewsFixture(10, reviewsPageLimit+10, "b")))
	}))
	defer server.Close()

	reviews, err := NewReviews(testClientFor(t, server), "USD").GetReviews(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetReviews: %v", err)
	}
	if len(reviews) != reviewsPageLimit+10 {
		t.Fatalf("got %d reviews; want %d", len(reviews), reviewsPageLimit+10)
	}
	if last := reviews[len(reviews)-1].Comments; last != "b-9" {
		t.Errorf("last review = %q; want from the second batch", last)
	}
}

func TestGetReviewsAbsentBlock(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"merlin":{}}}`))
	}))
	defer server.Close()

	reviews, err := NewReviews(testClientFor(t, server), "USD").GetReviews(context.Background(), "12345")
	if err != nil {
		t.Fatalf("GetReviews: %v", err)
	}
	if len(reviews) != 0 {
		t.Errorf("got %d reviews; want none", len(reviews))
	}
}
