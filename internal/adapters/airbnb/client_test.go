package airbnb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/core/domain"
)

// rewriteTransport redirects every request to the test server regardless of
// the host baked into the request URL.
type rewriteTransport struct {
	target *url.URL
}

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = t.target.Scheme
	req.URL.Host = t.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func testClientFor(t *testing.T, server *httptest.Server) *Client {
	t.Helper()
	client := newTestClient(t)
	target, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("parse server URL: %v", err)
	}
	client.httpClient.Transport = rewriteTransport{target: target}
	return client
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{APIKey: "test-key"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	// keep retries and throttling instant
	client.serverErrorBackoff = time.Millisecond
	client.tryAgainBackoff = time.Millisecond
	client.throttleUnit = time.Millisecond
	return client
}

func TestClientRequestSuccess(t *testing.T) {
	var gotKey string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-airbnb-api-key")
		_, _ = w.Write([]byte(`{"data":{"ok":true}}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	body, err := client.Request(context.Background(), http.MethodGet, server.URL, nil)
	if err != nil {
		t.Fatalf("Request: %v", err)
	}
	if string(body) != `{"data":{"ok":true}}` {
		t.Errorf("body = %s", body)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q; want %q", gotKey, "test-key")
	}
}

func TestClientRequestThrottledConcurrent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	// one shared client driven from several goroutines, as the worker
	// pool does; run with -race to verify the throttle path
	client := newTestClient(t)
	client.throttle = true

	var wg sync.WaitGroup
	errs := make(chan error, 8*4)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 4; j++ {
				if _, err := client.Request(context.Background(), http.MethodGet, server.URL, nil); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("Request: %v", err)
	}
}

func TestClientRequestForbiddenFailsFast(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"errors":[{"message":"denied","extensions":{"response":{"statusCode":403}}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Request(context.Background(), http.MethodGet, server.URL, nil)
	if !domain.IsForbidden(err) {
		t.Fatalf("err = %v; want forbidden", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times; a 403 must not be retried", got)
	}
}

func TestClientRequestRetriesServerError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"errors":[{"message":"boom","extensions":{"response":{"statusCode":503}}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	if _, err := client.Request(context.Background(), http.MethodGet, server.URL, nil); err != nil {
		t.Fatalf("Request: %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server called %d times; want 3", got)
	}
}

func TestClientRequestRetriesDataFetchingException(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"errors":[{"message":"transient","extensions":{"classification":"DataFetchingException"}}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	if _, err := client.Request(context.Background(), http.MethodGet, server.URL, nil); err != nil {
		t.Fatalf("Request: %v", err)
	}
}

func TestClientRequestRetriesPleaseTryAgain(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			_, _ = w.Write([]byte(`{"errors":[{"message":"Something went wrong. Please try again."}]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	if _, err := client.Request(context.Background(), http.MethodGet, server.URL, nil); err != nil {
		t.Fatalf("Request: %v", err)
	}
}

func TestClientRequestExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom","extensions":{"response":{"statusCode":500}}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Request(context.Background(), http.MethodGet, server.URL, nil)
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if domain.IsForbidden(err) {
		t.Errorf("err = %v; exhaustion must not classify as forbidden", err)
	}
	if got := calls.Load(); got != maxAttempts {
		t.Errorf("server called %d times; want %d", got, maxAttempts)
	}
}

func TestClientRequestUnclassifiedErrorIsFatal(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"errors":[{"message":"unknown failure"}]}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	_, err := client.Request(context.Background(), http.MethodGet, server.URL, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server called %d times; unclassified errors must not retry", got)
	}
}

func TestClientRequestCancelWakesBackoff(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"boom","extensions":{"response":{"statusCode":503}}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t)
	client.serverErrorBackoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Request(ctx, http.MethodGet, server.URL, nil)
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("Request blocked %v after cancel; backoff must wake early", elapsed)
	}
}

func TestClientRequestInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := newTestClient(t)
	if _, err := client.Request(context.Background(), http.MethodGet, server.URL, nil); err == nil {
		t.Fatal("expected error for non-JSON body")
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("expected error for missing API key")
	}
}
