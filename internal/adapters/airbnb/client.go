package airbnb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JoeBashe/stl-scraper/internal/contextkeys"
	"github.com/JoeBashe/stl-scraper/internal/core/domain"
	"github.com/JoeBashe/stl-scraper/internal/core/port"
)

const maxAttempts = 3

// Client issues authenticated requests against the marketplace API and
// applies the recovery policy for its non-uniform error taxonomy: classified
// 403s fail fast, server errors and data-fetching hiccups retry with backoff,
// everything else is fatal.
type Client struct {
	apiKey     string
	httpClient *http.Client
	throttle   bool

	// backoffs and the throttle unit are scaled down in tests
	serverErrorBackoff time.Duration
	tryAgainBackoff    time.Duration
	throttleUnit       time.Duration
}

// ClientConfig configures the API client.
type ClientConfig struct {
	APIKey   string
	Proxy    string
	Throttle bool
	// Timeout for a single HTTP round-trip. Defaults to 60s.
	Timeout time.Duration
}

// NewClient builds the resilient API client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("airbnb client: API key is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	transport := http.DefaultTransport
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("airbnb client: invalid proxy URL %q: %w", cfg.Proxy, err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &Client{
		apiKey:             cfg.APIKey,
		httpClient:         &http.Client{Timeout: timeout, Transport: transport},
		throttle:           cfg.Throttle,
		serverErrorBackoff: 60 * time.Second,
		tryAgainBackoff:    30 * time.Second,
		throttleUnit:       time.Second,
	}, nil
}

type apiErrorResponse struct {
	StatusCode int `json:"statusCode"`
}

type apiErrorExtensions struct {
	Classification string            `json:"classification"`
	Response       *apiErrorResponse `json:"response"`
}

type apiError struct {
	Message    string              `json:"message"`
	Extensions *apiErrorExtensions `json:"extensions"`
}

type apiEnvelope struct {
	Errors []apiError `json:"errors"`
}

// Request performs an authenticated API call and returns the raw response
// body once it carries no errors. It fails only after exhausting the retry
// budget or on a non-retryable classification.
func (c *Client) Request(ctx context.Context, method, urlStr string, body []byte) ([]byte, error) {
	logger := contextkeys.LoggerFromContext(ctx).WithFields(port.Fields{"component": "AirbnbClient"})

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if c.throttle {
			// a little randomized delay to avoid bursty request patterns;
			// the shared client is driven from worker goroutines, so stick
			// to the locked top-level source
			if err := sleepCtx(ctx, time.Duration(rand.Intn(3))*c.throttleUnit); err != nil {
				return nil, err
			}
		}

		responseBody, err := c.do(ctx, method, urlStr, body)
		if err != nil {
			return nil, err
		}

		var envelope apiEnvelope
		if err := json.Unmarshal(responseBody, &envelope); err != nil {
			return nil, fmt.Errorf("airbnb client: invalid JSON response from %s: %w", urlStr, err)
		}
		if len(envelope.Errors) == 0 {
			return responseBody, nil
		}

		backoff, classifyErr := c.classify(urlStr, envelope.Errors, logger)
		if classifyErr != nil {
			return nil, classifyErr
		}

		logger.Warn("Retryable API error, backing off", port.Fields{
			"url":     urlStr,
			"attempt": attempt,
			"backoff": backoff.String(),
		})
		if err := sleepCtx(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, domain.NewAPIError(domain.ErrKindFatal,
		fmt.Sprintf("could not complete API %s request to %q", method, urlStr))
}

func (c *Client) do(ctx context.Context, method, urlStr string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return nil, fmt.Errorf("airbnb client: failed to create request: %w", err)
	}
	req.Header.Set("x-airbnb-api-key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("airbnb client: request to %s failed: %w", urlStr, err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("airbnb client: failed to read response from %s: %w", urlStr, err)
	}
	return responseBody, nil
}

// classify pops one error off the list and decides the recovery policy.
// A nil error with a backoff means "sleep and retry"; a non-nil error must be
// propagated immediately.
func (c *Client) classify(urlStr string, errors []apiError, logger port.LoggerPort) (time.Duration, error) {
	popped := errors[len(errors)-1]
	remaining := errors[:len(errors)-1]

	if ext := popped.Extensions; ext != nil {
		if ext.Response != nil {
			statusCode := ext.Response.StatusCode
			if statusCode == 403 {
				logger.Error("403 Forbidden", nil, port.Fields{"url": urlStr})
				return 0, domain.NewAPIError(domain.ErrKindForbidden, popped.Message)
			}
			if statusCode >= 500 {
				logger.Warn("Server error", port.Fields{"url": urlStr, "status": statusCode, "message": popped.Message})
				return c.serverErrorBackoff, nil
			}
		} else if ext.Classification == "DataFetchingException" {
			logger.Warn("DataFetchingException", port.Fields{"url": urlStr, "message": popped.Message})
			return c.serverErrorBackoff, nil
		}
	}

	if strings.Contains(strings.ToLower(popped.Message), "please try again") {
		logger.Warn("Transient API error", port.Fields{"url": urlStr, "message": popped.Message})
		return c.tryAgainBackoff, nil
	}

	messages := make([]string, 0, len(remaining))
	for _, e := range remaining {
		messages = append(messages, e.Message)
	}
	if len(messages) == 0 {
		messages = []string{popped.Message}
	}
	return 0, domain.NewAPIError(domain.ErrKindFatal, messages...)
}

// sleepCtx sleeps for d but wakes early on cancellation, so backoff never
// blocks shutdown.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
