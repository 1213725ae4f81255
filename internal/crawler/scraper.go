package crawler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"kbsync/pkg/utils"
)

// ErrUnexpectedStatusCode indicates an HTTP response outside the 2xx range.
var ErrUnexpectedStatusCode = errors.New("unexpected status code")

// maxBodyBytes bounds a single listing response.
const maxBodyBytes = 32 << 20

// HTTPError reports a non-2xx response from the help center.
type HTTPError struct {
	URL        string
	StatusCode int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: %s %d", e.URL, ErrUnexpectedStatusCode, e.StatusCode)
}

// Unwrap lets callers match with errors.Is(err, ErrUnexpectedStatusCode).
func (e *HTTPError) Unwrap() error {
	return ErrUnexpectedStatusCode
}

// Scraper performs single-attempt GET requests. There is no retry: any failure is
// returned to the caller.
type Scraper struct {
	client  *http.Client
	headers http.Header
}

// NewScraper creates a scraper with the given request timeout. Zero means no timeout.
func NewScraper(timeout time.Duration) *Scraper {
	return NewScraperWithClient(&http.Client{Timeout: timeout})
}

// NewScraperWithClient creates a scraper around an existing HTTP client.
func NewScraperWithClient(client *http.Client) *Scraper {
	return &Scraper{
		client:  client,
		headers: utils.NewHTTPHelper().BuildHeaders(nil),
	}
}

// Scrape fetches url and returns the response body.
func (s *Scraper) Scrape(ctx context.Context, url string) ([]byte, error) {
	body, _, _, err := s.ScrapeWithMetrics(ctx, url)
	return body, err
}

// ScrapeWithMetrics returns (body, statusCode, duration, error).
func (s *Scraper) ScrapeWithMetrics(ctx context.Context, url string) ([]byte, int, time.Duration, error) {
	startTime := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, 0, 0, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header = s.headers.Clone()

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, time.Since(startTime), fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if !utils.IsSuccess(resp.StatusCode) {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

		return nil, resp.StatusCode, time.Since(startTime), &HTTPError{URL: url, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, time.Since(startTime), fmt.Errorf("failed to read response body: %w", err)
	}

	return body, resp.StatusCode, time.Since(startTime), nil
}
