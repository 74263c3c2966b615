package oem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// DefaultSourceURL is the NASA public ISS OEM ephemeris document.
const DefaultSourceURL = "https://nasa-public-data.s3.amazonaws.com/iss-coords/current/ISS_OEM/ISS.OEM_J2K_EPH.xml"

// maxBodyBytes caps the response size read from the upstream feed. The real
// document is well under 1 MB; anything near the cap is not an ephemeris.
const maxBodyBytes = 50 * 1024 * 1024

// Fetcher retrieves the raw OEM document from the upstream feed.
type Fetcher struct {
	sourceURL  string
	httpClient *http.Client
	retries    int
	logger     *slog.Logger
}

// NewFetcher creates a Fetcher for the given source URL. retries is the
// number of additional attempts after a transport error or 5xx response.
func NewFetcher(sourceURL string, timeout time.Duration, retries int, logger *slog.Logger) *Fetcher {
	if sourceURL == "" {
		sourceURL = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Fetcher{
		sourceURL: sourceURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		logger:  logger,
	}
}

// SourceURL returns the configured source URL.
func (f *Fetcher) SourceURL() string {
	return f.sourceURL
}

// Fetch performs an HTTP GET for the raw feed, retrying once per configured
// retry on transport errors and 5xx responses.
func (f *Fetcher) Fetch(ctx context.Context) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			f.logger.Warn("retrying feed fetch", "attempt", attempt, "error", lastErr)
		}
		data, retryable, err := f.fetchOnce(ctx)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !retryable {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// fetchOnce performs a single GET. The second return reports whether the
// failure is worth retrying.
func (f *Fetcher) fetchOnce(ctx context.Context) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.sourceURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("creating request: %w", err)
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("fetching feed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("unexpected status code %d from %s", resp.StatusCode, f.sourceURL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, true, fmt.Errorf("reading response body: %w", err)
	}
	if len(body) > maxBodyBytes {
		return nil, false, fmt.Errorf("response from %s exceeds %d byte limit", f.sourceURL, maxBodyBytes)
	}

	return body, false, nil
}

// FetchDocument fetches and parses the feed, stamping provenance fields.
func (f *Fetcher) FetchDocument(ctx context.Context) (*Document, error) {
	data, err := f.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.Source = f.sourceURL
	doc.FetchedAt = time.Now().UTC()
	return doc, nil
}
