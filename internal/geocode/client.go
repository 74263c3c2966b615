// Package geocode resolves latitude/longitude pairs to human-readable place
// names via the Nominatim reverse-geocoding API.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const defaultBaseURL = "https://nominatim.openstreetmap.org"

// maxBodyBytes caps the reverse-geocode response size.
const maxBodyBytes = 1 * 1024 * 1024

// Client is a reverse-geocoding client. Nominatim requires a distinctive
// User-Agent identifying the calling application.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	retries    int
	logger     *slog.Logger
}

// NewClient creates a Client against baseURL (empty means the public
// Nominatim instance), identifying itself with userAgent.
func NewClient(baseURL, userAgent string, timeout time.Duration, retries int, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if userAgent == "" {
		userAgent = "iss-data-analysis"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if retries < 0 {
		retries = 0
	}
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		retries: retries,
		logger:  logger,
	}
}

// reverseResponse is the subset of the Nominatim jsonv2 payload we read.
// A no-match lookup returns {"error": "Unable to geocode"} with status 200.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Reverse looks up the place name at the given coordinates. found is false
// when the service has no locality for the point (open water, poles). A
// non-nil error means the service could not be reached at all.
func (c *Client) Reverse(ctx context.Context, lat, lon float64) (string, bool, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			c.logger.Warn("retrying reverse geocode", "attempt", attempt, "error", lastErr)
		}
		place, found, retryable, err := c.reverseOnce(ctx, lat, lon)
		if err == nil {
			return place, found, nil
		}
		lastErr = err
		if !retryable || ctx.Err() != nil {
			break
		}
	}
	return "", false, lastErr
}

func (c *Client) reverseOnce(ctx context.Context, lat, lon float64) (place string, found, retryable bool, err error) {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	reqURL := c.baseURL + "/reverse?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", false, false, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", false, true, fmt.Errorf("reverse geocoding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, resp.StatusCode >= 500, fmt.Errorf("unexpected status code %d from geocoder", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", false, true, fmt.Errorf("reading geocoder response: %w", err)
	}

	var parsed reverseResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", false, false, fmt.Errorf("decoding geocoder response: %w", err)
	}

	if parsed.Error != "" || parsed.DisplayName == "" {
		return "", false, false, nil
	}
	return parsed.DisplayName, true, false, nil
}
