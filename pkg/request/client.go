package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"fraatlas/pkg/logging"
	"fraatlas/pkg/tracker"
	"fraatlas/pkg/version"
)

var defaultUserAgent = fmt.Sprintf("FRA Atlas/%s", version.Version)

// ErrNotFound is returned when the server answers 404.
var ErrNotFound = errors.New("resource not found")

// StatusError is returned for any other non-success status.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api error: status %d for %s", e.StatusCode, e.URL)
}

// maxBodySize caps a single response. Parcel datasets for a district are the largest documents.
const maxBodySize = 64 << 20

// Client performs single-attempt GET requests and records their outcome per endpoint.
// Requests are independent: several may be in flight at once.
type Client struct {
	httpClient *http.Client
	tracker    *tracker.Tracker
	userAgent  string
}

// New creates a new Client. An empty userAgent selects the built-in default.
func New(timeout time.Duration, t *tracker.Tracker, userAgent string) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if t == nil {
		t = tracker.New()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		tracker:    t,
		userAgent:  userAgent,
	}
}

// Tracker returns the tracker outcomes are recorded in.
func (c *Client) Tracker() *tracker.Tracker {
	return c.tracker
}

// Get performs a GET request. endpoint names the counter bucket in the tracker.
func (c *Client) Get(ctx context.Context, u, endpoint string) ([]byte, error) {
	return c.GetWithHeaders(ctx, u, endpoint, nil)
}

// GetWithHeaders performs a GET request with custom headers.
func (c *Client) GetWithHeaders(ctx context.Context, u, endpoint string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	uaMatch := false
	for k, v := range headers {
		req.Header.Set(k, v)
		if http.CanonicalHeaderKey(k) == "User-Agent" {
			uaMatch = true
		}
	}
	if !uaMatch {
		req.Header.Set("User-Agent", c.userAgent)
	}

	start := time.Now()
	body, status, err := c.execute(req)
	logging.RequestLogger.Info("GET",
		"endpoint", endpoint,
		"url", u,
		"status", status,
		"duration", time.Since(start).Round(time.Millisecond),
		"bytes", len(body),
		"error", err,
	)

	switch {
	case err == nil:
		c.tracker.TrackSuccess(endpoint)
	case errors.Is(err, ErrNotFound):
		c.tracker.TrackNotFound(endpoint)
	default:
		c.tracker.TrackFailure(endpoint)
	}
	return body, err
}

func (c *Client) execute(req *http.Request) (body []byte, status int, err error) {
	slog.Debug("Network Request", "host", req.URL.Host, "path", req.URL.Path)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, 0, req.Context().Err()
		}
		return nil, 0, fmt.Errorf("transport error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, resp.StatusCode, fmt.Errorf("%w: %s", ErrNotFound, req.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resp.StatusCode, &StatusError{StatusCode: resp.StatusCode, URL: req.URL.String()}
	}

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read error: %w", err)
	}
	return body, resp.StatusCode, nil
}
