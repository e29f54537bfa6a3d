// Package geodata reads the state / district / parcel hierarchy from the remote
// geographic-data service.
package geodata

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/paulmach/orb/geojson"

	"fraatlas/pkg/request"
)

// Endpoint names, also used as tracker buckets.
const (
	EndpointStates     = "states"
	EndpointDistricts  = "districts"
	EndpointFRAParcels = "fra_parcels"
	EndpointProbe      = "probe"
)

var acceptHeaders = map[string]string{
	"Accept": "application/geo+json, application/json",
}

// NetworkError reports a transport failure, a non-success status, or an
// undecodable document. Callers treat it as "no data available".
type NetworkError struct {
	Endpoint string
	Key      string
	Err      error
}

func (e *NetworkError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("geodata %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("geodata %s/%s: %v", e.Endpoint, e.Key, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Client is a typed wrapper around the three read operations of the service.
// It makes exactly one attempt per call and caches nothing.
type Client struct {
	http    *request.Client
	baseURL string
}

// NewClient creates a client for the service rooted at baseURL (e.g. http://127.0.0.1:5000/api).
func NewClient(baseURL string, rc *request.Client) *Client {
	return &Client{
		http:    rc,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// FetchRootCollection returns one feature per state, each labelled with STATE.
func (c *Client) FetchRootCollection(ctx context.Context) (*geojson.FeatureCollection, error) {
	return c.fetch(ctx, EndpointStates, "")
}

// FetchChildCollection returns the districts of the given state.
func (c *Client) FetchChildCollection(ctx context.Context, parentKey string) (*geojson.FeatureCollection, error) {
	return c.fetch(ctx, EndpointDistricts, parentKey)
}

// FetchLeafDataset returns the parcel dataset of a district.
// When the service reports the district as not found the result is (nil, nil).
func (c *Client) FetchLeafDataset(ctx context.Context, leafKey string) (*geojson.FeatureCollection, error) {
	fc, err := c.fetch(ctx, EndpointFRAParcels, leafKey)
	var netErr *NetworkError
	if errors.As(err, &netErr) && errors.Is(netErr.Err, request.ErrNotFound) {
		return nil, nil
	}
	return fc, err
}

// Ping checks that the service answers at all. Any HTTP status counts as
// reachable; only transport failures are reported.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.http.Get(ctx, c.baseURL+"/"+EndpointStates, EndpointProbe)
	var se *request.StatusError
	if err == nil || errors.Is(err, request.ErrNotFound) || errors.As(err, &se) {
		return nil
	}
	return &NetworkError{Endpoint: EndpointProbe, Err: err}
}

func (c *Client) fetch(ctx context.Context, endpoint, key string) (*geojson.FeatureCollection, error) {
	u := c.baseURL + "/" + endpoint
	if key != "" {
		u += "/" + url.PathEscape(key)
	}

	body, err := c.http.GetWithHeaders(ctx, u, endpoint, acceptHeaders)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Key: key, Err: err}
	}

	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, &NetworkError{Endpoint: endpoint, Key: key, Err: fmt.Errorf("failed to decode geojson: %w", err)}
	}
	return fc, nil
}
