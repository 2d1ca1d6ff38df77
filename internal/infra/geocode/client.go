package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"staybook/internal/app/policies"
	"staybook/internal/domain/shared/storage"
)

// Client resolves addresses against a Google-compatible geocoding endpoint
// (GET ?address=...&key=... returning {"status", "results"}). Only the best
// result is used and partial matches are rejected.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{BaseURL: baseURL, APIKey: apiKey, HTTP: &http.Client{Timeout: timeout}}
}

type response struct {
	Status  string `json:"status"`
	Results []struct {
		PartialMatch bool `json:"partial_match"`
		Geometry     struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
	ErrorMessage string `json:"error_message"`
}

func (c *Client) Resolve(ctx context.Context, address string) (float64, float64, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return 0, 0, policies.ErrAddressNotFound
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return 0, 0, fmt.Errorf("geocode: base url: %w", err)
	}
	q := u.Query()
	q.Set("address", address)
	if c.APIKey != "" {
		q.Set("key", c.APIKey)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, 0, storage.Unavailable("geocode request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return 0, 0, storage.Unavailable("geocode request", fmt.Errorf("status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return 0, 0, fmt.Errorf("geocode: unexpected status %d", resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, 0, fmt.Errorf("geocode: decode: %w", err)
	}
	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return 0, 0, policies.ErrAddressNotFound
	case "OVER_QUERY_LIMIT", "UNKNOWN_ERROR":
		return 0, 0, storage.Unavailable("geocode request", fmt.Errorf("status %s: %s", body.Status, body.ErrorMessage))
	default:
		return 0, 0, fmt.Errorf("geocode: status %s: %s", body.Status, body.ErrorMessage)
	}
	if len(body.Results) == 0 || body.Results[0].PartialMatch {
		return 0, 0, policies.ErrAddressNotFound
	}
	loc := body.Results[0].Geometry.Location
	return loc.Lat, loc.Lng, nil
}

var _ policies.Geocoder = (*Client)(nil)
