package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"raincheck/internal/types"
)

// GeocodeConfig configures the geocoding provider client.
type GeocodeConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// GeocodeClient resolves place names to coordinates via the Open-Meteo
// geocoding API. It implements geo.Geocoder.
//
// A lookup that finds no match returns (nil, nil): per the resolver contract,
// "no coordinates" is a fallback condition, not an error. Only transport or
// decode failures produce an error, and the resolver treats those as
// non-fatal too.
type GeocodeClient struct {
	base    *BaseClient
	baseURL string
}

// NewGeocodeClient creates a geocoding client with its own circuit breaker
// and a bounded per-request timeout.
func NewGeocodeClient(cfg GeocodeConfig) *GeocodeClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	return &GeocodeClient{
		base:    NewBaseClient(httpClient, "geocoding", DefaultRetryPolicy(), cfg.UserAgent),
		baseURL: cfg.BaseURL,
	}
}

// geocodeResponse mirrors the provider's search response.
type geocodeResponse struct {
	Results []struct {
		Name      string  `json:"name"`
		Latitude  float64 `json:"latitude"`
		Longitude float64 `json:"longitude"`
		Admin1    string  `json:"admin1"`
		Country   string  `json:"country"`
	} `json:"results"`
}

// Lookup geocodes "name, province, country" and returns the best match.
// Empty province/country parts are dropped from the query.
func (c *GeocodeClient) Lookup(ctx context.Context, name, province, country string) (*types.Coordinates, error) {
	parts := make([]string, 0, 3)
	for _, p := range []string{name, province, country} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	if len(parts) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("name", strings.Join(parts, ", "))
	q.Set("count", "1")
	q.Set("format", "json")

	endpoint := fmt.Sprintf("%s/search?%s", c.baseURL, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "failed to build geocoding request", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeocoding, "geocoding provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, types.NewAppError(
			types.ErrCodeUpstreamGeocoding,
			fmt.Sprintf("geocoding provider returned %d", resp.StatusCode),
			nil,
		)
	}

	var body geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamGeocoding, "failed to decode geocoding response", err)
	}

	if len(body.Results) == 0 {
		return nil, nil // no match; caller falls back
	}

	best := body.Results[0]
	display := best.Name
	if best.Admin1 != "" {
		display = fmt.Sprintf("%s, %s", best.Name, best.Admin1)
	}
	return &types.Coordinates{
		Lat:         best.Latitude,
		Lon:         best.Longitude,
		DisplayName: display,
	}, nil
}
