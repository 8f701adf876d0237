package intensity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPClient allows mocking http.Client in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ElectricityMapsClient fetches a zone's current carbon intensity from the
// Electricity Maps API. Each call is a single best-effort attempt; the
// store's refresh loop wraps it with bounded retry.
type ElectricityMapsClient struct {
	baseURL string
	token   string
	client  HTTPClient
}

// intensityResponse is the subset of the API response the service needs.
type intensityResponse struct {
	Zone            string    `json:"zone"`
	CarbonIntensity float64   `json:"carbonIntensity"`
	Datetime        time.Time `json:"datetime"`
}

// ClientOption customizes the client.
type ClientOption func(*ElectricityMapsClient)

// WithHTTPClient injects a custom HTTP client.
func WithHTTPClient(client HTTPClient) ClientOption {
	return func(c *ElectricityMapsClient) { c.client = client }
}

// NewElectricityMapsClient creates a client for the given API base URL.
func NewElectricityMapsClient(baseURL, token string, timeout time.Duration, opts ...ClientOption) *ElectricityMapsClient {
	c := &ElectricityMapsClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchIntensity returns the zone's current intensity in gCO2eq/kWh.
// Satisfies FetchFunc.
func (c *ElectricityMapsClient) FetchIntensity(ctx context.Context, zone string) (float64, error) {
	url := fmt.Sprintf("%s/v3/carbon-intensity/latest?zone=%s", c.baseURL, zone)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build intensity request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("auth-token", c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("intensity fetch failed for %s: %w", zone, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("intensity fetch for %s returned status %d", zone, resp.StatusCode)
	}

	var payload intensityResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("failed to decode intensity response for %s: %w", zone, err)
	}
	if payload.CarbonIntensity <= 0 {
		return 0, fmt.Errorf("intensity response for %s carries no value", zone)
	}

	return payload.CarbonIntensity, nil
}
