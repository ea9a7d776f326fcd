// Package place enriches raw location strings into verified place names,
// addresses and map links. The Google client degrades gracefully: any
// failure yields a nil result and the caller continues with the raw text.
package place

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/calweave/calweave/logging"
)

// Enriched is the result of a successful place lookup.
type Enriched struct {
	DisplayName      string
	FormattedAddress string
	MapsURL          string
}

// TravelTime is the result of a successful travel time lookup.
type TravelTime struct {
	DurationMinutes int
	DurationText    string
	DistanceText    string
}

// Enricher resolves a raw location string. Implementations return (nil, nil)
// when the location cannot be resolved; an error is reserved for misuse, not
// lookup failure.
type Enricher interface {
	Enrich(ctx context.Context, raw string) (*Enriched, error)
}

const (
	textSearchURL     = "https://places.googleapis.com/v1/places:searchText"
	distanceMatrixURL = "https://maps.googleapis.com/maps/api/distancematrix/json"

	defaultTimeout = 5 * time.Second
)

// Options configures the Google client.
type Options struct {
	Logger     logging.Logger
	HTTPClient *http.Client

	// BaseURL replaces the Google API hosts, used to point tests at a local
	// server. Empty means the real endpoints.
	BaseURL string
}

// GoogleClient talks to the Places Text Search and Distance Matrix APIs.
type GoogleClient struct {
	apiKey string
	opts   Options
}

var _ Enricher = (*GoogleClient)(nil)

// NewGoogleClient creates a client. An empty API key is allowed; every
// lookup then short-circuits to nil.
func NewGoogleClient(apiKey string, optFns ...func(o *Options)) *GoogleClient {
	opts := Options{
		Logger:     logging.NoOpLogger{},
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &GoogleClient{apiKey: apiKey, opts: opts}
}

// WithLogger injects a logger.
func WithLogger(logger logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = logger }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) func(o *Options) {
	return func(o *Options) { o.HTTPClient = client }
}

// WithBaseURL redirects API calls to an alternate host.
func WithBaseURL(base string) func(o *Options) {
	return func(o *Options) { o.BaseURL = base }
}

// Enrich implements Enricher via the Places Text Search API.
func (c *GoogleClient) Enrich(ctx context.Context, raw string) (*Enriched, error) {
	if raw == "" || c.apiKey == "" {
		return nil, nil
	}

	body, err := json.Marshal(map[string]string{"textQuery": raw})
	if err != nil {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.searchURL(), bytes.NewReader(body))
	if err != nil {
		return nil, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", c.apiKey)
	req.Header.Set("X-Goog-FieldMask", "places.displayName,places.formattedAddress")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		c.opts.Logger.Warn("place enrichment failed", "location", raw, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.opts.Logger.Warn("place enrichment failed", "location", raw, "status", resp.StatusCode)
		return nil, nil
	}

	var payload struct {
		Places []struct {
			DisplayName struct {
				Text string `json:"text"`
			} `json:"displayName"`
			FormattedAddress string `json:"formattedAddress"`
		} `json:"places"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.opts.Logger.Warn("place enrichment returned invalid JSON", "location", raw, "error", err)
		return nil, nil
	}
	if len(payload.Places) == 0 {
		c.opts.Logger.Info("no place results", "location", raw)
		return nil, nil
	}

	first := payload.Places[0]
	name := first.DisplayName.Text
	if name == "" {
		name = raw
	}
	query := first.FormattedAddress
	if query == "" {
		query = name
	}

	return &Enriched{
		DisplayName:      name,
		FormattedAddress: first.FormattedAddress,
		MapsURL:          "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(query),
	}, nil
}

// TravelTime looks up driving time between two addresses via the Distance
// Matrix API. Any failure yields nil.
func (c *GoogleClient) TravelTime(ctx context.Context, origin, destination string) (*TravelTime, error) {
	if origin == "" || destination == "" || c.apiKey == "" {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s?origins=%s&destinations=%s&key=%s",
		c.matrixURL(), url.QueryEscape(origin), url.QueryEscape(destination), url.QueryEscape(c.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, nil
	}

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		c.opts.Logger.Warn("travel time lookup failed", "origin", origin, "destination", destination, "error", err)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.opts.Logger.Warn("travel time lookup failed", "status", resp.StatusCode)
		return nil, nil
	}

	var payload struct {
		Status string `json:"status"`
		Rows   []struct {
			Elements []struct {
				Status   string `json:"status"`
				Duration struct {
					Value int    `json:"value"` // seconds
					Text  string `json:"text"`
				} `json:"duration"`
				Distance struct {
					Text string `json:"text"`
				} `json:"distance"`
			} `json:"elements"`
		} `json:"rows"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		c.opts.Logger.Warn("travel time lookup returned invalid JSON", "error", err)
		return nil, nil
	}
	if payload.Status != "OK" || len(payload.Rows) == 0 || len(payload.Rows[0].Elements) == 0 {
		c.opts.Logger.Warn("travel time lookup unavailable", "status", payload.Status)
		return nil, nil
	}

	el := payload.Rows[0].Elements[0]
	if el.Status != "OK" {
		c.opts.Logger.Info("travel time element unavailable", "status", el.Status)
		return nil, nil
	}

	return &TravelTime{
		DurationMinutes: (el.Duration.Value + 59) / 60,
		DurationText:    el.Duration.Text,
		DistanceText:    el.Distance.Text,
	}, nil
}

func (c *GoogleClient) searchURL() string {
	if c.opts.BaseURL != "" {
		return c.opts.BaseURL + "/v1/places:searchText"
	}
	return textSearchURL
}

func (c *GoogleClient) matrixURL() string {
	if c.opts.BaseURL != "" {
		return c.opts.BaseURL + "/maps/api/distancematrix/json"
	}
	return distanceMatrixURL
}
