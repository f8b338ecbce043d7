// Package eonet provides a client for the NASA Earth Observatory Natural
// Event Tracker.
package eonet

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/provider/resilience"
	"github.com/airexposure/airexposure/internal/satellite"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "eonet"

	// DefaultBaseURL is the EONET v3 API base URL.
	DefaultBaseURL = "https://eonet.gsfc.nasa.gov/api/v3"

	// DefaultLookbackDays is how far back open events are requested.
	DefaultLookbackDays = 60
)

// ClientConfig holds configuration for the EONET client.
type ClientConfig struct {
	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// LookbackDays limits events to the last N days (default: 60).
	LookbackDays int

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is an EONET API client.
type Client struct {
	baseURL      string
	lookbackDays int
	httpClient   *resilience.Client
	logger       zerolog.Logger
}

// NewClient creates a new EONET client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	lookback := cfg.LookbackDays
	if lookback == 0 {
		lookback = DefaultLookbackDays
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SupplierClientConfig(ProviderName, 10*time.Second, nil))
	}

	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		lookbackDays: lookback,
		httpClient:   httpClient,
		logger:       cfg.Logger,
	}
}

// Events implements satellite.EventSource. Only open events in categories
// that affect air quality and that carry a point geometry are returned.
func (c *Client) Events(ctx context.Context) ([]satellite.Event, error) {
	query := url.Values{}
	query.Set("status", "open")
	query.Set("days", strconv.Itoa(c.lookbackDays))

	var resp eventsResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+"/events?"+query.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("fetching events: %w", err)
	}

	events := make([]satellite.Event, 0, len(resp.Events))
	for _, e := range resp.Events {
		event, ok := toEvent(e)
		if ok {
			events = append(events, event)
		}
	}

	c.logger.Debug().
		Int("total", len(resp.Events)).
		Int("relevant", len(events)).
		Msg("fetched eonet events")

	return events, nil
}

func toEvent(e eventResponse) (satellite.Event, bool) {
	if len(e.Categories) == 0 || len(e.Geometry) == 0 {
		return satellite.Event{}, false
	}
	category := e.Categories[0].Title
	switch category {
	case satellite.CategoryWildfires, satellite.CategoryDustHaze,
		satellite.CategoryVolcanoes, satellite.CategoryAirQuality:
	default:
		return satellite.Event{}, false
	}

	for _, g := range e.Geometry {
		if g.Type != "Point" {
			continue
		}
		var point []float64
		if err := json.Unmarshal(g.Coordinates, &point); err != nil || len(point) < 2 {
			continue
		}
		date, err := time.Parse(time.RFC3339, e.Geometry[0].Date)
		if err != nil {
			return satellite.Event{}, false
		}
		return satellite.Event{
			ID:        e.ID,
			Title:     e.Title,
			Category:  category,
			Date:      date.UTC(),
			Longitude: point[0],
			Latitude:  point[1],
		}, true
	}
	return satellite.Event{}, false
}

type eventsResponse struct {
	Events []eventResponse `json:"events"`
}

type eventResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Categories []struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"categories"`
	Geometry []struct {
		Date string `json:"date"`
		Type string `json:"type"`
		// Nested arrays for polygons, [lon, lat] for points.
		Coordinates json.RawMessage `json:"coordinates"`
	} `json:"geometry"`
}
