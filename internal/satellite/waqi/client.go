// Package waqi provides a client for the World Air Quality Index feed API.
package waqi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/airexposure/airexposure/internal/provider/resilience"
	"github.com/airexposure/airexposure/internal/region"
	"github.com/airexposure/airexposure/internal/satellite"
)

const (
	// ProviderName identifies this provider.
	ProviderName = "waqi"

	// DefaultBaseURL is the WAQI API base URL.
	DefaultBaseURL = "https://api.waqi.info"
)

// ErrFeedStatus is returned when the feed replies with a non-ok status.
var ErrFeedStatus = errors.New("waqi feed error")

// ClientConfig holds configuration for the WAQI client.
type ClientConfig struct {
	// Token is the WAQI API token (required).
	Token string

	// BaseURL is the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	HTTPClient *resilience.Client

	Logger zerolog.Logger
}

// Client is a WAQI API client.
type Client struct {
	token      string
	baseURL    string
	httpClient *resilience.Client
	logger     zerolog.Logger
}

// NewClient creates a new WAQI client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.SupplierClientConfig(ProviderName, 10*time.Second, nil))
	}

	return &Client{
		token:      cfg.Token,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// PM25 implements satellite.PM25Source. The city feed is tried first and
// the geo feed at the region's coordinates second.
func (c *Client) PM25(ctx context.Context, r region.Region) (float64, error) {
	station := r.WAQIStation
	if station == "" {
		station = strings.ToLower(strings.ReplaceAll(r.Name, " ", ""))
	}

	feeds := []string{
		"/feed/" + url.PathEscape(station) + "/",
		fmt.Sprintf("/feed/geo:%s;%s/",
			strconv.FormatFloat(r.Latitude, 'f', -1, 64),
			strconv.FormatFloat(r.Longitude, 'f', -1, 64)),
	}

	var lastErr error
	for _, feed := range feeds {
		value, err := c.read(ctx, feed)
		if err == nil {
			return value, nil
		}
		lastErr = err
		c.logger.Debug().Err(err).Str("feed", feed).Msg("waqi feed failed")
	}
	return 0, lastErr
}

func (c *Client) read(ctx context.Context, feed string) (float64, error) {
	query := url.Values{}
	query.Set("token", c.token)

	var resp feedResponse
	if err := c.httpClient.GetJSON(ctx, c.baseURL+feed+"?"+query.Encode(), &resp); err != nil {
		return 0, fmt.Errorf("fetching %s: %w", feed, err)
	}
	if resp.Status != "ok" {
		// On error the data field is a message string.
		return 0, fmt.Errorf("%w: %s %s", ErrFeedStatus, resp.Status, resp.Data)
	}

	var data feedData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return 0, fmt.Errorf("decoding %s: %w", feed, err)
	}
	if data.IAQI.PM25 == nil {
		return 0, satellite.ErrNoReading
	}

	c.logger.Debug().
		Str("station", data.City.Name).
		Float64("pm25", data.IAQI.PM25.V).
		Str("dominant", data.DominantPol).
		Msg("fetched waqi reading")

	return data.IAQI.PM25.V, nil
}

type feedResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

type feedData struct {
	City struct {
		Name string `json:"name"`
	} `json:"city"`
	DominantPol string `json:"dominentpol"`
	IAQI        struct {
		PM25 *struct {
			V float64 `json:"v"`
		} `json:"pm25"`
	} `json:"iaqi"`
}
